package questions

import (
	_ "embed"
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed questions.yaml
var raw []byte

// Question is a suggested prompt shown to users.
type Question struct {
	ID          string `yaml:"id" json:"id"`
	Text        string `yaml:"text" json:"text"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
	Category    string `yaml:"category" json:"category"`
}

var (
	once    sync.Once
	catalog []Question
	loadErr error
)

func load() ([]Question, error) {
	once.Do(func() {
		catalog, loadErr = parse(raw)
	})
	return catalog, loadErr
}

func parse(data []byte) ([]Question, error) {
	var qs []Question
	if err := yaml.Unmarshal(data, &qs); err != nil {
		return nil, fmt.Errorf("parse questions: %w", err)
	}
	seen := make(map[string]bool, len(qs))
	for _, q := range qs {
		if q.ID == "" || q.Text == "" || q.Category == "" {
			return nil, fmt.Errorf("parse questions: incomplete entry %q", q.ID)
		}
		if seen[q.ID] {
			return nil, fmt.Errorf("parse questions: duplicate id %q", q.ID)
		}
		seen[q.ID] = true
	}
	return qs, nil
}

// List returns the predefined questions in catalog order, restricted to
// category when it is non-empty.
func List(category string) ([]Question, error) {
	qs, err := load()
	if err != nil {
		return nil, err
	}
	out := make([]Question, 0, len(qs))
	for _, q := range qs {
		if category == "" || q.Category == category {
			out = append(out, q)
		}
	}
	return out, nil
}

// Categories returns the distinct categories in first-seen order.
func Categories() ([]string, error) {
	qs, err := load()
	if err != nil {
		return nil, err
	}
	var out []string
	seen := make(map[string]bool)
	for _, q := range qs {
		if !seen[q.Category] {
			seen[q.Category] = true
			out = append(out, q.Category)
		}
	}
	return out, nil
}
