package aggregate

import (
	"time"

	"github.com/carbonledger/analyst/internal/emissions"
	"github.com/carbonledger/analyst/internal/query"
)

// Direction is the sign of a period-over-period change.
type Direction string

const (
	DirectionIncrease Direction = "increase"
	DirectionDecrease Direction = "decrease"
	DirectionNoChange Direction = "no_change"
)

// Change compares the current aggregate with its baseline. Percentage is nil
// when the baseline is zero and the current value is not.
type Change struct {
	Value      float64   `json:"value"`
	Percentage *float64  `json:"percentage"`
	Direction  Direction `json:"direction"`
	ComparedTo string    `json:"compared_to"`
}

// Group is the aggregate of all records sharing the same groupBy values.
type Group struct {
	Keys  []string `json:"keys"`
	Label string   `json:"label"`
	Value float64  `json:"value"`
	Count int      `json:"count"`
}

// Point is one time bucket. A partial bucket is cut off by the edge of the
// queried interval or has not finished yet.
type Point struct {
	Start   time.Time `json:"start"`
	Label   string    `json:"label"`
	Value   float64   `json:"value"`
	Count   int       `json:"count"`
	Partial bool      `json:"partial,omitempty"`
}

// Series is a chronological bucket sequence for one group.
type Series struct {
	Label  string   `json:"label"`
	Keys   []string `json:"keys,omitempty"`
	Points []Point  `json:"points"`
}

// Options carries what Compute needs besides the records.
type Options struct {
	// AsOf is the time the question was asked; buckets ending after it are
	// partial. The zero value disables the check.
	AsOf time.Time
	// Catalog supplies the display names groups are labelled and ordered by.
	Catalog emissions.Catalog
}

// Result is the outcome of running a query over a record set.
type Result struct {
	Interval    emissions.Interval `json:"interval"`
	Total       float64            `json:"total"`
	RecordCount int                `json:"record_count"`
	Groups      []Group            `json:"groups"`
	Bucket      query.TimeFrame    `json:"bucket,omitempty"`
	Series      []Series           `json:"series,omitempty"`
	PriorTotal  float64            `json:"prior_total"`
	Change      *Change            `json:"change,omitempty"`
}

// Empty reports whether no records matched.
func (r Result) Empty() bool {
	return r.RecordCount == 0
}
