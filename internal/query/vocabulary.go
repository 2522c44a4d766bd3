package query

import (
	"errors"
	"strings"

	"github.com/carbonledger/analyst/internal/emissions"
)

// ErrResolutionAmbiguous marks a slot whose best surface match names more than
// one catalog entry. The first declared entry is used.
var ErrResolutionAmbiguous = errors.New("entity resolution ambiguous")

// Slot is an entity position in a query.
type Slot string

const (
	SlotMaterial Slot = "material"
	SlotCategory Slot = "category"
	SlotOrgUnit  Slot = "organizational_unit"
)

// EntityMatch is a catalog entry found in an utterance.
type EntityMatch struct {
	Slot  Slot                  `json:"slot"`
	ID    string                `json:"id"`
	Span  string                `json:"span"`
	Start int                   `json:"start"`
	Kind  emissions.OrgUnitKind `json:"kind,omitempty"`
}

// Entities holds at most one match per slot.
type Entities struct {
	Material  *EntityMatch
	Category  *EntityMatch
	OrgUnit   *EntityMatch
	// Ambiguous lists slots where one span named several entries.
	Ambiguous []Slot
}

// ResolveEntities matches the utterance against the catalog. Within a slot the
// longest matched span wins and equal lengths fall back to declaration order.
func ResolveEntities(text string, catalog emissions.Catalog) Entities {
	t := padded(normalize(text))

	var out Entities
	var amb bool
	if out.Material, amb = matchSlot(t, SlotMaterial, catalog.Materials); amb {
		out.Ambiguous = append(out.Ambiguous, SlotMaterial)
	}
	if out.Category, amb = matchSlot(t, SlotCategory, catalog.Categories); amb {
		out.Ambiguous = append(out.Ambiguous, SlotCategory)
	}
	if out.OrgUnit, amb = matchSlot(t, SlotOrgUnit, catalog.OrganizationalUnits); amb {
		out.Ambiguous = append(out.Ambiguous, SlotOrgUnit)
	}
	return out
}

func matchSlot(text string, slot Slot, entries []emissions.CatalogEntry) (*EntityMatch, bool) {
	var best *EntityMatch
	ambiguous := false

	for _, e := range entries {
		for _, surface := range surfaces(e) {
			start, span, ok := locate(text, surface)
			if !ok {
				continue
			}
			switch {
			case best == nil || len(span) > len(best.Span):
				best = &EntityMatch{Slot: slot, ID: e.ID, Span: span, Start: start, Kind: e.Kind}
				ambiguous = false
			case len(span) == len(best.Span) && start == best.Start && e.ID != best.ID:
				ambiguous = true
			}
		}
	}
	return best, ambiguous
}

func surfaces(e emissions.CatalogEntry) []string {
	out := make([]string, 0, 1+len(e.Aliases))
	for _, s := range append([]string{e.Name}, e.Aliases...) {
		if n := normalize(s); n != "" {
			out = append(out, n)
		}
	}
	return out
}

// locate finds surface (or its plural) as whole words and returns the byte
// offset and matched text.
func locate(text, surface string) (int, string, bool) {
	if i := strings.Index(text, " "+surface+" "); i >= 0 {
		return i, surface, true
	}
	if i := strings.Index(text, " "+surface+"s "); i >= 0 {
		return i, surface + "s", true
	}
	return 0, "", false
}
