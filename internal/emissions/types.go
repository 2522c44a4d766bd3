package emissions

import "time"

// Unit is the reporting unit for every emission amount.
const Unit = "tCO2e"

// OrgUnitKind is the level of an organizational unit.
type OrgUnitKind string

const (
	OrgUnitCompany      OrgUnitKind = "company"
	OrgUnitBusinessUnit OrgUnitKind = "business_unit"
	OrgUnitProject      OrgUnitKind = "project"
	OrgUnitDepartment   OrgUnitKind = "department"
	OrgUnitFacility     OrgUnitKind = "facility"
)

// Record is a single emission entry. Amount is nil when the source row has no value.
type Record struct {
	ID             string
	OrganizationID string
	Amount         *float64
	MaterialType   string
	Category       string
	OrgUnitID      string
	OrgUnitKind    OrgUnitKind
	OccurredAt     time.Time
}

// Interval is a half-open time range [Start, End).
type Interval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Contains reports whether t falls inside the interval.
func (i Interval) Contains(t time.Time) bool {
	return !t.Before(i.Start) && t.Before(i.End)
}

// Filters narrows a record fetch. Empty fields apply no constraint.
type Filters struct {
	MaterialType string
	Category     string
	OrgUnitID    string
	OrgUnitKind  OrgUnitKind
}

// Match reports whether r satisfies every non-empty filter.
func (f Filters) Match(r Record) bool {
	if f.MaterialType != "" && r.MaterialType != f.MaterialType {
		return false
	}
	if f.Category != "" && r.Category != f.Category {
		return false
	}
	if f.OrgUnitID != "" && r.OrgUnitID != f.OrgUnitID {
		return false
	}
	if f.OrgUnitKind != "" && f.OrgUnitKind != OrgUnitCompany && r.OrgUnitKind != f.OrgUnitKind {
		return false
	}
	return true
}

// CatalogEntry is one named item of an organization's taxonomy.
type CatalogEntry struct {
	ID      string      `json:"id"`
	Name    string      `json:"name"`
	Aliases []string    `json:"aliases,omitempty"`
	Kind    OrgUnitKind `json:"kind,omitempty"` // organizational units only
}

// Catalog is the organization's configured taxonomy, in declaration order.
// It is never mutated after construction and may be shared between goroutines.
type Catalog struct {
	Materials           []CatalogEntry `json:"materials"`
	Categories          []CatalogEntry `json:"categories"`
	OrganizationalUnits []CatalogEntry `json:"organizational_units"`
}

// NameOf returns the display name for id within entries, or id itself when unknown.
func NameOf(entries []CatalogEntry, id string) string {
	for _, e := range entries {
		if e.ID == id {
			return e.Name
		}
	}
	return id
}
