package query

import (
	"slices"
	"time"

	"github.com/carbonledger/analyst/internal/emissions"
)

// TimeFrame is the calendar unit of a period.
type TimeFrame string

const (
	FrameDay           TimeFrame = "day"
	FrameWeek          TimeFrame = "week"
	FrameMonth         TimeFrame = "month"
	FrameQuarter       TimeFrame = "quarter"
	FrameYear          TimeFrame = "year"
	FrameFinancialYear TimeFrame = "financial_year"
)

// Intent is the kind of answer a question asks for.
type Intent string

const (
	IntentSingleValue Intent = "single_value"
	IntentTimeSeries  Intent = "time_series"
	IntentComparison  Intent = "comparison"
	IntentBreakdown   Intent = "breakdown"
	IntentRanking     Intent = "ranking"
	IntentPrediction  Intent = "prediction"
)

// Aggregation is the numeric reduction applied per group.
type Aggregation string

const (
	AggSum     Aggregation = "sum"
	AggAverage Aggregation = "average"
	AggMin     Aggregation = "min"
	AggMax     Aggregation = "max"
	AggCount   Aggregation = "count"
)

// Dimension is a record attribute that groups can be formed on.
type Dimension string

const (
	DimMaterial Dimension = "material"
	DimCategory Dimension = "category"
	DimOrgUnit  Dimension = "organizational_unit"
)

// NameIn returns the display name of id for this dimension, or id itself when
// the catalog has no such entry.
func (d Dimension) NameIn(c emissions.Catalog, id string) string {
	switch d {
	case DimMaterial:
		return emissions.NameOf(c.Materials, id)
	case DimCategory:
		return emissions.NameOf(c.Categories, id)
	default:
		return emissions.NameOf(c.OrganizationalUnits, id)
	}
}

// ChartType is the visualisation requested for a result. The empty value means
// "let the composer decide".
type ChartType string

const (
	ChartNone ChartType = "none"
	ChartLine ChartType = "line"
	ChartBar  ChartType = "bar"
	ChartPie  ChartType = "pie"
	ChartArea ChartType = "area"
)

const (
	DefaultLimit             = 10
	DefaultPredictionPeriods = 3
	DefaultTrailingMonths    = 12
)

// EmissionQuery is the structured form of one question. Values are never
// mutated once built; Clone before deriving a new query.
type EmissionQuery struct {
	MaterialType        string                `json:"material_type,omitempty"`
	Category            string                `json:"category,omitempty"`
	TimeFrame           TimeFrame             `json:"time_frame"`
	TimeValue           time.Time             `json:"time_value"`
	TimeSpan            int                   `json:"time_span"`
	OrganizationalUnit  emissions.OrgUnitKind `json:"organizational_unit"`
	OrganizationalValue string                `json:"organizational_value,omitempty"`
	Comparison          bool                  `json:"comparison"`
	CompareTo           *Period               `json:"compare_to,omitempty"`
	Limit               int                   `json:"limit,omitempty"`
	Intent              Intent                `json:"intent"`
	Aggregation         Aggregation           `json:"aggregation"`
	GroupBy             []Dimension           `json:"group_by"`
	ChartType           ChartType             `json:"chart_type,omitempty"`
	PredictionPeriods   int                   `json:"prediction_periods,omitempty"`
	Bucket              TimeFrame             `json:"bucket,omitempty"`
}

// Period returns the period the query is about.
func (q EmissionQuery) Period() Period {
	return Period{Frame: q.TimeFrame, Anchor: q.TimeValue, Span: q.TimeSpan}
}

// Baseline returns the period a comparison is made against: the explicitly
// named one, or the immediately preceding period of equal length.
func (q EmissionQuery) Baseline() Period {
	if q.CompareTo != nil {
		return *q.CompareTo
	}
	return q.Period().Previous()
}

// Filters converts the entity slots into a record filter.
func (q EmissionQuery) Filters() emissions.Filters {
	f := emissions.Filters{
		MaterialType: q.MaterialType,
		Category:     q.Category,
		OrgUnitID:    q.OrganizationalValue,
	}
	if q.OrganizationalValue == "" {
		f.OrgUnitKind = q.OrganizationalUnit
	}
	return f
}

// Clone returns a deep copy.
func (q EmissionQuery) Clone() EmissionQuery {
	out := q
	out.GroupBy = slices.Clone(q.GroupBy)
	if q.CompareTo != nil {
		p := *q.CompareTo
		out.CompareTo = &p
	}
	return out
}
