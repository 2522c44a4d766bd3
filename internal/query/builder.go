package query

import (
	"slices"
	"time"

	"github.com/carbonledger/analyst/internal/emissions"
)

// Input is one turn's raw material for building a query.
type Input struct {
	Text            string
	Catalog         emissions.Catalog
	Reference       time.Time
	FiscalYearStart time.Month
}

// Trace records how a query was resolved, for logging.
type Trace struct {
	Entities Entities
	Periods  []Period
	Cues     Cues
}

// Build resolves the utterance and merges it over prior field by field: what
// this turn resolves wins, everything else is inherited, and defaults fill the
// rest. prior is never modified.
func Build(in Input, prior *EmissionQuery) (EmissionQuery, Trace) {
	ents := ResolveEntities(in.Text, in.Catalog)
	periods := ResolvePeriods(in.Text, TemporalContext{Reference: in.Reference, FiscalStart: in.FiscalYearStart})
	twoPeriods := len(periods) >= 2
	cues := Classify(in.Text, twoPeriods)

	var q EmissionQuery
	if prior != nil {
		q = prior.Clone()
	} else {
		q = defaults(in.Reference)
	}

	if ents.Material != nil {
		q.MaterialType = ents.Material.ID
	}
	if ents.Category != nil {
		q.Category = ents.Category.ID
	}
	switch {
	case ents.OrgUnit != nil:
		q.OrganizationalUnit = ents.OrgUnit.Kind
		if q.OrganizationalUnit == "" {
			q.OrganizationalUnit = emissions.OrgUnitCompany
		}
		q.OrganizationalValue = ents.OrgUnit.ID
	case cues.OrgLevel != "":
		q.OrganizationalUnit = cues.OrgLevel
		q.OrganizationalValue = ""
	}

	if len(periods) > 0 {
		p := periods[0]
		q.TimeFrame, q.TimeValue, q.TimeSpan = p.Frame, p.Anchor, p.span()
		q.CompareTo = nil
		if twoPeriods {
			b := periods[1]
			if b.Frame == p.Frame && b.span() == p.span() {
				q.CompareTo = &b
			}
		}
	}

	q.Intent = ResolveIntent(cues, prior)

	if cues.Aggregation != "" {
		q.Aggregation = cues.Aggregation
	}
	if len(cues.GroupBy) > 0 {
		q.GroupBy = slices.Clone(cues.GroupBy)
	}
	if (q.Intent == IntentRanking || q.Intent == IntentBreakdown) && len(q.GroupBy) == 0 {
		q.GroupBy = []Dimension{DimCategory}
	}
	if cues.Limit > 0 {
		q.Limit = cues.Limit
	}
	if q.Intent == IntentRanking && q.Limit <= 0 {
		q.Limit = DefaultLimit
	}
	if cues.Horizon > 0 {
		q.PredictionPeriods = cues.Horizon
		q.Bucket = cues.HorizonFrame
	}
	if q.Intent == IntentPrediction && q.PredictionPeriods <= 0 {
		q.PredictionPeriods = DefaultPredictionPeriods
	}
	if cues.Bucket != "" {
		q.Bucket = cues.Bucket
	}
	if cues.ChartType != "" {
		q.ChartType = cues.ChartType
	}
	q.Comparison = q.Intent == IntentComparison || twoPeriods

	return q, Trace{Entities: ents, Periods: periods, Cues: cues}
}

func defaults(ref time.Time) EmissionQuery {
	p := DefaultPeriod(ref.UTC())
	return EmissionQuery{
		TimeFrame:          p.Frame,
		TimeValue:          p.Anchor,
		TimeSpan:           p.Span,
		OrganizationalUnit: emissions.OrgUnitCompany,
		Aggregation:        AggSum,
	}
}
