package compose

import (
	"fmt"
	"math"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/carbonledger/analyst/internal/aggregate"
	"github.com/carbonledger/analyst/internal/emissions"
	"github.com/carbonledger/analyst/internal/query"
)

// maxListed caps how many groups a narrative names before summarising the rest.
const maxListed = 6

// labeler turns catalog ids into display names.
type labeler struct {
	catalog emissions.Catalog
	dims    []query.Dimension
}

func (l labeler) group(keys []string, fallback string) string {
	if len(keys) == 0 || len(keys) != len(l.dims) {
		return fallback
	}
	names := make([]string, len(keys))
	for i, k := range keys {
		names[i] = l.name(l.dims[i], k)
	}
	return strings.Join(names, " / ")
}

func (l labeler) name(d query.Dimension, id string) string {
	return d.NameIn(l.catalog, id)
}

func narrate(q query.EmissionQuery, res aggregate.Result, pred *Prediction, names labeler) string {
	scope := scopePhrase(q, names.catalog)
	period := periodPhrase(q.Period())

	switch q.Intent {
	case query.IntentBreakdown:
		return breakdownSummary(q, res, names, scope, period)
	case query.IntentRanking:
		return rankingSummary(q, res, names, scope, period)
	case query.IntentTimeSeries:
		return seriesSummary(q, res, names, scope, period)
	case query.IntentPrediction:
		return predictionSummary(q, pred, names, scope, period)
	default:
		return singleValueSummary(q, res, scope, period)
	}
}

func singleValueSummary(q query.EmissionQuery, res aggregate.Result, scope, period string) string {
	var s string
	if res.RecordCount == 0 {
		s = fmt.Sprintf("No emissions were recorded%s %s, so the %s is %s.", scope, period, aggWord(q.Aggregation), formatValue(q.Aggregation, 0))
	} else {
		s = fmt.Sprintf("%s%s %s came to %s.", subject(q.Aggregation), scope, period, formatValue(q.Aggregation, res.Total))
	}
	if res.Change != nil {
		s += " " + changeSentence(q.Aggregation, res.Change)
	}
	return s
}

func changeSentence(agg query.Aggregation, c *aggregate.Change) string {
	abs := formatValue(agg, math.Abs(c.Value))
	switch {
	case c.Direction == aggregate.DirectionNoChange:
		return fmt.Sprintf("That is unchanged from %s.", c.ComparedTo)
	case c.Percentage == nil:
		return fmt.Sprintf("That is up %s on %s, when nothing was recorded.", abs, c.ComparedTo)
	default:
		word := "up"
		if c.Direction == aggregate.DirectionDecrease {
			word = "down"
		}
		return fmt.Sprintf("That is %s %s (%+.1f%%) on %s.", word, abs, *c.Percentage, c.ComparedTo)
	}
}

func breakdownSummary(q query.EmissionQuery, res aggregate.Result, names labeler, scope, period string) string {
	dims := dimensionNames(q)
	if res.RecordCount == 0 || len(res.Groups) == 0 {
		return fmt.Sprintf("No emissions were recorded%s %s, so there is nothing to break down by %s.", scope, period, dims)
	}

	items := make([]string, 0, maxListed)
	for i, g := range res.Groups {
		if i == maxListed {
			break
		}
		item := names.group(g.Keys, g.Label) + " " + formatValue(q.Aggregation, g.Value)
		if q.Aggregation == query.AggSum && res.Total > 0 {
			item += fmt.Sprintf(" (%.1f%%)", g.Value/res.Total*100)
		}
		items = append(items, item)
	}
	s := fmt.Sprintf("%s%s %s by %s: %s", subject(q.Aggregation), scope, period, dims, strings.Join(items, ", "))
	if extra := len(res.Groups) - maxListed; extra > 0 {
		s += fmt.Sprintf(", and %d more", extra)
	}
	if q.Aggregation == query.AggSum {
		s += fmt.Sprintf(". Overall %s", formatValue(q.Aggregation, res.Total))
	}
	return s + "."
}

func rankingSummary(q query.EmissionQuery, res aggregate.Result, names labeler, scope, period string) string {
	if res.RecordCount == 0 || len(res.Groups) == 0 {
		return fmt.Sprintf("No emissions were recorded%s %s, so there is nothing to rank.", scope, period)
	}

	items := make([]string, len(res.Groups))
	for i, g := range res.Groups {
		items[i] = fmt.Sprintf("%d. %s (%s)", i+1, names.group(g.Keys, g.Label), formatValue(q.Aggregation, g.Value))
	}
	head := fmt.Sprintf("Top %d %s", len(res.Groups), pluralDimension(q))
	if len(res.Groups) == 1 {
		head = "Top " + singularDimension(q)
	}
	return fmt.Sprintf("%s by %s%s %s: %s.",
		head, measure(q.Aggregation), scope, period, strings.Join(items, ", "))
}

func seriesSummary(q query.EmissionQuery, res aggregate.Result, names labeler, scope, period string) string {
	bucket := frameNoun(res.Bucket)
	if res.RecordCount == 0 || len(res.Series) == 0 {
		return fmt.Sprintf("No emissions were recorded%s %s, so every %s is %s.", scope, period, bucket, formatValue(q.Aggregation, 0))
	}

	head := fmt.Sprintf("%s%s %s by %s", subject(q.Aggregation), scope, period, bucket)
	if len(res.Series) > 1 {
		lead := res.Series[0]
		return fmt.Sprintf("%s, across %d %s: %s led with %s.",
			head, len(res.Series), pluralDimension(q), names.group(lead.Keys, lead.Label), formatValue(q.Aggregation, res.Groups[0].Value))
	}

	pts := res.Series[0].Points
	hi, lo := pts[0], pts[0]
	for _, p := range pts[1:] {
		if p.Value > hi.Value {
			hi = p
		}
		if p.Value < lo.Value {
			lo = p
		}
	}
	s := fmt.Sprintf("%s: highest in %s at %s, lowest in %s at %s.",
		head, hi.Label, formatValue(q.Aggregation, hi.Value), lo.Label, formatValue(q.Aggregation, lo.Value))
	if q.Aggregation == query.AggSum {
		s += fmt.Sprintf(" Overall %s.", formatValue(q.Aggregation, res.Total))
	}
	return s
}

func predictionSummary(q query.EmissionQuery, pred *Prediction, names labeler, scope, period string) string {
	observed := 0
	if pred != nil {
		for _, ps := range pred.Data {
			observed += len(ps.History)
		}
	}
	if observed == 0 {
		return fmt.Sprintf("No emissions were recorded%s %s, so there is no history to project from and the forecast is %s.",
			scope, period, formatValue(q.Aggregation, 0))
	}

	parts := make([]string, 0, len(pred.Data))
	for i, ps := range pred.Data {
		if i == maxListed {
			break
		}
		values := make([]string, len(ps.Projected))
		for j, p := range ps.Projected {
			values[j] = p.Label + " " + formatValue(q.Aggregation, p.Value)
		}
		part := strings.Join(values, ", ")
		if len(pred.Data) > 1 {
			part = names.group(ps.Keys, ps.Label) + ": " + part
		}
		parts = append(parts, part)
	}

	n := len(pred.Data[0].Projected)
	return fmt.Sprintf("Projected %s%s for the next %s %s: %s (confidence %.0f%%). %s",
		measure(q.Aggregation), scope, humanize.Comma(int64(n)), pluralFrame(pred.Bucket, n), strings.Join(parts, "; "), pred.Confidence*100, pred.Methodology)
}

// Failure is the result for a turn that could not be answered.
func Failure(q query.EmissionQuery, kind ErrorKind) QueryResult {
	var msg string
	switch kind {
	case ErrorStorageUnavailable:
		msg = "Sorry, I couldn't reach the emissions data just now, so I can't answer that yet. Please try again in a moment."
	case ErrorSessionUnavailable:
		msg = "Sorry, this conversation couldn't be saved, so the answer was not recorded. Please try again."
	default:
		msg = "The request was cancelled before an answer was ready."
	}
	return QueryResult{
		Query:   q,
		Shape:   ShapeError,
		Summary: msg,
		Error:   &ResultError{Kind: kind, Message: msg},
	}
}

func scopePhrase(q query.EmissionQuery, cat emissions.Catalog) string {
	var b strings.Builder
	var ents []string
	if q.MaterialType != "" {
		ents = append(ents, emissions.NameOf(cat.Materials, q.MaterialType))
	}
	if q.Category != "" {
		ents = append(ents, emissions.NameOf(cat.Categories, q.Category))
	}
	if len(ents) > 0 {
		b.WriteString(" for " + strings.Join(ents, " in "))
	}
	switch {
	case q.OrganizationalValue != "":
		b.WriteString(" at " + emissions.NameOf(cat.OrganizationalUnits, q.OrganizationalValue))
	case q.OrganizationalUnit != "" && q.OrganizationalUnit != emissions.OrgUnitCompany && !groupsOnOrgUnit(q):
		b.WriteString(" across all " + pluralKind(q.OrganizationalUnit))
	}
	return b.String()
}

func periodPhrase(p query.Period) string {
	if p.Span > 1 {
		return "from " + p.Label()
	}
	switch p.Frame {
	case query.FrameDay:
		return "on " + p.Label()
	case query.FrameWeek:
		return "in the " + p.Label()
	default:
		return "in " + p.Label()
	}
}

func subject(agg query.Aggregation) string {
	switch agg {
	case query.AggAverage:
		return "Average emissions per record"
	case query.AggMin:
		return "The smallest emission record"
	case query.AggMax:
		return "The largest emission record"
	case query.AggCount:
		return "The number of emission records"
	default:
		return "Total emissions"
	}
}

func aggWord(agg query.Aggregation) string {
	switch agg {
	case query.AggAverage:
		return "average"
	case query.AggMin:
		return "minimum"
	case query.AggMax:
		return "maximum"
	case query.AggCount:
		return "record count"
	default:
		return "total"
	}
}

func measure(agg query.Aggregation) string {
	if agg == query.AggCount {
		return "number of records"
	}
	return aggWord(agg) + " emissions"
}

// formatValue renders v with thousands separators and at most two decimals.
func formatValue(agg query.Aggregation, v float64) string {
	if agg == query.AggCount {
		return humanize.Comma(int64(math.Round(v)))
	}
	return humanize.CommafWithDigits(math.Round(v*100)/100, 2) + " " + emissions.Unit
}

func unitFor(agg query.Aggregation) string {
	if agg == query.AggCount {
		return "records"
	}
	return emissions.Unit
}

func dimensionNames(q query.EmissionQuery) string {
	names := make([]string, len(q.GroupBy))
	for i, d := range q.GroupBy {
		switch d {
		case query.DimMaterial:
			names[i] = "material"
		case query.DimCategory:
			names[i] = "category"
		default:
			names[i] = kindNoun(q.OrganizationalUnit)
		}
	}
	if len(names) == 0 {
		return "category"
	}
	return strings.Join(names, " and ")
}

func pluralDimension(q query.EmissionQuery) string {
	if len(q.GroupBy) == 0 {
		return "categories"
	}
	switch q.GroupBy[0] {
	case query.DimMaterial:
		return "materials"
	case query.DimCategory:
		return "categories"
	default:
		return pluralKind(q.OrganizationalUnit)
	}
}

func singularDimension(q query.EmissionQuery) string {
	if len(q.GroupBy) == 0 {
		return "category"
	}
	switch q.GroupBy[0] {
	case query.DimMaterial:
		return "material"
	case query.DimCategory:
		return "category"
	default:
		return kindNoun(q.OrganizationalUnit)
	}
}

func groupsOnOrgUnit(q query.EmissionQuery) bool {
	for _, d := range q.GroupBy {
		if d == query.DimOrgUnit {
			return true
		}
	}
	return false
}

func kindNoun(k emissions.OrgUnitKind) string {
	switch k {
	case emissions.OrgUnitBusinessUnit:
		return "business unit"
	case emissions.OrgUnitProject, emissions.OrgUnitDepartment, emissions.OrgUnitFacility:
		return string(k)
	default:
		return "organizational unit"
	}
}

func pluralKind(k emissions.OrgUnitKind) string {
	if k == emissions.OrgUnitFacility {
		return "facilities"
	}
	return kindNoun(k) + "s"
}

func frameNoun(f query.TimeFrame) string {
	if f == query.FrameFinancialYear {
		return "financial year"
	}
	if f == "" {
		return "month"
	}
	return string(f)
}

func pluralFrame(f query.TimeFrame, n int) string {
	noun := frameNoun(f)
	if n == 1 {
		return noun
	}
	return noun + "s"
}
