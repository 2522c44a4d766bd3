package query

import (
	"regexp"
	"strconv"

	"github.com/carbonledger/analyst/internal/emissions"
)

var (
	predictionCues = []string{
		"forecast", "forecasts", "forecasting", "predict", "predicted", "prediction",
		"will be", "projected", "projection", "going to be", "expected to",
	}
	comparisonCues = []string{
		"compared to", "compared with", "compare", "comparison", "versus", "vs",
		"change from", "change since", "difference", "year over year", "yoy",
		"month over month", "than last", "than the previous",
	}
	rankingCues = []string{
		"top", "highest", "largest", "biggest", "most", "rank", "ranking", "ranked", "worst",
	}
	breakdownCues = []string{
		"breakdown", "break down", "broken down", "split", "distribution", "composition", "share",
	}
	timeSeriesCues = []string{
		"trend", "trends", "over time", "time series", "history", "monthly", "weekly",
		"daily", "quarterly", "each month", "every month", "per month", "by month",
		"month by month", "each week", "per week", "by week", "by quarter", "each quarter",
		"by day", "per day",
	}
)

// bucket cues are checked in order.
var bucketCues = []struct {
	frame   TimeFrame
	phrases []string
}{
	{FrameDay, []string{"daily", "by day", "per day", "each day"}},
	{FrameWeek, []string{"weekly", "by week", "per week", "each week"}},
	{FrameQuarter, []string{"quarterly", "by quarter", "per quarter", "each quarter"}},
	{FrameMonth, []string{"monthly", "by month", "per month", "each month", "every month", "month by month"}},
}

var aggregationCues = []struct {
	agg     Aggregation
	phrases []string
}{
	{AggAverage, []string{"average", "avg", "mean"}},
	{AggMax, []string{"maximum", "max", "peak"}},
	{AggMin, []string{"minimum", "min"}},
	{AggCount, []string{"how many", "count", "number of"}},
	{AggSum, []string{"total", "sum", "how much"}},
}

var chartCues = []struct {
	chart   ChartType
	phrases []string
}{
	{ChartNone, []string{"no chart", "without a chart", "without chart", "just the number"}},
	{ChartPie, []string{"pie chart", "pie"}},
	{ChartBar, []string{"bar chart", "bar graph", "bars"}},
	{ChartLine, []string{"line chart", "line graph"}},
	{ChartArea, []string{"area chart"}},
}

const dimPattern = `(business units?|organi[sz]ational units?|org units?|materials?|categor(?:y|ies)|projects?|departments?|facilit(?:y|ies)|sites?)`

var (
	reTopN       = regexp.MustCompile(`\btop\s+(\d+)\b`)
	reGroupBy    = regexp.MustCompile(`\b(?:by|per|each|across|for each)\s+` + dimPattern + `(?:\s+(?:and|then)\s+` + dimPattern + `)?\b`)
	reRankingDim = regexp.MustCompile(`\b(?:top\s+(?:\d+\s+)?|which\s+|highest\s+emitting\s+)` + dimPattern + `\b`)
)

// Cues is everything the classifier read from a single utterance.
type Cues struct {
	Intent       Intent // empty when the utterance carries no intent cue
	Aggregation  Aggregation
	ChartType    ChartType
	Limit        int
	Horizon      int
	HorizonFrame TimeFrame
	Bucket       TimeFrame
	GroupBy      []Dimension
	OrgLevel     emissions.OrgUnitKind
}

// Classify reads intent and shaping cues from the utterance alone. Intent
// precedence is prediction > comparison > ranking/breakdown > time series.
// twoPeriods counts as a comparison cue.
func Classify(text string, twoPeriods bool) Cues {
	norm := normalize(text)
	t := padded(norm)

	var c Cues

	if m := reTopN.FindStringSubmatch(norm); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil && n > 0 {
			c.Limit = n
		}
	}
	if n, frame, ok := horizon(norm); ok {
		c.Horizon, c.HorizonFrame = n, frame
	}
	c.GroupBy, c.OrgLevel = groupDimensions(norm)

	switch {
	case c.Horizon > 0 || hasAny(t, predictionCues):
		c.Intent = IntentPrediction
	case twoPeriods || hasAny(t, comparisonCues):
		c.Intent = IntentComparison
	case c.Limit > 0 || hasAny(t, rankingCues):
		c.Intent = IntentRanking
	case len(c.GroupBy) > 0 || hasAny(t, breakdownCues):
		c.Intent = IntentBreakdown
	case hasAny(t, timeSeriesCues):
		c.Intent = IntentTimeSeries
	}

	for _, b := range bucketCues {
		if hasAny(t, b.phrases) {
			c.Bucket = b.frame
			break
		}
	}
	for _, a := range aggregationCues {
		if hasAny(t, a.phrases) {
			c.Aggregation = a.agg
			break
		}
	}
	for _, ch := range chartCues {
		if hasAny(t, ch.phrases) {
			c.ChartType = ch.chart
			break
		}
	}
	return c
}

// ResolveIntent applies conversational continuity: without a cue of its own a
// turn keeps the previous turn's intent.
func ResolveIntent(c Cues, prior *EmissionQuery) Intent {
	switch {
	case c.Intent != "":
		return c.Intent
	case prior != nil && prior.Intent != "":
		return prior.Intent
	default:
		return IntentSingleValue
	}
}

func groupDimensions(norm string) ([]Dimension, emissions.OrgUnitKind) {
	var dims []Dimension
	var level emissions.OrgUnitKind

	addDim := func(word string) {
		if word == "" {
			return
		}
		d, l := dimensionOf(word)
		if l != "" {
			level = l
		}
		for _, have := range dims {
			if have == d {
				return
			}
		}
		dims = append(dims, d)
	}

	for _, m := range reGroupBy.FindAllStringSubmatch(norm, -1) {
		addDim(m[1])
		addDim(m[2])
	}
	for _, m := range reRankingDim.FindAllStringSubmatch(norm, -1) {
		addDim(m[1])
	}
	return dims, level
}

func dimensionOf(word string) (Dimension, emissions.OrgUnitKind) {
	switch word {
	case "material", "materials":
		return DimMaterial, ""
	case "category", "categories":
		return DimCategory, ""
	case "business unit", "business units":
		return DimOrgUnit, emissions.OrgUnitBusinessUnit
	case "project", "projects":
		return DimOrgUnit, emissions.OrgUnitProject
	case "department", "departments":
		return DimOrgUnit, emissions.OrgUnitDepartment
	case "facility", "facilities", "site", "sites":
		return DimOrgUnit, emissions.OrgUnitFacility
	default:
		return DimOrgUnit, ""
	}
}
