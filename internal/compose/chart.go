package compose

import (
	"github.com/carbonledger/analyst/internal/aggregate"
	"github.com/carbonledger/analyst/internal/query"
)

// maxPieSlices is the most groups a pie chart shows before falling back to bars.
const maxPieSlices = 6

// ChartFor picks the visualisation for q. An explicit chart type on the query
// always wins.
func ChartFor(q query.EmissionQuery, groups int) query.ChartType {
	if q.ChartType != "" {
		return q.ChartType
	}
	switch q.Intent {
	case query.IntentTimeSeries, query.IntentPrediction:
		return query.ChartLine
	case query.IntentComparison, query.IntentRanking:
		return query.ChartBar
	case query.IntentBreakdown:
		if groups > maxPieSlices {
			return query.ChartBar
		}
		return query.ChartPie
	default:
		return query.ChartNone
	}
}

func buildChart(q query.EmissionQuery, res aggregate.Result, pred *Prediction, names labeler) *ChartData {
	kind := ChartFor(q, len(res.Groups))
	if kind == query.ChartNone {
		return nil
	}
	cd := &ChartData{Type: kind}

	switch q.Intent {
	case query.IntentComparison:
		cd.Series = []ChartSeries{{
			Name: "emissions",
			Points: []ChartPoint{
				{Label: q.Baseline().Label(), Value: res.PriorTotal},
				{Label: q.Period().Label(), Value: res.Total},
			},
		}}
	case query.IntentBreakdown, query.IntentRanking:
		pts := make([]ChartPoint, len(res.Groups))
		for i, g := range res.Groups {
			pts[i] = ChartPoint{Label: names.group(g.Keys, g.Label), Value: g.Value}
		}
		cd.Series = []ChartSeries{{Name: "emissions", Points: pts}}
	case query.IntentTimeSeries:
		for _, s := range res.Series {
			cd.Series = append(cd.Series, ChartSeries{Name: names.group(s.Keys, s.Label), Points: chartPoints(s.Points)})
		}
	case query.IntentPrediction:
		if pred == nil {
			break
		}
		for _, ps := range pred.Data {
			observed, projected := "observed", "prediction"
			if len(pred.Data) > 1 {
				name := names.group(ps.Keys, ps.Label)
				observed, projected = name, name+" prediction"
			}
			cd.Series = append(cd.Series,
				ChartSeries{Name: observed, Points: chartPoints(ps.History)},
				ChartSeries{Name: projected, Points: chartPoints(ps.Projected)},
			)
		}
	default:
		cd.Series = []ChartSeries{{
			Name:   "emissions",
			Points: []ChartPoint{{Label: q.Period().Label(), Value: res.Total}},
		}}
	}
	return cd
}

func chartPoints(points []aggregate.Point) []ChartPoint {
	out := make([]ChartPoint, len(points))
	for i, p := range points {
		out[i] = ChartPoint{Label: p.Label, Value: p.Value}
	}
	return out
}
