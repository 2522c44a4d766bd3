package compose

import (
	"github.com/carbonledger/analyst/internal/aggregate"
	"github.com/carbonledger/analyst/internal/emissions"
	"github.com/carbonledger/analyst/internal/query"
)

// Compose turns an aggregation result into the answer for q. It is a pure
// function of its inputs: the same query, result and catalog always produce
// the same QueryResult.
func Compose(q query.EmissionQuery, res aggregate.Result, catalog emissions.Catalog) QueryResult {
	names := labeler{catalog: catalog, dims: q.GroupBy}

	out := QueryResult{
		Query: q,
		Shape: ShapeFor(q.Intent),
		Data:  &res,
	}

	var pred *Prediction
	switch out.Shape {
	case ShapePrediction:
		pred = Predict(res, q.PredictionPeriods)
		out.Prediction = pred
	case ShapeSingleValue:
		out.SingleValue = &SingleValue{
			Value:  res.Total,
			Unit:   unitFor(q.Aggregation),
			Label:  q.Period().Label(),
			Change: res.Change,
		}
	}

	out.ChartData = buildChart(q, res, pred, names)
	out.Summary = narrate(q, res, pred, names)
	return out
}
