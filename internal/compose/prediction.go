package compose

import (
	"fmt"

	"github.com/carbonledger/analyst/internal/aggregate"
	"github.com/carbonledger/analyst/internal/forecast"
	"github.com/carbonledger/analyst/internal/query"
)

// Predict projects every series of res forward by periods buckets. History is
// limited to complete buckets and then trimmed to the buckets between the
// first and last that held records, so neither a running bucket nor empty
// edges drag the trend toward zero.
func Predict(res aggregate.Result, periods int) *Prediction {
	if periods < 1 {
		periods = query.DefaultPredictionPeriods
	}

	p := &Prediction{Bucket: res.Bucket}
	if len(res.Series) == 0 {
		p.Insufficient = true
		p.Methodology = "No history was recorded, so there is no trend to extrapolate."
		return p
	}

	var confidence float64
	for _, s := range res.Series {
		if len(s.Points) == 0 {
			continue
		}
		history := complete(s.Points)
		counts := make([]int, len(history))
		for i, pt := range history {
			counts[i] = pt.Count
		}
		from, to := forecast.Observed(counts)
		history = history[from:to]

		values := make([]float64, len(history))
		for i, pt := range history {
			values[i] = pt.Value
		}
		f := forecast.Linear(values, periods)
		if f.Err != nil {
			p.Insufficient = true
		}

		base := s.Points[len(s.Points)-1].Start
		if len(history) > 0 {
			base = history[len(history)-1].Start
		}
		projected := make([]aggregate.Point, len(f.Projected))
		for i, v := range f.Projected {
			start := query.AddFrames(res.Bucket, base, i+1)
			projected[i] = aggregate.Point{
				Start: start,
				Label: query.Period{Frame: res.Bucket, Anchor: start, Span: 1}.Label(),
				Value: v,
			}
		}

		p.Data = append(p.Data, PredictionSeries{
			Label:       s.Label,
			Keys:        s.Keys,
			History:     history,
			Projected:   projected,
			Confidence:  f.Confidence,
			Methodology: f.Methodology,
		})
		confidence += f.Confidence
	}

	switch len(p.Data) {
	case 0:
		p.Insufficient = true
		p.Methodology = "No history was recorded, so there is no trend to extrapolate."
	case 1:
		p.Confidence = p.Data[0].Confidence
		p.Methodology = p.Data[0].Methodology
	default:
		p.Confidence = confidence / float64(len(p.Data))
		p.Methodology = fmt.Sprintf("Least-squares linear trend fitted separately to each of %d groups over at most the last %d observed buckets; confidence is the mean across groups.", len(p.Data), forecast.MaxHistory)
	}
	return p
}

// complete returns the run of points that are not partial. When every point
// is partial they are all kept, since they are the only history there is.
func complete(points []aggregate.Point) []aggregate.Point {
	from, to := -1, -1
	for i, pt := range points {
		if pt.Partial {
			continue
		}
		if from < 0 {
			from = i
		}
		to = i + 1
	}
	if from < 0 {
		return points
	}
	return points[from:to]
}
