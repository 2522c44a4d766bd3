package forecast

import (
	"errors"
	"fmt"
	"math"
)

// ErrInsufficientHistory is reported when fewer than two buckets are available.
// The forecast degrades to a flat projection.
var ErrInsufficientHistory = errors.New("insufficient history for trend extrapolation")

// MaxHistory caps how many trailing buckets feed the trend.
const MaxHistory = 12

// Forecast is a bounded-horizon linear projection.
type Forecast struct {
	Projected   []float64 `json:"projected"`
	Slope       float64   `json:"slope"`
	Intercept   float64   `json:"intercept"`
	Confidence  float64   `json:"confidence"`
	HistoryUsed int       `json:"history_used"`
	Methodology string    `json:"methodology"`
	Err         error     `json:"-"`
}

// Linear extrapolates the last min(len(history), MaxHistory) buckets by least
// squares over bucket index and projects periods buckets forward. Projections
// never go below zero.
func Linear(history []float64, periods int) Forecast {
	if periods < 1 {
		periods = 1
	}
	if len(history) > MaxHistory {
		history = history[len(history)-MaxHistory:]
	}
	n := len(history)

	if n < 2 {
		last := 0.0
		if n == 1 {
			last = history[0]
		}
		projected := make([]float64, periods)
		for i := range projected {
			projected[i] = last
		}
		return Forecast{
			Projected:   projected,
			Intercept:   last,
			Confidence:  0,
			HistoryUsed: n,
			Methodology: fmt.Sprintf("Insufficient history: %d bucket(s) observed, at least 2 are needed for a trend, so the last observed value is held flat.", n),
			Err:         ErrInsufficientHistory,
		}
	}

	slope, intercept := Fit(history)
	projected := make([]float64, periods)
	for i := range projected {
		projected[i] = math.Max(0, slope*float64(n+i)+intercept)
	}

	return Forecast{
		Projected:   projected,
		Slope:       slope,
		Intercept:   intercept,
		Confidence:  Confidence(history, slope, intercept),
		HistoryUsed: n,
		Methodology: fmt.Sprintf("Least-squares linear trend over the last %d buckets (slope %.2f per bucket).", n, slope),
	}
}

// Fit returns the least-squares line through (i, y[i]).
func Fit(y []float64) (slope, intercept float64) {
	n := float64(len(y))
	if n == 0 {
		return 0, 0
	}
	var sumX, sumY, sumXY, sumX2 float64
	for i, v := range y {
		x := float64(i)
		sumX += x
		sumY += v
		sumXY += x * v
		sumX2 += x * x
	}
	den := n*sumX2 - sumX*sumX
	if den == 0 {
		return 0, sumY / n
	}
	slope = (n*sumXY - sumX*sumY) / den
	intercept = (sumY - slope*sumX) / n
	return slope, intercept
}

// Confidence is a heuristic in [0,1]: it falls as the residual spread grows
// relative to the mean and rises with the number of buckets used.
func Confidence(y []float64, slope, intercept float64) float64 {
	n := len(y)
	if n < 2 {
		return 0
	}

	var sum, ssRes float64
	for i, v := range y {
		sum += v
		r := v - (slope*float64(i) + intercept)
		ssRes += r * r
	}
	mean := sum / float64(n)
	spread := math.Sqrt(ssRes / float64(n))

	var fitScore float64
	switch {
	case spread == 0:
		fitScore = 1
	case mean <= 0:
		fitScore = 0
	default:
		fitScore = 1 / (1 + spread/mean)
	}

	historyScore := math.Min(float64(n), MaxHistory) / MaxHistory
	return clamp(fitScore * historyScore)
}

// Observed returns the index range [from, to) from the first through the last
// bucket that held any record. from == to when none did.
func Observed(counts []int) (from, to int) {
	from, to = -1, -1
	for i, c := range counts {
		if c == 0 {
			continue
		}
		if from < 0 {
			from = i
		}
		to = i + 1
	}
	if from < 0 {
		return 0, 0
	}
	return from, to
}

func clamp(score float64) float64 {
	if score < 0.0 {
		return 0.0
	}
	if score > 1.0 {
		return 1.0
	}
	return score
}
