package compose

import (
	"github.com/carbonledger/analyst/internal/aggregate"
	"github.com/carbonledger/analyst/internal/query"
)

// Shape says which result payload is populated.
type Shape string

const (
	ShapeSeries      Shape = "series"
	ShapeSingleValue Shape = "single_value"
	ShapePrediction  Shape = "prediction"
	ShapeError       Shape = "error"
)

// ShapeFor maps an intent to its result shape.
func ShapeFor(intent query.Intent) Shape {
	switch intent {
	case query.IntentTimeSeries, query.IntentBreakdown, query.IntentRanking:
		return ShapeSeries
	case query.IntentPrediction:
		return ShapePrediction
	default:
		return ShapeSingleValue
	}
}

type SingleValue struct {
	Value  float64           `json:"value"`
	Unit   string            `json:"unit"`
	Label  string            `json:"label"`
	Change *aggregate.Change `json:"change,omitempty"`
}

type ChartPoint struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
}

type ChartSeries struct {
	Name   string       `json:"name"`
	Points []ChartPoint `json:"points"`
}

type ChartData struct {
	Type   query.ChartType `json:"type"`
	Series []ChartSeries   `json:"series"`
}

// PredictionSeries is the observed history and projection of one group.
type PredictionSeries struct {
	Label       string            `json:"label"`
	Keys        []string          `json:"keys,omitempty"`
	History     []aggregate.Point `json:"history"`
	Projected   []aggregate.Point `json:"projected"`
	Confidence  float64           `json:"confidence"`
	Methodology string            `json:"methodology"`
}

type Prediction struct {
	Data        []PredictionSeries `json:"data"`
	Bucket      query.TimeFrame    `json:"bucket"`
	Methodology string             `json:"methodology"`
	Confidence  float64            `json:"confidence"`
	// Insufficient is set when any series had fewer than two observed buckets.
	Insufficient bool `json:"insufficient_history"`
}

// ErrorKind classifies a failed turn.
type ErrorKind string

const (
	ErrorStorageUnavailable ErrorKind = "storage_unavailable"
	ErrorSessionUnavailable ErrorKind = "session_unavailable"
	ErrorCanceled           ErrorKind = "canceled"
)

type ResultError struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

// QueryResult is the answer to one turn. Shape tags the populated payload:
// SingleValue is set only for ShapeSingleValue and Prediction only for
// ShapePrediction. ChartData is presentation and may accompany any shape.
type QueryResult struct {
	Query       query.EmissionQuery `json:"query"`
	Shape       Shape               `json:"shape"`
	Data        *aggregate.Result   `json:"data,omitempty"`
	Summary     string              `json:"summary"`
	ChartData   *ChartData          `json:"chart_data,omitempty"`
	SingleValue *SingleValue        `json:"single_value,omitempty"`
	Prediction  *Prediction         `json:"prediction,omitempty"`
	Error       *ResultError        `json:"error,omitempty"`
}
