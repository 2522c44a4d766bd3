package query

import (
	"testing"

	"github.com/carbonledger/analyst/internal/emissions"
)

func TestClassify_Precedence(t *testing.T) {
	tests := []struct {
		name       string
		text       string
		twoPeriods bool
		want       Intent
	}{
		{"prediction beats comparison", "forecast steel compared to last year", false, IntentPrediction},
		{"next N months is a prediction", "what about the next 6 months", false, IntentPrediction},
		{"will be", "what will be our total in Q4", false, IntentPrediction},
		{"comparison beats ranking", "top 5 categories versus last year", false, IntentComparison},
		{"vs with punctuation", "this month vs. last month", false, IntentComparison},
		{"two named periods", "steel in March 2023 and April 2023", true, IntentComparison},
		{"top N is ranking", "top 5 categories", false, IntentRanking},
		{"highest is ranking", "which facility had the highest emissions", false, IntentRanking},
		{"ranking beats breakdown", "biggest emitters by department", false, IntentRanking},
		{"by category is breakdown", "emissions by category this year", false, IntentBreakdown},
		{"breakdown word", "give me a breakdown", false, IntentBreakdown},
		{"breakdown beats time series", "monthly emissions by material", false, IntentBreakdown},
		{"trend is time series", "show the trend over time", false, IntentTimeSeries},
		{"by month is not a dimension", "emissions by month", false, IntentTimeSeries},
		{"no cue", "how much steel", false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.text, tt.twoPeriods)
			if got.Intent != tt.want {
				t.Errorf("Classify(%q).Intent = %q, want %q", tt.text, got.Intent, tt.want)
			}
		})
	}
}

func TestClassify_ShapingCues(t *testing.T) {
	c := Classify("top 5 projects by average as a bar chart", false)
	if c.Limit != 5 {
		t.Errorf("expected limit 5, got %d", c.Limit)
	}
	if c.Aggregation != AggAverage {
		t.Errorf("expected average aggregation, got %q", c.Aggregation)
	}
	if c.ChartType != ChartBar {
		t.Errorf("expected bar chart, got %q", c.ChartType)
	}
	if len(c.GroupBy) != 1 || c.GroupBy[0] != DimOrgUnit {
		t.Errorf("expected group by organizational unit, got %v", c.GroupBy)
	}
	if c.OrgLevel != emissions.OrgUnitProject {
		t.Errorf("expected project level, got %q", c.OrgLevel)
	}

	c = Classify("emissions by category and material", false)
	if len(c.GroupBy) != 2 || c.GroupBy[0] != DimCategory || c.GroupBy[1] != DimMaterial {
		t.Errorf("expected [category material], got %v", c.GroupBy)
	}

	c = Classify("forecast the next 2 quarters", false)
	if c.Horizon != 2 || c.HorizonFrame != FrameQuarter {
		t.Errorf("expected 2 quarter horizon, got %d %q", c.Horizon, c.HorizonFrame)
	}

	c = Classify("how many records were logged weekly", false)
	if c.Aggregation != AggCount {
		t.Errorf("expected count aggregation, got %q", c.Aggregation)
	}
	if c.Bucket != FrameWeek {
		t.Errorf("expected weekly bucket, got %q", c.Bucket)
	}
}

func TestResolveIntent_Continuity(t *testing.T) {
	prior := &EmissionQuery{Intent: IntentBreakdown}

	if got := ResolveIntent(Cues{}, prior); got != IntentBreakdown {
		t.Errorf("expected carried breakdown, got %q", got)
	}
	if got := ResolveIntent(Classify("and the top 3?", false), prior); got != IntentRanking {
		t.Errorf("expected top N to force ranking, got %q", got)
	}
	if got := ResolveIntent(Cues{}, nil); got != IntentSingleValue {
		t.Errorf("expected single value fallback, got %q", got)
	}
}
