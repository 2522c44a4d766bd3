package query

import (
	"testing"
	"time"
)

var testRef = time.Date(2023, time.June, 15, 12, 0, 0, 0, time.UTC)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestResolvePeriods_Single(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		fiscal time.Month
		want   Period
	}{
		{"explicit quarter", "emissions in Q2 2023", time.January, Period{FrameQuarter, date(2023, 4, 1), 1}},
		{"year first quarter", "what about 2023 Q1?", time.January, Period{FrameQuarter, date(2023, 1, 1), 1}},
		{"last month", "how much last month", time.January, Period{FrameMonth, date(2023, 5, 1), 1}},
		{"this year", "totals this year", time.January, Period{FrameYear, date(2023, 1, 1), 1}},
		{"past 6 months", "over the past 6 months", time.January, Period{FrameMonth, date(2023, 1, 1), 6}},
		{"last 2 quarters", "last 2 quarters", time.January, Period{FrameQuarter, date(2023, 1, 1), 2}},
		{"today", "emissions today", time.January, Period{FrameDay, date(2023, 6, 15), 1}},
		{"yesterday", "and yesterday?", time.January, Period{FrameDay, date(2023, 6, 14), 1}},
		{"ytd", "steel YTD", time.January, Period{FrameMonth, date(2023, 1, 1), 6}},
		{"year to date", "year-to-date totals", time.January, Period{FrameMonth, date(2023, 1, 1), 6}},
		{"month and year", "February 2023", time.January, Period{FrameMonth, date(2023, 2, 1), 1}},
		{"abbreviated month", "in feb", time.January, Period{FrameMonth, date(2023, 2, 1), 1}},
		{"month after reference is last year", "in August", time.January, Period{FrameMonth, date(2022, 8, 1), 1}},
		{"bare year", "emissions for 2021", time.January, Period{FrameYear, date(2021, 1, 1), 1}},
		{"fiscal year ending", "FY2024", time.April, Period{FrameFinancialYear, date(2023, 4, 1), 1}},
		{"fiscal year calendar", "fy 2022", time.January, Period{FrameFinancialYear, date(2022, 1, 1), 1}},
		{"this financial year", "this financial year", time.April, Period{FrameFinancialYear, date(2023, 4, 1), 1}},
		{"last fiscal year", "last fiscal year", time.July, Period{FrameFinancialYear, date(2021, 7, 1), 1}},
		{"week starts monday", "this week", time.January, Period{FrameWeek, date(2023, 6, 12), 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ResolvePeriods(tt.text, TemporalContext{Reference: testRef, FiscalStart: tt.fiscal})
			if len(got) != 1 {
				t.Fatalf("ResolvePeriods(%q) returned %d periods, want 1: %+v", tt.text, len(got), got)
			}
			if got[0].Frame != tt.want.Frame || !got[0].Anchor.Equal(tt.want.Anchor) || got[0].Span != tt.want.Span {
				t.Errorf("ResolvePeriods(%q) = %+v, want %+v", tt.text, got[0], tt.want)
			}
		})
	}
}

func TestResolvePeriods_Unrecognised(t *testing.T) {
	for _, text := range []string{
		"what are our emissions",
		"may I see the totals",
		"forecast the next 3 months",
		"top 10 categories",
		"",
	} {
		if got := ResolvePeriods(text, TemporalContext{Reference: testRef}); len(got) != 0 {
			t.Errorf("ResolvePeriods(%q) = %+v, want none", text, got)
		}
	}
}

func TestResolvePeriods_TwoPeriodsShareExplicitYear(t *testing.T) {
	got := ResolvePeriods("how much steel emissions did we have in February 2023 compared to January", TemporalContext{Reference: testRef})
	if len(got) != 2 {
		t.Fatalf("expected 2 periods, got %d: %+v", len(got), got)
	}
	if !got[0].Anchor.Equal(date(2023, 2, 1)) {
		t.Errorf("expected first period February 2023, got %s", got[0].Label())
	}
	if !got[1].Anchor.Equal(date(2023, 1, 1)) {
		t.Errorf("expected second period January 2023, got %s", got[1].Label())
	}
}

func TestPeriodLabel(t *testing.T) {
	tests := []struct {
		p    Period
		want string
	}{
		{Period{FrameMonth, date(2023, 2, 1), 1}, "February 2023"},
		{Period{FrameMonth, date(2022, 7, 1), 12}, "July 2022 to June 2023"},
		{Period{FrameQuarter, date(2023, 4, 1), 1}, "Q2 2023"},
		{Period{FrameYear, date(2021, 1, 1), 1}, "2021"},
		{Period{FrameFinancialYear, date(2023, 4, 1), 1}, "FY2024"},
		{Period{FrameFinancialYear, date(2023, 1, 1), 1}, "FY2023"},
		{Period{FrameDay, date(2023, 6, 15), 1}, "15 Jun 2023"},
		{Period{FrameWeek, date(2023, 6, 12), 2}, "12 Jun 2023 to 25 Jun 2023"},
	}
	for _, tt := range tests {
		if got := tt.p.Label(); got != tt.want {
			t.Errorf("Label(%+v) = %q, want %q", tt.p, got, tt.want)
		}
	}
}

func TestPeriodPreviousAndInterval(t *testing.T) {
	p := Period{FrameMonth, date(2023, 2, 1), 1}
	prev := p.Previous()
	if !prev.Anchor.Equal(date(2023, 1, 1)) || prev.Span != 1 {
		t.Errorf("Previous() = %+v, want January 2023", prev)
	}

	iv := Period{FrameQuarter, date(2023, 1, 1), 2}.Interval()
	if !iv.Start.Equal(date(2023, 1, 1)) || !iv.End.Equal(date(2023, 7, 1)) {
		t.Errorf("Interval() = %v..%v, want 2023-01-01..2023-07-01", iv.Start, iv.End)
	}
	if !iv.Contains(date(2023, 6, 30)) || iv.Contains(date(2023, 7, 1)) {
		t.Error("expected interval to be half-open")
	}
}

func TestDefaultPeriod(t *testing.T) {
	p := DefaultPeriod(testRef)
	if p.Frame != FrameMonth || p.Span != 12 || !p.Anchor.Equal(date(2022, 7, 1)) {
		t.Errorf("DefaultPeriod = %+v, want 12 months from July 2022", p)
	}
	if !p.Interval().End.Equal(date(2023, 7, 1)) {
		t.Errorf("expected default period to end after the reference month, got %v", p.Interval().End)
	}
}
