package aggregate

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/carbonledger/analyst/internal/emissions"
	"github.com/carbonledger/analyst/internal/query"
)

const org = "org-1"

func amount(v float64) *float64 { return &v }

func rec(category string, v *float64, y int, m time.Month, d int) emissions.Record {
	return emissions.Record{
		OrganizationID: org,
		Amount:         v,
		Category:       category,
		OccurredAt:     time.Date(y, m, d, 9, 0, 0, 0, time.UTC),
	}
}

func monthQuery(intent query.Intent, y int, m time.Month) query.EmissionQuery {
	return query.EmissionQuery{
		TimeFrame:          query.FrameMonth,
		TimeValue:          time.Date(y, m, 1, 0, 0, 0, 0, time.UTC),
		TimeSpan:           1,
		OrganizationalUnit: emissions.OrgUnitCompany,
		Intent:             intent,
		Aggregation:        query.AggSum,
	}
}

func yearQuery(intent query.Intent, y int) query.EmissionQuery {
	q := monthQuery(intent, y, time.January)
	q.TimeFrame = query.FrameYear
	return q
}

func TestCompute_EmptySumIsZero(t *testing.T) {
	res := Compute(monthQuery(query.IntentSingleValue, 2023, time.March), org, nil, nil, Options{})
	if res.Total != 0 {
		t.Errorf("expected 0 total, got %f", res.Total)
	}
	if !res.Empty() {
		t.Error("expected empty result")
	}
	if len(res.Groups) != 1 || res.Groups[0].Value != 0 {
		t.Errorf("expected one zero-valued implicit group, got %+v", res.Groups)
	}
}

func TestCompute_ComparisonScenario(t *testing.T) {
	records := []emissions.Record{
		rec("steel", amount(100), 2023, time.January, 10),
		rec("steel", amount(150), 2023, time.February, 10),
	}
	q := monthQuery(query.IntentComparison, 2023, time.February)
	q.Category = "steel"
	q.Comparison = true

	res := Compute(q, org, records, records, Options{})

	if res.Total != 150 {
		t.Errorf("expected current 150, got %f", res.Total)
	}
	if res.PriorTotal != 100 {
		t.Errorf("expected prior 100, got %f", res.PriorTotal)
	}
	if res.Change == nil {
		t.Fatal("expected change")
	}
	if res.Change.Value != 50 || res.Change.Percentage == nil || *res.Change.Percentage != 50 {
		t.Errorf("expected +50 / 50%%, got %+v", res.Change)
	}
	if res.Change.Direction != DirectionIncrease {
		t.Errorf("expected increase, got %q", res.Change.Direction)
	}
	if res.Change.ComparedTo != "January 2023" {
		t.Errorf("expected compared to January 2023, got %q", res.Change.ComparedTo)
	}
}

func TestChange_Percentage(t *testing.T) {
	tests := []struct {
		name    string
		current float64
		prior   float64
		wantNil bool
		wantPct float64
		wantDir Direction
	}{
		{"both zero", 0, 0, false, 0, DirectionNoChange},
		{"prior zero current nonzero", 10, 0, true, 0, DirectionIncrease},
		{"decrease", 50, 100, false, -50, DirectionDecrease},
		{"flat", 80, 80, false, 0, DirectionNoChange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := change(tt.current, tt.prior, "x")
			if tt.wantNil {
				if c.Percentage != nil {
					t.Errorf("expected nil percentage, got %f", *c.Percentage)
				}
			} else if c.Percentage == nil || *c.Percentage != tt.wantPct {
				t.Errorf("expected percentage %f, got %v", tt.wantPct, c.Percentage)
			}
			if c.Direction != tt.wantDir {
				t.Errorf("expected direction %q, got %q", tt.wantDir, c.Direction)
			}
		})
	}
}

func TestReduce_MissingAmounts(t *testing.T) {
	records := []emissions.Record{
		rec("a", amount(10), 2023, time.March, 1),
		rec("a", nil, 2023, time.March, 2),
		rec("a", amount(20), 2023, time.March, 3),
	}
	tests := []struct {
		agg  query.Aggregation
		want float64
	}{
		{query.AggSum, 30},
		{query.AggAverage, 15},
		{query.AggMin, 10},
		{query.AggMax, 20},
		{query.AggCount, 3},
	}
	for _, tt := range tests {
		if got := reduce(records, tt.agg); got != tt.want {
			t.Errorf("reduce(%s) = %f, want %f", tt.agg, got, tt.want)
		}
	}

	if got := reduce([]emissions.Record{rec("a", nil, 2023, time.March, 1)}, query.AggAverage); got != 0 {
		t.Errorf("expected average of only missing amounts to be 0, got %f", got)
	}
}

func TestCompute_RankingLimitAndTies(t *testing.T) {
	records := []emissions.Record{
		rec("travel", amount(40), 2023, time.May, 1),
		rec("energy", amount(90), 2023, time.May, 2),
		rec("fleet", amount(40), 2023, time.May, 3),
		rec("waste", amount(5), 2023, time.May, 4),
		rec("energy", amount(10), 2023, time.May, 5),
	}
	q := yearQuery(query.IntentRanking, 2023)
	q.GroupBy = []query.Dimension{query.DimCategory}
	q.Limit = 3

	res := Compute(q, org, records, nil, Options{})

	want := []string{"energy", "fleet", "travel"}
	if len(res.Groups) != len(want) {
		t.Fatalf("expected %d groups, got %d", len(want), len(res.Groups))
	}
	for i, g := range res.Groups {
		if g.Label != want[i] {
			t.Errorf("group %d = %q, want %q", i, g.Label, want[i])
		}
	}
	if res.Groups[0].Value != 100 {
		t.Errorf("expected energy 100, got %f", res.Groups[0].Value)
	}
	for i := 1; i < len(res.Groups); i++ {
		if res.Groups[i].Value > res.Groups[i-1].Value {
			t.Errorf("groups not descending at %d", i)
		}
	}
}

func TestCompute_RankingTiesOrderedByName(t *testing.T) {
	records := []emissions.Record{
		rec("c1", amount(100), 2023, time.May, 1),
		rec("c2", amount(100), 2023, time.May, 2),
	}
	q := yearQuery(query.IntentRanking, 2023)
	q.GroupBy = []query.Dimension{query.DimCategory}
	q.Limit = 1
	opts := Options{Catalog: emissions.Catalog{Categories: []emissions.CatalogEntry{
		{ID: "c1", Name: "Zinc smelting"},
		{ID: "c2", Name: "Aluminium"},
	}}}

	res := Compute(q, org, records, nil, opts)

	if len(res.Groups) != 1 {
		t.Fatalf("expected 1 group, got %d", len(res.Groups))
	}
	if res.Groups[0].Label != "Aluminium" || res.Groups[0].Keys[0] != "c2" {
		t.Errorf("expected Aluminium (c2) to win the tie, got %q (%v)", res.Groups[0].Label, res.Groups[0].Keys)
	}
}

func TestCompute_PartialBuckets(t *testing.T) {
	q := monthQuery(query.IntentPrediction, 2025, time.November)
	q.TimeSpan = 12
	asOf := time.Date(2026, time.October, 17, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		bucket query.TimeFrame
		asOf   time.Time
		want   []bool
	}{
		{"running month", query.FrameMonth, asOf, []bool{false, false, false, false, false, false, false, false, false, false, false, true}},
		{"months without reference", query.FrameMonth, time.Time{}, []bool{false, false, false, false, false, false, false, false, false, false, false, false}},
		{"quarters cut at both ends", query.FrameQuarter, asOf, []bool{true, false, false, false, true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := q
			q.Bucket = tt.bucket
			res := Compute(q, org, []emissions.Record{rec("energy", amount(100), 2026, time.March, 1)}, nil, Options{AsOf: tt.asOf})

			if len(res.Series) != 1 {
				t.Fatalf("expected one series, got %d", len(res.Series))
			}
			pts := res.Series[0].Points
			if len(pts) != len(tt.want) {
				t.Fatalf("expected %d buckets, got %d", len(tt.want), len(pts))
			}
			for i, p := range pts {
				if p.Partial != tt.want[i] {
					t.Errorf("bucket %s partial = %v, want %v", p.Label, p.Partial, tt.want[i])
				}
			}
		})
	}
}

func TestCompute_FiltersOtherOrganizationsAndPeriods(t *testing.T) {
	other := rec("steel", amount(500), 2023, time.February, 1)
	other.OrganizationID = "org-2"
	records := []emissions.Record{
		other,
		rec("steel", amount(7), 2023, time.February, 28),
		rec("steel", amount(9), 2023, time.March, 1),
	}

	res := Compute(monthQuery(query.IntentSingleValue, 2023, time.February), org, records, nil, Options{})
	if res.Total != 7 || res.RecordCount != 1 {
		t.Errorf("expected only the in-period record of org-1, got total %f count %d", res.Total, res.RecordCount)
	}
}

func TestCompute_TimeSeriesBuckets(t *testing.T) {
	records := []emissions.Record{
		rec("steel", amount(10), 2023, time.January, 5),
		rec("steel", amount(5), 2023, time.January, 20),
		rec("glass", amount(8), 2023, time.March, 3),
	}
	q := yearQuery(query.IntentTimeSeries, 2023)

	res := Compute(q, org, records, nil, Options{})

	if res.Bucket != query.FrameMonth {
		t.Errorf("expected monthly buckets, got %q", res.Bucket)
	}
	if len(res.Series) != 1 {
		t.Fatalf("expected one series, got %d", len(res.Series))
	}
	pts := res.Series[0].Points
	if len(pts) != 12 {
		t.Fatalf("expected 12 buckets, got %d", len(pts))
	}
	if pts[0].Value != 15 || pts[1].Value != 0 || pts[2].Value != 8 {
		t.Errorf("unexpected bucket values %v %v %v", pts[0].Value, pts[1].Value, pts[2].Value)
	}
	if pts[0].Label != "January 2023" {
		t.Errorf("expected first label January 2023, got %q", pts[0].Label)
	}
	for i := 1; i < len(pts); i++ {
		if !pts[i].Start.After(pts[i-1].Start) {
			t.Errorf("buckets not chronological at %d", i)
		}
	}

	q.GroupBy = []query.Dimension{query.DimCategory}
	res = Compute(q, org, records, nil, Options{})
	if len(res.Series) != 2 || res.Series[0].Label != "steel" || res.Series[1].Label != "glass" {
		t.Errorf("expected steel and glass series, got %+v", res.Series)
	}
}

func TestBucketFrame(t *testing.T) {
	tests := []struct {
		name string
		q    query.EmissionQuery
		want query.TimeFrame
	}{
		{"single month uses weeks", monthQuery(query.IntentTimeSeries, 2023, time.May), query.FrameWeek},
		{"year uses months", yearQuery(query.IntentTimeSeries, 2023), query.FrameMonth},
		{"explicit bucket wins", func() query.EmissionQuery {
			q := yearQuery(query.IntentTimeSeries, 2023)
			q.Bucket = query.FrameQuarter
			return q
		}(), query.FrameQuarter},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := BucketFrame(tt.q); got != tt.want {
				t.Errorf("BucketFrame = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCompute_Idempotent(t *testing.T) {
	records := []emissions.Record{
		rec("steel", amount(10), 2023, time.January, 5),
		rec("glass", amount(8), 2023, time.March, 3),
		rec("fleet", amount(8), 2023, time.April, 3),
	}
	q := yearQuery(query.IntentBreakdown, 2023)
	q.GroupBy = []query.Dimension{query.DimCategory}

	first := Compute(q, org, records, nil, Options{})
	second := Compute(q, org, records, nil, Options{})
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("results differ (-first +second):\n%s", diff)
	}
}

type fakeSource struct {
	mu      sync.Mutex
	records []emissions.Record
	err     error
	calls   int
}

func (f *fakeSource) FetchEmissions(_ context.Context, _ string, _ emissions.Interval, _ emissions.Filters) ([]emissions.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.records, nil
}

func TestEngineRun_ComparisonFetchesBaseline(t *testing.T) {
	src := &fakeSource{records: []emissions.Record{
		rec("steel", amount(100), 2023, time.January, 10),
		rec("steel", amount(150), 2023, time.February, 10),
	}}
	e := New(src, slog.New(slog.NewTextHandler(io.Discard, nil)))

	q := monthQuery(query.IntentComparison, 2023, time.February)
	q.Comparison = true

	res, err := e.Run(context.Background(), org, q, Options{})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if src.calls != 2 {
		t.Errorf("expected 2 fetches, got %d", src.calls)
	}
	if res.Change == nil || res.Change.Value != 50 {
		t.Errorf("expected change of 50, got %+v", res.Change)
	}
}

func TestEngineRun_StorageFailure(t *testing.T) {
	src := &fakeSource{err: errors.New("connection refused")}
	e := New(src, slog.New(slog.NewTextHandler(io.Discard, nil)))

	_, err := e.Run(context.Background(), org, monthQuery(query.IntentSingleValue, 2023, time.February), Options{})
	if !errors.Is(err, ErrStorageUnavailable) {
		t.Errorf("expected ErrStorageUnavailable, got %v", err)
	}
}
