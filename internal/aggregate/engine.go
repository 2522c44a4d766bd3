package aggregate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/carbonledger/analyst/internal/emissions"
	"github.com/carbonledger/analyst/internal/query"
)

// ErrStorageUnavailable wraps every record fetch failure.
var ErrStorageUnavailable = errors.New("emission storage unavailable")

// unspecified labels records with no value for a grouped dimension.
const unspecified = "unspecified"

// RecordSource fetches emission records for an organization.
type RecordSource interface {
	FetchEmissions(ctx context.Context, organizationID string, interval emissions.Interval, filters emissions.Filters) ([]emissions.Record, error)
}

type Engine struct {
	source RecordSource
	logger *slog.Logger
}

func New(source RecordSource, logger *slog.Logger) *Engine {
	return &Engine{source: source, logger: logger}
}

// Run fetches the query's records, plus the baseline period's when comparing,
// and aggregates them. Fetch failures are never retried.
func (e *Engine) Run(ctx context.Context, organizationID string, q query.EmissionQuery, opts Options) (Result, error) {
	filters := q.Filters()
	var current, baseline []emissions.Record

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		recs, err := e.source.FetchEmissions(gctx, organizationID, q.Period().Interval(), filters)
		if err != nil {
			return fmt.Errorf("fetch %s: %w: %w", q.Period().Label(), ErrStorageUnavailable, err)
		}
		current = recs
		return nil
	})
	if q.Comparison {
		g.Go(func() error {
			recs, err := e.source.FetchEmissions(gctx, organizationID, q.Baseline().Interval(), filters)
			if err != nil {
				return fmt.Errorf("fetch baseline %s: %w: %w", q.Baseline().Label(), ErrStorageUnavailable, err)
			}
			baseline = recs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	e.logger.Debug("records fetched",
		"organization_id", organizationID,
		"period", q.Period().Label(),
		"current", len(current),
		"baseline", len(baseline),
	)

	return Compute(q, organizationID, current, baseline, opts), nil
}

// Compute aggregates already-fetched records. Records outside the query's
// organization, interval or entity filters are ignored.
func Compute(q query.EmissionQuery, organizationID string, current, baseline []emissions.Record, opts Options) Result {
	interval := q.Period().Interval()
	recs := filter(current, organizationID, interval, q.Filters())

	res := Result{
		Interval:    interval,
		Total:       reduce(recs, q.Aggregation),
		RecordCount: len(recs),
		Groups:      groupRecords(recs, q.GroupBy, q.Aggregation, opts.Catalog),
	}

	if q.Intent == query.IntentRanking && q.Limit > 0 && len(res.Groups) > q.Limit {
		res.Groups = res.Groups[:q.Limit]
	}

	if q.Intent == query.IntentTimeSeries || q.Intent == query.IntentPrediction {
		res.Bucket = BucketFrame(q)
		res.Series = buildSeries(recs, res.Groups, q, interval, res.Bucket, opts.AsOf)
	}

	if q.Comparison {
		base := q.Baseline()
		prior := filter(baseline, organizationID, base.Interval(), q.Filters())
		res.PriorTotal = reduce(prior, q.Aggregation)
		res.Change = change(res.Total, res.PriorTotal, base.Label())
	}
	return res
}

func filter(records []emissions.Record, organizationID string, interval emissions.Interval, f emissions.Filters) []emissions.Record {
	out := make([]emissions.Record, 0, len(records))
	for _, r := range records {
		if organizationID != "" && r.OrganizationID != organizationID {
			continue
		}
		if !interval.Contains(r.OccurredAt) || !f.Match(r) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// reduce applies agg to records. Missing amounts add nothing to a sum and are
// left out of the average denominator and of min/max; count counts every
// record. No records reduce to 0.
func reduce(records []emissions.Record, agg query.Aggregation) float64 {
	if agg == query.AggCount {
		return float64(len(records))
	}

	var sum, lo, hi float64
	n := 0
	for _, r := range records {
		if r.Amount == nil {
			continue
		}
		v := *r.Amount
		if n == 0 || v < lo {
			lo = v
		}
		if n == 0 || v > hi {
			hi = v
		}
		sum += v
		n++
	}

	switch agg {
	case query.AggAverage:
		if n == 0 {
			return 0
		}
		return sum / float64(n)
	case query.AggMin:
		return lo
	case query.AggMax:
		return hi
	default:
		return sum
	}
}

// groupRecords partitions records by their dimension ids and labels each
// group with the catalog names of those ids.
func groupRecords(records []emissions.Record, dims []query.Dimension, agg query.Aggregation, catalog emissions.Catalog) []Group {
	if len(dims) == 0 {
		return []Group{{Label: "Total", Value: reduce(records, agg), Count: len(records)}}
	}

	buckets := make(map[string][]emissions.Record)
	keys := make(map[string][]string)
	for _, r := range records {
		k := groupKeys(r, dims)
		id := groupID(k)
		buckets[id] = append(buckets[id], r)
		keys[id] = k
	}

	groups := make([]Group, 0, len(buckets))
	for id, recs := range buckets {
		groups = append(groups, Group{Keys: keys[id], Label: groupLabel(keys[id], dims, catalog), Value: reduce(recs, agg), Count: len(recs)})
	}
	sortGroups(groups)
	return groups
}

func groupID(keys []string) string {
	return strings.Join(keys, " / ")
}

func groupLabel(keys []string, dims []query.Dimension, catalog emissions.Catalog) string {
	names := make([]string, len(keys))
	for i, k := range keys {
		if k == unspecified {
			names[i] = k
			continue
		}
		names[i] = dims[i].NameIn(catalog, k)
	}
	return strings.Join(names, " / ")
}

// sortGroups orders by value descending, then label ascending. Groups whose
// ids differ but whose names coincide fall back to id order.
func sortGroups(groups []Group) {
	sort.Slice(groups, func(i, j int) bool {
		if groups[i].Value != groups[j].Value {
			return groups[i].Value > groups[j].Value
		}
		if groups[i].Label != groups[j].Label {
			return groups[i].Label < groups[j].Label
		}
		return groupID(groups[i].Keys) < groupID(groups[j].Keys)
	})
}

func groupKeys(r emissions.Record, dims []query.Dimension) []string {
	out := make([]string, len(dims))
	for i, d := range dims {
		var v string
		switch d {
		case query.DimMaterial:
			v = r.MaterialType
		case query.DimCategory:
			v = r.Category
		case query.DimOrgUnit:
			v = r.OrgUnitID
		}
		if v == "" {
			v = unspecified
		}
		out[i] = v
	}
	return out
}

func change(current, prior float64, comparedTo string) *Change {
	c := &Change{Value: current - prior, ComparedTo: comparedTo}
	switch {
	case prior == 0 && current == 0:
		zero := 0.0
		c.Percentage = &zero
	case prior != 0:
		pct := (current - prior) / prior * 100
		c.Percentage = &pct
	}
	switch {
	case c.Value > 0:
		c.Direction = DirectionIncrease
	case c.Value < 0:
		c.Direction = DirectionDecrease
	default:
		c.Direction = DirectionNoChange
	}
	return c
}

// BucketFrame picks the sub-period used for time series: an explicit bucket
// wins, otherwise months unless the period is too short for more than one.
func BucketFrame(q query.EmissionQuery) query.TimeFrame {
	if q.Bucket != "" {
		return q.Bucket
	}
	p := q.Period()
	switch p.Frame {
	case query.FrameDay, query.FrameWeek:
		return query.FrameDay
	case query.FrameMonth:
		if p.Span <= 1 {
			return query.FrameWeek
		}
		return query.FrameMonth
	case query.FrameYear, query.FrameFinancialYear:
		if p.Span > 2 {
			return query.FrameQuarter
		}
		return query.FrameMonth
	default:
		return query.FrameMonth
	}
}

func buildSeries(records []emissions.Record, groups []Group, q query.EmissionQuery, interval emissions.Interval, bucket query.TimeFrame, asOf time.Time) []Series {
	starts := bucketStarts(interval, bucket)

	series := make([]Series, 0, len(groups))
	for _, g := range groups {
		var members []emissions.Record
		if len(q.GroupBy) == 0 {
			members = records
		} else {
			id := groupID(g.Keys)
			for _, r := range records {
				if groupID(groupKeys(r, q.GroupBy)) == id {
					members = append(members, r)
				}
			}
		}

		byBucket := make(map[time.Time][]emissions.Record)
		for _, r := range members {
			s := query.StartOf(bucket, r.OccurredAt.UTC(), time.January)
			byBucket[s] = append(byBucket[s], r)
		}

		points := make([]Point, len(starts))
		for i, s := range starts {
			recs := byBucket[s]
			points[i] = Point{
				Start:   s,
				Label:   query.Period{Frame: bucket, Anchor: s, Span: 1}.Label(),
				Value:   reduce(recs, q.Aggregation),
				Count:   len(recs),
				Partial: partial(s, query.AddFrames(bucket, s, 1), interval, asOf),
			}
		}
		series = append(series, Series{Label: g.Label, Keys: g.Keys, Points: points})
	}
	return series
}

// partial reports whether the bucket [start, end) is cut by the interval or
// still running at asOf.
func partial(start, end time.Time, interval emissions.Interval, asOf time.Time) bool {
	if start.Before(interval.Start) || end.After(interval.End) {
		return true
	}
	return !asOf.IsZero() && end.After(asOf)
}

func bucketStarts(interval emissions.Interval, bucket query.TimeFrame) []time.Time {
	var out []time.Time
	for s := query.StartOf(bucket, interval.Start.UTC(), time.January); s.Before(interval.End); s = query.AddFrames(bucket, s, 1) {
		out = append(out, s)
	}
	return out
}
