package query

import (
	"regexp"
	"sort"
	"strconv"
	"time"
)

const unitPattern = `(day|week|month|quarter|financial year|fiscal year|year)`

var (
	reHorizon     = regexp.MustCompile(`\b(?:next|coming|upcoming)\s+(?:(\d+)\s+)?` + unitPattern + `s?\b`)
	reFiscalYear  = regexp.MustCompile(`\b(?:fy|financial year|fiscal year)\s*(\d{4}|\d{2})\b`)
	reTrailing    = regexp.MustCompile(`\b(?:last|past|previous|trailing)\s+(\d+)\s+` + unitPattern + `s?\b`)
	reRelative    = regexp.MustCompile(`\b(this|current|last|previous|past)\s+` + unitPattern + `\b`)
	reQuarter     = regexp.MustCompile(`\bq([1-4])(?:\s+(?:of\s+)?(\d{4}))?\b`)
	reYearQuarter = regexp.MustCompile(`\b(\d{4})\s+q([1-4])\b`)
	reMonth       = regexp.MustCompile(`\b(january|february|march|april|may|june|july|august|september|october|november|december|jan|feb|mar|apr|jun|jul|aug|sept|sep|oct|nov|dec)(?:\s+(?:of\s+)?(\d{4}))?\b`)
	reBareNoun    = regexp.MustCompile(`\b(today|yesterday|ytd|year to date|mtd|month to date)\b`)
	reYear        = regexp.MustCompile(`\b((?:19|20)\d{2})\b`)
)

var monthNames = map[string]time.Month{
	"january": time.January, "jan": time.January,
	"february": time.February, "feb": time.February,
	"march": time.March, "mar": time.March,
	"april": time.April, "apr": time.April,
	"may":  time.May,
	"june": time.June, "jun": time.June,
	"july": time.July, "jul": time.July,
	"august": time.August, "aug": time.August,
	"september": time.September, "sept": time.September, "sep": time.September,
	"october": time.October, "oct": time.October,
	"november": time.November, "nov": time.November,
	"december": time.December, "dec": time.December,
}

// TemporalContext carries what the resolver needs besides the utterance.
type TemporalContext struct {
	Reference   time.Time
	FiscalStart time.Month
}

// mention is a recognised time phrase before year inference.
type mention struct {
	start, end int
	kind       string // "period", "month", "quarter"
	period     Period
	month      time.Month
	quarter    int
	year       int // 0 when the phrase named no year
}

type spanSet [][2]int

func (s *spanSet) overlaps(a, b int) bool {
	for _, r := range *s {
		if a < r[1] && r[0] < b {
			return true
		}
	}
	return false
}

func (s *spanSet) add(a, b int) { *s = append(*s, [2]int{a, b}) }

// ResolvePeriods returns every period named in text, in order of appearance.
// Unrecognised phrasing yields no periods.
func ResolvePeriods(text string, tc TemporalContext) []Period {
	t := normalize(text)
	ref := tc.Reference.UTC()
	fs := validMonth(tc.FiscalStart)

	var taken spanSet
	var found []mention

	scan := func(re *regexp.Regexp, fn func(m []string) (mention, bool)) {
		for _, idx := range re.FindAllStringSubmatchIndex(t, -1) {
			if taken.overlaps(idx[0], idx[1]) {
				continue
			}
			groups := make([]string, len(idx)/2)
			for g := range groups {
				if idx[2*g] >= 0 {
					groups[g] = t[idx[2*g]:idx[2*g+1]]
				}
			}
			taken.add(idx[0], idx[1])
			if m, ok := fn(groups); ok {
				m.start, m.end = idx[0], idx[1]
				found = append(found, m)
			}
		}
	}

	// Prediction horizons are consumed so "next 3 months" never reads as a period.
	scan(reHorizon, func([]string) (mention, bool) { return mention{}, false })

	scan(reFiscalYear, func(g []string) (mention, bool) {
		y, _ := strconv.Atoi(g[1])
		if y < 100 {
			y += 2000
		}
		start := time.Date(y, fs, 1, 0, 0, 0, 0, time.UTC)
		if fs != time.January {
			start = start.AddDate(-1, 0, 0)
		}
		return mention{kind: "period", year: y, period: Period{Frame: FrameFinancialYear, Anchor: start, Span: 1}}, true
	})

	scan(reTrailing, func(g []string) (mention, bool) {
		n, err := strconv.Atoi(g[1])
		if err != nil || n < 1 {
			return mention{}, false
		}
		frame := frameOf(g[2])
		cur := StartOf(frame, ref, fs)
		return mention{kind: "period", period: Period{Frame: frame, Anchor: AddFrames(frame, cur, -(n - 1)), Span: n}}, true
	})

	scan(reRelative, func(g []string) (mention, bool) {
		frame := frameOf(g[2])
		cur := StartOf(frame, ref, fs)
		if g[1] == "this" || g[1] == "current" {
			return mention{kind: "period", period: Period{Frame: frame, Anchor: cur, Span: 1}}, true
		}
		return mention{kind: "period", period: Period{Frame: frame, Anchor: AddFrames(frame, cur, -1), Span: 1}}, true
	})

	scan(reYearQuarter, func(g []string) (mention, bool) {
		y, _ := strconv.Atoi(g[1])
		q, _ := strconv.Atoi(g[2])
		return mention{kind: "quarter", quarter: q, year: y}, true
	})

	scan(reQuarter, func(g []string) (mention, bool) {
		q, _ := strconv.Atoi(g[1])
		y, _ := strconv.Atoi(g[2])
		return mention{kind: "quarter", quarter: q, year: y}, true
	})

	scan(reMonth, func(g []string) (mention, bool) {
		y, _ := strconv.Atoi(g[2])
		// "may" is only a month when a year follows it.
		if g[1] == "may" && y == 0 {
			return mention{}, false
		}
		return mention{kind: "month", month: monthNames[g[1]], year: y}, true
	})

	scan(reBareNoun, func(g []string) (mention, bool) {
		switch g[1] {
		case "today":
			return mention{kind: "period", period: Period{Frame: FrameDay, Anchor: StartOf(FrameDay, ref, fs), Span: 1}}, true
		case "yesterday":
			return mention{kind: "period", period: Period{Frame: FrameDay, Anchor: StartOf(FrameDay, ref, fs).AddDate(0, 0, -1), Span: 1}}, true
		case "ytd", "year to date":
			return mention{kind: "period", period: Period{Frame: FrameMonth, Anchor: StartOf(FrameYear, ref, fs), Span: int(ref.Month())}}, true
		default:
			return mention{kind: "period", period: Period{Frame: FrameMonth, Anchor: StartOf(FrameMonth, ref, fs), Span: 1}}, true
		}
	})

	scan(reYear, func(g []string) (mention, bool) {
		y, _ := strconv.Atoi(g[1])
		return mention{kind: "period", year: y, period: Period{Frame: FrameYear, Anchor: time.Date(y, time.January, 1, 0, 0, 0, 0, time.UTC), Span: 1}}, true
	})

	sort.Slice(found, func(i, j int) bool { return found[i].start < found[j].start })

	explicitYear := 0
	for _, m := range found {
		if m.year != 0 {
			explicitYear = m.year
			break
		}
	}

	periods := make([]Period, 0, len(found))
	for _, m := range found {
		switch m.kind {
		case "month":
			y := inferYear(m.year, explicitYear, ref, int(m.month), int(ref.Month()))
			periods = append(periods, Period{Frame: FrameMonth, Anchor: time.Date(y, m.month, 1, 0, 0, 0, 0, time.UTC), Span: 1})
		case "quarter":
			refQuarter := (int(ref.Month())-1)/3 + 1
			y := inferYear(m.year, explicitYear, ref, m.quarter, refQuarter)
			periods = append(periods, Period{Frame: FrameQuarter, Anchor: time.Date(y, time.Month((m.quarter-1)*3+1), 1, 0, 0, 0, 0, time.UTC), Span: 1})
		default:
			periods = append(periods, m.period)
		}
	}
	return periods
}

// inferYear picks the year for a month or quarter: the one given, else another
// explicit year in the utterance, else the latest occurrence not after ref.
func inferYear(given, explicit int, ref time.Time, unit, refUnit int) int {
	switch {
	case given != 0:
		return given
	case explicit != 0:
		return explicit
	case unit > refUnit:
		return ref.Year() - 1
	default:
		return ref.Year()
	}
}

func frameOf(unit string) TimeFrame {
	switch unit {
	case "day":
		return FrameDay
	case "week":
		return FrameWeek
	case "quarter":
		return FrameQuarter
	case "year":
		return FrameYear
	case "financial year", "fiscal year":
		return FrameFinancialYear
	default:
		return FrameMonth
	}
}

// horizon extracts a "next N units" prediction horizon.
func horizon(norm string) (int, TimeFrame, bool) {
	m := reHorizon.FindStringSubmatch(norm)
	if m == nil {
		return 0, "", false
	}
	n := 1
	if m[1] != "" {
		if v, err := strconv.Atoi(m[1]); err == nil {
			n = v
		}
	}
	return n, frameOf(m[2]), true
}
