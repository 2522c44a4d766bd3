package query

import (
	"fmt"
	"time"

	"github.com/carbonledger/analyst/internal/emissions"
)

// Period is Span consecutive units of Frame starting at Anchor.
type Period struct {
	Frame  TimeFrame `json:"time_frame"`
	Anchor time.Time `json:"time_value"`
	Span   int       `json:"span"`
}

// Interval returns the absolute half-open range covered by the period.
func (p Period) Interval() emissions.Interval {
	return emissions.Interval{Start: p.Anchor, End: AddFrames(p.Frame, p.Anchor, p.span())}
}

// Previous returns the period of equal length that ends where p starts.
func (p Period) Previous() Period {
	return Period{Frame: p.Frame, Anchor: AddFrames(p.Frame, p.Anchor, -p.span()), Span: p.span()}
}

// Label renders the period for narratives, e.g. "February 2023" or
// "March 2022 to February 2023".
func (p Period) Label() string {
	if p.span() == 1 {
		return unitLabel(p.Frame, p.Anchor)
	}
	last := AddFrames(p.Frame, p.Anchor, p.span()-1)
	switch p.Frame {
	case FrameDay, FrameWeek:
		end := AddFrames(p.Frame, p.Anchor, p.span()).AddDate(0, 0, -1)
		return p.Anchor.Format("2 Jan 2006") + " to " + end.Format("2 Jan 2006")
	default:
		return unitLabel(p.Frame, p.Anchor) + " to " + unitLabel(p.Frame, last)
	}
}

func (p Period) span() int {
	if p.Span < 1 {
		return 1
	}
	return p.Span
}

// AddFrames moves t by n units of frame.
func AddFrames(frame TimeFrame, t time.Time, n int) time.Time {
	switch frame {
	case FrameDay:
		return t.AddDate(0, 0, n)
	case FrameWeek:
		return t.AddDate(0, 0, 7*n)
	case FrameQuarter:
		return t.AddDate(0, 3*n, 0)
	case FrameYear, FrameFinancialYear:
		return t.AddDate(n, 0, 0)
	default:
		return t.AddDate(0, n, 0)
	}
}

// StartOf truncates t to the beginning of the unit of frame containing it.
// Weeks start on Monday; financial years start on fiscalStart.
func StartOf(frame TimeFrame, t time.Time, fiscalStart time.Month) time.Time {
	y, m, d := t.Date()
	loc := t.Location()
	switch frame {
	case FrameDay:
		return time.Date(y, m, d, 0, 0, 0, 0, loc)
	case FrameWeek:
		offset := (int(t.Weekday()) + 6) % 7
		return time.Date(y, m, d-offset, 0, 0, 0, 0, loc)
	case FrameQuarter:
		return time.Date(y, ((m-1)/3)*3+1, 1, 0, 0, 0, 0, loc)
	case FrameYear:
		return time.Date(y, time.January, 1, 0, 0, 0, 0, loc)
	case FrameFinancialYear:
		fs := validMonth(fiscalStart)
		if m < fs {
			y--
		}
		return time.Date(y, fs, 1, 0, 0, 0, 0, loc)
	default:
		return time.Date(y, m, 1, 0, 0, 0, 0, loc)
	}
}

// DefaultPeriod is the trailing twelve months ending with the month of ref.
func DefaultPeriod(ref time.Time) Period {
	cur := StartOf(FrameMonth, ref, time.January)
	return Period{
		Frame:  FrameMonth,
		Anchor: AddFrames(FrameMonth, cur, -(DefaultTrailingMonths - 1)),
		Span:   DefaultTrailingMonths,
	}
}

func unitLabel(frame TimeFrame, t time.Time) string {
	switch frame {
	case FrameDay:
		return t.Format("2 Jan 2006")
	case FrameWeek:
		return "week of " + t.Format("2 Jan 2006")
	case FrameQuarter:
		return fmt.Sprintf("Q%d %d", (int(t.Month())-1)/3+1, t.Year())
	case FrameYear:
		return fmt.Sprintf("%d", t.Year())
	case FrameFinancialYear:
		if t.Month() == time.January {
			return fmt.Sprintf("FY%d", t.Year())
		}
		return fmt.Sprintf("FY%d", t.Year()+1)
	default:
		return t.Format("January 2006")
	}
}

func validMonth(m time.Month) time.Month {
	if m < time.January || m > time.December {
		return time.January
	}
	return m
}
