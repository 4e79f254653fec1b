package market

import (
	"context"
	"time"
)

// USEquityCalendar implements Calendar for regular US equity hours
// (09:30–16:00 exchange time, weekdays, minus configured holidays).
type USEquityCalendar struct {
	loc      *time.Location
	holidays map[string]struct{} // "2006-01-02" keys
}

func NewUSEquityCalendar(loc *time.Location, holidays []string) *USEquityCalendar {
	if loc == nil {
		loc, _ = time.LoadLocation("America/New_York")
	}
	set := make(map[string]struct{}, len(holidays))
	for _, h := range holidays {
		set[h] = struct{}{}
	}
	return &USEquityCalendar{loc: loc, holidays: set}
}

func (c *USEquityCalendar) IsOpen(ctx context.Context, at time.Time) (bool, error) {
	local := at.In(c.loc)

	if wd := local.Weekday(); wd == time.Saturday || wd == time.Sunday {
		return false, nil
	}
	if _, holiday := c.holidays[local.Format("2006-01-02")]; holiday {
		return false, nil
	}

	open := time.Date(local.Year(), local.Month(), local.Day(), 9, 30, 0, 0, c.loc)
	close := time.Date(local.Year(), local.Month(), local.Day(), 16, 0, 0, 0, c.loc)
	return !local.Before(open) && local.Before(close), nil
}

// NextOpen returns the next regular session start at or after t. Weekends and
// holidays are skipped.
func (c *USEquityCalendar) NextOpen(t time.Time) time.Time {
	local := t.In(c.loc)
	candidate := time.Date(local.Year(), local.Month(), local.Day(), 9, 30, 0, 0, c.loc)
	if !local.Before(candidate) {
		candidate = candidate.AddDate(0, 0, 1)
	}
	for {
		wd := candidate.Weekday()
		_, holiday := c.holidays[candidate.Format("2006-01-02")]
		if wd != time.Saturday && wd != time.Sunday && !holiday {
			return candidate
		}
		candidate = candidate.AddDate(0, 0, 1)
	}
}
