package appointments

import (
	"fmt"
	"time"
)

// Expand projects an appointment's recurrence rule onto concrete calendar
// occurrences inside [windowStart, windowEnd]. It is pure: the result
// depends only on the inputs and repeated calls return identical output.
//
// Every occurrence keeps the anchor's time-of-day. Dates recorded as
// exceptions are omitted. The expander never generates beyond windowEnd,
// so open-ended rules stay finite as long as the caller supplies a
// bounded window.
func Expand(app *Appointment, windowStart, windowEnd time.Time) ([]Instance, error) {
	if app == nil {
		return nil, fmt.Errorf("appointments: expand: %w", ErrAppointmentNotFound)
	}
	if windowStart.IsZero() || windowEnd.IsZero() {
		return nil, fmt.Errorf("appointments: expand: unbounded window: %w", ErrInvalidWindow)
	}
	if windowEnd.Before(windowStart) {
		return nil, fmt.Errorf("appointments: expand: window end before start: %w", ErrInvalidWindow)
	}
	if windowEnd.Before(app.ScheduledAt) && DateOnly(windowEnd).Before(DateOnly(app.ScheduledAt)) {
		return nil, fmt.Errorf("appointments: expand: window ends before anchor: %w", ErrInvalidWindow)
	}

	excepted := make(map[time.Time]bool, len(app.Exceptions))
	for _, d := range app.Exceptions {
		excepted[DateOnly(d)] = true
	}

	rule := app.Recurrence
	anchor := app.ScheduledAt
	anchorDay := DateOnly(anchor)

	if !rule.IsRecurring() {
		if anchor.Before(windowStart) || anchor.After(windowEnd) {
			return nil, nil
		}
		if excepted[anchorDay] {
			return nil, nil
		}
		return []Instance{{ParentID: app.ID, OccurrenceDate: anchor}}, nil
	}

	// An end boundary earlier than the anchor degenerates to the anchor alone.
	if rule.EndDate != nil && DateOnly(*rule.EndDate).Before(anchorDay) {
		if excepted[anchorDay] || anchorDay.Before(DateOnly(windowStart)) || anchorDay.After(DateOnly(windowEnd)) {
			return nil, nil
		}
		return []Instance{{ParentID: app.ID, OccurrenceDate: anchor}}, nil
	}

	last := DateOnly(windowEnd)
	if rule.EndDate != nil {
		if end := DateOnly(*rule.EndDate); end.Before(last) {
			last = end
		}
	}

	firstVisible := DateOnly(windowStart)

	var out []Instance
	for day := anchorDay; !day.After(last); day = day.AddDate(0, 0, 1) {
		if day.Before(firstVisible) {
			continue
		}
		if !rule.matchesDay(day.Weekday()) {
			continue
		}
		if excepted[day] {
			continue
		}
		out = append(out, Instance{
			ParentID:       app.ID,
			OccurrenceDate: withTimeOfDay(day, anchor),
		})
	}
	return out, nil
}

// OccursOn reports whether the schedule produces an occurrence on the
// given calendar day. Exception dates are not consulted: an already
// excepted day still counts as produced by the rule.
func (a *Appointment) OccursOn(day time.Time) bool {
	day = DateOnly(day)
	anchorDay := DateOnly(a.ScheduledAt)
	if !a.Recurrence.IsRecurring() {
		return day.Equal(anchorDay)
	}
	if day.Before(anchorDay) {
		return false
	}
	if end := a.Recurrence.EndDate; end != nil {
		endDay := DateOnly(*end)
		if endDay.Before(anchorDay) {
			// Degenerate bound: only the anchor itself occurs.
			return day.Equal(anchorDay)
		}
		if day.After(endDay) {
			return false
		}
	}
	return a.Recurrence.matchesDay(day.Weekday())
}

func (r RecurrenceRule) matchesDay(wd time.Weekday) bool {
	switch r.Type {
	case RecurrenceDaily:
		return true
	case RecurrenceWeekdays:
		return wd != time.Saturday && wd != time.Sunday
	case RecurrenceCustom:
		for _, d := range r.DaysOfWeek {
			if d == wd {
				return true
			}
		}
	}
	return false
}

// withTimeOfDay stamps the anchor's clock time onto a calendar day.
func withTimeOfDay(day, anchor time.Time) time.Time {
	anchor = anchor.UTC()
	return time.Date(day.Year(), day.Month(), day.Day(),
		anchor.Hour(), anchor.Minute(), anchor.Second(), anchor.Nanosecond(), time.UTC)
}
