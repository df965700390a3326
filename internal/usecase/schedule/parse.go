// Package schedule converts a constrained natural-language schedule phrase
// into the absolute next-run timestamp, evaluated relative to an injected
// "now". Parsing is pure: same phrase + same now always yields the same
// result, which keeps it trivially testable.
package schedule

import (
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"taskpilot/internal/domain"
)

// Next computes the next run time for phrase relative to now.
// Supported forms (case-insensitive, surrounding whitespace ignored):
//
//	in <N> <unit>         unit: second(s), minute(s), hour(s), day(s)
//	every <N> <unit>      unit: minute(s), hour(s), day(s)
//	every day at <HH:MM>  24-hour wall clock, UTC
//	every day at <H>am|pm
//
// A phrase that is a valid 5-field cron expression is also accepted and
// evaluated with the cron parser. Anything else returns domain.ErrUnparseable.
func Next(phrase string, now time.Time) (time.Time, error) {
	s := strings.ToLower(strings.TrimSpace(phrase))
	now = now.UTC()

	switch {
	case strings.HasPrefix(s, "every day at "):
		return nextDailyAt(strings.TrimPrefix(s, "every day at "), now)
	case strings.HasPrefix(s, "in "):
		return nextInterval(strings.TrimPrefix(s, "in "), now, inUnits)
	case strings.HasPrefix(s, "every "):
		return nextInterval(strings.TrimPrefix(s, "every "), now, everyUnits)
	}

	if sched, err := cronParser.Parse(s); err == nil {
		return sched.Next(now), nil
	}

	return time.Time{}, domain.NewSubSystemError("schedule", "Next", domain.ErrUnparseable, phrase)
}

// cronParser accepts standard 5-field expressions plus @descriptors,
// mirroring the interval grammar with full cron power for advanced users.
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

var inUnits = map[string]time.Duration{
	"second": time.Second,
	"minute": time.Minute,
	"hour":   time.Hour,
	"day":    24 * time.Hour,
}

// everyUnits deliberately has no second granularity.
var everyUnits = map[string]time.Duration{
	"minute": time.Minute,
	"hour":   time.Hour,
	"day":    24 * time.Hour,
}

func nextInterval(rest string, now time.Time, units map[string]time.Duration) (time.Time, error) {
	fields := strings.Fields(rest)
	if len(fields) < 2 {
		return time.Time{}, domain.NewSubSystemError("schedule", "Next", domain.ErrUnparseable, rest)
	}

	amount, err := strconv.Atoi(fields[0])
	if err != nil || amount <= 0 {
		return time.Time{}, domain.NewSubSystemError("schedule", "Next", domain.ErrUnparseable, rest)
	}

	unit, ok := units[strings.TrimSuffix(fields[1], "s")]
	if !ok {
		return time.Time{}, domain.NewSubSystemError("schedule", "Next", domain.ErrUnparseable, rest)
	}

	return now.Add(time.Duration(amount) * unit), nil
}

// nextDailyAt resolves "every day at ..." to the next occurrence of the
// given wall-clock time. If that instant is not after now, it rolls forward
// exactly one day.
func nextDailyAt(clock string, now time.Time) (time.Time, error) {
	hour, minute, err := parseClock(strings.TrimSpace(clock))
	if err != nil {
		return time.Time{}, err
	}

	next := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, time.UTC)
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next, nil
}

// parseClock accepts "HH:MM" (24-hour) or "<H>am"/"<H>pm".
func parseClock(s string) (hour, minute int, err error) {
	unparseable := func() (int, int, error) {
		return 0, 0, domain.NewSubSystemError("schedule", "Next", domain.ErrUnparseable, s)
	}

	if h, m, ok := strings.Cut(s, ":"); ok {
		hour, err1 := strconv.Atoi(h)
		minute, err2 := strconv.Atoi(m)
		if err1 != nil || err2 != nil || hour < 0 || hour > 23 || minute < 0 || minute > 59 {
			return unparseable()
		}
		return hour, minute, nil
	}

	var meridiem string
	switch {
	case strings.HasSuffix(s, "am"):
		meridiem = "am"
	case strings.HasSuffix(s, "pm"):
		meridiem = "pm"
	default:
		return unparseable()
	}

	h, convErr := strconv.Atoi(strings.TrimSpace(strings.TrimSuffix(s, meridiem)))
	if convErr != nil || h < 1 || h > 12 {
		return unparseable()
	}
	if h == 12 {
		h = 0
	}
	if meridiem == "pm" {
		h += 12
	}
	return h, 0, nil
}
