// Package schedule computes the next firing instant for a monitoring
// entry's recurrence descriptor. NextFiring is a pure function: given a
// schedule spec and a reference instant, it returns the next absolute
// instant at which the schedule fires, correctly resolved in the spec's
// own IANA timezone (including DST gap/repeat resolution).
package schedule

import (
	"strconv"
	"strings"
	"time"

	"github.com/digestloop/core/internal/domain"
)

// NextFiring returns the next instant strictly after now at which spec
// fires, in spec's timezone. ok is false when the schedule has no further
// occurrences (an unset or already-past one_time schedule).
func NextFiring(spec domain.ScheduleSpec, now time.Time) (next time.Time, ok bool) {
	loc := resolveLocation(spec.Timezone)
	hh, mm := parseClock(spec.Time)

	switch spec.Kind {
	case domain.ScheduleDaily:
		return scanDays(loc, now, hh, mm, 2, func(_ time.Weekday, _ int) bool { return true })

	case domain.ScheduleSpecificWeekdays:
		set := weekdaySet(spec.Weekdays)
		return scanDays(loc, now, hh, mm, 7, func(wd time.Weekday, _ int) bool { return set[wd] })

	case domain.ScheduleFixedInterval:
		days := spec.IntervalDays
		if days < 1 {
			days = 1
		}
		base := now.In(loc).AddDate(0, 0, days)
		candidate := resolveWallClock(loc, base.Year(), base.Month(), base.Day(), hh, mm)
		if !candidate.After(now) {
			// Guard: the candidate must be strictly after now — push one more day.
			base = base.AddDate(0, 0, 1)
			candidate = resolveWallClock(loc, base.Year(), base.Month(), base.Day(), hh, mm)
		}
		return candidate, true

	case domain.ScheduleMonthlyDate:
		return nextMonthly(loc, now, hh, mm, spec.DayOfMonth)

	case domain.ScheduleYearly:
		return nextYearly(loc, now, hh, mm, spec.Month, spec.Day)

	case domain.ScheduleOneTime:
		if spec.Date == nil || !spec.Date.After(now) {
			return time.Time{}, false
		}
		return *spec.Date, true

	default:
		return time.Time{}, false
	}
}

// resolveLocation falls back to UTC for an empty or unrecognised timezone.
func resolveLocation(tz string) *time.Location {
	if tz == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return time.UTC
	}
	return loc
}

// parseClock parses a "HH:MM" wall-clock string, defaulting to midnight on
// any malformed input — the schedule is still validated on create, this is
// just a safety net.
func parseClock(s string) (hh, mm int) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, 0
	}
	h, err1 := strconv.Atoi(parts[0])
	m, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil || h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, 0
	}
	return h, m
}

func weekdaySet(days []time.Weekday) map[time.Weekday]bool {
	set := make(map[time.Weekday]bool, len(days))
	for _, d := range days {
		set[d] = true
	}
	return set
}

// scanDays walks forward day by day (in loc) looking for the first day
// matching pred whose wall-clock candidate is strictly after now.
func scanDays(loc *time.Location, now time.Time, hh, mm int, maxDays int, pred func(wd time.Weekday, dayOfMonth int) bool) (time.Time, bool) {
	nowLocal := now.In(loc)
	for offset := 0; offset <= maxDays; offset++ {
		day := nowLocal.AddDate(0, 0, offset)
		if !pred(day.Weekday(), day.Day()) {
			continue
		}
		candidate := resolveWallClock(loc, day.Year(), day.Month(), day.Day(), hh, mm)
		if candidate.After(now) {
			return candidate, true
		}
	}
	return time.Time{}, false
}

func nextMonthly(loc *time.Location, now time.Time, hh, mm, dayOfMonth int) (time.Time, bool) {
	nowLocal := now.In(loc)
	y, mo, _ := nowLocal.Date()
	for i := 0; i < 14; i++ {
		day := clampDay(y, mo, dayOfMonth)
		candidate := resolveWallClock(loc, y, mo, day, hh, mm)
		if candidate.After(now) {
			return candidate, true
		}
		mo++
		if mo > time.December {
			mo = time.January
			y++
		}
	}
	return time.Time{}, false
}

func nextYearly(loc *time.Location, now time.Time, hh, mm, month, day int) (time.Time, bool) {
	nowLocal := now.In(loc)
	y := nowLocal.Year()
	for i := 0; i < 6; i++ {
		candidate := resolveWallClock(loc, y, time.Month(month), day, hh, mm)
		if candidate.After(now) {
			return candidate, true
		}
		y++
	}
	return time.Time{}, false
}

func clampDay(y int, mo time.Month, day int) int {
	last := daysInMonth(y, mo)
	switch {
	case day > last:
		return last
	case day < 1:
		return 1
	default:
		return day
	}
}

func daysInMonth(y int, mo time.Month) int {
	firstOfNext := time.Date(y, mo+1, 1, 0, 0, 0, 0, time.UTC)
	return firstOfNext.AddDate(0, 0, -1).Day()
}

// resolveWallClock returns the instant corresponding to the wall-clock
// (y, mo, d, hh, mm) in loc. A repeated local time (fall-back) resolves to
// its first occurrence; a skipped local time (spring-forward gap) resolves
// to the first valid instant after the gap.
func resolveWallClock(loc *time.Location, y int, mo time.Month, d, hh, mm int) time.Time {
	t := time.Date(y, mo, d, hh, mm, 0, 0, loc)
	if clockMatches(t, loc, y, mo, d, hh, mm) {
		if earlier := t.Add(-time.Hour); clockMatches(earlier, loc, y, mo, d, hh, mm) {
			_, off1 := t.Zone()
			_, off2 := earlier.Zone()
			if off1 != off2 {
				return earlier // ambiguous repeat: first occurrence
			}
		}
		return t
	}

	// Gap: (y, mo, d, hh, mm) never exists in loc. Scan forward in real
	// minutes from local midnight — once the transition is crossed, wall
	// clock minutes advance in step with real minutes again, so this finds
	// the first valid instant whose reading is >= the requested time.
	cursor := time.Date(y, mo, d, 0, 0, 0, 0, loc)
	end := cursor.AddDate(0, 0, 1)
	for cursor.Before(end) {
		cy, cmo, cd := cursor.Date()
		ch, cm, _ := cursor.Clock()
		if cy == y && cmo == mo && cd == d && (ch > hh || (ch == hh && cm >= mm)) {
			return cursor
		}
		cursor = cursor.Add(time.Minute)
	}
	return end
}

func clockMatches(t time.Time, loc *time.Location, y int, mo time.Month, d, hh, mm int) bool {
	lt := t.In(loc)
	ly, lmo, ld := lt.Date()
	lh, lm, _ := lt.Clock()
	return ly == y && lmo == mo && ld == d && lh == hh && lm == mm
}
