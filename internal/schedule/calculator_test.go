package schedule

import (
	"testing"
	"time"

	"github.com/digestloop/core/internal/domain"
)

func mustParse(t *testing.T, layout, value string) time.Time {
	t.Helper()
	ts, err := time.Parse(layout, value)
	if err != nil {
		t.Fatalf("parse %q: %v", value, err)
	}
	return ts
}

func TestNextFiring_SpecificWeekdaysAcrossTimezone(t *testing.T) {
	spec := domain.ScheduleSpec{
		Kind:     domain.ScheduleSpecificWeekdays,
		Time:     "09:00",
		Timezone: "America/New_York",
		Weekdays: []time.Weekday{time.Monday, time.Wednesday, time.Friday},
	}
	now := mustParse(t, time.RFC3339, "2024-06-01T00:00:00Z") // Saturday

	got, ok := NextFiring(spec, now)
	if !ok {
		t.Fatalf("expected a next firing")
	}
	want := mustParse(t, time.RFC3339, "2024-06-03T13:00:00Z") // Monday 09:00 EDT
	if !got.Equal(want) {
		t.Fatalf("got %s, want %s", got, want)
	}
}

func TestNextFiring_DaylightSavingGapResolvesPastSkippedHour(t *testing.T) {
	spec := domain.ScheduleSpec{
		Kind:     domain.ScheduleDaily,
		Time:     "02:30",
		Timezone: "America/New_York",
	}
	now := mustParse(t, time.RFC3339, "2024-03-10T06:00:00Z") // 01:00 EST, spring-forward day

	got, ok := NextFiring(spec, now)
	if !ok {
		t.Fatalf("expected a next firing")
	}
	want := mustParse(t, time.RFC3339, "2024-03-10T07:00:00Z") // 03:00 EDT
	if !got.Equal(want) {
		t.Fatalf("got %s, want %s", got, want)
	}
}

func TestNextFiring_DaylightSavingRepeatResolvesToFirstOccurrence(t *testing.T) {
	spec := domain.ScheduleSpec{
		Kind:     domain.ScheduleDaily,
		Time:     "01:30",
		Timezone: "America/New_York",
	}
	// Fall-back day: 2024-11-03. Midnight is 2024-11-03T04:00:00Z (EDT).
	now := mustParse(t, time.RFC3339, "2024-11-03T03:00:00Z") // 23:00 EDT previous day

	got, ok := NextFiring(spec, now)
	if !ok {
		t.Fatalf("expected a next firing")
	}
	// First occurrence of 01:30 is still under EDT (UTC-4): 01:30 + 4h = 05:30Z.
	want := mustParse(t, time.RFC3339, "2024-11-03T05:30:00Z")
	if !got.Equal(want) {
		t.Fatalf("got %s, want %s", got, want)
	}
}

func TestNextFiring_MonthlyDateClampsToShorterMonth(t *testing.T) {
	spec := domain.ScheduleSpec{
		Kind:       domain.ScheduleMonthlyDate,
		Time:       "09:00",
		Timezone:   "UTC",
		DayOfMonth: 31,
	}
	now := mustParse(t, time.RFC3339, "2024-01-31T10:00:00Z") // just after Jan 31 firing

	got, ok := NextFiring(spec, now)
	if !ok {
		t.Fatalf("expected a next firing")
	}
	// February 2024 has 29 days (leap year); 31 clamps to 29.
	want := mustParse(t, time.RFC3339, "2024-02-29T09:00:00Z")
	if !got.Equal(want) {
		t.Fatalf("got %s, want %s", got, want)
	}
}

func TestNextFiring_FixedIntervalAddsDaysInLocalTime(t *testing.T) {
	spec := domain.ScheduleSpec{
		Kind:         domain.ScheduleFixedInterval,
		Time:         "08:00",
		Timezone:     "UTC",
		IntervalDays: 3,
	}
	now := mustParse(t, time.RFC3339, "2024-05-01T08:00:00Z")

	got, ok := NextFiring(spec, now)
	if !ok {
		t.Fatalf("expected a next firing")
	}
	want := mustParse(t, time.RFC3339, "2024-05-04T08:00:00Z")
	if !got.Equal(want) {
		t.Fatalf("got %s, want %s", got, want)
	}
}

func TestNextFiring_OneTimeInPastHasNoFurtherOccurrence(t *testing.T) {
	past := mustParse(t, time.RFC3339, "2023-01-01T00:00:00Z")
	spec := domain.ScheduleSpec{
		Kind: domain.ScheduleOneTime,
		Date: &past,
	}
	now := mustParse(t, time.RFC3339, "2024-01-01T00:00:00Z")

	if _, ok := NextFiring(spec, now); ok {
		t.Fatalf("expected no further occurrence for a past one_time schedule")
	}
}

func TestNextFiring_InvalidTimezoneFallsBackToUTC(t *testing.T) {
	spec := domain.ScheduleSpec{
		Kind:     domain.ScheduleDaily,
		Time:     "12:00",
		Timezone: "Not/A_Real_Zone",
	}
	now := mustParse(t, time.RFC3339, "2024-01-01T00:00:00Z")

	got, ok := NextFiring(spec, now)
	if !ok {
		t.Fatalf("expected a next firing")
	}
	want := mustParse(t, time.RFC3339, "2024-01-01T12:00:00Z")
	if !got.Equal(want) {
		t.Fatalf("got %s, want %s", got, want)
	}
}
