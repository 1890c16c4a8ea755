package domain

import "time"

type MonitoringMode string

const (
	ModeGhost MonitoringMode = "ghost" // no account; passively monitored
	ModeOpen  MonitoringMode = "open"  // author accepted invite, may edit own note
)

type EntryStatus string

const (
	EntryActive  EntryStatus = "active"
	EntryPaused  EntryStatus = "paused"
	EntryRemoved EntryStatus = "removed"
)

type FetchWindowPolicy string

const (
	WindowSinceLastRun    FetchWindowPolicy = "since_last_run"
	WindowExplicitRange   FetchWindowPolicy = "explicit_range"
)

type ScheduleKind string

const (
	ScheduleDaily             ScheduleKind = "daily"
	ScheduleSpecificWeekdays  ScheduleKind = "specific_weekdays"
	ScheduleFixedInterval     ScheduleKind = "fixed_interval"
	ScheduleMonthlyDate       ScheduleKind = "monthly_date"
	ScheduleYearly            ScheduleKind = "yearly"
	ScheduleOneTime           ScheduleKind = "one_time"
)

// Weekday mirrors time.Weekday (Sun=0..Sat=6) so config serialises as
// plain integers without a translation table.
type Weekday = time.Weekday

// ScheduleSpec is the persisted recurrence descriptor for a monitoring
// entry. Only the fields relevant to Kind are populated; the rest are
// zero-valued. See internal/schedule for the calculator that consumes it.
type ScheduleSpec struct {
	Kind     ScheduleKind `json:"type"`
	Time     string       `json:"time"`     // "HH:MM" local wall-clock
	Timezone string       `json:"timezone"` // IANA zone identifier

	// specific_weekdays
	Weekdays []time.Weekday `json:"weekdays,omitempty"`

	// fixed_interval
	IntervalDays int `json:"intervalDays,omitempty"`

	// monthly_date
	DayOfMonth int `json:"dayOfMonth,omitempty"`

	// yearly
	Month int `json:"month,omitempty"`
	Day   int `json:"day,omitempty"`

	// one_time
	Date *time.Time `json:"date,omitempty"`

	IsActive  bool       `json:"isActive"`
	NextRunAt *time.Time `json:"nextRunAt,omitempty"`
	LastRunAt *time.Time `json:"lastRunAt,omitempty"`
}

// MonitoringEntry is the central coordination record: tenant T wants
// periodic summaries for author A on repository R.
type MonitoringEntry struct {
	ID           string `json:"id"`
	TenantID     string `json:"tenantId"`
	AuthorID     string `json:"authorId"`
	RepositoryID string `json:"repositoryId"`

	Mode   MonitoringMode `json:"mode"`
	Status EntryStatus    `json:"status"`

	Schedule     ScheduleSpec      `json:"schedule"`
	WindowPolicy FetchWindowPolicy `json:"fetchWindowPolicy"`
	// ExplicitFrom/ExplicitTo are only meaningful when WindowPolicy is
	// WindowExplicitRange.
	ExplicitFrom *time.Time `json:"explicitFrom,omitempty"`
	ExplicitTo   *time.Time `json:"explicitTo,omitempty"`

	Recipients []string `json:"recipients"`
	Note       string   `json:"note"` // free text, <= 5000 chars, snapshotted into each run

	LastRunAt *time.Time `json:"lastRunAt,omitempty"`
	NextRunAt *time.Time `json:"nextRunAt,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

const MaxNoteLength = 5000
