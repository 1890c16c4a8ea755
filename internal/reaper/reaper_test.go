package reaper

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/digestloop/core/internal/domain"
)

type fakeRuns struct {
	stale     []*domain.Run
	completed []*domain.Run
}

func (f *fakeRuns) Open(context.Context, *domain.Run) (*domain.Run, error) { return nil, nil }
func (f *fakeRuns) GetByID(context.Context, string) (*domain.Run, error)   { return nil, nil }
func (f *fakeRuns) Complete(_ context.Context, r *domain.Run) error {
	f.completed = append(f.completed, r)
	return nil
}
func (f *fakeRuns) ClaimStale(context.Context, time.Time, int) ([]*domain.Run, error) {
	stale := f.stale
	f.stale = nil
	return stale, nil
}

type fakeEntries struct {
	entries  map[string]*domain.MonitoringEntry
	advanced map[string]*time.Time
}

func (f *fakeEntries) Create(context.Context, *domain.MonitoringEntry) (*domain.MonitoringEntry, error) {
	return nil, nil
}
func (f *fakeEntries) GetByID(_ context.Context, id string) (*domain.MonitoringEntry, error) {
	return f.entries[id], nil
}
func (f *fakeEntries) ClaimDue(context.Context, time.Time, int) ([]*domain.MonitoringEntry, error) {
	return nil, nil
}
func (f *fakeEntries) Advance(_ context.Context, id string, _ time.Time, next *time.Time) error {
	if f.advanced == nil {
		f.advanced = make(map[string]*time.Time)
	}
	f.advanced[id] = next
	return nil
}

func TestReaper_SweepFailsStaleRunsAndReschedulesEntry(t *testing.T) {
	runs := &fakeRuns{
		stale: []*domain.Run{
			{ID: "run-1", EntryID: "e1", Delivery: domain.Delivery{Status: domain.DeliveryPending}},
		},
	}
	entries := &fakeEntries{
		entries: map[string]*domain.MonitoringEntry{
			"e1": {ID: "e1", Schedule: domain.ScheduleSpec{Kind: domain.ScheduleDaily, Time: "09:00", Timezone: "UTC"}},
		},
	}
	r := New(runs, entries, time.Minute, 5*time.Minute, slog.Default())

	r.sweep(context.Background())

	if len(runs.completed) != 1 {
		t.Fatalf("expected the stale run to be completed, got %d", len(runs.completed))
	}
	if runs.completed[0].Delivery.Status != domain.DeliveryFailed {
		t.Fatalf("expected stale run to be marked failed, got %s", runs.completed[0].Delivery.Status)
	}
	if runs.completed[0].CompletedAt == nil {
		t.Fatalf("expected stale run to have a completion timestamp")
	}
	if entries.advanced["e1"] == nil {
		t.Fatalf("expected the owning entry to be rescheduled")
	}
}

func TestReaper_SweepWithNoStaleRunsDoesNothing(t *testing.T) {
	runs := &fakeRuns{}
	entries := &fakeEntries{}
	r := New(runs, entries, time.Minute, 5*time.Minute, slog.Default())

	r.sweep(context.Background())

	if len(runs.completed) != 0 {
		t.Fatalf("expected no completions when nothing is stale")
	}
}
