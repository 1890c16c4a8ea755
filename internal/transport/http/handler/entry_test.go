package handler_test

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/digestloop/core/internal/crypto"
	"github.com/digestloop/core/internal/domain"
	"github.com/digestloop/core/internal/executor"
	"github.com/digestloop/core/internal/fetch"
	"github.com/digestloop/core/internal/quota"
	"github.com/digestloop/core/internal/summarize"
	"github.com/digestloop/core/internal/transport/http/handler"
	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeEntries struct {
	entries map[string]*domain.MonitoringEntry
	due     []*domain.MonitoringEntry
}

func (f *fakeEntries) Create(context.Context, *domain.MonitoringEntry) (*domain.MonitoringEntry, error) {
	return nil, nil
}
func (f *fakeEntries) GetByID(_ context.Context, id string) (*domain.MonitoringEntry, error) {
	entry, ok := f.entries[id]
	if !ok {
		return nil, domain.ErrEntryNotFound
	}
	return entry, nil
}
func (f *fakeEntries) ClaimDue(context.Context, time.Time, int) ([]*domain.MonitoringEntry, error) {
	return f.due, nil
}
func (f *fakeEntries) Advance(context.Context, string, time.Time, *time.Time) error { return nil }

type fakeTenants struct{}

func (fakeTenants) GetByID(context.Context, string) (*domain.Tenant, error) {
	return &domain.Tenant{ID: "t1", Plan: domain.PlanLimits{MaxEmailsPerMonth: 100}}, nil
}
func (fakeTenants) IncrementUsage(context.Context, string, domain.QuotaKind, int) (int, error) {
	return 0, nil
}
func (fakeTenants) RolloverUsageIfDue(context.Context, string, time.Time) error { return nil }

type fakeRepos struct{}

func (fakeRepos) Create(context.Context, *domain.Repository) (*domain.Repository, error) {
	return nil, nil
}
func (fakeRepos) GetByID(context.Context, string) (*domain.Repository, error) {
	return &domain.Repository{ID: "r1", Owner: "acme", Name: "widgets"}, nil
}
func (fakeRepos) SetStatus(context.Context, string, domain.RepositoryStatus) error { return nil }

type fakeAuthors struct{}

func (fakeAuthors) GetByID(context.Context, string) (*domain.Author, error) {
	return &domain.Author{ID: "a1", Username: "octocat"}, nil
}
func (fakeAuthors) FindOrCreate(context.Context, string, string) (*domain.Author, error) {
	return nil, nil
}

type fakeRuns struct{}

func (fakeRuns) Open(_ context.Context, r *domain.Run) (*domain.Run, error) {
	r.ID = "run-1"
	return r, nil
}
func (fakeRuns) GetByID(context.Context, string) (*domain.Run, error)       { return nil, nil }
func (fakeRuns) Complete(context.Context, *domain.Run) error                { return nil }
func (fakeRuns) ClaimStale(context.Context, time.Time, int) ([]*domain.Run, error) { return nil, nil }

type fakeFetcher struct{}

func (fakeFetcher) ListActivity(context.Context, *domain.Repository, string, time.Time, time.Time) ([]fetch.PullRequest, error) {
	return nil, nil
}

type fakeSummarizer struct{}

func (fakeSummarizer) Summarize(context.Context, summarize.Request) (string, error) { return "", nil }

type fakeSender struct{}

func (fakeSender) Send(context.Context, []string, string, string) error { return nil }

func newTestEntryHandler(t *testing.T, entries *fakeEntries) *handler.EntryHandler {
	t.Helper()
	sealer, err := crypto.NewSealer(make([]byte, 32))
	if err != nil {
		t.Fatalf("new sealer: %v", err)
	}
	gate := quota.NewGate(fakeTenants{}, slog.Default())
	exec := executor.New(
		fakeTenants{},
		fakeRepos{},
		fakeAuthors{},
		fakeRuns{},
		entries,
		gate,
		func(string) fetch.Client { return fakeFetcher{} },
		fakeSummarizer{},
		fakeSender{},
		sealer,
		executor.Config{FetchTimeout: time.Second, SummaryTimeout: time.Second, DeliverTimeout: time.Second, DefaultWindow: 24 * time.Hour},
		slog.Default(),
	)
	return handler.NewEntryHandler(entries, exec, slog.Default())
}

func TestEntryHandler_TriggerActiveEntryReturnsAccepted(t *testing.T) {
	entries := &fakeEntries{entries: map[string]*domain.MonitoringEntry{
		"e1": {ID: "e1", TenantID: "t1", AuthorID: "a1", RepositoryID: "r1", Status: domain.EntryActive, Recipients: []string{"a@b.com"}},
	}}
	h := newTestEntryHandler(t, entries)

	r := gin.New()
	r.POST("/entries/:id/trigger", h.Trigger)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/entries/e1/trigger", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202, body=%s", w.Code, w.Body.String())
	}
}

func TestEntryHandler_TriggerUnknownEntryReturnsNotFound(t *testing.T) {
	h := newTestEntryHandler(t, &fakeEntries{entries: map[string]*domain.MonitoringEntry{}})

	r := gin.New()
	r.POST("/entries/:id/trigger", h.Trigger)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/entries/missing/trigger", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}

func TestEntryHandler_TriggerPausedEntryReturnsConflict(t *testing.T) {
	entries := &fakeEntries{entries: map[string]*domain.MonitoringEntry{
		"e1": {ID: "e1", Status: domain.EntryPaused},
	}}
	h := newTestEntryHandler(t, entries)

	r := gin.New()
	r.POST("/entries/:id/trigger", h.Trigger)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/entries/e1/trigger", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", w.Code)
	}
}

func TestEntryHandler_ListDueReturnsClaimedEntries(t *testing.T) {
	entries := &fakeEntries{due: []*domain.MonitoringEntry{{ID: "e1"}, {ID: "e2"}}}
	h := newTestEntryHandler(t, entries)

	r := gin.New()
	r.GET("/entries/due", h.ListDue)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/entries/due", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
}
