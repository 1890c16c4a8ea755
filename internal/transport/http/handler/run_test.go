package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/digestloop/core/internal/domain"
	"github.com/digestloop/core/internal/transport/http/handler"
	"github.com/gin-gonic/gin"
)

type fakeRunStore struct {
	runs       map[string]*domain.Run
	completed  []*domain.Run
	completeFn func(*domain.Run) error
}

func (f *fakeRunStore) Open(context.Context, *domain.Run) (*domain.Run, error) { return nil, nil }
func (f *fakeRunStore) GetByID(_ context.Context, id string) (*domain.Run, error) {
	run, ok := f.runs[id]
	if !ok {
		return nil, domain.ErrRunNotFound
	}
	return run, nil
}
func (f *fakeRunStore) Complete(_ context.Context, run *domain.Run) error {
	if f.completeFn != nil {
		if err := f.completeFn(run); err != nil {
			return err
		}
	}
	f.completed = append(f.completed, run)
	return nil
}
func (f *fakeRunStore) ClaimStale(context.Context, time.Time, int) ([]*domain.Run, error) {
	return nil, nil
}

func TestRunHandler_CompleteRunWritesTerminalFields(t *testing.T) {
	runs := &fakeRunStore{runs: map[string]*domain.Run{
		"run-1": {ID: "run-1", Delivery: domain.Delivery{Status: domain.DeliveryPending}},
	}}
	h := handler.NewRunHandler(runs, &fakeEntries{entries: map[string]*domain.MonitoringEntry{}}, slog.Default())

	r := gin.New()
	r.POST("/runs/:id/complete", h.CompleteRun)

	body, _ := json.Marshal(map[string]any{
		"prCount":     2,
		"hasActivity": true,
		"delivery":    map[string]any{"status": "sent", "recipients": []string{"a@b.com"}},
	})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/runs/run-1/complete", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body=%s", w.Code, w.Body.String())
	}
	if len(runs.completed) != 1 {
		t.Fatalf("expected the run to be completed once, got %d", len(runs.completed))
	}
	if runs.completed[0].Delivery.Status != domain.DeliverySent {
		t.Fatalf("expected delivery status sent, got %s", runs.completed[0].Delivery.Status)
	}
}

func TestRunHandler_CompleteRunUnknownReturnsNotFound(t *testing.T) {
	h := handler.NewRunHandler(&fakeRunStore{runs: map[string]*domain.Run{}}, &fakeEntries{entries: map[string]*domain.MonitoringEntry{}}, slog.Default())

	r := gin.New()
	r.POST("/runs/:id/complete", h.CompleteRun)

	body, _ := json.Marshal(map[string]any{"delivery": map[string]any{"status": "skipped"}})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/runs/missing/complete", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}

func TestRunHandler_CompleteRunAlreadyClosedReturnsConflict(t *testing.T) {
	runs := &fakeRunStore{
		runs:       map[string]*domain.Run{"run-1": {ID: "run-1"}},
		completeFn: func(*domain.Run) error { return domain.ErrRunAlreadyClosed },
	}
	h := handler.NewRunHandler(runs, &fakeEntries{entries: map[string]*domain.MonitoringEntry{}}, slog.Default())

	r := gin.New()
	r.POST("/runs/:id/complete", h.CompleteRun)

	body, _ := json.Marshal(map[string]any{"delivery": map[string]any{"status": "sent"}})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/runs/run-1/complete", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", w.Code)
	}
}
