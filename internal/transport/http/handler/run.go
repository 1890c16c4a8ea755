package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/digestloop/core/internal/domain"
	"github.com/digestloop/core/internal/schedule"
	"github.com/digestloop/core/internal/store"
	"github.com/gin-gonic/gin"
)

type RunHandler struct {
	runs    store.RunStore
	entries store.MonitoringStore
	logger  *slog.Logger
}

func NewRunHandler(runs store.RunStore, entries store.MonitoringStore, logger *slog.Logger) *RunHandler {
	return &RunHandler{runs: runs, entries: entries, logger: logger.With("component", "run_handler")}
}

type completeRunRequest struct {
	PRCount     int            `json:"prCount"`
	PRs         []domain.PRRef `json:"prs"`
	HasActivity bool           `json:"hasActivity"`
	Summary     *string        `json:"summary"`
	Delivery    struct {
		Status        domain.DeliveryStatus `json:"status" binding:"required,oneof=sent failed skipped"`
		SentAt        *time.Time            `json:"sentAt"`
		Recipients    []string              `json:"recipients"`
		FailureReason string                `json:"failureReason"`
	} `json:"delivery" binding:"required"`
}

// CompleteRun lets an external worker commit the result of a run it
// executed out-of-process. It validates the run is still open and writes
// terminal fields exactly once.
func (h *RunHandler) CompleteRun(c *gin.Context) {
	runID := c.Param("id")

	var req completeRunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	run, err := h.runs.GetByID(c.Request.Context(), runID)
	if err != nil {
		if errors.Is(err, domain.ErrRunNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": errRunNotFound})
			return
		}
		h.logger.Error("get run by id", "run_id", runID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}

	completed := time.Now()
	run.CompletedAt = &completed
	run.PRCount = req.PRCount
	run.PRs = req.PRs
	run.HasActivity = req.HasActivity
	run.Summary = req.Summary
	run.Delivery.Status = req.Delivery.Status
	run.Delivery.SentAt = req.Delivery.SentAt
	run.Delivery.Recipients = req.Delivery.Recipients
	run.Delivery.FailureReason = req.Delivery.FailureReason

	if err := h.runs.Complete(c.Request.Context(), run); err != nil {
		if errors.Is(err, domain.ErrRunAlreadyClosed) {
			c.JSON(http.StatusConflict, gin.H{"error": errRunAlreadyClosed})
			return
		}
		h.logger.Error("complete run", "run_id", runID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}

	h.advanceSchedule(c.Request.Context(), run, completed)

	c.JSON(http.StatusOK, run)
}

// advanceSchedule keeps an externally-executed run on the same liveness
// contract as the executor's own runs: the schedule moves forward even
// though this run never touched the executor. Failure here is logged, not
// surfaced to the caller — the run itself already closed successfully.
func (h *RunHandler) advanceSchedule(ctx context.Context, run *domain.Run, firedAt time.Time) {
	entry, err := h.entries.GetByID(ctx, run.EntryID)
	if err != nil {
		h.logger.Error("get entry for schedule advance", "entry_id", run.EntryID, "error", err)
		return
	}

	next, ok := schedule.NextFiring(entry.Schedule, firedAt)
	var nextPtr *time.Time
	if ok {
		nextPtr = &next
	}
	if err := h.entries.Advance(ctx, entry.ID, firedAt, nextPtr); err != nil {
		h.logger.Error("advance entry schedule failed", "entry_id", entry.ID, "error", err)
	}
}
