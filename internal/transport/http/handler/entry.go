package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/digestloop/core/internal/domain"
	"github.com/digestloop/core/internal/executor"
	"github.com/digestloop/core/internal/store"
	"github.com/gin-gonic/gin"
)

// dueListLimit bounds one listDue response — an external worker is
// expected to poll repeatedly rather than drain the whole backlog in one
// call.
const dueListLimit = 100

type EntryHandler struct {
	entries store.MonitoringStore
	exec    *executor.Executor
	logger  *slog.Logger
}

func NewEntryHandler(entries store.MonitoringStore, exec *executor.Executor, logger *slog.Logger) *EntryHandler {
	return &EntryHandler{entries: entries, exec: exec, logger: logger.With("component", "entry_handler")}
}

// Trigger opens a manual run for the entry and returns its ID immediately;
// the pipeline continues in the background.
func (h *EntryHandler) Trigger(c *gin.Context) {
	entryID := c.Param("id")

	entry, err := h.entries.GetByID(c.Request.Context(), entryID)
	if err != nil {
		if errors.Is(err, domain.ErrEntryNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": errEntryNotFound})
			return
		}
		h.logger.Error("get entry by id", "entry_id", entryID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}
	if entry.Status != domain.EntryActive {
		c.JSON(http.StatusConflict, gin.H{"error": errEntryNotActive})
		return
	}

	runID, err := h.exec.TriggerAsync(c.Request.Context(), entry)
	if err != nil {
		h.logger.Error("trigger run", "entry_id", entryID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"runId": runID})
}

// ListDue returns the entries an external worker may claim and execute
// itself, reporting results back through CompleteRun.
func (h *EntryHandler) ListDue(c *gin.Context) {
	due, err := h.entries.ClaimDue(c.Request.Context(), time.Now(), dueListLimit)
	if err != nil {
		h.logger.Error("list due entries", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": due})
}
