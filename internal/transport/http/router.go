package httptransport

import (
	"log/slog"

	"github.com/digestloop/core/internal/transport/http/handler"
	"github.com/digestloop/core/internal/transport/http/middleware"
	"github.com/gin-gonic/gin"
	sloggin "github.com/samber/slog-gin"
)

func NewRouter(logger *slog.Logger, entryHandler *handler.EntryHandler, runHandler *handler.RunHandler, jwtKey []byte) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Security())
	r.Use(sloggin.New(logger))
	r.Use(middleware.Metrics())

	principal := middleware.Principal(jwtKey)

	entries := r.Group("/entries", principal)
	entries.POST("/:id/trigger", entryHandler.Trigger)
	entries.GET("/due", entryHandler.ListDue)

	runs := r.Group("/runs", principal)
	runs.POST("/:id/complete", runHandler.CompleteRun)

	return r
}
