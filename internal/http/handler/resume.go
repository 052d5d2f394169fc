package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	basichttp "github.com/Sam-arojo/Protrust/internal/http"
	"github.com/Sam-arojo/Protrust/internal/model"
	"github.com/Sam-arojo/Protrust/internal/service"
)

// ResumeHandler exposes the scheduler tick to an external periodic trigger
// (cron, uptime pinger). The tick itself is idempotent, so spurious or
// repeated invocations are harmless.
type ResumeHandler struct {
	db        *gorm.DB
	scheduler *service.Scheduler
}

func NewResumeHandler(db *gorm.DB, scheduler *service.Scheduler) *ResumeHandler {
	return &ResumeHandler{db: db, scheduler: scheduler}
}

func (h *ResumeHandler) Resume(c *gin.Context) {
	summary, err := h.scheduler.Tick(c.Request.Context())
	if err != nil {
		basichttp.Fail(c, http.StatusInternalServerError, "INTERNAL_ERROR", "tick failed")
		return
	}

	if summary.BatchesProcessed > 0 {
		service.LogOperation(h.db, model.SchedulerActorID, "scheduler_tick", "batch", "", map[string]any{
			"batches_processed": summary.BatchesProcessed,
			"codes_generated":   summary.CodesGenerated,
		})
	}

	basichttp.OK(c, summary)
}
