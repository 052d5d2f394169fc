package service

import (
	"context"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Sam-arojo/Protrust/internal/model"
)

// TickSummary reports what one scheduler invocation accomplished.
type TickSummary struct {
	BatchesProcessed int      `json:"batches_processed"`
	CodesGenerated   int      `json:"codes_generated"`
	BatchesCompleted int      `json:"batches_completed"`
	BatchIDs         []string `json:"batch_ids"`
}

// Scheduler resumes unfinished batches. It holds no state of its own: each
// Tick reads durable progress, performs one bounded installment of work, and
// returns. Any external periodic trigger can drive it.
type Scheduler struct {
	db         *gorm.DB
	batches    *BatchService
	tickBudget int
	batchLimit int
	wallClock  time.Duration
}

func NewScheduler(db *gorm.DB, batches *BatchService, tickBudget, batchLimit int, wallClock time.Duration) *Scheduler {
	if tickBudget <= 0 {
		tickBudget = 10000
	}
	if batchLimit <= 0 {
		batchLimit = 5
	}
	return &Scheduler{db: db, batches: batches, tickBudget: tickBudget, batchLimit: batchLimit, wallClock: wallClock}
}

// Tick selects the oldest generating batches and advances each by up to the
// per-invocation budget under a shared wall-clock limit. Oldest-first keeps
// starving batches impossible.
func (s *Scheduler) Tick(ctx context.Context) (*TickSummary, error) {
	ctx, cancel := contextWithBudget(ctx, s.wallClock)
	defer cancel()

	var pending []model.Batch
	if err := s.db.
		Where("status = ? AND deleted_at IS NULL", model.BatchStatusGenerating).
		Order("created_at ASC").
		Limit(s.batchLimit).
		Find(&pending).Error; err != nil {
		return nil, err
	}

	summary := &TickSummary{}
	for i := range pending {
		batch := &pending[i]

		select {
		case <-ctx.Done():
			zap.L().Info("tick wall clock reached, deferring remaining batches",
				zap.Int("deferred", len(pending)-i))
			return summary, nil
		default:
		}

		inserted, err := s.batches.Advance(ctx, batch, s.tickBudget)
		if err != nil {
			zap.L().Error("batch resume installment failed",
				zap.String("batch_id", batch.ID),
				zap.Error(err))
		}

		summary.BatchesProcessed++
		summary.CodesGenerated += inserted
		summary.BatchIDs = append(summary.BatchIDs, batch.ID)

		var refreshed model.Batch
		if err := s.db.First(&refreshed, "id = ?", batch.ID).Error; err == nil &&
			refreshed.Status == model.BatchStatusComplete {
			summary.BatchesCompleted++
		}
	}

	if summary.BatchesProcessed > 0 {
		zap.L().Info("scheduler tick",
			zap.Int("batches", summary.BatchesProcessed),
			zap.Int("codes", summary.CodesGenerated),
			zap.Int("completed", summary.BatchesCompleted))
	}
	return summary, nil
}

// StartLoop drives Tick on an interval for deployments without an external
// cron. Returns a stop function.
func (s *Scheduler) StartLoop(interval time.Duration) func() {
	stop := make(chan struct{})
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if _, err := s.Tick(context.Background()); err != nil {
					zap.L().Error("scheduler tick failed", zap.Error(err))
				}
			case <-stop:
				return
			}
		}
	}()
	return func() { close(stop) }
}
