package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Sam-arojo/Protrust/internal/model"
)

// MaxBatchQuantity bounds a single batch request. Larger runs are split by
// the caller into multiple batches.
const MaxBatchQuantity = 100000

// BatchParams carries the issuer-facing fields of a batch request.
type BatchParams struct {
	ProductName       string
	Category          string
	ProductCode       *string
	ManufacturingDate *time.Time
	ExpiringDate      *time.Time
	Quantity          int
	CustomBatchID     string
}

// BatchService owns the batch lifecycle: creation with a synchronous
// generation budget, and resumable advancement toward the requested quantity.
type BatchService struct {
	db         *gorm.DB
	gen        *CodeGenerator
	inserter   *BulkInserter
	notifier   *Notifier
	syncBudget int
}

func NewBatchService(db *gorm.DB, gen *CodeGenerator, inserter *BulkInserter, notifier *Notifier, syncBudget int) *BatchService {
	if syncBudget <= 0 {
		syncBudget = 10000
	}
	return &BatchService{db: db, gen: gen, inserter: inserter, notifier: notifier, syncBudget: syncBudget}
}

// CreateBatch persists the batch record and synchronously generates up to the
// sync budget before returning, so small and medium batches complete within
// one request cycle. Any remainder is left for the scheduler.
func (s *BatchService) CreateBatch(ctx context.Context, issuerID string, p BatchParams) (*model.Batch, error) {
	if p.Quantity < 1 || p.Quantity > MaxBatchQuantity {
		return nil, fmt.Errorf("quantity must be between 1 and %d", MaxBatchQuantity)
	}

	batch := &model.Batch{
		IssuerID:          issuerID,
		ProductName:       p.ProductName,
		Category:          p.Category,
		ProductCode:       p.ProductCode,
		ManufacturingDate: p.ManufacturingDate,
		ExpiringDate:      p.ExpiringDate,
		RequestedQuantity: p.Quantity,
		Status:            model.BatchStatusGenerating,
	}
	if p.CustomBatchID != "" {
		batch.ID = p.CustomBatchID
	}
	if err := s.db.Create(batch).Error; err != nil {
		return nil, fmt.Errorf("create batch: %w", err)
	}

	if _, err := s.Advance(ctx, batch, s.syncBudget); err != nil {
		// Partial progress is not a hard failure for the issuer: the batch
		// stays generating and the scheduler heals the shortfall.
		zap.L().Warn("synchronous generation incomplete",
			zap.String("batch_id", batch.ID),
			zap.Error(err))
	}

	if err := s.db.First(batch, "id = ?", batch.ID).Error; err != nil {
		return nil, err
	}
	return batch, nil
}

// Advance generates and inserts up to budget codes toward the batch target,
// then flips the batch to complete when the durable counter reaches the
// requested quantity. It is safe to call any number of times; a complete
// batch is a no-op. Returns the number of codes inserted this call.
func (s *BatchService) Advance(ctx context.Context, batch *model.Batch, budget int) (int, error) {
	remaining := batch.RequestedQuantity - batch.CodesGenerated
	if remaining <= 0 || batch.Status == model.BatchStatusComplete {
		return 0, s.markCompleteIfDone(batch.ID)
	}
	if budget > 0 && remaining > budget {
		remaining = budget
	}

	candidates, err := s.gen.Generate(remaining)
	if err != nil {
		return 0, fmt.Errorf("generate candidates: %w", err)
	}

	inserted, insertErr := s.inserter.Insert(ctx, batch.ID, batch.IssuerID, candidates)
	if err := s.markCompleteIfDone(batch.ID); err != nil {
		return inserted, err
	}
	return inserted, insertErr
}

// markCompleteIfDone flips generating batches whose counter reached the
// target. Conditioned on the stored status so the transition fires once.
func (s *BatchService) markCompleteIfDone(batchID string) error {
	res := s.db.Model(&model.Batch{}).
		Where("id = ? AND status = ? AND codes_generated >= requested_quantity", batchID, model.BatchStatusGenerating).
		Update("status", model.BatchStatusComplete)
	if res.Error != nil {
		return fmt.Errorf("mark complete: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		zap.L().Info("batch complete", zap.String("batch_id", batchID))
		if s.notifier != nil {
			s.notifier.BatchComplete(batchID)
		}
	}
	return nil
}
