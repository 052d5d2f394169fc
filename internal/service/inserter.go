package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Sam-arojo/Protrust/internal/model"
)

// ErrReplacementExhausted is returned when the storage-collision replacement
// loop fails to converge. The affected values are dropped; the batch counter
// simply falls short and the next scheduler tick retries.
var ErrReplacementExhausted = errors.New("replacement rounds exhausted resolving code collisions")

const maxReplacementRounds = 5

// BulkInserter writes generated codes to storage in fixed-size chunks with a
// bounded worker pool. Before writing it screens candidates against existing
// rows so the unique index on codes.value stays a backstop, not the primary
// dedup mechanism.
type BulkInserter struct {
	db        *gorm.DB
	gen       *CodeGenerator
	chunkSize int
	workers   int
}

func NewBulkInserter(db *gorm.DB, gen *CodeGenerator, chunkSize, workers int) *BulkInserter {
	if chunkSize <= 0 {
		chunkSize = 500
	}
	if workers <= 0 {
		workers = 8
	}
	return &BulkInserter{db: db, gen: gen, chunkSize: chunkSize, workers: workers}
}

// Insert persists candidates as active codes for the batch and returns how
// many rows were actually written. Each successful chunk durably increments
// batches.codes_generated before the next chunk is considered, so an
// interrupted invocation never loses acknowledged progress.
func (bi *BulkInserter) Insert(ctx context.Context, batchID, issuerID string, candidates []string) (int, error) {
	values, err := bi.resolveCollisions(candidates)
	if err != nil && len(values) == 0 {
		return 0, err
	}

	chunks := chunkStrings(values, bi.chunkSize)
	jobs := make(chan []string, len(chunks))
	var inserted int64
	var wg sync.WaitGroup

	workers := bi.workers
	if workers > len(chunks) {
		workers = len(chunks)
	}
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for chunk := range jobs {
				if err := bi.writeChunk(batchID, issuerID, chunk); err != nil {
					// Skipped, not retried here: the shortfall leaves the
					// batch generating and the next tick picks it up.
					zap.L().Error("chunk insert failed, skipping",
						zap.String("batch_id", batchID),
						zap.Int("chunk_size", len(chunk)),
						zap.Error(err))
					continue
				}
				atomic.AddInt64(&inserted, int64(len(chunk)))
			}
		}()
	}

	for _, chunk := range chunks {
		select {
		case <-ctx.Done():
			// Budget reached: stop feeding, let in-flight chunks finish.
			goto done
		default:
		}
		jobs <- chunk
	}
done:
	close(jobs)
	wg.Wait()

	return int(inserted), err
}

// writeChunk inserts one chunk transactionally together with its progress
// increment. The increment uses a SQL expression rather than a read value so
// it stays monotonic no matter how invocations interleave, and it is refused
// when it would push the counter past requested_quantity: an installment
// working from a stale progress read then rolls its rows back instead of
// overshooting the batch.
func (bi *BulkInserter) writeChunk(batchID, issuerID string, chunk []string) error {
	return bi.db.Transaction(func(tx *gorm.DB) error {
		rows := make([]model.Code, len(chunk))
		for i, v := range chunk {
			rows[i] = model.Code{
				Value:    v,
				BatchID:  batchID,
				IssuerID: issuerID,
				Status:   model.CodeStatusActive,
			}
		}
		if err := tx.Create(&rows).Error; err != nil {
			return fmt.Errorf("insert chunk: %w", err)
		}
		res := tx.Model(&model.Batch{}).
			Where("id = ? AND status = ? AND codes_generated + ? <= requested_quantity",
				batchID, model.BatchStatusGenerating, len(chunk)).
			Update("codes_generated", gorm.Expr("codes_generated + ?", len(chunk)))
		if res.Error != nil {
			return fmt.Errorf("bump codes_generated: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("batch %s is complete or the chunk would exceed its requested quantity", batchID)
		}
		return nil
	})
}

// resolveCollisions screens candidates against storage and replaces the ones
// that already exist with freshly generated values, for a bounded number of
// rounds. Values it cannot clear are dropped and reported.
func (bi *BulkInserter) resolveCollisions(candidates []string) ([]string, error) {
	pending := candidates
	clean := make([]string, 0, len(candidates))
	seen := make(map[string]struct{}, len(candidates))
	for _, v := range candidates {
		seen[v] = struct{}{}
	}

	for round := 0; round <= maxReplacementRounds && len(pending) > 0; round++ {
		existing, err := bi.findExisting(pending)
		if err != nil {
			return clean, fmt.Errorf("collision probe: %w", err)
		}

		colliding := 0
		for _, v := range pending {
			if _, hit := existing[v]; !hit {
				clean = append(clean, v)
			} else {
				colliding++
			}
		}
		if colliding == 0 {
			return clean, nil
		}
		if round == maxReplacementRounds {
			break
		}

		zap.L().Warn("code collisions with existing storage, regenerating",
			zap.Int("count", colliding),
			zap.Int("round", round+1))

		replacements := make([]string, 0, colliding)
		for len(replacements) < colliding {
			code, err := bi.gen.GenerateOne()
			if err != nil {
				return clean, err
			}
			if _, dup := seen[code]; dup {
				continue
			}
			seen[code] = struct{}{}
			replacements = append(replacements, code)
		}
		pending = replacements
	}

	if len(pending) > 0 {
		return clean, fmt.Errorf("%w: %d values dropped", ErrReplacementExhausted, len(pending))
	}
	return clean, nil
}

func (bi *BulkInserter) findExisting(values []string) (map[string]struct{}, error) {
	existing := make(map[string]struct{})
	for _, probe := range chunkStrings(values, bi.chunkSize) {
		var hits []string
		if err := bi.db.Model(&model.Code{}).
			Where("value IN ?", probe).
			Pluck("value", &hits).Error; err != nil {
			return nil, err
		}
		for _, v := range hits {
			existing[v] = struct{}{}
		}
	}
	return existing, nil
}

func chunkStrings(values []string, size int) [][]string {
	if len(values) == 0 {
		return nil
	}
	chunks := make([][]string, 0, (len(values)+size-1)/size)
	for start := 0; start < len(values); start += size {
		end := start + size
		if end > len(values) {
			end = len(values)
		}
		chunks = append(chunks, values[start:end])
	}
	return chunks
}

// contextWithBudget wraps ctx with the per-invocation wall-clock budget used
// by batch creation and scheduler ticks.
func contextWithBudget(ctx context.Context, budget time.Duration) (context.Context, context.CancelFunc) {
	if budget <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, budget)
}
