package service

import (
	"context"
	"testing"
	"time"

	"github.com/Sam-arojo/Protrust/internal/model"
)

func TestTickResumesBatchesToCompletion(t *testing.T) {
	db := setupTestDB(t)
	issuer := createTestIssuer(t, db)
	batch := createTestBatch(t, db, issuer.ID, 1800)

	gen := NewCodeGenerator(12)
	inserter := NewBulkInserter(db, gen, 200, 2)
	svc := NewBatchService(db, gen, inserter, nil, 0)
	scheduler := NewScheduler(db, svc, 500, 5, 30*time.Second)

	totalGenerated := 0
	for i := 0; i < 10; i++ {
		summary, err := scheduler.Tick(context.Background())
		if err != nil {
			t.Fatal("Tick should not return an error:", err)
		}
		totalGenerated += summary.CodesGenerated

		var refreshed model.Batch
		db.First(&refreshed, "id = ?", batch.ID)
		if refreshed.Status == model.BatchStatusComplete {
			break
		}
	}

	var refreshed model.Batch
	db.First(&refreshed, "id = ?", batch.ID)
	if refreshed.Status != model.BatchStatusComplete {
		t.Fatalf("batch not complete after ticks: %d/%d", refreshed.CodesGenerated, refreshed.RequestedQuantity)
	}
	if refreshed.CodesGenerated != 1800 {
		t.Errorf("codes_generated = %d, expected 1800", refreshed.CodesGenerated)
	}
	if totalGenerated != 1800 {
		t.Errorf("ticks reported %d codes generated, expected 1800", totalGenerated)
	}

	// Global uniqueness across everything the ticks inserted.
	var distinct, total int64
	db.Model(&model.Code{}).Count(&total)
	db.Model(&model.Code{}).Distinct("value").Count(&distinct)
	if total != 1800 || distinct != total {
		t.Errorf("stored %d rows with %d distinct values, expected 1800/1800", total, distinct)
	}
}

func TestTickIsIdempotentAfterCompletion(t *testing.T) {
	db := setupTestDB(t)
	issuer := createTestIssuer(t, db)

	gen := NewCodeGenerator(12)
	inserter := NewBulkInserter(db, gen, 200, 2)
	svc := NewBatchService(db, gen, inserter, nil, 10000)
	scheduler := NewScheduler(db, svc, 500, 5, 30*time.Second)

	batch, err := svc.CreateBatch(context.Background(), issuer.ID, BatchParams{
		ProductName: "Serum",
		Category:    "cosmetics",
		Quantity:    50,
	})
	if err != nil {
		t.Fatal(err)
	}
	if batch.Status != model.BatchStatusComplete {
		t.Fatal("batch should complete synchronously")
	}

	for i := 0; i < 3; i++ {
		summary, err := scheduler.Tick(context.Background())
		if err != nil {
			t.Fatal(err)
		}
		if summary.BatchesProcessed != 0 || summary.CodesGenerated != 0 {
			t.Errorf("tick %d processed %d batches / %d codes on a complete-only system",
				i, summary.BatchesProcessed, summary.CodesGenerated)
		}
	}

	var refreshed model.Batch
	db.First(&refreshed, "id = ?", batch.ID)
	if refreshed.CodesGenerated != 50 {
		t.Errorf("codes_generated = %d, expected unchanged 50", refreshed.CodesGenerated)
	}
	var count int64
	db.Model(&model.Code{}).Where("batch_id = ?", batch.ID).Count(&count)
	if count != 50 {
		t.Errorf("stored codes = %d, expected unchanged 50", count)
	}
}

func TestTickSelectsOldestBatchesFirst(t *testing.T) {
	db := setupTestDB(t)
	issuer := createTestIssuer(t, db)

	older := createTestBatch(t, db, issuer.ID, 300)
	db.Model(&model.Batch{}).Where("id = ?", older.ID).
		Update("created_at", time.Now().Add(-time.Hour))
	newer := createTestBatch(t, db, issuer.ID, 300)

	gen := NewCodeGenerator(12)
	inserter := NewBulkInserter(db, gen, 200, 2)
	svc := NewBatchService(db, gen, inserter, nil, 0)
	// batchLimit 1: only the oldest batch may be touched this tick
	scheduler := NewScheduler(db, svc, 500, 1, 30*time.Second)

	summary, err := scheduler.Tick(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if summary.BatchesProcessed != 1 {
		t.Fatalf("processed %d batches, expected 1", summary.BatchesProcessed)
	}
	if summary.BatchIDs[0] != older.ID {
		t.Errorf("tick picked batch %s, expected oldest %s", summary.BatchIDs[0], older.ID)
	}

	var untouched model.Batch
	db.First(&untouched, "id = ?", newer.ID)
	if untouched.CodesGenerated != 0 {
		t.Errorf("newer batch advanced to %d, expected 0", untouched.CodesGenerated)
	}
}
