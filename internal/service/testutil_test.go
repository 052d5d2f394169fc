package service

import (
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/Sam-arojo/Protrust/internal/model"
)

// setupTestDB opens an in-memory SQLite database with the full schema.
// A single connection keeps every goroutine on the same memory database.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatal("Failed to connect to test database:", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(1)
	}

	err = db.AutoMigrate(
		&model.Issuer{},
		&model.Batch{},
		&model.Code{},
		&model.VerificationAttempt{},
		&model.IssuerSession{},
		&model.OperationLog{},
	)
	if err != nil {
		t.Fatal("Failed to migrate test schema:", err)
	}
	return db
}

func createTestIssuer(t *testing.T, db *gorm.DB) *model.Issuer {
	t.Helper()
	issuer := &model.Issuer{Username: "acme", PasswordHash: "x"}
	if err := db.Create(issuer).Error; err != nil {
		t.Fatal("Failed to create test issuer:", err)
	}
	return issuer
}

func createTestBatch(t *testing.T, db *gorm.DB, issuerID string, quantity int) *model.Batch {
	t.Helper()
	batch := &model.Batch{
		IssuerID:          issuerID,
		ProductName:       "Paracetamol 500mg",
		Category:          "pharma",
		RequestedQuantity: quantity,
		Status:            model.BatchStatusGenerating,
	}
	if err := db.Create(batch).Error; err != nil {
		t.Fatal("Failed to create test batch:", err)
	}
	return batch
}
