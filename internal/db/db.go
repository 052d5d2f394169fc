package db

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/Sam-arojo/Protrust/internal/config"
	"github.com/Sam-arojo/Protrust/internal/model"
)

func Open(cfg *config.Config) (*gorm.DB, error) {
	if cfg.DBDsn == "" {
		return nil, fmt.Errorf("DB_DSN required")
	}

	// Configure GORM logger to reduce noise and ignore `record not found`
	// situations, which are expected in flows like verifying an unknown code.
	newLogger := logger.New(
		log.New(os.Stdout, "", log.LstdFlags),
		logger.Config{
			SlowThreshold:             2 * time.Second,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  true,
		},
	)

	var db *gorm.DB
	var err error
	switch cfg.DBDriver {
	case "sqlite":
		// Create directory for database file if it doesn't exist
		dbDir := filepath.Dir(cfg.DBDsn)
		if mkErr := os.MkdirAll(dbDir, 0755); mkErr != nil {
			return nil, fmt.Errorf("failed to create database directory %s: %w", dbDir, mkErr)
		}
		db, err = gorm.Open(sqlite.Open(cfg.DBDsn), &gorm.Config{Logger: newLogger})
	case "mysql":
		db, err = gorm.Open(mysql.Open(cfg.DBDsn), &gorm.Config{Logger: newLogger})
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q (sqlite or mysql)", cfg.DBDriver)
	}
	if err != nil {
		return nil, err
	}

	if cfg.DBDriver == "sqlite" {
		// Tune SQLite to alleviate write contention: WAL + busy_timeout
		_ = db.Exec("PRAGMA journal_mode=WAL;").Error
		_ = db.Exec("PRAGMA busy_timeout=10000;").Error
		_ = db.Exec("PRAGMA synchronous=NORMAL;").Error
		if sqlDB, err2 := db.DB(); err2 == nil {
			// For SQLite, a small number of conns is recommended
			sqlDB.SetMaxOpenConns(1)
			sqlDB.SetMaxIdleConns(1)
			sqlDB.SetConnMaxLifetime(0)
		}
	} else if sqlDB, err2 := db.DB(); err2 == nil {
		sqlDB.SetMaxOpenConns(32)
		sqlDB.SetMaxIdleConns(8)
		sqlDB.SetConnMaxLifetime(time.Hour)
	}
	return db, nil
}

func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&model.Issuer{},
		&model.Batch{},
		&model.Code{},
		&model.VerificationAttempt{},
		&model.IssuerSession{},
		&model.OperationLog{},
	)
}
