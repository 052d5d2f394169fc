package service

import (
	"context"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Sam-arojo/Protrust/internal/model"
)

// AttemptRecord is one verification attempt headed for the append-only log.
type AttemptRecord struct {
	CodeValue string
	Result    string
	IssuerID  *string
	BatchID   *string
	Meta      VerifyMeta
}

// AttemptLogger appends verification attempts for fraud analytics. Writes are
// best-effort: a failure is logged and swallowed, never surfaced to verify().
// When started, records flow through a buffered channel to a single writer
// goroutine so the public endpoint never blocks on the attempt table.
type AttemptLogger struct {
	db  *gorm.DB
	geo *GeoResolver
	ch  chan AttemptRecord
}

func NewAttemptLogger(db *gorm.DB, geo *GeoResolver) *AttemptLogger {
	return &AttemptLogger{db: db, geo: geo}
}

// Start switches the logger to asynchronous mode with the given buffer.
func (l *AttemptLogger) Start(buffer int) {
	if buffer <= 0 {
		buffer = 10000
	}
	l.ch = make(chan AttemptRecord, buffer)
	go func() {
		for rec := range l.ch {
			l.write(context.Background(), rec)
		}
	}()
}

// Log records the attempt. In asynchronous mode a full buffer drops the
// record rather than stalling verification.
func (l *AttemptLogger) Log(ctx context.Context, rec AttemptRecord) {
	if l.ch != nil {
		select {
		case l.ch <- rec:
		default:
			zap.L().Warn("attempt log buffer full, dropping record",
				zap.String("result", rec.Result))
		}
		return
	}
	l.write(ctx, rec)
}

func (l *AttemptLogger) write(ctx context.Context, rec AttemptRecord) {
	attempt := &model.VerificationAttempt{
		CodeValue: rec.CodeValue,
		Result:    rec.Result,
		IssuerID:  rec.IssuerID,
		BatchID:   rec.BatchID,
		SourceIP:  rec.Meta.SourceIP,
	}
	if rec.Meta.UserAgent != "" {
		ua := rec.Meta.UserAgent
		attempt.UserAgent = &ua
	}

	// Optional enrichment; an unresolvable address just leaves the location
	// columns unset.
	if l.geo != nil {
		if loc := l.geo.Resolve(ctx, rec.Meta.SourceIP); loc != nil {
			attempt.City = optional(loc.City)
			attempt.Region = optional(loc.Region)
			attempt.Country = optional(loc.Country)
		}
	}

	if err := l.db.Create(attempt).Error; err != nil {
		zap.L().Error("failed to append verification attempt",
			zap.String("result", rec.Result),
			zap.Error(err))
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
