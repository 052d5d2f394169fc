package service

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Sam-arojo/Protrust/internal/model"
)

// VerifyMeta describes the inbound scan request.
type VerifyMeta struct {
	SourceIP  string
	UserAgent string
	Method    string // "qr" for query-parameter scans, "manual" for typed entry
}

// ProductInfo is the display payload returned with a resolved code.
type ProductInfo struct {
	ProductName       string     `json:"product_name"`
	Category          string     `json:"category"`
	ProductCode       *string    `json:"product_code,omitempty"`
	ManufacturingDate *time.Time `json:"manufacturing_date,omitempty"`
	ExpiringDate      *time.Time `json:"expiring_date,omitempty"`
}

// VerifyResult is the structured outcome of a verification. Verify never
// fails: storage errors degrade to NotFound rather than leaking a 500 to the
// public endpoint.
type VerifyResult struct {
	Outcome    string       `json:"outcome"`
	Message    string       `json:"message"`
	Product    *ProductInfo `json:"product,omitempty"`
	VerifiedAt *time.Time   `json:"verified_at,omitempty"`
}

// Verifier is the code verification state machine. A code moves from active
// to verified exactly once; the transition is a conditional update so two
// simultaneous scans of a fresh code can never both win.
type Verifier struct {
	db       *gorm.DB
	gen      *CodeGenerator
	attempts *AttemptLogger
}

func NewVerifier(db *gorm.DB, gen *CodeGenerator, attempts *AttemptLogger) *Verifier {
	return &Verifier{db: db, gen: gen, attempts: attempts}
}

// Verify looks up the code and attempts the active→verified transition.
// Every attempt is logged regardless of path; logging is best-effort and can
// never change the outcome.
func (v *Verifier) Verify(ctx context.Context, rawCode string, meta VerifyMeta) *VerifyResult {
	value := strings.ToUpper(strings.TrimSpace(rawCode))

	if !v.gen.IsWellFormed(value) {
		v.attempts.Log(ctx, AttemptRecord{
			CodeValue: value,
			Result:    model.ResultNotFound,
			Meta:      meta,
		})
		return &VerifyResult{
			Outcome: model.ResultNotFound,
			Message: "This code is not recognized. The product may be counterfeit.",
		}
	}

	var code model.Code
	err := v.db.Preload("Batch").First(&code, "value = ?", value).Error
	if err != nil {
		if err != gorm.ErrRecordNotFound {
			zap.L().Error("code lookup failed", zap.Error(err))
		}
		v.attempts.Log(ctx, AttemptRecord{
			CodeValue: value,
			Result:    model.ResultNotFound,
			Meta:      meta,
		})
		return &VerifyResult{
			Outcome: model.ResultNotFound,
			Message: "This code is not recognized. The product may be counterfeit.",
		}
	}

	record := AttemptRecord{
		CodeValue: value,
		IssuerID:  &code.IssuerID,
		BatchID:   &code.BatchID,
		Meta:      meta,
	}
	product := productInfo(code.Batch)

	if code.Status == model.CodeStatusVerified {
		record.Result = model.ResultDuplicate
		v.attempts.Log(ctx, record)
		return duplicateResult(product, code.VerifiedAt)
	}

	// The critical section: condition on the stored status, not the value
	// read above. Zero rows affected means a concurrent scan won the race.
	now := time.Now()
	res := v.db.Model(&model.Code{}).
		Where("id = ? AND status = ?", code.ID, model.CodeStatusActive).
		Updates(map[string]interface{}{
			"status":              model.CodeStatusVerified,
			"verified_at":         now,
			"verification_method": meta.Method,
		})
	if res.Error != nil {
		zap.L().Error("verification update failed", zap.String("code_id", code.ID), zap.Error(res.Error))
		record.Result = model.ResultNotFound
		v.attempts.Log(ctx, record)
		return &VerifyResult{
			Outcome: model.ResultNotFound,
			Message: "Verification is temporarily unavailable. Please try again.",
		}
	}

	if res.RowsAffected == 0 {
		// Race lost: reload to surface the winner's timestamp.
		var winner model.Code
		var verifiedAt *time.Time
		if err := v.db.First(&winner, "id = ?", code.ID).Error; err == nil {
			verifiedAt = winner.VerifiedAt
		}
		record.Result = model.ResultDuplicate
		v.attempts.Log(ctx, record)
		return duplicateResult(product, verifiedAt)
	}

	record.Result = model.ResultSuccess
	v.attempts.Log(ctx, record)
	return &VerifyResult{
		Outcome:    model.ResultSuccess,
		Message:    "Genuine product. This code has now been used and cannot be verified again.",
		Product:    product,
		VerifiedAt: &now,
	}
}

func duplicateResult(product *ProductInfo, verifiedAt *time.Time) *VerifyResult {
	return &VerifyResult{
		Outcome:    model.ResultDuplicate,
		Message:    "This code was already verified. The product may be counterfeit or resealed.",
		Product:    product,
		VerifiedAt: verifiedAt,
	}
}

func productInfo(batch *model.Batch) *ProductInfo {
	if batch == nil {
		return nil
	}
	return &ProductInfo{
		ProductName:       batch.ProductName,
		Category:          batch.Category,
		ProductCode:       batch.ProductCode,
		ManufacturingDate: batch.ManufacturingDate,
		ExpiringDate:      batch.ExpiringDate,
	}
}
