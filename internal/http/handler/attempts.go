package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	basichttp "github.com/Sam-arojo/Protrust/internal/http"
	mw "github.com/Sam-arojo/Protrust/internal/http/middleware"
	"github.com/Sam-arojo/Protrust/internal/model"
)

// AttemptHandler exposes issuer-scoped fraud analytics over the append-only
// attempt log. The denormalized issuer_id column keeps these queries off the
// codes table entirely.
type AttemptHandler struct {
	db *gorm.DB
}

func NewAttemptHandler(db *gorm.DB) *AttemptHandler {
	return &AttemptHandler{db: db}
}

func (h *AttemptHandler) ListAttempts(c *gin.Context) {
	issuerID := mw.IssuerID(c)
	page := queryInt(c, "page", 1)
	size := queryInt(c, "page_size", 20)
	if size > 100 {
		size = 100
	}

	var total int64
	var items []model.VerificationAttempt
	q := h.db.Model(&model.VerificationAttempt{}).Where("issuer_id = ?", issuerID)
	if result := c.Query("result"); result != "" {
		q = q.Where("result = ?", result)
	}
	if batchID := c.Query("batch_id"); batchID != "" {
		q = q.Where("batch_id = ?", batchID)
	}

	q.Count(&total)
	if err := q.Order("created_at DESC").Offset((page - 1) * size).Limit(size).Find(&items).Error; err != nil {
		basichttp.Fail(c, http.StatusInternalServerError, "INTERNAL_ERROR", "query failed")
		return
	}

	basichttp.OK(c, gin.H{
		"total":     total,
		"items":     items,
		"page":      page,
		"page_size": size,
	})
}

// Summary returns verification counts by result plus recent duplicate scans,
// the primary counterfeit signal surfaced on issuer dashboards.
func (h *AttemptHandler) Summary(c *gin.Context) {
	issuerID := mw.IssuerID(c)

	type resultCount struct {
		Result string `json:"result"`
		Count  int64  `json:"count"`
	}
	var counts []resultCount
	if err := h.db.Model(&model.VerificationAttempt{}).
		Select("result, COUNT(1) as count").
		Where("issuer_id = ?", issuerID).
		Group("result").
		Scan(&counts).Error; err != nil {
		basichttp.Fail(c, http.StatusInternalServerError, "INTERNAL_ERROR", "query failed")
		return
	}

	byResult := gin.H{
		model.ResultSuccess:   int64(0),
		model.ResultDuplicate: int64(0),
		model.ResultNotFound:  int64(0),
	}
	for _, rc := range counts {
		byResult[rc.Result] = rc.Count
	}

	var recentDuplicates []model.VerificationAttempt
	h.db.Where("issuer_id = ? AND result = ? AND created_at > ?",
		issuerID, model.ResultDuplicate, time.Now().Add(-7*24*time.Hour)).
		Order("created_at DESC").
		Limit(20).
		Find(&recentDuplicates)

	basichttp.OK(c, gin.H{
		"by_result":         byResult,
		"recent_duplicates": recentDuplicates,
	})
}
