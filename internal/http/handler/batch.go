package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/Sam-arojo/Protrust/internal/config"
	basichttp "github.com/Sam-arojo/Protrust/internal/http"
	mw "github.com/Sam-arojo/Protrust/internal/http/middleware"
	"github.com/Sam-arojo/Protrust/internal/model"
	"github.com/Sam-arojo/Protrust/internal/service"
	"github.com/Sam-arojo/Protrust/internal/utils"
)

type BatchHandler struct {
	db      *gorm.DB
	cfg     *config.Config
	batches *service.BatchService
}

func NewBatchHandler(db *gorm.DB, cfg *config.Config, batches *service.BatchService) *BatchHandler {
	return &BatchHandler{db: db, cfg: cfg, batches: batches}
}

type CreateBatchRequest struct {
	ProductName       string     `json:"product_name" binding:"required,min=1,max=200"`
	Category          string     `json:"category" binding:"required,min=1,max=100"`
	Quantity          int        `json:"quantity" binding:"required,min=1,max=100000"`
	ProductCode       *string    `json:"product_code"`
	ManufacturingDate *time.Time `json:"manufacturing_date"`
	ExpiringDate      *time.Time `json:"expiring_date"`
	CustomBatchID     string     `json:"custom_batch_id"`
}

func (h *BatchHandler) CreateBatch(c *gin.Context) {
	var req CreateBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		basichttp.Fail(c, http.StatusUnprocessableEntity, "VALIDATION_FAILED", "invalid request")
		return
	}
	if req.CustomBatchID != "" {
		normalized, err := utils.NormalizeUUID(req.CustomBatchID)
		if err != nil {
			basichttp.Fail(c, http.StatusUnprocessableEntity, "VALIDATION_FAILED", "custom_batch_id must be a UUID")
			return
		}
		req.CustomBatchID = normalized
	}

	issuerID := mw.IssuerID(c)
	batch, err := h.batches.CreateBatch(c.Request.Context(), issuerID, service.BatchParams{
		ProductName:       req.ProductName,
		Category:          req.Category,
		ProductCode:       req.ProductCode,
		ManufacturingDate: req.ManufacturingDate,
		ExpiringDate:      req.ExpiringDate,
		Quantity:          req.Quantity,
		CustomBatchID:     req.CustomBatchID,
	})
	if err != nil {
		basichttp.Fail(c, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to create batch")
		return
	}

	service.LogOperation(h.db, issuerID, "batch_create", "batch", batch.ID, map[string]any{
		"requested_quantity": batch.RequestedQuantity,
		"codes_generated":    batch.CodesGenerated,
	})

	basichttp.JSON(c, http.StatusCreated, gin.H{
		"batch_id":        batch.ID,
		"codes_generated": batch.CodesGenerated,
		"status":          batch.Status,
	})
}

func (h *BatchHandler) ListBatches(c *gin.Context) {
	issuerID := mw.IssuerID(c)
	page := queryInt(c, "page", 1)
	size := queryInt(c, "page_size", 20)
	if size > 100 {
		size = 100
	}

	var total int64
	var items []model.Batch
	q := h.db.Model(&model.Batch{}).Where("issuer_id = ? AND deleted_at IS NULL", issuerID)
	if status := c.Query("status"); status != "" {
		q = q.Where("status = ?", status)
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

func (h *BatchHandler) GetBatch(c *gin.Context) {
	issuerID := mw.IssuerID(c)
	id := c.Param("id")
	var batch model.Batch
	if err := h.db.First(&batch, "id = ? AND issuer_id = ? AND deleted_at IS NULL", id, issuerID).Error; err != nil {
		basichttp.Fail(c, http.StatusNotFound, "NOT_FOUND", "batch not found")
		return
	}
	basichttp.OK(c, batch)
}

// ListBatchCodes is a read-only view for export tooling; it never mutates
// code status.
func (h *BatchHandler) ListBatchCodes(c *gin.Context) {
	issuerID := mw.IssuerID(c)
	id := c.Param("id")

	var batch model.Batch
	if err := h.db.First(&batch, "id = ? AND issuer_id = ? AND deleted_at IS NULL", id, issuerID).Error; err != nil {
		basichttp.Fail(c, http.StatusNotFound, "NOT_FOUND", "batch not found")
		return
	}

	page := queryInt(c, "page", 1)
	size := queryInt(c, "page_size", 100)
	if size > 1000 {
		size = 1000
	}

	var total int64
	var items []model.Code
	q := h.db.Model(&model.Code{}).Where("batch_id = ?", id)
	if status := c.Query("status"); status != "" {
		q = q.Where("status = ?", status)
	}

	q.Count(&total)
	if err := q.Order("created_at ASC").Offset((page - 1) * size).Limit(size).Find(&items).Error; err != nil {
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

func queryInt(c *gin.Context, key string, def int) int {
	if v := c.Query(key); v != "" {
		var x int
		if _, err := fmt.Sscanf(v, "%d", &x); err == nil {
			return x
		}
	}
	return def
}
