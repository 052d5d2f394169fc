package service

import (
	"bytes"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Sam-arojo/Protrust/internal/model"
)

// Notifier posts batch-complete events to an optional webhook (the email/SMS
// collaborator). Delivery is fire-and-forget: callers never wait on it and a
// failed delivery only produces a log line.
type Notifier struct {
	db         *gorm.DB
	webhookURL string
	httpClient *http.Client
}

func NewNotifier(db *gorm.DB, webhookURL string) *Notifier {
	return &Notifier{
		db:         db,
		webhookURL: webhookURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

type batchCompleteEvent struct {
	Event          string `json:"event"`
	BatchID        string `json:"batch_id"`
	IssuerID       string `json:"issuer_id"`
	IssuerEmail    string `json:"issuer_email,omitempty"`
	ProductName    string `json:"product_name"`
	CodesGenerated int    `json:"codes_generated"`
}

// BatchComplete dispatches the event on its own goroutine.
func (n *Notifier) BatchComplete(batchID string) {
	if n == nil || n.webhookURL == "" {
		return
	}
	go func() {
		var batch model.Batch
		if err := n.db.Preload("Issuer").First(&batch, "id = ?", batchID).Error; err != nil {
			zap.L().Warn("notify: batch lookup failed", zap.String("batch_id", batchID), zap.Error(err))
			return
		}
		event := batchCompleteEvent{
			Event:          "batch_complete",
			BatchID:        batch.ID,
			IssuerID:       batch.IssuerID,
			ProductName:    batch.ProductName,
			CodesGenerated: batch.CodesGenerated,
		}
		if batch.Issuer != nil && batch.Issuer.Email != nil {
			event.IssuerEmail = *batch.Issuer.Email
		}

		b, _ := json.Marshal(event)
		resp, err := n.httpClient.Post(n.webhookURL, "application/json", bytes.NewReader(b))
		if err != nil {
			zap.L().Warn("notify: webhook delivery failed", zap.String("batch_id", batchID), zap.Error(err))
			return
		}
		defer resp.Body.Close()
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			zap.L().Warn("notify: webhook rejected event",
				zap.String("batch_id", batchID),
				zap.Int("status", resp.StatusCode))
		}
	}()
}
