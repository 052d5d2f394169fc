package service

import (
	"encoding/json"

	"gorm.io/gorm"

	"github.com/Sam-arojo/Protrust/internal/model"
)

// LogOperation creates an audit record for issuer and scheduler actions.
// Best-effort: audit must never fail the operation it describes.
func LogOperation(db *gorm.DB, actorID, action, objectType, objectID string, metadata map[string]any) {
	var metaStr *string
	if metadata != nil {
		if b, err := json.Marshal(metadata); err == nil {
			s := string(b)
			metaStr = &s
		}
	}
	_ = db.Create(&model.OperationLog{
		ActorID:    actorID,
		Action:     action,
		ObjectType: objectType,
		ObjectID:   objectID,
		Metadata:   metaStr,
	}).Error
}
