package utils

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lexbridge/lexbridge-backend/pkg/models"
)

// LogRequestHistory inserts an audit record into request_histories.
// Used to track status changes and actions on an engagement request.
// Errors are ignored on purpose (best-effort logging).
func LogRequestHistory(
	ctx context.Context,
	db *gorm.DB,
	requestID, actorID uuid.UUID,
	action string,
	oldS, newS models.RequestStatus,
	reason string,
) {
	_ = db.WithContext(ctx).Create(&models.RequestHistory{
		RequestID: requestID,
		ActorID:   actorID,
		Action:    action,
		OldStatus: oldS,
		NewStatus: newS,
		Reason:    reason,
		CreatedAt: time.Now(),
	}).Error
}
