package requests

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lexbridge/lexbridge-backend/pkg/models"
)

// ResolveLawyerRef maps a caller-supplied lawyer reference to the canonical
// user ID. The reference may already be a user ID (role = lawyer) or it may
// be a lawyer-profile ID; profile IDs are translated through the profile's
// user_id link. Resolution happens once, at request creation — existing rows
// are never re-resolved, so a profile relinked afterwards stays stale.
func ResolveLawyerRef(db *gorm.DB, ref string) (uuid.UUID, error) {
	id, err := uuid.Parse(ref)
	if err != nil {
		return uuid.Nil, fiber.NewError(fiber.StatusBadRequest, "invalid lawyer reference")
	}

	var cnt int64
	if err := db.Model(&models.User{}).
		Where("id = ? AND role = ?", id, models.RoleLawyer).
		Count(&cnt).Error; err != nil {
		return uuid.Nil, fiber.ErrInternalServerError
	}
	if cnt > 0 {
		// Already canonical
		return id, nil
	}

	var p models.LawyerProfile
	if err := db.First(&p, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return uuid.Nil, fiber.NewError(fiber.StatusNotFound, "lawyer "+ref+" not found")
		}
		return uuid.Nil, fiber.ErrInternalServerError
	}
	return p.UserID, nil
}
