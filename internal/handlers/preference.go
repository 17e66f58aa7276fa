package handlers

import (
	"github.com/classpulse/backend/internal/database"
	"github.com/classpulse/backend/internal/middleware"
	"github.com/classpulse/backend/internal/models"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// PreferenceHandler handles per-user notification preference requests
type PreferenceHandler struct{}

// NewPreferenceHandler creates a new preference handler
func NewPreferenceHandler() *PreferenceHandler {
	return &PreferenceHandler{}
}

func loadPreference(userID uint) models.UserPreference {
	var pref models.UserPreference
	if err := database.DB.Where("user_id = ?", userID).First(&pref).Error; err != nil {
		pref = models.UserPreference{UserID: userID}
	}
	return pref
}

// Get returns the current user's preferences
func (h *PreferenceHandler) Get(c *fiber.Ctx) error {
	userID := middleware.GetCurrentUserID(c)
	pref := loadPreference(userID)

	return c.JSON(fiber.Map{
		"success": true,
		"preferences": fiber.Map{
			"last_seen_version": pref.LastSeenVersion,
			"muted":             pref.Muted,
		},
	})
}

// UpdatePreferenceRequest represents a partial preference update
type UpdatePreferenceRequest struct {
	LastSeenVersion *string `json:"last_seen_version"`
	Muted           *bool   `json:"muted"`
}

// Update applies a partial preference update. Each field has a single
// writer path client-side; the server just persists whichever arrived.
func (h *PreferenceHandler) Update(c *fiber.Ctx) error {
	userID := middleware.GetCurrentUserID(c)

	var req UpdatePreferenceRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Invalid request body",
		})
	}

	if req.LastSeenVersion == nil && req.Muted == nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Nothing to update",
		})
	}

	updates := map[string]interface{}{}
	if req.LastSeenVersion != nil {
		updates["last_seen_version"] = *req.LastSeenVersion
	}
	if req.Muted != nil {
		updates["muted"] = *req.Muted
	}

	err := database.DB.Transaction(func(tx *gorm.DB) error {
		var pref models.UserPreference
		if err := tx.Where("user_id = ?", userID).First(&pref).Error; err != nil {
			pref = models.UserPreference{UserID: userID}
			if err := tx.Create(&pref).Error; err != nil {
				return err
			}
		}
		return tx.Model(&pref).Updates(updates).Error
	})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "Failed to update preferences",
		})
	}

	pref := loadPreference(userID)
	return c.JSON(fiber.Map{
		"success": true,
		"preferences": fiber.Map{
			"last_seen_version": pref.LastSeenVersion,
			"muted":             pref.Muted,
		},
	})
}
