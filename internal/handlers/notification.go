package handlers

import (
	"time"

	"github.com/classpulse/backend/internal/config"
	"github.com/classpulse/backend/internal/database"
	"github.com/classpulse/backend/internal/middleware"
	"github.com/classpulse/backend/internal/models"
	"github.com/classpulse/backend/internal/services"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// NotificationHandler handles notification delivery and acknowledgment requests
type NotificationHandler struct {
	cfg *config.Config
}

// NewNotificationHandler creates a new notification handler
func NewNotificationHandler(cfg *config.Config) *NotificationHandler {
	return &NotificationHandler{cfg: cfg}
}

// userScope filters notifications visible to a user: their own rows plus
// broadcasts.
func userScope(userID uint) *gorm.DB {
	return database.DB.Model(&models.Notification{}).
		Where("user_id = ? OR user_id IS NULL", userID)
}

// publishUpdated republishes the current state of a record so live
// sessions of the same user converge without refetching the baseline.
func publishUpdated(userID uint, id string) {
	var notification models.Notification
	if err := userScope(userID).Where("id = ?", id).First(&notification).Error; err != nil {
		return
	}
	services.PublishNotification(notification)
}

// List returns the notification baseline for the current user,
// most-recent-first, bounded count.
func (h *NotificationHandler) List(c *fiber.Ctx) error {
	userID := middleware.GetCurrentUserID(c)

	limit := c.QueryInt("limit", h.cfg.BaselineLimit)
	if limit <= 0 || limit > 500 {
		limit = h.cfg.BaselineLimit
	}

	var notifications []models.Notification
	if err := userScope(userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&notifications).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "Failed to fetch notifications",
		})
	}

	return c.JSON(fiber.Map{
		"success":       true,
		"notifications": notifications,
	})
}

// UnreadCount returns the number of unread notifications for the badge
func (h *NotificationHandler) UnreadCount(c *fiber.Ctx) error {
	userID := middleware.GetCurrentUserID(c)

	var count int64
	userScope(userID).Where("is_read = ?", false).Count(&count)

	return c.JSON(fiber.Map{
		"success":      true,
		"unread_count": count,
	})
}

// MarkRead marks one notification as read. Idempotent: repeating the call
// for an already-read record succeeds.
func (h *NotificationHandler) MarkRead(c *fiber.Ctx) error {
	userID := middleware.GetCurrentUserID(c)
	id := c.Params("id")

	result := userScope(userID).
		Where("id = ?", id).
		Update("is_read", true)
	if result.Error != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "Failed to mark notification as read",
		})
	}
	if result.RowsAffected == 0 {
		// Distinguish unknown id from already-read
		var count int64
		userScope(userID).Where("id = ?", id).Count(&count)
		if count == 0 {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"success": false,
				"message": "Notification not found",
			})
		}
	}
	if result.RowsAffected > 0 {
		publishUpdated(userID, id)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Notification marked as read",
	})
}

// MarkAllRead marks every notification of the current user as read
func (h *NotificationHandler) MarkAllRead(c *fiber.Ctx) error {
	userID := middleware.GetCurrentUserID(c)

	var ids []string
	userScope(userID).Where("is_read = ?", false).Pluck("id", &ids)

	if err := userScope(userID).
		Where("is_read = ?", false).
		Update("is_read", true).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "Failed to mark notifications as read",
		})
	}
	for _, id := range ids {
		publishUpdated(userID, id)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "All notifications marked as read",
	})
}

// Acknowledge records the explicit acknowledgment of a critical
// notification. Idempotent; rejects non-critical ids.
func (h *NotificationHandler) Acknowledge(c *fiber.Ctx) error {
	userID := middleware.GetCurrentUserID(c)
	id := c.Params("id")

	var notification models.Notification
	if err := userScope(userID).Where("id = ?", id).First(&notification).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"success": false,
			"message": "Notification not found",
		})
	}

	if notification.Priority != models.PriorityCritical {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Only critical notifications require acknowledgment",
		})
	}

	if !notification.IsAcknowledged {
		now := time.Now()
		if err := database.DB.Model(&notification).Updates(map[string]interface{}{
			"is_acknowledged": true,
			"acknowledged_at": now,
		}).Error; err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"success": false,
				"message": "Failed to acknowledge notification",
			})
		}
		publishUpdated(userID, id)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Notification acknowledged",
	})
}

// CreateNotificationRequest represents the admin send request
type CreateNotificationRequest struct {
	UserID   *uint  `json:"user_id"` // nil = broadcast
	Title    string `json:"title"`
	Message  string `json:"message"`
	Type     string `json:"type"`
	Priority string `json:"priority"`
	Link     string `json:"link"`
	Sound    string `json:"sound"`
}

// Create persists a notification and publishes it to the live transport
func (h *NotificationHandler) Create(c *fiber.Ctx) error {
	var req CreateNotificationRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Invalid request body",
		})
	}

	if req.Title == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Title is required",
		})
	}
	if req.Type == "" {
		req.Type = "message"
	}
	if !models.ValidNotificationType(req.Type) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Unknown notification type: " + req.Type,
		})
	}
	if req.Priority == "" {
		req.Priority = string(models.PriorityNormal)
	}
	if !models.ValidPriority(req.Priority) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Priority must be normal, important or critical",
		})
	}

	notification := models.Notification{
		ID:       uuid.New().String(),
		UserID:   req.UserID,
		Title:    req.Title,
		Message:  req.Message,
		Type:     req.Type,
		Priority: models.NotificationPriority(req.Priority),
		Link:     req.Link,
		Sound:    req.Sound,
	}

	if err := database.DB.Create(&notification).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "Failed to create notification",
		})
	}

	// Publish to the live transport; subscribers that miss it will pick
	// the record up from their next baseline fetch
	services.PublishNotification(notification)

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success":      true,
		"notification": notification,
	})
}
