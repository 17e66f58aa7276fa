package handlers

import (
	"time"

	"github.com/classpulse/backend/internal/database"
	"github.com/classpulse/backend/internal/models"
	"github.com/classpulse/backend/internal/services"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// ReleaseHandler handles release and what's-new requests
type ReleaseHandler struct{}

// NewReleaseHandler creates a new release handler
func NewReleaseHandler() *ReleaseHandler {
	return &ReleaseHandler{}
}

// Latest returns the latest published release. Served from the Redis
// cache when warm; release is null when nothing has been published yet.
func (h *ReleaseHandler) Latest(c *fiber.Ctx) error {
	var release models.Release
	if err := database.CacheGet(database.CacheKeyLatestRelease, &release); err == nil {
		return c.JSON(fiber.Map{
			"success": true,
			"release": release,
		})
	}

	if err := database.DB.Order("released_at DESC").First(&release).Error; err != nil {
		return c.JSON(fiber.Map{
			"success": true,
			"release": nil,
		})
	}

	database.CacheSet(database.CacheKeyLatestRelease, release, database.CacheTTLRelease)

	return c.JSON(fiber.Map{
		"success": true,
		"release": release,
	})
}

// Get returns the release notes for one version
func (h *ReleaseHandler) Get(c *fiber.Ctx) error {
	version := c.Params("version")

	var release models.Release
	if err := database.CacheGet(database.CacheKeyRelease+version, &release); err == nil {
		return c.JSON(fiber.Map{
			"success": true,
			"release": release,
		})
	}

	if err := database.DB.Where("version = ?", version).First(&release).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"success": false,
			"message": "Release version not found",
		})
	}

	database.CacheSet(database.CacheKeyRelease+version, release, database.CacheTTLRelease)

	return c.JSON(fiber.Map{
		"success": true,
		"release": release,
	})
}

// CreateReleaseRequest represents the publish request
type CreateReleaseRequest struct {
	Version string `json:"version"`
	Title   string `json:"title"`
	Notes   string `json:"notes"`
}

// Create publishes a release. It also broadcasts an announcement
// notification so connected sessions learn about the version bump
// without waiting for their next gate check.
func (h *ReleaseHandler) Create(c *fiber.Ctx) error {
	var req CreateReleaseRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Invalid request body",
		})
	}

	if req.Version == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Version is required",
		})
	}

	release := models.Release{
		Version:    req.Version,
		Title:      req.Title,
		Notes:      req.Notes,
		ReleasedAt: time.Now(),
	}

	if err := database.DB.Create(&release).Error; err != nil {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"success": false,
			"message": "Release version already exists",
		})
	}

	database.InvalidateReleaseCache()

	announcement := models.Notification{
		ID:       uuid.New().String(),
		Title:    "New version " + release.Version + " available",
		Message:  release.Title,
		Type:     "announcement",
		Priority: models.PriorityNormal,
	}
	if err := database.DB.Create(&announcement).Error; err == nil {
		services.PublishNotification(announcement)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"release": release,
	})
}
