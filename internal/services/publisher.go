package services

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/classpulse/backend/internal/database"
	"github.com/classpulse/backend/internal/engine"
	"github.com/classpulse/backend/internal/models"
)

// PublishNotification pushes a notification onto the live Redis channel
// for its audience. Publish failures are logged, not returned: the record
// is already persisted and every subscriber recovers it on the next
// baseline fetch.
func PublishNotification(notification models.Notification) {
	payload, err := json.Marshal(notification)
	if err != nil {
		log.Printf("ERROR: Failed to marshal notification %s for publish: %v", notification.ID, err)
		return
	}

	channel := engine.BroadcastChannel
	if notification.UserID != nil {
		channel = engine.UserChannel(*notification.UserID)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := database.Redis.Publish(ctx, channel, payload).Err(); err != nil {
		log.Printf("ERROR: Failed to publish notification %s to %s: %v", notification.ID, channel, err)
	}
}
