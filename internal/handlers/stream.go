package handlers

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/classpulse/backend/internal/config"
	"github.com/classpulse/backend/internal/database"
	"github.com/classpulse/backend/internal/engine"
	"github.com/classpulse/backend/internal/middleware"
	"github.com/classpulse/backend/internal/models"
	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"
)

// StreamHandler runs one notification engine per connected session and
// streams its presentation events over SSE.
type StreamHandler struct {
	cfg *config.Config
}

// NewStreamHandler creates a new stream handler
func NewStreamHandler(cfg *config.Config) *StreamHandler {
	return &StreamHandler{cfg: cfg}
}

// Stream opens the per-session event stream. The engine is created on
// connect and stopped when the client goes away, so a reconnecting tab
// never accumulates duplicate subscriptions.
func (h *StreamHandler) Stream(c *fiber.Ctx) error {
	userID := middleware.GetCurrentUserID(c)

	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	limit := h.cfg.BaselineLimit

	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		eng, err := engine.New(engine.Config{
			UserID:      userID,
			Baseline:    &dbBaseline{userID: userID, limit: limit},
			Transport:   engine.NewRedisTransport(database.Redis),
			Writeback:   &dbWriteback{userID: userID},
			Releases:    &dbReleases{},
			Preferences: &dbPreferences{userID: userID},
		})
		if err != nil {
			log.Printf("ERROR: Failed to assemble session engine for user %d: %v", userID, err)
			return
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		if err := eng.Start(ctx); err != nil {
			log.Printf("ERROR: Failed to start session engine for user %d: %v", userID, err)
			return
		}
		defer eng.Stop()

		// Initial state so the client renders without waiting for a change
		snap := eng.Snapshot()
		if err := writeSSE(w, engine.Event{Kind: engine.EventState, State: &snap}); err != nil {
			return
		}

		keepalive := time.NewTicker(25 * time.Second)
		defer keepalive.Stop()

		for {
			select {
			case ev := <-eng.Events():
				if err := writeSSE(w, ev); err != nil {
					return
				}
			case <-keepalive.C:
				if _, err := fmt.Fprint(w, ": keepalive\n\n"); err != nil {
					return
				}
				if err := w.Flush(); err != nil {
					return
				}
			}
		}
	}))

	return nil
}

func writeSSE(w *bufio.Writer, ev engine.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Kind, data); err != nil {
		return err
	}
	return w.Flush()
}

// toEngineNotification converts a persisted row to the engine value type.
func toEngineNotification(m models.Notification) engine.Notification {
	return engine.Notification{
		ID:             m.ID,
		Title:          m.Title,
		Message:        m.Message,
		Type:           m.Type,
		Priority:       engine.Priority(m.Priority),
		Link:           m.Link,
		Sound:          m.Sound,
		IsRead:         m.IsRead,
		IsAcknowledged: m.IsAcknowledged,
		CreatedAt:      m.CreatedAt,
	}
}

// dbBaseline serves the baseline fetch straight from Postgres for
// in-process sessions.
type dbBaseline struct {
	userID uint
	limit  int
}

func (b *dbBaseline) FetchBaseline(ctx context.Context) ([]engine.Notification, error) {
	var rows []models.Notification
	err := userScope(b.userID).WithContext(ctx).
		Order("created_at DESC").
		Limit(b.limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]engine.Notification, 0, len(rows))
	for _, row := range rows {
		out = append(out, toEngineNotification(row))
	}
	return out, nil
}

// dbWriteback persists read/acknowledge mutations and republishes the
// updated records so every session of the user converges.
type dbWriteback struct {
	userID uint
}

func (wb *dbWriteback) MarkRead(ctx context.Context, id string) error {
	err := userScope(wb.userID).WithContext(ctx).
		Where("id = ?", id).
		Update("is_read", true).Error
	if err != nil {
		return err
	}
	publishUpdated(wb.userID, id)
	return nil
}

func (wb *dbWriteback) MarkAllRead(ctx context.Context) error {
	var ids []string
	userScope(wb.userID).WithContext(ctx).
		Where("is_read = ?", false).
		Pluck("id", &ids)

	err := userScope(wb.userID).WithContext(ctx).
		Where("is_read = ?", false).
		Update("is_read", true).Error
	if err != nil {
		return err
	}
	for _, id := range ids {
		publishUpdated(wb.userID, id)
	}
	return nil
}

func (wb *dbWriteback) Acknowledge(ctx context.Context, id string) error {
	var notification models.Notification
	if err := userScope(wb.userID).WithContext(ctx).Where("id = ?", id).First(&notification).Error; err != nil {
		return err
	}
	if notification.Priority != models.PriorityCritical {
		return fmt.Errorf("notification %s is not critical", id)
	}
	if notification.IsAcknowledged {
		return nil
	}
	now := time.Now()
	err := database.DB.WithContext(ctx).Model(&notification).Updates(map[string]interface{}{
		"is_acknowledged": true,
		"acknowledged_at": now,
	}).Error
	if err != nil {
		return err
	}
	publishUpdated(wb.userID, id)
	return nil
}

// dbReleases reads the latest release through the Redis cache.
type dbReleases struct{}

func (r *dbReleases) LatestRelease(ctx context.Context) (*engine.Release, error) {
	var release models.Release
	if err := database.CacheGet(database.CacheKeyLatestRelease, &release); err != nil {
		if err := database.DB.WithContext(ctx).Order("released_at DESC").First(&release).Error; err != nil {
			return nil, nil // no release published yet
		}
		database.CacheSet(database.CacheKeyLatestRelease, release, database.CacheTTLRelease)
	}
	return &engine.Release{
		Version:    release.Version,
		Title:      release.Title,
		Notes:      release.Notes,
		ReleasedAt: release.ReleasedAt,
	}, nil
}

// dbPreferences persists the per-user markers.
type dbPreferences struct {
	userID uint
}

func (p *dbPreferences) Load(ctx context.Context) (engine.Prefs, error) {
	var pref models.UserPreference
	if err := database.DB.WithContext(ctx).Where("user_id = ?", p.userID).First(&pref).Error; err != nil {
		return engine.Prefs{}, nil
	}
	return engine.Prefs{LastSeenVersion: pref.LastSeenVersion, Muted: pref.Muted}, nil
}

func (p *dbPreferences) SetLastSeenVersion(ctx context.Context, version string) error {
	return p.update(ctx, map[string]interface{}{"last_seen_version": version})
}

func (p *dbPreferences) SetMuted(ctx context.Context, muted bool) error {
	return p.update(ctx, map[string]interface{}{"muted": muted})
}

func (p *dbPreferences) update(ctx context.Context, updates map[string]interface{}) error {
	var pref models.UserPreference
	if err := database.DB.WithContext(ctx).Where("user_id = ?", p.userID).First(&pref).Error; err != nil {
		pref = models.UserPreference{UserID: p.userID}
		if err := database.DB.WithContext(ctx).Create(&pref).Error; err != nil {
			return err
		}
	}
	return database.DB.WithContext(ctx).Model(&pref).Updates(updates).Error
}
