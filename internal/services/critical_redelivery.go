package services

import (
	"log"
	"sync"
	"time"

	"github.com/classpulse/backend/internal/database"
	"github.com/classpulse/backend/internal/models"
)

// CriticalRedeliveryService periodically republishes critical notifications
// that are still unacknowledged, so a session that missed the original
// publish (offline, reconnecting) is confronted with the modal again
// without waiting for its next baseline fetch.
type CriticalRedeliveryService struct {
	interval  time.Duration
	maxAge    time.Duration
	stopChan  chan struct{}
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
}

// NewCriticalRedeliveryService creates a new redelivery service
func NewCriticalRedeliveryService(intervalSeconds int) *CriticalRedeliveryService {
	if intervalSeconds <= 0 {
		intervalSeconds = 300
	}
	return &CriticalRedeliveryService{
		interval: time.Duration(intervalSeconds) * time.Second,
		maxAge:   7 * 24 * time.Hour, // stop nagging about week-old criticals
		stopChan: make(chan struct{}),
	}
}

// Start begins the redelivery loop
func (s *CriticalRedeliveryService) Start() {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = true
	s.mu.Unlock()

	s.wg.Add(1)
	go s.run()

	log.Printf("CriticalRedeliveryService started (interval: %v)", s.interval)
}

// Stop stops the redelivery loop
func (s *CriticalRedeliveryService) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = false
	s.mu.Unlock()

	close(s.stopChan)
	s.wg.Wait()
	log.Println("CriticalRedeliveryService stopped")
}

func (s *CriticalRedeliveryService) run() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.redeliver()
		case <-s.stopChan:
			return
		}
	}
}

func (s *CriticalRedeliveryService) redeliver() {
	cutoff := time.Now().Add(-s.maxAge)

	var pending []models.Notification
	err := database.DB.
		Where("priority = ?", models.PriorityCritical).
		Where("is_acknowledged = ?", false).
		Where("created_at > ?", cutoff).
		Order("created_at ASC").
		Find(&pending).Error
	if err != nil {
		log.Printf("ERROR: Failed to load unacknowledged criticals for redelivery: %v", err)
		return
	}
	if len(pending) == 0 {
		return
	}

	for _, notification := range pending {
		PublishNotification(notification)
	}
	log.Printf("INFO: Redelivered %d unacknowledged critical notification(s)", len(pending))
}
