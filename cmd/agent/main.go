package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/classpulse/backend/internal/engine"
	"github.com/redis/go-redis/v9"
)

// The agent is a headless notification session: it logs in against the
// API, runs the same engine the SSE stream uses and renders events on
// the terminal. Useful for kiosk displays and for exercising the
// delivery pipeline end to end without a browser.
func main() {
	apiURL := flag.String("api", "http://localhost:8080", "API base URL")
	username := flag.String("username", "", "login username")
	password := flag.String("password", "", "login password")
	redisAddr := flag.String("redis", "localhost:6379", "Redis address for live delivery")
	redisPassword := flag.String("redis-password", "", "Redis password")
	flag.Parse()

	if *username == "" || *password == "" {
		log.Fatal("both -username and -password are required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client := engine.NewAPIClient(*apiURL, "")
	if err := client.Login(ctx, *username, *password); err != nil {
		log.Fatalf("Login failed: %v", err)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     *redisAddr,
		Password: *redisPassword,
	})
	defer rdb.Close()

	eng, err := engine.New(engine.Config{
		UserID:      client.UserID(),
		Baseline:    client,
		Transport:   engine.NewRedisTransport(rdb),
		Writeback:   client,
		Releases:    client,
		Preferences: client,
	})
	if err != nil {
		log.Fatalf("Failed to assemble engine: %v", err)
	}

	if err := eng.Start(ctx); err != nil {
		log.Fatalf("Failed to start engine: %v", err)
	}
	defer eng.Stop()

	snap := eng.Snapshot()
	log.Printf("Connected as %s (%d notifications, %d unread)", *username, len(snap.Notifications), snap.UnreadCount)
	fmt.Println("Commands: ack | read <id> | read-all | mute | unmute | quit")

	go renderEvents(eng)
	go readCommands(ctx, eng, cancel)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case <-ctx.Done():
	}
	log.Println("Shutting down agent...")
}

func renderEvents(eng *engine.Engine) {
	for ev := range eng.Events() {
		switch ev.Kind {
		case engine.EventToast:
			duration := "sticky"
			if ev.DurationMS > 0 {
				duration = fmt.Sprintf("%dms", ev.DurationMS)
			}
			fmt.Printf("[toast %s] %s: %s\n", duration, ev.Notification.Title, ev.Notification.Message)
		case engine.EventSound:
			fmt.Printf("[sound] %s\n", ev.Sound)
		case engine.EventNative:
			fmt.Printf("[native] %s\n", ev.Notification.Title)
		case engine.EventCriticalShow:
			fmt.Printf("[CRITICAL] %s: %s (type 'ack' to acknowledge)\n", ev.Notification.Title, ev.Notification.Message)
		case engine.EventCriticalClose:
			fmt.Printf("[critical closed] %s\n", ev.Notification.ID)
		case engine.EventWhatsNew:
			fmt.Printf("[what's new] %s: %s\n", ev.Release.Version, ev.Release.Title)
		case engine.EventState:
			fmt.Printf("[state] %d unread, %d critical pending\n", ev.State.UnreadCount, len(ev.State.PendingCritical))
		}
	}
}

func readCommands(ctx context.Context, eng *engine.Engine, cancel context.CancelFunc) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "ack":
			current, _, ok := eng.CurrentCritical()
			if !ok {
				fmt.Println("no critical notification displayed")
				continue
			}
			if err := eng.Acknowledge(ctx, current.ID); err != nil {
				fmt.Printf("acknowledge failed: %v\n", err)
			}
		case "read":
			if len(fields) < 2 {
				fmt.Println("usage: read <id>")
				continue
			}
			eng.MarkAsRead(fields[1])
		case "read-all":
			eng.MarkAllAsRead()
		case "mute":
			eng.SetMuted(true)
		case "unmute":
			eng.SetMuted(false)
		case "quit":
			cancel()
			return
		default:
			fmt.Println("Commands: ack | read <id> | read-all | mute | unmute | quit")
		}
	}
}
