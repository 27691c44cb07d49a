package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"syscall"

	"academy/internal/config"
	"academy/internal/notifier"
	"academy/internal/queue"
	"academy/internal/store"
)

// Worker drains the notification queue and delivers notices to the
// academy messaging service. Delivery is best effort: a failed send is
// logged and dropped, never retried back into the check-in path.
func main() {
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("shutdown signal received")
		cancel()
	}()

	redisClient := store.NewRedis(cfg.RedisAddr)

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, "academy:notifications")
	}

	client := notifier.New(cfg.NotifyURL, cfg.NotifySkip)
	if !cfg.NotifySkip {
		if err := client.Health(ctx); err != nil {
			log.Printf("WARNING: messaging service not available: %v", err)
		} else {
			log.Println("messaging service connected")
		}
	}

	messages, err := q.Consume(ctx)
	if err != nil {
		log.Fatalf("queue consume init failed: %v", err)
	}

	log.Println("worker started, waiting for notices...")
	for msg := range messages {
		if msg.Type != queue.TypeLateCheckIn {
			continue
		}

		var notice notifier.Notice
		if err := json.Unmarshal(msg.Body, &notice); err != nil {
			log.Printf("malformed notice dropped: %v", err)
			continue
		}

		if err := client.Send(ctx, notice); err != nil {
			log.Printf("notice for %s/%s failed: %v", notice.StudentID, notice.ClassID, err)
			continue
		}
		log.Printf("notice delivered: %s late for %s on %s", notice.StudentID, notice.ClassID, notice.Date)
	}

	log.Println("worker stopped")
}
