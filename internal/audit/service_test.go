package audit

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/friendsincode/volund_planner/internal/events"
	"github.com/friendsincode/volund_planner/internal/models"
)

func TestService_LogsPublishedEvents(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&models.AuditLog{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	bus := events.NewBus()
	svc := NewService(db, bus, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go svc.Start(ctx)

	// Give Start a moment to subscribe before publishing.
	time.Sleep(50 * time.Millisecond)

	bus.Publish(events.EventAuditJobPlace, events.Payload{
		"user_id":     "u1",
		"user_email":  "planner@example.com",
		"ip_address":  "10.0.0.1",
		"entity_type": "job",
		"entity_id":   "j1",
		"lane_id":     "press-1",
	})

	deadline := time.Now().Add(2 * time.Second)
	var entry models.AuditLog
	for {
		err := db.First(&entry, "action = ?", "job.place").Error
		if err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("audit entry never written: %v", err)
		}
		time.Sleep(20 * time.Millisecond)
	}

	if entry.UserID != "u1" || entry.EntityID != "j1" {
		t.Fatalf("unexpected entry: %+v", entry)
	}
	if entry.IPAddress != "10.0.0.1" {
		t.Fatalf("expected ip extracted, got %q", entry.IPAddress)
	}
	if entry.Details == "" {
		t.Fatalf("expected remaining payload in details")
	}

	logs, total, err := svc.Query(context.Background(), QueryFilters{UserID: "u1"})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if total != 1 || len(logs) != 1 {
		t.Fatalf("expected one entry, got total=%d len=%d", total, len(logs))
	}
}
