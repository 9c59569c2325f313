package audit_test

import (
	"context"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/p-n-ai/aptis-ingest/internal/audit"
	"github.com/p-n-ai/aptis-ingest/internal/platform/config"
	"github.com/p-n-ai/aptis-ingest/internal/platform/database"
)

func TestMemoryEventLogger_LogEvent(t *testing.T) {
	logger := audit.NewMemoryEventLogger()

	err := logger.LogEvent(audit.Event{
		SessionID: "s-1",
		Author:    "teacher-1",
		EventType: audit.EventIngestAccepted,
		Data: map[string]any{
			"format": "ordering",
		},
	})
	if err != nil {
		t.Fatalf("LogEvent() error = %v", err)
	}

	events := logger.Events()
	if len(events) != 1 {
		t.Fatalf("len(events) = %d, want 1", len(events))
	}
	if events[0].EventType != audit.EventIngestAccepted {
		t.Errorf("EventType = %q, want %q", events[0].EventType, audit.EventIngestAccepted)
	}
	if events[0].CreatedAt.IsZero() {
		t.Error("CreatedAt should be set")
	}
}

func TestMemoryEventLogger_RequiresType(t *testing.T) {
	if err := audit.NewMemoryEventLogger().LogEvent(audit.Event{SessionID: "s-1"}); err == nil {
		t.Fatal("expected error for missing event type")
	}
}

func TestNopEventLogger(t *testing.T) {
	var logger audit.EventLogger = audit.NopEventLogger{}
	if err := logger.LogEvent(audit.Event{}); err != nil {
		t.Errorf("LogEvent() error = %v", err)
	}
}

func TestPostgresEventLogger_NilPool(t *testing.T) {
	logger := audit.NewPostgresEventLogger(nil)

	if err := logger.LogEvent(audit.Event{SessionID: "s-1", EventType: audit.EventSessionEdited}); err == nil {
		t.Fatal("expected error for nil pool")
	}
	if err := logger.EnsureSchema(t.Context()); err == nil {
		t.Fatal("expected error for nil pool")
	}
}

func TestPostgresEventLogger_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping postgres container test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	ctr, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("aptis"),
		postgres.WithUsername("aptis"),
		postgres.WithPassword("aptis"),
		postgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, ctr)
	if err != nil {
		t.Fatalf("starting postgres: %v", err)
	}

	url, err := ctr.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("ConnectionString() error = %v", err)
	}
	db, err := database.New(ctx, config.DatabaseConfig{URL: url, MaxConns: 4, MinConns: 1})
	if err != nil {
		t.Fatalf("database.New() error = %v", err)
	}
	defer db.Close()

	logger := audit.NewPostgresEventLogger(db.Pool)
	if err := logger.EnsureSchema(ctx); err != nil {
		t.Fatalf("EnsureSchema() error = %v", err)
	}
	// A second call is a no-op.
	if err := logger.EnsureSchema(ctx); err != nil {
		t.Fatalf("EnsureSchema() again error = %v", err)
	}

	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	events := []audit.Event{
		{SessionID: "s-1", Author: "t-1", EventType: audit.EventIngestAccepted, Data: map[string]any{"format": "lecture"}, CreatedAt: base},
		{EventType: audit.EventIngestRejected, Data: map[string]any{"error": "Invalid file format"}, CreatedAt: base},
		{SessionID: "s-1", Author: "t-1", EventType: audit.EventBankPublished, CreatedAt: base.Add(time.Minute)},
	}
	for _, e := range events {
		if err := logger.LogEvent(e); err != nil {
			t.Fatalf("LogEvent(%s) error = %v", e.EventType, err)
		}
	}

	got, err := logger.SessionEvents(ctx, "s-1")
	if err != nil {
		t.Fatalf("SessionEvents() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len(events) = %d, want 2", len(got))
	}
	if got[0].EventType != audit.EventIngestAccepted || got[1].EventType != audit.EventBankPublished {
		t.Errorf("event order = %q, %q", got[0].EventType, got[1].EventType)
	}
	if got[0].Data["format"] != "lecture" {
		t.Errorf("Data = %v, want format=lecture", got[0].Data)
	}
	if got[0].Author != "t-1" {
		t.Errorf("Author = %q, want t-1", got[0].Author)
	}
	if !got[1].CreatedAt.Equal(base.Add(time.Minute)) {
		t.Errorf("CreatedAt = %v", got[1].CreatedAt)
	}
}
