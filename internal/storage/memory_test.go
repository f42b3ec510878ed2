package storage

import (
	"context"
	"testing"

	"github.com/haasonsaas/nexus-core/pkg/models"
)

func TestMemoryMetadataStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryMetadataStore()

	if _, ok, err := s.Get(ctx, "missing"); err != nil || ok {
		t.Fatalf("expected missing key to be absent, got ok=%v err=%v", ok, err)
	}

	if err := s.Set(ctx, "cron_sqlite_migrated", "true"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	v, ok, err := s.Get(ctx, "cron_sqlite_migrated")
	if err != nil || !ok || v != "true" {
		t.Fatalf("Get after Set = %q, %v, %v", v, ok, err)
	}
}

func TestMemoryHistoryStoreBoundedWindow(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryHistoryStore(3)

	for i := 0; i < 5; i++ {
		if err := s.Append(ctx, "sess-1", models.Message{Role: models.RoleUser, Content: "msg"}); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	recent, err := s.Recent(ctx, "sess-1", 0)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(recent) != 3 {
		t.Fatalf("expected window capped at 3, got %d", len(recent))
	}
}
