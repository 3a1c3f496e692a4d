package badger

import (
	"context"
	"testing"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/nuntius/internal/models"
)

func TestCursorRoundTrip(t *testing.T) {
	db := newTestDB(t)
	storage := NewCursorStorage(db, arbor.NewLogger())
	ctx := context.Background()

	// A never-seen source yields a zero cursor with the name filled in
	cursor, err := storage.GetCursor(ctx, "financialjuice")
	if err != nil {
		t.Fatalf("GetCursor failed: %v", err)
	}
	if cursor.SourceName != "financialjuice" {
		t.Errorf("Expected source name on fresh cursor, got %q", cursor.SourceName)
	}
	if cursor.Cycles != 0 || !cursor.LastRunAt.IsZero() {
		t.Error("Expected zero-valued fresh cursor")
	}

	cursor.RecordSuccess(time.Now(), "rss:item-9")
	if err := storage.SaveCursor(ctx, cursor); err != nil {
		t.Fatalf("SaveCursor failed: %v", err)
	}

	got, err := storage.GetCursor(ctx, "financialjuice")
	if err != nil {
		t.Fatalf("GetCursor failed: %v", err)
	}
	if got.LastItemID != "rss:item-9" {
		t.Errorf("Expected last item id rss:item-9, got %q", got.LastItemID)
	}
	if got.Cycles != 1 {
		t.Errorf("Expected 1 cycle, got %d", got.Cycles)
	}
}
