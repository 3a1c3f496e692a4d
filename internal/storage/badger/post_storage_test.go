package badger

import (
	"context"
	"testing"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/nuntius/internal/models"
)

func TestPostAppendAndLookup(t *testing.T) {
	db := newTestDB(t)
	storage := NewPostStorage(db, arbor.NewLogger())
	ctx := context.Background()

	record := models.PostRecord{
		ItemID:         "rss:item-1",
		PlatformPostID: "1234567890",
		Text:           "Payrolls beat expectations. $SPY BUY",
		Instrument:     "SPY",
		Action:         models.ActionBuy,
		Sentiment:      models.SentimentPositive,
		PostedAt:       time.Now(),
	}
	if err := storage.Append(ctx, record); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	got, err := storage.GetByItemID(ctx, "rss:item-1")
	if err != nil {
		t.Fatalf("GetByItemID failed: %v", err)
	}
	if got == nil {
		t.Fatal("Expected post record for item")
	}
	if got.ID == "" {
		t.Error("Expected generated post id")
	}
	if got.Instrument != "SPY" {
		t.Errorf("Expected instrument SPY, got %s", got.Instrument)
	}

	missing, err := storage.GetByItemID(ctx, "rss:never-posted")
	if err != nil {
		t.Fatalf("GetByItemID failed: %v", err)
	}
	if missing != nil {
		t.Error("Expected nil for unposted item")
	}
}

func TestPostRecentAndCountSince(t *testing.T) {
	db := newTestDB(t)
	storage := NewPostStorage(db, arbor.NewLogger())
	ctx := context.Background()

	base := time.Now().Add(-3 * time.Hour)
	for i, itemID := range []string{"rss:a", "rss:b", "rss:c"} {
		record := models.PostRecord{
			ItemID:   itemID,
			Text:     "post " + itemID,
			PostedAt: base.Add(time.Duration(i) * time.Hour),
		}
		if err := storage.Append(ctx, record); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	recent, err := storage.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("Expected 2 records, got %d", len(recent))
	}
	if recent[0].ItemID != "rss:c" {
		t.Errorf("Expected newest record first, got %s", recent[0].ItemID)
	}

	count, err := storage.CountSince(ctx, base.Add(30*time.Minute))
	if err != nil {
		t.Fatalf("CountSince failed: %v", err)
	}
	if count != 2 {
		t.Errorf("Expected 2 posts since cutoff, got %d", count)
	}
}
