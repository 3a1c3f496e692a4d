package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/nuntius/internal/common"
	"github.com/ternarybob/nuntius/internal/models"
)

func newTestTwitter(t *testing.T, handler http.Handler) *Twitter {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	config := &common.TwitterConfig{
		Enabled:     true,
		BaseURL:     server.URL,
		UploadURL:   server.URL,
		AccessToken: "token",
		RateLimit:   time.Nanosecond,
	}

	publisher, err := NewTwitter(config, false, arbor.NewLogger(), WithHTTPClient(server.Client()))
	if err != nil {
		t.Fatalf("NewTwitter failed: %v", err)
	}
	return publisher
}

func TestPublishSuccess(t *testing.T) {
	var gotBody tweetRequest

	publisher := newTestTwitter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/2/tweets" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &gotBody); err != nil {
			t.Errorf("Bad request body: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"data":{"id":"1901","text":"ok"}}`))
	}))

	id, err := publisher.Publish(context.Background(), "🚨 Payrolls beat\n$SPY", nil)
	if err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	if id != "1901" {
		t.Errorf("Expected post id 1901, got %s", id)
	}
	if !strings.Contains(gotBody.Text, "$SPY") {
		t.Errorf("Expected post text sent, got %q", gotBody.Text)
	}
	if gotBody.Media != nil {
		t.Error("Expected no media block for text-only post")
	}
}

func TestPublishWithMedia(t *testing.T) {
	var mediaIDs []string

	publisher := newTestTwitter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/1.1/media/upload.json":
			if err := r.ParseMultipartForm(1 << 20); err != nil {
				t.Errorf("Bad multipart form: %v", err)
			}
			if _, _, err := r.FormFile("media"); err != nil {
				t.Errorf("Missing media part: %v", err)
			}
			w.Write([]byte(`{"media_id_string":"m-77"}`))
		case "/2/tweets":
			var req tweetRequest
			json.NewDecoder(r.Body).Decode(&req)
			if req.Media != nil {
				mediaIDs = req.Media.MediaIDs
			}
			w.WriteHeader(http.StatusCreated)
			w.Write([]byte(`{"data":{"id":"1902"}}`))
		default:
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
	}))

	id, err := publisher.Publish(context.Background(), "post", []byte{0x89, 0x50, 0x4e, 0x47})
	if err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	if id != "1902" {
		t.Errorf("Expected post id 1902, got %s", id)
	}
	if len(mediaIDs) != 1 || mediaIDs[0] != "m-77" {
		t.Errorf("Expected media id m-77 attached, got %v", mediaIDs)
	}
}

func TestPublishMediaUploadFailureFallsBack(t *testing.T) {
	posted := false

	publisher := newTestTwitter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/1.1/media/upload.json":
			w.WriteHeader(http.StatusInternalServerError)
		case "/2/tweets":
			var req tweetRequest
			json.NewDecoder(r.Body).Decode(&req)
			if req.Media != nil {
				t.Error("Expected no media after failed upload")
			}
			posted = true
			w.WriteHeader(http.StatusCreated)
			w.Write([]byte(`{"data":{"id":"1903"}}`))
		}
	}))

	if _, err := publisher.Publish(context.Background(), "post", []byte{1, 2, 3}); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	if !posted {
		t.Error("Expected text-only post after media failure")
	}
}

func TestPublishRateLimited(t *testing.T) {
	publisher := newTestTwitter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "90")
		w.WriteHeader(http.StatusTooManyRequests)
	}))

	_, err := publisher.Publish(context.Background(), "post", nil)
	rateLimit, ok := models.AsRateLimit(err)
	if !ok {
		t.Fatalf("Expected RateLimitError, got %v", err)
	}
	if rateLimit.Service != "twitter" {
		t.Errorf("Expected service twitter, got %s", rateLimit.Service)
	}
	if rateLimit.RetryAfter != 90*time.Second {
		t.Errorf("Expected 90s retry-after, got %v", rateLimit.RetryAfter)
	}
}

func TestPublishServerError(t *testing.T) {
	publisher := newTestTwitter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))

	_, err := publisher.Publish(context.Background(), "post", nil)
	if !models.IsTransient(err) {
		t.Fatalf("Expected transient error for 5xx, got %v", err)
	}

	var publish *models.TransientPublishError
	if !errors.As(err, &publish) || publish.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("Expected status 503 in error, got %v", err)
	}
}

func TestPublishContentRejected(t *testing.T) {
	publisher := newTestTwitter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"detail":"duplicate content"}`))
	}))

	_, err := publisher.Publish(context.Background(), "post", nil)
	if err == nil {
		t.Fatal("Expected error for rejected post")
	}
	if models.IsTransient(err) {
		t.Errorf("Expected non-retryable error, got %v", err)
	}
	if _, ok := models.AsRateLimit(err); ok {
		t.Errorf("Expected non-rate-limit error, got %v", err)
	}
	if !strings.Contains(err.Error(), "duplicate content") {
		t.Errorf("Expected response detail in error, got %v", err)
	}
}

func TestPublishTestMode(t *testing.T) {
	config := &common.TwitterConfig{}
	publisher, err := NewTwitter(config, true, arbor.NewLogger())
	if err != nil {
		t.Fatalf("NewTwitter failed: %v", err)
	}

	first, err := publisher.Publish(context.Background(), "post one", nil)
	if err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	second, err := publisher.Publish(context.Background(), "post two", nil)
	if err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	if !strings.HasPrefix(first, "test-") {
		t.Errorf("Expected synthetic id, got %s", first)
	}
	if first == second {
		t.Error("Expected distinct synthetic ids")
	}
}

func TestPublishEmptyText(t *testing.T) {
	publisher, err := NewTwitter(&common.TwitterConfig{}, true, arbor.NewLogger())
	if err != nil {
		t.Fatalf("NewTwitter failed: %v", err)
	}
	if _, err := publisher.Publish(context.Background(), "   ", nil); err == nil {
		t.Error("Expected error for empty text")
	}
}

func TestCharacterLimitDefault(t *testing.T) {
	publisher, err := NewTwitter(&common.TwitterConfig{}, true, arbor.NewLogger())
	if err != nil {
		t.Fatalf("NewTwitter failed: %v", err)
	}
	if publisher.CharacterLimit() != 280 {
		t.Errorf("Expected default character limit 280, got %d", publisher.CharacterLimit())
	}
	if publisher.Name() != "twitter" {
		t.Errorf("Expected platform name twitter, got %s", publisher.Name())
	}
}
