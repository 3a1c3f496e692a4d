// -----------------------------------------------------------------------
// Twitter Publisher - X API v2 posting with OAuth2 user context
// -----------------------------------------------------------------------

package publisher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/nuntius/internal/common"
	"github.com/ternarybob/nuntius/internal/interfaces"
	"github.com/ternarybob/nuntius/internal/models"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL   = "https://api.twitter.com"
	DefaultUploadURL = "https://upload.twitter.com"

	DefaultCharacterLimit = 280
	DefaultRateLimit      = time.Second
	DefaultRequestTimeout = 30 * time.Second
)

// Twitter posts to X through the v2 API. Access tokens refresh through
// the OAuth2 transport when a refresh token is configured.
type Twitter struct {
	config         *common.TwitterConfig
	client         *http.Client
	limiter        *rate.Limiter
	baseURL        string
	uploadURL      string
	characterLimit int
	testMode       bool
	logger         arbor.ILogger

	testSeq atomic.Int64
}

var _ interfaces.Publisher = (*Twitter)(nil)

// TwitterOption configures the publisher.
type TwitterOption func(*Twitter)

// WithHTTPClient overrides the OAuth2-wrapped HTTP client. Used by tests.
func WithHTTPClient(client *http.Client) TwitterOption {
	return func(t *Twitter) {
		t.client = client
	}
}

// NewTwitter creates the X publisher. In test mode posts are logged and
// given synthetic ids instead of hitting the platform.
func NewTwitter(config *common.TwitterConfig, testMode bool, logger arbor.ILogger, opts ...TwitterOption) (*Twitter, error) {
	baseURL := strings.TrimRight(config.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	uploadURL := strings.TrimRight(config.UploadURL, "/")
	if uploadURL == "" {
		uploadURL = DefaultUploadURL
	}

	characterLimit := config.CharacterLimit
	if characterLimit <= 0 {
		characterLimit = DefaultCharacterLimit
	}

	rateLimit := config.RateLimit
	if rateLimit <= 0 {
		rateLimit = DefaultRateLimit
	}

	t := &Twitter{
		config:         config,
		limiter:        rate.NewLimiter(rate.Every(rateLimit), 1),
		baseURL:        baseURL,
		uploadURL:      uploadURL,
		characterLimit: characterLimit,
		testMode:       testMode,
		logger:         logger,
	}

	for _, opt := range opts {
		opt(t)
	}

	if t.client == nil {
		if config.AccessToken == "" && !testMode {
			return nil, fmt.Errorf("twitter access token is required")
		}
		t.client = newOAuthClient(config, baseURL)
	}

	logger.Debug().
		Str("base_url", baseURL).
		Bool("test_mode", testMode).
		Bool("token_refresh", config.RefreshToken != "").
		Msg("Twitter publisher initialized")

	return t, nil
}

// newOAuthClient wraps the token in an auto-refreshing transport. A
// bare access token without a refresh token is used as-is.
func newOAuthClient(config *common.TwitterConfig, baseURL string) *http.Client {
	timeout := config.RequestTimeout
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, &http.Client{Timeout: timeout})

	if config.RefreshToken == "" {
		source := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: config.AccessToken})
		return oauth2.NewClient(ctx, source)
	}

	tokenURL := config.TokenURL
	if tokenURL == "" {
		tokenURL = baseURL + "/2/oauth2/token"
	}

	conf := &oauth2.Config{
		ClientID:     config.ClientID,
		ClientSecret: config.ClientSecret,
		Endpoint: oauth2.Endpoint{
			TokenURL:  tokenURL,
			AuthStyle: oauth2.AuthStyleInHeader,
		},
	}

	// Expiry in the past forces a refresh before the first call, since
	// the configured access token's age is unknown.
	token := &oauth2.Token{
		AccessToken:  config.AccessToken,
		RefreshToken: config.RefreshToken,
		Expiry:       time.Now().Add(-time.Minute),
	}

	return oauth2.NewClient(ctx, conf.TokenSource(ctx, token))
}

// Name returns the platform name.
func (t *Twitter) Name() string {
	return "twitter"
}

// CharacterLimit returns the platform's maximum post length.
func (t *Twitter) CharacterLimit() int {
	return t.characterLimit
}

// Publish posts the text, attaching the image when one is provided.
// Media upload failures downgrade to a text-only post.
func (t *Twitter) Publish(ctx context.Context, text string, image []byte) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("cannot publish an empty post")
	}

	if t.testMode {
		id := fmt.Sprintf("test-%d", t.testSeq.Add(1))
		t.logger.Info().
			Str("post_id", id).
			Int("image_bytes", len(image)).
			Str("text", text).
			Msg("TEST MODE: post suppressed")
		return id, nil
	}

	if err := t.limiter.Wait(ctx); err != nil {
		return "", &models.TransientPublishError{Err: err}
	}

	var mediaID string
	if len(image) > 0 {
		id, err := t.uploadMedia(ctx, image)
		if err != nil {
			t.logger.Warn().Err(err).Msg("Media upload failed, posting without chart")
		} else {
			mediaID = id
		}
	}

	postID, err := t.createPost(ctx, text, mediaID)
	if err != nil {
		return "", err
	}

	t.logger.Info().
		Str("post_id", postID).
		Bool("with_media", mediaID != "").
		Msg("Posted to Twitter")

	return postID, nil
}

type tweetRequest struct {
	Text  string      `json:"text"`
	Media *tweetMedia `json:"media,omitempty"`
}

type tweetMedia struct {
	MediaIDs []string `json:"media_ids"`
}

type tweetResponse struct {
	Data struct {
		ID   string `json:"id"`
		Text string `json:"text"`
	} `json:"data"`
}

func (t *Twitter) createPost(ctx context.Context, text, mediaID string) (string, error) {
	payload := tweetRequest{Text: text}
	if mediaID != "" {
		payload.Media = &tweetMedia{MediaIDs: []string{mediaID}}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to encode post: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/2/tweets", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create post request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return "", &models.TransientPublishError{Err: err}
	}
	defer resp.Body.Close()

	if err := t.checkStatus(resp); err != nil {
		return "", err
	}

	var decoded tweetResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", &models.TransientPublishError{Err: fmt.Errorf("failed to decode post response: %w", err)}
	}
	if decoded.Data.ID == "" {
		return "", &models.TransientPublishError{Err: fmt.Errorf("post response carried no id")}
	}

	return decoded.Data.ID, nil
}

type mediaResponse struct {
	MediaIDString string `json:"media_id_string"`
}

func (t *Twitter) uploadMedia(ctx context.Context, image []byte) (string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("media", "chart.png")
	if err != nil {
		return "", fmt.Errorf("failed to build upload form: %w", err)
	}
	if _, err := part.Write(image); err != nil {
		return "", fmt.Errorf("failed to write upload form: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("failed to close upload form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.uploadURL+"/1.1/media/upload.json", &buf)
	if err != nil {
		return "", fmt.Errorf("failed to create upload request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := t.client.Do(req)
	if err != nil {
		return "", &models.TransientPublishError{Err: err}
	}
	defer resp.Body.Close()

	if err := t.checkStatus(resp); err != nil {
		return "", err
	}

	var decoded mediaResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", &models.TransientPublishError{Err: fmt.Errorf("failed to decode upload response: %w", err)}
	}
	if decoded.MediaIDString == "" {
		return "", &models.TransientPublishError{Err: fmt.Errorf("upload response carried no media id")}
	}

	return decoded.MediaIDString, nil
}

// checkStatus maps platform responses onto the pipeline's error kinds:
// 429 to RateLimitError, 5xx to TransientPublishError, other failures
// to plain errors the pipeline treats as non-retryable.
func (t *Twitter) checkStatus(resp *http.Response) error {
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusTooManyRequests:
		return &models.RateLimitError{
			Service:    "twitter",
			RetryAfter: retryAfter(resp),
		}
	case resp.StatusCode >= 500:
		return &models.TransientPublishError{
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("platform error: %s", responseSnippet(resp)),
		}
	default:
		return fmt.Errorf("twitter rejected the request (status %d): %s", resp.StatusCode, responseSnippet(resp))
	}
}

// retryAfter reads the platform's wait hint: Retry-After in seconds, or
// the x-rate-limit-reset epoch timestamp.
func retryAfter(resp *http.Response) time.Duration {
	if header := resp.Header.Get("Retry-After"); header != "" {
		if seconds, err := strconv.Atoi(header); err == nil && seconds > 0 {
			return time.Duration(seconds) * time.Second
		}
	}
	if header := resp.Header.Get("x-rate-limit-reset"); header != "" {
		if epoch, err := strconv.ParseInt(header, 10, 64); err == nil {
			if wait := time.Until(time.Unix(epoch, 0)); wait > 0 {
				return wait
			}
		}
	}
	return time.Minute
}

func responseSnippet(resp *http.Response) string {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return strings.TrimSpace(string(body))
}
