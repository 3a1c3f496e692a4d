// -----------------------------------------------------------------------
// RSS Source - polls a financial headline feed and normalizes entries
// -----------------------------------------------------------------------

package sources

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/xml"
	"fmt"
	"html"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/nuntius/internal/common"
	"github.com/ternarybob/nuntius/internal/interfaces"
	"github.com/ternarybob/nuntius/internal/models"
	"golang.org/x/time/rate"
)

const (
	// DefaultFeedTimeout is the default HTTP timeout for feed requests.
	DefaultFeedTimeout = 30 * time.Second

	// DefaultUserAgent identifies the poller to feed operators.
	DefaultUserAgent = "nuntius/1.0"
)

// rssFeed is the subset of RSS 2.0 read off the wire.
type rssFeed struct {
	XMLName xml.Name `xml:"rss"`
	Channel struct {
		Title string    `xml:"title"`
		Items []rssItem `xml:"item"`
	} `xml:"channel"`
}

type rssItem struct {
	Title       string `xml:"title"`
	Description string `xml:"description"`
	Link        string `xml:"link"`
	GUID        string `xml:"guid"`
	PubDate     string `xml:"pubDate"`
}

// RSSSource polls an RSS feed for new headlines.
type RSSSource struct {
	config     *common.RSSConfig
	httpClient *http.Client
	limiter    *rate.Limiter
	converter  *md.Converter
	logger     arbor.ILogger
}

// Compile-time assertion
var _ interfaces.Source = (*RSSSource)(nil)

// RSSOption configures the RSSSource.
type RSSOption func(*RSSSource)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) RSSOption {
	return func(s *RSSSource) {
		s.httpClient = httpClient
	}
}

// NewRSSSource creates an RSS polling source.
func NewRSSSource(config *common.RSSConfig, logger arbor.ILogger, opts ...RSSOption) *RSSSource {
	timeout := config.RequestTimeout
	if timeout <= 0 {
		timeout = DefaultFeedTimeout
	}

	every := config.RateLimit
	if every <= 0 {
		every = 5 * time.Second
	}

	s := &RSSSource{
		config: config,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		limiter:   rate.NewLimiter(rate.Every(every), 1),
		converter: md.NewConverter("", true, nil),
		logger:    logger,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Name returns the adapter name used for cursors and logging
func (s *RSSSource) Name() string {
	return string(models.SourceRSS)
}

// Fetch retrieves the feed and returns its entries, oldest first.
func (s *RSSSource) Fetch(ctx context.Context) ([]models.RawItem, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, &models.TransientSourceError{Source: s.Name(), Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.config.URL, nil)
	if err != nil {
		return nil, &models.TransientSourceError{Source: s.Name(), Err: fmt.Errorf("failed to create request: %w", err)}
	}
	userAgent := s.config.UserAgent
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/rss+xml, application/xml, text/xml")

	s.logger.Debug().Str("url", s.config.URL).Msg("Fetching feed")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, &models.TransientSourceError{Source: s.Name(), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, &models.RateLimitError{
			Service:    s.Name(),
			RetryAfter: retryAfterHeader(resp, time.Minute),
		}
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &models.TransientSourceError{
			Source: s.Name(),
			Err:    fmt.Errorf("feed returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))),
		}
	}

	var feed rssFeed
	if err := xml.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return nil, &models.TransientSourceError{Source: s.Name(), Err: fmt.Errorf("failed to decode feed: %w", err)}
	}

	now := time.Now()
	items := make([]models.RawItem, 0, len(feed.Channel.Items))

	// RSS 2.0 lists entries newest first; reverse so the pipeline
	// processes in publication order.
	for i := len(feed.Channel.Items) - 1; i >= 0; i-- {
		entry := feed.Channel.Items[i]

		title := strings.TrimSpace(html.UnescapeString(entry.Title))
		if title == "" {
			continue
		}

		items = append(items, models.RawItem{
			ID:          models.NamespacedID(models.SourceRSS, entryID(entry)),
			Title:       title,
			Body:        s.entryBody(entry),
			Link:        strings.TrimSpace(entry.Link),
			Source:      models.SourceRSS,
			PublishedAt: parsePubDate(entry.PubDate, now),
			FetchedAt:   now,
		})

		if s.config.MaxItems > 0 && len(items) >= s.config.MaxItems {
			break
		}
	}

	s.logger.Debug().
		Int("items", len(items)).
		Str("feed", feed.Channel.Title).
		Msg("Feed fetched")

	return items, nil
}

// entryID picks the most stable native id a feed entry offers.
func entryID(entry rssItem) string {
	if guid := strings.TrimSpace(entry.GUID); guid != "" {
		return guid
	}
	if link := strings.TrimSpace(entry.Link); link != "" {
		return link
	}
	sum := sha256.Sum256([]byte(entry.Title + entry.PubDate))
	return hex.EncodeToString(sum[:12])
}

// entryBody converts the HTML description to markdown text.
func (s *RSSSource) entryBody(entry rssItem) string {
	desc := strings.TrimSpace(entry.Description)
	if desc == "" {
		return ""
	}
	if strings.Contains(desc, "<") {
		if markdown, err := s.converter.ConvertString(desc); err == nil {
			return strings.TrimSpace(markdown)
		}
	}
	return strings.TrimSpace(html.UnescapeString(desc))
}

// rssDateFormats are tried in order; feeds are loose about RFC 822.
var rssDateFormats = []string{
	time.RFC1123Z,
	time.RFC1123,
	time.RFC822Z,
	time.RFC822,
	time.RFC3339,
	"2006-01-02 15:04:05",
}

func parsePubDate(raw string, fallback time.Time) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback
	}
	for _, layout := range rssDateFormats {
		if t, err := time.Parse(layout, raw); err == nil {
			return t
		}
	}
	return fallback
}

func retryAfterHeader(resp *http.Response, fallback time.Duration) time.Duration {
	raw := resp.Header.Get("Retry-After")
	if raw == "" {
		return fallback
	}
	if secs, err := strconv.Atoi(raw); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return fallback
}
