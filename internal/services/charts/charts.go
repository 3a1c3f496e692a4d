// -----------------------------------------------------------------------
// Chart Capture Service - headless Chrome screenshots of ticker charts
// -----------------------------------------------------------------------

package charts

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/nuntius/internal/common"
	"github.com/ternarybob/nuntius/internal/interfaces"
)

const (
	// DefaultBaseURL is the chart site the capture navigates to.
	DefaultBaseURL = "https://www.tradingview.com"

	DefaultTimeout    = 45 * time.Second
	DefaultRenderWait = 5 * time.Second

	DefaultViewportWidth  = 1280
	DefaultViewportHeight = 800

	// The chart canvas sits right of the tool rail and below the header;
	// the clip trims both so the image starts at the price axis.
	chartMarginLeft = 56
	chartMarginTop  = 40
)

// popupScript clicks away the consent and sign-in prompts that cover
// the chart on a fresh browser profile. Best effort only.
const popupScript = `
(() => {
	const labels = ["Got it", "Accept all", "Maybe later", "No, thanks"];
	let clicked = 0;
	for (const b of document.querySelectorAll("button")) {
		const t = (b.textContent || "").trim();
		if (labels.some(l => t === l)) { b.click(); clicked++; }
	}
	return clicked;
})()`

// Service captures chart screenshots with headless Chrome. Symbol
// resolution results are cached in the key/value store so the exchange
// search runs once per ticker.
type Service struct {
	config    *common.ChartsConfig
	kv        interfaces.KeyValueStorage
	exchanges []string
	logger    arbor.ILogger

	mu          sync.Mutex
	allocCtx    context.Context
	allocCancel context.CancelFunc
}

var _ interfaces.ChartProvider = (*Service)(nil)

// NewService creates the chart provider. exchanges is the prefix order
// tried when resolving a bare ticker to an exchange-qualified symbol.
func NewService(config *common.ChartsConfig, kv interfaces.KeyValueStorage, exchanges []string, logger arbor.ILogger) *Service {
	if len(exchanges) == 0 {
		exchanges = common.DefaultSearchExchanges
	}

	return &Service{
		config:    config,
		kv:        kv,
		exchanges: exchanges,
		logger:    logger,
	}
}

// Capture resolves the instrument to a chart symbol and returns a PNG
// screenshot of its chart page. Errors are returned as-is: the caller
// posts without a chart when capture fails.
func (s *Service) Capture(ctx context.Context, instrument string) ([]byte, error) {
	if !s.config.Enabled {
		return nil, fmt.Errorf("chart capture is disabled")
	}

	code := strings.ToUpper(strings.TrimSpace(instrument))
	if code == "" {
		return nil, fmt.Errorf("cannot capture a chart without an instrument")
	}

	symbol, err := s.ResolveSymbol(ctx, code)
	if err != nil {
		return nil, err
	}

	started := time.Now()
	image, err := s.screenshot(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("failed to capture chart for %s: %w", symbol, err)
	}

	s.logger.Debug().
		Str("instrument", code).
		Str("symbol", symbol).
		Int("bytes", len(image)).
		Dur("duration", time.Since(started)).
		Msg("Chart captured")

	return image, nil
}

// Close shuts the shared browser allocator down.
func (s *Service) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.allocCancel != nil {
		s.allocCancel()
		s.allocCtx = nil
		s.allocCancel = nil
	}
}

// chartURL builds the chart page address for an exchange-qualified
// symbol.
func (s *Service) chartURL(symbol string) string {
	base := strings.TrimRight(s.config.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	return fmt.Sprintf("%s/chart/?symbol=%s", base, strings.ReplaceAll(symbol, ":", "%3A"))
}

func (s *Service) screenshot(ctx context.Context, symbol string) ([]byte, error) {
	browserCtx, cancel, err := s.newBrowserContext(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()

	width, height := s.viewport()
	clip := &page.Viewport{
		X:      chartMarginLeft,
		Y:      chartMarginTop,
		Width:  float64(width - chartMarginLeft),
		Height: float64(height - chartMarginTop),
		Scale:  1,
	}

	var image []byte
	err = chromedp.Run(browserCtx,
		chromedp.EmulateViewport(int64(width), int64(height)),
		chromedp.Navigate(s.chartURL(symbol)),
		chromedp.Sleep(s.renderWait()),
		chromedp.Evaluate(popupScript, nil),
		chromedp.ActionFunc(func(ctx context.Context) error {
			buf, err := page.CaptureScreenshot().
				WithFormat(page.CaptureScreenshotFormatPng).
				WithClip(clip).
				Do(ctx)
			if err != nil {
				return err
			}
			image = buf
			return nil
		}),
	)
	if err != nil {
		return nil, err
	}

	if len(image) == 0 {
		return nil, fmt.Errorf("empty screenshot for %s", symbol)
	}
	return image, nil
}

// pageHTML loads a chart page and returns its rendered HTML. Used by
// symbol validation.
func (s *Service) pageHTML(ctx context.Context, symbol string) (string, error) {
	browserCtx, cancel, err := s.newBrowserContext(ctx)
	if err != nil {
		return "", err
	}
	defer cancel()

	var html string
	err = chromedp.Run(browserCtx,
		chromedp.Navigate(s.chartURL(symbol)),
		chromedp.Sleep(s.renderWait()),
		chromedp.OuterHTML("html", &html),
	)
	if err != nil {
		return "", err
	}
	return html, nil
}

// newBrowserContext returns a fresh tab on the shared allocator with
// the per-capture timeout applied. The allocator is created on first
// use so a disabled provider never launches Chrome.
func (s *Service) newBrowserContext(ctx context.Context) (context.Context, context.CancelFunc, error) {
	s.mu.Lock()
	if s.allocCtx == nil {
		opts := append(
			chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", s.headless()),
			chromedp.Flag("disable-gpu", true),
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-dev-shm-usage", true),
		)
		s.allocCtx, s.allocCancel = chromedp.NewExecAllocator(context.Background(), opts...)
	}
	allocCtx := s.allocCtx
	s.mu.Unlock()

	timeout := s.config.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	timeoutCtx, timeoutCancel := context.WithTimeout(browserCtx, timeout)

	stop := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			timeoutCancel()
		case <-stop:
		}
	}()

	cancel := func() {
		close(stop)
		timeoutCancel()
		browserCancel()
	}

	return timeoutCtx, cancel, nil
}

func (s *Service) viewport() (int, int) {
	width := s.config.ViewportWidth
	if width <= 0 {
		width = DefaultViewportWidth
	}
	height := s.config.ViewportHeight
	if height <= 0 {
		height = DefaultViewportHeight
	}
	return width, height
}

func (s *Service) renderWait() time.Duration {
	if s.config.RenderWait > 0 {
		return s.config.RenderWait
	}
	return DefaultRenderWait
}

func (s *Service) headless() bool {
	return s.config.Headless
}
