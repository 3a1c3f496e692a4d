// -----------------------------------------------------------------------
// Stream Source - websocket headline stream with reconnect and a
// bounded buffer drained by the poll loop
// -----------------------------------------------------------------------

package sources

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/nuntius/internal/common"
	"github.com/ternarybob/nuntius/internal/interfaces"
	"github.com/ternarybob/nuntius/internal/models"
)

const (
	defaultReconnectDelay = 5 * time.Second
	defaultReconnectMax   = 5 * time.Minute
	defaultPingInterval   = 30 * time.Second
)

// streamMessage is one headline on the wire.
type streamMessage struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Body      string    `json:"body,omitempty"`
	Link      string    `json:"link,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// StreamSource keeps a websocket connection to a headline stream open,
// buffering messages until the next Fetch.
type StreamSource struct {
	config *common.StreamConfig
	queue  *itemQueue
	logger arbor.ILogger

	cancel context.CancelFunc
	done   chan struct{}
}

// Compile-time assertion
var _ interfaces.RunnableSource = (*StreamSource)(nil)

// NewStreamSource creates a websocket stream source.
func NewStreamSource(config *common.StreamConfig, logger arbor.ILogger) *StreamSource {
	return &StreamSource{
		config: config,
		queue:  newItemQueue(config.QueueSize),
		logger: logger,
	}
}

// Name returns the adapter name used for cursors and logging
func (s *StreamSource) Name() string {
	return string(models.SourceStream)
}

// Start launches the connection loop. Non-blocking.
func (s *StreamSource) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	go s.run(runCtx)
	return nil
}

// Stop tears down the connection loop and waits for it to exit.
func (s *StreamSource) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
}

// Fetch drains the buffered headlines, oldest first.
func (s *StreamSource) Fetch(ctx context.Context) ([]models.RawItem, error) {
	return s.queue.Drain(), nil
}

// Dropped returns how many headlines were evicted because the buffer
// filled between polls.
func (s *StreamSource) Dropped() uint64 {
	return s.queue.Dropped()
}

// run dials the stream and re-dials with exponential backoff until the
// context is cancelled.
func (s *StreamSource) run(ctx context.Context) {
	defer close(s.done)

	initial := s.config.ReconnectDelay
	if initial <= 0 {
		initial = defaultReconnectDelay
	}
	max := s.config.ReconnectMax
	if max <= 0 {
		max = defaultReconnectMax
	}

	backoff := initial
	for {
		if ctx.Err() != nil {
			return
		}

		conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.config.URL, nil)
		if err != nil {
			s.logger.Warn().
				Err(err).
				Str("url", s.config.URL).
				Str("retry_in", backoff.String()).
				Msg("Stream dial failed")

			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > max {
				backoff = max
			}
			continue
		}

		backoff = initial
		s.logger.Info().Str("url", s.config.URL).Msg("Stream connected")

		s.readLoop(ctx, conn)
		conn.Close()
	}
}

// readLoop reads headlines until the connection drops or the context is
// cancelled. Keepalive pings detect half-open connections.
func (s *StreamSource) readLoop(ctx context.Context, conn *websocket.Conn) {
	pingInterval := s.config.PingInterval
	if pingInterval <= 0 {
		pingInterval = defaultPingInterval
	}
	readDeadline := 2 * pingInterval

	conn.SetReadDeadline(time.Now().Add(readDeadline))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readDeadline))
	})

	stop := make(chan struct{})
	defer close(stop)

	go func() {
		ticker := time.NewTicker(pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ctx.Done():
				conn.Close()
				return
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
					return
				}
			}
		}
	}()

	for {
		var msg streamMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if ctx.Err() == nil {
				s.logger.Warn().Err(err).Msg("Stream read failed")
			}
			return
		}

		item, ok := s.normalize(msg)
		if !ok {
			continue
		}

		if evicted := s.queue.Push(item); evicted {
			s.logger.Warn().
				Uint64("dropped_total", s.queue.Dropped()).
				Msg("Stream buffer full, oldest headline dropped")
		}
	}
}

// normalize converts a wire message into a raw item.
func (s *StreamSource) normalize(msg streamMessage) (models.RawItem, bool) {
	title := strings.TrimSpace(msg.Title)
	if title == "" {
		return models.RawItem{}, false
	}

	nativeID := strings.TrimSpace(msg.ID)
	if nativeID == "" {
		sum := sha256.Sum256([]byte(title + msg.Timestamp.String()))
		nativeID = hex.EncodeToString(sum[:12])
	}

	now := time.Now()
	published := msg.Timestamp
	if published.IsZero() {
		published = now
	}

	return models.RawItem{
		ID:          models.NamespacedID(models.SourceStream, nativeID),
		Title:       title,
		Body:        strings.TrimSpace(msg.Body),
		Link:        strings.TrimSpace(msg.Link),
		Source:      models.SourceStream,
		PublishedAt: published,
		FetchedAt:   now,
	}, true
}
