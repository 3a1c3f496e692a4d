// -----------------------------------------------------------------------
// Pipeline - the poll cycle orchestrator
// Fetch -> filter -> extract -> compose -> chart -> publish -> mark seen
// -----------------------------------------------------------------------

package pipeline

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/nuntius/internal/common"
	"github.com/ternarybob/nuntius/internal/interfaces"
	"github.com/ternarybob/nuntius/internal/models"
	"github.com/ternarybob/nuntius/internal/services/composer"
	"github.com/ternarybob/nuntius/internal/services/extractor"
	"github.com/ternarybob/nuntius/internal/services/filter"
	"github.com/ternarybob/nuntius/internal/services/portfolio"
	"golang.org/x/sync/errgroup"
)

const (
	// similarityThreshold flags a summary as a near-duplicate of a
	// recently posted one.
	similarityThreshold = 0.90

	// recentSummaryWindow is how many posted summaries the fuzzy
	// duplicate check compares against.
	recentSummaryWindow = 50
)

// Deps carries the collaborators the pipeline orchestrates. Charts,
// Notifier, Portfolio and PDF are optional; everything else is required.
type Deps struct {
	Config    *common.Config
	Sources   []interfaces.Source
	Filter    *filter.Service
	Extractor *extractor.Service
	Composer  *composer.Service
	Charts    interfaces.ChartProvider
	Publisher interfaces.Publisher
	Notifier  interfaces.Notifier
	Portfolio *portfolio.Service
	PDF       interfaces.PDFService
	Seen      interfaces.SeenStore
	Posts     interfaces.PostStore
	Cursors   interfaces.CursorStore
	Logger    arbor.ILogger
}

// Service drives the poll loop: one logical cycle at a time, items
// processed sequentially, per-item failures isolated. Only a
// PersistenceError stops the loop.
type Service struct {
	config    *common.Config
	sources   []interfaces.Source
	filter    *filter.Service
	extractor *extractor.Service
	composer  *composer.Service
	charts    interfaces.ChartProvider
	publisher interfaces.Publisher
	notifier  interfaces.Notifier
	portfolio *portfolio.Service
	pdf       interfaces.PDFService
	seen      interfaces.SeenStore
	posts     interfaces.PostStore
	cursors   interfaces.CursorStore
	logger    arbor.ILogger

	cycleMu  sync.Mutex // One cycle at a time
	statsMu  sync.Mutex
	lifetime LifetimeStats
	now      func() time.Time
}

// NewService validates the dependencies and builds the pipeline.
func NewService(deps Deps) (*Service, error) {
	switch {
	case deps.Config == nil:
		return nil, fmt.Errorf("pipeline requires a config")
	case len(deps.Sources) == 0:
		return nil, fmt.Errorf("pipeline requires at least one source")
	case deps.Filter == nil || deps.Extractor == nil || deps.Composer == nil:
		return nil, fmt.Errorf("pipeline requires filter, extractor and composer services")
	case deps.Publisher == nil:
		return nil, fmt.Errorf("pipeline requires a publisher")
	case deps.Seen == nil || deps.Posts == nil || deps.Cursors == nil:
		return nil, fmt.Errorf("pipeline requires seen, post and cursor stores")
	case deps.Logger == nil:
		return nil, fmt.Errorf("pipeline requires a logger")
	}

	return &Service{
		config:    deps.Config,
		sources:   deps.Sources,
		filter:    deps.Filter,
		extractor: deps.Extractor,
		composer:  deps.Composer,
		charts:    deps.Charts,
		publisher: deps.Publisher,
		notifier:  deps.Notifier,
		portfolio: deps.Portfolio,
		pdf:       deps.PDF,
		seen:      deps.Seen,
		posts:     deps.Posts,
		cursors:   deps.Cursors,
		logger:    deps.Logger,
		lifetime:  LifetimeStats{StartedAt: time.Now()},
		now:       time.Now,
	}, nil
}

// Run polls until the context is cancelled or a persistence failure
// makes dedup guarantees impossible. The first cycle runs immediately.
func (s *Service) Run(ctx context.Context) error {
	interval := parseDuration(s.config.Pipeline.PollInterval)
	s.logger.Info().
		Dur("poll_interval", interval).
		Int("sources", len(s.sources)).
		Bool("test_mode", s.config.TestMode).
		Msg("Pipeline started")

	if err := s.runGuarded(ctx); err != nil {
		return err
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("Pipeline stopping")
			return nil
		case <-ticker.C:
			if err := s.runGuarded(ctx); err != nil {
				return err
			}
		}
	}
}

// runGuarded runs one cycle unless the previous one is still going, in
// which case the tick is skipped.
func (s *Service) runGuarded(ctx context.Context) error {
	if !s.cycleMu.TryLock() {
		s.logger.Warn().Msg("Previous cycle still running, skipping tick")
		return nil
	}
	defer s.cycleMu.Unlock()

	_, err := s.runCycle(ctx)
	if err != nil {
		if models.IsPersistence(err) {
			s.logger.Error().Err(err).Msg("Persistence failure, stopping pipeline")
			return err
		}
		s.logger.Error().Err(err).Msg("Cycle failed")
	}
	return nil
}

// RunCycle runs exactly one poll cycle. Exposed for single-shot mode.
func (s *Service) RunCycle(ctx context.Context) (CycleStats, error) {
	s.cycleMu.Lock()
	defer s.cycleMu.Unlock()
	return s.runCycle(ctx)
}

func (s *Service) runCycle(ctx context.Context) (CycleStats, error) {
	started := s.now()

	s.statsMu.Lock()
	stats := CycleStats{Cycle: s.lifetime.Cycles + 1}
	s.statsMu.Unlock()

	items, cursors, err := s.fetchAll(ctx)
	if err != nil {
		return stats, err
	}
	stats.Fetched = len(items)

	if limit := s.config.Pipeline.MaxItemsPerCycle; limit > 0 && len(items) > limit {
		s.logger.Warn().
			Int("fetched", len(items)).
			Int("limit", limit).
			Msg("Cycle item cap reached, deferring the rest")
		items = items[:limit]
	}

	for _, item := range items {
		if ctx.Err() != nil {
			break
		}
		if err := s.processItem(ctx, item, &stats); err != nil {
			return stats, err
		}
	}

	for _, cursor := range cursors {
		if err := s.cursors.SaveCursor(ctx, cursor); err != nil {
			return stats, err
		}
	}

	stats.Duration = s.now().Sub(started)

	s.statsMu.Lock()
	s.lifetime.add(stats)
	lifetime := s.lifetime
	s.statsMu.Unlock()

	s.logger.Info().
		Int("cycle", stats.Cycle).
		Int("fetched", stats.Fetched).
		Int("skipped", stats.Skipped).
		Int("filtered", stats.Filtered).
		Int("extracted", stats.Extracted).
		Int("dropped", stats.Dropped).
		Int("posted", stats.Posted).
		Int("failed", stats.Failed).
		Dur("duration", stats.Duration).
		Int("lifetime_posted", lifetime.Posted).
		Msg("Cycle complete")

	return stats, nil
}

// fetchAll fetches from every source not in cooldown, concurrently, and
// returns the merged batch oldest first along with the updated cursors.
func (s *Service) fetchAll(ctx context.Context) ([]models.RawItem, []models.PollCursor, error) {
	now := s.now()

	type slot struct {
		source interfaces.Source
		cursor models.PollCursor
		items  []models.RawItem
		err    error
		active bool
	}

	slots := make([]*slot, len(s.sources))
	for i, source := range s.sources {
		cursor, err := s.cursors.GetCursor(ctx, source.Name())
		if err != nil {
			return nil, nil, err
		}
		slots[i] = &slot{source: source, cursor: cursor}

		if cursor.InCooldown(now) {
			s.logger.Debug().
				Str("source", source.Name()).
				Str("until", cursor.CooldownUntil.Format(time.RFC3339)).
				Msg("Source in cooldown, skipping fetch")
			continue
		}
		slots[i].active = true
	}

	g, fetchCtx := errgroup.WithContext(ctx)
	for _, sl := range slots {
		if !sl.active {
			continue
		}
		sl := sl
		g.Go(func() error {
			sl.items, sl.err = sl.source.Fetch(fetchCtx)
			return nil
		})
	}
	_ = g.Wait()

	var (
		batch   []models.RawItem
		cursors []models.PollCursor
	)
	for _, sl := range slots {
		if !sl.active {
			continue
		}
		if sl.err != nil {
			sl.cursor.RecordFailure(now, s.config.Pipeline.SourceFailLimit, s.config.Pipeline.SourceCooldown)
			s.logger.Warn().
				Err(sl.err).
				Str("source", sl.source.Name()).
				Int("consecutive_failures", sl.cursor.ConsecutiveFailures).
				Msg("Source fetch failed")
			if sl.cursor.InCooldown(now) {
				s.logger.Warn().
					Str("source", sl.source.Name()).
					Str("cooldown_until", sl.cursor.CooldownUntil.Format(time.RFC3339)).
					Msg("Source fetch cooldown opened")
			}
		} else {
			lastID := ""
			if n := len(sl.items); n > 0 {
				lastID = sl.items[n-1].ID
			}
			sl.cursor.RecordSuccess(now, lastID)
			batch = append(batch, sl.items...)

			s.logger.Debug().
				Str("source", sl.source.Name()).
				Int("items", len(sl.items)).
				Msg("Source fetched")
		}
		cursors = append(cursors, sl.cursor)
	}

	sort.SliceStable(batch, func(i, j int) bool {
		return batch[i].PublishedAt.Before(batch[j].PublishedAt)
	})

	return batch, cursors, nil
}

// Stats returns a copy of the lifetime counters.
func (s *Service) Stats() LifetimeStats {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()
	return s.lifetime
}

func parseDuration(s string) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 2 * time.Minute
	}
	return d
}

// sleepCtx waits for the duration unless the context ends first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
