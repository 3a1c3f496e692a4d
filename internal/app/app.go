// -----------------------------------------------------------------------
// Application - wires storage, services and the pipeline together
// -----------------------------------------------------------------------

package app

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/nuntius/internal/common"
	"github.com/ternarybob/nuntius/internal/interfaces"
	"github.com/ternarybob/nuntius/internal/pipeline"
	"github.com/ternarybob/nuntius/internal/services/charts"
	"github.com/ternarybob/nuntius/internal/services/composer"
	"github.com/ternarybob/nuntius/internal/services/extractor"
	"github.com/ternarybob/nuntius/internal/services/filter"
	"github.com/ternarybob/nuntius/internal/services/llm"
	"github.com/ternarybob/nuntius/internal/services/mailer"
	"github.com/ternarybob/nuntius/internal/services/pdf"
	"github.com/ternarybob/nuntius/internal/services/portfolio"
	"github.com/ternarybob/nuntius/internal/services/publisher"
	"github.com/ternarybob/nuntius/internal/services/quotes"
	"github.com/ternarybob/nuntius/internal/services/scheduler"
	"github.com/ternarybob/nuntius/internal/services/sources"
	"github.com/ternarybob/nuntius/internal/storage/badger"
)

const (
	digestJobTimeout     = 2 * time.Minute
	compactionJobTimeout = 5 * time.Minute
)

// App holds all application components and dependencies
type App struct {
	Config *common.Config
	Logger arbor.ILogger

	StorageManager interfaces.StorageManager

	// Pipeline stages
	LLMService       interfaces.LLMService
	FilterService    *filter.Service
	ExtractorService *extractor.Service
	ComposerService  *composer.Service
	Publisher        interfaces.Publisher

	// Optional surroundings
	ChartsService    *charts.Service
	MailerService    *mailer.Service
	PDFService       *pdf.Service
	QuotesService    *quotes.Service
	PortfolioService *portfolio.Service

	SchedulerService *scheduler.Service
	Sources          []interfaces.Source
	Pipeline         *pipeline.Service
}

// New initializes the application with all dependencies
func New(config *common.Config, logger arbor.ILogger) (*App, error) {
	app := &App{
		Config: config,
		Logger: logger,
	}

	if err := app.initStorage(); err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	if err := app.initServices(); err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	if err := app.initPipeline(); err != nil {
		return nil, fmt.Errorf("failed to initialize pipeline: %w", err)
	}

	logger.Info().
		Int("sources", len(app.Sources)).
		Bool("charts", app.ChartsService != nil).
		Bool("mailer", app.MailerService != nil).
		Bool("portfolio", app.PortfolioService != nil).
		Bool("test_mode", config.TestMode).
		Msg("Application initialization complete")

	return app, nil
}

func (a *App) initStorage() error {
	manager, err := badger.NewManager(a.Logger, &a.Config.Storage.Badger)
	if err != nil {
		return err
	}
	a.StorageManager = manager

	a.Logger.Debug().
		Str("storage", "badger").
		Str("path", a.Config.Storage.Badger.Path).
		Msg("Storage layer initialized")
	return nil
}

func (a *App) initServices() error {
	var err error

	a.LLMService, err = llm.NewLLMService(a.Config, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize LLM service: %w", err)
	}

	a.FilterService, err = filter.NewService(&a.Config.Filter, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize filter service: %w", err)
	}

	a.ExtractorService = extractor.NewService(a.LLMService, a.Logger)
	a.ComposerService = composer.NewService(&a.Config.Composer, a.Logger)

	a.Publisher, err = publisher.NewTwitter(&a.Config.Publisher.Twitter, a.Config.TestMode, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize publisher: %w", err)
	}

	if a.Config.Charts.Enabled {
		a.ChartsService = charts.NewService(
			&a.Config.Charts,
			a.StorageManager.KeyValueStorage(),
			a.FilterService.SearchExchanges(),
			a.Logger,
		)
		a.Logger.Debug().Msg("Charts service initialized")
	}

	a.PDFService = pdf.NewService(a.Logger)

	if a.Config.Mailer.Enabled {
		a.MailerService = mailer.NewService(&a.Config.Mailer, a.Logger)
		a.Logger.Debug().Msg("Mailer service initialized")
	}

	if a.Config.Portfolio.Enabled {
		var prices interfaces.QuoteProvider
		if a.Config.Quotes.Enabled && a.Config.Quotes.APIKey != "" {
			quotesService, err := quotes.NewService(&a.Config.Quotes, a.Logger)
			if err != nil {
				a.Logger.Warn().Err(err).Msg("Quote service unavailable, simulated trades will be skipped")
			} else {
				a.QuotesService = quotesService
				prices = quotesService
			}
		} else {
			a.Logger.Warn().Msg("No quote feed configured, simulated trades will be skipped")
		}

		a.PortfolioService, err = portfolio.NewService(&a.Config.Portfolio, a.StorageManager.PortfolioStore(), prices, a.Logger)
		if err != nil {
			return fmt.Errorf("failed to initialize portfolio: %w", err)
		}
		a.Logger.Debug().Msg("Portfolio service initialized")
	}

	if a.Config.Sources.RSS.Enabled {
		a.Sources = append(a.Sources, sources.NewRSSSource(&a.Config.Sources.RSS, a.Logger))
	}
	if a.Config.Sources.Stream.Enabled {
		a.Sources = append(a.Sources, sources.NewStreamSource(&a.Config.Sources.Stream, a.Logger))
	}
	if a.Config.Sources.Newsletter.Enabled {
		a.Sources = append(a.Sources, sources.NewNewsletterSource(&a.Config.Sources.Newsletter, pdf.NewExtractor(a.Logger), a.Logger))
	}
	if len(a.Sources) == 0 {
		return fmt.Errorf("no sources enabled; enable at least one of sources.rss, sources.stream, sources.newsletter")
	}

	return nil
}

func (a *App) initPipeline() error {
	deps := pipeline.Deps{
		Config:    a.Config,
		Sources:   a.Sources,
		Filter:    a.FilterService,
		Extractor: a.ExtractorService,
		Composer:  a.ComposerService,
		Publisher: a.Publisher,
		Portfolio: a.PortfolioService,
		PDF:       a.PDFService,
		Seen:      a.StorageManager.SeenStore(),
		Posts:     a.StorageManager.PostStore(),
		Cursors:   a.StorageManager.CursorStore(),
		Logger:    a.Logger,
	}
	// Interface fields must stay untouched when the concrete value is nil.
	if a.ChartsService != nil {
		deps.Charts = a.ChartsService
	}
	if a.MailerService != nil {
		deps.Notifier = a.MailerService
	}

	pipelineService, err := pipeline.NewService(deps)
	if err != nil {
		return err
	}
	a.Pipeline = pipelineService

	a.SchedulerService = scheduler.NewService(a.Logger)

	if a.MailerService != nil {
		err = a.SchedulerService.RegisterJob(
			"digest",
			a.Config.Pipeline.DigestSchedule,
			"Daily activity digest email",
			func() error {
				ctx, cancel := context.WithTimeout(context.Background(), digestJobTimeout)
				defer cancel()
				return a.Pipeline.RunDigest(ctx)
			},
		)
		if err != nil {
			return fmt.Errorf("failed to register digest job: %w", err)
		}
	}

	err = a.SchedulerService.RegisterJob(
		"compaction",
		a.Config.Pipeline.CompactionSchedule,
		"Seen-set compaction",
		func() error {
			ctx, cancel := context.WithTimeout(context.Background(), compactionJobTimeout)
			defer cancel()
			return a.Pipeline.RunCompaction(ctx)
		},
	)
	if err != nil {
		return fmt.Errorf("failed to register compaction job: %w", err)
	}

	return nil
}

// Run starts the background sources, the scheduler and the poll loop, and
// blocks until the context is cancelled or the pipeline fails fatally.
func (a *App) Run(ctx context.Context) error {
	for _, source := range a.Sources {
		if runnable, ok := source.(interfaces.RunnableSource); ok {
			if err := runnable.Start(ctx); err != nil {
				return fmt.Errorf("failed to start source %s: %w", source.Name(), err)
			}
			a.Logger.Debug().Str("source", source.Name()).Msg("Source started")
		}
	}

	if err := a.SchedulerService.Start(); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}

	return a.Pipeline.Run(ctx)
}

// RunOnce executes a single poll cycle and returns. Used by the -once
// flag for cron-style deployments and smoke testing.
func (a *App) RunOnce(ctx context.Context) error {
	stats, err := a.Pipeline.RunCycle(ctx)
	if err != nil {
		return err
	}

	a.Logger.Info().
		Int("fetched", stats.Fetched).
		Int("posted", stats.Posted).
		Int("failed", stats.Failed).
		Msg("Single cycle complete")
	return nil
}

// Close releases all application resources
func (a *App) Close() error {
	if a.SchedulerService != nil {
		a.SchedulerService.Stop()
	}

	for _, source := range a.Sources {
		if runnable, ok := source.(interfaces.RunnableSource); ok {
			runnable.Stop()
			a.Logger.Debug().Str("source", source.Name()).Msg("Source stopped")
		}
	}

	if a.ChartsService != nil {
		a.ChartsService.Close()
	}

	if a.StorageManager != nil {
		if err := a.StorageManager.Close(); err != nil {
			return fmt.Errorf("failed to close storage: %w", err)
		}
		a.Logger.Info().Msg("Storage closed")
	}

	return nil
}
