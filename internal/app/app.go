package app

import (
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/tickerfeed/internal/common"
	"github.com/ternarybob/tickerfeed/internal/httpclient"
	"github.com/ternarybob/tickerfeed/internal/interfaces"
	"github.com/ternarybob/tickerfeed/internal/services/cache"
	"github.com/ternarybob/tickerfeed/internal/services/companies"
	"github.com/ternarybob/tickerfeed/internal/services/identity"
	"github.com/ternarybob/tickerfeed/internal/services/market"
	"github.com/ternarybob/tickerfeed/internal/services/quotes"
	"github.com/ternarybob/tickerfeed/internal/services/scheduler"
	"github.com/ternarybob/tickerfeed/internal/services/screener"
	"github.com/ternarybob/tickerfeed/internal/storage"
)

// App holds all application components and dependencies
type App struct {
	Config         *common.Config
	Logger         arbor.ILogger
	StorageManager interfaces.StorageManager
	Clock          *common.Clock

	// Acquisition components
	HTTPClient *httpclient.Client
	Quotes     *quotes.Fetcher
	Resolver   *identity.Resolver
	Scraper    *screener.Scraper
	Cache      *cache.Service

	// Facades
	Companies *companies.Service
	Market    *market.Service

	// Created on demand by the watch command
	Scheduler *scheduler.Service
}

// New initializes the application with all dependencies
func New(cfg *common.Config, logger arbor.ILogger) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	if err := app.initDatabase(); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := app.initServices(); err != nil {
		app.Close()
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	logger.Debug().Msg("Application initialization complete")

	return app, nil
}

// initDatabase opens the Badger store
func (a *App) initDatabase() error {
	storageManager, err := storage.NewStorageManager(a.Logger, a.Config)
	if err != nil {
		return err
	}
	a.StorageManager = storageManager
	return nil
}

// initServices wires the acquisition components bottom-up
func (a *App) initServices() error {
	clock, err := common.NewClock(a.Config.Cache.Timezone)
	if err != nil {
		return err
	}
	a.Clock = clock

	a.HTTPClient = httpclient.NewFromConfig(&a.Config.Fetcher, a.Logger)
	a.Quotes = quotes.NewFetcher(a.HTTPClient, a.Logger)
	a.Resolver = identity.NewResolver(a.HTTPClient, a.StorageManager.CompanyStorage(), a.Config, a.Logger)

	launcher := screener.NewChromeLauncher(&a.Config.Screener, a.Config.Fetcher.UserAgent, a.Logger)
	a.Scraper = screener.NewScraper(&a.Config.Screener, launcher, a.Logger)

	a.Cache = cache.NewService(a.StorageManager.DatasetStorage(), a.Clock, a.Logger)
	a.Companies = companies.NewService(a.StorageManager.CompanyStorage(), a.Logger)
	a.Market = market.NewService(a.Resolver, a.Quotes, a.Scraper, a.Cache, a.Config.Refresh.Concurrency, a.Logger)

	a.Logger.Debug().
		Str("profile_url_template", a.Config.Resolver.ProfileURLTemplate).
		Str("quote_url_template", a.Config.Fetcher.QuoteURLTemplate).
		Str("today", a.Clock.TodayKey()).
		Msg("Services initialized")

	return nil
}

// StartScheduler starts the cron-driven quote refresh over the configured tickers
func (a *App) StartScheduler(onResults scheduler.ResultHandler) error {
	a.Scheduler = scheduler.NewService(a.Market, a.Config.Refresh.Tickers, onResults, a.Logger)
	return a.Scheduler.Start(a.Config.Refresh.Schedule)
}

// Close closes all application resources
func (a *App) Close() error {
	if a.Scheduler != nil {
		if err := a.Scheduler.Stop(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to stop scheduler")
		}
	}

	if a.StorageManager != nil {
		if err := a.StorageManager.Close(); err != nil {
			return fmt.Errorf("failed to close storage: %w", err)
		}
		a.Logger.Debug().Msg("Storage closed")
	}

	return nil
}
