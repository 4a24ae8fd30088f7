package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/tickerfeed/internal/common"
	"github.com/ternarybob/tickerfeed/internal/services/market"
)

// DefaultSchedule runs every 15 minutes when no schedule is configured.
const DefaultSchedule = "*/15 * * * *"

// QuoteRefresher refreshes a batch of quotes; satisfied by *market.Service.
type QuoteRefresher interface {
	RefreshQuotes(ctx context.Context, tickers []string) []market.QuoteResult
}

// ResultHandler receives every batch of refresh results.
type ResultHandler func(results []market.QuoteResult)

// Service runs periodic quote refreshes. Data is pulled on each tick; nothing is pushed.
type Service struct {
	refresher QuoteRefresher
	tickers   []string
	onResults ResultHandler
	cron      *cron.Cron
	logger    arbor.ILogger

	mu        sync.Mutex // Protects running, lastRun, lastError
	runMu     sync.Mutex // Prevents overlapping refreshes
	running   bool
	cronID    cron.EntryID
	lastRun   *time.Time
	lastError string
}

// NewService creates a refresh scheduler for tickers
func NewService(refresher QuoteRefresher, tickers []string, onResults ResultHandler, logger arbor.ILogger) *Service {
	return &Service{
		refresher: refresher,
		tickers:   append([]string(nil), tickers...),
		onResults: onResults,
		cron:      cron.New(),
		logger:    logger,
	}
}

// Start begins the scheduler with the given cron expression
func (s *Service) Start(cronExpr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("scheduler already running")
	}
	if len(s.tickers) == 0 {
		return fmt.Errorf("no tickers configured for refresh")
	}

	if cronExpr == "" {
		cronExpr = DefaultSchedule
	}

	id, err := s.cron.AddFunc(cronExpr, func() {
		common.SafeGo(s.logger, "quote_refresh", func() { s.RunOnce(context.Background()) })
	})
	if err != nil {
		return fmt.Errorf("failed to add cron job: %w", err)
	}

	s.cronID = id
	s.cron.Start()
	s.running = true

	s.logger.Info().
		Str("cron_expr", cronExpr).
		Int("tickers", len(s.tickers)).
		Msg("Quote refresh scheduler started")
	return nil
}

// Stop halts the scheduler and waits for a running refresh to finish
func (s *Service) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.mu.Unlock()

	<-s.cron.Stop().Done()
	s.runMu.Lock()
	defer s.runMu.Unlock()

	s.logger.Info().Msg("Quote refresh scheduler stopped")
	return nil
}

// IsRunning reports whether the scheduler is started
func (s *Service) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// NextRun returns the next scheduled refresh, or zero when stopped
func (s *Service) NextRun() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return time.Time{}
	}
	return s.cron.Entry(s.cronID).Next
}

// LastRun returns when the last refresh finished and its error summary, if any
func (s *Service) LastRun() (*time.Time, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRun, s.lastError
}

// RunOnce refreshes all tickers now. A tick that arrives while a refresh
// is still running is skipped.
func (s *Service) RunOnce(ctx context.Context) []market.QuoteResult {
	if !s.runMu.TryLock() {
		s.logger.Debug().Msg("Quote refresh already running, skipping tick")
		return nil
	}
	defer s.runMu.Unlock()

	results := s.refresher.RefreshQuotes(ctx, s.tickers)

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
	}

	now := time.Now()
	s.mu.Lock()
	s.lastRun = &now
	s.lastError = ""
	if failed > 0 {
		s.lastError = fmt.Sprintf("%d of %d tickers failed", failed, len(results))
	}
	s.mu.Unlock()

	if s.onResults != nil {
		s.onResults(results)
	}
	return results
}
