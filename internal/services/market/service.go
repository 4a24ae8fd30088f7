// Package market is the entry point for market data requests. It resolves the
// ticker, consults the freshness cache, and falls through to the quote fetcher
// or the browser scraper.
package market

import (
	"context"
	"errors"
	"sync"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/tickerfeed/internal/common"
	"github.com/ternarybob/tickerfeed/internal/interfaces"
	"github.com/ternarybob/tickerfeed/internal/models"
)

const (
	opStockPrice = "stock_price"

	defaultConcurrency = 4
)

// QuoteResult is one ticker's outcome within a batch refresh. Err is the
// ticker's own failure and never affects other entries.
type QuoteResult struct {
	Ticker string
	Price  *models.StockPrice
	Err    error
}

// Service combines the acquisition components behind ticker-level operations
type Service struct {
	resolver    interfaces.TickerResolver
	quotes      interfaces.QuoteFetcher
	scraper     interfaces.FinancialScraper
	cache       interfaces.DatasetCache
	concurrency int
	logger      arbor.ILogger
}

// NewService creates the market data service. concurrency bounds RefreshQuotes.
func NewService(resolver interfaces.TickerResolver, quotes interfaces.QuoteFetcher, scraper interfaces.FinancialScraper, cache interfaces.DatasetCache, concurrency int, logger arbor.ILogger) *Service {
	if concurrency < 1 {
		concurrency = defaultConcurrency
	}
	return &Service{
		resolver:    resolver,
		quotes:      quotes,
		scraper:     scraper,
		cache:       cache,
		concurrency: concurrency,
		logger:      logger,
	}
}

// GetStockPrice resolves ticker and fetches its live quote. Missing previous close and
// change fields default to "0" and "0%".
func (s *Service) GetStockPrice(ctx context.Context, ticker string) (*models.StockPrice, error) {
	ticker = models.NormalizeTicker(ticker)

	resolved, err := s.resolver.ResolveTicker(ctx, ticker)
	if err != nil {
		return nil, err
	}
	company := resolved.Company

	if company.QuoteURL == "" {
		return nil, models.NewFetchError(models.FailureNotFound, opStockPrice, ticker, "company has no quote URL", nil)
	}

	snapshot, err := s.quotes.FetchQuote(ctx, company.QuoteURL)
	if err != nil {
		// A just-created company already carries the price seen while probing
		if resolved.Created && resolved.PriceText != "" {
			s.logger.Debug().Str("ticker", ticker).Err(err).Msg("Using probe price for new company")
			return withValues(&models.StockPrice{
				Ticker:        ticker,
				Name:          company.Name,
				Price:         resolved.PriceText,
				PreviousClose: "0",
				ChangeAmount:  "0",
				ChangePercent: "0%",
			}), nil
		}
		return nil, tagTicker(err, ticker)
	}
	if snapshot.Price == nil {
		return nil, models.NewFetchError(models.FailureNotFound, opStockPrice, ticker, "price not found", nil)
	}

	return withValues(&models.StockPrice{
		Ticker:        ticker,
		Name:          company.Name,
		Price:         *snapshot.Price,
		PreviousClose: models.StrOr(snapshot.PreviousClose, "0"),
		ChangeAmount:  models.StrOr(snapshot.ChangeAmount, "0"),
		ChangePercent: models.StrOr(snapshot.ChangePercent, "0%"),
	}), nil
}

// withValues fills the numeric readings from the display text.
func withValues(price *models.StockPrice) *models.StockPrice {
	price.Values = models.PriceValues{
		Price:         common.ParseDecimal(price.Price),
		PreviousClose: common.ParseDecimal(price.PreviousClose),
		ChangeAmount:  common.ParseSignedDecimal(price.ChangeAmount),
		ChangePercent: common.ParseSignedDecimal(price.ChangePercent),
	}
	return price
}

// GetRatios returns today's ratios for the subject, scraping only on a cache miss.
// An empty subjectID caches under the ticker.
func (s *Service) GetRatios(ctx context.Context, subjectID, ticker string) (*models.RatiosResult, error) {
	ticker = models.NormalizeTicker(ticker)
	subjectID = subjectOrTicker(subjectID, ticker)

	profileURL, err := s.profileURL(ctx, ticker)
	if err != nil {
		return nil, err
	}

	if ratios, ok := s.cache.GetRatios(ctx, subjectID); ok {
		s.logger.Debug().Str("ticker", ticker).Str("subject_id", subjectID).Msg("Ratios served from cache")
		return &models.RatiosResult{
			Ticker: ticker,
			Ratios: ratios,
			Count:  len(ratios),
			Cached: true,
			Source: models.SourceCache,
		}, nil
	}

	ratios, err := s.scraper.FetchRatios(ctx, ticker, profileURL)
	if err != nil {
		return nil, err
	}

	if err := s.cache.PutRatios(ctx, subjectID, ratios); err != nil {
		s.logger.Warn().Str("ticker", ticker).Str("subject_id", subjectID).Err(err).Msg("Failed to cache ratios")
	}

	return &models.RatiosResult{
		Ticker: ticker,
		Ratios: ratios,
		Count:  len(ratios),
		Cached: false,
		Source: models.SourceFreshScrape,
	}, nil
}

// GetQuarterly returns today's quarterly results for the subject, scraping only on a cache miss.
func (s *Service) GetQuarterly(ctx context.Context, subjectID, ticker string) (*models.QuarterlyResult, error) {
	ticker = models.NormalizeTicker(ticker)
	subjectID = subjectOrTicker(subjectID, ticker)

	profileURL, err := s.profileURL(ctx, ticker)
	if err != nil {
		return nil, err
	}

	if quarterly, ok := s.cache.GetQuarterly(ctx, subjectID); ok {
		s.logger.Debug().Str("ticker", ticker).Str("subject_id", subjectID).Msg("Quarterly results served from cache")
		return &models.QuarterlyResult{
			Ticker:    ticker,
			Quarterly: quarterly,
			Cached:    true,
			Source:    models.SourceCache,
		}, nil
	}

	quarterly, err := s.scraper.FetchQuarterly(ctx, ticker, profileURL)
	if err != nil {
		return nil, err
	}

	if err := s.cache.PutQuarterly(ctx, subjectID, quarterly); err != nil {
		s.logger.Warn().Str("ticker", ticker).Str("subject_id", subjectID).Err(err).Msg("Failed to cache quarterly results")
	}

	return &models.QuarterlyResult{
		Ticker:    ticker,
		Quarterly: quarterly,
		Cached:    false,
		Source:    models.SourceFreshScrape,
	}, nil
}

// RefreshQuotes fetches prices for every ticker with bounded concurrency.
// Results keep the input order; one ticker's failure is recorded in its own entry.
func (s *Service) RefreshQuotes(ctx context.Context, tickers []string) []QuoteResult {
	results := make([]QuoteResult, len(tickers))
	sem := make(chan struct{}, s.concurrency)
	var wg sync.WaitGroup

	for i, ticker := range tickers {
		results[i].Ticker = models.NormalizeTicker(ticker)

		wg.Add(1)
		go func(i int) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				results[i].Err = models.NewFetchError(models.FailureNetwork, opStockPrice, results[i].Ticker, "refresh cancelled", ctx.Err())
				return
			}

			var err error
			func() {
				defer common.RecoverToError(s.logger, "refresh_quote", &err)
				results[i].Price, err = s.GetStockPrice(ctx, results[i].Ticker)
			}()
			results[i].Err = err
		}(i)
	}
	wg.Wait()

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
			s.logger.Warn().
				Str("ticker", r.Ticker).
				Str("kind", string(models.KindOf(r.Err))).
				Err(r.Err).
				Msg("Quote refresh failed")
		}
	}
	s.logger.Info().Int("tickers", len(tickers)).Int("failed", failed).Msg("Quote refresh complete")

	return results
}

// profileURL resolves ticker and returns the profile page used for scraping.
func (s *Service) profileURL(ctx context.Context, ticker string) (string, error) {
	resolved, err := s.resolver.ResolveTicker(ctx, ticker)
	if err != nil {
		return "", err
	}
	company := resolved.Company

	if url := company.ProfileURL(ticker); url != "" {
		return url, nil
	}
	// Any alias's profile page shows the same company
	for _, t := range company.Tickers {
		if url := company.ProfileURL(t); url != "" {
			return url, nil
		}
	}
	return "", models.NewFetchError(models.FailureNotFound, "profile_url", ticker, "company has no profile URL", nil)
}

func subjectOrTicker(subjectID, ticker string) string {
	if subjectID == "" {
		return ticker
	}
	return subjectID
}

// tagTicker fills the ticker on a FetchError produced by a URL-only call.
func tagTicker(err error, ticker string) error {
	var fe *models.FetchError
	if errors.As(err, &fe) && fe.Ticker == "" {
		fe.Ticker = ticker
	}
	return err
}
