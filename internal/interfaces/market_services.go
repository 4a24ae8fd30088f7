package interfaces

import (
	"context"

	"github.com/ternarybob/tickerfeed/internal/models"
)

// QuoteFetcher fetches the live price block from a quote page URL
type QuoteFetcher interface {
	FetchQuote(ctx context.Context, url string) (*models.QuoteSnapshot, error)
}

// TickerResolver maps a ticker to its canonical company, discovering it if needed
type TickerResolver interface {
	ResolveTicker(ctx context.Context, ticker string) (*models.ResolvedCompany, error)
}

// FinancialScraper runs an authenticated browser session against the ratios site.
// Implementations allow at most one session at a time.
type FinancialScraper interface {
	FetchRatios(ctx context.Context, ticker, profileURL string) (models.Ratios, error)
	FetchQuarterly(ctx context.Context, ticker, profileURL string) (*models.QuarterlyDataset, error)
}

// DatasetCache is the same-day freshness cache for scraped datasets
type DatasetCache interface {
	GetRatios(ctx context.Context, subjectID string) (models.Ratios, bool)
	PutRatios(ctx context.Context, subjectID string, ratios models.Ratios) error
	GetQuarterly(ctx context.Context, subjectID string) (*models.QuarterlyDataset, bool)
	PutQuarterly(ctx context.Context, subjectID string, quarterly *models.QuarterlyDataset) error
}
