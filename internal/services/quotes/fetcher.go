package quotes

import (
	"context"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/tickerfeed/internal/httpclient"
	"github.com/ternarybob/tickerfeed/internal/interfaces"
	"github.com/ternarybob/tickerfeed/internal/models"
)

const opFetchQuote = "fetch_quote"

// Fetcher reads the live price block from a quote page with a single plain GET.
type Fetcher struct {
	client *httpclient.Client
	logger arbor.ILogger
}

var _ interfaces.QuoteFetcher = (*Fetcher)(nil)

// NewFetcher creates a quote fetcher over the shared HTTP client
func NewFetcher(client *httpclient.Client, logger arbor.ILogger) *Fetcher {
	return &Fetcher{
		client: client,
		logger: logger,
	}
}

// FetchQuote returns a snapshot, or a *models.FetchError of kind network, http_status or not_found.
// A failed fetch never returns a partial snapshot.
func (f *Fetcher) FetchQuote(ctx context.Context, url string) (*models.QuoteSnapshot, error) {
	doc, err := f.client.GetDocument(ctx, url)
	if err != nil {
		fe := httpclient.AsFetchError(opFetchQuote, "", url, err)
		f.logger.Warn().Str("url", url).Str("kind", string(fe.Kind)).Err(err).Msg("Quote fetch failed")
		return nil, fe
	}

	snapshot := ParseQuote(doc)
	if snapshot.Empty() {
		f.logger.Warn().Str("url", url).Str("anchor", priceContainerClass.String()).Msg("Quote page has no price block")
		fe := models.NewFetchError(models.FailureNotFound, opFetchQuote, "", "price not found", nil)
		fe.URL = url
		return nil, fe
	}

	f.logger.Debug().
		Str("url", url).
		Str("price", models.StrOr(snapshot.Price, "")).
		Msg("Quote fetched")

	return snapshot, nil
}
