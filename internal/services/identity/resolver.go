package identity

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/tickerfeed/internal/common"
	"github.com/ternarybob/tickerfeed/internal/httpclient"
	"github.com/ternarybob/tickerfeed/internal/interfaces"
	"github.com/ternarybob/tickerfeed/internal/models"
	"github.com/ternarybob/tickerfeed/internal/services/quotes"
)

const (
	opResolve = "resolve_ticker"

	nameContainerSelector = "div.flex-row.flex-wrap.flex-align-center.flex-grow"
	nameHeadingSelector   = "h1.margin-0.show-from-tablet-landscape"
)

// Resolver maps tickers to canonical companies, discovering unknown ones from the
// profile site (name) and the quote site (quote URL).
type Resolver struct {
	client             *httpclient.Client
	storage            interfaces.CompanyStorage
	profileURLTemplate string
	quoteURLTemplate   string
	logger             arbor.ILogger

	// writeMu orders the read-merge-write of the registry so concurrent
	// discoveries of the same company union their aliases.
	writeMu sync.Mutex
}

var _ interfaces.TickerResolver = (*Resolver)(nil)

// NewResolver creates a resolver using the [resolver] and [fetcher] URL templates
func NewResolver(client *httpclient.Client, storage interfaces.CompanyStorage, config *common.Config, logger arbor.ILogger) *Resolver {
	return &Resolver{
		client:             client,
		storage:            storage,
		profileURLTemplate: config.Resolver.ProfileURLTemplate,
		quoteURLTemplate:   config.Fetcher.QuoteURLTemplate,
		logger:             logger,
	}
}

// ProfileURL returns the profile page URL for a ticker
func (r *Resolver) ProfileURL(ticker string) string {
	return fmt.Sprintf(r.profileURLTemplate, models.NormalizeTicker(ticker))
}

// ResolveTicker returns the company owning ticker. Known tickers are answered from the
// registry without network access. Unknown tickers are discovered and persisted.
// Failures are *models.FetchError of kind not_found (or network on cancellation).
func (r *Resolver) ResolveTicker(ctx context.Context, ticker string) (*models.ResolvedCompany, error) {
	ticker = models.NormalizeTicker(ticker)
	if ticker == "" {
		return nil, models.NewFetchError(models.FailureNotFound, opResolve, "", "empty ticker", nil)
	}

	company, err := r.storage.FindCompanyByTicker(ctx, ticker)
	if err == nil {
		return &models.ResolvedCompany{Company: company}, nil
	}
	if !errors.Is(err, interfaces.ErrCompanyNotFound) {
		return nil, fmt.Errorf("failed to look up ticker %s: %w", ticker, err)
	}

	profileURL := r.ProfileURL(ticker)
	name, err := r.discoverName(ctx, ticker, profileURL)
	if err != nil {
		return nil, err
	}

	r.logger.Info().Str("ticker", ticker).Str("name", name).Msg("Company name discovered")

	if resolved, err := r.mergeAlias(ctx, ticker, name, profileURL); resolved != nil || err != nil {
		return resolved, err
	}

	quoteURL, priceText, err := r.discoverQuoteURL(ctx, ticker, name)
	if err != nil {
		return nil, err
	}

	return r.create(ctx, ticker, name, profileURL, quoteURL, priceText)
}

// discoverName reads the company display name from the profile page.
func (r *Resolver) discoverName(ctx context.Context, ticker, profileURL string) (string, error) {
	doc, err := r.client.GetDocument(ctx, profileURL)
	if err != nil {
		cause := httpclient.AsFetchError(opResolve, ticker, profileURL, err)
		r.logger.Warn().Str("ticker", ticker).Str("url", profileURL).Err(cause).Msg("Profile page unavailable")
		return "", r.notFound(ticker, profileURL, "profile page unavailable", cause)
	}

	name, ok := companyName(doc)
	if !ok {
		r.logger.Warn().Str("ticker", ticker).Str("url", profileURL).Str("anchor", nameHeadingSelector).Msg("Company name heading not found")
		return "", r.notFound(ticker, profileURL, "company name not found", nil)
	}
	return name, nil
}

func companyName(doc *goquery.Document) (string, bool) {
	container := doc.Find(nameContainerSelector).First()
	if container.Length() == 0 {
		return "", false
	}
	heading := container.Find(nameHeadingSelector).First()
	if heading.Length() == 0 {
		return "", false
	}
	name := common.CollapseSpaces(heading.Text())
	return name, name != ""
}

// mergeAlias attaches ticker to an existing company found by exact name, or by the
// compacted name used as an alias. Returns nil, nil when no company matched.
func (r *Resolver) mergeAlias(ctx context.Context, ticker, name, profileURL string) (*models.ResolvedCompany, error) {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	existing, err := r.findExisting(ctx, name)
	if err != nil || existing == nil {
		return nil, err
	}

	existing.AddTicker(ticker, profileURL)
	if _, err := r.storage.UpsertCompany(ctx, existing.Name, existing.Tickers, existing.ProfileURLs, existing.QuoteURL); err != nil {
		return nil, fmt.Errorf("failed to add alias %s to %q: %w", ticker, existing.Name, err)
	}

	r.logger.Info().
		Str("ticker", ticker).
		Str("name", existing.Name).
		Strs("tickers", existing.Tickers).
		Msg("Ticker merged into existing company")

	return &models.ResolvedCompany{Company: existing, Merged: true}, nil
}

func (r *Resolver) findExisting(ctx context.Context, name string) (*models.Company, error) {
	company, err := r.storage.FindCompanyByName(ctx, name)
	if err == nil {
		return company, nil
	}
	if !errors.Is(err, interfaces.ErrCompanyNotFound) {
		return nil, fmt.Errorf("failed to look up company %q: %w", name, err)
	}

	company, err = r.storage.FindCompanyByTicker(ctx, models.NormalizeTicker(name))
	if err == nil {
		return company, nil
	}
	if !errors.Is(err, interfaces.ErrCompanyNotFound) {
		return nil, fmt.Errorf("failed to look up company %q by alias: %w", name, err)
	}
	return nil, nil
}

// discoverQuoteURL probes slug candidates in order; the first page with a price element wins.
func (r *Resolver) discoverQuoteURL(ctx context.Context, ticker, name string) (string, string, error) {
	candidates := URLVariations(name)

	for i, slug := range candidates {
		if err := ctx.Err(); err != nil {
			return "", "", models.NewFetchError(models.FailureNetwork, opResolve, ticker, "resolution cancelled", err)
		}

		url := fmt.Sprintf(r.quoteURLTemplate, slug)
		doc, err := r.client.GetDocument(ctx, url)
		if err != nil {
			r.logger.Debug().Str("ticker", ticker).Str("candidate", url).Err(err).Msg("Quote candidate rejected")
			continue
		}

		if price, ok := quotes.HasPriceElement(doc); ok {
			r.logger.Info().
				Str("ticker", ticker).
				Str("candidate", url).
				Int("attempt", i+1).
				Str("price", price).
				Msg("Quote page found")
			return url, price, nil
		}
		r.logger.Debug().Str("ticker", ticker).Str("candidate", url).Msg("Quote candidate has no price element")
	}

	r.logger.Warn().Str("ticker", ticker).Str("name", name).Int("candidates", len(candidates)).Msg("No quote page matched")
	return "", "", r.notFound(ticker, "", fmt.Sprintf("no quote page for %q after %d candidates", name, len(candidates)), nil)
}

func (r *Resolver) create(ctx context.Context, ticker, name, profileURL, quoteURL, priceText string) (*models.ResolvedCompany, error) {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	tickers := []string{ticker}
	profileURLs := map[string]string{ticker: profileURL}
	created := true

	// Another call may have created the company while candidates were probed
	if existing, err := r.findExisting(ctx, name); err != nil {
		return nil, err
	} else if existing != nil {
		existing.AddTicker(ticker, profileURL)
		name, tickers, profileURLs = existing.Name, existing.Tickers, existing.ProfileURLs
		if existing.QuoteURL != "" {
			quoteURL = existing.QuoteURL
		}
		created = false
	}

	if _, err := r.storage.UpsertCompany(ctx, name, tickers, profileURLs, quoteURL); err != nil {
		return nil, fmt.Errorf("failed to store company %q: %w", name, err)
	}

	company, err := r.storage.FindCompanyByName(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to reload company %q: %w", name, err)
	}

	r.logger.Info().
		Str("ticker", ticker).
		Str("name", name).
		Str("url", quoteURL).
		Bool("created", created).
		Msg("Company registered")

	return &models.ResolvedCompany{
		Company:   company,
		Created:   created,
		Merged:    !created,
		PriceText: priceText,
	}, nil
}

func (r *Resolver) notFound(ticker, url, detail string, cause *models.FetchError) *models.FetchError {
	fe := models.NewFetchError(models.FailureNotFound, opResolve, ticker, detail, nil)
	fe.URL = url
	if cause != nil {
		fe.Err = cause
		fe.StatusCode = cause.StatusCode
		if fe.URL == "" {
			fe.URL = cause.URL
		}
	}
	return fe
}
