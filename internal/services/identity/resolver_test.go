package identity

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/tickerfeed/internal/common"
	"github.com/ternarybob/tickerfeed/internal/httpclient"
	"github.com/ternarybob/tickerfeed/internal/models"
)

const priceHTML = `<html><body>
<div class="TitleGridAndImage_title-grid-and-image-price__a1">
  <div class="TitleGridAndImage_title-grid-and-image-price-text__b1 kotak-heading-2">3,912.40</div>
</div></body></html>`

func profileHTML(name string) string {
	return fmt.Sprintf(`<html><body>
<div class="flex-row flex-wrap flex-align-center flex-grow">
  <h1 class="margin-0 show-from-tablet-landscape">%s</h1>
</div></body></html>`, name)
}

// siteFixture serves profile pages by ticker and quote pages by slug, recording every path.
type siteFixture struct {
	mu       sync.Mutex
	paths    []string
	profiles map[string]string
	quotes   map[string]bool
}

func (f *siteFixture) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.paths = append(f.paths, r.URL.Path)
	f.mu.Unlock()

	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(parts) != 2 {
		http.NotFound(w, r)
		return
	}
	switch parts[0] {
	case "company":
		if name, ok := f.profiles[parts[1]]; ok {
			_, _ = w.Write([]byte(profileHTML(name)))
			return
		}
	case "stocks":
		if f.quotes[parts[1]] {
			_, _ = w.Write([]byte(priceHTML))
			return
		}
	}
	http.NotFound(w, r)
}

func (f *siteFixture) requested() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.paths...)
}

func newTestResolver(t *testing.T, fixture *siteFixture, store *memStore) *Resolver {
	t.Helper()
	server := httptest.NewServer(fixture)
	t.Cleanup(server.Close)

	config := common.NewDefaultConfig()
	config.Resolver.ProfileURLTemplate = server.URL + "/company/%s/"
	config.Fetcher.QuoteURLTemplate = server.URL + "/stocks/%s/"

	logger := arbor.NewLogger()
	return NewResolver(httpclient.New(httpclient.WithLogger(logger)), store, config, logger)
}

func TestResolveTicker_KnownTickerNoNetwork(t *testing.T) {
	fixture := &siteFixture{}
	store := newMemStore(&models.Company{ID: "company_1", Name: "Infosys Ltd", Tickers: []string{"INFY"}, QuoteURL: "https://quotes.test/infosys-ltd/"})
	resolver := newTestResolver(t, fixture, store)

	resolved, err := resolver.ResolveTicker(context.Background(), " infy ")
	require.NoError(t, err)
	assert.Equal(t, "Infosys Ltd", resolved.Company.Name)
	assert.False(t, resolved.Created)
	assert.False(t, resolved.Merged)
	assert.Empty(t, fixture.requested())
}

func TestResolveTicker_NewCompanyProbesInOrder(t *testing.T) {
	fixture := &siteFixture{
		profiles: map[string]string{"TCS": "Tata Consultancy Services Ltd"},
		quotes:   map[string]bool{"tata-consultancy-services": true},
	}
	store := newMemStore()
	resolver := newTestResolver(t, fixture, store)

	resolved, err := resolver.ResolveTicker(context.Background(), "tcs")
	require.NoError(t, err)
	assert.True(t, resolved.Created)
	assert.Equal(t, "3,912.40", resolved.PriceText)
	assert.Equal(t, "Tata Consultancy Services Ltd", resolved.Company.Name)
	assert.Equal(t, []string{"TCS"}, resolved.Company.Tickers)
	assert.True(t, strings.HasSuffix(resolved.Company.QuoteURL, "/stocks/tata-consultancy-services/"))
	assert.True(t, strings.HasSuffix(resolved.Company.ProfileURL("TCS"), "/company/TCS/"))

	assert.Equal(t, []string{
		"/company/TCS/",
		"/stocks/tata-consultancy-services-ltd/",
		"/stocks/tata-consultancy-services/",
	}, fixture.requested())
}

func TestResolveTicker_MergeByExactName(t *testing.T) {
	fixture := &siteFixture{
		profiles: map[string]string{"532540": "Tata Consultancy Services Ltd"},
	}
	store := newMemStore(&models.Company{
		ID: "company_1", Name: "Tata Consultancy Services Ltd", Tickers: []string{"TCS"},
		ProfileURLs: map[string]string{"TCS": "https://profiles.test/TCS/"},
		QuoteURL:    "https://quotes.test/tata-consultancy-services/",
	})
	resolver := newTestResolver(t, fixture, store)

	resolved, err := resolver.ResolveTicker(context.Background(), "532540")
	require.NoError(t, err)
	assert.True(t, resolved.Merged)
	assert.Equal(t, []string{"TCS", "532540"}, resolved.Company.Tickers)
	assert.Equal(t, "https://quotes.test/tata-consultancy-services/", resolved.Company.QuoteURL)
	assert.Equal(t, []string{"/company/532540/"}, fixture.requested(), "quote discovery is skipped on merge")

	companies, err := store.ListCompanies(context.Background())
	require.NoError(t, err)
	require.Len(t, companies, 1)
}

func TestResolveTicker_MergeByCompactedNameAlias(t *testing.T) {
	fixture := &siteFixture{
		profiles: map[string]string{"HDFCBANK.NS": "HDFC Bank"},
	}
	store := newMemStore(&models.Company{
		ID: "company_1", Name: "HDFC Bank Ltd", Tickers: []string{"HDFCBANK"},
		QuoteURL: "https://quotes.test/hdfc-bank-ltd/",
	})
	resolver := newTestResolver(t, fixture, store)

	resolved, err := resolver.ResolveTicker(context.Background(), "hdfcbank.ns")
	require.NoError(t, err)
	assert.True(t, resolved.Merged)
	assert.Equal(t, "HDFC Bank Ltd", resolved.Company.Name)
	assert.Equal(t, []string{"HDFCBANK", "HDFCBANK.NS"}, resolved.Company.Tickers)

	companies, err := store.ListCompanies(context.Background())
	require.NoError(t, err)
	assert.Len(t, companies, 1)
}

func TestResolveTicker_RepeatedResolutionNeverDuplicates(t *testing.T) {
	fixture := &siteFixture{
		profiles: map[string]string{
			"RELIANCE": "Reliance Industries Ltd",
			"500325":   "Reliance Industries Ltd",
		},
		quotes: map[string]bool{"reliance-industries-ltd": true},
	}
	store := newMemStore()
	resolver := newTestResolver(t, fixture, store)
	ctx := context.Background()

	for _, ticker := range []string{"RELIANCE", "500325", "RELIANCE", "500325"} {
		_, err := resolver.ResolveTicker(ctx, ticker)
		require.NoError(t, err)
	}

	companies, err := store.ListCompanies(ctx)
	require.NoError(t, err)
	require.Len(t, companies, 1)
	assert.Equal(t, []string{"RELIANCE", "500325"}, companies[0].Tickers)
}

func TestResolveTicker_ConcurrentDiscoveryUnionsAliases(t *testing.T) {
	fixture := &siteFixture{
		profiles: map[string]string{
			"WIPRO":  "Wipro Ltd",
			"507685": "Wipro Ltd",
		},
		quotes: map[string]bool{"wipro-ltd": true},
	}
	store := newMemStore()
	resolver := newTestResolver(t, fixture, store)

	var wg sync.WaitGroup
	for _, ticker := range []string{"WIPRO", "507685"} {
		wg.Add(1)
		go func(ticker string) {
			defer wg.Done()
			_, err := resolver.ResolveTicker(context.Background(), ticker)
			assert.NoError(t, err)
		}(ticker)
	}
	wg.Wait()

	companies, err := store.ListCompanies(context.Background())
	require.NoError(t, err)
	require.Len(t, companies, 1)
	assert.ElementsMatch(t, []string{"WIPRO", "507685"}, companies[0].Tickers)
}

func TestResolveTicker_NotFound(t *testing.T) {
	tests := []struct {
		name    string
		fixture *siteFixture
		ticker  string
	}{
		{
			name:    "profile page missing",
			fixture: &siteFixture{},
			ticker:  "NOPE",
		},
		{
			name: "no quote candidate works",
			fixture: &siteFixture{
				profiles: map[string]string{"ZZZ": "Zeta Zinc Ltd"},
			},
			ticker: "ZZZ",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemStore()
			resolver := newTestResolver(t, tt.fixture, store)

			resolved, err := resolver.ResolveTicker(context.Background(), tt.ticker)
			assert.Nil(t, resolved)
			assert.ErrorIs(t, err, models.ErrNotFound)

			companies, _ := store.ListCompanies(context.Background())
			assert.Empty(t, companies, "nothing is stored for an unresolvable ticker")
		})
	}
}

func TestResolveTicker_HeadingMissing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<div class="flex-row flex-wrap flex-align-center flex-grow"><h2>Not a heading</h2></div>`))
	}))
	defer server.Close()

	config := common.NewDefaultConfig()
	config.Resolver.ProfileURLTemplate = server.URL + "/company/%s/"
	config.Fetcher.QuoteURLTemplate = server.URL + "/stocks/%s/"
	logger := arbor.NewLogger()
	resolver := NewResolver(httpclient.New(httpclient.WithLogger(logger)), newMemStore(), config, logger)

	_, err := resolver.ResolveTicker(context.Background(), "ABC")
	assert.Equal(t, models.FailureNotFound, models.KindOf(err))
	assert.Contains(t, err.Error(), "company name not found")
}

func TestResolveTicker_EmptyTicker(t *testing.T) {
	resolver := newTestResolver(t, &siteFixture{}, newMemStore())
	_, err := resolver.ResolveTicker(context.Background(), "   ")
	assert.ErrorIs(t, err, models.ErrNotFound)
}
