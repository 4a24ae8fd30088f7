package identity

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/ternarybob/tickerfeed/internal/interfaces"
	"github.com/ternarybob/tickerfeed/internal/models"
)

// memStore is an in-memory CompanyStorage keyed by name.
type memStore struct {
	mu        sync.Mutex
	companies map[string]*models.Company
	nextID    int
}

func newMemStore(seed ...*models.Company) *memStore {
	s := &memStore{companies: map[string]*models.Company{}}
	for _, c := range seed {
		s.companies[c.Name] = c
	}
	return s
}

func (s *memStore) FindCompanyByTicker(ctx context.Context, ticker string) (*models.Company, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.companies {
		if c.HasTicker(ticker) {
			return clone(c), nil
		}
	}
	return nil, interfaces.ErrCompanyNotFound
}

func (s *memStore) FindCompanyByName(ctx context.Context, name string) (*models.Company, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.companies[strings.TrimSpace(name)]; ok {
		return clone(c), nil
	}
	return nil, interfaces.ErrCompanyNotFound
}

func (s *memStore) UpsertCompany(ctx context.Context, name string, tickers []string, profileURLs map[string]string, quoteURL string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.companies[name]
	if !ok {
		s.nextID++
		c = &models.Company{ID: "company_" + string(rune('a'+s.nextID)), Name: name}
		s.companies[name] = c
	}
	c.Tickers = append([]string(nil), tickers...)
	c.ProfileURLs = map[string]string{}
	for k, v := range profileURLs {
		c.ProfileURLs[k] = v
	}
	c.QuoteURL = quoteURL
	return c.ID, nil
}

func (s *memStore) ListCompanies(ctx context.Context) ([]*models.Company, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.Company, 0, len(s.companies))
	for _, c := range s.companies {
		out = append(out, clone(c))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func clone(c *models.Company) *models.Company {
	cp := *c
	cp.Tickers = append([]string(nil), c.Tickers...)
	cp.ProfileURLs = map[string]string{}
	for k, v := range c.ProfileURLs {
		cp.ProfileURLs[k] = v
	}
	return &cp
}
