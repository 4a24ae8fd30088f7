package badger

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/tickerfeed/internal/common"
	"github.com/ternarybob/tickerfeed/internal/interfaces"
	"github.com/ternarybob/tickerfeed/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// CompanyStorage implements interfaces.CompanyStorage for Badger.
// Records are keyed by canonical name, which keeps names unique.
type CompanyStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewCompanyStorage creates a new CompanyStorage instance
func NewCompanyStorage(db *BadgerDB, logger arbor.ILogger) interfaces.CompanyStorage {
	return &CompanyStorage{
		db:     db,
		logger: logger,
	}
}

func companyKey(name string) string {
	return strings.TrimSpace(name)
}

// FindCompanyByTicker returns the company whose alias list contains ticker
func (s *CompanyStorage) FindCompanyByTicker(ctx context.Context, ticker string) (*models.Company, error) {
	ticker = models.NormalizeTicker(ticker)
	if ticker == "" {
		return nil, interfaces.ErrCompanyNotFound
	}

	var companies []models.Company
	if err := s.db.Store().Find(&companies, badgerhold.Where("Tickers").Contains(ticker).Limit(1)); err != nil {
		return nil, fmt.Errorf("failed to find company by ticker %s: %w", ticker, err)
	}
	if len(companies) == 0 {
		return nil, interfaces.ErrCompanyNotFound
	}
	return &companies[0], nil
}

// FindCompanyByName returns the company with exactly this name
func (s *CompanyStorage) FindCompanyByName(ctx context.Context, name string) (*models.Company, error) {
	key := companyKey(name)
	if key == "" {
		return nil, interfaces.ErrCompanyNotFound
	}

	var company models.Company
	err := s.db.Store().Get(key, &company)
	if isNotFound(err) {
		return nil, interfaces.ErrCompanyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get company %q: %w", name, err)
	}
	return &company, nil
}

// UpsertCompany creates or overwrites the company named name in a single transaction.
// The ID and CreatedAt of an existing record are preserved; tickers, profile URLs and
// quote URL are replaced with the supplied values.
func (s *CompanyStorage) UpsertCompany(ctx context.Context, name string, tickers []string, profileURLs map[string]string, quoteURL string) (string, error) {
	key := companyKey(name)
	if key == "" {
		return "", fmt.Errorf("company name is required")
	}

	normalized := normalizeTickers(tickers)
	urls := make(map[string]string, len(profileURLs))
	for t, u := range profileURLs {
		urls[models.NormalizeTicker(t)] = u
	}

	var companyID string
	err := s.db.Store().Badger().Update(func(tx *badger.Txn) error {
		now := time.Now()
		company := models.Company{
			ID:          common.NewCompanyID(),
			Name:        key,
			Tickers:     normalized,
			ProfileURLs: urls,
			QuoteURL:    quoteURL,
			CreatedAt:   now,
			UpdatedAt:   now,
		}

		var existing models.Company
		err := s.db.Store().TxGet(tx, key, &existing)
		switch {
		case err == nil:
			company.ID = existing.ID
			company.CreatedAt = existing.CreatedAt
		case isNotFound(err):
		default:
			return fmt.Errorf("failed to check existing company: %w", err)
		}

		companyID = company.ID
		return s.db.Store().TxUpsert(tx, key, &company)
	})
	if err != nil {
		return "", fmt.Errorf("failed to upsert company %q: %w", name, err)
	}

	s.logger.Debug().
		Str("company_id", companyID).
		Str("name", key).
		Strs("tickers", normalized).
		Msg("Company upserted")

	return companyID, nil
}

// ListCompanies returns all companies ordered by name
func (s *CompanyStorage) ListCompanies(ctx context.Context) ([]*models.Company, error) {
	var companies []models.Company
	if err := s.db.Store().Find(&companies, nil); err != nil {
		return nil, fmt.Errorf("failed to list companies: %w", err)
	}

	sort.Slice(companies, func(i, j int) bool {
		return companies[i].Name < companies[j].Name
	})

	result := make([]*models.Company, len(companies))
	for i := range companies {
		result[i] = &companies[i]
	}
	return result, nil
}

// normalizeTickers upper-cases tickers and drops blanks and duplicates, keeping first-seen order
func normalizeTickers(tickers []string) []string {
	seen := make(map[string]bool, len(tickers))
	result := make([]string, 0, len(tickers))
	for _, t := range tickers {
		n := models.NormalizeTicker(t)
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		result = append(result, n)
	}
	return result
}
