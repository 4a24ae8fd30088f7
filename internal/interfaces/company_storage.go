package interfaces

import (
	"context"
	"errors"

	"github.com/ternarybob/tickerfeed/internal/models"
)

// ErrCompanyNotFound is returned when no company matches a lookup
var ErrCompanyNotFound = errors.New("company not found")

// CompanyStorage is the company registry used by the identity resolver
type CompanyStorage interface {
	// FindCompanyByTicker returns the company owning ticker (case-insensitive)
	FindCompanyByTicker(ctx context.Context, ticker string) (*models.Company, error)

	// FindCompanyByName returns the company with exactly this canonical name
	FindCompanyByName(ctx context.Context, name string) (*models.Company, error)

	// UpsertCompany creates the company or overwrites its tickers/URLs, keyed by name.
	// The write is atomic per company. Returns the company ID.
	UpsertCompany(ctx context.Context, name string, tickers []string, profileURLs map[string]string, quoteURL string) (string, error)

	// ListCompanies returns all companies ordered by name
	ListCompanies(ctx context.Context) ([]*models.Company, error)
}
