package companies

import (
	"context"
	"fmt"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/tickerfeed/internal/interfaces"
	"github.com/ternarybob/tickerfeed/internal/models"
)

// DefaultSuggestionLimit caps suggestion lists when the caller passes zero.
const DefaultSuggestionLimit = 10

// Service answers read queries over the company registry
type Service struct {
	storage interfaces.CompanyStorage
	logger  arbor.ILogger
}

// NewService creates a new company service
func NewService(storage interfaces.CompanyStorage, logger arbor.ILogger) *Service {
	return &Service{
		storage: storage,
		logger:  logger,
	}
}

// Suggest returns companies whose name or any ticker contains query (case-insensitive),
// ordered by name. A blank query returns no suggestions.
func (s *Service) Suggest(ctx context.Context, query string, limit int) ([]models.CompanySuggestion, error) {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return []models.CompanySuggestion{}, nil
	}
	if limit <= 0 {
		limit = DefaultSuggestionLimit
	}

	companies, err := s.storage.ListCompanies(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list companies: %w", err)
	}

	suggestions := make([]models.CompanySuggestion, 0, limit)
	for _, company := range companies {
		if !matches(company, query) {
			continue
		}
		suggestions = append(suggestions, Suggestion(company))
		if len(suggestions) == limit {
			break
		}
	}

	s.logger.Debug().Str("query", query).Int("count", len(suggestions)).Msg("Company suggestions")
	return suggestions, nil
}

// Suggestion builds the display form of a company: the shortest ticker first,
// the other aliases in parentheses.
func Suggestion(company *models.Company) models.CompanySuggestion {
	primary := company.PrimaryTicker()

	display := primary
	others := make([]string, 0, len(company.Tickers))
	for _, t := range company.Tickers {
		if t != primary {
			others = append(others, t)
		}
	}
	if len(others) > 0 {
		display = fmt.Sprintf("%s (%s)", primary, strings.Join(others, ", "))
	}

	return models.CompanySuggestion{
		Ticker:        primary,
		CompanyName:   company.Name,
		DisplayTicker: display,
		AllTickers:    append([]string(nil), company.Tickers...),
	}
}

func matches(company *models.Company, query string) bool {
	if strings.Contains(strings.ToLower(company.Name), query) {
		return true
	}
	for _, t := range company.Tickers {
		if strings.Contains(strings.ToLower(t), query) {
			return true
		}
	}
	return false
}
