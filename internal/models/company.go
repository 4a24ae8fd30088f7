package models

import (
	"strings"
	"time"
)

// Company is the canonical identity behind one or more exchange tickers.
// Name is unique across the registry; every ticker belongs to exactly one company.
type Company struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Tickers     []string          `json:"tickers"`
	ProfileURLs map[string]string `json:"profile_urls"` // ticker -> profile page used for ratios/quarterly
	QuoteURL    string            `json:"quote_url"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// HasTicker reports whether ticker is one of the company's aliases (case-insensitive).
func (c *Company) HasTicker(ticker string) bool {
	for _, t := range c.Tickers {
		if strings.EqualFold(t, ticker) {
			return true
		}
	}
	return false
}

// AddTicker appends ticker to the alias list if missing and records its profile URL.
// Returns true when the alias set changed.
func (c *Company) AddTicker(ticker, profileURL string) bool {
	ticker = NormalizeTicker(ticker)
	if c.ProfileURLs == nil {
		c.ProfileURLs = make(map[string]string)
	}
	if profileURL != "" {
		c.ProfileURLs[ticker] = profileURL
	}
	if c.HasTicker(ticker) {
		return false
	}
	c.Tickers = append(c.Tickers, ticker)
	return true
}

// ProfileURL returns the profile URL recorded for ticker, if any.
func (c *Company) ProfileURL(ticker string) string {
	ticker = NormalizeTicker(ticker)
	if url, ok := c.ProfileURLs[ticker]; ok {
		return url
	}
	for t, url := range c.ProfileURLs {
		if strings.EqualFold(t, ticker) {
			return url
		}
	}
	return ""
}

// PrimaryTicker is the shortest alias; ties keep the first one seen.
func (c *Company) PrimaryTicker() string {
	primary := ""
	for _, t := range c.Tickers {
		if primary == "" || len(t) < len(primary) {
			primary = t
		}
	}
	return primary
}

// NormalizeTicker upper-cases a ticker and removes all whitespace.
// "tcs " and "T CS" both become "TCS".
func NormalizeTicker(ticker string) string {
	return strings.ToUpper(strings.Join(strings.Fields(ticker), ""))
}

// ResolvedCompany is the outcome of resolving a ticker to a company.
type ResolvedCompany struct {
	Company *Company `json:"company"`

	// Created is true when the company did not exist before this resolution.
	Created bool `json:"created"`

	// Merged is true when the ticker was added as a new alias of an existing company.
	Merged bool `json:"merged"`

	// PriceText is the raw price found while probing quote-page candidates.
	// Only populated when a new company was created.
	PriceText string `json:"price_text,omitempty"`
}

// CompanySuggestion is a search hit used for ticker autocompletion.
type CompanySuggestion struct {
	Ticker        string   `json:"ticker"`
	CompanyName   string   `json:"company_name"`
	DisplayTicker string   `json:"display_ticker"`
	AllTickers    []string `json:"all_tickers"`
}
