package models

import "github.com/shopspring/decimal"

// QuoteSnapshot is the live price block of a quote page.
// Values are the raw display text; a nil field was not present on the page.
type QuoteSnapshot struct {
	Price         *string `json:"price,omitempty"`
	PreviousClose *string `json:"previous_close,omitempty"`
	ChangeAmount  *string `json:"price_change_amount,omitempty"`
	ChangePercent *string `json:"price_change_percent,omitempty"`
}

// Empty reports whether no field could be extracted.
func (q *QuoteSnapshot) Empty() bool {
	return q == nil || (q.Price == nil && q.PreviousClose == nil && q.ChangeAmount == nil && q.ChangePercent == nil)
}

// StockPrice is the display-ready quote returned to callers, with the
// original API's defaults filled in for missing fields.
type StockPrice struct {
	Ticker        string      `json:"ticker"`
	Name          string      `json:"name"`
	Price         string      `json:"price"`
	PreviousClose string      `json:"previous_close"`
	ChangeAmount  string      `json:"price_change_amount"`
	ChangePercent string      `json:"price_change_percent"`
	Values        PriceValues `json:"values"`
}

// PriceValues are the numeric readings of a StockPrice's display text.
// Unreadable text reads as zero.
type PriceValues struct {
	Price         decimal.Decimal `json:"price"`
	PreviousClose decimal.Decimal `json:"previous_close"`
	ChangeAmount  decimal.Decimal `json:"price_change_amount"`
	ChangePercent decimal.Decimal `json:"price_change_percent"`
}

// StrPtr returns a pointer to s.
func StrPtr(s string) *string {
	return &s
}

// StrOr dereferences p, returning fallback when p is nil or empty.
func StrOr(p *string, fallback string) string {
	if p == nil || *p == "" {
		return fallback
	}
	return *p
}
