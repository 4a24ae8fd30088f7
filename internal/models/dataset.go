package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// DatasetKind identifies what a cached payload holds.
type DatasetKind string

const (
	DatasetKindRatios    DatasetKind = "ratios"
	DatasetKindQuarterly DatasetKind = "quarterly"
)

// Valid reports whether k is a known dataset kind.
func (k DatasetKind) Valid() bool {
	return k == DatasetKindRatios || k == DatasetKindQuarterly
}

// DatasetSource tells callers where a dataset came from.
type DatasetSource string

const (
	SourceCache       DatasetSource = "database_cache"
	SourceFreshScrape DatasetSource = "fresh_scrape"
)

// CachedDataset is one stored payload per (subject, kind).
// It is only reusable while CacheDate matches today's date key.
type CachedDataset struct {
	Key       string          `json:"key"`
	SubjectID string          `json:"subject_id"`
	Kind      DatasetKind     `json:"kind"`
	Payload   json.RawMessage `json:"payload"`
	CacheDate string          `json:"cache_date"` // YYYY-MM-DD
	UpdatedAt time.Time       `json:"updated_at"`
}

// DatasetKey builds the storage key for a (subject, kind) pair.
func DatasetKey(subjectID string, kind DatasetKind) string {
	return fmt.Sprintf("%s:%s", subjectID, kind)
}

// Ratio is one entry of the ratios list. FullValue keeps the original text
// because separating number from unit is heuristic.
type Ratio struct {
	Name        string `json:"name"`
	FullValue   string `json:"full_value"`
	NumberValue string `json:"number_value"`
	Unit        string `json:"unit"`
	SourceType  string `json:"source_type,omitempty"`
}

// Ratios maps ratio name to its parsed value.
type Ratios map[string]Ratio

// QuarterlyDataset is the quarterly results table.
// Every Metrics entry has exactly len(Headers) values.
type QuarterlyDataset struct {
	Headers     []string            `json:"headers"`
	Metrics     map[string][]string `json:"metrics"`
	MetricOrder []string            `json:"metric_order,omitempty"` // row order as presented
}

// Validate checks the per-metric length invariant.
func (q *QuarterlyDataset) Validate() error {
	if q == nil {
		return fmt.Errorf("quarterly dataset is nil")
	}
	for name, values := range q.Metrics {
		if len(values) != len(q.Headers) {
			return fmt.Errorf("metric %q has %d values, want %d", name, len(values), len(q.Headers))
		}
	}
	return nil
}

// Empty reports whether the dataset has no usable rows.
func (q *QuarterlyDataset) Empty() bool {
	return q == nil || len(q.Headers) == 0 || len(q.Metrics) == 0
}

// RatiosResult is a ratios lookup with provenance.
type RatiosResult struct {
	Ticker string        `json:"ticker"`
	Ratios Ratios        `json:"ratios"`
	Count  int           `json:"count"`
	Cached bool          `json:"cached"`
	Source DatasetSource `json:"source"`
}

// QuarterlyResult is a quarterly lookup with provenance.
type QuarterlyResult struct {
	Ticker    string            `json:"ticker"`
	Quarterly *QuarterlyDataset `json:"quarterly_data"`
	Cached    bool              `json:"cached"`
	Source    DatasetSource     `json:"source"`
}
