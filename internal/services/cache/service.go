// Package cache provides the same-day freshness cache for scraped datasets.
// A stored dataset is only reused while its cache date equals today's date key.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/tickerfeed/internal/common"
	"github.com/ternarybob/tickerfeed/internal/interfaces"
	"github.com/ternarybob/tickerfeed/internal/models"
)

// Service provides dataset freshness checking over DatasetStorage.
type Service struct {
	storage interfaces.DatasetStorage
	clock   *common.Clock
	logger  arbor.ILogger
}

var _ interfaces.DatasetCache = (*Service)(nil)

// NewService creates a new cache service.
func NewService(storage interfaces.DatasetStorage, clock *common.Clock, logger arbor.ILogger) *Service {
	return &Service{
		storage: storage,
		clock:   clock,
		logger:  logger,
	}
}

// IsFresh reports whether dataset was produced today. Past and future dates are both stale.
func (s *Service) IsFresh(dataset *models.CachedDataset) bool {
	if dataset == nil {
		return false
	}
	return dataset.CacheDate == s.clock.TodayKey()
}

// Get returns the dataset for (subjectID, kind) when it is fresh.
// The boolean is false on a miss; err is only set for storage failures.
func (s *Service) Get(ctx context.Context, subjectID string, kind models.DatasetKind) (*models.CachedDataset, bool, error) {
	dataset, err := s.storage.GetDataset(ctx, subjectID, kind)
	if errors.Is(err, interfaces.ErrDatasetNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read cache %s/%s: %w", subjectID, kind, err)
	}

	if !s.IsFresh(dataset) {
		s.logger.Debug().
			Str("subject_id", subjectID).
			Str("kind", string(kind)).
			Str("cache_date", dataset.CacheDate).
			Str("today", s.clock.TodayKey()).
			Msg("Cached dataset is stale")
		return nil, false, nil
	}

	return dataset, true, nil
}

// Put encodes payload and replaces the whole entry for (subjectID, kind), dated today.
func (s *Service) Put(ctx context.Context, subjectID string, kind models.DatasetKind, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode %s payload: %w", kind, err)
	}

	now := s.clock.Now()
	if err := s.storage.PutDataset(ctx, subjectID, kind, data, now.Format(common.DateKeyFormat), now); err != nil {
		return err
	}

	s.logger.Debug().
		Str("subject_id", subjectID).
		Str("kind", string(kind)).
		Int("bytes", len(data)).
		Msg("Dataset cached")
	return nil
}

// GetRatios returns today's cached ratios for subjectID.
// Undecodable payloads are logged and treated as a miss.
func (s *Service) GetRatios(ctx context.Context, subjectID string) (models.Ratios, bool) {
	var ratios models.Ratios
	if !s.getDecoded(ctx, subjectID, models.DatasetKindRatios, &ratios) || len(ratios) == 0 {
		return nil, false
	}
	return ratios, true
}

// PutRatios caches ratios for subjectID.
func (s *Service) PutRatios(ctx context.Context, subjectID string, ratios models.Ratios) error {
	return s.Put(ctx, subjectID, models.DatasetKindRatios, ratios)
}

// GetQuarterly returns today's cached quarterly results for subjectID.
func (s *Service) GetQuarterly(ctx context.Context, subjectID string) (*models.QuarterlyDataset, bool) {
	var quarterly models.QuarterlyDataset
	if !s.getDecoded(ctx, subjectID, models.DatasetKindQuarterly, &quarterly) {
		return nil, false
	}
	if quarterly.Empty() || quarterly.Validate() != nil {
		return nil, false
	}
	return &quarterly, true
}

// PutQuarterly caches quarterly results for subjectID. Datasets breaking the
// per-metric length invariant are rejected.
func (s *Service) PutQuarterly(ctx context.Context, subjectID string, quarterly *models.QuarterlyDataset) error {
	if err := quarterly.Validate(); err != nil {
		return fmt.Errorf("refusing to cache quarterly results: %w", err)
	}
	return s.Put(ctx, subjectID, models.DatasetKindQuarterly, quarterly)
}

func (s *Service) getDecoded(ctx context.Context, subjectID string, kind models.DatasetKind, target any) bool {
	dataset, ok, err := s.Get(ctx, subjectID, kind)
	if err != nil {
		s.logger.Warn().Str("subject_id", subjectID).Str("kind", string(kind)).Err(err).Msg("Cache read failed")
		return false
	}
	if !ok {
		return false
	}
	if err := json.Unmarshal(dataset.Payload, target); err != nil {
		s.logger.Warn().Str("subject_id", subjectID).Str("kind", string(kind)).Err(err).Msg("Cached payload is not decodable")
		return false
	}
	return true
}
