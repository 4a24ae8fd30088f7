package badger

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/tickerfeed/internal/interfaces"
	"github.com/ternarybob/tickerfeed/internal/models"
)

// DatasetStorage implements interfaces.DatasetStorage for Badger
type DatasetStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewDatasetStorage creates a new DatasetStorage instance
func NewDatasetStorage(db *BadgerDB, logger arbor.ILogger) interfaces.DatasetStorage {
	return &DatasetStorage{
		db:     db,
		logger: logger,
	}
}

// GetDataset returns the stored record for (subjectID, kind) regardless of its date
func (s *DatasetStorage) GetDataset(ctx context.Context, subjectID string, kind models.DatasetKind) (*models.CachedDataset, error) {
	key := models.DatasetKey(subjectID, kind)

	var dataset models.CachedDataset
	err := s.db.Store().Get(key, &dataset)
	if isNotFound(err) {
		return nil, interfaces.ErrDatasetNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get dataset %s: %w", key, err)
	}
	return &dataset, nil
}

// PutDataset replaces the whole record for (subjectID, kind)
func (s *DatasetStorage) PutDataset(ctx context.Context, subjectID string, kind models.DatasetKind, payload json.RawMessage, date string, updatedAt time.Time) error {
	if subjectID == "" {
		return fmt.Errorf("subject id is required")
	}
	if !kind.Valid() {
		return fmt.Errorf("unknown dataset kind %q", kind)
	}

	key := models.DatasetKey(subjectID, kind)
	dataset := models.CachedDataset{
		Key:       key,
		SubjectID: subjectID,
		Kind:      kind,
		Payload:   payload,
		CacheDate: date,
		UpdatedAt: updatedAt,
	}

	if err := s.db.Store().Upsert(key, &dataset); err != nil {
		return fmt.Errorf("failed to save dataset %s: %w", key, err)
	}
	return nil
}

// DeleteDataset removes the record for (subjectID, kind)
func (s *DatasetStorage) DeleteDataset(ctx context.Context, subjectID string, kind models.DatasetKind) error {
	key := models.DatasetKey(subjectID, kind)
	err := s.db.Store().Delete(key, &models.CachedDataset{})
	if isNotFound(err) {
		return interfaces.ErrDatasetNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to delete dataset %s: %w", key, err)
	}
	return nil
}
