package interfaces

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/ternarybob/tickerfeed/internal/models"
)

// ErrDatasetNotFound is returned when nothing is stored for a (subject, kind) pair
var ErrDatasetNotFound = errors.New("dataset not found")

// DatasetStorage persists one payload per (subject, kind). Freshness policy lives in the cache service.
type DatasetStorage interface {
	GetDataset(ctx context.Context, subjectID string, kind models.DatasetKind) (*models.CachedDataset, error)

	// PutDataset replaces any previous record for the pair
	PutDataset(ctx context.Context, subjectID string, kind models.DatasetKind, payload json.RawMessage, date string, updatedAt time.Time) error

	DeleteDataset(ctx context.Context, subjectID string, kind models.DatasetKind) error
}

// StorageManager owns the database and hands out the typed stores
type StorageManager interface {
	CompanyStorage() CompanyStorage
	DatasetStorage() DatasetStorage
	Close() error
}
