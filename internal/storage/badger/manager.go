package badger

import (
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/tickerfeed/internal/common"
	"github.com/ternarybob/tickerfeed/internal/interfaces"
)

// Manager implements the StorageManager interface for Badger
type Manager struct {
	db      *BadgerDB
	company interfaces.CompanyStorage
	dataset interfaces.DatasetStorage
	logger  arbor.ILogger
}

// NewManager creates a new Badger storage manager
func NewManager(logger arbor.ILogger, config *common.BadgerConfig) (interfaces.StorageManager, error) {
	db, err := OpenBadgerDB(logger, config)
	if err != nil {
		return nil, err
	}

	manager := &Manager{
		db:      db,
		company: NewCompanyStorage(db, logger),
		dataset: NewDatasetStorage(db, logger),
		logger:  logger,
	}

	companies, datasets, err := db.Counts()
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to count stored records")
	}
	logger.Info().
		Str("path", config.Path).
		Int("companies", int(companies)).
		Int("datasets", int(datasets)).
		Msg("Badger storage manager initialized")

	return manager, nil
}

// CompanyStorage returns the company registry
func (m *Manager) CompanyStorage() interfaces.CompanyStorage {
	return m.company
}

// DatasetStorage returns the cached dataset store
func (m *Manager) DatasetStorage() interfaces.DatasetStorage {
	return m.dataset
}

// Close closes the database connection
func (m *Manager) Close() error {
	return m.db.Close()
}
