package badger

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/tickerfeed/internal/common"
	"github.com/ternarybob/tickerfeed/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// BadgerDB holds the badgerhold store shared by the company registry and the dataset cache
type BadgerDB struct {
	store  *badgerhold.Store
	logger arbor.ILogger
}

// OpenBadgerDB opens the store described by config. In-memory stores ignore the path.
func OpenBadgerDB(logger arbor.ILogger, config *common.BadgerConfig) (*BadgerDB, error) {
	options := badgerhold.DefaultOptions
	options.Logger = nil // Badger's own logger is replaced by arbor
	options.SyncWrites = config.SyncWrites

	if config.InMemory {
		options.InMemory = true
		options.Dir = ""
		options.ValueDir = ""
	} else {
		if err := prepareDirectory(logger, config); err != nil {
			return nil, err
		}
		options.Dir = config.Path
		options.ValueDir = config.Path
	}

	store, err := badgerhold.Open(options)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database at %q: %w", config.Path, err)
	}

	logger.Debug().
		Str("path", config.Path).
		Bool("in_memory", config.InMemory).
		Bool("sync_writes", config.SyncWrites).
		Msg("Badger database opened")

	return &BadgerDB{store: store, logger: logger}, nil
}

// prepareDirectory applies reset_on_startup and creates the parent directory
func prepareDirectory(logger arbor.ILogger, config *common.BadgerConfig) error {
	if config.ResetOnStartup {
		if err := os.RemoveAll(config.Path); err != nil {
			logger.Warn().Err(err).Str("path", config.Path).Msg("Failed to reset database directory")
		} else {
			logger.Info().Str("path", config.Path).Msg("Database reset (reset_on_startup=true)")
		}
	}

	if err := os.MkdirAll(filepath.Dir(config.Path), 0755); err != nil {
		return fmt.Errorf("failed to create database directory: %w", err)
	}
	return nil
}

// Store returns the underlying badgerhold store
func (b *BadgerDB) Store() *badgerhold.Store {
	return b.store
}

// Counts returns how many companies and cached datasets are stored
func (b *BadgerDB) Counts() (companies, datasets uint64, err error) {
	if companies, err = b.store.Count(&models.Company{}, nil); err != nil {
		return 0, 0, fmt.Errorf("failed to count companies: %w", err)
	}
	if datasets, err = b.store.Count(&models.CachedDataset{}, nil); err != nil {
		return 0, 0, fmt.Errorf("failed to count datasets: %w", err)
	}
	return companies, datasets, nil
}

// Close closes the database
func (b *BadgerDB) Close() error {
	if b.store == nil {
		return nil
	}
	err := b.store.Close()
	b.store = nil
	return err
}

// isNotFound reports whether err is badgerhold's missing-key error
func isNotFound(err error) bool {
	return errors.Is(err, badgerhold.ErrNotFound)
}
