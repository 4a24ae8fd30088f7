package badger

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/tickerfeed/internal/common"
)

// newTestDB opens an in-memory store that is closed with the test
func newTestDB(t *testing.T) *BadgerDB {
	t.Helper()

	db, err := OpenBadgerDB(arbor.NewLogger(), &common.BadgerConfig{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return db
}
