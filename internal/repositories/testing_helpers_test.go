package repositories

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rohits-web03/fileinpic/internal/logging"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := OpenDatabase(context.Background(), "sqlite", filepath.Join(t.TempDir(), "test.db"), logging.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { _ = CloseDatabase(db) })
	return db
}
