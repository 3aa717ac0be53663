package services

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rohits-web03/fileinpic/internal/logging"
	"github.com/rohits-web03/fileinpic/internal/repositories"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fixture struct {
	db       *gorm.DB
	blobs    *repositories.LocalBlobStore
	registry *ShareRegistry
	catalog  *Catalog
}

func newFixture(t *testing.T, opts CatalogOptions) *fixture {
	t.Helper()
	dir := t.TempDir()
	db, err := repositories.OpenDatabase(context.Background(), "sqlite", filepath.Join(dir, "catalog.db"), logging.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { _ = repositories.CloseDatabase(db) })

	blobs, err := repositories.NewLocalBlobStore(filepath.Join(dir, "blobs"))
	require.NoError(t, err)

	registry := NewShareRegistry(db, logging.Discard())
	return &fixture{
		db:       db,
		blobs:    blobs,
		registry: registry,
		catalog:  NewCatalog(db, blobs, registry, opts, logging.Discard()),
	}
}
