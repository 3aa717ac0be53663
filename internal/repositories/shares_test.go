package repositories

import (
	"context"
	"testing"

	"github.com/rohits-web03/fileinpic/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShareRepository_OneLinkPerFile(t *testing.T) {
	db := openTestDB(t)
	files := NewFileRepository(db)
	shares := NewShareRepository(db)
	ctx := context.Background()

	f := addFile(t, files, "a.pdf", 10)

	link := models.ShareLink{FileID: f.ID, Token: "tok-1", Password: "x"}
	require.NoError(t, shares.Create(ctx, &link))

	dup := models.ShareLink{FileID: f.ID, Token: "tok-2"}
	assert.ErrorIs(t, shares.Create(ctx, &dup), ErrDuplicate)

	got, err := shares.FindByToken(ctx, "tok-1")
	require.NoError(t, err)
	assert.Equal(t, f.ID, got.FileID)
	assert.Equal(t, "a.pdf", got.File.Filename)
	assert.Equal(t, "x", got.Password)

	require.NoError(t, shares.Upsert(ctx, &models.ShareLink{FileID: f.ID, Token: "tok-3"}))
	got, err = shares.FindByFileID(ctx, f.ID)
	require.NoError(t, err)
	assert.Equal(t, "tok-1", got.Token)
	assert.Empty(t, got.Password)
}

func TestShareRepository_TokenIsUnique(t *testing.T) {
	db := openTestDB(t)
	files := NewFileRepository(db)
	shares := NewShareRepository(db)
	ctx := context.Background()

	a := addFile(t, files, "a", 1)
	b := addFile(t, files, "b", 1)

	require.NoError(t, shares.Create(ctx, &models.ShareLink{FileID: a.ID, Token: "same"}))
	assert.ErrorIs(t, shares.Create(ctx, &models.ShareLink{FileID: b.ID, Token: "same"}), ErrDuplicate)
}

func TestShareRepository_DeleteByFileID(t *testing.T) {
	db := openTestDB(t)
	files := NewFileRepository(db)
	shares := NewShareRepository(db)
	ctx := context.Background()

	f := addFile(t, files, "a", 1)
	require.NoError(t, shares.Create(ctx, &models.ShareLink{FileID: f.ID, Token: "t"}))

	require.NoError(t, shares.DeleteByFileID(ctx, f.ID))
	require.NoError(t, shares.DeleteByFileID(ctx, f.ID), "second delete is a no-op")

	_, err := shares.FindByToken(ctx, "t")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestShareRepository_CascadeOnFileDelete(t *testing.T) {
	db := openTestDB(t)
	files := NewFileRepository(db)
	shares := NewShareRepository(db)
	ctx := context.Background()

	f := addFile(t, files, "a", 1)
	require.NoError(t, shares.Create(ctx, &models.ShareLink{FileID: f.ID, Token: "t"}))

	require.NoError(t, files.Delete(ctx, f.ID))

	_, err := shares.FindByFileID(ctx, f.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestShareRepository_RejectsUnknownFile(t *testing.T) {
	shares := NewShareRepository(openTestDB(t))

	err := shares.Create(context.Background(), &models.ShareLink{FileID: 42, Token: "t"})
	assert.Error(t, err)
}

func TestShareRepository_UpsertKeepsToken(t *testing.T) {
	db := openTestDB(t)
	files := NewFileRepository(db)
	shares := NewShareRepository(db)
	ctx := context.Background()

	f := addFile(t, files, "a", 1)
	require.NoError(t, shares.Upsert(ctx, &models.ShareLink{FileID: f.ID, Token: "first", Password: "pw1"}))
	require.NoError(t, shares.Upsert(ctx, &models.ShareLink{FileID: f.ID, Token: "second", Password: "pw2"}))

	got, err := shares.FindByFileID(ctx, f.ID)
	require.NoError(t, err)
	assert.Equal(t, "first", got.Token)
	assert.Equal(t, "pw2", got.Password)

	_, err = shares.FindByToken(ctx, "second")
	assert.ErrorIs(t, err, ErrNotFound)
}
