package services

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"

	"github.com/rohits-web03/fileinpic/internal/models"
	"github.com/rohits-web03/fileinpic/internal/repositories"
	"github.com/rohits-web03/fileinpic/internal/utils"
	"gorm.io/gorm"
)

// shareTokenBytes gives 256 bits of entropy per token.
const shareTokenBytes = 32

// ShareRegistry issues and redeems share links.
type ShareRegistry struct {
	db     *gorm.DB
	files  *repositories.FileRepository
	shares *repositories.ShareRepository
	locks  *keyedMutex
	logger *slog.Logger
}

func NewShareRegistry(db *gorm.DB, lg *slog.Logger) *ShareRegistry {
	return &ShareRegistry{
		db:     db,
		files:  repositories.NewFileRepository(db),
		shares: repositories.NewShareRepository(db),
		locks:  newKeyedMutex(),
		logger: lg,
	}
}

// IssueOrUpdate returns the file's share link, creating it on first use.
// Later calls keep the token and replace only the password.
func (s *ShareRegistry) IssueOrUpdate(ctx context.Context, fileID int64, password string) (models.ShareLink, error) {
	unlock := s.locks.Lock(fileID)
	defer unlock()

	link, err := s.upsert(ctx, fileID, password)
	if errors.Is(err, repositories.ErrDuplicate) {
		// Another process won the insert, or the fresh token collided.
		link, err = s.upsert(ctx, fileID, password)
	}
	if err != nil {
		return models.ShareLink{}, err
	}
	return link, nil
}

func (s *ShareRegistry) upsert(ctx context.Context, fileID int64, password string) (models.ShareLink, error) {
	token, err := utils.GenerateSecureToken(shareTokenBytes)
	if err != nil {
		return models.ShareLink{}, fmt.Errorf("generate share token: %w", err)
	}

	var link models.ShareLink
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.files.WithTx(tx).FindByID(ctx, fileID); err != nil {
			return err
		}
		shares := s.shares.WithTx(tx)
		if err := shares.Upsert(ctx, &models.ShareLink{FileID: fileID, Token: token, Password: password}); err != nil {
			return err
		}
		stored, err := shares.FindByFileID(ctx, fileID)
		link = stored
		return err
	})
	if err != nil {
		return models.ShareLink{}, err
	}
	if link.Token == token {
		s.logger.Info("share link issued", "file_id", fileID)
	}
	return link, nil
}

// LookupByFile reports the file's link, if it has one.
func (s *ShareRegistry) LookupByFile(ctx context.Context, fileID int64) (models.ShareLink, bool, error) {
	link, err := s.shares.FindByFileID(ctx, fileID)
	switch {
	case err == nil:
		return link, true, nil
	case errors.Is(err, ErrNotFound):
		return models.ShareLink{}, false, nil
	default:
		return models.ShareLink{}, false, err
	}
}

// Resolve maps a token to its file without checking the password.
func (s *ShareRegistry) Resolve(ctx context.Context, token string) (models.FileRecord, error) {
	if token == "" {
		return models.FileRecord{}, ErrNotFound
	}
	link, err := s.shares.FindByToken(ctx, token)
	if err != nil {
		return models.FileRecord{}, err
	}
	return link.File, nil
}

// Redeem resolves token and checks password against the stored one. An empty
// stored password accepts anything.
func (s *ShareRegistry) Redeem(ctx context.Context, token, password string) (models.FileRecord, error) {
	if token == "" {
		return models.FileRecord{}, ErrNotFound
	}
	link, err := s.shares.FindByToken(ctx, token)
	if err != nil {
		return models.FileRecord{}, err
	}
	if link.Password != "" && subtle.ConstantTimeCompare([]byte(link.Password), []byte(password)) != 1 {
		return models.FileRecord{}, ErrUnauthorized
	}
	return link.File, nil
}

// DeleteForFile removes the file's link. Files without one are fine.
func (s *ShareRegistry) DeleteForFile(ctx context.Context, fileID int64) error {
	unlock := s.locks.Lock(fileID)
	defer unlock()
	return s.deleteForFile(ctx, s.db, fileID)
}

// deleteForFile runs inside the caller's transaction and lock.
func (s *ShareRegistry) deleteForFile(ctx context.Context, tx *gorm.DB, fileID int64) error {
	return s.shares.WithTx(tx).DeleteByFileID(ctx, fileID)
}
