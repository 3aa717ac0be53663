package repositories

import (
	"context"

	"github.com/rohits-web03/fileinpic/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ShareRepository stores share links, at most one per file.
type ShareRepository struct {
	db *gorm.DB
}

func NewShareRepository(db *gorm.DB) *ShareRepository {
	return &ShareRepository{db: db}
}

func (r *ShareRepository) WithTx(tx *gorm.DB) *ShareRepository {
	return &ShareRepository{db: tx}
}

// Create inserts link. A second link for the same file or token fails with
// ErrDuplicate.
func (r *ShareRepository) Create(ctx context.Context, link *models.ShareLink) error {
	return translate(r.db.WithContext(ctx).Omit(clause.Associations).Create(link).Error)
}

// Upsert inserts link or, when the file already has one, overwrites only its
// password. The stored token always wins; read the row back to learn it.
func (r *ShareRepository) Upsert(ctx context.Context, link *models.ShareLink) error {
	err := r.db.WithContext(ctx).
		Omit(clause.Associations).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "file_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"password", "updated_at"}),
		}).
		Create(link).Error
	return translate(err)
}

func (r *ShareRepository) FindByFileID(ctx context.Context, fileID int64) (models.ShareLink, error) {
	var link models.ShareLink
	err := r.db.WithContext(ctx).Where("file_id = ?", fileID).First(&link).Error
	return link, translate(err)
}

// FindByToken returns the link with its file loaded.
func (r *ShareRepository) FindByToken(ctx context.Context, token string) (models.ShareLink, error) {
	var link models.ShareLink
	err := r.db.WithContext(ctx).Preload("File").Where("token = ?", token).First(&link).Error
	return link, translate(err)
}

// DeleteByFileID is a no-op when the file has no link.
func (r *ShareRepository) DeleteByFileID(ctx context.Context, fileID int64) error {
	return translate(r.db.WithContext(ctx).Where("file_id = ?", fileID).Delete(&models.ShareLink{}).Error)
}
