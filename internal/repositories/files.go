package repositories

import (
	"context"
	"strings"

	"github.com/rohits-web03/fileinpic/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// FileRepository is the catalog table.
type FileRepository struct {
	db *gorm.DB
}

func NewFileRepository(db *gorm.DB) *FileRepository {
	return &FileRepository{db: db}
}

// WithTx returns a repository bound to tx.
func (r *FileRepository) WithTx(tx *gorm.DB) *FileRepository {
	return &FileRepository{db: tx}
}

func (r *FileRepository) Create(ctx context.Context, rec *models.FileRecord) error {
	return translate(r.db.WithContext(ctx).Omit(clause.Associations).Create(rec).Error)
}

func (r *FileRepository) FindByID(ctx context.Context, id int64) (models.FileRecord, error) {
	var rec models.FileRecord
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&rec).Error
	return rec, translate(err)
}

// List returns records newest first. A non-empty search keeps only filenames
// containing it, ignoring case.
func (r *FileRepository) List(ctx context.Context, search string) ([]models.FileRecord, error) {
	q := r.db.WithContext(ctx).Model(&models.FileRecord{})
	if search != "" {
		fold := "LOWER"
		if r.db.Dialector.Name() == "sqlite" {
			fold = foldFunc
		}
		q = q.Where(fold+`(filename) LIKE ? ESCAPE '\'`, "%"+escapeLike(strings.ToLower(search))+"%")
	}
	records := make([]models.FileRecord, 0)
	if err := q.Order("id DESC").Find(&records).Error; err != nil {
		return nil, translate(err)
	}
	return records, nil
}

// Delete removes the row and reports ErrNotFound when nothing matched.
func (r *FileRepository) Delete(ctx context.Context, id int64) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.FileRecord{})
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
