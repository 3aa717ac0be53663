package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rohits-web03/fileinpic/internal/models"
	"github.com/rohits-web03/fileinpic/internal/repositories"
	"gorm.io/gorm"
)

type CatalogOptions struct {
	// MaxUploadSize caps a single file in bytes. Zero means unlimited.
	MaxUploadSize int64
	// PresignTTL enables redirect downloads when the blob store can presign.
	PresignTTL time.Duration
}

// Catalog keeps file metadata and blobs in step.
type Catalog struct {
	db       *gorm.DB
	files    *repositories.FileRepository
	blobs    repositories.BlobStore
	registry *ShareRegistry
	opts     CatalogOptions
	logger   *slog.Logger
}

func NewCatalog(db *gorm.DB, blobs repositories.BlobStore, registry *ShareRegistry, opts CatalogOptions, lg *slog.Logger) *Catalog {
	return &Catalog{
		db:       db,
		files:    repositories.NewFileRepository(db),
		blobs:    blobs,
		registry: registry,
		opts:     opts,
		logger:   lg,
	}
}

// List returns every record newest first, or only those whose filename
// contains search (case-insensitive).
func (c *Catalog) List(ctx context.Context, search string) ([]models.FileRecord, error) {
	return c.files.List(ctx, strings.TrimSpace(search))
}

// Create stores the bytes of r under a fresh blob key and then records them.
// Either both the blob and the row exist afterwards or neither does.
func (c *Catalog) Create(ctx context.Context, filename string, r io.Reader) (models.FileRecord, error) {
	name := cleanFilename(filename)
	if name == "" {
		return models.FileRecord{}, fmt.Errorf("%w: filename is required", ErrInvalid)
	}

	key := uuid.NewString()
	src := r
	if c.opts.MaxUploadSize > 0 {
		src = &maxReader{r: r, left: c.opts.MaxUploadSize}
	}

	n, err := c.blobs.Put(ctx, key, src)
	if err != nil {
		c.discardBlob(ctx, key)
		if errors.Is(err, ErrStorage) || errors.Is(err, ErrStorageFull) {
			c.logger.Error("blob write failed", "filename", name, "error", err)
		}
		return models.FileRecord{}, fmt.Errorf("store %q: %w", name, err)
	}

	rec := models.FileRecord{
		Filename:        name,
		Filesize:        n,
		UploadTimestamp: time.Now().UTC().Truncate(time.Microsecond),
		BlobKey:         key,
	}
	if err := c.files.Create(ctx, &rec); err != nil {
		c.discardBlob(ctx, key)
		c.logger.Error("file record insert failed", "filename", name, "error", err)
		return models.FileRecord{}, fmt.Errorf("record %q: %w: %w", name, ErrStorage, err)
	}

	c.logger.Info("file stored", "id", rec.ID, "filename", rec.Filename, "size", rec.Filesize)
	return rec, nil
}

func (c *Catalog) Get(ctx context.Context, id int64) (models.FileRecord, error) {
	return c.files.FindByID(ctx, id)
}

// Open returns the record and a stream over its bytes. The caller closes it.
func (c *Catalog) Open(ctx context.Context, id int64) (models.FileRecord, io.ReadCloser, error) {
	rec, err := c.files.FindByID(ctx, id)
	if err != nil {
		return models.FileRecord{}, nil, err
	}
	return c.OpenRecord(ctx, rec)
}

// OpenRecord streams the blob of an already loaded record.
func (c *Catalog) OpenRecord(ctx context.Context, rec models.FileRecord) (models.FileRecord, io.ReadCloser, error) {
	body, err := c.blobs.Get(ctx, rec.BlobKey)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			c.logger.Error("blob read failed", "id", rec.ID, "error", err)
		}
		return models.FileRecord{}, nil, err
	}
	return rec, body, nil
}

// DownloadURL returns a presigned URL for rec when the blob store supports
// direct downloads and they are enabled. ok is false otherwise.
func (c *Catalog) DownloadURL(ctx context.Context, rec models.FileRecord) (url string, ok bool, err error) {
	p, can := c.blobs.(repositories.Presigner)
	if !can || c.opts.PresignTTL <= 0 {
		return "", false, nil
	}
	url, err = p.PresignGet(ctx, rec.BlobKey, rec.Filename, c.opts.PresignTTL)
	if err != nil {
		return "", false, fmt.Errorf("presign %d: %w", rec.ID, err)
	}
	return url, true, nil
}

// Delete removes the file's share link and its row in one transaction and
// then its blob. A row never outlives its blob; a failed blob delete leaves
// an unreferenced blob behind, which is logged.
func (c *Catalog) Delete(ctx context.Context, id int64) error {
	unlock := c.registry.locks.Lock(id)
	defer unlock()

	var key string
	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		files := c.files.WithTx(tx)
		rec, err := files.FindByID(ctx, id)
		if err != nil {
			return err
		}
		if err := c.registry.deleteForFile(ctx, tx, id); err != nil {
			return fmt.Errorf("delete share link: %w", err)
		}
		if err := files.Delete(ctx, id); err != nil {
			return err
		}
		key = rec.BlobKey
		return nil
	})
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			c.logger.Error("file delete failed", "id", id, "error", err)
		}
		return err
	}

	c.discardBlob(ctx, key)
	c.logger.Info("file deleted", "id", id)
	return nil
}

func (c *Catalog) discardBlob(ctx context.Context, key string) {
	if err := c.blobs.Delete(context.WithoutCancel(ctx), key); err != nil {
		c.logger.Warn("orphan blob left behind", "key", key, "error", err)
	}
}

// cleanFilename keeps the last path element of a client supplied name.
func cleanFilename(name string) string {
	name = strings.ReplaceAll(name, `\`, "/")
	name = strings.TrimSpace(path.Base(name))
	switch name {
	case ".", "/", "..":
		return ""
	}
	return name
}

// maxReader fails with ErrTooLarge once more than left bytes are read.
type maxReader struct {
	r    io.Reader
	left int64
}

func (m *maxReader) Read(p []byte) (int, error) {
	if int64(len(p)) > m.left+1 {
		p = p[:m.left+1]
	}
	n, err := m.r.Read(p)
	if int64(n) > m.left {
		m.left = 0
		return 0, ErrTooLarge
	}
	m.left -= int64(n)
	return n, err
}
