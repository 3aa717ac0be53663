package repositories

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/rohits-web03/fileinpic/internal/models"
	"gorm.io/gorm"
)

// DefaultChunkSize keeps every upload to the image host under its 7 MB cap.
const DefaultChunkSize = 6 << 20

// ImageHostOptions configures an image hosting service used as blob storage.
type ImageHostOptions struct {
	// BaseURL is the host root; uploads go to BaseURL+"/image" and chunks are
	// fetched from BaseURL+<path returned by the upload>.
	BaseURL string
	Token   string
	// ChunkSize is the payload carried by one image. Defaults to DefaultChunkSize.
	ChunkSize int
	// CarrierSize is the padded size of the cover PNG. Defaults to DefaultCarrierSize.
	CarrierSize int
	// DeleteMethod is the verb the host expects on an image path to remove it.
	// Defaults to GET.
	DeleteMethod string
	HTTPClient   *http.Client
}

// ImageHostBlobStore splits each blob into chunks, hides every chunk behind a
// generated PNG and uploads it to an image host. The chunk list lives in the
// blob_chunks table.
type ImageHostBlobStore struct {
	db           *gorm.DB
	baseURL      string
	token        string
	chunkSize    int
	carrierSize  int
	deleteMethod string
	client       *http.Client
	logger       *slog.Logger
}

func NewImageHostBlobStore(db *gorm.DB, opts ImageHostOptions, lg *slog.Logger) (*ImageHostBlobStore, error) {
	if opts.BaseURL == "" {
		return nil, errors.New("image host url is required")
	}
	if opts.Token == "" {
		return nil, errors.New("image host token is required")
	}
	s := &ImageHostBlobStore{
		db:           db,
		baseURL:      strings.TrimRight(opts.BaseURL, "/"),
		token:        opts.Token,
		chunkSize:    opts.ChunkSize,
		carrierSize:  opts.CarrierSize,
		deleteMethod: opts.DeleteMethod,
		client:       opts.HTTPClient,
		logger:       lg,
	}
	if s.chunkSize <= 0 {
		s.chunkSize = DefaultChunkSize
	}
	if s.carrierSize <= 0 {
		s.carrierSize = DefaultCarrierSize
	}
	if s.deleteMethod == "" {
		s.deleteMethod = http.MethodGet
	}
	if s.client == nil {
		s.client = &http.Client{Timeout: 2 * time.Minute}
	}
	lg.Info("image host storage", "url", s.baseURL, "chunk_size", s.chunkSize)
	return s, nil
}

// Put uploads r chunk by chunk and records the chunk list once every chunk is
// stored. On failure the chunks already uploaded are removed again. An empty
// blob still gets one chunk so it can be found.
func (s *ImageHostBlobStore) Put(ctx context.Context, key string, r io.Reader) (int64, error) {
	if !validKey(key) {
		return 0, fmt.Errorf("invalid blob key %q", key)
	}

	src := contextReader{ctx: ctx, r: r}
	buf := make([]byte, s.chunkSize)
	var (
		total  int64
		chunks []models.BlobChunk
	)
	fail := func(err error) (int64, error) {
		s.removeImages(context.WithoutCancel(ctx), chunks)
		return total, err
	}

	for order := 0; ; order++ {
		n, err := io.ReadFull(src, buf)
		last := errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)
		if err != nil && !last {
			return fail(storageErr("read upload", err))
		}
		if n == 0 && order > 0 {
			break
		}

		path, err := s.upload(ctx, fmt.Sprintf("fileinpic %s #%d", key[:min(8, len(key))], order+1), buf[:n])
		if err != nil {
			return fail(err)
		}
		chunks = append(chunks, models.BlobChunk{BlobKey: key, ChunkOrder: order, ImagePath: path})
		total += int64(n)
		if last {
			break
		}
	}

	if err := s.db.WithContext(ctx).Create(&chunks).Error; err != nil {
		return fail(fmt.Errorf("record chunks of %s: %w: %w", key, ErrStorage, translate(err)))
	}
	return total, nil
}

// Get streams the chunks of key in order, each with its carrier cut off. The
// first chunk is fetched before returning so a missing blob is reported here.
func (s *ImageHostBlobStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	chunks, err := s.chunks(ctx, key)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return nil, ErrNotFound
	}

	cr := &chunkReader{ctx: ctx, store: s, chunks: chunks}
	if err := cr.next(); err != nil {
		return nil, err
	}
	return cr, nil
}

// Delete removes every image of key and then its chunk list. The list is kept
// when an image could not be removed so a later Delete can retry.
func (s *ImageHostBlobStore) Delete(ctx context.Context, key string) error {
	chunks, err := s.chunks(ctx, key)
	if err != nil {
		return err
	}
	if len(chunks) == 0 {
		return nil
	}

	var errs []error
	for _, c := range chunks {
		if err := s.deleteImage(ctx, c.ImagePath); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("delete images of %s: %w: %w", key, ErrStorage, errors.Join(errs...))
	}

	err = s.db.WithContext(ctx).Where("blob_key = ?", key).Delete(&models.BlobChunk{}).Error
	if err != nil {
		return fmt.Errorf("delete chunks of %s: %w: %w", key, ErrStorage, translate(err))
	}
	return nil
}

func (s *ImageHostBlobStore) chunks(ctx context.Context, key string) ([]models.BlobChunk, error) {
	var chunks []models.BlobChunk
	err := s.db.WithContext(ctx).Where("blob_key = ?", key).Order("chunk_order ASC").Find(&chunks).Error
	if err != nil {
		return nil, fmt.Errorf("load chunks of %s: %w: %w", key, ErrStorage, translate(err))
	}
	return chunks, nil
}

type uploadReply struct {
	OK  bool   `json:"ok"`
	Src string `json:"src"`
}

// upload posts carrier+payload as a PNG and returns the image path.
func (s *ImageHostBlobStore) upload(ctx context.Context, label string, payload []byte) (string, error) {
	carrier, err := carrierPNG(label, s.carrierSize)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrStorage, err)
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("image", "chunk.png")
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrStorage, err)
	}
	_, _ = part.Write(carrier)
	_, _ = part.Write(payload)
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("%w: %w", ErrStorage, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/image", &body)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrStorage, err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Auth-Token", s.token)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("upload chunk: %w: %w", ErrStorage, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return "", fmt.Errorf("upload chunk: %w: status %d", ErrStorage, resp.StatusCode)
	}

	var reply uploadReply
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return "", fmt.Errorf("upload chunk: %w: bad reply: %w", ErrStorage, err)
	}
	if !reply.OK || !strings.HasPrefix(reply.Src, "/") {
		return "", fmt.Errorf("upload chunk: %w: host refused chunk (ok=%v, src=%q)", ErrStorage, reply.OK, reply.Src)
	}
	return reply.Src, nil
}

func (s *ImageHostBlobStore) deleteImage(ctx context.Context, path string) error {
	req, err := http.NewRequestWithContext(ctx, s.deleteMethod, s.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Auth-Token", s.token)

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	switch resp.StatusCode {
	case http.StatusOK, http.StatusNoContent, http.StatusNotFound:
		return nil
	}
	return fmt.Errorf("delete %s: status %d", path, resp.StatusCode)
}

// removeImages is best effort cleanup after a failed Put.
func (s *ImageHostBlobStore) removeImages(ctx context.Context, chunks []models.BlobChunk) {
	for _, c := range chunks {
		if err := s.deleteImage(ctx, c.ImagePath); err != nil {
			s.logger.Warn("orphan image left on host", "path", c.ImagePath, "error", err)
		}
	}
}

func (s *ImageHostBlobStore) fetch(ctx context.Context, path string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "image/png,image/*;q=0.8,*/*;q=0.5")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w: %w", path, ErrStorage, err)
	}
	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		resp.Body.Close()
		return nil, ErrNotFound
	default:
		resp.Body.Close()
		return nil, fmt.Errorf("fetch %s: %w: status %d", path, ErrStorage, resp.StatusCode)
	}

	if _, err := io.CopyN(io.Discard, resp.Body, int64(s.carrierSize)); err != nil {
		resp.Body.Close()
		return nil, fmt.Errorf("fetch %s: %w: image shorter than its carrier (%v)", path, ErrStorage, err)
	}
	return resp.Body, nil
}

// chunkReader concatenates the payloads of a blob's chunks, fetching each one
// only when the previous one is exhausted.
type chunkReader struct {
	ctx    context.Context
	store  *ImageHostBlobStore
	chunks []models.BlobChunk
	pos    int
	cur    io.ReadCloser
}

func (c *chunkReader) next() error {
	if c.cur != nil {
		_ = c.cur.Close()
		c.cur = nil
	}
	if c.pos >= len(c.chunks) {
		return io.EOF
	}
	body, err := c.store.fetch(c.ctx, c.chunks[c.pos].ImagePath)
	if err != nil {
		return err
	}
	c.pos++
	c.cur = body
	return nil
}

func (c *chunkReader) Read(p []byte) (int, error) {
	for {
		if c.cur == nil {
			return 0, io.EOF
		}
		n, err := c.cur.Read(p)
		if err == io.EOF {
			if nerr := c.next(); nerr != nil && nerr != io.EOF {
				return n, fmt.Errorf("chunk %d: %w", c.pos+1, nerr)
			}
			err = nil
		}
		if n > 0 || err != nil {
			return n, err
		}
	}
}

func (c *chunkReader) Close() error {
	if c.cur == nil {
		return nil
	}
	err := c.cur.Close()
	c.cur = nil
	return err
}
