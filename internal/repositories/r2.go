package repositories

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// R2Options configures an R2 (or any S3-compatible) bucket.
type R2Options struct {
	AccessKeyID     string
	SecretAccessKey string
	AccountID       string
	BucketName      string
	Region          string
	// Endpoint overrides the account-derived R2 endpoint (MinIO, S3, tests).
	Endpoint string
	// SpoolDir holds uploads while they are measured before the PUT.
	SpoolDir string
}

// R2BlobStore stores blobs as objects in a single bucket.
type R2BlobStore struct {
	client   *s3.Client
	bucket   string
	spoolDir string
	logger   *slog.Logger
}

// NewR2BlobStore initializes the R2 client using static credentials and custom endpoint.
func NewR2BlobStore(opts R2Options, lg *slog.Logger) (*R2BlobStore, error) {
	if opts.BucketName == "" {
		return nil, errors.New("bucket name is required")
	}
	endpoint := opts.Endpoint
	if endpoint == "" {
		if opts.AccountID == "" {
			return nil, errors.New("account id or endpoint is required")
		}
		endpoint = fmt.Sprintf("https://%s.r2.cloudflarestorage.com", opts.AccountID)
	}
	region := opts.Region
	if region == "" {
		region = "auto"
	}

	cfg := aws.Config{
		Credentials: credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, ""),
		Region:      region,
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
		o.UsePathStyle = true
		// R2 rejects some of the newer default checksum headers.
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
		o.ResponseChecksumValidation = aws.ResponseChecksumValidationWhenRequired
	})

	lg.Info("object storage client ready", "endpoint", endpoint, "bucket", opts.BucketName)

	return &R2BlobStore{
		client:   client,
		bucket:   opts.BucketName,
		spoolDir: opts.SpoolDir,
		logger:   lg,
	}, nil
}

// Put spools r to a temp file so the object is sent with a known length, then
// uploads it. Nothing is visible under key until the PUT succeeds.
func (s *R2BlobStore) Put(ctx context.Context, key string, r io.Reader) (int64, error) {
	if !validKey(key) {
		return 0, fmt.Errorf("invalid blob key %q", key)
	}
	spool, err := os.CreateTemp(s.spoolDir, "fileinpic-spool-*")
	if err != nil {
		return 0, storageErr("create spool file", err)
	}
	defer func() {
		_ = spool.Close()
		_ = os.Remove(spool.Name())
	}()

	n, err := io.Copy(spool, contextReader{ctx: ctx, r: r})
	if err != nil {
		return n, storageErr("spool upload", err)
	}
	if _, err := spool.Seek(0, io.SeekStart); err != nil {
		return n, storageErr("rewind spool file", err)
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          spool,
		ContentLength: aws.Int64(n),
	})
	if err != nil {
		return n, fmt.Errorf("put object %s: %w: %w", key, ErrStorage, err)
	}
	return n, nil
}

func (s *R2BlobStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isMissingObject(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get object %s: %w: %w", key, ErrStorage, err)
	}
	return out.Body, nil
}

func (s *R2BlobStore) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil && !isMissingObject(err) {
		return fmt.Errorf("delete object %s: %w: %w", key, ErrStorage, err)
	}
	return nil
}

// PresignGet creates a presigned URL for downloading a blob from R2 under
// its catalog filename.
func (s *R2BlobStore) PresignGet(ctx context.Context, key, filename string, expires time.Duration) (string, error) {
	presigner := s3.NewPresignClient(s.client)
	req, err := presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket:                     aws.String(s.bucket),
		Key:                        aws.String(key),
		ResponseContentDisposition: aws.String(mime.FormatMediaType("attachment", map[string]string{"filename": filename})),
	}, s3.WithPresignExpires(expires))
	if err != nil {
		return "", err
	}
	return req.URL, nil
}

func isMissingObject(err error) bool {
	var nsk *s3types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var nf *s3types.NotFound
	if errors.As(err, &nf) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return true
		}
	}
	return false
}
