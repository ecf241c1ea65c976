package blob

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"docvault/internal/config"
	"docvault/internal/hash"
)

// MinIOStore is an S3-compatible blob store backend for deployments that
// already run MinIO or S3. Objects are keyed <prefix>/<digest>, mirroring the
// filesystem layout, and existence is determined by a stat on that key.
// Content is buffered in memory to compute the digest before the upload;
// uploads are bounded in size, so this stays cheap.
type MinIOStore struct {
	client    *minio.Client
	bucket    string
	prefixLen int
	hasher    *hash.Hasher
	metrics   *Metrics
}

// NewMinIO creates an S3-compatible blob store backed by MinIO.
// It validates connectivity and ensures the bucket exists (creates it if missing).
func NewMinIO(cfg config.MinIOConfig, prefixLen int, hasher *hash.Hasher, metrics *Metrics) (*MinIOStore, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("minio endpoint is required")
	}
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("minio credentials are required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("minio bucket is required")
	}
	if hasher == nil {
		return nil, fmt.Errorf("hasher is required")
	}
	if prefixLen <= 0 {
		prefixLen = 2
	}

	cli, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	exists, err := cli.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket existence: %w", err)
	}
	if !exists {
		if err := cli.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket: %w", err)
		}
	}

	return &MinIOStore{client: cli, bucket: cfg.Bucket, prefixLen: prefixLen, hasher: hasher, metrics: metrics}, nil
}

var _ Store = (*MinIOStore)(nil)

func (s *MinIOStore) objectKey(digest string) string {
	return digest[:s.prefixLen] + "/" + digest
}

// Put uploads the content under its digest unless an object with that digest
// already exists in the bucket.
func (s *MinIOStore) Put(ctx context.Context, r io.Reader) (Info, error) {
	if r == nil {
		return Info{}, fmt.Errorf("put blob: reader is nil")
	}
	content, err := io.ReadAll(r)
	if err != nil {
		return Info{}, fmt.Errorf("read blob content: %w", err)
	}
	digest := s.hasher.SumBytes(content)
	size := int64(len(content))

	key := s.objectKey(digest)
	_, err = s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
	if err == nil {
		s.metrics.dedupHit()
		return Info{Digest: digest, Size: size}, nil
	}
	if minio.ToErrorResponse(err).Code != "NoSuchKey" {
		return Info{}, fmt.Errorf("stat blob %s: %w", digest, err)
	}

	_, err = s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(content), size, minio.PutObjectOptions{
		ContentType: "application/octet-stream",
	})
	if err != nil {
		return Info{}, fmt.Errorf("publish blob %s: %w", digest, err)
	}
	s.metrics.put(size)
	return Info{Digest: digest, Size: size}, nil
}

// Get downloads the blob content as a ReadCloser along with its info.
func (s *MinIOStore) Get(ctx context.Context, digest string) (io.ReadCloser, Info, error) {
	if !validDigest(digest, s.prefixLen) {
		return nil, Info{}, fmt.Errorf("%w: %q", ErrInvalidDigest, digest)
	}
	obj, err := s.client.GetObject(ctx, s.bucket, s.objectKey(digest), minio.GetObjectOptions{})
	if err != nil {
		return nil, Info{}, fmt.Errorf("open blob %s: %w", digest, err)
	}
	st, err := obj.Stat()
	if err != nil {
		obj.Close()
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, Info{}, fmt.Errorf("%w: %s", ErrBlobNotFound, digest)
		}
		return nil, Info{}, fmt.Errorf("stat blob %s: %w", digest, err)
	}
	return obj, Info{Digest: digest, Size: st.Size}, nil
}

// Exists reports whether an object is present for the digest.
func (s *MinIOStore) Exists(ctx context.Context, digest string) (bool, error) {
	if !validDigest(digest, s.prefixLen) {
		return false, fmt.Errorf("%w: %q", ErrInvalidDigest, digest)
	}
	_, err := s.client.StatObject(ctx, s.bucket, s.objectKey(digest), minio.StatObjectOptions{})
	if err == nil {
		return true, nil
	}
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return false, nil
	}
	return false, fmt.Errorf("stat blob %s: %w", digest, err)
}

// DeleteIfUnreferenced removes the object only when ref reports no remaining
// rows for the digest. A missing object is a no-op.
func (s *MinIOStore) DeleteIfUnreferenced(ctx context.Context, digest string, ref RefChecker) (bool, error) {
	if !validDigest(digest, s.prefixLen) {
		return false, fmt.Errorf("%w: %q", ErrInvalidDigest, digest)
	}
	referenced, err := ref(ctx, digest)
	if err != nil {
		return false, fmt.Errorf("check references for %s: %w", digest, err)
	}
	if referenced {
		return false, nil
	}
	key := s.objectKey(digest)
	if _, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{}); err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return false, nil
		}
		return false, fmt.Errorf("stat blob %s: %w", digest, err)
	}
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return false, fmt.Errorf("delete blob %s: %w", digest, err)
	}
	s.metrics.deleted()
	return true, nil
}
