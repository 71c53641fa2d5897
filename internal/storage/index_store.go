// ABOUTME: Durable backends for persisted vector index snapshots
// ABOUTME: Local file (temp file + rename) and S3 object storage
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// IndexStore persists and restores whole index snapshots.
// SaveIndex must be atomic: a failed save leaves the previous snapshot loadable.
type IndexStore interface {
	SaveIndex(ctx context.Context, idx *VectorIndex) error
	LoadIndex(ctx context.Context) (*VectorIndex, error)
	Location() string
}

// Save writes the index to path atomically
func (v *VectorIndex) Save(path string) error {
	data, err := v.MarshalBinary()
	if err != nil {
		return fmt.Errorf("failed to encode index: %w", err)
	}
	return writeFileAtomic(path, data)
}

// LoadVectorIndex reads an index written by Save.
// Returns ErrIndexNotFound when path does not exist.
func LoadVectorIndex(path string) (*VectorIndex, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrIndexNotFound, path)
		}
		return nil, fmt.Errorf("failed to read index %s: %w", path, err)
	}
	return DecodeVectorIndex(data)
}

// writeFileAtomic writes to a temp file in the target directory, syncs it, and
// renames it over path so readers never observe a partial file
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create index directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }() // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}

// FileIndexStore keeps the index in a single local file
type FileIndexStore struct {
	path string
}

// NewFileIndexStore creates a file-backed index store
func NewFileIndexStore(path string) *FileIndexStore {
	return &FileIndexStore{path: path}
}

// SaveIndex implements IndexStore
func (s *FileIndexStore) SaveIndex(_ context.Context, idx *VectorIndex) error {
	return idx.Save(s.path)
}

// LoadIndex implements IndexStore
func (s *FileIndexStore) LoadIndex(_ context.Context) (*VectorIndex, error) {
	return LoadVectorIndex(s.path)
}

// Location implements IndexStore
func (s *FileIndexStore) Location() string {
	return s.path
}

// S3API is the subset of the S3 client used by S3IndexStore
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3IndexStore keeps the index as one S3 object. PutObject replaces the
// object atomically, so readers see either the old or the new snapshot.
type S3IndexStore struct {
	client S3API
	bucket string
	key    string
}

// NewS3IndexStore creates an S3-backed index store from an existing client
func NewS3IndexStore(client S3API, bucket, key string) *S3IndexStore {
	return &S3IndexStore{client: client, bucket: bucket, key: key}
}

// NewS3IndexStoreFromEnv builds an S3 client from the default AWS credential chain
func NewS3IndexStoreFromEnv(ctx context.Context, region, bucket, key string) (*S3IndexStore, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return NewS3IndexStore(s3.NewFromConfig(cfg), bucket, key), nil
}

// SaveIndex implements IndexStore
func (s *S3IndexStore) SaveIndex(ctx context.Context, idx *VectorIndex) error {
	data, err := idx.MarshalBinary()
	if err != nil {
		return fmt.Errorf("failed to encode index: %w", err)
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(s.key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String("application/octet-stream"),
	})
	if err != nil {
		return fmt.Errorf("failed to put %s: %w", s.Location(), err)
	}
	return nil
}

// LoadIndex implements IndexStore
func (s *S3IndexStore) LoadIndex(ctx context.Context) (*VectorIndex, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key),
	})
	if err != nil {
		var noSuchKey *s3types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, fmt.Errorf("%w: %s", ErrIndexNotFound, s.Location())
		}
		return nil, fmt.Errorf("failed to get %s: %w", s.Location(), err)
	}
	defer func() { _ = out.Body.Close() }()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", s.Location(), err)
	}
	return DecodeVectorIndex(data)
}

// Location implements IndexStore
func (s *S3IndexStore) Location() string {
	return "s3://" + s.bucket + "/" + s.key
}
