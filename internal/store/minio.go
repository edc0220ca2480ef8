package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"loom/internal/tree"
)

const minioDocPrefix = "docs/"

// MinioStore keeps each conversation as one JSON object in an
// S3-compatible bucket. PutObject replaces the object whole, which is
// the atomic-replace contract object storage gives for free.
type MinioStore struct {
	client *minio.Client
	bucket string
}

// MinioConfig carries the connection settings for an S3-compatible
// endpoint.
type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// NewMinioStore connects to the endpoint and ensures the bucket
// exists.
func NewMinioStore(ctx context.Context, cfg MinioConfig) (*MinioStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to object storage: %w", err)
	}
	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", cfg.Bucket, err)
		}
	}
	return &MinioStore{client: client, bucket: cfg.Bucket}, nil
}

func minioKey(id string) string { return minioDocPrefix + id + ".json" }

func isNoSuchKey(err error) bool {
	return minio.ToErrorResponse(err).Code == "NoSuchKey"
}

func (s *MinioStore) Load(ctx context.Context, id string) (*tree.Document, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, minioKey(id), minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("load document %s: %w", id, err)
	}
	defer obj.Close()
	raw, err := io.ReadAll(obj)
	if err != nil {
		if isNoSuchKey(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("load document %s: %w", id, err)
	}
	return decodeDocument(id, raw)
}

func (s *MinioStore) Save(ctx context.Context, id string, doc *tree.Document) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode document %s: %w", id, err)
	}
	_, err = s.client.PutObject(ctx, s.bucket, minioKey(id), bytes.NewReader(raw), int64(len(raw)),
		minio.PutObjectOptions{ContentType: "application/json"})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrWrite, err)
	}
	return nil
}

func (s *MinioStore) Delete(ctx context.Context, id string) error {
	if _, err := s.client.StatObject(ctx, s.bucket, minioKey(id), minio.StatObjectOptions{}); err != nil {
		if isNoSuchKey(err) {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return fmt.Errorf("%w: %v", ErrWrite, err)
	}
	if err := s.client.RemoveObject(ctx, s.bucket, minioKey(id), minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("%w: %v", ErrWrite, err)
	}
	return nil
}

func (s *MinioStore) List(ctx context.Context) ([]Entry, error) {
	var entries []Entry
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Prefix: minioDocPrefix, Recursive: true}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("list documents: %w", obj.Err)
		}
		if !strings.HasSuffix(obj.Key, ".json") {
			continue
		}
		id := strings.TrimSuffix(strings.TrimPrefix(obj.Key, minioDocPrefix), ".json")
		doc, err := s.Load(ctx, id)
		if err != nil {
			continue
		}
		entries = append(entries, entryFor(id, doc))
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].UpdatedAt.After(entries[j].UpdatedAt) })
	return entries, nil
}

func (s *MinioStore) Close() error {
	return nil
}
