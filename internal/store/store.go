// Package store persists conversation documents. Every backend stores
// a document as one JSON value and replaces it whole on save, so a
// reader can never observe a half-written tree.
package store

import (
	"context"
	"errors"

	"loom/internal/tree"
)

var (
	// ErrNotFound reports a document id with no stored value.
	ErrNotFound = errors.New("document not found")
	// ErrInvalidID reports an id a backend refuses to resolve, such as
	// a file-store id that would escape the storage root.
	ErrInvalidID = errors.New("invalid document id")
	// ErrWrite wraps any failure to persist a save or delete.
	ErrWrite = errors.New("write failed")
)

// DocumentStore is the persistence contract shared by all backends.
type DocumentStore interface {
	Load(ctx context.Context, id string) (*tree.Document, error)
	Save(ctx context.Context, id string, doc *tree.Document) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]Entry, error)
	Close() error
}

var (
	_ DocumentStore = (*FileStore)(nil)
	_ DocumentStore = (*PostgresStore)(nil)
	_ DocumentStore = (*RedisStore)(nil)
	_ DocumentStore = (*BadgerStore)(nil)
	_ DocumentStore = (*MinioStore)(nil)
)
