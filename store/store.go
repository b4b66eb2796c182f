package store

import (
	"context"
	"errors"
	"time"

	"github.com/alimasry/go-collab-list/ot"
)

var (
	ErrNotFound = errors.New("collection not found")
	ErrExists   = errors.New("collection already exists")
)

// CollectionInfo holds a collection's contents and the version they are at.
type CollectionInfo struct {
	ID        string
	Items     []any
	Version   int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// OperationRecord is an applied operation and the version it produced.
type OperationRecord struct {
	Version int
	Op      ot.Operation[any]
}

// CollectionStore abstracts collection persistence.
// Implementations: MemoryStore, FirestoreStore, CachedStore.
type CollectionStore interface {
	Create(ctx context.Context, id string, items []any) error
	Get(ctx context.Context, id string) (*CollectionInfo, error)
	List(ctx context.Context) ([]CollectionInfo, error)
	UpdateItems(ctx context.Context, id string, items []any, version int) error
	AppendOperation(ctx context.Context, id string, rec OperationRecord) error
	// GetOperations returns the records with Version > fromVersion in
	// ascending order.
	GetOperations(ctx context.Context, id string, fromVersion int) ([]OperationRecord, error)
}
