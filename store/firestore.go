package store

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/alimasry/go-collab-list/ot"
)

// FirestoreStore is a Firestore-backed implementation of CollectionStore.
// Items must be values Firestore can hold (no arrays nested in arrays).
type FirestoreStore struct {
	client     *firestore.Client
	collection string
}

// NewFirestoreStore creates a new FirestoreStore using the given Firestore client.
func NewFirestoreStore(client *firestore.Client) *FirestoreStore {
	return &FirestoreStore{
		client:     client,
		collection: "collections",
	}
}

func (s *FirestoreStore) docRef(id string) *firestore.DocumentRef {
	return s.client.Collection(s.collection).Doc(id)
}

func (s *FirestoreStore) opsCollection(id string) *firestore.CollectionRef {
	return s.docRef(id).Collection("operations")
}

func zeroPad(version int) string {
	return fmt.Sprintf("%010d", version)
}

func (s *FirestoreStore) Create(ctx context.Context, id string, items []any) error {
	now := time.Now()
	_, err := s.docRef(id).Create(ctx, map[string]interface{}{
		"items":     nonNil(items),
		"version":   0,
		"createdAt": now,
		"updatedAt": now,
	})
	if status.Code(err) == codes.AlreadyExists {
		return fmt.Errorf("collection %q: %w", id, ErrExists)
	}
	return err
}

func (s *FirestoreStore) Get(ctx context.Context, id string) (*CollectionInfo, error) {
	snap, err := s.docRef(id).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, fmt.Errorf("collection %q: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return snapshotToInfo(id, snap), nil
}

func snapshotToInfo(id string, snap *firestore.DocumentSnapshot) *CollectionInfo {
	data := snap.Data()
	items, _ := data["items"].([]interface{})
	version, _ := data["version"].(int64)
	createdAt, _ := data["createdAt"].(time.Time)
	updatedAt, _ := data["updatedAt"].(time.Time)
	return &CollectionInfo{
		ID:        id,
		Items:     items,
		Version:   int(version),
		CreatedAt: createdAt,
		UpdatedAt: updatedAt,
	}
}

func (s *FirestoreStore) List(ctx context.Context) ([]CollectionInfo, error) {
	iter := s.client.Collection(s.collection).Documents(ctx)
	defer iter.Stop()

	var result []CollectionInfo
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, err
		}
		result = append(result, *snapshotToInfo(snap.Ref.ID, snap))
	}
	return result, nil
}

func (s *FirestoreStore) UpdateItems(ctx context.Context, id string, items []any, version int) error {
	_, err := s.docRef(id).Update(ctx, []firestore.Update{
		{Path: "items", Value: nonNil(items)},
		{Path: "version", Value: version},
		{Path: "updatedAt", Value: time.Now()},
	})
	if status.Code(err) == codes.NotFound {
		return fmt.Errorf("collection %q: %w", id, ErrNotFound)
	}
	return err
}

func (s *FirestoreStore) AppendOperation(ctx context.Context, id string, rec OperationRecord) error {
	data := map[string]interface{}{
		"version": rec.Version,
		"kind":    rec.Op.Kind.String(),
	}
	switch rec.Op.Kind {
	case ot.KindInsert, ot.KindModify:
		data["index"] = rec.Op.Index
		data["value"] = rec.Op.Value
	case ot.KindRemove:
		data["index"] = rec.Op.Index
	case ot.KindMove:
		data["from"] = rec.Op.From
		data["to"] = rec.Op.To
	}
	// Document ids sort by version, so GetOperations can page with StartAfter.
	_, err := s.opsCollection(id).Doc(zeroPad(rec.Version)).Set(ctx, data)
	return err
}

func (s *FirestoreStore) GetOperations(ctx context.Context, id string, fromVersion int) ([]OperationRecord, error) {
	// Verify collection exists.
	_, err := s.docRef(id).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, fmt.Errorf("collection %q: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	iter := s.opsCollection(id).
		OrderBy(firestore.DocumentID, firestore.Asc).
		StartAfter(zeroPad(fromVersion)).
		Documents(ctx)
	defer iter.Stop()

	var ops []OperationRecord
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, err
		}
		rec, err := snapshotToRecord(snap)
		if err != nil {
			return nil, err
		}
		ops = append(ops, rec)
	}
	return ops, nil
}

func snapshotToRecord(snap *firestore.DocumentSnapshot) (OperationRecord, error) {
	data := snap.Data()
	name, _ := data["kind"].(string)
	kind, ok := ot.ParseKind(name)
	if !ok {
		return OperationRecord{}, fmt.Errorf("invalid kind %q in operation %s", name, snap.Ref.ID)
	}
	version, _ := data["version"].(int64)
	index, _ := data["index"].(int64)
	from, _ := data["from"].(int64)
	to, _ := data["to"].(int64)
	return OperationRecord{
		Version: int(version),
		Op: ot.Operation[any]{
			Kind:  kind,
			Index: int(index),
			From:  int(from),
			To:    int(to),
			Value: data["value"],
		},
	}, nil
}

func nonNil(items []any) []any {
	if items == nil {
		return []any{}
	}
	return items
}
