package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"testing"
	"time"

	"cloud.google.com/go/firestore"

	"github.com/alimasry/go-collab-list/ot"
)

func testFirestoreClient(t *testing.T) *firestore.Client {
	t.Helper()
	projectID := os.Getenv("FIRESTORE_PROJECT")
	if projectID == "" {
		t.Skip("FIRESTORE_PROJECT not set, skipping Firestore tests")
	}
	client, err := firestore.NewClient(context.Background(), projectID)
	if err != nil {
		t.Fatalf("failed to create Firestore client: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

// uniqueID returns a unique collection ID for test isolation.
func uniqueID(t *testing.T) string {
	return fmt.Sprintf("test-%s-%d", t.Name(), time.Now().UnixNano())
}

// cleanup deletes a collection document and its operations subcollection.
func cleanup(t *testing.T, s *FirestoreStore, id string) {
	t.Helper()
	ctx := context.Background()

	ops := s.opsCollection(id).Documents(ctx)
	for {
		snap, err := ops.Next()
		if err != nil {
			break
		}
		snap.Ref.Delete(ctx)
	}
	s.docRef(id).Delete(ctx)
}

func TestFirestoreStore_CreateAndGet(t *testing.T) {
	client := testFirestoreClient(t)
	s := NewFirestoreStore(client)
	ctx := context.Background()
	id := uniqueID(t)
	t.Cleanup(func() { cleanup(t, s, id) })

	if err := s.Create(ctx, id, []any{"a", int64(2)}); err != nil {
		t.Fatal(err)
	}

	info, err := s.Get(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(info.Items, []any{"a", int64(2)}) || info.Version != 0 || info.ID != id {
		t.Errorf("unexpected info: %+v", info)
	}
}

func TestFirestoreStore_CreateDuplicate(t *testing.T) {
	client := testFirestoreClient(t)
	s := NewFirestoreStore(client)
	ctx := context.Background()
	id := uniqueID(t)
	t.Cleanup(func() { cleanup(t, s, id) })

	s.Create(ctx, id, nil)
	if err := s.Create(ctx, id, nil); !errors.Is(err, ErrExists) {
		t.Errorf("error = %v, want ErrExists", err)
	}
}

func TestFirestoreStore_GetNotFound(t *testing.T) {
	client := testFirestoreClient(t)
	s := NewFirestoreStore(client)
	_, err := s.Get(context.Background(), "nonexistent-collection-xyz")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestFirestoreStore_UpdateItems(t *testing.T) {
	client := testFirestoreClient(t)
	s := NewFirestoreStore(client)
	ctx := context.Background()
	id := uniqueID(t)
	t.Cleanup(func() { cleanup(t, s, id) })

	s.Create(ctx, id, nil)
	if err := s.UpdateItems(ctx, id, []any{"x"}, 1); err != nil {
		t.Fatal(err)
	}

	info, _ := s.Get(ctx, id)
	if !slices.Equal(info.Items, []any{"x"}) || info.Version != 1 {
		t.Errorf("unexpected: items=%v version=%d", info.Items, info.Version)
	}
}

func TestFirestoreStore_Operations(t *testing.T) {
	client := testFirestoreClient(t)
	s := NewFirestoreStore(client)
	ctx := context.Background()
	id := uniqueID(t)
	t.Cleanup(func() { cleanup(t, s, id) })

	s.Create(ctx, id, nil)

	if err := s.AppendOperation(ctx, id, record(1, ot.NewInsert[any](0, "a"))); err != nil {
		t.Fatal(err)
	}
	if err := s.AppendOperation(ctx, id, record(2, ot.NewMove[any](0, 1))); err != nil {
		t.Fatal(err)
	}

	ops, err := s.GetOperations(ctx, id, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(ops) != 2 {
		t.Fatalf("got %d ops, want 2", len(ops))
	}
	if ops[0].Op != ot.NewInsert[any](0, "a") {
		t.Errorf("first op = %v", ops[0].Op)
	}

	ops, err = s.GetOperations(ctx, id, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(ops) != 1 || ops[0].Op != ot.NewMove[any](0, 1) {
		t.Fatalf("unexpected ops after version 1: %+v", ops)
	}
}

func TestFirestoreStore_OperationsNotFound(t *testing.T) {
	client := testFirestoreClient(t)
	s := NewFirestoreStore(client)
	_, err := s.GetOperations(context.Background(), "nonexistent-collection-xyz", 0)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}
