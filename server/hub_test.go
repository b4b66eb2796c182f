package server

import (
	"errors"
	"testing"

	"github.com/alimasry/go-collab-list/store"
)

func TestHub_CreateSessionOnJoin(t *testing.T) {
	st := store.NewMemoryStore()
	hub := NewHub(st, Config{HistoryCapacity: 4}, nil)
	go hub.Run()
	defer hub.Shutdown()

	c := mockClient("c1")
	c.hub = hub
	hub.joinCollection <- joinRequest{client: c, collectionID: "new-list"}

	msg := recvMsg(t, c)
	if msg.Type != MsgState {
		t.Errorf("expected state, got %q", msg.Type)
	}
	if msg.CollectionID != "new-list" {
		t.Errorf("collectionId = %q, want %q", msg.CollectionID, "new-list")
	}

	s := hub.GetSession("new-list")
	if s == nil {
		t.Fatal("session not created")
	}
	if s.list.Capacity() != 4 {
		t.Errorf("capacity = %d, want 4", s.list.Capacity())
	}
	if _, err := st.Get(ctx(), "new-list"); err != nil {
		t.Errorf("collection not stored: %v", err)
	}
}

func TestHub_JoinExistingCollection(t *testing.T) {
	st := store.NewMemoryStore()
	st.Create(ctx(), "existing", []any{"milk", "eggs"})
	st.UpdateItems(ctx(), "existing", []any{"milk", "eggs", "bread"}, 5)
	hub := NewHub(st, Config{}, nil)
	go hub.Run()
	defer hub.Shutdown()

	c := mockClient("c1")
	c.hub = hub
	hub.joinCollection <- joinRequest{client: c, collectionID: "existing"}

	msg := recvMsg(t, c)
	if len(msg.Items) != 3 || msg.Items[2] != "bread" {
		t.Errorf("items = %v", msg.Items)
	}
	if msg.Revision != 5 {
		t.Errorf("revision = %d, want 5", msg.Revision)
	}

	// Operations based before the stored version are out of range.
	s := hub.GetSession("existing")
	if got := s.list.MinValidVersion(); got != 5 {
		t.Errorf("MinValidVersion = %d, want 5", got)
	}
}

func TestHub_MissingCollectionID(t *testing.T) {
	hub := NewHub(store.NewMemoryStore(), Config{}, nil)
	go hub.Run()
	defer hub.Shutdown()

	c := mockClient("c1")
	hub.joinCollection <- joinRequest{client: c}
	if msg := recvMsg(t, c); msg.Type != MsgError {
		t.Fatalf("expected error, got %q", msg.Type)
	}
}

func TestHub_Snapshot(t *testing.T) {
	st := store.NewMemoryStore()
	st.Create(ctx(), "stored", []any{"a"})
	hub := NewHub(st, Config{}, nil)
	go hub.Run()
	defer hub.Shutdown()

	// No session: served from the store.
	state, err := hub.Snapshot(ctx(), "stored")
	if err != nil {
		t.Fatal(err)
	}
	if state.Len() != 1 || state.At(0) != "a" {
		t.Errorf("snapshot = %v", state.Items())
	}

	// Live session: served from the list.
	c := mockClient("c1")
	hub.joinCollection <- joinRequest{client: c, collectionID: "stored"}
	recvMsg(t, c)
	s := hub.GetSession("stored")
	sendOp(s, c, 0, WireOp{Kind: OpInsert, Index: -1, Value: "b"})
	recvMsg(t, c) // ack

	state, err = hub.Snapshot(ctx(), "stored")
	if err != nil {
		t.Fatal(err)
	}
	if state.Version() != 1 || state.Len() != 2 {
		t.Errorf("snapshot = %v at %d", state.Items(), state.Version())
	}

	if _, err := hub.Snapshot(ctx(), "missing"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestHub_Shutdown(t *testing.T) {
	hub := NewHub(store.NewMemoryStore(), Config{}, nil)
	go hub.Run()

	c := mockClient("c1")
	hub.joinCollection <- joinRequest{client: c, collectionID: "a"}
	recvMsg(t, c)

	hub.Shutdown()
	if hub.GetSession("a") != nil {
		t.Error("session still registered after shutdown")
	}
}
