package server

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/alimasry/go-collab-list/ot"
	"github.com/alimasry/go-collab-list/relay"
	"github.com/alimasry/go-collab-list/store"
)

// Config holds the hub settings.
type Config struct {
	HistoryCapacity int             // per-collection history window, 0 means ot.DefaultHistoryCapacity
	Relay           relay.Publisher // receives every accepted change, nil disables
	StaticDir       string          // served at /, defaults to "static"
}

type joinRequest struct {
	client       *Client
	collectionID string
}

// Hub manages collection sessions and routes clients to the right session.
type Hub struct {
	store    store.CollectionStore
	cfg      Config
	logger   *zap.Logger
	sessions map[string]*Session
	mu       sync.RWMutex

	joinCollection chan joinRequest
}

func NewHub(st store.CollectionStore, cfg Config, logger *zap.Logger) *Hub {
	if cfg.HistoryCapacity <= 0 {
		cfg.HistoryCapacity = ot.DefaultHistoryCapacity
	}
	if cfg.Relay == nil {
		cfg.Relay = relay.Nop{}
	}
	if cfg.StaticDir == "" {
		cfg.StaticDir = "static"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		store:          st,
		cfg:            cfg,
		logger:         logger.Named("hub"),
		sessions:       make(map[string]*Session),
		joinCollection: make(chan joinRequest, 64),
	}
}

// Run is the hub's main loop.
func (h *Hub) Run() {
	for req := range h.joinCollection {
		h.handleJoin(req)
	}
}

func (h *Hub) handleJoin(req joinRequest) {
	if req.collectionID == "" {
		req.client.sendError("missing collection id")
		return
	}
	h.mu.Lock()
	s, ok := h.sessions[req.collectionID]
	if !ok {
		var err error
		s, err = h.openSession(context.Background(), req.collectionID)
		if err != nil {
			h.mu.Unlock()
			h.logger.Error("open session", zap.String("collection", req.collectionID), zap.Error(err))
			req.client.sendError("failed to load collection")
			return
		}
		h.sessions[req.collectionID] = s
		activeSessions.Inc()
		go s.Run()
	}
	h.mu.Unlock()

	s.join <- req.client
}

// openSession loads the collection, creating it when it does not exist yet,
// and seeds a list with its stored items and version.
func (h *Hub) openSession(ctx context.Context, id string) (*Session, error) {
	info, err := h.store.Get(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		if err := h.store.Create(ctx, id, nil); err != nil && !errors.Is(err, store.ErrExists) {
			return nil, fmt.Errorf("create collection: %w", err)
		}
		info, err = h.store.Get(ctx, id)
	}
	if err != nil {
		return nil, fmt.Errorf("load collection: %w", err)
	}

	list := ot.NewSyncList[any](
		ot.WithHistoryCapacity(h.cfg.HistoryCapacity),
		ot.WithLogger(h.logger.With(zap.String("collection", id))),
	)
	if err := list.ResetTo(info.Items, info.Version); err != nil {
		return nil, err
	}
	return newSession(id, list, h.store, h.cfg.Relay, h.logger), nil
}

// GetSession returns the session for a collection, if active.
func (h *Hub) GetSession(collectionID string) *Session {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.sessions[collectionID]
}

// Snapshot returns the current state of a collection: the live state when a
// session is running, otherwise what the store holds.
func (h *Hub) Snapshot(ctx context.Context, collectionID string) (ot.ListState[any], error) {
	if s := h.GetSession(collectionID); s != nil {
		return s.State(), nil
	}
	info, err := h.store.Get(ctx, collectionID)
	if err != nil {
		return ot.ListState[any]{}, err
	}
	return ot.NewListState(info.Items, info.Version), nil
}

// Shutdown stops every session and waits for their loops to exit.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, s := range h.sessions {
		close(s.stop)
		<-s.done
		delete(h.sessions, id)
		activeSessions.Dec()
	}
}
