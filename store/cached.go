package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// dirtyState tracks what needs flushing for a single collection.
type dirtyState struct {
	itemsDirty     bool // items/version need writing to backing store
	flushedVersion int  // highest operation version already in backing store
	created        bool // created locally but not yet in backing store
}

// CachedStore wraps a backing CollectionStore with an in-memory cache.
// All reads and writes are served from the cache. Dirty collections are
// flushed to the backing store periodically in the background.
type CachedStore struct {
	cache         *MemoryStore
	backing       CollectionStore
	logger        *zap.Logger
	mu            sync.Mutex
	flushMu       sync.Mutex // serializes Flush
	dirty         map[string]*dirtyState
	flushInterval time.Duration
	stop          chan struct{}
	done          chan struct{}
}

// NewCachedStore creates a CachedStore that caches in memory and flushes
// dirty collections to the backing store every flushInterval.
func NewCachedStore(backing CollectionStore, flushInterval time.Duration, logger *zap.Logger) *CachedStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	cs := &CachedStore{
		cache:         NewMemoryStore(),
		backing:       backing,
		logger:        logger.Named("cached-store"),
		dirty:         make(map[string]*dirtyState),
		flushInterval: flushInterval,
		stop:          make(chan struct{}),
		done:          make(chan struct{}),
	}
	go cs.flushLoop()
	return cs
}

func (cs *CachedStore) Create(ctx context.Context, id string, items []any) error {
	if _, err := cs.backing.Get(ctx, id); err == nil {
		return fmt.Errorf("collection %q: %w", id, ErrExists)
	}
	if err := cs.cache.Create(ctx, id, items); err != nil {
		return err
	}
	cs.mu.Lock()
	cs.dirty[id] = &dirtyState{itemsDirty: true, created: true}
	cs.mu.Unlock()
	return nil
}

func (cs *CachedStore) Get(ctx context.Context, id string) (*CollectionInfo, error) {
	info, err := cs.cache.Get(ctx, id)
	if err == nil {
		return info, nil
	}
	// Cache miss, load from backing store.
	if err := cs.loadFromBacking(ctx, id); err != nil {
		return nil, err
	}
	return cs.cache.Get(ctx, id)
}

func (cs *CachedStore) List(ctx context.Context) ([]CollectionInfo, error) {
	if err := cs.Flush(ctx); err != nil {
		cs.logger.Warn("listing with unflushed collections", zap.Error(err))
	}
	return cs.backing.List(ctx)
}

func (cs *CachedStore) UpdateItems(ctx context.Context, id string, items []any, version int) error {
	// Ensure collection is in cache.
	if _, err := cs.Get(ctx, id); err != nil {
		return err
	}
	cs.mu.Lock()
	defer cs.mu.Unlock()
	if err := cs.cache.UpdateItems(ctx, id, items, version); err != nil {
		return err
	}
	cs.markDirty(id).itemsDirty = true
	return nil
}

func (cs *CachedStore) AppendOperation(ctx context.Context, id string, rec OperationRecord) error {
	if _, err := cs.Get(ctx, id); err != nil {
		return err
	}
	// Mark before appending so a clean collection records the ops that were
	// already flushed. Holding mu keeps a concurrent flush from dropping the
	// dirty entry in between.
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.markDirty(id)
	return cs.cache.AppendOperation(ctx, id, rec)
}

func (cs *CachedStore) GetOperations(ctx context.Context, id string, fromVersion int) ([]OperationRecord, error) {
	if _, err := cs.Get(ctx, id); err != nil {
		return nil, err
	}
	return cs.cache.GetOperations(ctx, id, fromVersion)
}

// markDirty returns the dirty state for id, creating one for a collection
// that was clean. Caller holds cs.mu.
func (cs *CachedStore) markDirty(id string) *dirtyState {
	ds := cs.dirty[id]
	if ds == nil {
		ds = &dirtyState{flushedVersion: cs.lastOpVersion(id)}
		cs.dirty[id] = ds
	}
	return ds
}

func (cs *CachedStore) lastOpVersion(id string) int {
	cs.cache.mu.RLock()
	defer cs.cache.mu.RUnlock()
	rec, ok := cs.cache.collections[id]
	if !ok || len(rec.ops) == 0 {
		return 0
	}
	return rec.ops[len(rec.ops)-1].Version
}

// loadFromBacking loads a collection and its operations from the backing
// store into the cache. Already persisted operations are not re-flushed.
func (cs *CachedStore) loadFromBacking(ctx context.Context, id string) error {
	info, err := cs.backing.Get(ctx, id)
	if err != nil {
		return err
	}
	ops, err := cs.backing.GetOperations(ctx, id, 0)
	if err != nil {
		return err
	}

	cs.cache.mu.Lock()
	if _, exists := cs.cache.collections[id]; !exists {
		cs.cache.collections[id] = &collectionRecord{info: *info, ops: ops}
	}
	cs.cache.mu.Unlock()
	return nil
}

func (cs *CachedStore) flushLoop() {
	ticker := time.NewTicker(cs.flushInterval)
	defer ticker.Stop()
	defer close(cs.done)

	for {
		select {
		case <-ticker.C:
			if err := cs.Flush(context.Background()); err != nil {
				cs.logger.Error("flush failed", zap.Error(err))
			}
		case <-cs.stop:
			if err := cs.Flush(context.Background()); err != nil {
				cs.logger.Error("final flush failed", zap.Error(err))
			}
			return
		}
	}
}

// Flush writes all dirty collections to the backing store. Collections that
// fail stay dirty and are retried on the next flush.
func (cs *CachedStore) Flush(ctx context.Context) error {
	cs.flushMu.Lock()
	defer cs.flushMu.Unlock()

	cs.mu.Lock()
	snapshot := make(map[string]dirtyState, len(cs.dirty))
	for id, ds := range cs.dirty {
		snapshot[id] = *ds
	}
	cs.mu.Unlock()

	var errs error
	for id, ds := range snapshot {
		errs = multierr.Append(errs, cs.flushOne(ctx, id, ds))
	}
	return errs
}

func (cs *CachedStore) flushOne(ctx context.Context, id string, ds dirtyState) error {
	info, err := cs.cache.Get(ctx, id)
	if err != nil {
		return nil
	}
	newOps, err := cs.cache.GetOperations(ctx, id, ds.flushedVersion)
	if err != nil {
		return err
	}

	// 1. Create in backing store if needed.
	if ds.created {
		err := cs.backing.Create(ctx, id, nil)
		if err != nil && !errors.Is(err, ErrExists) {
			return fmt.Errorf("create %q: %w", id, err)
		}
		ds.created = false
	}

	// 2. Flush new ops before items, so a crash leaves a replayable log.
	var opErr error
	for _, rec := range newOps {
		if err := cs.backing.AppendOperation(ctx, id, rec); err != nil {
			opErr = fmt.Errorf("flush op %d of %q: %w", rec.Version, id, err)
			break
		}
		ds.flushedVersion = rec.Version
	}

	// 3. Flush items if dirty.
	var itemsErr error
	if ds.itemsDirty && opErr == nil {
		if err := cs.backing.UpdateItems(ctx, id, info.Items, info.Version); err != nil {
			itemsErr = fmt.Errorf("flush items of %q: %w", id, err)
		} else {
			ds.itemsDirty = false
		}
	}

	cs.mu.Lock()
	defer cs.mu.Unlock()
	cur := cs.dirty[id]
	if cur == nil {
		return multierr.Combine(opErr, itemsErr)
	}
	cur.flushedVersion = max(cur.flushedVersion, ds.flushedVersion)
	cur.created = cur.created && ds.created
	// Only clear itemsDirty if nothing was written since the snapshot.
	if !ds.itemsDirty {
		if latest, err := cs.cache.Get(ctx, id); err == nil && latest.Version == info.Version {
			cur.itemsDirty = false
		}
	}
	if !cur.itemsDirty && !cur.created && cur.flushedVersion >= cs.lastOpVersion(id) {
		delete(cs.dirty, id)
	}
	return multierr.Combine(opErr, itemsErr)
}

// Close signals the flush loop to perform a final flush and waits for it
// to complete.
func (cs *CachedStore) Close() {
	close(cs.stop)
	<-cs.done
}
