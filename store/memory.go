package store

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"
)

type collectionRecord struct {
	info CollectionInfo
	ops  []OperationRecord
}

// MemoryStore is an in-memory implementation of CollectionStore.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]*collectionRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{collections: make(map[string]*collectionRecord)}
}

func (s *MemoryStore) Create(_ context.Context, id string, items []any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.collections[id]; exists {
		return fmt.Errorf("collection %q: %w", id, ErrExists)
	}
	now := time.Now()
	s.collections[id] = &collectionRecord{
		info: CollectionInfo{
			ID:        id,
			Items:     slices.Clone(items),
			CreatedAt: now,
			UpdatedAt: now,
		},
	}
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*CollectionInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.collections[id]
	if !ok {
		return nil, fmt.Errorf("collection %q: %w", id, ErrNotFound)
	}
	info := rec.info
	info.Items = slices.Clone(rec.info.Items)
	return &info, nil
}

func (s *MemoryStore) List(_ context.Context) ([]CollectionInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]CollectionInfo, 0, len(s.collections))
	for _, rec := range s.collections {
		info := rec.info
		info.Items = slices.Clone(rec.info.Items)
		result = append(result, info)
	}
	return result, nil
}

func (s *MemoryStore) UpdateItems(_ context.Context, id string, items []any, version int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.collections[id]
	if !ok {
		return fmt.Errorf("collection %q: %w", id, ErrNotFound)
	}
	rec.info.Items = slices.Clone(items)
	rec.info.Version = version
	rec.info.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryStore) AppendOperation(_ context.Context, id string, op OperationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.collections[id]
	if !ok {
		return fmt.Errorf("collection %q: %w", id, ErrNotFound)
	}
	if n := len(rec.ops); n > 0 && rec.ops[n-1].Version >= op.Version {
		return fmt.Errorf("collection %q: operation version %d not after %d", id, op.Version, rec.ops[n-1].Version)
	}
	rec.ops = append(rec.ops, op)
	rec.info.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryStore) GetOperations(_ context.Context, id string, fromVersion int) ([]OperationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.collections[id]
	if !ok {
		return nil, fmt.Errorf("collection %q: %w", id, ErrNotFound)
	}
	i, _ := slices.BinarySearchFunc(rec.ops, fromVersion+1, func(r OperationRecord, v int) int {
		return r.Version - v
	})
	return slices.Clone(rec.ops[i:]), nil
}
