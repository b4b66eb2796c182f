package ot

import (
	"errors"
	"fmt"

	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// ErrNegativeVersion is returned by ResetTo for versions below zero.
var ErrNegativeVersion = errors.New("negative version")

// SyncList is the authoritative copy of a replicated list. It rebases
// operations submitted against older versions, applies them and keeps a
// bounded history of what it applied.
//
// ProcessOperation, ResetTo and Reset must be called by a single owner (the
// server runs one goroutine per list). Overlapping writer calls panic.
// CurrentState, Version and Count may be called from any goroutine.
type SyncList[T any] struct {
	state   *atomic.Pointer[ListState[T]]
	history *History[Operation[T]]
	// baseline is the lowest version whose successors are known to this
	// list. It moves on Reset and ResetTo.
	baseline int
	writing  *atomic.Bool
	logger   *zap.Logger
}

// Option configures a SyncList.
type Option func(*options)

type options struct {
	capacity int
	logger   *zap.Logger
}

// WithHistoryCapacity sets how many applied operations are retained for
// rebasing.
func WithHistoryCapacity(n int) Option {
	return func(o *options) { o.capacity = n }
}

func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// NewSyncList creates an empty list at version 0.
func NewSyncList[T any](opts ...Option) *SyncList[T] {
	o := options{capacity: DefaultHistoryCapacity}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	return &SyncList[T]{
		state:   atomic.NewPointer(&ListState[T]{}),
		history: NewHistory[Operation[T]](o.capacity),
		writing: atomic.NewBool(false),
		logger:  o.logger,
	}
}

// CurrentState returns the latest published snapshot.
func (l *SyncList[T]) CurrentState() ListState[T] {
	return *l.state.Load()
}

func (l *SyncList[T]) Version() int { return l.state.Load().version }
func (l *SyncList[T]) Count() int   { return l.state.Load().Len() }

// Capacity is the size of the history window.
func (l *SyncList[T]) Capacity() int { return l.history.Cap() }

// MinValidVersion is the oldest base version ProcessOperation can still
// rebase from. Any base in [MinValidVersion, Version] is accepted.
func (l *SyncList[T]) MinValidVersion() int {
	return l.history.FirstIndex()
}

// ProcessOperation rebases op from baseVersion onto the current state,
// applies it and records it. On Successful it returns the operation as it
// was applied, which is what other replicas must apply. Every other result
// leaves the list untouched and returns Noop.
func (l *SyncList[T]) ProcessOperation(op Operation[T], baseVersion int) (Operation[T], ProcessResult) {
	l.enter()
	defer l.exit()

	if op.IsNoop() {
		return Noop[T](), DiscardOperation
	}

	cur := l.state.Load()
	version := cur.version
	if baseVersion < 0 || baseVersion > version {
		l.logger.Debug("operation from unknown version",
			zap.Stringer("op", op), zap.Int("base", baseVersion), zap.Int("version", version))
		return Noop[T](), InvalidVersion
	}

	from := baseVersion
	if baseVersion < version && !l.history.ValidateIndex(baseVersion) {
		if !l.clearedSince(baseVersion) {
			l.logger.Debug("base version left history window",
				zap.Int("base", baseVersion), zap.Int("min", l.MinValidVersion()))
			return Noop[T](), OutOfOperationalRange
		}
		// The retained Clear wiped everything in between.
		from = l.history.FirstIndex()
	}

	if op.Kind == KindClear {
		l.history.Clear()
		l.publish(op.Apply(*cur))
		l.history.Add(op)
		return op, Successful
	}
	for g := from; g < version; g++ {
		prior, ok := l.history.TryGet(g)
		if !ok {
			// clearedSince and ValidateIndex guarantee a contiguous window.
			panic(fmt.Sprintf("ot: history hole at %d (window [%d, %d])", g, l.history.FirstIndex(), l.history.LastIndex()))
		}
		if !op.TransformAgainst(prior) {
			return Noop[T](), DiscardOperation
		}
	}

	if err := op.Validate(cur.Len()); err != nil {
		l.logger.Debug("rebased operation rejected", zap.Stringer("op", op), zap.Error(err))
		return Noop[T](), BadOperation
	}

	l.publish(op.Apply(*cur))
	l.history.Add(op)
	return op, Successful
}

// ResetTo replaces the contents wholesale and restarts history numbering at
// version. Operations based on anything older are out of range afterwards.
func (l *SyncList[T]) ResetTo(items []T, version int) error {
	if version < 0 {
		return fmt.Errorf("reset to %d: %w", version, ErrNegativeVersion)
	}
	l.enter()
	defer l.exit()

	l.history.Reset(version)
	l.baseline = version
	l.publish(NewListState(items, version))
	return nil
}

// Reset empties the list and returns it to version 0.
func (l *SyncList[T]) Reset() {
	l.enter()
	defer l.exit()

	l.history.Reset(0)
	l.baseline = 0
	l.publish(ListState[T]{})
}

// clearedSince reports whether the entries from base onwards were dropped by
// a Clear that is still retained, which makes anything based there moot.
func (l *SyncList[T]) clearedSince(base int) bool {
	if base < l.baseline || l.history.Len() == 0 {
		return false
	}
	first := l.history.FirstIndex()
	if base >= first {
		return false
	}
	op, _ := l.history.TryGet(first)
	return op.Kind == KindClear
}

// publish makes s the current snapshot. Only the writer stores, so a plain
// store is enough.
func (l *SyncList[T]) publish(s ListState[T]) {
	l.state.Store(&s)
}

func (l *SyncList[T]) enter() {
	if !l.writing.CompareAndSwap(false, true) {
		panic("ot: concurrent writers on SyncList")
	}
}

func (l *SyncList[T]) exit() {
	l.writing.Store(false)
}
