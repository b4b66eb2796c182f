package ot

import (
	"errors"
	"fmt"
)

// ErrIndexOutOfRange is returned when an operation's indices do not fit the
// list it is about to be applied to.
var ErrIndexOutOfRange = errors.New("index out of range")

// AppendIndex is the Insert index that always means "at the current end".
const AppendIndex = -1

// Kind identifies an operation variant.
type Kind uint8

const (
	KindNoop Kind = iota
	KindInsert
	KindRemove
	KindModify
	KindMove
	KindClear
)

var kindNames = [...]string{
	KindNoop:   "noop",
	KindInsert: "insert",
	KindRemove: "remove",
	KindModify: "modify",
	KindMove:   "move",
	KindClear:  "clear",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// ParseKind maps a kind name back to its Kind.
func ParseKind(s string) (Kind, bool) {
	for k, name := range kindNames {
		if name == s {
			return Kind(k), true
		}
	}
	return KindNoop, false
}

// Operation is a single list mutation. Only the fields relevant to Kind are
// meaningful:
//
//	Insert  Index, Value (Index == AppendIndex appends)
//	Remove  Index
//	Modify  Index, Value
//	Move    From, To
//	Clear, Noop  nothing
type Operation[T any] struct {
	Kind  Kind
	Index int
	From  int
	To    int
	Value T
}

func NewInsert[T any](index int, item T) Operation[T] {
	return Operation[T]{Kind: KindInsert, Index: index, Value: item}
}

// NewAppend creates an insert that lands at the end of whatever list it is
// finally applied to.
func NewAppend[T any](item T) Operation[T] {
	return Operation[T]{Kind: KindInsert, Index: AppendIndex, Value: item}
}

func NewRemove[T any](index int) Operation[T] {
	return Operation[T]{Kind: KindRemove, Index: index}
}

func NewModify[T any](index int, value T) Operation[T] {
	return Operation[T]{Kind: KindModify, Index: index, Value: value}
}

func NewMove[T any](from, to int) Operation[T] {
	return Operation[T]{Kind: KindMove, From: from, To: to}
}

func NewClear[T any]() Operation[T] {
	return Operation[T]{Kind: KindClear}
}

// Noop returns the sentinel for an operation that became irrelevant.
func Noop[T any]() Operation[T] {
	return Operation[T]{Kind: KindNoop}
}

// IsNoop reports whether the operation is the discard sentinel.
func (op Operation[T]) IsNoop() bool { return op.Kind == KindNoop }

// IsAppend reports whether the operation is an insert at the end.
func (op Operation[T]) IsAppend() bool { return op.Kind == KindInsert && op.Index == AppendIndex }

// Clone returns a copy of the operation. Value is copied shallowly.
func (op Operation[T]) Clone() Operation[T] {
	return op
}

func (op Operation[T]) String() string {
	switch op.Kind {
	case KindInsert:
		if op.IsAppend() {
			return fmt.Sprintf("insert(append, %v)", op.Value)
		}
		return fmt.Sprintf("insert(%d, %v)", op.Index, op.Value)
	case KindRemove:
		return fmt.Sprintf("remove(%d)", op.Index)
	case KindModify:
		return fmt.Sprintf("modify(%d, %v)", op.Index, op.Value)
	case KindMove:
		return fmt.Sprintf("move(%d -> %d)", op.From, op.To)
	default:
		return op.Kind.String()
	}
}

// Validate checks the operation's indices against a list of count items.
func (op Operation[T]) Validate(count int) error {
	switch op.Kind {
	case KindInsert:
		if op.Index == AppendIndex {
			return nil
		}
		if op.Index < 0 || op.Index > count {
			return fmt.Errorf("insert at %d in list of %d: %w", op.Index, count, ErrIndexOutOfRange)
		}
	case KindRemove, KindModify:
		if op.Index < 0 || op.Index >= count {
			return fmt.Errorf("%s at %d in list of %d: %w", op.Kind, op.Index, count, ErrIndexOutOfRange)
		}
	case KindMove:
		if op.From < 0 || op.From >= count || op.To < 0 || op.To >= count {
			return fmt.Errorf("move %d -> %d in list of %d: %w", op.From, op.To, count, ErrIndexOutOfRange)
		}
		if op.From == op.To {
			return fmt.Errorf("move %d -> %d: %w", op.From, op.To, ErrIndexOutOfRange)
		}
	case KindClear:
	default:
		return fmt.Errorf("cannot validate %s", op.Kind)
	}
	return nil
}

// Apply applies the operation to s and returns the next snapshot with the
// version incremented by one. The operation must be valid for s (see Validate).
func (op Operation[T]) Apply(s ListState[T]) ListState[T] {
	return op.ApplyAt(s, s.version+1)
}

// ApplyAt is Apply with an explicit resulting version. Noop returns s unchanged.
func (op Operation[T]) ApplyAt(s ListState[T], version int) ListState[T] {
	items := s.list()
	switch op.Kind {
	case KindInsert:
		if op.Index == AppendIndex {
			items = items.Append(op.Value)
		} else {
			items = insertAt(items, op.Index, op.Value)
		}
	case KindRemove:
		items = removeAt(items, op.Index)
	case KindModify:
		items = items.Set(op.Index, op.Value)
	case KindMove:
		item := items.Get(op.From)
		items = insertAt(removeAt(items, op.From), op.To, item)
	case KindClear:
		items = nil
	default:
		return s
	}
	return ListState[T]{items: items, version: version}
}
