package ot

import (
	"errors"
	"slices"
	"testing"
)

func state(version int, items ...string) ListState[string] {
	return NewListState(items, version)
}

func TestApply(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		op   Operation[string]
		want []string
	}{
		{"insert into empty", nil, NewInsert(0, "a"), []string{"a"}},
		{"insert at front", []string{"b", "c"}, NewInsert(0, "a"), []string{"a", "b", "c"}},
		{"insert in middle", []string{"a", "c"}, NewInsert(1, "b"), []string{"a", "b", "c"}},
		{"insert at end", []string{"a", "b"}, NewInsert(2, "c"), []string{"a", "b", "c"}},
		{"append", []string{"a", "b"}, NewAppend("c"), []string{"a", "b", "c"}},
		{"remove first", []string{"a", "b", "c"}, NewRemove[string](0), []string{"b", "c"}},
		{"remove middle", []string{"a", "b", "c"}, NewRemove[string](1), []string{"a", "c"}},
		{"remove last", []string{"a", "b", "c"}, NewRemove[string](2), []string{"a", "b"}},
		{"remove only", []string{"a"}, NewRemove[string](0), []string{}},
		{"modify", []string{"a", "b"}, NewModify(1, "B"), []string{"a", "B"}},
		{"move right", []string{"a", "b", "c", "d"}, NewMove[string](0, 2), []string{"b", "c", "a", "d"}},
		{"move left", []string{"a", "b", "c", "d"}, NewMove[string](3, 1), []string{"a", "d", "b", "c"}},
		{"clear", []string{"a", "b"}, NewClear[string](), []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := state(4, tt.in...)
			after := tt.op.Apply(before)
			if got := after.Items(); !slices.Equal(got, tt.want) {
				t.Errorf("items = %q, want %q", got, tt.want)
			}
			if after.Version() != 5 {
				t.Errorf("version = %d, want 5", after.Version())
			}
			// The input snapshot must not change.
			if got := before.Items(); !slices.Equal(got, tt.in) {
				t.Errorf("input snapshot mutated: %q, want %q", got, tt.in)
			}
		})
	}
}

func TestApplyAt(t *testing.T) {
	s := NewInsert(0, "x").ApplyAt(state(3), 42)
	if s.Version() != 42 {
		t.Errorf("version = %d, want 42", s.Version())
	}

	noop := Noop[string]().ApplyAt(state(3, "a"), 9)
	if noop.Version() != 3 || noop.Len() != 1 {
		t.Errorf("noop changed state: version=%d len=%d", noop.Version(), noop.Len())
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name  string
		op    Operation[string]
		count int
		ok    bool
	}{
		{"insert at count", NewInsert(2, "x"), 2, true},
		{"insert past count", NewInsert(3, "x"), 2, false},
		{"insert negative", NewInsert(-2, "x"), 2, false},
		{"append to empty", NewAppend("x"), 0, true},
		{"remove last", NewRemove[string](1), 2, true},
		{"remove at count", NewRemove[string](2), 2, false},
		{"modify in empty", NewModify(0, "x"), 0, false},
		{"move valid", NewMove[string](0, 1), 2, true},
		{"move to count", NewMove[string](0, 2), 2, false},
		{"move in place", NewMove[string](1, 1), 2, false},
		{"clear", NewClear[string](), 0, true},
		{"noop", Noop[string](), 3, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.op.Validate(tt.count)
			if (err == nil) != tt.ok {
				t.Fatalf("Validate(%d) = %v, want ok=%v", tt.count, err, tt.ok)
			}
			if err != nil && tt.op.Kind != KindNoop && !errors.Is(err, ErrIndexOutOfRange) {
				t.Errorf("error %v does not wrap ErrIndexOutOfRange", err)
			}
		})
	}
}

func TestKindNames(t *testing.T) {
	for _, k := range []Kind{KindNoop, KindInsert, KindRemove, KindModify, KindMove, KindClear} {
		got, ok := ParseKind(k.String())
		if !ok || got != k {
			t.Errorf("ParseKind(%q) = %v, %v", k.String(), got, ok)
		}
	}
	if _, ok := ParseKind("reset"); ok {
		t.Error("reset is not an operation kind")
	}
}

func TestClone(t *testing.T) {
	op := NewMove[string](1, 3)
	c := op.Clone()
	c.From = 0
	if op.From != 1 {
		t.Errorf("clone shares state with original")
	}
}
