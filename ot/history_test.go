package ot

import (
	"errors"
	"testing"
)

func TestHistory_AddAndAccess(t *testing.T) {
	h := NewHistory[string](3)
	for i, s := range []string{"a", "b"} {
		if g := h.Add(s); g != i {
			t.Fatalf("Add(%q) = %d, want %d", s, g, i)
		}
	}
	if h.FirstIndex() != 0 || h.LastIndex() != 1 || h.Len() != 2 {
		t.Fatalf("window = [%d, %d] len %d", h.FirstIndex(), h.LastIndex(), h.Len())
	}
	got, err := h.At(1)
	if err != nil || got != "b" {
		t.Errorf("At(1) = %q, %v", got, err)
	}
	if _, err := h.At(2); !errors.Is(err, ErrIndexOutOfRange) {
		t.Errorf("At(2) error = %v, want ErrIndexOutOfRange", err)
	}
}

func TestHistory_Eviction(t *testing.T) {
	h := NewHistory[int](3)
	for i := 0; i < 5; i++ {
		h.Add(i * 10)
	}
	if h.Len() != 3 {
		t.Fatalf("len = %d, want 3", h.Len())
	}
	if h.FirstIndex() != 2 || h.LastIndex() != 4 {
		t.Fatalf("window = [%d, %d], want [2, 4]", h.FirstIndex(), h.LastIndex())
	}
	for _, g := range []int{0, 1, 5, -1} {
		if h.ValidateIndex(g) {
			t.Errorf("ValidateIndex(%d) = true", g)
		}
		if _, ok := h.TryGet(g); ok {
			t.Errorf("TryGet(%d) found an entry", g)
		}
	}
	for g := 2; g <= 4; g++ {
		v, ok := h.TryGet(g)
		if !ok || v != g*10 {
			t.Errorf("TryGet(%d) = %d, %v; want %d", g, v, ok, g*10)
		}
	}
}

func TestHistory_ClearKeepsNumbering(t *testing.T) {
	h := NewHistory[string](4)
	h.Add("a")
	h.Add("b")
	h.Clear()
	if h.Len() != 0 || h.ValidateIndex(1) {
		t.Fatalf("clear left entries behind")
	}
	if g := h.Add("c"); g != 2 {
		t.Errorf("Add after Clear = %d, want 2", g)
	}
	if h.FirstIndex() != 2 {
		t.Errorf("FirstIndex = %d, want 2", h.FirstIndex())
	}
}

func TestHistory_Reset(t *testing.T) {
	h := NewHistory[string](2)
	h.Add("a")
	h.Add("b")
	h.Add("c")
	h.Reset(100)
	if h.Len() != 0 || h.FirstIndex() != 100 || h.LastIndex() != 99 {
		t.Fatalf("after reset: len=%d window=[%d, %d]", h.Len(), h.FirstIndex(), h.LastIndex())
	}
	if g := h.Add("d"); g != 100 {
		t.Errorf("Add after Reset = %d, want 100", g)
	}
	if v, _ := h.At(100); v != "d" {
		t.Errorf("At(100) = %q, want d", v)
	}
}

func TestHistory_InvalidCapacity(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic for zero capacity")
		}
	}()
	NewHistory[int](0)
}
