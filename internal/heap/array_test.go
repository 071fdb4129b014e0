package heap

import (
	"testing"

	"github.com/orizon-lang/dongvm/internal/value"
)

func TestArrayPushPop(t *testing.T) {
	a := NewArrays()
	h := a.Allocate(false)
	a.Push(h, value.NewInt(1))
	a.Push(h, value.NewInt(2))
	a.Push(h, value.NewInt(3))

	if got := a.Len(h); got != 3 {
		t.Fatalf("len = %d, want 3", got)
	}
	if got := a.Pop(h); got.Int() != 3 {
		t.Fatalf("pop = %d, want 3", got.Int())
	}
	if got := a.Len(h); got != 2 {
		t.Fatalf("len after pop = %d, want 2", got)
	}
}

func TestArrayUnshiftShift(t *testing.T) {
	a := NewArrays()
	h := a.Allocate(false)
	a.Push(h, value.NewInt(1))
	a.Unshift(h, value.NewInt(0))

	if got := a.ItemAt(h, 0); got.Int() != 0 {
		t.Fatalf("item 0 = %d, want 0", got.Int())
	}
	if got := a.Shift(h); got.Int() != 0 {
		t.Fatalf("shift = %d, want 0", got.Int())
	}
	if got := a.Len(h); got != 1 {
		t.Fatalf("len after shift = %d, want 1", got)
	}
}

func TestArrayPopEmptyPanics(t *testing.T) {
	a := NewArrays()
	h := a.Allocate(false)
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic popping empty array")
		}
	}()
	a.Pop(h)
}

func TestArraySplice(t *testing.T) {
	a := NewArrays()
	h := a.Allocate(false)
	for i := 0; i < 5; i++ {
		a.Push(h, value.NewInt(int64(i)))
	}
	spliced := a.Splice(h, 1, 3)
	if got := a.Len(spliced); got != 3 {
		t.Fatalf("spliced len = %d, want 3", got)
	}
	for i := 0; i < 3; i++ {
		if got := a.ItemAt(spliced, i); got.Int() != int64(i+1) {
			t.Fatalf("spliced[%d] = %d, want %d", i, got.Int(), i+1)
		}
	}
	// Original array is unaffected by splice (it copies out).
	if got := a.Len(h); got != 5 {
		t.Fatalf("original len after splice = %d, want 5", got)
	}
}
