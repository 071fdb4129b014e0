package heap

import "testing"

func TestFunctionAllocateEntry(t *testing.T) {
	f := NewFunctions()
	h := f.Allocate(1024)
	if got := f.Entry(h); got != 1024 {
		t.Fatalf("entry = %d, want 1024", got)
	}
}

func TestFunctionReferenceRelease(t *testing.T) {
	f := NewFunctions()
	h := f.Allocate(256)
	f.Reference(h)
	f.Release(h)
	if got := f.Entry(h); got != 256 {
		t.Fatalf("entry after one release = %d, want 256 (still live)", got)
	}
}
