package heap

import (
	"testing"

	"github.com/orizon-lang/dongvm/internal/value"
)

func TestScalarAllocateIsUndef(t *testing.T) {
	s := NewScalars()
	h := s.Allocate(false)
	if got := s.Get(h); got.Tag != value.Undef {
		t.Fatalf("fresh scalar tag = %v, want Undef", got.Tag)
	}
}

func TestScalarSetGetRoundTrip(t *testing.T) {
	s := NewScalars()
	h := s.Allocate(false)
	s.Set(h, value.NewInt(42))
	got := s.Get(h)
	if got.Tag != value.Int || got.Int() != 42 {
		t.Fatalf("got %v, want INT 42", got)
	}
}

func TestScalarReferenceReleaseRefcount(t *testing.T) {
	s := NewScalars()
	h := s.Allocate(false)
	s.Reference(h)
	if got := s.Refcount(h); got != 2 {
		t.Fatalf("refcount = %d, want 2", got)
	}
	s.Release(h)
	if !s.InUse(h) {
		t.Fatal("scalar freed too early")
	}
	s.Release(h)
	if s.InUse(h) {
		t.Fatal("scalar should be freed now")
	}
}

func TestScalarSharedConcurrentSet(t *testing.T) {
	s := NewScalars()
	h := s.Allocate(true)
	done := make(chan struct{})
	for i := 0; i < 50; i++ {
		go func(n int) {
			s.Set(h, value.NewInt(int64(n)))
			done <- struct{}{}
		}(i)
	}
	for i := 0; i < 50; i++ {
		<-done
	}
	got := s.Get(h)
	if got.Tag != value.Int {
		t.Fatalf("got tag %v, want Int", got.Tag)
	}
}
