package pool

import (
	"sync"
	"testing"
)

func TestAllocateReleaseRoundTrip(t *testing.T) {
	destroyed := 0
	p := New[int](func(v *int) { destroyed++ })

	h := p.Allocate(false)
	if h == 0 {
		t.Fatal("allocate returned 0 handle")
	}
	if got := p.Refcount(h); got != 1 {
		t.Fatalf("refcount = %d, want 1", got)
	}
	*p.At(h) = 42
	if *p.At(h) != 42 {
		t.Fatalf("value = %d, want 42", *p.At(h))
	}

	p.Release(h)
	if p.InUse(h) {
		t.Fatal("handle still in use after release to zero")
	}
	if destroyed != 1 {
		t.Fatalf("destroy called %d times, want 1", destroyed)
	}
}

func TestReferenceIncrementsRefcount(t *testing.T) {
	p := New[int](nil)
	h := p.Allocate(false)
	p.Reference(h)
	if got := p.Refcount(h); got != 2 {
		t.Fatalf("refcount = %d, want 2", got)
	}
	p.Release(h)
	if !p.InUse(h) {
		t.Fatal("handle freed too early")
	}
	p.Release(h)
	if p.InUse(h) {
		t.Fatal("handle should be free now")
	}
}

func TestHandleZeroNeverValid(t *testing.T) {
	p := New[int](nil)
	if p.InUse(0) {
		t.Fatal("handle 0 must never be in use")
	}
}

func TestDoubleReleasePanics(t *testing.T) {
	p := New[int](nil)
	h := p.Allocate(false)
	p.Release(h)
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on double release")
		}
	}()
	p.Release(h)
}

func TestGrowthReusesFreedSlots(t *testing.T) {
	p := New[int](nil)
	var handles []Handle
	for i := 0; i < initialSize+10; i++ {
		h := p.Allocate(false)
		if h == 0 {
			t.Fatalf("allocate %d failed", i)
		}
		handles = append(handles, h)
	}
	if p.Count() != initialSize+10 {
		t.Fatalf("count = %d, want %d", p.Count(), initialSize+10)
	}
	for _, h := range handles {
		p.Release(h)
	}
	if p.Count() != 0 {
		t.Fatalf("count = %d, want 0", p.Count())
	}
}

func TestSharedSlotLockSerializesContent(t *testing.T) {
	p := New[int](nil)
	h := p.Allocate(true)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.Lock(h)
			v := *p.At(h)
			*p.At(h) = v + 1
			p.Unlock(h)
		}()
	}
	wg.Wait()
	if got := *p.At(h); got != 100 {
		t.Fatalf("counter = %d, want 100", got)
	}
}

func TestNonSharedUnlockIsNoop(t *testing.T) {
	p := New[int](nil)
	h := p.Allocate(false)
	// Must not block or panic: non-shared slots have no mutex.
	p.Lock(h)
	p.Unlock(h)
}

func TestConcurrentAllocateRelease(t *testing.T) {
	p := New[int](nil)
	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h := p.Allocate(false)
			if h == 0 {
				t.Error("allocate returned 0")
				return
			}
			p.Release(h)
		}()
	}
	wg.Wait()
	if p.Count() != 0 {
		t.Fatalf("count = %d, want 0", p.Count())
	}
}
