package chanprim

import (
	"testing"
	"time"

	"github.com/orizon-lang/dongvm/internal/value"
)

func TestWriteReadRoundTrip(t *testing.T) {
	c := New(4)
	if err := c.Write(value.NewInt(7)); err != nil {
		t.Fatalf("write error: %v", err)
	}
	got, err := c.Read()
	if err != nil {
		t.Fatalf("read error: %v", err)
	}
	if got.Int() != 7 {
		t.Fatalf("got %d, want 7", got.Int())
	}
}

func TestReadBlocksUntilWrite(t *testing.T) {
	c := New(1)
	done := make(chan value.Value)
	go func() {
		v, err := c.Read()
		if err != nil {
			t.Errorf("read error: %v", err)
		}
		done <- v
	}()

	select {
	case <-done:
		t.Fatal("read returned before any write")
	case <-time.After(20 * time.Millisecond):
	}

	if err := c.Write(value.NewInt(99)); err != nil {
		t.Fatalf("write error: %v", err)
	}

	select {
	case v := <-done:
		if v.Int() != 99 {
			t.Fatalf("got %d, want 99", v.Int())
		}
	case <-time.After(time.Second):
		t.Fatal("read never unblocked after write")
	}
}

func TestWriteBlocksWhenFull(t *testing.T) {
	c := New(1)
	if err := c.Write(value.NewInt(1)); err != nil {
		t.Fatalf("write error: %v", err)
	}

	unblocked := make(chan struct{})
	go func() {
		if err := c.Write(value.NewInt(2)); err != nil {
			t.Errorf("write error: %v", err)
		}
		close(unblocked)
	}()

	select {
	case <-unblocked:
		t.Fatal("write to full channel returned before space freed")
	case <-time.After(20 * time.Millisecond):
	}

	if _, err := c.Read(); err != nil {
		t.Fatalf("read error: %v", err)
	}

	select {
	case <-unblocked:
	case <-time.After(time.Second):
		t.Fatal("write never unblocked after read freed space")
	}
}

func TestTryReadDoesNotBlock(t *testing.T) {
	c := New(2)
	if _, ok := c.TryRead(); ok {
		t.Fatal("TryRead on empty channel returned ok=true")
	}
	c.Write(value.NewInt(5))
	v, ok := c.TryRead()
	if !ok || v.Int() != 5 {
		t.Fatalf("TryRead = (%v, %v), want (5, true)", v, ok)
	}
}

func TestGrowIncreasesCapacity(t *testing.T) {
	c := New(2)
	c.Write(value.NewInt(1))
	c.Write(value.NewInt(2))
	if err := c.Grow(4); err != nil {
		t.Fatalf("grow error: %v", err)
	}
	if got := c.Cap(); got != 4 {
		t.Fatalf("cap = %d, want 4", got)
	}
	// Contents survive the resize in order.
	v1, _ := c.Read()
	v2, _ := c.Read()
	if v1.Int() != 1 || v2.Int() != 2 {
		t.Fatalf("contents after grow = %d,%d, want 1,2", v1.Int(), v2.Int())
	}
}

func TestShrinkBlocksUntilRoom(t *testing.T) {
	c := New(4)
	c.Write(value.NewInt(1))
	c.Write(value.NewInt(2))
	c.Write(value.NewInt(3))

	done := make(chan error)
	go func() { done <- c.Shrink(1) }()

	select {
	case <-done:
		t.Fatal("shrink returned before count dropped to target")
	case <-time.After(20 * time.Millisecond):
	}

	c.Read()
	c.Read()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("shrink error: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("shrink never unblocked")
	}
	if got := c.Cap(); got != 1 {
		t.Fatalf("cap after shrink = %d, want 1", got)
	}
}

func TestCloseWakesBlockedReader(t *testing.T) {
	c := New(1)
	errc := make(chan error)
	go func() {
		_, err := c.Read()
		errc <- err
	}()

	time.Sleep(10 * time.Millisecond)
	c.Close()

	select {
	case err := <-errc:
		if err != ErrClosed {
			t.Fatalf("read err = %v, want ErrClosed", err)
		}
	case <-time.After(time.Second):
		t.Fatal("close did not wake blocked reader")
	}
}

func TestCloseDrainsBufferedItemsFirst(t *testing.T) {
	c := New(2)
	c.Write(value.NewInt(1))
	c.Close()

	v, err := c.Read()
	if err != nil {
		t.Fatalf("read of buffered item after close errored: %v", err)
	}
	if v.Int() != 1 {
		t.Fatalf("got %d, want 1", v.Int())
	}

	if _, err := c.Read(); err != ErrClosed {
		t.Fatalf("read of drained closed channel = %v, want ErrClosed", err)
	}
}

func TestWriteAfterCloseErrors(t *testing.T) {
	c := New(2)
	c.Close()
	if err := c.Write(value.NewInt(1)); err != ErrClosed {
		t.Fatalf("write after close = %v, want ErrClosed", err)
	}
}
