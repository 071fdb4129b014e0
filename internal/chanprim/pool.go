package chanprim

import "github.com/orizon-lang/dongvm/internal/pool"

// Channels is the pool of Channel objects, giving channel refs the same
// handle/refcount discipline as every other heap kind (internal/heap).
// Kept in this package rather than internal/heap so chanprim has no
// dependency cycle back onto heap; the VM wires both together.
type Channels struct {
	pool *pool.Pool[*Channel]
}

// NewChannels creates an empty channel pool.
func NewChannels() *Channels {
	return &Channels{pool: pool.New[*Channel](func(c **Channel) {
		// Releasing the last handle closes the channel, waking every
		// blocked reader and writer with ErrClosed.
		if *c != nil {
			(*c).Close()
		}
		*c = nil
	})}
}

// Allocate creates a channel with the given fixed capacity and returns
// its handle. Channels are always SHARED: every structural operation
// already serializes through the Channel's own mutex, and the pool slot
// mutex additionally guards reading the *Channel pointer out of its slot
// (Get).
func (c *Channels) Allocate(bufsize int) pool.Handle {
	h := c.pool.Allocate(true)
	*c.pool.At(h) = New(bufsize)
	return h
}

// Reference increments handle's refcount.
func (c *Channels) Reference(h pool.Handle) pool.Handle { return c.pool.Reference(h) }

// Release decrements handle's refcount, closing the channel at zero.
func (c *Channels) Release(h pool.Handle) { c.pool.Release(h) }

// Get returns the underlying Channel for handle.
func (c *Channels) Get(h pool.Handle) *Channel {
	c.pool.Lock(h)
	defer c.pool.Unlock(h)
	return *c.pool.At(h)
}
