//go:build unix

package pool

import "golang.org/x/sys/unix"

// hostPageSize reports the OS page size, used to round the pool's
// initial chunk stride to a page boundary so pool growth plays nicely
// with the host's virtual memory manager. Mirrors the page-size-aware
// sizing used by the teacher's internal/runtime/kernel package.
func hostPageSize() int {
	if sz := unix.Getpagesize(); sz > 0 {
		return sz
	}
	return 4096
}
