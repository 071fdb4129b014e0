//go:build !unix

package pool

// hostPageSize falls back to the common 4KB page size on non-unix hosts,
// matching x/sys/unix's own per-OS fallback pattern.
func hostPageSize() int {
	return 4096
}
