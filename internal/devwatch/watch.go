// Package devwatch implements a local development loop: watch a
// directory for .dong bytecode files and re-run one through a fresh
// vm.Context whenever it changes, so an author iterating on a program
// doesn't have to re-invoke the CLI by hand after every edit.
//
// Grounded on the teacher's internal/runtime/vfs.FSNotifyWatcher (the
// fsnotify.Watcher wrapped in a goroutine forwarding onto buffered
// channels), generalized from a generic filesystem Event/WatchOp pair
// to this package's narrower "a .dong file changed" domain.
package devwatch

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"github.com/orizon-lang/dongvm/internal/bytecode"
	"github.com/orizon-lang/dongvm/internal/rtlog"
	"github.com/orizon-lang/dongvm/internal/vm"
)

// Extension is the bytecode file suffix this watcher reacts to; any
// other file in a watched directory is ignored.
const Extension = ".dong"

// Watcher watches one or more directories and reloads+runs a .dong
// file each time fsnotify reports it was written or created.
type Watcher struct {
	fsw   *fsnotify.Watcher
	heaps *vm.Heaps
	log   rtlog.Logger
}

// New creates a Watcher backed by a fresh fsnotify.Watcher. heaps is
// shared by every Context the watcher spins up for a reload, so
// channels and other references a running program leaked survive
// across reloads; pass vm.NewHeaps() for an isolated watcher. logger
// may be nil, in which case rtlog.Default() is used.
func New(heaps *vm.Heaps, logger rtlog.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = rtlog.Default()
	}
	return &Watcher{fsw: fsw, heaps: heaps, log: logger}, nil
}

// Add registers a directory (or a single file) for watching.
func (w *Watcher) Add(path string) error {
	return w.fsw.Add(path)
}

// Close stops the underlying fsnotify.Watcher.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}

// Run blocks, reloading and running the changed .dong file on every
// qualifying fsnotify event, until ctx is canceled or the watcher's
// event channel closes. Each run's Trap/error, if any, is logged but
// does not stop the watch loop — a single bad edit shouldn't require
// restarting the watcher.
func (w *Watcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if !qualifies(ev) {
				continue
			}
			w.log.Infof("reloading %s", ev.Name)
			if err := w.reload(ev.Name); err != nil {
				w.log.Errorf("run %s: %v", ev.Name, err)
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.log.Warnf("watch error: %v", err)
		}
	}
}

// qualifies reports whether ev names a write or create of a .dong file
// (renames and removes are not reloaded: the file may no longer exist,
// or may still be mid-write on the other end of the rename).
func qualifies(ev fsnotify.Event) bool {
	if !strings.EqualFold(filepath.Ext(ev.Name), Extension) {
		return false
	}
	return ev.Op&(fsnotify.Write|fsnotify.Create) != 0
}

func (w *Watcher) reload(path string) error {
	prog, err := bytecode.DecodeFile(path)
	if err != nil {
		return err
	}
	ctx := vm.NewContext(prog, w.heaps, nil, vm.WithLogger(w.log))
	return ctx.Run()
}
