// Package symtab implements the nested lexical scope chain used by the
// interpreter to bind identifiers to heap handles: a BST-keyed symbol
// table per Scope, chained to a parent Scope, with a refcounted
// lifetime and a global registry that lets a Scope whose refcount drops
// to zero while still reachable (e.g. a child scope still running in
// another goroutine) be garbage collected later.
//
// Grounded on original_source/symboltable.c and the teacher's
// internal/resolver/symbol_table.go (nested-scope lookup walking up a
// parent chain).
package symtab

import (
	"sync"

	"github.com/orizon-lang/dongvm/internal/value"
)

// Identifier names a symbol within a scope. The original source keys
// symbols by an integer identifier assigned by an earlier compilation
// stage; this runtime only ever compares and sorts identifiers, so it
// stays an opaque integer here too.
type Identifier int64

// symbol is one BST node binding an identifier to the Value its SYMDEF
// or SYMCLONE opcode installed (a scalar/array/hash/channel/function
// reference, or a plain INT/FLOAT/STRING). Release, if non-nil, runs
// exactly once when the symbol is removed (by Undefine, by a Scope's
// own teardown, or by the recursive reap of a scope whose refcount hits
// zero) — the caller supplies it at Define time to release whatever
// heap handle the bound Value references, keeping this package
// decoupled from internal/heap and internal/pool.
type symbol struct {
	id          Identifier
	val         value.Value
	left, right *symbol
	release     func()
}

// Scope is one lexical scope: a BST of locally defined symbols plus a
// link to the enclosing scope. Scopes are refcounted because a CALL
// opens a new scope that may outlive its caller's own scope entry if a
// goroutine keeps a reference to it (channel-borne closures, concurrent
// CALL issued from a spawned Context).
type Scope struct {
	mu       sync.Mutex
	root     *symbol
	parent   *Scope
	refs     int
	torndown bool
}

var (
	registryMu sync.Mutex
	registry   []*Scope
)

// NewScope creates a fresh scope chained to parent (nil for a top-level
// "global" scope) and registers it globally for later GarbageCollect.
// If parent is non-nil its refcount is incremented, mirroring
// symboltable_init.
func NewScope(parent *Scope) *Scope {
	if parent != nil {
		parent.mu.Lock()
		parent.refs++
		parent.mu.Unlock()
	}
	s := &Scope{parent: parent, refs: 1}

	registryMu.Lock()
	registry = append(registry, s)
	registryMu.Unlock()
	return s
}

// Reference increments s's refcount and returns s, so callers can write
// scope = symtab.Reference(scope) at call sites that stash a second
// owner of the same scope.
func Reference(s *Scope) *Scope {
	s.mu.Lock()
	s.refs++
	s.mu.Unlock()
	return s
}

// Close decrements s's refcount. At zero, every locally defined symbol
// is released, s is dropped from the global registry, and the parent's
// refcount is decremented in turn — but the parent is deliberately left
// to the next GarbageCollect sweep to reap, even if this decrement also
// brings it to zero. A refcount that does not yet reach zero leaves s
// registered for GarbageCollect to reclaim later, matching
// symboltable_destroy's two return paths; see GarbageCollect for why the
// parent isn't torn down inline here.
func (s *Scope) Close() {
	s.mu.Lock()
	s.refs--
	dead := s.refs == 0
	var root *symbol
	var parent *Scope
	if dead {
		root = s.root
		s.root = nil
		s.torndown = true
		parent = s.parent
	}
	s.mu.Unlock()

	if !dead {
		return
	}
	reapSymbol(root)
	unregister(s)
	if parent != nil {
		parent.mu.Lock()
		parent.refs--
		parent.mu.Unlock()
	}
}

// GarbageCollect sweeps the global registry for scopes whose refcount
// has already dropped to zero. This situation arises when a scope ends
// while it is still referenced elsewhere (e.g. by a child scope running
// on a different goroutine): when the child scope's own Close runs, it
// decrements the parent's refcount without reaping it (Close never
// cascades a full teardown onto its parent), so a parent that reaches
// zero purely from that decrement sits in the registry, refcount zero
// but otherwise intact, until a sweep like this one reaps it. Loops
// until a full pass reaps nothing, so a chain of several scopes that all
// bottom out together is fully collected in one call.
func GarbageCollect() {
	for {
		reaped := false
		registryMu.Lock()
		var dead []*Scope
		var alive []*Scope
		for _, s := range registry {
			s.mu.Lock()
			isDead := s.refs == 0 && !s.torndown
			s.mu.Unlock()
			if isDead {
				dead = append(dead, s)
			} else {
				alive = append(alive, s)
			}
		}
		registry = alive
		registryMu.Unlock()

		for _, s := range dead {
			reaped = true
			s.mu.Lock()
			root := s.root
			s.root = nil
			s.torndown = true
			parent := s.parent
			s.mu.Unlock()

			reapSymbol(root)
			if parent != nil {
				parent.mu.Lock()
				parent.refs--
				parent.mu.Unlock()
			}
		}

		if !reaped {
			return
		}
	}
}

func unregister(s *Scope) {
	registryMu.Lock()
	defer registryMu.Unlock()
	for i, r := range registry {
		if r == s {
			registry = append(registry[:i], registry[i+1:]...)
			return
		}
	}
}

// Define binds id to val in s's local scope, calling release when the
// binding is eventually torn down. Returns false if id is already
// defined locally (Define never searches parent scopes), per
// symbol_define's "already defined" failure case.
func (s *Scope) Define(id Identifier, val value.Value, release func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	node := &symbol{id: id, val: val, release: release}
	if s.root == nil {
		s.root = node
		return true
	}
	parent := s.root
	for {
		switch {
		case id < parent.id:
			if parent.left == nil {
				parent.left = node
				return true
			}
			parent = parent.left
		case id > parent.id:
			if parent.right == nil {
				parent.right = node
				return true
			}
			parent = parent.right
		default:
			return false
		}
	}
}

// Lookup searches s, then s's parent, then its grandparent, and so on,
// returning the bound Value and true, or (Undef, false) if id is
// unbound anywhere in the chain — symbol_lookup's walk-up-the-chain
// behavior.
func Lookup(s *Scope, id Identifier) (value.Value, bool) {
	for scope := s; scope != nil; scope = scope.parent {
		scope.mu.Lock()
		n, ok := find(scope.root, id)
		var v value.Value
		if ok {
			v = n.val
		}
		scope.mu.Unlock()
		if ok {
			return v, true
		}
	}
	return value.Undef(), false
}

func find(n *symbol, id Identifier) (*symbol, bool) {
	for n != nil {
		switch {
		case id < n.id:
			n = n.left
		case id > n.id:
			n = n.right
		default:
			return n, true
		}
	}
	return nil, false
}

// Undefine removes id from s's local scope only (it does not search
// parent scopes, matching symbol_undefine). Returns true if a binding
// was removed, false if none existed locally — either way the scope is
// left in a consistent state. BST deletion with two children picks a
// predecessor or successor to splice in using an unbiased coin flip,
// exactly as symbol_undefine's `rand() & 0x4000` branch does (the
// specific bit tested doesn't bias the outcome, since rand()'s bit 14 is
// as uniform as any other).
func (s *Scope) Undefine(id Identifier) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	target, parent, fromLeft := findWithParent(s.root, id)
	if target == nil {
		return false
	}

	switch {
	case target.left != nil && target.right != nil:
		var replacement *symbol
		if randBit() {
			// Predecessor: rightmost node of the left subtree.
			replacement = target.left
			if replacement.right == nil {
				// Immediate child: its own left subtree just moves up with it.
				replacement.right = target.right
			} else {
				replParent := replacement
				for replParent.right.right != nil {
					replParent = replParent.right
				}
				replacement = replParent.right
				replParent.right = replacement.left
				replacement.left = target.left
				replacement.right = target.right
			}
		} else {
			// Successor: leftmost node of the right subtree.
			replacement = target.right
			if replacement.left == nil {
				replacement.left = target.left
			} else {
				replParent := replacement
				for replParent.left.left != nil {
					replParent = replParent.left
				}
				replacement = replParent.left
				replParent.left = replacement.right
				replacement.left = target.left
				replacement.right = target.right
			}
		}
		spliceIn(s, parent, fromLeft, replacement)

	case target.left != nil:
		spliceIn(s, parent, fromLeft, target.left)
	case target.right != nil:
		spliceIn(s, parent, fromLeft, target.right)
	default:
		spliceIn(s, parent, fromLeft, nil)
	}

	if target.release != nil {
		target.release()
	}
	return true
}

func spliceIn(s *Scope, parent *symbol, fromLeft bool, child *symbol) {
	switch {
	case parent == nil:
		s.root = child
	case fromLeft:
		parent.left = child
	default:
		parent.right = child
	}
}

func findWithParent(root *symbol, id Identifier) (target, parent *symbol, fromLeft bool) {
	n := root
	for n != nil {
		switch {
		case id < n.id:
			parent, fromLeft = n, true
			n = n.left
		case id > n.id:
			parent, fromLeft = n, false
			n = n.right
		default:
			return n, parent, fromLeft
		}
	}
	return nil, nil, false
}

func reapSymbol(n *symbol) {
	if n == nil {
		return
	}
	reapSymbol(n.left)
	reapSymbol(n.right)
	if n.release != nil {
		n.release()
	}
}
