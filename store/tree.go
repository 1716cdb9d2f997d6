// Package store is a reference in-memory implementation of the hierarchical
// key-value control namespace the blkif core expects an external transport
// to provide (spec section 1 names the KV transport itself out of scope).
// It exists so the core's Connection/RingInfo/DiskInfo/FeatureIndirect/State
// codecs can be exercised end to end in tests and in the reference cmd
// binaries, without pulling in a real xenstore client.
package store

import (
	"fmt"
	"strings"
	"sync"

	"github.com/armon/go-radix"
	"github.com/xenproject/goblkif/blkif"
)

// Tree is a domid-scoped hierarchical attribute store backed by a radix
// tree, keyed on "<domid>:<path>" so that two domains never collide over
// the same path namespace.
type Tree struct {
	mu   sync.RWMutex
	keys *radix.Tree
}

// New returns an empty Tree.
func New() *Tree {
	return &Tree{keys: radix.New()}
}

func nodeKey(domid int, path string) string {
	return fmt.Sprintf("%d:%s", domid, path)
}

// Write sets one attribute node's value, creating it if absent.
func (t *Tree) Write(domid int, path, value string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.keys.Insert(nodeKey(domid, path), value)
}

// Read returns one attribute node's value.
func (t *Tree) Read(domid int, path string) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	v, ok := t.keys.Get(nodeKey(domid, path))
	if !ok {
		return "", false
	}
	return v.(string), true
}

// ReadDir returns the key=>value map of every node directly under path
// (one path segment below it), the shape every *FromAssoc decoder in the
// blkif package expects.
func (t *Tree) ReadDir(domid int, path string) map[string]string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	prefix := nodeKey(domid, path) + "/"
	out := make(map[string]string)
	t.keys.WalkPrefix(prefix, func(found string, v any) bool {
		rest := strings.TrimPrefix(found, prefix)
		if rest == "" || strings.Contains(rest, "/") {
			return false
		}
		out[rest] = v.(string)
		return false
	})
	return out
}

// Apply writes every tuple produced by blkif.Connection.Emit in one call.
func (t *Tree) Apply(tuples []blkif.Tuple) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, tp := range tuples {
		t.keys.Insert(nodeKey(tp.Domid, tp.Path), tp.Value)
	}
}

// WriteState is the one mutable key in the state sub-contract (spec
// section 3): rewriting "<path>/state" on every lifecycle transition.
func (t *Tree) WriteState(domid int, path string, s blkif.State) {
	t.Write(domid, path+"/state", s.String())
}

// ReadState decodes the "state" attribute under path.
func (t *Tree) ReadState(domid int, path string) (blkif.State, error) {
	v, ok := t.Read(domid, path+"/state")
	if !ok {
		return 0, fmt.Errorf("missing state key")
	}
	return blkif.StateFromString(v)
}
