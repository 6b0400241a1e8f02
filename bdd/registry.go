package bdd

import (
	"errors"
	"fmt"

	"github.com/benbjohnson/zen"
	"github.com/benbjohnson/zen/internal/unionfind"
)

// ErrAllocated is returned when unifying keys after one of them has been
// assigned variables.
var ErrAllocated = errors.New("variables already allocated")

// Key identifies a range of diagram variables: a logical path and a type.
type Key struct {
	Path string
	Type string
}

// NewKey returns the key for path holding values of type t.
func NewKey(path string, t *zen.Type) Key {
	return Key{Path: path, Type: t.String()}
}

// String returns the key as "path:type".
func (k Key) String() string { return k.Path + ":" + k.Type }

// Registry maps keys to diagram variable ranges. Unified keys are allocated
// together with their bits interleaved, so relations between them stay
// compact.
type Registry struct {
	sets   *unionfind.UnionFind[Key]
	widths map[Key]uint
	vars   map[Key][]int
	next   int

	// Called with the total number of variables before each allocation.
	// An error leaves the registry unchanged.
	grow func(n int) error
}

// NewRegistry returns a new instance of Registry.
func NewRegistry(grow func(n int) error) *Registry {
	return &Registry{
		sets:   unionfind.New[Key](),
		widths: make(map[Key]uint),
		vars:   make(map[Key][]int),
		grow:   grow,
	}
}

// Len returns the number of allocated variables.
func (r *Registry) Len() int { return r.next }

// Declare registers key with the given bit width. Declaring a key twice is a
// no-op.
func (r *Registry) Declare(key Key, width uint) error {
	if w, ok := r.widths[key]; ok {
		if w != width {
			return fmt.Errorf("%w: %s declared with %d bits, got %d", zen.ErrType, key, w, width)
		}
		return nil
	}
	r.widths[key] = width
	r.sets.Add(key)
	return nil
}

// Unify requests that x and y be allocated together. Both keys must be
// declared with equal widths and must not have been allocated yet.
func (r *Registry) Unify(x, y Key) error {
	if same, err := r.sets.Same(x, y); err != nil {
		return err
	} else if same {
		return nil
	}
	if r.widths[x] != r.widths[y] {
		return fmt.Errorf("%w: cannot unify %s and %s with different widths", zen.ErrType, x, y)
	}
	for _, k := range []Key{x, y} {
		if _, ok := r.vars[k]; ok {
			return fmt.Errorf("%w: %s", ErrAllocated, k)
		}
	}
	return r.sets.Union(x, y)
}

// Vars returns the variable indices assigned to key, allocating them and
// those of every unified key on first use.
func (r *Registry) Vars(key Key) ([]int, error) {
	if vars, ok := r.vars[key]; ok {
		return vars, nil
	}

	members, err := r.sets.Members(key)
	if err != nil {
		return nil, err
	}
	width := r.widths[key]

	if r.grow != nil {
		if err := r.grow(r.next + int(width)*len(members)); err != nil {
			return nil, err
		}
	}

	// Bit i of every member is placed next to bit i of the others.
	for _, m := range members {
		r.vars[m] = make([]int, width)
	}
	for i := uint(0); i < width; i++ {
		for _, m := range members {
			r.vars[m][i] = r.next
			r.next++
		}
	}
	return r.vars[key], nil
}
