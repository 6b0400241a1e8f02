// Package unionfind implements a disjoint-set forest that remembers the
// order in which elements were added.
package unionfind

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when querying an element that was never added.
var ErrNotFound = errors.New("unionfind: element not found")

// UnionFind partitions registered elements into disjoint sets.
type UnionFind[T comparable] struct {
	index  map[T]int
	elems  []T
	parent []int
	rank   []int
}

// New returns an empty partition.
func New[T comparable]() *UnionFind[T] {
	return &UnionFind[T]{index: make(map[T]int)}
}

// Add registers x as a singleton set. Adding an existing element is a no-op.
func (u *UnionFind[T]) Add(x T) {
	if _, ok := u.index[x]; ok {
		return
	}
	i := len(u.elems)
	u.index[x] = i
	u.elems = append(u.elems, x)
	u.parent = append(u.parent, i)
	u.rank = append(u.rank, 0)
}

// Contains reports whether x has been added.
func (u *UnionFind[T]) Contains(x T) bool {
	_, ok := u.index[x]
	return ok
}

// Len returns the number of registered elements.
func (u *UnionFind[T]) Len() int { return len(u.elems) }

// Find returns the representative of the set containing x.
func (u *UnionFind[T]) Find(x T) (T, error) {
	i, ok := u.index[x]
	if !ok {
		var zero T
		return zero, fmt.Errorf("%w: %v", ErrNotFound, x)
	}
	return u.elems[u.root(i)], nil
}

func (u *UnionFind[T]) root(i int) int {
	for u.parent[i] != i {
		u.parent[i] = u.parent[u.parent[i]]
		i = u.parent[i]
	}
	return i
}

// Union merges the sets containing x and y.
func (u *UnionFind[T]) Union(x, y T) error {
	i, ok := u.index[x]
	if !ok {
		return fmt.Errorf("%w: %v", ErrNotFound, x)
	}
	j, ok := u.index[y]
	if !ok {
		return fmt.Errorf("%w: %v", ErrNotFound, y)
	}

	ri, rj := u.root(i), u.root(j)
	if ri == rj {
		return nil
	}
	switch {
	case u.rank[ri] < u.rank[rj]:
		u.parent[ri] = rj
	case u.rank[ri] > u.rank[rj]:
		u.parent[rj] = ri
	default:
		u.parent[rj] = ri
		u.rank[ri]++
	}
	return nil
}

// Same reports whether x and y belong to the same set.
func (u *UnionFind[T]) Same(x, y T) (bool, error) {
	a, err := u.Find(x)
	if err != nil {
		return false, err
	}
	b, err := u.Find(y)
	if err != nil {
		return false, err
	}
	return a == b, nil
}

// GetDisjointSets returns every set with its members in insertion order.
// Sets are ordered by their earliest inserted member.
func (u *UnionFind[T]) GetDisjointSets() [][]T {
	var sets [][]T
	pos := make(map[int]int)
	for i, x := range u.elems {
		r := u.root(i)
		j, ok := pos[r]
		if !ok {
			j = len(sets)
			pos[r] = j
			sets = append(sets, nil)
		}
		sets[j] = append(sets[j], x)
	}
	return sets
}

// Members returns the set containing x in insertion order.
func (u *UnionFind[T]) Members(x T) ([]T, error) {
	i, ok := u.index[x]
	if !ok {
		return nil, fmt.Errorf("%w: %v", ErrNotFound, x)
	}
	r := u.root(i)
	var a []T
	for j, y := range u.elems {
		if u.root(j) == r {
			a = append(a, y)
		}
	}
	return a, nil
}
