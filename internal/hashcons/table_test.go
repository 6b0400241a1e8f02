package hashcons_test

import (
	"runtime"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/benbjohnson/zen/internal/hashcons"
)

type node struct {
	id   int
	name string
}

func TestTable_GetOrAdd(t *testing.T) {
	t.Run("New", func(t *testing.T) {
		tbl := hashcons.New[node]()
		var inits int
		isNew, n := tbl.GetOrAdd("a", &node{name: "a"}, func(n *node) { inits++; n.id = 1 })
		require.True(t, isNew)
		require.Equal(t, 1, n.id)
		require.Equal(t, 1, inits)
		require.Equal(t, 1, tbl.Len())
	})

	t.Run("Existing", func(t *testing.T) {
		tbl := hashcons.New[node]()
		_, a := tbl.GetOrAdd("a", &node{name: "a"}, func(n *node) { n.id = 1 })
		isNew, b := tbl.GetOrAdd("a", &node{name: "other"}, func(n *node) { n.id = 2 })
		require.False(t, isNew)
		require.Same(t, a, b)
		require.Equal(t, 1, b.id)
		runtime.KeepAlive(a)
	})

	t.Run("DistinctKeys", func(t *testing.T) {
		tbl := hashcons.New[node]()
		nodes := make([]*node, 0, 100)
		for i := 0; i < 100; i++ {
			_, n := tbl.GetOrAdd(strconv.Itoa(i), &node{id: i}, nil)
			nodes = append(nodes, n)
		}
		require.Equal(t, 100, tbl.Len())
		for i, n := range nodes {
			require.Same(t, n, tbl.Lookup(strconv.Itoa(i)))
		}
	})
}

func TestTable_Compact(t *testing.T) {
	tbl := hashcons.New[node]()
	keep := fill(tbl)

	runtime.GC()
	runtime.GC()

	removed := tbl.Compact()
	require.Equal(t, 10, removed)
	require.Equal(t, 1, tbl.Len())
	require.Equal(t, uint64(1), tbl.Generation())

	// Live entries survive and are still canonical.
	isNew, n := tbl.GetOrAdd("keep", &node{}, nil)
	require.False(t, isNew)
	require.Same(t, keep, n)

	// Collected keys are rebuilt fresh.
	isNew, _ = tbl.GetOrAdd("drop0", &node{}, nil)
	require.True(t, isNew)
	runtime.KeepAlive(keep)
}

//go:noinline
func fill(tbl *hashcons.Table[node]) *node {
	_, keep := tbl.GetOrAdd("keep", &node{name: "keep"}, nil)
	for i := 0; i < 10; i++ {
		tbl.GetOrAdd("drop"+strconv.Itoa(i), &node{id: i, name: "x"}, nil)
	}
	return keep
}
