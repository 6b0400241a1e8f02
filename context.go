package zen

import (
	"go.uber.org/zap"

	"github.com/benbjohnson/zen/internal/cache"
	"github.com/benbjohnson/zen/internal/hashcons"
)

// DefaultCacheSize is the default capacity of per-context memo caches.
const DefaultCacheSize = 1 << 16

// Context owns the hash-cons table that makes expressions canonical.
//
// Expressions from different contexts must never be mixed. A Context is
// meant to be used from one goroutine at a time; Compact may be called
// concurrently with lookups.
type Context struct {
	table   *hashcons.Table[Expr]
	nextID  uint64
	nextVar uint64

	// Memoized CheckBounded results by node identity.
	bounded *cache.Finite[uint64, error]

	logger    *zap.Logger
	cacheSize int
}

// ContextOption configures a Context.
type ContextOption func(*Context)

// WithLogger sets the logger used by the context and the solvers built on it.
func WithLogger(logger *zap.Logger) ContextOption {
	return func(c *Context) { c.logger = logger }
}

// WithCacheSize sets the capacity of memo caches. Zero or less is unbounded.
func WithCacheSize(n int) ContextOption {
	return func(c *Context) { c.cacheSize = n }
}

// NewContext returns a new instance of Context.
func NewContext(opts ...ContextOption) *Context {
	c := &Context{
		table:     hashcons.New[Expr](),
		logger:    zap.NewNop(),
		cacheSize: DefaultCacheSize,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.bounded = cache.New[uint64, error](c.cacheSize)
	return c
}

// Logger returns the context logger.
func (c *Context) Logger() *zap.Logger { return c.logger }

// CacheSize returns the configured memo cache capacity.
func (c *Context) CacheSize() int { return c.cacheSize }

// Len returns the number of interned nodes, including nodes that have been
// reclaimed but not compacted yet.
func (c *Context) Len() int { return c.table.Len() }

// Compact drops interned entries for nodes that are no longer referenced
// and returns how many were dropped. Rebuilding a dropped expression later
// creates a fresh canonical node with a new identity.
func (c *Context) Compact() int {
	n := c.table.Compact()
	c.logger.Debug("compact",
		zap.Int("removed", n),
		zap.Int("live", c.table.Len()),
		zap.Uint64("generation", c.table.Generation()),
	)
	return n
}

// intern returns the canonical node for e.
func (c *Context) intern(e *Expr) *Expr {
	_, node := c.table.GetOrAdd(e.key(), e, func(e *Expr) {
		c.nextID++
		e.id = c.nextID
		e.constant = isConstantNode(e)
	})
	return node
}

// isConstantNode reports whether a freshly built node is a literal. Operands
// are already interned so their flags are final.
func isConstantNode(e *Expr) bool {
	switch e.Op {
	case OpConst, OpNone, OpListEmpty, OpSeqEmpty, OpMapEmpty, OpSetEmpty, OpBagEmpty:
		return true
	case OpObject, OpSome, OpListAppend, OpSeqUnit, OpSeqConcat, OpMapSet, OpSetAdd, OpBagAdd:
		for _, arg := range e.Args {
			if !arg.constant {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// Var returns a fresh symbolic variable of type t. Every call returns a
// distinct variable, even for equal names.
func (c *Context) Var(t *Type, name string) *Expr {
	c.nextVar++
	return c.intern(&Expr{Op: OpVar, Type: t, Name: name, Value: c.nextVar})
}
