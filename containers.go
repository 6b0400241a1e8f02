package zen

import (
	"fmt"
	"strings"
)

// Object returns an object of type t with positional field values.
func (c *Context) Object(t *Type, fields ...*Expr) (*Expr, error) {
	if t.Kind != KindObject {
		return nil, fmt.Errorf("%w: object: not an object type: %s", ErrType, t)
	} else if len(fields) != len(t.Fields) {
		return nil, fmt.Errorf("%w: object %s: expected %d fields, got %d", ErrType, t.Name, len(t.Fields), len(fields))
	}
	for i, f := range fields {
		if f == nil {
			return nil, fmt.Errorf("%w: object %s: missing field %s", ErrType, t.Name, t.Fields[i].Name)
		} else if !f.Type.Equal(t.Fields[i].Type) {
			return nil, fmt.Errorf("%w: object %s: field %s: expected %s, got %s", ErrType, t.Name, t.Fields[i].Name, t.Fields[i].Type, f.Type)
		}
	}
	return c.intern(&Expr{Op: OpObject, Type: t, Args: append([]*Expr(nil), fields...)}), nil
}

// GetField returns the named field of obj.
func (c *Context) GetField(obj *Expr, name string) (*Expr, error) {
	if obj.Type.Kind != KindObject {
		return nil, fmt.Errorf("%w: get field %s: not an object: %s", ErrType, name, obj.Type)
	}
	i, ok := obj.Type.FieldIndex(name)
	if !ok {
		return nil, fmt.Errorf("%w: object %s has no field %s", ErrType, obj.Type.Name, name)
	}
	return c.getField(obj, i), nil
}

func (c *Context) getField(obj *Expr, i int) *Expr {
	switch obj.Op {
	case OpObject:
		return obj.Args[i]
	case OpWithField:
		if obj.Index == i {
			return obj.Args[1]
		}
		return c.getField(obj.Args[0], i)
	case OpIf:
		return c.If(obj.Args[0], c.getField(obj.Args[1], i), c.getField(obj.Args[2], i))
	}
	f := obj.Type.Fields[i]
	return c.intern(&Expr{Op: OpGetField, Type: f.Type, Args: []*Expr{obj}, Name: f.Name, Index: i})
}

// WithField returns a copy of obj with the named field set to value.
func (c *Context) WithField(obj *Expr, name string, value *Expr) (*Expr, error) {
	if obj.Type.Kind != KindObject {
		return nil, fmt.Errorf("%w: with field %s: not an object: %s", ErrType, name, obj.Type)
	}
	i, ok := obj.Type.FieldIndex(name)
	if !ok {
		return nil, fmt.Errorf("%w: object %s has no field %s", ErrType, obj.Type.Name, name)
	} else if ft := obj.Type.Fields[i].Type; !ft.Equal(value.Type) {
		return nil, fmt.Errorf("%w: object %s: field %s: expected %s, got %s", ErrType, obj.Type.Name, name, ft, value.Type)
	}
	return c.withField(obj, i, value), nil
}

func (c *Context) withField(obj *Expr, i int, value *Expr) *Expr {
	switch obj.Op {
	case OpObject:
		args := append([]*Expr(nil), obj.Args...)
		args[i] = value
		return c.intern(&Expr{Op: OpObject, Type: obj.Type, Args: args})
	case OpWithField:
		if obj.Index == i {
			return c.withField(obj.Args[0], i, value)
		}
	}
	if c.getField(obj, i) == value {
		return obj
	}
	f := obj.Type.Fields[i]
	return c.intern(&Expr{Op: OpWithField, Type: obj.Type, Args: []*Expr{obj, value}, Name: f.Name, Index: i})
}

// None returns the empty value of option type t.
func (c *Context) None(t *Type) *Expr {
	assert(t.Kind == KindOption, "none: not an option type: %s", t)
	return c.intern(&Expr{Op: OpNone, Type: t})
}

// Some returns an option holding x.
func (c *Context) Some(x *Expr) *Expr {
	return c.intern(&Expr{Op: OpSome, Type: OptionOf(x.Type), Args: []*Expr{x}})
}

// IsSome returns true if the option holds a value.
func (c *Context) IsSome(x *Expr) *Expr {
	assertKind(x, KindOption, "is-some")

	switch x.Op {
	case OpNone:
		return c.False()
	case OpSome:
		return c.True()
	}
	return c.intern(&Expr{Op: OpIsSome, Type: Bool, Args: []*Expr{x}})
}

// OptionValue returns the value held by x, or the default value of the
// element type when x is empty.
func (c *Context) OptionValue(x *Expr) *Expr {
	assertKind(x, KindOption, "option-value")

	switch x.Op {
	case OpNone:
		return c.Default(x.Type.Elem)
	case OpSome:
		return x.Args[0]
	}
	return c.intern(&Expr{Op: OpOptionValue, Type: x.Type.Elem, Args: []*Expr{x}})
}

// OptionOr returns the value held by x or def when x is empty.
func (c *Context) OptionOr(x, def *Expr) *Expr {
	return c.If(c.IsSome(x), c.OptionValue(x), def)
}

// ListEmpty returns the empty list of type t.
func (c *Context) ListEmpty(t *Type) *Expr {
	assert(t.Kind == KindList, "list-empty: not a list type: %s", t)
	return c.intern(&Expr{Op: OpListEmpty, Type: t})
}

// listLen returns the length of l when it is statically known.
func listLen(l *Expr) (int, bool) {
	switch l.Op {
	case OpListEmpty:
		return 0, true
	case OpListAppend:
		n, ok := listLen(l.Args[0])
		return n + 1, ok
	}
	return 0, false
}

// ListAppend returns l with e appended. Appending to a full list returns
// the list unchanged.
func (c *Context) ListAppend(l, e *Expr) *Expr {
	assertKind(l, KindList, "list-append")
	assert(e.Type.Equal(l.Type.Elem), "list-append: element type mismatch: %s != %s", e.Type, l.Type.Elem)

	if n, ok := listLen(l); ok && n >= l.Type.Cap {
		return l
	}
	return c.intern(&Expr{Op: OpListAppend, Type: l.Type, Args: []*Expr{l, e}})
}

// ListLength returns the number of elements in l as a 16-bit unsigned value.
func (c *Context) ListLength(l *Expr) *Expr {
	assertKind(l, KindList, "list-length")

	if n, ok := listLen(l); ok {
		return c.Uint16(uint16(n))
	}

	switch l.Op {
	case OpListAppend:
		n := c.ListLength(l.Args[0])
		return c.If(c.Lt(n, c.Uint16(uint16(l.Type.Cap))), c.Add(c.Uint16(1), n), n)
	case OpIf:
		return c.If(l.Args[0], c.ListLength(l.Args[1]), c.ListLength(l.Args[2]))
	}
	return c.intern(&Expr{Op: OpListLength, Type: Uint16, Args: []*Expr{l}})
}

// ListAt returns the element at index i of l, or None when i is out of
// range. The index is a 16-bit unsigned value.
func (c *Context) ListAt(l, i *Expr) *Expr {
	assertKind(l, KindList, "list-at")
	assert(i.Type.Equal(Uint16), "list-at: index must be %s, got %s", Uint16, i.Type)

	t := OptionOf(l.Type.Elem)
	switch l.Op {
	case OpListEmpty:
		return c.None(t)
	case OpListAppend:
		n := c.ListLength(l.Args[0])
		hit := c.And(c.Lt(n, c.Uint16(uint16(l.Type.Cap))), c.Eq(i, n))
		return c.If(hit, c.Some(l.Args[1]), c.ListAt(l.Args[0], i))
	case OpIf:
		return c.If(l.Args[0], c.ListAt(l.Args[1], i), c.ListAt(l.Args[2], i))
	}
	return c.intern(&Expr{Op: OpListAt, Type: t, Args: []*Expr{l, i}})
}

// SeqEmpty returns the empty sequence or string of type t.
func (c *Context) SeqEmpty(t *Type) *Expr {
	assert(t.IsSequence(), "seq-empty: not a sequence type: %s", t)
	if t.Kind == KindString {
		return c.str("")
	}
	return c.intern(&Expr{Op: OpSeqEmpty, Type: t})
}

// SeqUnit returns a sequence of type t holding the single element x.
func (c *Context) SeqUnit(t *Type, x *Expr) *Expr {
	assert(t.IsSequence(), "seq-unit: not a sequence type: %s", t)
	assert(x.Type.Equal(t.SeqElem()), "seq-unit: element type mismatch: %s != %s", x.Type, t.SeqElem())

	if t.Kind == KindString && x.Op == OpConst {
		return c.str(string(rune(x.Value)))
	}
	return c.intern(&Expr{Op: OpSeqUnit, Type: t, Args: []*Expr{x}})
}

// seqElems returns the elements of a constant sequence or string.
func (c *Context) seqElems(s *Expr) []*Expr {
	if s.Op == OpConst {
		var a []*Expr
		for _, r := range s.Str {
			a = append(a, c.char(r))
		}
		return a
	}

	var a []*Expr
	for {
		switch s.Op {
		case OpSeqEmpty:
			return a
		case OpSeqUnit:
			return append(a, s.Args[0])
		case OpSeqConcat:
			a = append(a, s.Args[0].Args[0])
			s = s.Args[1]
		default:
			panic("unreachable")
		}
	}
}

// seqConst builds the canonical constant sequence of elems: a single unit
// or a unit consed onto the canonical rest.
func (c *Context) seqConst(t *Type, elems []*Expr) *Expr {
	if t.Kind == KindString {
		var buf strings.Builder
		for _, e := range elems {
			buf.WriteRune(rune(e.Value))
		}
		return c.str(buf.String())
	}
	if len(elems) == 0 {
		return c.intern(&Expr{Op: OpSeqEmpty, Type: t})
	}

	acc := c.intern(&Expr{Op: OpSeqUnit, Type: t, Args: []*Expr{elems[len(elems)-1]}})
	for i := len(elems) - 2; i >= 0; i-- {
		unit := c.intern(&Expr{Op: OpSeqUnit, Type: t, Args: []*Expr{elems[i]}})
		acc = c.intern(&Expr{Op: OpSeqConcat, Type: t, Args: []*Expr{unit, acc}})
	}
	return acc
}

func isEmptySeq(s *Expr) bool {
	return s.Op == OpSeqEmpty || (s.Op == OpConst && s.Type.Kind == KindString && s.Str == "")
}

// SeqConcat returns the concatenation of a and b.
func (c *Context) SeqConcat(a, b *Expr) *Expr {
	assert(a.Type.IsSequence(), "seq-concat: not a sequence type: %s", a.Type)
	assertSameType(a, b, "seq-concat")

	if isEmptySeq(a) {
		return b
	} else if isEmptySeq(b) {
		return a
	} else if a.constant && b.constant {
		return c.seqConst(a.Type, append(c.seqElems(a), c.seqElems(b)...))
	}
	return c.intern(&Expr{Op: OpSeqConcat, Type: a.Type, Args: []*Expr{a, b}})
}

// SeqLength returns the length of s as an unbounded integer.
func (c *Context) SeqLength(s *Expr) *Expr {
	assert(s.Type.IsSequence(), "seq-length: not a sequence type: %s", s.Type)

	if s.constant {
		return c.Integer(int64(len(c.seqElems(s))))
	}
	switch s.Op {
	case OpSeqUnit:
		return c.Integer(1)
	case OpSeqConcat:
		return c.Add(c.SeqLength(s.Args[0]), c.SeqLength(s.Args[1]))
	}
	return c.intern(&Expr{Op: OpSeqLength, Type: BigInt, Args: []*Expr{s}})
}

// SeqAt returns the element at index i of s, or None when i is out of
// range.
func (c *Context) SeqAt(s, i *Expr) *Expr {
	assert(s.Type.IsSequence(), "seq-at: not a sequence type: %s", s.Type)
	assertKind(i, KindInt, "seq-at")

	t := OptionOf(s.Type.SeqElem())
	if s.constant && i.Op == OpConst {
		elems := c.seqElems(s)
		if !i.Big.IsInt64() || i.Big.Int64() < 0 || i.Big.Int64() >= int64(len(elems)) {
			return c.None(t)
		}
		return c.Some(elems[i.Big.Int64()])
	}
	if isEmptySeq(s) {
		return c.None(t)
	}
	return c.intern(&Expr{Op: OpSeqAt, Type: t, Args: []*Expr{s, i}})
}

// SeqContains returns true if sub occurs as a contiguous subsequence of s.
func (c *Context) SeqContains(s, sub *Expr) *Expr {
	assert(s.Type.IsSequence(), "seq-contains: not a sequence type: %s", s.Type)
	assertSameType(s, sub, "seq-contains")

	if isEmptySeq(sub) || s == sub {
		return c.True()
	}
	if s.constant && sub.constant {
		if s.Op == OpConst {
			return c.Bool(strings.Contains(s.Str, sub.Str))
		}
		return c.Bool(containsSeq(c.seqElems(s), c.seqElems(sub)))
	}
	return c.intern(&Expr{Op: OpSeqContains, Type: Bool, Args: []*Expr{s, sub}})
}

func containsSeq(s, sub []*Expr) bool {
	for i := 0; i+len(sub) <= len(s); i++ {
		match := true
		for j := range sub {
			if s[i+j] != sub[j] {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

// MapEmpty returns the empty map of type t.
func (c *Context) MapEmpty(t *Type) *Expr {
	assert(t.Kind == KindMap, "map-empty: not a map type: %s", t)
	return c.intern(&Expr{Op: OpMapEmpty, Type: t})
}

// mapEntries returns the key/value pairs of a constant map in key order.
func mapEntries(m *Expr) (keys, values []*Expr) {
	for m.Op == OpMapSet {
		keys = append(keys, m.Args[1])
		values = append(values, m.Args[2])
		m = m.Args[0]
	}
	for i, j := 0, len(keys)-1; i < j; i, j = i+1, j-1 {
		keys[i], keys[j] = keys[j], keys[i]
		values[i], values[j] = values[j], values[i]
	}
	return keys, values
}

// mapConst builds the canonical constant map from sorted, unique keys.
func (c *Context) mapConst(t *Type, keys, values []*Expr) *Expr {
	acc := c.intern(&Expr{Op: OpMapEmpty, Type: t})
	for i := range keys {
		acc = c.intern(&Expr{Op: OpMapSet, Type: t, Args: []*Expr{acc, keys[i], values[i]}})
	}
	return acc
}

// MapSet returns m with key bound to value.
func (c *Context) MapSet(m, key, value *Expr) *Expr {
	assertKind(m, KindMap, "map-set")
	assert(key.Type.Equal(m.Type.Key), "map-set: key type mismatch: %s != %s", key.Type, m.Type.Key)
	assert(value.Type.Equal(m.Type.Elem), "map-set: value type mismatch: %s != %s", value.Type, m.Type.Elem)

	if m.constant && key.constant && value.constant {
		keys, values := mapEntries(m)
		i, found := searchExprs(keys, key)
		if found {
			values = append([]*Expr(nil), values...)
			values[i] = value
		} else {
			keys = insertExpr(keys, i, key)
			values = insertExpr(values, i, value)
		}
		return c.mapConst(m.Type, keys, values)
	}

	// Overwriting the same key drops the earlier binding.
	if m.Op == OpMapSet && m.Args[1] == key {
		return c.MapSet(m.Args[0], key, value)
	}
	return c.intern(&Expr{Op: OpMapSet, Type: m.Type, Args: []*Expr{m, key, value}})
}

// MapDelete returns m without key.
func (c *Context) MapDelete(m, key *Expr) *Expr {
	assertKind(m, KindMap, "map-delete")
	assert(key.Type.Equal(m.Type.Key), "map-delete: key type mismatch: %s != %s", key.Type, m.Type.Key)

	if m.Op == OpMapEmpty {
		return m
	}
	if m.constant && key.constant {
		keys, values := mapEntries(m)
		i, found := searchExprs(keys, key)
		if !found {
			return m
		}
		keys = append(append([]*Expr(nil), keys[:i]...), keys[i+1:]...)
		values = append(append([]*Expr(nil), values[:i]...), values[i+1:]...)
		return c.mapConst(m.Type, keys, values)
	}
	return c.intern(&Expr{Op: OpMapDelete, Type: m.Type, Args: []*Expr{m, key}})
}

// MapGet returns the value bound to key in m, or None.
func (c *Context) MapGet(m, key *Expr) *Expr {
	assertKind(m, KindMap, "map-get")
	assert(key.Type.Equal(m.Type.Key), "map-get: key type mismatch: %s != %s", key.Type, m.Type.Key)

	t := OptionOf(m.Type.Elem)
	switch m.Op {
	case OpMapEmpty:
		return c.None(t)
	case OpMapSet:
		return c.If(c.Eq(m.Args[1], key), c.Some(m.Args[2]), c.MapGet(m.Args[0], key))
	case OpMapDelete:
		return c.If(c.Eq(m.Args[1], key), c.None(t), c.MapGet(m.Args[0], key))
	case OpIf:
		return c.If(m.Args[0], c.MapGet(m.Args[1], key), c.MapGet(m.Args[2], key))
	}
	return c.intern(&Expr{Op: OpMapGet, Type: t, Args: []*Expr{m, key}})
}

// SetEmpty returns the empty set of type t.
func (c *Context) SetEmpty(t *Type) *Expr {
	assert(t.Kind == KindSet, "set-empty: not a set type: %s", t)
	return c.intern(&Expr{Op: OpSetEmpty, Type: t})
}

// chainKeys returns the keys of a constant set or bag in order.
func chainKeys(s *Expr) []*Expr {
	var keys []*Expr
	for s.Op == OpSetAdd || s.Op == OpBagAdd {
		keys = append(keys, s.Args[1])
		s = s.Args[0]
	}
	for i, j := 0, len(keys)-1; i < j; i, j = i+1, j-1 {
		keys[i], keys[j] = keys[j], keys[i]
	}
	return keys
}

// chainConst builds the canonical set or bag holding sorted keys.
func (c *Context) chainConst(t *Type, keys []*Expr) *Expr {
	empty, add := OpSetEmpty, OpSetAdd
	if t.Kind == KindBag {
		empty, add = OpBagEmpty, OpBagAdd
	}
	acc := c.intern(&Expr{Op: empty, Type: t})
	for _, k := range keys {
		acc = c.intern(&Expr{Op: add, Type: t, Args: []*Expr{acc, k}})
	}
	return acc
}

// SetAdd returns s with key added.
func (c *Context) SetAdd(s, key *Expr) *Expr {
	assertKind(s, KindSet, "set-add")
	assert(key.Type.Equal(s.Type.Key), "set-add: key type mismatch: %s != %s", key.Type, s.Type.Key)

	if s.constant && key.constant {
		keys := chainKeys(s)
		i, found := searchExprs(keys, key)
		if found {
			return s
		}
		return c.chainConst(s.Type, insertExpr(keys, i, key))
	}
	if s.Op == OpSetAdd && s.Args[1] == key {
		return s
	}
	return c.intern(&Expr{Op: OpSetAdd, Type: s.Type, Args: []*Expr{s, key}})
}

// SetContains returns true if key is a member of s.
func (c *Context) SetContains(s, key *Expr) *Expr {
	assertKind(s, KindSet, "set-contains")
	assert(key.Type.Equal(s.Type.Key), "set-contains: key type mismatch: %s != %s", key.Type, s.Type.Key)

	switch s.Op {
	case OpSetEmpty:
		return c.False()
	case OpSetAdd:
		return c.Or(c.Eq(s.Args[1], key), c.SetContains(s.Args[0], key))
	case OpSetUnion:
		return c.Or(c.SetContains(s.Args[0], key), c.SetContains(s.Args[1], key))
	case OpSetIntersect:
		return c.And(c.SetContains(s.Args[0], key), c.SetContains(s.Args[1], key))
	case OpIf:
		return c.If(s.Args[0], c.SetContains(s.Args[1], key), c.SetContains(s.Args[2], key))
	}
	return c.intern(&Expr{Op: OpSetContains, Type: Bool, Args: []*Expr{s, key}})
}

// SetUnion returns the union of a and b.
func (c *Context) SetUnion(a, b *Expr) *Expr {
	assertKind(a, KindSet, "set-union")
	assertSameType(a, b, "set-union")

	switch {
	case a == b || b.Op == OpSetEmpty:
		return a
	case a.Op == OpSetEmpty:
		return b
	case a.constant && b.constant:
		keys := chainKeys(a)
		for _, k := range chainKeys(b) {
			if i, found := searchExprs(keys, k); !found {
				keys = insertExpr(keys, i, k)
			}
		}
		return c.chainConst(a.Type, keys)
	}
	return c.intern(&Expr{Op: OpSetUnion, Type: a.Type, Args: []*Expr{a, b}})
}

// SetIntersect returns the intersection of a and b.
func (c *Context) SetIntersect(a, b *Expr) *Expr {
	assertKind(a, KindSet, "set-intersect")
	assertSameType(a, b, "set-intersect")

	switch {
	case a == b || a.Op == OpSetEmpty:
		return a
	case b.Op == OpSetEmpty:
		return b
	case a.constant && b.constant:
		other := chainKeys(b)
		var keys []*Expr
		for _, k := range chainKeys(a) {
			if _, found := searchExprs(other, k); found {
				keys = append(keys, k)
			}
		}
		return c.chainConst(a.Type, keys)
	}
	return c.intern(&Expr{Op: OpSetIntersect, Type: a.Type, Args: []*Expr{a, b}})
}

// BagEmpty returns the empty bag of type t.
func (c *Context) BagEmpty(t *Type) *Expr {
	assert(t.Kind == KindBag, "bag-empty: not a bag type: %s", t)
	return c.intern(&Expr{Op: OpBagEmpty, Type: t})
}

// BagAdd returns b with one more occurrence of key.
func (c *Context) BagAdd(b, key *Expr) *Expr {
	assertKind(b, KindBag, "bag-add")
	assert(key.Type.Equal(b.Type.Key), "bag-add: key type mismatch: %s != %s", key.Type, b.Type.Key)

	if b.constant && key.constant {
		keys := chainKeys(b)
		i, _ := searchExprs(keys, key)
		return c.chainConst(b.Type, insertExpr(keys, i, key))
	}
	return c.intern(&Expr{Op: OpBagAdd, Type: b.Type, Args: []*Expr{b, key}})
}

// BagCount returns the number of occurrences of key in b.
func (c *Context) BagCount(b, key *Expr) *Expr {
	assertKind(b, KindBag, "bag-count")
	assert(key.Type.Equal(b.Type.Key), "bag-count: key type mismatch: %s != %s", key.Type, b.Type.Key)

	switch b.Op {
	case OpBagEmpty:
		return c.Integer(0)
	case OpBagAdd:
		hit := c.If(c.Eq(b.Args[1], key), c.Integer(1), c.Integer(0))
		return c.Add(hit, c.BagCount(b.Args[0], key))
	case OpIf:
		return c.If(b.Args[0], c.BagCount(b.Args[1], key), c.BagCount(b.Args[2], key))
	}
	return c.intern(&Expr{Op: OpBagCount, Type: BigInt, Args: []*Expr{b, key}})
}

// searchExprs returns the position of key in the sorted slice a and whether
// it is present. Equal keys are found at their first occurrence.
func searchExprs(a []*Expr, key *Expr) (int, bool) {
	lo, hi := 0, len(a)
	for lo < hi {
		mid := (lo + hi) / 2
		if Compare(a[mid], key) < 0 {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo, lo < len(a) && a[lo] == key
}

func insertExpr(a []*Expr, i int, x *Expr) []*Expr {
	b := make([]*Expr, 0, len(a)+1)
	b = append(b, a[:i]...)
	b = append(b, x)
	return append(b, a[i:]...)
}
