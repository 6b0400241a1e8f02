package zen

import (
	"fmt"
	"math"
	"math/big"
	"sort"
)

// Fields is the host representation of an object value.
type Fields map[string]any

// Optional is the host representation of an option value.
type Optional struct {
	Valid bool
	Value any
}

// Pair is the host representation of one map entry.
type Pair struct {
	Key   any
	Value any
}

// Value embeds a host value as a constant of type t.
//
// Accepted host values per kind: bool; Go integers for bitvecs and ints
// (plus *big.Int for ints); rune for chars; string; Optional; Fields; []any
// for lists, sequences, sets and bags; map[any]any or []Pair for maps.
// Nil values, missing or unknown object fields and mismatched host types are
// reported as ErrType; values outside the range of t as ErrDomain.
func (c *Context) Value(t *Type, v any) (*Expr, error) {
	if v == nil {
		return nil, fmt.Errorf("%w: nil value for %s", ErrType, t)
	}

	switch t.Kind {
	case KindBool:
		b, ok := v.(bool)
		if !ok {
			return nil, typeMismatch(t, v)
		}
		return c.Bool(b), nil

	case KindBitVec:
		return c.bitvecValue(t, v)

	case KindInt:
		i, ok := toBig(v)
		if !ok {
			return nil, typeMismatch(t, v)
		}
		return c.BigInt(i), nil

	case KindChar:
		r, ok := v.(rune)
		if !ok {
			return nil, typeMismatch(t, v)
		}
		return c.Char(r)

	case KindString:
		s, ok := v.(string)
		if !ok {
			return nil, typeMismatch(t, v)
		}
		return c.String(s)

	case KindOption:
		o, ok := v.(Optional)
		if !ok {
			return nil, typeMismatch(t, v)
		} else if !o.Valid {
			return c.None(t), nil
		}
		x, err := c.Value(t.Elem, o.Value)
		if err != nil {
			return nil, err
		}
		return c.Some(x), nil

	case KindObject:
		m, ok := v.(Fields)
		if !ok {
			return nil, typeMismatch(t, v)
		}
		for name := range m {
			if _, ok := t.FieldIndex(name); !ok {
				return nil, fmt.Errorf("%w: object %s has no field %s", ErrType, t.Name, name)
			}
		}
		args := make([]*Expr, len(t.Fields))
		for i, f := range t.Fields {
			fv, ok := m[f.Name]
			if !ok {
				return nil, fmt.Errorf("%w: object %s: missing field %s", ErrType, t.Name, f.Name)
			}
			x, err := c.Value(f.Type, fv)
			if err != nil {
				return nil, fmt.Errorf("field %s: %w", f.Name, err)
			}
			args[i] = x
		}
		return c.Object(t, args...)

	case KindList, KindSeq:
		a, ok := v.([]any)
		if !ok {
			if s, isStr := v.(string); isStr && t.Kind == KindSeq && t.Elem.Kind == KindChar {
				for _, r := range s {
					a = append(a, r)
				}
				ok = true
			}
		}
		if !ok {
			return nil, typeMismatch(t, v)
		} else if t.Kind == KindList && len(a) > t.Cap {
			return nil, fmt.Errorf("%w: %d elements exceed capacity of %s", ErrDomain, len(a), t)
		}

		elems := make([]*Expr, len(a))
		for i := range a {
			x, err := c.Value(t.Elem, a[i])
			if err != nil {
				return nil, err
			}
			elems[i] = x
		}
		if t.Kind == KindSeq {
			return c.seqConst(t, elems), nil
		}
		l := c.ListEmpty(t)
		for _, x := range elems {
			l = c.ListAppend(l, x)
		}
		return l, nil

	case KindMap:
		var pairs []Pair
		switch v := v.(type) {
		case []Pair:
			pairs = v
		case map[any]any:
			for k, x := range v {
				pairs = append(pairs, Pair{Key: k, Value: x})
			}
		default:
			return nil, typeMismatch(t, v)
		}
		m := c.MapEmpty(t)
		for _, p := range pairs {
			k, err := c.Value(t.Key, p.Key)
			if err != nil {
				return nil, err
			}
			x, err := c.Value(t.Elem, p.Value)
			if err != nil {
				return nil, err
			}
			m = c.MapSet(m, k, x)
		}
		return m, nil

	case KindSet, KindBag:
		a, ok := v.([]any)
		if !ok {
			return nil, typeMismatch(t, v)
		}
		var s *Expr
		if t.Kind == KindSet {
			s = c.SetEmpty(t)
		} else {
			s = c.BagEmpty(t)
		}
		for i := range a {
			k, err := c.Value(t.Key, a[i])
			if err != nil {
				return nil, err
			}
			if t.Kind == KindSet {
				s = c.SetAdd(s, k)
			} else {
				s = c.BagAdd(s, k)
			}
		}
		return s, nil

	default:
		panic("unreachable")
	}
}

func typeMismatch(t *Type, v any) error {
	return fmt.Errorf("%w: cannot use %T as %s", ErrType, v, t)
}

func (c *Context) bitvecValue(t *Type, v any) (*Expr, error) {
	var i int64
	var u uint64
	var unsigned bool
	switch v := v.(type) {
	case int:
		i = int64(v)
	case int8:
		i = int64(v)
	case int16:
		i = int64(v)
	case int32:
		i = int64(v)
	case int64:
		i = v
	case uint:
		u, unsigned = uint64(v), true
	case uint8:
		u, unsigned = uint64(v), true
	case uint16:
		u, unsigned = uint64(v), true
	case uint32:
		u, unsigned = uint64(v), true
	case uint64:
		u, unsigned = v, true
	default:
		return nil, typeMismatch(t, v)
	}

	if t.Signed {
		lo, hi := -int64(1)<<(t.Width-1), int64(1)<<(t.Width-1)-1
		if t.Width == Width64 {
			lo, hi = math.MinInt64, math.MaxInt64
		}
		if unsigned {
			if u > uint64(hi) {
				return nil, fmt.Errorf("%w: %d overflows %s", ErrDomain, u, t)
			}
			i = int64(u)
		}
		if i < lo || i > hi {
			return nil, fmt.Errorf("%w: %d overflows %s", ErrDomain, i, t)
		}
		return c.Int(t, i), nil
	}

	if !unsigned {
		if i < 0 {
			return nil, fmt.Errorf("%w: %d overflows %s", ErrDomain, i, t)
		}
		u = uint64(i)
	}
	if u > bitmask(t.Width) {
		return nil, fmt.Errorf("%w: %d overflows %s", ErrDomain, u, t)
	}
	return c.Uint(t, u), nil
}

func toBig(v any) (*big.Int, bool) {
	switch v := v.(type) {
	case *big.Int:
		return v, v != nil
	case int:
		return big.NewInt(int64(v)), true
	case int8:
		return big.NewInt(int64(v)), true
	case int16:
		return big.NewInt(int64(v)), true
	case int32:
		return big.NewInt(int64(v)), true
	case int64:
		return big.NewInt(v), true
	case uint:
		return new(big.Int).SetUint64(uint64(v)), true
	case uint8:
		return new(big.Int).SetUint64(uint64(v)), true
	case uint16:
		return new(big.Int).SetUint64(uint64(v)), true
	case uint32:
		return new(big.Int).SetUint64(uint64(v)), true
	case uint64:
		return new(big.Int).SetUint64(v), true
	}
	return nil, false
}

// Interface returns the host value of a constant expression, the inverse of
// Context.Value. Bitvecs of standard widths map to the matching Go integer
// type; other widths map to int64 or uint64.
func (e *Expr) Interface() any {
	assert(e.constant, "interface: not a constant: %s", e)

	switch e.Type.Kind {
	case KindBool:
		return e.Value == 1
	case KindBitVec:
		return bitvecInterface(e)
	case KindInt:
		return new(big.Int).Set(e.Big)
	case KindChar:
		return rune(e.Value)
	case KindString:
		return e.Str

	case KindOption:
		if e.Op == OpNone {
			return Optional{}
		}
		return Optional{Valid: true, Value: e.Args[0].Interface()}

	case KindObject:
		m := make(Fields, len(e.Args))
		for i, f := range e.Type.Fields {
			m[f.Name] = e.Args[i].Interface()
		}
		return m

	case KindList:
		var a []any
		for l := e; l.Op == OpListAppend; l = l.Args[0] {
			a = append(a, l.Args[1].Interface())
		}
		for i, j := 0, len(a)-1; i < j; i, j = i+1, j-1 {
			a[i], a[j] = a[j], a[i]
		}
		return a

	case KindSeq:
		var a []any
		for l := e; ; l = l.Args[1] {
			if l.Op == OpSeqEmpty {
				break
			} else if l.Op == OpSeqUnit {
				a = append(a, l.Args[0].Interface())
				break
			}
			a = append(a, l.Args[0].Args[0].Interface())
		}
		return a

	case KindMap:
		keys, values := mapEntries(e)
		a := make([]Pair, len(keys))
		for i := range keys {
			a[i] = Pair{Key: keys[i].Interface(), Value: values[i].Interface()}
		}
		return a

	case KindSet, KindBag:
		keys := chainKeys(e)
		a := make([]any, len(keys))
		for i := range keys {
			a[i] = keys[i].Interface()
		}
		return a

	default:
		panic("unreachable")
	}
}

func bitvecInterface(e *Expr) any {
	if e.Type.Signed {
		v := signExtend(e.Value, e.Type.Width)
		switch e.Type.Width {
		case Width8:
			return int8(v)
		case Width16:
			return int16(v)
		case Width32:
			return int32(v)
		case Width64:
			return v
		}
		return v
	}
	switch e.Type.Width {
	case Width8:
		return uint8(e.Value)
	case Width16:
		return uint16(e.Value)
	case Width32:
		return uint32(e.Value)
	}
	return e.Value
}

// SortValues sorts constant expressions into the canonical value order.
func SortValues(a []*Expr) {
	sort.SliceStable(a, func(i, j int) bool { return Compare(a[i], a[j]) < 0 })
}
