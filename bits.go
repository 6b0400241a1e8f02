package zen

import "fmt"

// Bit layout of finite values, shared by the bounded backends.
//
//	bool    1 bit
//	bitvec  Width bits, least significant first
//	char    21 bits, least significant first
//	option  1 presence bit followed by the element
//	object  fields in declaration order
//	list    LengthWidth(Cap) length bits followed by Cap element slots
//
// A canonical encoding has every unused bit cleared: the payload of an
// absent option and the slots past the length of a list.

// EncodeBits returns the canonical bit encoding of a finite constant.
func EncodeBits(e *Expr) ([]bool, error) {
	if !e.constant {
		return nil, fmt.Errorf("%w: encode: not a constant: %s", ErrType, e)
	}
	w, ok := e.Type.BitWidth()
	if !ok {
		return nil, fmt.Errorf("%w: encode: type %s has no finite encoding", ErrBackendNotApplicable, e.Type)
	}
	bits := make([]bool, 0, w)
	return appendBits(bits, e), nil
}

func appendBits(bits []bool, e *Expr) []bool {
	switch e.Type.Kind {
	case KindBool:
		return append(bits, e.Value == 1)
	case KindBitVec:
		return appendUint(bits, e.Value, e.Type.Width)
	case KindChar:
		return appendUint(bits, e.Value, WidthChar)
	case KindOption:
		if e.Op == OpNone {
			w, _ := e.Type.BitWidth()
			return append(bits, make([]bool, w)...)
		}
		return appendBits(append(bits, true), e.Args[0])
	case KindObject:
		for _, arg := range e.Args {
			bits = appendBits(bits, arg)
		}
		return bits
	case KindList:
		var elems []*Expr
		for l := e; l.Op == OpListAppend; l = l.Args[0] {
			elems = append(elems, l.Args[1])
		}
		bits = appendUint(bits, uint64(len(elems)), LengthWidth(e.Type.Cap))
		for i := len(elems) - 1; i >= 0; i-- {
			bits = appendBits(bits, elems[i])
		}
		w, _ := e.Type.Elem.BitWidth()
		return append(bits, make([]bool, uint(e.Type.Cap-len(elems))*w)...)
	default:
		panic("unreachable")
	}
}

func appendUint(bits []bool, v uint64, width uint) []bool {
	for i := uint(0); i < width; i++ {
		bits = append(bits, v&(1<<i) != 0)
	}
	return bits
}

func readUint(bits []bool) uint64 {
	var v uint64
	for i, b := range bits {
		if b {
			v |= 1 << uint(i)
		}
	}
	return v
}

// DecodeBits decodes a bit assignment into a constant of type t. Unused bits
// are ignored. Returns ErrDomain for encodings outside the valid range of t.
func (c *Context) DecodeBits(t *Type, bits []bool) (*Expr, error) {
	w, ok := t.BitWidth()
	if !ok {
		return nil, fmt.Errorf("%w: decode: type %s has no finite encoding", ErrBackendNotApplicable, t)
	} else if uint(len(bits)) != w {
		return nil, fmt.Errorf("%w: decode %s: expected %d bits, got %d", ErrType, t, w, len(bits))
	}
	return c.decodeBits(t, bits)
}

func (c *Context) decodeBits(t *Type, bits []bool) (*Expr, error) {
	switch t.Kind {
	case KindBool:
		return c.Bool(bits[0]), nil

	case KindBitVec:
		return c.Uint(t, readUint(bits)), nil

	case KindChar:
		return c.Char(rune(readUint(bits)))

	case KindOption:
		if !bits[0] {
			return c.None(t), nil
		}
		x, err := c.decodeBits(t.Elem, bits[1:])
		if err != nil {
			return nil, err
		}
		return c.Some(x), nil

	case KindObject:
		args := make([]*Expr, len(t.Fields))
		var off uint
		for i, f := range t.Fields {
			w, _ := f.Type.BitWidth()
			x, err := c.decodeBits(f.Type, bits[off:off+w])
			if err != nil {
				return nil, err
			}
			args[i] = x
			off += w
		}
		return c.intern(&Expr{Op: OpObject, Type: t, Args: args}), nil

	case KindList:
		lw := LengthWidth(t.Cap)
		n := readUint(bits[:lw])
		if n > uint64(t.Cap) {
			return nil, fmt.Errorf("%w: list length %d exceeds capacity of %s", ErrDomain, n, t)
		}
		w, _ := t.Elem.BitWidth()
		l := c.ListEmpty(t)
		for i := uint(0); i < uint(n); i++ {
			off := lw + i*w
			x, err := c.decodeBits(t.Elem, bits[off:off+w])
			if err != nil {
				return nil, err
			}
			l = c.ListAppend(l, x)
		}
		return l, nil

	default:
		panic("unreachable")
	}
}
