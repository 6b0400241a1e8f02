package zen

import (
	"fmt"
	"math/bits"
	"strings"
)

// Kind identifies the shape of a Type.
type Kind int

// Type kinds.
const (
	KindBool = Kind(iota + 1)
	KindBitVec
	KindInt
	KindChar
	KindString
	KindOption
	KindObject
	KindList
	KindSeq
	KindMap
	KindSet
	KindBag
)

var kinds = [...]string{
	KindBool:   "bool",
	KindBitVec: "bitvec",
	KindInt:    "int",
	KindChar:   "char",
	KindString: "string",
	KindOption: "option",
	KindObject: "object",
	KindList:   "list",
	KindSeq:    "seq",
	KindMap:    "map",
	KindSet:    "set",
	KindBag:    "bag",
}

// String returns the name of the kind.
func (k Kind) String() string {
	if k >= 0 && k < Kind(len(kinds)) && kinds[k] != "" {
		return kinds[k]
	}
	return fmt.Sprintf("Kind<%d>", k)
}

// Type is an immutable logical type descriptor.
//
// Types are compared by signature, so two descriptors built separately for
// the same shape are interchangeable.
type Type struct {
	Kind   Kind
	Width  uint    // bitvec width
	Signed bool    // bitvec signedness
	Elem   *Type   // option, list, seq element; map value
	Key    *Type   // map, set, bag key
	Cap    int     // list capacity
	Name   string  // object name
	Fields []Field // object fields in declaration order

	sig string
}

// Field is a named object field.
type Field struct {
	Name string
	Type *Type
}

// Predefined types.
var (
	Bool   = newType(&Type{Kind: KindBool})
	Int8   = BitVec(Width8, true)
	Int16  = BitVec(Width16, true)
	Int32  = BitVec(Width32, true)
	Int64  = BitVec(Width64, true)
	Uint8  = BitVec(Width8, false)
	Uint16 = BitVec(Width16, false)
	Uint32 = BitVec(Width32, false)
	Uint64 = BitVec(Width64, false)
	BigInt = newType(&Type{Kind: KindInt})
	Char   = newType(&Type{Kind: KindChar})
	String = newType(&Type{Kind: KindString})
)

// BitVec returns a fixed-width integer type.
func BitVec(width uint, signed bool) *Type {
	assert(width >= 1 && width <= Width64, "invalid bitvec width: %d", width)
	return newType(&Type{Kind: KindBitVec, Width: width, Signed: signed})
}

// OptionOf returns an optional type wrapping elem.
func OptionOf(elem *Type) *Type {
	return newType(&Type{Kind: KindOption, Elem: elem})
}

// ObjectOf returns a named object type. Field names must be unique and
// non-empty.
func ObjectOf(name string, fields ...Field) (*Type, error) {
	seen := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		if f.Name == "" {
			return nil, fmt.Errorf("%w: object %s: empty field name", ErrType, name)
		} else if f.Type == nil {
			return nil, fmt.Errorf("%w: object %s: field %s has no type", ErrType, name, f.Name)
		} else if _, ok := seen[f.Name]; ok {
			return nil, fmt.Errorf("%w: object %s: duplicate field %s", ErrType, name, f.Name)
		}
		seen[f.Name] = struct{}{}
	}
	return newType(&Type{Kind: KindObject, Name: name, Fields: append([]Field(nil), fields...)}), nil
}

// ListOf returns a list type holding at most cap elements.
func ListOf(elem *Type, cap int) *Type {
	assert(cap >= 0 && cap <= MaxListCap, "invalid list capacity: %d", cap)
	return newType(&Type{Kind: KindList, Elem: elem, Cap: cap})
}

// SeqOf returns an unbounded sequence type.
func SeqOf(elem *Type) *Type { return newType(&Type{Kind: KindSeq, Elem: elem}) }

// MapOf returns an unbounded map type.
func MapOf(key, value *Type) *Type { return newType(&Type{Kind: KindMap, Key: key, Elem: value}) }

// SetOf returns an unbounded set type.
func SetOf(key *Type) *Type { return newType(&Type{Kind: KindSet, Key: key}) }

// BagOf returns an unbounded multiset type.
func BagOf(key *Type) *Type { return newType(&Type{Kind: KindBag, Key: key}) }

func newType(t *Type) *Type {
	t.sig = t.signature()
	return t
}

func (t *Type) signature() string {
	switch t.Kind {
	case KindBool, KindInt, KindChar, KindString:
		return t.Kind.String()
	case KindBitVec:
		if t.Signed {
			return fmt.Sprintf("i%d", t.Width)
		}
		return fmt.Sprintf("u%d", t.Width)
	case KindOption:
		return "option<" + t.Elem.String() + ">"
	case KindObject:
		var buf strings.Builder
		buf.WriteString(t.Name)
		buf.WriteByte('{')
		for i, f := range t.Fields {
			if i > 0 {
				buf.WriteByte(',')
			}
			buf.WriteString(f.Name)
			buf.WriteByte(':')
			buf.WriteString(f.Type.String())
		}
		buf.WriteByte('}')
		return buf.String()
	case KindList:
		return fmt.Sprintf("list<%s,%d>", t.Elem, t.Cap)
	case KindSeq:
		return "seq<" + t.Elem.String() + ">"
	case KindMap:
		return "map<" + t.Key.String() + "," + t.Elem.String() + ">"
	case KindSet:
		return "set<" + t.Key.String() + ">"
	case KindBag:
		return "bag<" + t.Key.String() + ">"
	default:
		panic("unreachable")
	}
}

// String returns the type signature.
func (t *Type) String() string { return t.sig }

// Equal returns true if t and other describe the same type.
func (t *Type) Equal(other *Type) bool {
	return t == other || (t != nil && other != nil && t.sig == other.sig)
}

// FieldIndex returns the position of the named object field.
func (t *Type) FieldIndex(name string) (int, bool) {
	for i, f := range t.Fields {
		if f.Name == name {
			return i, true
		}
	}
	return -1, false
}

// IsOrdered returns true if values of t support Lt and Le.
func (t *Type) IsOrdered() bool {
	return t.Kind == KindBitVec || t.Kind == KindInt || t.Kind == KindChar
}

// IsNumeric returns true if values of t support arithmetic.
func (t *Type) IsNumeric() bool {
	return t.Kind == KindBitVec || t.Kind == KindInt
}

// IsSequence returns true for sequences and strings.
func (t *Type) IsSequence() bool {
	return t.Kind == KindSeq || t.Kind == KindString
}

// SeqElem returns the element type of a sequence or string.
func (t *Type) SeqElem() *Type {
	if t.Kind == KindString {
		return Char
	}
	return t.Elem
}

// BitWidth returns the number of bits needed to encode a value of t.
// Returns false if t has no finite encoding.
func (t *Type) BitWidth() (uint, bool) {
	switch t.Kind {
	case KindBool:
		return WidthBool, true
	case KindBitVec:
		return t.Width, true
	case KindChar:
		return WidthChar, true
	case KindOption:
		w, ok := t.Elem.BitWidth()
		return 1 + w, ok
	case KindObject:
		var n uint
		for _, f := range t.Fields {
			w, ok := f.Type.BitWidth()
			if !ok {
				return 0, false
			}
			n += w
		}
		return n, true
	case KindList:
		w, ok := t.Elem.BitWidth()
		return LengthWidth(t.Cap) + uint(t.Cap)*w, ok
	default:
		return 0, false
	}
}

// Finite returns true if every type reachable from t has a finite encoding.
func (t *Type) Finite() bool {
	_, ok := t.BitWidth()
	return ok
}

// LengthWidth returns the number of bits used to store the length of a list
// with the given capacity.
func LengthWidth(cap int) uint {
	return uint(bits.Len(uint(cap)))
}

// FieldOffset returns the bit offset of field i within an object encoding.
func (t *Type) FieldOffset(i int) uint {
	var off uint
	for _, f := range t.Fields[:i] {
		w, _ := f.Type.BitWidth()
		off += w
	}
	return off
}
