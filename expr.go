package zen

import (
	"fmt"
	"math/big"
	"sort"
	"strconv"
	"strings"
)

// Op represents the variant of an expression node.
type Op int

// Expression operations.
const (
	OpConst = Op(iota + 1)
	OpVar

	// Logical operators over Bool.
	OpNot
	OpAnd
	OpOr

	// Bitwise operators over bit vectors.
	OpBitNot
	OpBitAnd
	OpBitOr
	OpBitXor

	// Arithmetic over bit vectors and integers.
	OpAdd
	OpSub
	OpMul

	// Comparisons.
	OpEq
	OpLt
	OpLe

	OpIf
	OpCast

	OpObject
	OpGetField
	OpWithField

	OpNone
	OpSome
	OpIsSome
	OpOptionValue

	OpListEmpty
	OpListAppend
	OpListLength
	OpListAt

	OpSeqEmpty
	OpSeqUnit
	OpSeqConcat
	OpSeqLength
	OpSeqAt
	OpSeqContains

	OpMapEmpty
	OpMapSet
	OpMapGet
	OpMapDelete

	OpSetEmpty
	OpSetAdd
	OpSetContains
	OpSetUnion
	OpSetIntersect

	OpBagEmpty
	OpBagAdd
	OpBagCount

	opEnd
)

var ops = [...]string{
	OpConst:        "const",
	OpVar:          "var",
	OpNot:          "not",
	OpAnd:          "and",
	OpOr:           "or",
	OpBitNot:       "bvnot",
	OpBitAnd:       "bvand",
	OpBitOr:        "bvor",
	OpBitXor:       "bvxor",
	OpAdd:          "add",
	OpSub:          "sub",
	OpMul:          "mul",
	OpEq:           "eq",
	OpLt:           "lt",
	OpLe:           "le",
	OpIf:           "if",
	OpCast:         "cast",
	OpObject:       "object",
	OpGetField:     "get-field",
	OpWithField:    "with-field",
	OpNone:         "none",
	OpSome:         "some",
	OpIsSome:       "is-some",
	OpOptionValue:  "option-value",
	OpListEmpty:    "list-empty",
	OpListAppend:   "list-append",
	OpListLength:   "list-length",
	OpListAt:       "list-at",
	OpSeqEmpty:     "seq-empty",
	OpSeqUnit:      "seq-unit",
	OpSeqConcat:    "seq-concat",
	OpSeqLength:    "seq-length",
	OpSeqAt:        "seq-at",
	OpSeqContains:  "seq-contains",
	OpMapEmpty:     "map-empty",
	OpMapSet:       "map-set",
	OpMapGet:       "map-get",
	OpMapDelete:    "map-delete",
	OpSetEmpty:     "set-empty",
	OpSetAdd:       "set-add",
	OpSetContains:  "set-contains",
	OpSetUnion:     "set-union",
	OpSetIntersect: "set-intersect",
	OpBagEmpty:     "bag-empty",
	OpBagAdd:       "bag-add",
	OpBagCount:     "bag-count",
}

// String returns the string representation of the operation.
func (op Op) String() string {
	if op >= 0 && op < Op(len(ops)) && ops[op] != "" {
		return ops[op]
	}
	return fmt.Sprintf("Op<%d>", op)
}

// Expr is a hash-consed expression node. Nodes are immutable and are only
// created through a Context, so two nodes with the same operation, type,
// payload and operands are always the same pointer.
type Expr struct {
	id   uint64
	Op   Op
	Type *Type
	Args []*Expr

	// Payload. Meaning depends on Op.
	Value uint64   // const bool, bitvec and char bits; var number
	Big   *big.Int // const int
	Str   string   // const string
	Name  string   // var name; field name for get-field/with-field
	Index int      // field index for get-field/with-field

	constant bool
}

// ID returns the identity assigned when the node was first interned.
func (e *Expr) ID() uint64 { return e.id }

// IsConstant returns true if e is a literal value, including composite
// literals such as objects of constants or maps built from constants.
func (e *Expr) IsConstant() bool { return e.constant }

// IsTrue returns true if e is the boolean constant true.
func (e *Expr) IsTrue() bool {
	return e.Op == OpConst && e.Type.Kind == KindBool && e.Value == 1
}

// IsFalse returns true if e is the boolean constant false.
func (e *Expr) IsFalse() bool {
	return e.Op == OpConst && e.Type.Kind == KindBool && e.Value == 0
}

// isZero returns true if e is a numeric constant zero.
func (e *Expr) isZero() bool {
	if e.Op != OpConst {
		return false
	}
	switch e.Type.Kind {
	case KindBitVec:
		return e.Value == 0
	case KindInt:
		return e.Big.Sign() == 0
	}
	return false
}

// isOne returns true if e is a numeric constant one.
func (e *Expr) isOne() bool {
	if e.Op != OpConst {
		return false
	}
	switch e.Type.Kind {
	case KindBitVec:
		return e.Value == 1
	case KindInt:
		return e.Big.IsInt64() && e.Big.Int64() == 1
	}
	return false
}

// isAllOnes returns true if e is a bitvec constant with every bit set.
func (e *Expr) isAllOnes() bool {
	return e.Op == OpConst && e.Type.Kind == KindBitVec && e.Value == bitmask(e.Type.Width)
}

// Int64 returns the signed value of a bitvec constant.
func (e *Expr) Int64() int64 {
	assert(e.Op == OpConst && e.Type.Kind == KindBitVec, "int64: not a bitvec constant: %s", e)
	if e.Type.Signed {
		return signExtend(e.Value, e.Type.Width)
	}
	return int64(e.Value)
}

// String returns the string representation of the expression.
func (e *Expr) String() string {
	switch e.Op {
	case OpConst:
		switch e.Type.Kind {
		case KindBool:
			return strconv.FormatBool(e.Value == 1)
		case KindBitVec:
			if e.Type.Signed {
				return fmt.Sprintf("(const %d %s)", signExtend(e.Value, e.Type.Width), e.Type)
			}
			return fmt.Sprintf("(const %d %s)", e.Value, e.Type)
		case KindInt:
			return fmt.Sprintf("(const %s int)", e.Big)
		case KindChar:
			return fmt.Sprintf("(const %q char)", rune(e.Value))
		case KindString:
			return strconv.Quote(e.Str)
		}
	case OpVar:
		return e.Name
	case OpNone, OpListEmpty, OpSeqEmpty, OpMapEmpty, OpSetEmpty, OpBagEmpty:
		return fmt.Sprintf("(%s %s)", e.Op, e.Type)
	case OpGetField:
		return fmt.Sprintf("(%s %s %s)", e.Op, e.Args[0], e.Name)
	case OpWithField:
		return fmt.Sprintf("(%s %s %s %s)", e.Op, e.Args[0], e.Name, e.Args[1])
	case OpCast:
		return fmt.Sprintf("(%s %s %s)", e.Op, e.Args[0], e.Type)
	}

	var buf strings.Builder
	buf.WriteByte('(')
	buf.WriteString(e.Op.String())
	for _, arg := range e.Args {
		buf.WriteByte(' ')
		buf.WriteString(arg.String())
	}
	buf.WriteByte(')')
	return buf.String()
}

// key returns the structural key used to intern e. Operands are identified
// by their node identity.
func (e *Expr) key() string {
	var buf strings.Builder
	buf.WriteString(strconv.Itoa(int(e.Op)))
	buf.WriteByte('|')
	buf.WriteString(e.Type.String())
	buf.WriteByte('|')
	buf.WriteString(strconv.FormatUint(e.Value, 10))
	if e.Big != nil {
		buf.WriteByte('|')
		buf.WriteString(e.Big.String())
	}
	if e.Str != "" || e.Name != "" {
		buf.WriteByte('|')
		buf.WriteString(strconv.Quote(e.Str))
		buf.WriteString(strconv.Quote(e.Name))
	}
	for _, arg := range e.Args {
		buf.WriteByte('|')
		buf.WriteString(strconv.FormatUint(arg.id, 10))
	}
	return buf.String()
}

func bitmask(width uint) uint64 {
	if width >= 64 {
		return ^uint64(0)
	}
	return (1 << width) - 1
}

func signExtend(v uint64, width uint) int64 {
	shift := 64 - width
	return int64(v<<shift) >> shift
}

// Compare returns an integer comparing two expressions.
// The result will be 0 if a==b, -1 if a < b, and +1 if a > b.
//
// Constants of the same type are ordered by value; the order is total and
// stable across processes.
func Compare(a, b *Expr) int {
	if a == b {
		return 0
	} else if a == nil {
		return -1
	} else if b == nil {
		return 1
	}

	if cmp := strings.Compare(a.Type.String(), b.Type.String()); cmp != 0 {
		return cmp
	}
	if a.Op < b.Op {
		return -1
	} else if a.Op > b.Op {
		return 1
	}

	switch a.Op {
	case OpConst:
		return compareConst(a, b)
	case OpVar:
		return compareUint64(a.Value, b.Value)
	case OpGetField, OpWithField:
		if a.Index != b.Index {
			return compareInt(a.Index, b.Index)
		}
	}

	if len(a.Args) != len(b.Args) {
		return compareInt(len(a.Args), len(b.Args))
	}
	for i := range a.Args {
		if cmp := Compare(a.Args[i], b.Args[i]); cmp != 0 {
			return cmp
		}
	}
	return 0
}

func compareConst(a, b *Expr) int {
	switch a.Type.Kind {
	case KindInt:
		return a.Big.Cmp(b.Big)
	case KindString:
		return strings.Compare(a.Str, b.Str)
	case KindBitVec:
		if a.Type.Signed {
			x, y := signExtend(a.Value, a.Type.Width), signExtend(b.Value, b.Type.Width)
			if x < y {
				return -1
			} else if x > y {
				return 1
			}
			return 0
		}
	}
	return compareUint64(a.Value, b.Value)
}

func compareUint64(a, b uint64) int {
	if a < b {
		return -1
	} else if a > b {
		return 1
	}
	return 0
}

func compareInt(a, b int) int {
	if a < b {
		return -1
	} else if a > b {
		return 1
	}
	return 0
}

// ExprVisitor represents a visitor that can be passed to WalkExpr().
type ExprVisitor interface {
	// Visit is executed once for every reachable node. Returning nil stops
	// the walk below expr.
	Visit(expr *Expr) ExprVisitor
}

// WalkExpr visits every node reachable from expr once, parents before
// children. Shared sub-expressions are visited a single time.
func WalkExpr(v ExprVisitor, expr *Expr) {
	walkExpr(v, expr, make(map[uint64]struct{}))
}

func walkExpr(v ExprVisitor, expr *Expr, seen map[uint64]struct{}) {
	if _, ok := seen[expr.id]; ok {
		return
	}
	seen[expr.id] = struct{}{}

	if v = v.Visit(expr); v == nil {
		return
	}
	for _, arg := range expr.Args {
		walkExpr(v, arg, seen)
	}
}

// Inspect walks expr calling fn for every reachable node. Returning false
// skips the node's children.
func Inspect(expr *Expr, fn func(*Expr) bool) {
	WalkExpr(inspector(fn), expr)
}

type inspector func(*Expr) bool

func (f inspector) Visit(expr *Expr) ExprVisitor {
	if f(expr) {
		return f
	}
	return nil
}

// FindVars returns the variables reachable from exprs ordered by creation.
func FindVars(exprs ...*Expr) []*Expr {
	seen := make(map[uint64]struct{})
	var a []*Expr
	for _, expr := range exprs {
		walkExpr(inspector(func(e *Expr) bool {
			if e.Op == OpVar {
				a = append(a, e)
			}
			return !e.constant
		}), expr, seen)
	}
	sort.Slice(a, func(i, j int) bool { return a[i].Value < a[j].Value })
	return a
}

// sortExprs sorts a in place by Compare.
func sortExprs(a []*Expr) {
	sort.Slice(a, func(i, j int) bool { return Compare(a[i], a[j]) < 0 })
}
