package vm

import (
	"fmt"
	"strconv"
	"strings"
)

// ValueType tags a runtime value.
type ValueType int

const (
	NullType ValueType = iota
	IntType
	BoolType
	CharType
	StringType
	ArrayType
	HashType
	ClosureType
)

func (t ValueType) String() string {
	switch t {
	case IntType:
		return "int"
	case BoolType:
		return "bool"
	case CharType:
		return "char"
	case StringType:
		return "string"
	case ArrayType:
		return "array"
	case HashType:
		return "hash"
	case ClosureType:
		return "function"
	default:
		return "null"
	}
}

// Value is the uniform boxed representation every runtime value takes on
// the stack and inside containers.
type Value interface {
	Type() ValueType
	Inspect() string
}

type Int int64

type Bool bool

type Char rune

type String string

// Null is the absent result of first/last on empty input.
type Null struct{}

// Array is shared by reference; push appends in place.
type Array struct {
	Elements []Value
}

// HashKey identifies a hashable value. Scalars hash by value; arrays,
// hashes and closures hash by identity through Ref.
type HashKey struct {
	Type  ValueType
	Value int64
	Str   string
	Ref   Value
}

type HashPair struct {
	Key   Value
	Value Value
}

// Hash keeps insertion order for printing.
type Hash struct {
	Pairs map[HashKey]HashPair
	Order []HashKey
}

// Closure is a function value. Captured holds copies of the outer locals
// the function refers to; it is empty for named functions.
type Closure struct {
	Fn       int
	Name     string
	Captured []Value
}

func (Int) Type() ValueType      { return IntType }
func (Bool) Type() ValueType     { return BoolType }
func (Char) Type() ValueType     { return CharType }
func (String) Type() ValueType   { return StringType }
func (Null) Type() ValueType     { return NullType }
func (*Array) Type() ValueType   { return ArrayType }
func (*Hash) Type() ValueType    { return HashType }
func (*Closure) Type() ValueType { return ClosureType }

func (v Int) Inspect() string { return strconv.FormatInt(int64(v), 10) }
func (v Bool) Inspect() string {
	if v {
		return "true"
	}
	return "false"
}
func (v Char) Inspect() string   { return string(rune(v)) }
func (v String) Inspect() string { return string(v) }
func (Null) Inspect() string     { return "null" }

func (a *Array) Inspect() string {
	elems := make([]string, len(a.Elements))
	for i, elem := range a.Elements {
		elems[i] = quoted(elem)
	}
	return "[" + strings.Join(elems, ", ") + "]"
}

func (h *Hash) Inspect() string {
	pairs := make([]string, 0, len(h.Order))
	for _, k := range h.Order {
		pair := h.Pairs[k]
		pairs = append(pairs, fmt.Sprintf("%s: %s", quoted(pair.Key), quoted(pair.Value)))
	}
	return "{" + strings.Join(pairs, ", ") + "}"
}

func (c *Closure) Inspect() string {
	return fmt.Sprintf("<fn %s>", c.Name)
}

// quoted renders container elements so strings and chars stay
// distinguishable from numbers.
func quoted(v Value) string {
	switch v := v.(type) {
	case String:
		return strconv.Quote(string(v))
	case Char:
		return strconv.QuoteRune(rune(v))
	}
	return v.Inspect()
}

func NewArray(capacity int) *Array {
	return &Array{Elements: make([]Value, 0, capacity)}
}

func NewHash() *Hash {
	return &Hash{Pairs: make(map[HashKey]HashPair)}
}

// Set inserts or replaces the value for key.
func (h *Hash) Set(key, value Value) error {
	hk, err := HashKeyOf(key)
	if err != nil {
		return err
	}
	if _, exists := h.Pairs[hk]; !exists {
		h.Order = append(h.Order, hk)
	}
	h.Pairs[hk] = HashPair{Key: key, Value: value}
	return nil
}

// Get looks up key.
func (h *Hash) Get(key Value) (Value, bool, error) {
	hk, err := HashKeyOf(key)
	if err != nil {
		return nil, false, err
	}
	pair, ok := h.Pairs[hk]
	if !ok {
		return nil, false, nil
	}
	return pair.Value, true, nil
}

// HashKeyOf returns the key for a hashable value. Every value but null is
// hashable.
func HashKeyOf(v Value) (HashKey, error) {
	switch v := v.(type) {
	case Int:
		return HashKey{Type: IntType, Value: int64(v)}, nil
	case Bool:
		if v {
			return HashKey{Type: BoolType, Value: 1}, nil
		}
		return HashKey{Type: BoolType}, nil
	case Char:
		return HashKey{Type: CharType, Value: int64(v)}, nil
	case String:
		return HashKey{Type: StringType, Str: string(v)}, nil
	case *Array, *Hash, *Closure:
		return HashKey{Type: v.Type(), Ref: v}, nil
	}
	return HashKey{}, fmt.Errorf("unusable as hash key: %s", v.Type())
}

// Equal compares values structurally; closures compare by identity.
func Equal(a, b Value) bool {
	if a.Type() != b.Type() {
		return false
	}
	switch a := a.(type) {
	case *Array:
		b := b.(*Array)
		if len(a.Elements) != len(b.Elements) {
			return false
		}
		for i := range a.Elements {
			if !Equal(a.Elements[i], b.Elements[i]) {
				return false
			}
		}
		return true
	case *Hash:
		b := b.(*Hash)
		if len(a.Pairs) != len(b.Pairs) {
			return false
		}
		for k, pa := range a.Pairs {
			pb, ok := b.Pairs[k]
			if !ok || !Equal(pa.Value, pb.Value) {
				return false
			}
		}
		return true
	case *Closure:
		return a == b.(*Closure)
	default:
		return a == b
	}
}

// FromConstant boxes a chunk constant.
func FromConstant(c interface{}) (Value, error) {
	switch c := c.(type) {
	case int64:
		return Int(c), nil
	case bool:
		return Bool(c), nil
	case rune:
		return Char(c), nil
	case string:
		return String(c), nil
	}
	return nil, fmt.Errorf("unsupported constant %T", c)
}
