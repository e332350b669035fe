// Package types is the type descriptor model of the Monkey language.
package types

import "strings"

// Kind tags a type descriptor.
type Kind int

const (
	KindAny Kind = iota
	KindInt
	KindString
	KindBool
	KindChar
	KindVoid
	KindArray
	KindHash
	KindFunction
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindString:
		return "string"
	case KindBool:
		return "bool"
	case KindChar:
		return "char"
	case KindVoid:
		return "void"
	case KindArray:
		return "array"
	case KindHash:
		return "hash"
	case KindFunction:
		return "fn"
	default:
		return "any"
	}
}

// Type describes a Monkey type. Only the fields relevant to Kind are set:
// Elem for arrays, Key and Value for hashes, Params and Return for functions.
type Type struct {
	Kind   Kind
	Elem   *Type
	Key    *Type
	Value  *Type
	Params []*Type
	Return *Type
}

var (
	Any    = &Type{Kind: KindAny}
	Int    = &Type{Kind: KindInt}
	String = &Type{Kind: KindString}
	Bool   = &Type{Kind: KindBool}
	Char   = &Type{Kind: KindChar}
	Void   = &Type{Kind: KindVoid}
)

func ArrayOf(elem *Type) *Type {
	return &Type{Kind: KindArray, Elem: elem}
}

func HashOf(key, value *Type) *Type {
	return &Type{Kind: KindHash, Key: key, Value: value}
}

func FunctionOf(params []*Type, ret *Type) *Type {
	return &Type{Kind: KindFunction, Params: params, Return: ret}
}

// Equal reports structural equality. Any equals only Any here; use
// Compatible for the permissive relation.
func (t *Type) Equal(other *Type) bool {
	if t == other {
		return true
	}
	if t == nil || other == nil || t.Kind != other.Kind {
		return false
	}
	switch t.Kind {
	case KindArray:
		return t.Elem.Equal(other.Elem)
	case KindHash:
		return t.Key.Equal(other.Key) && t.Value.Equal(other.Value)
	case KindFunction:
		if len(t.Params) != len(other.Params) || !t.Return.Equal(other.Return) {
			return false
		}
		for i := range t.Params {
			if !t.Params[i].Equal(other.Params[i]) {
				return false
			}
		}
		return true
	default:
		return true
	}
}

// Compatible reports whether a value of type actual may be used where
// expected is required. Any on either side is compatible with everything.
func Compatible(expected, actual *Type) bool {
	if expected == nil || actual == nil {
		return false
	}
	if expected.Kind == KindAny || actual.Kind == KindAny {
		return true
	}
	if expected.Kind != actual.Kind {
		return false
	}
	switch expected.Kind {
	case KindArray:
		return Compatible(expected.Elem, actual.Elem)
	case KindHash:
		return Compatible(expected.Key, actual.Key) && Compatible(expected.Value, actual.Value)
	case KindFunction:
		if len(expected.Params) != len(actual.Params) || !Compatible(expected.Return, actual.Return) {
			return false
		}
		for i := range expected.Params {
			if !Compatible(expected.Params[i], actual.Params[i]) {
				return false
			}
		}
		return true
	default:
		return true
	}
}

// IsPrimitive reports whether values of t are unboxed scalars.
func (t *Type) IsPrimitive() bool {
	switch t.Kind {
	case KindInt, KindString, KindBool, KindChar:
		return true
	}
	return false
}

func (t *Type) String() string {
	if t == nil {
		return "<nil>"
	}
	switch t.Kind {
	case KindArray:
		return "array<" + t.Elem.String() + ">"
	case KindHash:
		return "hash<" + t.Key.String() + "," + t.Value.String() + ">"
	case KindFunction:
		parts := make([]string, len(t.Params))
		for i, p := range t.Params {
			parts[i] = p.String()
		}
		return "fn(" + strings.Join(parts, ",") + "):" + t.Return.String()
	default:
		return t.Kind.String()
	}
}
