package abi

import (
	"fmt"
	"strconv"
	"unicode/utf8"
)

// Kind is the semantic type of one bound field or call argument.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindString
	KindInt64
	// KindRef passes a handle as a call argument. Class fields never use it.
	KindRef
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInt64:
		return "int64"
	case KindRef:
		return "ref"
	default:
		return "invalid"
	}
}

// Value is one value in transit across the boundary.
type Value struct {
	Kind Kind
	Str  string
	Int  int64
	Ref  Handle
}

func String(s string) Value {
	return Value{Kind: KindString, Str: s}
}

func Int64(v int64) Value {
	return Value{Kind: KindInt64, Int: v}
}

func Ref(h Handle) Value {
	return Value{Kind: KindRef, Ref: h}
}

// Validate checks that v is representable on the foreign side.
func (v Value) Validate() error {
	switch v.Kind {
	case KindString:
		if !utf8.ValidString(v.Str) {
			return fmt.Errorf("%w: text is not valid utf-8", ErrInvalidArgument)
		}
	case KindInt64:
	case KindRef:
		if !v.Ref.Valid() {
			return fmt.Errorf("%w: null handle", ErrInvalidArgument)
		}
	default:
		return fmt.Errorf("%w: kind %d", ErrKindMismatch, v.Kind)
	}
	return nil
}

func (v Value) Equal(o Value) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case KindString:
		return v.Str == o.Str
	case KindInt64:
		return v.Int == o.Int
	case KindRef:
		return v.Ref == o.Ref
	default:
		return true
	}
}

// Text renders v the way the string template prints it.
func (v Value) Text() string {
	switch v.Kind {
	case KindString:
		return v.Str
	case KindInt64:
		return strconv.FormatInt(v.Int, 10)
	case KindRef:
		return v.Ref.String()
	default:
		return ""
	}
}
