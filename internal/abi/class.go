package abi

import (
	"fmt"
	"strings"
)

// Field declares one bound field.
type Field struct {
	Name string
	Kind Kind
}

// Class is the fixed, ordered field list of a bound type.
type Class struct {
	Name   string
	Fields []Field
}

func (c Class) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("%w: class missing name", ErrInvalidArgument)
	}
	seen := make(map[string]struct{}, len(c.Fields))
	for i, f := range c.Fields {
		if strings.TrimSpace(f.Name) == "" {
			return fmt.Errorf("%w: class %s field[%d] missing name", ErrInvalidArgument, c.Name, i)
		}
		if f.Kind != KindString && f.Kind != KindInt64 {
			return fmt.Errorf("%w: class %s field %s kind %d", ErrKindMismatch, c.Name, f.Name, f.Kind)
		}
		if _, ok := seen[f.Name]; ok {
			return fmt.Errorf("%w: class %s duplicate field %s", ErrInvalidArgument, c.Name, f.Name)
		}
		seen[f.Name] = struct{}{}
	}
	return nil
}

// Field returns the declaration of name.
func (c Class) Field(name string) (Field, bool) {
	for _, f := range c.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Check verifies that values match the declared field kinds in order.
func (c Class) Check(values []Value) error {
	if len(values) != len(c.Fields) {
		return fmt.Errorf("%w: class %s takes %d values, got %d", ErrInvalidArgument, c.Name, len(c.Fields), len(values))
	}
	for i, f := range c.Fields {
		if values[i].Kind != f.Kind {
			return fmt.Errorf("%w: %s.%s want %s got %s", ErrKindMismatch, c.Name, f.Name, f.Kind, values[i].Kind)
		}
		if err := values[i].Validate(); err != nil {
			return fmt.Errorf("%s.%s: %w", c.Name, f.Name, err)
		}
	}
	return nil
}

// Zero returns default values for every field.
func (c Class) Zero() []Value {
	out := make([]Value, len(c.Fields))
	for i, f := range c.Fields {
		out[i] = Value{Kind: f.Kind}
	}
	return out
}

// Format renders values as Name{Field:value,...,} in declaration order.
func (c Class) Format(values []Value) string {
	var b strings.Builder
	b.WriteString(c.Name)
	b.WriteByte('{')
	for i, f := range c.Fields {
		b.WriteString(f.Name)
		b.WriteByte(':')
		if i < len(values) {
			b.WriteString(values[i].Text())
		}
		b.WriteByte(',')
	}
	b.WriteByte('}')
	return b.String()
}
