package foreign

import (
	"fmt"
	"reflect"

	"github.com/danmuck/zcnbind/internal/abi"
)

type binding struct {
	class  abi.Class
	typ    reflect.Type
	fields map[string]int
}

func newBinding(class abi.Class, prototype any) (*binding, error) {
	if err := class.Validate(); err != nil {
		return nil, err
	}
	typ := reflect.TypeOf(prototype)
	if typ != nil && typ.Kind() == reflect.Pointer {
		typ = typ.Elem()
	}
	if typ == nil || typ.Kind() != reflect.Struct {
		return nil, fmt.Errorf("%w: class %s prototype must be a struct", abi.ErrInvalidArgument, class.Name)
	}
	b := &binding{class: class, typ: typ, fields: make(map[string]int, len(class.Fields))}
	for _, f := range class.Fields {
		sf, ok := typ.FieldByName(f.Name)
		if !ok || !sf.IsExported() || len(sf.Index) != 1 {
			return nil, fmt.Errorf("%w: %s has no exported field %s", abi.ErrUnknownField, typ, f.Name)
		}
		if !kindMatches(f.Kind, sf.Type.Kind()) {
			return nil, fmt.Errorf("%w: %s.%s is %s, declared %s", abi.ErrKindMismatch, typ, f.Name, sf.Type.Kind(), f.Kind)
		}
		b.fields[f.Name] = sf.Index[0]
	}
	return b, nil
}

func kindMatches(k abi.Kind, rk reflect.Kind) bool {
	switch k {
	case abi.KindString:
		return rk == reflect.String
	case abi.KindInt64:
		switch rk {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			return true
		}
	}
	return false
}

func (b *binding) field(name string) (abi.Field, int, error) {
	decl, ok := b.class.Field(name)
	if !ok {
		return abi.Field{}, 0, fmt.Errorf("%w: %s.%s", abi.ErrUnknownField, b.class.Name, name)
	}
	return decl, b.fields[name], nil
}

func (b *binding) read(obj reflect.Value, name string) (abi.Value, error) {
	decl, idx, err := b.field(name)
	if err != nil {
		return abi.Value{}, err
	}
	fv := obj.Field(idx)
	switch decl.Kind {
	case abi.KindString:
		return abi.String(fv.String()), nil
	default:
		return abi.Int64(fv.Int()), nil
	}
}

func (b *binding) write(obj reflect.Value, name string, v abi.Value) error {
	decl, idx, err := b.field(name)
	if err != nil {
		return err
	}
	if v.Kind != decl.Kind {
		return fmt.Errorf("%w: %s.%s want %s got %s", abi.ErrKindMismatch, b.class.Name, name, decl.Kind, v.Kind)
	}
	if err := v.Validate(); err != nil {
		return fmt.Errorf("%s.%s: %w", b.class.Name, name, err)
	}
	fv := obj.Field(idx)
	switch decl.Kind {
	case abi.KindString:
		fv.SetString(v.Str)
	default:
		if fv.OverflowInt(v.Int) {
			return fmt.Errorf("%w: %s.%s value %d overflows %s", abi.ErrInvalidArgument, b.class.Name, name, v.Int, fv.Kind())
		}
		fv.SetInt(v.Int)
	}
	return nil
}
