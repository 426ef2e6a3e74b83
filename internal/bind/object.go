package bind

import (
	"encoding/binary"
	"fmt"

	"github.com/cespare/xxhash/v2"
	"github.com/danmuck/zcnbind/internal/abi"
)

// Object is a proxy for one foreign-owned object of a bound class.
type Object struct {
	bridge *Bridge
	class  abi.Class
	handle abi.Handle
}

func (o *Object) Handle() abi.Handle {
	return o.handle
}

func (o *Object) Class() abi.Class {
	return o.class
}

// Get reads field from the foreign object.
func (o *Object) Get(field string) (abi.Value, error) {
	decl, err := o.field(field)
	if err != nil {
		return abi.Value{}, err
	}
	var v abi.Value
	err = o.bridge.call("get", func() error {
		var err error
		v, err = o.bridge.boundary.Get(o.handle, field)
		return err
	})
	if err != nil {
		return abi.Value{}, fmt.Errorf("%s.%s: %w", o.class.Name, field, err)
	}
	if v.Kind != decl.Kind {
		return abi.Value{}, fmt.Errorf("%w: %s.%s returned %s", abi.ErrKindMismatch, o.class.Name, field, v.Kind)
	}
	return v, nil
}

// Set writes field on the foreign object.
func (o *Object) Set(field string, v abi.Value) error {
	decl, err := o.field(field)
	if err != nil {
		return err
	}
	if v.Kind != decl.Kind {
		return fmt.Errorf("%w: %s.%s want %s got %s", abi.ErrKindMismatch, o.class.Name, field, decl.Kind, v.Kind)
	}
	if err := v.Validate(); err != nil {
		return fmt.Errorf("%s.%s: %w", o.class.Name, field, err)
	}
	err = o.bridge.call("set", func() error {
		return o.bridge.boundary.Set(o.handle, field, v)
	})
	if err != nil {
		return fmt.Errorf("%s.%s: %w", o.class.Name, field, err)
	}
	return nil
}

func (o *Object) GetString(field string) (string, error) {
	v, err := o.Get(field)
	if err != nil {
		return "", err
	}
	return v.Str, nil
}

func (o *Object) GetInt64(field string) (int64, error) {
	v, err := o.Get(field)
	if err != nil {
		return 0, err
	}
	return v.Int, nil
}

func (o *Object) SetString(field, v string) error {
	return o.Set(field, abi.String(v))
}

func (o *Object) SetInt64(field string, v int64) error {
	return o.Set(field, abi.Int64(v))
}

// Values reads every field in declaration order, one boundary call per field.
func (o *Object) Values() ([]abi.Value, error) {
	out := make([]abi.Value, 0, len(o.class.Fields))
	for _, f := range o.class.Fields {
		v, err := o.Get(f.Name)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// Equal compares the current field values of o and other. Handles are not compared.
func (o *Object) Equal(other *Object) (bool, error) {
	if o == nil || other == nil {
		return o == other, nil
	}
	if o.class.Name != other.class.Name || len(o.class.Fields) != len(other.class.Fields) {
		return false, nil
	}
	mine, err := o.Values()
	if err != nil {
		return false, err
	}
	theirs, err := other.Values()
	if err != nil {
		return false, err
	}
	for i := range mine {
		if !mine[i].Equal(theirs[i]) {
			return false, nil
		}
	}
	return true, nil
}

// HashCode combines the current field values.
func (o *Object) HashCode() (int32, error) {
	values, err := o.Values()
	if err != nil {
		return 0, err
	}
	d := xxhash.New()
	var scratch [9]byte
	for _, v := range values {
		scratch[0] = byte(v.Kind)
		switch v.Kind {
		case abi.KindString:
			binary.BigEndian.PutUint64(scratch[1:], uint64(len(v.Str)))
			_, _ = d.Write(scratch[:])
			_, _ = d.WriteString(v.Str)
		default:
			binary.BigEndian.PutUint64(scratch[1:], uint64(v.Int))
			_, _ = d.Write(scratch[:])
		}
	}
	sum := d.Sum64()
	return int32(sum ^ sum>>32), nil
}

// Describe renders Class{Field:value,...,} from the current field values.
func (o *Object) Describe() (string, error) {
	values, err := o.Values()
	if err != nil {
		return "", err
	}
	return o.class.Format(values), nil
}

func (o *Object) String() string {
	s, err := o.Describe()
	if err != nil {
		return fmt.Sprintf("%s{%%!v(%v)}", o.class.Name, err)
	}
	return s
}

// Release drops this proxy's reference. The local entry goes away when its count
// reaches zero; the foreign object goes away when the foreign count does.
func (o *Object) Release() error {
	if _, err := o.bridge.refs.DecRef(o.handle); err != nil {
		return err
	}
	return o.bridge.call("dec_ref", func() error {
		return o.bridge.boundary.DecRef(o.handle)
	})
}

func (o *Object) field(name string) (abi.Field, error) {
	if o == nil || o.bridge == nil {
		return abi.Field{}, fmt.Errorf("%w: nil proxy", abi.ErrInvalidArgument)
	}
	decl, ok := o.class.Field(name)
	if !ok {
		return abi.Field{}, fmt.Errorf("%w: %s.%s", abi.ErrUnknownField, o.class.Name, name)
	}
	if !o.bridge.refs.Live(o.handle) {
		return abi.Field{}, fmt.Errorf("%w: %s", abi.ErrStaleHandle, o.handle)
	}
	return decl, nil
}
