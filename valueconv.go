package okv

import (
	"fmt"
	"math"
)

// Valuer is implemented by domain types that know their stored form.
type Valuer interface {
	ToValue() (Value, error)
}

// ValueUnmarshaler is implemented by domain types that can be rebuilt from a
// stored value.
type ValueUnmarshaler interface {
	UnmarshalValue(v Value) error
}

// ValueOf converts plain Go data into a Value. Unsupported types fail with
// UnsupportedKind.
func ValueOf(src any) (Value, error) {
	switch v := src.(type) {
	case nil:
		return Value{}, nil
	case Value:
		return v, nil
	case Valuer:
		return v.ToValue()
	case bool:
		return BoolValue(v), nil
	case int:
		return IntValue(int64(v)), nil
	case int8:
		return IntValue(int64(v)), nil
	case int16:
		return IntValue(int64(v)), nil
	case int32:
		return IntValue(int64(v)), nil
	case int64:
		return IntValue(v), nil
	case uint:
		return UintValue(uint64(v)), nil
	case uint8:
		return UintValue(uint64(v)), nil
	case uint16:
		return UintValue(uint64(v)), nil
	case uint32:
		return UintValue(uint64(v)), nil
	case uint64:
		return UintValue(v), nil
	case float32:
		return FloatValue(float64(v)), nil
	case float64:
		return FloatValue(v), nil
	case string:
		return TextValue(v), nil
	case []byte:
		return BinaryValue(v), nil
	case []Value:
		return ArrayValue(v...), nil
	case []any:
		arr := make([]Value, len(v))
		for i, el := range v {
			ev, err := ValueOf(el)
			if err != nil {
				return Value{}, fmt.Errorf("[%d]: %w", i, err)
			}
			arr[i] = ev
		}
		return ArrayValue(arr...), nil
	case map[string]Value:
		return ObjectValue(v), nil
	case map[string]any:
		obj := make(map[string]Value, len(v))
		for k, el := range v {
			ev, err := ValueOf(el)
			if err != nil {
				return Value{}, fmt.Errorf("%q: %w", k, err)
			}
			obj[k] = ev
		}
		return ObjectValue(obj), nil
	default:
		return Value{}, fmt.Errorf("okv: cannot store %T: %w", src, UnsupportedKind)
	}
}

// ValueAs converts v into T without coercion: the kind must match the
// destination type and integers must fit its width. T may be Value, any, a
// ValueUnmarshaler, or any type ValueOf accepts.
func ValueAs[T any](v Value) (T, error) {
	var out T
	err := v.assignTo(&out)
	return out, err
}

func (v Value) mismatch(dest any) error {
	return decodeErrf(ShapeMismatch, nil, 0, nil, "cannot convert %v value into %T", v.kind, dest)
}

func (v Value) assignTo(dest any) error {
	if u, ok := dest.(ValueUnmarshaler); ok {
		if err := u.UnmarshalValue(v); err != nil {
			return decodeErrf(ShapeMismatch, nil, 0, err, "%T", dest)
		}
		return nil
	}
	switch p := dest.(type) {
	case *Value:
		*p = v
	case *any:
		*p = v.Interface()
	case *bool:
		b, ok := v.Bool()
		if !ok {
			return v.mismatch(dest)
		}
		*p = b
	case *int:
		i, err := v.signed(dest, math.MinInt, math.MaxInt)
		*p = int(i)
		return err
	case *int8:
		i, err := v.signed(dest, math.MinInt8, math.MaxInt8)
		*p = int8(i)
		return err
	case *int16:
		i, err := v.signed(dest, math.MinInt16, math.MaxInt16)
		*p = int16(i)
		return err
	case *int32:
		i, err := v.signed(dest, math.MinInt32, math.MaxInt32)
		*p = int32(i)
		return err
	case *int64:
		i, err := v.signed(dest, math.MinInt64, math.MaxInt64)
		*p = i
		return err
	case *uint:
		u, err := v.unsigned(dest, math.MaxUint)
		*p = uint(u)
		return err
	case *uint8:
		u, err := v.unsigned(dest, math.MaxUint8)
		*p = uint8(u)
		return err
	case *uint16:
		u, err := v.unsigned(dest, math.MaxUint16)
		*p = uint16(u)
		return err
	case *uint32:
		u, err := v.unsigned(dest, math.MaxUint32)
		*p = uint32(u)
		return err
	case *uint64:
		u, err := v.unsigned(dest, math.MaxUint64)
		*p = u
		return err
	case *float64:
		f, ok := v.Float()
		if !ok {
			return v.mismatch(dest)
		}
		*p = f
	case *float32:
		f, ok := v.Float()
		if !ok {
			return v.mismatch(dest)
		}
		if f32 := float32(f); float64(f32) == f || math.IsNaN(f) {
			*p = f32
		} else {
			return decodeErrf(ShapeMismatch, nil, 0, nil, "%v does not fit float32", f)
		}
	case *string:
		s, ok := v.Text()
		if !ok {
			return v.mismatch(dest)
		}
		*p = s
	case *[]byte:
		b, ok := v.Binary()
		if !ok {
			return v.mismatch(dest)
		}
		*p = b
	case *[]Value:
		arr, ok := v.Array()
		if !ok {
			return v.mismatch(dest)
		}
		*p = arr
	case *[]any:
		if v.kind != ValArray {
			return v.mismatch(dest)
		}
		*p = v.Interface().([]any)
	case *map[string]Value:
		obj, ok := v.Object()
		if !ok {
			return v.mismatch(dest)
		}
		*p = obj
	case *map[string]any:
		if v.kind != ValObject {
			return v.mismatch(dest)
		}
		*p = v.Interface().(map[string]any)
	default:
		return fmt.Errorf("okv: cannot decode a value into %T: %w", dest, UnsupportedKind)
	}
	return nil
}

func (v Value) signed(dest any, lo, hi int64) (int64, error) {
	i, ok := v.Int()
	if !ok {
		return 0, v.mismatch(dest)
	}
	if i < lo || i > hi {
		return 0, decodeErrf(ShapeMismatch, nil, 0, nil, "%d overflows %T", i, dest)
	}
	return i, nil
}

func (v Value) unsigned(dest any, hi uint64) (uint64, error) {
	u, ok := v.Uint()
	if !ok {
		return 0, v.mismatch(dest)
	}
	if u > hi {
		return 0, decodeErrf(ShapeMismatch, nil, 0, nil, "%d overflows %T", u, dest)
	}
	return u, nil
}
