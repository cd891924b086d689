package okv

import (
	"bytes"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
)

// ValueKind is the logical type recorded in a value's envelope.
type ValueKind uint8

const (
	ValNull ValueKind = iota
	ValBool
	ValInt
	ValUint
	ValFloat
	ValText
	ValBinary
	ValArray
	ValObject

	maxValueKind = ValObject
)

func (k ValueKind) String() string {
	switch k {
	case ValNull:
		return "null"
	case ValBool:
		return "bool"
	case ValInt:
		return "int"
	case ValUint:
		return "uint"
	case ValFloat:
		return "float"
	case ValText:
		return "text"
	case ValBinary:
		return "binary"
	case ValArray:
		return "array"
	case ValObject:
		return "object"
	default:
		return fmt.Sprintf("ValueKind(%d)", uint8(k))
	}
}

// Value is a self-describing stored value. The zero Value is null.
type Value struct {
	kind ValueKind
	num  uint64 // bool, int, uint and float bits
	str  string
	bin  []byte
	arr  []Value
	obj  map[string]Value
}

func NullValue() Value            { return Value{} }
func BoolValue(v bool) Value      { return Value{kind: ValBool, num: uint64(boolByte(v))} }
func IntValue(v int64) Value      { return Value{kind: ValInt, num: uint64(v)} }
func UintValue(v uint64) Value    { return Value{kind: ValUint, num: v} }
func FloatValue(v float64) Value  { return Value{kind: ValFloat, num: math.Float64bits(v)} }
func TextValue(v string) Value    { return Value{kind: ValText, str: v} }
func BinaryValue(v []byte) Value  { return Value{kind: ValBinary, bin: v} }
func ArrayValue(v ...Value) Value { return Value{kind: ValArray, arr: v} }

func ObjectValue(v map[string]Value) Value {
	if v == nil {
		v = map[string]Value{}
	}
	return Value{kind: ValObject, obj: v}
}

func (v Value) Kind() ValueKind { return v.kind }
func (v Value) IsNull() bool    { return v.kind == ValNull }

func (v Value) Bool() (bool, bool)     { return v.num != 0, v.kind == ValBool }
func (v Value) Int() (int64, bool)     { return int64(v.num), v.kind == ValInt }
func (v Value) Uint() (uint64, bool)   { return v.num, v.kind == ValUint }
func (v Value) Float() (float64, bool) { return math.Float64frombits(v.num), v.kind == ValFloat }
func (v Value) Text() (string, bool)   { return v.str, v.kind == ValText }
func (v Value) Binary() ([]byte, bool) { return v.bin, v.kind == ValBinary }
func (v Value) Array() ([]Value, bool) { return v.arr, v.kind == ValArray }
func (v Value) Object() (map[string]Value, bool) {
	return v.obj, v.kind == ValObject
}

// Equal reports value equality. Floats are compared by bit pattern, so NaN
// equals an identical NaN; nil and empty binaries are equal.
func (v Value) Equal(another Value) bool {
	if v.kind != another.kind {
		return false
	}
	switch v.kind {
	case ValNull:
		return true
	case ValBool, ValInt, ValUint, ValFloat:
		return v.num == another.num
	case ValText:
		return v.str == another.str
	case ValBinary:
		return bytes.Equal(v.bin, another.bin)
	case ValArray:
		return slices.EqualFunc(v.arr, another.arr, Value.Equal)
	case ValObject:
		if len(v.obj) != len(another.obj) {
			return false
		}
		for k, a := range v.obj {
			b, ok := another.obj[k]
			if !ok || !a.Equal(b) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// Interface returns the value as plain Go data: nil, bool, int64, uint64,
// float64, string, []byte, []any or map[string]any.
func (v Value) Interface() any {
	switch v.kind {
	case ValBool:
		return v.num != 0
	case ValInt:
		return int64(v.num)
	case ValUint:
		return v.num
	case ValFloat:
		return math.Float64frombits(v.num)
	case ValText:
		return v.str
	case ValBinary:
		return v.bin
	case ValArray:
		out := make([]any, len(v.arr))
		for i, el := range v.arr {
			out[i] = el.Interface()
		}
		return out
	case ValObject:
		out := make(map[string]any, len(v.obj))
		for k, el := range v.obj {
			out[k] = el.Interface()
		}
		return out
	default:
		return nil
	}
}

func (v Value) String() string {
	var buf strings.Builder
	v.writeString(&buf)
	return buf.String()
}

func (v Value) writeString(buf *strings.Builder) {
	switch v.kind {
	case ValNull:
		buf.WriteString("null")
	case ValBool:
		buf.WriteString(strconv.FormatBool(v.num != 0))
	case ValInt:
		buf.WriteString(strconv.FormatInt(int64(v.num), 10))
	case ValUint:
		buf.WriteString(strconv.FormatUint(v.num, 10))
		buf.WriteByte('u')
	case ValFloat:
		buf.WriteString(strconv.FormatFloat(math.Float64frombits(v.num), 'g', -1, 64))
	case ValText:
		buf.WriteString(strconv.Quote(v.str))
	case ValBinary:
		fmt.Fprintf(buf, "0x%x", v.bin)
	case ValArray:
		buf.WriteByte('[')
		for i, el := range v.arr {
			if i > 0 {
				buf.WriteString(", ")
			}
			el.writeString(buf)
		}
		buf.WriteByte(']')
	case ValObject:
		buf.WriteByte('{')
		for i, k := range sortedKeys(v.obj) {
			if i > 0 {
				buf.WriteString(", ")
			}
			buf.WriteString(strconv.Quote(k))
			buf.WriteString(": ")
			v.obj[k].writeString(buf)
		}
		buf.WriteByte('}')
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
