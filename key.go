package okv

import (
	"bytes"
	"cmp"
	"fmt"
)

// Key is the canonical, order-preserving encoding of a Tuple.
type Key []byte

// Tuple is an ordered sequence of key elements. Supported element types are
// bool, uint8, uint16, uint32, uint64, int8, int16, int32, int64, string and
// a nested Tuple. int and uint are accepted when encoding and come back as
// int64 and uint64.
type Tuple []any

// Keyer is implemented by domain types usable as keys.
type Keyer interface {
	KeyTuple() Tuple
}

// KeyUnmarshaler is implemented by domain types that can be rebuilt from a
// decoded key.
type KeyUnmarshaler interface {
	UnmarshalKeyTuple(tup Tuple) error
}

// ElemKind identifies the type of a key element. The numeric value of each
// kind is its tag byte in the encoding.
type ElemKind byte

const (
	tagTupleEnd byte = 0x00

	KindBool   ElemKind = 0x10
	KindUint8  ElemKind = 0x20
	KindUint16 ElemKind = 0x21
	KindUint32 ElemKind = 0x22
	KindUint64 ElemKind = 0x23
	KindInt8   ElemKind = 0x28
	KindInt16  ElemKind = 0x29
	KindInt32  ElemKind = 0x2A
	KindInt64  ElemKind = 0x2B
	KindText   ElemKind = 0x30
	KindTuple  ElemKind = 0x40

	textEscape     byte = 0x00
	textEscapedNul byte = 0xFF
	textTerminator byte = 0x01

	maxKeyDepth = 64
)

func (k ElemKind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindUint8:
		return "u8"
	case KindUint16:
		return "u16"
	case KindUint32:
		return "u32"
	case KindUint64:
		return "u64"
	case KindInt8:
		return "i8"
	case KindInt16:
		return "i16"
	case KindInt32:
		return "i32"
	case KindInt64:
		return "i64"
	case KindText:
		return "text"
	case KindTuple:
		return "tuple"
	default:
		return fmt.Sprintf("ElemKind(0x%02x)", byte(k))
	}
}

func (k ElemKind) valid() bool {
	switch k {
	case KindBool, KindUint8, KindUint16, KindUint32, KindUint64,
		KindInt8, KindInt16, KindInt32, KindInt64, KindText, KindTuple:
		return true
	default:
		return false
	}
}

// KindOf returns the kind an element would be encoded as, and false for
// unsupported types.
func KindOf(el any) (ElemKind, bool) {
	switch el.(type) {
	case bool:
		return KindBool, true
	case uint8:
		return KindUint8, true
	case uint16:
		return KindUint16, true
	case uint32:
		return KindUint32, true
	case uint64, uint:
		return KindUint64, true
	case int8:
		return KindInt8, true
	case int16:
		return KindInt16, true
	case int32:
		return KindInt32, true
	case int64, int:
		return KindInt64, true
	case string:
		return KindText, true
	case Tuple:
		return KindTuple, true
	default:
		return 0, false
	}
}

// Key encodes the tuple.
func (tup Tuple) Key() (Key, error) {
	buf, err := appendTuple(nil, tup, 0)
	if err != nil {
		return nil, err
	}
	return Key(buf), nil
}

func (tup Tuple) String() string {
	var buf bytes.Buffer
	writeTupleString(&buf, tup)
	return buf.String()
}

func (tup Tuple) Equal(another Tuple) bool {
	return CompareTuples(tup, another) == 0
}

// CompareTuples defines the logical order preserved by the key encoding:
// elements are compared pairwise, first by kind (bool < unsigned < signed <
// text < tuple, narrower integer widths first), then by value; a tuple that
// is a strict prefix of another sorts first.
func CompareTuples(a, b Tuple) int {
	n := min(len(a), len(b))
	for i := 0; i < n; i++ {
		if c := compareElems(a[i], b[i]); c != 0 {
			return c
		}
	}
	return cmp.Compare(len(a), len(b))
}

func compareElems(a, b any) int {
	ka, oka := KindOf(a)
	kb, okb := KindOf(b)
	if !oka || !okb {
		panic(fmt.Errorf("okv: cannot compare %T and %T", a, b))
	}
	if ka != kb {
		return cmp.Compare(ka, kb)
	}
	switch ka {
	case KindBool:
		return cmp.Compare(boolByte(a.(bool)), boolByte(b.(bool)))
	case KindUint8, KindUint16, KindUint32, KindUint64:
		return cmp.Compare(uintOf(a), uintOf(b))
	case KindInt8, KindInt16, KindInt32, KindInt64:
		return cmp.Compare(intOf(a), intOf(b))
	case KindText:
		return cmp.Compare(a.(string), b.(string))
	case KindTuple:
		return CompareTuples(a.(Tuple), b.(Tuple))
	default:
		panic("unreachable")
	}
}

func boolByte(v bool) byte {
	if v {
		return 1
	}
	return 0
}

func uintOf(el any) uint64 {
	switch v := el.(type) {
	case uint8:
		return uint64(v)
	case uint16:
		return uint64(v)
	case uint32:
		return uint64(v)
	case uint64:
		return v
	case uint:
		return uint64(v)
	default:
		panic(fmt.Errorf("okv: %T is not unsigned", el))
	}
}

func intOf(el any) int64 {
	switch v := el.(type) {
	case int8:
		return int64(v)
	case int16:
		return int64(v)
	case int32:
		return int64(v)
	case int64:
		return v
	case int:
		return int64(v)
	default:
		panic(fmt.Errorf("okv: %T is not signed", el))
	}
}

// NewKey encodes elems as a tuple key.
func NewKey(elems ...any) (Key, error) {
	return Tuple(elems).Key()
}

// MustKey is NewKey that panics on unsupported elements.
func MustKey(elems ...any) Key {
	return must(NewKey(elems...))
}

// KeyOf turns a key source into a Key. Accepted sources are Key, Tuple,
// Keyer, or a single supported element (encoded as a one-element tuple).
func KeyOf(src any) (Key, error) {
	if k, ok := src.(Key); ok {
		return k, nil
	}
	k, err := appendKeyOf(nil, src)
	return Key(k), err
}

func (k Key) Equal(another Key) bool {
	return bytes.Equal(k, another)
}

func (k Key) Compare(another Key) int {
	return bytes.Compare(k, another)
}

// HasPrefix reports whether k extends the tuple encoded by prefix.
func (k Key) HasPrefix(prefix Key) bool {
	return bytes.HasPrefix(k, prefix)
}

func (k Key) Clone() Key {
	if k == nil {
		return nil
	}
	return append(Key(nil), k...)
}

// Tuple decodes the key without an expected shape.
func (k Key) Tuple() (Tuple, error) {
	return DecodeKey(k)
}

// Expect decodes the key and verifies that its elements have the given
// kinds. Nested tuples are checked only for being tuples.
func (k Key) Expect(shape ...ElemKind) (Tuple, error) {
	tup, err := DecodeKey(k)
	if err != nil {
		return nil, err
	}
	if len(tup) != len(shape) {
		return nil, decodeErrf(ShapeMismatch, k, 0, nil, "got %d elements, wanted %d", len(tup), len(shape))
	}
	for i, el := range tup {
		kind, _ := KindOf(el)
		if kind != shape[i] {
			return nil, decodeErrf(ShapeMismatch, k, 0, nil, "element %d is %v, wanted %v", i, kind, shape[i])
		}
	}
	return tup, nil
}

// Scan decodes the key into typed destinations, one per element. A
// KeyUnmarshaler destination consumes the whole tuple and must be the only
// one.
func (k Key) Scan(dest ...any) error {
	tup, err := DecodeKey(k)
	if err != nil {
		return err
	}
	if len(dest) == 1 {
		if u, ok := dest[0].(KeyUnmarshaler); ok {
			if err := u.UnmarshalKeyTuple(tup); err != nil {
				return decodeErrf(ShapeMismatch, k, 0, err, "%T", dest[0])
			}
			return nil
		}
	}
	if len(tup) != len(dest) {
		return decodeErrf(ShapeMismatch, k, 0, nil, "got %d elements, wanted %d", len(tup), len(dest))
	}
	for i, el := range tup {
		if !assignElem(dest[i], el) {
			return decodeErrf(ShapeMismatch, k, 0, nil, "cannot scan element %d (%T) into %T", i, el, dest[i])
		}
	}
	return nil
}

func assignElem(dest, el any) bool {
	switch p := dest.(type) {
	case *any:
		*p = el
		return true
	case *bool:
		v, ok := el.(bool)
		*p = v
		return ok
	case *uint8:
		v, ok := el.(uint8)
		*p = v
		return ok
	case *uint16:
		v, ok := el.(uint16)
		*p = v
		return ok
	case *uint32:
		v, ok := el.(uint32)
		*p = v
		return ok
	case *uint64:
		v, ok := el.(uint64)
		*p = v
		return ok
	case *int8:
		v, ok := el.(int8)
		*p = v
		return ok
	case *int16:
		v, ok := el.(int16)
		*p = v
		return ok
	case *int32:
		v, ok := el.(int32)
		*p = v
		return ok
	case *int64:
		v, ok := el.(int64)
		*p = v
		return ok
	case *string:
		v, ok := el.(string)
		*p = v
		return ok
	case *Tuple:
		v, ok := el.(Tuple)
		*p = v
		return ok
	default:
		return false
	}
}

func (k Key) String() string {
	tup, err := DecodeKey(k)
	if err != nil {
		return "<invalid key " + hexstr(k) + ">"
	}
	return tup.String()
}
