package okv

import (
	"bytes"
	"encoding/hex"
	"errors"
	"math"
	"testing"
)

func TestKeyEncoding(t *testing.T) {
	tests := []struct {
		input    Tuple
		expected string
	}{
		{Tuple{false}, "1000"},
		{Tuple{true}, "1001"},
		{Tuple{uint8(5)}, "2005"},
		{Tuple{uint16(0x0102)}, "210102"},
		{Tuple{uint32(1)}, "2200000001"},
		{Tuple{uint64(1)}, "230000000000000001"},
		{Tuple{uint(7)}, "230000000000000007"},
		{Tuple{int8(-1)}, "287f"},
		{Tuple{int8(0)}, "2880"},
		{Tuple{int16(-2)}, "297ffe"},
		{Tuple{int32(1)}, "2a80000001"},
		{Tuple{int64(-1)}, "2b7fffffffffffffff"},
		{Tuple{5}, "2b8000000000000005"},
		{Tuple{""}, "300001"},
		{Tuple{"a"}, "30610001"},
		{Tuple{"a\x00b"}, "306100ff620001"},
		{Tuple{"\x00"}, "3000ff0001"},
		{Tuple{Tuple{}}, "4000"},
		{Tuple{Tuple{"x"}}, "4030780001" + "00"},
		{Tuple{"user", uint64(1)}, "30757365720001" + "230000000000000001"},
		{Tuple{Tuple{uint8(1), Tuple{true}}, "z"}, "40" + "2001" + "40" + "1001" + "00" + "00" + "307a0001"},
		{Tuple{}, ""},
	}
	for _, tt := range tests {
		k, err := tt.input.Key()
		if err != nil {
			t.Errorf("** %v.Key() failed: %v", tt.input, err)
			continue
		}
		if actual := hex.EncodeToString(k); actual != tt.expected {
			t.Errorf("** %v.Key() = %s, wanted %s", tt.input, actual, tt.expected)
			continue
		}
		decoded, err := DecodeKey(k)
		if err != nil {
			t.Errorf("** DecodeKey(%s) failed: %v", tt.expected, err)
			continue
		}
		if !decoded.Equal(tt.input) {
			t.Errorf("** DecodeKey(%s) = %v, wanted %v", tt.expected, decoded, tt.input)
		}
	}
}

func TestKeyEncoding_roundTripTypes(t *testing.T) {
	tup := Tuple{
		true, uint8(math.MaxUint8), uint16(math.MaxUint16), uint32(math.MaxUint32), uint64(math.MaxUint64),
		int8(math.MinInt8), int16(math.MinInt16), int32(math.MinInt32), int64(math.MinInt64),
		"héllo\x00wörld", Tuple{"nested", Tuple{int8(-3)}},
	}
	decoded := must(DecodeKey(MustKey(tup...)))
	deepEqual(t, decoded, tup)
}

func TestKeyEncoding_intAndUintDecodeAsWide(t *testing.T) {
	decoded := must(DecodeKey(MustKey(42, uint(43))))
	deepEqual(t, decoded, Tuple{int64(42), uint64(43)})
}

// keysInOrder lists tuples in ascending logical order.
var keysInOrder = []Tuple{
	{false},
	{true},
	{true, false},
	{uint8(0)},
	{uint8(255)},
	{uint16(0)},
	{uint16(1000)},
	{uint32(0)},
	{uint64(0)},
	{uint64(math.MaxUint64)},
	{int8(math.MinInt8)},
	{int8(-1)},
	{int8(0)},
	{int8(math.MaxInt8)},
	{int16(-300)},
	{int32(math.MinInt32)},
	{int64(math.MinInt64)},
	{int64(-1)},
	{int64(0)},
	{int64(1)},
	{int64(math.MaxInt64)},
	{""},
	{"", uint8(0)},
	{"", ""},
	{"\x00"},
	{"\x00\x00"},
	{"\x01"},
	{"a"},
	{"a", false},
	{"a", "b"},
	{"a", Tuple{}},
	{"a\x00"},
	{"a\x00", "z"},
	{"ab"},
	{"b"},
	{"é"},
	{Tuple{}},
	{Tuple{}, "z"},
	{Tuple{"a"}},
	{Tuple{"a"}, uint8(1)},
	{Tuple{"a", uint8(1)}},
	{Tuple{"b"}},
	{Tuple{Tuple{}}},
}

func TestKeyEncoding_orderPreserving(t *testing.T) {
	for i := 1; i < len(keysInOrder); i++ {
		a, b := keysInOrder[i-1], keysInOrder[i]
		if c := CompareTuples(a, b); c != -1 {
			t.Errorf("** CompareTuples(%v, %v) = %d, wanted -1", a, b, c)
		}
		if c := CompareTuples(b, a); c != 1 {
			t.Errorf("** CompareTuples(%v, %v) = %d, wanted 1", b, a, c)
		}
		ka, kb := MustKey(a...), MustKey(b...)
		if bytes.Compare(ka, kb) != -1 {
			t.Errorf("** key(%v) = %x is not below key(%v) = %x", a, []byte(ka), b, []byte(kb))
		}
	}
}

func TestKeyEncoding_orderOfAllPairs(t *testing.T) {
	for i, a := range keysInOrder {
		for j, b := range keysInOrder {
			want := 0
			if i < j {
				want = -1
			} else if i > j {
				want = 1
			}
			if c := MustKey(a...).Compare(MustKey(b...)); c != want {
				t.Errorf("** key(%v) vs key(%v) = %d, wanted %d", a, b, c, want)
			}
		}
	}
}

func TestKeyEncoding_prefixContainment(t *testing.T) {
	p := MustKey("user")
	extending := []Tuple{
		{"user"},
		{"user", uint64(1)},
		{"user", "x", Tuple{}},
	}
	for _, tup := range extending {
		if !MustKey(tup...).HasPrefix(p) {
			t.Errorf("** key(%v) does not start with key(user)", tup)
		}
	}
	other := []Tuple{
		{"use"},
		{"username"},
		{"user\x00"},
		{"user\x00", uint64(1)},
		{Tuple{"user"}},
		{"users", uint64(1)},
	}
	for _, tup := range other {
		if MustKey(tup...).HasPrefix(p) {
			t.Errorf("** key(%v) starts with key(user), wanted it not to", tup)
		}
	}
}

func TestKeyEncoding_textEscapes(t *testing.T) {
	for _, s := range []string{"\x00", "a\x00", "\x00\x01", "x\x00\x00y", "\x01"} {
		k := MustKey(s, uint8(9))
		deepEqual(t, must(DecodeKey(k)), Tuple{s, uint8(9)})
		if bytes.Contains(k[1:len(k)-4], []byte{0x00, 0x01}) {
			t.Errorf("** key(%q) = %x contains a terminator before the end of the text", s, []byte(k))
		}
	}
}

func TestKeyEncoding_errors(t *testing.T) {
	_, err := NewKey(3.14)
	if !errors.Is(err, UnsupportedKind) {
		t.Errorf("** NewKey(float) err = %v, wanted UnsupportedKind", err)
	}
	_, err = NewKey("ok", []string{"x"})
	if !errors.Is(err, UnsupportedKind) {
		t.Errorf("** NewKey(slice) err = %v, wanted UnsupportedKind", err)
	}
	_, err = NewKey("\xff")
	if !errors.Is(err, UnsupportedKind) {
		t.Errorf("** NewKey(invalid UTF-8) err = %v, wanted UnsupportedKind", err)
	}

	deep := Tuple{}
	for i := 0; i < maxKeyDepth+2; i++ {
		deep = Tuple{deep}
	}
	if _, err := deep.Key(); err == nil {
		t.Errorf("** deeply nested key encoded without error")
	}

	assertPanics(t, func() {
		MustKey(struct{}{})
	})
}

func TestAppendKey(t *testing.T) {
	buf := []byte{0xAA}
	buf = must(AppendKey(buf, true, uint8(1)))
	deepEqual(t, buf, x("AA 1001 2001"))
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		el   any
		kind ElemKind
	}{
		{true, KindBool},
		{uint8(1), KindUint8},
		{uint(1), KindUint64},
		{1, KindInt64},
		{int16(1), KindInt16},
		{"s", KindText},
		{Tuple{}, KindTuple},
	}
	for _, tt := range tests {
		kind, ok := KindOf(tt.el)
		if !ok || kind != tt.kind {
			t.Errorf("** KindOf(%T) = %v, %v, wanted %v", tt.el, kind, ok, tt.kind)
		}
	}
	if _, ok := KindOf(1.5); ok {
		t.Errorf("** KindOf(float64) ok = true, wanted false")
	}
	deepEqual(t, KindInt32.String(), "i32")
	deepEqual(t, ElemKind(0x99).String(), "ElemKind(0x99)")
}
