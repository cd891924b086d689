package okv

import (
	"errors"
	"strings"
	"testing"
)

func TestDecodeKey_errors(t *testing.T) {
	tests := []struct {
		input    string
		expected DecodeErrorKind
	}{
		{"30 61", Truncated},
		{"30 61 00", Truncated},
		{"30 61 00 02", Corrupt},
		{"30 ff 00 01", Corrupt},
		{"10", Truncated},
		{"10 02", Corrupt},
		{"22 0000", Truncated},
		{"2b 80", Truncated},
		{"99", UnknownTag},
		{"00", UnknownTag},
		{"2001 ee", UnknownTag},
		{"40 30 61 00 01", Truncated},
		{"40", Truncated},
		{strings.Repeat("40", maxKeyDepth+10), Corrupt},
	}
	for _, tt := range tests {
		_, err := DecodeKey(x(tt.input))
		if !errors.Is(err, tt.expected) {
			t.Errorf("** DecodeKey(%s) err = %v, wanted %v", tt.input, err, tt.expected)
		}
		var de *DecodeError
		if !errors.As(err, &de) {
			t.Errorf("** DecodeKey(%s) err is %T, wanted *DecodeError", tt.input, err)
		}
	}
}

func TestDecodeKey_errorOffset(t *testing.T) {
	_, err := DecodeKey(x("2001 ee"))
	var de *DecodeError
	if !errors.As(err, &de) {
		t.Fatalf("** err = %v, wanted *DecodeError", err)
	}
	deepEqual(t, de.Off, 2)
}

func TestDecodeKey_empty(t *testing.T) {
	tup, err := DecodeKey(nil)
	if err != nil {
		t.Fatal(err)
	}
	deepEqual(t, len(tup), 0)
}

func TestKey_Expect(t *testing.T) {
	k := MustKey("user", uint64(1), Tuple{true})
	tup, err := k.Expect(KindText, KindUint64, KindTuple)
	if err != nil {
		t.Fatal(err)
	}
	deepEqual(t, tup, Tuple{"user", uint64(1), Tuple{true}})

	_, err = k.Expect(KindText, KindUint64)
	if !errors.Is(err, ShapeMismatch) {
		t.Errorf("** Expect with fewer kinds err = %v, wanted ShapeMismatch", err)
	}
	_, err = k.Expect(KindText, KindInt64, KindTuple)
	if !errors.Is(err, ShapeMismatch) {
		t.Errorf("** Expect with wrong kind err = %v, wanted ShapeMismatch", err)
	}
	_, err = Key(x("99")).Expect(KindText)
	if !errors.Is(err, UnknownTag) {
		t.Errorf("** Expect on a bad key err = %v, wanted UnknownTag", err)
	}
}

func TestKey_Scan(t *testing.T) {
	k := MustKey("user", uint64(42), int8(-1), Tuple{"x"})

	var name string
	var id uint64
	var delta int8
	var sub Tuple
	if err := k.Scan(&name, &id, &delta, &sub); err != nil {
		t.Fatal(err)
	}
	deepEqual(t, name, "user")
	deepEqual(t, id, uint64(42))
	deepEqual(t, delta, int8(-1))
	deepEqual(t, sub, Tuple{"x"})

	var anything any
	if err := k.Scan(&name, &id, &anything, &sub); err != nil {
		t.Fatal(err)
	}
	deepEqual(t, anything, any(int8(-1)))

	var wide int64
	err := k.Scan(&name, &id, &wide, &sub)
	if !errors.Is(err, ShapeMismatch) {
		t.Errorf("** Scan into a wider int err = %v, wanted ShapeMismatch", err)
	}
	err = k.Scan(&name, &id)
	if !errors.Is(err, ShapeMismatch) {
		t.Errorf("** Scan into fewer destinations err = %v, wanted ShapeMismatch", err)
	}
}

type userKey struct {
	Name string
	ID   uint64
}

func (k userKey) KeyTuple() Tuple {
	return Tuple{"user", k.Name, k.ID}
}

func (k *userKey) UnmarshalKeyTuple(tup Tuple) error {
	if len(tup) != 3 || tup[0] != "user" {
		return errors.New("not a user key")
	}
	name, ok1 := tup[1].(string)
	id, ok2 := tup[2].(uint64)
	if !ok1 || !ok2 {
		return errors.New("bad user key elements")
	}
	k.Name, k.ID = name, id
	return nil
}

func TestKey_ScanKeyUnmarshaler(t *testing.T) {
	k := must(KeyOf(userKey{"bob", 7}))
	deepEqual(t, k, MustKey("user", "bob", uint64(7)))

	var uk userKey
	if err := k.Scan(&uk); err != nil {
		t.Fatal(err)
	}
	deepEqual(t, uk, userKey{"bob", 7})

	err := MustKey("group", "bob", uint64(7)).Scan(&uk)
	if !errors.Is(err, ShapeMismatch) {
		t.Errorf("** Scan of a foreign key err = %v, wanted ShapeMismatch", err)
	}
}

func TestKeyOf(t *testing.T) {
	deepEqual(t, must(KeyOf("a")), MustKey("a"))
	deepEqual(t, must(KeyOf(Tuple{"a", 1})), MustKey("a", 1))
	raw := MustKey("z")
	deepEqual(t, must(KeyOf(raw)), raw)
	if _, err := KeyOf(1.5); !errors.Is(err, UnsupportedKind) {
		t.Errorf("** KeyOf(float) err = %v, wanted UnsupportedKind", err)
	}
}
