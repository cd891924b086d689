package okv

import (
	"encoding/json"
	"errors"
	"math"
	"strings"
	"testing"
)

func TestDump(t *testing.T) {
	s := setup(t)
	ensure(s.Set(Tuple{"user", uint64(1)}, "alice"))
	ensure(s.Set(Tuple{"n", -5}, -5))
	ensure(s.Set(Tuple{"z", true}, map[string]any{"tags": []any{uint8(1), nil}, "ok": false}))

	expected := `{
  "(\"n\", -5i64)": {"int":"-5"},
  "(\"user\", 1u64)": {"text":"alice"},
  "(\"z\", true)": {"object":{"ok":{"bool":false},"tags":{"array":[{"uint":"1"},{"null":true}]}}}
}
`
	deepEqual(t, must(s.DumpString()), expected)
}

func TestDump_empty(t *testing.T) {
	s := setup(t)
	deepEqual(t, must(s.DumpString()), "{}\n")
}

func TestDump_corruptEntry(t *testing.T) {
	s := setup(t)
	ensure(s.Set("a", 1))
	ensure(s.Backend().Set(MustKey("b"), x("00")))
	if _, err := s.DumpString(); err == nil {
		t.Fatalf("** DumpString succeeded over a corrupt entry")
	}
}

func TestDumpRestore_roundTrip(t *testing.T) {
	s := setup(t)
	keys := []Tuple{
		{"text", "a\x00b\"c"},
		{"ints", int8(-1), int16(2), int32(-3), int64(4)},
		{"uints", uint8(1), uint16(2), uint32(3), uint64(math.MaxUint64)},
		{"bools", true, false},
		{"nested", Tuple{"x", Tuple{}}, Tuple{}},
	}
	for i, k := range keys {
		ensure(s.Set(k, sampleValues[i]))
	}
	for i, v := range sampleValues {
		ensure(s.Set(Tuple{"sample", uint16(i)}, v))
	}

	dump := must(s.DumpString())
	restored := must(RestoreString(dump, NewMemory(), Options{}))
	defer restored.Close()

	original := must(s.List().Entries())
	copied := must(restored.List().Entries())
	if len(copied) != len(original) {
		t.Fatalf("** restored %d entries, wanted %d", len(copied), len(original))
	}
	for i := range original {
		if !copied[i].Key.Equal(original[i].Key) {
			t.Errorf("** key %d = %v, wanted %v", i, copied[i].Key, original[i].Key)
		}
		if !copied[i].Value.Equal(original[i].Value) {
			t.Errorf("** value of %v = %v, wanted %v", original[i].Key, copied[i].Value, original[i].Value)
		}
	}
	deepEqual(t, must(restored.DumpString()), dump)
}

func TestDump_textStaysLossless(t *testing.T) {
	s := setup(t)
	if err := s.Set("k", "\xff\xfe"); !errors.Is(err, UnsupportedKind) {
		t.Errorf("** Set(invalid UTF-8 text) err = %v, wanted UnsupportedKind", err)
	}
	if err := s.Set("o", map[string]any{"\xff": 1}); !errors.Is(err, UnsupportedKind) {
		t.Errorf("** Set(invalid UTF-8 member name) err = %v, wanted UnsupportedKind", err)
	}
	ensure(s.Set("ok", map[string]any{"ключ": "значение\x00"}))

	dump := must(s.DumpString())
	deepEqual(t, dump, "{\n  \"(\\\"ok\\\")\": {\"object\":{\"ключ\":{\"text\":\"значение\\u0000\"}}}\n}\n")
	restored := must(RestoreString(dump, NewMemory(), Options{}))
	v, ok, err := restored.Get("ok")
	if err != nil || !ok {
		t.Fatalf("** Get(ok) = %v, %v", ok, err)
	}
	want := ObjectValue(map[string]Value{"ключ": TextValue("значение\x00")})
	if !v.Equal(want) {
		t.Errorf("** restored %v, wanted %v", v, want)
	}
}

func TestRestore_errors(t *testing.T) {
	inputs := []string{
		`not json`,
		`{"(1)": {"int":"1"}}`,
		`{"(\"a\")": {"int":"x"}}`,
		`{"(\"a\")": {"uint":"-1"}}`,
		`{"(\"a\")": {"int":"1", "uint":"1"}}`,
		`{"(\"a\")": {"wat":1}}`,
		`{"(\"a\")": {"binary":"!!"}}`,
		`{"(\"a\")": {"array":[{"int":1}]}}`,
		`{"()": {"null":true}}`,
		`{"(\"a\")": {"int":"1"}} x`,
		`{"(\"a\")": {"int":"1"}} {}`,
		`{"(\"a\")": {"int":"1"}}}`,
	}
	for _, input := range inputs {
		if _, err := RestoreString(input, NewMemory(), Options{}); err == nil {
			t.Errorf("** RestoreString(%s) succeeded, wanted an error", input)
		}
	}
}

func TestRestore_keepsExisting(t *testing.T) {
	b := NewMemory()
	s := New(b, Options{})
	ensure(s.Set("old", 1))
	ensure(s.Set("both", 1))

	restored := must(RestoreString(`{"(\"both\")": {"int":"2"}, "(\"new\")": {"float":"NaN"}}`, b, Options{}))
	deepEqual(t, mustGet[int64](t, restored, "old"), int64(1))
	deepEqual(t, mustGet[int64](t, restored, "both"), int64(2))
	if f := mustGet[float64](t, restored, "new"); !math.IsNaN(f) {
		t.Errorf("** restored float = %v, wanted NaN", f)
	}
	if !strings.Contains(must(restored.DumpString()), `{"float":"NaN"}`) {
		t.Errorf("** NaN did not survive the dump")
	}
}

func TestValueJSON(t *testing.T) {
	v := ObjectValue(map[string]Value{
		"n":    IntValue(-5),
		"tags": ArrayValue(TextValue("a"), NullValue()),
	})
	data := must(json.Marshal(v))
	deepEqual(t, string(data), `{"object":{"n":{"int":"-5"},"tags":{"array":[{"text":"a"},{"null":true}]}}}`)

	parsed := must(ParseValue(string(data)))
	if !parsed.Equal(v) {
		t.Errorf("** ParseValue = %v, wanted %v", parsed, v)
	}

	var wrapped struct{ V Value }
	ensure(json.Unmarshal([]byte(`{"V": {"uint":"7"}}`), &wrapped))
	deepEqual(t, wrapped.V.String(), UintValue(7).String())

	for _, input := range []string{`5`, `{}`, `{"int":5}`, `{"float":"x"}`} {
		if _, err := ParseValue(input); err == nil {
			t.Errorf("** ParseValue(%s) succeeded, wanted an error", input)
		}
	}
}
