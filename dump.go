package okv

import (
	"bufio"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// Dump writes every entry as one JSON object. Member names are Key.String()
// renderings and member values are type-tagged: {"int":"-5"}, {"text":"x"},
// {"array":[...]}, and so on. Integers and floats are written as strings so
// that no precision is lost. An entry that cannot be decoded fails the dump.
func (s *Store) Dump(w io.Writer) error {
	bw := bufio.NewWriter(w)
	bw.WriteString("{")
	first := true
	for e, err := range s.List().Iter() {
		if err != nil {
			return err
		}
		if first {
			bw.WriteString("\n  ")
			first = false
		} else {
			bw.WriteString(",\n  ")
		}
		name, err := json.Marshal(e.Key.String())
		if err != nil {
			return err
		}
		body, err := json.Marshal(dumpValue(e.Value))
		if err != nil {
			return fmt.Errorf("okv: dumping %v: %w", e.Key, err)
		}
		bw.Write(name)
		bw.WriteString(": ")
		bw.Write(body)
	}
	if !first {
		bw.WriteString("\n")
	}
	bw.WriteString("}\n")
	return bw.Flush()
}

func (s *Store) DumpString() (string, error) {
	var buf strings.Builder
	err := s.Dump(&buf)
	return buf.String(), err
}

func dumpValue(v Value) map[string]any {
	switch v.kind {
	case ValBool:
		return map[string]any{"bool": v.num != 0}
	case ValInt:
		return map[string]any{"int": strconv.FormatInt(int64(v.num), 10)}
	case ValUint:
		return map[string]any{"uint": strconv.FormatUint(v.num, 10)}
	case ValFloat:
		return map[string]any{"float": strconv.FormatFloat(math.Float64frombits(v.num), 'g', -1, 64)}
	case ValText:
		return map[string]any{"text": v.str}
	case ValBinary:
		return map[string]any{"binary": base64.StdEncoding.EncodeToString(v.bin)}
	case ValArray:
		arr := make([]any, len(v.arr))
		for i, el := range v.arr {
			arr[i] = dumpValue(el)
		}
		return map[string]any{"array": arr}
	case ValObject:
		obj := make(map[string]any, len(v.obj))
		for k, el := range v.obj {
			obj[k] = dumpValue(el)
		}
		return map[string]any{"object": obj}
	default:
		return map[string]any{"null": true}
	}
}

// Restore loads a Dump into b and returns a Store over it. Existing entries
// in b are kept unless the dump overwrites them.
func Restore(r io.Reader, b Backend, opt Options) (*Store, error) {
	var doc map[string]json.RawMessage
	dec := json.NewDecoder(r)
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("okv: restore: %w", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("okv: restore: unexpected data after the dump object")
	}
	s := New(b, opt)
	for _, name := range sortedKeys(doc) {
		key, err := ParseKey(name)
		if err != nil {
			return nil, fmt.Errorf("okv: restore: %w", err)
		}
		v, err := restoreValue(doc[name], 0)
		if err != nil {
			return nil, fmt.Errorf("okv: restore %s: %w", name, err)
		}
		if err := s.Set(key, v); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func RestoreString(text string, b Backend, opt Options) (*Store, error) {
	return Restore(strings.NewReader(text), b, opt)
}

func restoreValue(raw json.RawMessage, depth int) (Value, error) {
	if depth > maxValueDepth {
		return Value{}, fmt.Errorf("value nested deeper than %d levels", maxValueDepth)
	}
	var tagged map[string]json.RawMessage
	if err := json.Unmarshal(raw, &tagged); err != nil {
		return Value{}, err
	}
	if len(tagged) != 1 {
		return Value{}, fmt.Errorf("want exactly one type tag, got %d", len(tagged))
	}
	for tag, body := range tagged {
		switch tag {
		case "null":
			return Value{}, nil
		case "bool":
			var b bool
			err := json.Unmarshal(body, &b)
			return BoolValue(b), err
		case "int":
			s, err := unmarshalString(body)
			if err != nil {
				return Value{}, err
			}
			i, err := strconv.ParseInt(s, 10, 64)
			return IntValue(i), err
		case "uint":
			s, err := unmarshalString(body)
			if err != nil {
				return Value{}, err
			}
			u, err := strconv.ParseUint(s, 10, 64)
			return UintValue(u), err
		case "float":
			s, err := unmarshalString(body)
			if err != nil {
				return Value{}, err
			}
			f, err := strconv.ParseFloat(s, 64)
			return FloatValue(f), err
		case "text":
			s, err := unmarshalString(body)
			return TextValue(s), err
		case "binary":
			s, err := unmarshalString(body)
			if err != nil {
				return Value{}, err
			}
			bin, err := base64.StdEncoding.DecodeString(s)
			return BinaryValue(bin), err
		case "array":
			var items []json.RawMessage
			if err := json.Unmarshal(body, &items); err != nil {
				return Value{}, err
			}
			arr := make([]Value, len(items))
			for i, item := range items {
				el, err := restoreValue(item, depth+1)
				if err != nil {
					return Value{}, fmt.Errorf("[%d]: %w", i, err)
				}
				arr[i] = el
			}
			return ArrayValue(arr...), nil
		case "object":
			var members map[string]json.RawMessage
			if err := json.Unmarshal(body, &members); err != nil {
				return Value{}, err
			}
			obj := make(map[string]Value, len(members))
			for k, item := range members {
				el, err := restoreValue(item, depth+1)
				if err != nil {
					return Value{}, fmt.Errorf("%q: %w", k, err)
				}
				obj[k] = el
			}
			return ObjectValue(obj), nil
		default:
			return Value{}, fmt.Errorf("unknown type tag %q", tag)
		}
	}
	panic("unreachable")
}

func unmarshalString(body json.RawMessage) (string, error) {
	var s string
	err := json.Unmarshal(body, &s)
	return s, err
}

// MarshalJSON renders v in the type-tagged form used by Dump.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(dumpValue(v))
}

// UnmarshalJSON parses the type-tagged form used by Dump.
func (v *Value) UnmarshalJSON(data []byte) error {
	val, err := restoreValue(data, 0)
	if err != nil {
		return err
	}
	*v = val
	return nil
}

// ParseValue parses a single type-tagged JSON value, like {"int":"5"}.
func ParseValue(text string) (Value, error) {
	var v Value
	err := json.Unmarshal([]byte(text), &v)
	return v, err
}
