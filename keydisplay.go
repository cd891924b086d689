package okv

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
)

// writeTupleString renders tup as ("user", 1u64, -2i32, true, ("x")). The
// integer suffix records the width so that ParseKey can rebuild the exact
// bytes.
func writeTupleString(buf *bytes.Buffer, tup Tuple) {
	buf.WriteByte('(')
	for i, el := range tup {
		if i > 0 {
			buf.WriteString(", ")
		}
		writeElemString(buf, el)
	}
	buf.WriteByte(')')
}

func writeElemString(buf *bytes.Buffer, el any) {
	kind, ok := KindOf(el)
	if !ok {
		fmt.Fprintf(buf, "<%T>", el)
		return
	}
	switch kind {
	case KindBool:
		buf.WriteString(strconv.FormatBool(el.(bool)))
	case KindUint8, KindUint16, KindUint32, KindUint64:
		buf.WriteString(strconv.FormatUint(uintOf(el), 10))
		buf.WriteString(kind.String())
	case KindInt8, KindInt16, KindInt32, KindInt64:
		buf.WriteString(strconv.FormatInt(intOf(el), 10))
		buf.WriteString(kind.String())
	case KindText:
		buf.WriteString(strconv.Quote(el.(string)))
	case KindTuple:
		writeTupleString(buf, el.(Tuple))
	}
}

// ParseKey parses the output of Key.String back into a key.
func ParseKey(s string) (Key, error) {
	tup, err := ParseTuple(s)
	if err != nil {
		return nil, err
	}
	return tup.Key()
}

// ParseTuple parses the output of Tuple.String.
func ParseTuple(s string) (Tuple, error) {
	p := &tupleParser{src: s}
	p.skipSpace()
	tup, err := p.tuple(0)
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.pos < len(p.src) {
		return nil, p.errf("unexpected trailing input")
	}
	return tup, nil
}

type tupleParser struct {
	src string
	pos int
}

func (p *tupleParser) errf(format string, args ...any) error {
	return fmt.Errorf("okv: invalid key %q at %d: %s", p.src, p.pos, fmt.Sprintf(format, args...))
}

func (p *tupleParser) skipSpace() {
	for p.pos < len(p.src) && (p.src[p.pos] == ' ' || p.src[p.pos] == '\t' || p.src[p.pos] == '\n') {
		p.pos++
	}
}

func (p *tupleParser) peek() byte {
	if p.pos >= len(p.src) {
		return 0
	}
	return p.src[p.pos]
}

func (p *tupleParser) tuple(depth int) (Tuple, error) {
	if depth > maxKeyDepth {
		return nil, p.errf("nested deeper than %d levels", maxKeyDepth)
	}
	if p.peek() != '(' {
		return nil, p.errf("expected '('")
	}
	p.pos++
	tup := Tuple{}
	p.skipSpace()
	if p.peek() == ')' {
		p.pos++
		return tup, nil
	}
	for {
		p.skipSpace()
		el, err := p.elem(depth)
		if err != nil {
			return nil, err
		}
		tup = append(tup, el)
		p.skipSpace()
		switch p.peek() {
		case ',':
			p.pos++
		case ')':
			p.pos++
			return tup, nil
		default:
			return nil, p.errf("expected ',' or ')'")
		}
	}
}

func (p *tupleParser) elem(depth int) (any, error) {
	switch c := p.peek(); {
	case c == '(':
		return p.tuple(depth + 1)
	case c == '"':
		lit, err := strconv.QuotedPrefix(p.src[p.pos:])
		if err != nil {
			return nil, p.errf("bad string literal")
		}
		s, err := strconv.Unquote(lit)
		if err != nil {
			return nil, p.errf("bad string literal")
		}
		p.pos += len(lit)
		return s, nil
	case c == 't' && strings.HasPrefix(p.src[p.pos:], "true"):
		p.pos += 4
		return true, nil
	case c == 'f' && strings.HasPrefix(p.src[p.pos:], "false"):
		p.pos += 5
		return false, nil
	case c == '-' || (c >= '0' && c <= '9'):
		return p.integer()
	default:
		return nil, p.errf("unexpected character %q", c)
	}
}

func (p *tupleParser) integer() (any, error) {
	start := p.pos
	if p.peek() == '-' {
		p.pos++
	}
	for c := p.peek(); c >= '0' && c <= '9'; c = p.peek() {
		p.pos++
	}
	digits := p.src[start:p.pos]
	sufStart := p.pos
	for c := p.peek(); c == 'u' || c == 'i' || (c >= '0' && c <= '9'); c = p.peek() {
		p.pos++
	}
	suffix := p.src[sufStart:p.pos]

	var bits int
	var signed bool
	switch suffix {
	case "u8":
		bits = 8
	case "u16":
		bits = 16
	case "u32":
		bits = 32
	case "u64":
		bits = 64
	case "i8":
		bits, signed = 8, true
	case "i16":
		bits, signed = 16, true
	case "i32":
		bits, signed = 32, true
	case "i64":
		bits, signed = 64, true
	default:
		return nil, p.errf("integer %q needs a width suffix (u8..u64, i8..i64)", digits)
	}

	if signed {
		v, err := strconv.ParseInt(digits, 10, bits)
		if err != nil {
			return nil, p.errf("%v", err)
		}
		switch bits {
		case 8:
			return int8(v), nil
		case 16:
			return int16(v), nil
		case 32:
			return int32(v), nil
		default:
			return v, nil
		}
	}
	v, err := strconv.ParseUint(digits, 10, bits)
	if err != nil {
		return nil, p.errf("%v", err)
	}
	switch bits {
	case 8:
		return uint8(v), nil
	case 16:
		return uint16(v), nil
	case 32:
		return uint32(v), nil
	default:
		return v, nil
	}
}
