package okv

import (
	"fmt"
	"unicode/utf8"
)

const signBit64 = 1 << 63

// AppendKey appends the encoding of elems to buf.
func AppendKey(buf []byte, elems ...any) ([]byte, error) {
	return appendTuple(buf, Tuple(elems), 0)
}

func appendTuple(buf []byte, tup Tuple, depth int) ([]byte, error) {
	if depth > maxKeyDepth {
		return nil, fmt.Errorf("okv: key nested deeper than %d levels", maxKeyDepth)
	}
	var err error
	for i, el := range tup {
		buf, err = appendElem(buf, el, depth)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
	}
	return buf, nil
}

func appendElem(buf []byte, el any, depth int) ([]byte, error) {
	switch v := el.(type) {
	case bool:
		buf = appendUint8(buf, byte(KindBool))
		return appendUint8(buf, boolByte(v)), nil
	case uint8:
		buf = appendUint8(buf, byte(KindUint8))
		return appendUint8(buf, v), nil
	case uint16:
		buf = appendUint8(buf, byte(KindUint16))
		return appendUint16(buf, v), nil
	case uint32:
		buf = appendUint8(buf, byte(KindUint32))
		return appendUint32(buf, v), nil
	case uint64:
		buf = appendUint8(buf, byte(KindUint64))
		return appendUint64(buf, v), nil
	case uint:
		buf = appendUint8(buf, byte(KindUint64))
		return appendUint64(buf, uint64(v)), nil
	case int8:
		buf = appendUint8(buf, byte(KindInt8))
		return appendUint8(buf, uint8(v)^0x80), nil
	case int16:
		buf = appendUint8(buf, byte(KindInt16))
		return appendUint16(buf, uint16(v)^0x8000), nil
	case int32:
		buf = appendUint8(buf, byte(KindInt32))
		return appendUint32(buf, uint32(v)^0x80000000), nil
	case int64:
		buf = appendUint8(buf, byte(KindInt64))
		return appendUint64(buf, uint64(v)^signBit64), nil
	case int:
		buf = appendUint8(buf, byte(KindInt64))
		return appendUint64(buf, uint64(int64(v))^signBit64), nil
	case string:
		if !utf8.ValidString(v) {
			return nil, fmt.Errorf("okv: key text %q is not valid UTF-8: %w", v, UnsupportedKind)
		}
		buf = appendUint8(buf, byte(KindText))
		return appendText(buf, v), nil
	case Tuple:
		buf = appendUint8(buf, byte(KindTuple))
		buf, err := appendTuple(buf, v, depth+1)
		if err != nil {
			return nil, err
		}
		return appendUint8(buf, tagTupleEnd), nil
	default:
		return nil, fmt.Errorf("okv: unsupported key element type %T: %w", el, UnsupportedKind)
	}
}

// appendText writes s with every 0x00 escaped as 0x00 0xFF, followed by the
// 0x00 0x01 terminator. Since an escape byte is never followed by 0x01 inside
// the payload, no text encoding is a prefix of another element's encoding.
func appendText(buf []byte, s string) []byte {
	off, buf := grow(buf, len(s)+2)
	buf = buf[:off]
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == textEscape {
			buf = append(buf, textEscape, textEscapedNul)
		} else {
			buf = append(buf, c)
		}
	}
	return append(buf, textEscape, textTerminator)
}
