package okv

import (
	"encoding/binary"
	"unicode/utf8"
)

// DecodeKey decodes a key into its elements. Element types are recovered
// from the tags, so no expected shape is needed; see Key.Expect and Key.Scan
// for shape checking.
func DecodeKey(raw []byte) (Tuple, error) {
	d := makeByteDecoder(raw)
	tup, err := decodeElems(&d, 0, false)
	if err != nil {
		return nil, err
	}
	return tup, nil
}

func decodeElems(d *byteDecoder, depth int, nested bool) (Tuple, error) {
	if depth > maxKeyDepth {
		return nil, decodeErrf(Corrupt, d.Orig, d.Off(), nil, "key nested deeper than %d levels", maxKeyDepth)
	}
	tup := Tuple{}
	for {
		if d.Empty() {
			if nested {
				return nil, decodeErrf(Truncated, d.Orig, d.Off(), nil, "unterminated nested tuple")
			}
			return tup, nil
		}
		tag, _ := d.Byte()
		if nested && tag == tagTupleEnd {
			return tup, nil
		}
		el, err := decodeElem(d, ElemKind(tag), depth)
		if err != nil {
			return nil, err
		}
		tup = append(tup, el)
	}
}

func decodeElem(d *byteDecoder, kind ElemKind, depth int) (any, error) {
	switch kind {
	case KindBool:
		off := d.Off()
		b, err := d.Byte()
		if err != nil {
			return nil, err
		}
		switch b {
		case 0:
			return false, nil
		case 1:
			return true, nil
		default:
			return nil, decodeErrf(Corrupt, d.Orig, off, nil, "invalid bool byte 0x%02x", b)
		}
	case KindUint8:
		b, err := d.Raw(1)
		if err != nil {
			return nil, err
		}
		return b[0], nil
	case KindUint16:
		b, err := d.Raw(2)
		if err != nil {
			return nil, err
		}
		return binary.BigEndian.Uint16(b), nil
	case KindUint32:
		b, err := d.Raw(4)
		if err != nil {
			return nil, err
		}
		return binary.BigEndian.Uint32(b), nil
	case KindUint64:
		b, err := d.Raw(8)
		if err != nil {
			return nil, err
		}
		return binary.BigEndian.Uint64(b), nil
	case KindInt8:
		b, err := d.Raw(1)
		if err != nil {
			return nil, err
		}
		return int8(b[0] ^ 0x80), nil
	case KindInt16:
		b, err := d.Raw(2)
		if err != nil {
			return nil, err
		}
		return int16(binary.BigEndian.Uint16(b) ^ 0x8000), nil
	case KindInt32:
		b, err := d.Raw(4)
		if err != nil {
			return nil, err
		}
		return int32(binary.BigEndian.Uint32(b) ^ 0x80000000), nil
	case KindInt64:
		b, err := d.Raw(8)
		if err != nil {
			return nil, err
		}
		return int64(binary.BigEndian.Uint64(b) ^ signBit64), nil
	case KindText:
		return decodeText(d)
	case KindTuple:
		return decodeElems(d, depth+1, true)
	default:
		return nil, decodeErrf(UnknownTag, d.Orig, d.Off()-1, nil, "unknown key tag 0x%02x", byte(kind))
	}
}

func decodeText(d *byteDecoder) (string, error) {
	start := d.Off()
	buf := d.Buf
	var out []byte
	for i := 0; i < len(buf); i++ {
		c := buf[i]
		if c != textEscape {
			continue
		}
		if i+1 >= len(buf) {
			break
		}
		switch buf[i+1] {
		case textTerminator:
			var s []byte
			if out == nil {
				s = buf[:i]
			} else {
				s = append(out, buf[:i]...)
			}
			if !utf8.Valid(s) {
				return "", decodeErrf(Corrupt, d.Orig, start, nil, "key text is not valid UTF-8")
			}
			d.Buf = buf[i+2:]
			return string(s), nil
		case textEscapedNul:
			out = append(out, buf[:i+1]...)
			buf = buf[i+2:]
			i = -1
		default:
			return "", decodeErrf(Corrupt, d.Orig, start+len(d.Buf)-len(buf)+i, nil, "invalid escape 0x00 0x%02x in key text", buf[i+1])
		}
	}
	return "", decodeErrf(Truncated, d.Orig, start, nil, "unterminated key text")
}
