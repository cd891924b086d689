package okv

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/cespare/xxhash/v2"
	"github.com/vmihailenco/msgpack/v5"
)

type valueFlags uint64

const (
	vfVerBit0 = valueFlags(1 << iota)
	vfVerBit1
	vfVerBit2
	vfVerBit3
	vfZstd
	vfChecksum

	vfVerMask       = (vfVerBit0 | vfVerBit1 | vfVerBit2 | vfVerBit3)
	vfVer1          = vfVerBit0
	vfSupportedMask = (vfVer1 | vfZstd | vfChecksum)
	vfDefault       = vfVer1 | vfChecksum

	checksumSize  = 8
	maxValueDepth = 512
)

func (vf valueFlags) ver() valueFlags {
	return vf & vfVerMask
}

// encodeValue produces the stored form of v: a uvarint flags header, an
// xxhash64 of the stored payload, then the msgpack payload (zstd-compressed
// when longer than compressThreshold, if positive).
func encodeValue(v Value, compressThreshold int) ([]byte, error) {
	scratch := valueBytesPool.Get().([]byte)
	payload, err := appendValuePayload(scratch[:0], v)
	defer releaseValueBytes(payload)
	if err != nil {
		return nil, err
	}

	flags := vfDefault
	stored := payload
	if compressThreshold > 0 && len(payload) > compressThreshold {
		flags |= vfZstd
		stored = zstdEncoder().EncodeAll(payload, nil)
	}

	out := make([]byte, 0, binary.MaxVarintLen64+checksumSize+len(stored))
	out = appendUvarint(out, uint64(flags))
	out = appendUint64(out, xxhash.Sum64(stored))
	out = appendRaw(out, stored)
	return out, nil
}

func appendValuePayload(buf []byte, v Value) ([]byte, error) {
	bb := bytesBuilder{buf}
	enc := msgpack.GetEncoder()
	enc.ResetDict(&bb, nil)
	err := encodeValueTo(enc, v, 0)
	msgpack.PutEncoder(enc)
	return bb.Buf, err
}

func encodeValueTo(enc *msgpack.Encoder, v Value, depth int) error {
	if depth > maxValueDepth {
		return fmt.Errorf("okv: value nested deeper than %d levels: %w", maxValueDepth, UnsupportedKind)
	}
	if err := enc.EncodeArrayLen(2); err != nil {
		return err
	}
	if err := enc.EncodeUint(uint64(v.kind)); err != nil {
		return err
	}
	switch v.kind {
	case ValNull:
		return enc.EncodeNil()
	case ValBool:
		return enc.EncodeBool(v.num != 0)
	case ValInt:
		return enc.EncodeInt(int64(v.num))
	case ValUint:
		return enc.EncodeUint(v.num)
	case ValFloat:
		f, _ := v.Float()
		return enc.EncodeFloat64(f)
	case ValText:
		if !utf8.ValidString(v.str) {
			return fmt.Errorf("okv: value text %q is not valid UTF-8: %w", v.str, UnsupportedKind)
		}
		return enc.EncodeString(v.str)
	case ValBinary:
		if v.bin == nil {
			return enc.EncodeBytes([]byte{})
		}
		return enc.EncodeBytes(v.bin)
	case ValArray:
		if err := enc.EncodeArrayLen(len(v.arr)); err != nil {
			return err
		}
		for _, el := range v.arr {
			if err := encodeValueTo(enc, el, depth+1); err != nil {
				return err
			}
		}
		return nil
	case ValObject:
		if err := enc.EncodeMapLen(len(v.obj)); err != nil {
			return err
		}
		for _, k := range sortedKeys(v.obj) {
			if !utf8.ValidString(k) {
				return fmt.Errorf("okv: object member name %q is not valid UTF-8: %w", k, UnsupportedKind)
			}
			if err := enc.EncodeString(k); err != nil {
				return err
			}
			if err := encodeValueTo(enc, v.obj[k], depth+1); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("okv: cannot encode %v: %w", v.kind, UnsupportedKind)
	}
}

// decodeValue is the inverse of encodeValue. It never returns a partially
// decoded value.
func decodeValue(data []byte) (Value, error) {
	d := makeByteDecoder(data)
	if d.Empty() {
		return Value{}, decodeErrf(Truncated, data, 0, nil, "empty value")
	}
	raw, err := d.Uvarint()
	if err != nil {
		return Value{}, err
	}
	flags := valueFlags(raw)
	if (flags&^vfSupportedMask) != 0 || flags.ver() != vfVer1 {
		return Value{}, decodeErrf(UnsupportedKind, data, 0, nil, "unsupported value flags %x", raw)
	}

	if flags&vfChecksum != 0 {
		sumBytes, err := d.Raw(checksumSize)
		if err != nil {
			return Value{}, err
		}
		if sum := xxhash.Sum64(d.Buf); sum != binary.BigEndian.Uint64(sumBytes) {
			return Value{}, decodeErrf(Corrupt, data, d.Off(), nil, "checksum mismatch: stored %x, computed %016x", sumBytes, sum)
		}
	}

	payloadOff := d.Off()
	payload := d.Buf
	if flags&vfZstd != 0 {
		payload, err = zstdDecoder().DecodeAll(d.Buf, nil)
		if err != nil {
			return Value{}, decodeErrf(Corrupt, data, payloadOff, err, "cannot decompress value")
		}
	}

	var r bytes.Reader
	r.Reset(payload)
	dec := msgpack.GetDecoder()
	dec.ResetDict(&r, nil)
	vd := valueDecoder{dec: dec, data: data, off: payloadOff}
	v, err := vd.decode(0)
	msgpack.PutDecoder(dec)
	if err != nil {
		var de *DecodeError
		if errors.As(err, &de) {
			return Value{}, err
		}
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return Value{}, decodeErrf(Truncated, data, payloadOff, err, "value payload ends early")
		}
		return Value{}, decodeErrf(Corrupt, data, payloadOff, err, "malformed value payload")
	}
	if r.Len() != 0 {
		return Value{}, decodeErrf(Corrupt, data, payloadOff, nil, "%d trailing bytes after value", r.Len())
	}
	return v, nil
}

type valueDecoder struct {
	dec  *msgpack.Decoder
	data []byte
	off  int
}

func (vd *valueDecoder) decode(depth int) (Value, error) {
	if depth > maxValueDepth {
		return Value{}, decodeErrf(Corrupt, vd.data, vd.off, nil, "value nested deeper than %d levels", maxValueDepth)
	}
	dec := vd.dec
	n, err := dec.DecodeArrayLen()
	if err != nil {
		return Value{}, err
	}
	if n != 2 {
		return Value{}, decodeErrf(Corrupt, vd.data, vd.off, nil, "value envelope has %d items, wanted 2", n)
	}
	tag, err := dec.DecodeUint8()
	if err != nil {
		return Value{}, err
	}

	switch kind := ValueKind(tag); kind {
	case ValNull:
		return Value{}, dec.DecodeNil()
	case ValBool:
		b, err := dec.DecodeBool()
		return BoolValue(b), err
	case ValInt:
		i, err := dec.DecodeInt64()
		return IntValue(i), err
	case ValUint:
		u, err := dec.DecodeUint64()
		return UintValue(u), err
	case ValFloat:
		f, err := dec.DecodeFloat64()
		return FloatValue(f), err
	case ValText:
		s, err := dec.DecodeString()
		if err == nil && !utf8.ValidString(s) {
			return Value{}, decodeErrf(Corrupt, vd.data, vd.off, nil, "value text is not valid UTF-8")
		}
		return TextValue(s), err
	case ValBinary:
		b, err := dec.DecodeBytes()
		return BinaryValue(b), err
	case ValArray:
		n, err := dec.DecodeArrayLen()
		if err != nil {
			return Value{}, err
		}
		if n < 0 {
			return Value{}, decodeErrf(Corrupt, vd.data, vd.off, nil, "nil array payload")
		}
		arr := make([]Value, 0, min(n, 1024))
		for i := 0; i < n; i++ {
			el, err := vd.decode(depth + 1)
			if err != nil {
				return Value{}, err
			}
			arr = append(arr, el)
		}
		return ArrayValue(arr...), nil
	case ValObject:
		n, err := dec.DecodeMapLen()
		if err != nil {
			return Value{}, err
		}
		if n < 0 {
			return Value{}, decodeErrf(Corrupt, vd.data, vd.off, nil, "nil object payload")
		}
		obj := make(map[string]Value, min(n, 1024))
		for i := 0; i < n; i++ {
			k, err := dec.DecodeString()
			if err != nil {
				return Value{}, err
			}
			if !utf8.ValidString(k) {
				return Value{}, decodeErrf(Corrupt, vd.data, vd.off, nil, "object member name is not valid UTF-8")
			}
			el, err := vd.decode(depth + 1)
			if err != nil {
				return Value{}, err
			}
			obj[k] = el
		}
		return ObjectValue(obj), nil
	default:
		return Value{}, decodeErrf(UnsupportedKind, vd.data, vd.off, nil, "unknown value kind %d", tag)
	}
}
