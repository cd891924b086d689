package okv

import (
	"bytes"
)

// RawRange defines a range of byte strings. A nil bound leaves that side
// open. The constructors use mnemonics: O means open, I means inclusive, E
// means exclusive; the first letter is for the lower bound, the second for
// the upper bound.
type RawRange struct {
	Lower    []byte
	Upper    []byte
	LowerInc bool
	UpperInc bool
}

func RawOO() RawRange            { return RawRange{} }
func RawIO(l []byte) RawRange    { return RawRange{Lower: l, LowerInc: true} }
func RawEO(l []byte) RawRange    { return RawRange{Lower: l, LowerInc: false} }
func RawOI(u []byte) RawRange    { return RawRange{Upper: u, UpperInc: true} }
func RawOE(u []byte) RawRange    { return RawRange{Upper: u, UpperInc: false} }
func RawII(l, u []byte) RawRange { return RawRange{Lower: l, Upper: u, LowerInc: true, UpperInc: true} }
func RawIE(l, u []byte) RawRange {
	return RawRange{Lower: l, Upper: u, LowerInc: true, UpperInc: false}
}
func RawEI(l, u []byte) RawRange {
	return RawRange{Lower: l, Upper: u, LowerInc: false, UpperInc: true}
}
func RawEE(l, u []byte) RawRange {
	return RawRange{Lower: l, Upper: u, LowerInc: false, UpperInc: false}
}

// RawPrefix covers every byte string starting with p. An empty prefix covers
// everything; a prefix of all 0xFF bytes has no upper bound.
func RawPrefix(p []byte) RawRange {
	if len(p) == 0 {
		return RawOO()
	}
	return RawIE(p, prefixEnd(p))
}

// SeekKey returns the smallest key the range can contain, or nil when the
// lower side is open.
func (r RawRange) SeekKey() []byte {
	if r.Lower == nil {
		return nil
	}
	if r.LowerInc {
		return r.Lower
	}
	return keySuccessor(r.Lower)
}

// EndKey returns the exclusive upper limit of the range, or nil when the upper
// side is open.
func (r RawRange) EndKey() []byte {
	if r.Upper == nil {
		return nil
	}
	if r.UpperInc {
		return keySuccessor(r.Upper)
	}
	return r.Upper
}

func (r RawRange) Contains(k []byte) bool {
	if r.Lower != nil {
		c := bytes.Compare(k, r.Lower)
		if c < 0 || (c == 0 && !r.LowerInc) {
			return false
		}
	}
	if r.Upper != nil {
		c := bytes.Compare(k, r.Upper)
		if c > 0 || (c == 0 && !r.UpperInc) {
			return false
		}
	}
	return true
}

// IsEmpty reports whether no byte string satisfies both bounds.
func (r RawRange) IsEmpty() bool {
	end := r.EndKey()
	if end == nil {
		return false
	}
	seek := r.SeekKey()
	return bytes.Compare(seek, end) >= 0
}

// Intersect narrows r to the keys also contained in another. On equal bounds
// the exclusive flag wins.
func (r RawRange) Intersect(another RawRange) RawRange {
	out := r
	if another.Lower != nil {
		if out.Lower == nil {
			out.Lower, out.LowerInc = another.Lower, another.LowerInc
		} else if c := bytes.Compare(another.Lower, out.Lower); c > 0 {
			out.Lower, out.LowerInc = another.Lower, another.LowerInc
		} else if c == 0 {
			out.LowerInc = out.LowerInc && another.LowerInc
		}
	}
	if another.Upper != nil {
		if out.Upper == nil {
			out.Upper, out.UpperInc = another.Upper, another.UpperInc
		} else if c := bytes.Compare(another.Upper, out.Upper); c < 0 {
			out.Upper, out.UpperInc = another.Upper, another.UpperInc
		} else if c == 0 {
			out.UpperInc = out.UpperInc && another.UpperInc
		}
	}
	return out
}

func (r RawRange) String() string {
	var buf bytes.Buffer
	if r.Lower == nil {
		buf.WriteString("(-inf")
	} else {
		if r.LowerInc {
			buf.WriteByte('[')
		} else {
			buf.WriteByte('(')
		}
		buf.WriteString(hexstr(r.Lower))
	}
	buf.WriteString(", ")
	if r.Upper == nil {
		buf.WriteString("+inf)")
	} else {
		buf.WriteString(hexstr(r.Upper))
		if r.UpperInc {
			buf.WriteByte(']')
		} else {
			buf.WriteByte(')')
		}
	}
	return buf.String()
}
