/*
Package okv implements an ordered, typed key-value store on top of a
pluggable byte-keyed backend (in memory, Bolt, SQLite or Pebble).

We implement:

1. Keys, tuples of typed elements encoded so that byte order equals tuple
order. Prefix and range scans over typed keys become plain byte range scans.

2. Values, self-describing tagged payloads that decode without a schema.

3. Backends, a small get/set/delete/clear/scan contract any ordered medium can
satisfy.

4. A Store with typed Get/Set/Delete and a Query builder for lazy, bounded
iteration.

# Technical Details

**Ordering.**
Backends must iterate keys in unsigned lexicographic byte order. The Store
never re-sorts anything a backend returns.

**Scans and decode errors.**
A value that fails to decode is reported for its own entry; the rest of the
scan continues. Backend failures end the scan.

## Binary encoding

**Key encoding.**
Each element is a tag byte followed by a payload:

	0x10       bool      1 byte, 0x00 or 0x01
	0x20-0x23  u8..u64   big-endian
	0x28-0x2B  i8..i64   big-endian with the sign bit flipped
	0x30       text      UTF-8; 0x00 escaped as 0x00 0xFF; ends with 0x00 0x01
	0x40       tuple     elements, then 0x00

Elements of different kinds compare by tag: bool < unsigned < signed < text <
tuple, and a narrower integer sorts before a wider one whatever the values.
Since no element encoding is a prefix of another, a key starts with the
encoding of a tuple iff it extends that tuple.

**Value**: value header, then the payload.

**Value header**:
1. Flags (uvarint): bit 0 is format version 1, bit 4 means the payload is
zstd-compressed, bit 5 means a checksum follows.
2. Checksum: xxhash64 of the stored payload, 8 bytes big-endian.

**Value payload**: msgpack. Each value is a two-item array, [kind, data];
arrays and objects nest the same way, and object members are sorted by name.
*/
package okv
