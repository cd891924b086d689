package okv

import (
	"bytes"
	"slices"
)

// MemoryBackend is an ordered in-memory Backend intended for tests and
// transient data. It has a single owner and does no locking.
//
// Cursors re-locate themselves by the last returned key on every step, so a
// write made during a scan is seen by that scan iff it lands after the
// cursor's current position.
type MemoryBackend struct {
	items  []memKV // sorted by key
	closed bool
}

type memKV struct {
	key   []byte
	value []byte
}

var _ Backend = (*MemoryBackend)(nil)

func NewMemory() *MemoryBackend {
	return &MemoryBackend{}
}

func (b *MemoryBackend) find(key []byte) (int, bool) {
	return slices.BinarySearchFunc(b.items, key, func(kv memKV, k []byte) int {
		return bytes.Compare(kv.key, k)
	})
}

func (b *MemoryBackend) Get(key []byte) ([]byte, error) {
	if b.closed {
		return nil, ErrClosed
	}
	i, ok := b.find(key)
	if !ok {
		return nil, nil
	}
	return slices.Clone(b.items[i].value), nil
}

func (b *MemoryBackend) Set(key, value []byte) error {
	if b.closed {
		return ErrClosed
	}
	if value == nil {
		value = []byte{}
	}
	value = slices.Clone(value)
	i, ok := b.find(key)
	if ok {
		b.items[i].value = value
		return nil
	}
	b.items = slices.Insert(b.items, i, memKV{key: slices.Clone(key), value: value})
	return nil
}

func (b *MemoryBackend) Delete(key []byte) error {
	if b.closed {
		return ErrClosed
	}
	i, ok := b.find(key)
	if !ok {
		return nil
	}
	b.items = slices.Delete(b.items, i, i+1)
	return nil
}

func (b *MemoryBackend) Clear() error {
	if b.closed {
		return ErrClosed
	}
	b.items = nil
	return nil
}

// Len returns the number of stored keys.
func (b *MemoryBackend) Len() int {
	return len(b.items)
}

func (b *MemoryBackend) Scan(r RawRange) (Cursor, error) {
	if b.closed {
		return nil, ErrClosed
	}
	if r.IsEmpty() {
		return emptyCursor{}, nil
	}
	return &memCursor{b: b, seek: r.SeekKey(), end: r.EndKey()}, nil
}

func (b *MemoryBackend) Close() error {
	b.closed = true
	b.items = nil
	return nil
}

type memCursor struct {
	b       *MemoryBackend
	seek    []byte
	end     []byte
	started bool
	done    bool
	kv      memKV
}

func (c *memCursor) Next() bool {
	if c.done {
		return false
	}
	var i int
	if c.started {
		var found bool
		i, found = c.b.find(c.kv.key)
		if found {
			i++
		}
	} else {
		c.started = true
		i, _ = c.b.find(c.seek)
	}
	if i >= len(c.b.items) || (c.end != nil && bytes.Compare(c.b.items[i].key, c.end) >= 0) {
		c.done = true
		c.kv = memKV{}
		return false
	}
	c.kv = c.b.items[i]
	return true
}

func (c *memCursor) Key() []byte   { return c.kv.key }
func (c *memCursor) Value() []byte { return c.kv.value }
func (c *memCursor) Err() error    { return nil }

func (c *memCursor) Close() error {
	c.done = true
	c.kv = memKV{}
	return nil
}

func (b *MemoryBackend) String() string {
	return "memory"
}
