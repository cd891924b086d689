package okv

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"go.etcd.io/bbolt"
)

const (
	defaultBoltBucket   = "okv"
	defaultScanPageSize = 256
)

type BoltOptions struct {
	// Bucket holds all entries; defaults to "okv".
	Bucket string

	// ScanPageSize is the number of entries a cursor reads per read
	// transaction.
	ScanPageSize int

	// Timeout bounds waiting for the file lock in OpenBolt.
	Timeout time.Duration

	FileMode os.FileMode

	// IsTesting skips fsync.
	IsTesting bool
}

// BoltBackend stores entries in one bbolt bucket.
//
// Scans read ScanPageSize entries per read transaction and resume after the
// last key they returned, so no transaction stays open between Next calls
// and writes made during a scan never block on it. A scan sees writes that
// land after its current page.
type BoltBackend struct {
	bdb      *bbolt.DB
	bucket   []byte
	pageSize int
	owned    bool
}

var _ Backend = (*BoltBackend)(nil)

// OpenBolt opens or creates a bbolt file. Close closes the file.
func OpenBolt(path string, opt BoltOptions) (*BoltBackend, error) {
	mode := opt.FileMode
	if mode == 0 {
		mode = 0o666
	}
	bopt := &bbolt.Options{
		Timeout:        opt.Timeout,
		NoSync:         opt.IsTesting,
		NoFreelistSync: true,
		FreelistType:   bbolt.FreelistMapType,
	}
	if bopt.Timeout == 0 {
		bopt.Timeout = 5 * time.Second
	}
	bdb, err := bbolt.Open(path, mode, bopt)
	if err != nil {
		return nil, err
	}
	b, err := NewBolt(bdb, opt)
	if err != nil {
		bdb.Close()
		return nil, err
	}
	b.owned = true
	return b, nil
}

// NewBolt wraps an already open database. Close leaves bdb open.
func NewBolt(bdb *bbolt.DB, opt BoltOptions) (*BoltBackend, error) {
	name := opt.Bucket
	if name == "" {
		name = defaultBoltBucket
	}
	pageSize := opt.ScanPageSize
	if pageSize <= 0 {
		pageSize = defaultScanPageSize
	}
	b := &BoltBackend{
		bdb:      bdb,
		bucket:   []byte(name),
		pageSize: pageSize,
	}
	err := bdb.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(b.bucket)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("okv: bolt bucket %q: %w", name, err)
	}
	return b, nil
}

func (b *BoltBackend) DB() *bbolt.DB {
	return b.bdb
}

func (b *BoltBackend) Get(key []byte) ([]byte, error) {
	var result []byte
	err := b.bdb.View(func(tx *bbolt.Tx) error {
		if v := tx.Bucket(b.bucket).Get(key); v != nil {
			result = bytes.Clone(v)
		}
		return nil
	})
	return result, mapBoltErr(err)
}

func (b *BoltBackend) Set(key, value []byte) error {
	return mapBoltErr(b.bdb.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(b.bucket).Put(key, value)
	}))
}

func (b *BoltBackend) Delete(key []byte) error {
	return mapBoltErr(b.bdb.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(b.bucket).Delete(key)
	}))
}

func (b *BoltBackend) Clear() error {
	return mapBoltErr(b.bdb.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket(b.bucket); err != nil {
			return err
		}
		_, err := tx.CreateBucket(b.bucket)
		return err
	}))
}

func (b *BoltBackend) Scan(r RawRange) (Cursor, error) {
	if r.IsEmpty() {
		return emptyCursor{}, nil
	}
	return &boltCursor{b: b, seek: r.SeekKey(), end: r.EndKey()}, nil
}

func (b *BoltBackend) Close() error {
	if !b.owned {
		return nil
	}
	return b.bdb.Close()
}

func mapBoltErr(err error) error {
	if err == bbolt.ErrDatabaseNotOpen {
		return ErrClosed
	}
	return err
}

type boltCursor struct {
	b         *BoltBackend
	seek      []byte
	end       []byte
	page      []memKV
	pos       int
	last      []byte
	started   bool
	exhausted bool
	err       error
}

func (c *boltCursor) Next() bool {
	if c.pos+1 < len(c.page) {
		c.pos++
		return true
	}
	if c.exhausted {
		c.page, c.pos = nil, 0
		return false
	}
	if err := c.fetch(); err != nil {
		c.err = err
		c.exhausted = true
		c.page, c.pos = nil, 0
		return false
	}
	c.pos = 0
	return len(c.page) > 0
}

func (c *boltCursor) fetch() error {
	if n := len(c.page); n > 0 {
		c.last = c.page[n-1].key
	}
	c.page = c.page[:0]
	return mapBoltErr(c.b.bdb.View(func(tx *bbolt.Tx) error {
		cur := tx.Bucket(c.b.bucket).Cursor()
		var k, v []byte
		if !c.started {
			c.started = true
			if c.seek == nil {
				k, v = cur.First()
			} else {
				k, v = cur.Seek(c.seek)
			}
		} else {
			k, v = cur.Seek(c.last)
			if k != nil && bytes.Equal(k, c.last) {
				k, v = cur.Next()
			}
		}
		for ; k != nil; k, v = cur.Next() {
			if c.end != nil && bytes.Compare(k, c.end) >= 0 {
				c.exhausted = true
				return nil
			}
			c.page = append(c.page, memKV{bytes.Clone(k), bytes.Clone(v)})
			if len(c.page) >= c.b.pageSize {
				return nil
			}
		}
		c.exhausted = true
		return nil
	}))
}

func (c *boltCursor) Key() []byte {
	if c.pos >= len(c.page) {
		return nil
	}
	return c.page[c.pos].key
}

func (c *boltCursor) Value() []byte {
	if c.pos >= len(c.page) {
		return nil
	}
	return c.page[c.pos].value
}

func (c *boltCursor) Err() error { return c.err }

func (c *boltCursor) Close() error {
	c.page = nil
	c.exhausted = true
	return nil
}

func (b *BoltBackend) String() string {
	return "bolt:" + b.bdb.Path()
}
