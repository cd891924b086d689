package okv

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
)

type PebbleOptions struct {
	// InMemory keeps all files in memory; the directory name is then only a
	// label.
	InMemory bool

	// CacheSize is the block cache size in bytes; zero uses pebble's default.
	CacheSize int64

	// IsTesting skips fsync on writes.
	IsTesting bool

	Logger *slog.Logger
}

// PebbleBackend stores entries in a pebble LSM tree. Scans use a native
// iterator, which reads from the snapshot taken when the scan started.
type PebbleBackend struct {
	db     *pebble.DB
	dir    string
	wo     *pebble.WriteOptions
	closed atomic.Bool // pebble panics on use after Close
}

var _ Backend = (*PebbleBackend)(nil)

func OpenPebble(dir string, opt PebbleOptions) (*PebbleBackend, error) {
	popt := &pebble.Options{}
	if opt.InMemory {
		popt.FS = vfs.NewMem()
	}
	if opt.CacheSize > 0 {
		cache := pebble.NewCache(opt.CacheSize)
		defer cache.Unref()
		popt.Cache = cache
	}
	if opt.Logger != nil {
		popt.Logger = pebbleLogger{opt.Logger}
	}
	db, err := pebble.Open(dir, popt)
	if err != nil {
		return nil, fmt.Errorf("okv: open pebble %s: %w", dir, err)
	}
	wo := pebble.Sync
	if opt.IsTesting || opt.InMemory {
		wo = pebble.NoSync
	}
	return &PebbleBackend{db: db, dir: dir, wo: wo}, nil
}

func (b *PebbleBackend) DB() *pebble.DB {
	return b.db
}

func (b *PebbleBackend) Get(key []byte) ([]byte, error) {
	if b.closed.Load() {
		return nil, ErrClosed
	}
	value, closer, err := b.db.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, nil
	} else if err != nil {
		return nil, mapPebbleErr(err)
	}
	defer closer.Close()
	return append([]byte{}, value...), nil
}

func (b *PebbleBackend) Set(key, value []byte) error {
	if b.closed.Load() {
		return ErrClosed
	}
	return mapPebbleErr(b.db.Set(key, value, b.wo))
}

func (b *PebbleBackend) Delete(key []byte) error {
	if b.closed.Load() {
		return ErrClosed
	}
	return mapPebbleErr(b.db.Delete(key, b.wo))
}

func (b *PebbleBackend) Clear() error {
	if b.closed.Load() {
		return ErrClosed
	}
	iter, err := b.db.NewIter(nil)
	if err != nil {
		return mapPebbleErr(err)
	}
	var first, last []byte
	if iter.First() {
		first = bytes.Clone(iter.Key())
		iter.Last()
		last = bytes.Clone(iter.Key())
	}
	if err := iter.Close(); err != nil {
		return mapPebbleErr(err)
	}
	if first == nil {
		return nil
	}
	return mapPebbleErr(b.db.DeleteRange(first, keySuccessor(last), b.wo))
}

func (b *PebbleBackend) Scan(r RawRange) (Cursor, error) {
	if b.closed.Load() {
		return nil, ErrClosed
	}
	if r.IsEmpty() {
		return emptyCursor{}, nil
	}
	iter, err := b.db.NewIter(&pebble.IterOptions{
		LowerBound: r.SeekKey(),
		UpperBound: r.EndKey(),
	})
	if err != nil {
		return nil, mapPebbleErr(err)
	}
	return &pebbleCursor{iter: iter}, nil
}

func (b *PebbleBackend) Close() error {
	if !b.closed.CompareAndSwap(false, true) {
		return nil
	}
	return mapPebbleErr(b.db.Close())
}

func (b *PebbleBackend) String() string {
	return "pebble:" + b.dir
}

func mapPebbleErr(err error) error {
	if errors.Is(err, pebble.ErrClosed) {
		return fmt.Errorf("%w: %w", ErrClosed, err)
	}
	return err
}

type pebbleCursor struct {
	iter    *pebble.Iterator
	started bool
	value   []byte
	err     error
}

func (c *pebbleCursor) Next() bool {
	if c.iter == nil || c.err != nil {
		return false
	}
	var ok bool
	if c.started {
		ok = c.iter.Next()
	} else {
		c.started = true
		ok = c.iter.First()
	}
	if !ok {
		c.err = c.iter.Error()
		c.value = nil
		return false
	}
	c.value, c.err = c.iter.ValueAndErr()
	return c.err == nil
}

func (c *pebbleCursor) Key() []byte {
	if c.iter == nil || !c.iter.Valid() {
		return nil
	}
	return c.iter.Key()
}

func (c *pebbleCursor) Value() []byte { return c.value }
func (c *pebbleCursor) Err() error    { return c.err }

func (c *pebbleCursor) Close() error {
	if c.iter == nil {
		return nil
	}
	err := c.iter.Close()
	c.iter, c.value = nil, nil
	return err
}

// pebbleLogger routes pebble's event log into slog.
type pebbleLogger struct {
	logger *slog.Logger
}

func (l pebbleLogger) Infof(format string, args ...any) {
	l.logger.LogAttrs(context.Background(), slog.LevelDebug, "pebble: "+fmt.Sprintf(format, args...))
}

func (l pebbleLogger) Errorf(format string, args ...any) {
	l.logger.LogAttrs(context.Background(), slog.LevelError, "pebble: "+fmt.Sprintf(format, args...))
}

func (l pebbleLogger) Fatalf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	l.logger.LogAttrs(context.Background(), slog.LevelError, "pebble: FATAL: "+msg)
	panic("pebble: " + msg)
}
