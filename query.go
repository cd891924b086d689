package okv

import (
	"bytes"
	"context"
	"errors"
	"iter"
	"log/slog"
)

// Entry is a stored key with its decoded value.
type Entry[T any] struct {
	Key   Key
	Value T
}

// Query describes a scan over a Store. It is a value: every builder method
// returns an updated copy, so a query that is being iterated never changes.
//
// The prefix, the lower bound and the upper bound are intersected. A bound
// that falls outside the prefix makes the whole range empty rather than being
// clamped to the prefix; this is not an error.
type Query[T any] struct {
	s        *Store
	prefix   Key
	lower    Key
	upper    Key
	lowerInc bool
	upperInc bool
	limit    int
	err      error
}

// Prefix limits the scan to keys extending the given key.
func (q Query[T]) Prefix(key any) Query[T] {
	q.prefix, q.err = q.bound(key)
	return q
}

// Start sets an inclusive lower bound.
func (q Query[T]) Start(key any) Query[T] {
	q.lower, q.err = q.bound(key)
	q.lowerInc = true
	return q
}

// After sets an exclusive lower bound.
func (q Query[T]) After(key any) Query[T] {
	q.lower, q.err = q.bound(key)
	q.lowerInc = false
	return q
}

// End sets an exclusive upper bound.
func (q Query[T]) End(key any) Query[T] {
	q.upper, q.err = q.bound(key)
	q.upperInc = false
	return q
}

// Through sets an inclusive upper bound.
func (q Query[T]) Through(key any) Query[T] {
	q.upper, q.err = q.bound(key)
	q.upperInc = true
	return q
}

// Limit stops the scan after n entries; n <= 0 means no limit.
func (q Query[T]) Limit(n int) Query[T] {
	q.limit = n
	return q
}

func (q Query[T]) bound(src any) (Key, error) {
	if q.err != nil {
		return nil, q.err
	}
	k, err := appendKeyOf(nil, src)
	if err != nil {
		return nil, err
	}
	if k == nil {
		k = Key{}
	}
	return k, nil
}

// emptyRange contains nothing: its exclusive upper bound is the empty string.
var emptyRange = RawRange{Lower: []byte{}, LowerInc: true, Upper: []byte{}}

// Range returns the byte range the query scans.
func (q Query[T]) Range() (RawRange, error) {
	if q.err != nil {
		return RawRange{}, q.err
	}
	r := RawOO()
	if q.prefix != nil {
		r = RawPrefix(q.prefix)
		if (q.lower != nil && !r.Contains(q.lower)) || (q.upper != nil && !r.Contains(q.upper)) {
			return emptyRange, nil
		}
	}
	if q.lower != nil {
		r = r.Intersect(RawRange{Lower: q.lower, LowerInc: q.lowerInc})
	}
	if q.upper != nil {
		r = r.Intersect(RawRange{Upper: q.upper, UpperInc: q.upperInc})
	}
	return r, nil
}

// scan drives a backend cursor over the query range, calling f for each raw
// entry until f returns false. The cursor is closed on every exit path.
func (q Query[T]) scan(f func(k, v []byte) bool) error {
	s := q.s
	r, err := q.Range()
	if err != nil {
		return err
	}
	s.stats.scans.Add(1)
	if s.verbose {
		s.debug("okv: SCAN", slog.String("range", r.String()), slog.Int("limit", q.limit))
	}
	cur, err := s.backend.Scan(r)
	if err != nil {
		return s.backendFailed("scan", nil, err)
	}
	defer func() {
		if err := cur.Close(); err != nil {
			s.logger.LogAttrs(context.Background(), slog.LevelWarn, "okv: closing cursor", slog.Any("err", err))
		}
	}()

	n := 0
	for (q.limit <= 0 || n < q.limit) && cur.Next() {
		n++
		s.stats.scannedEntries.Add(1)
		if !f(cur.Key(), cur.Value()) {
			return nil
		}
	}
	return s.backendFailed("scan", nil, cur.Err())
}

// Iter scans lazily. An entry whose value cannot be decoded as T is yielded
// with its key and an *EntryError, and the scan goes on. A backend failure is
// yielded once and ends the scan.
func (q Query[T]) Iter() iter.Seq2[Entry[T], error] {
	return func(yield func(Entry[T], error) bool) {
		err := q.scan(func(k, raw []byte) bool {
			key := Key(bytes.Clone(k))
			val, err := decodeAs[T](raw)
			if err != nil {
				return yield(Entry[T]{Key: key}, q.s.entryFailed(key, raw, err))
			}
			return yield(Entry[T]{key, val}, nil)
		})
		if err != nil {
			yield(Entry[T]{}, err)
		}
	}
}

func decodeAs[T any](raw []byte) (T, error) {
	v, err := decodeValue(raw)
	if err != nil {
		var zero T
		return zero, err
	}
	return ValueAs[T](v)
}

// Keys scans keys only; values are not decoded.
func (q Query[T]) Keys() iter.Seq2[Key, error] {
	return func(yield func(Key, error) bool) {
		err := q.scan(func(k, _ []byte) bool {
			return yield(Key(bytes.Clone(k)), nil)
		})
		if err != nil {
			yield(nil, err)
		}
	}
}

// Entries collects the scan. Entries that fail to decode are left out and
// their errors are joined into the returned error; the decoded ones are
// returned regardless.
func (q Query[T]) Entries() ([]Entry[T], error) {
	var result []Entry[T]
	var errs []error
	for e, err := range q.Iter() {
		if err != nil {
			errs = append(errs, err)
			continue
		}
		result = append(result, e)
	}
	return result, errors.Join(errs...)
}

// First returns the first entry of the scan.
func (q Query[T]) First() (Entry[T], bool, error) {
	for e, err := range q.Limit(1).Iter() {
		return e, err == nil, err
	}
	return Entry[T]{}, false, nil
}

// Count counts the keys in the range without decoding values.
func (q Query[T]) Count() (int, error) {
	n := 0
	for _, err := range q.Keys() {
		if err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}
