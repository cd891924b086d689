package okv

import (
	"bytes"
	"context"
	"log/slog"
)

type Options struct {
	// Logger receives verbose operation records and decode warnings;
	// defaults to slog.Default().
	Logger *slog.Logger

	// Verbose logs every operation at debug level.
	Verbose bool

	// CompressThreshold enables zstd compression of value payloads longer
	// than this many bytes. Zero disables compression.
	CompressThreshold int
}

// Store maps typed keys to typed values on top of a Backend. It owns the
// backend and holds no locks of its own: concurrent use is safe exactly when
// the backend's is.
type Store struct {
	backend           Backend
	logger            *slog.Logger
	verbose           bool
	compressThreshold int
	stats             counters
}

func New(b Backend, opt Options) *Store {
	logger := opt.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{
		backend:           b,
		logger:            logger,
		verbose:           opt.Verbose,
		compressThreshold: opt.CompressThreshold,
	}
	if s.verbose {
		s.debug("okv: OPEN", slog.Any("backend", b))
	}
	return s
}

func (s *Store) Backend() Backend {
	return s.backend
}

func (s *Store) Stats() Stats {
	return s.stats.snapshot()
}

func (s *Store) Close() error {
	if s.verbose {
		s.debug("okv: CLOSE", slog.String("stats", s.Stats().String()))
	}
	return s.backendFailed("close", nil, s.backend.Close())
}

// appendKeyOf appends the encoding of a key source: a Key, a Tuple, a Keyer,
// or a single element.
func appendKeyOf(buf []byte, src any) ([]byte, error) {
	switch v := src.(type) {
	case Key:
		return append(buf, v...), nil
	case Tuple:
		return appendTuple(buf, v, 0)
	case Keyer:
		return appendTuple(buf, v.KeyTuple(), 0)
	default:
		return appendTuple(buf, Tuple{src}, 0)
	}
}

func (s *Store) storeKey(src any) ([]byte, error) {
	k, err := appendKeyOf(keyBytesPool.Get().([]byte), src)
	if err != nil {
		return nil, err
	}
	if len(k) == 0 {
		releaseKeyBytes(k)
		return nil, ErrEmptyKey
	}
	return k, nil
}

// Set stores value under key, replacing any previous value.
func (s *Store) Set(key, value any) error {
	k, err := s.storeKey(key)
	if err != nil {
		return err
	}
	defer releaseKeyBytes(k)

	v, err := ValueOf(value)
	if err != nil {
		return err
	}
	raw, err := encodeValue(v, s.compressThreshold)
	if err != nil {
		return err
	}
	s.stats.sets.Add(1)
	if err := s.backend.Set(k, raw); err != nil {
		return s.backendFailed("set", k, err)
	}
	if s.verbose {
		s.debug("okv: SET", keyAttr(k), slog.String("value", v.String()), slog.Int("size", len(raw)))
	}
	return nil
}

// Get returns the value stored under key. A missing key is reported through
// the bool, not as an error.
func (s *Store) Get(key any) (Value, bool, error) {
	k, err := s.storeKey(key)
	if err != nil {
		return Value{}, false, err
	}
	defer releaseKeyBytes(k)

	s.stats.gets.Add(1)
	raw, err := s.backend.Get(k)
	if err != nil {
		return Value{}, false, s.backendFailed("get", k, err)
	}
	if raw == nil {
		s.stats.misses.Add(1)
		if s.verbose {
			s.debug("okv: GET.NOTFOUND", keyAttr(k))
		}
		return Value{}, false, nil
	}
	v, err := decodeValue(raw)
	if err != nil {
		return Value{}, false, s.entryFailed(k, raw, err)
	}
	if s.verbose {
		s.debug("okv: GET", keyAttr(k), slog.String("value", v.String()))
	}
	return v, true, nil
}

// Get returns the value under key converted to T; see ValueAs for the
// conversion rules.
func Get[T any](s *Store, key any) (T, bool, error) {
	var zero T
	v, ok, err := s.Get(key)
	if err != nil || !ok {
		return zero, false, err
	}
	out, err := ValueAs[T](v)
	if err != nil {
		k, _ := KeyOf(key)
		return zero, false, &EntryError{Key: k.Clone(), Err: err}
	}
	return out, true, nil
}

// Has reports whether key is present.
func (s *Store) Has(key any) (bool, error) {
	k, err := s.storeKey(key)
	if err != nil {
		return false, err
	}
	defer releaseKeyBytes(k)

	s.stats.gets.Add(1)
	raw, err := s.backend.Get(k)
	if err != nil {
		return false, s.backendFailed("get", k, err)
	}
	if raw == nil {
		s.stats.misses.Add(1)
	}
	return raw != nil, nil
}

// Delete removes key. Deleting a missing key succeeds.
func (s *Store) Delete(key any) error {
	k, err := s.storeKey(key)
	if err != nil {
		return err
	}
	defer releaseKeyBytes(k)

	s.stats.deletes.Add(1)
	if err := s.backend.Delete(k); err != nil {
		return s.backendFailed("delete", k, err)
	}
	if s.verbose {
		s.debug("okv: DELETE", keyAttr(k))
	}
	return nil
}

// Take removes key and returns the value it held.
func (s *Store) Take(key any) (Value, bool, error) {
	v, ok, err := s.Get(key)
	if err != nil || !ok {
		return v, ok, err
	}
	if err := s.Delete(key); err != nil {
		return Value{}, false, err
	}
	return v, true, nil
}

// Clear removes every entry.
func (s *Store) Clear() error {
	s.stats.clears.Add(1)
	if err := s.backend.Clear(); err != nil {
		return s.backendFailed("clear", nil, err)
	}
	if s.verbose {
		s.debug("okv: CLEAR")
	}
	return nil
}

// List starts a query over raw Values.
func (s *Store) List() Query[Value] {
	return Query[Value]{s: s}
}

// List starts a query whose values are converted to T.
func List[T any](s *Store) Query[T] {
	return Query[T]{s: s}
}

func (s *Store) backendFailed(op string, k []byte, err error) error {
	if err == nil {
		return nil
	}
	s.stats.backendErrors.Add(1)
	s.logger.LogAttrs(context.Background(), slog.LevelError, "okv: backend failure", slog.String("op", op), keyAttr(k), slog.Any("err", err))
	return backendErr(op, bytes.Clone(k), err)
}

func (s *Store) entryFailed(k, raw []byte, err error) error {
	s.stats.decodeErrors.Add(1)
	key := Key(bytes.Clone(k))
	if s.verbose {
		s.logger.LogAttrs(context.Background(), slog.LevelWarn, "okv: cannot decode entry", keyAttr(k), hexAttr("raw", raw), slog.Any("err", err))
	} else {
		s.logger.LogAttrs(context.Background(), slog.LevelWarn, "okv: cannot decode entry", keyAttr(k), slog.Any("err", err))
	}
	return &EntryError{Key: key, Err: err}
}

func (s *Store) debug(msg string, attrs ...slog.Attr) {
	s.logger.LogAttrs(context.Background(), slog.LevelDebug, msg, attrs...)
}

func keyAttr(k []byte) slog.Attr {
	if k == nil {
		return slog.String("key", "<none>")
	}
	return slog.String("key", Key(k).String())
}
