package okv

// Backend is a storage medium holding a byte-keyed mapping. Keys are ordered
// by unsigned lexicographic comparison; the Store never re-sorts what a
// backend returns.
type Backend interface {
	// Get returns the value stored under key, or nil without an error if
	// there is none.
	Get(key []byte) ([]byte, error)

	// Set stores value under key, replacing any previous value.
	Set(key, value []byte) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(key []byte) error

	// Clear removes every key.
	Clear() error

	// Scan returns a cursor over the entries in r in ascending key order.
	// The cursor must be closed.
	Scan(r RawRange) (Cursor, error)

	// Close releases the medium. Backends opened by the caller are closed by
	// the caller.
	Close() error
}

// Cursor is a forward-only iteration over a Scan. Key and Value are valid
// until the next call to Next.
type Cursor interface {
	Next() bool
	Key() []byte
	Value() []byte
	// Err returns the error that stopped the iteration early, if any.
	Err() error
	Close() error
}

type emptyCursor struct{}

func (emptyCursor) Next() bool    { return false }
func (emptyCursor) Key() []byte   { return nil }
func (emptyCursor) Value() []byte { return nil }
func (emptyCursor) Err() error    { return nil }
func (emptyCursor) Close() error  { return nil }
