package okv

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const sqliteMemory = ":memory:"

type SQLiteOptions struct {
	// BusyTimeout is how long a writer waits for a lock; defaults to 5s.
	BusyTimeout time.Duration

	// IsTesting turns off fsync.
	IsTesting bool
}

// SQLiteBackend keeps entries in a two-column table and relies on SQLite's
// memcmp ordering of BLOB primary keys. Scans stream through the rows of a
// single ordered SELECT, so their view of concurrent writes follows SQLite's
// isolation rules: a file database in WAL mode gives each scan a snapshot,
// while the shared-cache ":memory:" database reads uncommitted data.
type SQLiteBackend struct {
	db   *sql.DB
	name string
}

var _ Backend = (*SQLiteBackend)(nil)

// OpenSQLite opens or creates a database file. The special path ":memory:"
// opens a private in-memory database shared by all pooled connections.
func OpenSQLite(path string, opt SQLiteOptions) (*SQLiteBackend, error) {
	busy := opt.BusyTimeout
	if busy <= 0 {
		busy = 5 * time.Second
	}
	pragmas := []string{fmt.Sprintf("busy_timeout(%d)", busy.Milliseconds())}

	base := path
	var params []string
	if path == sqliteMemory {
		base = "file:okv-" + uuid.New().String()
		params = append(params, "mode=memory", "cache=shared")
		pragmas = append(pragmas, "read_uncommitted(1)")
	} else {
		pragmas = append(pragmas, "journal_mode(WAL)")
		if opt.IsTesting {
			pragmas = append(pragmas, "synchronous(OFF)")
		} else {
			pragmas = append(pragmas, "synchronous(NORMAL)")
		}
	}
	for _, p := range pragmas {
		params = append(params, "_pragma="+p)
	}
	dsn := base + "?" + strings.Join(params, "&")

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("okv: open sqlite %s: %w", path, err)
	}
	if path == sqliteMemory {
		// the database lives as long as one connection does
		db.SetMaxIdleConns(4)
		db.SetConnMaxLifetime(0)
		db.SetConnMaxIdleTime(0)
	}
	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS kv (
		key BLOB PRIMARY KEY NOT NULL,
		value BLOB NOT NULL
	) WITHOUT ROWID`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("okv: sqlite schema: %w", err)
	}
	return &SQLiteBackend{db: db, name: path}, nil
}

func (b *SQLiteBackend) DB() *sql.DB {
	return b.db
}

func (b *SQLiteBackend) Get(key []byte) ([]byte, error) {
	var value []byte
	err := b.db.QueryRow(`SELECT value FROM kv WHERE key = ?`, nonNilBytes(key)).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	} else if err != nil {
		return nil, mapSQLiteErr(err)
	}
	return nonNilBytes(value), nil
}

func (b *SQLiteBackend) Set(key, value []byte) error {
	_, err := b.db.Exec(`INSERT INTO kv (key, value) VALUES (?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value`, nonNilBytes(key), nonNilBytes(value))
	return mapSQLiteErr(err)
}

func (b *SQLiteBackend) Delete(key []byte) error {
	_, err := b.db.Exec(`DELETE FROM kv WHERE key = ?`, nonNilBytes(key))
	return mapSQLiteErr(err)
}

func (b *SQLiteBackend) Clear() error {
	_, err := b.db.Exec(`DELETE FROM kv`)
	return mapSQLiteErr(err)
}

func (b *SQLiteBackend) Scan(r RawRange) (Cursor, error) {
	if r.IsEmpty() {
		return emptyCursor{}, nil
	}
	var conds []string
	var args []any
	if r.Lower != nil {
		if r.LowerInc {
			conds = append(conds, "key >= ?")
		} else {
			conds = append(conds, "key > ?")
		}
		args = append(args, nonNilBytes(r.Lower))
	}
	if r.Upper != nil {
		if r.UpperInc {
			conds = append(conds, "key <= ?")
		} else {
			conds = append(conds, "key < ?")
		}
		args = append(args, nonNilBytes(r.Upper))
	}
	q := "SELECT key, value FROM kv"
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += " ORDER BY key"

	rows, err := b.db.Query(q, args...)
	if err != nil {
		return nil, mapSQLiteErr(err)
	}
	return &sqliteCursor{rows: rows}, nil
}

func (b *SQLiteBackend) Close() error {
	return b.db.Close()
}

// nonNilBytes keeps empty keys and values from binding as NULL.
func nonNilBytes(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	return b
}

func mapSQLiteErr(err error) error {
	if err != nil && strings.Contains(err.Error(), "sql: database is closed") {
		return fmt.Errorf("%w: %w", ErrClosed, err)
	}
	return err
}

type sqliteCursor struct {
	rows       *sql.Rows
	key, value []byte
	err        error
}

func (c *sqliteCursor) Next() bool {
	if c.err != nil || c.rows == nil {
		return false
	}
	if !c.rows.Next() {
		c.err = c.rows.Err()
		c.key, c.value = nil, nil
		return false
	}
	if err := c.rows.Scan(&c.key, &c.value); err != nil {
		c.err = err
		c.key, c.value = nil, nil
		return false
	}
	c.value = nonNilBytes(c.value)
	return true
}

func (c *sqliteCursor) Key() []byte   { return c.key }
func (c *sqliteCursor) Value() []byte { return c.value }
func (c *sqliteCursor) Err() error    { return c.err }

func (c *sqliteCursor) Close() error {
	if c.rows == nil {
		return nil
	}
	err := c.rows.Close()
	c.rows = nil
	return err
}

func (b *SQLiteBackend) String() string {
	return "sqlite:" + b.name
}
