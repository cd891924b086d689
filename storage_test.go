package okv

import (
	"encoding/hex"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

type backendFactory struct {
	name string
	// scanWrites reports that writes made while a scan is open must not block
	// or fail.
	scanWrites bool
	open       func(t testing.TB) Backend
}

var backendFactories = []backendFactory{
	{"memory", true, func(t testing.TB) Backend {
		return NewMemory()
	}},
	{"bolt", true, func(t testing.TB) Backend {
		b, err := OpenBolt(filepath.Join(t.TempDir(), "test.db"), BoltOptions{IsTesting: true, ScanPageSize: 2})
		require.NoError(t, err)
		return b
	}},
	{"sqlite-memory", false, func(t testing.TB) Backend {
		b, err := OpenSQLite(":memory:", SQLiteOptions{IsTesting: true})
		require.NoError(t, err)
		return b
	}},
	{"sqlite-file", true, func(t testing.TB) Backend {
		b, err := OpenSQLite(filepath.Join(t.TempDir(), "test.sqlite"), SQLiteOptions{IsTesting: true})
		require.NoError(t, err)
		return b
	}},
	{"pebble", true, func(t testing.TB) Backend {
		b, err := OpenPebble("test", PebbleOptions{InMemory: true, IsTesting: true})
		require.NoError(t, err)
		return b
	}},
}

func forEachBackend(t *testing.T, f func(t *testing.T, b Backend)) {
	for _, bf := range backendFactories {
		t.Run(bf.name, func(t *testing.T) {
			b := bf.open(t)
			t.Cleanup(func() { b.Close() })
			f(t, b)
		})
	}
}

func scanKeys(t testing.TB, b Backend, r RawRange) []string {
	t.Helper()
	cur, err := b.Scan(r)
	require.NoError(t, err)
	defer cur.Close()
	var keys []string
	for cur.Next() {
		k := hex.EncodeToString(cur.Key())
		require.Equal(t, "v"+k, string(cur.Value()), "value of %s", k)
		keys = append(keys, k)
	}
	require.NoError(t, cur.Err())
	return keys
}

func TestBackend_GetSetDelete(t *testing.T) {
	forEachBackend(t, func(t *testing.T, b Backend) {
		v, err := b.Get(x("01"))
		require.NoError(t, err)
		require.Nil(t, v)

		require.NoError(t, b.Set(x("01"), []byte("a")))
		require.NoError(t, b.Set(x("01"), []byte("b")))
		v, err = b.Get(x("01"))
		require.NoError(t, err)
		require.Equal(t, []byte("b"), v)

		require.NoError(t, b.Delete(x("01")))
		require.NoError(t, b.Delete(x("01")))
		v, err = b.Get(x("01"))
		require.NoError(t, err)
		require.Nil(t, v)
	})
}

func TestBackend_binarySafe(t *testing.T) {
	forEachBackend(t, func(t *testing.T, b Backend) {
		key := x("00 FF 00 01")
		value := x("00 00 FF 01 00")
		require.NoError(t, b.Set(key, value))
		v, err := b.Get(key)
		require.NoError(t, err)
		require.Equal(t, value, v)
		v, err = b.Get(x("00 FF 00"))
		require.NoError(t, err)
		require.Nil(t, v)
	})
}

func TestBackend_copiesBuffers(t *testing.T) {
	forEachBackend(t, func(t *testing.T, b Backend) {
		key, value := x("01 02"), []byte("hello")
		require.NoError(t, b.Set(key, value))
		key[0], value[0] = 0xEE, 'j'

		v, err := b.Get(x("01 02"))
		require.NoError(t, err)
		require.Equal(t, []byte("hello"), v)

		v[0] = 'y'
		v, err = b.Get(x("01 02"))
		require.NoError(t, err)
		require.Equal(t, []byte("hello"), v)
	})
}

var scanFixture = []string{"01", "0100", "01ff", "02", "0200", "ff", "ffff"}

func fillScanFixture(t testing.TB, b Backend) {
	// insert out of order; the backend sorts
	for i := len(scanFixture) - 1; i >= 0; i-- {
		k := scanFixture[i]
		require.NoError(t, b.Set(x(k), []byte("v"+k)))
	}
}

func TestBackend_Scan(t *testing.T) {
	ranges := []RawRange{
		RawOO(),
		RawIO(x("0100")),
		RawEO(x("0100")),
		RawOI(x("02")),
		RawOE(x("02")),
		RawII(x("01"), x("02")),
		RawEE(x("01"), x("02")),
		RawIE(x("00"), x("01")),
		RawEI(x("ff"), x("ffff")),
		RawPrefix(x("01")),
		RawPrefix(x("02")),
		RawPrefix(x("ff")),
		RawPrefix(x("03")),
		RawEE(x("02"), x("02")),
		RawII(x("ff"), x("01")),
		emptyRange,
	}
	forEachBackend(t, func(t *testing.T, b Backend) {
		fillScanFixture(t, b)
		for _, r := range ranges {
			var expected []string
			for _, k := range scanFixture {
				if r.Contains(x(k)) {
					expected = append(expected, k)
				}
			}
			require.Equal(t, expected, scanKeys(t, b, r), "range %v", r)
		}
	})
}

func TestBackend_ScanEarlyClose(t *testing.T) {
	forEachBackend(t, func(t *testing.T, b Backend) {
		fillScanFixture(t, b)
		for i := 0; i < 3; i++ {
			cur, err := b.Scan(RawOO())
			require.NoError(t, err)
			require.True(t, cur.Next())
			require.Equal(t, x("01"), cur.Key())
			require.NoError(t, cur.Close())
			require.False(t, cur.Next())
		}
		require.NoError(t, b.Set(x("03"), []byte("v03")))
		require.Equal(t, []string{"01", "0100", "01ff", "02", "0200", "03", "ff", "ffff"}, scanKeys(t, b, RawOO()))
	})
}

func TestBackend_ScanWithWrites(t *testing.T) {
	for _, bf := range backendFactories {
		if !bf.scanWrites {
			continue
		}
		t.Run(bf.name, func(t *testing.T) {
			b := bf.open(t)
			t.Cleanup(func() { b.Close() })
			fillScanFixture(t, b)

			cur, err := b.Scan(RawOO())
			require.NoError(t, err)
			require.True(t, cur.Next())
			require.NoError(t, b.Set(x("0300"), []byte("v0300")))
			require.NoError(t, b.Delete(x("01")))

			var seen []string
			for cur.Next() {
				seen = append(seen, hex.EncodeToString(cur.Key()))
			}
			require.NoError(t, cur.Err())
			require.NoError(t, cur.Close())
			for _, k := range []string{"0100", "01ff", "02", "0200", "ff", "ffff"} {
				require.Contains(t, seen, k)
			}

			v, err := b.Get(x("0300"))
			require.NoError(t, err)
			require.Equal(t, []byte("v0300"), v)
		})
	}
}

func TestBackend_Clear(t *testing.T) {
	forEachBackend(t, func(t *testing.T, b Backend) {
		require.NoError(t, b.Clear())
		fillScanFixture(t, b)
		require.NoError(t, b.Clear())
		require.Nil(t, scanKeys(t, b, RawOO()))
		v, err := b.Get(x("01"))
		require.NoError(t, err)
		require.Nil(t, v)

		require.NoError(t, b.Set(x("01"), []byte("v01")))
		require.Equal(t, []string{"01"}, scanKeys(t, b, RawOO()))
	})
}

func TestBackend_Closed(t *testing.T) {
	forEachBackend(t, func(t *testing.T, b Backend) {
		require.NoError(t, b.Close())
		_, err := b.Get(x("01"))
		require.ErrorIs(t, err, ErrClosed)
		require.ErrorIs(t, b.Set(x("01"), []byte("v")), ErrClosed)
	})
}

func TestMemoryBackend_scanSeesLaterWrites(t *testing.T) {
	b := NewMemory()
	fillScanFixture(t, b)
	cur := must(b.Scan(RawOO()))
	defer cur.Close()

	require.True(t, cur.Next())
	require.NoError(t, b.Set(x("00"), []byte("v00")))
	require.NoError(t, b.Set(x("0101"), []byte("v0101")))
	require.NoError(t, b.Delete(x("0200")))
	var seen []string
	for cur.Next() {
		seen = append(seen, hex.EncodeToString(cur.Key()))
	}
	require.Equal(t, []string{"0100", "0101", "01ff", "02", "ff", "ffff"}, seen)
	require.Equal(t, 8, b.Len())
}

func TestBoltBackend_sharedDB(t *testing.T) {
	owner, err := OpenBolt(filepath.Join(t.TempDir(), "shared.db"), BoltOptions{IsTesting: true})
	require.NoError(t, err)
	defer owner.Close()

	other, err := NewBolt(owner.DB(), BoltOptions{Bucket: "other"})
	require.NoError(t, err)
	require.NoError(t, other.Set(x("01"), []byte("v01")))
	require.NoError(t, other.Close())

	v, err := owner.Get(x("01"))
	require.NoError(t, err)
	require.Nil(t, v)
	v, err = other.Get(x("01"))
	require.NoError(t, err)
	require.Equal(t, []byte("v01"), v)
}
