package utils

import (
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// TileCache keeps encoded map tiles keyed by "z/x/y". With an empty path it
// runs badger in memory, so nothing outlives the process.
type TileCache struct {
	db  *badger.DB
	ttl time.Duration
}

func OpenTileCache(path string, ttl time.Duration) (*TileCache, error) {
	opts := badger.DefaultOptions(path)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	// Decrease logging verbosity
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open tile cache: %w", err)
	}
	return &TileCache{db: db, ttl: ttl}, nil
}

func (c *TileCache) Close() error {
	return c.db.Close()
}

func TileKey(z, x, y int) string {
	return fmt.Sprintf("%d/%d/%d", z, x, y)
}

func (c *TileCache) Put(key string, data []byte) error {
	return c.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry([]byte(key), data)
		if c.ttl > 0 {
			e = e.WithTTL(c.ttl)
		}
		return txn.SetEntry(e)
	})
}

// BatchPut stores several tiles in one write batch.
func (c *TileCache) BatchPut(entries map[string][]byte) error {
	wb := c.db.NewWriteBatch()
	defer wb.Cancel()

	for k, v := range entries {
		e := badger.NewEntry([]byte(k), v)
		if c.ttl > 0 {
			e = e.WithTTL(c.ttl)
		}
		if err := wb.SetEntry(e); err != nil {
			return err
		}
	}
	return wb.Flush()
}

// Get returns nil, nil on a miss.
func (c *TileCache) Get(key string) ([]byte, error) {
	var val []byte
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		val, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	return val, err
}

// Count walks the keys without fetching values.
func (c *TileCache) Count() (int, error) {
	n := 0
	err := c.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			n++
		}
		return nil
	})
	return n, err
}
