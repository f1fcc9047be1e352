package utils

import (
	"bytes"
	"testing"
	"time"
)

func TestTileCache(t *testing.T) {
	cache, err := OpenTileCache("", time.Hour)
	if err != nil {
		t.Fatalf("Failed to open TileCache: %v", err)
	}
	defer func() {
		if err := cache.Close(); err != nil {
			t.Logf("Error closing cache: %v", err)
		}
	}()

	key := TileKey(12, 2107, 1373)
	if key != "12/2107/1373" {
		t.Errorf("TileKey(12, 2107, 1373) = %q; want 12/2107/1373", key)
	}

	got, err := cache.Get(key)
	if err != nil || got != nil {
		t.Errorf("Get(miss) = (%v, %v); want (nil, nil)", got, err)
	}

	png := []byte("\x89PNG fake tile")
	if err := cache.Put(key, png); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	got, err = cache.Get(key)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !bytes.Equal(got, png) {
		t.Errorf("Get(%s) = %q; want %q", key, got, png)
	}

	batch := map[string][]byte{
		TileKey(12, 1, 1): []byte("a"),
		TileKey(12, 1, 2): []byte("b"),
	}
	if err := cache.BatchPut(batch); err != nil {
		t.Fatalf("BatchPut failed: %v", err)
	}
	n, err := cache.Count()
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if n != 3 {
		t.Errorf("Count() = %d; want 3", n)
	}
}
