package storage

import (
	"context"
	"path/filepath"
	"testing"
)

func testKV(t *testing.T, kv KV) {
	t.Helper()
	ctx := context.Background()

	if _, ok, err := kv.Get(ctx, "missing"); ok || err != nil {
		t.Fatalf("expected absent key, got ok=%v err=%v", ok, err)
	}
	if err := kv.Set(ctx, "k", []byte(`[1]`)); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := kv.Set(ctx, "k", []byte(`[1,2]`)); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	v, ok, err := kv.Get(ctx, "k")
	if err != nil || !ok || string(v) != `[1,2]` {
		t.Fatalf("unexpected value %q ok=%v err=%v", v, ok, err)
	}
}

func TestMemoryKV(t *testing.T) {
	kv := NewMemoryKV()
	testKV(t, kv)

	v, _, _ := kv.Get(context.Background(), "k")
	v[0] = 'x'
	if again, _, _ := kv.Get(context.Background(), "k"); string(again) != `[1,2]` {
		t.Fatalf("Get must return a copy, store now holds %q", again)
	}
}

func TestSQLiteKV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "billtrack.db")
	kv, err := NewSQLiteKV(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	testKV(t, kv)
	if v, err := RunMigrations(path); err != nil || v != 1 {
		t.Fatalf("expected schema version 1, got %d err=%v", v, err)
	}
	if err := kv.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	// Reopening runs migrations again and keeps the data.
	kv, err = NewSQLiteKV(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer kv.Close()
	v, ok, err := kv.Get(context.Background(), "k")
	if err != nil || !ok || string(v) != `[1,2]` {
		t.Fatalf("value lost after reopen: %q ok=%v err=%v", v, ok, err)
	}
}
