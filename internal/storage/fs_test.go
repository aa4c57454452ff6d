package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
)

func TestFilesystemStoreRoundTrip(t *testing.T) {
	store := NewFilesystemStore(t.TempDir(), zerolog.Nop())
	ctx := context.Background()

	if err := store.CheckAccess(ctx); err != nil {
		t.Fatalf("check access: %v", err)
	}

	data := []byte("BEGIN:VCALENDAR\r\nEND:VCALENDAR\r\n")
	if err := store.Put(ctx, "exports/2026-03-02/main.ics", data, "text/calendar"); err != nil {
		t.Fatalf("put: %v", err)
	}

	got, err := store.Get(ctx, "exports/2026-03-02/main.ics")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(got) != string(data) {
		t.Errorf("get returned %q, want %q", got, data)
	}
}

func TestFilesystemStoreGetMissing(t *testing.T) {
	store := NewFilesystemStore(t.TempDir(), zerolog.Nop())

	_, err := store.Get(context.Background(), "exports/nothing.ics")
	if !errors.Is(err, ErrObjectNotFound) {
		t.Fatalf("err = %v, want ErrObjectNotFound", err)
	}
}

func TestFilesystemStoreListByPrefix(t *testing.T) {
	store := NewFilesystemStore(t.TempDir(), zerolog.Nop())
	ctx := context.Background()

	for _, key := range []string{
		"exports/a.ics",
		"exports/b.yaml",
		"other/c.ics",
	} {
		if err := store.Put(ctx, key, []byte("x"), ""); err != nil {
			t.Fatalf("put %s: %v", key, err)
		}
	}

	keys, err := store.List(ctx, "exports/")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(keys) != 2 {
		t.Fatalf("got %d keys, want 2: %v", len(keys), keys)
	}
	if keys[0] != "exports/a.ics" || keys[1] != "exports/b.yaml" {
		t.Errorf("keys = %v", keys)
	}
}

func TestFilesystemStoreListEmptyRoot(t *testing.T) {
	store := NewFilesystemStore(t.TempDir()+"/missing", zerolog.Nop())

	keys, err := store.List(context.Background(), "")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(keys) != 0 {
		t.Errorf("got %d keys, want 0", len(keys))
	}
}

func TestFilesystemStoreDeleteIsIdempotent(t *testing.T) {
	store := NewFilesystemStore(t.TempDir(), zerolog.Nop())
	ctx := context.Background()

	if err := store.Put(ctx, "exports/x.ics", []byte("x"), ""); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := store.Delete(ctx, "exports/x.ics"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := store.Delete(ctx, "exports/x.ics"); err != nil {
		t.Fatalf("second delete: %v", err)
	}
}
