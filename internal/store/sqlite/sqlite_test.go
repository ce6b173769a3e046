package sqlite_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"whsper/internal/db"
	"whsper/internal/store"
	"whsper/internal/store/sqlite"
)

func openStore(t *testing.T) *sqlite.Store {
	t.Helper()
	s, err := sqlite.Open(context.Background(), db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestGetMissingKey(t *testing.T) {
	s := openStore(t)
	err := s.View(context.Background(), func(r store.Reader) error {
		_, err := r.Get(store.ClaimKey(1))
		return err
	})
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPutOverwrites(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	key := store.CreatorIndexKey("GC")
	for _, v := range []string{`[1]`, `[1,2]`} {
		v := v
		if err := s.Update(ctx, func(w store.Writer) error { return w.Put(key, []byte(v)) }); err != nil {
			t.Fatalf("put: %v", err)
		}
	}
	var got []byte
	if err := s.View(ctx, func(r store.Reader) error {
		var err error
		got, err = r.Get(key)
		return err
	}); err != nil {
		t.Fatalf("view: %v", err)
	}
	if string(got) != `[1,2]` {
		t.Fatalf("expected overwritten value, got %s", got)
	}
}

func TestUpdateRollsBackOnError(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	boom := errors.New("boom")
	err := s.Update(ctx, func(w store.Writer) error {
		if err := w.Put(store.ConfigKey(), []byte(`{}`)); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	err = s.View(ctx, func(r store.Reader) error {
		_, err := r.Get(store.ConfigKey())
		return err
	})
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected rollback, got %v", err)
	}
}

func TestExplicitPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "claims.db")
	s, err := sqlite.Open(context.Background(), db.Config{Path: path})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()
	if err := s.Update(context.Background(), func(w store.Writer) error {
		return w.Put(store.ClaimKey(1), []byte(`{}`))
	}); err != nil {
		t.Fatalf("put: %v", err)
	}
}
