package index

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/starford/raido/internal/schema"
	"github.com/starford/raido/internal/storage"
	"github.com/starford/raido/internal/validate"
)

const watcherSchema = `
type "adr" {
    field "title" type="string" required=#true
    field "status" type="enum" required=#true {
        values "proposed" "accepted"
    }
}
`

const watcherDoc = `---
title: Use Postgres
type: adr
status: accepted
---

# Use Postgres
`

// watcherTestEnv sets up a corpus dir, storage, validator, and DB.
func watcherTestEnv(t *testing.T) (string, storage.Provider, *validate.Validator, *DB) {
	t.Helper()
	corpusDir := t.TempDir()
	store, err := storage.NewFS(corpusDir)
	if err != nil {
		t.Fatal(err)
	}
	s, err := schema.Parse(watcherSchema)
	if err != nil {
		t.Fatal(err)
	}
	v := validate.New(s)
	dbFile, err := os.CreateTemp("", "raido-watcher-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })
	db, err := Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return corpusDir, store, v, db
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// eventually polls fn every tick until it returns true or timeout elapses.
func eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Error(msg)
}

func TestSyncIndexesAndPrunes(t *testing.T) {
	corpusDir, store, v, db := watcherTestEnv(t)
	logger := quietLogger()

	_ = os.WriteFile(filepath.Join(corpusDir, "adr-001.md"), []byte(watcherDoc), 0o644)
	_ = os.WriteFile(filepath.Join(corpusDir, "broken.md"), []byte("---\ntitle: [unclosed\n---\nbody"), 0o644)

	if err := Sync(db, store, v, logger); err != nil {
		t.Fatalf("Sync: %v", err)
	}

	s, _ := db.GetDocument("adr-001.md")
	if s == nil {
		t.Fatal("adr-001.md not indexed")
	}
	if s.ID != "ADR-001" || s.Type != "adr" || s.Errors != 0 {
		t.Errorf("summary = %+v", s)
	}

	// The unparseable file is still cached, with its parse error.
	b, _ := db.GetDocument("broken.md")
	if b == nil {
		t.Fatal("broken.md not indexed")
	}
	if b.Errors != 1 {
		t.Errorf("broken.md errors = %d, want 1", b.Errors)
	}
	diags, _ := db.Diagnostics("broken.md")
	if len(diags) != 1 || diags[0].Code != "E000" {
		t.Errorf("broken.md diagnostics = %+v, want one E000", diags)
	}

	// Removing the file on disk prunes it on the next sync.
	_ = os.Remove(filepath.Join(corpusDir, "broken.md"))
	if err := Sync(db, store, v, logger); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	cs, _ := db.GetChecksum("broken.md")
	if cs != "" {
		t.Error("stale entry survived sync")
	}
}

func TestWatcher_NewFileIndexed(t *testing.T) {
	corpusDir, store, v, db := watcherTestEnv(t)
	logger := quietLogger()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var events []string

	go Watch(ctx, db, store, v, corpusDir, logger, func(kind, path string) {
		mu.Lock()
		events = append(events, kind+":"+path)
		mu.Unlock()
	})

	time.Sleep(100 * time.Millisecond)

	_ = os.WriteFile(filepath.Join(corpusDir, "new.md"), []byte(watcherDoc), 0o644)

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		cs, _ := db.GetChecksum("new.md")
		return cs != ""
	}, "new file not indexed by watcher")

	eventually(t, 2*time.Second, 50*time.Millisecond, func() bool {
		mu.Lock()
		defer mu.Unlock()
		for _, e := range events {
			if e == "created:new.md" {
				return true
			}
		}
		return false
	}, "expected created:new.md callback")
}

func TestWatcher_NewDirWatched(t *testing.T) {
	corpusDir, store, v, db := watcherTestEnv(t)
	logger := quietLogger()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go Watch(ctx, db, store, v, corpusDir, logger, nil)

	time.Sleep(100 * time.Millisecond)

	subDir := filepath.Join(corpusDir, "subdir")
	_ = os.MkdirAll(subDir, 0o755)

	time.Sleep(200 * time.Millisecond)

	_ = os.WriteFile(filepath.Join(subDir, "deep.md"), []byte(watcherDoc), 0o644)

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		cs, _ := db.GetChecksum(filepath.Join("subdir", "deep.md"))
		return cs != ""
	}, "file in new subdir not indexed by watcher")
}

func TestWatcher_DeleteRemovesFromIndex(t *testing.T) {
	corpusDir, store, v, db := watcherTestEnv(t)
	logger := quietLogger()

	_ = os.WriteFile(filepath.Join(corpusDir, "del.md"), []byte(watcherDoc), 0o644)
	Sync(db, store, v, logger)

	cs, _ := db.GetChecksum("del.md")
	if cs == "" {
		t.Fatal("precondition: file should be indexed")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go Watch(ctx, db, store, v, corpusDir, logger, nil)
	time.Sleep(100 * time.Millisecond)

	_ = os.Remove(filepath.Join(corpusDir, "del.md"))

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		cs, _ := db.GetChecksum("del.md")
		return cs == ""
	}, "deleted file still in index")
}

func TestWatcher_RenameReconciles(t *testing.T) {
	corpusDir, store, v, db := watcherTestEnv(t)
	logger := quietLogger()

	_ = os.WriteFile(filepath.Join(corpusDir, "old.md"), []byte(watcherDoc), 0o644)
	Sync(db, store, v, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go Watch(ctx, db, store, v, corpusDir, logger, nil)
	time.Sleep(100 * time.Millisecond)

	_ = os.Rename(filepath.Join(corpusDir, "old.md"), filepath.Join(corpusDir, "renamed.md"))

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		oldCS, _ := db.GetChecksum("old.md")
		newCS, _ := db.GetChecksum("renamed.md")
		return oldCS == "" && newCS != ""
	}, "rename reconciliation failed: old path should be removed and new path indexed")
}
