package cache

import (
	"errors"
	"testing"
	"time"

	"github.com/go-git/go-billy/v5/memfs"
)

type dirSample struct {
	Path  string
	Size  int64
	Files int
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	p := NewPersistenceAdapterFS(memfs.New())

	in := dirSample{Path: "/Users/alice/Movies", Size: 1 << 30, Files: 42}
	if err := p.Save("dir:/Users/alice/Movies", in, time.Hour); err != nil {
		t.Fatalf("Save: %v", err)
	}

	var out dirSample
	if err := p.Load("dir:/Users/alice/Movies", &out); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if out != in {
		t.Errorf("Load = %+v, want %+v", out, in)
	}
}

func TestLoadMissingKey(t *testing.T) {
	p := NewPersistenceAdapterFS(memfs.New())

	var out dirSample
	err := p.Load("never-saved", &out)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Load = %v, want ErrNotFound", err)
	}
}

func TestLoadExpiredEntry(t *testing.T) {
	p := NewPersistenceAdapterFS(memfs.New())

	if err := p.Save("stale", dirSample{Size: 1}, time.Nanosecond); err != nil {
		t.Fatalf("Save: %v", err)
	}
	time.Sleep(time.Millisecond)

	var out dirSample
	err := p.Load("stale", &out)
	if !errors.Is(err, ErrExpired) {
		t.Fatalf("Load = %v, want ErrExpired", err)
	}

	// The stale file is removed, so a second load reports not found.
	err = p.Load("stale", &out)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("second Load = %v, want ErrNotFound", err)
	}
}

func TestSaveReplacesPreviousValue(t *testing.T) {
	p := NewPersistenceAdapterFS(memfs.New())

	if err := p.Save("key", dirSample{Size: 1}, time.Hour); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := p.Save("key", dirSample{Size: 2}, time.Hour); err != nil {
		t.Fatalf("Save(replace): %v", err)
	}

	var out dirSample
	if err := p.Load("key", &out); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if out.Size != 2 {
		t.Errorf("Size = %d, want 2", out.Size)
	}
}

func TestDelete(t *testing.T) {
	p := NewPersistenceAdapterFS(memfs.New())

	if err := p.Save("key", dirSample{Size: 1}, time.Hour); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := p.Delete("key"); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	var out dirSample
	if err := p.Load("key", &out); !errors.Is(err, ErrNotFound) {
		t.Errorf("Load after Delete = %v, want ErrNotFound", err)
	}

	// Deleting an absent entry is not an error.
	if err := p.Delete("key"); err != nil {
		t.Errorf("Delete(absent) = %v, want nil", err)
	}
}

func TestClearAll(t *testing.T) {
	p := NewPersistenceAdapterFS(memfs.New())

	for _, key := range []string{"a", "b", "c"} {
		if err := p.Save(key, dirSample{Size: 1}, time.Hour); err != nil {
			t.Fatalf("Save(%s): %v", key, err)
		}
	}
	if err := p.ClearAll(); err != nil {
		t.Fatalf("ClearAll: %v", err)
	}

	size, err := p.TotalSize()
	if err != nil {
		t.Fatalf("TotalSize: %v", err)
	}
	if size != 0 {
		t.Errorf("TotalSize = %d, want 0 after ClearAll", size)
	}
}

func TestTotalSize(t *testing.T) {
	p := NewPersistenceAdapterFS(memfs.New())

	size, err := p.TotalSize()
	if err != nil {
		t.Fatalf("TotalSize(empty): %v", err)
	}
	if size != 0 {
		t.Errorf("TotalSize(empty) = %d, want 0", size)
	}

	if err := p.Save("key", dirSample{Size: 1}, time.Hour); err != nil {
		t.Fatalf("Save: %v", err)
	}
	size, err = p.TotalSize()
	if err != nil {
		t.Fatalf("TotalSize: %v", err)
	}
	if size <= 0 {
		t.Errorf("TotalSize = %d, want > 0 after Save", size)
	}
}

func TestLoadTypeMismatch(t *testing.T) {
	p := NewPersistenceAdapterFS(memfs.New())

	if err := p.Save("key", dirSample{Size: 1}, time.Hour); err != nil {
		t.Fatalf("Save: %v", err)
	}

	var out string
	if err := p.Load("key", &out); err == nil {
		t.Error("decoding into the wrong type should fail")
	}
}

func TestOnDiskAdapter(t *testing.T) {
	p, err := NewPersistenceAdapter(t.TempDir())
	if err != nil {
		t.Fatalf("NewPersistenceAdapter: %v", err)
	}

	in := dirSample{Path: "/tmp", Size: 7}
	if err := p.Save("key", in, time.Hour); err != nil {
		t.Fatalf("Save: %v", err)
	}
	var out dirSample
	if err := p.Load("key", &out); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if out != in {
		t.Errorf("Load = %+v, want %+v", out, in)
	}
}
