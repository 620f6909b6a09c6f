package cache

import (
	"bytes"
	"encoding/gob"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"

	"github.com/fenilsonani/diskscope/pkg/utils"
)

var (
	// ErrNotFound reports that no persisted entry exists for a key.
	ErrNotFound = errors.New("cache: persisted entry not found")
	// ErrExpired reports that a persisted entry outlived its TTL. The stale
	// file has already been removed when this is returned.
	ErrExpired = errors.New("cache: persisted entry expired")
)

// record is the on-disk envelope around a persisted value.
type record struct {
	Key       string
	Payload   []byte
	CreatedAt time.Time
	TTL       time.Duration
}

// PersistenceAdapter writes cache entries to disk, one gob file per key,
// under an application-private directory. All failures are reported to the
// caller; the in-memory cache is never touched from here.
type PersistenceAdapter struct {
	mu sync.Mutex // distinct from the Cache mutex
	fs billy.Filesystem
}

// NewPersistenceAdapter stores entries under dir, creating it if needed.
func NewPersistenceAdapter(dir string) (*PersistenceAdapter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}
	return NewPersistenceAdapterFS(osfs.New(dir)), nil
}

// NewPersistenceAdapterFS stores entries in the root of fs. Tests pass a
// memfs here.
func NewPersistenceAdapterFS(fs billy.Filesystem) *PersistenceAdapter {
	return &PersistenceAdapter{fs: fs}
}

// fileName derives the entry file name from a hash of the key, so arbitrary
// key strings never leak into paths.
func fileName(key string) string {
	return utils.HashKey(key) + ".gob"
}

// Save serializes value for key with the given TTL.
func (p *PersistenceAdapter) Save(key string, value any, ttl time.Duration) error {
	payload, err := gobEncode(value)
	if err != nil {
		return fmt.Errorf("encode value for %q: %w", key, err)
	}
	rec := record{
		Key:       key,
		Payload:   payload,
		CreatedAt: time.Now(),
		TTL:       ttl,
	}
	data, err := gobEncode(rec)
	if err != nil {
		return fmt.Errorf("encode record for %q: %w", key, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	f, err := p.fs.Create(fileName(key))
	if err != nil {
		return fmt.Errorf("create entry file for %q: %w", key, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("write entry file for %q: %w", key, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close entry file for %q: %w", key, err)
	}
	return nil
}

// Load decodes the entry for key into out, which must be a pointer to the
// saved value's type. TTL is re-validated at load time: an expired entry is
// deleted and reported as ErrExpired rather than restored.
func (p *PersistenceAdapter) Load(key string, out any) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	f, err := p.fs.Open(fileName(key))
	if err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return fmt.Errorf("open entry file for %q: %w", key, err)
	}
	data, err := io.ReadAll(f)
	f.Close()
	if err != nil {
		return fmt.Errorf("read entry file for %q: %w", key, err)
	}

	var rec record
	if err := gobDecode(data, &rec); err != nil {
		return fmt.Errorf("decode record for %q: %w", key, err)
	}
	if time.Since(rec.CreatedAt) > rec.TTL {
		// Best effort removal of the stale file.
		p.fs.Remove(fileName(key))
		return ErrExpired
	}
	if err := gobDecode(rec.Payload, out); err != nil {
		return fmt.Errorf("decode value for %q: %w", key, err)
	}
	return nil
}

// Delete removes the persisted entry for key. Deleting a missing entry is
// not an error.
func (p *PersistenceAdapter) Delete(key string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.fs.Remove(fileName(key)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete entry file for %q: %w", key, err)
	}
	return nil
}

// ClearAll removes every persisted entry.
func (p *PersistenceAdapter) ClearAll() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	infos, err := p.fs.ReadDir(".")
	if err != nil {
		return fmt.Errorf("list cache directory: %w", err)
	}
	for _, info := range infos {
		if info.IsDir() || filepath.Ext(info.Name()) != ".gob" {
			continue
		}
		if err := p.fs.Remove(info.Name()); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove %s: %w", info.Name(), err)
		}
	}
	return nil
}

// TotalSize reports the byte total of all persisted entry files.
func (p *PersistenceAdapter) TotalSize() (int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	infos, err := p.fs.ReadDir(".")
	if err != nil {
		return 0, fmt.Errorf("list cache directory: %w", err)
	}
	var total int64
	for _, info := range infos {
		if info.IsDir() || filepath.Ext(info.Name()) != ".gob" {
			continue
		}
		total += info.Size()
	}
	return total, nil
}

func gobEncode(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func gobDecode(data []byte, out any) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(out)
}
