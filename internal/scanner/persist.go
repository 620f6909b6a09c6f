package scanner

import (
	"errors"
	"time"

	"github.com/fenilsonani/diskscope/internal/cache"
)

// sizesKey names the persisted directory-size map.
const sizesKey = "scanner.dir_sizes"

// SaveSizes flushes the current directory-size cache contents to disk so a
// later run can skip re-sizing unchanged directories. Persistence failures
// never affect the in-memory cache.
func (s *Scanner) SaveSizes(p *cache.PersistenceAdapter, ttl time.Duration) error {
	items := s.sizes.Items()
	if len(items) == 0 {
		return nil
	}
	return p.Save(sizesKey, items, ttl)
}

// LoadSizes warms the directory-size cache from disk. A missing or expired
// persisted map is not an error; a corrupt one is reported and ignored by
// callers that treat warming as best effort.
func (s *Scanner) LoadSizes(p *cache.PersistenceAdapter) error {
	var items map[string]dirStat
	err := p.Load(sizesKey, &items)
	if errors.Is(err, cache.ErrNotFound) || errors.Is(err, cache.ErrExpired) {
		return nil
	}
	if err != nil {
		return err
	}
	for key, stat := range items {
		s.sizes.Set(key, stat)
	}
	return nil
}
