package preprocess

import (
	"bytes"
	"crypto/sha256"
	"database/sql"
	"encoding/gob"
	"fmt"
	"sort"

	_ "github.com/mattn/go-sqlite3"

	"github.com/deepdrugkit/deepdrugkit/internal/bio"
	"github.com/deepdrugkit/deepdrugkit/internal/chem"
	"github.com/deepdrugkit/deepdrugkit/pkg/errors"
)

func init() {
	// Concrete transform output types crossing the gob boundary.
	gob.Register([]float32{})
	gob.Register(float64(0))
	gob.Register("")
	gob.Register(&chem.Graph{})
	gob.Register(&bio.ContactMap{})
}

// Cache is a sqlite-backed store for offline transform outputs.  Values are
// gob-encoded; keys bind the transform, its settings, and the input value,
// so a settings change never serves stale entries.  The on-disk format
// carries no compatibility guarantee across versions.
type Cache struct {
	db *sql.DB
}

// OpenCache opens (creating if needed) the cache database at path.
// ":memory:" gives an ephemeral cache for tests.
func OpenCache(path string) (*Cache, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Resource(errors.ErrCodeCacheFailure, "opening preprocess cache", err).WithDetail(path)
	}
	const schema = `CREATE TABLE IF NOT EXISTS transform_cache (
		key   TEXT PRIMARY KEY,
		value BLOB NOT NULL
	)`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.Resource(errors.ErrCodeCacheFailure, "initialising preprocess cache", err).WithDetail(path)
	}
	return &Cache{db: db}, nil
}

// Close releases the underlying database handle.
func (c *Cache) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

// CacheKey derives the storage key for one (transform, settings, input)
// triple.
func CacheKey(transformKey string, settings Settings, input any) string {
	keys := make([]string, 0, len(settings))
	for k := range settings {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	h := sha256.New()
	fmt.Fprintf(h, "%s\n", transformKey)
	for _, k := range keys {
		fmt.Fprintf(h, "%s=%v\n", k, settings[k])
	}
	fmt.Fprintf(h, "%v", input)
	return fmt.Sprintf("%x", h.Sum(nil))
}

// Get looks up a cached value.  The second return reports presence.
func (c *Cache) Get(key string) (any, bool, error) {
	var blob []byte
	err := c.db.QueryRow(`SELECT value FROM transform_cache WHERE key = ?`, key).Scan(&blob)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Resource(errors.ErrCodeCacheFailure, "reading preprocess cache", err)
	}
	var out any
	if err := gob.NewDecoder(bytes.NewReader(blob)).Decode(&out); err != nil {
		return nil, false, errors.Resource(errors.ErrCodeCacheFailure, "decoding cached value", err)
	}
	return out, true, nil
}

// Put stores a transform output, replacing any existing entry.
func (c *Cache) Put(key string, value any) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(&value); err != nil {
		return errors.Resource(errors.ErrCodeCacheFailure, "encoding value for cache", err)
	}
	_, err := c.db.Exec(`INSERT OR REPLACE INTO transform_cache (key, value) VALUES (?, ?)`,
		key, buf.Bytes())
	if err != nil {
		return errors.Resource(errors.ErrCodeCacheFailure, "writing preprocess cache", err)
	}
	return nil
}
