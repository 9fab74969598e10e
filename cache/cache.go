// Package cache is the content-addressed compile cache. Images are keyed
// by the hex SHA-256 of the source text they were compiled from, so a hit
// is always byte-exact for the source being run.
package cache

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"
)

// ErrNotFound indicates no image is cached for the requested source hash.
var ErrNotFound = errors.New("image not found in cache")

// Cache stores compiled program images in a SQLite database.
type Cache struct {
	db     *sql.DB
	dbPath string
	mu     sync.Mutex
}

// Open opens (creating if needed) a cache database at the given path.
func Open(dbPath string) (*Cache, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating cache directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening cache database: %w", err)
	}

	// Set busy timeout for concurrent access
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS images (
		source_hash TEXT PRIMARY KEY,
		image BLOB NOT NULL,
		created_at TEXT NOT NULL DEFAULT (datetime('now'))
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating table: %w", err)
	}

	return &Cache{db: db, dbPath: dbPath}, nil
}

// OpenDefault opens the cache at its default location under the user cache
// directory, or at $CAEDAN_CACHE_DB when that is set.
func OpenDefault() (*Cache, error) {
	dbPath := os.Getenv("CAEDAN_CACHE_DB")
	if dbPath == "" {
		base, err := os.UserCacheDir()
		if err != nil {
			return nil, fmt.Errorf("getting user cache dir: %w", err)
		}
		dbPath = filepath.Join(base, "caedan", "cache.db")
	}
	return Open(dbPath)
}

// Close closes the database connection.
func (c *Cache) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// Path returns the location of the cache database file.
func (c *Cache) Path() string {
	return c.dbPath
}

// Put stores an image under a source hash, replacing any previous entry.
func (c *Cache) Put(sourceHash string, image []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, err := c.db.Exec(
		"INSERT OR REPLACE INTO images (source_hash, image) VALUES (?, ?)",
		sourceHash, image,
	)
	if err != nil {
		return fmt.Errorf("caching image: %w", err)
	}
	return nil
}

// Get retrieves the image cached for a source hash. Returns ErrNotFound on
// a miss.
func (c *Cache) Get(sourceHash string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var image []byte
	err := c.db.QueryRow(
		"SELECT image FROM images WHERE source_hash = ?", sourceHash,
	).Scan(&image)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying cache: %w", err)
	}
	return image, nil
}

// Delete removes the entry for a source hash. Deleting a missing entry is
// not an error.
func (c *Cache) Delete(sourceHash string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.db.Exec("DELETE FROM images WHERE source_hash = ?", sourceHash); err != nil {
		return fmt.Errorf("deleting cache entry: %w", err)
	}
	return nil
}

// Len returns the number of cached images.
func (c *Cache) Len() (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var n int
	if err := c.db.QueryRow("SELECT COUNT(*) FROM images").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting cache entries: %w", err)
	}
	return n, nil
}
