// Package embcache is a persistent embedding cache. Entity mentions repeat
// heavily across questions, so vectors are kept in a small SQLite database
// with a TTL; a warm hit skips the embedding service entirely and costs
// nothing.
package embcache

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// DefaultTTL is how long a cached vector stays valid.
const DefaultTTL = 7 * 24 * time.Hour

// Embedder is the upstream source of vectors on a cache miss.
type Embedder interface {
	Embedding(ctx context.Context, text string) ([]float32, float64, error)
}

// Cache wraps an Embedder with a SQLite-backed TTL cache. It satisfies the
// same Embedder contract, so it drops in wherever the raw service would go.
type Cache struct {
	db       *sql.DB
	upstream Embedder
	ttl      time.Duration
}

const schema = `
CREATE TABLE IF NOT EXISTS embeddings (
	text       TEXT PRIMARY KEY,
	vector     BLOB NOT NULL,
	created_at INTEGER NOT NULL
);
`

// Open creates or opens the cache database at path. A zero ttl means
// DefaultTTL.
func Open(path string, upstream Embedder, ttl time.Duration) (*Cache, error) {
	if ttl == 0 {
		ttl = DefaultTTL
	}
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening embedding cache: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing embedding cache: %w", err)
	}
	return &Cache{db: db, upstream: upstream, ttl: ttl}, nil
}

// Embedding returns the cached vector for text when present and fresh,
// otherwise asks the upstream embedder and stores the result. Cache hits
// report zero cost.
func (c *Cache) Embedding(ctx context.Context, text string) ([]float32, float64, error) {
	if vec, ok := c.lookup(ctx, text); ok {
		return vec, 0, nil
	}

	vec, cost, err := c.upstream.Embedding(ctx, text)
	if err != nil {
		return nil, 0, err
	}
	c.put(ctx, text, vec)
	return vec, cost, nil
}

func (c *Cache) lookup(ctx context.Context, text string) ([]float32, bool) {
	var blob []byte
	var createdAt int64
	err := c.db.QueryRowContext(ctx,
		`SELECT vector, created_at FROM embeddings WHERE text = ?`, text,
	).Scan(&blob, &createdAt)
	if err != nil {
		return nil, false
	}
	if time.Since(time.Unix(createdAt, 0)) > c.ttl {
		c.db.ExecContext(ctx, `DELETE FROM embeddings WHERE text = ?`, text)
		return nil, false
	}

	var vec []float32
	if err := json.Unmarshal(blob, &vec); err != nil {
		return nil, false
	}
	return vec, true
}

func (c *Cache) put(ctx context.Context, text string, vec []float32) {
	blob, err := json.Marshal(vec)
	if err != nil {
		return
	}
	// A write failure only costs a future cache miss.
	c.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO embeddings (text, vector, created_at) VALUES (?, ?, ?)`,
		text, blob, time.Now().Unix())
}

// Close closes the cache database.
func (c *Cache) Close() error {
	return c.db.Close()
}
