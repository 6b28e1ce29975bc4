package store

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

var (
	bucketVectors = []byte("vectors")
	bucketMeta    = []byte("meta")
)

// BoltEmbeddingCache persists embedding vectors keyed by model, dimension and
// text so restarts and replacements do not re-embed unchanged questions.
// It implements port.EmbeddingCache.
type BoltEmbeddingCache struct {
	db        *bbolt.DB
	model     string
	dimension int
}

type storedVector struct {
	Vector []float32 `json:"v"`
}

// NewBoltEmbeddingCache opens (or creates) the cache file. A cache written for
// a different model or dimension is cleared.
func NewBoltEmbeddingCache(path, model string, dimension int) (*BoltEmbeddingCache, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, b := range [][]byte{bucketVectors, bucketMeta} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", b, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	c := &BoltEmbeddingCache{db: db, model: model, dimension: dimension}
	if err := c.checkFingerprint(); err != nil {
		db.Close()
		return nil, err
	}
	return c, nil
}

func (c *BoltEmbeddingCache) key(text string) []byte {
	hash := sha256.Sum256([]byte(fmt.Sprintf("%s|%d|%s", c.model, c.dimension, text)))
	return []byte(hex.EncodeToString(hash[:]))
}

func (c *BoltEmbeddingCache) Lookup(texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	err := c.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketVectors)
		for i, text := range texts {
			data := b.Get(c.key(text))
			if data == nil {
				continue
			}
			var stored storedVector
			if err := json.Unmarshal(data, &stored); err != nil {
				continue // treat corrupted entries as misses
			}
			if len(stored.Vector) != c.dimension {
				continue
			}
			out[i] = stored.Vector
		}
		return nil
	})
	return out, err
}

func (c *BoltEmbeddingCache) Store(texts []string, vectors [][]float32) error {
	if len(texts) != len(vectors) {
		return fmt.Errorf("cache store: %d texts but %d vectors", len(texts), len(vectors))
	}
	return c.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketVectors)
		for i, text := range texts {
			data, err := json.Marshal(storedVector{Vector: vectors[i]})
			if err != nil {
				return err
			}
			if err := b.Put(c.key(text), data); err != nil {
				return err
			}
		}
		return nil
	})
}

// Count returns the number of cached vectors.
func (c *BoltEmbeddingCache) Count() (int, error) {
	var n int
	err := c.db.View(func(tx *bbolt.Tx) error {
		n = tx.Bucket(bucketVectors).Stats().KeyN
		return nil
	})
	return n, err
}

func (c *BoltEmbeddingCache) Close() error {
	return c.db.Close()
}
