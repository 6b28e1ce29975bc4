package store

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"
)

// CurrentSchemaVersion is the current schema version.
// Increment this when making breaking changes to the storage format.
const CurrentSchemaVersion = 1

var (
	keySchemaVersion = []byte("schema_version")
	keyFingerprint   = []byte("fingerprint")
)

// SchemaInfo stores schema version and the embedding model fingerprint.
type SchemaInfo struct {
	Version     int    `json:"version"`
	Fingerprint string `json:"fingerprint"`
}

// ComputeFingerprint hashes the settings that change embedding output.
func ComputeFingerprint(model string, dimension int) string {
	relevant := struct {
		Model     string `json:"model"`
		Dimension int    `json:"dimension"`
	}{model, dimension}

	data, _ := json.Marshal(relevant)
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:8])
}

// GetSchemaInfo retrieves the current schema info from the database.
func (c *BoltEmbeddingCache) GetSchemaInfo() (*SchemaInfo, error) {
	var info SchemaInfo
	err := c.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketMeta)
		if v := b.Get(keySchemaVersion); v != nil {
			if err := json.Unmarshal(v, &info.Version); err != nil {
				info.Version = 0
			}
		}
		if v := b.Get(keyFingerprint); v != nil {
			info.Fingerprint = string(v)
		}
		return nil
	})
	return &info, err
}

// checkFingerprint clears the cache when it was built for another model,
// dimension or schema version, then records the current fingerprint.
func (c *BoltEmbeddingCache) checkFingerprint() error {
	info, err := c.GetSchemaInfo()
	if err != nil {
		return fmt.Errorf("failed to get schema info: %w", err)
	}

	want := ComputeFingerprint(c.model, c.dimension)
	if info.Version == CurrentSchemaVersion && info.Fingerprint == want {
		return nil
	}

	return c.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket(bucketVectors); err != nil && err != bbolt.ErrBucketNotFound {
			return err
		}
		if _, err := tx.CreateBucket(bucketVectors); err != nil {
			return err
		}

		meta := tx.Bucket(bucketMeta)
		versionData, err := json.Marshal(CurrentSchemaVersion)
		if err != nil {
			return err
		}
		if err := meta.Put(keySchemaVersion, versionData); err != nil {
			return err
		}
		return meta.Put(keyFingerprint, []byte(want))
	})
}
