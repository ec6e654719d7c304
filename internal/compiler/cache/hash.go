// Package cache stores encoded compiler output keyed by the content of the
// specification database and the options that shape the output, so
// repeated runs over an unchanged database skip both passes.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"strings"

	"github.com/cfnschema/cfnschema/internal/compiler/naming"
	"github.com/cfnschema/cfnschema/internal/compiler/schema"
	"github.com/cfnschema/cfnschema/internal/specdb"
)

// keyVersion is bumped whenever the output shape changes.
const keyVersion = "v2"

// Hasher computes content hashes for cache keys
type Hasher struct{}

// NewHasher creates a new hasher
func NewHasher() *Hasher {
	return &Hasher{}
}

// HashFile computes a SHA-256 hash of the file contents
func (h *Hasher) HashFile(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	hasher := sha256.New()
	if _, err := io.Copy(hasher, file); err != nil {
		return "", err
	}

	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// HashContent computes a SHA-256 hash of the given content
func (h *Hasher) HashContent(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// HashSnapshot hashes the canonical encoding of a snapshot, so the same
// records loaded from a file, object storage or SQL hash identically.
func (h *Hasher) HashSnapshot(snap *specdb.Snapshot) (string, error) {
	data, err := snap.MarshalJSON()
	if err != nil {
		return "", err
	}
	return h.HashContent(data), nil
}

// KeyOptions are the options that change the encoded output.
type KeyOptions struct {
	Roots   naming.Roots
	TagType string
	Format  schema.Format
}

// Key builds the cache key for a snapshot hash and output options.
func (h *Hasher) Key(snapshotHash string, opts KeyOptions) string {
	roots := naming.NewBuilder(opts.Roots).Roots()
	parts := []string{
		snapshotHash,
		roots.TypeScript, roots.DotNet, roots.Go, roots.Java, roots.Python,
		opts.TagType,
		string(opts.Format),
	}
	return keyVersion + ":" + h.HashContent([]byte(strings.Join(parts, "\x00")))
}
