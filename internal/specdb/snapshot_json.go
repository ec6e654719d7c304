package specdb

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
)

type wireSnapshot struct {
	Services        []*Service        `json:"services"`
	Resources       []*Resource       `json:"resources"`
	TypeDefinitions []*TypeDefinition `json:"typeDefinitions"`
	Relations       []Relation        `json:"relations,omitempty"`
}

// Decode reads a JSON snapshot. Gzip-compressed input is detected by its
// magic bytes and decompressed transparently.
func Decode(r io.Reader) (*Snapshot, error) {
	br := bufio.NewReader(r)
	magic, _ := br.Peek(2)

	var src io.Reader = br
	if len(magic) == 2 && magic[0] == 0x1f && magic[1] == 0x8b {
		gz, err := gzip.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("failed to open gzip stream: %w", err)
		}
		defer func() {
			_ = gz.Close()
		}()
		src = gz
	}

	var w wireSnapshot
	if err := json.NewDecoder(src).Decode(&w); err != nil {
		return nil, err
	}
	return NewSnapshot(w.Services, w.Resources, w.TypeDefinitions, w.Relations)
}

// DecodeBytes is Decode over an in-memory buffer.
func DecodeBytes(data []byte) (*Snapshot, error) {
	return Decode(bytes.NewReader(data))
}

// MarshalJSON encodes the snapshot in the same format Decode reads.
// The encoding is deterministic, which makes it usable as a cache key input.
func (s *Snapshot) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireSnapshot{
		Services:        s.services,
		Resources:       s.resources,
		TypeDefinitions: s.typeDefinitions,
		Relations:       s.relations,
	})
}
