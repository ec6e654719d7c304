package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/gzip"
	"gopkg.in/yaml.v3"
)

// Format is an output encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatJSON, "":
		return FormatJSON, nil
	case FormatYAML, "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unknown output format %q (expected json or yaml)", s)
	}
}

// Extension returns the file extension for the format, without the dot.
func (f Format) Extension() string {
	if f == FormatYAML {
		return "yaml"
	}
	return "json"
}

// Output file base names.
const (
	ResourcesFile     = "resources"
	PropertyTypesFile = "property-types"
)

// Serialize encodes v in the given format.
// The output is deterministic - map keys keep insertion order, so the same
// input always produces byte-identical output.
func Serialize(v any, format Format) ([]byte, error) {
	if v == nil {
		return nil, fmt.Errorf("value cannot be nil")
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to serialize: %w", err)
	}

	switch format {
	case FormatJSON, "":
		return data, nil
	case FormatYAML:
		return jsonToYAML(data)
	default:
		return nil, fmt.Errorf("unknown output format %q", format)
	}
}

// jsonToYAML re-encodes JSON as block-style YAML, keeping key order.
func jsonToYAML(data []byte) ([]byte, error) {
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, fmt.Errorf("failed to convert to yaml: %w", err)
	}
	resetStyle(&node)

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&node); err != nil {
		return nil, fmt.Errorf("failed to encode yaml: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func resetStyle(n *yaml.Node) {
	n.Style = 0
	for _, c := range n.Content {
		resetStyle(c)
	}
}

// Encoded holds the serialized form of both documents.
type Encoded struct {
	Format        Format `json:"format"`
	Resources     []byte `json:"resources"`
	PropertyTypes []byte `json:"property_types"`
}

// Encode serializes both documents of doc.
func Encode(doc *Document, format Format) (*Encoded, error) {
	if doc == nil {
		return nil, fmt.Errorf("document cannot be nil")
	}

	resources, err := Serialize(doc.Resources, format)
	if err != nil {
		return nil, fmt.Errorf("resources: %w", err)
	}
	propertyTypes, err := Serialize(doc.PropertyTypes, format)
	if err != nil {
		return nil, fmt.Errorf("property types: %w", err)
	}

	return &Encoded{Format: format, Resources: resources, PropertyTypes: propertyTypes}, nil
}

// Compress compresses data using gzip compression.
func Compress(data []byte) ([]byte, error) {
	if data == nil {
		return nil, fmt.Errorf("data cannot be nil")
	}

	if len(data) == 0 {
		return []byte{}, nil
	}

	var buf bytes.Buffer

	writer, err := gzip.NewWriterLevel(&buf, gzip.BestCompression)
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip writer: %w", err)
	}

	if _, err := writer.Write(data); err != nil {
		_ = writer.Close()
		return nil, fmt.Errorf("failed to compress data: %w", err)
	}

	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close gzip writer: %w", err)
	}

	return buf.Bytes(), nil
}

// Decompress decompresses gzip-compressed data.
func Decompress(data []byte) ([]byte, error) {
	if data == nil {
		return nil, fmt.Errorf("data cannot be nil")
	}

	if len(data) == 0 {
		return []byte{}, nil
	}

	reader, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip reader: %w", err)
	}
	defer func() {
		_ = reader.Close()
	}()

	decompressed, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress data: %w", err)
	}

	return decompressed, nil
}

// WriteOptions controls WriteToDir.
type WriteOptions struct {
	Compress bool
}

// WriteToDir writes both documents into dir and returns the written paths.
// Both files are encoded before anything is written, so an encoding failure
// leaves the directory untouched.
func WriteToDir(enc *Encoded, dir string, opts WriteOptions) ([]string, error) {
	if enc == nil {
		return nil, fmt.Errorf("encoded output cannot be nil")
	}

	if dir == "" {
		return nil, fmt.Errorf("output directory cannot be empty")
	}

	files := []struct {
		name string
		data []byte
	}{
		{ResourcesFile + "." + enc.Format.Extension(), enc.Resources},
		{PropertyTypesFile + "." + enc.Format.Extension(), enc.PropertyTypes},
	}

	if opts.Compress {
		for i := range files {
			compressed, err := Compress(files[i].data)
			if err != nil {
				return nil, err
			}
			files[i].name += ".gz"
			files[i].data = compressed
		}
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	paths := make([]string, 0, len(files))
	for _, f := range files {
		path := filepath.Join(dir, f.name)
		if err := os.WriteFile(path, f.data, 0o644); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", path, err)
		}
		paths = append(paths, path)
	}

	return paths, nil
}
