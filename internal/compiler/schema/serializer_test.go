package schema

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bucketDocument() *Document {
	attrs := NewAttributes()
	attrs.Set("Arn", &Attribute{Name: "Arn", ValueType: Primitive{Kind: PrimitiveString}})

	props := NewProperties()
	props.Set("BucketName", &Property{Name: "BucketName", ValueType: Primitive{Kind: PrimitiveString}, Required: true})
	props.Set("Cors", &Property{Name: "Cors", ValueType: Named{Name: "AWS::S3::Bucket.CorsConfiguration"}})
	props.Set("AccessControl", &Property{Name: "AccessControl", ValueType: ListOf{Element: MapOf{Element: Primitive{Kind: PrimitiveString}}}})

	resources := NewResourceDocument()
	resources.Set("AWS::S3::Bucket", &Resource{
		Construct: Naming{
			TypeScript: ModuleNaming{Module: "aws-cdk-lib/aws-s3", Name: "CfnBucket"},
			DotNet:     NamespaceNaming{Namespace: "Amazon.CDK.AWS.S3", Name: "CfnBucket"},
			Go:         PackageNaming{Package: "github.com/aws/aws-cdk-go/awscdk/v2/awss3", Name: "CfnBucket"},
			Java:       PackageNaming{Package: "software.amazon.awscdk.services.s3", Name: "CfnBucket"},
			Python:     ModuleNaming{Module: "aws_cdk.aws_s3", Name: "CfnBucket"},
		},
		Attributes: attrs,
		Properties: props,
	})

	return &Document{
		Resources:     resources,
		PropertyTypes: NewPropertyTypeDocument(),
		TypeIndex:     NewTypeIndex(),
	}
}

func TestSerialize_JSONKeepsOrder(t *testing.T) {
	data, err := Serialize(bucketDocument().Resources, FormatJSON)
	require.NoError(t, err)

	out := string(data)
	bucketName := strings.Index(out, `"BucketName"`)
	cors := strings.Index(out, `"Cors"`)
	access := strings.Index(out, `"AccessControl"`)
	assert.True(t, bucketName < cors && cors < access, "properties must keep insertion order")

	var decoded map[string]map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	bucket := decoded["AWS::S3::Bucket"]
	require.NotNil(t, bucket)

	attrs := bucket["attributes"].(map[string]any)
	assert.Equal(t, map[string]any{
		"name":      "Arn",
		"valueType": map[string]any{"primitive": "string"},
	}, attrs["Arn"])

	props := bucket["properties"].(map[string]any)
	assert.Equal(t, map[string]any{
		"name":      "AccessControl",
		"valueType": map[string]any{"listOf": map[string]any{"mapOf": map[string]any{"primitive": "string"}}},
		"required":  false,
	}, props["AccessControl"])

	construct := bucket["construct"].(map[string]any)
	assert.Len(t, construct, 5)
}

func TestSerialize_Deterministic(t *testing.T) {
	first, err := Serialize(bucketDocument().Resources, FormatJSON)
	require.NoError(t, err)
	second, err := Serialize(bucketDocument().Resources, FormatJSON)
	require.NoError(t, err)
	assert.Equal(t, string(first), string(second))
}

func TestSerialize_YAML(t *testing.T) {
	data, err := Serialize(bucketDocument().Resources, FormatYAML)
	require.NoError(t, err)

	out := string(data)
	assert.True(t, strings.HasPrefix(out, "AWS::S3::Bucket:\n"), out)
	assert.Contains(t, out, "\n    BucketName:\n")
	assert.Contains(t, out, "primitive: string")
	assert.NotContains(t, out, "{", "output must be block style")
	assert.Less(t, strings.Index(out, "BucketName:"), strings.Index(out, "Cors:"))
}

func TestSerialize_EmptyDocument(t *testing.T) {
	data, err := Serialize(NewPropertyTypeDocument(), FormatJSON)
	require.NoError(t, err)
	assert.Equal(t, "{}", string(data))
}

func TestSerialize_Errors(t *testing.T) {
	_, err := Serialize(nil, FormatJSON)
	assert.Error(t, err)

	_, err = Serialize(NewTypeIndex(), Format("toml"))
	assert.ErrorContains(t, err, "unknown output format")
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in   string
		want Format
		err  bool
	}{
		{"", FormatJSON, false},
		{"json", FormatJSON, false},
		{"yaml", FormatYAML, false},
		{"yml", FormatYAML, false},
		{"xml", "", true},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if tt.err {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}
}

func TestCompressDecompress(t *testing.T) {
	enc, err := Encode(bucketDocument(), FormatJSON)
	require.NoError(t, err)

	compressed, err := Compress(enc.Resources)
	require.NoError(t, err)
	assert.Less(t, len(compressed), len(enc.Resources))

	decompressed, err := Decompress(compressed)
	require.NoError(t, err)
	assert.Equal(t, enc.Resources, decompressed)

	empty, err := Compress([]byte{})
	require.NoError(t, err)
	assert.Empty(t, empty)

	_, err = Decompress([]byte("not gzip"))
	assert.Error(t, err)
}

func TestWriteToDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")

	enc, err := Encode(bucketDocument(), FormatYAML)
	require.NoError(t, err)

	paths, err := WriteToDir(enc, dir, WriteOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "resources.yaml"),
		filepath.Join(dir, "property-types.yaml"),
	}, paths)

	data, err := os.ReadFile(paths[1])
	require.NoError(t, err)
	assert.Equal(t, "{}\n", string(data))
}

func TestWriteToDir_Compressed(t *testing.T) {
	dir := t.TempDir()

	enc, err := Encode(bucketDocument(), FormatJSON)
	require.NoError(t, err)

	paths, err := WriteToDir(enc, dir, WriteOptions{Compress: true})
	require.NoError(t, err)
	require.Len(t, paths, 2)
	assert.Equal(t, "resources.json.gz", filepath.Base(paths[0]))

	raw, err := os.ReadFile(paths[0])
	require.NoError(t, err)
	data, err := Decompress(raw)
	require.NoError(t, err)
	assert.Equal(t, enc.Resources, data)
}

func TestWriteToDir_Errors(t *testing.T) {
	_, err := WriteToDir(nil, t.TempDir(), WriteOptions{})
	assert.Error(t, err)

	_, err = WriteToDir(&Encoded{Format: FormatJSON}, "", WriteOptions{})
	assert.ErrorContains(t, err, "output directory cannot be empty")
}

func TestValueType_Equals(t *testing.T) {
	a := UnionOf{Types: []ValueType{Primitive{Kind: PrimitiveString}, ListOf{Element: Named{Name: "X.Y"}}}}
	b := UnionOf{Types: []ValueType{Primitive{Kind: PrimitiveString}, ListOf{Element: Named{Name: "X.Y"}}}}
	c := UnionOf{Types: []ValueType{ListOf{Element: Named{Name: "X.Y"}}, Primitive{Kind: PrimitiveString}}}

	assert.True(t, a.Equals(b))
	assert.False(t, a.Equals(c))
	assert.False(t, Primitive{Kind: PrimitiveString}.Equals(Named{Name: "string"}))
	assert.Equal(t, "string | List<X.Y>", a.String())
}

func TestValueType_MarshalJSON(t *testing.T) {
	tests := []struct {
		vt   ValueType
		want string
	}{
		{Primitive{Kind: PrimitiveDate}, `{"primitive":"date"}`},
		{Named{Name: "aws-cdk-lib.CfnTag"}, `{"named":"aws-cdk-lib.CfnTag"}`},
		{MapOf{Element: Primitive{Kind: PrimitiveJSON}}, `{"mapOf":{"primitive":"json"}}`},
		{UnionOf{Types: []ValueType{Primitive{Kind: PrimitiveString}, Primitive{Kind: PrimitiveNumber}}},
			`{"unionOf":[{"primitive":"string"},{"primitive":"number"}]}`},
		{UnionOf{}, `{"unionOf":[]}`},
	}
	for _, tt := range tests {
		data, err := json.Marshal(tt.vt)
		require.NoError(t, err)
		assert.JSONEq(t, tt.want, string(data))
	}
}
