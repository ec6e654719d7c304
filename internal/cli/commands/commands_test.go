package commands

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/cfnschema/cfnschema/internal/cli/config"
	"github.com/cfnschema/cfnschema/internal/compiler/collector"
	cerrors "github.com/cfnschema/cfnschema/internal/compiler/errors"
	"github.com/cfnschema/cfnschema/internal/compiler/schema"
)

// fixture returns the absolute path of the shared test database.
func fixture(t *testing.T) string {
	t.Helper()
	path, err := filepath.Abs(filepath.Join("..", "..", "specdb", "testdata", "s3.json"))
	require.NoError(t, err)
	return path
}

// inTempDir switches to an empty working directory and returns the
// fixture path.
func inTempDir(t *testing.T) string {
	t.Helper()
	db := fixture(t)
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	return db
}

func execute(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	cmd := NewRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append(args, "--no-color", "--log-level", "error"))
	err = cmd.Execute()
	return out.String(), errOut.String(), err
}

func TestNewRootCommand(t *testing.T) {
	cmd := NewRootCommand()

	assert.Equal(t, "cfnschema", cmd.Use)
	assert.NotEmpty(t, cmd.Short)
	assert.NotEmpty(t, cmd.Long)

	var names []string
	for _, sub := range cmd.Commands() {
		names = append(names, sub.Name())
	}
	for _, expected := range []string{"version", "generate", "inspect", "serve", "init"} {
		assert.Contains(t, names, expected)
	}

	for _, flag := range []string{"config", "no-color", "verbose", "log-level", "quiet"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(flag), flag)
	}
}

func TestVersionCommand(t *testing.T) {
	Version = "1.0.0-test"
	GitCommit = "abc123"
	t.Cleanup(func() {
		Version = "dev"
		GitCommit = "unknown"
	})

	out, _, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "cfnschema version: 1.0.0-test")
	assert.Contains(t, out, "Git commit: abc123")
	assert.Contains(t, out, "Go version: go")
}

func TestGenerate(t *testing.T) {
	db := inTempDir(t)

	out, _, err := execute(t, "generate", db, "-o", "out", "--no-cache")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Generated schema in")
	assert.Contains(t, out, filepath.Join("out", "resources.json"))

	resources, err := os.ReadFile(filepath.Join("out", "resources.json"))
	require.NoError(t, err)
	assert.Contains(t, string(resources), `"AWS::S3::Bucket"`)

	propertyTypes, err := os.ReadFile(filepath.Join("out", "property-types.json"))
	require.NoError(t, err)
	assert.Contains(t, string(propertyTypes), `"AWS::S3::Bucket.CorsRuleProperty"`)
}

func TestGenerate_Verbose(t *testing.T) {
	db := inTempDir(t)

	out, _, err := execute(t, "generate", db, "--no-cache", "-v")
	require.NoError(t, err)
	assert.Contains(t, out, "Resources:")
	assert.Contains(t, out, "Carried forward:")
}

func TestGenerate_YAMLCompressed(t *testing.T) {
	db := inTempDir(t)

	_, _, err := execute(t, "generate", db, "-o", "out", "-f", "yaml", "--compress", "--no-cache")
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join("out", "resources.yaml.gz"))
	require.NoError(t, err)
	plain, err := schema.Decompress(data)
	require.NoError(t, err)
	assert.Contains(t, string(plain), "AWS::S3::Bucket:\n")
}

func TestGenerate_ConfigDefaults(t *testing.T) {
	db := inTempDir(t)
	require.NoError(t, os.WriteFile("cfnschema.yml", []byte(
		"source: "+db+"\noutput:\n  dir: from-config\n  format: yaml\n"), 0o644))

	_, _, err := execute(t, "generate", "--no-cache")
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join("from-config", "resources.yaml"))
	assert.FileExists(t, filepath.Join("from-config", "property-types.yaml"))
}

func TestGenerate_JSON(t *testing.T) {
	db := inTempDir(t)

	out, _, err := execute(t, "generate", db, "--json", "--no-cache")
	require.NoError(t, err)

	var res struct {
		Files  []string      `json:"files"`
		Stats  *schema.Stats `json:"stats"`
		Cached bool          `json:"cached"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Len(t, res.Files, 2)
	require.NotNil(t, res.Stats)
	assert.Equal(t, 1, res.Stats.Resources)
	assert.Equal(t, 2, res.Stats.PropertyTypes)
	assert.False(t, res.Cached)
}

func TestGenerate_JSONError(t *testing.T) {
	inTempDir(t)

	out, _, err := execute(t, "generate", "missing.json", "--json")
	require.Error(t, err)
	assert.True(t, errorAlreadyReported(err))

	var got map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "LOD004", got["code"])
}

func TestGenerate_Cache(t *testing.T) {
	db := inTempDir(t)
	require.NoError(t, os.WriteFile("cfnschema.yml", []byte("cache:\n  backend: badger\n  path: cache\n"), 0o644))

	run := func() bool {
		out, _, err := execute(t, "generate", db, "--json")
		require.NoError(t, err)
		var res struct {
			Cached bool `json:"cached"`
		}
		require.NoError(t, json.Unmarshal([]byte(out), &res))
		return res.Cached
	}

	assert.False(t, run())
	assert.True(t, run())

	first, err := os.ReadFile(filepath.Join("schema", "resources.json"))
	require.NoError(t, err)
	assert.Contains(t, string(first), "CfnBucket")
}

func TestGenerate_InvalidFormat(t *testing.T) {
	db := inTempDir(t)

	_, _, err := execute(t, "generate", db, "-f", "toml")
	assert.ErrorContains(t, err, "unknown output format")
}

func TestGenerate_WatchRequiresFile(t *testing.T) {
	inTempDir(t)
	assert.True(t, watchable("spec.json"))
	assert.False(t, watchable("s3://bucket/spec.json"))
}

func TestConfigError(t *testing.T) {
	inTempDir(t)

	_, stderr, err := execute(t, "generate", "--config", "nope.yml")
	require.Error(t, err)
	assert.True(t, errorAlreadyReported(err))
	assert.Contains(t, stderr, "CONFIGURATION ERROR")
	assert.Contains(t, stderr, "cfnschema init")
}

func TestInspect_Resources(t *testing.T) {
	db := inTempDir(t)

	out, _, err := execute(t, "inspect", db)
	require.NoError(t, err)
	assert.Contains(t, out, "TYPE")
	assert.Contains(t, out, "AWS::S3::Bucket")
	assert.Contains(t, out, "CfnBucket")
	assert.Contains(t, out, "1 resources, 2 property types")
}

func TestInspect_Entry(t *testing.T) {
	db := inTempDir(t)

	out, _, err := execute(t, "inspect", db, "AWS::S3::Bucket")
	require.NoError(t, err)
	assert.Contains(t, out, "typescript: aws-cdk-lib/aws-s3 CfnBucket")
	assert.Contains(t, out, "BucketName")
	assert.Contains(t, out, "yes")
	assert.Contains(t, out, "List<aws-cdk-lib.CfnTag>")

	out, _, err = execute(t, "inspect", db, "AWS::S3::Bucket.CorsRuleProperty")
	require.NoError(t, err)
	assert.Contains(t, out, "CfnBucket.CorsRuleProperty")
	assert.Contains(t, out, "Map<string>")

	out, _, err = execute(t, "inspect", db, "AWS::S3::Bucket", "--json")
	require.NoError(t, err)
	var res map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Contains(t, res, "construct")
}

func TestInspect_NotFound(t *testing.T) {
	db := inTempDir(t)

	_, stderr, err := execute(t, "inspect", db, "AWS::S3::Buckt")
	require.Error(t, err)
	assert.True(t, errorAlreadyReported(err))
	assert.Contains(t, stderr, "Did you mean: AWS::S3::Bucket?")
}

func TestInspect_Lists(t *testing.T) {
	db := inTempDir(t)

	out, _, err := execute(t, "inspect", db, "--property-types")
	require.NoError(t, err)
	assert.Contains(t, out, "AWS::S3::Bucket.CorsConfigurationProperty")
	assert.Contains(t, out, "td-cors")

	out, _, err = execute(t, "inspect", db, "--references")
	require.NoError(t, err)
	assert.Contains(t, out, "REFERENCE")
	assert.Contains(t, out, "AWS::S3::Bucket.CorsConfiguration")

	out, _, err = execute(t, "inspect", db, "--ids", "--json")
	require.NoError(t, err)
	var ids map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &ids))
	assert.Equal(t, "AWS::S3::Bucket.CorsRuleProperty", ids["td-rule"])
}

func TestInit(t *testing.T) {
	inTempDir(t)

	out, _, err := execute(t, "init", "--yes", "--source", "s3://specs/spec.json.gz")
	require.NoError(t, err)
	assert.Contains(t, out, "Created cfnschema.yml")

	cfg, err := config.LoadFrom(".", "")
	require.NoError(t, err)
	assert.Equal(t, "s3://specs/spec.json.gz", cfg.Source)

	_, _, err = execute(t, "init", "--yes")
	assert.ErrorContains(t, err, "already exists")
}

func TestValidateSource(t *testing.T) {
	tests := []struct {
		source  string
		wantErr bool
	}{
		{"spec.json", false},
		{"dist/spec.json.gz", false},
		{"s3://bucket/spec.json", false},
		{"sqlite3:///tmp/spec.db", false},
		{"postgres://localhost/spec", false},
		{"pgx://localhost/spec", false},
		{"ftp://host/spec.json", true},
		{"spec.yaml", true},
	}
	for _, tt := range tests {
		t.Run(tt.source, func(t *testing.T) {
			err := validateSource(tt.source)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}

	assert.Error(t, validateSource(42))
}

func TestServe_RejectsWatchOnRemoteSource(t *testing.T) {
	inTempDir(t)

	_, _, err := execute(t, "serve", "s3://specs/spec.json", "--watch")
	assert.ErrorContains(t, err, "--watch requires a local file source")
}

func TestErrorInfo(t *testing.T) {
	wrapped := fmt.Errorf("rebuild: %w", cerrors.NewOrphanTypeDefinition("td-9", "Orphan"))
	info := errorInfo(wrapped)
	assert.Equal(t, string(cerrors.ErrOrphanTypeDefinition), info.Code)
	assert.NotEmpty(t, info.Subject)

	info = errorInfo(errors.New("disk full"))
	assert.Equal(t, "disk full", info.Message)
	assert.Empty(t, info.Code)
}

func TestPrintReferences_JSONKeepsInsertionOrder(t *testing.T) {
	inspectJSON = true
	t.Cleanup(func() { inspectJSON = false })

	refs := collector.NewReferenceTable()
	refs.Record("td-zeta", "AWS::S3::Bucket.Zeta")
	refs.Record("td-alpha", "AWS::S3::Bucket.Alpha")
	refs.Record("td-mid", "AWS::S3::AccessPoint.Mid")
	refs.Freeze()

	var out bytes.Buffer
	require.NoError(t, printReferences(&out, refs))

	got := out.String()
	zeta := strings.Index(got, `"td-zeta"`)
	alpha := strings.Index(got, `"td-alpha"`)
	mid := strings.Index(got, `"td-mid"`)
	require.True(t, zeta >= 0 && alpha >= 0 && mid >= 0, got)
	assert.Less(t, zeta, alpha)
	assert.Less(t, alpha, mid)
}

func TestSourceDigest(t *testing.T) {
	inTempDir(t)
	require.NoError(t, os.WriteFile("spec.json", []byte(`{"services":[]}`), 0o644))

	digest := newSourceDigest("spec.json")
	assert.False(t, digest.changed(), "unchanged after priming")

	require.NoError(t, os.WriteFile("spec.json", []byte(`{"services":[]}`), 0o644))
	assert.False(t, digest.changed(), "rewrite with identical bytes")

	require.NoError(t, os.WriteFile("spec.json", []byte(`{"services":[],"resources":[]}`), 0o644))
	assert.True(t, digest.changed())
	assert.False(t, digest.changed())

	require.NoError(t, os.Remove("spec.json"))
	assert.True(t, digest.changed(), "a missing file is reported as a change")
}

func TestLoadApp_Quiet(t *testing.T) {
	inTempDir(t)

	cmd := NewRootCommand()
	rootQuiet = true
	t.Cleanup(func() { rootQuiet = false })

	a, err := loadApp(cmd)
	require.NoError(t, err)
	assert.False(t, a.logger.Core().Enabled(zapcore.ErrorLevel))

	rootQuiet = false
	a, err = loadApp(cmd)
	require.NoError(t, err)
	assert.True(t, a.logger.Core().Enabled(zapcore.ErrorLevel))
}
