package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/cfnschema/cfnschema/internal/compiler/cache"
	"github.com/cfnschema/cfnschema/internal/compiler/naming"
	"github.com/cfnschema/cfnschema/internal/compiler/schema"
	"github.com/cfnschema/cfnschema/internal/compiler/typeresolver"
	"github.com/cfnschema/cfnschema/internal/logging"
	"github.com/cfnschema/cfnschema/internal/specdb"
)

// FileName is the config file base name, read as cfnschema.yml or cfnschema.yaml.
const FileName = "cfnschema"

// EnvPrefix prefixes environment overrides, e.g. CFNSCHEMA_OUTPUT_FORMAT.
const EnvPrefix = "CFNSCHEMA"

// Config represents the cfnschema configuration
type Config struct {
	Source string       `mapstructure:"source" yaml:"source"`
	Output OutputConfig `mapstructure:"output" yaml:"output"`
	Naming NamingConfig `mapstructure:"naming" yaml:"naming"`
	Cache  CacheConfig  `mapstructure:"cache" yaml:"cache"`
	S3     S3Config     `mapstructure:"s3" yaml:"s3"`
	Serve  ServeConfig  `mapstructure:"serve" yaml:"serve"`
	Log    LogConfig    `mapstructure:"log" yaml:"log"`
}

// OutputConfig controls where and how documents are written
type OutputConfig struct {
	Dir      string `mapstructure:"dir" yaml:"dir"`
	Format   string `mapstructure:"format" yaml:"format"`
	Compress bool   `mapstructure:"compress" yaml:"compress"`
}

// NamingConfig controls generated names
type NamingConfig struct {
	Roots   naming.Roots `mapstructure:"roots" yaml:"roots"`
	TagType string       `mapstructure:"tag_type" yaml:"tag_type"`
}

// CacheConfig selects the result cache backend
type CacheConfig struct {
	Backend string        `mapstructure:"backend" yaml:"backend"`
	Path    string        `mapstructure:"path" yaml:"path"`
	Size    int           `mapstructure:"size" yaml:"size"`
	TTL     time.Duration `mapstructure:"ttl" yaml:"ttl"`
	Redis   RedisConfig   `mapstructure:"redis" yaml:"redis"`
}

// RedisConfig represents the redis cache connection
type RedisConfig struct {
	Addr     string `mapstructure:"addr" yaml:"addr"`
	Password string `mapstructure:"password" yaml:"password,omitempty"`
	DB       int    `mapstructure:"db" yaml:"db"`
}

// S3Config represents object storage access for s3:// sources
type S3Config struct {
	Endpoint  string `mapstructure:"endpoint" yaml:"endpoint"`
	Region    string `mapstructure:"region" yaml:"region"`
	AccessKey string `mapstructure:"access_key" yaml:"access_key,omitempty"`
	SecretKey string `mapstructure:"secret_key" yaml:"secret_key,omitempty"`
	UseSSL    bool   `mapstructure:"use_ssl" yaml:"use_ssl"`
}

// ServeConfig represents the schema browser
type ServeConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr"`
}

// LogConfig represents logging
type LogConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Development bool   `mapstructure:"development" yaml:"development"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Source: "spec.json",
		Output: OutputConfig{Dir: "schema", Format: string(schema.FormatJSON)},
		Naming: NamingConfig{Roots: naming.DefaultRoots(), TagType: typeresolver.DefaultTagType},
		Cache: CacheConfig{
			Backend: cache.BackendNone,
			Path:    ".cfnschema/cache",
			Size:    cache.DefaultMemorySize,
			Redis:   RedisConfig{Addr: "localhost:6379"},
		},
		S3:    S3Config{Endpoint: "s3.amazonaws.com", Region: "us-east-1", UseSSL: true},
		Serve: ServeConfig{Addr: "localhost:8080"},
		Log:   LogConfig{Level: "info"},
	}
}

// LoadFrom loads configuration from dir, or from file when it is set. A
// .env file in dir is loaded into the environment first; variables that
// are already set win.
func LoadFrom(dir, file string) (*Config, error) {
	_ = godotenv.Load(filepath.Join(dir, ".env"))

	v := viper.New()
	setDefaults(v, Default())

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName(FileName)
		v.SetConfigType("yaml")
		v.AddConfigPath(dir)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found - use defaults
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("source", d.Source)
	v.SetDefault("output.dir", d.Output.Dir)
	v.SetDefault("output.format", d.Output.Format)
	v.SetDefault("output.compress", d.Output.Compress)
	v.SetDefault("naming.roots.typescript", d.Naming.Roots.TypeScript)
	v.SetDefault("naming.roots.dotnet", d.Naming.Roots.DotNet)
	v.SetDefault("naming.roots.go", d.Naming.Roots.Go)
	v.SetDefault("naming.roots.java", d.Naming.Roots.Java)
	v.SetDefault("naming.roots.python", d.Naming.Roots.Python)
	v.SetDefault("naming.tag_type", d.Naming.TagType)
	v.SetDefault("cache.backend", d.Cache.Backend)
	v.SetDefault("cache.path", d.Cache.Path)
	v.SetDefault("cache.size", d.Cache.Size)
	v.SetDefault("cache.ttl", d.Cache.TTL)
	v.SetDefault("cache.redis.addr", d.Cache.Redis.Addr)
	v.SetDefault("cache.redis.password", d.Cache.Redis.Password)
	v.SetDefault("cache.redis.db", d.Cache.Redis.DB)
	v.SetDefault("s3.endpoint", d.S3.Endpoint)
	v.SetDefault("s3.region", d.S3.Region)
	v.SetDefault("s3.access_key", d.S3.AccessKey)
	v.SetDefault("s3.secret_key", d.S3.SecretKey)
	v.SetDefault("s3.use_ssl", d.S3.UseSSL)
	v.SetDefault("serve.addr", d.Serve.Addr)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.development", d.Log.Development)
}

// Write saves cfg as YAML. It refuses to overwrite an existing file.
func Write(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// S3Options returns loader options for s3:// sources.
func (c *Config) S3Options() specdb.S3Options {
	return specdb.S3Options{
		Endpoint:  c.S3.Endpoint,
		Region:    c.S3.Region,
		AccessKey: c.S3.AccessKey,
		SecretKey: c.S3.SecretKey,
		UseSSL:    c.S3.UseSSL,
	}
}

// CacheOptions returns result cache options.
func (c *Config) CacheOptions() cache.Options {
	return cache.Options{
		Backend:       c.Cache.Backend,
		TTL:           c.Cache.TTL,
		Size:          c.Cache.Size,
		Path:          c.Cache.Path,
		RedisAddr:     c.Cache.Redis.Addr,
		RedisPassword: c.Cache.Redis.Password,
		RedisDB:       c.Cache.Redis.DB,
	}
}

// LogOptions returns logger options.
func (c *Config) LogOptions() logging.Options {
	return logging.Options{Level: c.Log.Level, Development: c.Log.Development}
}

// validateConfig validates the configuration
func validateConfig(cfg *Config) error {
	if _, err := schema.ParseFormat(cfg.Output.Format); err != nil {
		return fmt.Errorf("output.format: %w", err)
	}
	if cfg.Cache.Backend != "" && !slices.Contains(cache.Backends, cfg.Cache.Backend) {
		return fmt.Errorf("cache.backend must be one of %s, got: %s", strings.Join(cache.Backends, ", "), cfg.Cache.Backend)
	}
	if _, err := logging.ParseLevel(cfg.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	if cfg.Cache.Size < 0 {
		return fmt.Errorf("cache.size must not be negative, got: %d", cfg.Cache.Size)
	}
	return nil
}
