// Package config loads idforge settings from flags, IDFORGE_* environment
// variables and config files through viper.
package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/spf13/viper"

	"github.com/Lzww0608/idforge"
	"github.com/Lzww0608/idforge/claim"
)

// EnvPrefix prefixes every environment variable, e.g. IDFORGE_GENERATOR_SEGMENT_LENGTH.
const EnvPrefix = "IDFORGE"

// Claim store kinds.
const (
	ClaimMemory = "memory"
	ClaimFile   = "file"
	ClaimSQLite = "sqlite"
	ClaimMySQL  = "mysql"
	ClaimZK     = "zk"
)

var claimKinds = []string{ClaimMemory, ClaimFile, ClaimSQLite, ClaimMySQL, ClaimZK}

var logLevels = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

// Config is the full idforge configuration.
type Config struct {
	Generator GeneratorConfig `mapstructure:"generator" yaml:"generator"`
	Checksum  ChecksumConfig  `mapstructure:"checksum" yaml:"checksum"`
	Collision CollisionConfig `mapstructure:"collision" yaml:"collision"`
	Claim     ClaimConfig     `mapstructure:"claim" yaml:"claim"`
	Log       LogConfig       `mapstructure:"log" yaml:"log"`

	// Presets is an optional path to a file of named generation specs.
	Presets string `mapstructure:"presets" yaml:"presets,omitempty"`
}

// GeneratorConfig mirrors idforge.GenerationSpec with names instead of enums.
type GeneratorConfig struct {
	SegmentLength int      `mapstructure:"segment_length" yaml:"segment_length"`
	SegmentCount  int      `mapstructure:"segment_count" yaml:"segment_count"`
	Separator     string   `mapstructure:"separator" yaml:"separator"`
	Alphabet      string   `mapstructure:"alphabet" yaml:"alphabet"`
	Encodings     []string `mapstructure:"encodings" yaml:"encodings"`
	Compression   string   `mapstructure:"compression" yaml:"compression"`
	Prefix        string   `mapstructure:"prefix" yaml:"prefix"`
	Source        string   `mapstructure:"source" yaml:"source"`
	Secure        bool     `mapstructure:"secure" yaml:"secure"`
	Tag           bool     `mapstructure:"tag" yaml:"tag"`
}

// ChecksumConfig is the digest format used for checksum tags and the
// checksum commands.
type ChecksumConfig struct {
	Algorithm string `mapstructure:"algorithm" yaml:"algorithm"`
	Length    int    `mapstructure:"length" yaml:"length"`
}

// CollisionConfig holds the collision loop settings.
type CollisionConfig struct {
	Name        string        `mapstructure:"name" yaml:"name"`
	MaxAttempts int           `mapstructure:"max_attempts" yaml:"max_attempts"`
	Backoff     string        `mapstructure:"backoff" yaml:"backoff"`
	Unit        time.Duration `mapstructure:"unit" yaml:"unit"`
}

// ClaimConfig selects and configures the claim store.
type ClaimConfig struct {
	Kind      string        `mapstructure:"kind" yaml:"kind"`
	Path      string        `mapstructure:"path" yaml:"path"`
	DSN       string        `mapstructure:"dsn" yaml:"dsn"`
	Table     string        `mapstructure:"table" yaml:"table"`
	ZKServers []string      `mapstructure:"zk_servers" yaml:"zk_servers"`
	ZKRoot    string        `mapstructure:"zk_root" yaml:"zk_root"`
	ZKTimeout time.Duration `mapstructure:"zk_timeout" yaml:"zk_timeout"`
}

// LogConfig configures the CLI logger.
type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
	JSON  bool   `mapstructure:"json" yaml:"json"`
}

// Default returns the built-in configuration.
func Default() Config {
	spec := idforge.DefaultSpec()
	return Config{
		Generator: GeneratorConfig{
			SegmentLength: spec.SegmentLength,
			SegmentCount:  spec.SegmentCount,
			Separator:     spec.Separator,
			Alphabet:      spec.Alphabet,
			Encodings:     []string{},
			Compression:   idforge.CompressionNone.String(),
			Source:        idforge.SourceRandom.String(),
		},
		Checksum: ChecksumConfig{
			Algorithm: idforge.DefaultTagAlgorithm.String(),
			Length:    idforge.DefaultTagLength,
		},
		Collision: CollisionConfig{
			Name:        "default",
			MaxAttempts: 10,
			Backoff:     idforge.BackoffExponential.String(),
			Unit:        idforge.DefaultBackoffUnit,
		},
		Claim: ClaimConfig{
			Kind:      ClaimMemory,
			Table:     claim.DefaultTable,
			ZKRoot:    claim.DefaultZKRoot,
			ZKTimeout: 5 * time.Second,
		},
		Log: LogConfig{Level: "warn"},
	}
}

// NewViper returns a viper instance reading IDFORGE_* variables and, when
// present, a config file: $IDFORGE_CONFIG, else idforge.{yaml,json,...} in
// the working directory or $HOME/.idforge.
func NewViper() *viper.Viper {
	v := viper.New()
	if path := os.Getenv(EnvPrefix + "_CONFIG"); path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("idforge")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.idforge")
	}
	v.SetEnvPrefix(EnvPrefix)
	// Replace dots and dashes in env vars (e.g., generator.segment_length -> IDFORGE_GENERATOR_SEGMENT_LENGTH)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return v
}

// ReadFile reads v's config file. A missing default file is not an error;
// a file named explicitly must exist.
func ReadFile(v *viper.Viper) error {
	err := v.ReadInConfig()
	var notFound viper.ConfigFileNotFoundError
	if err == nil || errors.As(err, &notFound) {
		return nil
	}
	return fmt.Errorf("read config: %w", err)
}

// SetDefaults registers every key of Default on v, which also makes each
// key visible to AutomaticEnv.
func SetDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("generator.segment_length", d.Generator.SegmentLength)
	v.SetDefault("generator.segment_count", d.Generator.SegmentCount)
	v.SetDefault("generator.separator", d.Generator.Separator)
	v.SetDefault("generator.alphabet", d.Generator.Alphabet)
	v.SetDefault("generator.encodings", d.Generator.Encodings)
	v.SetDefault("generator.compression", d.Generator.Compression)
	v.SetDefault("generator.prefix", d.Generator.Prefix)
	v.SetDefault("generator.source", d.Generator.Source)
	v.SetDefault("generator.secure", d.Generator.Secure)
	v.SetDefault("generator.tag", d.Generator.Tag)
	v.SetDefault("checksum.algorithm", d.Checksum.Algorithm)
	v.SetDefault("checksum.length", d.Checksum.Length)
	v.SetDefault("collision.name", d.Collision.Name)
	v.SetDefault("collision.max_attempts", d.Collision.MaxAttempts)
	v.SetDefault("collision.backoff", d.Collision.Backoff)
	v.SetDefault("collision.unit", d.Collision.Unit)
	v.SetDefault("claim.kind", d.Claim.Kind)
	v.SetDefault("claim.path", d.Claim.Path)
	v.SetDefault("claim.dsn", d.Claim.DSN)
	v.SetDefault("claim.table", d.Claim.Table)
	v.SetDefault("claim.zk_servers", d.Claim.ZKServers)
	v.SetDefault("claim.zk_root", d.Claim.ZKRoot)
	v.SetDefault("claim.zk_timeout", d.Claim.ZKTimeout)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.json", d.Log.JSON)
	v.SetDefault("presets", d.Presets)
}

// Load applies defaults to v, decodes it and validates the result.
func Load(v *viper.Viper) (Config, error) {
	SetDefaults(v)
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks every section.
func (c Config) Validate() error {
	if _, err := c.Generator.Spec(); err != nil {
		return fmt.Errorf("generator: %w", err)
	}
	if _, err := c.Checksum.Parse(); err != nil {
		return fmt.Errorf("checksum: %w", err)
	}
	if c.Checksum.Length < idforge.MinChecksumLength || c.Checksum.Length > idforge.MaxChecksumLength {
		return fmt.Errorf("checksum: length must be between %d and %d, got %d",
			idforge.MinChecksumLength, idforge.MaxChecksumLength, c.Checksum.Length)
	}
	if c.Collision.MaxAttempts < 1 {
		return fmt.Errorf("collision: max_attempts must be >= 1, got %d", c.Collision.MaxAttempts)
	}
	if _, err := idforge.ParseBackoff(c.Collision.Backoff); err != nil {
		return fmt.Errorf("collision: %w", err)
	}
	if err := c.Claim.Validate(); err != nil {
		return fmt.Errorf("claim: %w", err)
	}
	if _, ok := logLevels[strings.ToLower(c.Log.Level)]; !ok {
		return fmt.Errorf("log: unknown level %q", c.Log.Level)
	}
	return nil
}

// Spec converts the generator section to a GenerationSpec.
func (g GeneratorConfig) Spec() (idforge.GenerationSpec, error) {
	encodings, err := idforge.ParseEncodings(g.Encodings)
	if err != nil {
		return idforge.GenerationSpec{}, err
	}
	compression, err := idforge.ParseCompression(g.Compression)
	if err != nil {
		return idforge.GenerationSpec{}, err
	}
	source, err := idforge.ParseSource(g.Source)
	if err != nil {
		return idforge.GenerationSpec{}, err
	}
	spec := idforge.GenerationSpec{
		SegmentLength: g.SegmentLength,
		SegmentCount:  g.SegmentCount,
		Separator:     g.Separator,
		Alphabet:      g.Alphabet,
		Encodings:     encodings,
		Compression:   compression,
		Prefix:        g.Prefix,
		Source:        source,
		Secure:        g.Secure,
	}
	if err := spec.Validate(); err != nil {
		return idforge.GenerationSpec{}, err
	}
	return spec, nil
}

// Parse returns the named algorithm.
func (c ChecksumConfig) Parse() (idforge.Algorithm, error) {
	return idforge.ParseAlgorithm(c.Algorithm)
}

// Strategy builds a collision strategy around accept.
func (c CollisionConfig) Strategy(accept idforge.Predicate, logger *slog.Logger) (idforge.CollisionStrategy, error) {
	backoff, err := idforge.ParseBackoff(c.Backoff)
	if err != nil {
		return idforge.CollisionStrategy{}, err
	}
	return idforge.CollisionStrategy{
		Name:        c.Name,
		MaxAttempts: c.MaxAttempts,
		Backoff:     backoff,
		Accept:      accept,
		Unit:        c.Unit,
		Logger:      logger,
	}, nil
}

// Validate checks the store-specific fields.
func (c ClaimConfig) Validate() error {
	if !slices.Contains(claimKinds, c.Kind) {
		return fmt.Errorf("unknown kind %q (want one of %s)", c.Kind, strings.Join(claimKinds, ", "))
	}
	switch c.Kind {
	case ClaimFile, ClaimSQLite:
		if c.Path == "" {
			return fmt.Errorf("%s store needs a path", c.Kind)
		}
	case ClaimMySQL:
		if _, err := mysql.ParseDSN(c.DSN); err != nil {
			return fmt.Errorf("mysql dsn: %w", err)
		}
	case ClaimZK:
		if len(c.ZKServers) == 0 {
			return errors.New("zk store needs at least one server")
		}
	}
	return nil
}

// Open constructs the configured claim store. SQL stores get their table
// created if missing.
func (c ClaimConfig) Open(ctx context.Context, logger *slog.Logger) (claim.Store, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	opts := []claim.Option{claim.WithLogger(logger)}
	if c.Table != "" {
		opts = append(opts, claim.WithTable(c.Table))
	}

	switch c.Kind {
	case ClaimFile:
		return claim.OpenFile(c.Path, opts...)
	case ClaimSQLite, ClaimMySQL:
		var (
			s   *claim.SQL
			err error
		)
		if c.Kind == ClaimSQLite {
			s, err = claim.OpenSQLite(c.Path, opts...)
		} else {
			s, err = claim.OpenMySQL(c.DSN, opts...)
		}
		if err != nil {
			return nil, err
		}
		if err := s.EnsureSchema(ctx); err != nil {
			s.Close()
			return nil, err
		}
		return s, nil
	case ClaimZK:
		return claim.DialZK(c.ZKServers, c.ZKRoot, c.ZKTimeout, opts...)
	default:
		return claim.NewMemory(), nil
	}
}

// LogLevel returns the slog level for Log.Level.
func (c Config) LogLevel() slog.Level {
	if level, ok := logLevels[strings.ToLower(c.Log.Level)]; ok {
		return level
	}
	return slog.LevelWarn
}
