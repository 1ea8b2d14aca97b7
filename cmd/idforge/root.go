package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Lzww0608/idforge"
	"github.com/Lzww0608/idforge/claim"
	"github.com/Lzww0608/idforge/config"
)

// flagKeys maps flag names to the config keys they override. A command
// only binds the flags it defines.
var flagKeys = map[string]string{
	"log-level":    "log.level",
	"log-json":     "log.json",
	"presets":      "presets",
	"claim":        "claim.kind",
	"claim-path":   "claim.path",
	"claim-dsn":    "claim.dsn",
	"claim-table":  "claim.table",
	"zk-servers":   "claim.zk_servers",
	"zk-root":      "claim.zk_root",
	"length":       "generator.segment_length",
	"segments":     "generator.segment_count",
	"separator":    "generator.separator",
	"alphabet":     "generator.alphabet",
	"encode":       "generator.encodings",
	"compress":     "generator.compression",
	"prefix":       "generator.prefix",
	"source":       "generator.source",
	"secure":       "generator.secure",
	"tag":          "generator.tag",
	"algorithm":    "checksum.algorithm",
	"digits":       "checksum.length",
	"max-attempts": "collision.max_attempts",
	"backoff":      "collision.backoff",
}

// cli carries state shared by every command of one invocation.
type cli struct {
	v       *viper.Viper
	cfg     config.Config
	logger  *slog.Logger
	output  string
	cfgFile string
	stdin   io.Reader
	stderr  io.Writer
}

func newRootCmd(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	c := &cli{stdin: stdin, stderr: stderr}

	root := &cobra.Command{
		Use:   "idforge",
		Short: "Generate, encode and verify identifiers",
		Long: `idforge generates identifiers from random segments or structured sources
(uuid4, uuid7, ulid, ksuid, nanoid), runs strings through encoding and
compression pipelines, and computes checksums.

Configuration sources, highest precedence first:
  1. command line flags
  2. IDFORGE_* environment variables (IDFORGE_GENERATOR_SEGMENT_LENGTH=12)
  3. the config file (--config, $IDFORGE_CONFIG, ./idforge.yaml, ~/.idforge/idforge.yaml)
  4. built-in defaults`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.init(cmd)
		},
	}
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)

	pf := root.PersistentFlags()
	pf.StringVar(&c.cfgFile, "config", "", "config file (default $IDFORGE_CONFIG or ./idforge.yaml)")
	pf.StringVarP(&c.output, "output", "o", "text", "output format: text, json or yaml")
	pf.String("log-level", "warn", "log level: debug, info, warn or error")
	pf.Bool("log-json", false, "log as JSON even on a terminal")
	pf.String("presets", "", "file of named generation specs (yaml, json or jsonc)")

	root.AddCommand(
		newGenCmd(c),
		newBatchCmd(c),
		newPatternCmd(c),
		newVerifyTagCmd(c),
		newEncodeCmd(c, true),
		newEncodeCmd(c, false),
		newCompressCmd(c, true),
		newCompressCmd(c, false),
		newChecksumCmd(c),
		newPipelineCmd(c),
		newListCmd(c),
		newConfigCmd(c),
	)
	return root
}

// init loads configuration for cmd. Flags win over env and file values.
func (c *cli) init(cmd *cobra.Command) error {
	switch c.output {
	case "text", "json", "yaml":
	default:
		return fmt.Errorf("unknown output format %q", c.output)
	}

	c.v = config.NewViper()
	if c.cfgFile != "" {
		c.v.SetConfigFile(c.cfgFile)
	}
	if err := config.ReadFile(c.v); err != nil {
		return err
	}
	for name, key := range flagKeys {
		if f := cmd.Flags().Lookup(name); f != nil {
			if err := c.v.BindPFlag(key, f); err != nil {
				return fmt.Errorf("bind --%s: %w", name, err)
			}
		}
	}

	cfg, err := config.Load(c.v)
	if err != nil {
		return err
	}
	c.cfg = cfg
	c.logger = newLogger(c.stderr, cfg.LogLevel(), cfg.Log.JSON).With("command", cmd.CommandPath())
	if used := c.v.ConfigFileUsed(); used != "" {
		c.logger.Debug("config loaded", "file", used)
	}
	return nil
}

// spec returns the generation spec for a command: the named preset when
// one is given, else the generator config section.
func (c *cli) spec(preset string) (idforge.GenerationSpec, error) {
	if preset == "" {
		return c.cfg.Generator.Spec()
	}
	if c.cfg.Presets == "" {
		return idforge.GenerationSpec{}, fmt.Errorf("preset %q requested but no presets file configured", preset)
	}
	presets, err := config.LoadPresets(c.cfg.Presets)
	if err != nil {
		return idforge.GenerationSpec{}, err
	}
	return presets.Lookup(preset)
}

func (c *cli) generator(preset string) (*idforge.Generator, error) {
	spec, err := c.spec(preset)
	if err != nil {
		return nil, err
	}
	alg, err := c.cfg.Checksum.Parse()
	if err != nil {
		return nil, err
	}
	return idforge.NewGenerator(spec,
		idforge.WithLogger(c.logger),
		idforge.WithChecksumTag(c.cfg.Generator.Tag),
		idforge.WithTagFormat(alg, c.cfg.Checksum.Length),
	)
}

func (c *cli) openStore(ctx context.Context) (claim.Store, error) {
	store, err := c.cfg.Claim.Open(ctx, c.logger)
	if err != nil {
		return nil, fmt.Errorf("open %s claim store: %w", c.cfg.Claim.Kind, err)
	}
	c.logger.Debug("claim store opened", "kind", c.cfg.Claim.Kind)
	return store, nil
}

// input returns args[i] when present, else all of stdin with one trailing
// newline removed.
func (c *cli) input(args []string, i int) (string, error) {
	if len(args) > i {
		return args[i], nil
	}
	data, err := io.ReadAll(c.stdin)
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	s := strings.TrimSuffix(string(data), "\n")
	return strings.TrimSuffix(s, "\r"), nil
}
