package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Lzww0608/idforge"
)

var errInvalidTag = errors.New("one or more tags did not verify")

type genResult struct {
	ID       string `json:"id" yaml:"id"`
	Attempts int    `json:"attempts,omitempty" yaml:"attempts,omitempty"`
}

func newGenCmd(c *cli) *cobra.Command {
	var (
		preset string
		safe   bool
	)
	cmd := &cobra.Command{
		Use:   "gen",
		Short: "Generate one identifier",
		Long: `Generate one identifier from the generator config, flags or a preset.

With --safe, candidates are claimed in the configured claim store and
regenerated on collision until one is accepted or max-attempts is reached.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			gen, err := c.generator(preset)
			if err != nil {
				return err
			}
			if !safe {
				id, err := gen.Next()
				if err != nil {
					return err
				}
				return c.emit(cmd.OutOrStdout(), id, genResult{ID: id})
			}

			store, err := c.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()
			strategy, err := c.cfg.Collision.Strategy(store.Accept, c.logger)
			if err != nil {
				return err
			}
			id, err := gen.Safe(cmd.Context(), strategy)
			if err != nil {
				return err
			}
			stats := gen.Monitor().Snapshot()
			return c.emit(cmd.OutOrStdout(), id, genResult{ID: id, Attempts: int(stats.Collisions) + 1})
		},
	}
	fs := cmd.Flags()
	fs.StringVarP(&preset, "preset", "p", "", "named spec from the presets file")
	fs.BoolVar(&safe, "safe", false, "claim the id in the claim store, retrying on collision")
	addGeneratorFlags(fs)
	addClaimFlags(fs)
	return cmd
}

type batchResult struct {
	IDs   []string      `json:"ids" yaml:"ids"`
	Stats idforge.Stats `json:"stats" yaml:"stats"`
}

func newBatchCmd(c *cli) *cobra.Command {
	var (
		preset string
		unique bool
	)
	cmd := &cobra.Command{
		Use:   "batch COUNT",
		Short: "Generate COUNT identifiers",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			count, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid count %q: %w", args[0], err)
			}
			gen, err := c.generator(preset)
			if err != nil {
				return err
			}
			ids, err := gen.Batch(cmd.Context(), count, unique)
			if err != nil {
				return err
			}
			stats := gen.Monitor().Snapshot()
			c.logger.Info("batch generated",
				"count", len(ids),
				"collisions", stats.Collisions,
				"avg", stats.AverageDuration)
			return c.emit(cmd.OutOrStdout(), strings.Join(ids, "\n"), batchResult{IDs: ids, Stats: stats})
		},
	}
	fs := cmd.Flags()
	fs.StringVarP(&preset, "preset", "p", "", "named spec from the presets file")
	fs.BoolVarP(&unique, "unique", "u", false, "discard duplicates within the batch")
	addGeneratorFlags(fs)
	return cmd
}

func newPatternCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pattern TEMPLATE",
		Short: "Fill a template: X or A uppercase, a lowercase, 9 digit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fill := idforge.Pattern
			if c.cfg.Generator.Secure {
				fill = idforge.NewRandomSource(true).Pattern
			}
			id, err := fill(args[0])
			if err != nil {
				return err
			}
			return c.emit(cmd.OutOrStdout(), id, genResult{ID: id})
		},
	}
	cmd.Flags().Bool("secure", false, "draw from crypto/rand")
	return cmd
}

type tagResult struct {
	ID    string `json:"id" yaml:"id"`
	Valid bool   `json:"valid" yaml:"valid"`
}

func newVerifyTagCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify-tag ID...",
		Short: "Check the checksum tag of tagged identifiers",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			alg, err := c.cfg.Checksum.Parse()
			if err != nil {
				return err
			}
			results := make([]tagResult, len(args))
			lines := make([]string, len(args))
			failed := false
			for i, id := range args {
				ok := idforge.VerifyTagWith(id, alg, c.cfg.Checksum.Length)
				results[i] = tagResult{ID: id, Valid: ok}
				lines[i] = fmt.Sprintf("%s\t%s", id, validity(ok))
				failed = failed || !ok
			}
			if err := c.emit(cmd.OutOrStdout(), strings.Join(lines, "\n"), results); err != nil {
				return err
			}
			if failed {
				return errInvalidTag
			}
			return nil
		},
	}
	addChecksumFlags(cmd.Flags())
	return cmd
}

func validity(ok bool) string {
	if ok {
		return "valid"
	}
	return "invalid"
}
