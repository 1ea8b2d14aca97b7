package main

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Lzww0608/idforge"
)

type transformResult struct {
	Input  string `json:"input" yaml:"input"`
	Output string `json:"output" yaml:"output"`
}

// newEncodeCmd builds "encode" or, with forward unset, "decode". Several
// comma separated encodings apply in order; decode undoes them in reverse.
func newEncodeCmd(c *cli, forward bool) *cobra.Command {
	use, short := "encode", "Apply encodings to TEXT (or stdin)"
	if !forward {
		use, short = "decode", "Undo encodings on TEXT (or stdin)"
	}
	return &cobra.Command{
		Use:   use + " ENCODING[,ENCODING...] [TEXT]",
		Short: short,
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			encodings, err := idforge.ParseEncodings(strings.Split(args[0], ","))
			if err != nil {
				return err
			}
			in, err := c.input(args, 1)
			if err != nil {
				return err
			}
			var out string
			if forward {
				out, err = idforge.EncodeAll(in, encodings)
			} else {
				out, err = idforge.DecodeAll(in, encodings)
			}
			if err != nil {
				return err
			}
			return c.emit(cmd.OutOrStdout(), out, transformResult{Input: in, Output: out})
		},
	}
}

func newCompressCmd(c *cli, forward bool) *cobra.Command {
	var tolerant bool
	use, short := "compress", "Compress TEXT (or stdin); output is base64"
	if !forward {
		use, short = "decompress", "Decompress base64 TEXT (or stdin)"
	}
	cmd := &cobra.Command{
		Use:   use + " MODE [TEXT]",
		Short: short,
		Long:  short + ".\n\nMODE is one of none, A (sequence match), B (dictionary), zstd or lz4.",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			mode, err := idforge.ParseCompression(args[0])
			if err != nil {
				return err
			}
			in, err := c.input(args, 1)
			if err != nil {
				return err
			}
			var out string
			switch {
			case forward:
				out, err = idforge.Compress(in, mode)
			case tolerant:
				out = idforge.DecompressOrOriginal(in, mode)
			default:
				out, err = idforge.Decompress(in, mode)
			}
			if err != nil {
				return err
			}
			return c.emit(cmd.OutOrStdout(), out, transformResult{Input: in, Output: out})
		},
	}
	if !forward {
		cmd.Flags().BoolVar(&tolerant, "tolerant", false, "print the input unchanged when it does not decompress")
	}
	return cmd
}

type checksumResult struct {
	Input     string `json:"input" yaml:"input"`
	Algorithm string `json:"algorithm" yaml:"algorithm"`
	Checksum  string `json:"checksum" yaml:"checksum"`
	Valid     *bool  `json:"valid,omitempty" yaml:"valid,omitempty"`
}

func newChecksumCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "checksum",
		Short: "Compute and validate base36 checksums",
	}

	gen := &cobra.Command{
		Use:   "generate [TEXT]",
		Short: "Print the checksum of TEXT (or stdin)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			alg, err := c.cfg.Checksum.Parse()
			if err != nil {
				return err
			}
			in, err := c.input(args, 0)
			if err != nil {
				return err
			}
			sum, err := idforge.GenerateChecksum(in, alg, c.cfg.Checksum.Length)
			if err != nil {
				return err
			}
			return c.emit(cmd.OutOrStdout(), sum, checksumResult{Input: in, Algorithm: alg.String(), Checksum: sum})
		},
	}
	addChecksumFlags(gen.Flags())

	validate := &cobra.Command{
		Use:   "validate TEXT CHECKSUM",
		Short: "Check CHECKSUM against TEXT",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			alg, err := c.cfg.Checksum.Parse()
			if err != nil {
				return err
			}
			ok, err := idforge.ValidateChecksum(args[0], args[1], alg, c.cfg.Checksum.Length)
			if err != nil {
				return err
			}
			res := checksumResult{Input: args[0], Algorithm: alg.String(), Checksum: args[1], Valid: &ok}
			if err := c.emit(cmd.OutOrStdout(), validity(ok), res); err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("checksum %q does not match", args[1])
			}
			return nil
		},
	}
	addChecksumFlags(validate.Flags())

	cmd.AddCommand(gen, validate)
	return cmd
}

type envelopeResult struct {
	Envelope string                 `json:"envelope,omitempty" yaml:"envelope,omitempty"`
	Output   string                 `json:"output,omitempty" yaml:"output,omitempty"`
	Config   *idforge.PipelineConfig `json:"config,omitempty" yaml:"config,omitempty"`
}

func newPipelineCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pipeline",
		Short: "Run strings through encoding and compression pipelines",
	}

	var (
		encodings  encodingList
		mode       = newEnumValue(idforge.CompressionNone, idforge.ParseCompression, "compression")
		reversible bool
		integrity  bool
		meta       map[string]string
	)
	process := &cobra.Command{
		Use:   "process [TEXT]",
		Short: "Encode and compress TEXT (or stdin)",
		Long: `Encode and compress TEXT (or stdin).

With --reversible the result is an envelope that carries its own
configuration, so "pipeline reverse" can restore the input without flags.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := c.input(args, 0)
			if err != nil {
				return err
			}
			p := idforge.NewPipeline().
				Add(encodings.list...).
				Compress(mode.Get()).
				Reversible(reversible).
				WithIntegrity(integrity)
			for k, v := range meta {
				p.Meta(k, v)
			}
			out, err := p.Process(in)
			if err != nil {
				return err
			}
			c.logger.Debug("pipeline processed", "encodings", encodings.String(), "compression", mode.String(), "reversible", reversible)
			return c.emit(cmd.OutOrStdout(), out, envelopeResult{Envelope: out})
		},
	}
	pf := process.Flags()
	pf.Var(&encodings, "encoding", "encodings applied in order (repeatable)")
	pf.Var(mode, "compression", "compression: none, A, B, zstd or lz4")
	pf.BoolVar(&reversible, "reversible", false, "wrap the result in a self-describing envelope")
	pf.BoolVar(&integrity, "integrity", false, "record a BLAKE3 fingerprint of the input in the envelope")
	pf.StringToStringVar(&meta, "meta", nil, "envelope metadata key=value pairs")

	var inspect bool
	reverse := &cobra.Command{
		Use:   "reverse [ENVELOPE]",
		Short: "Restore the input of a reversible envelope",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := c.input(args, 0)
			if err != nil {
				return err
			}
			if inspect {
				header, _, _ := strings.Cut(in, idforge.EnvelopeDelimiter)
				cfg, err := idforge.ParseEnvelopeHeader(header)
				if err != nil {
					return err
				}
				return c.emit(cmd.OutOrStdout(), describeConfig(cfg), envelopeResult{Config: &cfg})
			}
			out, err := idforge.ReverseErr(in)
			if err != nil {
				return err
			}
			return c.emit(cmd.OutOrStdout(), out, envelopeResult{Output: out})
		},
	}
	reverse.Flags().BoolVar(&inspect, "inspect", false, "print the envelope header instead of restoring")

	cmd.AddCommand(process, reverse)
	return cmd
}

func describeConfig(cfg idforge.PipelineConfig) string {
	names := make([]string, len(cfg.Encodings))
	for i, e := range cfg.Encodings {
		names[i] = e.String()
	}
	var b strings.Builder
	fmt.Fprintf(&b, "encodings: %s\n", strings.Join(names, ","))
	fmt.Fprintf(&b, "compression: %s\n", cfg.Compression)
	fmt.Fprintf(&b, "integrity: %t", cfg.Integrity)
	for _, k := range slices.Sorted(maps.Keys(cfg.Metadata)) {
		fmt.Fprintf(&b, "\nmeta %s=%s", k, cfg.Metadata[k])
	}
	return b.String()
}
