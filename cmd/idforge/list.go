package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Lzww0608/idforge"
	"github.com/Lzww0608/idforge/config"
)

type catalog struct {
	Encodings    []string `json:"encodings" yaml:"encodings"`
	Algorithms   []string `json:"algorithms" yaml:"algorithms"`
	Compressions []string `json:"compressions" yaml:"compressions"`
	Sources      []string `json:"sources" yaml:"sources"`
	Presets      []string `json:"presets,omitempty" yaml:"presets,omitempty"`
}

func newListCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:       "list [encodings|algorithms|compressions|sources|presets]",
		Short:     "List supported names",
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"encodings", "algorithms", "compressions", "sources", "presets"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := c.catalog()
			if err != nil {
				return err
			}
			sections := map[string][]string{
				"encodings":    cat.Encodings,
				"algorithms":   cat.Algorithms,
				"compressions": cat.Compressions,
				"sources":      cat.Sources,
				"presets":      cat.Presets,
			}
			if len(args) == 1 {
				names := sections[args[0]]
				return c.emit(cmd.OutOrStdout(), strings.Join(names, "\n"), names)
			}
			var b strings.Builder
			for _, name := range cmd.ValidArgs {
				if len(sections[name]) == 0 {
					continue
				}
				fmt.Fprintf(&b, "%s: %s\n", name, strings.Join(sections[name], ", "))
			}
			return c.emit(cmd.OutOrStdout(), strings.TrimSuffix(b.String(), "\n"), cat)
		},
	}
}

func (c *cli) catalog() (catalog, error) {
	var cat catalog
	for _, e := range idforge.Encodings() {
		name := e.String()
		if e.Lossy() {
			name += " (lossy)"
		}
		cat.Encodings = append(cat.Encodings, name)
	}
	for _, a := range idforge.Algorithms() {
		cat.Algorithms = append(cat.Algorithms, a.String())
	}
	for _, m := range []idforge.Compression{
		idforge.CompressionNone,
		idforge.CompressionSequence,
		idforge.CompressionDictionary,
		idforge.CompressionZstd,
		idforge.CompressionLZ4,
	} {
		cat.Compressions = append(cat.Compressions, m.String())
	}
	for _, s := range []idforge.Source{
		idforge.SourceRandom,
		idforge.SourceUUID4,
		idforge.SourceUUID7,
		idforge.SourceULID,
		idforge.SourceKSUID,
		idforge.SourceNanoID,
	} {
		cat.Sources = append(cat.Sources, s.String())
	}
	if c.cfg.Presets != "" {
		presets, err := config.LoadPresets(c.cfg.Presets)
		if err != nil {
			return cat, err
		}
		cat.Presets = presets.Names()
	}
	return cat, nil
}

func newConfigCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the effective configuration",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the merged configuration as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if c.output != "text" {
				return c.emit(cmd.OutOrStdout(), "", c.cfg)
			}
			data, err := yaml.Marshal(c.cfg)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	})
	return cmd
}
