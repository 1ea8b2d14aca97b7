package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/Lzww0608/idforge"
)

// Presets maps a preset name to a generation spec.
type Presets map[string]idforge.GenerationSpec

// Names returns the preset names in sorted order.
func (p Presets) Names() []string {
	names := make([]string, 0, len(p))
	for name := range p {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Lookup returns the named preset.
func (p Presets) Lookup(name string) (idforge.GenerationSpec, error) {
	spec, ok := p[name]
	if !ok {
		return idforge.GenerationSpec{}, fmt.Errorf("unknown preset %q", name)
	}
	return spec, nil
}

// LoadPresets reads a preset file. The format follows the extension:
// .yaml/.yml for YAML, .json/.jsonc for JSON with comments.
func LoadPresets(path string) (Presets, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read presets: %w", err)
	}
	p, err := ParsePresets(data, filepath.Ext(path))
	if err != nil {
		return nil, fmt.Errorf("presets %s: %w", path, err)
	}
	return p, nil
}

// ParsePresets decodes preset data in the given format ("yaml", "json" or
// a file extension such as ".jsonc"). Unknown fields are rejected. Omitted
// segment length, segment count and alphabet fall back to DefaultSpec.
func ParsePresets(data []byte, format string) (Presets, error) {
	var raw Presets
	switch strings.TrimPrefix(strings.ToLower(format), ".") {
	case "yaml", "yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("parse yaml: %w", err)
		}
	case "json", "jsonc":
		dec := json.NewDecoder(bytes.NewReader(jsonc.ToJSON(data)))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("parse json: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported preset format %q", format)
	}

	presets := make(Presets, len(raw))
	for name, spec := range raw {
		spec = withDefaults(spec)
		if err := spec.Validate(); err != nil {
			return nil, fmt.Errorf("preset %q: %w", name, err)
		}
		presets[name] = spec
	}
	return presets, nil
}

func withDefaults(spec idforge.GenerationSpec) idforge.GenerationSpec {
	d := idforge.DefaultSpec()
	if spec.SegmentLength == 0 {
		spec.SegmentLength = d.SegmentLength
	}
	if spec.SegmentCount == 0 {
		spec.SegmentCount = d.SegmentCount
	}
	if spec.Alphabet == "" {
		spec.Alphabet = d.Alphabet
	}
	return spec
}
