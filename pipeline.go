package idforge

import (
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/zeebo/blake3"
)

// EnvelopeDelimiter separates the encoded configuration from the payload.
// It is outside the standard base64 alphabet, so the first occurrence always
// ends the configuration segment.
const EnvelopeDelimiter = ":"

// PipelineConfig is a snapshot of a Pipeline's settings.
type PipelineConfig struct {
	Encodings   []Encoding        `json:"encodings" yaml:"encodings"`
	Compression Compression       `json:"compression" yaml:"compression"`
	Reversible  bool              `json:"reversible" yaml:"reversible"`
	Integrity   bool              `json:"integrity,omitempty" yaml:"integrity,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

func (c PipelineConfig) clone() PipelineConfig {
	c.Encodings = slices.Clone(c.Encodings)
	c.Metadata = maps.Clone(c.Metadata)
	return c
}

// envelopeHeader is the wire form of the configuration carried in an envelope.
type envelopeHeader struct {
	Encodings   []Encoding        `json:"e"`
	Compression Compression       `json:"c"`
	Metadata    map[string]string `json:"m"`
	Digest      string            `json:"i,omitempty"`
}

// Pipeline composes encodings, an optional compression stage and metadata
// into one transform. With reversibility on, Process emits a self-describing
// envelope that Reverse can undo without any other configuration.
//
// Builder methods mutate and return the receiver. A Pipeline must not be
// modified while another goroutine is using it.
type Pipeline struct {
	cfg PipelineConfig
}

// NewPipeline returns an empty pipeline: no encodings, no compression, not reversible.
func NewPipeline() *Pipeline {
	return &Pipeline{}
}

// NewPipelineFromConfig returns a pipeline with a copy of cfg.
func NewPipelineFromConfig(cfg PipelineConfig) *Pipeline {
	return &Pipeline{cfg: cfg.clone()}
}

// Add appends encodings to the end of the list.
func (p *Pipeline) Add(encodings ...Encoding) *Pipeline {
	p.cfg.Encodings = append(p.cfg.Encodings, encodings...)
	return p
}

// Compress sets the compression mode.
func (p *Pipeline) Compress(mode Compression) *Pipeline {
	p.cfg.Compression = mode
	return p
}

// Reversible toggles envelope output.
func (p *Pipeline) Reversible(on bool) *Pipeline {
	p.cfg.Reversible = on
	return p
}

// WithIntegrity makes reversible output carry a BLAKE3 fingerprint of the
// original input, checked by Reverse.
func (p *Pipeline) WithIntegrity(on bool) *Pipeline {
	p.cfg.Integrity = on
	return p
}

// Meta attaches a metadata entry, replacing any previous value for key.
func (p *Pipeline) Meta(key, value string) *Pipeline {
	if p.cfg.Metadata == nil {
		p.cfg.Metadata = make(map[string]string)
	}
	p.cfg.Metadata[key] = value
	return p
}

// Config returns a copy of the current settings.
func (p *Pipeline) Config() PipelineConfig {
	return p.cfg.clone()
}

func (p *Pipeline) validate() error {
	for i, e := range p.cfg.Encodings {
		if !e.Valid() {
			return fmt.Errorf("step %d: %w: %s", i, ErrUnknownEncoding, e)
		}
	}
	if !p.cfg.Compression.Valid() {
		return fmt.Errorf("%w: %s", ErrUnknownCompression, p.cfg.Compression)
	}
	return nil
}

// Process encodes input, compresses it and, when reversible, wraps the
// result in an envelope: base64(config) + ":" + payload.
func (p *Pipeline) Process(input string) (string, error) {
	if err := p.validate(); err != nil {
		return "", err
	}
	payload, err := EncodeAll(input, p.cfg.Encodings)
	if err != nil {
		return "", err
	}
	if payload, err = Compress(payload, p.cfg.Compression); err != nil {
		return "", err
	}
	if !p.cfg.Reversible {
		return payload, nil
	}

	header := envelopeHeader{
		Encodings:   p.cfg.Encodings,
		Compression: p.cfg.Compression,
		Metadata:    p.cfg.Metadata,
	}
	if header.Encodings == nil {
		header.Encodings = []Encoding{}
	}
	if header.Metadata == nil {
		header.Metadata = map[string]string{}
	}
	if p.cfg.Integrity {
		header.Digest = fingerprint(input)
	}
	raw, err := json.Marshal(header)
	if err != nil {
		return "", fmt.Errorf("encode envelope header: %w", err)
	}
	return base64.StdEncoding.EncodeToString(raw) + EnvelopeDelimiter + payload, nil
}

// Restore undoes Process for non-envelope output using this pipeline's own
// configuration.
func (p *Pipeline) Restore(payload string) (string, error) {
	if err := p.validate(); err != nil {
		return "", err
	}
	decompressed, err := Decompress(payload, p.cfg.Compression)
	if err != nil {
		return "", err
	}
	return DecodeAll(decompressed, p.cfg.Encodings)
}

// Reverse recovers the original input from an envelope. Any failure,
// including input that is not an envelope at all, yields ok=false.
func Reverse(envelope string) (string, bool) {
	out, err := ReverseErr(envelope)
	if err != nil {
		return "", false
	}
	return out, true
}

// ReverseErr is Reverse with the failure cause: ErrNotEnvelope when the
// delimiter is missing, otherwise an error describing the corruption.
func ReverseErr(envelope string) (string, error) {
	configSegment, payload, found := strings.Cut(envelope, EnvelopeDelimiter)
	if !found {
		return "", ErrNotEnvelope
	}
	header, err := parseHeader(configSegment)
	if err != nil {
		return "", err
	}
	decompressed, err := Decompress(payload, header.Compression)
	if err != nil {
		return "", err
	}
	out, err := DecodeAll(decompressed, header.Encodings)
	if err != nil {
		return "", err
	}
	if header.Digest != "" && fingerprint(out) != header.Digest {
		return "", ErrIntegrity
	}
	return out, nil
}

// Reverse is a method form of the package-level Reverse. The envelope
// carries its own configuration, so the receiver's settings are not used.
func (p *Pipeline) Reverse(envelope string) (string, bool) {
	return Reverse(envelope)
}

// ParseEnvelopeHeader decodes the configuration segment of an envelope.
func ParseEnvelopeHeader(segment string) (PipelineConfig, error) {
	header, err := parseHeader(segment)
	if err != nil {
		return PipelineConfig{}, err
	}
	return PipelineConfig{
		Encodings:   header.Encodings,
		Compression: header.Compression,
		Reversible:  true,
		Integrity:   header.Digest != "",
		Metadata:    header.Metadata,
	}, nil
}

func parseHeader(segment string) (envelopeHeader, error) {
	var header envelopeHeader
	raw, err := base64.StdEncoding.DecodeString(segment)
	if err != nil {
		return header, corrupt("envelope header: %v", err)
	}
	if err := json.Unmarshal(raw, &header); err != nil {
		return header, fmt.Errorf("%w: envelope header: %w", ErrCorruptPayload, err)
	}
	return header, nil
}

// fingerprint returns the first 8 bytes of the BLAKE3 hash of s, hex encoded.
func fingerprint(s string) string {
	sum := blake3.Sum256([]byte(s))
	return hex.EncodeToString(sum[:8])
}
