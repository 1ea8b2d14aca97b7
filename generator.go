package idforge

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"
)

// Defaults shared by generators and validators of checksum-tagged ids.
const (
	TagSeparator        = "_"
	DefaultTagAlgorithm = CRC32
	DefaultTagLength    = 8
)

// BatchAttemptFactor bounds unique batch generation at count*BatchAttemptFactor draws.
const BatchAttemptFactor = 100

// GenerationSpec describes the shape of generated identifiers.
type GenerationSpec struct {
	SegmentLength int         `json:"segment_length" yaml:"segment_length" mapstructure:"segment_length"`
	SegmentCount  int         `json:"segment_count" yaml:"segment_count" mapstructure:"segment_count"`
	Separator     string      `json:"separator" yaml:"separator" mapstructure:"separator"`
	Alphabet      string      `json:"alphabet" yaml:"alphabet" mapstructure:"alphabet"`
	Encodings     []Encoding  `json:"encodings,omitempty" yaml:"encodings,omitempty" mapstructure:"encodings"`
	Compression   Compression `json:"compression" yaml:"compression" mapstructure:"compression"`
	Prefix        string      `json:"prefix,omitempty" yaml:"prefix,omitempty" mapstructure:"prefix"`
	Source        Source      `json:"source" yaml:"source" mapstructure:"source"`
	Secure        bool        `json:"secure" yaml:"secure" mapstructure:"secure"`
}

// DefaultSpec is one 8 character alphanumeric segment.
func DefaultSpec() GenerationSpec {
	return GenerationSpec{
		SegmentLength: 8,
		SegmentCount:  1,
		Separator:     "-",
		Alphabet:      AlphabetAlphanumeric,
	}
}

// Validate reports the first invalid field of s.
func (s GenerationSpec) Validate() error {
	if !s.Source.Valid() {
		return invalid("source", "%s is not supported", s.Source)
	}
	if s.Source == SourceRandom || s.Source == SourceNanoID {
		if s.Alphabet == "" {
			return invalid("alphabet", "must not be empty")
		}
		if s.SegmentLength <= 0 {
			return invalid("segment length", "must be > 0, got %d", s.SegmentLength)
		}
	}
	if s.Source == SourceRandom && s.SegmentCount <= 0 {
		return invalid("segment count", "must be > 0, got %d", s.SegmentCount)
	}
	for _, e := range s.Encodings {
		if !e.Valid() {
			return &ValidationError{Field: "encodings", Reason: fmt.Sprintf("%s is not supported", e), Err: ErrUnknownEncoding}
		}
	}
	if !s.Compression.Valid() {
		return &ValidationError{Field: "compression", Reason: fmt.Sprintf("%s is not supported", s.Compression), Err: ErrUnknownCompression}
	}
	return nil
}

// Generator produces identifiers from a GenerationSpec. It is safe for
// concurrent use.
type Generator struct {
	spec    GenerationSpec
	random  *RandomSource
	clock   *v7Clock
	monitor *Monitor
	logger  *slog.Logger
	now     func() time.Time

	tag          bool
	tagAlgorithm Algorithm
	tagLength    int
}

// Option configures a Generator.
type Option func(*Generator)

// WithRandomSource replaces the source implied by GenerationSpec.Secure.
func WithRandomSource(r *RandomSource) Option {
	return func(g *Generator) {
		g.random = r
	}
}

// WithLogger sets the logger used for generation diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(g *Generator) {
		g.logger = l
	}
}

// WithMonitor records generations and collisions into m.
func WithMonitor(m *Monitor) Option {
	return func(g *Generator) {
		g.monitor = m
	}
}

// WithChecksumTag appends "_<digest>" to every generated id.
func WithChecksumTag(on bool) Option {
	return func(g *Generator) {
		g.tag = on
	}
}

// WithTagFormat overrides the digest algorithm and length of checksum tags.
// Validators must be given the same values.
func WithTagFormat(algorithm Algorithm, length int) Option {
	return func(g *Generator) {
		g.tagAlgorithm = algorithm
		g.tagLength = length
	}
}

// WithClock replaces time.Now for time-based sources.
func WithClock(now func() time.Time) Option {
	return func(g *Generator) {
		g.now = now
	}
}

// NewGenerator validates spec and returns a generator for it.
func NewGenerator(spec GenerationSpec, opts ...Option) (*Generator, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	spec.Encodings = slices.Clone(spec.Encodings)
	g := &Generator{
		spec:         spec,
		monitor:      NewMonitor(),
		logger:       discardLogger,
		now:          time.Now,
		tagAlgorithm: DefaultTagAlgorithm,
		tagLength:    DefaultTagLength,
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.random == nil {
		g.random = NewRandomSource(spec.Secure)
	}
	if g.tag {
		if err := checkChecksumArgs("", g.tagAlgorithm, g.tagLength); err != nil {
			return nil, err
		}
	}
	if spec.Secure {
		g.clock = newV7Clock(nil)
	} else {
		g.clock = newV7Clock(randomReader{g.random})
	}
	return g, nil
}

// Spec returns a copy of the generator's spec.
func (g *Generator) Spec() GenerationSpec {
	spec := g.spec
	spec.Encodings = slices.Clone(spec.Encodings)
	return spec
}

// Monitor returns the generator's counters.
func (g *Generator) Monitor() *Monitor {
	return g.monitor
}

// Next produces one identifier.
func (g *Generator) Next() (string, error) {
	start := time.Now()
	id, err := g.build()
	if err != nil {
		return "", err
	}
	g.monitor.RecordGeneration(time.Since(start))
	return id, nil
}

func (g *Generator) build() (string, error) {
	var body string
	if g.spec.Source == SourceRandom {
		segments := make([]string, g.spec.SegmentCount)
		for i := range segments {
			segment, err := g.random.Next(g.spec.SegmentLength, g.spec.Alphabet)
			if err != nil {
				return "", err
			}
			if segments[i], err = EncodeAll(segment, g.spec.Encodings); err != nil {
				return "", err
			}
		}
		body = strings.Join(segments, g.spec.Separator)
	} else {
		raw, err := g.structured()
		if err != nil {
			return "", fmt.Errorf("%s source: %w", g.spec.Source, err)
		}
		if body, err = EncodeAll(raw, g.spec.Encodings); err != nil {
			return "", err
		}
	}

	body, err := Compress(body, g.spec.Compression)
	if err != nil {
		return "", err
	}
	id := g.spec.Prefix + body
	if !g.tag {
		return id, nil
	}
	return AppendTag(id, g.tagAlgorithm, g.tagLength)
}

// Safe generates identifiers until strategy accepts one. Rejections are
// counted on the generator's monitor.
func (g *Generator) Safe(ctx context.Context, strategy CollisionStrategy) (string, error) {
	onReject := strategy.OnReject
	strategy.OnReject = func(candidate string, attempts int) {
		g.monitor.RecordCollision()
		if onReject != nil {
			onReject(candidate, attempts)
		}
	}
	if strategy.Logger == nil {
		strategy.Logger = g.logger
	}
	return Safe(ctx, g.Next, strategy)
}

// Batch generates count identifiers. With unique set, duplicates are
// discarded until count distinct values exist; the loop gives up with
// *ExhaustedError after count*BatchAttemptFactor draws. ctx is checked
// between draws.
func (g *Generator) Batch(ctx context.Context, count int, unique bool) ([]string, error) {
	if count < 0 {
		return nil, invalid("count", "must be >= 0, got %d", count)
	}
	out := make([]string, 0, count)
	if !unique {
		for len(out) < count {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			id, err := g.Next()
			if err != nil {
				return nil, err
			}
			out = append(out, id)
		}
		return out, nil
	}

	seen := make(map[string]struct{}, count)
	limit := count * BatchAttemptFactor
	for draws := 0; len(out) < count; draws++ {
		if draws >= limit {
			g.logger.Warn("batch gave up before reaching count",
				"count", count,
				"distinct", len(out),
				"draws", draws)
			return nil, &ExhaustedError{Strategy: "batch", MaxAttempts: limit}
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		id, err := g.Next()
		if err != nil {
			return nil, err
		}
		if _, dup := seen[id]; dup {
			g.monitor.RecordCollision()
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out, nil
}

// VerifyTag checks an id produced with this generator's tag format.
func (g *Generator) VerifyTag(id string) bool {
	return VerifyTagWith(id, g.tagAlgorithm, g.tagLength)
}

// AppendTag returns id + "_" + digest(id).
func AppendTag(id string, algorithm Algorithm, length int) (string, error) {
	digest, err := GenerateChecksum(id, algorithm, length)
	if err != nil {
		return "", err
	}
	return id + TagSeparator + digest, nil
}

// VerifyTag checks an id tagged with the default algorithm and length.
func VerifyTag(id string) bool {
	return VerifyTagWith(id, DefaultTagAlgorithm, DefaultTagLength)
}

// VerifyTagWith splits id on its last "_" and validates the digest.
func VerifyTagWith(id string, algorithm Algorithm, length int) bool {
	i := strings.LastIndex(id, TagSeparator)
	if i < 0 {
		return false
	}
	body, digest := id[:i], id[i+len(TagSeparator):]
	if len(digest) != length {
		return false
	}
	return TryValidateChecksum(body, digest, algorithm, length)
}

// Generate produces a single identifier for spec.
func Generate(spec GenerationSpec) (string, error) {
	g, err := NewGenerator(spec)
	if err != nil {
		return "", err
	}
	return g.Next()
}

// Must returns v or panics with err. It is meant for examples and
// package-level initialization.
func Must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}

// randomReader adapts a RandomSource to io.Reader for byte-oriented consumers.
type randomReader struct {
	src *RandomSource
}

func (r randomReader) Read(p []byte) (int, error) {
	r.src.mu.Lock()
	defer r.src.mu.Unlock()
	if r.src.secure {
		return r.src.reader.Read(p)
	}
	for i := range p {
		p[i] = byte(r.src.rng.Uint32())
	}
	return len(p), nil
}
