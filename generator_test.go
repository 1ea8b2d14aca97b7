package idforge

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/google/go-cmp/cmp"
)

func newTestGenerator(t *testing.T, spec GenerationSpec, opts ...Option) *Generator {
	t.Helper()
	g, err := NewGenerator(spec, opts...)
	if err != nil {
		t.Fatalf("NewGenerator() error = %v", err)
	}
	return g
}

func TestGenerator_Default(t *testing.T) {
	g := newTestGenerator(t, DefaultSpec())

	id, err := g.Next()
	if err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	if len(id) != 8 {
		t.Errorf("Next() = %q, want 8 characters", id)
	}
	for _, r := range id {
		if !strings.ContainsRune(AlphabetAlphanumeric, r) {
			t.Errorf("Next() = %q contains %q", id, r)
		}
	}
}

func TestGenerator_Shape(t *testing.T) {
	tests := []struct {
		name  string
		spec  GenerationSpec
		check func(t *testing.T, id string)
	}{
		{
			name: "segments",
			spec: GenerationSpec{SegmentLength: 4, SegmentCount: 3, Separator: "-", Alphabet: AlphabetDigits},
			check: func(t *testing.T, id string) {
				parts := strings.Split(id, "-")
				if len(parts) != 3 {
					t.Fatalf("got %d segments in %q", len(parts), id)
				}
				for _, p := range parts {
					if len(p) != 4 || strings.Trim(p, AlphabetDigits) != "" {
						t.Errorf("segment %q is not 4 digits", p)
					}
				}
			},
		},
		{
			name: "prefix",
			spec: GenerationSpec{SegmentLength: 6, SegmentCount: 1, Alphabet: AlphabetLower, Prefix: "usr_"},
			check: func(t *testing.T, id string) {
				if !strings.HasPrefix(id, "usr_") || len(id) != 10 {
					t.Errorf("id = %q, want usr_ plus 6 characters", id)
				}
			},
		},
		{
			name: "per segment encodings",
			spec: GenerationSpec{SegmentLength: 5, SegmentCount: 2, Separator: ".", Alphabet: AlphabetUpper, Encodings: []Encoding{Hex}},
			check: func(t *testing.T, id string) {
				parts := strings.Split(id, ".")
				if len(parts) != 2 {
					t.Fatalf("got %d segments in %q", len(parts), id)
				}
				for _, p := range parts {
					raw, err := Decode(p, Hex)
					if err != nil || len(raw) != 5 || strings.Trim(raw, AlphabetUpper) != "" {
						t.Errorf("segment %q decodes to %q, %v", p, raw, err)
					}
				}
			},
		},
		{
			name: "compression",
			spec: GenerationSpec{SegmentLength: 40, SegmentCount: 1, Alphabet: "ab", Compression: CompressionDictionary},
			check: func(t *testing.T, id string) {
				raw, err := Decompress(id, CompressionDictionary)
				if err != nil || len(raw) != 40 || strings.Trim(raw, "ab") != "" {
					t.Errorf("id %q decompresses to %q, %v", id, raw, err)
				}
			},
		},
		{
			name: "unicode alphabet",
			spec: GenerationSpec{SegmentLength: 7, SegmentCount: 1, Alphabet: "αβγ"},
			check: func(t *testing.T, id string) {
				if utf8.RuneCountInString(id) != 7 {
					t.Errorf("id = %q, want 7 runes", id)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := newTestGenerator(t, tt.spec).Next()
			if err != nil {
				t.Fatalf("Next() error = %v", err)
			}
			tt.check(t, id)
		})
	}
}

func TestGenerator_InvalidSpec(t *testing.T) {
	tests := []struct {
		name string
		spec GenerationSpec
		is   error
	}{
		{"empty alphabet", GenerationSpec{SegmentLength: 4, SegmentCount: 1}, ErrInvalidArgument},
		{"zero length", GenerationSpec{SegmentCount: 1, Alphabet: "ab"}, ErrInvalidArgument},
		{"zero segments", GenerationSpec{SegmentLength: 4, Alphabet: "ab"}, ErrInvalidArgument},
		{"unknown encoding", GenerationSpec{SegmentLength: 4, SegmentCount: 1, Alphabet: "ab", Encodings: []Encoding{Encoding(99)}}, ErrUnknownEncoding},
		{"unknown compression", GenerationSpec{SegmentLength: 4, SegmentCount: 1, Alphabet: "ab", Compression: Compression(99)}, ErrUnknownCompression},
		{"unknown source", GenerationSpec{Source: Source(99)}, ErrInvalidArgument},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewGenerator(tt.spec); !errors.Is(err, tt.is) {
				t.Errorf("NewGenerator() error = %v, want %v", err, tt.is)
			}
			if _, err := Generate(tt.spec); err == nil {
				t.Error("Generate() accepted an invalid spec")
			}
		})
	}
}

func TestGenerator_ChecksumTag(t *testing.T) {
	g := newTestGenerator(t, GenerationSpec{SegmentLength: 6, SegmentCount: 2, Separator: "_", Alphabet: AlphabetLower}, WithChecksumTag(true))

	id, err := g.Next()
	if err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	body, digest, _ := strings.Cut(id[len(id)-9:], TagSeparator)
	if body != "" || len(digest) != DefaultTagLength {
		t.Fatalf("id %q does not end in a %d character tag", id, DefaultTagLength)
	}
	if !VerifyTag(id) || !g.VerifyTag(id) {
		t.Errorf("VerifyTag(%q) = false", id)
	}

	tampered := "z" + id[1:]
	if id[0] == 'z' {
		tampered = "y" + id[1:]
	}
	if VerifyTag(tampered) {
		t.Errorf("VerifyTag(%q) = true for a tampered id", tampered)
	}
	if VerifyTag("no-tag-here") {
		t.Error("VerifyTag() = true for an id without separator")
	}
}

func TestGenerator_TagFormat(t *testing.T) {
	g := newTestGenerator(t, DefaultSpec(), WithChecksumTag(true), WithTagFormat(Murmur3, 4))

	id, err := g.Next()
	if err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	if !g.VerifyTag(id) {
		t.Errorf("g.VerifyTag(%q) = false", id)
	}
	if !VerifyTagWith(id, Murmur3, 4) {
		t.Errorf("VerifyTagWith(%q, murmur3, 4) = false", id)
	}
	if VerifyTag(id) {
		t.Errorf("VerifyTag(%q) = true with the wrong format", id)
	}

	if _, err := NewGenerator(DefaultSpec(), WithChecksumTag(true), WithTagFormat(CRC32, 17)); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("NewGenerator() with bad tag length error = %v", err)
	}
}

func TestAppendTag(t *testing.T) {
	got, err := AppendTag("data", CRC32, 8)
	if err != nil {
		t.Fatalf("AppendTag() error = %v", err)
	}
	digest, _ := GenerateChecksum("data", CRC32, 8)
	if got != "data_"+digest {
		t.Errorf("AppendTag() = %q, want data_%s", got, digest)
	}
}

func TestGenerator_Seeded(t *testing.T) {
	spec := GenerationSpec{SegmentLength: 10, SegmentCount: 2, Separator: "-", Alphabet: AlphabetBase36}
	a := newTestGenerator(t, spec, WithRandomSource(NewSeededRandomSource(7, 11)))
	b := newTestGenerator(t, spec, WithRandomSource(NewSeededRandomSource(7, 11)))

	for i := 0; i < 5; i++ {
		x, _ := a.Next()
		y, _ := b.Next()
		if x != y {
			t.Fatalf("seeded generators diverged at %d: %q != %q", i, x, y)
		}
	}
}

func TestGenerator_BatchUnique(t *testing.T) {
	g := newTestGenerator(t, GenerationSpec{SegmentLength: 3, SegmentCount: 1, Alphabet: AlphabetDigits})

	ids, err := g.Batch(context.Background(), 50, true)
	if err != nil {
		t.Fatalf("Batch() error = %v", err)
	}
	if len(ids) != 50 {
		t.Fatalf("Batch() returned %d ids, want 50", len(ids))
	}
	seen := make(map[string]bool)
	for _, id := range ids {
		if seen[id] {
			t.Errorf("Batch() returned duplicate %q", id)
		}
		seen[id] = true
	}
}

func TestGenerator_BatchExhausted(t *testing.T) {
	g := newTestGenerator(t, GenerationSpec{SegmentLength: 1, SegmentCount: 1, Alphabet: "a"})

	_, err := g.Batch(context.Background(), 2, true)
	var exhausted *ExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("Batch() error = %v, want *ExhaustedError", err)
	}
	if exhausted.Strategy != "batch" || exhausted.MaxAttempts != 2*BatchAttemptFactor {
		t.Errorf("Batch() error = %+v", exhausted)
	}
	if got := g.Monitor().Snapshot().Collisions; got != 2*BatchAttemptFactor-1 {
		t.Errorf("collisions = %d, want %d", got, 2*BatchAttemptFactor-1)
	}

	ids, err := g.Batch(context.Background(), 3, false)
	if err != nil {
		t.Fatalf("Batch(unique=false) error = %v", err)
	}
	if diff := cmp.Diff([]string{"a", "a", "a"}, ids); diff != "" {
		t.Errorf("Batch(unique=false) mismatch (-want +got):\n%s", diff)
	}
}

func TestGenerator_BatchArgs(t *testing.T) {
	g := newTestGenerator(t, DefaultSpec())

	if _, err := g.Batch(context.Background(), -1, true); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("Batch(-1) error = %v", err)
	}
	ids, err := g.Batch(context.Background(), 0, true)
	if err != nil || len(ids) != 0 {
		t.Errorf("Batch(0) = %v, %v", ids, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := g.Batch(ctx, 10, true); !errors.Is(err, context.Canceled) {
		t.Errorf("Batch() with cancelled ctx error = %v", err)
	}
}

func TestGenerator_Safe(t *testing.T) {
	g := newTestGenerator(t, GenerationSpec{SegmentLength: 1, SegmentCount: 1, Alphabet: "ab"},
		WithRandomSource(NewSeededRandomSource(1, 1)),
		WithLogger(slog.New(slog.DiscardHandler)))

	taken := map[string]bool{"a": true}
	var mu sync.Mutex
	accept := func(_ context.Context, candidate string) (bool, error) {
		mu.Lock()
		defer mu.Unlock()
		if taken[candidate] {
			return false, nil
		}
		taken[candidate] = true
		return true, nil
	}

	id, err := g.Safe(context.Background(), CollisionStrategy{MaxAttempts: 64, Unit: time.Nanosecond, Accept: accept})
	if err != nil {
		t.Fatalf("Safe() error = %v", err)
	}
	if id != "b" {
		t.Errorf("Safe() = %q, want b", id)
	}

	// Both values are now taken.
	rejects := 0
	_, err = g.Safe(context.Background(), CollisionStrategy{
		MaxAttempts: 4,
		Unit:        time.Nanosecond,
		Accept:      accept,
		OnReject:    func(string, int) { rejects++ },
	})
	if !errors.Is(err, ErrCollisionExhausted) {
		t.Fatalf("Safe() error = %v, want ErrCollisionExhausted", err)
	}
	if rejects != 4 {
		t.Errorf("caller OnReject called %d times, want 4", rejects)
	}
	stats := g.Monitor().Snapshot()
	if stats.Collisions < 4 {
		t.Errorf("monitor collisions = %d, want at least 4", stats.Collisions)
	}
}

func TestGenerator_ConcurrentSafety(t *testing.T) {
	g := newTestGenerator(t, GenerationSpec{SegmentLength: 16, SegmentCount: 1, Alphabet: AlphabetAlphanumeric, Secure: true})
	const goroutines = 10
	const idsPerGoroutine = 100

	results := make(chan string, goroutines*idsPerGoroutine)
	var wg sync.WaitGroup

	// Start multiple goroutines generating ids concurrently
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < idsPerGoroutine; j++ {
				id, err := g.Next()
				if err != nil {
					t.Errorf("Concurrent generation error: %v", err)
					return
				}
				results <- id
			}
		}()
	}
	wg.Wait()
	close(results)

	// Check for uniqueness
	seen := make(map[string]bool)
	for id := range results {
		if seen[id] {
			t.Errorf("Duplicate id generated in concurrent test: %v", id)
		}
		seen[id] = true
	}

	if len(seen) != goroutines*idsPerGoroutine {
		t.Errorf("Expected %d unique ids, got %d", goroutines*idsPerGoroutine, len(seen))
	}
	if got := g.Monitor().Snapshot().Generated; got != goroutines*idsPerGoroutine {
		t.Errorf("monitor generated = %d, want %d", got, goroutines*idsPerGoroutine)
	}
}

func TestGenerator_SpecIsCopied(t *testing.T) {
	spec := GenerationSpec{SegmentLength: 4, SegmentCount: 1, Alphabet: "ab", Encodings: []Encoding{Hex}}
	g := newTestGenerator(t, spec)

	spec.Encodings[0] = Base64
	got := g.Spec()
	if got.Encodings[0] != Hex {
		t.Errorf("generator spec aliased caller slice: %v", got.Encodings)
	}
	got.Encodings[0] = ROT13
	if g.Spec().Encodings[0] != Hex {
		t.Error("Spec() returned an aliased slice")
	}
}

func TestGenerate(t *testing.T) {
	id, err := Generate(DefaultSpec())
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if len(id) != 8 {
		t.Errorf("Generate() = %q", id)
	}
}

func TestMust(t *testing.T) {
	if got := Must("ok", nil); got != "ok" {
		t.Errorf("Must() = %q", got)
	}
	defer func() {
		if r := recover(); r == nil {
			t.Error("Must() with an error did not panic")
		}
	}()
	Must(Generate(GenerationSpec{}))
}
