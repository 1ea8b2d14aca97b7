package idforge

import (
	"crypto/rand"
	"encoding/binary"
	"io"
	mrand "math/rand/v2"
	"strings"
	"sync"
	"unicode/utf8"
)

// Common alphabets.
const (
	AlphabetAlphanumeric = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	AlphabetUpper        = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	AlphabetLower        = "abcdefghijklmnopqrstuvwxyz"
	AlphabetDigits       = "0123456789"
	AlphabetHex          = "0123456789abcdef"
	AlphabetBase36       = "0123456789abcdefghijklmnopqrstuvwxyz"
)

// RandomSource draws characters uniformly, with replacement, from an alphabet.
// A fast source uses a PCG generator; a secure source reads from an io.Reader
// (crypto/rand by default) with rejection sampling so every index is equally likely.
// RandomSource is safe for concurrent use.
type RandomSource struct {
	mu     sync.Mutex
	secure bool
	reader io.Reader
	rng    *mrand.Rand
}

// NewRandomSource returns a fast pseudorandom source, or a crypto/rand backed
// source when secure is true.
func NewRandomSource(secure bool) *RandomSource {
	if secure {
		return &RandomSource{secure: true, reader: rand.Reader}
	}
	var seed [16]byte
	if _, err := io.ReadFull(rand.Reader, seed[:]); err != nil {
		panic("idforge: cannot seed random source: " + err.Error())
	}
	return NewSeededRandomSource(binary.LittleEndian.Uint64(seed[:8]), binary.LittleEndian.Uint64(seed[8:]))
}

// NewSeededRandomSource returns a deterministic fast source. Two sources built
// from the same seeds produce the same sequence.
func NewSeededRandomSource(seed1, seed2 uint64) *RandomSource {
	return &RandomSource{rng: mrand.New(mrand.NewPCG(seed1, seed2))}
}

// NewRandomSourceWithReader returns a secure-mode source reading entropy from r.
// This is primarily useful for testing with deterministic readers.
func NewRandomSourceWithReader(r io.Reader) *RandomSource {
	return &RandomSource{secure: true, reader: r}
}

// Secure reports whether the source draws from a cryptographic reader.
func (s *RandomSource) Secure() bool {
	return s.secure
}

// Next returns length characters drawn from alphabet. The alphabet may contain
// any Unicode characters; each rune is one symbol.
func (s *RandomSource) Next(length int, alphabet string) (string, error) {
	if alphabet == "" || !utf8.ValidString(alphabet) {
		return "", invalid("alphabet", "must be a non-empty UTF-8 string")
	}
	if length < 0 {
		return "", invalid("length", "must be >= 0, got %d", length)
	}
	if length == 0 {
		return "", nil
	}

	symbols := []rune(alphabet)
	var b strings.Builder
	b.Grow(length * utf8.UTFMax)

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := 0; i < length; i++ {
		idx, err := s.intN(len(symbols))
		if err != nil {
			return "", err
		}
		b.WriteRune(symbols[idx])
	}
	return b.String(), nil
}

// intN returns a uniform integer in [0, n). Callers hold s.mu.
func (s *RandomSource) intN(n int) (int, error) {
	if !s.secure {
		return s.rng.IntN(n), nil
	}
	// Reject values from the incomplete top bucket to avoid modulo bias.
	limit := ^uint32(0) - (^uint32(0) % uint32(n))
	var buf [4]byte
	for {
		if _, err := io.ReadFull(s.reader, buf[:]); err != nil {
			return 0, err
		}
		v := binary.BigEndian.Uint32(buf[:])
		if v < limit {
			return int(v % uint32(n)), nil
		}
	}
}

// Pattern fills a template: 'X' and 'A' become an uppercase letter, '9' a
// digit and 'a' a lowercase letter. Every other character is copied as is.
func (s *RandomSource) Pattern(template string) (string, error) {
	var b strings.Builder
	b.Grow(len(template))
	for _, r := range template {
		var alphabet string
		switch r {
		case 'X', 'A':
			alphabet = AlphabetUpper
		case '9':
			alphabet = AlphabetDigits
		case 'a':
			alphabet = AlphabetLower
		default:
			b.WriteRune(r)
			continue
		}
		c, err := s.Next(1, alphabet)
		if err != nil {
			return "", err
		}
		b.WriteString(c)
	}
	return b.String(), nil
}

var defaultSource = sync.OnceValue(func() *RandomSource {
	return NewRandomSource(false)
})

// Pattern fills template from a shared fast source.
func Pattern(template string) (string, error) {
	return defaultSource().Pattern(template)
}
