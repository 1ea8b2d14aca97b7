package idforge

import (
	"encoding/binary"
	"fmt"
	"math/bits"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"unicode/utf16"
)

// Algorithm selects one of the 32-bit checksum digests.
type Algorithm uint8

const (
	DJB2 Algorithm = iota
	CRC32
	Adler32
	FNV1a
	Murmur3

	numAlgorithms
)

// Checksum limits.
const (
	MaxChecksumInput  = 1_000_000
	MinChecksumLength = 1
	MaxChecksumLength = 16
)

var algorithmNames = [numAlgorithms]string{
	DJB2:    "djb2",
	CRC32:   "crc32",
	Adler32: "adler32",
	FNV1a:   "fnv1a",
	Murmur3: "murmur3",
}

// String returns the algorithm name.
func (a Algorithm) String() string {
	if a < numAlgorithms {
		return algorithmNames[a]
	}
	return fmt.Sprintf("algorithm(%d)", uint8(a))
}

// Valid reports whether a is one of the supported algorithms.
func (a Algorithm) Valid() bool {
	return a < numAlgorithms
}

// Algorithms returns every supported algorithm in declaration order.
func Algorithms() []Algorithm {
	out := make([]Algorithm, numAlgorithms)
	for i := range out {
		out[i] = Algorithm(i)
	}
	return out
}

// ParseAlgorithm parses an algorithm name such as "crc32".
func ParseAlgorithm(name string) (Algorithm, error) {
	for i, n := range algorithmNames {
		if strings.EqualFold(n, name) {
			return Algorithm(i), nil
		}
	}
	return 0, &ValidationError{Field: "algorithm", Reason: fmt.Sprintf("%q is not supported", name), Err: ErrUnknownAlgorithm}
}

// MarshalText implements encoding.TextMarshaler.
func (a Algorithm) MarshalText() ([]byte, error) {
	if !a.Valid() {
		return nil, ErrUnknownAlgorithm
	}
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Algorithm) UnmarshalText(text []byte) error {
	parsed, err := ParseAlgorithm(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// Sum32 computes the raw 32-bit hash of input with the given algorithm.
func (a Algorithm) Sum32(input string) uint32 {
	switch a {
	case DJB2:
		return djb2(codeUnits(input))
	case CRC32:
		return crc32Sum(codeUnits(input))
	case Adler32:
		return adler32Sum(codeUnits(input))
	case FNV1a:
		return fnv1a(codeUnits(input))
	case Murmur3:
		return murmur3([]byte(input), 0)
	default:
		panic("idforge: Sum32 on unsupported algorithm " + a.String())
	}
}

// codeUnits returns the UTF-16 code units of s, the "character codes" the
// character-oriented digests are defined over.
func codeUnits(s string) []uint16 {
	return utf16.Encode([]rune(s))
}

func djb2(units []uint16) uint32 {
	var hash uint32 = 5381
	for _, c := range units {
		hash = hash*33 + uint32(c)
	}
	return hash
}

// crcTable is built on first use and shared read-only afterwards.
var crcTable = sync.OnceValue(func() *[256]uint32 {
	var table [256]uint32
	for i := range table {
		c := uint32(i)
		for k := 0; k < 8; k++ {
			if c&1 == 1 {
				c = 0xEDB88320 ^ (c >> 1)
			} else {
				c >>= 1
			}
		}
		table[i] = c
	}
	return &table
})

func crc32Sum(units []uint16) uint32 {
	table := crcTable()
	crc := ^uint32(0)
	for _, c := range units {
		crc = table[(crc^uint32(c))&0xFF] ^ (crc >> 8)
	}
	return ^crc
}

const adlerMod = 65521

func adler32Sum(units []uint16) uint32 {
	a, b := uint32(1), uint32(0)
	for _, c := range units {
		a = (a + uint32(c)) % adlerMod
		b = (b + a) % adlerMod
	}
	return b<<16 | a
}

const (
	fnvOffset32 uint32 = 2166136261
	fnvPrime32  uint32 = 16777619
)

func fnv1a(units []uint16) uint32 {
	hash := fnvOffset32
	for _, c := range units {
		hash ^= uint32(c)
		hash *= fnvPrime32
	}
	return hash
}

func murmur3(data []byte, seed uint32) uint32 {
	const (
		c1 = 0xCC9E2D51
		c2 = 0x1B873593
	)
	h := seed
	nblocks := len(data) / 4
	for i := 0; i < nblocks; i++ {
		k := binary.LittleEndian.Uint32(data[i*4:])
		k *= c1
		k = bits.RotateLeft32(k, 15)
		k *= c2
		h ^= k
		h = bits.RotateLeft32(h, 13)
		h = h*5 + 0xE6546B64
	}

	tail := data[nblocks*4:]
	var k uint32
	switch len(tail) {
	case 3:
		k ^= uint32(tail[2]) << 16
		fallthrough
	case 2:
		k ^= uint32(tail[1]) << 8
		fallthrough
	case 1:
		k ^= uint32(tail[0])
		k *= c1
		k = bits.RotateLeft32(k, 15)
		k *= c2
		h ^= k
	}

	h ^= uint32(len(data))
	h ^= h >> 16
	h *= 0x85EBCA6B
	h ^= h >> 13
	h *= 0xC2B2AE35
	h ^= h >> 16
	return h
}

// formatDigest renders v in base36, left-padded with '0' and cut to length.
func formatDigest(v uint32, length int) string {
	s := strconv.FormatUint(uint64(v), 36)
	if len(s) < length {
		s = strings.Repeat("0", length-len(s)) + s
	}
	return s[:length]
}

var digestPattern = regexp.MustCompile(`^[0-9a-zA-Z]+$`)

func checkChecksumArgs(input string, algorithm Algorithm, length int) error {
	if n := len(codeUnits(input)); n > MaxChecksumInput {
		return invalid("input", "length %d exceeds the %d character limit", n, MaxChecksumInput)
	}
	if !algorithm.Valid() {
		return &ValidationError{Field: "algorithm", Reason: fmt.Sprintf("%s is not supported", algorithm), Err: ErrUnknownAlgorithm}
	}
	if length < MinChecksumLength || length > MaxChecksumLength {
		return invalid("length", "must be between %d and %d, got %d", MinChecksumLength, MaxChecksumLength, length)
	}
	return nil
}

// GenerateChecksum returns the fixed-length base36 digest of input. Argument
// violations are reported as *ValidationError.
func GenerateChecksum(input string, algorithm Algorithm, length int) (string, error) {
	if err := checkChecksumArgs(input, algorithm, length); err != nil {
		return "", err
	}
	return formatDigest(algorithm.Sum32(input), length), nil
}

// ValidateChecksum recomputes the digest of input and compares it to digest,
// ignoring case. A malformed digest is a *ValidationError, a well-formed
// digest that does not match is (false, nil).
func ValidateChecksum(input, digest string, algorithm Algorithm, length int) (bool, error) {
	if digest == "" {
		return false, invalid("digest", "must not be empty")
	}
	if !digestPattern.MatchString(digest) {
		return false, invalid("digest", "%q is not base36", digest)
	}
	expected, err := GenerateChecksum(input, algorithm, length)
	if err != nil {
		return false, err
	}
	return strings.EqualFold(expected, digest), nil
}

// TryGenerateChecksum is GenerateChecksum with failures collapsed to ok=false.
func TryGenerateChecksum(input string, algorithm Algorithm, length int) (digest string, ok bool) {
	digest, err := GenerateChecksum(input, algorithm, length)
	if err != nil {
		return "", false
	}
	return digest, true
}

// TryValidateChecksum is ValidateChecksum with failures reported as false.
func TryValidateChecksum(input, digest string, algorithm Algorithm, length int) bool {
	ok, err := ValidateChecksum(input, digest, algorithm, length)
	return err == nil && ok
}
