package idforge

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression selects the compression stage of a generator or pipeline.
// Every mode produces base64 text.
type Compression uint8

const (
	// CompressionNone leaves the payload untouched.
	CompressionNone Compression = iota

	// CompressionSequence is sliding-window back-reference compression
	// (wire name "A"). Tokens are (0xFF, offset, length); a literal 0xFF is
	// written as (0xFF, 0x00).
	CompressionSequence

	// CompressionDictionary is LZW dictionary compression (wire name "B")
	// with big-endian 16-bit codes.
	CompressionDictionary

	// CompressionZstd wraps klauspost zstd frames.
	CompressionZstd

	// CompressionLZ4 wraps LZ4 frames.
	CompressionLZ4

	numCompressions
)

var compressionNames = [numCompressions]string{
	CompressionNone:       "none",
	CompressionSequence:   "A",
	CompressionDictionary: "B",
	CompressionZstd:       "zstd",
	CompressionLZ4:        "lz4",
}

// String returns the wire name of the mode.
func (c Compression) String() string {
	if c < numCompressions {
		return compressionNames[c]
	}
	return fmt.Sprintf("compression(%d)", uint8(c))
}

// Valid reports whether c is a supported mode.
func (c Compression) Valid() bool {
	return c < numCompressions
}

// ParseCompression parses a wire name. The empty string means none.
func ParseCompression(name string) (Compression, error) {
	if name == "" {
		return CompressionNone, nil
	}
	for i, n := range compressionNames {
		if strings.EqualFold(n, name) {
			return Compression(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownCompression, name)
}

// MarshalText implements encoding.TextMarshaler.
func (c Compression) MarshalText() ([]byte, error) {
	if !c.Valid() {
		return nil, ErrUnknownCompression
	}
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Compression) UnmarshalText(text []byte) error {
	parsed, err := ParseCompression(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// Compress compresses the bytes of input and base64-encodes the result.
// Empty input yields empty output for every mode.
func Compress(input string, mode Compression) (string, error) {
	if mode == CompressionNone {
		return input, nil
	}
	if input == "" {
		if !mode.Valid() {
			return "", fmt.Errorf("%w: %s", ErrUnknownCompression, mode)
		}
		return "", nil
	}

	var (
		raw []byte
		err error
	)
	switch mode {
	case CompressionSequence:
		raw = compressSequence([]byte(input))
	case CompressionDictionary:
		raw = compressDictionary([]byte(input))
	case CompressionZstd:
		raw = zstdEncoder.EncodeAll([]byte(input), nil)
	case CompressionLZ4:
		raw, err = compressLZ4([]byte(input))
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownCompression, mode)
	}
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// Decompress reverses Compress. Malformed input is always reported as an
// error wrapping ErrCorruptPayload; use DecompressOrOriginal to fall back to
// the input instead.
func Decompress(input string, mode Compression) (string, error) {
	if mode == CompressionNone {
		return input, nil
	}
	if !mode.Valid() {
		return "", fmt.Errorf("%w: %s", ErrUnknownCompression, mode)
	}
	if input == "" {
		return "", nil
	}

	raw, err := base64.StdEncoding.DecodeString(input)
	if err != nil {
		return "", corrupt("%s: %v", mode, err)
	}

	var out []byte
	switch mode {
	case CompressionSequence:
		out, err = decompressSequence(raw)
	case CompressionDictionary:
		out, err = decompressDictionary(raw)
	case CompressionZstd:
		out, err = zstdDecoder.DecodeAll(raw, nil)
		if err != nil {
			err = corrupt("zstd: %v", err)
		}
	case CompressionLZ4:
		out, err = decompressLZ4(raw)
	}
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// DecompressOrOriginal is the tolerant form of Decompress: when input cannot
// be decompressed it is returned unchanged. Callers opting into this must be
// able to tell a compressed payload from an uncompressed one on their own.
func DecompressOrOriginal(input string, mode Compression) string {
	out, err := Decompress(input, mode)
	if err != nil {
		return input
	}
	return out
}

// Sequence-match compression.

const (
	seqMarker    = 0xFF
	seqWindow    = 255
	seqMinMatch  = 4
	seqMaxLength = 255
)

func compressSequence(src []byte) []byte {
	out := make([]byte, 0, len(src))
	for i := 0; i < len(src); {
		bestLen, bestOff := 0, 0
		for off := 1; off <= seqWindow && off <= i; off++ {
			start := i - off
			n := 0
			// The match may run past i; decompression copies forward byte by byte.
			for n < seqMaxLength && i+n < len(src) && src[start+n] == src[i+n] {
				n++
			}
			if n > bestLen {
				bestLen, bestOff = n, off
				if n == seqMaxLength {
					break
				}
			}
		}

		if bestLen >= seqMinMatch {
			out = append(out, seqMarker, byte(bestOff), byte(bestLen))
			i += bestLen
			continue
		}

		if src[i] == seqMarker {
			out = append(out, seqMarker, 0x00)
		} else {
			out = append(out, src[i])
		}
		i++
	}
	return out
}

func decompressSequence(src []byte) ([]byte, error) {
	out := make([]byte, 0, len(src)*2)
	for i := 0; i < len(src); {
		if src[i] != seqMarker {
			out = append(out, src[i])
			i++
			continue
		}
		if i+1 >= len(src) {
			return nil, corrupt("A: truncated token at %d", i)
		}
		offset := int(src[i+1])
		if offset == 0 {
			out = append(out, seqMarker)
			i += 2
			continue
		}
		if i+2 >= len(src) {
			return nil, corrupt("A: truncated token at %d", i)
		}
		length := int(src[i+2])
		if offset > len(out) {
			return nil, corrupt("A: offset %d reaches before start of output (%d bytes)", offset, len(out))
		}
		start := len(out) - offset
		for k := 0; k < length; k++ {
			out = append(out, out[start+k])
		}
		i += 3
	}
	return out, nil
}

// Dictionary (LZW) compression.

const maxDictionarySize = 1 << 16

func compressDictionary(src []byte) []byte {
	dict := make(map[string]uint16, 4096)
	for i := 0; i < 256; i++ {
		dict[string([]byte{byte(i)})] = uint16(i)
	}
	next := 256

	out := make([]byte, 0, len(src))
	emit := func(code uint16) {
		out = binary.BigEndian.AppendUint16(out, code)
	}

	current := src[:1]
	for i := 1; i < len(src); i++ {
		extended := src[i-len(current) : i+1]
		if _, ok := dict[string(extended)]; ok {
			current = extended
			continue
		}
		emit(dict[string(current)])
		if next < maxDictionarySize {
			dict[string(extended)] = uint16(next)
			next++
		}
		current = src[i : i+1]
	}
	emit(dict[string(current)])
	return out
}

func decompressDictionary(src []byte) ([]byte, error) {
	if len(src) == 0 {
		return nil, corrupt("B: empty code stream")
	}
	if len(src)%2 != 0 {
		return nil, corrupt("B: odd code stream length %d", len(src))
	}
	dict := make([][]byte, 256, 4096)
	for i := range dict {
		dict[i] = []byte{byte(i)}
	}

	first := binary.BigEndian.Uint16(src)
	if first > 255 {
		return nil, corrupt("B: first code %d is not a literal", first)
	}
	prev := dict[first]
	var out bytes.Buffer
	out.Write(prev)

	for i := 2; i < len(src); i += 2 {
		code := int(binary.BigEndian.Uint16(src[i:]))
		var entry []byte
		switch {
		case code < len(dict):
			entry = dict[code]
		case code == len(dict) && len(dict) < maxDictionarySize:
			// The code being defined right now: previous entry plus its own first byte.
			entry = append(append([]byte{}, prev...), prev[0])
		default:
			return nil, corrupt("B: code %d out of range (dictionary size %d)", code, len(dict))
		}
		out.Write(entry)
		if len(dict) < maxDictionarySize {
			added := make([]byte, len(prev)+1)
			copy(added, prev)
			added[len(prev)] = entry[0]
			dict = append(dict, added)
		}
		prev = entry
	}
	return out.Bytes(), nil
}

// Frame-based compressors.

// zstd.Encoder and zstd.Decoder are safe for concurrent use with EncodeAll
// and DecodeAll, so one of each is shared.
var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("idforge: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("idforge: zstd decoder initialization failed: " + err.Error())
	}
}

func compressLZ4(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := lz4.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, fmt.Errorf("lz4 compress: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("lz4 compress: %w", err)
	}
	return buf.Bytes(), nil
}

func decompressLZ4(data []byte) ([]byte, error) {
	out, err := io.ReadAll(lz4.NewReader(bytes.NewReader(data)))
	if err != nil {
		return nil, corrupt("lz4: %v", err)
	}
	return out, nil
}
