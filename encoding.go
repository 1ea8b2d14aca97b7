package idforge

import (
	"bytes"
	"encoding/ascii85"
	"encoding/base32"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"html"
	"io"
	"mime/quotedprintable"
	"net/url"
	"strconv"
	"strings"
	"unicode/utf16"
	"unicode/utf8"

	"golang.org/x/net/idna"
)

// Encoding is one of the named string transforms. The set is closed; use
// ParseEncoding to turn a name into an Encoding.
type Encoding uint8

const (
	Base64 Encoding = iota
	Base64URL
	Base32
	Base85
	Hex
	Binary
	Decimal
	ROT13
	ROT47
	ReverseText
	URL
	Percent
	HTML
	HTMLDecimal
	HTMLHex
	ASCIIHex
	ASCIIOctal
	Unicode
	UnicodeCodePoint
	Punycode
	QuotedPrintable

	numEncodings
)

type codec struct {
	name   string
	encode func(string) (string, error)
	decode func(string) (string, error)
	lossy  bool
}

var codecs = [numEncodings]codec{
	Base64:           {name: "base64", encode: encodeBase64, decode: decodeBase64},
	Base64URL:        {name: "base64url", encode: encodeBase64URL, decode: decodeBase64URL},
	Base32:           {name: "base32", encode: encodeBase32, decode: decodeBase32},
	Base85:           {name: "base85", encode: encodeBase85, decode: decodeBase85},
	Hex:              {name: "hex", encode: encodeHex, decode: decodeHex},
	Binary:           {name: "binary", encode: encodeBinary, decode: decodeBinary},
	Decimal:          {name: "decimal", encode: encodeDecimal, decode: decodeDecimal},
	ROT13:            {name: "rot13", encode: rot13, decode: rot13},
	ROT47:            {name: "rot47", encode: rot47, decode: rot47},
	ReverseText:      {name: "reverse", encode: reverseRunes, decode: reverseRunes},
	URL:              {name: "url", encode: encodeURL, decode: decodeURL},
	Percent:          {name: "percent", encode: encodePercent, decode: decodePercent},
	HTML:             {name: "html", encode: encodeHTML, decode: decodeHTML},
	HTMLDecimal:      {name: "html_decimal", encode: encodeHTMLDecimal, decode: decodeCharRefs},
	HTMLHex:          {name: "html_hex", encode: encodeHTMLHex, decode: decodeCharRefs},
	ASCIIHex:         {name: "ascii_hex", encode: encodeASCIIHex, decode: decodeASCIIHex},
	ASCIIOctal:       {name: "ascii_octal", encode: encodeASCIIOctal, decode: decodeASCIIOctal},
	Unicode:          {name: "unicode", encode: encodeUnicode, decode: decodeUnicode},
	UnicodeCodePoint: {name: "unicode_codepoint", encode: encodeCodePoint, decode: decodeCodePoint},
	Punycode:         {name: "punycode", encode: encodePunycode, decode: decodePunycode, lossy: true},
	QuotedPrintable:  {name: "quoted_printable", encode: encodeQuotedPrintable, decode: decodeQuotedPrintable},
}

// String returns the wire name of the encoding.
func (e Encoding) String() string {
	if e < numEncodings {
		return codecs[e].name
	}
	return fmt.Sprintf("encoding(%d)", uint8(e))
}

// Valid reports whether e is a supported encoding.
func (e Encoding) Valid() bool {
	return e < numEncodings
}

// Lossy reports whether decode(encode(s)) may differ from s for some inputs.
// Punycode only round-trips strings shaped like domain labels.
func (e Encoding) Lossy() bool {
	return e.Valid() && codecs[e].lossy
}

// Encodings returns every supported encoding in declaration order.
func Encodings() []Encoding {
	out := make([]Encoding, numEncodings)
	for i := range out {
		out[i] = Encoding(i)
	}
	return out
}

// ParseEncoding looks up an encoding by name, ignoring case.
func ParseEncoding(name string) (Encoding, error) {
	for i := range codecs {
		if strings.EqualFold(codecs[i].name, name) {
			return Encoding(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownEncoding, name)
}

// ParseEncodings parses a list of names, failing on the first unknown one.
func ParseEncodings(names []string) ([]Encoding, error) {
	out := make([]Encoding, 0, len(names))
	for _, name := range names {
		e, err := ParseEncoding(name)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// MarshalText implements encoding.TextMarshaler.
func (e Encoding) MarshalText() ([]byte, error) {
	if !e.Valid() {
		return nil, ErrUnknownEncoding
	}
	return []byte(e.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (e *Encoding) UnmarshalText(text []byte) error {
	parsed, err := ParseEncoding(string(text))
	if err != nil {
		return err
	}
	*e = parsed
	return nil
}

// Encode applies a single encoding to input.
func Encode(input string, e Encoding) (string, error) {
	if !e.Valid() {
		return "", fmt.Errorf("%w: %s", ErrUnknownEncoding, e)
	}
	out, err := codecs[e].encode(input)
	if err != nil {
		return "", fmt.Errorf("%s encode: %w", e, err)
	}
	return out, nil
}

// Decode reverses a single encoding.
func Decode(input string, e Encoding) (string, error) {
	if !e.Valid() {
		return "", fmt.Errorf("%w: %s", ErrUnknownEncoding, e)
	}
	out, err := codecs[e].decode(input)
	if err != nil {
		return "", fmt.Errorf("%s decode: %w", e, err)
	}
	return out, nil
}

// EncodeAll runs input through each encoding in order.
func EncodeAll(input string, encodings []Encoding) (string, error) {
	result := input
	for i, e := range encodings {
		var err error
		if result, err = Encode(result, e); err != nil {
			return "", fmt.Errorf("step %d: %w", i, err)
		}
	}
	return result, nil
}

// DecodeAll undoes EncodeAll: the last encoding is decoded first.
func DecodeAll(input string, encodings []Encoding) (string, error) {
	result := input
	for i := len(encodings) - 1; i >= 0; i-- {
		var err error
		if result, err = Decode(result, encodings[i]); err != nil {
			return "", fmt.Errorf("step %d: %w", i, err)
		}
	}
	return result, nil
}

func corrupt(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrCorruptPayload, fmt.Sprintf(format, args...))
}

// Base encodings

func encodeBase64(s string) (string, error) {
	return base64.StdEncoding.EncodeToString([]byte(s)), nil
}

func decodeBase64(s string) (string, error) {
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return "", corrupt("%v", err)
	}
	return string(b), nil
}

func encodeBase64URL(s string) (string, error) {
	return base64.RawURLEncoding.EncodeToString([]byte(s)), nil
}

func decodeBase64URL(s string) (string, error) {
	b, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		// Accept padded input too.
		if b, err = base64.URLEncoding.DecodeString(s); err != nil {
			return "", corrupt("%v", err)
		}
	}
	return string(b), nil
}

func encodeBase32(s string) (string, error) {
	return base32.StdEncoding.EncodeToString([]byte(s)), nil
}

func decodeBase32(s string) (string, error) {
	b, err := base32.StdEncoding.DecodeString(s)
	if err != nil {
		return "", corrupt("%v", err)
	}
	return string(b), nil
}

func encodeBase85(s string) (string, error) {
	dst := make([]byte, ascii85.MaxEncodedLen(len(s)))
	n := ascii85.Encode(dst, []byte(s))
	return string(dst[:n]), nil
}

func decodeBase85(s string) (string, error) {
	// Each 'z' expands to four bytes, so size for the worst case.
	dst := make([]byte, 4*len(s))
	n, _, err := ascii85.Decode(dst, []byte(s), true)
	if err != nil {
		return "", corrupt("%v", err)
	}
	return string(dst[:n]), nil
}

func encodeHex(s string) (string, error) {
	return hex.EncodeToString([]byte(s)), nil
}

func decodeHex(s string) (string, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return "", corrupt("%v", err)
	}
	return string(b), nil
}

func encodeBinary(s string) (string, error) {
	var buf bytes.Buffer
	for i := 0; i < len(s); i++ {
		if i > 0 {
			buf.WriteByte(' ')
		}
		fmt.Fprintf(&buf, "%08b", s[i])
	}
	return buf.String(), nil
}

func decodeBinary(s string) (string, error) {
	digits := strings.ReplaceAll(s, " ", "")
	if len(digits)%8 != 0 {
		return "", corrupt("binary string length must be a multiple of 8, got %d", len(digits))
	}
	out := make([]byte, 0, len(digits)/8)
	for i := 0; i < len(digits); i += 8 {
		v, err := strconv.ParseUint(digits[i:i+8], 2, 8)
		if err != nil {
			return "", corrupt("invalid binary group at %d", i)
		}
		out = append(out, byte(v))
	}
	return string(out), nil
}

func encodeDecimal(s string) (string, error) {
	parts := make([]string, len(s))
	for i := 0; i < len(s); i++ {
		parts[i] = strconv.Itoa(int(s[i]))
	}
	return strings.Join(parts, " "), nil
}

func decodeDecimal(s string) (string, error) {
	fields := strings.Fields(s)
	out := make([]byte, 0, len(fields))
	for _, f := range fields {
		v, err := strconv.ParseUint(f, 10, 8)
		if err != nil {
			return "", corrupt("invalid decimal byte %q", f)
		}
		out = append(out, byte(v))
	}
	return string(out), nil
}

// Ciphers and reordering

func rot13(s string) (string, error) {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return 'a' + (r-'a'+13)%26
		case r >= 'A' && r <= 'Z':
			return 'A' + (r-'A'+13)%26
		}
		return r
	}, s), nil
}

func rot47(s string) (string, error) {
	return strings.Map(func(r rune) rune {
		if r >= '!' && r <= '~' {
			return '!' + (r-'!'+47)%94
		}
		return r
	}, s), nil
}

func reverseRunes(s string) (string, error) {
	runes := []rune(s)
	for i, j := 0, len(runes)-1; i < j; i, j = i+1, j-1 {
		runes[i], runes[j] = runes[j], runes[i]
	}
	return string(runes), nil
}

// Web escapes

func encodeURL(s string) (string, error) {
	return url.QueryEscape(s), nil
}

func decodeURL(s string) (string, error) {
	out, err := url.QueryUnescape(s)
	if err != nil {
		return "", corrupt("%v", err)
	}
	return out, nil
}

func encodePercent(s string) (string, error) {
	var b strings.Builder
	b.Grow(3 * len(s))
	for i := 0; i < len(s); i++ {
		fmt.Fprintf(&b, "%%%02X", s[i])
	}
	return b.String(), nil
}

func decodePercent(s string) (string, error) {
	out, err := url.PathUnescape(s)
	if err != nil {
		return "", corrupt("%v", err)
	}
	return out, nil
}

func encodeHTML(s string) (string, error) {
	return html.EscapeString(s), nil
}

func decodeHTML(s string) (string, error) {
	return html.UnescapeString(s), nil
}

// decodeCharRefs resolves &#N; and &#xH; references by code point, with no
// Windows-1252 remapping of &#128; through &#159;. Anything that is not a
// well-formed reference is copied through.
func decodeCharRefs(s string) (string, error) {
	var b strings.Builder
	b.Grow(len(s))
	for {
		i := strings.Index(s, "&#")
		if i < 0 {
			b.WriteString(s)
			return b.String(), nil
		}
		b.WriteString(s[:i])
		s = s[i:]
		end := strings.IndexByte(s, ';')
		if end < 0 {
			b.WriteString(s)
			return b.String(), nil
		}
		digits, base := s[2:end], 10
		if len(digits) > 0 && (digits[0] == 'x' || digits[0] == 'X') {
			digits, base = digits[1:], 16
		}
		n, err := strconv.ParseUint(digits, base, 32)
		if digits == "" || err != nil || !utf8.ValidRune(rune(n)) {
			b.WriteString("&#")
			s = s[2:]
			continue
		}
		b.WriteRune(rune(n))
		s = s[end+1:]
	}
}

func encodeHTMLDecimal(s string) (string, error) {
	var b strings.Builder
	for _, r := range s {
		fmt.Fprintf(&b, "&#%d;", r)
	}
	return b.String(), nil
}

func encodeHTMLHex(s string) (string, error) {
	var b strings.Builder
	for _, r := range s {
		fmt.Fprintf(&b, "&#x%x;", r)
	}
	return b.String(), nil
}

// Source-code escapes

func encodeASCIIHex(s string) (string, error) {
	var b strings.Builder
	b.Grow(4 * len(s))
	for i := 0; i < len(s); i++ {
		fmt.Fprintf(&b, `\x%02x`, s[i])
	}
	return b.String(), nil
}

func decodeASCIIHex(s string) (string, error) {
	out := make([]byte, 0, len(s)/4)
	for i := 0; i < len(s); {
		if s[i] == '\\' && i+1 < len(s) && s[i+1] == 'x' {
			if i+4 > len(s) {
				return "", corrupt("truncated hex escape at %d", i)
			}
			v, err := strconv.ParseUint(s[i+2:i+4], 16, 8)
			if err != nil {
				return "", corrupt("invalid hex escape at %d", i)
			}
			out = append(out, byte(v))
			i += 4
			continue
		}
		out = append(out, s[i])
		i++
	}
	return string(out), nil
}

func encodeASCIIOctal(s string) (string, error) {
	var b strings.Builder
	b.Grow(4 * len(s))
	for i := 0; i < len(s); i++ {
		fmt.Fprintf(&b, `\%03o`, s[i])
	}
	return b.String(), nil
}

func isOctal(c byte) bool {
	return c >= '0' && c <= '7'
}

func decodeASCIIOctal(s string) (string, error) {
	out := make([]byte, 0, len(s)/4)
	for i := 0; i < len(s); {
		if s[i] == '\\' && i+4 <= len(s) && isOctal(s[i+1]) && isOctal(s[i+2]) && isOctal(s[i+3]) {
			v, err := strconv.ParseUint(s[i+1:i+4], 8, 8)
			if err != nil {
				return "", corrupt("octal escape out of range at %d", i)
			}
			out = append(out, byte(v))
			i += 4
			continue
		}
		out = append(out, s[i])
		i++
	}
	return string(out), nil
}

func encodeUnicode(s string) (string, error) {
	units := codeUnits(s)
	var b strings.Builder
	b.Grow(6 * len(units))
	for _, u := range units {
		fmt.Fprintf(&b, `\u%04x`, u)
	}
	return b.String(), nil
}

func decodeUnicode(s string) (string, error) {
	units := make([]uint16, 0, len(s)/6)
	for i := 0; i < len(s); {
		if s[i] == '\\' && i+1 < len(s) && s[i+1] == 'u' {
			if i+6 > len(s) {
				return "", corrupt("truncated unicode escape at %d", i)
			}
			v, err := strconv.ParseUint(s[i+2:i+6], 16, 16)
			if err != nil {
				return "", corrupt("invalid unicode escape at %d", i)
			}
			units = append(units, uint16(v))
			i += 6
			continue
		}
		r, size := utf8.DecodeRuneInString(s[i:])
		units = utf16.AppendRune(units, r)
		i += size
	}
	return string(utf16.Decode(units)), nil
}

func encodeCodePoint(s string) (string, error) {
	var b strings.Builder
	for _, r := range s {
		fmt.Fprintf(&b, `\u{%x}`, r)
	}
	return b.String(), nil
}

func decodeCodePoint(s string) (string, error) {
	var b strings.Builder
	for i := 0; i < len(s); {
		if strings.HasPrefix(s[i:], `\u{`) {
			end := strings.IndexByte(s[i:], '}')
			if end < 0 {
				return "", corrupt("unterminated code point escape at %d", i)
			}
			v, err := strconv.ParseUint(s[i+3:i+end], 16, 32)
			if err != nil || v > utf8.MaxRune {
				return "", corrupt("invalid code point escape at %d", i)
			}
			b.WriteRune(rune(v))
			i += end + 1
			continue
		}
		b.WriteByte(s[i])
		i++
	}
	return b.String(), nil
}

// Transport encodings

func encodePunycode(s string) (string, error) {
	return idna.Punycode.ToASCII(s)
}

func decodePunycode(s string) (string, error) {
	out, err := idna.Punycode.ToUnicode(s)
	if err != nil {
		return "", corrupt("%v", err)
	}
	return out, nil
}

func encodeQuotedPrintable(s string) (string, error) {
	var buf bytes.Buffer
	w := quotedprintable.NewWriter(&buf)
	// Binary mode escapes CR and LF so line endings survive the round trip.
	w.Binary = true
	if _, err := io.WriteString(w, s); err != nil {
		return "", err
	}
	if err := w.Close(); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func decodeQuotedPrintable(s string) (string, error) {
	out, err := io.ReadAll(quotedprintable.NewReader(strings.NewReader(s)))
	if err != nil {
		return "", corrupt("%v", err)
	}
	return string(out), nil
}
