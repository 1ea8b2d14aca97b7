package idforge

import (
	"errors"
	"strings"
	"testing"
)

// printableASCII is every character from ' ' to '~'.
func printableASCII() string {
	var b strings.Builder
	for c := byte(' '); c <= '~'; c++ {
		b.WriteByte(c)
	}
	return b.String()
}

func TestEncoding_RoundTrip(t *testing.T) {
	inputs := []string{
		"",
		"hello",
		"Hello, World!",
		"a&b<c>d\"e'f",
		"key=value; path=/a b/%20",
		printableASCII(),
		strings.Repeat("The quick brown fox ", 10),
	}

	for _, e := range Encodings() {
		if e.Lossy() {
			continue
		}
		t.Run(e.String(), func(t *testing.T) {
			for _, in := range inputs {
				enc, err := Encode(in, e)
				if err != nil {
					t.Fatalf("Encode(%q) error = %v", in, err)
				}
				dec, err := Decode(enc, e)
				if err != nil {
					t.Fatalf("Decode(%q) error = %v", enc, err)
				}
				if dec != in {
					t.Errorf("round trip of %q = %q (encoded %q)", in, dec, enc)
				}
			}
		})
	}
}

func TestEncoding_NonASCIIRoundTrip(t *testing.T) {
	in := "héllo wörld ✓ 😀"
	for _, e := range []Encoding{Base64, Base64URL, Base32, Base85, Hex, ReverseText, URL, Percent, HTMLDecimal, HTMLHex, Unicode, UnicodeCodePoint, QuotedPrintable} {
		t.Run(e.String(), func(t *testing.T) {
			enc, err := Encode(in, e)
			if err != nil {
				t.Fatalf("Encode() error = %v", err)
			}
			dec, err := Decode(enc, e)
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			if dec != in {
				t.Errorf("round trip = %q, want %q", dec, in)
			}
		})
	}
}

func TestHTMLNumeric_C1Controls(t *testing.T) {
	in := "a\u0080\u0085\u0099\u009fz"
	for _, e := range []Encoding{HTMLDecimal, HTMLHex} {
		t.Run(e.String(), func(t *testing.T) {
			enc, err := Encode(in, e)
			if err != nil {
				t.Fatalf("Encode() error = %v", err)
			}
			dec, err := Decode(enc, e)
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			if dec != in {
				t.Errorf("round trip = %q, want %q (encoded %q)", dec, in, enc)
			}
		})
	}
}

func TestHTMLNumeric_Decode(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"&#60;&#x3C;&#X3c;", "<<<"},
		{"&#128;", "\u0080"},
		{"plain &amp; text", "plain &amp; text"},
		{"&#;&#x;", "&#;&#x;"},
		{"&#zz;", "&#zz;"},
		{"&#55296;", "&#55296;"},
		{"&#1114112;", "&#1114112;"},
		{"tail &#65", "tail &#65"},
	}
	for _, tt := range tests {
		got, err := Decode(tt.input, HTMLDecimal)
		if err != nil {
			t.Fatalf("Decode(%q) error = %v", tt.input, err)
		}
		if got != tt.want {
			t.Errorf("Decode(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestEncoding_KnownOutputs(t *testing.T) {
	tests := []struct {
		encoding Encoding
		input    string
		want     string
	}{
		{Base64, "hello", "aGVsbG8="},
		{Base64URL, "hello?>", "aGVsbG8_Pg"},
		{Base32, "hi", "NBUQ===="},
		{Hex, "hi", "6869"},
		{Binary, "hi", "01101000 01101001"},
		{Decimal, "hi", "104 105"},
		{ROT13, "Hello", "Uryyb"},
		{ROT47, "Hello", "w6==@"},
		{ReverseText, "abc", "cba"},
		{URL, "a b&c", "a+b%26c"},
		{Percent, "a b", "%61%20%62"},
		{HTML, "<a>", "&lt;a&gt;"},
		{HTMLDecimal, "<", "&#60;"},
		{HTMLHex, "<", "&#x3c;"},
		{ASCIIHex, "A", `\x41`},
		{ASCIIOctal, "A", `\101`},
		{Unicode, "A", `\u0041`},
		{UnicodeCodePoint, "😀", `\u{1f600}`},
		{Punycode, "münchen.de", "xn--mnchen-3ya.de"},
	}

	for _, tt := range tests {
		t.Run(tt.encoding.String(), func(t *testing.T) {
			got, err := Encode(tt.input, tt.encoding)
			if err != nil {
				t.Fatalf("Encode() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Encode(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestPunycode_DomainRoundTrip(t *testing.T) {
	enc, err := Encode("bücher.example", Punycode)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	dec, err := Decode(enc, Punycode)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if dec != "bücher.example" {
		t.Errorf("Decode() = %q", dec)
	}
}

func TestEncodeAll_Order(t *testing.T) {
	list := []Encoding{Base64, Hex}

	got, err := EncodeAll("hello", list)
	if err != nil {
		t.Fatalf("EncodeAll() error = %v", err)
	}
	// hex(base64("hello"))
	if want := "614756736247383d"; got != want {
		t.Errorf("EncodeAll() = %q, want %q", got, want)
	}

	back, err := DecodeAll(got, list)
	if err != nil {
		t.Fatalf("DecodeAll() error = %v", err)
	}
	if back != "hello" {
		t.Errorf("DecodeAll() = %q, want hello", back)
	}

	// Decoding in the wrong order must not silently succeed.
	if _, err := DecodeAll(got, []Encoding{Hex, Base64}); err == nil {
		t.Error("DecodeAll() in encode order should fail")
	}
}

func TestDecode_Corrupt(t *testing.T) {
	tests := []struct {
		encoding Encoding
		input    string
	}{
		{Base64, "!!!"},
		{Base32, "1"},
		{Hex, "zz"},
		{Binary, "0101"},
		{Decimal, "300"},
		{URL, "%zz"},
		{ASCIIHex, `\x4`},
		{Unicode, `\u00`},
		{UnicodeCodePoint, `\u{41`},
	}

	for _, tt := range tests {
		t.Run(tt.encoding.String(), func(t *testing.T) {
			_, err := Decode(tt.input, tt.encoding)
			if !errors.Is(err, ErrCorruptPayload) {
				t.Errorf("Decode(%q) error = %v, want ErrCorruptPayload", tt.input, err)
			}
		})
	}
}

func TestParseEncoding(t *testing.T) {
	for _, e := range Encodings() {
		got, err := ParseEncoding(e.String())
		if err != nil || got != e {
			t.Errorf("ParseEncoding(%q) = %v, %v", e, got, err)
		}
	}

	if _, err := ParseEncoding("rot26"); !errors.Is(err, ErrUnknownEncoding) {
		t.Errorf("ParseEncoding(rot26) error = %v, want ErrUnknownEncoding", err)
	}
	if _, err := ParseEncodings([]string{"hex", "nope"}); !errors.Is(err, ErrUnknownEncoding) {
		t.Errorf("ParseEncodings() error = %v, want ErrUnknownEncoding", err)
	}
	if _, err := Encode("x", Encoding(200)); !errors.Is(err, ErrUnknownEncoding) {
		t.Errorf("Encode() with invalid encoding error = %v", err)
	}
}
