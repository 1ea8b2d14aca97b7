package idforge

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/segmentio/ksuid"
)

var fixedTime = time.Date(2024, 3, 14, 15, 9, 26, 0, time.UTC)

func fixedClock() time.Time { return fixedTime }

func TestSource_UUID4(t *testing.T) {
	id, err := newTestGenerator(t, GenerationSpec{Source: SourceUUID4}).Next()
	if err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		t.Fatalf("uuid.Parse(%q) error = %v", id, err)
	}
	if parsed.Version() != 4 {
		t.Errorf("version = %d, want 4", parsed.Version())
	}
}

func TestSource_UUID7(t *testing.T) {
	for _, secure := range []bool{false, true} {
		g := newTestGenerator(t, GenerationSpec{Source: SourceUUID7, Secure: secure}, WithClock(fixedClock))

		var prev string
		for i := 0; i < 20; i++ {
			id, err := g.Next()
			if err != nil {
				t.Fatalf("Next() error = %v", err)
			}
			ts, err := V7Time(id)
			if err != nil {
				t.Fatalf("V7Time(%q) error = %v", id, err)
			}
			// Counter overflow may borrow the following millisecond.
			if ts.Before(fixedTime) || ts.After(fixedTime.Add(time.Millisecond)) {
				t.Errorf("V7Time() = %v, want %v", ts, fixedTime)
			}
			if id <= prev {
				t.Errorf("uuid7 not increasing: %q after %q", id, prev)
			}
			prev = id
		}
	}
}

func TestSource_ULID(t *testing.T) {
	id, err := newTestGenerator(t, GenerationSpec{Source: SourceULID}, WithClock(fixedClock)).Next()
	if err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	parsed, err := ulid.ParseStrict(id)
	if err != nil {
		t.Fatalf("ulid.ParseStrict(%q) error = %v", id, err)
	}
	if got := ulid.Time(parsed.Time()); !got.Equal(fixedTime) {
		t.Errorf("ulid time = %v, want %v", got, fixedTime)
	}
}

func TestSource_KSUID(t *testing.T) {
	id, err := newTestGenerator(t, GenerationSpec{Source: SourceKSUID}, WithClock(fixedClock)).Next()
	if err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	parsed, err := ksuid.Parse(id)
	if err != nil {
		t.Fatalf("ksuid.Parse(%q) error = %v", id, err)
	}
	if !parsed.Time().Equal(fixedTime) {
		t.Errorf("ksuid time = %v, want %v", parsed.Time(), fixedTime)
	}
}

func TestSource_NanoID(t *testing.T) {
	id, err := newTestGenerator(t, GenerationSpec{Source: SourceNanoID, SegmentLength: 21, Alphabet: AlphabetHex}).Next()
	if err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	if len(id) != 21 || strings.Trim(id, AlphabetHex) != "" {
		t.Errorf("nanoid = %q, want 21 hex characters", id)
	}

	if _, err := NewGenerator(GenerationSpec{Source: SourceNanoID, SegmentLength: 21}); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("nanoid without alphabet error = %v", err)
	}
}

func TestSource_WithPipelineStages(t *testing.T) {
	g := newTestGenerator(t, GenerationSpec{
		Source:    SourceUUID4,
		Encodings: []Encoding{Base64URL},
		Prefix:    "evt-",
	}, WithChecksumTag(true))

	id, err := g.Next()
	if err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	if !g.VerifyTag(id) {
		t.Fatalf("VerifyTag(%q) = false", id)
	}
	body := strings.TrimPrefix(id[:strings.LastIndex(id, TagSeparator)], "evt-")
	raw, err := Decode(body, Base64URL)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if _, err := uuid.Parse(raw); err != nil {
		t.Errorf("decoded body %q is not a uuid: %v", raw, err)
	}
}

func TestParseSource(t *testing.T) {
	tests := []struct {
		name string
		want Source
	}{
		{"", SourceRandom},
		{"random", SourceRandom},
		{"UUID4", SourceUUID4},
		{"uuid7", SourceUUID7},
		{"ulid", SourceULID},
		{"ksuid", SourceKSUID},
		{"nanoid", SourceNanoID},
	}
	for _, tt := range tests {
		got, err := ParseSource(tt.name)
		if err != nil || got != tt.want {
			t.Errorf("ParseSource(%q) = %v, %v; want %v", tt.name, got, err, tt.want)
		}
	}
	if _, err := ParseSource("snowflake"); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("ParseSource(snowflake) error = %v", err)
	}
}
