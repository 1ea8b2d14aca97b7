package idforge

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/oklog/ulid/v2"
	"github.com/segmentio/ksuid"
)

// Source selects what a Generator produces before encodings, compression,
// prefix and tag are applied.
type Source uint8

const (
	// SourceRandom joins SegmentCount random segments from the alphabet.
	SourceRandom Source = iota
	// SourceUUID4 is a random RFC 9562 UUID.
	SourceUUID4
	// SourceUUID7 is a time-ordered UUID, monotonic within one Generator.
	SourceUUID7
	// SourceULID is a 26 character Crockford base32 ULID.
	SourceULID
	// SourceKSUID is a 27 character base62 KSUID.
	SourceKSUID
	// SourceNanoID draws SegmentLength characters from the alphabet with crypto/rand.
	SourceNanoID

	numSources
)

var sourceNames = [numSources]string{
	SourceRandom: "random",
	SourceUUID4:  "uuid4",
	SourceUUID7:  "uuid7",
	SourceULID:   "ulid",
	SourceKSUID:  "ksuid",
	SourceNanoID: "nanoid",
}

// String returns the source name.
func (s Source) String() string {
	if s < numSources {
		return sourceNames[s]
	}
	return fmt.Sprintf("source(%d)", uint8(s))
}

// Valid reports whether s is a supported source.
func (s Source) Valid() bool {
	return s < numSources
}

// ParseSource parses a source name. The empty string means random.
func ParseSource(name string) (Source, error) {
	if name == "" {
		return SourceRandom, nil
	}
	for i, n := range sourceNames {
		if strings.EqualFold(n, name) {
			return Source(i), nil
		}
	}
	return 0, invalid("source", "%q is not supported", name)
}

// MarshalText implements encoding.TextMarshaler.
func (s Source) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Source) UnmarshalText(text []byte) error {
	parsed, err := ParseSource(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// structured produces one value from a non-random source.
func (g *Generator) structured() (string, error) {
	switch g.spec.Source {
	case SourceUUID4:
		id, err := uuid.NewRandom()
		if err != nil {
			return "", err
		}
		return id.String(), nil
	case SourceUUID7:
		id, err := g.clock.next(g.now())
		if err != nil {
			return "", err
		}
		return id.String(), nil
	case SourceULID:
		id, err := ulid.New(ulid.Timestamp(g.now()), ulid.DefaultEntropy())
		if err != nil {
			return "", err
		}
		return id.String(), nil
	case SourceKSUID:
		id, err := ksuid.NewRandomWithTime(g.now())
		if err != nil {
			return "", err
		}
		return id.String(), nil
	case SourceNanoID:
		return gonanoid.Generate(g.spec.Alphabet, g.spec.SegmentLength)
	default:
		return "", invalid("source", "%s is not supported", g.spec.Source)
	}
}
