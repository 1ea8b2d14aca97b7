package main

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"

	"github.com/Lzww0608/idforge"
)

// enumValue is a pflag.Value that rejects unknown names at parse time.
type enumValue[T fmt.Stringer] struct {
	value *T
	parse func(string) (T, error)
	typ   string
}

var _ pflag.Value = (*enumValue[idforge.Compression])(nil)

func newEnumValue[T fmt.Stringer](def T, parse func(string) (T, error), typ string) *enumValue[T] {
	v := def
	return &enumValue[T]{value: &v, parse: parse, typ: typ}
}

func (e *enumValue[T]) Set(s string) error {
	v, err := e.parse(s)
	if err != nil {
		return err
	}
	*e.value = v
	return nil
}

func (e *enumValue[T]) String() string {
	if e == nil || e.value == nil {
		return ""
	}
	return (*e.value).String()
}

func (e *enumValue[T]) Type() string { return e.typ }

func (e *enumValue[T]) Get() T { return *e.value }

// encodingList accumulates encodings from repeated or comma separated
// flags, e.g. --encode hex,base64 --encode rot13.
type encodingList struct {
	list []idforge.Encoding
}

func (l *encodingList) Set(s string) error {
	for _, name := range strings.Split(s, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		e, err := idforge.ParseEncoding(name)
		if err != nil {
			return err
		}
		l.list = append(l.list, e)
	}
	return nil
}

func (l *encodingList) String() string {
	names := make([]string, len(l.list))
	for i, e := range l.list {
		names[i] = e.String()
	}
	return strings.Join(names, ",")
}

func (l *encodingList) Type() string { return "encodings" }

// addGeneratorFlags registers the flags that override the generator section.
func addGeneratorFlags(fs *pflag.FlagSet) {
	fs.Int("length", 0, "characters per segment")
	fs.Int("segments", 0, "number of segments")
	fs.String("separator", "", "segment separator")
	fs.String("alphabet", "", "characters to draw from")
	fs.Var(&encodingList{}, "encode", "encodings applied to each segment before joining, in order (repeatable)")
	fs.Var(newEnumValue(idforge.CompressionNone, idforge.ParseCompression, "compression"), "compress", "compression: none, A, B, zstd or lz4")
	fs.String("prefix", "", "prefix prepended after compression")
	fs.Var(newEnumValue(idforge.SourceRandom, idforge.ParseSource, "source"), "source", "random, uuid4, uuid7, ulid, ksuid or nanoid")
	fs.Bool("secure", false, "draw from crypto/rand")
	fs.Bool("tag", false, "append a checksum tag")
	addChecksumFlags(fs)
}

func addChecksumFlags(fs *pflag.FlagSet) {
	fs.Var(newEnumValue(idforge.DefaultTagAlgorithm, idforge.ParseAlgorithm, "algorithm"), "algorithm", "checksum algorithm: djb2, crc32, adler32, fnv1a or murmur3")
	fs.Int("digits", idforge.DefaultTagLength, "checksum length in base36 digits")
}

func addClaimFlags(fs *pflag.FlagSet) {
	fs.String("claim", "", "claim store: memory, file, sqlite, mysql or zk")
	fs.String("claim-path", "", "file or sqlite path for the claim store")
	fs.String("claim-dsn", "", "mysql DSN for the claim store")
	fs.String("claim-table", "", "SQL table for claims")
	fs.StringSlice("zk-servers", nil, "ZooKeeper servers for the claim store")
	fs.String("zk-root", "", "ZooKeeper parent node for claims")
	fs.Int("max-attempts", 0, "collision attempts before giving up")
	fs.String("backoff", "", "collision backoff: exponential or linear")
}
