package claim

import (
	"context"
	"errors"
	"log/slog"
	"regexp"
	"time"
)

// Store claims identifiers. Accept returns true when candidate was free and
// is now claimed, false when it was already taken. Errors mean the store
// could not decide.
type Store interface {
	Accept(ctx context.Context, candidate string) (bool, error)
	Close() error
}

var (
	// ErrEmptyCandidate is returned when an empty string is offered for claiming.
	ErrEmptyCandidate = errors.New("claim: empty candidate")

	// ErrInvalidTable is returned for table names that are not plain identifiers.
	ErrInvalidTable = errors.New("claim: invalid table name")
)

// DefaultTable is the SQL table used when WithTable is not given.
const DefaultTable = "idforge_claims"

type options struct {
	table  string
	logger *slog.Logger
	now    func() time.Time
}

// Option configures a store.
type Option func(*options)

// WithTable sets the SQL table name.
func WithTable(name string) Option {
	return func(o *options) {
		o.table = name
	}
}

// WithLogger sets the store's logger. Stores are silent by default.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithClock replaces time.Now for claim timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

func buildOptions(opts []Option) options {
	o := options{
		table:  DefaultTable,
		logger: slog.New(slog.DiscardHandler),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
