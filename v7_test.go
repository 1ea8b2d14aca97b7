package idforge

import (
	"bytes"
	"crypto/rand"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestV7Clock_Next(t *testing.T) {
	clock := newV7Clock(nil)

	id, err := clock.next(time.Now())
	if err != nil {
		t.Fatalf("next() error = %v", err)
	}

	if id == uuid.Nil {
		t.Error("next() returned nil UUID")
	}

	if id.Version() != 7 {
		t.Errorf("next() version = %v, want 7", id.Version())
	}

	if id.Variant() != uuid.RFC4122 {
		t.Errorf("next() variant = %v, want %v", id.Variant(), uuid.RFC4122)
	}
}

func TestV7Clock_Monotonicity(t *testing.T) {
	clock := newV7Clock(nil)
	now := time.Now()

	// Generate multiple UUIDs with the same timestamp
	const count = 100
	ids := make([]string, count)

	for i := 0; i < count; i++ {
		id, err := clock.next(now)
		if err != nil {
			t.Fatalf("next() error = %v", err)
		}
		ids[i] = id.String()
	}

	// The canonical text form sorts the same way as the bytes
	for i := 1; i < count; i++ {
		if ids[i] <= ids[i-1] {
			t.Errorf("UUIDs not monotonically increasing at index %d: %v <= %v", i, ids[i], ids[i-1])
		}
	}
}

func TestV7Clock_BackwardsClock(t *testing.T) {
	clock := newV7Clock(nil)
	now := time.Now()

	first, err := clock.next(now)
	if err != nil {
		t.Fatalf("next() error = %v", err)
	}
	second, err := clock.next(now.Add(-time.Second))
	if err != nil {
		t.Fatalf("next() error = %v", err)
	}
	if second.String() <= first.String() {
		t.Errorf("UUID went backwards with the clock: %v <= %v", second, first)
	}
}

func TestV7Clock_ClockSeqOverflow(t *testing.T) {
	clock := newV7Clock(nil)
	now := time.Now()

	// First call to initialize lastTimestamp
	if _, err := clock.next(now); err != nil {
		t.Fatalf("next() error = %v", err)
	}

	// Force clock sequence to near overflow
	clock.clockSeq = 0xFFE

	// Generate multiple UUIDs with same timestamp to trigger overflow
	for i := 0; i < 5; i++ {
		id, err := clock.next(now)
		if err != nil {
			t.Fatalf("next() error = %v", err)
		}
		if id == uuid.Nil {
			t.Error("next() returned nil UUID")
		}
	}

	// After overflow, timestamp should have been incremented
	if clock.lastTimestamp <= uint64(now.UnixMilli()) {
		t.Error("Timestamp was not incremented after clock sequence overflow")
	}
}

// brokenReader is a reader that always returns an error
type brokenReader struct{}

func (br *brokenReader) Read(p []byte) (n int, err error) {
	return 0, bytes.ErrTooLarge
}

func TestV7Clock_BrokenReader(t *testing.T) {
	clock := newV7Clock(&brokenReader{})
	if _, err := clock.next(time.Now()); err == nil {
		t.Error("next() with a failing reader should return an error")
	}
}

func TestV7Time(t *testing.T) {
	clock := newV7Clock(rand.Reader)
	now := time.Now()

	id, err := clock.next(now)
	if err != nil {
		t.Fatalf("next() error = %v", err)
	}

	got, err := V7Time(id.String())
	if err != nil {
		t.Fatalf("V7Time() error = %v", err)
	}

	// Compare timestamps in milliseconds (since UUIDv7 has millisecond precision)
	if got.UnixMilli() != now.UnixMilli() {
		t.Errorf("V7Time() = %v, want %v", got.UnixMilli(), now.UnixMilli())
	}
}

func TestV7Time_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"not a uuid", "hello"},
		{"version 4", "f47ac10b-58cc-4372-a567-0e02b2c3d479"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := V7Time(tt.input); err == nil {
				t.Errorf("V7Time(%q) expected error", tt.input)
			}
		})
	}
}
