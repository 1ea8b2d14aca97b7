package idforge

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
)

// v7Clock issues UUIDv7 values that stay strictly increasing within one
// millisecond by carrying a 12-bit counter in rand_a.
type v7Clock struct {
	mu            sync.Mutex
	lastTimestamp uint64
	clockSeq      uint16 // 12-bit counter for sub-millisecond ordering
	randReader    io.Reader
}

func newV7Clock(r io.Reader) *v7Clock {
	if r == nil {
		r = rand.Reader
	}
	return &v7Clock{randReader: r}
}

// next returns a UUIDv7 for t. Timestamps that do not move forward reuse the
// last millisecond and bump the counter; counter overflow borrows the next
// millisecond.
func (c *v7Clock) next(t time.Time) (uuid.UUID, error) {
	var id uuid.UUID
	timestamp := uint64(t.UnixMilli())

	c.mu.Lock()
	defer c.mu.Unlock()

	if timestamp <= c.lastTimestamp {
		c.clockSeq++
		if c.clockSeq > 0xFFF {
			c.clockSeq = 0
			c.lastTimestamp++
		}
		timestamp = c.lastTimestamp
	} else {
		var seed [2]byte
		if _, err := io.ReadFull(c.randReader, seed[:]); err != nil {
			return id, err
		}
		c.clockSeq = binary.BigEndian.Uint16(seed[:]) & 0xFFF
		c.lastTimestamp = timestamp
	}

	// 48-bit big-endian millisecond timestamp in bytes 0-5.
	binary.BigEndian.PutUint64(id[0:8], timestamp<<16)
	id[6] = byte(0x70 | (c.clockSeq >> 8))
	id[7] = byte(c.clockSeq)

	if _, err := io.ReadFull(c.randReader, id[8:]); err != nil {
		return id, err
	}
	// RFC 9562 variant (10xx xxxx).
	id[8] = (id[8] & 0x3F) | 0x80
	return id, nil
}

// V7Time extracts the creation time from a UUIDv7 string.
func V7Time(s string) (time.Time, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", ErrCorruptPayload, err)
	}
	if id.Version() != 7 {
		return time.Time{}, invalid("uuid", "version %d is not time ordered", id.Version())
	}
	ms := int64(id[0])<<40 |
		int64(id[1])<<32 |
		int64(id[2])<<24 |
		int64(id[3])<<16 |
		int64(id[4])<<8 |
		int64(id[5])
	return time.UnixMilli(ms), nil
}
