package pipeline

import (
	"crypto/rand"
	"encoding/binary"
	"sync"
	"time"
)

// NewID returns a fresh ULID for job identifiers. IDs sort by creation
// time, which keeps job listings and result filenames in submission order.
func NewID() string {
	return generateULID()
}

var (
	ulidMu  sync.Mutex
	lastTS  uint64
	lastSeq uint16
)

const crockford = "0123456789ABCDEFGHJKMNPQRSTVWXYZ"

// generateULID builds a 128-bit ULID: 48 bits of millisecond timestamp
// followed by 80 random bits. A per-millisecond sequence in the first two
// random bytes keeps IDs generated in the same millisecond unique and
// ordered.
func generateULID() string {
	ulidMu.Lock()
	defer ulidMu.Unlock()

	ts := uint64(time.Now().UnixMilli())
	if ts == lastTS {
		lastSeq++
	} else {
		lastTS = ts
		lastSeq = 0
	}

	var b [16]byte
	b[0] = byte(ts >> 40)
	b[1] = byte(ts >> 32)
	b[2] = byte(ts >> 24)
	b[3] = byte(ts >> 16)
	b[4] = byte(ts >> 8)
	b[5] = byte(ts)
	rand.Read(b[6:])
	binary.BigEndian.PutUint16(b[6:8], lastSeq)

	return encodeBase32(b)
}

// encodeBase32 renders 128 bits as 26 Crockford Base32 characters. The
// bitstream is left-padded with two zero bits so 26 five-bit groups cover
// it exactly, which is what keeps the timestamp prefix lexicographically
// sortable.
func encodeBase32(b [16]byte) string {
	var out [26]byte
	for i := range out {
		start := i*5 - 2
		var v byte
		for j := start; j < start+5; j++ {
			v <<= 1
			if j >= 0 && b[j/8]&(1<<(7-j%8)) != 0 {
				v |= 1
			}
		}
		out[i] = crockford[v]
	}
	return string(out[:])
}
