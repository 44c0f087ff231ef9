package lockmgr

import (
	"crypto/rand"
	"encoding/binary"
	"time"
)

const (
	bitLength = 256

	deadlineSize = 8
)

// generateOwnerID creates a new unique owner ID
// The owner ID is a random byte slice of bitLength bits.
func generateOwnerID() ([]byte, error) {
	randomBytes := make([]byte, bitLength/8)
	_, err := rand.Read(randomBytes)
	return randomBytes, err
}

// encodeLock builds the stored value of a lock: the deadline in unix nanos
// (0 without timeout) followed by the owner ID
func encodeLock(deadline time.Time, ownerID []byte) []byte {
	buf := make([]byte, deadlineSize+len(ownerID))
	if !deadline.IsZero() {
		binary.BigEndian.PutUint64(buf, uint64(deadline.UnixNano()))
	}
	copy(buf[deadlineSize:], ownerID)
	return buf
}

func decodeLock(value []byte) (deadline time.Time, ownerID []byte, ok bool) {
	if len(value) < deadlineSize {
		return time.Time{}, nil, false
	}
	if ns := binary.BigEndian.Uint64(value); ns != 0 {
		deadline = time.Unix(0, int64(ns))
	}
	return deadline, value[deadlineSize:], true
}
