package version

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"

	"revisiond/internal/scene"
)

// ContentHash fingerprints a scene sequence. It is deterministic and
// order-sensitive: equal sequences (same ids, texts, order) always hash
// equal, and any change to a scene's id, text, or position changes the
// result. Timestamps, word counts, and annotations are excluded so that
// two captures of identical content always deduplicate.
func ContentHash(scenes []scene.Scene) string {
	h := sha256.New()
	var buf [8]byte
	for i, s := range scenes {
		binary.BigEndian.PutUint64(buf[:], uint64(i))
		h.Write(buf[:])
		// Length-prefix each field so (id, text) pairs cannot collide
		// across different split points.
		binary.BigEndian.PutUint64(buf[:], uint64(len(s.ID)))
		h.Write(buf[:])
		h.Write([]byte(s.ID))
		binary.BigEndian.PutUint64(buf[:], uint64(len(s.Text)))
		h.Write(buf[:])
		h.Write([]byte(s.Text))
	}
	return hex.EncodeToString(h.Sum(nil))
}
