package eventschema

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
)

// ContentHash computes the SHA-256 dedup key over the fixed-order tuple
// (observed_at, source_address, target_service, action, target_path,
// session_id, payload). Field order is fixed; a present field is written as
// an 8-byte big-endian length followed by its bytes, and an empty or missing
// field serializes as a single sentinel byte, so no two different tuples
// produce the same byte stream.
func ContentHash(e Event) string {
	h := sha256.New()

	writeField(h, []byte(e.ObservedAt.UTC().Format("2006-01-02T15:04:05.000000000Z")))
	writeField(h, []byte(e.SourceAddress))
	writeField(h, []byte(e.TargetService))
	writeField(h, []byte(e.Action))
	writeField(h, []byte(e.TargetPath))
	writeField(h, []byte(e.SessionID))
	writeField(h, e.Payload)

	return hex.EncodeToString(h.Sum(nil))
}

func writeField(h interface{ Write([]byte) (int, error) }, v []byte) {
	if len(v) == 0 {
		h.Write([]byte{hashSentinel})
		return
	}
	var n [8]byte
	binary.BigEndian.PutUint64(n[:], uint64(len(v)))
	h.Write(n[:])
	h.Write(v)
}
