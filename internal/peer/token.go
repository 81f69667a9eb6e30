package peer

import (
	"crypto/sha256"
	"encoding/binary"

	"github.com/mr-tron/base58"

	"github.com/runziggurat/zcash-sub001/internal/wire"
)

// tokenVersion tags a connection token so it's visually distinct from a
// chain address if it ever ends up in a shared log line.
const tokenVersion = 0x00

// ConnectionToken derives a short, eyeball-friendly base58check string
// from a handshake nonce, for correlating log lines and test fixtures
// without printing the raw 8-byte nonce.
func ConnectionToken(nonce wire.Nonce) string {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(nonce))

	payload := make([]byte, 0, 1+len(buf))
	payload = append(payload, tokenVersion)
	payload = append(payload, buf[:]...)

	sum := doubleSHA256(payload)
	payload = append(payload, sum[:4]...)

	return base58.Encode(payload)
}

func doubleSHA256(b []byte) [32]byte {
	first := sha256.Sum256(b)
	return sha256.Sum256(first[:])
}
