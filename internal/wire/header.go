package wire

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
)

// Header is the 24-byte frame header described in spec.md §3.
type Header struct {
	Magic      [4]byte
	Command    Command
	BodyLength uint32
	Checksum   uint32
}

// Checksum computes the header checksum field for a payload: the first 4
// bytes of double-SHA-256, little-endian as an integer. The empty payload
// checksums to 0xe2e0f65d (digest bytes 5d f6 e0 e2).
func Checksum(payload []byte) uint32 {
	first := sha256.Sum256(payload)
	second := sha256.Sum256(first[:])
	return binary.LittleEndian.Uint32(second[:4])
}

// EncodeHeader writes magic || command || body_length_le || checksum_le.
func EncodeHeader(h Header) []byte {
	buf := make([]byte, 0, HeaderLen)
	buf = append(buf, h.Magic[:]...)
	buf = append(buf, h.Command[:]...)
	buf = appendUint32(buf, h.BodyLength)
	buf = appendUint32(buf, h.Checksum)
	return buf
}

// DecodeHeader reads exactly HeaderLen bytes. It does not validate magic,
// size, or checksum against a payload — that's the framer's job, since
// the payload hasn't been read yet at this point.
func DecodeHeader(buf []byte) (Header, error) {
	if len(buf) < HeaderLen {
		return Header{}, fmt.Errorf("%w: short header (%d bytes)", ErrDecode, len(buf))
	}

	var h Header
	copy(h.Magic[:], buf[0:4])
	copy(h.Command[:], buf[4:16])
	h.BodyLength = binary.LittleEndian.Uint32(buf[16:20])
	h.Checksum = binary.LittleEndian.Uint32(buf[20:24])
	return h, nil
}
