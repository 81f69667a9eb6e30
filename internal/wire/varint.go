package wire

import (
	"encoding/binary"
	"fmt"
)

// VarInt is the Bitcoin-family compact integer encoding: 1, 3, 5, or 9
// bytes depending on magnitude, selected by a prefix byte.
type VarInt uint64

// Encode appends the compact encoding of v to buf and returns the result.
func (v VarInt) Encode(buf []byte) []byte {
	switch {
	case v < 0xfd:
		return append(buf, byte(v))
	case v <= 0xffff:
		buf = append(buf, 0xfd)
		return appendUint16(buf, uint16(v))
	case v <= 0xffffffff:
		buf = append(buf, 0xfe)
		return appendUint32(buf, uint32(v))
	default:
		buf = append(buf, 0xff)
		return appendUint64(buf, uint64(v))
	}
}

// DecodeVarInt reads a VarInt from the front of buf, returning the value
// and the number of bytes consumed.
func DecodeVarInt(buf []byte) (VarInt, int, error) {
	if len(buf) == 0 {
		return 0, 0, fmt.Errorf("%w: empty varint", ErrDecode)
	}

	switch prefix := buf[0]; {
	case prefix < 0xfd:
		return VarInt(prefix), 1, nil
	case prefix == 0xfd:
		if len(buf) < 3 {
			return 0, 0, fmt.Errorf("%w: truncated varint(u16)", ErrDecode)
		}
		return VarInt(binary.LittleEndian.Uint16(buf[1:3])), 3, nil
	case prefix == 0xfe:
		if len(buf) < 5 {
			return 0, 0, fmt.Errorf("%w: truncated varint(u32)", ErrDecode)
		}
		return VarInt(binary.LittleEndian.Uint32(buf[1:5])), 5, nil
	default: // 0xff
		if len(buf) < 9 {
			return 0, 0, fmt.Errorf("%w: truncated varint(u64)", ErrDecode)
		}
		return VarInt(binary.LittleEndian.Uint64(buf[1:9])), 9, nil
	}
}

func appendUint16(buf []byte, v uint16) []byte {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	return append(buf, b[:]...)
}

func appendUint32(buf []byte, v uint32) []byte {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	return append(buf, b[:]...)
}

func appendUint64(buf []byte, v uint64) []byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	return append(buf, b[:]...)
}

// VarStr is a VarInt-length-prefixed byte string. Decode treats the bytes
// as opaque (not validated UTF-8), per §3.
type VarStr []byte

func (s VarStr) Encode(buf []byte) []byte {
	buf = VarInt(len(s)).Encode(buf)
	return append(buf, s...)
}

func DecodeVarStr(buf []byte) (VarStr, int, error) {
	length, n, err := DecodeVarInt(buf)
	if err != nil {
		return nil, 0, err
	}
	end := n + int(length)
	if end < n || end > len(buf) {
		return nil, 0, fmt.Errorf("%w: truncated varstr", ErrDecode)
	}
	out := make([]byte, length)
	copy(out, buf[n:end])
	return out, end, nil
}
