package wire

import (
	"bytes"
	"errors"
	"io"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVarIntRoundTrip(t *testing.T) {
	cases := []VarInt{0, 1, 0xfc, 0xfd, 0xffff, 0x10000, 0xffffffff, 0x100000000, ^VarInt(0)}
	for _, v := range cases {
		buf := v.Encode(nil)
		got, n, err := DecodeVarInt(buf)
		require.NoError(t, err)
		assert.Equal(t, v, got)
		assert.Equal(t, len(buf), n)
	}
}

func TestVarIntPrefixSelection(t *testing.T) {
	assert.Len(t, VarInt(0xfc).Encode(nil), 1)
	assert.Len(t, VarInt(0xfd).Encode(nil), 3)
	assert.Len(t, VarInt(0xffff).Encode(nil), 3)
	assert.Len(t, VarInt(0x10000).Encode(nil), 5)
	assert.Len(t, VarInt(0xffffffff).Encode(nil), 5)
	assert.Len(t, VarInt(0x100000000).Encode(nil), 9)
}

func TestVarStrRoundTrip(t *testing.T) {
	s := VarStr("/synth:0.1.0/")
	buf := s.Encode(nil)
	got, n, err := DecodeVarStr(buf)
	require.NoError(t, err)
	assert.Equal(t, s, got)
	assert.Equal(t, len(buf), n)
}

func TestDecodeVarStrTruncated(t *testing.T) {
	buf := VarInt(10).Encode(nil) // declares 10 bytes, supplies none
	_, _, err := DecodeVarStr(buf)
	assert.ErrorIs(t, err, ErrDecode)
}

func TestEmptyPayloadChecksum(t *testing.T) {
	assert.Equal(t, uint32(0xe2e0f65d), Checksum(nil))
}

func TestHeaderRoundTrip(t *testing.T) {
	h := Header{Magic: MagicMainnet, Command: CommandPing, BodyLength: 8, Checksum: 0xdeadbeef}
	buf := EncodeHeader(h)
	assert.Len(t, buf, HeaderLen)
	got, err := DecodeHeader(buf)
	require.NoError(t, err)
	assert.Equal(t, h, got)
}

func TestDecodeHeaderShort(t *testing.T) {
	_, err := DecodeHeader(make([]byte, HeaderLen-1))
	assert.ErrorIs(t, err, ErrDecode)
}

func TestVersionRoundTrip(t *testing.T) {
	v := Version{
		ProtocolVersion: 170_013,
		Services:        1,
		Timestamp:       1_700_000_000,
		AddrRecv:        NetworkAddr{Services: 1, IP: net.ParseIP("127.0.0.1"), Port: 8233},
		AddrFrom:        NetworkAddr{Services: 1, IP: net.ParseIP("127.0.0.2"), Port: 8233},
		Nonce:           NewNonce(),
		UserAgent:       VarStr("/synth:0.1.0/"),
		StartHeight:     123456,
		Relay:           true,
	}
	buf := v.Encode(nil)
	got, n, err := DecodeVersion(buf)
	require.NoError(t, err)
	assert.Equal(t, len(buf), n)
	assert.Equal(t, v.ProtocolVersion, got.ProtocolVersion)
	assert.Equal(t, v.Nonce, got.Nonce)
	assert.Equal(t, v.UserAgent, got.UserAgent)
	assert.True(t, v.AddrRecv.IP.Equal(got.AddrRecv.IP))
	assert.Equal(t, v.Relay, got.Relay)
}

func TestInvRoundTrip(t *testing.T) {
	inv := Inv{Items: []InvHash{
		{Kind: ObjectTx, Hash: Hash{1}},
		{Kind: ObjectBlock, Hash: Hash{2}},
	}}
	buf := inv.Encode(nil)
	got, n, err := DecodeInv(buf)
	require.NoError(t, err)
	assert.Equal(t, len(buf), n)
	assert.Equal(t, inv, got)
}

func TestRejectTrailingDataToEOF(t *testing.T) {
	r := Reject{
		Message: VarStr("tx"),
		CCode:   CCodeDust,
		Reason:  VarStr("dust"),
		Data:    []byte{0xaa, 0xbb, 0xcc},
	}
	buf := r.Encode(nil)
	got, n, err := DecodeReject(buf)
	require.NoError(t, err)
	assert.Equal(t, len(buf), n)
	assert.Equal(t, r, got)
}

func TestDecodeRejectUnknownCCode(t *testing.T) {
	buf := VarStr("tx").Encode(nil)
	buf = append(buf, 0x99) // not a known ccode
	buf = VarStr("x").Encode(buf)
	_, _, err := DecodeReject(buf)
	assert.ErrorIs(t, err, ErrUnknown)
}

func TestHeadersRoundTrip(t *testing.T) {
	hs := Headers{Items: []BlockHeader{
		{Version: 4, PrevBlock: Hash{1}, MerkleRoot: Hash{2}, Time: 1, Bits: 1, HeaderNonce: 1},
	}}
	buf := hs.Encode(nil)
	got, n, err := DecodeHeaders(buf)
	require.NoError(t, err)
	assert.Equal(t, len(buf), n)
	assert.Equal(t, hs, got)
}

func TestFramerRoundTrip(t *testing.T) {
	var conn bytes.Buffer
	f := NewFramer(&conn, &conn, MagicMainnet)

	msg := Message{Command: CommandPing, Ping: Nonce(42)}
	require.NoError(t, f.WriteMessage(msg))

	got, err := f.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, msg.Command, got.Command)
	assert.Equal(t, msg.Ping, got.Ping)
}

func TestFramerRejectsMagicMismatch(t *testing.T) {
	var conn bytes.Buffer
	writer := NewFramer(&conn, &conn, MagicTestnet)
	require.NoError(t, writer.WriteMessage(Message{Command: CommandVerack}))

	reader := NewFramer(&conn, io.Discard, MagicMainnet)
	_, err := reader.ReadMessage()
	assert.ErrorIs(t, err, ErrMagicMismatch)
}

func TestFramerRejectsOversizeWithoutReadingBody(t *testing.T) {
	h := Header{Magic: MagicMainnet, Command: CommandBlock, BodyLength: MaxMessageLen + 1}
	headerBytes := EncodeHeader(h)
	// No payload bytes follow; if the framer tried to read the declared
	// body it would block/fail on a short read, not return ErrOversizeFrame.
	f := NewFramer(bytes.NewReader(headerBytes), io.Discard, MagicMainnet)
	_, err := f.ReadMessage()
	assert.ErrorIs(t, err, ErrOversizeFrame)
}

func TestFramerRejectsChecksumMismatch(t *testing.T) {
	payload := Nonce(7).Encode(nil)
	h := Header{
		Magic:      MagicMainnet,
		Command:    CommandPing,
		BodyLength: uint32(len(payload)),
		Checksum:   Checksum(payload) ^ 0xffffffff,
	}
	frame := append(EncodeHeader(h), payload...)
	f := NewFramer(bytes.NewReader(frame), io.Discard, MagicMainnet)
	_, err := f.ReadMessage()
	assert.ErrorIs(t, err, ErrChecksumMismatch)
}

func TestDecodePayloadUnknownCommand(t *testing.T) {
	_, err := DecodePayload(newCommand("bogus"), nil)
	assert.ErrorIs(t, err, ErrUnknownCommand)
}

func TestDecodeRejectsCountExceedingRemainingBytes(t *testing.T) {
	// count = 0xffffffffffffffff (VarInt u64 form), no payload behind it.
	huge := []byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff}

	_, _, err := DecodeInv(huge)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDecode)

	_, _, err = DecodeLocatorHashes(append(make([]byte, 4), huge...))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDecode)

	_, _, err = DecodeHeaders(huge)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDecode)

	_, _, err = DecodeAddr(huge)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDecode)
}

func TestDecodeNeverPanicsOnTruncatedBuffers(t *testing.T) {
	// A grab-bag of short/garbage buffers fed to every payload decoder:
	// none of these should panic, only return a decode error.
	buffers := [][]byte{
		nil, {0x00}, {0xff}, bytes.Repeat([]byte{0x01}, 3),
		// A VarInt(u64) count of 0xffffffffffffffff with no body behind
		// it: decoders must reject this as truncated rather than
		// preallocating a slice of that capacity.
		{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff},
	}
	decoders := []func([]byte) error{
		func(b []byte) error { _, _, err := DecodeVersion(b); return err },
		func(b []byte) error { _, _, err := DecodeInv(b); return err },
		func(b []byte) error { _, _, err := DecodeReject(b); return err },
		func(b []byte) error { _, _, err := DecodeLocatorHashes(b); return err },
		func(b []byte) error { _, _, err := DecodeHeaders(b); return err },
		func(b []byte) error { _, _, err := DecodeAddr(b); return err },
	}
	for _, buf := range buffers {
		for _, decode := range decoders {
			func() {
				defer func() {
					if r := recover(); r != nil {
						t.Fatalf("decoder panicked on %v: %v", buf, r)
					}
				}()
				err := decode(buf)
				if err != nil {
					assert.True(t, errors.Is(err, ErrDecode) || errors.Is(err, ErrUnknown))
				}
			}()
		}
	}
}
