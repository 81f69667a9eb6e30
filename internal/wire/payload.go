package wire

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"net"
)

// Hash is a fixed 32-byte digest, used for block/tx identifiers and
// locator entries.
type Hash [32]byte

// hashWireLen is Hash's encoded size, used to bound decoded counts
// against the bytes actually available before preallocating a slice.
const hashWireLen = 32

func (h Hash) Encode(buf []byte) []byte {
	return append(buf, h[:]...)
}

func DecodeHash(buf []byte) (Hash, int, error) {
	var h Hash
	if len(buf) < 32 {
		return h, 0, fmt.Errorf("%w: truncated hash", ErrDecode)
	}
	copy(h[:], buf[:32])
	return h, 32, nil
}

// Nonce is a random u64 used in Version and Ping/Pong.
type Nonce uint64

// NewNonce draws a fresh random nonce, as the default constructor in §3
// requires.
func NewNonce() Nonce {
	var b [8]byte
	_, _ = rand.Read(b[:])
	return Nonce(binary.LittleEndian.Uint64(b[:]))
}

func (n Nonce) Encode(buf []byte) []byte {
	return appendUint64(buf, uint64(n))
}

func DecodeNonce(buf []byte) (Nonce, int, error) {
	if len(buf) < 8 {
		return 0, 0, fmt.Errorf("%w: truncated nonce", ErrDecode)
	}
	return Nonce(binary.LittleEndian.Uint64(buf[:8])), 8, nil
}

// NetworkAddr is a peer address as carried in Version (no timestamp) and
// Addr (with timestamp) messages.
type NetworkAddr struct {
	LastSeen *uint32 // unix seconds; nil in the no-timestamp wire form
	Services uint64
	IP       net.IP // v6-mapped, 16 bytes
	Port     uint16 // big-endian on the wire
}

// EncodeWithTimestamp writes the 30-byte Addr-message form.
func (a NetworkAddr) EncodeWithTimestamp(buf []byte) []byte {
	var ts uint32
	if a.LastSeen != nil {
		ts = *a.LastSeen
	}
	buf = appendUint32(buf, ts)
	return a.encodeBody(buf)
}

// EncodeWithoutTimestamp writes the 26-byte Version-message form.
func (a NetworkAddr) EncodeWithoutTimestamp(buf []byte) []byte {
	return a.encodeBody(buf)
}

func (a NetworkAddr) encodeBody(buf []byte) []byte {
	buf = appendUint64(buf, a.Services)
	ip := a.IP.To16()
	if ip == nil {
		ip = net.IPv6zero
	}
	buf = append(buf, ip...)
	var portBuf [2]byte
	binary.BigEndian.PutUint16(portBuf[:], a.Port)
	return append(buf, portBuf[:]...)
}

func DecodeNetworkAddrWithTimestamp(buf []byte) (NetworkAddr, int, error) {
	if len(buf) < 4 {
		return NetworkAddr{}, 0, fmt.Errorf("%w: truncated addr timestamp", ErrDecode)
	}
	ts := binary.LittleEndian.Uint32(buf[:4])
	addr, n, err := decodeAddrBody(buf[4:])
	if err != nil {
		return NetworkAddr{}, 0, err
	}
	addr.LastSeen = &ts
	return addr, 4 + n, nil
}

func DecodeNetworkAddrWithoutTimestamp(buf []byte) (NetworkAddr, int, error) {
	return decodeAddrBody(buf)
}

func decodeAddrBody(buf []byte) (NetworkAddr, int, error) {
	if len(buf) < 26 {
		return NetworkAddr{}, 0, fmt.Errorf("%w: truncated addr", ErrDecode)
	}
	services := binary.LittleEndian.Uint64(buf[:8])
	ip := make(net.IP, 16)
	copy(ip, buf[8:24])
	port := binary.BigEndian.Uint16(buf[24:26])
	return NetworkAddr{Services: services, IP: ip, Port: port}, 26, nil
}

// ObjectKind tags an inventory entry.
type ObjectKind uint32

const (
	ObjectError ObjectKind = iota
	ObjectTx
	ObjectBlock
	ObjectFilteredBlock
)

func DecodeObjectKind(buf []byte) (ObjectKind, int, error) {
	if len(buf) < 4 {
		return 0, 0, fmt.Errorf("%w: truncated inventory kind", ErrDecode)
	}
	v := binary.LittleEndian.Uint32(buf[:4])
	switch ObjectKind(v) {
	case ObjectError, ObjectTx, ObjectBlock, ObjectFilteredBlock:
		return ObjectKind(v), 4, nil
	default:
		return 0, 0, fmt.Errorf("%w: category=inventory-kind value=%d", ErrUnknown, v)
	}
}

func (k ObjectKind) Encode(buf []byte) []byte {
	return appendUint32(buf, uint32(k))
}

// InvHash is one (kind, hash) entry in an inventory list.
type InvHash struct {
	Kind ObjectKind
	Hash Hash
}

func (e InvHash) Encode(buf []byte) []byte {
	buf = e.Kind.Encode(buf)
	return e.Hash.Encode(buf)
}

func decodeInvHash(buf []byte) (InvHash, int, error) {
	kind, n1, err := DecodeObjectKind(buf)
	if err != nil {
		return InvHash{}, 0, err
	}
	hash, n2, err := DecodeHash(buf[n1:])
	if err != nil {
		return InvHash{}, 0, err
	}
	return InvHash{Kind: kind, Hash: hash}, n1 + n2, nil
}

// Inv is an inventory announcement: a VarInt count followed by that many
// (kind, hash) pairs.
type Inv struct {
	Items []InvHash
}

func (i Inv) Encode(buf []byte) []byte {
	buf = VarInt(len(i.Items)).Encode(buf)
	for _, item := range i.Items {
		buf = item.Encode(buf)
	}
	return buf
}

// invHashWireLen is the minimum encoded size of one InvHash (kind + hash),
// used to bound a decoded count against the bytes actually available.
const invHashWireLen = 4 + 32

func DecodeInv(buf []byte) (Inv, int, error) {
	count, n, err := DecodeVarInt(buf)
	if err != nil {
		return Inv{}, 0, err
	}
	off := n
	if count > VarInt((len(buf)-off)/invHashWireLen) {
		return Inv{}, 0, fmt.Errorf("%w: inventory count %d exceeds remaining bytes", ErrDecode, count)
	}
	items := make([]InvHash, 0, count)
	for i := VarInt(0); i < count; i++ {
		item, consumed, err := decodeInvHash(buf[off:])
		if err != nil {
			return Inv{}, 0, err
		}
		items = append(items, item)
		off += consumed
	}
	return Inv{Items: items}, off, nil
}

// LocatorHashes carries the block-locator list used by GetHeaders and
// GetBlocks.
type LocatorHashes struct {
	Version  uint32
	Hashes   []Hash
	HashStop Hash
}

func (l LocatorHashes) Encode(buf []byte) []byte {
	buf = appendUint32(buf, l.Version)
	buf = VarInt(len(l.Hashes)).Encode(buf)
	for _, h := range l.Hashes {
		buf = h.Encode(buf)
	}
	return l.HashStop.Encode(buf)
}

func DecodeLocatorHashes(buf []byte) (LocatorHashes, int, error) {
	if len(buf) < 4 {
		return LocatorHashes{}, 0, fmt.Errorf("%w: truncated locator version", ErrDecode)
	}
	version := binary.LittleEndian.Uint32(buf[:4])
	off := 4

	count, n, err := DecodeVarInt(buf[off:])
	if err != nil {
		return LocatorHashes{}, 0, err
	}
	off += n

	if count > VarInt((len(buf)-off)/hashWireLen) {
		return LocatorHashes{}, 0, fmt.Errorf("%w: locator hash count %d exceeds remaining bytes", ErrDecode, count)
	}
	hashes := make([]Hash, 0, count)
	for i := VarInt(0); i < count; i++ {
		h, consumed, err := DecodeHash(buf[off:])
		if err != nil {
			return LocatorHashes{}, 0, err
		}
		hashes = append(hashes, h)
		off += consumed
	}

	stop, consumed, err := DecodeHash(buf[off:])
	if err != nil {
		return LocatorHashes{}, 0, err
	}
	off += consumed

	return LocatorHashes{Version: version, Hashes: hashes, HashStop: stop}, off, nil
}

// CCode is the reject-reason category of a Reject message.
type CCode uint8

const (
	CCodeMalformed       CCode = 0x01
	CCodeInvalid         CCode = 0x10
	CCodeObsolete        CCode = 0x11
	CCodeDuplicate       CCode = 0x12
	CCodeNonStandard     CCode = 0x40
	CCodeDust            CCode = 0x41
	CCodeInsufficientFee CCode = 0x42
	CCodeCheckpoint      CCode = 0x43
	CCodeOther           CCode = 0x50
)

func decodeCCode(buf []byte) (CCode, int, error) {
	if len(buf) < 1 {
		return 0, 0, fmt.Errorf("%w: truncated ccode", ErrDecode)
	}
	switch c := CCode(buf[0]); c {
	case CCodeMalformed, CCodeInvalid, CCodeObsolete, CCodeDuplicate, CCodeNonStandard,
		CCodeDust, CCodeInsufficientFee, CCodeCheckpoint, CCodeOther:
		return c, 1, nil
	default:
		return 0, 0, fmt.Errorf("%w: category=ccode value=%#x", ErrUnknown, buf[0])
	}
}

// Reject describes why a peer rejected a previous message. Data has no
// length prefix; it runs to the end of the frame (§3, §4.1).
type Reject struct {
	Message VarStr
	CCode   CCode
	Reason  VarStr
	Data    []byte
}

func (r Reject) Encode(buf []byte) []byte {
	buf = r.Message.Encode(buf)
	buf = append(buf, byte(r.CCode))
	buf = r.Reason.Encode(buf)
	return append(buf, r.Data...)
}

func DecodeReject(buf []byte) (Reject, int, error) {
	msg, n1, err := DecodeVarStr(buf)
	if err != nil {
		return Reject{}, 0, err
	}
	off := n1

	ccode, n2, err := decodeCCode(buf[off:])
	if err != nil {
		return Reject{}, 0, err
	}
	off += n2

	reason, n3, err := DecodeVarStr(buf[off:])
	if err != nil {
		return Reject{}, 0, err
	}
	off += n3

	data := make([]byte, len(buf)-off)
	copy(data, buf[off:])

	return Reject{Message: msg, CCode: ccode, Reason: reason, Data: data}, len(buf), nil
}

// Version is the handshake-opening payload (§3, §4.2).
type Version struct {
	ProtocolVersion uint32
	Services        uint64
	Timestamp       int64
	AddrRecv        NetworkAddr
	AddrFrom        NetworkAddr
	Nonce           Nonce
	UserAgent       VarStr
	StartHeight     uint32
	Relay           bool
}

func (v Version) Encode(buf []byte) []byte {
	buf = appendUint32(buf, v.ProtocolVersion)
	buf = appendUint64(buf, v.Services)
	buf = appendUint64(buf, uint64(v.Timestamp))
	buf = v.AddrRecv.EncodeWithoutTimestamp(buf)
	buf = v.AddrFrom.EncodeWithoutTimestamp(buf)
	buf = v.Nonce.Encode(buf)
	buf = v.UserAgent.Encode(buf)
	buf = appendUint32(buf, v.StartHeight)
	var relay byte
	if v.Relay {
		relay = 1
	}
	return append(buf, relay)
}

func DecodeVersion(buf []byte) (Version, int, error) {
	if len(buf) < 20 {
		return Version{}, 0, fmt.Errorf("%w: truncated version prefix", ErrDecode)
	}
	protocolVersion := binary.LittleEndian.Uint32(buf[0:4])
	services := binary.LittleEndian.Uint64(buf[4:12])
	timestamp := int64(binary.LittleEndian.Uint64(buf[12:20]))
	off := 20

	addrRecv, n, err := DecodeNetworkAddrWithoutTimestamp(buf[off:])
	if err != nil {
		return Version{}, 0, err
	}
	off += n

	addrFrom, n, err := DecodeNetworkAddrWithoutTimestamp(buf[off:])
	if err != nil {
		return Version{}, 0, err
	}
	off += n

	nonce, n, err := DecodeNonce(buf[off:])
	if err != nil {
		return Version{}, 0, err
	}
	off += n

	userAgent, n, err := DecodeVarStr(buf[off:])
	if err != nil {
		return Version{}, 0, err
	}
	off += n

	if len(buf[off:]) < 5 {
		return Version{}, 0, fmt.Errorf("%w: truncated version suffix", ErrDecode)
	}
	startHeight := binary.LittleEndian.Uint32(buf[off : off+4])
	relay := buf[off+4] != 0
	off += 5

	return Version{
		ProtocolVersion: protocolVersion,
		Services:        services,
		Timestamp:       timestamp,
		AddrRecv:        addrRecv,
		AddrFrom:        addrFrom,
		Nonce:           nonce,
		UserAgent:       userAgent,
		StartHeight:     startHeight,
		Relay:           relay,
	}, off, nil
}

// BlockHeader is the fixed 80-byte block header: the spec's Data Model
// names BlockHeader as the element type of Headers(vec<BlockHeader>) but
// leaves its wire layout to the block format already in use on the
// network. This mirrors the teacher's own BlockHeader.Deserialize
// (pkg/doge/spv.go), which is the standard Bitcoin/Dogecoin-family layout.
type BlockHeader struct {
	Version    uint32
	PrevBlock  Hash
	MerkleRoot Hash
	Time       uint32
	Bits       uint32
	HeaderNonce uint32
}

func (h BlockHeader) Encode(buf []byte) []byte {
	buf = appendUint32(buf, h.Version)
	buf = h.PrevBlock.Encode(buf)
	buf = h.MerkleRoot.Encode(buf)
	buf = appendUint32(buf, h.Time)
	buf = appendUint32(buf, h.Bits)
	return appendUint32(buf, h.HeaderNonce)
}

func DecodeBlockHeader(buf []byte) (BlockHeader, int, error) {
	if len(buf) < 80 {
		return BlockHeader{}, 0, fmt.Errorf("%w: truncated block header", ErrDecode)
	}
	var h BlockHeader
	h.Version = binary.LittleEndian.Uint32(buf[0:4])
	copy(h.PrevBlock[:], buf[4:36])
	copy(h.MerkleRoot[:], buf[36:68])
	h.Time = binary.LittleEndian.Uint32(buf[68:72])
	h.Bits = binary.LittleEndian.Uint32(buf[72:76])
	h.HeaderNonce = binary.LittleEndian.Uint32(buf[76:80])
	return h, 80, nil
}

// Headers is a VarInt-prefixed list of (BlockHeader, tx_count) pairs,
// tx_count always 0 in a pure headers-sync response.
type Headers struct {
	Items []BlockHeader
}

func (h Headers) Encode(buf []byte) []byte {
	buf = VarInt(len(h.Items)).Encode(buf)
	for _, header := range h.Items {
		buf = header.Encode(buf)
		buf = VarInt(0).Encode(buf)
	}
	return buf
}

// minHeaderEntryWireLen is the smallest possible encoding of one Headers
// entry: an 80-byte BlockHeader plus a 1-byte VarInt(0) tx count.
const minHeaderEntryWireLen = 80 + 1

func DecodeHeaders(buf []byte) (Headers, int, error) {
	count, n, err := DecodeVarInt(buf)
	if err != nil {
		return Headers{}, 0, err
	}
	off := n
	if count > VarInt((len(buf)-off)/minHeaderEntryWireLen) {
		return Headers{}, 0, fmt.Errorf("%w: headers count %d exceeds remaining bytes", ErrDecode, count)
	}
	items := make([]BlockHeader, 0, count)
	for i := VarInt(0); i < count; i++ {
		header, consumed, err := DecodeBlockHeader(buf[off:])
		if err != nil {
			return Headers{}, 0, err
		}
		off += consumed
		txCount, consumed, err := DecodeVarInt(buf[off:])
		if err != nil {
			return Headers{}, 0, err
		}
		off += consumed
		if txCount != 0 {
			return Headers{}, 0, fmt.Errorf("%w: non-zero tx count in headers response", ErrDecode)
		}
		items = append(items, header)
	}
	return Headers{Items: items}, off, nil
}

// Addr is a VarInt-prefixed list of timestamped NetworkAddr entries.
type Addr struct {
	Items []NetworkAddr
}

func (a Addr) Encode(buf []byte) []byte {
	buf = VarInt(len(a.Items)).Encode(buf)
	for _, item := range a.Items {
		buf = item.EncodeWithTimestamp(buf)
	}
	return buf
}

// minTimestampedAddrWireLen is NetworkAddr's encoded size in the
// with-timestamp (Addr message) wire form.
const minTimestampedAddrWireLen = 4 + 26

func DecodeAddr(buf []byte) (Addr, int, error) {
	count, n, err := DecodeVarInt(buf)
	if err != nil {
		return Addr{}, 0, err
	}
	off := n
	if count > VarInt((len(buf)-off)/minTimestampedAddrWireLen) {
		return Addr{}, 0, fmt.Errorf("%w: addr count %d exceeds remaining bytes", ErrDecode, count)
	}
	items := make([]NetworkAddr, 0, count)
	for i := VarInt(0); i < count; i++ {
		item, consumed, err := DecodeNetworkAddrWithTimestamp(buf[off:])
		if err != nil {
			return Addr{}, 0, err
		}
		items = append(items, item)
		off += consumed
	}
	return Addr{Items: items}, off, nil
}

// ErrUnknown tags an unrecognised enum tag within an otherwise
// well-formed payload (e.g. an inventory kind or reject ccode outside the
// known set), distinct from ErrUnknownCommand which applies to the frame
// header's command field.
var ErrUnknown = fmt.Errorf("%w: unknown enum value", ErrDecode)
