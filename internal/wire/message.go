package wire

import "fmt"

// Message is a decoded frame payload paired with the command that
// produced it. Exactly one of the payload fields is meaningful for a
// given Command; the others are left at their zero value.
type Message struct {
	Command Command

	Version     Version
	Ping        Nonce
	Pong        Nonce
	Addr        Addr
	GetHeaders  LocatorHashes
	Headers     Headers
	GetBlocks   LocatorHashes
	Block       []byte // opaque: block-body interpretation is out of scope
	GetData     Inv
	Inv         Inv
	NotFound    Inv
	Tx          []byte // opaque: transaction interpretation is out of scope
	Reject      Reject
	FilterLoad  []byte
	FilterAdd   []byte
}

// EncodePayload encodes the payload selected by m.Command.
func EncodePayload(m Message) ([]byte, error) {
	var buf []byte
	switch m.Command {
	case CommandVersion:
		return m.Version.Encode(buf), nil
	case CommandVerack:
		return buf, nil
	case CommandPing:
		return m.Ping.Encode(buf), nil
	case CommandPong:
		return m.Pong.Encode(buf), nil
	case CommandGetAddr:
		return buf, nil
	case CommandAddr:
		return m.Addr.Encode(buf), nil
	case CommandGetHeaders:
		return m.GetHeaders.Encode(buf), nil
	case CommandHeaders:
		return m.Headers.Encode(buf), nil
	case CommandGetBlocks:
		return m.GetBlocks.Encode(buf), nil
	case CommandBlock:
		return append(buf, m.Block...), nil
	case CommandGetData:
		return m.GetData.Encode(buf), nil
	case CommandInv:
		return m.Inv.Encode(buf), nil
	case CommandNotFound:
		return m.NotFound.Encode(buf), nil
	case CommandMemPool:
		return buf, nil
	case CommandTx:
		return append(buf, m.Tx...), nil
	case CommandReject:
		return m.Reject.Encode(buf), nil
	case CommandFilterLoad:
		return append(buf, m.FilterLoad...), nil
	case CommandFilterAdd:
		return append(buf, m.FilterAdd...), nil
	case CommandFilterClear:
		return buf, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCommand, m.Command.String())
	}
}

// DecodePayload decodes a frame's payload according to its command. The
// caller (the framer) has already validated magic, size, and checksum.
func DecodePayload(cmd Command, payload []byte) (Message, error) {
	m := Message{Command: cmd}

	switch cmd {
	case CommandVersion:
		v, _, err := DecodeVersion(payload)
		if err != nil {
			return Message{}, err
		}
		m.Version = v
	case CommandVerack, CommandGetAddr, CommandMemPool, CommandFilterClear:
		// no payload
	case CommandPing:
		n, _, err := DecodeNonce(payload)
		if err != nil {
			return Message{}, err
		}
		m.Ping = n
	case CommandPong:
		n, _, err := DecodeNonce(payload)
		if err != nil {
			return Message{}, err
		}
		m.Pong = n
	case CommandAddr:
		a, _, err := DecodeAddr(payload)
		if err != nil {
			return Message{}, err
		}
		m.Addr = a
	case CommandGetHeaders:
		l, _, err := DecodeLocatorHashes(payload)
		if err != nil {
			return Message{}, err
		}
		m.GetHeaders = l
	case CommandHeaders:
		h, _, err := DecodeHeaders(payload)
		if err != nil {
			return Message{}, err
		}
		m.Headers = h
	case CommandGetBlocks:
		l, _, err := DecodeLocatorHashes(payload)
		if err != nil {
			return Message{}, err
		}
		m.GetBlocks = l
	case CommandBlock:
		m.Block = append([]byte(nil), payload...)
	case CommandGetData:
		i, _, err := DecodeInv(payload)
		if err != nil {
			return Message{}, err
		}
		m.GetData = i
	case CommandInv:
		i, _, err := DecodeInv(payload)
		if err != nil {
			return Message{}, err
		}
		m.Inv = i
	case CommandNotFound:
		i, _, err := DecodeInv(payload)
		if err != nil {
			return Message{}, err
		}
		m.NotFound = i
	case CommandTx:
		m.Tx = append([]byte(nil), payload...)
	case CommandReject:
		r, _, err := DecodeReject(payload)
		if err != nil {
			return Message{}, err
		}
		m.Reject = r
	case CommandFilterLoad:
		m.FilterLoad = append([]byte(nil), payload...)
	case CommandFilterAdd:
		m.FilterAdd = append([]byte(nil), payload...)
	default:
		return Message{}, fmt.Errorf("%w: %q", ErrUnknownCommand, cmd.String())
	}

	return m, nil
}
