package peer

import (
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/runziggurat/zcash-sub001/internal/wire"
)

func isWireError(err, target error) bool {
	return errors.Is(err, target)
}

// HandshakeState is a Connection's position in its lifecycle. Handshake
// moves a Connection from StateIdle to StateAwaitingVersion for the whole
// version/verack exchange, then to StateHandshaken or StateClosed;
// BypassHandshake moves it straight to StateHandshaken. StateVersionSent
// and StateVersionReceived are defined but a Connection never enters
// them: progress inside the exchange, where Version and Verack may arrive
// in either order, is tracked by handshakeTracker's independent flags.
type HandshakeState int

const (
	StateIdle HandshakeState = iota
	StateAwaitingVersion
	StateVersionSent
	StateVersionReceived
	StateHandshaken
	StateClosed
)

func (s HandshakeState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingVersion:
		return "awaiting_version"
	case StateVersionSent:
		return "version_sent"
	case StateVersionReceived:
		return "version_received"
	case StateHandshaken:
		return "handshaken"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// handshakeTracker folds inbound version/verack messages into completion
// state, independent of arrival order.
type handshakeTracker struct {
	sentVersion     bool
	sentVerack      bool
	receivedVersion bool
	receivedVerack  bool
	peerVersion     wire.Version
}

func (t *handshakeTracker) done() bool {
	return t.sentVersion && t.sentVerack && t.receivedVersion && t.receivedVerack
}

// runHandshake drives the version/verack exchange over framer. It writes
// ourVersion, then reads one frame at a time (answering the peer's Version
// with a Verack) until both sides have exchanged Version and Verack, or
// the deadline expires.
func runHandshake(framer *wire.Framer, ourVersion wire.Message, deadline time.Time) (wire.Version, error) {
	t := &handshakeTracker{}

	if err := framer.WriteMessage(ourVersion); err != nil {
		return wire.Version{}, newError(KindIOError, err)
	}
	t.sentVersion = true

	for !t.done() {
		if !deadline.IsZero() && time.Now().After(deadline) {
			return wire.Version{}, newError(KindHandshakeFailed, fmt.Errorf("timed out in state: version_sent=%v version_recv=%v verack_sent=%v verack_recv=%v",
				t.sentVersion, t.receivedVersion, t.sentVerack, t.receivedVerack))
		}

		msg, err := framer.ReadMessage()
		if err != nil {
			return wire.Version{}, classifyReadError(err)
		}

		switch msg.Command {
		case wire.CommandVersion:
			if t.receivedVersion {
				return wire.Version{}, newError(KindHandshakeFailed, fmt.Errorf("duplicate version message"))
			}
			t.receivedVersion = true
			t.peerVersion = msg.Version
			if err := framer.WriteMessage(wire.Message{Command: wire.CommandVerack}); err != nil {
				return wire.Version{}, newError(KindIOError, err)
			}
			t.sentVerack = true
		case wire.CommandVerack:
			if t.receivedVerack {
				return wire.Version{}, newError(KindHandshakeFailed, fmt.Errorf("duplicate verack message"))
			}
			t.receivedVerack = true
		default:
			return wire.Version{}, newError(KindHandshakeFailed, fmt.Errorf("unexpected message %q before handshake completed", msg.Command.String()))
		}
	}

	return t.peerVersion, nil
}

func classifyReadError(err error) error {
	var netErr net.Error
	switch {
	case errors.As(err, &netErr) && netErr.Timeout():
		return newError(KindTimeout, err)
	case isWireError(err, wire.ErrMagicMismatch):
		return newError(KindMagicMismatch, err)
	case isWireError(err, wire.ErrOversizeFrame):
		return newError(KindOversizeFrame, err)
	case isWireError(err, wire.ErrChecksumMismatch):
		return newError(KindChecksumMismatch, err)
	case isWireError(err, wire.ErrDecode), isWireError(err, wire.ErrUnknownCommand):
		return newError(KindDecodeError, err)
	default:
		return newError(KindIOError, err)
	}
}
