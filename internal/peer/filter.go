package peer

import "github.com/runziggurat/zcash-sub001/internal/wire"

// ActionKind says what a Connection should do with an inbound message
// once the handshake has completed.
type ActionKind int

const (
	// ActionIgnore drops the message without delivering or replying.
	ActionIgnore ActionKind = iota
	// ActionAutoReply sends Reply back to the peer instead of delivering
	// the message to the caller.
	ActionAutoReply
	// ActionDeliver hands the message to the caller via RecvMessage.
	ActionDeliver
)

// Action is the filter's verdict for one inbound message.
type Action struct {
	Kind  ActionKind
	Reply *wire.Message // set only when Kind == ActionAutoReply
}

func Ignore() Action                   { return Action{Kind: ActionIgnore} }
func Deliver() Action                  { return Action{Kind: ActionDeliver} }
func AutoReply(reply wire.Message) Action {
	return Action{Kind: ActionAutoReply, Reply: &reply}
}

// MessageFilter decides what happens to each inbound message. Connection
// calls Classify for every message after the handshake completes.
type MessageFilter interface {
	Classify(msg wire.Message) Action
}

// MessageFilterFunc adapts a function to MessageFilter.
type MessageFilterFunc func(wire.Message) Action

func (f MessageFilterFunc) Classify(msg wire.Message) Action { return f(msg) }

// DefaultFilter delivers everything to the caller. Synthetic-node
// builders layer AutoReplyFilter or a custom filter on top of this when
// they need protocol-level liveness without caller involvement.
func DefaultFilter() MessageFilter {
	return MessageFilterFunc(func(wire.Message) Action { return Deliver() })
}

// AutoReplyFilter answers the standard liveness messages itself
// (ping, getaddr, getheaders, getdata) and delivers everything else.
func AutoReplyFilter() MessageFilter {
	return MessageFilterFunc(func(msg wire.Message) Action {
		switch msg.Command {
		case wire.CommandPing:
			return AutoReply(wire.Message{Command: wire.CommandPong, Pong: msg.Ping})
		case wire.CommandGetAddr:
			return AutoReply(wire.Message{Command: wire.CommandAddr})
		case wire.CommandGetHeaders:
			return AutoReply(wire.Message{Command: wire.CommandHeaders})
		case wire.CommandGetData:
			return AutoReply(wire.Message{Command: wire.CommandNotFound, NotFound: msg.GetData})
		default:
			return Deliver()
		}
	})
}
