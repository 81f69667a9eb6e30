package wire

import (
	"bufio"
	"fmt"
	"io"
)

// Framer reads length-delimited, checksummed frames off an underlying
// stream and decodes them into Messages. It enforces the three
// connection-dropping conditions of §4.1 before any payload interpretation
// is attempted: magic mismatch, oversize frame, checksum mismatch.
type Framer struct {
	r     *bufio.Reader
	w     io.Writer
	magic [4]byte
}

// NewFramer reads frames from r and writes them to w for a connection on
// the given network magic.
func NewFramer(r io.Reader, w io.Writer, magic [4]byte) *Framer {
	return &Framer{r: bufio.NewReader(r), w: w, magic: magic}
}

// ReadMessage reads one frame, validating it before decoding the payload.
// A magic mismatch or oversize declaration is detected from the header
// alone, without reading the payload bytes.
func (f *Framer) ReadMessage() (Message, error) {
	headerBuf := make([]byte, HeaderLen)
	if _, err := io.ReadFull(f.r, headerBuf); err != nil {
		return Message{}, fmt.Errorf("read header: %w", err)
	}

	h, err := DecodeHeader(headerBuf)
	if err != nil {
		return Message{}, err
	}

	if h.Magic != f.magic {
		return Message{}, fmt.Errorf("%w: got %x want %x", ErrMagicMismatch, h.Magic, f.magic)
	}
	if h.BodyLength > MaxMessageLen {
		return Message{}, fmt.Errorf("%w: %d bytes", ErrOversizeFrame, h.BodyLength)
	}

	payload := make([]byte, h.BodyLength)
	if _, err := io.ReadFull(f.r, payload); err != nil {
		return Message{}, fmt.Errorf("read payload: %w", err)
	}

	if got := Checksum(payload); got != h.Checksum {
		return Message{}, fmt.Errorf("%w: got %#x want %#x", ErrChecksumMismatch, got, h.Checksum)
	}

	return DecodePayload(h.Command, payload)
}

// WriteMessage encodes and writes one frame.
func (f *Framer) WriteMessage(m Message) error {
	payload, err := EncodePayload(m)
	if err != nil {
		return err
	}
	if len(payload) > MaxMessageLen {
		return fmt.Errorf("%w: %d bytes", ErrOversizeFrame, len(payload))
	}

	h := Header{
		Magic:      f.magic,
		Command:    m.Command,
		BodyLength: uint32(len(payload)),
		Checksum:   Checksum(payload),
	}

	frame := EncodeHeader(h)
	frame = append(frame, payload...)
	_, err = f.w.Write(frame)
	return err
}
