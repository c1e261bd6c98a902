package draws

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// maxMessageSize bounds a single writer message. One message holds at most
// one draw's worth of flattened parameters, so anything near this limit is a
// corrupt length prefix rather than real data.
const maxMessageSize = 16 << 20

// Decoder reads a stream of varint length-delimited writer messages.
type Decoder struct {
	r *bufio.Reader
}

func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: bufio.NewReader(r)}
}

// Decode returns the next message. It returns io.EOF when the stream ends on
// a message boundary and a wrapped io.ErrUnexpectedEOF when it ends inside
// one.
func (d *Decoder) Decode() (*WriterMessage, error) {
	size, err := binary.ReadUvarint(d.r)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("failed to read message length: %w", err)
	}
	if size > maxMessageSize {
		return nil, fmt.Errorf("message length %d exceeds the %d byte limit", size, maxMessageSize)
	}

	buf := make([]byte, size)
	if _, err := io.ReadFull(d.r, buf); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return nil, fmt.Errorf("failed to read %d byte message body: %w", size, err)
	}
	return Unmarshal(buf)
}

// Encoder writes messages in the same framing the server uses, which lets
// tests build artifact fixtures byte-for-byte.
type Encoder struct {
	w io.Writer
}

func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w}
}

func (e *Encoder) Encode(msg *WriterMessage) error {
	body := Marshal(msg)

	var hdr [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(hdr[:], uint64(len(body)))
	if _, err := e.w.Write(hdr[:n]); err != nil {
		return fmt.Errorf("failed to write message length: %w", err)
	}
	if _, err := e.w.Write(body); err != nil {
		return fmt.Errorf("failed to write message body: %w", err)
	}
	return nil
}
