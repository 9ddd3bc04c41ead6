// Package frame implements the length-prefixed framing used on the wire.
//
// A frame is a big-endian length prefix (1 or 2 bytes, fixed per connection)
// followed by exactly that many payload bytes. A zero-length frame is a valid
// keepalive.
package frame

import (
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	// MaxPayload8 is the largest payload a 1-byte length prefix can carry.
	MaxPayload8 = 255
	// MaxPayload16 is the largest payload a 2-byte length prefix can carry.
	MaxPayload16 = 65535
)

var (
	ErrOversize     = errors.New("frame: payload exceeds length prefix range")
	ErrInvalidWidth = errors.New("frame: length width must be 1 or 2")
)

func maxPayload(width int) (int, error) {
	switch width {
	case 1:
		return MaxPayload8, nil
	case 2:
		return MaxPayload16, nil
	default:
		return 0, fmt.Errorf("%w: %d", ErrInvalidWidth, width)
	}
}

// Encode returns the length prefix followed by the payload.
func Encode(payload []byte, width int) ([]byte, error) {
	limit, err := maxPayload(width)
	if err != nil {
		return nil, err
	}
	if len(payload) > limit {
		return nil, fmt.Errorf("%w: %d > %d", ErrOversize, len(payload), limit)
	}
	out := make([]byte, width+len(payload))
	if width == 1 {
		out[0] = byte(len(payload))
	} else {
		binary.BigEndian.PutUint16(out[:2], uint16(len(payload)))
	}
	copy(out[width:], payload)
	return out, nil
}

// Keepalive returns a zero-length frame for the given width.
func Keepalive(width int) ([]byte, error) {
	return Encode(nil, width)
}

// Decoder reassembles frames from a byte stream. Bytes fed in are copied into
// an internal buffer, so a frame may span any number of Feed calls and the
// caller's buffer can be reused immediately.
type Decoder struct {
	width int
	buf   []byte
}

func NewDecoder(width int) (*Decoder, error) {
	if _, err := maxPayload(width); err != nil {
		return nil, err
	}
	return &Decoder{width: width}, nil
}

// Feed appends received bytes to the accumulation buffer.
func (d *Decoder) Feed(data []byte) {
	d.buf = append(d.buf, data...)
}

// Next pops one complete frame payload, or returns false when the buffer does
// not yet hold a whole frame. A keepalive decodes to an empty payload.
func (d *Decoder) Next() ([]byte, bool) {
	if len(d.buf) < d.width {
		return nil, false
	}
	var length int
	if d.width == 1 {
		length = int(d.buf[0])
	} else {
		length = int(binary.BigEndian.Uint16(d.buf[:2]))
	}
	if len(d.buf) < d.width+length {
		return nil, false
	}
	payload := make([]byte, length)
	copy(payload, d.buf[d.width:d.width+length])
	d.buf = d.buf[d.width+length:]
	return payload, true
}

// Buffered reports how many bytes are waiting for frame completion.
func (d *Decoder) Buffered() int {
	return len(d.buf)
}

// Reset discards any partially accumulated frame. Called when the underlying
// connection is replaced so a truncated frame cannot desync the next stream.
func (d *Decoder) Reset() {
	d.buf = nil
}
