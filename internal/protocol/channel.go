// Package protocol owns the message layer of the uplink wire protocol:
// JSON documents framed with a fixed-width length prefix.
//
// Ownership boundary:
// - Message shape and field access
// - framing of outgoing documents, reassembly of incoming ones
//
// Connection lifecycle and command dispatch live above (internal/netio,
// internal/uplink).
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/edgekit/uplink/internal/protocol/frame"
)

// ErrMalformedMessage reports a frame payload that failed to parse as a JSON
// object. It indicates framing desync: the caller must force a reconnect
// rather than keep reading from the stream.
var ErrMalformedMessage = errors.New("protocol: malformed message payload")

// ByteStream is the transport capability the channel is built on. Send
// reports the number of bytes actually written (0 when disconnected).
// Receive invokes visit for each chunk available right now; chunk contents
// are only valid for the duration of the call.
type ByteStream interface {
	Send(p []byte) int
	Receive(visit func(chunk []byte))
}

// Channel frames and unframes JSON messages over a ByteStream.
type Channel struct {
	stream ByteStream
	width  int
	dec    *frame.Decoder
}

func NewChannel(stream ByteStream, width int) (*Channel, error) {
	dec, err := frame.NewDecoder(width)
	if err != nil {
		return nil, err
	}
	return &Channel{stream: stream, width: width, dec: dec}, nil
}

// Send serializes one message into one frame and writes it. It reports
// whether the full frame went out; transport errors are handled below and
// surface here only as a short send.
func (ch *Channel) Send(m Message) bool {
	payload, err := json.Marshal(m)
	if err != nil {
		log.Error().Err(err).Msg("uplink: message encode failed")
		return false
	}
	fr, err := frame.Encode(payload, ch.width)
	if err != nil {
		log.Error().Err(err).Int("payload_bytes", len(payload)).Msg("uplink: frame encode failed")
		return false
	}
	sent := ch.stream.Send(fr)
	if sent != len(fr) {
		if sent != 0 {
			log.Warn().Int("sent", sent).Int("want", len(fr)).Msg("uplink: short send")
		}
		return false
	}
	return true
}

// SendKeepalive writes a zero-length frame.
func (ch *Channel) SendKeepalive() bool {
	fr, err := frame.Keepalive(ch.width)
	if err != nil {
		return false
	}
	return ch.stream.Send(fr) == len(fr)
}

// Receive drains the byte stream and returns the messages decoded this cycle
// in arrival order. Zero-length keepalive frames are dropped. A payload that
// fails to parse stops the cycle: the messages decoded before it are returned
// together with ErrMalformedMessage.
func (ch *Channel) Receive() ([]Message, error) {
	ch.stream.Receive(func(chunk []byte) {
		ch.dec.Feed(chunk)
	})

	var msgs []Message
	for {
		payload, ok := ch.dec.Next()
		if !ok {
			return msgs, nil
		}
		if len(payload) == 0 {
			continue
		}
		var m Message
		if err := json.Unmarshal(payload, &m); err != nil {
			return msgs, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
		}
		msgs = append(msgs, m)
	}
}

// Reset drops any partially reassembled frame. Must be called whenever the
// underlying connection is replaced.
func (ch *Channel) Reset() {
	ch.dec.Reset()
}
