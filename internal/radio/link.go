package radio

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// DefaultChannel is the radio channel every node is built for.
const DefaultChannel uint8 = 1

// Addr is a link-layer hardware address.
type Addr [6]byte

// Broadcast reaches every node on the channel.
var Broadcast = Addr{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}

// ParseAddr parses "aa:bb:cc:dd:ee:ff".
func ParseAddr(s string) (Addr, error) {
	hw, err := net.ParseMAC(s)
	if err != nil {
		return Addr{}, fmt.Errorf("%w: %q", ErrInvalidAddr, s)
	}
	if len(hw) != len(Addr{}) {
		return Addr{}, fmt.Errorf("%w: %q is not a 6-byte address", ErrInvalidAddr, s)
	}
	var a Addr
	copy(a[:], hw)
	return a, nil
}

// String formats the address as colon-separated hex.
func (a Addr) String() string {
	return net.HardwareAddr(a[:]).String()
}

// IsBroadcast reports whether a is the broadcast address.
func (a Addr) IsBroadcast() bool {
	return a == Broadcast
}

// Handler is called for every frame delivered to this node.
// The payload slice is owned by the handler.
type Handler func(payload []byte, from Addr)

// Link is one node's attachment to the radio channel.
type Link interface {
	// Send transmits payload to dst. A nil error means the frame left this
	// node, not that anyone received it.
	Send(ctx context.Context, dst Addr, payload []byte) error

	// Listen delivers inbound frames to h until ctx is cancelled.
	Listen(ctx context.Context, h Handler) error

	// LocalAddr returns this node's hardware address.
	LocalAddr() Addr

	// Channel returns the channel the link operates on.
	Channel() uint8

	Close() error
}

// Frame header layout.
const (
	headerSize = 12
	// MaxPayload bounds a frame payload, matching the radio's frame limit.
	MaxPayload = 250
)

// encodeFrame prefixes payload with the link header.
func encodeFrame(dst, src Addr, payload []byte) ([]byte, error) {
	if len(payload) > MaxPayload {
		return nil, fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, len(payload))
	}
	b := make([]byte, headerSize+len(payload))
	copy(b[0:6], dst[:])
	copy(b[6:12], src[:])
	copy(b[headerSize:], payload)
	return b, nil
}

// decodeFrame splits a datagram into header and payload.
func decodeFrame(b []byte) (dst, src Addr, payload []byte, err error) {
	if len(b) < headerSize {
		return dst, src, nil, fmt.Errorf("%w: %d bytes", ErrShortFrame, len(b))
	}
	copy(dst[:], b[0:6])
	copy(src[:], b[6:12])
	payload = make([]byte, len(b)-headerSize)
	copy(payload, b[headerSize:])
	return dst, src, payload, nil
}

// accepts reports whether a node with address local keeps a frame for dst.
func accepts(local, dst Addr) bool {
	return dst == local || dst.IsBroadcast()
}

// Errors returned by the radio link.
var (
	ErrInvalidAddr     = errors.New("radio: invalid hardware address")
	ErrPayloadTooLarge = errors.New("radio: payload too large")
	ErrShortFrame      = errors.New("radio: short frame")
	ErrUnknownPeer     = errors.New("radio: no route to peer")
	ErrClosed          = errors.New("radio: link closed")
)
