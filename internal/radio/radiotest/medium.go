// Package radiotest provides an in-process radio medium for tests.
//
// Frames are delivered synchronously on the sender's goroutine, so a test
// can send and assert without waiting.
package radiotest

import (
	"context"
	"fmt"
	"sync"

	"github.com/ta25stage/stagelink/internal/radio"
)

// Frame is one transmitted frame as seen by the medium.
type Frame struct {
	Dst     radio.Addr
	Src     radio.Addr
	Payload []byte
}

// Medium connects nodes attached to the same channel.
type Medium struct {
	channel uint8

	mu    sync.Mutex
	nodes map[radio.Addr]*Node
	sent  []Frame
}

// NewMedium creates an empty medium on the given channel.
func NewMedium(channel uint8) *Medium {
	return &Medium{channel: channel, nodes: make(map[radio.Addr]*Node)}
}

// Attach adds a node with the given address.
func (m *Medium) Attach(addr radio.Addr) *Node {
	n := &Node{medium: m, addr: addr, channel: m.channel}
	m.mu.Lock()
	m.nodes[addr] = n
	m.mu.Unlock()
	return n
}

// Sent returns every frame transmitted on the medium so far.
func (m *Medium) Sent() []Frame {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Frame, len(m.sent))
	copy(out, m.sent)
	return out
}

func (m *Medium) deliver(f Frame) {
	m.mu.Lock()
	m.sent = append(m.sent, f)
	var targets []*Node
	for addr, n := range m.nodes {
		if addr == f.Src || n.Channel() != m.channel {
			continue
		}
		if f.Dst.IsBroadcast() || f.Dst == addr {
			targets = append(targets, n)
		}
	}
	m.mu.Unlock()

	for _, n := range targets {
		n.receive(f)
	}
}

// Node is one attachment to a Medium. It implements radio.Link.
type Node struct {
	medium  *Medium
	addr    radio.Addr
	channel uint8

	mu      sync.Mutex
	handler radio.Handler
	closed  bool
	failErr error
}

var _ radio.Link = (*Node)(nil)

// Handle installs a handler without blocking.
func (n *Node) Handle(h radio.Handler) {
	n.mu.Lock()
	n.handler = h
	n.mu.Unlock()
}

// SetChannel moves the node to another channel; it then hears nothing.
func (n *Node) SetChannel(ch uint8) {
	n.mu.Lock()
	n.channel = ch
	n.mu.Unlock()
}

// FailSends makes every subsequent Send return err. Pass nil to restore.
func (n *Node) FailSends(err error) {
	n.mu.Lock()
	n.failErr = err
	n.mu.Unlock()
}

// Send implements radio.Link.
func (n *Node) Send(ctx context.Context, dst radio.Addr, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	n.mu.Lock()
	closed, failErr := n.closed, n.failErr
	n.mu.Unlock()
	if closed {
		return radio.ErrClosed
	}
	if failErr != nil {
		return fmt.Errorf("radiotest: send to %s: %w", dst, failErr)
	}

	p := make([]byte, len(payload))
	copy(p, payload)
	n.medium.deliver(Frame{Dst: dst, Src: n.addr, Payload: p})
	return nil
}

// Listen implements radio.Link.
func (n *Node) Listen(ctx context.Context, h radio.Handler) error {
	n.Handle(h)
	<-ctx.Done()
	return ctx.Err()
}

// LocalAddr implements radio.Link.
func (n *Node) LocalAddr() radio.Addr {
	return n.addr
}

// Channel implements radio.Link.
func (n *Node) Channel() uint8 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.channel
}

// Close implements radio.Link.
func (n *Node) Close() error {
	n.mu.Lock()
	n.closed = true
	n.mu.Unlock()
	return nil
}

func (n *Node) receive(f Frame) {
	n.mu.Lock()
	h, closed := n.handler, n.closed
	n.mu.Unlock()
	if h == nil || closed {
		return
	}
	p := make([]byte, len(f.Payload))
	copy(p, f.Payload)
	h(p, f.Src)
}
