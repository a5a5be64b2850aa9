package radio

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
)

// readBufferSize covers the largest frame with room to spare.
const readBufferSize = 2048

// Logger is the logging subset the link needs.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// UDPConfig configures a UDPLink.
type UDPConfig struct {
	// Local is this node's hardware address.
	Local Addr

	// Channel selects the port: BasePort + Channel.
	Channel  uint8
	BasePort int

	// BindHost is the interface address to listen on ("" for all).
	BindHost string

	// Listen binds the channel port so frames can be received. Send-only
	// nodes bind an ephemeral port instead.
	Listen bool

	// BroadcastHost receives frames sent to Broadcast, "host" or "host:port".
	BroadcastHost string

	// Peers maps hardware addresses to "host" or "host:port".
	Peers map[Addr]string

	Logger Logger
}

// Port returns the UDP port used by a channel.
func Port(basePort int, channel uint8) int {
	return basePort + int(channel)
}

// UDPLink carries radio frames over UDP datagrams.
//
// Thread Safety: Send may be called from any goroutine. Listen must be
// called at most once.
type UDPLink struct {
	cfg    UDPConfig
	conn   *net.UDPConn
	logger Logger

	broadcast *net.UDPAddr
	peers     map[Addr]*net.UDPAddr

	closeOnce sync.Once
}

// NewUDP opens the socket and resolves the peer table.
//
// Parameters:
//   - cfg: link configuration; Peers and BroadcastHost may omit the port
//
// Returns:
//   - *UDPLink: open link
//   - error: if an address cannot be resolved or the socket cannot be bound
func NewUDP(cfg UDPConfig) (*UDPLink, error) {
	port := Port(cfg.BasePort, cfg.Channel)

	l := &UDPLink{
		cfg:    cfg,
		logger: cfg.Logger,
		peers:  make(map[Addr]*net.UDPAddr, len(cfg.Peers)),
	}
	if l.logger == nil {
		l.logger = noopLogger{}
	}

	for hw, host := range cfg.Peers {
		ua, err := resolve(host, port)
		if err != nil {
			return nil, fmt.Errorf("resolving peer %s: %w", hw, err)
		}
		l.peers[hw] = ua
	}
	if cfg.BroadcastHost != "" {
		ua, err := resolve(cfg.BroadcastHost, port)
		if err != nil {
			return nil, fmt.Errorf("resolving broadcast host: %w", err)
		}
		l.broadcast = ua
	}

	bindPort := 0
	if cfg.Listen {
		bindPort = port
	}
	bind, err := net.ResolveUDPAddr("udp4", net.JoinHostPort(cfg.BindHost, strconv.Itoa(bindPort)))
	if err != nil {
		return nil, fmt.Errorf("resolving bind address: %w", err)
	}
	conn, err := net.ListenUDP("udp4", bind)
	if err != nil {
		return nil, fmt.Errorf("binding udp %s: %w", bind, err)
	}
	l.conn = conn

	return l, nil
}

func resolve(host string, defaultPort int) (*net.UDPAddr, error) {
	if _, _, err := net.SplitHostPort(host); err != nil {
		host = net.JoinHostPort(host, strconv.Itoa(defaultPort))
	}
	return net.ResolveUDPAddr("udp4", host)
}

// Send transmits one frame. Unknown destinations fail with ErrUnknownPeer.
func (l *UDPLink) Send(ctx context.Context, dst Addr, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	target := l.peers[dst]
	if dst.IsBroadcast() {
		target = l.broadcast
	}
	if target == nil {
		return fmt.Errorf("%w: %s", ErrUnknownPeer, dst)
	}

	frame, err := encodeFrame(dst, l.cfg.Local, payload)
	if err != nil {
		return err
	}

	if _, err := l.conn.WriteToUDP(frame, target); err != nil {
		if errors.Is(err, net.ErrClosed) {
			return ErrClosed
		}
		return fmt.Errorf("radio: send to %s: %w", dst, err)
	}
	return nil
}

// Listen reads frames until ctx is cancelled or the link is closed.
// Frames for other nodes, frames from this node, and malformed frames are
// dropped.
func (l *UDPLink) Listen(ctx context.Context, h Handler) error {
	go func() {
		<-ctx.Done()
		l.Close() //nolint:errcheck // unblocks ReadFromUDP
	}()

	buf := make([]byte, readBufferSize)
	for {
		n, from, err := l.conn.ReadFromUDP(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return ErrClosed
			}
			l.logger.Warn("radio read failed", "error", err)
			continue
		}

		dst, src, payload, err := decodeFrame(buf[:n])
		if err != nil {
			l.logger.Debug("radio frame dropped", "from", from.String(), "error", err)
			continue
		}
		if src == l.cfg.Local || !accepts(l.cfg.Local, dst) {
			continue
		}
		h(payload, src)
	}
}

// LocalAddr returns this node's hardware address.
func (l *UDPLink) LocalAddr() Addr {
	return l.cfg.Local
}

// Channel returns the configured channel.
func (l *UDPLink) Channel() uint8 {
	return l.cfg.Channel
}

// BoundAddr returns the local UDP address of the socket.
func (l *UDPLink) BoundAddr() *net.UDPAddr {
	ua, _ := l.conn.LocalAddr().(*net.UDPAddr)
	return ua
}

// Close releases the socket. It is safe to call more than once.
func (l *UDPLink) Close() error {
	var err error
	l.closeOnce.Do(func() {
		err = l.conn.Close()
	})
	return err
}
