package supervisor

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
)

// ErrNotAssociated is returned by NetTransport.BringUp when the interface
// is still down.
var ErrNotAssociated = errors.New("supervisor: interface not associated")

// AlwaysAssociated is a Transport for hosts where the network is managed
// elsewhere.
type AlwaysAssociated struct{}

// Associated always reports true.
func (AlwaysAssociated) Associated() bool { return true }

// BringUp does nothing.
func (AlwaysAssociated) BringUp(context.Context) error { return nil }

// SignalStrength reports 0.
func (AlwaysAssociated) SignalStrength() int { return 0 }

// NetTransport watches a host network interface. It cannot reconfigure the
// interface; BringUp re-checks it so the watchdog can leave Degraded once
// the OS has restored the link.
type NetTransport struct {
	Interface string

	// WirelessPath is the kernel's wireless statistics file.
	WirelessPath string
}

// NewNetTransport watches the named interface.
func NewNetTransport(name string) *NetTransport {
	return &NetTransport{Interface: name, WirelessPath: "/proc/net/wireless"}
}

// Associated reports whether the interface is up and has an address.
func (t *NetTransport) Associated() bool {
	ifi, err := net.InterfaceByName(t.Interface)
	if err != nil || ifi.Flags&net.FlagUp == 0 {
		return false
	}
	addrs, err := ifi.Addrs()
	return err == nil && len(addrs) > 0
}

// BringUp re-checks association.
func (t *NetTransport) BringUp(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !t.Associated() {
		return fmt.Errorf("%w: %s", ErrNotAssociated, t.Interface)
	}
	return nil
}

// SignalStrength returns the link level in dBm from the wireless statistics
// file, or 0 when the interface is not wireless.
func (t *NetTransport) SignalStrength() int {
	f, err := os.Open(t.WirelessPath)
	if err != nil {
		return 0
	}
	defer f.Close()
	return parseWireless(bufio.NewScanner(f), t.Interface)
}

// parseWireless extracts the signal level column for iface, e.g.
//
//	wlan0: 0000   54.  -56.  -256        0      0      0      0    120        0
func parseWireless(sc *bufio.Scanner, iface string) int {
	for sc.Scan() {
		name, rest, ok := strings.Cut(strings.TrimSpace(sc.Text()), ":")
		if !ok || name != iface {
			continue
		}
		fields := strings.Fields(rest)
		if len(fields) < 3 {
			return 0
		}
		v, err := strconv.ParseFloat(strings.TrimSuffix(fields[2], "."), 64)
		if err != nil {
			return 0
		}
		return int(v)
	}
	return 0
}
