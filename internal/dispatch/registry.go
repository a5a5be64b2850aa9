// Package dispatch resolves logical panel targets to radio addresses and
// transmits command packets, fire-and-forget.
package dispatch

import (
	"errors"
	"fmt"
	"sort"

	"github.com/ta25stage/stagelink/internal/protocol"
	"github.com/ta25stage/stagelink/internal/radio"
)

// Errors returned by the dispatcher.
var (
	// ErrUnknownPanel is returned when a packet targets a panel id that is
	// not in the registry. The packet is dropped.
	ErrUnknownPanel = errors.New("dispatch: unknown panel")

	// ErrTransmitSuspended is returned while the coordinator is parked in
	// low-power mode.
	ErrTransmitSuspended = errors.New("dispatch: transmit suspended")
)

// PanelAddr returns the built-in hardware address of a panel:
// aa:aa:aa:aa:aa:NN for panel NN.
func PanelAddr(id uint8) radio.Addr {
	return radio.Addr{0xaa, 0xaa, 0xaa, 0xaa, 0xaa, id}
}

// Registry maps panel ids to hardware addresses. It is built once at
// start-up and never changes.
type Registry struct {
	peers map[uint8]radio.Addr
}

// NewRegistry builds a registry for the given panel ids using their
// built-in addresses. Id 0 is reserved for broadcast and is ignored.
func NewRegistry(panels ...uint8) *Registry {
	r := &Registry{peers: make(map[uint8]radio.Addr, len(panels))}
	for _, id := range panels {
		if id == protocol.BroadcastPanel {
			continue
		}
		r.peers[id] = PanelAddr(id)
	}
	return r
}

// Resolve returns the hardware address of a panel.
func (r *Registry) Resolve(panelID uint8) (radio.Addr, error) {
	if panelID == protocol.BroadcastPanel {
		return radio.Broadcast, nil
	}
	addr, ok := r.peers[panelID]
	if !ok {
		return radio.Addr{}, fmt.Errorf("%w: %d", ErrUnknownPanel, panelID)
	}
	return addr, nil
}

// Panels returns the registered panel ids in ascending order.
func (r *Registry) Panels() []uint8 {
	out := make([]uint8, 0, len(r.peers))
	for id := range r.peers {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Addrs returns the address table, for building a link's peer routes.
func (r *Registry) Addrs() map[uint8]radio.Addr {
	out := make(map[uint8]radio.Addr, len(r.peers))
	for id, a := range r.peers {
		out[id] = a
	}
	return out
}
