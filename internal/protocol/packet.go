package protocol

import (
	"fmt"

	"github.com/ta25stage/stagelink/internal/regions"
)

// maskBytes is the width of the region bitmask on the wire.
const maskBytes = (regions.MaxRegions + 7) / 8

// PacketSize is the exact wire size of a Packet.
const PacketSize = 4 + maskBytes + 6

// Request is a validated show command before encoding. Pointer fields are
// optional; nil selects the protocol default.
type Request struct {
	PanelID    int
	Mode       Mode
	SequenceID int
	GroupID    int
	Step       int

	// Effect holds a raw effect number. Unknown values encode as static.
	Effect     *int
	Brightness *int
	Speed      *int

	// Regions lists global region indices. A nil slice enables every
	// region; an empty non-nil slice enables none. Indices outside the
	// region table are ignored.
	Regions []int

	AudioReactive  bool
	AudioIntensity int
}

// Int returns a pointer to v, for filling optional Request fields.
func Int(v int) *int {
	return &v
}

// Packet is one command as carried over the radio link.
type Packet struct {
	PanelID        uint8
	Mode           Mode
	SequenceID     uint8
	GroupID        uint8
	Regions        regions.Set
	Effect         EffectType
	Brightness     uint8
	Speed          uint8
	Step           uint8
	AudioReactive  bool
	AudioIntensity uint8
}

// Encode turns a request into a packet, filling defaults and clamping every
// field to its wire range.
func Encode(req Request) Packet {
	p := Packet{
		PanelID:        clampByte(req.PanelID),
		Mode:           Mode(clampByte(int(req.Mode))),
		SequenceID:     clampByte(req.SequenceID),
		GroupID:        clampByte(req.GroupID),
		Step:           clampByte(req.Step),
		Effect:         DefaultEffect,
		Brightness:     DefaultBrightness,
		Speed:          DefaultSpeed,
		AudioReactive:  req.AudioReactive,
		AudioIntensity: clampByte(req.AudioIntensity),
	}

	if req.Effect != nil {
		if e := *req.Effect; e >= 0 && e < int(numEffects) {
			p.Effect = EffectType(e)
		}
	}
	if req.Brightness != nil {
		p.Brightness = clampByte(*req.Brightness)
	}
	if req.Speed != nil {
		p.Speed = uint8(clamp(*req.Speed, 0, MaxSpeed))
	}

	if req.Regions == nil {
		p.Regions = regions.AllRegions
	} else {
		for _, r := range req.Regions {
			if r >= 0 && r < regions.MaxRegions {
				p.Regions = p.Regions.Add(regions.Index(r))
			}
		}
	}

	return p
}

// Bytes returns the wire form of the packet.
func (p Packet) Bytes() []byte {
	b := make([]byte, PacketSize)
	b[0] = p.PanelID
	b[1] = byte(p.Mode)
	b[2] = p.SequenceID
	b[3] = p.GroupID
	for i := 0; i < maskBytes; i++ {
		b[4+i] = byte(p.Regions >> (8 * i))
	}
	o := 4 + maskBytes
	b[o] = byte(p.Effect)
	b[o+1] = p.Brightness
	b[o+2] = p.Speed
	b[o+3] = p.Step
	if p.AudioReactive {
		b[o+4] = 1
	}
	b[o+5] = p.AudioIntensity
	return b
}

// MarshalBinary implements encoding.BinaryMarshaler. It never fails.
func (p Packet) MarshalBinary() ([]byte, error) {
	return p.Bytes(), nil
}

// Decode parses a wire packet.
//
// Mask bits beyond the region table are discarded. Field values are taken
// as sent; no other validation happens here.
//
// Returns:
//   - Packet: the decoded packet
//   - error: ErrSizeMismatch if len(data) != PacketSize
func Decode(data []byte) (Packet, error) {
	if len(data) != PacketSize {
		return Packet{}, fmt.Errorf("%w: got %d bytes, want %d", ErrSizeMismatch, len(data), PacketSize)
	}

	var mask regions.Set
	for i := 0; i < maskBytes; i++ {
		mask |= regions.Set(data[4+i]) << (8 * i)
	}
	o := 4 + maskBytes

	return Packet{
		PanelID:        data[0],
		Mode:           Mode(data[1]),
		SequenceID:     data[2],
		GroupID:        data[3],
		Regions:        mask & regions.AllRegions,
		Effect:         EffectType(data[o]),
		Brightness:     data[o+1],
		Speed:          data[o+2],
		Step:           data[o+3],
		AudioReactive:  data[o+4] != 0,
		AudioIntensity: data[o+5],
	}, nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (p *Packet) UnmarshalBinary(data []byte) error {
	d, err := Decode(data)
	if err != nil {
		return err
	}
	*p = d
	return nil
}

// Addressed reports whether a panel with the given id should accept p.
func (p Packet) Addressed(panelID uint8) bool {
	return p.PanelID == BroadcastPanel || p.PanelID == panelID
}

// String formats the packet for logs.
func (p Packet) String() string {
	return fmt.Sprintf("panel=%d mode=%s effect=%s brightness=%d speed=%d regions=%v seq=%d step=%d audio=%t/%d",
		p.PanelID, p.Mode, p.Effect, p.Brightness, p.Speed, p.Regions.Indices(),
		p.SequenceID, p.Step, p.AudioReactive, p.AudioIntensity)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampByte(v int) uint8 {
	return uint8(clamp(v, 0, 255))
}
