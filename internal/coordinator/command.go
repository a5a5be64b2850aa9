package coordinator

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ta25stage/stagelink/internal/protocol"
	"github.com/ta25stage/stagelink/internal/regions"
)

// ErrParse is returned for inbound messages that cannot become a command.
// The message is logged and dropped.
var ErrParse = errors.New("coordinator: malformed command")

// commandMessage is the inbound JSON shape. Pointer fields distinguish
// "absent" from zero.
type commandMessage struct {
	PanelID        *int   `json:"panelId"`
	Mode           *int   `json:"mode"`
	SequenceID     int    `json:"sequenceId"`
	GroupID        int    `json:"groupId"`
	EffectType     *int   `json:"effectType"`
	Brightness     *int   `json:"brightness"`
	Speed          *int   `json:"speed"`
	Step           int    `json:"step"`
	Regions        *[]int `json:"regions"`
	AudioReactive  bool   `json:"audioReactive"`
	AudioIntensity int    `json:"audioIntensity"`
}

// TopicPanel extracts a panel id from a topic. ok is false when the topic
// does not carry one.
type TopicPanel func(topic string) (panelID int, ok bool)

// ParseCommand validates one inbound command message.
//
// When the body has no panelId, the panel id is taken from the topic via
// fromTopic (nil means no topic fallback) and otherwise defaults to 0, all
// panels. In group mode the region list is replaced by the members of
// groupId. Range clamping of brightness, speed and the other fields is
// left to protocol.Encode.
func ParseCommand(topic string, payload []byte, fromTopic TopicPanel) (protocol.Request, error) {
	var msg commandMessage
	if len(payload) == 0 {
		return protocol.Request{}, fmt.Errorf("%w: empty payload", ErrParse)
	}
	if err := json.Unmarshal(payload, &msg); err != nil {
		return protocol.Request{}, fmt.Errorf("%w: %w", ErrParse, err)
	}

	req := protocol.Request{
		SequenceID:     msg.SequenceID,
		GroupID:        msg.GroupID,
		Step:           msg.Step,
		Effect:         msg.EffectType,
		Brightness:     msg.Brightness,
		Speed:          msg.Speed,
		AudioReactive:  msg.AudioReactive,
		AudioIntensity: msg.AudioIntensity,
	}

	switch {
	case msg.PanelID != nil:
		req.PanelID = *msg.PanelID
	case fromTopic != nil:
		if id, ok := fromTopic(topic); ok {
			req.PanelID = id
		}
	}
	if req.PanelID < 0 || req.PanelID > 255 {
		return protocol.Request{}, fmt.Errorf("%w: panelId %d out of range", ErrParse, req.PanelID)
	}

	mode := protocol.ModeDirect
	if msg.Mode != nil {
		switch m := *msg.Mode; m {
		case int(protocol.ModeDirect), int(protocol.ModeSequence), int(protocol.ModeGroup):
			mode = protocol.Mode(m)
		default:
			return protocol.Request{}, fmt.Errorf("%w: unknown mode %d", ErrParse, m)
		}
	}
	req.Mode = mode

	if msg.Regions != nil {
		req.Regions = *msg.Regions
		if req.Regions == nil {
			req.Regions = []int{}
		}
	}

	switch mode {
	case protocol.ModeGroup:
		tag, ok := regions.TagByID(msg.GroupID)
		if !ok {
			return protocol.Request{}, fmt.Errorf("%w: unknown groupId %d", ErrParse, msg.GroupID)
		}
		members := regions.ByGroup(tag)
		req.Regions = make([]int, len(members))
		for i, idx := range members {
			req.Regions[i] = int(idx)
		}
	case protocol.ModeSequence:
		if msg.SequenceID < 0 || msg.SequenceID > 255 {
			return protocol.Request{}, fmt.Errorf("%w: sequenceId %d out of range", ErrParse, msg.SequenceID)
		}
	}

	return req, nil
}

// audioMessage is the body of the audio topic.
type audioMessage struct {
	Intensity *int `json:"intensity"`
}

// ParseAudio reads the intensity from an audio message.
func ParseAudio(payload []byte) (int, error) {
	var msg audioMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrParse, err)
	}
	if msg.Intensity == nil {
		return 0, fmt.Errorf("%w: missing intensity", ErrParse)
	}
	return *msg.Intensity, nil
}
