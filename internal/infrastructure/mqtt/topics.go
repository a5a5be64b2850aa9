package mqtt

import (
	"fmt"
	"strconv"
	"strings"
)

// DefaultTopicPrefix is the root of every show topic.
const DefaultTopicPrefix = "ta25stage"

// Topics provides builders for stagelink MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
//
//	topics := mqtt.Topics{Prefix: "ta25stage"}
//	topics.PanelCommand(2) // "ta25stage/2/command"
type Topics struct {
	Prefix string
}

func (t Topics) prefix() string {
	if t.Prefix == "" {
		return DefaultTopicPrefix
	}
	return t.Prefix
}

// PanelCommand returns the command topic for one panel.
//
// Example: ta25stage/2/command
func (t Topics) PanelCommand(panelID int) string {
	return fmt.Sprintf("%s/%d/command", t.prefix(), panelID)
}

// AllPanelCommands returns a pattern matching every per-panel command topic.
//
// Pattern: ta25stage/+/command
func (t Topics) AllPanelCommands() string {
	return fmt.Sprintf("%s/+/command", t.prefix())
}

// Command returns the topic for commands that carry their own panel id.
//
// Example: ta25stage/command
func (t Topics) Command() string {
	return fmt.Sprintf("%s/command", t.prefix())
}

// Audio returns the topic for live audio intensity updates.
//
// Example: ta25stage/audio
func (t Topics) Audio() string {
	return fmt.Sprintf("%s/audio", t.prefix())
}

// Telemetry returns the coordinator heartbeat topic.
//
// Example: ta25stage/telemetry
func (t Topics) Telemetry() string {
	return fmt.Sprintf("%s/telemetry", t.prefix())
}

// Status returns the retained online/offline status topic.
//
// Example: ta25stage/status
func (t Topics) Status() string {
	return fmt.Sprintf("%s/status", t.prefix())
}

// PanelFromTopic extracts the panel id from a per-panel command topic.
// It reports false for any other topic.
func (t Topics) PanelFromTopic(topic string) (int, bool) {
	rest, ok := strings.CutPrefix(topic, t.prefix()+"/")
	if !ok {
		return 0, false
	}
	seg, tail, ok := strings.Cut(rest, "/")
	if !ok || tail != "command" {
		return 0, false
	}
	id, err := strconv.Atoi(seg)
	if err != nil || id < 0 || id > 255 {
		return 0, false
	}
	return id, true
}
