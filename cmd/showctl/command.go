package main

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/ta25stage/stagelink/internal/coordinator"
	"github.com/ta25stage/stagelink/internal/infrastructure/config"
	"github.com/ta25stage/stagelink/internal/infrastructure/mqtt"
	"github.com/ta25stage/stagelink/internal/protocol"
	"github.com/ta25stage/stagelink/internal/regions"
)

const publishTimeout = 10 * time.Second

// publisher is the part of the MQTT client showctl uses.
type publisher interface {
	Connect(ctx context.Context) error
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Close() error
}

// newPublisher is replaced in tests.
var newPublisher = func(cfg config.MQTTConfig) publisher {
	return mqtt.NewQuiet(cfg)
}

// commandBody is the JSON command the coordinator accepts.
type commandBody struct {
	PanelID        *int   `json:"panelId,omitempty"`
	Mode           int    `json:"mode"`
	SequenceID     int    `json:"sequenceId,omitempty"`
	GroupID        *int   `json:"groupId,omitempty"`
	EffectType     *int   `json:"effectType,omitempty"`
	Brightness     *int   `json:"brightness,omitempty"`
	Speed          *int   `json:"speed,omitempty"`
	Regions        *[]int `json:"regions,omitempty"`
	AudioReactive  bool   `json:"audioReactive,omitempty"`
	AudioIntensity int    `json:"audioIntensity,omitempty"`
}

// commandFlags holds the flags shared by send and encode.
type commandFlags struct {
	panel      int
	topicPanel bool
	effect     string
	brightness int
	speed      int
	regions    []int
	group      string
	sequence   int
	audio      bool
	intensity  int
}

func (f *commandFlags) register(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.IntVarP(&f.panel, "panel", "p", 0, "Target panel id, 0 for all panels")
	fl.BoolVar(&f.topicPanel, "topic-panel", false, "Address the panel through its command topic instead of the body")
	fl.StringVarP(&f.effect, "effect", "e", "", "Effect name or number (static, pulse, wave, fade-in, fade-out, ...)")
	fl.IntVarP(&f.brightness, "brightness", "b", 0, "Brightness 0-255")
	fl.IntVarP(&f.speed, "speed", "s", 0, "Effect speed 0-100")
	fl.IntSliceVarP(&f.regions, "regions", "r", nil, "Region indices, for example 0,3,6 (empty for none)")
	fl.StringVarP(&f.group, "group", "g", "", "Cross-panel group name, for example RAAVANA")
	fl.IntVar(&f.sequence, "sequence", 0, "Show id to run")
	fl.BoolVar(&f.audio, "audio-reactive", false, "Follow the live audio intensity")
	fl.IntVar(&f.intensity, "intensity", 0, "Initial audio intensity 0-255")
	cmd.MarkFlagsMutuallyExclusive("regions", "group", "sequence")
}

// body builds the command from the flags that were set. Unset flags are
// left out so the coordinator applies its defaults.
func (f *commandFlags) body(cmd *cobra.Command) (commandBody, error) {
	changed := cmd.Flags().Changed
	b := commandBody{Mode: int(protocol.ModeDirect)}

	switch {
	case changed("sequence"):
		b.Mode = int(protocol.ModeSequence)
		b.SequenceID = f.sequence
	case changed("group"):
		tag, err := regions.ParseTag(f.group)
		if err != nil {
			return commandBody{}, err
		}
		b.Mode = int(protocol.ModeGroup)
		gid := int(tag)
		b.GroupID = &gid
	case changed("regions"):
		r := append([]int{}, f.regions...)
		b.Regions = &r
	}

	if f.topicPanel && !changed("panel") {
		return commandBody{}, fmt.Errorf("--topic-panel needs --panel")
	}
	if changed("panel") && !f.topicPanel {
		p := f.panel
		b.PanelID = &p
	}
	if changed("effect") {
		e, err := protocol.ParseEffect(f.effect)
		if err != nil {
			return commandBody{}, err
		}
		v := int(e)
		b.EffectType = &v
	}
	if changed("brightness") {
		v := f.brightness
		b.Brightness = &v
	}
	if changed("speed") {
		v := f.speed
		b.Speed = &v
	}
	b.AudioReactive = f.audio
	b.AudioIntensity = f.intensity
	return b, nil
}

// topic returns the topic the command is published on.
func (f *commandFlags) topic(t mqtt.Topics) string {
	if f.topicPanel {
		return t.PanelCommand(f.panel)
	}
	return t.Command()
}

// build marshals the command and checks it the way the coordinator will.
func (f *commandFlags) build(cmd *cobra.Command, t mqtt.Topics) (topic string, payload []byte, pkt protocol.Packet, err error) {
	b, err := f.body(cmd)
	if err != nil {
		return "", nil, protocol.Packet{}, err
	}
	payload, err = json.Marshal(b)
	if err != nil {
		return "", nil, protocol.Packet{}, fmt.Errorf("encoding command: %w", err)
	}
	topic = f.topic(t)
	req, err := coordinator.ParseCommand(topic, payload, t.PanelFromTopic)
	if err != nil {
		return "", nil, protocol.Packet{}, err
	}
	return topic, payload, protocol.Encode(req), nil
}

func newSendCmd(opts *globalOptions) *cobra.Command {
	flags := &commandFlags{}
	cmd := &cobra.Command{
		Use:   "send",
		Short: "Publish a lighting command to the coordinator",
		Example: `showctl send --panel 2 --effect pulse --brightness 200 --regions 5,6,7
showctl send --group RAAVANA --effect wave --speed 60
showctl send --sequence 2
showctl send --panel 4 --topic-panel --effect static --audio-reactive`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			topics := mqtt.Topics{Prefix: cfg.MQTT.TopicPrefix}
			topic, payload, _, err := flags.build(cmd, topics)
			if err != nil {
				return err
			}
			if err := publish(cmd.Context(), cfg.MQTT, topic, payload); err != nil {
				return err
			}
			return report(cmd, opts, topic, payload)
		},
	}
	flags.register(cmd)
	return cmd
}

func newAudioCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "audio INTENSITY",
		Short:   "Publish a live audio intensity (0-255)",
		Example: "showctl audio 180",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("intensity %q is not a number", args[0])
			}
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			payload, err := json.Marshal(map[string]int{"intensity": n})
			if err != nil {
				return err
			}
			topic := mqtt.Topics{Prefix: cfg.MQTT.TopicPrefix}.Audio()
			if err := publish(cmd.Context(), cfg.MQTT, topic, payload); err != nil {
				return err
			}
			return report(cmd, opts, topic, payload)
		},
	}
}

func newEncodeCmd(opts *globalOptions) *cobra.Command {
	flags := &commandFlags{}
	cmd := &cobra.Command{
		Use:     "encode",
		Short:   "Show the radio packet a command becomes, without sending it",
		Example: "showctl encode --group SYMBOL --effect pulse -o json",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			topic, payload, pkt, err := flags.build(cmd, mqtt.Topics{})
			if err != nil {
				return err
			}
			raw := pkt.Bytes()
			if opts.jsonOutput() {
				return printJSON(cmd.OutOrStdout(), map[string]any{
					"topic":   topic,
					"command": json.RawMessage(payload),
					"packet":  pkt.String(),
					"regions": regionList(pkt.Regions),
					"size":    len(raw),
					"hex":     hex.EncodeToString(raw),
				})
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "topic:   %s\n", topic)
			fmt.Fprintf(out, "command: %s\n", payload)
			fmt.Fprintf(out, "packet:  %s\n", pkt.String())
			fmt.Fprintf(out, "regions: %v\n", regionList(pkt.Regions))
			_, err = fmt.Fprintf(out, "bytes:   %d\n%s", len(raw), hex.Dump(raw))
			return err
		},
	}
	flags.register(cmd)
	return cmd
}

// publish connects, sends one message at the configured QoS and
// disconnects.
func publish(ctx context.Context, cfg config.MQTTConfig, topic string, payload []byte) error {
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	client := newPublisher(cfg)
	if err := client.Connect(ctx); err != nil {
		return fmt.Errorf("connecting to %s:%d: %w", cfg.Broker.Host, cfg.Broker.Port, err)
	}
	defer client.Close() //nolint:errcheck // best effort on a one-shot client

	if err := client.Publish(topic, payload, byte(cfg.QoS), false); err != nil { //nolint:gosec // validated 0-2
		return fmt.Errorf("publishing to %s: %w", topic, err)
	}
	return nil
}

func report(cmd *cobra.Command, opts *globalOptions, topic string, payload []byte) error {
	if opts.jsonOutput() {
		return printJSON(cmd.OutOrStdout(), map[string]any{
			"topic":   topic,
			"payload": json.RawMessage(payload),
		})
	}
	_, err := fmt.Fprintf(cmd.OutOrStdout(), "published to %s: %s\n", topic, payload)
	return err
}

func regionList(s regions.Set) []int {
	idx := s.Indices()
	out := make([]int, len(idx))
	for i, v := range idx {
		out[i] = int(v)
	}
	return out
}
