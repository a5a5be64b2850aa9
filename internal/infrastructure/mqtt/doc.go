// Package mqtt provides MQTT client connectivity for the stagelink
// coordinator.
//
// This package manages:
//   - Single-attempt connections to the broker, driven by the coordinator's
//     connectivity supervisor
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support, restored on every connect
//   - Last Will and Testament (LWT) for offline detection
//
// # Topics
//
//	<prefix>/+/command   per-panel show commands (panel id in the topic)
//	<prefix>/command     show commands carrying their own panelId
//	<prefix>/audio       live audio intensity
//	<prefix>/telemetry   coordinator heartbeat
//	<prefix>/status      retained online/offline status
//
// # Usage
//
//	client := mqtt.New(cfg.MQTT)
//	_ = client.Subscribe(client.Topics().AllPanelCommands(), 1, handler)
//	if err := client.Connect(ctx); err != nil {
//	    // the supervisor backs off and retries
//	}
//	defer client.Close()
package mqtt
