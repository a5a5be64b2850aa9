// Package panel runs one lighting panel: it accepts command packets from the
// radio link and renders the active effect onto the panel's regions.
//
// Two goroutines share the panel state. The radio listener calls
// Receiver.OnPacket for every inbound frame; the render loop in Agent.Run
// reads the state on every tick. The receiver validates a packet completely
// before publishing a new State with a single atomic pointer swap, so the
// renderer sees either the old state or the new one, never a mix.
//
// Typical wiring:
//
//	rx, _ := panel.NewReceiver(id, logger)
//	agent := panel.NewAgent(rx, actuator, panel.AgentConfig{}, logger)
//	go link.Listen(ctx, rx.OnPacket)
//	agent.Run(ctx)
package panel
