// Package protocol defines the command packet shared by the coordinator and
// the panels, and the codec between a validated show request and its fixed
// wire layout.
//
// A Packet is always PacketSize bytes on the wire:
//
//	Byte 0:     panelId      (0 = broadcast, else panel id)
//	Byte 1:     mode         (0 direct, 1 sequence, 2 group)
//	Byte 2:     sequenceId
//	Byte 3:     groupId
//	Byte 4-6:   regionMask   (bit i of byte i/8 selects region i, LSB first)
//	Byte 7:     effectType
//	Byte 8:     brightness   (0-255)
//	Byte 9:     speed        (0-100)
//	Byte 10:    step
//	Byte 11:    audioReactive (0 or 1)
//	Byte 12:    audioIntensity (0-255)
//
// Encode never fails: absent request fields take their documented defaults
// and out-of-range values are clamped here so that receivers never have to.
// Decode fails only with ErrSizeMismatch.
package protocol
