// Package radio is the point-to-multipoint link between the coordinator and
// the panels.
//
// The link is unacknowledged and at-most-once: Send hands a frame to the
// transport and returns; loss is invisible to the sender. Nodes are
// addressed by six-byte hardware addresses, with ff:ff:ff:ff:ff:ff reaching
// every node on the channel.
//
// The production transport (UDPLink) carries each frame in one UDP
// datagram. The channel selects the port, so nodes on different channels
// never hear each other:
//
//	Byte 0-5:   destination hardware address
//	Byte 6-11:  source hardware address
//	Byte 12+:   payload
//
// Receivers discard frames that are addressed neither to them nor to the
// broadcast address, as a radio MAC layer would.
//
// Package radiotest provides an in-process medium for tests.
package radio
