package protocol

import "errors"

// ErrSizeMismatch is returned by Decode when the payload length differs
// from PacketSize.
var ErrSizeMismatch = errors.New("protocol: packet size mismatch")
