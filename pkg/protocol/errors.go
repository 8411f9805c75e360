package protocol

import "errors"

// ErrConnectionLost is returned to every pending outgoing call when the
// transport closes, per spec.md 4.B: "fail pending calls with
// connection-lost on disconnect."
var ErrConnectionLost = errors.New("protocol: connection lost")

// ErrNotConnected is returned by CallRemote when the connection has not
// reached the Connected state.
var ErrNotConnected = errors.New("protocol: not connected")

// ErrAlreadyConnected reports a state machine already past Unconnected.
// No function in this package returns it; Start does not check the
// current state.
var ErrAlreadyConnected = errors.New("protocol: already connected")
