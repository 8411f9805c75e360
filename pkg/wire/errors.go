package wire

import "errors"

// ErrTypeMismatch is the core's type-error: an argument type was offered or
// received a value outside its permitted set (spec §7).
var ErrTypeMismatch = errors.New("wire: type mismatch")

// ErrUnknownCommand names an inbound command with no registered handler.
// No function in this module returns it: pkg/protocol's Connection answers
// such a request with an "unknown-command" error record instead.
var ErrUnknownCommand = errors.New("wire: unknown command")

// ErrEncode wraps a failure in an inner argument's Serialize call —
// spec §7's internal-encode-error.
var ErrEncode = errors.New("wire: encode failed")
