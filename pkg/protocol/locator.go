package protocol

import (
	"context"

	"github.com/cuemby/vessel/pkg/wire"
)

// HandlerFunc implements one side of a command: decode has already run by
// the time it is called, encode of the result happens after it returns.
type HandlerFunc func(ctx context.Context, args map[string]any) (map[string]any, error)

// Handler pairs a command's wire argument/result shape with the function
// that implements it, grounded on spec.md 4.A's command table — each
// command names its own argument list and result shape.
type Handler struct {
	Args   []wire.ArgumentSpec
	Result []wire.ArgumentSpec
	Func   HandlerFunc
}

// Locator is the inbound command dispatch table named in spec.md 4.B: a
// command name maps to the handler that decodes its arguments, runs, and
// encodes its result. One Locator is shared by every Connection on a
// given side (control or agent).
type Locator struct {
	handlers map[string]Handler
}

// NewLocator returns an empty Locator.
func NewLocator() *Locator {
	return &Locator{handlers: map[string]Handler{}}
}

// Register adds or replaces the handler for command.
func (l *Locator) Register(command string, h Handler) {
	l.handlers[command] = h
}

func (l *Locator) lookup(command string) (Handler, bool) {
	h, ok := l.handlers[command]
	return h, ok
}
