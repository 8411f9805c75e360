package protocol

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/cuemby/vessel/pkg/metrics"
	"github.com/cuemby/vessel/pkg/wire"
)

// DefaultPingInterval is PING_INTERVAL from spec.md 6: a small number of
// seconds. Idle-abort fires at twice this, giving a peer one missed ping
// of slack.
const DefaultPingInterval = 5 * time.Second

// State is a Connection's position in the {Unconnected, Connected,
// Disconnecting, Closed} machine from spec.md 4.B. Commands may only be
// issued or dispatched while Connected.
type State int32

const (
	StateUnconnected State = iota
	StateConnected
	StateDisconnecting
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUnconnected:
		return "unconnected"
	case StateConnected:
		return "connected"
	case StateDisconnecting:
		return "disconnecting"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Config configures a Connection.
type Config struct {
	// ID overrides the auto-assigned connection ID; zero means reserve a
	// fresh one. See NextConnectionID.
	ID uint64
	// PingInterval overrides DefaultPingInterval; zero means use the default.
	PingInterval time.Duration
	// Locator dispatches inbound requests. Required.
	Locator *Locator
	Logger  zerolog.Logger
	// OnActivity is called after every frame this connection successfully
	// reads, request or response — the hook the owning side uses to touch
	// the cluster-state store's per-connection last-activity.
	OnActivity func()
	// OnClose is called once, with the error that ended the connection
	// (nil for a clean Close()).
	OnClose func(err error)
}

type pendingCall struct {
	resultSpecs []wire.ArgumentSpec
	respCh      chan callResponse
}

type callResponse struct {
	result map[string]any
	err    error
}

var nextConnectionID atomic.Uint64

// Connection is one side's view of a framed, bidirectional session: it
// dispatches inbound requests to a Locator, tracks outgoing calls by
// correlation id, and runs the ping and idle-abort timers from spec.md
// 4.B. A Connection is shared by the owner that holds it in a connection
// set and by its own read loop; it removes itself from nothing — the
// owner observes OnClose and does the bookkeeping.
type Connection struct {
	id     uint64
	conn   net.Conn
	cfg    Config
	logger zerolog.Logger

	writeMu sync.Mutex

	mu                sync.Mutex
	state             State
	nextCorrelationID uint64
	pending           map[uint64]*pendingCall

	idleTimer *time.Timer
	doneCh    chan struct{}
	closeOnce sync.Once
}

// NextConnectionID reserves a connection ID without constructing a
// Connection yet. Callers that need to build a Connection's Locator with
// the connection's own ID baked in (pkg/control associates every
// cluster-state mutation with the connection that caused it) reserve the
// ID first and pass it back in Config.ID.
func NextConnectionID() uint64 {
	return nextConnectionID.Add(1)
}

// NewConnection wraps conn. Call Start to begin serving it. If cfg.ID is
// zero, a fresh ID is reserved; otherwise cfg.ID is used as-is (normally
// one obtained from a prior NextConnectionID call).
func NewConnection(conn net.Conn, cfg Config) *Connection {
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = DefaultPingInterval
	}
	if cfg.Locator == nil {
		cfg.Locator = NewLocator()
	}
	id := cfg.ID
	if id == 0 {
		id = nextConnectionID.Add(1)
	}
	return &Connection{
		id:      id,
		conn:    conn,
		cfg:     cfg,
		logger:  cfg.Logger,
		pending: map[uint64]*pendingCall{},
		doneCh:  make(chan struct{}),
	}
}

// ID identifies this connection for logging and for clusterstate's
// per-connection ownership tracking.
func (c *Connection) ID() uint64 {
	return c.id
}

// RemoteAddr returns the underlying transport's remote address.
func (c *Connection) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

// State reports the connection's current position in the state machine.
func (c *Connection) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Start transitions the connection to Connected and launches its read and
// ping loops. It does not block.
func (c *Connection) Start() {
	c.mu.Lock()
	c.state = StateConnected
	c.mu.Unlock()

	c.idleTimer = time.AfterFunc(2*c.cfg.PingInterval, c.idleAbort)
	metrics.ConnectionsAcceptedTotal.Inc()

	go c.readLoop()
	go c.pingLoop()
}

// Close ends the connection cleanly, failing any pending calls with
// ErrConnectionLost. Idempotent.
func (c *Connection) Close() error {
	c.teardown(nil)
	return nil
}

// CallRemote issues an outgoing call and blocks for its response or for
// ctx to end. argSpecs/resultSpecs describe the command's wire shape; args
// may be nil for a command that takes none.
func (c *Connection) CallRemote(ctx context.Context, command string, argSpecs []wire.ArgumentSpec, args map[string]any, resultSpecs []wire.ArgumentSpec) (map[string]any, error) {
	c.mu.Lock()
	if c.state != StateConnected {
		c.mu.Unlock()
		return nil, ErrNotConnected
	}
	c.nextCorrelationID++
	id := c.nextCorrelationID
	respCh := make(chan callResponse, 1)
	c.pending[id] = &pendingCall{resultSpecs: resultSpecs, respCh: respCh}
	c.mu.Unlock()

	box, err := wire.EncodeArguments(argSpecs, args)
	if err != nil {
		c.dropPending(id)
		return nil, fmt.Errorf("protocol: encode %s arguments: %w", command, err)
	}

	if err := c.writeRecord(wire.Record{
		Kind:          wire.RecordRequest,
		CorrelationID: id,
		Command:       command,
		Box:           box,
	}); err != nil {
		c.dropPending(id)
		return nil, err
	}

	select {
	case resp := <-respCh:
		return resp.result, resp.err
	case <-ctx.Done():
		c.dropPending(id)
		return nil, ctx.Err()
	case <-c.doneCh:
		return nil, ErrConnectionLost
	}
}

func (c *Connection) dropPending(id uint64) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

func (c *Connection) readLoop() {
	reader := &idleResetReader{r: c.conn, onRead: c.resetIdleTimer}
	for {
		rec, err := wire.ReadFrame(reader)
		if err != nil {
			c.teardown(err)
			return
		}
		c.handleRecord(rec)
		if c.cfg.OnActivity != nil {
			c.cfg.OnActivity()
		}
	}
}

func (c *Connection) handleRecord(rec wire.Record) {
	switch rec.Kind {
	case wire.RecordRequest:
		c.handleRequest(rec)
	case wire.RecordAnswer, wire.RecordError:
		c.handleResponse(rec)
	}
}

func (c *Connection) handleRequest(rec wire.Record) {
	handler, ok := c.cfg.Locator.lookup(rec.Command)
	if !ok {
		c.writeError(rec.CorrelationID, "unknown-command", fmt.Sprintf("no handler registered for %q", rec.Command))
		return
	}

	args, err := wire.DecodeArguments(handler.Args, rec.Box)
	if err != nil {
		c.writeError(rec.CorrelationID, "type-error", err.Error())
		return
	}

	result, err := handler.Func(context.Background(), args)
	if err != nil {
		c.writeError(rec.CorrelationID, "internal-error", err.Error())
		return
	}

	box, err := wire.EncodeArguments(handler.Result, result)
	if err != nil {
		c.writeError(rec.CorrelationID, "internal-encode-error", err.Error())
		return
	}

	if rec.CorrelationID == 0 {
		return
	}
	if err := c.writeRecord(wire.Record{Kind: wire.RecordAnswer, CorrelationID: rec.CorrelationID, Box: box}); err != nil {
		c.logger.Debug().Err(err).Str("command", rec.Command).Msg("failed to write answer")
	}
}

func (c *Connection) handleResponse(rec wire.Record) {
	c.mu.Lock()
	call, ok := c.pending[rec.CorrelationID]
	if ok {
		delete(c.pending, rec.CorrelationID)
	}
	c.mu.Unlock()
	if !ok {
		return
	}

	if rec.Kind == wire.RecordError {
		call.respCh <- callResponse{err: fmt.Errorf("protocol: peer error [%s]: %s", rec.ErrorCode, rec.ErrorMessage)}
		return
	}

	result, err := wire.DecodeArguments(call.resultSpecs, rec.Box)
	call.respCh <- callResponse{result: result, err: err}
}

func (c *Connection) pingLoop() {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if c.State() != StateConnected {
				return
			}
			ctx, cancel := context.WithTimeout(context.Background(), c.cfg.PingInterval)
			_, err := c.CallRemote(ctx, CommandNoOp, nil, nil, nil)
			cancel()
			if err != nil && c.State() == StateConnected {
				c.logger.Debug().Err(err).Msg("ping failed")
			}
		case <-c.doneCh:
			return
		}
	}
}

func (c *Connection) resetIdleTimer() {
	if c.idleTimer != nil {
		c.idleTimer.Reset(2 * c.cfg.PingInterval)
	}
}

func (c *Connection) idleAbort() {
	metrics.IdleAbortsTotal.Inc()
	c.logger.Warn().Uint64("connection_id", c.id).Msg("idle timeout exceeded, aborting connection")
	c.teardown(errors.New("protocol: idle timeout exceeded"))
}

func (c *Connection) writeRecord(rec wire.Record) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return wire.WriteFrame(c.conn, rec)
}

func (c *Connection) writeError(correlationID uint64, code, message string) {
	if correlationID == 0 {
		return
	}
	_ = c.writeRecord(wire.Record{Kind: wire.RecordError, CorrelationID: correlationID, ErrorCode: code, ErrorMessage: message})
}

// teardown runs the disconnect sequence exactly once: cancel timers, close
// the transport, fail every pending call with connection-lost, and notify
// OnClose.
func (c *Connection) teardown(cause error) {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.state = StateDisconnecting
		pending := c.pending
		c.pending = map[uint64]*pendingCall{}
		c.mu.Unlock()

		if c.idleTimer != nil {
			c.idleTimer.Stop()
		}
		close(c.doneCh)
		_ = c.conn.Close()

		for _, call := range pending {
			call.respCh <- callResponse{err: ErrConnectionLost}
		}

		c.mu.Lock()
		c.state = StateClosed
		c.mu.Unlock()

		if c.cfg.OnClose != nil {
			c.cfg.OnClose(cause)
		}
	})
}

// idleResetReader wraps a net.Conn's read side so every inbound byte —
// not just every complete frame — resets the idle-abort timer, matching
// spec.md 4.B's "on every inbound byte" rule.
type idleResetReader struct {
	r      net.Conn
	onRead func()
}

func (ir *idleResetReader) Read(p []byte) (int, error) {
	n, err := ir.r.Read(p)
	if n > 0 && ir.onRead != nil {
		ir.onRead()
	}
	return n, err
}
