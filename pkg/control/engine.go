package control

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/cuemby/vessel/pkg/clusterstate"
	"github.com/cuemby/vessel/pkg/diff"
	"github.com/cuemby/vessel/pkg/genhash"
	"github.com/cuemby/vessel/pkg/log"
	"github.com/cuemby/vessel/pkg/metrics"
	"github.com/cuemby/vessel/pkg/model"
	"github.com/cuemby/vessel/pkg/protocol"
	"github.com/cuemby/vessel/pkg/wire"
)

// DefaultBatchingDelay is CONTROL_SERVICE_BATCHING_DELAY from spec.md 6: a
// sub-second window that coalesces a burst of configuration saves or
// state mutations into one broadcast.
const DefaultBatchingDelay = 200 * time.Millisecond

// ConfigSource is the read-only view of the authored configuration the
// broadcast engine observes. pkg/configstore's persisted Deployment store
// satisfies this; the engine never mutates it (spec.md 3: "the control
// service observes it read-only").
type ConfigSource interface {
	Current() model.Deployment
}

type connectionSlot struct {
	conn *protocol.Connection

	inFlight bool
	pending  *broadcastTarget
	lastSent *broadcastTarget

	peerConfigGen genhash.Generation
	peerStateGen  genhash.Generation
}

// Engine is the control-side broadcast engine from spec.md 4.F: it
// coalesces configuration/state changes behind a batching timer, keeps at
// most one outstanding send per connection with newest-wins supersession
// of anything that arrives while a send is in flight, and picks a diff or
// full send per connection based on that peer's last-acknowledged
// generations. Every field below is touched only from run's goroutine;
// everything else communicates with it over events.
type Engine struct {
	configSource ConfigSource
	clusterState *clusterstate.Store
	batchDelay   time.Duration
	logger       zerolog.Logger

	events  chan engineEvent
	stopCh  chan struct{}
	doneCh  chan struct{}
	stopped bool

	slots      map[uint64]*connectionSlot
	batchTimer *time.Timer
}

// NewEngine returns an Engine that has not yet been started.
func NewEngine(configSource ConfigSource, clusterState *clusterstate.Store, batchDelay time.Duration) *Engine {
	if batchDelay <= 0 {
		batchDelay = DefaultBatchingDelay
	}
	return &Engine{
		configSource: configSource,
		clusterState: clusterState,
		batchDelay:   batchDelay,
		logger:       log.WithComponent("control"),
		events:       make(chan engineEvent, 256),
		stopCh:       make(chan struct{}),
		doneCh:       make(chan struct{}),
		slots:        map[uint64]*connectionSlot{},
	}
}

// Start launches the engine's event loop. It does not block.
func (e *Engine) Start() {
	go e.run()
}

// Stop cancels the pending batching timer, closes every connection, and
// stops the event loop. No delayed broadcast fires after Stop returns
// (spec.md 4.F "Shutdown").
func (e *Engine) Stop() {
	close(e.stopCh)
	<-e.doneCh
}

// AddConnection registers conn with the engine and schedules it to
// receive the current full snapshot on the next batch pass.
func (e *Engine) AddConnection(conn *protocol.Connection) {
	e.send(connectionAddedEvent{conn: conn})
}

// RemoveConnection drops conn's slot. It does not close the connection —
// callers close it themselves (or it is already closed, which is usually
// why it is being removed).
func (e *Engine) RemoveConnection(connID uint64) {
	e.send(connectionRemovedEvent{connID: connID})
}

// NotifyChange signals that the configuration or cluster state changed,
// scheduling a broadcast pass after the batching delay unless one is
// already pending.
func (e *Engine) NotifyChange() {
	e.send(changeEvent{})
}

// Touch refreshes every cluster-state slot owned by connID, per spec.md
// 4.E — called from a connection's OnActivity hook on every inbound frame.
func (e *Engine) Touch(connID clusterstate.ConnectionID) {
	e.send(touchEvent{connID: connID})
}

// ApplyNodeState funnels a decoded NodeState command onto the event loop
// and blocks until the store has absorbed it.
func (e *Engine) ApplyNodeState(changes []clusterstate.Change, connID clusterstate.ConnectionID) {
	done := make(chan struct{})
	e.send(applyChangesEvent{changes: changes, connID: connID, done: done})
	<-done
}

// SetNodeEra funnels a decoded SetNodeEra command onto the event loop.
func (e *Engine) SetNodeEra(nodeUUID, era string, connID clusterstate.ConnectionID) {
	done := make(chan struct{})
	e.send(setEraEvent{nodeUUID: nodeUUID, era: era, connID: connID, done: done})
	<-done
}

func (e *Engine) send(ev engineEvent) {
	select {
	case e.events <- ev:
	case <-e.doneCh:
		e.logger.Debug().Msg("dropped event after engine stop")
	}
}

func (e *Engine) run() {
	defer close(e.doneCh)
	for {
		var timerC <-chan time.Time
		if e.batchTimer != nil {
			timerC = e.batchTimer.C
		}
		select {
		case ev := <-e.events:
			e.handle(ev)
		case <-timerC:
			e.batchTimer = nil
			e.broadcastPass()
		case <-e.stopCh:
			e.shutdown()
			return
		}
	}
}

func (e *Engine) shutdown() {
	e.stopped = true
	if e.batchTimer != nil {
		e.batchTimer.Stop()
		e.batchTimer = nil
	}
	for _, slot := range e.slots {
		_ = slot.conn.Close()
	}
}

func (e *Engine) handle(ev engineEvent) {
	switch v := ev.(type) {
	case connectionAddedEvent:
		e.slots[v.conn.ID()] = &connectionSlot{conn: v.conn}
		e.scheduleBatch()
	case connectionRemovedEvent:
		delete(e.slots, v.connID)
	case changeEvent:
		e.scheduleBatch()
	case touchEvent:
		e.clusterState.Touch(v.connID, time.Now())
	case applyChangesEvent:
		if e.clusterState.ApplyChanges(v.changes, v.connID, time.Now()) {
			e.scheduleBatch()
		}
		close(v.done)
	case setEraEvent:
		e.clusterState.SetNodeEra(v.nodeUUID, v.era, v.connID, time.Now())
		close(v.done)
	case sendResultEvent:
		e.handleSendResult(v)
	case retrySendEvent:
		if slot, ok := e.slots[v.connID]; ok && !slot.inFlight && !targetsEqual(slot.lastSent, v.target) {
			e.sendToConnection(slot, v.target, wire.NewEncodeCache())
		}
	}
}

func (e *Engine) scheduleBatch() {
	if e.batchTimer != nil || e.stopped {
		return
	}
	e.batchTimer = time.NewTimer(e.batchDelay)
}

// broadcastPass implements spec.md 4.F's per-pass fan-out: build one
// (configuration, state) target shared by every connection this pass, so
// the wire-level encode cache can hit across connections, then for each
// connection either send now, queue as pending (newest-wins) if a send is
// already in flight, or skip if nothing changed since the last send.
func (e *Engine) broadcastPass() {
	metrics.BroadcastPassesTotal.Inc()
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.BroadcastPassDuration)

	now := time.Now()
	cfg := e.configSource.Current()
	state := e.clusterState.AsDeployment(now)
	target := &broadcastTarget{config: &cfg, state: &state}
	cache := wire.NewEncodeCache()

	action := log.WithAction("LOG_SEND_CLUSTER_STATE")
	sent := 0
	for _, slot := range e.slots {
		if slot.inFlight {
			if slot.pending != nil {
				metrics.BroadcastPendingSuperseded.Inc()
			}
			slot.pending = target
			continue
		}
		if targetsEqual(slot.lastSent, target) {
			continue
		}
		e.sendToConnection(slot, target, cache)
		sent++
	}
	action.Info().Int("connections", len(e.slots)).Int("sent", sent).Msg("broadcast pass complete")
}

// canDiff reports whether slot's last-sent documents are still a valid
// diff base: the peer must have acknowledged generations matching exactly
// what was last sent.
func canDiff(slot *connectionSlot) bool {
	if slot.lastSent == nil {
		return false
	}
	if slot.peerConfigGen.IsZero() || slot.peerStateGen.IsZero() {
		return false
	}
	return slot.peerConfigGen == genhash.HashDeployment(*slot.lastSent.config) &&
		slot.peerStateGen == genhash.HashDeploymentState(*slot.lastSent.state)
}

func (e *Engine) sendToConnection(slot *connectionSlot, target *broadcastTarget, cache *wire.EncodeCache) {
	slot.inFlight = true
	connID := slot.conn.ID()
	endCGen := genhash.HashDeployment(*target.config)
	endSGen := genhash.HashDeploymentState(*target.state)

	var (
		command   string
		args      map[string]any
		argSpecs  []wire.ArgumentSpec
		kind      string
		startCGen genhash.Generation
		startSGen genhash.Generation
	)
	resultSpecs := wire.ClusterStatusResultArgs()

	if canDiff(slot) {
		kind = "diff"
		startCGen, startSGen = slot.peerConfigGen, slot.peerStateGen
		diffTimer := metrics.NewTimer()
		configDiff := diff.ComputeDeployment(*slot.lastSent.config, *target.config)
		stateDiff := diff.ComputeDeploymentState(*slot.lastSent.state, *target.state)
		diffTimer.ObserveDuration(metrics.DiffComputeDuration)
		metrics.DiffEntriesTotal.Observe(float64(len(configDiff.Entries) +
			len(stateDiff.NodeStates) + len(stateDiff.NonManifest) + len(stateDiff.Eras)))
		command = protocol.CommandClusterStatusDiff
		argSpecs = wire.ClusterStatusDiffArgs(cache)
		args = map[string]any{
			"configuration_diff":             &configDiff,
			"start_configuration_generation": startCGen,
			"end_configuration_generation":   endCGen,
			"state_diff":                     &stateDiff,
			"start_state_generation":         startSGen,
			"end_state_generation":           endSGen,
			"eliot_context":                  []byte{},
		}
	} else {
		kind = "full"
		command = protocol.CommandClusterStatus
		argSpecs = wire.ClusterStatusArgs(cache)
		args = map[string]any{
			"configuration":            target.config,
			"configuration_generation": endCGen,
			"state":                    target.state,
			"state_generation":         endSGen,
			"eliot_context":            []byte{},
		}
	}

	log.WithAction("LOG_SEND_TO_AGENT").Debug().
		Uint64("connection_id", connID).Str("kind", kind).Msg("sending cluster status")

	conn := slot.conn
	events := e.events
	doneCh := e.doneCh
	go func() {
		// No additional timeout beyond the idle-abort clock — spec.md 5:
		// "In-flight callRemote has no additional timeout beyond the
		// idle-abort; a dead peer is caught by the ping clock."
		result, err := conn.CallRemote(context.Background(), command, argSpecs, args, resultSpecs)
		ev := sendResultEvent{connID: connID, kind: kind, target: target, startCGen: startCGen, startSGen: startSGen, result: result, err: err}
		select {
		case events <- ev:
		case <-doneCh:
		}
	}()
}

func (e *Engine) handleSendResult(ev sendResultEvent) {
	slot, ok := e.slots[ev.connID]
	if !ok {
		return // connection was removed while the call was in flight
	}
	slot.inFlight = false

	if ev.err != nil {
		metrics.BroadcastSendsTotal.WithLabelValues(ev.kind, "failure").Inc()
		log.WithAction("LOG_SEND_TO_AGENT").Warn().
			Uint64("connection_id", ev.connID).Err(ev.err).Msg("peer-call-failure")
	} else {
		metrics.BroadcastSendsTotal.WithLabelValues(ev.kind, "success").Inc()
		newCGen, _ := ev.result["current_configuration_generation"].(genhash.Generation)
		newSGen, _ := ev.result["current_state_generation"].(genhash.Generation)

		rejected := ev.kind == "diff" && newCGen == ev.startCGen && newSGen == ev.startSGen
		if rejected {
			// Peer rejected the diff for a start-generation mismatch and
			// echoed back what it actually holds; fall back to a full
			// send next time by forgetting our diff base (spec.md 4.F).
			metrics.DiffRejectionsTotal.Inc()
			slot.lastSent = nil
			log.WithAction("LOG_SEND_TO_AGENT").Warn().
				Uint64("connection_id", ev.connID).Msg("diff rejected by peer, falling back to full send")
		} else {
			slot.lastSent = ev.target
		}
		slot.peerConfigGen = newCGen
		slot.peerStateGen = newSGen
	}

	// A failed send must not stall the queue — treat it the same as
	// success for the purposes of draining pending (spec.md 4.F).
	if slot.pending != nil {
		pending := slot.pending
		slot.pending = nil
		if !targetsEqual(slot.lastSent, pending) {
			e.scheduleRetry(slot, pending)
		}
	}
}

// scheduleRetry re-sends a superseded pending target to one connection
// after the batching delay, per spec.md 4.F: "a new send is scheduled via
// the same batching delay."
func (e *Engine) scheduleRetry(slot *connectionSlot, target *broadcastTarget) {
	connID := slot.conn.ID()
	events := e.events
	doneCh := e.doneCh
	time.AfterFunc(e.batchDelay, func() {
		select {
		case events <- retrySendEvent{connID: connID, target: target}:
		case <-doneCh:
		}
	})
}
