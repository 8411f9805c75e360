package control

import (
	"github.com/cuemby/vessel/pkg/clusterstate"
	"github.com/cuemby/vessel/pkg/genhash"
	"github.com/cuemby/vessel/pkg/model"
	"github.com/cuemby/vessel/pkg/protocol"
)

// engineEvent is the tagged union of everything that crosses onto the
// engine's single run loop goroutine, matching spec.md 5's "cluster-state
// store: mutated only on the event loop" by funneling every connection's
// read-loop-driven mutation through one channel instead of locking shared
// maps from many goroutines.
type engineEvent interface {
	isEngineEvent()
}

type connectionAddedEvent struct {
	conn *protocol.Connection
}

func (connectionAddedEvent) isEngineEvent() {}

type connectionRemovedEvent struct {
	connID uint64
}

func (connectionRemovedEvent) isEngineEvent() {}

// changeEvent signals that the configuration or cluster state changed and
// a broadcast should be scheduled. It carries no payload — broadcastPass
// always reads the latest documents fresh.
type changeEvent struct{}

func (changeEvent) isEngineEvent() {}

// applyChangesEvent carries a decoded NodeState command onto the loop.
// done is closed once the store has been mutated, so the Locator handler
// that produced this event can return its (empty) result to the caller.
type applyChangesEvent struct {
	changes []clusterstate.Change
	connID  clusterstate.ConnectionID
	done    chan struct{}
}

func (applyChangesEvent) isEngineEvent() {}

type setEraEvent struct {
	nodeUUID string
	era      string
	connID   clusterstate.ConnectionID
	done     chan struct{}
}

func (setEraEvent) isEngineEvent() {}

type touchEvent struct {
	connID clusterstate.ConnectionID
}

func (touchEvent) isEngineEvent() {}

// sendResultEvent reports a CallRemote's outcome back to the loop. It is
// produced by the goroutine sendToConnection spawns to make the blocking
// call, per spec.md 5's "every outgoing callRemote completes
// asynchronously; ... explicit continuations".
type sendResultEvent struct {
	connID    uint64
	kind      string // "full" or "diff"
	target    *broadcastTarget
	startCGen genhash.Generation
	startSGen genhash.Generation
	result    map[string]any
	err       error
}

func (sendResultEvent) isEngineEvent() {}

// retrySendEvent re-attempts a send for one connection after a superseded
// pending target survived the in-flight call that unblocked it.
type retrySendEvent struct {
	connID uint64
	target *broadcastTarget
}

func (retrySendEvent) isEngineEvent() {}

// broadcastTarget is the (configuration, state) pair a broadcast pass
// considers sending to every connection. Every slot compares against the
// same target pointers within one pass, so wire.EncodeCache's
// identity-keyed lookups hit across connections that receive the same
// snapshot (spec.md 4.F "Encoding cache").
type broadcastTarget struct {
	config *model.Deployment
	state  *model.DeploymentState
}

func targetsEqual(a, b *broadcastTarget) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.config.Equal(*b.config) && a.state.Equal(*b.state)
}
