// Package clusterstate merges per-node reports from connected agents into
// the cluster's single observed DeploymentState, expiring a node's
// contribution once it has gone quiet for longer than EXPIRATION_TIME.
// The store itself never runs a timer — expiration is evaluated lazily,
// the moment something asks to materialize or wipe the document — which
// keeps the control service's entire state mutation path on a single
// goroutine's call stack, matching pkg/manager/fsm.go's guarded in-memory
// view before it hands data to BoltDB.
package clusterstate

import (
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/cuemby/vessel/pkg/model"
	"github.com/cuemby/vessel/pkg/wire"
)

// ConnectionID identifies the connection that most recently contributed a
// slot, so Touch can refresh every slot owned by a connection on any
// inbound traffic from it (spec's activity-refresh rule).
type ConnectionID uint64

// Change is one element of a NodeState command's state_changes list: a
// whole NodeState report, or a NonManifestDatasets report. Each replaces
// its node's contribution to that category as a unit.
type Change interface {
	isChange()
}

// NodeStateChange replaces a node's NodeState contribution.
type NodeStateChange struct {
	UUID  string
	State model.NodeState
}

func (NodeStateChange) isChange() {}

// NonManifestChange replaces a node's NonManifestDatasets contribution.
type NonManifestChange struct {
	UUID    string
	Dataset model.NonManifestDatasets
}

func (NonManifestChange) isChange() {}

type stateSlot struct {
	value        model.NodeState
	fingerprint  uint64
	lastActivity time.Time
	connection   ConnectionID
}

type nonManifestSlot struct {
	value        model.NonManifestDatasets
	fingerprint  uint64
	lastActivity time.Time
	connection   ConnectionID
}

type eraSlot struct {
	era          string
	lastActivity time.Time
	connection   ConnectionID
}

// Store is the control service's single in-memory view of observed
// cluster state. All methods assume single-goroutine access — the
// control service's event loop, per spec.md's single-threaded
// cooperative scheduling model — so Store carries no internal locking.
type Store struct {
	expiration time.Duration

	states       map[string]stateSlot
	nonManifests map[string]nonManifestSlot
	eras         map[string]eraSlot
}

// New returns an empty Store with the given expiration threshold.
func New(expiration time.Duration) *Store {
	return &Store{
		expiration:   expiration,
		states:       map[string]stateSlot{},
		nonManifests: map[string]nonManifestSlot{},
		eras:         map[string]eraSlot{},
	}
}

// ApplyChanges replaces the slot named by each change and sets its
// last-activity to now, per spec.md 4.E. It returns whether any slot's
// content actually differs from what was previously held — the broadcast
// engine uses this to avoid scheduling a broadcast for a resend of
// unchanged state.
func (s *Store) ApplyChanges(changes []Change, source ConnectionID, now time.Time) bool {
	changed := false
	for _, c := range changes {
		switch change := c.(type) {
		case NodeStateChange:
			fp := fingerprintNodeState(change.State)
			existing, ok := s.states[change.UUID]
			if !ok || existing.fingerprint != fp {
				changed = true
			}
			s.states[change.UUID] = stateSlot{
				value:        change.State,
				fingerprint:  fp,
				lastActivity: now,
				connection:   source,
			}
		case NonManifestChange:
			fp := fingerprintNonManifest(change.Dataset)
			existing, ok := s.nonManifests[change.UUID]
			if !ok || existing.fingerprint != fp {
				changed = true
			}
			s.nonManifests[change.UUID] = nonManifestSlot{
				value:        change.Dataset,
				fingerprint:  fp,
				lastActivity: now,
				connection:   source,
			}
		}
	}
	return changed
}

// SetNodeEra overwrites the era slot for a node.
func (s *Store) SetNodeEra(uuid, era string, source ConnectionID, now time.Time) {
	s.eras[uuid] = eraSlot{era: era, lastActivity: now, connection: source}
}

// Touch refreshes the last-activity of every slot last contributed by
// source, across all categories. Called on any inbound command from that
// connection, including NoOp — a connection that only pings still keeps
// its last report alive.
func (s *Store) Touch(source ConnectionID, now time.Time) {
	for id, slot := range s.states {
		if slot.connection == source {
			slot.lastActivity = now
			s.states[id] = slot
		}
	}
	for id, slot := range s.nonManifests {
		if slot.connection == source {
			slot.lastActivity = now
			s.nonManifests[id] = slot
		}
	}
	for id, slot := range s.eras {
		if slot.connection == source {
			slot.lastActivity = now
			s.eras[id] = slot
		}
	}
}

// AsDeployment materializes the current DeploymentState, omitting any slot
// whose last-activity is at or beyond the expiration threshold.
func (s *Store) AsDeployment(now time.Time) model.DeploymentState {
	result := model.NewDeploymentState()
	for id, slot := range s.states {
		if s.expired(slot.lastActivity, now) {
			continue
		}
		result.Nodes[id] = slot.value
	}
	for id, slot := range s.nonManifests {
		if s.expired(slot.lastActivity, now) {
			continue
		}
		result.NonManifestDatasets[id] = slot.value
	}
	for id, slot := range s.eras {
		if s.expired(slot.lastActivity, now) {
			continue
		}
		result.Eras[id] = slot.era
	}
	return result
}

// Wipe purges every slot past the expiration threshold and returns how
// many it removed. Expiration is observed lazily rather than
// timer-driven — Wipe is the explicit moment that reclaims memory for
// slots AsDeployment has already been omitting.
func (s *Store) Wipe(now time.Time) int {
	purged := 0
	for id, slot := range s.states {
		if s.expired(slot.lastActivity, now) {
			delete(s.states, id)
			purged++
		}
	}
	for id, slot := range s.nonManifests {
		if s.expired(slot.lastActivity, now) {
			delete(s.nonManifests, id)
			purged++
		}
	}
	for id, slot := range s.eras {
		if s.expired(slot.lastActivity, now) {
			delete(s.eras, id)
			purged++
		}
	}
	return purged
}

func (s *Store) expired(lastActivity, now time.Time) bool {
	return now.Sub(lastActivity) >= s.expiration
}

// NodeCount returns the number of node-state slots currently held,
// expired or not — used by pkg/metrics to sample store size without
// materializing a full DeploymentState.
func (s *Store) NodeCount() int {
	return len(s.states)
}

func fingerprintNodeState(ns model.NodeState) uint64 {
	data, err := wire.Marshal(canonicalNodeState(ns))
	if err != nil {
		return 0
	}
	return xxhash.Sum64(data)
}

func fingerprintNonManifest(nmd model.NonManifestDatasets) uint64 {
	data, err := wire.Marshal(canonicalNonManifest(nmd))
	if err != nil {
		return 0
	}
	return xxhash.Sum64(data)
}
