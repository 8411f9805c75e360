package agent

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/cuemby/vessel/pkg/convergence"
	"github.com/cuemby/vessel/pkg/diff"
	"github.com/cuemby/vessel/pkg/events"
	"github.com/cuemby/vessel/pkg/genhash"
	"github.com/cuemby/vessel/pkg/log"
	"github.com/cuemby/vessel/pkg/metrics"
	"github.com/cuemby/vessel/pkg/model"
	"github.com/cuemby/vessel/pkg/protocol"
	"github.com/cuemby/vessel/pkg/wire"
)

// DefaultReportInterval is how often the agent sends a NodeState report,
// grounded on pkg/worker's heartbeatLoop cadence.
const DefaultReportInterval = 5 * time.Second

// Responder is the agent side of the control connection (spec.md §4.G): it
// holds the last configuration/state it adopted and their generations,
// applies ClusterStatus pushes unconditionally and ClusterStatusDiff
// pushes only when their start generation matches what it holds, and
// reports this node's observed reality back on a periodic NodeState loop.
type Responder struct {
	nodeUUID string
	hostname string
	era      string

	conv   convergence.Engine
	broker *events.Broker
	logger zerolog.Logger

	reportInterval time.Duration

	mu         sync.Mutex
	heldConfig model.Deployment
	heldState  model.DeploymentState
	heldCGen   genhash.Generation
	heldSGen   genhash.Generation

	conn   *protocol.Connection
	stopCh chan struct{}
	doneCh chan struct{}
}

// NewResponder returns a Responder for one agent node. era identifies this
// process's incarnation (spec.md glossary: "changes across agent
// restarts") and is announced to the control service via SetNodeEra once
// the connection starts.
func NewResponder(nodeUUID, hostname string, conv convergence.Engine, broker *events.Broker) *Responder {
	return &Responder{
		nodeUUID:       nodeUUID,
		hostname:       hostname,
		era:            uuid.NewString(),
		conv:           conv,
		broker:         broker,
		logger:         log.WithNodeUUID(nodeUUID),
		reportInterval: DefaultReportInterval,
		heldConfig:     model.NewDeployment(),
		heldState:      model.NewDeploymentState(),
	}
}

// Locator returns the command dispatch table a Connection to the control
// service should use: ClusterStatus, ClusterStatusDiff, and NoOp. SetNodeEra
// and NodeState are commands this side issues, not handles.
func (r *Responder) Locator() *protocol.Locator {
	loc := protocol.NewLocator()

	loc.Register(protocol.CommandNoOp, protocol.Handler{
		Func: func(ctx context.Context, args map[string]any) (map[string]any, error) {
			return map[string]any{}, nil
		},
	})

	loc.Register(protocol.CommandClusterStatus, protocol.Handler{
		Args:   wire.ClusterStatusArgs(nil),
		Result: wire.ClusterStatusResultArgs(),
		Func:   r.handleClusterStatus,
	})

	loc.Register(protocol.CommandClusterStatusDiff, protocol.Handler{
		Args:   wire.ClusterStatusDiffArgs(nil),
		Result: wire.ClusterStatusResultArgs(),
		Func:   r.handleClusterStatusDiff,
	})

	return loc
}

// Start announces this node's era and launches the periodic NodeState
// report loop over conn. It does not block.
func (r *Responder) Start(conn *protocol.Connection) {
	r.conn = conn
	r.stopCh = make(chan struct{})
	r.doneCh = make(chan struct{})

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), r.reportInterval)
		defer cancel()
		if _, err := conn.CallRemote(ctx, protocol.CommandSetNodeEra, wire.SetNodeEraArgs(),
			map[string]any{"node_uuid": r.nodeUUID, "era": r.era}, nil); err != nil {
			r.logger.Warn().Err(err).Msg("failed to announce era")
		}
	}()

	go r.reportLoop()
}

// Stop ends the report loop. It does not close the connection.
func (r *Responder) Stop() {
	if r.stopCh == nil {
		return
	}
	close(r.stopCh)
	<-r.doneCh
}

func (r *Responder) handleClusterStatus(ctx context.Context, args map[string]any) (map[string]any, error) {
	config, ok := args["configuration"].(*model.Deployment)
	if !ok {
		return nil, fmt.Errorf("agent: ClusterStatus: missing configuration")
	}
	state, ok := args["state"].(*model.DeploymentState)
	if !ok {
		return nil, fmt.Errorf("agent: ClusterStatus: missing state")
	}
	cGen, _ := args["configuration_generation"].(genhash.Generation)
	sGen, _ := args["state_generation"].(genhash.Generation)

	r.mu.Lock()
	r.heldConfig = *config
	r.heldState = *state
	r.heldCGen = cGen
	r.heldSGen = sGen
	r.mu.Unlock()

	metrics.AgentClusterStatusTotal.WithLabelValues("full", "applied").Inc()
	r.notifyApplied(*config)

	return map[string]any{
		"current_configuration_generation": cGen,
		"current_state_generation":         sGen,
	}, nil
}

func (r *Responder) handleClusterStatusDiff(ctx context.Context, args map[string]any) (map[string]any, error) {
	configDiff, ok := args["configuration_diff"].(*diff.DeploymentDiff)
	if !ok {
		return nil, fmt.Errorf("agent: ClusterStatusDiff: missing configuration_diff")
	}
	stateDiff, ok := args["state_diff"].(*diff.DeploymentStateDiff)
	if !ok {
		return nil, fmt.Errorf("agent: ClusterStatusDiff: missing state_diff")
	}
	startCGen, _ := args["start_configuration_generation"].(genhash.Generation)
	endCGen, _ := args["end_configuration_generation"].(genhash.Generation)
	startSGen, _ := args["start_state_generation"].(genhash.Generation)
	endSGen, _ := args["end_state_generation"].(genhash.Generation)

	r.mu.Lock()
	if r.heldCGen != startCGen || r.heldSGen != startSGen {
		// Start generation mismatch: leave held state untouched and report
		// what we actually hold, per spec.md §4.G and invariant 6.
		currentCGen, currentSGen := r.heldCGen, r.heldSGen
		r.mu.Unlock()

		metrics.AgentClusterStatusTotal.WithLabelValues("diff", "rejected").Inc()
		r.conv.ResyncRequired()
		r.broker.Publish(&events.Event{
			Type:    events.EventResyncRequired,
			Message: "diff rejected: start generation mismatch",
		})

		return map[string]any{
			"current_configuration_generation": currentCGen,
			"current_state_generation":         currentSGen,
		}, nil
	}

	newConfig, err := diff.ApplyDeployment(r.heldConfig, *configDiff)
	if err != nil {
		r.mu.Unlock()
		return nil, fmt.Errorf("agent: apply configuration diff: %w", err)
	}
	newState, err := diff.ApplyDeploymentState(r.heldState, *stateDiff)
	if err != nil {
		r.mu.Unlock()
		return nil, fmt.Errorf("agent: apply state diff: %w", err)
	}
	r.heldConfig = newConfig
	r.heldState = newState
	r.heldCGen = endCGen
	r.heldSGen = endSGen
	r.mu.Unlock()

	metrics.AgentClusterStatusTotal.WithLabelValues("diff", "applied").Inc()
	r.notifyApplied(newConfig)

	return map[string]any{
		"current_configuration_generation": endCGen,
		"current_state_generation":         endSGen,
	}, nil
}

func (r *Responder) notifyApplied(config model.Deployment) {
	var self *model.Node
	if id, err := uuid.Parse(r.nodeUUID); err == nil {
		if node, ok := config.Nodes[id]; ok {
			self = &node
		}
	}
	r.conv.ClusterStatusChanged(config, self)
	r.broker.Publish(&events.Event{
		Type:    events.EventClusterStatusApplied,
		Message: "cluster status applied",
	})
}

func (r *Responder) reportLoop() {
	defer close(r.doneCh)
	ticker := time.NewTicker(r.reportInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := r.reportState(); err != nil {
				r.logger.Warn().Err(err).Msg("failed to report node state")
			}
		case <-r.stopCh:
			return
		}
	}
}

func (r *Responder) reportState() error {
	nodeState, nonManifest := r.conv.LocalState()
	ctx, cancel := context.WithTimeout(context.Background(), r.reportInterval)
	defer cancel()

	_, err := r.conn.CallRemote(ctx, protocol.CommandNodeState, wire.NodeStateArgs(), map[string]any{
		"state_changes": []any{&nodeState, &nonManifest},
		"eliot_context": []byte{},
	}, nil)
	if err != nil {
		return err
	}
	metrics.AgentStateReportsTotal.Inc()
	return nil
}
