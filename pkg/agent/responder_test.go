package agent

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/vessel/pkg/diff"
	"github.com/cuemby/vessel/pkg/events"
	"github.com/cuemby/vessel/pkg/genhash"
	"github.com/cuemby/vessel/pkg/model"
)

type fakeConvergence struct {
	applied  []model.Deployment
	resyncs  int
	nodeUUID string
	hostname string
}

func (f *fakeConvergence) ClusterStatusChanged(config model.Deployment, self *model.Node) {
	f.applied = append(f.applied, config)
}

func (f *fakeConvergence) ResyncRequired() {
	f.resyncs++
}

func (f *fakeConvergence) LocalState() (model.NodeState, model.NonManifestDatasets) {
	return model.NodeState{
			UUID:           f.nodeUUID,
			Hostname:       f.hostname,
			Applications:   map[string]model.Application{},
			Devices:        map[string]string{},
			Paths:          map[string]string{},
			Manifestations: map[string]model.Manifestation{},
		}, model.NonManifestDatasets{
			UUID:       f.nodeUUID,
			DatasetIDs: map[string]struct{}{},
		}
}

func sampleDeployment(hostname string) model.Deployment {
	id := uuid.MustParse("11111111-1111-1111-1111-111111111111")
	return model.NewDeployment().WithNode(model.Node{
		UUID:     id,
		Hostname: hostname,
		Applications: map[string]model.Application{
			"web": {Name: "web", Image: "nginx:1", Running: true},
		},
	})
}

func newTestResponder() (*Responder, *fakeConvergence) {
	nodeUUID := "11111111-1111-1111-1111-111111111111"
	conv := &fakeConvergence{nodeUUID: nodeUUID, hostname: "node-a"}
	broker := events.NewBroker()
	broker.Start()
	r := NewResponder(nodeUUID, "node-a", conv, broker)
	return r, conv
}

func TestHandleClusterStatusAdoptsUnconditionally(t *testing.T) {
	r, conv := newTestResponder()

	c1 := sampleDeployment("node-a")
	emptyState := model.NewDeploymentState()
	cGen := genhash.HashDeployment(c1)
	sGen := genhash.HashDeploymentState(emptyState)

	result, err := r.handleClusterStatus(context.Background(), map[string]any{
		"configuration":            &c1,
		"configuration_generation": cGen,
		"state":                    &emptyState,
		"state_generation":         sGen,
		"eliot_context":            []byte{},
	})
	require.NoError(t, err)
	assert.Equal(t, cGen, result["current_configuration_generation"])
	assert.Equal(t, sGen, result["current_state_generation"])

	assert.True(t, r.heldConfig.Equal(c1))
	require.Len(t, conv.applied, 1)
	assert.True(t, conv.applied[0].Equal(c1))
}

func TestHandleClusterStatusDiffAppliesOnMatchingStart(t *testing.T) {
	r, conv := newTestResponder()

	c1 := sampleDeployment("node-a")
	emptyState := model.NewDeploymentState()
	cGen1 := genhash.HashDeployment(c1)
	sGen1 := genhash.HashDeploymentState(emptyState)
	_, err := r.handleClusterStatus(context.Background(), map[string]any{
		"configuration":            &c1,
		"configuration_generation": cGen1,
		"state":                    &emptyState,
		"state_generation":         sGen1,
		"eliot_context":            []byte{},
	})
	require.NoError(t, err)

	c2 := c1.WithNode(model.Node{
		UUID:     uuid.MustParse("22222222-2222-2222-2222-222222222222"),
		Hostname: "node-b",
	})
	cGen2 := genhash.HashDeployment(c2)
	configDiff := diff.ComputeDeployment(c1, c2)
	stateDiff := diff.ComputeDeploymentState(emptyState, emptyState)

	result, err := r.handleClusterStatusDiff(context.Background(), map[string]any{
		"configuration_diff":             &configDiff,
		"start_configuration_generation": cGen1,
		"end_configuration_generation":   cGen2,
		"state_diff":                     &stateDiff,
		"start_state_generation":         sGen1,
		"end_state_generation":           sGen1,
		"eliot_context":                  []byte{},
	})
	require.NoError(t, err)
	assert.Equal(t, cGen2, result["current_configuration_generation"])
	assert.True(t, r.heldConfig.Equal(c2))
	assert.Len(t, conv.applied, 2)
}

func TestHandleClusterStatusDiffRejectsStartGenerationMismatch(t *testing.T) {
	r, conv := newTestResponder()

	c1 := sampleDeployment("node-a")
	emptyState := model.NewDeploymentState()
	cGen1 := genhash.HashDeployment(c1)
	sGen1 := genhash.HashDeploymentState(emptyState)
	_, err := r.handleClusterStatus(context.Background(), map[string]any{
		"configuration":            &c1,
		"configuration_generation": cGen1,
		"state":                    &emptyState,
		"state_generation":         sGen1,
		"eliot_context":            []byte{},
	})
	require.NoError(t, err)

	// A stale start generation, as if the control service's diff base had
	// diverged from what this agent actually holds.
	var staleGen genhash.Generation
	staleGen[0] = 0xFF

	c2 := c1.WithNode(model.Node{UUID: uuid.MustParse("22222222-2222-2222-2222-222222222222"), Hostname: "node-b"})
	configDiff := diff.ComputeDeployment(c1, c2)
	stateDiff := diff.ComputeDeploymentState(emptyState, emptyState)

	result, err := r.handleClusterStatusDiff(context.Background(), map[string]any{
		"configuration_diff":             &configDiff,
		"start_configuration_generation": staleGen,
		"end_configuration_generation":   genhash.HashDeployment(c2),
		"state_diff":                     &stateDiff,
		"start_state_generation":         sGen1,
		"end_state_generation":           sGen1,
		"eliot_context":                  []byte{},
	})
	require.NoError(t, err)

	// Held generation unchanged, echoed back verbatim; nothing was applied.
	assert.Equal(t, cGen1, result["current_configuration_generation"])
	assert.True(t, r.heldConfig.Equal(c1), "diff must not be applied on generation mismatch")
	assert.Len(t, conv.applied, 1, "only the initial full adoption should have notified convergence")
	assert.Equal(t, 1, conv.resyncs)
}
