package diff

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/vessel/pkg/model"
)

var (
	node1 = uuid.MustParse("11111111-1111-1111-1111-111111111111")
	node2 = uuid.MustParse("22222222-2222-2222-2222-222222222222")
	node3 = uuid.MustParse("33333333-3333-3333-3333-333333333333")
)

func TestComputeApplyDeploymentLaw(t *testing.T) {
	before := model.NewDeployment().
		WithNode(model.Node{UUID: node1, Hostname: "a"}).
		WithNode(model.Node{UUID: node2, Hostname: "b"})

	after := model.NewDeployment().
		WithNode(model.Node{UUID: node1, Hostname: "a-renamed"}).
		WithNode(model.Node{UUID: node3, Hostname: "c"})

	d := ComputeDeployment(before, after)
	got, err := ApplyDeployment(before, d)
	require.NoError(t, err)
	assert.True(t, got.Equal(after))
}

func TestComputeDeploymentNoChangesProducesEmptyDiff(t *testing.T) {
	dep := model.NewDeployment().WithNode(model.Node{UUID: node1, Hostname: "a"})
	d := ComputeDeployment(dep, dep)
	assert.True(t, d.IsEmpty())
}

func TestComputeDeploymentOmitsUnchangedNodes(t *testing.T) {
	before := model.NewDeployment().
		WithNode(model.Node{UUID: node1, Hostname: "unchanged"}).
		WithNode(model.Node{UUID: node2, Hostname: "changed"})
	after := model.NewDeployment().
		WithNode(model.Node{UUID: node1, Hostname: "unchanged"}).
		WithNode(model.Node{UUID: node2, Hostname: "changed-now"})

	d := ComputeDeployment(before, after)
	require.Len(t, d.Entries, 1)
	assert.Equal(t, node2, d.Entries[0].UUID)
}

func TestApplyDeploymentDeleteEntry(t *testing.T) {
	before := model.NewDeployment().WithNode(model.Node{UUID: node1, Hostname: "a"})
	after := model.NewDeployment()

	d := ComputeDeployment(before, after)
	got, err := ApplyDeployment(before, d)
	require.NoError(t, err)
	assert.True(t, got.Equal(after))
	assert.Empty(t, got.Nodes)
}

func TestComputeApplyDeploymentStateLaw(t *testing.T) {
	before := model.NewDeploymentState()
	before.Nodes["n1"] = model.NodeState{UUID: "n1", Hostname: "h1"}
	before.Eras["n1"] = "era-1"
	before.NonManifestDatasets["n1"] = model.NonManifestDatasets{
		UUID:       "n1",
		DatasetIDs: map[string]struct{}{"ds-1": {}},
	}

	after := model.NewDeploymentState()
	after.Nodes["n1"] = model.NodeState{UUID: "n1", Hostname: "h1-renamed"}
	after.Nodes["n2"] = model.NodeState{UUID: "n2", Hostname: "h2"}
	after.Eras["n1"] = "era-2"
	after.NonManifestDatasets["n2"] = model.NonManifestDatasets{
		UUID:       "n2",
		DatasetIDs: map[string]struct{}{"ds-2": {}},
	}

	d := ComputeDeploymentState(before, after)
	got, err := ApplyDeploymentState(before, d)
	require.NoError(t, err)
	assert.True(t, got.Equal(after))
}

func TestComputeDeploymentStateNoChangesProducesEmptyDiff(t *testing.T) {
	s := model.NewDeploymentState()
	s.Nodes["n1"] = model.NodeState{UUID: "n1", Hostname: "h1"}
	d := ComputeDeploymentState(s, s)
	assert.True(t, d.IsEmpty())
}

func TestApplyDeploymentRejectsUnknownOp(t *testing.T) {
	_, err := ApplyDeployment(model.NewDeployment(), DeploymentDiff{
		Entries: []DeploymentEntry{{Op: "bogus", UUID: node1}},
	})
	assert.Error(t, err)
}

func TestApplyDeploymentStateDoesNotMutateBefore(t *testing.T) {
	before := model.NewDeploymentState()
	before.Nodes["n1"] = model.NodeState{UUID: "n1", Hostname: "h1"}

	after := model.NewDeploymentState()
	after.Nodes["n1"] = model.NodeState{UUID: "n1", Hostname: "h2"}

	d := ComputeDeploymentState(before, after)
	_, err := ApplyDeploymentState(before, d)
	require.NoError(t, err)

	assert.Equal(t, "h1", before.Nodes["n1"].Hostname)
}
