package genhash

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/cuemby/vessel/pkg/model"
)

func sampleDeployment() model.Deployment {
	id1 := uuid.MustParse("11111111-1111-1111-1111-111111111111")
	id2 := uuid.MustParse("22222222-2222-2222-2222-222222222222")
	return model.NewDeployment().
		WithNode(model.Node{
			UUID:     id1,
			Hostname: "node-a",
			Applications: map[string]model.Application{
				"web": {Name: "web", Image: "nginx:1", Running: true},
			},
		}).
		WithNode(model.Node{
			UUID:     id2,
			Hostname: "node-b",
			Applications: map[string]model.Application{
				"db": {Name: "db", Image: "postgres:16", Running: true},
			},
		})
}

func TestHashDeploymentIsDeterministic(t *testing.T) {
	d := sampleDeployment()
	assert.Equal(t, HashDeployment(d), HashDeployment(d))
}

func TestHashDeploymentIndependentOfMapOrder(t *testing.T) {
	id1 := uuid.MustParse("11111111-1111-1111-1111-111111111111")
	id2 := uuid.MustParse("22222222-2222-2222-2222-222222222222")

	a := model.NewDeployment().WithNode(model.Node{UUID: id1, Hostname: "h1"}).WithNode(model.Node{UUID: id2, Hostname: "h2"})
	b := model.NewDeployment().WithNode(model.Node{UUID: id2, Hostname: "h2"}).WithNode(model.Node{UUID: id1, Hostname: "h1"})

	assert.Equal(t, HashDeployment(a), HashDeployment(b))
}

func TestHashDeploymentChangesWithContent(t *testing.T) {
	base := sampleDeployment()
	id1 := uuid.MustParse("11111111-1111-1111-1111-111111111111")
	node := base.Nodes[id1]
	node.Hostname = "renamed"
	changed := base.WithNode(node)

	assert.NotEqual(t, HashDeployment(base), HashDeployment(changed))
}

func TestHashDeploymentStateIndependentOfMapOrder(t *testing.T) {
	a := model.NewDeploymentState()
	a.Nodes["node-1"] = model.NodeState{UUID: "node-1", Hostname: "h1"}
	a.Nodes["node-2"] = model.NodeState{UUID: "node-2", Hostname: "h2"}

	b := model.NewDeploymentState()
	b.Nodes["node-2"] = model.NodeState{UUID: "node-2", Hostname: "h2"}
	b.Nodes["node-1"] = model.NodeState{UUID: "node-1", Hostname: "h1"}

	assert.Equal(t, HashDeploymentState(a), HashDeploymentState(b))
}

func TestHashDeploymentStateDistinguishesNonManifestDatasets(t *testing.T) {
	a := model.NewDeploymentState()
	a.NonManifestDatasets["node-1"] = model.NonManifestDatasets{
		UUID:       "node-1",
		DatasetIDs: map[string]struct{}{"ds-1": {}},
	}

	b := model.NewDeploymentState()
	b.NonManifestDatasets["node-1"] = model.NonManifestDatasets{
		UUID:       "node-1",
		DatasetIDs: map[string]struct{}{"ds-2": {}},
	}

	assert.NotEqual(t, HashDeploymentState(a), HashDeploymentState(b))
}

func TestZeroGenerationIsZero(t *testing.T) {
	var g Generation
	assert.True(t, g.IsZero())
	assert.False(t, HashDeployment(sampleDeployment()).IsZero())
}

func TestGenerationStringIsHex(t *testing.T) {
	g := HashDeployment(sampleDeployment())
	s := g.String()
	assert.Len(t, s, 32)
	for _, r := range s {
		assert.True(t, (r >= '0' && r <= '9') || (r >= 'a' && r <= 'f'))
	}
}
