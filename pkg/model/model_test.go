package model

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestDeploymentWithNodeIsValueTyped(t *testing.T) {
	d1 := NewDeployment()
	id := uuid.New()
	d2 := d1.WithNode(Node{UUID: id, Hostname: "node1"})

	assert.Empty(t, d1.Nodes, "original deployment must be unchanged")
	assert.Len(t, d2.Nodes, 1)
	assert.True(t, d2.Nodes[id].Equal(Node{UUID: id, Hostname: "node1"}))
}

func TestDeploymentEqualIgnoresMapOrder(t *testing.T) {
	id1, id2 := uuid.New(), uuid.New()
	base := NewDeployment().WithNode(Node{UUID: id1, Hostname: "a"}).WithNode(Node{UUID: id2, Hostname: "b"})

	// Constructing in the opposite order must still compare equal.
	reordered := NewDeployment().WithNode(Node{UUID: id2, Hostname: "b"}).WithNode(Node{UUID: id1, Hostname: "a"})

	assert.True(t, base.Equal(reordered))
}

func TestDeploymentWithoutNode(t *testing.T) {
	id1, id2 := uuid.New(), uuid.New()
	d := NewDeployment().WithNode(Node{UUID: id1}).WithNode(Node{UUID: id2})
	removed := d.WithoutNode(id1)

	assert.Len(t, d.Nodes, 2, "original untouched")
	assert.Len(t, removed.Nodes, 1)
	_, stillThere := removed.Nodes[id2]
	assert.True(t, stillThere)
}

func TestNodeStateEqualDetectsApplicationChange(t *testing.T) {
	a := NodeState{UUID: "n1", Applications: map[string]Application{"web": {Name: "web", Image: "nginx:1"}}}
	b := NodeState{UUID: "n1", Applications: map[string]Application{"web": {Name: "web", Image: "nginx:2"}}}

	assert.False(t, a.Equal(b))
	assert.True(t, a.Equal(a))
}

func TestDeploymentStateEqual(t *testing.T) {
	a := NewDeploymentState()
	a.Nodes["n1"] = NodeState{UUID: "n1", Hostname: "h1"}
	a.Eras["n1"] = "era-1"

	b := NewDeploymentState()
	b.Eras["n1"] = "era-1"
	b.Nodes["n1"] = NodeState{UUID: "n1", Hostname: "h1"}

	assert.True(t, a.Equal(b))
}
