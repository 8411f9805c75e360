// Package model holds the value-typed documents the control plane reasons
// about: the desired Deployment (configuration) and the observed
// DeploymentState (state). Every document here is immutable once
// constructed — "updating" a document means building a new one; existing
// references never change underneath their holder.
package model

import (
	"sort"

	"github.com/google/uuid"
)

// Application is a single workload running on a node.
type Application struct {
	Name    string
	Image   string
	Running bool
}

// Equal reports whether two Applications describe the same workload.
func (a Application) Equal(other Application) bool {
	return a.Name == other.Name && a.Image == other.Image && a.Running == other.Running
}

// Node is one node's entry in the authored Deployment.
type Node struct {
	UUID         uuid.UUID
	Hostname     string
	Applications map[string]Application
}

// Equal reports whether two Nodes describe the same desired configuration.
func (n Node) Equal(other Node) bool {
	if n.UUID != other.UUID || n.Hostname != other.Hostname {
		return false
	}
	return applicationsEqual(n.Applications, other.Applications)
}

func applicationsEqual(a, b map[string]Application) bool {
	if len(a) != len(b) {
		return false
	}
	for name, app := range a {
		other, ok := b[name]
		if !ok || !app.Equal(other) {
			return false
		}
	}
	return true
}

// Deployment is the authoritative, externally-authored desired state of the
// cluster: a set of Nodes keyed by UUID.
type Deployment struct {
	Nodes map[uuid.UUID]Node
}

// NewDeployment returns an empty Deployment.
func NewDeployment() Deployment {
	return Deployment{Nodes: map[uuid.UUID]Node{}}
}

// WithNode returns a new Deployment with node replaced (or added) as a whole.
// The receiver is left untouched — Deployment is value-typed.
func (d Deployment) WithNode(node Node) Deployment {
	next := Deployment{Nodes: make(map[uuid.UUID]Node, len(d.Nodes)+1)}
	for id, n := range d.Nodes {
		next.Nodes[id] = n
	}
	next.Nodes[node.UUID] = node
	return next
}

// WithoutNode returns a new Deployment with the given node UUID removed.
func (d Deployment) WithoutNode(id uuid.UUID) Deployment {
	next := Deployment{Nodes: make(map[uuid.UUID]Node, len(d.Nodes))}
	for nid, n := range d.Nodes {
		if nid != id {
			next.Nodes[nid] = n
		}
	}
	return next
}

// Equal reports whether two Deployments describe the same desired state,
// independent of map iteration order.
func (d Deployment) Equal(other Deployment) bool {
	if len(d.Nodes) != len(other.Nodes) {
		return false
	}
	for id, node := range d.Nodes {
		otherNode, ok := other.Nodes[id]
		if !ok || !node.Equal(otherNode) {
			return false
		}
	}
	return true
}

// SortedNodeUUIDs returns the Deployment's node UUIDs in a stable order,
// used anywhere a document must be canonicalized (hashing, encoding).
func (d Deployment) SortedNodeUUIDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(d.Nodes))
	for id := range d.Nodes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return ids
}
