package model

import "sort"

// Manifestation is a locally mounted instance of a dataset.
type Manifestation struct {
	DatasetID string
	Primary   bool
}

// Equal reports whether two Manifestations describe the same mount.
func (m Manifestation) Equal(other Manifestation) bool {
	return m.DatasetID == other.DatasetID && m.Primary == other.Primary
}

// NodeState is one node's contribution to the observed DeploymentState. A
// node's NodeState is replaceable as a whole per category — see
// pkg/clusterstate for the category-scoped merge.
type NodeState struct {
	UUID           string // node UUID, string form to avoid import cycles with callers keying by raw string
	Hostname       string
	Applications   map[string]Application
	Devices        map[string]string
	Paths          map[string]string
	Manifestations map[string]Manifestation
}

// Equal reports whether two NodeStates describe the same observed reality.
func (n NodeState) Equal(other NodeState) bool {
	if n.UUID != other.UUID || n.Hostname != other.Hostname {
		return false
	}
	if !applicationsEqual(n.Applications, other.Applications) {
		return false
	}
	if !stringMapEqual(n.Devices, other.Devices) {
		return false
	}
	if !stringMapEqual(n.Paths, other.Paths) {
		return false
	}
	if len(n.Manifestations) != len(other.Manifestations) {
		return false
	}
	for id, man := range n.Manifestations {
		otherMan, ok := other.Manifestations[id]
		if !ok || !man.Equal(otherMan) {
			return false
		}
	}
	return true
}

func stringMapEqual(a, b map[string]string) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if other, ok := b[k]; !ok || other != v {
			return false
		}
	}
	return true
}

// NonManifestDatasets is a node's report of datasets it knows about but has
// not locally mounted.
type NonManifestDatasets struct {
	UUID       string
	DatasetIDs map[string]struct{}
}

// Equal reports whether two NonManifestDatasets name the same set.
func (n NonManifestDatasets) Equal(other NonManifestDatasets) bool {
	if n.UUID != other.UUID || len(n.DatasetIDs) != len(other.DatasetIDs) {
		return false
	}
	for id := range n.DatasetIDs {
		if _, ok := other.DatasetIDs[id]; !ok {
			return false
		}
	}
	return true
}

// DeploymentState is the cluster's observed reality, aggregated from every
// connected agent's reports.
type DeploymentState struct {
	Nodes               map[string]NodeState
	NonManifestDatasets map[string]NonManifestDatasets
	Eras                map[string]string // node UUID -> era UUID
}

// NewDeploymentState returns an empty DeploymentState.
func NewDeploymentState() DeploymentState {
	return DeploymentState{
		Nodes:               map[string]NodeState{},
		NonManifestDatasets: map[string]NonManifestDatasets{},
		Eras:                map[string]string{},
	}
}

// Equal reports whether two DeploymentStates describe the same observed
// reality, independent of map iteration order.
func (d DeploymentState) Equal(other DeploymentState) bool {
	if len(d.Nodes) != len(other.Nodes) {
		return false
	}
	for id, ns := range d.Nodes {
		otherNs, ok := other.Nodes[id]
		if !ok || !ns.Equal(otherNs) {
			return false
		}
	}
	if len(d.NonManifestDatasets) != len(other.NonManifestDatasets) {
		return false
	}
	for id, nmd := range d.NonManifestDatasets {
		otherNmd, ok := other.NonManifestDatasets[id]
		if !ok || !nmd.Equal(otherNmd) {
			return false
		}
	}
	return stringMapEqual(d.Eras, other.Eras)
}

// SortedNodeUUIDs returns node UUIDs in a stable order for canonicalization.
func (d DeploymentState) SortedNodeUUIDs() []string {
	ids := make([]string, 0, len(d.Nodes))
	for id := range d.Nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
