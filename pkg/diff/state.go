package diff

import (
	"fmt"

	"github.com/cuemby/vessel/pkg/model"
)

// NodeStateEntry is one changed node slot in a DeploymentState diff.
type NodeStateEntry struct {
	Op    Op
	UUID  string
	State model.NodeState // zero value when Op == OpDelete
}

// NonManifestEntry is one changed non-manifest-datasets slot.
type NonManifestEntry struct {
	Op      Op
	UUID    string
	Dataset model.NonManifestDatasets
}

// EraEntry is one changed node-era mapping.
type EraEntry struct {
	Op   Op
	UUID string
	Era  string
}

// DeploymentStateDiff is the observed-state counterpart of DeploymentDiff:
// an ordered set of per-category, per-node changes.
type DeploymentStateDiff struct {
	NodeStates  []NodeStateEntry
	NonManifest []NonManifestEntry
	Eras        []EraEntry
}

// ComputeDeploymentState returns the diff that ApplyDeploymentState(before,
// diff) turns into after.
func ComputeDeploymentState(before, after model.DeploymentState) DeploymentStateDiff {
	var d DeploymentStateDiff

	for id, ns := range after.Nodes {
		if existing, ok := before.Nodes[id]; !ok || !existing.Equal(ns) {
			d.NodeStates = append(d.NodeStates, NodeStateEntry{Op: OpSet, UUID: id, State: ns})
		}
	}
	for id := range before.Nodes {
		if _, ok := after.Nodes[id]; !ok {
			d.NodeStates = append(d.NodeStates, NodeStateEntry{Op: OpDelete, UUID: id})
		}
	}

	for id, nmd := range after.NonManifestDatasets {
		if existing, ok := before.NonManifestDatasets[id]; !ok || !existing.Equal(nmd) {
			d.NonManifest = append(d.NonManifest, NonManifestEntry{Op: OpSet, UUID: id, Dataset: nmd})
		}
	}
	for id := range before.NonManifestDatasets {
		if _, ok := after.NonManifestDatasets[id]; !ok {
			d.NonManifest = append(d.NonManifest, NonManifestEntry{Op: OpDelete, UUID: id})
		}
	}

	for id, era := range after.Eras {
		if existing, ok := before.Eras[id]; !ok || existing != era {
			d.Eras = append(d.Eras, EraEntry{Op: OpSet, UUID: id, Era: era})
		}
	}
	for id := range before.Eras {
		if _, ok := after.Eras[id]; !ok {
			d.Eras = append(d.Eras, EraEntry{Op: OpDelete, UUID: id})
		}
	}

	return d
}

// ApplyDeploymentState applies d to before and returns the result.
func ApplyDeploymentState(before model.DeploymentState, d DeploymentStateDiff) (model.DeploymentState, error) {
	result := model.DeploymentState{
		Nodes:               copyNodeStates(before.Nodes),
		NonManifestDatasets: copyNonManifest(before.NonManifestDatasets),
		Eras:                copyEras(before.Eras),
	}

	for _, entry := range d.NodeStates {
		switch entry.Op {
		case OpSet:
			result.Nodes[entry.UUID] = entry.State
		case OpDelete:
			delete(result.Nodes, entry.UUID)
		default:
			return model.DeploymentState{}, fmt.Errorf("diff: unknown node-state op %q", entry.Op)
		}
	}
	for _, entry := range d.NonManifest {
		switch entry.Op {
		case OpSet:
			result.NonManifestDatasets[entry.UUID] = entry.Dataset
		case OpDelete:
			delete(result.NonManifestDatasets, entry.UUID)
		default:
			return model.DeploymentState{}, fmt.Errorf("diff: unknown non-manifest op %q", entry.Op)
		}
	}
	for _, entry := range d.Eras {
		switch entry.Op {
		case OpSet:
			result.Eras[entry.UUID] = entry.Era
		case OpDelete:
			delete(result.Eras, entry.UUID)
		default:
			return model.DeploymentState{}, fmt.Errorf("diff: unknown era op %q", entry.Op)
		}
	}
	return result, nil
}

// IsEmpty reports whether d carries no changes.
func (d DeploymentStateDiff) IsEmpty() bool {
	return len(d.NodeStates) == 0 && len(d.NonManifest) == 0 && len(d.Eras) == 0
}

func copyNodeStates(m map[string]model.NodeState) map[string]model.NodeState {
	out := make(map[string]model.NodeState, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func copyNonManifest(m map[string]model.NonManifestDatasets) map[string]model.NonManifestDatasets {
	out := make(map[string]model.NonManifestDatasets, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func copyEras(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
