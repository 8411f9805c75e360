// Package diff computes and applies structural diffs over the value-typed
// documents in pkg/model, so the control service can send an agent only
// the node slots that changed instead of re-transmitting an entire
// Deployment or DeploymentState on every broadcast. Each diff is an
// ordered list of per-node operations, following the
// Command{Op, Data}-tagged-union shape the teacher uses for its FSM log
// entries (pkg/manager/fsm.go), generalized from "one command per CRUD
// verb" to "one entry per changed node slot".
package diff

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/cuemby/vessel/pkg/model"
)

// Op tags a single diff entry's operation.
type Op string

const (
	OpSet    Op = "set"
	OpDelete Op = "delete"
)

// DeploymentEntry is one changed node slot in a Deployment diff.
type DeploymentEntry struct {
	Op   Op
	UUID uuid.UUID
	Node model.Node // zero value when Op == OpDelete
}

// DeploymentDiff is an ordered set of node-level changes between two
// Deployments. Entries are independent of each other and of application
// order among themselves — applying them in any order against the same
// `before` converges to the same `after`, since each entry targets a
// distinct node UUID.
type DeploymentDiff struct {
	Entries []DeploymentEntry
}

// ComputeDeployment returns the diff that Apply(before, diff) turns into
// after. A node present in both but unchanged produces no entry.
func ComputeDeployment(before, after model.Deployment) DeploymentDiff {
	var d DeploymentDiff
	for id, node := range after.Nodes {
		if existing, ok := before.Nodes[id]; !ok || !existing.Equal(node) {
			d.Entries = append(d.Entries, DeploymentEntry{Op: OpSet, UUID: id, Node: node})
		}
	}
	for id := range before.Nodes {
		if _, ok := after.Nodes[id]; !ok {
			d.Entries = append(d.Entries, DeploymentEntry{Op: OpDelete, UUID: id})
		}
	}
	return d
}

// ApplyDeployment applies d to before and returns the resulting Deployment.
// Applying a diff whose entries don't match before's actual prior state
// (e.g. a diff computed against a different generation) still produces a
// well-defined result — it simply won't equal the sender's intended
// `after`, which is exactly why the protocol guards diff application on
// generation agreement before ever calling this function.
func ApplyDeployment(before model.Deployment, d DeploymentDiff) (model.Deployment, error) {
	result := before
	for _, entry := range d.Entries {
		switch entry.Op {
		case OpSet:
			result = result.WithNode(entry.Node)
		case OpDelete:
			result = result.WithoutNode(entry.UUID)
		default:
			return model.Deployment{}, fmt.Errorf("diff: unknown deployment op %q", entry.Op)
		}
	}
	return result, nil
}

// IsEmpty reports whether d carries no changes.
func (d DeploymentDiff) IsEmpty() bool {
	return len(d.Entries) == 0
}
