/*
Package convergence stands in for the block-device convergence engine
spec.md §1 names as an external collaborator: the thing that actually
creates/destroys/attaches/mounts/resizes datasets and containers to make
observed reality match desired configuration. Its algorithms are out of
core scope; this package specifies only the boundary pkg/agent calls
across.
*/
package convergence

import (
	"github.com/cuemby/vessel/pkg/log"
	"github.com/cuemby/vessel/pkg/model"
)

// Engine is notified whenever the agent responder adopts a new
// configuration, or needs to discard one because a diff was rejected and a
// resync is pending.
type Engine interface {
	// ClusterStatusChanged is called after a full or diffed ClusterStatus
	// has been applied locally, with the node's own entry in the newly
	// adopted configuration (absent if this node has none).
	ClusterStatusChanged(config model.Deployment, self *model.Node)
	// ResyncRequired is called when a ClusterStatusDiff was rejected for a
	// start-generation mismatch, so local state was left untouched pending
	// a fresh full snapshot.
	ResyncRequired()
	// LocalState reports this node's current observed reality, assembled
	// into the next NodeState report.
	LocalState() (model.NodeState, model.NonManifestDatasets)
}

// NoopEngine logs the calls a real dataset/container engine would act on,
// and reports an empty local state. It is the default Engine until a real
// one exists; nothing in pkg/agent depends on convergence doing anything
// beyond satisfying the interface.
type NoopEngine struct {
	NodeUUID string
	Hostname string
}

// NewNoopEngine returns a NoopEngine identified by nodeUUID/hostname for
// its log lines and empty LocalState reports.
func NewNoopEngine(nodeUUID, hostname string) *NoopEngine {
	return &NoopEngine{NodeUUID: nodeUUID, Hostname: hostname}
}

func (n *NoopEngine) ClusterStatusChanged(config model.Deployment, self *model.Node) {
	l := log.WithComponent("convergence")
	if self == nil {
		l.Debug().Str("node_uuid", n.NodeUUID).Msg("configuration applied, node has no assigned entry")
		return
	}
	l.Info().Str("node_uuid", n.NodeUUID).Int("applications", len(self.Applications)).
		Msg("configuration applied, convergence would reconcile applications here")
}

func (n *NoopEngine) ResyncRequired() {
	log.WithComponent("convergence").Warn().Str("node_uuid", n.NodeUUID).Msg("resync required, awaiting full snapshot")
}

func (n *NoopEngine) LocalState() (model.NodeState, model.NonManifestDatasets) {
	return model.NodeState{
			UUID:           n.NodeUUID,
			Hostname:       n.Hostname,
			Applications:   map[string]model.Application{},
			Devices:        map[string]string{},
			Paths:          map[string]string{},
			Manifestations: map[string]model.Manifestation{},
		}, model.NonManifestDatasets{
			UUID:       n.NodeUUID,
			DatasetIDs: map[string]struct{}{},
		}
}
