package protocol

// Command names from spec.md 4.A's command table. Argument and result
// wire shapes for everything but NoOp live with the side that defines the
// document types involved (pkg/control, pkg/agent); NoOp carries no
// arguments and returns an empty result map, so it belongs here where the
// ping loop issues it directly.
const (
	CommandVersion           = "Version"
	CommandNoOp              = "NoOp"
	CommandSetNodeEra        = "SetNodeEra"
	CommandNodeState         = "NodeState"
	CommandClusterStatus     = "ClusterStatus"
	CommandClusterStatusDiff = "ClusterStatusDiff"
)
