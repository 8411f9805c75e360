/*
Package agent implements the convergence agent's control-connection
responder (spec.md §4.G): it handles the control service's ClusterStatus
and ClusterStatusDiff pushes, verifying a diff's start generation against
what it currently holds before applying, and reports this node's observed
state back on a periodic NodeState loop. pkg/convergence is the local
reconciler it notifies and reads local state from; pkg/protocol carries
both directions of traffic over the same Connection.
*/
package agent
