/*
Package events provides a small in-memory pub/sub broker used to notify a
node's local convergence loop about changes in what the control service
has told it, without coupling the protocol responder directly to
whatever acts on that state.

Broker fans out Events to any number of Subscribers over buffered
channels. Publish waits while the broker's own event queue is full; a full
subscriber buffer drops the event rather than stalling the broadcast loop. See EventType for the
catalog of events agent and control-side code raise.
*/
package events
