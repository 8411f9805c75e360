/*
Package control implements the control service's broadcast engine: it
coalesces bursty configuration saves and cluster-state changes behind a
batching timer, keeps at most one outstanding send per connection with
newest-wins supersession of anything that arrives while a send is
in-flight, and picks a generational diff or a full snapshot per
connection based on what that peer last acknowledged.

Engine owns the event loop every mutation — connection join/leave, a
decoded NodeState or SetNodeEra command, a finished CallRemote — funnels
through, so the cluster-state store and the per-connection send queues
are touched from exactly one goroutine despite each connection's read
loop running independently. BuildLocator wires a connection's inbound
command dispatch back onto that loop.
*/
package control
