/*
Package protocol implements the connection state machine shared by the
control service and its agents: {Unconnected, Connected, Disconnecting,
Closed}, command dispatch through a Locator, outgoing calls tracked by
correlation id, and the ping/idle-abort timer pair that detects a dead
peer without relying on TCP keepalive.

A Connection is transport-agnostic — it wraps any net.Conn, including the
mTLS-terminated ones pkg/security issues certificates for — and leaves
encoding to pkg/wire. Callers register command handlers on a Locator and
issue outgoing calls with CallRemote; everything else (ping cadence, idle
detection, correlation bookkeeping) runs unattended once Start is called.
*/
package protocol
