/*
Package metrics provides Prometheus metrics collection and exposition for
vessel's control plane.

Gauges and counters cover connection lifecycle, broadcast-pass timing,
generation-hash/diff cost, and cluster-state store size. Handler exposes
them for scraping; HealthHandler/ReadyHandler/LivenessHandler back the
process's /health, /ready, and /live endpoints. Timer is the shared
start-now/observe-later helper used across the control service and agent.
*/
package metrics
