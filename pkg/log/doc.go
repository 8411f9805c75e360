/*
Package log provides structured logging for vessel using zerolog.

All components route through a single global Logger configured once at
process startup via Init. Component-specific child loggers are built with
WithComponent, WithNodeUUID, WithConnection, and WithAction — the last
matching the structured action taxonomy the control service uses for
broadcast-pass logging (one parent action per pass, one child per
per-connection send).

Console output is used for interactive sessions; JSON output is intended
for production log aggregation.
*/
package log
