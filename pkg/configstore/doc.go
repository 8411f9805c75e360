/*
Package configstore persists the authored Deployment document spec.md §1
names as an external collaborator ("the persistence of the configuration
document"): a YAML file on disk is the document's source of truth, BoltDB
is its durable cache across restarts, and an in-memory copy is what
pkg/control.Engine actually reads on every broadcast pass so the hot path
never touches disk. Store satisfies pkg/control.ConfigSource.
*/
package configstore
