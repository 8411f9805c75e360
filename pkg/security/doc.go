/*
Package security provides the mTLS identity material the control service
and agents authenticate their connections with, plus the generic
AES-256-GCM helpers used to keep the CA's root key encrypted at rest.

CertAuthority is a self-signed root CA: it issues short-lived node
certificates (control or agent role) and operator client certificates,
all chained to a 10-year root. CAStore is the narrow persistence
interface it needs — any store that can round-trip an opaque blob, such
as pkg/configstore's BoltDB store. SecretsManager and the package-level
Encrypt/Decrypt helpers wrap AES-256-GCM under a key derived from the
cluster ID via DeriveKeyFromClusterID.
*/
package security
