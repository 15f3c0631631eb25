// Package interfaces defines the shared types, error taxonomy, and component
// contracts of the voter authorization oracle.
//
// The oracle binds an enrolled person's stable identifier to exactly one
// ledger address, gates that binding behind a possession factor (one-time
// code) and a biometric factor (facial descriptor comparison), bridges an
// approved identity to the privileged on-chain authorization, and relays
// governance events to live subscribers.
//
// Components depend on each other only through the interfaces declared here:
//
//   - IdentityDirectory: durable profile storage (file, S3, Vault, memory)
//   - CodeProvider: external one-time-code delivery and verification
//   - GovernanceLedger: the on-chain governance contract
//
// All errors returned across component boundaries are classifiable with
// errors.Is/errors.As against the sentinels and typed errors in errors.go.
package interfaces
