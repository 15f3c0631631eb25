// Package storage implements identity directory backends behind the
// interfaces.IdentityDirectory contract.
//
// Backends are created from location URIs by DirectoryFactory:
//
//   - file:///var/lib/oracle/profiles - local filesystem, one JSON document
//     per profile, written atomically (temp file + rename)
//   - s3://bucket/prefix?region=us-east-1 - Amazon S3 or compatible object
//     storage, one object per profile
//   - vault://vault.example.com:8200/secret/voters - HashiCorp Vault KV v2;
//     profiles carry biometric templates, which are secrets
//   - memory:// - ephemeral in-process directory for tests and development
//
// Every backend guarantees that a profile write is durable before Store
// returns and that readers never observe a partially written profile.
package storage
