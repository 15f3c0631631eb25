// Package common holds cross-cutting helpers shared by all oracle packages:
// logger setup and build metadata.
package common

// PackageName identifies this service in metrics and logs.
const PackageName = "voter-oracle"

// Version is set at build time via -ldflags.
var Version = "dev"
