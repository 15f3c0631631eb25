package storage

import (
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/chainballot/voter-oracle/interfaces"
)

// DirectoryFactory creates identity directory backends from location URIs.
type DirectoryFactory struct {
	log *slog.Logger
}

// NewDirectoryFactory creates a factory instance.
func NewDirectoryFactory(log *slog.Logger) *DirectoryFactory {
	return &DirectoryFactory{log: log}
}

// DirectoryFor creates an identity directory from a location URI.
//
// Supported schemes:
//   - file:// - local filesystem
//   - s3://   - Amazon S3 or compatible object storage
//   - vault://- HashiCorp Vault KV v2
//   - memory://- ephemeral in-process directory
//
// Returns an error if the URI is invalid or the scheme is unsupported.
func (f *DirectoryFactory) DirectoryFor(locationURI string) (interfaces.IdentityDirectory, error) {
	u, err := url.Parse(locationURI)
	if err != nil {
		return nil, fmt.Errorf("invalid directory location URI: %w", err)
	}

	switch strings.ToLower(u.Scheme) {
	case "file":
		return f.createFileDirectory(u)
	case "s3":
		return f.createS3Directory(u)
	case "vault":
		return f.createVaultDirectory(u)
	case "memory":
		return NewMemoryDirectory(), nil
	default:
		return nil, fmt.Errorf("unsupported directory scheme: %s", u.Scheme)
	}
}

// createFileDirectory handles file:///path/to/profiles URIs.
func (f *DirectoryFactory) createFileDirectory(u *url.URL) (interfaces.IdentityDirectory, error) {
	basePath := u.Path
	if u.Host != "" {
		// Allow file://relative/path by joining host and path.
		basePath = u.Host + u.Path
	}
	if basePath == "" {
		return nil, fmt.Errorf("file directory requires a path")
	}
	return NewFileDirectory(basePath, f.log)
}

// createS3Directory handles s3://bucket/prefix?region=...&endpoint=... URIs.
// Credentials may be given as userinfo (s3://key:secret@bucket/...) or left
// to the SDK's default chain.
func (f *DirectoryFactory) createS3Directory(u *url.URL) (interfaces.IdentityDirectory, error) {
	bucket := u.Host
	if bucket == "" {
		return nil, fmt.Errorf("s3 directory requires a bucket name")
	}

	prefix := strings.TrimPrefix(u.Path, "/")
	query := u.Query()
	region := query.Get("region")
	if region == "" {
		region = "us-east-1"
	}
	endpoint := query.Get("endpoint")

	var accessKey, secretKey string
	if u.User != nil {
		accessKey = u.User.Username()
		secretKey, _ = u.User.Password()
	}

	return NewS3Directory(bucket, prefix, region, endpoint, accessKey, secretKey, f.log)
}

// createVaultDirectory handles vault://host:port/mount/path URIs.
func (f *DirectoryFactory) createVaultDirectory(u *url.URL) (interfaces.IdentityDirectory, error) {
	if u.Host == "" {
		return nil, fmt.Errorf("vault directory requires a server address")
	}

	parts := strings.SplitN(strings.Trim(u.Path, "/"), "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return nil, fmt.Errorf("vault directory requires /mount/path, got %q", u.Path)
	}

	scheme := "https"
	if u.Query().Get("insecure") == "true" {
		scheme = "http"
	}
	address := fmt.Sprintf("%s://%s", scheme, u.Host)

	return NewVaultDirectory(address, parts[0], parts[1], f.log)
}
