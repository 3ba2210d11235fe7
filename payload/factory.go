package payload

import (
	"fmt"
	"log/slog"
	"net/url"
	"path"
	"strings"

	"github.com/ruteri/context-factory/interfaces"
)

// errNotFound wraps ErrPayloadNotFound with the backend location.
func errNotFound(locationURI string) error {
	return fmt.Errorf("%w: %s", interfaces.ErrPayloadNotFound, locationURI)
}

// BackendFor creates a payload persistence backend from a location URI.
// The URI format is [scheme]://[auth@]host[:port][/path][?params]
//
// Supported schemes:
//   - file:// - Local filesystem
//   - s3://   - Amazon S3 or compatible object storage
//   - vault:// - HashiCorp Vault KV storage
//   - ipfs:// - IPFS node (mutable files API)
//
// Returns an error if the URI is invalid or the scheme is unsupported.
func BackendFor(locationURI string, log *slog.Logger) (interfaces.PayloadBackend, error) {
	u, err := url.Parse(locationURI)
	if err != nil {
		return nil, fmt.Errorf("invalid payload backend URI: %w", err)
	}

	switch strings.ToLower(u.Scheme) {
	case "file":
		return NewFileBackend(u.Path, log)
	case "s3":
		return createS3Backend(u, log)
	case "vault":
		return createVaultBackend(u, log)
	case "ipfs":
		return createIPFSBackend(u, log)
	default:
		return nil, fmt.Errorf("unsupported payload backend scheme: %s", u.Scheme)
	}
}

// createS3Backend builds an S3 backend from a parsed URI.
// URI format: s3://[accessKey:secretKey@]bucket/key?region=us-west-2[&endpoint=...]
func createS3Backend(u *url.URL, log *slog.Logger) (interfaces.PayloadBackend, error) {
	bucket := u.Host
	if bucket == "" {
		return nil, fmt.Errorf("s3 URI missing bucket name")
	}

	key := strings.TrimPrefix(u.Path, "/")
	if key == "" {
		key = "payload"
	}

	region := u.Query().Get("region")
	if region == "" {
		region = "us-east-1"
	}
	endpoint := u.Query().Get("endpoint")

	var accessKey, secretKey string
	if u.User != nil {
		accessKey = u.User.Username()
		secretKey, _ = u.User.Password()
	}

	return NewS3Backend(bucket, key, region, endpoint, accessKey, secretKey, log)
}

// createVaultBackend builds a Vault backend from a parsed URI.
// URI format: vault://host:port/mount/path?token=...
func createVaultBackend(u *url.URL, log *slog.Logger) (interfaces.PayloadBackend, error) {
	if u.Host == "" {
		return nil, fmt.Errorf("vault URI missing host")
	}

	parts := strings.SplitN(strings.TrimPrefix(u.Path, "/"), "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return nil, fmt.Errorf("vault URI path must be /mount/path")
	}

	address := fmt.Sprintf("https://%s", u.Host)
	if u.Query().Get("insecure") == "true" {
		address = fmt.Sprintf("http://%s", u.Host)
	}

	return NewVaultBackend(address, parts[0], parts[1], u.Query().Get("token"), log)
}

// createIPFSBackend builds an IPFS backend from a parsed URI.
// URI format: ipfs://host:port/files/path
func createIPFSBackend(u *url.URL, log *slog.Logger) (interfaces.PayloadBackend, error) {
	if u.Host == "" {
		return nil, fmt.Errorf("ipfs URI missing host")
	}

	filesPath := u.Path
	if filesPath == "" || filesPath == "/" {
		filesPath = "/factory/payload"
	}
	filesPath = path.Clean(filesPath)

	return NewIPFSBackend(u.Host, filesPath, log)
}
