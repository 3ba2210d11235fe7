package payload

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	shell "github.com/ipfs/go-ipfs-api"
)

// IPFSBackend persists the payload on an IPFS node using the mutable files
// API, so the same path always resolves to the latest payload.
type IPFSBackend struct {
	shell       *shell.Shell
	filesPath   string
	log         *slog.Logger
	locationURI string
}

// NewIPFSBackend creates an IPFS persistence backend connected to the node
// at host (host:port of the IPFS API). filesPath is the MFS path the payload
// is written to.
func NewIPFSBackend(host, filesPath string, log *slog.Logger) (*IPFSBackend, error) {
	sh := shell.NewShell(host)

	return &IPFSBackend{
		shell:       sh,
		filesPath:   filesPath,
		log:         log,
		locationURI: fmt.Sprintf("ipfs://%s%s", host, filesPath),
	}, nil
}

// Load reads the payload from the node's mutable files store. Returns
// ErrPayloadNotFound if nothing has been written to the path yet.
func (b *IPFSBackend) Load(ctx context.Context) ([]byte, error) {
	reader, err := b.shell.FilesRead(ctx, b.filesPath)
	if err != nil {
		if strings.Contains(err.Error(), "does not exist") {
			return nil, errNotFound(b.locationURI)
		}
		return nil, fmt.Errorf("failed to read payload from IPFS: %w", err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read payload stream from IPFS: %w", err)
	}

	b.log.Debug("Loaded payload from IPFS",
		slog.String("path", b.filesPath),
		slog.Int("size", len(data)))

	return data, nil
}

// Save writes the payload to the node's mutable files store, truncating any
// previous value.
func (b *IPFSBackend) Save(ctx context.Context, payload []byte) error {
	err := b.shell.FilesWrite(ctx, b.filesPath, bytes.NewReader(payload),
		shell.FilesWrite.Create(true),
		shell.FilesWrite.Parents(true),
		shell.FilesWrite.Truncate(true),
	)
	if err != nil {
		return fmt.Errorf("failed to write payload to IPFS: %w", err)
	}

	b.log.Debug("Saved payload to IPFS",
		slog.String("path", b.filesPath),
		slog.Int("size", len(payload)))

	return nil
}

// LocationURI returns the backend's URI for logging and diagnostics.
func (b *IPFSBackend) LocationURI() string {
	return b.locationURI
}
