package payload

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// FileBackend persists the payload as a single file on the local file
// system. Saves are atomic via a rename from a temporary file.
type FileBackend struct {
	path        string
	log         *slog.Logger
	locationURI string
}

// NewFileBackend creates a file persistence backend at the given path,
// creating parent directories as needed.
func NewFileBackend(path string, log *slog.Logger) (*FileBackend, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create payload directory: %w", err)
	}

	return &FileBackend{
		path:        path,
		log:         log,
		locationURI: fmt.Sprintf("file://%s", path),
	}, nil
}

// Load reads the persisted payload. Returns ErrPayloadNotFound if the file
// does not exist.
func (b *FileBackend) Load(ctx context.Context) ([]byte, error) {
	data, err := os.ReadFile(b.path)
	if os.IsNotExist(err) {
		return nil, errNotFound(b.locationURI)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read payload file: %w", err)
	}

	b.log.Debug("Loaded payload from file", slog.String("path", b.path), slog.Int("size", len(data)))
	return data, nil
}

// Save writes the payload to a temporary file and renames it into place.
func (b *FileBackend) Save(ctx context.Context, payload []byte) error {
	tmp := b.path + ".tmp"
	if err := os.WriteFile(tmp, payload, 0644); err != nil {
		return fmt.Errorf("failed to write payload file: %w", err)
	}
	if err := os.Rename(tmp, b.path); err != nil {
		return fmt.Errorf("failed to move payload file into place: %w", err)
	}

	b.log.Debug("Saved payload to file", slog.String("path", b.path), slog.Int("size", len(payload)))
	return nil
}

// LocationURI returns the backend's URI for logging and diagnostics.
func (b *FileBackend) LocationURI() string {
	return b.locationURI
}
