package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Boblepointu/chaosbrowser/api/schemas"
)

// FileBackend persists the document as a single JSON file. Writes go through
// a temp file followed by an atomic rename so a crashed worker never leaves a
// half-written store behind.
type FileBackend struct {
	path string
}

// NewFileBackend prepares a JSON-file store at path, creating the parent
// directory if needed.
func NewFileBackend(path string) (*FileBackend, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}
	return &FileBackend{path: path}, nil
}

func (b *FileBackend) Load(_ context.Context) (*Document, error) {
	data, err := os.ReadFile(b.path)
	if os.IsNotExist(err) {
		return NewDocument(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read persona store: %w", err)
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("persona store %s is corrupt: %w", b.path, err)
	}
	if doc.Personas == nil {
		doc.Personas = make(map[string]*schemas.Persona)
	}
	return &doc, nil
}

func (b *FileBackend) Save(_ context.Context, doc *Document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal persona store: %w", err)
	}

	tmp := b.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write persona store: %w", err)
	}
	if err := os.Rename(tmp, b.path); err != nil {
		return fmt.Errorf("failed to replace persona store: %w", err)
	}
	return nil
}

func (b *FileBackend) Close() error { return nil }
