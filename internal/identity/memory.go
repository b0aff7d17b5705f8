package identity

import (
	"context"
)

// MemoryBackend keeps the document in process memory. It is the fallback
// when a durable backend cannot be opened, and the configured backend when
// durability is not wanted.
type MemoryBackend struct {
	doc *Document
}

// NewMemoryBackend returns an empty in-memory store.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{doc: NewDocument()}
}

func (b *MemoryBackend) Load(_ context.Context) (*Document, error) {
	return b.doc, nil
}

func (b *MemoryBackend) Save(_ context.Context, doc *Document) error {
	b.doc = doc
	return nil
}

func (b *MemoryBackend) Close() error { return nil }
