// Package identity owns the shared persona pool: the durable (or ephemeral)
// store holding synthetic identities and the rotation policy that hands them
// out to crawl workers.
package identity

import (
	"context"
	"time"

	"github.com/Boblepointu/chaosbrowser/api/schemas"
)

// Metadata is the aggregate block persisted alongside the persona map.
type Metadata struct {
	TotalCreated int       `json:"total_created"`
	LastCleanup  time.Time `json:"last_cleanup,omitempty"`
}

// Document is the persisted form of the identity store: a single structured
// record treated as the source of truth shared across worker processes.
type Document struct {
	Personas map[string]*schemas.Persona `json:"personas"`
	Metadata Metadata                    `json:"metadata"`
}

// NewDocument returns an empty, usable document.
func NewDocument() *Document {
	return &Document{Personas: make(map[string]*schemas.Persona)}
}

// Backend loads and saves the whole document. Implementations do not need to
// be safe for concurrent use; the Manager serializes every call.
type Backend interface {
	Load(ctx context.Context) (*Document, error)
	Save(ctx context.Context, doc *Document) error
	Close() error
}

// Stats summarizes the pool for the personas subcommand and telemetry.
type Stats struct {
	TotalPersonas int       `json:"total_personas"`
	TotalCreated  int       `json:"total_created"`
	Eligible      int       `json:"eligible"`
	AvgUseCount   float64   `json:"avg_use_count"`
	MinUseCount   int       `json:"min_use_count"`
	MaxUseCount   int       `json:"max_use_count"`
	OldestCreated time.Time `json:"oldest_created,omitempty"`
	NewestCreated time.Time `json:"newest_created,omitempty"`
}
