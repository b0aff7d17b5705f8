package identity

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Boblepointu/chaosbrowser/api/schemas"
	"github.com/Boblepointu/chaosbrowser/internal/config"
)

// Strategy selects how Acquire picks among eligible personas.
type Strategy string

const (
	StrategyWeighted   Strategy = "weighted"
	StrategyRandom     Strategy = "random"
	StrategyRoundRobin Strategy = "round-robin"
	StrategyNew        Strategy = "new"
)

// ParseStrategy converts a configuration string into a Strategy.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case StrategyWeighted, StrategyRandom, StrategyRoundRobin, StrategyNew:
		return Strategy(s), nil
	}
	return "", fmt.Errorf("unknown rotation strategy %q", s)
}

// Synthesizer produces a fresh persona on a store miss. Implemented by
// fingerprint.Generator.
type Synthesizer interface {
	Synthesize() (*schemas.Persona, error)
}

// Manager owns the identity store. Every read-modify-write sequence
// (selection plus usage update) happens under one lock followed by a durable
// save, so concurrent workers never lose updates.
type Manager struct {
	mu      sync.Mutex
	doc     *Document
	backend Backend
	gen     Synthesizer
	rot     config.RotationConfig
	store   config.StoreConfig
	log     *zap.Logger
	rng     *rand.Rand
	now     func() time.Time
}

// Open builds a Manager on the configured backend. A durable backend that
// cannot be opened or loaded degrades to an ephemeral in-memory store with a
// warning; session startup is never blocked on storage failure.
func Open(ctx context.Context, storeCfg config.StoreConfig, rotCfg config.RotationConfig, gen Synthesizer, logger *zap.Logger) *Manager {
	log := logger.Named("identity")

	backend, err := openBackend(ctx, storeCfg)
	if err != nil {
		log.Warn("Durable persona store unavailable, falling back to in-memory store for this process",
			zap.String("backend", storeCfg.Backend), zap.Error(err))
		backend = NewMemoryBackend()
	}

	doc, err := backend.Load(ctx)
	if err != nil {
		log.Warn("Persona store unreadable, falling back to in-memory store for this process",
			zap.String("backend", storeCfg.Backend), zap.Error(err))
		backend.Close() //nolint:errcheck
		backend = NewMemoryBackend()
		doc = NewDocument()
	}

	return &Manager{
		doc:     doc,
		backend: backend,
		gen:     gen,
		rot:     rotCfg,
		store:   storeCfg,
		log:     log,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
		now:     time.Now,
	}
}

func openBackend(ctx context.Context, cfg config.StoreConfig) (Backend, error) {
	switch cfg.Backend {
	case "memory":
		return NewMemoryBackend(), nil
	case "file":
		return NewFileBackend(cfg.Path)
	case "sqlite":
		return NewSQLiteBackend(ctx, cfg.Path)
	}
	return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
}

// Close releases the backend.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.backend.Close()
}

// eligible implements the selection predicate: young enough and not overused.
func (m *Manager) eligible(p *schemas.Persona, now time.Time) bool {
	maxAge := time.Duration(m.rot.MaxAgeDays) * 24 * time.Hour
	return p.Age(now) < maxAge && p.UseCount < m.rot.MaxUses
}

// Acquire returns an eligible persona chosen by strategy, or synthesizes a
// new one when the strategy is "new" or no persona qualifies.
func (m *Manager) Acquire(ctx context.Context, strategy Strategy) (schemas.Persona, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if strategy != StrategyNew {
		if p := m.selectLocked(strategy); p != nil {
			m.log.Debug("Reusing persona",
				zap.String("persona_id", p.ID),
				zap.String("strategy", string(strategy)),
				zap.Int("use_count", p.UseCount))
			return *p, nil
		}
	}

	p, err := m.gen.Synthesize()
	if err != nil {
		return schemas.Persona{}, fmt.Errorf("failed to synthesize persona: %w", err)
	}

	m.doc.Personas[p.ID] = p
	m.doc.Metadata.TotalCreated++
	m.saveLocked(ctx)

	m.log.Info("Created persona",
		zap.String("persona_id", p.ID),
		zap.String("browser", string(p.BrowserKind)),
		zap.String("os", p.Software.OSFamily),
		zap.Int("total_created", m.doc.Metadata.TotalCreated))
	return *p, nil
}

// selectLocked picks among eligible personas. Returns nil when none qualify.
func (m *Manager) selectLocked(strategy Strategy) *schemas.Persona {
	now := m.now()

	var eligible []*schemas.Persona
	for _, p := range m.doc.Personas {
		if m.eligible(p, now) {
			eligible = append(eligible, p)
		}
	}
	if len(eligible) == 0 {
		return nil
	}

	// Map iteration order is random; sort for deterministic tie-breaks.
	sort.Slice(eligible, func(i, j int) bool { return eligible[i].ID < eligible[j].ID })

	switch strategy {
	case StrategyRandom:
		return eligible[m.rng.Intn(len(eligible))]

	case StrategyWeighted:
		// Weight inversely by use count so under-used personas surface.
		total := 0.0
		for _, p := range eligible {
			total += 1.0 / float64(p.UseCount+1)
		}
		r := m.rng.Float64() * total
		cumulative := 0.0
		for _, p := range eligible {
			cumulative += 1.0 / float64(p.UseCount+1)
			if r <= cumulative {
				return p
			}
		}
		return eligible[0]

	case StrategyRoundRobin:
		best := eligible[0]
		for _, p := range eligible[1:] {
			if p.LastUsedAt.Before(best.LastUsedAt) {
				best = p
			}
		}
		return best
	}
	return nil
}

// Release records one use of the persona. Unknown IDs are ignored so a
// worker holding a persona across a cleanup pass cannot fail its pipeline.
func (m *Manager) Release(ctx context.Context, id string, outcome schemas.ChallengeOutcome) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.doc.Personas[id]
	if !ok {
		m.log.Debug("Released persona no longer in store", zap.String("persona_id", id))
		return
	}

	p.UseCount++
	p.LastUsedAt = m.now()
	m.saveLocked(ctx)

	m.log.Debug("Released persona",
		zap.String("persona_id", id),
		zap.Int("use_count", p.UseCount),
		zap.String("outcome", string(outcome.Result)))
}

// EvictExpired purges personas outside the retention window and caps the
// pool at store.max_personas, keeping the most recently used. Returns the
// number removed.
func (m *Manager) EvictExpired(ctx context.Context) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	retention := time.Duration(m.store.RetentionDays) * 24 * time.Hour

	var kept []*schemas.Persona
	for _, p := range m.doc.Personas {
		if retention > 0 && p.Age(now) >= retention {
			continue
		}
		kept = append(kept, p)
	}

	if m.store.MaxPersonas > 0 && len(kept) > m.store.MaxPersonas {
		sort.Slice(kept, func(i, j int) bool {
			if !kept[i].LastUsedAt.Equal(kept[j].LastUsedAt) {
				return kept[i].LastUsedAt.After(kept[j].LastUsedAt)
			}
			return kept[i].ID < kept[j].ID
		})
		kept = kept[:m.store.MaxPersonas]
	}

	removed := len(m.doc.Personas) - len(kept)
	if removed > 0 {
		personas := make(map[string]*schemas.Persona, len(kept))
		for _, p := range kept {
			personas[p.ID] = p
		}
		m.doc.Personas = personas
		m.doc.Metadata.LastCleanup = now
		m.saveLocked(ctx)
		m.log.Info("Cleaned expired personas", zap.Int("removed", removed), zap.Int("remaining", len(kept)))
	}
	return removed
}

// Stats returns aggregate pool statistics.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	stats := Stats{
		TotalPersonas: len(m.doc.Personas),
		TotalCreated:  m.doc.Metadata.TotalCreated,
	}
	if stats.TotalPersonas == 0 {
		return stats
	}

	first := true
	sum := 0
	for _, p := range m.doc.Personas {
		sum += p.UseCount
		if m.eligible(p, now) {
			stats.Eligible++
		}
		if first {
			stats.MinUseCount = p.UseCount
			stats.MaxUseCount = p.UseCount
			stats.OldestCreated = p.CreatedAt
			stats.NewestCreated = p.CreatedAt
			first = false
			continue
		}
		if p.UseCount < stats.MinUseCount {
			stats.MinUseCount = p.UseCount
		}
		if p.UseCount > stats.MaxUseCount {
			stats.MaxUseCount = p.UseCount
		}
		if p.CreatedAt.Before(stats.OldestCreated) {
			stats.OldestCreated = p.CreatedAt
		}
		if p.CreatedAt.After(stats.NewestCreated) {
			stats.NewestCreated = p.CreatedAt
		}
	}
	stats.AvgUseCount = float64(sum) / float64(stats.TotalPersonas)
	return stats
}

// saveLocked persists the document. A failed save is a warning, not an
// error: the in-memory state stays authoritative for this process and the
// next successful save catches it up.
func (m *Manager) saveLocked(ctx context.Context) {
	if err := m.backend.Save(ctx, m.doc); err != nil {
		m.log.Warn("Failed to persist persona store", zap.Error(err))
	}
}
