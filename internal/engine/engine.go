// Package engine supervises the crawl: it fans targets out to a fixed pool
// of workers, each of which runs a strictly sequential journey pipeline
// (acquire persona, open session, navigate, clear challenges, browse,
// release persona). Worker failures are contained to their current target.
package engine

import (
	"context"
	"math/rand"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Boblepointu/chaosbrowser/internal/automaton"
	"github.com/Boblepointu/chaosbrowser/internal/config"
	"github.com/Boblepointu/chaosbrowser/internal/fingerprint"
	"github.com/Boblepointu/chaosbrowser/internal/identity"
)

// Engine owns the shared collaborators and runs crawl passes.
type Engine struct {
	cfg      *config.Config
	manager  *identity.Manager
	strategy identity.Strategy
	log      *zap.Logger
}

// New wires up the identity stack and validates the rotation strategy.
// Configuration errors abort startup; storage trouble does not, the manager
// degrades to its in-memory backend on its own.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Engine, error) {
	strategy, err := identity.ParseStrategy(cfg.Rotation.Strategy)
	if err != nil {
		return nil, err
	}

	gen, err := fingerprint.NewGenerator(logger)
	if err != nil {
		return nil, err
	}

	manager := identity.Open(ctx, cfg.Store, cfg.Rotation, gen, logger)

	return &Engine{
		cfg:      cfg,
		manager:  manager,
		strategy: strategy,
		log:      logger.Named("engine"),
	}, nil
}

// Manager exposes the identity manager for maintenance commands.
func (e *Engine) Manager() *identity.Manager {
	return e.manager
}

// Close releases the identity store.
func (e *Engine) Close() error {
	return e.manager.Close()
}

// Run crawls every target once, spread across the configured worker count.
// It returns the number of targets that were browsed successfully. A
// cancelled context stops workers at their next target boundary.
func (e *Engine) Run(ctx context.Context, targets []string) (int, error) {
	e.log.Info("Starting crawl",
		zap.Int("targets", len(targets)),
		zap.Int("workers", e.cfg.Crawl.Workers),
		zap.String("strategy", string(e.strategy)))

	// One expired-persona sweep per crawl pass keeps the pool bounded
	// without a dedicated janitor process.
	if evicted := e.manager.EvictExpired(ctx); evicted > 0 {
		e.log.Info("Evicted expired personas", zap.Int("count", evicted))
	}

	feed := make(chan string)
	results := make(chan bool, len(targets))

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < e.cfg.Crawl.Workers; i++ {
		worker := i
		g.Go(func() error {
			j := &journey{
				cfg:      e.cfg,
				manager:  e.manager,
				strategy: e.strategy,
				auto:     automaton.New(e.cfg.Automaton, e.log),
				log:      e.log.With(zap.Int("worker", worker)),
				rng:      rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker))),
			}
			for target := range feed {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				results <- j.visit(gctx, target)
			}
			return nil
		})
	}

	g.Go(func() error {
		defer close(feed)
		for _, target := range targets {
			select {
			case feed <- target:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})

	err := g.Wait()
	close(results)

	succeeded := 0
	for ok := range results {
		if ok {
			succeeded++
		}
	}

	e.log.Info("Crawl finished",
		zap.Int("targets", len(targets)),
		zap.Int("succeeded", succeeded))
	return succeeded, err
}
