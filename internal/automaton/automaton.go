// Package automaton clears consent banners and anti-bot gates with a
// bounded-retry state machine. It classifies each page load, runs an ordered
// attempt cascade against interactive challenges, waits out passive ones,
// and always terminates in one of three outcomes the crawl loop understands.
// CAPTCHA pages are recognized and skipped, never attempted.
package automaton

import (
	"context"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/Boblepointu/chaosbrowser/api/schemas"
	"github.com/Boblepointu/chaosbrowser/internal/browser"
	"github.com/Boblepointu/chaosbrowser/internal/browser/humanoid"
	"github.com/Boblepointu/chaosbrowser/internal/config"
)

// Page is the browsing surface the automaton drives. *browser.Session
// satisfies it; tests substitute a scripted fake.
type Page interface {
	HTML(ctx context.Context) (string, error)
	VisibleText(ctx context.Context) (string, error)
	SelectorCenter(ctx context.Context, selector string) (humanoid.Vector2D, string, bool, error)
	Clickables(ctx context.Context) ([]browser.Clickable, error)
	FrameClickables(ctx context.Context) ([]browser.Clickable, error)
	Click(ctx context.Context, pt humanoid.Vector2D) error
	Pause(ctx context.Context, mean, stddev time.Duration) error
}

// challengeContext is the ephemeral per-page-load state. It never outlives
// one Run call.
type challengeContext struct {
	attempt     int
	maxAttempts int
	class       schemas.ChallengeClass
}

// Automaton runs the challenge state machine. Safe for reuse across page
// loads; all per-run state lives in the challengeContext.
type Automaton struct {
	cfg config.AutomatonConfig
	log *zap.Logger
	rng *rand.Rand
}

// New creates an automaton with the given retry budget and delay window.
func New(cfg config.AutomatonConfig, logger *zap.Logger) *Automaton {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	return &Automaton{
		cfg: cfg,
		log: logger.Named("automaton"),
		rng: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// WithRand overrides the delay RNG, for deterministic tests.
func (a *Automaton) WithRand(rng *rand.Rand) *Automaton {
	a.rng = rng
	return a
}

// Run executes the state machine against one page load and always returns a
// terminal outcome. Unexpected errors never propagate; they resolve to an
// optimistic pass marked ViaErrorFallback so telemetry can tell the
// difference even though the crawl continues either way.
func (a *Automaton) Run(ctx context.Context, pg Page) schemas.ChallengeOutcome {
	cc := &challengeContext{maxAttempts: a.cfg.MaxAttempts}

	class, err := a.detect(ctx, pg)
	if err != nil {
		return a.errorFallback(cc, err)
	}
	cc.class = class

	switch class {
	case schemas.NoChallenge:
		return schemas.ChallengeOutcome{Result: schemas.ChallengePassed, Class: class}
	case schemas.CaptchaPresent:
		a.log.Info("CAPTCHA detected, skipping target without interaction")
		return schemas.ChallengeOutcome{Result: schemas.ChallengeSkipped, Class: class}
	}

	for cc.attempt = 1; cc.attempt <= cc.maxAttempts; cc.attempt++ {
		if err := a.attemptOnce(ctx, pg, cc); err != nil {
			return a.errorFallback(cc, err)
		}

		class, err := a.detect(ctx, pg)
		if err != nil {
			return a.errorFallback(cc, err)
		}
		switch class {
		case schemas.NoChallenge:
			a.log.Info("Challenge cleared",
				zap.String("class", string(cc.class)),
				zap.Int("attempts", cc.attempt))
			return schemas.ChallengeOutcome{
				Result:   schemas.ChallengePassed,
				Class:    cc.class,
				Attempts: cc.attempt,
			}
		case schemas.CaptchaPresent:
			// The page escalated to a puzzle. Stop touching it.
			a.log.Info("Challenge escalated to CAPTCHA, skipping target",
				zap.Int("attempts", cc.attempt))
			return schemas.ChallengeOutcome{
				Result:   schemas.ChallengeSkipped,
				Class:    schemas.CaptchaPresent,
				Attempts: cc.attempt,
			}
		}
		cc.class = class
	}

	a.log.Warn("Challenge attempts exhausted, abandoning target",
		zap.String("class", string(cc.class)),
		zap.Int("attempts", cc.maxAttempts))
	return schemas.ChallengeOutcome{
		Result:   schemas.ChallengeFailed,
		Class:    cc.class,
		Attempts: cc.maxAttempts,
	}
}

// attemptOnce performs one attempt cycle for the current classification:
// wait out an automatic check, or run the cascade against an interactive
// one, bracketed by randomized pauses so attempt timing never repeats.
func (a *Automaton) attemptOnce(ctx context.Context, pg Page, cc *challengeContext) error {
	if cc.class == schemas.AutomaticPending {
		a.log.Debug("Waiting for automatic check to resolve",
			zap.Duration("wait", a.cfg.AutomaticWait))
		return pg.Pause(ctx, a.cfg.AutomaticWait, a.cfg.AutomaticWait/8)
	}

	if err := a.randomPause(ctx, pg); err != nil {
		return err
	}

	for _, s := range a.strategies() {
		clicked, err := s.attempt(ctx, pg)
		if err != nil {
			return err
		}
		if clicked {
			a.log.Debug("Attempt strategy succeeded",
				zap.String("strategy", s.name),
				zap.Int("attempt", cc.attempt))
			break
		}
	}

	return a.randomPause(ctx, pg)
}

// randomPause sleeps for a uniformly drawn duration inside the configured
// delay window.
func (a *Automaton) randomPause(ctx context.Context, pg Page) error {
	window := a.cfg.MaxDelay - a.cfg.MinDelay
	d := a.cfg.MinDelay
	if window > 0 {
		d += time.Duration(a.rng.Int63n(int64(window)))
	}
	return pg.Pause(ctx, d, d/4)
}

// errorFallback converts an unexpected error into an optimistic pass.
func (a *Automaton) errorFallback(cc *challengeContext, err error) schemas.ChallengeOutcome {
	a.log.Warn("Unexpected error during challenge handling, proceeding optimistically",
		zap.String("class", string(cc.class)),
		zap.Int("attempt", cc.attempt),
		zap.Error(err))
	return schemas.ChallengeOutcome{
		Result:           schemas.ChallengePassed,
		Class:            cc.class,
		Attempts:         cc.attempt,
		ViaErrorFallback: true,
	}
}

func browserPoint(c browser.Clickable) humanoid.Vector2D {
	return humanoid.Vector2D{X: c.X, Y: c.Y}
}
