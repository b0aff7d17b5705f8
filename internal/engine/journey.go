package engine

import (
	"context"
	"math/rand"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/Boblepointu/chaosbrowser/api/schemas"
	"github.com/Boblepointu/chaosbrowser/internal/automaton"
	"github.com/Boblepointu/chaosbrowser/internal/browser"
	"github.com/Boblepointu/chaosbrowser/internal/config"
	"github.com/Boblepointu/chaosbrowser/internal/identity"
)

// journey visits one target as one persona: navigate, clear challenges,
// browse like a reader, then wander same-host links up to the depth budget.
// Failures abandon the target, never the worker.
type journey struct {
	cfg      *config.Config
	manager  *identity.Manager
	strategy identity.Strategy
	auto     *automaton.Automaton
	log      *zap.Logger
	rng      *rand.Rand
}

// visit runs the full journey for target and reports whether browsing got
// past the landing page.
func (j *journey) visit(ctx context.Context, target string) bool {
	persona, err := j.manager.Acquire(ctx, j.strategy)
	if err != nil {
		j.log.Error("Failed to acquire persona, skipping target",
			zap.String("target", target), zap.Error(err))
		return false
	}

	log := j.log.With(
		zap.String("target", target),
		zap.String("persona_id", persona.ID))

	session, err := browser.NewSession(ctx, j.cfg, persona, log)
	if err != nil {
		log.Error("Failed to establish browser session, skipping target", zap.Error(err))
		j.manager.Release(ctx, persona.ID, schemas.ChallengeOutcome{Result: schemas.ChallengeFailed})
		return false
	}
	defer session.Close()

	outcome := j.browse(ctx, session, target, log)
	j.manager.Release(ctx, persona.ID, outcome)
	return outcome.Success()
}

// browse performs the navigation loop and returns the outcome of the first
// challenge encounter, which is what persona usage accounting keys on.
func (j *journey) browse(ctx context.Context, session *browser.Session, target string, log *zap.Logger) schemas.ChallengeOutcome {
	if err := session.Navigate(ctx, target); err != nil {
		log.Warn("Navigation failed, abandoning target", zap.Error(err))
		return schemas.ChallengeOutcome{Result: schemas.ChallengeFailed}
	}

	outcome := j.auto.Run(ctx, session)
	log.Info("Challenge automaton finished",
		zap.String("result", string(outcome.Result)),
		zap.String("class", string(outcome.Class)),
		zap.Int("attempts", outcome.Attempts),
		zap.Bool("via_error_fallback", outcome.ViaErrorFallback))
	if outcome.Result == schemas.ChallengeFailed {
		return outcome
	}
	if outcome.Result == schemas.ChallengeSkipped {
		// CAPTCHA page. Leave without touching anything else.
		return outcome
	}

	j.readPage(ctx, session, log)

	for depth := 1; depth < j.cfg.Crawl.MaxDepth; depth++ {
		next, ok := j.pickLink(ctx, session, target)
		if !ok {
			break
		}
		if err := session.Navigate(ctx, next); err != nil {
			log.Debug("Follow-up navigation failed, ending journey",
				zap.String("url", next), zap.Error(err))
			break
		}
		if sub := j.auto.Run(ctx, session); !sub.Success() {
			log.Debug("Challenge blocked a follow-up page, ending journey",
				zap.String("url", next))
			break
		}
		j.readPage(ctx, session, log)
	}

	return outcome
}

// readPage mimics a human consuming the page: scroll in bursts, dwell,
// sometimes scroll back up a little.
func (j *journey) readPage(ctx context.Context, session *browser.Session, log *zap.Logger) {
	scrollDown := 600 + j.rng.Float64()*2400
	if err := session.Scroll(ctx, scrollDown); err != nil {
		log.Debug("Scroll failed", zap.Error(err))
		return
	}
	if j.rng.Float64() < 0.35 {
		if err := session.Scroll(ctx, -scrollDown*0.3); err != nil {
			log.Debug("Scroll-back failed", zap.Error(err))
			return
		}
	}

	dwell := j.cfg.Crawl.DwellMin
	if window := j.cfg.Crawl.DwellMax - j.cfg.Crawl.DwellMin; window > 0 {
		dwell += time.Duration(j.rng.Int63n(int64(window)))
	}
	if err := session.Dwell(ctx, dwell); err != nil {
		log.Debug("Dwell interrupted", zap.Error(err))
	}
}

// pickLink draws a random same-host link from the current page.
func (j *journey) pickLink(ctx context.Context, session *browser.Session, target string) (string, bool) {
	base, err := url.Parse(target)
	if err != nil {
		return "", false
	}

	links, err := session.Links(ctx)
	if err != nil {
		return "", false
	}

	var sameHost []string
	for _, link := range links {
		u, err := url.Parse(link)
		if err != nil {
			continue
		}
		if u.Host == base.Host {
			sameHost = append(sameHost, link)
		}
	}
	if len(sameHost) == 0 {
		return "", false
	}
	return sameHost[j.rng.Intn(len(sameHost))], true
}
