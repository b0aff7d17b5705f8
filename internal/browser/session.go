// Package browser owns the lifetime of one remote browser tab: connecting to
// the farm, imprinting a persona, navigating, and exposing the page surface
// the challenge automaton and journey runner work against. All pointer input
// goes through the humanoid simulator; nothing here clicks instantaneously.
package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/Boblepointu/chaosbrowser/api/schemas"
	"github.com/Boblepointu/chaosbrowser/internal/browser/humanoid"
	"github.com/Boblepointu/chaosbrowser/internal/browser/stealth"
	"github.com/Boblepointu/chaosbrowser/internal/config"
)

// Clickable is an actionable element found on the page, with its center in
// page coordinates. InFrame marks elements living inside a child frame.
type Clickable struct {
	Text    string  `json:"text"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	InFrame bool    `json:"inFrame"`
}

// Session is a single persona-imprinted tab on the browser farm.
type Session struct {
	allocCancel context.CancelFunc
	tabCtx      context.Context
	tabCancel   context.CancelFunc

	persona  schemas.Persona
	humanoid *humanoid.Humanoid
	navTO    time.Duration
	queryTO  time.Duration
	log      *zap.Logger
}

// NewSession dials the farm and prepares a stealthed tab for persona. The
// farm address is retried a bounded number of times with a fixed backoff;
// a farm that never answers yields an error, never a hang.
func NewSession(ctx context.Context, cfg *config.Config, persona schemas.Persona, logger *zap.Logger) (*Session, error) {
	log := logger.Named("session").With(zap.String("persona_id", persona.ID))
	wsURL := cfg.Farm.Address
	if !strings.Contains(wsURL, "://") {
		wsURL = "ws://" + wsURL
	}

	var lastErr error
	for attempt := 1; attempt <= cfg.Farm.ConnectRetries; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		s, err := dial(ctx, wsURL, cfg, persona, log)
		if err == nil {
			log.Info("Browser session established", zap.Int("attempt", attempt))
			return s, nil
		}
		lastErr = err
		log.Warn("Farm connection attempt failed",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", cfg.Farm.ConnectRetries),
			zap.Error(err))

		if attempt < cfg.Farm.ConnectRetries {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(cfg.Farm.RetryBackoff):
			}
		}
	}
	return nil, fmt.Errorf("browser: farm unreachable at %s after %d attempts: %w",
		wsURL, cfg.Farm.ConnectRetries, lastErr)
}

func dial(ctx context.Context, wsURL string, cfg *config.Config, persona schemas.Persona, log *zap.Logger) (*Session, error) {
	allocCtx, allocCancel := chromedp.NewRemoteAllocator(ctx, wsURL)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx)

	s := &Session{
		allocCancel: allocCancel,
		tabCtx:      tabCtx,
		tabCancel:   tabCancel,
		persona:     persona,
		navTO:       cfg.Browser.NavigationTimeout,
		queryTO:     cfg.Browser.QueryTimeout,
		log:         log,
	}
	s.humanoid = humanoid.New(cfg.Browser.Humanoid, log, humanoid.NewCDPExecutor())

	// Applying stealth doubles as the connectivity check; it fails fast if
	// the allocator URL points nowhere.
	applyCtx, cancel := context.WithTimeout(tabCtx, cfg.Browser.NavigationTimeout)
	defer cancel()
	if err := chromedp.Run(applyCtx, stealth.Apply(persona, log)); err != nil {
		s.Close()
		return nil, fmt.Errorf("browser: failed to apply persona: %w", err)
	}
	return s, nil
}

// Persona returns the identity this session presents.
func (s *Session) Persona() schemas.Persona {
	return s.persona
}

// Navigate loads url and waits for the document body, bounded by the
// navigation timeout.
func (s *Session) Navigate(ctx context.Context, url string) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	navCtx, cancel := context.WithTimeout(s.tabCtx, s.navTO)
	defer cancel()

	err := chromedp.Run(navCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("browser: failed to navigate to %s: %w", url, err)
	}
	return nil
}

// HTML returns the current outer HTML of the main document.
func (s *Session) HTML(ctx context.Context) (string, error) {
	if ctx.Err() != nil {
		return "", ctx.Err()
	}
	qCtx, cancel := context.WithTimeout(s.tabCtx, s.queryTO)
	defer cancel()

	var html string
	if err := chromedp.Run(qCtx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("browser: failed to snapshot html: %w", err)
	}
	return html, nil
}

// VisibleText returns the rendered text of the page body.
func (s *Session) VisibleText(ctx context.Context) (string, error) {
	if ctx.Err() != nil {
		return "", ctx.Err()
	}
	qCtx, cancel := context.WithTimeout(s.tabCtx, s.queryTO)
	defer cancel()

	var text string
	if err := chromedp.Run(qCtx, chromedp.Evaluate(`document.body ? document.body.innerText : ""`, &text)); err != nil {
		return "", fmt.Errorf("browser: failed to read visible text: %w", err)
	}
	return text, nil
}

// SelectorCenter locates the first visible element matching selector and
// returns its center together with its visible label, so callers can vet
// the control's text before deciding to click. The boolean return is false
// when nothing matches.
func (s *Session) SelectorCenter(ctx context.Context, selector string) (humanoid.Vector2D, string, bool, error) {
	if ctx.Err() != nil {
		return humanoid.Vector2D{}, "", false, ctx.Err()
	}
	selJSON, err := json.Marshal(selector)
	if err != nil {
		return humanoid.Vector2D{}, "", false, fmt.Errorf("browser: bad selector: %w", err)
	}

	js := fmt.Sprintf(`(() => {
		const el = document.querySelector(%s);
		if (!el) return null;
		const r = el.getBoundingClientRect();
		if (r.width < 2 || r.height < 2) return null;
		const text = (el.innerText || el.value || el.getAttribute('aria-label') || '').trim();
		return { x: r.x + r.width / 2, y: r.y + r.height / 2, text: text };
	})()`, selJSON)

	qCtx, cancel := context.WithTimeout(s.tabCtx, s.queryTO)
	defer cancel()

	var hit *struct {
		X    float64 `json:"x"`
		Y    float64 `json:"y"`
		Text string  `json:"text"`
	}
	if err := chromedp.Run(qCtx, chromedp.Evaluate(js, &hit)); err != nil {
		return humanoid.Vector2D{}, "", false, fmt.Errorf("browser: selector query failed: %w", err)
	}
	if hit == nil {
		return humanoid.Vector2D{}, "", false, nil
	}
	return humanoid.Vector2D{X: hit.X, Y: hit.Y}, hit.Text, true, nil
}

const clickableSelector = `button, a[href], input[type="button"], input[type="submit"], [role="button"]`

// Clickables enumerates actionable elements in the main document with their
// visible labels. The caller decides which, if any, deserve a click.
func (s *Session) Clickables(ctx context.Context) ([]Clickable, error) {
	js := fmt.Sprintf(`(() => {
		const out = [];
		document.querySelectorAll(%q).forEach((el) => {
			const r = el.getBoundingClientRect();
			if (r.width < 2 || r.height < 2) return;
			const text = (el.innerText || el.value || el.getAttribute('aria-label') || '').trim();
			out.push({ text: text, x: r.x + r.width / 2, y: r.y + r.height / 2, inFrame: false });
		});
		return out;
	})()`, clickableSelector)
	return s.evalClickables(ctx, js)
}

// FrameClickables enumerates actionable elements inside accessible child
// frames, with coordinates translated into main-page space. Cross-origin
// frames are skipped; their documents are not scriptable from here.
func (s *Session) FrameClickables(ctx context.Context) ([]Clickable, error) {
	js := fmt.Sprintf(`(() => {
		const out = [];
		document.querySelectorAll('iframe').forEach((frame) => {
			let doc = null;
			try { doc = frame.contentDocument; } catch (e) { return; }
			if (!doc) return;
			const base = frame.getBoundingClientRect();
			doc.querySelectorAll(%q).forEach((el) => {
				const r = el.getBoundingClientRect();
				if (r.width < 2 || r.height < 2) return;
				const text = (el.innerText || el.value || el.getAttribute('aria-label') || '').trim();
				out.push({ text: text, x: base.x + r.x + r.width / 2, y: base.y + r.y + r.height / 2, inFrame: true });
			});
		});
		return out;
	})()`, clickableSelector)
	return s.evalClickables(ctx, js)
}

func (s *Session) evalClickables(ctx context.Context, js string) ([]Clickable, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	qCtx, cancel := context.WithTimeout(s.tabCtx, s.queryTO)
	defer cancel()

	var out []Clickable
	if err := chromedp.Run(qCtx, chromedp.Evaluate(js, &out)); err != nil {
		return nil, fmt.Errorf("browser: clickable enumeration failed: %w", err)
	}
	return out, nil
}

// Links returns the absolute href of every visible anchor on the page.
func (s *Session) Links(ctx context.Context) ([]string, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	qCtx, cancel := context.WithTimeout(s.tabCtx, s.queryTO)
	defer cancel()

	js := `(() => {
		const out = [];
		document.querySelectorAll('a[href]').forEach((a) => {
			const r = a.getBoundingClientRect();
			if (r.width < 2 || r.height < 2) return;
			if (a.href.startsWith('http')) out.push(a.href);
		});
		return out;
	})()`

	var links []string
	if err := chromedp.Run(qCtx, chromedp.Evaluate(js, &links)); err != nil {
		return nil, fmt.Errorf("browser: link enumeration failed: %w", err)
	}
	return links, nil
}

// Click moves the cursor along a human trajectory and clicks at pt.
func (s *Session) Click(ctx context.Context, pt humanoid.Vector2D) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return s.humanoid.Click(s.tabCtx, pt)
}

// Scroll scrolls the page by deltaY pixels in human wheel bursts.
func (s *Session) Scroll(ctx context.Context, deltaY float64) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return s.humanoid.Scroll(s.tabCtx, deltaY)
}

// Dwell idles on the page with natural cursor drift for roughly d.
func (s *Session) Dwell(ctx context.Context, d time.Duration) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return s.humanoid.Hesitate(s.tabCtx, d)
}

// Pause performs a short cognitive pause around mean with deviation stddev.
func (s *Session) Pause(ctx context.Context, mean, stddev time.Duration) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return s.humanoid.CognitivePause(s.tabCtx,
		float64(mean.Milliseconds()), float64(stddev.Milliseconds()))
}

// Close tears down the tab and its allocator connection.
func (s *Session) Close() {
	s.tabCancel()
	s.allocCancel()
}
