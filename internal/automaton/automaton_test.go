package automaton

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Boblepointu/chaosbrowser/api/schemas"
	"github.com/Boblepointu/chaosbrowser/internal/browser"
	"github.com/Boblepointu/chaosbrowser/internal/browser/humanoid"
	"github.com/Boblepointu/chaosbrowser/internal/config"
)

// fakePage scripts a page for the automaton. Clicking a control invokes
// onClick, which lets a test clear the challenge.
type fakePage struct {
	html           string
	text           string
	clickables     []browser.Clickable
	frameClicks    []browser.Clickable
	selectorHits   map[string]humanoid.Vector2D
	selectorLabels map[string]string

	clicked []string
	onClick func(label string)

	htmlErr error
}

func (f *fakePage) HTML(ctx context.Context) (string, error) {
	if f.htmlErr != nil {
		return "", f.htmlErr
	}
	return f.html, nil
}

func (f *fakePage) VisibleText(ctx context.Context) (string, error) { return f.text, nil }

func (f *fakePage) SelectorCenter(ctx context.Context, selector string) (humanoid.Vector2D, string, bool, error) {
	pt, ok := f.selectorHits[selector]
	return pt, f.selectorLabels[selector], ok, nil
}

func (f *fakePage) Clickables(ctx context.Context) ([]browser.Clickable, error) {
	return f.clickables, nil
}

func (f *fakePage) FrameClickables(ctx context.Context) ([]browser.Clickable, error) {
	return f.frameClicks, nil
}

func (f *fakePage) Click(ctx context.Context, pt humanoid.Vector2D) error {
	label := ""
	for _, c := range append(append([]browser.Clickable{}, f.clickables...), f.frameClicks...) {
		if c.X == pt.X && c.Y == pt.Y {
			label = c.Text
			break
		}
	}
	for sel, hit := range f.selectorHits {
		if hit.X == pt.X && hit.Y == pt.Y {
			label = sel
			break
		}
	}
	f.clicked = append(f.clicked, label)
	if f.onClick != nil {
		f.onClick(label)
	}
	return nil
}

func (f *fakePage) Pause(ctx context.Context, mean, stddev time.Duration) error { return nil }

func newTestAutomaton() *Automaton {
	return New(config.AutomatonConfig{
		MaxAttempts:   3,
		MinDelay:      time.Millisecond,
		MaxDelay:      2 * time.Millisecond,
		AutomaticWait: time.Millisecond,
	}, zap.NewNop())
}

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		html string
		text string
		want schemas.ChallengeClass
	}{
		{"clean page", "<html><body><h1>News</h1></body></html>", "News", schemas.NoChallenge},
		{"cloudflare interstitial", "<html></html>", "Checking your browser before accessing. Cloudflare.", schemas.InteractivePresent},
		{"recaptcha in markup", `<html><div class="g-recaptcha"></div></html>`, "", schemas.CaptchaPresent},
		{"recaptcha as text", "<html>g-recaptcha</html>", "", schemas.CaptchaPresent},
		{"hcaptcha iframe", `<html><iframe src="https://hcaptcha.com/x"></iframe></html>`, "", schemas.CaptchaPresent},
		{"human verification", "<html></html>", "Please verify you are human to continue", schemas.InteractivePresent},
		{"consent banner", "<html></html>", "We use cookies to improve your experience", schemas.InteractivePresent},
		{"passive check", "<html></html>", "Just a moment...", schemas.AutomaticPending},
		{"captcha beats consent", `<html><div class="h-captcha"></div></html>`, "we use cookies", schemas.CaptchaPresent},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, classify(tc.html, tc.text))
		})
	}
}

func TestRunNoChallenge(t *testing.T) {
	pg := &fakePage{html: "<html><body>hello</body></html>", text: "hello"}

	outcome := newTestAutomaton().Run(context.Background(), pg)

	assert.Equal(t, schemas.ChallengePassed, outcome.Result)
	assert.Equal(t, schemas.NoChallenge, outcome.Class)
	assert.Zero(t, outcome.Attempts)
	assert.False(t, outcome.ViaErrorFallback)
	assert.Empty(t, pg.clicked)
}

func TestRunCaptchaSkippedWithoutInteraction(t *testing.T) {
	pg := &fakePage{
		html: `<html><div class="g-recaptcha"></div></html>`,
		clickables: []browser.Clickable{
			{Text: "Accept all", X: 10, Y: 10},
		},
	}

	outcome := newTestAutomaton().Run(context.Background(), pg)

	assert.Equal(t, schemas.ChallengeSkipped, outcome.Result)
	assert.Equal(t, schemas.CaptchaPresent, outcome.Class)
	assert.Empty(t, pg.clicked, "CAPTCHA pages are never touched")
}

func TestRunClearsConsentViaKnownSelector(t *testing.T) {
	pg := &fakePage{
		html: "<html></html>",
		text: "We use cookies on this site",
		selectorHits: map[string]humanoid.Vector2D{
			"#onetrust-accept-btn-handler": {X: 50, Y: 60},
		},
	}
	pg.onClick = func(string) { pg.text = "Welcome"; pg.selectorHits = nil }

	outcome := newTestAutomaton().Run(context.Background(), pg)

	assert.Equal(t, schemas.ChallengePassed, outcome.Result)
	assert.Equal(t, schemas.InteractivePresent, outcome.Class)
	assert.Equal(t, 1, outcome.Attempts)
	assert.Equal(t, []string{"#onetrust-accept-btn-handler"}, pg.clicked)
}

func TestKnownSelectorVetoedByAvoidLabel(t *testing.T) {
	pg := &fakePage{
		html: "<html></html>",
		text: "We use cookies on this site",
		selectorHits: map[string]humanoid.Vector2D{
			"#accept-all": {X: 50, Y: 60},
		},
		selectorLabels: map[string]string{
			"#accept-all": "Accept and Manage Preferences",
		},
	}

	outcome := newTestAutomaton().Run(context.Background(), pg)

	assert.Equal(t, schemas.ChallengeFailed, outcome.Result)
	assert.Empty(t, pg.clicked, "structural hits still pass through the avoid filter")
}

func TestRunActivatesOnlyAcceptControl(t *testing.T) {
	pg := &fakePage{
		html: "<html></html>",
		text: "Nous utilisons des cookies",
		clickables: []browser.Clickable{
			{Text: "Tout refuser", X: 10, Y: 10},
			{Text: "Tout accepter", X: 20, Y: 20},
		},
	}
	pg.onClick = func(label string) {
		if label == "Tout accepter" {
			pg.text = "Bienvenue"
		}
	}

	outcome := newTestAutomaton().Run(context.Background(), pg)

	assert.Equal(t, schemas.ChallengePassed, outcome.Result)
	assert.Equal(t, []string{"Tout accepter"}, pg.clicked)
}

func TestAmbiguousControlNeverActivated(t *testing.T) {
	pg := &fakePage{
		html: "<html></html>",
		text: "We use cookies",
		clickables: []browser.Clickable{
			{Text: "Accept and Manage Preferences", X: 10, Y: 10},
		},
	}

	outcome := newTestAutomaton().Run(context.Background(), pg)

	assert.Equal(t, schemas.ChallengeFailed, outcome.Result)
	assert.Empty(t, pg.clicked, "ambiguous phrasing resolves to do-not-click")
}

func TestRunTerminatesWithinMaxAttempts(t *testing.T) {
	pg := &fakePage{
		html: "<html></html>",
		text: "verify you are human",
	}

	outcome := newTestAutomaton().Run(context.Background(), pg)

	assert.Equal(t, schemas.ChallengeFailed, outcome.Result)
	assert.Equal(t, 3, outcome.Attempts)
}

func TestRunFallsBackToFrames(t *testing.T) {
	pg := &fakePage{
		html: "<html></html>",
		text: "This website uses cookies",
		frameClicks: []browser.Clickable{
			{Text: "Accept all", X: 30, Y: 40, InFrame: true},
		},
	}
	pg.onClick = func(label string) {
		if label == "Accept all" {
			pg.text = "Welcome"
		}
	}

	outcome := newTestAutomaton().Run(context.Background(), pg)

	assert.Equal(t, schemas.ChallengePassed, outcome.Result)
	assert.Equal(t, []string{"Accept all"}, pg.clicked)
}

func TestRunAutomaticPendingWaitsWithoutClicking(t *testing.T) {
	pg := &fakePage{
		html: "<html></html>",
		text: "Just a moment...",
		clickables: []browser.Clickable{
			{Text: "Accept all", X: 10, Y: 10},
		},
	}
	pg.onClick = func(string) { t.Error("automatic challenges must not be clicked") }

	// The passive check resolves on its own by the first verification cycle.
	pg2 := &clearingPage{fakePage: pg, clearAfter: 1}
	outcome := newTestAutomaton().Run(context.Background(), pg2)

	assert.Equal(t, schemas.ChallengePassed, outcome.Result)
	assert.Equal(t, schemas.AutomaticPending, outcome.Class)
	assert.Empty(t, pg.clicked)
}

// clearingPage clears its challenge text after a number of HTML snapshots.
type clearingPage struct {
	*fakePage
	snapshots  int
	clearAfter int
}

func (c *clearingPage) HTML(ctx context.Context) (string, error) {
	c.snapshots++
	if c.snapshots > c.clearAfter {
		c.fakePage.text = "All done"
	}
	return c.fakePage.HTML(ctx)
}

func TestRunUnexpectedErrorYieldsOptimisticPass(t *testing.T) {
	pg := &fakePage{htmlErr: errors.New("tab crashed")}

	outcome := newTestAutomaton().Run(context.Background(), pg)

	assert.Equal(t, schemas.ChallengePassed, outcome.Result)
	assert.True(t, outcome.ViaErrorFallback, "error passes must stay distinguishable")
}

func TestMatchesAvoid(t *testing.T) {
	assert.True(t, matchesAvoid("Manage Preferences"))
	assert.True(t, matchesAvoid("Tout refuser"))
	assert.True(t, matchesAvoid("Einstellungen"))
	assert.True(t, matchesAvoid("Accept and Manage Preferences"))
	assert.False(t, matchesAvoid("Accept All"))
	assert.False(t, matchesAvoid("Tout accepter"))
}

func TestMatchesPhrase(t *testing.T) {
	assert.True(t, matchesPhrase("Accept All Cookies", priorityAcceptPhrases))
	assert.True(t, matchesPhrase("  tout accepter  ", priorityAcceptPhrases))
	assert.True(t, matchesPhrase("OK", generalAcceptPhrases))
	assert.True(t, matchesPhrase("Ok, got it", generalAcceptPhrases))
	assert.False(t, matchesPhrase("", generalAcceptPhrases))
	assert.False(t, matchesPhrase("Read our policy", priorityAcceptPhrases))

	// Short phrases only count as whole words.
	assert.False(t, matchesPhrase("Booking options", generalAcceptPhrases))
	assert.False(t, matchesPhrase("Continuer la lecture", generalAcceptPhrases))
}

func TestNewDefaultsMaxAttempts(t *testing.T) {
	a := New(config.AutomatonConfig{}, zap.NewNop())
	require.Equal(t, 3, a.cfg.MaxAttempts)
}
