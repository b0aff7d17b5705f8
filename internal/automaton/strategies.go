package automaton

import (
	"context"
	"strings"
	"unicode"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/Boblepointu/chaosbrowser/internal/browser"
)

// knownConsentSelectors target the interactive control directly. Tried first
// because a structural hit is cheaper and more reliable than text matching.
var knownConsentSelectors = []string{
	"#onetrust-accept-btn-handler",
	"#CybotCookiebotDialogBodyLevelButtonLevelOptinAllowAll",
	"#accept-cookies", "#acceptCookies", "#cookie-accept", "#cookieAccept",
	"#accept-all", "#acceptAll", "#cookie-consent-accept",
	"#acceptAllButton", "#accept_all_cookies",
	"#didomi-notice-agree-button", "#sp-cc-accept",
	".accept-cookies", ".acceptCookies", ".cookie-accept", ".cookieAccept",
	".accept-all", ".acceptAll", ".cookie-consent-accept", ".accept-button",
	".cookie-accept-button", ".js-accept-cookies", ".cookie-banner-accept",
	"[data-action='accept']", "[data-cookie='accept']", "[data-consent='accept']",
	"[data-testid='cookie-accept']", "[data-testid='accept-all']",
	"button[name='accept']", "button[name='accept-all']", "button[name='agree']",
}

// priorityAcceptPhrases are unambiguous accept labels. Matched before the
// general set so "Accept All" beats a lone "ok" elsewhere on the page.
var priorityAcceptPhrases = []string{
	"accept all", "accept all cookies", "allow all", "i accept",
	"tout accepter", "accepter tout", "alle akzeptieren", "alles akzeptieren",
	"aceptar todo", "accetta tutto", "aceitar tudo", "accepteer alles",
	"acceptera alla", "zaakceptuj wszystkie",
}

// generalAcceptPhrases are looser accept labels, used after the priority
// pass comes up empty.
var generalAcceptPhrases = []string{
	"accept cookies", "allow cookies", "agree", "got it", "ok",
	"continue", "agree and close", "accept & close", "accept and continue",
	"accept", "accepter", "aceptar", "akzeptieren", "accetto", "aceitar",
	"acceptera", "ja, accepteren", "zgadzam się", "souhlasím",
	"συμφωνώ", "принимаю", "kabul ediyorum", "موافق",
}

// avoidPhrases veto a candidate regardless of what else its label matches.
// Declining, configuring, or opening preference dialogs all make the banner
// situation worse, not better.
var avoidPhrases = []string{
	"decline", "reject", "refuse", "deny", "disagree", "opt out",
	"manage", "customize", "customise", "settings", "preferences",
	"options", "more info", "more information", "learn more",
	"necessary only", "only necessary", "essential only",
	"tout refuser", "refuser", "paramétrer", "personnaliser", "gérer",
	"ablehnen", "einstellungen", "verwalten", "anpassen",
	"rechazar", "configurar", "gestionar",
	"rifiuta", "impostazioni", "gestisci",
	"recusar", "configurações",
	"weigeren", "instellingen",
	"odrzuć", "ustawienia",
	"отклонить", "настройки",
}

// matchesAvoid reports whether label hits the avoid list. Checked before any
// accept match; ambiguous labels resolve to "do not click".
func matchesAvoid(label string) bool {
	lower := strings.ToLower(strings.TrimSpace(label))
	for _, phrase := range avoidPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

// matchesPhrase reports whether label matches any phrase in the set, either
// on word boundaries or as the phrase with spaces stripped.
func matchesPhrase(label string, phrases []string) bool {
	lower := strings.ToLower(strings.TrimSpace(label))
	if lower == "" {
		return false
	}
	for _, phrase := range phrases {
		if containsWord(lower, phrase) || lower == strings.ReplaceAll(phrase, " ", "") {
			return true
		}
	}
	return false
}

// containsWord reports whether phrase occurs in s on word boundaries. Short
// phrases like "ok" would otherwise match inside unrelated labels such as
// "Booking options".
func containsWord(s, phrase string) bool {
	for from := 0; from+len(phrase) <= len(s); {
		i := strings.Index(s[from:], phrase)
		if i < 0 {
			return false
		}
		i += from
		if wordBoundary(s, i, true) && wordBoundary(s, i+len(phrase), false) {
			return true
		}
		from = i + 1
	}
	return false
}

func wordBoundary(s string, i int, before bool) bool {
	var r rune
	switch {
	case before && i == 0, !before && i >= len(s):
		return true
	case before:
		r, _ = utf8.DecodeLastRuneInString(s[:i])
	default:
		r, _ = utf8.DecodeRuneInString(s[i:])
	}
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}

// strategy is one row of the attempt cascade. Each row reports whether it
// activated a control; the first activation short-circuits the rest.
type strategy struct {
	name    string
	attempt func(ctx context.Context, pg Page) (bool, error)
}

// strategies returns the cascade in priority order.
func (a *Automaton) strategies() []strategy {
	return []strategy{
		{name: "known_selectors", attempt: a.attemptKnownSelectors},
		{name: "priority_phrases", attempt: a.attemptPhrases(priorityAcceptPhrases, false)},
		{name: "general_phrases", attempt: a.attemptPhrases(generalAcceptPhrases, false)},
		{name: "child_frames", attempt: a.attemptChildFrames},
	}
}

// attemptKnownSelectors clicks the first visible control matching a known
// consent selector, unless its label hits the avoid list.
func (a *Automaton) attemptKnownSelectors(ctx context.Context, pg Page) (bool, error) {
	for _, sel := range knownConsentSelectors {
		pt, label, found, err := pg.SelectorCenter(ctx, sel)
		if err != nil {
			return false, err
		}
		if !found {
			continue
		}
		if matchesAvoid(label) {
			a.log.Debug("Known selector vetoed by its label",
				zap.String("selector", sel),
				zap.String("label", truncate(label, 40)))
			continue
		}
		if err := pg.Click(ctx, pt); err != nil {
			return false, err
		}
		a.log.Debug("Activated consent control via selector", zap.String("selector", sel))
		return true, nil
	}
	return false, nil
}

// attemptPhrases clicks the first clickable whose label matches the phrase
// set and clears the avoid filter. inFrames switches the enumeration to
// child frames.
func (a *Automaton) attemptPhrases(phrases []string, inFrames bool) func(context.Context, Page) (bool, error) {
	return func(ctx context.Context, pg Page) (bool, error) {
		var (
			candidates []browser.Clickable
			err        error
		)
		if inFrames {
			candidates, err = pg.FrameClickables(ctx)
		} else {
			candidates, err = pg.Clickables(ctx)
		}
		if err != nil {
			return false, err
		}

		for _, c := range candidates {
			if matchesAvoid(c.Text) {
				continue
			}
			if !matchesPhrase(c.Text, phrases) {
				continue
			}
			if err := pg.Click(ctx, browserPoint(c)); err != nil {
				return false, err
			}
			a.log.Debug("Activated consent control via label",
				zap.String("label", truncate(c.Text, 40)),
				zap.Bool("in_frame", c.InFrame))
			return true, nil
		}
		return false, nil
	}
}

// attemptChildFrames reruns the phrase passes against child-frame content.
func (a *Automaton) attemptChildFrames(ctx context.Context, pg Page) (bool, error) {
	clicked, err := a.attemptPhrases(priorityAcceptPhrases, true)(ctx, pg)
	if clicked || err != nil {
		return clicked, err
	}
	return a.attemptPhrases(generalAcceptPhrases, true)(ctx, pg)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
