package automaton

import (
	"context"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/Boblepointu/chaosbrowser/api/schemas"
)

// captchaSelectors are structural markers for interactive puzzle widgets.
// Their presence overrides every other classification.
var captchaSelectors = []string{
	".g-recaptcha",
	"#g-recaptcha",
	"iframe[src*='recaptcha']",
	".h-captcha",
	"iframe[src*='hcaptcha']",
	".cf-turnstile",
	"iframe[src*='turnstile']",
	"#captcha",
	"img[src*='captcha']",
}

// captchaMarkers are textual puzzle markers, matched against the raw HTML so
// class names referenced from scripts still count.
var captchaMarkers = []string{
	"g-recaptcha",
	"h-captcha",
	"cf-turnstile",
	"solve the captcha",
	"complete the captcha",
}

// automaticMarkers indicate a passive browser check that resolves by itself.
var automaticMarkers = []string{
	"just a moment",
	"please wait while we verify",
	"ddos protection by",
	"your browser will redirect",
}

// interactiveMarkers indicate a clickable anti-bot gate, in the languages
// the avoid list also covers.
var interactiveMarkers = []string{
	"checking your browser",
	"verify you are human",
	"verify that you are human",
	"are you a robot",
	"i am not a robot",
	"confirm you are human",
	"prouvez que vous êtes humain",
	"bestätigen sie, dass sie ein mensch sind",
	"confirme que eres humano",
}

// consentSelectors are structural markers for consent banners. A visible one
// classifies the page as interactive.
var consentSelectors = []string{
	"#onetrust-accept-btn-handler",
	"#CybotCookiebotDialogBodyLevelButtonLevelOptinAllowAll",
	"#cookie-consent-accept",
	".cookie-banner-accept",
	"[data-testid='cookie-accept']",
	"#didomi-notice-agree-button",
	".qc-cmp2-summary-buttons",
	"#sp-cc-accept",
}

// consentMarkers are consent phrases in body text.
var consentMarkers = []string{
	"we use cookies",
	"this website uses cookies",
	"cookie consent",
	"accept all cookies",
	"nous utilisons des cookies",
	"wir verwenden cookies",
	"utilizamos cookies",
}

// classify inspects one page snapshot and names the blocking condition, if
// any. Puzzle detection runs first and wins; a consent banner sitting next
// to a puzzle must not tempt the caller into clicking anything.
func classify(html, visibleText string) schemas.ChallengeClass {
	lowerHTML := strings.ToLower(html)
	lowerText := strings.ToLower(visibleText)

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		doc = nil
	}

	for _, marker := range captchaMarkers {
		if strings.Contains(lowerHTML, marker) {
			return schemas.CaptchaPresent
		}
	}
	if doc != nil {
		for _, sel := range captchaSelectors {
			if doc.Find(sel).Length() > 0 {
				return schemas.CaptchaPresent
			}
		}
	}

	for _, marker := range interactiveMarkers {
		if strings.Contains(lowerText, marker) {
			return schemas.InteractivePresent
		}
	}
	if doc != nil {
		for _, sel := range consentSelectors {
			if doc.Find(sel).Length() > 0 {
				return schemas.InteractivePresent
			}
		}
	}
	for _, marker := range consentMarkers {
		if strings.Contains(lowerText, marker) {
			return schemas.InteractivePresent
		}
	}

	for _, marker := range automaticMarkers {
		if strings.Contains(lowerText, marker) {
			return schemas.AutomaticPending
		}
	}

	return schemas.NoChallenge
}

// detect snapshots the page and classifies it.
func (a *Automaton) detect(ctx context.Context, pg Page) (schemas.ChallengeClass, error) {
	html, err := pg.HTML(ctx)
	if err != nil {
		return schemas.NoChallenge, err
	}
	text, err := pg.VisibleText(ctx)
	if err != nil {
		return schemas.NoChallenge, err
	}
	return classify(html, text), nil
}
