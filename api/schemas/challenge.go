package schemas

// ChallengeClass is the result of classifying a page load.
type ChallengeClass string

const (
	// NoChallenge means the page loaded without any blocking overlay.
	NoChallenge ChallengeClass = "none"
	// CaptchaPresent means an interactive puzzle was detected. These are
	// never attempted.
	CaptchaPresent ChallengeClass = "captcha"
	// InteractivePresent means a consent banner or clickable anti-bot
	// check is blocking the page.
	InteractivePresent ChallengeClass = "interactive"
	// AutomaticPending means a passive browser check is running and should
	// resolve on its own.
	AutomaticPending ChallengeClass = "automatic"
)

// ChallengeResult is the terminal state of one automaton run.
type ChallengeResult string

const (
	ChallengePassed  ChallengeResult = "passed"
	ChallengeFailed  ChallengeResult = "failed"
	ChallengeSkipped ChallengeResult = "skipped"
)

// ChallengeOutcome is what the automaton hands back to the crawl loop.
type ChallengeOutcome struct {
	Result   ChallengeResult `json:"result"`
	Class    ChallengeClass  `json:"class"`
	Attempts int             `json:"attempts"`
	// ViaErrorFallback marks a Passed outcome that was produced by the
	// optimistic error-swallowing path rather than a verified clear. The
	// control flow treats both the same; telemetry must not.
	ViaErrorFallback bool `json:"viaErrorFallback,omitempty"`
}

// Success reports whether the caller should keep browsing the target.
func (o ChallengeOutcome) Success() bool {
	return o.Result == ChallengePassed || o.Result == ChallengeSkipped
}
