// Package humanoid simulates human pointer behavior: spring-damped cursor
// trajectories with Perlin drift and Gaussian tremor, cognitive pauses, and
// a click model with hold-time and slip noise. Nothing here issues an
// instantaneous activation; every interaction travels a path.
package humanoid

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/aquilax/go-perlin"
	"go.uber.org/zap"

	"github.com/Boblepointu/chaosbrowser/api/schemas"
)

// maxVelocity caps cursor speed in pixels per second.
const maxVelocity = 6000.0

// Vector2D is a 2D point or displacement in page coordinates.
type Vector2D struct {
	X float64
	Y float64
}

func (v Vector2D) Add(o Vector2D) Vector2D { return Vector2D{v.X + o.X, v.Y + o.Y} }
func (v Vector2D) Sub(o Vector2D) Vector2D { return Vector2D{v.X - o.X, v.Y - o.Y} }
func (v Vector2D) Mul(s float64) Vector2D  { return Vector2D{v.X * s, v.Y * s} }
func (v Vector2D) Mag() float64            { return math.Hypot(v.X, v.Y) }
func (v Vector2D) Dist(o Vector2D) float64 { return v.Sub(o).Mag() }

func (v Vector2D) Normalize() Vector2D {
	m := v.Mag()
	if m == 0 {
		return Vector2D{}
	}
	return Vector2D{v.X / m, v.Y / m}
}

// Executor dispatches synthetic input into the browser session. The CDP
// implementation lives in executor.go; tests inject a recorder.
type Executor interface {
	DispatchMouseEvent(ctx context.Context, data schemas.MouseEventData) error
	Sleep(ctx context.Context, d time.Duration) error
}

// Config tunes the motor-control model.
type Config struct {
	// Fitts' law coefficients (milliseconds) for reaction and per-bit
	// movement time.
	FittsA float64 `mapstructure:"fitts_a"`
	FittsB float64 `mapstructure:"fitts_b"`
	// Omega is the natural frequency of the spring model (speed); Zeta is
	// the damping ratio (smoothness).
	Omega float64 `mapstructure:"omega"`
	Zeta  float64 `mapstructure:"zeta"`
	// PerlinAmplitude scales low-frequency drift; GaussianStrength scales
	// high-frequency tremor; ClickNoise scales press/release slip.
	PerlinAmplitude  float64 `mapstructure:"perlin_amplitude"`
	GaussianStrength float64 `mapstructure:"gaussian_strength"`
	ClickNoise       float64 `mapstructure:"click_noise"`

	ClickHoldMinMs int `mapstructure:"click_hold_min_ms"`
	ClickHoldMaxMs int `mapstructure:"click_hold_max_ms"`

	FatigueIncreaseRate float64 `mapstructure:"fatigue_increase_rate"`
	FatigueRecoveryRate float64 `mapstructure:"fatigue_recovery_rate"`

	// MicroCorrectionThreshold is the minimum movement distance (pixels)
	// before mid-flight corrections may trigger.
	MicroCorrectionThreshold float64 `mapstructure:"micro_correction_threshold"`

	// Rng overrides the time-seeded source, for deterministic tests.
	Rng *rand.Rand `mapstructure:"-"`
}

// DefaultConfig returns production motor-control parameters.
func DefaultConfig() Config {
	return Config{
		FittsA:                   120.0,
		FittsB:                   160.0,
		Omega:                    22.0,
		Zeta:                     0.85,
		PerlinAmplitude:          1.6,
		GaussianStrength:         0.4,
		ClickNoise:               1.2,
		ClickHoldMinMs:           45,
		ClickHoldMaxMs:           130,
		FatigueIncreaseRate:      0.02,
		FatigueRecoveryRate:      0.005,
		MicroCorrectionThreshold: 120.0,
	}
}

// zeroed reports whether the config was left empty (e.g. absent from the
// config file), in which case defaults apply.
func (c Config) zeroed() bool {
	return c.Omega == 0 && c.FittsA == 0 && c.FittsB == 0
}

// Humanoid holds the simulation state for one browser session.
type Humanoid struct {
	// mu protects all mutable state; every public method acquires it.
	mu                 sync.Mutex
	baseConfig         Config
	dynamicConfig      Config
	logger             *zap.Logger
	executor           Executor
	currentPos         Vector2D
	currentButtonState schemas.MouseButton
	fatigueLevel       float64
	rng                *rand.Rand
	noiseX             *perlin.Perlin
	noiseY             *perlin.Perlin
}

// New creates and initializes a Humanoid instance.
func New(config Config, logger *zap.Logger, executor Executor) *Humanoid {
	if config.zeroed() {
		rng := config.Rng
		config = DefaultConfig()
		config.Rng = rng
	}

	seed := time.Now().UnixNano()
	rng := config.Rng
	if rng == nil {
		rng = rand.New(rand.NewSource(seed))
	}

	alpha, beta, n := 2.0, 2.0, int32(3)

	return &Humanoid{
		baseConfig:         config,
		dynamicConfig:      config,
		logger:             logger.Named("humanoid"),
		executor:           executor,
		currentButtonState: schemas.ButtonNone,
		rng:                rng,
		noiseX:             perlin.NewPerlin(alpha, beta, n, seed),
		noiseY:             perlin.NewPerlin(alpha, beta, n, seed+1),
	}
}

// NewTestHumanoid creates a fully deterministic instance for tests.
func NewTestHumanoid(executor Executor, seed int64) *Humanoid {
	config := DefaultConfig()
	config.Rng = rand.New(rand.NewSource(seed))

	h := New(config, zap.NewNop(), executor)

	h.mu.Lock()
	defer h.mu.Unlock()
	h.noiseX = perlin.NewPerlin(2, 2, 3, seed)
	h.noiseY = perlin.NewPerlin(2, 2, 3, seed+1)
	return h
}

// Position returns the current simulated cursor position.
func (h *Humanoid) Position() Vector2D {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.currentPos
}

// releaseMouse ensures the left button is released. Assumes the lock is
// held. Used for cleanup when an action is interrupted mid-press.
func (h *Humanoid) releaseMouse(ctx context.Context) error {
	if h.currentButtonState != schemas.ButtonLeft {
		return nil
	}

	err := h.executor.DispatchMouseEvent(ctx, schemas.MouseEventData{
		Type:       schemas.MouseRelease,
		X:          h.currentPos.X,
		Y:          h.currentPos.Y,
		Button:     schemas.ButtonLeft,
		ClickCount: 1,
		Buttons:    0,
	})
	if err != nil {
		h.logger.Error("Failed to dispatch mouse release, updating internal state anyway", zap.Error(err))
	}

	// Never leave the simulation stuck with the button virtually pressed.
	h.currentButtonState = schemas.ButtonNone
	return err
}

// calculateButtonsBitfield converts button state into the CDP bitfield.
func calculateButtonsBitfield(buttonState schemas.MouseButton) int64 {
	switch buttonState {
	case schemas.ButtonLeft:
		return 1
	case schemas.ButtonRight:
		return 2
	case schemas.ButtonMiddle:
		return 4
	}
	return 0
}
