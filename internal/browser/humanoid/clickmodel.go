package humanoid

import (
	"context"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/Boblepointu/chaosbrowser/api/schemas"
)

// Click performs a human-like click at target: trajectory, verification
// pause, press with slip noise, tremor during the hold, release.
func (h *Humanoid) Click(ctx context.Context, target Vector2D) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.moveTo(ctx, target); err != nil {
		return err
	}

	// Final verification before committing.
	if err := h.cognitivePause(ctx, 50, 20); err != nil {
		return err
	}

	clickPos := h.applyClickNoise(h.currentPos)
	err := h.executor.DispatchMouseEvent(ctx, schemas.MouseEventData{
		Type:       schemas.MousePress,
		X:          clickPos.X,
		Y:          clickPos.Y,
		Button:     schemas.ButtonLeft,
		ClickCount: 1,
		Buttons:    1,
	})
	if err != nil {
		return err
	}
	h.currentPos = clickPos
	h.currentButtonState = schemas.ButtonLeft

	// Tremor while the button is held.
	if err := h.hesitate(ctx, h.clickHoldDuration()); err != nil {
		h.logger.Warn("Click hold interrupted, releasing mouse", zap.Error(err))
		h.releaseMouse(context.Background()) //nolint:errcheck // cleanup on a detached context
		return err
	}

	h.currentPos = h.applyClickNoise(h.currentPos)
	if err := h.releaseMouse(ctx); err != nil {
		return err
	}

	h.updateFatigue(0.1)
	return nil
}

// clickHoldDuration draws the press-to-release time, skewed toward short
// clicks and stretched by fatigue. Assumes the lock is held.
func (h *Humanoid) clickHoldDuration() time.Duration {
	minMs := float64(h.baseConfig.ClickHoldMinMs)
	maxMs := float64(h.baseConfig.ClickHoldMaxMs)

	mean := (minMs + maxMs) / 2.0 * 0.9
	stdDev := (maxMs - minMs) / 5.0

	durationMs := mean + h.rng.NormFloat64()*stdDev
	durationMs = math.Max(minMs, math.Min(maxMs, durationMs))
	durationMs *= 1.0 + h.fatigueLevel*0.25

	return time.Duration(durationMs) * time.Millisecond
}
