package humanoid

import (
	"context"
	"math"
	"time"

	"github.com/Boblepointu/chaosbrowser/api/schemas"
)

// CognitivePause sleeps for a normally distributed duration around meanMs,
// stretched by fatigue. Longer pauses idle with cursor drift instead of
// freezing in place.
func (h *Humanoid) CognitivePause(ctx context.Context, meanMs, stdDevMs float64) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.cognitivePause(ctx, meanMs, stdDevMs)
}

// cognitivePause is the non-locking implementation. Assumes the lock is held.
func (h *Humanoid) cognitivePause(ctx context.Context, meanMs, stdDevMs float64) error {
	fatigueFactor := 1.0 + h.fatigueLevel
	duration := time.Duration(fatigueFactor*(meanMs+h.rng.NormFloat64()*stdDevMs)) * time.Millisecond
	if duration <= 0 {
		return nil
	}
	h.recoverFatigue(duration)

	// Humans rarely stay perfectly still.
	if duration > 20*time.Millisecond {
		return h.hesitate(ctx, duration)
	}
	return h.executor.Sleep(ctx, duration)
}

// Hesitate idles for duration with smooth Perlin cursor drift.
func (h *Humanoid) Hesitate(ctx context.Context, duration time.Duration) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.hesitate(ctx, duration)
}

// hesitate is the non-locking implementation. Assumes the lock is held.
func (h *Humanoid) hesitate(ctx context.Context, duration time.Duration) error {
	startPos := h.currentPos
	buttons := calculateButtonsBitfield(h.currentButtonState)
	startTime := time.Now()

	driftAmplitude := h.dynamicConfig.PerlinAmplitude * 1.5
	const driftFrequency = 0.5
	const updateInterval = 20 * time.Millisecond

	for time.Since(startTime) < duration {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		elapsed := time.Since(startTime).Seconds()
		drift := Vector2D{
			X: h.noiseX.Noise1D(elapsed*driftFrequency) * driftAmplitude,
			Y: h.noiseY.Noise1D(elapsed*driftFrequency) * driftAmplitude,
		}
		finalPos := h.applyGaussianNoise(startPos.Add(drift))

		err := h.executor.DispatchMouseEvent(ctx, schemas.MouseEventData{
			Type:    schemas.MouseMove,
			X:       finalPos.X,
			Y:       finalPos.Y,
			Button:  schemas.ButtonNone,
			Buttons: buttons,
		})
		if err != nil {
			return err
		}
		h.currentPos = finalPos

		pause := updateInterval
		if remaining := duration - time.Since(startTime); remaining < pause {
			pause = remaining
		}
		if pause <= 0 {
			break
		}
		if err := h.executor.Sleep(ctx, pause); err != nil {
			return err
		}
	}
	return nil
}

// applyGaussianNoise adds high-frequency tremor. Assumes the lock is held.
func (h *Humanoid) applyGaussianNoise(point Vector2D) Vector2D {
	strength := h.dynamicConfig.GaussianStrength * (0.5 + h.rng.Float64())
	return Vector2D{
		X: point.X + h.rng.NormFloat64()*strength,
		Y: point.Y + h.rng.NormFloat64()*strength,
	}
}

// applyClickNoise models the involuntary displacement when muscles tense
// for a click, biased downwards. Assumes the lock is held.
func (h *Humanoid) applyClickNoise(point Vector2D) Vector2D {
	strength := h.dynamicConfig.ClickNoise * (0.5 + h.rng.Float64())
	return Vector2D{
		X: point.X + h.rng.NormFloat64()*strength*0.5,
		Y: point.Y + math.Abs(h.rng.NormFloat64()*strength),
	}
}

// applyFatigueEffects recomputes dynamic parameters from the fatigue level.
// Assumes the lock is held.
func (h *Humanoid) applyFatigueEffects() {
	fatigueFactor := 1.0 + h.fatigueLevel

	h.dynamicConfig.GaussianStrength = h.baseConfig.GaussianStrength * fatigueFactor
	h.dynamicConfig.PerlinAmplitude = h.baseConfig.PerlinAmplitude * fatigueFactor
	h.dynamicConfig.FittsA = h.baseConfig.FittsA * fatigueFactor
	h.dynamicConfig.ClickNoise = h.baseConfig.ClickNoise * fatigueFactor

	// Tired movement is slower and less stable.
	h.dynamicConfig.Omega = h.baseConfig.Omega * (1.0 - h.fatigueLevel*0.3)
	h.dynamicConfig.Zeta = h.baseConfig.Zeta * (1.0 - h.fatigueLevel*0.1)
}

// updateFatigue raises fatigue after exertion. Assumes the lock is held.
func (h *Humanoid) updateFatigue(intensity float64) {
	h.fatigueLevel = math.Min(1.0, h.fatigueLevel+h.baseConfig.FatigueIncreaseRate*intensity)
	h.applyFatigueEffects()
}

// recoverFatigue lowers fatigue during rest. Assumes the lock is held.
func (h *Humanoid) recoverFatigue(duration time.Duration) {
	h.fatigueLevel = math.Max(0.0, h.fatigueLevel-h.baseConfig.FatigueRecoveryRate*duration.Seconds())
	h.applyFatigueEffects()
}
