package humanoid

import (
	"context"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/Boblepointu/chaosbrowser/api/schemas"
)

const (
	// timeStep is the granularity of the physics simulation (200Hz).
	timeStep = 5 * time.Millisecond
	// maxSimulationTime bounds a single movement so an unreachable target
	// can never stall a worker.
	maxSimulationTime = 10 * time.Second
)

// MoveTo moves the cursor to target along a simulated trajectory.
func (h *Humanoid) MoveTo(ctx context.Context, target Vector2D) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.moveTo(ctx, target)
}

// moveTo is the non-locking implementation. Assumes the lock is held.
func (h *Humanoid) moveTo(ctx context.Context, target Vector2D) error {
	start := h.currentPos
	distance := start.Dist(target)
	if distance < 1.0 {
		return nil
	}

	if err := h.simulateTrajectory(ctx, start, target); err != nil {
		return err
	}

	h.updateFatigue(distance / 1000.0)

	// Terminal verification pause scaled by Fitts' law.
	return h.executor.Sleep(ctx, h.terminalPause(distance))
}

// terminalPause estimates the verification time at the end of a movement.
func (h *Humanoid) terminalPause(distance float64) time.Duration {
	const W = 20.0 // assumed target width in pixels
	id := math.Log2(1.0 + distance/W)

	mt := h.dynamicConfig.FittsA + h.dynamicConfig.FittsB*id
	mt += mt * (h.rng.Float64()*0.3 - 0.15)
	if mt < 0 {
		mt = 0
	}
	// The trajectory itself already consumed most of the movement time;
	// the terminal pause is a fraction of the Fitts estimate.
	return time.Duration(mt*0.25) * time.Millisecond
}

// simulateTrajectory drives the cursor with a spring-damped system. The
// physics produces realistic velocity profiles and overshoot; Perlin drift
// and Gaussian tremor perturb the ideal path. Assumes the lock is held.
func (h *Humanoid) simulateTrajectory(ctx context.Context, start, end Vector2D) error {
	currentPos := start
	velocity := Vector2D{}
	t := time.Duration(0)

	omega := h.dynamicConfig.Omega
	zeta := h.dynamicConfig.Zeta
	buttons := calculateButtonsBitfield(h.currentButtonState)
	perlinMagnitude := h.dynamicConfig.PerlinAmplitude
	const perlinFrequency = 0.8

	currentTarget := end
	isMicroCorrection := false
	initialDist := start.Dist(end)
	startTime := time.Now()

	for t < maxSimulationTime {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		distanceToTarget := currentPos.Dist(currentTarget)
		speed := velocity.Mag()

		// Terminate when close and slow.
		if distanceToTarget < 1.0 && speed < 50.0 {
			if currentTarget == end {
				break
			}
			// Submovement target reached; refocus on the real target.
			currentTarget = end
			isMicroCorrection = false
			continue
		}

		// Mid-flight correction: when arrival is imminent but the cursor
		// is still off, the model re-plans, like a hand adjusting late.
		if !isMicroCorrection && initialDist > h.dynamicConfig.MicroCorrectionThreshold {
			ttc := distanceToTarget / math.Max(1.0, speed)
			if ttc < 0.1 && distanceToTarget > 15.0 && h.rng.Float64() < 0.3 {
				isMicroCorrection = true
				adjustment := 0.8 + h.rng.Float64()*0.4
				currentTarget = currentPos.Add(end.Sub(currentPos).Mul(adjustment))
				h.logger.Debug("Initiating micro-correction",
					zap.Float64("distance", distanceToTarget),
					zap.Float64("velocity", speed))
			}
		}

		// F = ma with m=1: spring toward target, damping against velocity.
		springForce := currentTarget.Sub(currentPos).Mul(omega * omega)
		dampingForce := velocity.Mul(-2.0 * zeta * omega)
		acceleration := springForce.Add(dampingForce)

		dt := timeStep.Seconds()
		velocity = velocity.Add(acceleration.Mul(dt))
		if velocity.Mag() > maxVelocity {
			velocity = velocity.Normalize().Mul(maxVelocity)
		}
		currentPos = currentPos.Add(velocity.Mul(dt))

		// Low-frequency waver plus high-frequency tremor.
		elapsed := time.Since(startTime).Seconds()
		drift := Vector2D{
			X: h.noiseX.Noise1D(elapsed*perlinFrequency) * perlinMagnitude,
			Y: h.noiseY.Noise1D(elapsed*perlinFrequency) * perlinMagnitude,
		}
		finalPoint := h.applyGaussianNoise(currentPos.Add(drift))

		err := h.executor.DispatchMouseEvent(ctx, schemas.MouseEventData{
			Type:    schemas.MouseMove,
			X:       finalPoint.X,
			Y:       finalPoint.Y,
			Button:  schemas.ButtonNone,
			Buttons: buttons,
		})
		if err != nil {
			if ctx.Err() == nil {
				h.logger.Warn("Failed to dispatch mouse move event", zap.Error(err))
			}
			return err
		}

		h.currentPos = finalPoint
		t += timeStep

		// Jitter the sleep to avoid perfect periodicity.
		sleep := timeStep + time.Duration(h.rng.Intn(3)-1)*time.Millisecond
		if sleep > 0 {
			if err := h.executor.Sleep(ctx, sleep); err != nil {
				return err
			}
		}
	}

	if t >= maxSimulationTime {
		h.logger.Warn("Movement simulation timed out",
			zap.Any("start", start), zap.Any("end", end))
	}
	return nil
}

// Scroll performs a wheel scroll of totalY pixels in uneven bursts with
// human pause structure. Positive totalY scrolls down.
func (h *Humanoid) Scroll(ctx context.Context, totalY float64) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	remaining := totalY
	direction := 1.0
	if totalY < 0 {
		direction = -1.0
		remaining = -remaining
	}

	for remaining > 0 {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		// Wheel bursts of 2-6 detents (~100px each), shrinking near the end.
		burst := float64(100 * (2 + h.rng.Intn(5)))
		if burst > remaining {
			burst = remaining
		}
		remaining -= burst

		err := h.executor.DispatchMouseEvent(ctx, schemas.MouseEventData{
			Type:   schemas.MouseWheel,
			X:      h.currentPos.X,
			Y:      h.currentPos.Y,
			Button: schemas.ButtonNone,
			DeltaY: burst * direction,
		})
		if err != nil {
			return err
		}

		// Reading pauses: mostly short, occasionally long.
		var pause time.Duration
		if h.rng.Float64() < 0.3 {
			pause = time.Duration(1500+h.rng.Intn(2000)) * time.Millisecond
		} else {
			pause = time.Duration(400+h.rng.Intn(900)) * time.Millisecond
		}
		if err := h.executor.Sleep(ctx, pause); err != nil {
			return err
		}
	}
	return nil
}
