package humanoid

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Boblepointu/chaosbrowser/api/schemas"
)

// recordingExecutor captures dispatched events and fakes time.
type recordingExecutor struct {
	mu     sync.Mutex
	events []schemas.MouseEventData
	slept  time.Duration
}

func (r *recordingExecutor) DispatchMouseEvent(_ context.Context, data schemas.MouseEventData) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, data)
	return nil
}

func (r *recordingExecutor) Sleep(_ context.Context, d time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.slept += d
	return nil
}

func (r *recordingExecutor) byType(t schemas.MouseEventType) []schemas.MouseEventData {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []schemas.MouseEventData
	for _, e := range r.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

func TestMoveToTravelsAPath(t *testing.T) {
	rec := &recordingExecutor{}
	h := NewTestHumanoid(rec, 42)

	target := Vector2D{X: 640, Y: 360}
	require.NoError(t, h.MoveTo(context.Background(), target))

	moves := rec.byType(schemas.MouseMove)
	assert.Greater(t, len(moves), 10, "a 700px movement must not teleport")

	// The trajectory ends close to the target; tremor keeps it from being
	// pixel exact.
	assert.InDelta(t, target.X, h.Position().X, 15)
	assert.InDelta(t, target.Y, h.Position().Y, 15)

	// Intermediate points actually progress instead of jumping.
	first := moves[0]
	assert.Less(t, first.X, 320.0, "first event should be near the origin side of the path")
}

func TestMoveToNoOpWhenAlreadyThere(t *testing.T) {
	rec := &recordingExecutor{}
	h := NewTestHumanoid(rec, 1)

	require.NoError(t, h.MoveTo(context.Background(), Vector2D{X: 0.2, Y: 0.3}))
	assert.Empty(t, rec.events)
}

func TestMoveToBoundedIterations(t *testing.T) {
	rec := &recordingExecutor{}
	h := NewTestHumanoid(rec, 7)

	// Even an extreme target terminates within the simulation ceiling.
	require.NoError(t, h.MoveTo(context.Background(), Vector2D{X: 1e6, Y: 1e6}))
	assert.LessOrEqual(t, len(rec.events), int(maxSimulationTime/timeStep)+1)
}

func TestMoveToRespectsCancellation(t *testing.T) {
	rec := &recordingExecutor{}
	h := NewTestHumanoid(rec, 3)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := h.MoveTo(ctx, Vector2D{X: 500, Y: 500})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestClickSequence(t *testing.T) {
	rec := &recordingExecutor{}
	h := NewTestHumanoid(rec, 42)

	require.NoError(t, h.Click(context.Background(), Vector2D{X: 200, Y: 150}))

	presses := rec.byType(schemas.MousePress)
	releases := rec.byType(schemas.MouseRelease)
	require.Len(t, presses, 1)
	require.Len(t, releases, 1)

	assert.Equal(t, schemas.ButtonLeft, presses[0].Button)
	assert.Equal(t, int64(1), presses[0].ClickCount)

	// Press happens before release, with hold tremor in between.
	var pressIdx, releaseIdx int
	for i, e := range rec.events {
		switch e.Type {
		case schemas.MousePress:
			pressIdx = i
		case schemas.MouseRelease:
			releaseIdx = i
		}
	}
	assert.Less(t, pressIdx, releaseIdx)
	assert.Greater(t, releaseIdx-pressIdx, 1, "the button is held, not snapped")

	// Slip noise keeps press and release near the target.
	assert.InDelta(t, 200, presses[0].X, 20)
	assert.InDelta(t, 150, presses[0].Y, 20)
}

func TestClickReleasesButtonState(t *testing.T) {
	rec := &recordingExecutor{}
	h := NewTestHumanoid(rec, 5)

	require.NoError(t, h.Click(context.Background(), Vector2D{X: 100, Y: 100}))
	assert.Equal(t, schemas.ButtonNone, h.currentButtonState)
}

func TestScrollSumsToRequestedDistance(t *testing.T) {
	rec := &recordingExecutor{}
	h := NewTestHumanoid(rec, 42)

	require.NoError(t, h.Scroll(context.Background(), 1000))

	wheels := rec.byType(schemas.MouseWheel)
	require.NotEmpty(t, wheels)

	sum := 0.0
	for _, e := range wheels {
		assert.Positive(t, e.DeltaY, "downward scroll uses positive deltas")
		sum += e.DeltaY
	}
	assert.InDelta(t, 1000, sum, 0.001)
	assert.Greater(t, len(wheels), 1, "scrolling happens in bursts, not one jump")
}

func TestScrollUpUsesNegativeDeltas(t *testing.T) {
	rec := &recordingExecutor{}
	h := NewTestHumanoid(rec, 42)

	require.NoError(t, h.Scroll(context.Background(), -600))

	sum := 0.0
	for _, e := range rec.byType(schemas.MouseWheel) {
		assert.Negative(t, e.DeltaY)
		sum += e.DeltaY
	}
	assert.InDelta(t, -600, sum, 0.001)
}

func TestHesitateDriftsAroundStart(t *testing.T) {
	rec := &recordingExecutor{}
	h := NewTestHumanoid(rec, 42)
	h.currentPos = Vector2D{X: 300, Y: 300}

	require.NoError(t, h.Hesitate(context.Background(), 60*time.Millisecond))

	moves := rec.byType(schemas.MouseMove)
	require.NotEmpty(t, moves, "idling still moves the cursor a little")
	for _, e := range moves {
		assert.InDelta(t, 300, e.X, 20, "drift stays near the resting point")
		assert.InDelta(t, 300, e.Y, 20)
	}
}

func TestFatigueAccumulatesAndSlowsMovement(t *testing.T) {
	rec := &recordingExecutor{}
	h := NewTestHumanoid(rec, 42)

	require.NoError(t, h.MoveTo(context.Background(), Vector2D{X: 1200, Y: 800}))
	assert.Positive(t, h.fatigueLevel)
	assert.Less(t, h.dynamicConfig.Omega, h.baseConfig.Omega,
		"fatigue reduces the spring frequency")
}

func TestZeroedConfigGetsDefaults(t *testing.T) {
	h := New(Config{}, zap.NewNop(), &recordingExecutor{})
	assert.Equal(t, DefaultConfig().Omega, h.baseConfig.Omega)
}
