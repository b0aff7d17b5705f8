package humanoid

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/chromedp"

	"github.com/Boblepointu/chaosbrowser/api/schemas"
)

// CDPExecutor dispatches input events over the Chrome DevTools Protocol.
// The context passed to its methods must carry a chromedp target.
type CDPExecutor struct{}

// NewCDPExecutor returns the production executor.
func NewCDPExecutor() *CDPExecutor {
	return &CDPExecutor{}
}

func (e *CDPExecutor) DispatchMouseEvent(ctx context.Context, data schemas.MouseEventData) error {
	params := input.DispatchMouseEvent(input.MouseType(data.Type), data.X, data.Y).
		WithButton(input.MouseButton(data.Button)).
		WithButtons(data.Buttons).
		WithClickCount(data.ClickCount)

	if data.Type == schemas.MouseWheel {
		params = params.WithDeltaX(data.DeltaX).WithDeltaY(data.DeltaY)
	}

	if err := chromedp.Run(ctx, params); err != nil {
		return fmt.Errorf("failed to dispatch %s event: %w", data.Type, err)
	}
	return nil
}

func (e *CDPExecutor) Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
