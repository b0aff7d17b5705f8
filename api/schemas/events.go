package schemas

// MouseButton mirrors the CDP Input domain button strings.
type MouseButton string

const (
	ButtonNone   MouseButton = "none"
	ButtonLeft   MouseButton = "left"
	ButtonMiddle MouseButton = "middle"
	ButtonRight  MouseButton = "right"
)

// MouseEventType mirrors the CDP Input.dispatchMouseEvent type values.
type MouseEventType string

const (
	MouseMove    MouseEventType = "mouseMoved"
	MousePress   MouseEventType = "mousePressed"
	MouseRelease MouseEventType = "mouseReleased"
	MouseWheel   MouseEventType = "mouseWheel"
)

// MouseEventData carries a single synthetic input event to the executor.
type MouseEventData struct {
	Type       MouseEventType
	X          float64
	Y          float64
	Button     MouseButton
	Buttons    int64 // bitfield of currently pressed buttons
	ClickCount int64
	DeltaX     float64
	DeltaY     float64
}
