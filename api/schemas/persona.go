package schemas

import (
	"time"
)

// BrowserKind identifies the engine family a persona imitates.
type BrowserKind string

const (
	BrowserChrome  BrowserKind = "chrome"
	BrowserEdge    BrowserKind = "edge"
	BrowserFirefox BrowserKind = "firefox"
)

// DeviceClass groups hardware profiles that must stay mutually consistent
// (touch points, screen size, battery reporting).
type DeviceClass string

const (
	DeviceDesktop DeviceClass = "desktop"
	DeviceLaptop  DeviceClass = "laptop"
	DeviceMobile  DeviceClass = "mobile"
)

// ScreenProperties defines the resolution and depth of the spoofed display.
type ScreenProperties struct {
	Width       int64   `json:"width"`
	Height      int64   `json:"height"`
	AvailWidth  int64   `json:"availWidth,omitempty"`
	AvailHeight int64   `json:"availHeight,omitempty"`
	ColorDepth  int     `json:"colorDepth,omitempty"`
	PixelDepth  int     `json:"pixelDepth,omitempty"`
	PixelRatio  float64 `json:"pixelRatio,omitempty"`
}

// ClientHints defines the structure for User-Agent Client Hints (Sec-CH-UA).
type ClientHints struct {
	Brands          [][2]string `json:"brands"`
	FullVersionList [][2]string `json:"fullVersionList,omitempty"`
	Mobile          bool        `json:"mobile"`
	Platform        string      `json:"platform"`
	PlatformVersion string      `json:"platformVersion"`
	Architecture    string      `json:"architecture,omitempty"`
	Bitness         string      `json:"bitness,omitempty"`
}

// BatteryState is reported through the spoofed Battery Status API.
type BatteryState struct {
	Charging bool    `json:"charging"`
	Level    float64 `json:"level"`
}

// HardwareProfile holds the physical characteristics of the synthetic device.
// All fields are drawn from weighted tables keyed by device class and OS so
// they never contradict each other.
type HardwareProfile struct {
	DeviceClass         DeviceClass      `json:"deviceClass"`
	HardwareConcurrency int              `json:"hardwareConcurrency"`
	DeviceMemory        int              `json:"deviceMemory"`
	GPUVendor           string           `json:"gpuVendor"`
	GPURenderer         string           `json:"gpuRenderer"`
	MaxTouchPoints      int              `json:"maxTouchPoints"`
	Screen              ScreenProperties `json:"screen"`
	Battery             *BatteryState    `json:"battery,omitempty"`
}

// SoftwareProfile holds the browser-visible software characteristics. The OS
// implied by the user agent matches Platform and the font population, and
// TimezoneID is drawn together with Locale.
type SoftwareProfile struct {
	UserAgent      string       `json:"userAgent"`
	Platform       string       `json:"platform"`
	OSFamily       string       `json:"osFamily"`
	Languages      []string     `json:"languages"`
	Locale         string       `json:"locale"`
	TimezoneID     string       `json:"timezoneId"`
	TimezoneOffset int          `json:"timezoneOffset"`
	Fonts          []string     `json:"fonts"`
	Plugins        []string     `json:"plugins"`
	ConnectionType string       `json:"connectionType"`
	ClientHints    *ClientHints `json:"clientHints,omitempty"`
}

// Persona is a reusable synthetic browser identity. Profile fields are
// immutable after creation; only LastUsedAt and UseCount change.
type Persona struct {
	ID          string          `json:"id"`
	BrowserKind BrowserKind     `json:"browserKind"`
	Hardware    HardwareProfile `json:"hardware"`
	Software    SoftwareProfile `json:"software"`

	// NoiseSeed deterministically drives every spoofed-API noise function
	// (canvas, audio, WebGL) for this persona.
	NoiseSeed uint64 `json:"noiseSeed"`

	CreatedAt  time.Time `json:"createdAt"`
	LastUsedAt time.Time `json:"lastUsedAt"`
	UseCount   int       `json:"useCount"`
}

// Age returns how long ago the persona was created.
func (p *Persona) Age(now time.Time) time.Duration {
	return now.Sub(p.CreatedAt)
}
