package fingerprint

import (
	"github.com/Boblepointu/chaosbrowser/api/schemas"
)

// The tables below are the single source of every drawn attribute. Later
// draws are taken from sub-tables keyed by earlier draws, which is what
// keeps a persona internally consistent: once the OS family is fixed the
// platform string, font population and GPU pool are fixed with it, and once
// the device class is fixed the screen, touch and battery characteristics
// follow.

type weightedKind struct {
	kind   schemas.BrowserKind
	weight float64
}

var browserKinds = []weightedKind{
	{schemas.BrowserChrome, 0.65},
	{schemas.BrowserEdge, 0.15},
	{schemas.BrowserFirefox, 0.20},
}

type weightedClass struct {
	class  schemas.DeviceClass
	weight float64
}

var deviceClasses = []weightedClass{
	{schemas.DeviceDesktop, 0.50},
	{schemas.DeviceLaptop, 0.40},
	{schemas.DeviceMobile, 0.10},
}

type osProfile struct {
	family string
	weight float64

	// uaOS is the OS fragment inside the UA string, per browser kind.
	uaOS map[schemas.BrowserKind]string
	// platform is the legacy navigator.platform value.
	platform string
	// Client Hints (chromium kinds only).
	chPlatform        string
	chPlatformVersion string
	architecture      string
	bitness           string

	fonts []string
	gpus  []gpuProfile

	// classes restricts which device classes this OS can host.
	classes []schemas.DeviceClass
}

type gpuProfile struct {
	vendor   string
	renderer string
}

var osProfiles = []osProfile{
	{
		family: "windows",
		weight: 0.55,
		uaOS: map[schemas.BrowserKind]string{
			schemas.BrowserChrome:  "Windows NT 10.0; Win64; x64",
			schemas.BrowserEdge:    "Windows NT 10.0; Win64; x64",
			schemas.BrowserFirefox: "Windows NT 10.0; Win64; x64",
		},
		platform:          "Win32",
		chPlatform:        "Windows",
		chPlatformVersion: "10.0.0",
		architecture:      "x86",
		bitness:           "64",
		fonts: []string{
			"Arial", "Calibri", "Cambria", "Consolas", "Courier New",
			"Georgia", "Segoe UI", "Tahoma", "Times New Roman", "Verdana",
		},
		gpus: []gpuProfile{
			{"Google Inc. (Intel)", "ANGLE (Intel, Intel(R) UHD Graphics 630 Direct3D11 vs_5_0 ps_5_0, D3D11)"},
			{"Google Inc. (Intel)", "ANGLE (Intel, Intel(R) UHD Graphics 770 Direct3D11 vs_5_0 ps_5_0, D3D11)"},
			{"Google Inc. (NVIDIA)", "ANGLE (NVIDIA, NVIDIA GeForce GTX 1650 Direct3D11 vs_5_0 ps_5_0, D3D11)"},
			{"Google Inc. (NVIDIA)", "ANGLE (NVIDIA, NVIDIA GeForce RTX 3060 Direct3D11 vs_5_0 ps_5_0, D3D11)"},
			{"Google Inc. (AMD)", "ANGLE (AMD, AMD Radeon RX 6600 Direct3D11 vs_5_0 ps_5_0, D3D11)"},
		},
		classes: []schemas.DeviceClass{schemas.DeviceDesktop, schemas.DeviceLaptop},
	},
	{
		family: "macos",
		weight: 0.25,
		uaOS: map[schemas.BrowserKind]string{
			schemas.BrowserChrome:  "Macintosh; Intel Mac OS X 10_15_7",
			schemas.BrowserEdge:    "Macintosh; Intel Mac OS X 10_15_7",
			schemas.BrowserFirefox: "Macintosh; Intel Mac OS X 10.15",
		},
		platform:          "MacIntel",
		chPlatform:        "macOS",
		chPlatformVersion: "14.5.0",
		architecture:      "arm",
		bitness:           "64",
		fonts: []string{
			"Arial", "Avenir", "Courier New", "Geneva", "Georgia",
			"Helvetica", "Helvetica Neue", "Menlo", "Monaco", "Times New Roman",
		},
		gpus: []gpuProfile{
			{"Google Inc. (Apple)", "ANGLE (Apple, Apple M1, OpenGL 4.1)"},
			{"Google Inc. (Apple)", "ANGLE (Apple, Apple M2, OpenGL 4.1)"},
			{"Google Inc. (Intel Inc.)", "ANGLE (Intel Inc., Intel Iris Plus Graphics, OpenGL 4.1)"},
		},
		classes: []schemas.DeviceClass{schemas.DeviceDesktop, schemas.DeviceLaptop},
	},
	{
		family: "linux",
		weight: 0.10,
		uaOS: map[schemas.BrowserKind]string{
			schemas.BrowserChrome:  "X11; Linux x86_64",
			schemas.BrowserEdge:    "X11; Linux x86_64",
			schemas.BrowserFirefox: "X11; Linux x86_64",
		},
		platform:          "Linux x86_64",
		chPlatform:        "Linux",
		chPlatformVersion: "6.8.0",
		architecture:      "x86",
		bitness:           "64",
		fonts: []string{
			"Cantarell", "DejaVu Sans", "DejaVu Serif", "Liberation Mono",
			"Liberation Sans", "Noto Sans", "Ubuntu",
		},
		gpus: []gpuProfile{
			{"Google Inc. (Intel)", "ANGLE (Intel, Mesa Intel(R) UHD Graphics 620 (KBL GT2), OpenGL 4.6)"},
			{"Google Inc. (AMD)", "ANGLE (AMD, AMD Radeon Graphics (renoir LLVM 15.0.7), OpenGL 4.6)"},
		},
		classes: []schemas.DeviceClass{schemas.DeviceDesktop, schemas.DeviceLaptop},
	},
	{
		family: "android",
		weight: 0.10,
		uaOS: map[schemas.BrowserKind]string{
			schemas.BrowserChrome:  "Linux; Android 14; Pixel 8",
			schemas.BrowserEdge:    "Linux; Android 14; Pixel 8",
			schemas.BrowserFirefox: "Android 14; Mobile",
		},
		platform:          "Linux armv81",
		chPlatform:        "Android",
		chPlatformVersion: "14.0.0",
		architecture:      "arm",
		bitness:           "64",
		fonts: []string{
			"Droid Sans", "Droid Sans Mono", "Noto Sans", "Noto Serif", "Roboto",
		},
		gpus: []gpuProfile{
			{"Qualcomm", "Adreno (TM) 740"},
			{"ARM", "Mali-G715-Immortalis MC11"},
		},
		classes: []schemas.DeviceClass{schemas.DeviceMobile},
	},
}

type screenProfile struct {
	width, height int64
	pixelRatio    float64
	weight        float64
}

// Screen pools keyed by device class. Mobile screens are reported in CSS
// pixels (portrait), matching what a real device exposes.
var screensByClass = map[schemas.DeviceClass][]screenProfile{
	schemas.DeviceDesktop: {
		{1920, 1080, 1.0, 0.45},
		{2560, 1440, 1.0, 0.25},
		{1680, 1050, 1.0, 0.10},
		{3840, 2160, 1.5, 0.10},
		{1920, 1200, 1.0, 0.10},
	},
	schemas.DeviceLaptop: {
		{1366, 768, 1.0, 0.30},
		{1536, 864, 1.25, 0.30},
		{1440, 900, 2.0, 0.20},
		{1920, 1080, 1.0, 0.20},
	},
	schemas.DeviceMobile: {
		{393, 852, 3.0, 0.40},
		{412, 915, 2.6, 0.35},
		{360, 800, 3.0, 0.25},
	},
}

// touchPointsByClass: touch points are positive only for the mobile class.
var touchPointsByClass = map[schemas.DeviceClass][]int{
	schemas.DeviceDesktop: {0},
	schemas.DeviceLaptop:  {0},
	schemas.DeviceMobile:  {5, 10},
}

type localeProfile struct {
	locale     string
	languages  []string
	timezoneID string
	// offsetMinutes is the standard-time UTC offset navigator reports.
	offsetMinutes int
	weight        float64
}

var localeProfiles = []localeProfile{
	{"en-US", []string{"en-US", "en"}, "America/New_York", 300, 0.30},
	{"en-US", []string{"en-US", "en"}, "America/Chicago", 360, 0.10},
	{"en-US", []string{"en-US", "en"}, "America/Los_Angeles", 480, 0.15},
	{"en-GB", []string{"en-GB", "en", "en-US"}, "Europe/London", 0, 0.15},
	{"de-DE", []string{"de-DE", "de", "en"}, "Europe/Berlin", -60, 0.10},
	{"fr-FR", []string{"fr-FR", "fr", "en"}, "Europe/Paris", -60, 0.10},
	{"es-ES", []string{"es-ES", "es", "en"}, "Europe/Madrid", -60, 0.05},
	{"it-IT", []string{"it-IT", "it", "en"}, "Europe/Rome", -60, 0.05},
}

type weightedInt struct {
	value  int
	weight float64
}

var coreCountsByClass = map[schemas.DeviceClass][]weightedInt{
	schemas.DeviceDesktop: {{8, 0.35}, {12, 0.25}, {16, 0.25}, {24, 0.15}},
	schemas.DeviceLaptop:  {{4, 0.30}, {8, 0.45}, {12, 0.25}},
	schemas.DeviceMobile:  {{8, 1.0}},
}

var deviceMemoriesByClass = map[schemas.DeviceClass][]weightedInt{
	schemas.DeviceDesktop: {{8, 0.40}, {16, 0.45}, {32, 0.15}},
	schemas.DeviceLaptop:  {{8, 0.55}, {16, 0.45}},
	schemas.DeviceMobile:  {{4, 0.50}, {8, 0.50}},
}

type connectionProfile struct {
	kind   string
	weight float64
}

var connectionsByClass = map[schemas.DeviceClass][]connectionProfile{
	schemas.DeviceDesktop: {{"ethernet", 0.6}, {"wifi", 0.4}},
	schemas.DeviceLaptop:  {{"wifi", 1.0}},
	schemas.DeviceMobile:  {{"cellular", 0.6}, {"wifi", 0.4}},
}

type browserVersion struct {
	major string
	full  string
}

var chromiumVersions = []browserVersion{
	{"128", "128.0.6613.137"},
	{"129", "129.0.6668.100"},
	{"130", "130.0.6723.69"},
	{"131", "131.0.6778.85"},
}

var firefoxVersions = []browserVersion{
	{"130", "130.0"},
	{"131", "131.0"},
}

var greaseBrands = []string{`Not A(Brand`, `Not/A)Brand`, `Not_A Brand`}

// Plugin populations per browser kind. Chromium browsers report the fixed
// PDF plugin set; Firefox reports an empty list.
var pluginsByKind = map[schemas.BrowserKind][]string{
	schemas.BrowserChrome: {
		"PDF Viewer", "Chrome PDF Viewer", "Chromium PDF Viewer",
		"Microsoft Edge PDF Viewer", "WebKit built-in PDF",
	},
	schemas.BrowserEdge: {
		"PDF Viewer", "Chrome PDF Viewer", "Chromium PDF Viewer",
		"Microsoft Edge PDF Viewer", "WebKit built-in PDF",
	},
	schemas.BrowserFirefox: {},
}
