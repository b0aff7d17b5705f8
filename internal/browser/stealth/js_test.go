package stealth

import (
	"encoding/json"
	"fmt"
	"strconv"
	"testing"

	"github.com/dop251/goja"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Boblepointu/chaosbrowser/api/schemas"
	"github.com/Boblepointu/chaosbrowser/internal/fingerprint"
)

func testPersona() schemas.Persona {
	return schemas.Persona{
		ID:          "js-test-persona",
		BrowserKind: schemas.BrowserChrome,
		Hardware: schemas.HardwareProfile{
			DeviceClass:         schemas.DeviceLaptop,
			HardwareConcurrency: 12,
			DeviceMemory:        16,
			GPUVendor:           "Google Inc. (NVIDIA)",
			GPURenderer:         "ANGLE (NVIDIA GeForce RTX 3060)",
			MaxTouchPoints:      0,
			Screen: schemas.ScreenProperties{
				Width: 1920, Height: 1080, AvailWidth: 1920, AvailHeight: 1040,
				ColorDepth: 24, PixelDepth: 24, PixelRatio: 1,
			},
		},
		Software: schemas.SoftwareProfile{
			UserAgent:      "Mozilla/5.0 (js test)",
			Platform:       "Win32",
			OSFamily:       "windows",
			Languages:      []string{"fr-FR", "fr", "en"},
			Locale:         "fr-FR",
			TimezoneID:     "Europe/Paris",
			TimezoneOffset: -120,
			Plugins:        []string{"PDF Viewer", "Chrome PDF Viewer"},
			ConnectionType: "4g",
		},
		NoiseSeed: fingerprint.NoiseSeed("js-test-persona"),
	}
}

// runEvasions evaluates evasions.js against a minimal DOM-less environment
// and returns the VM for inspection.
func runEvasions(t *testing.T, persona schemas.Persona) *goja.Runtime {
	t.Helper()

	personaJSON, err := json.Marshal(jsPersona(persona))
	require.NoError(t, err)

	vm := goja.New()
	prelude := `
		var window = this;
		var navigator = { deviceMemory: 0, connection: {} };
		var screen = {};
	`
	script := fmt.Sprintf("%s\nconst CHAOS_PERSONA = %s;\n%s", prelude, personaJSON, evasionsScript)
	_, err = vm.RunString(script)
	require.NoError(t, err, "evasions script must evaluate cleanly")
	return vm
}

func jsString(t *testing.T, vm *goja.Runtime, expr string) string {
	t.Helper()
	v, err := vm.RunString(expr)
	require.NoError(t, err, "evaluating %s", expr)
	return v.String()
}

func TestEvasionsPatchNavigatorSurface(t *testing.T) {
	persona := testPersona()
	vm := runEvasions(t, persona)

	assert.Equal(t, "true", jsString(t, vm, `String(navigator.webdriver === undefined)`))
	assert.Equal(t, "fr-FR,fr,en", jsString(t, vm, `navigator.languages.join(',')`))
	assert.Equal(t, "fr-FR", jsString(t, vm, `navigator.language`))
	assert.Equal(t, "Win32", jsString(t, vm, `navigator.platform`))
	assert.Equal(t, "12", jsString(t, vm, `String(navigator.hardwareConcurrency)`))
	assert.Equal(t, "16", jsString(t, vm, `String(navigator.deviceMemory)`))
	assert.Equal(t, "0", jsString(t, vm, `String(navigator.maxTouchPoints)`))
	assert.Equal(t, "4g", jsString(t, vm, `navigator.connection.effectiveType`))
	assert.Equal(t, "2", jsString(t, vm, `String(navigator.plugins.length)`))
	assert.Equal(t, "PDF Viewer", jsString(t, vm, `navigator.plugins.item(0).name`))
}

func TestEvasionsPatchScreenAndTimezone(t *testing.T) {
	vm := runEvasions(t, testPersona())

	assert.Equal(t, "1920", jsString(t, vm, `String(screen.width)`))
	assert.Equal(t, "1040", jsString(t, vm, `String(screen.availHeight)`))
	assert.Equal(t, "24", jsString(t, vm, `String(screen.colorDepth)`))
	assert.Equal(t, "-120", jsString(t, vm, `String(new Date().getTimezoneOffset())`))
}

func TestEvasionsInstallChromeRuntime(t *testing.T) {
	vm := runEvasions(t, testPersona())

	assert.Equal(t, "true", jsString(t, vm, `String(typeof window.chrome === 'object')`))
	assert.Equal(t, "function", jsString(t, vm, `typeof window.chrome.runtime.sendMessage`))
	assert.Equal(t, "function", jsString(t, vm, `typeof window.chrome.loadTimes`))
}

func TestEvasionsSkipChromeObjectForFirefox(t *testing.T) {
	persona := testPersona()
	persona.BrowserKind = schemas.BrowserFirefox
	vm := runEvasions(t, persona)

	assert.Equal(t, "undefined", jsString(t, vm, `typeof window.chrome`))
}

func TestEvasionsSubSeedMatchesServerDerivation(t *testing.T) {
	persona := testPersona()
	vm := runEvasions(t, persona)

	for _, api := range []string{fingerprint.APICanvas, fingerprint.APIAudio, fingerprint.APIWebGL} {
		want := strconv.FormatUint(fingerprint.SubSeed(persona.NoiseSeed, api), 10)
		got := jsString(t, vm, fmt.Sprintf(`window.__chaosSubSeed(%q)`, api))
		assert.Equal(t, want, got, "in-page sub-seed for %s must match the generator", api)
	}
}

func TestEvasionsIdempotent(t *testing.T) {
	vm := runEvasions(t, testPersona())

	// Re-running against the same window must be a no-op, not an error.
	_, err := vm.RunString(evasionsScript)
	assert.NoError(t, err)
	assert.Equal(t, "true", jsString(t, vm, `String(window.__chaosApplied)`))
}
