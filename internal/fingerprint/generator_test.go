package fingerprint

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Boblepointu/chaosbrowser/api/schemas"
)

func newTestGenerator(t *testing.T) *Generator {
	t.Helper()
	g, err := NewGenerator(zap.NewNop())
	require.NoError(t, err)
	return g
}

func TestNewGeneratorValidatesTables(t *testing.T) {
	_, err := NewGenerator(zap.NewNop())
	assert.NoError(t, err, "shipped tables must validate")
}

// osByFamily rebuilds the lookup the consistency assertions need.
func osByFamily() map[string]osProfile {
	out := make(map[string]osProfile, len(osProfiles))
	for _, os := range osProfiles {
		out[os.family] = os
	}
	return out
}

func TestSynthesizeInternalConsistency(t *testing.T) {
	g := newTestGenerator(t)
	families := osByFamily()

	for i := 0; i < 500; i++ {
		p, err := g.Synthesize()
		require.NoError(t, err)

		os, ok := families[p.Software.OSFamily]
		require.True(t, ok, "unknown OS family %q", p.Software.OSFamily)

		// The platform string, fonts and UA must all come from the same OS.
		assert.Equal(t, os.platform, p.Software.Platform)
		assert.Equal(t, os.fonts, p.Software.Fonts)
		assert.Contains(t, p.Software.UserAgent, os.uaOS[p.BrowserKind])

		// Device class allowed by that OS.
		assert.Contains(t, os.classes, p.Hardware.DeviceClass)

		// Touch points positive only on mobile.
		if p.Hardware.DeviceClass == schemas.DeviceMobile {
			assert.Positive(t, p.Hardware.MaxTouchPoints)
		} else {
			assert.Zero(t, p.Hardware.MaxTouchPoints)
		}

		// Desktops never report a battery.
		if p.Hardware.DeviceClass == schemas.DeviceDesktop {
			assert.Nil(t, p.Hardware.Battery)
		} else {
			require.NotNil(t, p.Hardware.Battery)
			assert.GreaterOrEqual(t, p.Hardware.Battery.Level, 0.2)
			assert.LessOrEqual(t, p.Hardware.Battery.Level, 0.95)
		}

		// Timezone is drawn together with locale, never independently.
		assert.NotEmpty(t, p.Software.TimezoneID)
		assert.NotEmpty(t, p.Software.Locale)
		assert.NotEmpty(t, p.Software.Languages)

		// Client hints exist exactly for chromium kinds and agree with the
		// rest of the profile.
		if p.BrowserKind == schemas.BrowserFirefox {
			assert.Nil(t, p.Software.ClientHints)
			assert.Contains(t, p.Software.UserAgent, "Firefox/")
		} else {
			require.NotNil(t, p.Software.ClientHints)
			assert.Equal(t, os.chPlatform, p.Software.ClientHints.Platform)
			assert.Equal(t, p.Hardware.DeviceClass == schemas.DeviceMobile, p.Software.ClientHints.Mobile)
		}
		if p.BrowserKind == schemas.BrowserEdge {
			assert.Contains(t, p.Software.UserAgent, "Edg/")
		}

		assert.Positive(t, p.Hardware.HardwareConcurrency)
		assert.Positive(t, p.Hardware.DeviceMemory)
		assert.Positive(t, p.Hardware.Screen.Width)
		assert.Positive(t, p.Hardware.Screen.Height)
	}
}

func TestSynthesizeNeverReusesIdentity(t *testing.T) {
	g := newTestGenerator(t)

	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		p, err := g.Synthesize()
		require.NoError(t, err)
		assert.False(t, seen[p.ID], "duplicate persona id %s", p.ID)
		seen[p.ID] = true
		assert.Equal(t, NoiseSeed(p.ID), p.NoiseSeed)
		assert.Zero(t, p.UseCount)
	}
}

// Hash-derived grease indexing must stay in range for every shipped
// version, whatever the seed's high bit looks like.
func TestClientHintsGreaseIndexSafeForAllVersions(t *testing.T) {
	families := osByFamily()
	os := families["windows"]

	for _, v := range chromiumVersions {
		v := v
		require.NotPanics(t, func() {
			ch := buildClientHints(schemas.BrowserChrome, os, schemas.DeviceDesktop, v)
			require.NotNil(t, ch)
			assert.Contains(t, greaseBrands, ch.Brands[0][0])
			assert.Equal(t, v.major, ch.Brands[1][1])
		}, "version %s", v.full)
	}
}

func TestFirefoxUserAgentVersionConsistency(t *testing.T) {
	for _, os := range osProfiles {
		uaOS, ok := os.uaOS[schemas.BrowserFirefox]
		if !ok {
			continue
		}
		for _, v := range firefoxVersions {
			ua := buildUserAgent(schemas.BrowserFirefox, os, v)
			assert.Contains(t, ua, uaOS+"; rv:"+v.full+")")
			assert.True(t, strings.HasSuffix(ua, "Firefox/"+v.full),
				"rv token and product version must agree: %s", ua)
		}
	}
}

func TestUserAgentShapes(t *testing.T) {
	g := newTestGenerator(t)

	for i := 0; i < 200; i++ {
		p, err := g.Synthesize()
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(p.Software.UserAgent, "Mozilla/5.0 ("),
			"unexpected UA shape: %s", p.Software.UserAgent)
	}
}
