// Package stealth rewrites the browser-visible environment of a CDP session
// so it matches a synthetic persona: network headers, user agent and client
// hints, device metrics, timezone and locale, and an injected script that
// patches the JS surface before any page code runs.
package stealth

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/Boblepointu/chaosbrowser/api/schemas"
)

//go:embed evasions.js
var evasionsScript string

// Apply returns the chromedp action sequence that imprints persona onto the
// session. Must run before the first navigation so the evasion script is
// registered for every document.
func Apply(persona schemas.Persona, logger *zap.Logger) chromedp.Action {
	l := logger.Named("stealth")
	return chromedp.Tasks{
		network.Enable(),
		setExtraHTTPHeaders(persona, l),

		setUserAgentAndClientHints(persona, l),
		setDeviceMetrics(persona, l),
		setEnvironmentOverrides(persona, l),

		injectEvasionScript(persona, l),

		page.SetWebLifecycleState(page.SetWebLifecycleStateStateActive),

		chromedp.ActionFunc(func(ctx context.Context) error {
			l.Debug("Stealth profile applied",
				zap.String("persona_id", persona.ID),
				zap.String("user_agent", persona.Software.UserAgent))
			return nil
		}),
	}
}

// jsPersona builds the object handed to evasions.js. The noise seed travels
// as a decimal string because a uint64 does not survive a JS Number.
func jsPersona(p schemas.Persona) map[string]interface{} {
	out := map[string]interface{}{
		"userAgent":           p.Software.UserAgent,
		"platform":            p.Software.Platform,
		"languages":           p.Software.Languages,
		"locale":              p.Software.Locale,
		"timezoneId":          p.Software.TimezoneID,
		"timezoneOffset":      p.Software.TimezoneOffset,
		"plugins":             p.Software.Plugins,
		"connectionType":      p.Software.ConnectionType,
		"hardwareConcurrency": p.Hardware.HardwareConcurrency,
		"deviceMemory":        p.Hardware.DeviceMemory,
		"maxTouchPoints":      p.Hardware.MaxTouchPoints,
		"gpuVendor":           p.Hardware.GPUVendor,
		"gpuRenderer":         p.Hardware.GPURenderer,
		"screen":              p.Hardware.Screen,
		"browserKind":         p.BrowserKind,
		"noiseSeed":           strconv.FormatUint(p.NoiseSeed, 10),
	}
	if p.Hardware.Battery != nil {
		out["battery"] = p.Hardware.Battery
	}
	if p.Software.ClientHints != nil {
		out["clientHints"] = p.Software.ClientHints
	}
	return out
}

// injectEvasionScript registers the JS environment patch for every new
// document in the session.
func injectEvasionScript(persona schemas.Persona, logger *zap.Logger) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		personaJSON, err := json.Marshal(jsPersona(persona))
		if err != nil {
			return fmt.Errorf("stealth: failed to marshal persona: %w", err)
		}

		script := fmt.Sprintf("const CHAOS_PERSONA = %s;\n%s", string(personaJSON), evasionsScript)

		if _, err = page.AddScriptToEvaluateOnNewDocument(script).Do(ctx); err != nil {
			logger.Error("Failed to register evasion script with CDP", zap.Error(err))
			return fmt.Errorf("stealth: failed to add script on new document: %w", err)
		}
		return nil
	})
}

// brandVersions converts the stored brand pairs into CDP metadata entries.
func brandVersions(pairs [][2]string) []*emulation.UserAgentBrandVersion {
	out := make([]*emulation.UserAgentBrandVersion, 0, len(pairs))
	for _, p := range pairs {
		out = append(out, &emulation.UserAgentBrandVersion{Brand: p[0], Version: p[1]})
	}
	return out
}

func setUserAgentAndClientHints(persona schemas.Persona, logger *zap.Logger) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		sw := persona.Software

		override := emulation.SetUserAgentOverride(sw.UserAgent).
			WithPlatform(sw.Platform).
			WithAcceptLanguage(strings.Join(sw.Languages, ","))

		if ch := sw.ClientHints; ch != nil {
			override = override.WithUserAgentMetadata(&emulation.UserAgentMetadata{
				Brands:          brandVersions(ch.Brands),
				FullVersionList: brandVersions(ch.FullVersionList),
				Mobile:          ch.Mobile,
				Platform:        ch.Platform,
				PlatformVersion: ch.PlatformVersion,
				Architecture:    ch.Architecture,
				Bitness:         ch.Bitness,
			})
		}

		if err := override.Do(ctx); err != nil {
			logger.Error("Failed to set UserAgent/ClientHints override via CDP", zap.Error(err))
			return fmt.Errorf("stealth: failed to set user agent override: %w", err)
		}
		return nil
	})
}

// setExtraHTTPHeaders pins Accept-Language to the persona's languages with
// descending q-values, matching what the injected navigator.languages claims.
func setExtraHTTPHeaders(persona schemas.Persona, logger *zap.Logger) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		langs := persona.Software.Languages
		if len(langs) == 0 {
			return nil
		}
		formatted := langs[0]
		for i := 1; i < len(langs); i++ {
			qValue := 1.0 - float64(i)*0.1
			if qValue < 0.7 {
				qValue = 0.7
			}
			formatted += fmt.Sprintf(",%s;q=%.1f", langs[i], qValue)
		}
		headers := map[string]interface{}{"Accept-Language": formatted}
		if err := network.SetExtraHTTPHeaders(network.Headers(headers)).Do(ctx); err != nil {
			logger.Error("Failed to set extra HTTP headers via CDP", zap.Error(err))
			return fmt.Errorf("stealth: failed to set extra http headers: %w", err)
		}
		return nil
	})
}

func setDeviceMetrics(persona schemas.Persona, logger *zap.Logger) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		screen := persona.Hardware.Screen
		if screen.Width <= 0 || screen.Height <= 0 {
			return nil
		}

		mobile := persona.Hardware.DeviceClass == schemas.DeviceMobile
		orientation := emulation.OrientationTypeLandscapePrimary
		if screen.Height > screen.Width {
			orientation = emulation.OrientationTypePortraitPrimary
		}
		pixelRatio := screen.PixelRatio
		if pixelRatio == 0 {
			pixelRatio = 1.0
		}

		err := emulation.SetDeviceMetricsOverride(screen.Width, screen.Height, pixelRatio, mobile).
			WithScreenOrientation(&emulation.ScreenOrientation{Type: orientation, Angle: 0}).
			Do(ctx)
		if err != nil {
			logger.Error("Failed to set device metrics override via CDP", zap.Error(err))
			return fmt.Errorf("stealth: failed to set device metrics: %w", err)
		}

		if persona.Hardware.MaxTouchPoints > 0 {
			err = emulation.SetTouchEmulationEnabled(true).
				WithMaxTouchPoints(int64(persona.Hardware.MaxTouchPoints)).
				Do(ctx)
			if err != nil {
				logger.Error("Failed to enable touch emulation via CDP", zap.Error(err))
				return fmt.Errorf("stealth: failed to enable touch emulation: %w", err)
			}
		}
		return nil
	})
}

// setEnvironmentOverrides keeps the timezone and locale coherent with the
// persona's language draw; a mismatch between the two is a classic tell.
func setEnvironmentOverrides(persona schemas.Persona, logger *zap.Logger) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		sw := persona.Software

		if sw.TimezoneID != "" {
			if err := emulation.SetTimezoneOverride(sw.TimezoneID).Do(ctx); err != nil {
				logger.Error("Failed to set timezone override via CDP", zap.Error(err))
				return fmt.Errorf("stealth: failed to set timezone: %w", err)
			}
		}

		locale := sw.Locale
		if locale == "" && len(sw.Languages) > 0 {
			locale = sw.Languages[0]
		}
		if locale != "" {
			normalized := strings.ReplaceAll(locale, "_", "-")
			if err := emulation.SetLocaleOverride().WithLocale(normalized).Do(ctx); err != nil {
				logger.Error("Failed to set locale override via CDP", zap.Error(err))
				return fmt.Errorf("stealth: failed to set locale: %w", err)
			}
		}
		return nil
	})
}
