// Package fingerprint synthesizes internally consistent browser personas and
// derives the deterministic noise seeds that keep a persona's spoofed API
// output stable across sessions.
package fingerprint

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Boblepointu/chaosbrowser/api/schemas"
)

// Generator draws personas from the weighted tables in tables.go.
type Generator struct {
	mu  sync.Mutex
	rng *rand.Rand
	log *zap.Logger
	now func() time.Time
}

// NewGenerator validates the attribute tables and returns a ready generator.
// Table errors are configuration errors and abort startup.
func NewGenerator(logger *zap.Logger) (*Generator, error) {
	if err := validateTables(); err != nil {
		return nil, fmt.Errorf("invalid fingerprint tables: %w", err)
	}
	return &Generator{
		rng: rand.New(rand.NewSource(time.Now().UnixNano())),
		log: logger.Named("fingerprint"),
		now: time.Now,
	}, nil
}

// validateTables rejects empty or zero-weight tables before any worker runs.
func validateTables() error {
	if len(browserKinds) == 0 || len(osProfiles) == 0 || len(localeProfiles) == 0 {
		return fmt.Errorf("empty attribute table")
	}
	sum := 0.0
	for _, k := range browserKinds {
		sum += k.weight
	}
	if sum <= 0 {
		return fmt.Errorf("browser kind weights sum to %f", sum)
	}
	for class, screens := range screensByClass {
		if len(screens) == 0 {
			return fmt.Errorf("no screens for device class %q", class)
		}
	}
	for _, os := range osProfiles {
		if len(os.gpus) == 0 {
			return fmt.Errorf("no GPUs for OS family %q", os.family)
		}
		if len(os.classes) == 0 {
			return fmt.Errorf("no device classes for OS family %q", os.family)
		}
		if len(os.fonts) == 0 {
			return fmt.Errorf("no fonts for OS family %q", os.family)
		}
	}
	return nil
}

// Synthesize builds a fresh persona. It is pure computation: no I/O, no
// shared state beyond the generator's RNG, and it never returns an error
// once the tables have validated.
func (g *Generator) Synthesize() (*schemas.Persona, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	id := uuid.NewString()
	now := g.now()

	kind := g.drawBrowserKind()
	os := g.drawOS(kind)
	class := g.drawDeviceClass(os)

	screen := g.drawScreen(class)
	gpu := os.gpus[g.rng.Intn(len(os.gpus))]
	touch := g.drawTouchPoints(class)
	locale := g.drawLocale()
	cores := g.drawWeightedInt(coreCountsByClass[class])
	memory := g.drawWeightedInt(deviceMemoriesByClass[class])
	conn := g.drawConnection(class)
	version := g.drawVersion(kind)

	persona := &schemas.Persona{
		ID:          id,
		BrowserKind: kind,
		Hardware: schemas.HardwareProfile{
			DeviceClass:         class,
			HardwareConcurrency: cores,
			DeviceMemory:        memory,
			GPUVendor:           gpu.vendor,
			GPURenderer:         gpu.renderer,
			MaxTouchPoints:      touch,
			Screen:              screen,
			Battery:             g.drawBattery(class),
		},
		Software: schemas.SoftwareProfile{
			UserAgent:      buildUserAgent(kind, os, version),
			Platform:       os.platform,
			OSFamily:       os.family,
			Languages:      locale.languages,
			Locale:         locale.locale,
			TimezoneID:     locale.timezoneID,
			TimezoneOffset: locale.offsetMinutes,
			Fonts:          os.fonts,
			Plugins:        pluginsByKind[kind],
			ConnectionType: conn,
			ClientHints:    buildClientHints(kind, os, class, version),
		},
		NoiseSeed:  NoiseSeed(id),
		CreatedAt:  now,
		LastUsedAt: now,
		UseCount:   0,
	}
	return persona, nil
}

func (g *Generator) drawBrowserKind() schemas.BrowserKind {
	total := 0.0
	for _, k := range browserKinds {
		total += k.weight
	}
	r := g.rng.Float64() * total
	cumulative := 0.0
	for _, k := range browserKinds {
		cumulative += k.weight
		if r <= cumulative {
			return k.kind
		}
	}
	return browserKinds[0].kind
}

func (g *Generator) drawOS(kind schemas.BrowserKind) osProfile {
	// Only OS families with a UA template for this browser kind qualify.
	var pool []osProfile
	for _, os := range osProfiles {
		if _, ok := os.uaOS[kind]; ok {
			pool = append(pool, os)
		}
	}
	total := 0.0
	for _, os := range pool {
		total += os.weight
	}
	r := g.rng.Float64() * total
	cumulative := 0.0
	for _, os := range pool {
		cumulative += os.weight
		if r <= cumulative {
			return os
		}
	}
	return pool[0]
}

// drawDeviceClass picks among the classes the chosen OS supports, reusing
// the global class weights restricted to that pool.
func (g *Generator) drawDeviceClass(os osProfile) schemas.DeviceClass {
	allowed := make(map[schemas.DeviceClass]bool, len(os.classes))
	for _, c := range os.classes {
		allowed[c] = true
	}

	total := 0.0
	for _, c := range deviceClasses {
		if allowed[c.class] {
			total += c.weight
		}
	}
	r := g.rng.Float64() * total
	cumulative := 0.0
	for _, c := range deviceClasses {
		if !allowed[c.class] {
			continue
		}
		cumulative += c.weight
		if r <= cumulative {
			return c.class
		}
	}
	return os.classes[0]
}

func (g *Generator) drawScreen(class schemas.DeviceClass) schemas.ScreenProperties {
	screens := screensByClass[class]
	total := 0.0
	for _, s := range screens {
		total += s.weight
	}
	r := g.rng.Float64() * total
	cumulative := 0.0
	chosen := screens[0]
	for _, s := range screens {
		cumulative += s.weight
		if r <= cumulative {
			chosen = s
			break
		}
	}

	availHeight := chosen.height
	if class != schemas.DeviceMobile {
		// Desktop OSes reserve a taskbar strip.
		availHeight -= 40
	}
	return schemas.ScreenProperties{
		Width:       chosen.width,
		Height:      chosen.height,
		AvailWidth:  chosen.width,
		AvailHeight: availHeight,
		ColorDepth:  24,
		PixelDepth:  24,
		PixelRatio:  chosen.pixelRatio,
	}
}

func (g *Generator) drawTouchPoints(class schemas.DeviceClass) int {
	points := touchPointsByClass[class]
	return points[g.rng.Intn(len(points))]
}

func (g *Generator) drawBattery(class schemas.DeviceClass) *schemas.BatteryState {
	// Desktops report no battery; laptops and mobiles do.
	if class == schemas.DeviceDesktop {
		return nil
	}
	return &schemas.BatteryState{
		Charging: g.rng.Float64() < 0.55,
		// Keep away from suspicious extremes.
		Level: 0.2 + g.rng.Float64()*0.75,
	}
}

func (g *Generator) drawLocale() localeProfile {
	total := 0.0
	for _, l := range localeProfiles {
		total += l.weight
	}
	r := g.rng.Float64() * total
	cumulative := 0.0
	for _, l := range localeProfiles {
		cumulative += l.weight
		if r <= cumulative {
			return l
		}
	}
	return localeProfiles[0]
}

func (g *Generator) drawWeightedInt(table []weightedInt) int {
	total := 0.0
	for _, e := range table {
		total += e.weight
	}
	r := g.rng.Float64() * total
	cumulative := 0.0
	for _, e := range table {
		cumulative += e.weight
		if r <= cumulative {
			return e.value
		}
	}
	return table[0].value
}

func (g *Generator) drawConnection(class schemas.DeviceClass) string {
	conns := connectionsByClass[class]
	total := 0.0
	for _, c := range conns {
		total += c.weight
	}
	r := g.rng.Float64() * total
	cumulative := 0.0
	for _, c := range conns {
		cumulative += c.weight
		if r <= cumulative {
			return c.kind
		}
	}
	return conns[0].kind
}

func (g *Generator) drawVersion(kind schemas.BrowserKind) browserVersion {
	if kind == schemas.BrowserFirefox {
		return firefoxVersions[g.rng.Intn(len(firefoxVersions))]
	}
	return chromiumVersions[g.rng.Intn(len(chromiumVersions))]
}

func buildUserAgent(kind schemas.BrowserKind, os osProfile, v browserVersion) string {
	uaOS := os.uaOS[kind]
	switch kind {
	case schemas.BrowserFirefox:
		// The rv token always matches the Firefox version in real UAs.
		return fmt.Sprintf("Mozilla/5.0 (%s; rv:%s) Gecko/20100101 Firefox/%s", uaOS, v.full, v.full)
	case schemas.BrowserEdge:
		return fmt.Sprintf("Mozilla/5.0 (%s) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/%s Safari/537.36 Edg/%s",
			uaOS, v.full, v.full)
	default:
		return fmt.Sprintf("Mozilla/5.0 (%s) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/%s Safari/537.36",
			uaOS, v.full)
	}
}

// buildClientHints returns Sec-CH-UA metadata for chromium kinds; Firefox
// does not send client hints.
func buildClientHints(kind schemas.BrowserKind, os osProfile, class schemas.DeviceClass, v browserVersion) *schemas.ClientHints {
	if kind == schemas.BrowserFirefox {
		return nil
	}

	grease := greaseBrands[NoiseSeed(v.full)%uint64(len(greaseBrands))]
	brand := "Google Chrome"
	if kind == schemas.BrowserEdge {
		brand = "Microsoft Edge"
	}

	return &schemas.ClientHints{
		Brands: [][2]string{
			{grease, "8"},
			{"Chromium", v.major},
			{brand, v.major},
		},
		FullVersionList: [][2]string{
			{grease, "8.0.0.0"},
			{"Chromium", v.full},
			{brand, v.full},
		},
		Mobile:          class == schemas.DeviceMobile,
		Platform:        os.chPlatform,
		PlatformVersion: os.chPlatformVersion,
		Architecture:    os.architecture,
		Bitness:         os.bitness,
	}
}
