package identity

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Boblepointu/chaosbrowser/api/schemas"
	"github.com/Boblepointu/chaosbrowser/internal/config"
)

func sampleDocument() *Document {
	doc := NewDocument()
	now := time.Now().UTC().Truncate(time.Second)
	doc.Personas["p1"] = &schemas.Persona{
		ID:          "p1",
		BrowserKind: schemas.BrowserChrome,
		Hardware: schemas.HardwareProfile{
			DeviceClass:         schemas.DeviceDesktop,
			HardwareConcurrency: 8,
			DeviceMemory:        16,
			Screen:              schemas.ScreenProperties{Width: 1920, Height: 1080},
		},
		Software: schemas.SoftwareProfile{
			UserAgent: "Mozilla/5.0 (test)",
			Platform:  "Win32",
			Languages: []string{"en-US", "en"},
		},
		NoiseSeed:  12345678901234567890,
		CreatedAt:  now,
		LastUsedAt: now,
		UseCount:   3,
	}
	doc.Metadata.TotalCreated = 1
	return doc
}

func TestFileBackendRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "personas.json")
	b, err := NewFileBackend(path)
	require.NoError(t, err)

	want := sampleDocument()
	require.NoError(t, b.Save(context.Background(), want))

	got, err := b.Load(context.Background())
	require.NoError(t, err)

	require.Contains(t, got.Personas, "p1")
	p := got.Personas["p1"]
	assert.Equal(t, want.Personas["p1"].NoiseSeed, p.NoiseSeed, "uint64 seed must survive the round trip")
	assert.Equal(t, 3, p.UseCount)
	assert.Equal(t, schemas.BrowserChrome, p.BrowserKind)
	assert.Equal(t, 1, got.Metadata.TotalCreated)
}

func TestFileBackendMissingFileYieldsEmptyDocument(t *testing.T) {
	b, err := NewFileBackend(filepath.Join(t.TempDir(), "absent.json"))
	require.NoError(t, err)

	doc, err := b.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, doc.Personas)
}

func TestFileBackendCorruptFileErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "personas.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	b, err := NewFileBackend(path)
	require.NoError(t, err)

	_, err = b.Load(context.Background())
	assert.Error(t, err)
}

func TestOpenFallsBackToMemoryOnCorruptStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "personas.json")
	require.NoError(t, os.WriteFile(path, []byte("garbage"), 0o600))

	m := Open(context.Background(),
		config.StoreConfig{Backend: "file", Path: path, RetentionDays: 90},
		config.RotationConfig{Strategy: "weighted", MaxAgeDays: 30, MaxUses: 100},
		&fakeSynth{}, zap.NewNop())

	// Corrupt storage must degrade, not block session startup.
	p, err := m.Acquire(context.Background(), StrategyWeighted)
	require.NoError(t, err)
	assert.NotEmpty(t, p.ID)
	_, isMemory := m.backend.(*MemoryBackend)
	assert.True(t, isMemory)
}

func TestOpenFallsBackToMemoryOnUnknownBackend(t *testing.T) {
	m := Open(context.Background(),
		config.StoreConfig{Backend: "etched-stone"},
		config.RotationConfig{MaxAgeDays: 30, MaxUses: 100},
		&fakeSynth{}, zap.NewNop())

	_, isMemory := m.backend.(*MemoryBackend)
	assert.True(t, isMemory)
}

func TestFileBackendPersistsAcrossManagers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "personas.json")
	storeCfg := config.StoreConfig{Backend: "file", Path: path, RetentionDays: 90}
	rotCfg := config.RotationConfig{Strategy: "weighted", MaxAgeDays: 30, MaxUses: 100}

	first := Open(context.Background(), storeCfg, rotCfg, &fakeSynth{}, zap.NewNop())
	p, err := first.Acquire(context.Background(), StrategyWeighted)
	require.NoError(t, err)
	first.Release(context.Background(), p.ID, schemas.ChallengeOutcome{Result: schemas.ChallengePassed})
	require.NoError(t, first.Close())

	second := Open(context.Background(), storeCfg, rotCfg, &fakeSynth{}, zap.NewNop())
	defer second.Close()

	got, ok := second.doc.Personas[p.ID]
	require.True(t, ok, "persona must survive a manager restart")
	assert.Equal(t, 1, got.UseCount)
}

func TestSQLiteBackendRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "personas.db")
	b, err := NewSQLiteBackend(context.Background(), path)
	require.NoError(t, err)
	defer b.Close()

	want := sampleDocument()
	require.NoError(t, b.Save(context.Background(), want))
	// A second save must replace, not accumulate.
	require.NoError(t, b.Save(context.Background(), want))

	got, err := b.Load(context.Background())
	require.NoError(t, err)

	require.Len(t, got.Personas, 1)
	assert.Equal(t, want.Personas["p1"].NoiseSeed, got.Personas["p1"].NoiseSeed)
	assert.Equal(t, 1, got.Metadata.TotalCreated)
}

func TestMemoryBackendRoundTrip(t *testing.T) {
	b := NewMemoryBackend()
	want := sampleDocument()
	require.NoError(t, b.Save(context.Background(), want))

	got, err := b.Load(context.Background())
	require.NoError(t, err)
	assert.Contains(t, got.Personas, "p1")
}
