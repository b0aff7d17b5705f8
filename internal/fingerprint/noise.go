package fingerprint

import (
	"encoding/binary"
	"hash/fnv"
	"math/rand"
)

// Spoofed API names used for sub-seed derivation. The same constants are
// baked into evasions.js so the in-page noise matches what tests compute
// here.
const (
	APICanvas = "canvas"
	APIAudio  = "audio"
	APIWebGL  = "webgl"
)

// NoiseSeed derives a persona's stable noise seed from its ID with FNV-1a.
// The same ID always yields the same seed, and distinct IDs collide with
// negligible probability in a 64-bit space.
func NoiseSeed(id string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(id))
	return h.Sum64()
}

// SubSeed derives an independent per-API seed from the persona noise seed,
// so canvas, audio and WebGL noise streams never correlate.
func SubSeed(seed uint64, api string) uint64 {
	h := fnv.New64a()
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], seed)
	_, _ = h.Write(buf[:])
	_, _ = h.Write([]byte(api))
	return h.Sum64()
}

// noiseRNG returns a PRNG seeded for one API of one persona.
func noiseRNG(seed uint64, api string) *rand.Rand {
	return rand.New(rand.NewSource(int64(SubSeed(seed, api))))
}

// CanvasNoise returns n per-channel pixel deltas in [-2, 2]. Repeated calls
// with the same seed produce identical output. Stability across page reloads
// matters because per-call randomness is itself a fingerprint.
func CanvasNoise(seed uint64, n int) []int8 {
	rng := noiseRNG(seed, APICanvas)
	out := make([]int8, n)
	for i := range out {
		out[i] = int8(rng.Intn(5) - 2)
	}
	return out
}

// AudioNoise returns n additive sample offsets with magnitude around 1e-5,
// below audibility but enough to perturb an AudioContext hash.
func AudioNoise(seed uint64, n int) []float64 {
	rng := noiseRNG(seed, APIAudio)
	out := make([]float64, n)
	for i := range out {
		out[i] = (rng.Float64()*2 - 1) * 1e-5
	}
	return out
}

// WebGLJitter returns a small multiplicative jitter factor near 1.0 applied
// to selected readParameter floats.
func WebGLJitter(seed uint64) float64 {
	rng := noiseRNG(seed, APIWebGL)
	return 1.0 + (rng.Float64()*2-1)*1e-4
}
