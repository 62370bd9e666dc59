package analyzer

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextPow2(t *testing.T) {
	cases := map[int]int{
		0:   1,
		1:   1,
		2:   2,
		3:   4,
		5:   8,
		16:  16,
		31:  32,
		257: 512,
	}
	for input, want := range cases {
		if got := nextPow2(input); got != want {
			t.Fatalf("nextPow2(%d)=%d want=%d", input, got, want)
		}
	}
}

func TestClamp(t *testing.T) {
	if clamp(2, 0, 1) != 1 {
		t.Fatalf("expected clamp high to be 1")
	}
	if clamp(-1, 0, 1) != 0 {
		t.Fatalf("expected clamp low to be 0")
	}
	if clamp(0.5, 0, 1) != 0.5 {
		t.Fatalf("expected clamp middle to be unchanged")
	}
}

func TestBandsLowOnly(t *testing.T) {
	bins := make([]uint8, 128)
	for i := 0; i < 5; i++ {
		bins[i] = 200
	}
	b := NewSnapshot(bins, time.Time{}).Bands()

	assert.InDelta(t, 0.784, b.Low, 0.001)
	assert.Equal(t, 0.0, b.Mid)
	assert.Equal(t, 0.0, b.High)
}

func TestBandsStayInUnitRange(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for iter := 0; iter < 500; iter++ {
		bins := make([]uint8, 1+rng.Intn(200))
		for i := range bins {
			bins[i] = uint8(rng.Intn(256))
		}
		b := NewSnapshot(bins, time.Time{}).Bands()
		for _, v := range []float64{b.Low, b.Mid, b.High, b.Overall()} {
			require.GreaterOrEqual(t, v, 0.0)
			require.LessOrEqual(t, v, 1.0)
		}
	}
}

func TestFullScaleBandsAreOne(t *testing.T) {
	bins := make([]uint8, 16)
	for i := range bins {
		bins[i] = 255
	}
	b := NewSnapshot(bins, time.Time{}).Bands()
	assert.Equal(t, Bands{Low: 1, Mid: 1, High: 1}, b)
}

func TestShortSnapshotWrapsBandRanges(t *testing.T) {
	// 4 bins: the high band [10,15) reads bins 2,3,0,1,2
	s := NewSnapshot([]uint8{0, 51, 102, 153}, time.Time{})
	want := float64(102+153+0+51+102) / 5 / 255
	assert.InDelta(t, want, s.Bands().High, 1e-12)
	assert.Equal(t, uint8(153), s.At(-1))
	assert.Equal(t, uint8(51), s.At(9))
}

func TestEmptySnapshotReadsZero(t *testing.T) {
	s := NewSnapshot(nil, time.Time{})
	assert.Equal(t, 0, s.Len())
	assert.Equal(t, uint8(0), s.At(3))
	assert.Equal(t, Bands{}, s.Bands())
	assert.Equal(t, 0.0, s.Mean(3, 1))
}

func TestSnapshotIsImmutable(t *testing.T) {
	src := []uint8{1, 2, 3}
	s := NewSnapshot(src, time.Unix(5, 0))
	src[0] = 99
	out := s.Bins()
	out[1] = 99

	assert.Equal(t, []uint8{1, 2, 3}, s.Bins())
	assert.Equal(t, time.Unix(5, 0), s.CapturedAt())
	assert.InDelta(t, 3.0/255, s.Level(2), 1e-12)
}

func TestPermute(t *testing.T) {
	b := Bands{Low: 0.1, Mid: 0.2, High: 0.3}
	r, g, bl := b.Permute(0)
	assert.Equal(t, [3]float64{0.1, 0.2, 0.3}, [3]float64{r, g, bl})
	r, g, bl = b.Permute(1)
	assert.Equal(t, [3]float64{0.2, 0.3, 0.1}, [3]float64{r, g, bl})
	r, g, bl = b.Permute(2)
	assert.Equal(t, [3]float64{0.3, 0.1, 0.2}, [3]float64{r, g, bl})
	r, g, bl = b.Permute(-1)
	assert.Equal(t, [3]float64{0.3, 0.1, 0.2}, [3]float64{r, g, bl})
}

func TestSpectrumSilenceIsZero(t *testing.T) {
	s := NewSpectrum(DefaultSpectrumConfig())
	out := s.Process(make([]float32, 256))
	require.Len(t, out, 128)
	for i, v := range out {
		require.Equal(t, uint8(0), v, "bin %d", i)
	}
}

func TestSpectrumSinePeaksAtItsBin(t *testing.T) {
	cfg := DefaultSpectrumConfig()
	cfg.Smoothing = 0
	s := NewSpectrum(cfg)

	const bin = 20
	samples := make([]float32, cfg.FFTSize)
	for i := range samples {
		samples[i] = float32(0.01 * math.Sin(2*math.Pi*bin*float64(i)/float64(cfg.FFTSize)))
	}
	out := s.Process(samples)

	peak := 0
	for i, v := range out {
		if v > out[peak] {
			peak = i
		}
	}
	assert.Equal(t, bin, peak)
	assert.Greater(t, out[bin], uint8(120))
	assert.Less(t, out[bin+10], out[bin])
}

func TestSpectrumSmoothingCarriesEnergy(t *testing.T) {
	s := NewSpectrum(DefaultSpectrumConfig())
	tone := make([]float32, 256)
	for i := range tone {
		tone[i] = float32(0.01 * math.Sin(2*math.Pi*8*float64(i)/256))
	}
	loud := s.Process(tone)[8]
	require.Greater(t, loud, uint8(0))

	after := s.Process(make([]float32, 256))[8]
	assert.Greater(t, after, uint8(0), "smoothing keeps part of the previous frame")
	assert.Less(t, after, loud)

	s.Reset()
	assert.Equal(t, uint8(0), s.Process(make([]float32, 256))[8])
}

func TestSpectrumPadsShortInput(t *testing.T) {
	s := NewSpectrum(SpectrumConfig{FFTSize: 64})
	assert.Equal(t, 64, s.Size())
	assert.Equal(t, 32, s.Bins())
	require.NotPanics(t, func() { s.Process([]float32{0.5, -0.5, 0.25}) })
	require.NotPanics(t, func() { s.Process(make([]float32, 500)) })
}

func TestSpectrumConfigNormalization(t *testing.T) {
	s := NewSpectrum(SpectrumConfig{FFTSize: 100, Smoothing: 1.5, MinDecibels: -10, MaxDecibels: -20})
	assert.Equal(t, 128, s.Size())
	assert.Equal(t, 0.8, s.cfg.Smoothing)
	assert.Equal(t, -100.0, s.cfg.MinDecibels)
	assert.Equal(t, -30.0, s.cfg.MaxDecibels)
}
