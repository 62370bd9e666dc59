package analyzer

import "time"

// Snapshot is one immutable capture of per-bin magnitudes in [0,255].
type Snapshot struct {
	bins []uint8
	at   time.Time
}

// NewSnapshot copies bins into a new Snapshot captured at the given time.
func NewSnapshot(bins []uint8, at time.Time) *Snapshot {
	cp := make([]uint8, len(bins))
	copy(cp, bins)
	return &Snapshot{bins: cp, at: at}
}

// Len returns the number of bins.
func (s *Snapshot) Len() int { return len(s.bins) }

// CapturedAt returns the capture time.
func (s *Snapshot) CapturedAt() time.Time { return s.at }

// At returns bin i, wrapping out of range indices modulo the length.
// An empty snapshot reads as zero.
func (s *Snapshot) At(i int) uint8 {
	n := len(s.bins)
	if n == 0 {
		return 0
	}
	i %= n
	if i < 0 {
		i += n
	}
	return s.bins[i]
}

// Level returns bin i normalized to [0,1].
func (s *Snapshot) Level(i int) float64 {
	return float64(s.At(i)) / 255
}

// Bins returns a copy of the magnitudes.
func (s *Snapshot) Bins() []uint8 {
	cp := make([]uint8, len(s.bins))
	copy(cp, s.bins)
	return cp
}

// Mean averages bins [lo, hi) normalized to [0,1]. Indices wrap like At.
func (s *Snapshot) Mean(lo, hi int) float64 {
	if len(s.bins) == 0 || hi <= lo {
		return 0
	}
	sum := 0
	for i := lo; i < hi; i++ {
		sum += int(s.At(i))
	}
	return float64(sum) / float64(hi-lo) / 255
}

// Band ranges over the default 128 bin spectrum.
const (
	lowStart  = 0
	midStart  = 5
	highStart = 10
	bandWidth = 5
)

// Bands holds the low/mid/high aggregates of a snapshot.
type Bands struct {
	Low  float64 `json:"low"`
	Mid  float64 `json:"mid"`
	High float64 `json:"high"`
}

// Bands computes the low, mid and high aggregates.
func (s *Snapshot) Bands() Bands {
	return Bands{
		Low:  s.Mean(lowStart, lowStart+bandWidth),
		Mid:  s.Mean(midStart, midStart+bandWidth),
		High: s.Mean(highStart, highStart+bandWidth),
	}
}

// Overall is the mean of the three bands.
func (b Bands) Overall() float64 {
	return (b.Low + b.Mid + b.High) / 3
}

// Permute returns the bands rotated k places: 0 gives (low, mid, high),
// 1 gives (mid, high, low) and 2 gives (high, low, mid).
func (b Bands) Permute(k int) (float64, float64, float64) {
	v := [3]float64{b.Low, b.Mid, b.High}
	k %= 3
	if k < 0 {
		k += 3
	}
	return v[k], v[(k+1)%3], v[(k+2)%3]
}
