package render

import "math"

// grain is animated value noise in [-1,1] used to texture the background
// glyph field so flat gradients still read as motion in a terminal.
func grain(x, y, t float64) float64 {
	return fractalNoise(x*6+t*0.15, y*6-t*0.12)
}

func fractalNoise(x, y float64) float64 {
	amp := 0.5
	freq := 1.0
	total := 0.0
	sumAmp := 0.0

	for i := 0; i < 3; i++ {
		total += valueNoise2(x*freq, y*freq) * amp
		sumAmp += amp
		amp *= 0.5
		freq *= 2.0
	}
	return (total/sumAmp)*2.0 - 1.0
}

func valueNoise2(x, y float64) float64 {
	x0 := math.Floor(x)
	y0 := math.Floor(y)

	sx := smoothstep(x - x0)
	sy := smoothstep(y - y0)

	top := lerp(hash2(x0, y0), hash2(x0+1, y0), sx)
	bottom := lerp(hash2(x0, y0+1), hash2(x0+1, y0+1), sx)
	return lerp(top, bottom, sy)
}

func hash2(x, y float64) float64 {
	v := math.Sin(x*127.1+y*311.7) * 43758.5453123
	return v - math.Floor(v)
}

func smoothstep(v float64) float64 {
	return v * v * (3 - 2*v)
}
