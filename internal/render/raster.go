package render

import (
	"math"
	"runtime"
	"sync"

	"github.com/guidoenr/spectrascape/internal/scene"
	"github.com/lucasb-eyer/go-colorful"
)

const (
	backgroundDim   = 0.35
	backgroundGrain = 0.06
)

// canvas is a depth-tested buffer of foreground hits. Cells without a hit
// show the background.
type canvas struct {
	width, height int
	depth         []float64
	color         []colorful.Color
}

func (c *canvas) reset(width, height int) {
	n := width * height
	if cap(c.depth) < n {
		c.depth = make([]float64, n)
		c.color = make([]colorful.Color, n)
	}
	c.width, c.height = width, height
	c.depth = c.depth[:n]
	c.color = c.color[:n]
	for i := range c.depth {
		c.depth[i] = math.Inf(1)
	}
}

// plot writes col into the cell under NDC (px, py) and a square of the
// given radius around it, keeping the nearest depth.
func (c *canvas) plot(px, py, depth float64, col colorful.Color, radius int) {
	cx := int(math.Floor((px + 1) * 0.5 * float64(c.width)))
	cy := int(math.Floor((1 - py) * 0.5 * float64(c.height)))
	for dy := -radius; dy <= radius; dy++ {
		y := cy + dy
		if y < 0 || y >= c.height {
			continue
		}
		for dx := -radius; dx <= radius; dx++ {
			x := cx + dx
			if x < 0 || x >= c.width {
				continue
			}
			i := y*c.width + x
			if depth < c.depth[i] {
				c.depth[i] = depth
				c.color[i] = col
			}
		}
	}
}

func (c *canvas) hit(x, y int) (colorful.Color, bool) {
	i := y*c.width + x
	if math.IsInf(c.depth[i], 1) {
		return colorful.Color{}, false
	}
	return c.color[i], true
}

// scatter projects the surface vertices and particles of v onto c.
func (c *canvas) scatter(v *scene.View) {
	s := v.Surface()
	n := float64(s.Size() - 1)
	for i := 0; i < s.Len(); i++ {
		x, y, z := s.Vertex(i)
		px, py, depth, ok := v.Project(x, y, z)
		if !ok {
			continue
		}
		u := float64(i%s.Size()) / n
		c.plot(px, py, depth, s.Shade(u, z), 0)
	}

	p := v.Particles()
	radius := int(p.PointSize() - 0.5)
	for k := 0; k < p.Len(); k++ {
		pt := p.At(k)
		px, py, depth, ok := v.Project(pt.X, pt.Y, pt.Z)
		if !ok {
			continue
		}
		c.plot(px, py, depth, pt.Color, radius)
	}
}

// shade resolves cell (x, y) to a colour and a glyph intensity in [0,1].
func (c *canvas) shade(v *scene.View, x, y int, t float64) (colorful.Color, float64) {
	if col, ok := c.hit(x, y); ok {
		col = col.Clamped()
		return col, luminance(col)
	}
	u := (float64(x) + 0.5) / float64(c.width)
	w := 1 - (float64(y)+0.5)/float64(c.height)
	col := v.Background().Sample(u, w)
	level := luminance(col)*backgroundDim + grain(u, w, t)*backgroundGrain
	return col, clamp01(level)
}

func luminance(c colorful.Color) float64 {
	return clamp01(0.2126*c.R + 0.7152*c.G + 0.0722*c.B)
}

// forRows runs fn for every row across a pool sized to GOMAXPROCS.
func forRows(height int, fn func(y int)) {
	numWorkers := runtime.GOMAXPROCS(0)
	if numWorkers > height {
		numWorkers = height
	}
	if numWorkers < 1 {
		numWorkers = 1
	}

	var wg sync.WaitGroup
	rowJobs := make(chan int, numWorkers)
	for w := 0; w < numWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for y := range rowJobs {
				fn(y)
			}
		}()
	}
	for y := 0; y < height; y++ {
		rowJobs <- y
	}
	close(rowJobs)
	wg.Wait()
}
