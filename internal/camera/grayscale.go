package camera

import (
	"image"
	"math"
)

// grayImage is a plain row-major grayscale buffer, decoupled from
// image.Image's color-model indirection so the detectors below can
// index pixels directly.
type grayImage struct {
	w, h int
	pix  []float64
}

func toGray(img image.Image) grayImage {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	g := grayImage{w: w, h: h, pix: make([]float64, w*h)}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, gr, bl, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			// Rec. 601 luma, same weights typical grayscale conversions use.
			lum := 0.299*float64(r>>8) + 0.587*float64(gr>>8) + 0.114*float64(bl>>8)
			g.pix[y*w+x] = lum
		}
	}
	return g
}

func (g grayImage) at(x, y int) float64 {
	if x < 0 || x >= g.w || y < 0 || y >= g.h {
		return 0
	}
	return g.pix[y*g.w+x]
}

func (g grayImage) sub(y0, y1 int) grayImage {
	if y0 < 0 {
		y0 = 0
	}
	if y1 > g.h {
		y1 = g.h
	}
	h := y1 - y0
	if h <= 0 {
		return grayImage{w: g.w, h: 0}
	}
	out := grayImage{w: g.w, h: h, pix: make([]float64, g.w*h)}
	copy(out.pix, g.pix[y0*g.w:y1*g.w])
	return out
}

// sobelMagnitude returns the per-pixel gradient magnitude using the
// standard 3x3 Sobel kernels.
func sobelMagnitude(g grayImage) []float64 {
	out := make([]float64, g.w*g.h)
	for y := 0; y < g.h; y++ {
		for x := 0; x < g.w; x++ {
			gx := -g.at(x-1, y-1) - 2*g.at(x-1, y) - g.at(x-1, y+1) +
				g.at(x+1, y-1) + 2*g.at(x+1, y) + g.at(x+1, y+1)
			gy := -g.at(x-1, y-1) - 2*g.at(x, y-1) - g.at(x+1, y-1) +
				g.at(x-1, y+1) + 2*g.at(x, y+1) + g.at(x+1, y+1)
			out[y*g.w+x] = math.Hypot(gx, gy)
		}
	}
	return out
}

// binaryComponent is one connected region of an edge/threshold mask.
type binaryComponent struct {
	area                   int
	minX, minY, maxX, maxY int
	sumX, sumY             float64
}

func (c binaryComponent) centroid() (float64, float64) {
	if c.area == 0 {
		return 0, 0
	}
	return c.sumX / float64(c.area), c.sumY / float64(c.area)
}

func (c binaryComponent) width() int  { return c.maxX - c.minX + 1 }
func (c binaryComponent) height() int { return c.maxY - c.minY + 1 }

// connectedComponents labels 4-connected regions of mask (row-major,
// w x h, true = foreground) and returns each region's stats.
func connectedComponents(mask []bool, w, h int) []binaryComponent {
	visited := make([]bool, len(mask))
	var components []binaryComponent

	var stack []int
	for start := 0; start < len(mask); start++ {
		if !mask[start] || visited[start] {
			continue
		}

		comp := binaryComponent{minX: w, minY: h, maxX: -1, maxY: -1}
		stack = stack[:0]
		stack = append(stack, start)
		visited[start] = true

		for len(stack) > 0 {
			idx := stack[len(stack)-1]
			stack = stack[:len(stack)-1]

			x, y := idx%w, idx/w
			comp.area++
			comp.sumX += float64(x)
			comp.sumY += float64(y)
			if x < comp.minX {
				comp.minX = x
			}
			if x > comp.maxX {
				comp.maxX = x
			}
			if y < comp.minY {
				comp.minY = y
			}
			if y > comp.maxY {
				comp.maxY = y
			}

			neighbors := [4][2]int{{x - 1, y}, {x + 1, y}, {x, y - 1}, {x, y + 1}}
			for _, n := range neighbors {
				nx, ny := n[0], n[1]
				if nx < 0 || nx >= w || ny < 0 || ny >= h {
					continue
				}
				nidx := ny*w + nx
				if mask[nidx] && !visited[nidx] {
					visited[nidx] = true
					stack = append(stack, nidx)
				}
			}
		}

		components = append(components, comp)
	}

	return components
}

func meanStd(vals []float64) (mean, std float64) {
	if len(vals) == 0 {
		return 0, 0
	}
	sum := 0.0
	for _, v := range vals {
		sum += v
	}
	mean = sum / float64(len(vals))

	var variance float64
	for _, v := range vals {
		d := v - mean
		variance += d * d
	}
	variance /= float64(len(vals))
	std = math.Sqrt(variance)
	return mean, std
}
