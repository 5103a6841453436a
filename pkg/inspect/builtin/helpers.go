package builtin

import (
	"math"

	"github.com/veracity-labs/veracity/pkg/models"
)

// ctxCheckStride is how often (in loop iterations) frame loops poll the
// context so long videos stay cancellable.
const ctxCheckStride = 32

// luma converts an RGB pixel to Rec.601 luma in [0, 255].
func luma(r, g, b byte) float64 {
	return 0.299*float64(r) + 0.587*float64(g) + 0.114*float64(b)
}

func lumaAt(f *models.Frame, x, y int) float64 {
	return luma(f.RGBAt(x, y))
}

// saturation is the normalized channel spread of a pixel in [0, 1].
func saturation(r, g, b byte) float64 {
	return float64(max(r, g, b)-min(r, g, b)) / 255
}

// meanLuma averages frame luma on a stride grid so large frames stay cheap.
func meanLuma(f *models.Frame) float64 {
	sx := max(1, f.Width/64)
	sy := max(1, f.Height/64)
	var sum float64
	var n int
	for y := 0; y < f.Height; y += sy {
		for x := 0; x < f.Width; x += sx {
			sum += lumaAt(f, x, y)
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// lumaGrid splits the frame into gw×gh cells and returns each cell's mean
// luma, row-major. Pixels are sampled on a stride, not exhaustively.
func lumaGrid(f *models.Frame, gw, gh int) []float64 {
	cells := make([]float64, gw*gh)
	counts := make([]int, gw*gh)
	sx := max(1, f.Width/(gw*8))
	sy := max(1, f.Height/(gh*8))
	for y := 0; y < f.Height; y += sy {
		cy := y * gh / f.Height
		for x := 0; x < f.Width; x += sx {
			i := cy*gw + x*gw/f.Width
			r, g, b := f.RGBAt(x, y)
			cells[i] += luma(r, g, b)
			counts[i]++
		}
	}
	for i := range cells {
		if counts[i] > 0 {
			cells[i] /= float64(counts[i])
		}
	}
	return cells
}

// gridStd returns the per-cell luma standard deviation over a gw×gh grid,
// a cheap local-contrast measure.
func gridStd(f *models.Frame, gw, gh int) []float64 {
	sums := make([]float64, gw*gh)
	sqs := make([]float64, gw*gh)
	counts := make([]int, gw*gh)
	sx := max(1, f.Width/(gw*8))
	sy := max(1, f.Height/(gh*8))
	for y := 0; y < f.Height; y += sy {
		cy := y * gh / f.Height
		for x := 0; x < f.Width; x += sx {
			i := cy*gw + x*gw/f.Width
			l := lumaAt(f, x, y)
			sums[i] += l
			sqs[i] += l * l
			counts[i]++
		}
	}
	out := make([]float64, gw*gh)
	for i := range out {
		if counts[i] == 0 {
			continue
		}
		n := float64(counts[i])
		mean := sums[i] / n
		v := sqs[i]/n - mean*mean
		if v > 0 {
			out[i] = math.Sqrt(v)
		}
	}
	return out
}

// regionMeanLuma averages luma over the fractional rectangle
// [rx0,rx1)×[ry0,ry1) of the frame.
func regionMeanLuma(f *models.Frame, rx0, ry0, rx1, ry1 float64) float64 {
	x0 := int(rx0 * float64(f.Width))
	x1 := min(int(rx1*float64(f.Width)), f.Width)
	y0 := int(ry0 * float64(f.Height))
	y1 := min(int(ry1*float64(f.Height)), f.Height)
	if x1 <= x0 || y1 <= y0 {
		return 0
	}
	sx := max(1, (x1-x0)/24)
	sy := max(1, (y1-y0)/24)
	var sum float64
	var n int
	for y := y0; y < y1; y += sy {
		for x := x0; x < x1; x += sx {
			sum += lumaAt(f, x, y)
			n++
		}
	}
	return sum / float64(n)
}

func meanAbsDiff(a, b []float64) float64 {
	n := min(len(a), len(b))
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += math.Abs(a[i] - b[i])
	}
	return sum / float64(n)
}

// meanStd returns the mean and population standard deviation of xs.
func meanStd(xs []float64) (mean, std float64) {
	if len(xs) == 0 {
		return 0, 0
	}
	for _, x := range xs {
		mean += x
	}
	mean /= float64(len(xs))
	var sq float64
	for _, x := range xs {
		d := x - mean
		sq += d * d
	}
	return mean, math.Sqrt(sq / float64(len(xs)))
}

// rmsEnvelope reduces PCM samples to an RMS energy series with the given
// hop length in seconds.
func rmsEnvelope(samples []float64, sampleRate int, hopSec float64) []float64 {
	hop := max(1, int(float64(sampleRate)*hopSec))
	env := make([]float64, 0, len(samples)/hop+1)
	for i := 0; i < len(samples); i += hop {
		end := min(i+hop, len(samples))
		var sum float64
		for _, s := range samples[i:end] {
			sum += s * s
		}
		env = append(env, math.Sqrt(sum/float64(end-i)))
	}
	return env
}

// pearson is the correlation coefficient of two equal-length series, 0 when
// either side is degenerate.
func pearson(a, b []float64) float64 {
	n := min(len(a), len(b))
	if n < 2 {
		return 0
	}
	ma, sa := meanStd(a[:n])
	mb, sb := meanStd(b[:n])
	if sa < 1e-12 || sb < 1e-12 {
		return 0
	}
	var cov float64
	for i := 0; i < n; i++ {
		cov += (a[i] - ma) * (b[i] - mb)
	}
	return cov / float64(n) / (sa * sb)
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
