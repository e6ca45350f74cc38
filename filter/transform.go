package filter

import (
	"math"

	"github.com/gogpu/gpufilter/kernels"
)

// Matrix is a 4x5 color matrix in row-major order. Row r computes output
// channel r from (r, g, b, a, 1) with channels in 0..255, so the fifth
// column is an offset in the same range.
type Matrix [20]float32

// Rec. 709 luma weights.
const (
	lumR = 0.2126
	lumG = 0.7152
	lumB = 0.0722
)

// Identity leaves pixels unchanged.
func Identity() Matrix {
	return Matrix{
		1, 0, 0, 0, 0,
		0, 1, 0, 0, 0,
		0, 0, 1, 0, 0,
		0, 0, 0, 1, 0,
	}
}

// Brightness scales color channels. 0 is black, 1 unchanged.
func Brightness(factor float32) Matrix {
	return Matrix{
		factor, 0, 0, 0, 0,
		0, factor, 0, 0, 0,
		0, 0, factor, 0, 0,
		0, 0, 0, 1, 0,
	}
}

// Contrast scales color channels around mid-gray. 0 is flat gray, 1
// unchanged.
func Contrast(factor float32) Matrix {
	offset := 128 * (1 - factor)
	return Matrix{
		factor, 0, 0, 0, offset,
		0, factor, 0, 0, offset,
		0, 0, factor, 0, offset,
		0, 0, 0, 1, 0,
	}
}

// Saturation blends between luma (0) and the original color (1).
func Saturation(factor float32) Matrix {
	inv := 1 - factor
	return Matrix{
		lumR*inv + factor, lumG * inv, lumB * inv, 0, 0,
		lumR * inv, lumG*inv + factor, lumB * inv, 0, 0,
		lumR * inv, lumG * inv, lumB*inv + factor, 0, 0,
		0, 0, 0, 1, 0,
	}
}

// Grayscale replaces color with Rec. 709 luma.
func Grayscale() Matrix { return Saturation(0) }

// Sepia applies the usual sepia tone.
func Sepia() Matrix {
	return Matrix{
		0.393, 0.769, 0.189, 0, 0,
		0.349, 0.686, 0.168, 0, 0,
		0.272, 0.534, 0.131, 0, 0,
		0, 0, 0, 1, 0,
	}
}

// Invert inverts color channels and keeps alpha.
func Invert() Matrix {
	return Matrix{
		-1, 0, 0, 0, 255,
		0, -1, 0, 0, 255,
		0, 0, -1, 0, 255,
		0, 0, 0, 1, 0,
	}
}

// HueRotate rotates hue by degrees.
func HueRotate(degrees float64) Matrix {
	rad := degrees * math.Pi / 180
	c, s := float32(math.Cos(rad)), float32(math.Sin(rad))
	const r, g, b = 0.213, 0.715, 0.072
	return Matrix{
		r + c*(1-r) - s*r, g - c*g - s*g, b - c*b + s*(1-b), 0, 0,
		r - c*r + s*0.143, g + c*(1-g) + s*0.140, b - c*b - s*0.283, 0, 0,
		r - c*r - s*(1-r), g - c*g + s*g, b + c*(1-b) + s*b, 0, 0,
		0, 0, 0, 1, 0,
	}
}

// Opacity scales alpha.
func Opacity(factor float32) Matrix {
	m := Identity()
	m[18] = factor
	return m
}

// Then returns the matrix that applies m and then next.
func (m Matrix) Then(next Matrix) Matrix {
	var out Matrix
	for row := 0; row < 4; row++ {
		for col := 0; col < 5; col++ {
			var sum float32
			for k := 0; k < 4; k++ {
				sum += next[row*5+k] * m[k*5+col]
			}
			if col == 4 {
				sum += next[row*5+4]
			}
			out[row*5+col] = sum
		}
	}
	return out
}

// Apply transforms one RGBA pixel the way the kernel does, clamping to
// 0..255.
func (m Matrix) Apply(rgba [4]float32) [4]float32 {
	var out [4]float32
	for r := 0; r < 4; r++ {
		row := m[r*5 : r*5+5]
		v := row[0]*rgba[0] + row[1]*rgba[1] + row[2]*rgba[2] + row[3]*rgba[3] + row[4]
		out[r] = min(max(v, 0), 255)
	}
	return out
}

// NewColorMatrix builds a context-free transformation applying m to every
// pixel. Gray images are expanded to (v, v, v, 255) and only the first
// output row is written; three-channel images read alpha as 255.
func NewColorMatrix(t Target, prog Program, entryPoint string, m Matrix, opts ...Option) (*Dispatcher, error) {
	cfg, err := newConfig(entryPoint, opts)
	if err != nil {
		return nil, err
	}
	var extra [kernels.ExtraFloats]float32
	copy(extra[:], m[:])
	return build(nil, t, prog, entryPoint, family{
		caps: Capabilities{
			Context:   ContextFree,
			Linearity: Linear,
			Masks:     NoMask,
			Family:    "color_matrix",
		},
		extra: extra,
	}, cfg)
}

// NewHSV returns the RGB to HSV conversion, which is not implemented.
func NewHSV() *Stub { return &Stub{Family: "hsv"} }

// NewYCbCr returns the RGB to YCbCr conversion, which is not implemented.
func NewYCbCr() *Stub { return &Stub{Family: "ycbcr"} }
