package soft

import (
	"fmt"
	"math"
	"sort"

	"github.com/gogpu/gpufilter/kernels"
)

// layout gives the binding index of each argument of a kernel family.
// Missing arguments are -1.
type layout struct {
	src, maskX, maskY, scratch, offsets, params, dst int
}

var (
	maskedLayout   = layout{src: 0, maskX: 1, maskY: -1, scratch: 2, offsets: 3, params: 4, dst: 5}
	gradientLayout = layout{src: 0, maskX: 1, maskY: 2, scratch: 3, offsets: 4, params: 5, dst: 6}
	rankLayout     = layout{src: 0, maskX: -1, maskY: -1, scratch: 1, offsets: 2, params: 3, dst: 4}
	pointLayout    = layout{src: 0, maskX: -1, maskY: -1, scratch: -1, offsets: -1, params: 1, dst: 2}
)

// referenceKernels returns host versions of the shipped WGSL kernels.
func referenceKernels() map[string]Kernel {
	return map[string]Kernel{
		kernels.Lowpass:     Lowpass,
		kernels.Highpass:    Highpass,
		kernels.Median:      Rank(0.5),
		kernels.Minimum:     Rank(0),
		kernels.Maximum:     Rank(1),
		kernels.Erode:       Morphology(false),
		kernels.Dilate:      Morphology(true),
		kernels.ColorMatrix: ColorMatrix,
	}
}

// args is a decoded kernel invocation.
type args struct {
	p            kernels.Params
	src, dst     words
	maskX, maskY words
	offsets      words
}

func (a *args) load(x, y int32) uint32 {
	w, h := int32(a.p.Width), int32(a.p.Height)
	x = min(max(x, 0), w-1)
	y = min(max(y, 0), h-1)
	return a.src.u32(int(y)*int(a.p.Width) + int(x))
}

func (a *args) offset(k int) (int32, int32) {
	return a.offsets.i32(2 * k), a.offsets.i32(2*k + 1)
}

func channel(p uint32, c uint32) float32 {
	return float32((p >> (c * 8)) & 0xff)
}

func pack(v float32, c uint32) uint32 {
	v = min(max(v, 0), 255)
	return uint32(v+0.5) << (c * 8)
}

// decode binds the family layout and checks the geometry the host put in
// the parameter block against the dispatch.
func decode(d *Dispatch, l layout) (*args, error) {
	p, err := d.Params(uint32(l.params))
	if err != nil {
		return nil, err
	}
	a := &args{p: p}
	bind := func(index int) (words, error) {
		if index < 0 {
			return nil, nil
		}
		b, err := d.Binding(uint32(index))
		return words(b), err
	}
	if a.src, err = bind(l.src); err != nil {
		return nil, err
	}
	if a.dst, err = bind(l.dst); err != nil {
		return nil, err
	}
	if a.maskX, err = bind(l.maskX); err != nil {
		return nil, err
	}
	if a.maskY, err = bind(l.maskY); err != nil {
		return nil, err
	}
	if a.offsets, err = bind(l.offsets); err != nil {
		return nil, err
	}
	scratch, err := bind(l.scratch)
	if err != nil {
		return nil, err
	}

	pixels := int(p.Width) * int(p.Height)
	switch {
	case p.Width == 0 || p.Height == 0:
		return nil, d.contract("empty image %dx%d", p.Width, p.Height)
	case p.Channels == 0 || p.Channels > 4:
		return nil, d.contract("channels %d", p.Channels)
	case a.src.len() < pixels || a.dst.len() < pixels:
		return nil, d.contract("image %dx%d exceeds bound buffers", p.Width, p.Height)
	}
	global := d.GlobalSize()
	if global[0] < p.Width || global[1] < p.Height {
		return nil, d.contract("global size %dx%d does not cover %dx%d", global[0], global[1], p.Width, p.Height)
	}
	if l.offsets < 0 {
		return a, nil
	}

	if p.TileWidth != d.LocalSize[0] || p.TileHeight != d.LocalSize[1] {
		return nil, d.contract("tile %dx%d, workgroup %dx%d", p.TileWidth, p.TileHeight, d.LocalSize[0], d.LocalSize[1])
	}
	if p.Pitch != p.TileWidth+2*p.Radius {
		return nil, d.contract("pitch %d, want %d", p.Pitch, p.TileWidth+2*p.Radius)
	}
	taps := int(p.Taps)
	if a.offsets.len() < 2*taps {
		return nil, d.contract("%d taps, %d offsets bound", taps, a.offsets.len()/2)
	}
	for _, m := range []words{a.maskX, a.maskY} {
		if m != nil && m.len() < taps {
			return nil, d.contract("%d taps, mask has %d coefficients", taps, m.len())
		}
	}
	slab := (p.Pitch*(p.TileHeight+2*p.Radius)*p.Channels + 3) &^ 3
	if need := int(slab) * int(d.Groups[0]) * int(d.Groups[1]); len(scratch) < need {
		return nil, d.contract("scratch %d bytes, need %d", len(scratch), need)
	}
	return a, nil
}

func (d *Dispatch) contract(format string, args ...any) error {
	return fmt.Errorf("%w: %s: "+format, append([]any{ErrValidation, d.EntryPoint}, args...)...)
}

// inside runs fn for work items inside the image.
func inside(d *Dispatch, a *args, fn func(x, y int32) uint32) error {
	return d.ForEach(func(x, y uint32) error {
		if x >= a.p.Width || y >= a.p.Height {
			return nil
		}
		a.dst.put(int(y)*int(a.p.Width)+int(x), fn(int32(x), int32(y)))
		return nil
	})
}

func divisorBias(p kernels.Params) (float32, float32) {
	div := p.Extra[0]
	if div == 0 {
		div = 1
	}
	return div, p.Extra[1]
}

// Lowpass is the host version of the "lowpass" kernel: a weighted sum
// over the offsets window, divided and biased per the parameter block.
func Lowpass(d *Dispatch) error {
	a, err := decode(d, maskedLayout)
	if err != nil {
		return err
	}
	div, bias := divisorBias(a.p)
	return inside(d, a, func(x, y int32) uint32 {
		var out uint32
		for c := uint32(0); c < a.p.Channels; c++ {
			var acc float32
			for k := 0; k < int(a.p.Taps); k++ {
				dx, dy := a.offset(k)
				acc += float32(a.maskX.i32(k)) * channel(a.load(x+dx, y+dy), c)
			}
			out |= pack(acc/div+bias, c)
		}
		return out
	})
}

// Highpass is the host version of the "highpass" kernel: the magnitude of
// the responses to the two masks.
func Highpass(d *Dispatch) error {
	a, err := decode(d, gradientLayout)
	if err != nil {
		return err
	}
	div, bias := divisorBias(a.p)
	return inside(d, a, func(x, y int32) uint32 {
		var out uint32
		for c := uint32(0); c < a.p.Channels; c++ {
			var gx, gy float32
			for k := 0; k < int(a.p.Taps); k++ {
				dx, dy := a.offset(k)
				v := channel(a.load(x+dx, y+dy), c)
				gx += float32(a.maskX.i32(k)) * v
				gy += float32(a.maskY.i32(k)) * v
			}
			mag := float32(math.Sqrt(float64(gx*gx + gy*gy)))
			out |= pack(mag/div+bias, c)
		}
		return out
	})
}

// Rank returns the host version of an order-statistic kernel. selector
// picks the rank in [0, 1]: 0 is the minimum, 0.5 the median, 1 the
// maximum.
func Rank(selector float32) Kernel {
	return func(d *Dispatch) error {
		a, err := decode(d, rankLayout)
		if err != nil {
			return err
		}
		taps := int(a.p.Taps)
		if taps == 0 {
			return d.contract("rank filter with no taps")
		}
		pick := int(selector*float32(taps-1) + 0.5)
		values := make([]uint32, taps)
		return inside(d, a, func(x, y int32) uint32 {
			var out uint32
			for c := uint32(0); c < a.p.Channels; c++ {
				for k := range values {
					dx, dy := a.offset(k)
					values[k] = (a.load(x+dx, y+dy) >> (c * 8)) & 0xff
				}
				sort.Slice(values, func(i, j int) bool { return values[i] < values[j] })
				out |= values[pick] << (c * 8)
			}
			return out
		})
	}
}

// Morphology returns the host version of the erode (dilate false) or
// dilate kernel. Taps with a zero mask coefficient are skipped.
func Morphology(dilate bool) Kernel {
	return func(d *Dispatch) error {
		a, err := decode(d, maskedLayout)
		if err != nil {
			return err
		}
		return inside(d, a, func(x, y int32) uint32 {
			var out uint32
			for c := uint32(0); c < a.p.Channels; c++ {
				acc := uint32(255)
				if dilate {
					acc = 0
				}
				for k := 0; k < int(a.p.Taps); k++ {
					if a.maskX.i32(k) == 0 {
						continue
					}
					dx, dy := a.offset(k)
					v := (a.load(x+dx, y+dy) >> (c * 8)) & 0xff
					if dilate {
						acc = max(acc, v)
					} else {
						acc = min(acc, v)
					}
				}
				out |= acc << (c * 8)
			}
			return out
		})
	}
}

// ColorMatrix is the host version of the "color_matrix" kernel: a 4x5
// matrix applied to (r, g, b, a, 1) in the 0..255 range.
func ColorMatrix(d *Dispatch) error {
	a, err := decode(d, pointLayout)
	if err != nil {
		return err
	}
	m := a.p.Extra
	return inside(d, a, func(x, y int32) uint32 {
		p := a.src.u32(int(y)*int(a.p.Width) + int(x))
		rgba := [4]float32{channel(p, 0), channel(p, 1), channel(p, 2), channel(p, 3)}
		switch a.p.Channels {
		case 1:
			rgba = [4]float32{rgba[0], rgba[0], rgba[0], 255}
		case 3:
			rgba[3] = 255
		}
		var out uint32
		for r := uint32(0); r < a.p.Channels; r++ {
			row := m[r*5 : r*5+5]
			v := row[0]*rgba[0] + row[1]*rgba[1] + row[2]*rgba[2] + row[3]*rgba[3] + row[4]
			out |= pack(v, r)
		}
		return out
	})
}
