package filter

import (
	"fmt"

	"github.com/gogpu/gpufilter/gpucore"
)

// NewLinear builds a context-bound linear filter that owns masks. The
// kernel computes a weighted sum per mask, divides by the divisor
// (WithDivisor, default 1) and adds the bias (WithBias).
func NewLinear(dev gpucore.GPUAdapter, t Target, prog Program, entryPoint string, masks MaskSet, opts ...Option) (*Dispatcher, error) {
	return newLinear(dev, t, prog, entryPoint, "linear", masks, 1, opts)
}

// NewLowpass builds a smoothing filter over one mask. A zero mask selects
// a 3x3 box. The divisor defaults to the mask sum.
func NewLowpass(dev gpucore.GPUAdapter, t Target, prog Program, entryPoint string, mask Mask, opts ...Option) (*Dispatcher, error) {
	if mask.IsZero() {
		mask = BoxMask(1)
	}
	div := float32(1)
	if s := mask.Sum(); s > 0 {
		div = float32(s)
	}
	return newLinear(dev, t, prog, entryPoint, "lowpass", Single(mask), div, opts)
}

// NewHighpass builds an edge filter over a mask pair: the kernel writes
// the magnitude of the two responses. Zero masks select the Sobel pair.
func NewHighpass(dev gpucore.GPUAdapter, t Target, prog Program, entryPoint string, x, y Mask, opts ...Option) (*Dispatcher, error) {
	switch {
	case x.IsZero() && y.IsZero():
		x, y = SobelX(), SobelY()
	case x.IsZero() || y.IsZero():
		return nil, fmt.Errorf("%w: highpass needs both masks or neither", ErrInvalidConfig)
	}
	return newLinear(dev, t, prog, entryPoint, "highpass", Dual(x, y), 1, opts)
}

func newLinear(dev gpucore.GPUAdapter, t Target, prog Program, entryPoint, name string, masks MaskSet, div float32, opts []Option) (*Dispatcher, error) {
	cfg, err := newConfig(entryPoint, opts)
	if err != nil {
		return nil, err
	}
	if cfg.hasDiv {
		div = cfg.divisor
	}
	f := family{
		caps: Capabilities{
			Context:   ContextBound,
			Linearity: Linear,
			Masks:     masks.Kind(),
			Family:    name,
		},
		masks: masks,
	}
	f.extra[0] = div
	f.extra[1] = cfg.bias
	return build(dev, t, prog, entryPoint, f, cfg)
}
