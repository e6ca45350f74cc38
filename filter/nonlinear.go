package filter

import (
	"fmt"

	"github.com/gogpu/gpufilter/gpucore"
)

// MaxRankRadius bounds rank filter windows: the shipped kernels sort at
// most 81 values per channel.
const MaxRankRadius = 4

// NewMedian builds a median filter over a (2r+1)x(2r+1) window.
func NewMedian(dev gpucore.GPUAdapter, t Target, prog Program, entryPoint string, radius int, opts ...Option) (*Dispatcher, error) {
	return newRank(dev, t, prog, entryPoint, "median", radius, opts)
}

// NewMinimum builds a minimum filter over a (2r+1)x(2r+1) window.
func NewMinimum(dev gpucore.GPUAdapter, t Target, prog Program, entryPoint string, radius int, opts ...Option) (*Dispatcher, error) {
	return newRank(dev, t, prog, entryPoint, "minimum", radius, opts)
}

// NewMaximum builds a maximum filter over a (2r+1)x(2r+1) window.
func NewMaximum(dev gpucore.GPUAdapter, t Target, prog Program, entryPoint string, radius int, opts ...Option) (*Dispatcher, error) {
	return newRank(dev, t, prog, entryPoint, "maximum", radius, opts)
}

func newRank(dev gpucore.GPUAdapter, t Target, prog Program, entryPoint, name string, radius int, opts []Option) (*Dispatcher, error) {
	if radius < 0 || radius > MaxRankRadius {
		return nil, fmt.Errorf("%w: %s radius %d not in [0, %d]", ErrInvalidConfig, name, radius, MaxRankRadius)
	}
	cfg, err := newConfig(entryPoint, opts)
	if err != nil {
		return nil, err
	}
	return build(dev, t, prog, entryPoint, family{
		caps: Capabilities{
			Context:   ContextBound,
			Linearity: Nonlinear,
			Masks:     NoMask,
			Family:    name,
		},
		window: 2*radius + 1,
	}, cfg)
}
