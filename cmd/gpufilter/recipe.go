package main

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/gogpu/gpufilter/filter"
	"github.com/gogpu/gpufilter/gpucore"
	"github.com/gogpu/gpufilter/kernels"
)

// step is one parsed --filter value: "name" or "name:arg".
type step struct {
	name   string
	arg    float64
	hasArg bool
}

func parseStep(s string) (step, error) {
	name, rawArg, found := strings.Cut(strings.TrimSpace(s), ":")
	st := step{name: strings.ToLower(name)}
	if _, ok := recipes[st.name]; !ok {
		return st, fmt.Errorf("unknown filter %q (see gpufilter list)", name)
	}
	if found {
		v, err := strconv.ParseFloat(rawArg, 64)
		if err != nil {
			return st, fmt.Errorf("filter %s: argument %q: %w", name, rawArg, err)
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return st, fmt.Errorf("filter %s: argument %q is not a finite number", name, rawArg)
		}
		st.arg, st.hasArg = v, true
	}
	return st, nil
}

// argOr returns the step argument or def when none was given.
func (s step) argOr(def float64) float64 {
	if s.hasArg {
		return s.arg
	}
	return def
}

// env is what a recipe builds against.
type env struct {
	dev    gpucore.GPUAdapter
	target filter.Target
	source func(entryPoint string) (filter.Program, error)
	opts   []filter.Option
}

type recipe struct {
	entry string
	help  string
	build func(e env, prog filter.Program, s step) (filter.Filter, error)
}

func matrix(m func(s step) filter.Matrix) func(env, filter.Program, step) (filter.Filter, error) {
	return func(e env, prog filter.Program, s step) (filter.Filter, error) {
		return filter.NewColorMatrix(e.target, prog, kernels.ColorMatrix, m(s), e.opts...)
	}
}

func stub(s *filter.Stub) func(env, filter.Program, step) (filter.Filter, error) {
	return func(env, filter.Program, step) (filter.Filter, error) { return s, nil }
}

var recipes = map[string]recipe{
	"box": {kernels.Lowpass, "box blur, arg radius (1)", func(e env, p filter.Program, s step) (filter.Filter, error) {
		return filter.NewLowpass(e.dev, e.target, p, kernels.Lowpass, filter.BoxMask(int(s.argOr(1))), e.opts...)
	}},
	"gaussian": {kernels.Lowpass, "gaussian blur, arg sigma (1)", func(e env, p filter.Program, s step) (filter.Filter, error) {
		return filter.NewLowpass(e.dev, e.target, p, kernels.Lowpass, filter.GaussianMask(s.argOr(1)), e.opts...)
	}},
	"sobel": {kernels.Highpass, "Sobel edge magnitude", func(e env, p filter.Program, s step) (filter.Filter, error) {
		return filter.NewHighpass(e.dev, e.target, p, kernels.Highpass, filter.SobelX(), filter.SobelY(), e.opts...)
	}},
	"prewitt": {kernels.Highpass, "Prewitt edge magnitude", func(e env, p filter.Program, s step) (filter.Filter, error) {
		return filter.NewHighpass(e.dev, e.target, p, kernels.Highpass, filter.PrewittX(), filter.PrewittY(), e.opts...)
	}},
	"laplacian": {kernels.Lowpass, "4-neighbour Laplacian, biased to mid-gray", func(e env, p filter.Program, s step) (filter.Filter, error) {
		opts := append([]filter.Option{filter.WithDivisor(1), filter.WithBias(128)}, e.opts...)
		return filter.NewLowpass(e.dev, e.target, p, kernels.Lowpass, filter.Laplacian(), opts...)
	}},
	"median": {kernels.Median, "median, arg radius (1)", func(e env, p filter.Program, s step) (filter.Filter, error) {
		return filter.NewMedian(e.dev, e.target, p, kernels.Median, int(s.argOr(1)), e.opts...)
	}},
	"min": {kernels.Minimum, "minimum, arg radius (1)", func(e env, p filter.Program, s step) (filter.Filter, error) {
		return filter.NewMinimum(e.dev, e.target, p, kernels.Minimum, int(s.argOr(1)), e.opts...)
	}},
	"max": {kernels.Maximum, "maximum, arg radius (1)", func(e env, p filter.Program, s step) (filter.Filter, error) {
		return filter.NewMaximum(e.dev, e.target, p, kernels.Maximum, int(s.argOr(1)), e.opts...)
	}},
	"erode": {kernels.Erode, "erosion by a square, arg radius (1)", func(e env, p filter.Program, s step) (filter.Filter, error) {
		return filter.NewErode(e.dev, e.target, p, kernels.Erode, filter.SquareMask(int(s.argOr(1))), e.opts...)
	}},
	"dilate": {kernels.Dilate, "dilation by a square, arg radius (1)", func(e env, p filter.Program, s step) (filter.Filter, error) {
		return filter.NewDilate(e.dev, e.target, p, kernels.Dilate, filter.SquareMask(int(s.argOr(1))), e.opts...)
	}},
	"grayscale":  {kernels.ColorMatrix, "Rec. 709 luma", matrix(func(step) filter.Matrix { return filter.Grayscale() })},
	"sepia":      {kernels.ColorMatrix, "sepia tone", matrix(func(step) filter.Matrix { return filter.Sepia() })},
	"invert":     {kernels.ColorMatrix, "invert colors", matrix(func(step) filter.Matrix { return filter.Invert() })},
	"brightness": {kernels.ColorMatrix, "scale colors, arg factor (1)", matrix(func(s step) filter.Matrix { return filter.Brightness(float32(s.argOr(1))) })},
	"contrast":   {kernels.ColorMatrix, "contrast around mid-gray, arg factor (1)", matrix(func(s step) filter.Matrix { return filter.Contrast(float32(s.argOr(1))) })},
	"saturation": {kernels.ColorMatrix, "saturation, arg factor (1)", matrix(func(s step) filter.Matrix { return filter.Saturation(float32(s.argOr(1))) })},
	"hue":        {kernels.ColorMatrix, "hue rotation, arg degrees (0)", matrix(func(s step) filter.Matrix { return filter.HueRotate(s.argOr(0)) })},
	"opacity":    {kernels.ColorMatrix, "scale alpha, arg factor (1)", matrix(func(s step) filter.Matrix { return filter.Opacity(float32(s.argOr(1))) })},
	"open":       {"", "morphological opening (not implemented)", stub(filter.NewOpen())},
	"close":      {"", "morphological closing (not implemented)", stub(filter.NewClose())},
	"gradient":   {"", "morphological gradient (not implemented)", stub(filter.NewGradient())},
	"tophat":     {"", "top-hat transform (not implemented)", stub(filter.NewTopHat())},
	"hsv":        {"", "RGB to HSV (not implemented)", stub(filter.NewHSV())},
	"ycbcr":      {"", "RGB to YCbCr (not implemented)", stub(filter.NewYCbCr())},
}

func recipeNames() []string {
	names := make([]string, 0, len(recipes))
	for name := range recipes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// buildChain constructs one filter per step. On error every filter built
// so far is released.
func buildChain(e env, steps []step) (*filter.Chain, error) {
	chain := filter.NewChain()
	for _, s := range steps {
		r := recipes[s.name]
		var prog filter.Program
		if r.entry != "" {
			var err error
			if prog, err = e.source(r.entry); err != nil {
				chain.Release()
				return nil, err
			}
		}
		f, err := r.build(e, prog, s)
		if err != nil {
			chain.Release()
			return nil, fmt.Errorf("filter %s: %w", s.name, err)
		}
		chain.Append(f)
	}
	return chain, nil
}
