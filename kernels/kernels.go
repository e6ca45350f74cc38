// Package kernels holds the host/kernel contract shared by the dispatch
// core and the reference device, and ships sample WGSL kernels that follow
// it.
//
// # Binding layout
//
// Every kernel reads group 0. Bindings follow the positional order of its
// filter family:
//
//	family            bindings
//	linear (1 mask)   src, mask, scratch, offsets, params, dst
//	linear (2 masks)  src, mask_x, mask_y, scratch, offsets, params, dst
//	nonlinear         src, scratch, offsets, params, dst
//	nonlinear + mask  src, mask, scratch, offsets, params, dst
//	context-free      src, params, dst
//
// Images are stored one pixel per u32 word, channel c in bits 8c..8c+7.
// Offsets are vec2<i32> (dx, dy) pairs in row-major window order; mask
// coefficient k applies to offset k. The kernels discard work items whose
// global id lies outside the image.
package kernels

import (
	"embed"
	"fmt"
	"sort"
)

// Entry points of the shipped kernels.
const (
	Lowpass     = "lowpass"
	Highpass    = "highpass"
	Median      = "median"
	Minimum     = "minimum"
	Maximum     = "maximum"
	Erode       = "erode"
	Dilate      = "dilate"
	ColorMatrix = "color_matrix"
)

//go:embed wgsl/*.wgsl
var sources embed.FS

// files maps each entry point to the embedded file defining it.
var files = map[string]string{
	Lowpass:     "wgsl/lowpass.wgsl",
	Highpass:    "wgsl/highpass.wgsl",
	Median:      "wgsl/rank.wgsl",
	Minimum:     "wgsl/rank.wgsl",
	Maximum:     "wgsl/rank.wgsl",
	Erode:       "wgsl/morphology.wgsl",
	Dilate:      "wgsl/morphology.wgsl",
	ColorMatrix: "wgsl/colormatrix.wgsl",
}

// Source returns the embedded WGSL source that defines entryPoint.
func Source(entryPoint string) (string, error) {
	name, ok := files[entryPoint]
	if !ok {
		return "", fmt.Errorf("kernels: no embedded kernel defines %q", entryPoint)
	}
	data, err := sources.ReadFile(name)
	if err != nil {
		return "", fmt.Errorf("kernels: read %s: %w", name, err)
	}
	return string(data), nil
}

// MustSource is like Source but panics if the entry point is unknown.
// Intended for package-level initialisation with the constants above.
func MustSource(entryPoint string) string {
	src, err := Source(entryPoint)
	if err != nil {
		panic(err)
	}
	return src
}

// EntryPoints returns the entry points of all embedded kernels, sorted.
func EntryPoints() []string {
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
