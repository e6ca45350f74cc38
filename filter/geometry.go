package filter

import "fmt"

// Geometry is the launch geometry of one Filter call.
type Geometry struct {
	// Local is the work-group (tile) size.
	Local [2]uint32

	// Global is the work-item extent: the smallest multiple of Local that
	// covers the image.
	Global [2]uint32

	// Groups is Global / Local, the Dispatch arguments.
	Groups [2]uint32

	// Radius is the halo width around each tile.
	Radius uint32

	// Pitch is the halo-padded tile row length: Local[0] + 2*Radius.
	Pitch uint32

	// ScratchPerGroup is the scratch slab of one work-group in bytes.
	ScratchPerGroup uint64
}

// RoundUp returns the smallest multiple of local that is >= extent.
func RoundUp(extent, local uint32) uint32 {
	if local == 0 {
		return extent
	}
	return (extent + local - 1) / local * local
}

// ComputeGeometry returns the launch geometry for a width x height image
// with channels bytes per pixel.
func ComputeGeometry(width, height, channels int, local [2]uint32, radius uint32) (Geometry, error) {
	if width <= 0 || height <= 0 {
		return Geometry{}, fmt.Errorf("%w: image %dx%d", ErrInvalidConfig, width, height)
	}
	if local[0] == 0 || local[1] == 0 {
		return Geometry{}, fmt.Errorf("%w: work-group %dx%d", ErrInvalidConfig, local[0], local[1])
	}
	if channels < 1 || channels > 4 {
		return Geometry{}, fmt.Errorf("%w: %d channels", ErrInvalidConfig, channels)
	}
	g := Geometry{Local: local, Radius: radius, Pitch: local[0] + 2*radius}
	for i, extent := range [2]uint32{uint32(width), uint32(height)} {
		g.Global[i] = RoundUp(extent, local[i])
		g.Groups[i] = g.Global[i] / local[i]
	}
	slab := uint64(g.Pitch) * uint64(local[1]+2*radius) * uint64(channels)
	g.ScratchPerGroup = (slab + 3) &^ 3
	return g, nil
}

// ScratchSize returns the scratch buffer size: one slab per work-group.
func (g Geometry) ScratchSize() uint64 {
	return g.ScratchPerGroup * uint64(g.Groups[0]) * uint64(g.Groups[1])
}

func (g Geometry) String() string {
	return fmt.Sprintf("global %dx%d, local %dx%d, groups %dx%d, radius %d",
		g.Global[0], g.Global[1], g.Local[0], g.Local[1], g.Groups[0], g.Groups[1], g.Radius)
}
