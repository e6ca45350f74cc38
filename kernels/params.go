package kernels

import (
	"encoding/binary"
	"fmt"
	"math"
)

// ParamsSize is the byte size of the uniform parameter block.
const ParamsSize = 8*4 + ExtraFloats*4

// ExtraFloats is the number of family-specific float parameters. In WGSL
// they are declared as array<vec4<f32>, 5> to satisfy uniform array stride.
const ExtraFloats = 20

// Params is the scalar argument block every kernel receives as a uniform.
//
// WGSL declaration:
//
//	struct Params {
//	    pitch: u32,
//	    width: u32,
//	    height: u32,
//	    channels: u32,
//	    tile_width: u32,
//	    tile_height: u32,
//	    radius: u32,
//	    taps: u32,
//	    extra: array<vec4<f32>, 5>,
//	}
type Params struct {
	// Pitch is the halo-padded tile row length in pixels: tile_width + 2*radius.
	Pitch uint32

	// Width and Height are the image extent in pixels.
	Width  uint32
	Height uint32

	// Channels is the number of meaningful bytes in each pixel word (1, 3 or 4).
	Channels uint32

	// TileWidth and TileHeight are the work-group size.
	TileWidth  uint32
	TileHeight uint32

	// Radius is the neighborhood radius (halo width).
	Radius uint32

	// Taps is the number of entries in the offsets array.
	Taps uint32

	// Extra holds family-specific values:
	//   - linear: [0] divisor, [1] bias
	//   - rank: unused, each entry point fixes its rank
	//   - color matrix: the 4x5 matrix in row-major order
	Extra [ExtraFloats]float32
}

// Bytes encodes the block in the little-endian std140-compatible layout.
func (p Params) Bytes() []byte {
	buf := make([]byte, ParamsSize)
	header := [8]uint32{p.Pitch, p.Width, p.Height, p.Channels, p.TileWidth, p.TileHeight, p.Radius, p.Taps}
	for i, v := range header {
		binary.LittleEndian.PutUint32(buf[i*4:], v)
	}
	for i, f := range p.Extra {
		binary.LittleEndian.PutUint32(buf[32+i*4:], math.Float32bits(f))
	}
	return buf
}

// DecodeParams decodes a block produced by Params.Bytes.
func DecodeParams(b []byte) (Params, error) {
	if len(b) < ParamsSize {
		return Params{}, fmt.Errorf("kernels: params block is %d bytes, want %d", len(b), ParamsSize)
	}
	var header [8]uint32
	for i := range header {
		header[i] = binary.LittleEndian.Uint32(b[i*4:])
	}
	p := Params{
		Pitch: header[0], Width: header[1], Height: header[2], Channels: header[3],
		TileWidth: header[4], TileHeight: header[5], Radius: header[6], Taps: header[7],
	}
	for i := range p.Extra {
		p.Extra[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[32+i*4:]))
	}
	return p, nil
}
