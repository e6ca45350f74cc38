package filter

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/gogpu/gpufilter"
	"github.com/gogpu/gpufilter/gpucore"
	"github.com/gogpu/gpufilter/internal/cache"
)

// MaxMaskSize bounds the side of a mask. 15x15 is 225 taps.
const MaxMaskSize = 15

// Mask is a square, odd-sized table of integer coefficients in row-major
// order. Coefficient k applies to the k-th offset of the window.
type Mask struct {
	Size   int
	Coeffs []int32
}

// NewMask validates coeffs as a size x size mask.
func NewMask(size int, coeffs []int32) (Mask, error) {
	if size < 1 || size%2 == 0 || size > MaxMaskSize {
		return Mask{}, fmt.Errorf("%w: mask size %d must be odd and in [1, %d]", ErrInvalidConfig, size, MaxMaskSize)
	}
	if len(coeffs) != size*size {
		return Mask{}, fmt.Errorf("%w: %dx%d mask has %d coefficients", ErrInvalidConfig, size, size, len(coeffs))
	}
	return Mask{Size: size, Coeffs: append([]int32(nil), coeffs...)}, nil
}

func mustMask(size int, coeffs ...int32) Mask {
	m, err := NewMask(size, coeffs)
	if err != nil {
		panic(err)
	}
	return m
}

// IsZero reports whether m is the zero Mask.
func (m Mask) IsZero() bool { return m.Size == 0 }

// Radius returns the halo width the mask needs.
func (m Mask) Radius() uint32 { return uint32(m.Size / 2) }

// Taps returns the number of coefficients.
func (m Mask) Taps() int { return len(m.Coeffs) }

// Sum returns the sum of the coefficients.
func (m Mask) Sum() int64 {
	var s int64
	for _, c := range m.Coeffs {
		s += int64(c)
	}
	return s
}

// Offsets returns the (dx, dy) pairs of the window in row-major order.
func (m Mask) Offsets() []int32 {
	return windowOffsets(m.Size)
}

func windowOffsets(size int) []int32 {
	r := int32(size / 2)
	out := make([]int32, 0, 2*size*size)
	for dy := -r; dy <= r; dy++ {
		for dx := -r; dx <= r; dx++ {
			out = append(out, dx, dy)
		}
	}
	return out
}

// Bytes returns the coefficients as little-endian int32s.
func (m Mask) Bytes() []byte {
	return int32Bytes(m.Coeffs)
}

func int32Bytes(v []int32) []byte {
	out := make([]byte, 4*len(v))
	for i, c := range v {
		binary.LittleEndian.PutUint32(out[i*4:], uint32(c))
	}
	return out
}

// MaxMaskRadius is the largest radius a preset mask is built with.
const MaxMaskRadius = MaxMaskSize / 2

// presetSize maps a preset radius to a window size, clamping the radius
// to [0, MaxMaskRadius].
func presetSize(radius int) int {
	return 2*min(max(radius, 0), MaxMaskRadius) + 1
}

// BoxMask returns a (2r+1)x(2r+1) mask of ones. The radius is clamped to
// [0, MaxMaskRadius].
func BoxMask(radius int) Mask {
	return SquareMask(radius)
}

// SquareMask returns a square structuring element of ones. The radius is
// clamped like BoxMask's.
func SquareMask(radius int) Mask {
	size := presetSize(radius)
	coeffs := make([]int32, size*size)
	for i := range coeffs {
		coeffs[i] = 1
	}
	return mustMask(size, coeffs...)
}

// CrossMask returns a plus-shaped structuring element. The radius is
// clamped like BoxMask's.
func CrossMask(radius int) Mask {
	size := presetSize(radius)
	c := size / 2
	coeffs := make([]int32, size*size)
	for i := 0; i < size; i++ {
		coeffs[c*size+i] = 1
		coeffs[i*size+c] = 1
	}
	return mustMask(size, coeffs...)
}

// gaussianPeak bounds the center coefficient of a quantised Gaussian.
const gaussianPeak = 4096

// maxGaussianSigma caps sigma. Past it the capped window is flat ones.
const maxGaussianSigma = 100

// GaussianMask returns an integer Gaussian of standard deviation sigma.
// The window is 2*ceil(3*sigma)+1 wide, capped at MaxMaskSize. The
// corner coefficient is quantised to 1 unless that would push the center
// past 4096. Use Sum as the divisor. NaN and sigma below 0.01 give the
// 1x1 identity; sigma above 100 is treated as 100.
func GaussianMask(sigma float64) Mask {
	if math.IsNaN(sigma) || sigma < 0.01 {
		return mustMask(1, 1)
	}
	return cachedGaussian(min(sigma, maxGaussianSigma))
}

func gaussianMask(sigma float64) Mask {
	half := min(int(math.Ceil(sigma*3)), MaxMaskSize/2)
	size := half*2 + 1

	// exp(-x²/2σ²), unnormalised; only ratios survive quantisation.
	row := make([]float64, size)
	twoSigmaSq := 2 * sigma * sigma
	for i := range row {
		x := float64(i - half)
		row[i] = math.Exp(-(x * x) / twoSigmaSq)
	}

	scale := min(1/(row[0]*row[0]), gaussianPeak)
	coeffs := make([]int32, size*size)
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			coeffs[y*size+x] = int32(math.Round(row[y] * row[x] * scale))
		}
	}
	return mustMask(size, coeffs...)
}

// SobelX returns the horizontal-gradient Sobel mask.
func SobelX() Mask {
	return mustMask(3,
		-1, 0, 1,
		-2, 0, 2,
		-1, 0, 1)
}

// SobelY returns the vertical-gradient Sobel mask.
func SobelY() Mask {
	return mustMask(3,
		-1, -2, -1,
		0, 0, 0,
		1, 2, 1)
}

// PrewittX returns the horizontal-gradient Prewitt mask.
func PrewittX() Mask {
	return mustMask(3,
		-1, 0, 1,
		-1, 0, 1,
		-1, 0, 1)
}

// PrewittY returns the vertical-gradient Prewitt mask.
func PrewittY() Mask {
	return mustMask(3,
		-1, -1, -1,
		0, 0, 0,
		1, 1, 1)
}

// Laplacian returns the 4-neighbour Laplacian.
func Laplacian() Mask {
	return mustMask(3,
		0, 1, 0,
		1, -4, 1,
		0, 1, 0)
}

// gaussians caches quantised Gaussian masks keyed by sigma*100.
var gaussians = cache.New[int, Mask](32)

func cachedGaussian(sigma float64) Mask {
	key := int(sigma * 100)
	m, _ := gaussians.GetOrCreate(key, func() (Mask, error) {
		return gaussianMask(float64(key) / 100), nil
	})
	return Mask{Size: m.Size, Coeffs: append([]int32(nil), m.Coeffs...)}
}

// MaskKind is how many filter-owned masks a filter binds.
type MaskKind int

// Mask kinds.
const (
	NoMask MaskKind = iota
	SingleMask
	DualMask
)

func (k MaskKind) String() string {
	switch k {
	case NoMask:
		return "no mask"
	case SingleMask:
		return "single mask"
	case DualMask:
		return "dual mask"
	default:
		return fmt.Sprintf("mask kind(%d)", int(k))
	}
}

// MaskSet is the masks a filter owns: none, one, or a same-sized pair.
type MaskSet struct {
	kind  MaskKind
	masks [2]Mask
}

// NoMasks returns the empty set.
func NoMasks() MaskSet { return MaskSet{} }

// Single returns a set holding m.
func Single(m Mask) MaskSet { return MaskSet{kind: SingleMask, masks: [2]Mask{m}} }

// Dual returns a set holding a mask pair, e.g. a vertical/horizontal
// gradient pair.
func Dual(x, y Mask) MaskSet { return MaskSet{kind: DualMask, masks: [2]Mask{x, y}} }

// Kind returns the number of masks in the set.
func (s MaskSet) Kind() MaskKind { return s.kind }

// Masks returns the masks in binding order.
func (s MaskSet) Masks() []Mask {
	return s.masks[:int(s.kind)]
}

func (s MaskSet) validate() error {
	masks := s.Masks()
	for _, m := range masks {
		if _, err := NewMask(m.Size, m.Coeffs); err != nil {
			return err
		}
	}
	if len(masks) == 2 && masks[0].Size != masks[1].Size {
		return fmt.Errorf("%w: mask pair is %dx%d and %dx%d", ErrInvalidConfig,
			masks[0].Size, masks[0].Size, masks[1].Size, masks[1].Size)
	}
	return nil
}

// MaskBuffer is a mask uploaded to device memory. It is owned by exactly
// one filter and released with it.
type MaskBuffer struct {
	Coeffs []int32
	Count  int
	Buffer gpucore.BufferID

	dev gpucore.GPUAdapter
}

// LoadMask uploads m into a new storage buffer and waits for the write to
// land. Failures wrap ErrAllocation and leave nothing allocated.
func LoadMask(dev gpucore.GPUAdapter, m Mask) (*MaskBuffer, error) {
	if m.Taps() == 0 {
		return nil, fmt.Errorf("%w: empty mask", ErrAllocation)
	}
	id, err := uploadBlocking(dev, m.Bytes(), fmt.Sprintf("mask %dx%d", m.Size, m.Size))
	if err != nil {
		return nil, err
	}
	return &MaskBuffer{
		Coeffs: append([]int32(nil), m.Coeffs...),
		Count:  m.Taps(),
		Buffer: id,
		dev:    dev,
	}, nil
}

// Release frees the device buffer. Safe to call more than once.
func (b *MaskBuffer) Release() {
	if b == nil || b.Buffer == gpucore.InvalidID {
		return
	}
	b.dev.DestroyBuffer(b.Buffer)
	b.Buffer = gpucore.InvalidID
}

// uploadBlocking creates a read-only storage buffer holding data and
// drains the queue so the data is resident on return.
func uploadBlocking(dev gpucore.GPUAdapter, data []byte, label string) (gpucore.BufferID, error) {
	usage := gpucore.BufferUsageStorage | gpucore.BufferUsageCopyDst | gpucore.BufferUsageCopySrc
	id, err := dev.CreateBuffer(len(data), usage, label)
	if err != nil {
		return gpucore.InvalidID, fmt.Errorf("%w: %s: %w", ErrAllocation, label, err)
	}
	if err := dev.WriteBuffer(id, 0, data); err != nil {
		dev.DestroyBuffer(id)
		return gpucore.InvalidID, fmt.Errorf("%w: %s: write: %w", ErrAllocation, label, err)
	}
	if err := dev.Queue().WaitIdle(); err != nil {
		dev.DestroyBuffer(id)
		return gpucore.InvalidID, fmt.Errorf("%w: %s: wait: %w", ErrAllocation, label, err)
	}
	gpufilter.Logger().Debug("filter: buffer uploaded", "label", label, "bytes", len(data))
	return id, nil
}
