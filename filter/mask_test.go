package filter_test

import (
	"errors"
	"math"
	"slices"
	"testing"

	"github.com/gogpu/gpufilter/backend/soft"
	"github.com/gogpu/gpufilter/filter"
)

func TestNewMask(t *testing.T) {
	tests := []struct {
		name    string
		size    int
		coeffs  []int32
		wantErr bool
	}{
		{"3x3", 3, make([]int32, 9), false},
		{"1x1", 1, []int32{5}, false},
		{"even", 2, make([]int32, 4), true},
		{"zero", 0, nil, true},
		{"too large", filter.MaxMaskSize + 2, make([]int32, (filter.MaxMaskSize+2)*(filter.MaxMaskSize+2)), true},
		{"short", 3, make([]int32, 8), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := filter.NewMask(tt.size, tt.coeffs)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewMask() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, filter.ErrInvalidConfig) {
				t.Errorf("error = %v, want ErrInvalidConfig", err)
			}
			if err == nil && m.Taps() != tt.size*tt.size {
				t.Errorf("Taps() = %d", m.Taps())
			}
		})
	}
}

func TestNewMaskCopies(t *testing.T) {
	coeffs := []int32{1, 2, 3, 4, 5, 6, 7, 8, 9}
	m, err := filter.NewMask(3, coeffs)
	if err != nil {
		t.Fatal(err)
	}
	coeffs[0] = 100
	if m.Coeffs[0] != 1 {
		t.Error("mask aliases the caller's slice")
	}
}

func TestMaskOffsets(t *testing.T) {
	got := filter.BoxMask(1).Offsets()
	want := []int32{
		-1, -1, 0, -1, 1, -1,
		-1, 0, 0, 0, 1, 0,
		-1, 1, 0, 1, 1, 1,
	}
	if !slices.Equal(got, want) {
		t.Errorf("Offsets() = %v, want %v", got, want)
	}
}

func TestMaskPresets(t *testing.T) {
	tests := []struct {
		name   string
		mask   filter.Mask
		size   int
		sum    int64
		center int32
	}{
		{"box 1", filter.BoxMask(1), 3, 9, 1},
		{"box 2", filter.BoxMask(2), 5, 25, 1},
		{"square 0", filter.SquareMask(0), 1, 1, 1},
		{"cross 1", filter.CrossMask(1), 3, 5, 1},
		{"cross 2", filter.CrossMask(2), 5, 9, 1},
		{"sobel x", filter.SobelX(), 3, 0, 0},
		{"sobel y", filter.SobelY(), 3, 0, 0},
		{"prewitt x", filter.PrewittX(), 3, 0, 0},
		{"prewitt y", filter.PrewittY(), 3, 0, 0},
		{"laplacian", filter.Laplacian(), 3, 0, -4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.mask.Size != tt.size {
				t.Errorf("Size = %d, want %d", tt.mask.Size, tt.size)
			}
			if got := tt.mask.Sum(); got != tt.sum {
				t.Errorf("Sum() = %d, want %d", got, tt.sum)
			}
			if got := tt.mask.Coeffs[len(tt.mask.Coeffs)/2]; got != tt.center {
				t.Errorf("center = %d, want %d", got, tt.center)
			}
		})
	}
}

func TestMaskPresetsClampRadius(t *testing.T) {
	const n = filter.MaxMaskSize
	tests := []struct {
		name string
		mask func() filter.Mask
		size int
		sum  int64
	}{
		{"box 8", func() filter.Mask { return filter.BoxMask(8) }, n, n * n},
		{"square 100", func() filter.Mask { return filter.SquareMask(100) }, n, n * n},
		{"cross 8", func() filter.Mask { return filter.CrossMask(8) }, n, 2*n - 1},
		{"box -3", func() filter.Mask { return filter.BoxMask(-3) }, 1, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := tt.mask()
			if m.Size != tt.size {
				t.Errorf("Size = %d, want %d", m.Size, tt.size)
			}
			if got := m.Sum(); got != tt.sum {
				t.Errorf("Sum() = %d, want %d", got, tt.sum)
			}
		})
	}
}

func TestSobelPairIsTransposed(t *testing.T) {
	x, y := filter.SobelX(), filter.SobelY()
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			if x.Coeffs[r*3+c] != y.Coeffs[c*3+r] {
				t.Fatalf("SobelX[%d][%d] = %d, SobelY[%d][%d] = %d", r, c, x.Coeffs[r*3+c], c, r, y.Coeffs[c*3+r])
			}
		}
	}
}

func TestGaussianMask(t *testing.T) {
	if m := filter.GaussianMask(0); m.Size != 1 || m.Coeffs[0] != 1 {
		t.Errorf("GaussianMask(0) = %+v, want identity", m)
	}

	m := filter.GaussianMask(0.5)
	if m.Size != 5 {
		t.Fatalf("Size = %d, want 5", m.Size)
	}
	n := m.Size
	center := m.Coeffs[len(m.Coeffs)/2]
	for y := 0; y < n; y++ {
		for x := 0; x < n; x++ {
			v := m.Coeffs[y*n+x]
			if v != m.Coeffs[x*n+y] || v != m.Coeffs[(n-1-y)*n+(n-1-x)] {
				t.Fatalf("mask is not symmetric at (%d, %d)", x, y)
			}
			if v > center {
				t.Fatalf("coefficient %d at (%d, %d) exceeds center %d", v, x, y, center)
			}
		}
	}
	if center > 4096 {
		t.Errorf("center = %d, want <= 4096", center)
	}

	large := filter.GaussianMask(10)
	if large.Size != filter.MaxMaskSize {
		t.Errorf("GaussianMask(10).Size = %d, want %d", large.Size, filter.MaxMaskSize)
	}
}

func TestGaussianMaskOutOfRangeSigma(t *testing.T) {
	tests := []struct {
		name  string
		sigma float64
		size  int
	}{
		{"nan", math.NaN(), 1},
		{"negative", -2, 1},
		{"-inf", math.Inf(-1), 1},
		{"+inf", math.Inf(1), filter.MaxMaskSize},
		{"huge", 1e300, filter.MaxMaskSize},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := filter.GaussianMask(tt.sigma)
			if m.Size != tt.size {
				t.Fatalf("Size = %d, want %d", m.Size, tt.size)
			}
			for i, c := range m.Coeffs {
				if c < 1 {
					t.Fatalf("Coeffs[%d] = %d, want >= 1", i, c)
				}
			}
		})
	}
}

func TestGaussianMaskCacheReturnsCopies(t *testing.T) {
	a := filter.GaussianMask(1.25)
	want := slices.Clone(a.Coeffs)
	a.Coeffs[0] = -7
	if b := filter.GaussianMask(1.25); !slices.Equal(b.Coeffs, want) {
		t.Error("cached mask was modified through a returned copy")
	}
}

func TestMaskSet(t *testing.T) {
	if k := filter.NoMasks().Kind(); k != filter.NoMask || len(filter.NoMasks().Masks()) != 0 {
		t.Errorf("NoMasks() kind = %v", k)
	}
	if s := filter.Single(filter.BoxMask(1)); s.Kind() != filter.SingleMask || len(s.Masks()) != 1 {
		t.Errorf("Single() = %v with %d masks", s.Kind(), len(s.Masks()))
	}
	s := filter.Dual(filter.SobelX(), filter.SobelY())
	if s.Kind() != filter.DualMask || len(s.Masks()) != 2 {
		t.Fatalf("Dual() = %v with %d masks", s.Kind(), len(s.Masks()))
	}
	if !slices.Equal(s.Masks()[1].Coeffs, filter.SobelY().Coeffs) {
		t.Error("Dual() reorders masks")
	}
}

func TestLoadMaskRoundTrip(t *testing.T) {
	dev := soft.New()
	defer dev.Close()

	for _, m := range []filter.Mask{filter.BoxMask(1), filter.SobelY(), filter.GaussianMask(1), filter.Laplacian()} {
		mb, err := filter.LoadMask(dev, m)
		if err != nil {
			t.Fatal(err)
		}
		if mb.Count != m.Taps() || !slices.Equal(mb.Coeffs, m.Coeffs) {
			t.Errorf("MaskBuffer = %d coefficients %v", mb.Count, mb.Coeffs)
		}
		got, err := dev.ReadBuffer(mb.Buffer, 0, uint64(4*mb.Count))
		if err != nil {
			t.Fatal(err)
		}
		if !slices.Equal(got, m.Bytes()) {
			t.Errorf("device bytes = %v, want %v", got, m.Bytes())
		}
		mb.Release()
		mb.Release()
	}
	if n := dev.Live().Buffers; n != 0 {
		t.Errorf("live buffers = %d after Release", n)
	}
}

func TestLoadMaskFailures(t *testing.T) {
	tests := []struct {
		name string
		op   soft.Op
	}{
		{"create", soft.OpCreateBuffer},
		{"write", soft.OpWriteBuffer},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev := soft.New()
			defer dev.Close()
			dev.FailNext(tt.op, 1)
			mb, err := filter.LoadMask(dev, filter.BoxMask(1))
			if !errors.Is(err, filter.ErrAllocation) {
				t.Fatalf("LoadMask() error = %v, want ErrAllocation", err)
			}
			if mb != nil {
				t.Error("LoadMask() returned a buffer with an error")
			}
			if n := dev.Live().Buffers; n != 0 {
				t.Errorf("live buffers = %d, want 0", n)
			}
		})
	}

	dev := soft.New()
	defer dev.Close()
	if _, err := filter.LoadMask(dev, filter.Mask{}); !errors.Is(err, filter.ErrAllocation) {
		t.Errorf("LoadMask(empty) error = %v, want ErrAllocation", err)
	}
}
