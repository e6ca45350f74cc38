package filter_test

import (
	"math"
	"testing"

	"github.com/gogpu/gpufilter/filter"
)

func matrixNear(a, b filter.Matrix, eps float64) bool {
	for i := range a {
		if math.Abs(float64(a[i]-b[i])) > eps {
			return false
		}
	}
	return true
}

func TestMatrixThen(t *testing.T) {
	tests := []struct {
		name        string
		first, next filter.Matrix
		want        filter.Matrix
	}{
		{"invert twice", filter.Invert(), filter.Invert(), filter.Identity()},
		{"brightness cancels", filter.Brightness(2), filter.Brightness(0.5), filter.Identity()},
		{"identity left", filter.Identity(), filter.Sepia(), filter.Sepia()},
		{"identity right", filter.Sepia(), filter.Identity(), filter.Sepia()},
		{"hue full turn", filter.HueRotate(180), filter.HueRotate(180), filter.HueRotate(360)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.first.Then(tt.next); !matrixNear(got, tt.want, 1e-2) {
				t.Errorf("Then() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMatrixThenOrder(t *testing.T) {
	// Invert then halve: (255 - 55) / 2 = 100. Halve then invert: 255 - 27.5.
	m := filter.Invert().Then(filter.Brightness(0.5))
	if got := m.Apply([4]float32{55, 55, 55, 255}); got[0] != 100 {
		t.Errorf("invert then halve = %v, want 100", got[0])
	}
	m = filter.Brightness(0.5).Then(filter.Invert())
	if got := m.Apply([4]float32{55, 55, 55, 255}); got[0] != 227.5 {
		t.Errorf("halve then invert = %v, want 227.5", got[0])
	}
}

func TestMatrixPresets(t *testing.T) {
	tests := []struct {
		name string
		m    filter.Matrix
		in   [4]float32
		want [4]float32
	}{
		{"identity", filter.Identity(), [4]float32{1, 2, 3, 4}, [4]float32{1, 2, 3, 4}},
		{"brightness", filter.Brightness(0.5), [4]float32{100, 50, 20, 200}, [4]float32{50, 25, 10, 200}},
		{"contrast zero", filter.Contrast(0), [4]float32{10, 200, 90, 255}, [4]float32{128, 128, 128, 255}},
		{"contrast clamps", filter.Contrast(4), [4]float32{0, 255, 128, 255}, [4]float32{0, 255, 128, 255}},
		{"grayscale white", filter.Grayscale(), [4]float32{255, 255, 255, 255}, [4]float32{255, 255, 255, 255}},
		{"grayscale green", filter.Grayscale(), [4]float32{0, 100, 0, 255}, [4]float32{71.52, 71.52, 71.52, 255}},
		{"saturation one", filter.Saturation(1), [4]float32{30, 60, 90, 255}, [4]float32{30, 60, 90, 255}},
		{"invert", filter.Invert(), [4]float32{0, 55, 255, 10}, [4]float32{255, 200, 0, 10}},
		{"opacity", filter.Opacity(0.5), [4]float32{9, 9, 9, 200}, [4]float32{9, 9, 9, 100}},
		{"sepia keeps alpha", filter.Sepia(), [4]float32{0, 0, 0, 77}, [4]float32{0, 0, 0, 77}},
		{"hue zero", filter.HueRotate(0), [4]float32{30, 60, 90, 255}, [4]float32{30, 60, 90, 255}},
		{"hue keeps gray", filter.HueRotate(120), [4]float32{80, 80, 80, 255}, [4]float32{80, 80, 80, 255}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.m.Apply(tt.in)
			for i := range got {
				if math.Abs(float64(got[i]-tt.want[i])) > 0.05 {
					t.Fatalf("Apply(%v) = %v, want %v", tt.in, got, tt.want)
				}
			}
		})
	}
}
