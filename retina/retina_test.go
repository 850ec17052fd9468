package retina

import (
	"math/rand"
	"testing"

	"github.com/chewxy/math32"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"gorgonia.org/tensor"
)

// ramp returns images whose pixel at (y, x) of every channel and batch element is y*width + x + 1.
func ramp(batches, channels, height, width int) *tensor.Dense {
	data := make([]float32, batches*channels*height*width)
	for i := range data {
		px := i % (height * width)
		data[i] = float32(px + 1)
	}
	return tensor.New(tensor.WithShape(batches, channels, height, width), tensor.WithBacking(data))
}

func locations(ls ...float32) *tensor.Dense {
	return tensor.New(tensor.WithShape(len(ls)/2, 2), tensor.WithBacking(ls))
}

func TestNew(t *testing.T) {
	tests := []struct {
		name      string
		patch, n  int
		scale     float64
		c, h, w   int
		wantSizes []int
		wantPad   int
		wantErrIs error
	}{
		{"default", 8, 3, 2, 1, 28, 28, []int{8, 16, 32}, 16, nil},
		{"single patch", 5, 1, 2, 3, 10, 12, []int{5}, 3, nil},
		{"triple", 2, 3, 3, 1, 9, 9, []int{2, 6, 18}, 9, nil},
		{"fractional sizes", 8, 3, 1.5, 1, 28, 28, nil, 0, ErrBadGeometry},
		{"no growth", 8, 2, 1.05, 1, 28, 28, nil, 0, ErrBadGeometry},
		{"scale of one", 8, 1, 1, 1, 28, 28, nil, 0, ErrBadGeometry},
		{"no patches", 8, 0, 2, 1, 28, 28, nil, 0, ErrBadGeometry},
		{"empty image", 8, 1, 2, 1, 0, 28, nil, 0, ErrBadGeometry},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := New(tt.patch, tt.n, tt.scale, tt.c, tt.h, tt.w)
			if tt.wantErrIs != nil {
				assert.Equal(t, tt.wantErrIs, errors.Cause(err))
				return
			}
			if err != nil {
				t.Fatalf("%+v", err)
			}
			assert.Equal(t, tt.wantSizes, r.Sizes())
			assert.Equal(t, tt.wantPad, r.Padding())
			assert.Equal(t, tt.n*tt.c*tt.patch*tt.patch, r.Features())
		})
	}
}

func TestCheckBounds(t *testing.T) {
	r, err := New(8, 3, 2, 1, 28, 28)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	r.pad = r.sizes[0] / 2 // sized from the first patch rather than the largest one
	assert.Equal(t, ErrOutOfBoundsPatch, errors.Cause(r.checkBounds()))
}

func TestFoveateShape(t *testing.T) {
	r, err := New(8, 3, 2, 1, 28, 28)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	img := ramp(4, 1, 28, 28)
	corners := locations(-1, -1, 1, 1, -1, 1, 1, -1)
	glimpse, err := r.Foveate(img, corners)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	assert.Equal(t, tensor.Shape{4, 3 * 1 * 8 * 8}, glimpse.Shape())
}

func TestFoveateRandomLocations(t *testing.T) {
	r, err := New(3, 3, 2, 2, 11, 17)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	rnd := rand.New(rand.NewSource(1337))
	img := ramp(8, 2, 11, 17)
	for i := 0; i < 100; i++ {
		ls := make([]float32, 16)
		for j := range ls {
			ls[j] = rnd.Float32()*2 - 1
		}
		glimpse, err := r.Foveate(img, locations(ls...))
		if err != nil {
			t.Fatalf("iteration %d: %+v", i, err)
		}
		assert.Equal(t, tensor.Shape{8, r.Features()}, glimpse.Shape())
	}
}

// On a 6×10 image the first coordinate must move along the rows and the second along the columns.
func TestFoveateNonSquare(t *testing.T) {
	r, err := New(2, 1, 2, 1, 6, 10)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	img := ramp(1, 1, 6, 10)

	tests := []struct {
		row, col float32
		want     []float32
	}{
		// centre (3, 5): rows 2..3, cols 4..5
		{0, 0, []float32{25, 26, 35, 36}},
		// centre (1, 7): rows 0..1, cols 6..7
		{-0.5, 0.5, []float32{7, 8, 17, 18}},
		// centre (4, 2): rows 3..4, cols 1..2
		{0.5, -0.5, []float32{32, 33, 42, 43}},
	}
	for _, tt := range tests {
		glimpse, err := r.Foveate(img, locations(tt.row, tt.col))
		if err != nil {
			t.Fatalf("%+v", err)
		}
		assert.Equal(t, tt.want, glimpse.Data(), "location (%v, %v)", tt.row, tt.col)
	}
}

func TestFoveateZeroPadding(t *testing.T) {
	r, err := New(2, 1, 2, 1, 4, 4)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	img := ramp(1, 1, 4, 4)

	// centre (0, 0): the window starts one pixel before the image on both axes
	glimpse, err := r.Foveate(img, locations(-1, -1))
	if err != nil {
		t.Fatalf("%+v", err)
	}
	assert.Equal(t, []float32{0, 0, 0, 1}, glimpse.Data())

	// centre (4, 4): only the top left of the window is inside the image
	glimpse, err = r.Foveate(img, locations(1, 1))
	if err != nil {
		t.Fatalf("%+v", err)
	}
	assert.Equal(t, []float32{16, 0, 0, 0}, glimpse.Data())
}

func TestFoveateDownsample(t *testing.T) {
	r, err := New(2, 2, 2, 1, 4, 4)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	data := make([]float32, 16)
	for i := range data {
		data[i] = float32(i)
	}
	img := tensor.New(tensor.WithShape(1, 1, 4, 4), tensor.WithBacking(data))

	glimpse, err := r.Foveate(img, locations(0, 0))
	if err != nil {
		t.Fatalf("%+v", err)
	}
	want := []float32{
		5, 6, 9, 10, // 2×2 around (2, 2)
		2.5, 4.5, 10.5, 12.5, // the whole image, averaged per quadrant
	}
	assert.Equal(t, want, glimpse.Data())
}

func TestFoveateChannels(t *testing.T) {
	r, err := New(1, 2, 2, 2, 2, 2)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	data := []float32{
		1, 2, 3, 4, // channel 0
		10, 20, 30, 40, // channel 1
	}
	img := tensor.New(tensor.WithShape(1, 2, 2, 2), tensor.WithBacking(data))
	// centre (1, 1): the 1×1 patch is pixel (1, 1); the 2×2 patch is the whole image
	glimpse, err := r.Foveate(img, locations(0, 0))
	if err != nil {
		t.Fatalf("%+v", err)
	}
	assert.Equal(t, []float32{4, 40, 2.5, 25}, glimpse.Data())
}

func TestFoveateBatchIndependence(t *testing.T) {
	r, err := New(2, 2, 2, 1, 8, 12)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	img := ramp(2, 1, 8, 12)
	both, err := r.Foveate(img, locations(-0.5, 0.25, 0.75, -1))
	if err != nil {
		t.Fatalf("%+v", err)
	}
	first, err := r.Foveate(ramp(1, 1, 8, 12), locations(-0.5, 0.25))
	if err != nil {
		t.Fatalf("%+v", err)
	}
	second, err := r.Foveate(ramp(1, 1, 8, 12), locations(0.75, -1))
	if err != nil {
		t.Fatalf("%+v", err)
	}
	data := both.Data().([]float32)
	assert.Equal(t, first.Data(), data[:r.Features()])
	assert.Equal(t, second.Data(), data[r.Features():])
}

func TestFoveateClampsLocations(t *testing.T) {
	r, err := New(2, 2, 2, 1, 6, 6)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	img := ramp(2, 1, 6, 6)
	clamped, err := r.Foveate(img, locations(5, -7, -1.5, 1.25))
	if err != nil {
		t.Fatalf("%+v", err)
	}
	bounded, err := r.Foveate(img, locations(1, -1, -1, 1))
	if err != nil {
		t.Fatalf("%+v", err)
	}
	assert.Equal(t, bounded.Data(), clamped.Data())
}

func TestFoveateRejectsNaN(t *testing.T) {
	r, err := New(2, 1, 2, 1, 6, 6)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	_, err = r.Foveate(ramp(1, 1, 6, 6), locations(math32.NaN(), 0))
	assert.Equal(t, ErrInvalidLocation, errors.Cause(err))

	_, err = r.Foveate(ramp(1, 1, 6, 6), locations(0, math32.Inf(1)))
	assert.Equal(t, ErrInvalidLocation, errors.Cause(err))
}

func TestFoveateShapeMismatch(t *testing.T) {
	r, err := New(2, 1, 2, 1, 6, 8)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	tests := []struct {
		name string
		img  *tensor.Dense
		loc  *tensor.Dense
	}{
		{"batch", ramp(2, 1, 6, 8), locations(0, 0)},
		{"transposed image", ramp(1, 1, 8, 6), locations(0, 0)},
		{"channels", ramp(1, 3, 6, 8), locations(0, 0)},
		{"location width", ramp(1, 1, 6, 8), tensor.New(tensor.WithShape(1, 3), tensor.WithBacking([]float32{0, 0, 0}))},
		{"rank", tensor.New(tensor.WithShape(6, 8), tensor.WithBacking(make([]float32, 48))), locations(0, 0)},
	}
	for _, tt := range tests {
		_, err := r.Foveate(tt.img, tt.loc)
		assert.Equal(t, ErrShapeMismatch, errors.Cause(err), tt.name)
	}
}

func TestCentre(t *testing.T) {
	r, err := New(2, 1, 2, 1, 6, 10)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	y, x, err := r.Centre(-1, 1)
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, 0, y)
	assert.Equal(t, 10, x)
}
