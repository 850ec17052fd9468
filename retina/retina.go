package retina

import (
	"github.com/chewxy/math32"
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
	"gorgonia.org/vecf32"
)

// Retina extracts glimpses from a batch of images.
//
// A glimpse is NumPatches square patches centred on the same point. The first patch has side PatchSize and each
// following patch is Scale times the side of the previous one. Every patch but the first is box-downsampled back to
// PatchSize, then the patches are stacked along the channel axis and flattened.
//
// Locations are (row, col) pairs in [-1, 1]. The first coordinate is scaled by the image height and the second by the
// image width:
//
//	row = int(0.5 * (l[0] + 1) * Height)
//	col = int(0.5 * (l[1] + 1) * Width)
//
// so (-1, -1) is the top left corner and (1, 1) the bottom right one. Finite locations outside [-1, 1] are clamped;
// NaN or infinite coordinates are rejected with ErrInvalidLocation.
type Retina struct {
	PatchSize  int
	NumPatches int
	Scale      float64

	Channels, Height, Width int

	sizes []int // side of each patch before resizing
	pad   int   // zeroes added on every side of the image
}

// New creates a Retina for images of the given geometry.
//
// The image is padded by half the largest patch (rounded up), which is enough for every patch centred anywhere in
// [-1, 1]². New checks that property for the extreme locations and fails with ErrOutOfBoundsPatch otherwise.
func New(patchSize, numPatches int, scale float64, channels, height, width int) (*Retina, error) {
	if patchSize < 1 || numPatches < 1 {
		return nil, errors.Wrapf(ErrBadGeometry, "patch size %d and patch count %d must be positive", patchSize, numPatches)
	}
	if channels < 1 || height < 1 || width < 1 {
		return nil, errors.Wrapf(ErrBadGeometry, "image of %d×%d×%d", channels, height, width)
	}
	if !(scale > 1) {
		return nil, errors.Wrapf(ErrBadGeometry, "scale must be greater than 1. Got %v", scale)
	}

	sizes := make([]int, numPatches)
	size := patchSize
	for i := range sizes {
		sizes[i] = size
		if i > 0 {
			if size <= sizes[i-1] {
				return nil, errors.Wrapf(ErrBadGeometry, "patch %d does not grow: %d after %d", i, size, sizes[i-1])
			}
			if size%patchSize != 0 {
				return nil, errors.Wrapf(ErrBadGeometry, "patch %d of side %d cannot be box-downsampled to %d", i, size, patchSize)
			}
		}
		size = int(scale * float64(size))
	}

	r := &Retina{
		PatchSize:  patchSize,
		NumPatches: numPatches,
		Scale:      scale,
		Channels:   channels,
		Height:     height,
		Width:      width,

		sizes: sizes,
		pad:   (sizes[len(sizes)-1] + 1) / 2,
	}
	if err := r.checkBounds(); err != nil {
		return nil, err
	}
	return r, nil
}

// Sizes returns the side length of each patch before it is resized.
func (r *Retina) Sizes() []int {
	retVal := make([]int, len(r.sizes))
	copy(retVal, r.sizes)
	return retVal
}

// Padding is the number of zeroes added on each side of the image.
func (r *Retina) Padding() int { return r.pad }

// Features is the width of a flattened glimpse: NumPatches * Channels * PatchSize².
func (r *Retina) Features() int { return r.NumPatches * r.Channels * r.PatchSize * r.PatchSize }

// Centre converts a location to the pixel it points at in the unpadded image.
func (r *Retina) Centre(row, col float32) (y, x int, err error) {
	if !finite(row) || !finite(col) {
		return 0, 0, errors.Wrapf(ErrInvalidLocation, "(%v, %v)", row, col)
	}
	return pixel(clamp(row), r.Height), pixel(clamp(col), r.Width), nil
}

// Foveate extracts one glimpse per batch element.
//
// img has shape (batch, Channels, Height, Width) and loc has shape (batch, 2). The result has shape
// (batch, NumPatches*Channels*PatchSize*PatchSize), laid out as patch, channel, row, column.
func (r *Retina) Foveate(img, loc *tensor.Dense) (*tensor.Dense, error) {
	if img.Dtype() != tensor.Float32 || loc.Dtype() != tensor.Float32 {
		return nil, errors.Errorf("Foveate only handles Float32. Got %v and %v", img.Dtype(), loc.Dtype())
	}
	if err := r.checkShapes(img.Shape(), loc.Shape()); err != nil {
		return nil, err
	}
	img, loc = contiguous(img), contiguous(loc)

	batches := img.Shape()[0]
	pixels := img.Data().([]float32)
	locs := loc.Data().([]float32)

	ph, pw := r.Height+2*r.pad, r.Width+2*r.pad
	padded := r.padded(pixels, batches)
	features := r.Features()
	patchLen := r.Channels * r.PatchSize * r.PatchSize
	out := make([]float32, batches*features)

	// every batch element looks somewhere else, so the windows are cut one element at a time
	for b := 0; b < batches; b++ {
		y, x, err := r.Centre(locs[2*b], locs[2*b+1])
		if err != nil {
			return nil, errors.WithMessagef(err, "batch element %d", b)
		}
		src := padded[b*r.Channels*ph*pw : (b+1)*r.Channels*ph*pw]
		for i, size := range r.sizes {
			top := y + r.pad - size/2
			left := x + r.pad - size/2
			dst := out[b*features+i*patchLen : b*features+(i+1)*patchLen]
			if err := r.extract(dst, src, top, left, size); err != nil {
				return nil, err
			}
		}
	}
	return tensor.New(tensor.WithShape(batches, features), tensor.WithBacking(out)), nil
}

// extract cuts a size×size window from every channel of src (a padded image) and box-downsamples it into dst.
func (r *Retina) extract(dst, src []float32, top, left, size int) error {
	ph, pw := r.Height+2*r.pad, r.Width+2*r.pad
	if top < 0 || left < 0 || top+size > ph || left+size > pw {
		return errors.Wrapf(ErrOutOfBoundsPatch, "window (%d, %d) of side %d in a %d×%d buffer", top, left, size, ph, pw)
	}

	p := r.PatchSize
	k := size / p
	inv := 1 / float32(k*k)
	acc := make([]float32, size)
	for c := 0; c < r.Channels; c++ {
		plane := src[c*ph*pw : (c+1)*ph*pw]
		out := dst[c*p*p : (c+1)*p*p]
		for oy := 0; oy < p; oy++ {
			for i := range acc {
				acc[i] = 0
			}
			for ky := 0; ky < k; ky++ {
				start := (top+oy*k+ky)*pw + left
				vecf32.Add(acc, plane[start:start+size])
			}
			for ox := 0; ox < p; ox++ {
				out[oy*p+ox] = vecf32.Sum(acc[ox*k:(ox+1)*k]) * inv
			}
		}
	}
	return nil
}

// padded copies the images into a zero filled buffer with r.pad extra pixels on every side.
func (r *Retina) padded(pixels []float32, batches int) []float32 {
	ph, pw := r.Height+2*r.pad, r.Width+2*r.pad
	retVal := make([]float32, batches*r.Channels*ph*pw)
	planes := batches * r.Channels
	for i := 0; i < planes; i++ {
		src := pixels[i*r.Height*r.Width : (i+1)*r.Height*r.Width]
		dst := retVal[i*ph*pw : (i+1)*ph*pw]
		for y := 0; y < r.Height; y++ {
			start := (y+r.pad)*pw + r.pad
			copy(dst[start:start+r.Width], src[y*r.Width:(y+1)*r.Width])
		}
	}
	return retVal
}

// checkBounds asserts that the extreme locations keep every patch inside the padded image.
func (r *Retina) checkBounds() error {
	extremes := []float32{-1, 1}
	dims := []int{r.Height, r.Width}
	for _, dim := range dims {
		for _, l := range extremes {
			p := pixel(l, dim)
			for _, size := range r.sizes {
				start := p + r.pad - size/2
				if start < 0 || start+size > dim+2*r.pad {
					return errors.Wrapf(ErrOutOfBoundsPatch, "patch of side %d at %v spans [%d, %d) of a padded side of %d", size, l, start, start+size, dim+2*r.pad)
				}
			}
		}
	}
	return nil
}

func (r *Retina) checkShapes(img, loc tensor.Shape) error {
	if img.Dims() != 4 {
		return errors.Wrapf(ErrShapeMismatch, "expected images of shape (batch, %d, %d, %d). Got %v", r.Channels, r.Height, r.Width, img)
	}
	if img[1] != r.Channels || img[2] != r.Height || img[3] != r.Width {
		return errors.Wrapf(ErrShapeMismatch, "expected images of shape (batch, %d, %d, %d). Got %v", r.Channels, r.Height, r.Width, img)
	}
	if loc.Dims() != 2 || loc[1] != 2 {
		return errors.Wrapf(ErrShapeMismatch, "expected locations of shape (batch, 2). Got %v", loc)
	}
	if img[0] != loc[0] {
		return errors.Wrapf(ErrShapeMismatch, "%d images but %d locations", img[0], loc[0])
	}
	return nil
}

func pixel(l float32, dim int) int { return int(0.5 * (l + 1) * float32(dim)) }

func clamp(l float32) float32 {
	switch {
	case l < -1:
		return -1
	case l > 1:
		return 1
	}
	return l
}

func finite(l float32) bool { return !math32.IsNaN(l) && !math32.IsInf(l, 0) }

func contiguous(t *tensor.Dense) *tensor.Dense {
	if t.IsMaterializable() {
		return t.Materialize().(*tensor.Dense)
	}
	return t
}
