package ram

import (
	"image"
	"image/color"
	"log"

	"github.com/pkg/errors"
	"gorgonia.org/vecf32"
)

// EncodeImage encodes an image as (channels, height, width) float32s in [0, 1]. One channel encodes the luminance,
// three encode red, green and blue.
func EncodeImage(img image.Image, channels int, prealloc []float32) ([]float32, error) {
	b := img.Bounds()
	h, w := b.Dy(), b.Dx()
	size := h * w
	if len(prealloc) != channels*size {
		prealloc = make([]float32, channels*size)
	}

	switch channels {
	case 1:
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				g := color.GrayModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.Gray)
				prealloc[y*w+x] = float32(g.Y)
			}
		}
	case 3:
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				r, g, bl, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
				prealloc[y*w+x] = float32(r >> 8)
				prealloc[size+y*w+x] = float32(g >> 8)
				prealloc[2*size+y*w+x] = float32(bl >> 8)
			}
		}
	default:
		return nil, errors.Errorf("Cannot encode an image into %d channels. Only 1 or 3 channels are supported", channels)
	}
	vecf32.Scale(prealloc, 1/float32(255))
	return prealloc, nil
}

// RotationAugmenter returns an Augmenter that adds the three quarter turns of every square example.
// The rotated examples keep their label, so it only suits classes that do not depend on where things are in the image.
// Examples that cannot be rotated are logged and get no rotations.
func RotationAugmenter(channels, size int) Augmenter {
	return func(ex Example) []Example {
		var retVal []Example
		pix := ex.Image
		for i := 0; i < 3; i++ {
			var err error
			if pix, err = RotateImage(pix, channels, size, size); err != nil {
				log.Printf("Not augmenting example of label %d: %v", ex.Label, err)
				return nil
			}
			retVal = append(retVal, Example{Image: pix, Label: ex.Label})
		}
		return retVal
	}
}

// RotateImage rotates every channel of an image a quarter turn anticlockwise. Only square images can be rotated.
func RotateImage(pix []float32, channels, m, n int) ([]float32, error) {
	if m != n {
		return nil, errors.Errorf("Cannot handle m %d, n %d. This function only takes square images", m, n)
	}
	if len(pix) != channels*m*n {
		return nil, errors.Errorf("Expected %d values for %d channels of %dx%d. Got %d", channels*m*n, channels, m, n, len(pix))
	}
	copied := make([]float32, len(pix))
	copy(copied, pix)
	for c := 0; c < channels; c++ {
		it := MakeIterator(copied[c*m*n:(c+1)*m*n], m, n)
		for i := 0; i < m/2; i++ {
			mi1 := m - i - 1
			for j := i; j < mi1; j++ {
				mj1 := m - j - 1
				tmp := it[i][j]
				// right to top
				it[i][j] = it[j][mi1]

				// bottom to right
				it[j][mi1] = it[mi1][mj1]

				// left to bottom
				it[mi1][mj1] = it[mj1][i]

				// tmp is left
				it[mj1][i] = tmp
			}
		}
		ReturnIterator(m, n, it)
	}
	return copied, nil
}
