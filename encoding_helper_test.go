package ram

import (
	"bytes"
	"image"
	"image/color"
	"log"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEncodeImage(t *testing.T) {
	assert := assert.New(t)
	gray := image.NewGray(image.Rect(0, 0, 3, 2))
	for i := range gray.Pix {
		gray.Pix[i] = uint8(i * 51)
	}
	enc, err := EncodeImage(gray, 1, nil)
	if err != nil {
		t.Fatal(err)
	}
	assert.InDeltaSlice([]float32{0, 0.2, 0.4, 0.6, 0.8, 1}, enc, 1e-6)

	rgba := image.NewRGBA(image.Rect(0, 0, 2, 1))
	rgba.Set(0, 0, color.RGBA{255, 0, 0, 255})
	rgba.Set(1, 0, color.RGBA{0, 51, 255, 255})
	enc, err = EncodeImage(rgba, 3, make([]float32, 6))
	if err != nil {
		t.Fatal(err)
	}
	assert.InDeltaSlice([]float32{1, 0, 0, 0.2, 0, 1}, enc, 1e-6)

	_, err = EncodeImage(gray, 2, nil)
	assert.Error(err)
}

func TestRotateImage(t *testing.T) {
	//
	// ⎢ 1 2 ⎥      ⎢ 2 4 ⎥
	// ⎢ 3 4 ⎥  ->  ⎢ 1 3 ⎥
	rot, err := RotateImage([]float32{1, 2, 3, 4}, 1, 2, 2)
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, []float32{2, 4, 1, 3}, rot)

	m, n, c := 5, 5, 2
	pix := make([]float32, c*m*n)
	for i := range pix {
		pix[i] = float32(i)
	}
	rot = pix
	for i := 0; i < 4; i++ {
		if rot, err = RotateImage(rot, c, m, n); err != nil {
			t.Fatal(err)
		}
	}
	assert.Equal(t, pix, rot, "After 4 rotations the image should be the same")

	_, err = RotateImage(pix, c, 5, 10)
	assert.Error(t, err)
	_, err = RotateImage(pix, 3, m, n)
	assert.Error(t, err)
}

func TestRotationAugmenter(t *testing.T) {
	aug := RotationAugmenter(1, 2)
	exs := aug(Example{Image: []float32{1, 2, 3, 4}, Label: 3})
	assert.Len(t, exs, 3)
	assert.Equal(t, []float32{2, 4, 1, 3}, exs[0].Image)
	assert.Equal(t, []float32{4, 3, 2, 1}, exs[1].Image)
	for _, ex := range exs {
		assert.Equal(t, 3, ex.Label)
	}

	var buf bytes.Buffer
	log.SetOutput(&buf)
	defer log.SetOutput(os.Stderr)
	assert.Nil(t, aug(Example{Image: []float32{1, 2, 3}, Label: 1}))
	assert.Contains(t, buf.String(), "Not augmenting example of label 1")
}

func TestMakeIterator(t *testing.T) {
	pix := []float32{
		1, 2, 3,
		4, 5, 6,
	}
	it := MakeIterator(pix, 2, 3)
	assert.Equal(t, []float32{4, 5, 6}, it[1])
	it[0][2] = 10
	assert.Equal(t, float32(10), pix[2], "the iterator shares memory with the image")
	ReturnIterator(2, 3, it)
}
