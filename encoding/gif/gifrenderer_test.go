package gif

import (
	"bytes"
	"image/color"
	"image/gif"
	"testing"

	"github.com/stretchr/testify/assert"
)

type glimpse struct {
	step, steps int
	pix         []float32
	h, w        int
	row, col    float32
	predicted   bool
}

func (g glimpse) Name() string                              { return "Test" }
func (g glimpse) Episode() int                              { return 1 }
func (g glimpse) Step() int                                 { return g.step }
func (g glimpse) Steps() int                                { return g.steps }
func (g glimpse) Image() (pix []float32, height, width int) { return g.pix, g.h, g.w }
func (g glimpse) Glimpse() (row, col float32)               { return g.row, g.col }
func (g glimpse) PatchSizes() []int                         { return []int{2, 4} }
func (g glimpse) Prediction() (class int, ok bool)          { return 7, g.predicted }

func TestEncoder(t *testing.T) {
	assert := assert.New(t)
	pix := make([]float32, 8*8)
	for i := range pix {
		pix[i] = 1
	}
	pix[0] = 0

	var buf bytes.Buffer
	enc := NewEncoder(&buf, 2)
	for step := 0; step <= 3; step++ {
		ms := glimpse{step: step, steps: 3, pix: pix, h: 8, w: 8, predicted: step == 3}
		if err := enc.Encode(ms); err != nil {
			t.Fatalf("%+v", err)
		}
	}
	if err := enc.Flush(); err != nil {
		t.Fatalf("%+v", err)
	}

	out, err := gif.DecodeAll(&buf)
	if err != nil {
		t.Fatal(err)
	}
	assert.Len(out.Image, 4)
	assert.Equal([]int{50, 50, 50, 300}, out.Delay)

	im := out.Image[0]
	assert.Equal(enc.W, im.Bounds().Dx())
	assert.Equal(enc.H, im.Bounds().Dy())
	// the glimpse at the centre of the image outlines its smallest patch from image pixel (3, 3)
	assert.Equal(boxColour, color.RGBAModel.Convert(im.At(10+3*2, 10+3*2)))
	r, g, b, _ := im.At(10, 10).RGBA()
	assert.Equal([]uint32{0, 0, 0}, []uint32{r, g, b})
	r, g, b, _ = im.At(10+7*2, 10+7*2).RGBA()
	assert.Equal([]uint32{0xffff, 0xffff, 0xffff}, []uint32{r, g, b})
}

func TestEncoderErrors(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf, 1)
	assert.Error(t, enc.Flush())

	assert.Error(t, enc.Encode(glimpse{steps: 1, pix: make([]float32, 3), h: 2, w: 2}))
	assert.NoError(t, enc.Encode(glimpse{steps: 1, pix: make([]float32, 4), h: 2, w: 2}))
	assert.Error(t, enc.Encode(glimpse{steps: 1, pix: make([]float32, 9), h: 3, w: 3}))
}
