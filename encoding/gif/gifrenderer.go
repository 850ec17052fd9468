package gif

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/gif"
	"io"
	"math"

	"github.com/chewxy/math32"
	"github.com/golang/freetype/truetype"
	"github.com/gorgonia/ram"
	"github.com/pkg/errors"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/math/fixed"
)

var regular *truetype.Font

const (
	dpi             = 72.0
	fontsize        = 10.0
	lineheight      = 1.2
	dummyLongString = `Episode 10000, Glimpse 10/10`

	grays = 250
)

func init() {
	var err error
	if regular, err = truetype.Parse(gomono.TTF); err != nil {
		panic(err)
	}
}

var (
	boxColour  = color.RGBA{220, 20, 60, 255}
	textColour = color.RGBA{20, 20, 160, 255}
)

// globPalette holds the grays the image is drawn with, then the colours of the boxes and the text.
var globPalette = func() color.Palette {
	p := make(color.Palette, 0, grays+2)
	for i := 0; i < grays; i++ {
		p = append(p, color.Gray{uint8(i * 255 / (grays - 1))})
	}
	return append(p, boxColour, textColour)
}()

const boxIndex = grays

// Encoder is a structure that encodes glimpses according to the ram.OutputEncoder interface.
//
// Every glimpse becomes one frame: the watched image, one box per patch of the glimpse, and a caption.
type Encoder struct {
	H, W  int
	Scale int // every pixel of the image is drawn as a Scale×Scale square
	font.Drawer

	out *gif.GIF
	io.Writer
	face font.Face

	imgH, imgW  int // size of the image, in pixels of the frame
	padH, padW  int // padding so everything don't start at the topleft
	dy          int
	initialized bool
}

// NewEncoder creates an Encoder that writes into w when flushed.
func NewEncoder(w io.Writer, scale int) *Encoder {
	if scale < 1 {
		scale = 1
	}
	return &Encoder{
		H:      -1,
		W:      -1,
		Scale:  scale,
		padH:   10,
		padW:   10,
		Writer: w,

		Drawer: font.Drawer{
			Src: image.NewUniform(textColour),
		},
		out: &gif.GIF{LoopCount: 0},
	}
}

// Encode a glimpse
func (enc *Encoder) Encode(ms ram.MetaState) error {
	pix, h, w := ms.Image()
	if len(pix) != h*w {
		return errors.Errorf("expected %d×%d pixels. Got %d", h, w, len(pix))
	}

	if !enc.initialized {
		// lazy init of the canvas geometry
		enc.face = truetype.NewFace(regular, &truetype.Options{
			Size:    fontsize,
			DPI:     dpi,
			Hinting: font.HintingFull,
		})
		enc.Drawer.Face = enc.face

		enc.imgH, enc.imgW = h*enc.Scale, w*enc.Scale
		enc.dy = int(math.Ceil(fontsize * lineheight * dpi / 72))
		textW := maxInt(font.MeasureString(enc.face, ms.Name()).Ceil(), font.MeasureString(enc.face, dummyLongString).Ceil())
		enc.W = maxInt(enc.imgW, textW) + 2*enc.padW
		enc.H = enc.imgH + 3*enc.dy + 2*enc.padH // 3 lines: name, glimpse, prediction
		enc.initialized = true
	}
	if h*enc.Scale != enc.imgH || w*enc.Scale != enc.imgW {
		return errors.Errorf("every frame must show an image of the same size. Expected %d×%d, got %d×%d", enc.imgH/enc.Scale, enc.imgW/enc.Scale, h, w)
	}

	im := image.NewPaletted(image.Rect(0, 0, enc.W, enc.H), globPalette)
	draw.Draw(im, im.Bounds(), image.White, image.Point{}, draw.Src)
	enc.drawImage(im, pix, h, w)

	done := ms.Step() >= ms.Steps()
	row, col := ms.Glimpse()
	enc.drawGlimpse(im, row, col, h, w, ms.PatchSizes())

	enc.Dst = im
	y := enc.padH + enc.imgH + enc.dy
	enc.Dot = fixed.P(enc.padW, y)
	enc.DrawString(ms.Name())
	y += enc.dy

	enc.Dot = fixed.P(enc.padW, y)
	if done {
		enc.DrawString(fmt.Sprintf("Episode %d, Done", ms.Episode()))
	} else {
		enc.DrawString(fmt.Sprintf("Episode %d, Glimpse %d/%d", ms.Episode(), ms.Step()+1, ms.Steps()))
	}
	y += enc.dy

	delay := 50
	if class, ok := ms.Prediction(); ok {
		delay = 300
		enc.Dot = fixed.P(enc.padW, y)
		enc.DrawString(fmt.Sprintf("Prediction: %d", class))
	}
	enc.out.Image = append(enc.out.Image, im)
	enc.out.Delay = append(enc.out.Delay, delay)
	return nil
}

// Flush writes the gif into the writer
func (enc *Encoder) Flush() error {
	if len(enc.out.Image) == 0 {
		return errors.Errorf("nothing to flush")
	}
	return gif.EncodeAll(enc.Writer, enc.out)
}

// drawImage draws pix, expected in [0, 1], in gray.
func (enc *Encoder) drawImage(im *image.Paletted, pix []float32, h, w int) {
	it := ram.MakeIterator(pix, h, w)
	defer ram.ReturnIterator(h, w, it)
	for y, row := range it {
		for x, v := range row {
			idx := uint8(clamp(v, 0, 1)*(grays-1) + 0.5)
			top, left := enc.padH+y*enc.Scale, enc.padW+x*enc.Scale
			for dy := 0; dy < enc.Scale; dy++ {
				for dx := 0; dx < enc.Scale; dx++ {
					im.SetColorIndex(left+dx, top+dy, idx)
				}
			}
		}
	}
}

// drawGlimpse outlines the patches of a glimpse at (row, col), clipped to the image.
func (enc *Encoder) drawGlimpse(im *image.Paletted, row, col float32, h, w int, sizes []int) {
	if math32.IsNaN(row) || math32.IsNaN(col) {
		return
	}
	cy := int(0.5 * (clamp(row, -1, 1) + 1) * float32(h))
	cx := int(0.5 * (clamp(col, -1, 1) + 1) * float32(w))
	bounds := image.Rect(enc.padW, enc.padH, enc.padW+enc.imgW, enc.padH+enc.imgH)
	for _, size := range sizes {
		top, left := cy-size/2, cx-size/2
		r := image.Rect(left*enc.Scale, top*enc.Scale, (left+size)*enc.Scale, (top+size)*enc.Scale).Add(bounds.Min)
		outline(im, r, bounds)
	}
}

func outline(im *image.Paletted, r, clip image.Rectangle) {
	set := func(x, y int) {
		if (image.Point{x, y}).In(clip) {
			im.SetColorIndex(x, y, boxIndex)
		}
	}
	for x := r.Min.X; x < r.Max.X; x++ {
		set(x, r.Min.Y)
		set(x, r.Max.Y-1)
	}
	for y := r.Min.Y; y < r.Max.Y; y++ {
		set(r.Min.X, y)
		set(r.Max.X-1, y)
	}
}

func clamp(v, lo, hi float32) float32 {
	switch {
	case v < lo:
		return lo
	case v > hi:
		return hi
	}
	return v
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
