package ram

import (
	"github.com/gorgonia/ram/retina"
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// frame is the MetaState of the watched batch element. One frame is reused for every glimpse of an observation.
type frame struct {
	name                 string
	episode, step, steps int

	pix  []float32
	h, w int

	row, col float32
	sizes    []int

	prediction int
	predicted  bool
}

func (a *Agent) newFrame(images *tensor.Dense, episode int) (*frame, error) {
	conf := a.nnConf
	want := tensor.Shape{conf.BatchSize, conf.Channels, conf.Height, conf.Width}
	if !images.Shape().Eq(want) {
		return nil, errors.Wrapf(retina.ErrShapeMismatch, "expected images of shape %v. Got %v", want, images.Shape())
	}
	if images.IsMaterializable() {
		images = images.Materialize().(*tensor.Dense)
	}
	data, ok := images.Data().([]float32)
	if !ok {
		return nil, errors.Errorf("expected float32 images. Got %v", images.Dtype())
	}

	plane := conf.Height * conf.Width
	start := a.watch * conf.Channels * plane
	pix := make([]float32, plane)
	copy(pix, data[start:start+plane])
	return &frame{
		name:    a.name,
		episode: episode,
		steps:   conf.Steps,
		pix:     pix,
		h:       conf.Height,
		w:       conf.Width,
		sizes:   a.sizes,
	}, nil
}

func (f *frame) Name() string                              { return f.name }
func (f *frame) Episode() int                              { return f.episode }
func (f *frame) Step() int                                 { return f.step }
func (f *frame) Steps() int                                { return f.steps }
func (f *frame) Image() (pix []float32, height, width int) { return f.pix, f.h, f.w }
func (f *frame) Glimpse() (row, col float32)               { return f.row, f.col }
func (f *frame) PatchSizes() []int                         { return f.sizes }
func (f *frame) Prediction() (class int, ok bool)          { return f.prediction, f.predicted }
