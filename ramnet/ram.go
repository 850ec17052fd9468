package ramnet

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"math/rand"

	"github.com/gorgonia/ram/retina"
	"github.com/pkg/errors"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// RAM is the recurrent attention model unrolled over Steps glimpses.
//
// Every time step reuses the same GlimpseNet, Core, LocationNet and BaselineNet parameters; the ActionNet only reads
// the last hidden state. Unless FwdOnly is set, the graph also holds the hybrid loss and its gradients.
type RAM struct {
	Config
	retina *retina.Retina
	rng    *rand.Rand

	g        *G.ExprGraph
	glimpse  *GlimpseNet
	core     *Core
	locator  *LocationNet
	action   *ActionNet
	baseline *BaselineNet

	// inputs
	images *G.Node
	h0, l0 *G.Node
	noise  []*G.Node
	Y      *G.Node // one-hot labels

	// outputs
	hidden    *G.Node
	logProbs  *G.Node
	means     []*G.Node
	locations []*G.Node
	baselines []*G.Node
	reward    *G.Node

	hiddenValue    G.Value
	logProbsValue  G.Value
	meanValues     []G.Value
	locationValues []G.Value
	baselineValues []G.Value
	rewardValue    G.Value
	cost           G.Value // cost, for training recording
}

// New returns a new, uninitialized *RAM.
func New(conf Config) *RAM {
	return &RAM{
		Config: conf,
		rng:    rand.New(rand.NewSource(conf.Seed)),
	}
}

func (d *RAM) Init() error {
	d.reset()
	var err error
	if d.retina, err = d.Config.Retina(); err != nil {
		return err
	}
	d.g = G.NewGraph()
	d.build(d.g)
	if err = d.fwd(); err != nil {
		return err
	}
	return d.bwd()
}

// build creates the learnable components in g.
func (d *RAM) build(g *G.ExprGraph) {
	d.glimpse = newGlimpseNet(g, d.retina, d.HiddenG, d.HiddenL)
	d.core = newCore(g, d.GlimpseSize(), d.HiddenSize)
	d.locator = newLocationNet(g, d.HiddenSize, d.Std)
	d.action = newActionNet(g, d.HiddenSize, d.NumClasses)
	d.baseline = newBaselineNet(g, d.HiddenSize)
}

func (d *RAM) fwd() (err error) {
	// note, the images should be arranged like so:
	//	BatchSize, Channels, Height, Width
	d.images = G.NewTensor(d.g, Float, 4, G.WithShape(d.BatchSize, d.Channels, d.Height, d.Width), G.WithName("Images"))
	d.h0 = G.NewMatrix(d.g, Float, G.WithShape(d.BatchSize, d.HiddenSize), G.WithName("H0"))
	d.l0 = G.NewMatrix(d.g, Float, G.WithShape(d.BatchSize, 2), G.WithName("L0"))

	d.meanValues = make([]G.Value, d.Steps)
	d.locationValues = make([]G.Value, d.Steps)
	d.baselineValues = make([]G.Value, d.Steps)

	h, l := d.h0, d.l0
	for t := 0; t < d.Steps; t++ {
		noise := G.NewMatrix(d.g, Float, G.WithShape(d.BatchSize, 2), G.WithName(fmt.Sprintf("Noise%d", t)))
		var g, mu, b *G.Node
		if g, err = d.glimpse.Encode(d.images, l); err != nil {
			return errors.WithMessage(err, fmt.Sprintf("glimpse %d", t))
		}
		if h, err = d.core.Step(g, h); err != nil {
			return errors.WithMessage(err, fmt.Sprintf("core %d", t))
		}
		if mu, l, err = d.locator.Act(h, noise); err != nil {
			return errors.WithMessage(err, fmt.Sprintf("location %d", t))
		}
		if b, err = d.baseline.Baseline(h); err != nil {
			return errors.WithMessage(err, fmt.Sprintf("baseline %d", t))
		}
		d.noise = append(d.noise, noise)
		d.means = append(d.means, mu)
		d.locations = append(d.locations, l)
		d.baselines = append(d.baselines, b)

		G.Read(mu, &d.meanValues[t])
		G.Read(l, &d.locationValues[t])
		G.Read(b, &d.baselineValues[t])
	}

	d.hidden = h
	if d.logProbs, err = d.action.Classify(h); err != nil {
		return errors.WithMessage(err, "action")
	}
	G.Read(d.hidden, &d.hiddenValue)
	G.Read(d.logProbs, &d.logProbsValue)
	return nil
}

// Model returns the learnables, in a fixed order.
func (d *RAM) Model() G.Nodes {
	var retVal G.Nodes
	for _, l := range d.layers() {
		retVal = append(retVal, l.w, l.b)
	}
	return retVal
}

func (d *RAM) layers() []*fc {
	var retVal []*fc
	retVal = append(retVal, d.glimpse.layers()...)
	retVal = append(retVal, d.core.layers()...)
	retVal = append(retVal, d.locator.layers()...)
	retVal = append(retVal, d.action.layers()...)
	retVal = append(retVal, d.baseline.layers()...)
	return retVal
}

// Graph returns the expression graph, to create a VM with.
func (d *RAM) Graph() *G.ExprGraph { return d.g }

// InitState draws the state a new sequence starts from.
func (d *RAM) InitState() State { return d.core.InitState(d.BatchSize, d.rng) }

// Noise draws the policy noise of every time step.
func (d *RAM) Noise() []*tensor.Dense {
	retVal := make([]*tensor.Dense, d.Steps)
	for i := range retVal {
		retVal[i] = d.locator.Noise(d.BatchSize, d.rng)
	}
	return retVal
}

// Feed binds images and labels, starting from a freshly drawn state and noise. labels are ignored by fwd only graphs.
func (d *RAM) Feed(images, labels *tensor.Dense) error {
	return d.Bind(images, labels, d.InitState(), d.Noise())
}

// Bind lets the inputs of the graph. Every argument is checked against the configured shapes before anything is bound.
func (d *RAM) Bind(images, labels *tensor.Dense, s State, noise []*tensor.Dense) error {
	if err := checkDense(images, d.images.Shape(), "images"); err != nil {
		return err
	}
	if err := checkDense(s.Hidden, d.h0.Shape(), "hidden state"); err != nil {
		return err
	}
	if err := checkDense(s.Location, d.l0.Shape(), "location"); err != nil {
		return err
	}
	if len(noise) != d.Steps {
		return shapeMismatch("expected noise for %d steps. Got %d", d.Steps, len(noise))
	}
	for t, n := range noise {
		if err := checkDense(n, d.noise[t].Shape(), fmt.Sprintf("noise %d", t)); err != nil {
			return err
		}
	}
	if !d.FwdOnly {
		if err := checkDense(labels, d.Y.Shape(), "labels"); err != nil {
			return err
		}
	}

	bs := []binding{{d.images, images}, {d.h0, s.Hidden}, {d.l0, s.Location}}
	for t, n := range noise {
		bs = append(bs, binding{d.noise[t], n})
	}
	if !d.FwdOnly {
		bs = append(bs, binding{d.Y, labels})
	}
	return letAll(bs...)
}

// Episode collects the outputs of the last run.
func (d *RAM) Episode() *Episode {
	retVal := &Episode{
		LogProbs: cloneValue(d.logProbsValue),
		Hidden:   cloneValue(d.hiddenValue),
	}
	for t := 0; t < d.Steps; t++ {
		retVal.Means = append(retVal.Means, cloneValue(d.meanValues[t]))
		retVal.Locations = append(retVal.Locations, cloneValue(d.locationValues[t]))
		retVal.Baselines = append(retVal.Baselines, cloneValue(d.baselineValues[t]))
	}
	return retVal
}

func (d *RAM) Clone() (*RAM, error) {
	d2 := New(d.Config)
	if err := d2.Init(); err != nil {
		return nil, err
	}
	if err := copyModel(d2.Model(), d.Model()); err != nil {
		return nil, err
	}
	return d2, nil
}

func (d *RAM) reset() {
	d.g = nil
	d.images, d.h0, d.l0, d.Y = nil, nil, nil, nil
	d.noise = nil
	d.hidden, d.logProbs, d.reward = nil, nil, nil
	d.means, d.locations, d.baselines = nil, nil, nil
	d.hiddenValue, d.logProbsValue, d.rewardValue, d.cost = nil, nil, nil, nil
	d.meanValues, d.locationValues, d.baselineValues = nil, nil, nil
}

func (d *RAM) GobEncode() (retVal []byte, err error) {
	var buf bytes.Buffer
	enc := gob.NewEncoder(&buf)
	for _, n := range d.Model() {
		v := n.Value()
		if err = enc.Encode(&v); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

func (d *RAM) GobDecode(p []byte) error {
	if d.rng == nil {
		d.rng = rand.New(rand.NewSource(d.Seed))
	}
	if err := d.Init(); err != nil {
		return err
	}

	buf := bytes.NewBuffer(p)
	dec := gob.NewDecoder(buf)
	for _, n := range d.Model() {
		var v G.Value
		if err := dec.Decode(&v); err != nil {
			return err
		}
		if err := G.Let(n, v); err != nil {
			return err
		}
	}
	return nil
}
