package ramnet

import (
	"bytes"
	"log"
	"math/rand"

	"github.com/pkg/errors"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// StepResult is what a single time step produces.
type StepResult struct {
	Glimpse  *tensor.Dense // (batch, 2), where this step looked
	Hidden   *tensor.Dense // (batch, HiddenSize)
	Mean     *tensor.Dense // (batch, 2)
	Location *tensor.Dense // (batch, 2), the next place to look
	Baseline *tensor.Dense // (batch, 1)
}

// Inferencer runs a trained *RAM one time step at a time. It holds two forward only graphs: one for a single
// glimpse-core-location-baseline step, and one for the classifier. The caller owns the State between steps.
type Inferencer struct {
	Config
	rng *rand.Rand

	g, hg    *G.ExprGraph
	glimpse  *GlimpseNet
	core     *Core
	locator  *LocationNet
	action   *ActionNet
	baseline *BaselineNet

	images, hPrev, lPrev, noise *G.Node
	hFinal                      *G.Node

	hidden, mean, loc, base G.Value
	logProbs                G.Value

	m, hm G.VM
	buf   *bytes.Buffer
}

// Infer takes a *RAM, and creates an inference data structure for the given batch size with a copy of its learned values.
func Infer(d *RAM, batchSize int, toLog bool) (*Inferencer, error) {
	conf := d.Config
	conf.FwdOnly = true
	conf.BatchSize = batchSize
	if !conf.IsValid() {
		return nil, errors.Errorf("invalid configuration for inference: %+v", conf)
	}
	r, err := conf.Retina()
	if err != nil {
		return nil, err
	}

	retVal := &Inferencer{
		Config: conf,
		rng:    rand.New(rand.NewSource(conf.Seed)),
		g:      G.NewGraph(),
		hg:     G.NewGraph(),
		buf:    new(bytes.Buffer),
	}
	retVal.glimpse = newGlimpseNet(retVal.g, r, conf.HiddenG, conf.HiddenL)
	retVal.core = newCore(retVal.g, conf.GlimpseSize(), conf.HiddenSize)
	retVal.locator = newLocationNet(retVal.g, conf.HiddenSize, conf.Std)
	retVal.baseline = newBaselineNet(retVal.g, conf.HiddenSize)
	retVal.action = newActionNet(retVal.hg, conf.HiddenSize, conf.NumClasses)

	if err = retVal.fwd(); err != nil {
		return nil, err
	}
	if err = copyModel(retVal.Model(), d.Model()); err != nil {
		return nil, err
	}

	if toLog {
		logger := log.New(retVal.buf, "", 0)
		retVal.m = G.NewTapeMachine(retVal.g,
			G.WithLogger(logger),
			G.WithWatchlist(),
			G.TraceExec(),
			G.WithValueFmt("%+1.1v"),
			G.WithNaNWatch(),
		)
		retVal.hm = G.NewTapeMachine(retVal.hg,
			G.WithLogger(logger),
			G.WithWatchlist(),
			G.TraceExec(),
			G.WithValueFmt("%+1.1v"),
			G.WithNaNWatch(),
		)
	} else {
		retVal.m = G.NewTapeMachine(retVal.g)
		retVal.hm = G.NewTapeMachine(retVal.hg)
	}
	return retVal, nil
}

func (m *Inferencer) fwd() error {
	m.images = G.NewTensor(m.g, Float, 4, G.WithShape(m.BatchSize, m.Channels, m.Height, m.Width), G.WithName("Images"))
	m.hPrev = G.NewMatrix(m.g, Float, G.WithShape(m.BatchSize, m.HiddenSize), G.WithName("HPrev"))
	m.lPrev = G.NewMatrix(m.g, Float, G.WithShape(m.BatchSize, 2), G.WithName("LPrev"))
	m.noise = G.NewMatrix(m.g, Float, G.WithShape(m.BatchSize, 2), G.WithName("Noise"))

	g, err := m.glimpse.Encode(m.images, m.lPrev)
	if err != nil {
		return err
	}
	h, err := m.core.Step(g, m.hPrev)
	if err != nil {
		return err
	}
	mu, l, err := m.locator.Act(h, m.noise)
	if err != nil {
		return err
	}
	b, err := m.baseline.Baseline(h)
	if err != nil {
		return err
	}
	G.Read(h, &m.hidden)
	G.Read(mu, &m.mean)
	G.Read(l, &m.loc)
	G.Read(b, &m.base)

	m.hFinal = G.NewMatrix(m.hg, Float, G.WithShape(m.BatchSize, m.HiddenSize), G.WithName("HFinal"))
	logProbs, err := m.action.Classify(m.hFinal)
	if err != nil {
		return err
	}
	G.Read(logProbs, &m.logProbs)
	return nil
}

// Model returns the learnables in the same order as (*RAM).Model.
func (m *Inferencer) Model() G.Nodes {
	var retVal G.Nodes
	var layers []*fc
	layers = append(layers, m.glimpse.layers()...)
	layers = append(layers, m.core.layers()...)
	layers = append(layers, m.locator.layers()...)
	layers = append(layers, m.action.layers()...)
	layers = append(layers, m.baseline.layers()...)
	for _, l := range layers {
		retVal = append(retVal, l.w, l.b)
	}
	return retVal
}

// Reseed restarts the random source of the initial locations and the policy noise.
func (m *Inferencer) Reseed(seed int64) {
	m.Config.Seed = seed
	m.rng.Seed(seed)
}

// InitState starts a new sequence.
func (m *Inferencer) InitState() State { return m.core.InitState(m.BatchSize, m.rng) }

// Noise draws the policy noise for one time step.
func (m *Inferencer) Noise() *tensor.Dense { return m.locator.Noise(m.BatchSize, m.rng) }

// Step takes one glimpse of images at s.Location and returns the next hidden state and location.
func (m *Inferencer) Step(images *tensor.Dense, s State, noise *tensor.Dense) (retVal StepResult, err error) {
	if err = checkDense(images, m.images.Shape(), "images"); err != nil {
		return
	}
	if err = checkDense(s.Hidden, m.hPrev.Shape(), "hidden state"); err != nil {
		return
	}
	if err = checkDense(s.Location, m.lPrev.Shape(), "location"); err != nil {
		return
	}
	if err = checkDense(noise, m.noise.Shape(), "noise"); err != nil {
		return
	}

	m.buf.Reset()
	m.m.Reset()
	if err = letAll(binding{m.images, images}, binding{m.hPrev, s.Hidden}, binding{m.lPrev, s.Location}, binding{m.noise, noise}); err != nil {
		return retVal, err
	}
	if err = m.m.RunAll(); err != nil {
		return retVal, err
	}
	return StepResult{
		Glimpse:  s.Location,
		Hidden:   cloneValue(m.hidden),
		Mean:     cloneValue(m.mean),
		Location: cloneValue(m.loc),
		Baseline: cloneValue(m.base),
	}, nil
}

// Classify returns the log class probabilities given the last hidden state.
func (m *Inferencer) Classify(hidden *tensor.Dense) (*tensor.Dense, error) {
	if err := checkDense(hidden, m.hFinal.Shape(), "hidden state"); err != nil {
		return nil, err
	}
	m.hm.Reset()
	if err := letAll(binding{m.hFinal, hidden}); err != nil {
		return nil, err
	}
	if err := m.hm.RunAll(); err != nil {
		return nil, err
	}
	return cloneValue(m.logProbs), nil
}

// Run glimpses at images for Steps time steps from a fresh state, then classifies them.
// watch, if not nil, is called after every step.
func (m *Inferencer) Run(images *tensor.Dense, watch func(t int, r StepResult) error) (*Episode, error) {
	s := m.InitState()
	retVal := new(Episode)
	for t := 0; t < m.Steps; t++ {
		r, err := m.Step(images, s, m.Noise())
		if err != nil {
			return nil, errors.WithMessagef(err, "step %d", t)
		}
		retVal.Means = append(retVal.Means, r.Mean)
		retVal.Locations = append(retVal.Locations, r.Location)
		retVal.Baselines = append(retVal.Baselines, r.Baseline)
		if watch != nil {
			if err = watch(t, r); err != nil {
				return nil, err
			}
		}
		s = State{Hidden: r.Hidden, Location: r.Location}
	}
	var err error
	retVal.Hidden = s.Hidden
	if retVal.LogProbs, err = m.Classify(s.Hidden); err != nil {
		return nil, err
	}
	return retVal, nil
}

// ExecLog returns the execution log of the last step. If Infer was called with toLog = false, then it will return an empty string
func (m *Inferencer) ExecLog() string { return m.buf.String() }

// Close implements a closer, because well, a gorgonia VM is a resource.
func (m *Inferencer) Close() error {
	var allErrs manyErr
	if err := m.m.Close(); err != nil {
		allErrs = append(allErrs, err)
	}
	if err := m.hm.Close(); err != nil {
		allErrs = append(allErrs, err)
	}
	if len(allErrs) > 0 {
		return allErrs
	}
	return nil
}
