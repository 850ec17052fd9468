package ramnet

import (
	"math/rand"

	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// State is what is threaded from one time step to the next. Each step produces a new State; none is updated in place.
type State struct {
	Hidden   *tensor.Dense // (batch, HiddenSize)
	Location *tensor.Dense // (batch, 2), in [-1, 1]
}

// Core integrates glimpses over time with an Elman recurrence:
//
//	h_t = relu(i2h(g_t) + h2h(h_{t-1}))
type Core struct {
	HiddenSize int

	i2h, h2h *fc
}

func newCore(g *G.ExprGraph, inputSize, hiddenSize int) *Core {
	return &Core{
		HiddenSize: hiddenSize,
		i2h:        newFC(g, inputSize, hiddenSize, "Core.I2H"),
		h2h:        newFC(g, hiddenSize, hiddenSize, "Core.H2H"),
	}
}

// Step returns the hidden state after seeing the glimpse embedding g.
func (c *Core) Step(g, hPrev *G.Node) (*G.Node, error) {
	if hPrev.Shape().Dims() != 2 || hPrev.Shape()[1] != c.HiddenSize {
		return nil, shapeMismatch("hidden state: expected (batch, %d). Got %v", c.HiddenSize, hPrev.Shape())
	}
	if g.Shape()[0] != hPrev.Shape()[0] {
		return nil, shapeMismatch("%d glimpses for %d hidden states", g.Shape()[0], hPrev.Shape()[0])
	}
	var m maebe
	retVal := m.rectify(m.add(m.affine(c.i2h, g), m.affine(c.h2h, hPrev)))
	return retVal, m.err
}

// InitState starts a new sequence: a zero hidden state and locations drawn uniformly from [-1, 1].
//
// It must be called for every new sequence; a State is never carried over from one sequence to another.
func (c *Core) InitState(batchSize int, r *rand.Rand) State {
	locs := make([]float32, batchSize*2)
	for i := range locs {
		locs[i] = float32(r.Float64()*2 - 1)
	}
	return State{
		Hidden:   tensor.New(tensor.WithShape(batchSize, c.HiddenSize), tensor.Of(Float)),
		Location: tensor.New(tensor.WithShape(batchSize, 2), tensor.WithBacking(locs)),
	}
}

func (c *Core) layers() []*fc { return []*fc{c.i2h, c.h2h} }
