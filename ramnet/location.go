package ramnet

import (
	"math/rand"

	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// LocationNet is the stochastic policy that picks where to look next.
//
// Its mean is tanh(fc(h)). A location is sampled by adding N(0, Std²) noise to the mean and squashing the sum with
// tanh again, so both outputs always lie in [-1, 1].
type LocationNet struct {
	Std float64

	fc *fc
}

func newLocationNet(g *G.ExprGraph, hiddenSize int, std float64) *LocationNet {
	return &LocationNet{
		Std: std,
		fc:  newFC(g, hiddenSize, 2, "Location"),
	}
}

// Act returns the policy mean and the sampled location for the hidden state h.
//
// noise (batch, 2) must be drawn from N(0, Std²), see Noise. The mean stays differentiable, so the log density of the
// sample can be differentiated w.r.t. the policy. The sampled location has its gradient path cut: it only feeds the
// next glimpse.
func (ln *LocationNet) Act(h, noise *G.Node) (mu, l *G.Node, err error) {
	if h.Shape().Dims() != 2 {
		return nil, nil, shapeMismatch("hidden state: expected a matrix. Got %v", h.Shape())
	}
	if err = checkShape(noise, tensor.Shape{h.Shape()[0], 2}, "noise"); err != nil {
		return nil, nil, err
	}
	var m maebe
	mu = m.tanh(m.affine(ln.fc, h))
	l = m.stop(m.tanh(m.add(mu, noise)))
	return mu, l, m.err
}

// Noise draws the (batch, 2) perturbation Act adds to the mean. With Std = 0 it is all zeroes.
func (ln *LocationNet) Noise(batchSize int, r *rand.Rand) *tensor.Dense {
	backing := make([]float32, batchSize*2)
	if ln.Std > 0 {
		for i := range backing {
			backing[i] = float32(r.NormFloat64() * ln.Std)
		}
	}
	return tensor.New(tensor.WithShape(batchSize, 2), tensor.WithBacking(backing))
}

func (ln *LocationNet) layers() []*fc { return []*fc{ln.fc} }
