package ramnet

import (
	"math"

	"github.com/pkg/errors"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// bwd adds the hybrid loss and its gradients w.r.t. every learnable.
//
// The reward of a sequence is 1 when the prediction is right and 0 otherwise. The cost sums
//   - the negative log likelihood of the labels,
//   - the mean squared error between each step's baseline and the reward,
//   - the REINFORCE term -mean_b Σ_t log π(l_t | h_t) * (R - b_t), with the baseline held constant.
func (d *RAM) bwd() error {
	if d.FwdOnly {
		return nil
	}
	d.Y = G.NewMatrix(d.g, Float, G.WithShape(d.BatchSize, d.NumClasses), G.WithName("Y"))

	var m maebe
	d.reward = m.do(func() (*G.Node, error) { return G.ApplyOp(rewardOp{}, d.logProbs, d.Y) })

	// classification
	nll := m.do(func() (*G.Node, error) { return G.HadamardProd(d.logProbs, d.Y) })
	nll = m.do(func() (*G.Node, error) { return G.Sum(nll, 1) })
	nll = m.do(func() (*G.Node, error) { return G.Mean(nll) })
	nll = m.do(func() (*G.Node, error) { return G.Neg(nll) })

	var baselineCost, reinforce *G.Node
	for t := range d.baselines {
		b := m.reshape(d.baselines[t], tensor.Shape{d.BatchSize})

		mse := m.do(func() (*G.Node, error) { return G.Sub(b, d.reward) })
		mse = m.do(func() (*G.Node, error) { return G.Square(mse) })
		mse = m.do(func() (*G.Node, error) { return G.Mean(mse) })

		held := m.stop(b)
		advantage := m.do(func() (*G.Node, error) { return G.Sub(d.reward, held) })
		logPi := m.logDensity(d.means[t], d.locations[t], d.Std)
		term := m.do(func() (*G.Node, error) { return G.HadamardProd(logPi, advantage) })

		if t == 0 {
			baselineCost, reinforce = mse, term
			continue
		}
		baselineCost = m.add(baselineCost, mse)
		reinforce = m.add(reinforce, term)
	}
	baselineCost = m.scale(baselineCost, 1/float32(d.Steps))
	reinforce = m.do(func() (*G.Node, error) { return G.Mean(reinforce) })
	reinforce = m.do(func() (*G.Node, error) { return G.Neg(reinforce) })

	cost := m.add(m.add(nll, baselineCost), reinforce)
	if m.err != nil {
		return m.err
	}
	G.Read(cost, &d.cost)
	G.Read(d.reward, &d.rewardValue)

	if _, err := G.Grad(cost, d.Model()...); err != nil {
		return errors.WithStack(err)
	}
	return nil
}

// logDensity is log N(l | mu, std²) summed over both coordinates, of shape (batch).
func (m *maebe) logDensity(mu, l *G.Node, std float64) *G.Node {
	diff := m.do(func() (*G.Node, error) { return G.Sub(l, mu) })
	sq := m.do(func() (*G.Node, error) { return G.Square(diff) })
	scaled := m.scale(sq, float32(-1/(2*std*std)))
	norm := G.NewConstant(float32(-math.Log(std) - 0.5*math.Log(2*math.Pi)))
	logp := m.do(func() (*G.Node, error) { return G.Add(scaled, norm) })
	return m.do(func() (*G.Node, error) { return G.Sum(logp, 1) })
}

// Cost returns the cost of the last run. It is NaN for fwd only graphs or before any run.
func (d *RAM) Cost() float32 {
	if d.cost == nil {
		return float32(math.NaN())
	}
	if c, ok := d.cost.Data().(float32); ok {
		return c
	}
	return float32(math.NaN())
}

// Reward returns the per sequence reward of the last run, or nil for fwd only graphs.
func (d *RAM) Reward() *tensor.Dense { return cloneValue(d.rewardValue) }
