package ramnet

import (
	"github.com/pkg/errors"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/gorgonia/ops/nn"
	"gorgonia.org/tensor"
)

type maebe struct {
	err error
}

// generic monad... may be useful
func (m *maebe) do(f func() (*G.Node, error)) (retVal *G.Node) {
	if m.err != nil {
		return nil
	}
	if retVal, m.err = f(); m.err != nil {
		m.err = errors.WithStack(m.err)
	}
	return
}

// fc is an affine layer. Its parameters are created once and shared by every time step it is applied at.
type fc struct {
	name string
	w, b *G.Node
}

func newFC(g *G.ExprGraph, in, out int, name string) *fc {
	return &fc{
		name: name,
		w:    G.NewMatrix(g, Float, G.WithShape(in, out), G.WithInit(G.GlorotN(1.0)), G.WithName(name+"_w")),
		b:    G.NewMatrix(g, Float, G.WithShape(1, out), G.WithInit(G.Zeroes()), G.WithName(name+"_b")),
	}
}

func (m *maebe) affine(l *fc, input *G.Node) *G.Node {
	if m.err != nil {
		return nil
	}
	xw := m.do(func() (*G.Node, error) { return G.Mul(input, l.w) })
	return m.do(func() (*G.Node, error) { return G.BroadcastAdd(xw, l.b, nil, []byte{0}) })
}

func (m *maebe) rectify(input *G.Node) (retVal *G.Node) {
	if m.err != nil {
		return nil
	}
	if retVal, m.err = nnops.Rectify(input); m.err != nil {
		m.err = errors.WithStack(m.err)
	}
	return
}

func (m *maebe) tanh(input *G.Node) *G.Node {
	return m.do(func() (*G.Node, error) { return G.Tanh(input) })
}

func (m *maebe) add(a, b *G.Node) *G.Node {
	return m.do(func() (*G.Node, error) { return G.Add(a, b) })
}

func (m *maebe) stop(input *G.Node) *G.Node {
	return m.do(func() (*G.Node, error) { return StopGradient(input) })
}

func (m *maebe) reshape(input *G.Node, to tensor.Shape) (retVal *G.Node) {
	if m.err != nil {
		return nil
	}
	if retVal, m.err = G.Reshape(input, to); m.err != nil {
		m.err = errors.WithStack(m.err)
	}
	return
}

// logSoftMax is computed row-wise as x - max(x) - log(Σ exp(x - max(x))).
// The row maximum only shifts the logits, so it does not take part in differentiation.
func (m *maebe) logSoftMax(input *G.Node) *G.Node {
	if m.err != nil {
		return nil
	}
	rows := input.Shape()[0]
	max := m.do(func() (*G.Node, error) { return G.Max(input, 1) })
	max = m.reshape(m.stop(max), tensor.Shape{rows, 1})
	shifted := m.do(func() (*G.Node, error) { return G.BroadcastSub(input, max, nil, []byte{1}) })

	lse := m.do(func() (*G.Node, error) { return G.Exp(shifted) })
	lse = m.do(func() (*G.Node, error) { return G.Sum(lse, 1) })
	lse = m.do(func() (*G.Node, error) { return G.Log(lse) })
	lse = m.reshape(lse, tensor.Shape{rows, 1})
	return m.do(func() (*G.Node, error) { return G.BroadcastSub(shifted, lse, nil, []byte{1}) })
}

func (m *maebe) scale(input *G.Node, by float32) *G.Node {
	return m.do(func() (*G.Node, error) { return G.Mul(input, G.NewConstant(by)) })
}
