package ramnet

import (
	"github.com/gorgonia/ram/retina"
	G "gorgonia.org/gorgonia"
)

// GlimpseNet fuses what the retina sees with where it looked.
//
//	what  = what2(relu(what1(ρ(x, l))))
//	where = where2(relu(where1(l)))
//	g     = relu(what + where)
//
// Both streams end in HiddenG+HiddenL units so they can be summed.
type GlimpseNet struct {
	retina *retina.Retina

	what1, what2   *fc
	where1, where2 *fc
}

func newGlimpseNet(g *G.ExprGraph, r *retina.Retina, hiddenG, hiddenL int) *GlimpseNet {
	return &GlimpseNet{
		retina: r,
		what1:  newFC(g, r.Features(), hiddenG, "Glimpse.What1"),
		what2:  newFC(g, hiddenG, hiddenG+hiddenL, "Glimpse.What2"),
		where1: newFC(g, 2, hiddenL, "Glimpse.Where1"),
		where2: newFC(g, hiddenL, hiddenG+hiddenL, "Glimpse.Where2"),
	}
}

// Encode returns the glimpse embedding of images x (batch, C, H, W) seen at l (batch, 2). It has shape (batch, HiddenG+HiddenL).
func (gn *GlimpseNet) Encode(x, l *G.Node) (*G.Node, error) {
	var m maebe
	glimpse := m.do(func() (*G.Node, error) { return gn.retina.Apply(x, l) })
	what := m.affine(gn.what2, m.rectify(m.affine(gn.what1, glimpse)))
	where := m.affine(gn.where2, m.rectify(m.affine(gn.where1, l)))
	retVal := m.rectify(m.add(what, where))
	return retVal, m.err
}

func (gn *GlimpseNet) layers() []*fc { return []*fc{gn.what1, gn.what2, gn.where1, gn.where2} }
