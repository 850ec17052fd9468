package ramnet

import G "gorgonia.org/gorgonia"

// ActionNet is a linear softmax classifier over the final hidden state.
type ActionNet struct {
	fc *fc
}

func newActionNet(g *G.ExprGraph, hiddenSize, classes int) *ActionNet {
	return &ActionNet{fc: newFC(g, hiddenSize, classes, "Action")}
}

// Classify returns log_softmax(fc(h)), of shape (batch, classes).
func (an *ActionNet) Classify(h *G.Node) (*G.Node, error) {
	var m maebe
	retVal := m.logSoftMax(m.affine(an.fc, h))
	return retVal, m.err
}

func (an *ActionNet) layers() []*fc { return []*fc{an.fc} }

// BaselineNet regresses the expected reward. It only reduces the variance of the policy gradient.
type BaselineNet struct {
	fc *fc
}

func newBaselineNet(g *G.ExprGraph, hiddenSize int) *BaselineNet {
	return &BaselineNet{fc: newFC(g, hiddenSize, 1, "Baseline")}
}

// Baseline returns relu(fc(h)), of shape (batch, 1).
func (bn *BaselineNet) Baseline(h *G.Node) (*G.Node, error) {
	var m maebe
	retVal := m.rectify(m.affine(bn.fc, h))
	return retVal, m.err
}

func (bn *BaselineNet) layers() []*fc { return []*fc{bn.fc} }
