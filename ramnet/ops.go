package ramnet

import (
	"fmt"
	"hash"
	"hash/fnv"

	"github.com/chewxy/hm"
	"github.com/pkg/errors"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// StopGradient returns a node with the value of x that symbolic differentiation treats as a constant.
//
// Gradients of anything computed from the result never reach the nodes x was computed from.
func StopGradient(x *G.Node) (*G.Node, error) {
	if x.Shape().Dims() == 0 {
		return nil, errors.Errorf("StopGradient expects a tensor. Got the scalar %v", x)
	}
	return G.ApplyOp(stopGradOp{dims: x.Shape().Dims()}, x)
}

type stopGradOp struct{ dims int }

func (op stopGradOp) Arity() int { return 1 }

func (op stopGradOp) Type() hm.Type {
	t := G.TensorType{Dims: op.dims, Of: hm.TypeVariable('a')}
	return hm.NewFnType(t, t)
}

func (op stopGradOp) InferShape(inputs ...G.DimSizer) (tensor.Shape, error) {
	if len(inputs) != 1 {
		return nil, errors.Errorf("%v expects 1 input. Got %d", op, len(inputs))
	}
	retVal := make(tensor.Shape, op.dims)
	for i := range retVal {
		var err error
		if retVal[i], err = inputs[0].DimSize(i); err != nil {
			return nil, err
		}
	}
	return retVal, nil
}

func (op stopGradOp) Do(vals ...G.Value) (G.Value, error) {
	if len(vals) != 1 {
		return nil, errors.Errorf("%v expects 1 value. Got %d", op, len(vals))
	}
	t, ok := vals[0].(*tensor.Dense)
	if !ok {
		return nil, errors.Errorf("%v expects a *tensor.Dense. Got %T", op, vals[0])
	}
	return t.Clone().(*tensor.Dense), nil
}

func (op stopGradOp) ReturnsPtr() bool      { return false }
func (op stopGradOp) CallsExtern() bool     { return false }
func (op stopGradOp) OverwritesInput() int  { return -1 }
func (op stopGradOp) WriteHash(h hash.Hash) { fmt.Fprint(h, op.String()) }
func (op stopGradOp) String() string        { return fmt.Sprintf("StopGradient%d", op.dims) }

func (op stopGradOp) Hashcode() uint32 {
	h := fnv.New32a()
	op.WriteHash(h)
	return h.Sum32()
}

func (op stopGradOp) DiffWRT(inputs int) []bool { return make([]bool, inputs) }

func (op stopGradOp) SymDiff(inputs G.Nodes, output, grad *G.Node) (G.Nodes, error) {
	return nil, errors.Errorf("%v is not differentiable", op)
}

// rewardOp takes log probabilities and one-hot labels, both (batch, classes), and returns a (batch) vector holding 1
// where the most likely class is the labelled one and 0 elsewhere.
type rewardOp struct{}

func (op rewardOp) Arity() int { return 2 }

func (op rewardOp) Type() hm.Type {
	a := hm.TypeVariable('a')
	m := G.TensorType{Dims: 2, Of: a}
	return hm.NewFnType(m, m, G.TensorType{Dims: 1, Of: a})
}

func (op rewardOp) InferShape(inputs ...G.DimSizer) (tensor.Shape, error) {
	if len(inputs) != 2 {
		return nil, errors.Errorf("%v expects 2 inputs. Got %d", op, len(inputs))
	}
	batches, err := inputs[0].DimSize(0)
	if err != nil {
		return nil, err
	}
	return tensor.Shape{batches}, nil
}

func (op rewardOp) Do(vals ...G.Value) (G.Value, error) {
	if len(vals) != 2 {
		return nil, errors.Errorf("%v expects 2 values. Got %d", op, len(vals))
	}
	logProbs, ok := vals[0].(*tensor.Dense)
	if !ok {
		return nil, errors.Errorf("%v expects a *tensor.Dense. Got %T", op, vals[0])
	}
	labels, ok := vals[1].(*tensor.Dense)
	if !ok {
		return nil, errors.Errorf("%v expects a *tensor.Dense. Got %T", op, vals[1])
	}
	if !logProbs.Shape().Eq(labels.Shape()) {
		return nil, shapeMismatch("%v: log probabilities %v, labels %v", op, logProbs.Shape(), labels.Shape())
	}
	rows, cols := logProbs.Shape()[0], logProbs.Shape()[1]
	lp := contiguous(logProbs).Data().([]float32)
	ys := contiguous(labels).Data().([]float32)
	retVal := make([]float32, rows)
	for i := range retVal {
		if argmax(lp[i*cols:(i+1)*cols]) == argmax(ys[i*cols:(i+1)*cols]) {
			retVal[i] = 1
		}
	}
	return tensor.New(tensor.WithShape(rows), tensor.WithBacking(retVal)), nil
}

func (op rewardOp) ReturnsPtr() bool      { return false }
func (op rewardOp) CallsExtern() bool     { return false }
func (op rewardOp) OverwritesInput() int  { return -1 }
func (op rewardOp) WriteHash(h hash.Hash) { fmt.Fprint(h, op.String()) }
func (op rewardOp) String() string        { return "Reward" }

func (op rewardOp) Hashcode() uint32 {
	h := fnv.New32a()
	op.WriteHash(h)
	return h.Sum32()
}

func (op rewardOp) DiffWRT(inputs int) []bool { return make([]bool, inputs) }

func (op rewardOp) SymDiff(inputs G.Nodes, output, grad *G.Node) (G.Nodes, error) {
	return nil, errors.Errorf("%v is not differentiable", op)
}

func contiguous(t *tensor.Dense) *tensor.Dense {
	if t.IsMaterializable() {
		return t.Materialize().(*tensor.Dense)
	}
	return t
}
