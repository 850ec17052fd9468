package retina

import (
	"fmt"
	"hash"
	"hash/fnv"

	"github.com/chewxy/hm"
	"github.com/pkg/errors"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// Apply adds a node that foveates img (batch, C, H, W) at loc (batch, 2) to the graph img belongs to.
//
// The node is not differentiable: no gradient flows back to the images or to the locations through it.
func (r *Retina) Apply(img, loc *G.Node) (*G.Node, error) {
	if err := r.checkShapes(img.Shape(), loc.Shape()); err != nil {
		return nil, err
	}
	return G.ApplyOp(foveateOp{r}, img, loc)
}

type foveateOp struct{ *Retina }

func (op foveateOp) Arity() int { return 2 }

func (op foveateOp) Type() hm.Type {
	a := hm.TypeVariable('a')
	return hm.NewFnType(G.TensorType{Dims: 4, Of: a}, G.TensorType{Dims: 2, Of: a}, G.TensorType{Dims: 2, Of: a})
}

func (op foveateOp) InferShape(inputs ...G.DimSizer) (tensor.Shape, error) {
	if len(inputs) != 2 {
		return nil, errors.Errorf("foveate expects 2 inputs. Got %d", len(inputs))
	}
	batches, err := inputs[0].DimSize(0)
	if err != nil {
		return nil, err
	}
	return tensor.Shape{batches, op.Features()}, nil
}

func (op foveateOp) Do(vals ...G.Value) (G.Value, error) {
	if len(vals) != 2 {
		return nil, errors.Errorf("foveate expects 2 values. Got %d", len(vals))
	}
	img, ok := vals[0].(*tensor.Dense)
	if !ok {
		return nil, errors.Errorf("foveate expects images to be a *tensor.Dense. Got %T", vals[0])
	}
	loc, ok := vals[1].(*tensor.Dense)
	if !ok {
		return nil, errors.Errorf("foveate expects locations to be a *tensor.Dense. Got %T", vals[1])
	}
	return op.Foveate(img, loc)
}

func (op foveateOp) ReturnsPtr() bool     { return false }
func (op foveateOp) CallsExtern() bool    { return false }
func (op foveateOp) OverwritesInput() int { return -1 }

func (op foveateOp) WriteHash(h hash.Hash) { fmt.Fprint(h, op.String()) }

func (op foveateOp) Hashcode() uint32 {
	h := fnv.New32a()
	op.WriteHash(h)
	return h.Sum32()
}

func (op foveateOp) String() string {
	return fmt.Sprintf("Foveate{%d×%d, %v, %d×%d×%d}", op.NumPatches, op.PatchSize, op.Scale, op.Channels, op.Height, op.Width)
}

// DiffWRT marks both inputs as non differentiable, so symbolic differentiation stops here.
func (op foveateOp) DiffWRT(inputs int) []bool { return make([]bool, inputs) }

func (op foveateOp) SymDiff(inputs G.Nodes, output, grad *G.Node) (G.Nodes, error) {
	return nil, errors.Errorf("%v is not differentiable", op)
}
