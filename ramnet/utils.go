package ramnet

import (
	"bytes"
	"fmt"

	"github.com/gorgonia/ram/retina"
	"github.com/pkg/errors"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

var Float = G.Float32

// shapeMismatch wraps retina.ErrShapeMismatch, so errors.Cause identifies shape errors from any layer.
func shapeMismatch(format string, args ...interface{}) error {
	return errors.Wrapf(retina.ErrShapeMismatch, format, args...)
}

func checkShape(n *G.Node, want tensor.Shape, what string) error {
	if !n.Shape().Eq(want) {
		return shapeMismatch("%s: expected shape %v. Got %v", what, want, n.Shape())
	}
	return nil
}

func checkDense(t *tensor.Dense, want tensor.Shape, what string) error {
	if t == nil {
		return shapeMismatch("%s: expected shape %v. Got nothing", what, want)
	}
	if !t.Shape().Eq(want) {
		return shapeMismatch("%s: expected shape %v. Got %v", what, want, t.Shape())
	}
	if t.Dtype() != Float {
		return errors.Errorf("%s: expected %v. Got %v", what, Float, t.Dtype())
	}
	return nil
}

// cloneValue copies a value read out of a graph, as the VM reuses its memory on the next run.
func cloneValue(v G.Value) *tensor.Dense {
	if v == nil {
		return nil
	}
	if d, ok := v.(*tensor.Dense); ok {
		return d.Clone().(*tensor.Dense)
	}
	return nil
}

// copyModel copies the learned values of src into dst. Both must list the same layers in the same order.
func copyModel(dst, src G.Nodes) error {
	if len(dst) != len(src) {
		return errors.Errorf("cannot copy a model of %d nodes into one of %d", len(src), len(dst))
	}
	for i, n := range src {
		if n.Name() != dst[i].Name() {
			return errors.Errorf("node %d: cannot copy %v into %v", i, n.Name(), dst[i].Name())
		}
		original := n.Value().Data().([]float32)
		cloned := dst[i].Value().Data().([]float32)
		copy(cloned, original)
	}
	return nil
}

type manyErr []error

func (err manyErr) Error() string {
	var buf bytes.Buffer
	for _, e := range err {
		fmt.Fprintln(&buf, e.Error())
	}
	return buf.String()
}

type binding struct {
	n *G.Node
	v *tensor.Dense
}

// letAll binds every value to its input node. All failures are reported.
func letAll(bs ...binding) error {
	var allErrs manyErr
	for _, b := range bs {
		if err := G.Let(b.n, b.v); err != nil {
			allErrs = append(allErrs, err)
		}
	}
	if len(allErrs) > 0 {
		return allErrs
	}
	return nil
}

type slicer struct {
	v   tensor.View
	err error
}

func (s *slicer) Slice(a *tensor.Dense, slices ...tensor.Slice) *tensor.Dense {
	if s.err != nil {
		return nil
	}
	if s.v, s.err = a.Slice(slices...); s.err != nil {
		s.err = errors.Wrapf(s.err, "Slicer failed") // get a stack trace
		return nil
	}
	return s.v.(*tensor.Dense)
}

type rs struct {
	start, end, step int
}

func (s rs) Start() int { return s.start }
func (s rs) End() int   { return s.end }
func (s rs) Step() int  { return s.step }

// sli creates a ranged slice. It takes an optional step param.
func sli(start, end int, opts ...int) rs {
	step := 1
	if len(opts) > 0 {
		step = opts[0]
	}
	return rs{
		start: start,
		end:   end,
		step:  step,
	}
}
