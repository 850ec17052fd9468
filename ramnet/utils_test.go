package ramnet

import (
	"testing"

	"github.com/stretchr/testify/assert"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

func TestLetAll(t *testing.T) {
	g := G.NewGraph()
	x := G.NewMatrix(g, Float, G.WithShape(2, 2), G.WithName("x"))
	y := G.Must(G.Add(x, x))
	v := tensor.New(tensor.WithShape(2, 2), tensor.Of(Float))

	assert.NoError(t, letAll(binding{x, v}))

	err := letAll(binding{y, v}, binding{x, v}, binding{y, v})
	errs, ok := err.(manyErr)
	if !ok {
		t.Fatalf("expected manyErr. Got %T", err)
	}
	assert.Len(t, errs, 2)
}
