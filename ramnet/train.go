package ramnet

import (
	"log"

	"github.com/pkg/errors"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
	"gorgonia.org/tensor/native"
)

// Train is a basic trainer. Xs are images (N, C, H, W) and labels are one-hot (N, NumClasses), with N = batches * BatchSize.
// It returns the mean cost of every iteration.
func Train(d *RAM, Xs, labels *tensor.Dense, batches, iterations int) (costs []float32, err error) {
	if d.FwdOnly {
		return nil, errors.New("cannot train a fwd only graph")
	}
	if batches < 1 {
		return nil, errors.Errorf("expected at least one batch. Got %d", batches)
	}
	n := batches * d.BatchSize
	if Xs.Shape().Dims() != 4 || Xs.Shape()[0] != n {
		return nil, shapeMismatch("expected %d images for %d batches. Got %v", n, batches, Xs.Shape())
	}
	if labels.Shape().Dims() != 2 || labels.Shape()[0] != n {
		return nil, shapeMismatch("expected %d labels for %d batches. Got %v", n, batches, labels.Shape())
	}

	m := G.NewTapeMachine(d.g, G.BindDualValues(d.Model()...))
	defer m.Close()
	model := G.NodesToValueGrads(d.Model())
	solver := G.NewAdamSolver(G.WithLearnRate(d.LearnRate))

	var s slicer
	for i := 0; i < iterations; i++ {
		var cost float32
		for bat := 0; bat < batches; bat++ {
			batchStart := bat * d.BatchSize
			batchEnd := batchStart + d.BatchSize

			x := s.Slice(Xs, sli(batchStart, batchEnd))
			y := s.Slice(labels, sli(batchStart, batchEnd))
			if s.err != nil {
				return costs, s.err
			}
			x = x.Materialize().(*tensor.Dense)
			y = y.Materialize().(*tensor.Dense)

			if err = d.Feed(x, y); err != nil {
				return costs, err
			}
			if err = m.RunAll(); err != nil {
				return costs, err
			}
			cost += d.Cost()
			if err = solver.Step(model); err != nil {
				return costs, err
			}
			m.Reset()
		}
		costs = append(costs, cost/float32(batches))
		if err = d.shuffleBatch(Xs, labels); err != nil {
			return costs, err
		}
		log.Printf("%d\t%v", i, costs[i])
	}
	return costs, nil
}

// shuffleBatch shuffles the examples, keeping each image with its label.
func (d *RAM) shuffleBatch(Xs, labels *tensor.Dense) (err error) {
	oriXs := Xs.Shape().Clone()
	defer Xs.Reshape(oriXs...)
	if err = Xs.Reshape(as2D(Xs.Shape())...); err != nil {
		return errors.Wrapf(err, "shuffle batch failed - reshape")
	}

	var matXs, matYs [][]float32
	if matXs, err = native.MatrixF32(Xs); err != nil {
		return errors.Wrapf(err, "shuffle batch failed - matX")
	}
	if matYs, err = native.MatrixF32(labels); err != nil {
		return errors.Wrapf(err, "shuffle batch failed - labels")
	}

	tmpX := make([]float32, len(matXs[0]))
	tmpY := make([]float32, len(matYs[0]))
	for i := range matXs {
		j := d.rng.Intn(i + 1)

		copy(tmpX, matXs[i])
		copy(matXs[i], matXs[j])
		copy(matXs[j], tmpX)

		copy(tmpY, matYs[i])
		copy(matYs[i], matYs[j])
		copy(matYs[j], tmpY)
	}
	return nil
}

func as2D(s tensor.Shape) tensor.Shape {
	retVal := make(tensor.Shape, 2)
	retVal[0] = s[0]
	retVal[1] = s[1]
	for i := 2; i < len(s); i++ {
		retVal[1] *= s[i]
	}
	return retVal
}
