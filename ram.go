package ram

import (
	"encoding/gob"
	"log"
	"math/rand"
	"os"
	"time"

	"github.com/gorgonia/ram/ramnet"
	"github.com/gorgonia/ram/retina"
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// Learn trains NN on the examples for the given number of iterations, and then switches to inference with the new
// learned values. Only whole batches are used. Learn is not safe for concurrent use.
func (a *Agent) Learn(examples []Example, iterations int) error {
	if a.aug != nil {
		augmented := append([]Example(nil), examples...)
		for _, ex := range examples {
			augmented = append(augmented, a.aug(ex)...)
		}
		examples = augmented
	}
	if a.maxExamples > 0 && len(examples) > a.maxExamples {
		shuffleExamples(examples)
		examples = examples[:a.maxExamples]
	}
	Xs, Ys, batches, err := a.prepareExamples(examples)
	if err != nil {
		return err
	}
	log.Printf("Learning from %d batches of %d for %d iterations", batches, a.nnConf.BatchSize, iterations)

	a.logger.Printf("Learning from %d examples", batches*a.nnConf.BatchSize)
	costs, err := ramnet.Train(a.NN, Xs, Ys, batches, iterations)
	a.update(costs)
	if err != nil {
		return errors.WithMessage(err, "Train fail")
	}
	return a.SwitchToInference()
}

// Evaluate observes the examples in batches and returns the fraction that was classified correctly.
// Only whole batches are evaluated.
func (a *Agent) Evaluate(examples []Example) (accuracy float64, err error) {
	bs := a.nnConf.BatchSize
	batches := len(examples) / bs
	if batches == 0 {
		return 0, errors.Errorf("need at least %d examples to evaluate. Got %d", bs, len(examples))
	}
	var correct int
	for b := 0; b < batches; b++ {
		batch := examples[b*bs : (b+1)*bs]
		var Xs *tensor.Dense
		if Xs, _, err = a.encodeExamples(batch); err != nil {
			return 0, err
		}
		var e *ramnet.Episode
		if e, err = a.Observe(Xs); err != nil {
			return 0, err
		}
		for i, p := range e.Predictions() {
			if p == batch[i].Label {
				correct++
			}
		}
	}
	accuracy = float64(correct) / float64(batches*bs)
	a.evaluated(accuracy)
	a.logger.Printf("Accuracy over %d examples: %v", batches*bs, accuracy)
	return accuracy, nil
}

// Save learning into filename
func (a *Agent) Save(filename string) error {
	f, err := os.OpenFile(filename, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := gob.NewEncoder(f)
	return enc.Encode(a.NN)
}

// Load the learned values from filename, and switch to inference with them.
func (a *Agent) Load(filename string) error {
	f, err := os.Open(filename)
	if err != nil {
		return errors.WithStack(err)
	}
	defer f.Close()

	nn := ramnet.New(a.nnConf)
	dec := gob.NewDecoder(f)
	if err = dec.Decode(nn); err != nil {
		return errors.WithStack(err)
	}
	a.NN = nn
	return a.SwitchToInference()
}

// prepareExamples shuffles the examples and encodes as many whole batches as there are.
func (a *Agent) prepareExamples(examples []Example) (Xs, Ys *tensor.Dense, batches int, err error) {
	shuffleExamples(examples)
	batches = len(examples) / a.nnConf.BatchSize
	if batches == 0 {
		return nil, nil, 0, errors.Errorf("need at least %d examples. Got %d", a.nnConf.BatchSize, len(examples))
	}
	Xs, Ys, err = a.encodeExamples(examples[:batches*a.nnConf.BatchSize])
	return
}

// encodeExamples returns the images (N, Channels, Height, Width) and the one-hot labels (N, NumClasses) of the examples.
func (a *Agent) encodeExamples(examples []Example) (Xs, Ys *tensor.Dense, err error) {
	conf := a.nnConf
	size := conf.Channels * conf.Height * conf.Width
	XsBacking := make([]float32, 0, len(examples)*size)
	YsBacking := make([]float32, len(examples)*conf.NumClasses)
	for i, ex := range examples {
		if len(ex.Image) != size {
			return nil, nil, errors.Wrapf(retina.ErrShapeMismatch, "example %d: expected an image of %d values. Got %d", i, size, len(ex.Image))
		}
		if ex.Label < 0 || ex.Label >= conf.NumClasses {
			return nil, nil, errors.Errorf("example %d: label %d is not one of %d classes", i, ex.Label, conf.NumClasses)
		}
		XsBacking = append(XsBacking, ex.Image...)
		YsBacking[i*conf.NumClasses+ex.Label] = 1
	}
	Xs = tensor.New(tensor.WithBacking(XsBacking), tensor.WithShape(len(examples), conf.Channels, conf.Height, conf.Width))
	Ys = tensor.New(tensor.WithBacking(YsBacking), tensor.WithShape(len(examples), conf.NumClasses))
	return Xs, Ys, nil
}

func shuffleExamples(examples []Example) {
	r := rand.New(rand.NewSource(time.Now().UnixNano()))
	for i := range examples {
		j := r.Intn(i + 1)
		examples[i], examples[j] = examples[j], examples[i]
	}
}
