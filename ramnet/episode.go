package ramnet

import (
	"github.com/chewxy/math32"
	"gorgonia.org/tensor"
)

// Episode is everything a sequence of glimpses produced.
type Episode struct {
	LogProbs  *tensor.Dense   // (batch, classes), after the last step
	Means     []*tensor.Dense // (batch, 2) policy mean, one per step
	Locations []*tensor.Dense // (batch, 2) sampled location, one per step
	Baselines []*tensor.Dense // (batch, 1), one per step
	Hidden    *tensor.Dense   // (batch, HiddenSize), the last hidden state
}

// Predictions returns the most likely class of each batch element.
func (e *Episode) Predictions() []int {
	if e.LogProbs == nil {
		return nil
	}
	rows, cols := e.LogProbs.Shape()[0], e.LogProbs.Shape()[1]
	data := e.LogProbs.Data().([]float32)
	retVal := make([]int, rows)
	for i := range retVal {
		retVal[i] = argmax(data[i*cols : (i+1)*cols])
	}
	return retVal
}

// Valid returns false if any output holds a NaN or an infinity.
func (e *Episode) Valid() bool {
	all := []*tensor.Dense{e.LogProbs, e.Hidden}
	all = append(all, e.Means...)
	all = append(all, e.Locations...)
	all = append(all, e.Baselines...)
	for _, t := range all {
		if t == nil {
			continue
		}
		for _, v := range t.Data().([]float32) {
			if math32.IsInf(v, 0) || math32.IsNaN(v) {
				return false
			}
		}
	}
	return true
}

func argmax(a []float32) int {
	var retVal int
	var max float32 = math32.Inf(-1)
	for i := range a {
		if a[i] > max {
			max = a[i]
			retVal = i
		}
	}
	return retVal
}
