package ram

import (
	"io/ioutil"
	"math/rand"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/gorgonia/ram/ramnet"
	"github.com/gorgonia/ram/retina"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"gorgonia.org/tensor"
)

type recorded struct {
	episode, step, steps int
	row, col             float32
	pix                  []float32
	prediction           int
	predicted            bool
}

type recorder struct {
	states  []recorded
	flushed bool
}

func (r *recorder) Encode(ms MetaState) error {
	pix, _, _ := ms.Image()
	row, col := ms.Glimpse()
	class, ok := ms.Prediction()
	r.states = append(r.states, recorded{
		episode:    ms.Episode(),
		step:       ms.Step(),
		steps:      ms.Steps(),
		row:        row,
		col:        col,
		pix:        append([]float32(nil), pix...),
		prediction: class,
		predicted:  ok,
	})
	return nil
}

func (r *recorder) Flush() error { r.flushed = true; return nil }

func testConf() Config {
	nnConf := ramnet.DefaultConf(16, 16, 1, 4)
	nnConf.PatchSize = 4
	nnConf.HiddenG, nnConf.HiddenL, nnConf.HiddenSize = 16, 16, 32
	nnConf.Steps = 3
	nnConf.BatchSize = 2
	return Config{
		Name:     "Test",
		NNConf:   nnConf,
		Watch:    1,
		Inferers: 2,
	}
}

func testImages(conf ramnet.Config, seed int64) *tensor.Dense {
	r := rand.New(rand.NewSource(seed))
	data := make([]float32, conf.BatchSize*conf.Channels*conf.Height*conf.Width)
	for i := range data {
		data[i] = r.Float32()
	}
	return tensor.New(tensor.WithShape(conf.BatchSize, conf.Channels, conf.Height, conf.Width), tensor.WithBacking(data))
}

func testExamples(conf ramnet.Config, n int) []Example {
	r := rand.New(rand.NewSource(int64(n)))
	retVal := make([]Example, n)
	for i := range retVal {
		pix := make([]float32, conf.Channels*conf.Height*conf.Width)
		for j := range pix {
			pix[j] = r.Float32()
		}
		retVal[i] = Example{Image: pix, Label: r.Intn(conf.NumClasses)}
	}
	return retVal
}

func TestNew(t *testing.T) {
	conf := testConf()
	conf.NNConf.Steps = 0
	assert.Panics(t, func() { New(conf) })

	conf = testConf()
	conf.Watch = conf.NNConf.BatchSize
	assert.Panics(t, func() { New(conf) })

	conf = testConf()
	conf.NNConf.Scale = 1.5
	assert.Panics(t, func() { New(conf) })
}

func TestAgent_Observe(t *testing.T) {
	assert := assert.New(t)
	conf := testConf()
	rec := new(recorder)
	conf.OutputEncoder = rec
	a := New(conf)

	imgs := testImages(conf.NNConf, 1)
	e, err := a.Observe(imgs)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	assert.True(e.Valid())
	assert.Len(e.Locations, 3)

	steps := conf.NNConf.Steps
	if !assert.Len(rec.states, steps+1) {
		t.FailNow()
	}
	plane := conf.NNConf.Height * conf.NNConf.Width
	watched := imgs.Data().([]float32)[conf.Watch*plane : (conf.Watch+1)*plane]
	for i, s := range rec.states {
		assert.Equal(0, s.episode)
		assert.Equal(i, s.step)
		assert.Equal(steps, s.steps)
		assert.Equal(watched, s.pix)
		assert.True(s.row >= -1 && s.row <= 1 && s.col >= -1 && s.col <= 1)
		if i > 0 {
			locs := e.Locations[i-1].Data().([]float32)
			assert.Equal(locs[conf.Watch*2], s.row)
			assert.Equal(locs[conf.Watch*2+1], s.col)
		}
		assert.Equal(i == steps, s.predicted)
	}
	assert.Equal(e.Predictions()[conf.Watch], rec.states[steps].prediction)

	_, err = a.Observe(tensor.New(tensor.WithShape(3, 1, 16, 16), tensor.Of(tensor.Float32)))
	assert.Equal(retina.ErrShapeMismatch, errors.Cause(err))

	if err = a.Close(); err != nil {
		t.Fatalf("%+v", err)
	}
	assert.True(rec.flushed)
}

func TestAgent_ObserveConcurrently(t *testing.T) {
	a := New(testConf())
	defer a.Close()

	var wg sync.WaitGroup
	errs := make([]error, 6)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = a.Observe(testImages(a.nnConf, int64(i)))
		}(i)
	}
	wg.Wait()
	for i, err := range errs {
		assert.NoError(t, err, "observation %d", i)
	}

	var buf strings.Builder
	a.Log(&buf)
	assert.Equal(t, 6, strings.Count(buf.String(), "predictions"))
}

func TestAgent_InferersDrawDifferently(t *testing.T) {
	a := New(testConf())
	defer a.Close()
	if !assert.Len(t, a.inferers, 2) {
		t.FailNow()
	}
	first := a.inferers[0].(*ramnet.Inferencer)
	second := a.inferers[1].(*ramnet.Inferencer)
	assert.Equal(t, first.Seed+1, second.Seed)
	assert.NotEqual(t, first.InitState().Location.Data(), second.InitState().Location.Data())
	assert.NotEqual(t, first.Noise().Data(), second.Noise().Data())
}

func TestAgent_Learn(t *testing.T) {
	assert := assert.New(t)
	conf := testConf()
	conf.Augmenter = RotationAugmenter(conf.NNConf.Channels, conf.NNConf.Height)
	conf.MaxExamples = 12
	a := New(conf)
	defer a.Close()

	if err := a.Learn(testExamples(conf.NNConf, 4), 2); err != nil {
		t.Fatalf("%+v", err)
	}
	assert.Len(a.Costs, 2)

	acc, err := a.Evaluate(testExamples(conf.NNConf, 5))
	if err != nil {
		t.Fatalf("%+v", err)
	}
	assert.True(acc >= 0 && acc <= 1)
	assert.Equal([]float64{acc}, a.Accuracy)

	_, err = a.Evaluate(testExamples(conf.NNConf, 1))
	assert.Error(err)

	a.aug = nil
	bad := testExamples(conf.NNConf, 2)
	bad[1].Image = bad[1].Image[:10]
	err = a.Learn(bad, 1)
	assert.Equal(retina.ErrShapeMismatch, errors.Cause(err))

	bad = testExamples(conf.NNConf, 2)
	bad[0].Label = conf.NNConf.NumClasses
	assert.Error(a.Learn(bad, 1))

	dir, err := ioutil.TempDir("", "ram")
	if err != nil {
		t.Fatal(err)
	}
	stats := filepath.Join(dir, "stats.csv")
	if err = a.Dump(stats); err != nil {
		t.Fatal(err)
	}
	csv, err := ioutil.ReadFile(stats)
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(1+2+1, strings.Count(string(csv), "\n"))

	costs := filepath.Join(dir, "costs.svg")
	if err = a.Plot(costs); err != nil {
		t.Fatalf("%+v", err)
	}
	svg, err := ioutil.ReadFile(costs)
	if err != nil {
		t.Fatal(err)
	}
	assert.Contains(string(svg), "<svg")
	assert.Error(new(Statistics).Plot(costs))
}

func TestAgent_SaveLoad(t *testing.T) {
	conf := testConf()
	a := New(conf)
	defer a.Close()

	dir, err := ioutil.TempDir("", "ram")
	if err != nil {
		t.Fatal(err)
	}
	filename := filepath.Join(dir, "model.gob")
	if err = a.Save(filename); err != nil {
		t.Fatalf("%+v", err)
	}

	conf.NNConf.Seed = 42
	b := New(conf)
	defer b.Close()
	if err = b.Load(filename); err != nil {
		t.Fatalf("%+v", err)
	}
	bModel := b.NN.Model()
	for i, n := range a.NN.Model() {
		assert.Equal(t, n.Value().Data(), bModel[i].Value().Data(), "%v", n)
	}

	imgs := testImages(conf.NNConf, 3)
	if _, err := b.Observe(imgs); err != nil {
		t.Fatalf("%+v", err)
	}
}
