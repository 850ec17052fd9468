package ram

import (
	"bytes"
	"fmt"
	"io"
	"log"
	"runtime"
	"sync"

	"github.com/gorgonia/ram/ramnet"
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// Agent is the top level structure and the entry point of the API.
// It owns a trained *ramnet.RAM and a pool of inferencers, and drives them one glimpse at a time over the images it
// is asked to observe.
type Agent struct {
	Statistics
	NN *ramnet.RAM

	// config
	name        string
	nnConf      ramnet.Config
	watch       int
	maxExamples int
	numInferers int

	// inference
	mu       sync.RWMutex
	inferer  chan Inferer
	inferers []Inferer
	episode  int
	sizes    []int

	// io
	aug     Augmenter
	outEnc  OutputEncoder
	encLock sync.Mutex
	buf     bytes.Buffer
	logger  *log.Logger
}

// New creates an Agent with a freshly initialized network. It panics if the configuration is not valid.
func New(conf Config) *Agent {
	if !conf.NNConf.IsValid() {
		panic("NNConf is not valid. Unable to proceed")
	}
	if conf.Watch < 0 || conf.Watch >= conf.NNConf.BatchSize {
		panic(fmt.Sprintf("cannot watch element %d of a batch of %d", conf.Watch, conf.NNConf.BatchSize))
	}
	r, err := conf.NNConf.Retina()
	if err != nil {
		panic(fmt.Sprintf("%+v", err))
	}

	nn := ramnet.New(conf.NNConf)
	if err := nn.Init(); err != nil {
		panic(fmt.Sprintf("%+v", err))
	}

	numInferers := conf.Inferers
	if numInferers <= 0 {
		numInferers = runtime.NumCPU()
	}
	retVal := &Agent{
		Statistics:  makeStatistics(),
		NN:          nn,
		name:        conf.Name,
		nnConf:      conf.NNConf,
		watch:       conf.Watch,
		maxExamples: conf.MaxExamples,
		numInferers: numInferers,
		sizes:       r.Sizes(),
		aug:         conf.Augmenter,
		outEnc:      conf.OutputEncoder,
	}
	retVal.logger = log.New(&retVal.buf, "", log.Ltime)
	if err := retVal.SwitchToInference(); err != nil {
		panic(fmt.Sprintf("%+v", err))
	}
	return retVal
}

// SwitchToInference replaces the inferencers with ones holding the current learned values of NN.
func (a *Agent) SwitchToInference() (err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err = a.closeInferers(); err != nil {
		return err
	}

	a.inferer = make(chan Inferer, a.numInferers)
	for i := 0; i < a.numInferers; i++ {
		var inf *ramnet.Inferencer
		if inf, err = ramnet.Infer(a.NN, a.nnConf.BatchSize, false); err != nil {
			return err
		}
		// pooled inferencers must not share a noise stream
		inf.Reseed(a.nnConf.Seed + int64(i))
		a.inferers = append(a.inferers, inf)
		a.inferer <- inf
	}
	log.Printf("Switched %q to inference with %d inferencers", a.name, a.numInferers)
	return nil
}

// Observe runs a full sequence of glimpses over a batch of images (BatchSize, Channels, Height, Width) and returns
// everything the sequence produced. It is safe to call Observe concurrently.
//
// If the Agent has an OutputEncoder, every glimpse of the watched batch element is encoded, followed by one last
// state holding the prediction.
func (a *Agent) Observe(images *tensor.Dense) (*ramnet.Episode, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	inf := <-a.inferer
	defer func() { a.inferer <- inf }()

	a.encLock.Lock()
	episode := a.episode
	a.episode++
	a.encLock.Unlock()

	var watch func(t int, r ramnet.StepResult) error
	var f *frame
	if a.outEnc != nil {
		var err error
		if f, err = a.newFrame(images, episode); err != nil {
			return nil, err
		}
		watch = func(t int, r ramnet.StepResult) error {
			f.step = t
			f.row, f.col = location(r.Glimpse, a.watch)
			return a.encode(f)
		}
	}

	e, err := inf.Run(images, watch)
	if err != nil {
		if el, ok := inf.(ExecLogger); ok {
			a.logger.Println(el.ExecLog())
		}
		return nil, errors.WithMessage(err, fmt.Sprintf("episode %d", episode))
	}
	predictions := e.Predictions()
	a.logger.Printf("Episode %d: predictions %v", episode, predictions)

	if f != nil {
		f.step = a.nnConf.Steps
		f.row, f.col = location(e.Locations[len(e.Locations)-1], a.watch)
		f.prediction, f.predicted = predictions[a.watch], true
		if err = a.encode(f); err != nil {
			return nil, err
		}
	}
	return e, nil
}

func (a *Agent) encode(f *frame) error {
	a.encLock.Lock()
	defer a.encLock.Unlock()
	return a.outEnc.Encode(f)
}

// Log writes the log of every observation so far into w.
func (a *Agent) Log(w io.Writer) {
	fmt.Fprint(w, a.buf.String())
}

// Close releases the inferencers and flushes the OutputEncoder.
func (a *Agent) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.closeInferers(); err != nil {
		return err
	}
	if a.outEnc != nil {
		return a.outEnc.Flush()
	}
	return nil
}

func (a *Agent) closeInferers() error {
	for _, inf := range a.inferers {
		if err := inf.Close(); err != nil {
			return err
		}
	}
	a.inferers = a.inferers[:0]
	return nil
}

func location(locs *tensor.Dense, i int) (row, col float32) {
	data := locs.Data().([]float32)
	return data[i*2], data[i*2+1]
}
