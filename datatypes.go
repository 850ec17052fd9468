package ram

import (
	"io"

	"github.com/gorgonia/ram/ramnet"
	"gorgonia.org/tensor"
)

type Config struct {
	Name        string
	NNConf      ramnet.Config
	MaxExamples int // maximum number of examples

	// Watch is the batch element whose glimpses are sent to the OutputEncoder.
	Watch int
	// Inferers is the number of inferencers that may run at once. The default is one per CPU.
	Inferers int

	// extensions
	OutputEncoder OutputEncoder
	Augmenter     Augmenter
}

// OutputEncoder encodes the entire meta state as whatever.
//
// An example OutputEncoder is the GifEncoder. Another example would be a logger.
type OutputEncoder interface {
	Encode(ms MetaState) error
	Flush() error
}

// MetaState is what an OutputEncoder sees of one glimpse of an observation.
type MetaState interface {
	Name() string
	Episode() int
	// Step is the index of the glimpse. After the last glimpse, Step() == Steps() and a prediction is available.
	Step() int
	Steps() int

	// Image returns the first channel of the watched image, row major.
	Image() (pix []float32, height, width int)
	// Glimpse is where the model looked, in [-1, 1]. row is the vertical coordinate.
	Glimpse() (row, col float32)
	// PatchSizes are the sides of the square patches of one glimpse, smallest first.
	PatchSizes() []int
	Prediction() (class int, ok bool)
}

// Augmenter takes an example, and creates more examples from it.
type Augmenter func(a Example) []Example

// Example is a representation of an example.
type Example struct {
	Image []float32 // (Channels, Height, Width), row major
	Label int
}

// Inferer is anything that can run a sequence of glimpses over a batch of images.
type Inferer interface {
	Run(images *tensor.Dense, watch func(t int, r ramnet.StepResult) error) (*ramnet.Episode, error)
	io.Closer
}

// ExecLogger is anything that can return the execution log.
type ExecLogger interface {
	ExecLog() string
}
