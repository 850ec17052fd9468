package ramnet

import "github.com/gorgonia/ram/retina"

// Config configures the recurrent attention model
type Config struct {
	PatchSize  int     // side of the smallest patch of a glimpse
	NumPatches int     // number of scales per glimpse
	Scale      float64 // growth of the patch side from one scale to the next

	Channels, Height, Width int // image geometry

	HiddenG    int     // width of the "what" hidden layer
	HiddenL    int     // width of the "where" hidden layer
	HiddenSize int     // width of the recurrent state
	NumClasses int     // number of classes
	Std        float64 // standard deviation of the location policy
	Steps      int     // glimpses per sequence
	LearnRate  float64 // step size of the Adam solver Train uses

	BatchSize int
	FwdOnly   bool  // is this a fwd only graph?
	Seed      int64 // seeds the initial locations and the policy noise
}

// DefaultConf returns the usual hyperparameters for images of the given geometry.
func DefaultConf(height, width, channels, classes int) Config {
	return Config{
		PatchSize:  8,
		NumPatches: 3,
		Scale:      2,

		Channels: channels,
		Height:   height,
		Width:    width,

		HiddenG:    128,
		HiddenL:    128,
		HiddenSize: 256,
		NumClasses: classes,
		Std:        0.17,
		Steps:      6,
		LearnRate:  3e-4,

		BatchSize: 32,
		Seed:      1337,
	}
}

func (conf Config) IsValid() bool {
	return conf.PatchSize >= 1 &&
		conf.NumPatches >= 1 &&
		conf.Scale > 1 &&
		conf.Channels >= 1 &&
		conf.Height >= 1 &&
		conf.Width >= 1 &&
		conf.HiddenG >= 1 &&
		conf.HiddenL >= 1 &&
		conf.HiddenSize >= 1 &&
		conf.NumClasses >= 2 &&
		conf.Steps >= 1 &&
		conf.BatchSize >= 1 &&
		conf.Std >= 0 &&
		conf.LearnRate >= 0 &&
		// the REINFORCE term needs a proper density
		(conf.FwdOnly || conf.Std > 0)
}

// Retina builds the retina described by the configuration.
func (conf Config) Retina() (*retina.Retina, error) {
	return retina.New(conf.PatchSize, conf.NumPatches, conf.Scale, conf.Channels, conf.Height, conf.Width)
}

// GlimpseSize is the width of a glimpse embedding.
func (conf Config) GlimpseSize() int { return conf.HiddenG + conf.HiddenL }
