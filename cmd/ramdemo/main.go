package main

import (
	"flag"
	"image"
	"image/color"
	"io/ioutil"
	"log"
	"math/rand"
	"os"

	"github.com/gorgonia/ram"
	"github.com/gorgonia/ram/encoding/gif"
	"github.com/gorgonia/ram/ramnet"
	"gorgonia.org/tensor"
)

var (
	examples   = flag.Int("examples", 256, "number of synthetic training examples")
	iterations = flag.Int("iterations", 5, "training iterations")
	batchSize  = flag.Int("batch", 16, "batch size")
	seed       = flag.Int64("seed", 1337, "seed of the synthetic images and of the glimpse policy")
	gifOut     = flag.String("gif", "", "write the glimpses of the first observation into this GIF")
	dotOut     = flag.String("dot", "", "write the unrolled network into this graphviz file")
	statsOut   = flag.String("stats", "", "write the training statistics into this CSV file")
	plotOut    = flag.String("plot", "", "plot the training costs into this file (svg or png)")
	modelOut   = flag.String("save", "", "save the learned values into this file")
)

const (
	size    = 28
	square  = 6
	classes = 4
)

// quadrant draws a noisy image with a bright square in one of its four quadrants. The quadrant is the label.
func quadrant(r *rand.Rand) (*image.Gray, int) {
	label := r.Intn(classes)
	img := image.NewGray(image.Rect(0, 0, size, size))
	for i := range img.Pix {
		img.Pix[i] = uint8(r.Intn(40))
	}
	top := (label/2)*size/2 + r.Intn(size/2-square)
	left := (label%2)*size/2 + r.Intn(size/2-square)
	for y := top; y < top+square; y++ {
		for x := left; x < left+square; x++ {
			img.SetGray(x, y, color.Gray{255})
		}
	}
	return img, label
}

func makeExamples(r *rand.Rand, n int) []ram.Example {
	retVal := make([]ram.Example, 0, n)
	for i := 0; i < n; i++ {
		img, label := quadrant(r)
		pix, err := ram.EncodeImage(img, 1, nil)
		if err != nil {
			log.Fatalf("%+v", err)
		}
		retVal = append(retVal, ram.Example{Image: pix, Label: label})
	}
	return retVal
}

func main() {
	flag.Parse()
	r := rand.New(rand.NewSource(*seed))

	nnConf := ramnet.DefaultConf(size, size, 1, classes)
	nnConf.BatchSize = *batchSize
	nnConf.Seed = *seed
	nnConf.LearnRate = 1e-3
	conf := ram.Config{
		Name:   "Quadrants",
		NNConf: nnConf,
	}

	var gifFile *os.File
	if *gifOut != "" {
		var err error
		if gifFile, err = os.Create(*gifOut); err != nil {
			log.Fatal(err)
		}
		defer gifFile.Close()
		conf.OutputEncoder = gif.NewEncoder(gifFile, 4)
	}

	a := ram.New(conf)
	if *dotOut != "" {
		if err := ioutil.WriteFile(*dotOut, []byte(a.NN.ToDot()), 0644); err != nil {
			log.Fatal(err)
		}
	}

	if err := a.Learn(makeExamples(r, *examples), *iterations); err != nil {
		log.Fatalf("%+v", err)
	}
	acc, err := a.Evaluate(makeExamples(r, 4*nnConf.BatchSize))
	if err != nil {
		log.Fatalf("%+v", err)
	}
	log.Printf("Accuracy: %v", acc)

	// every observation is encoded, the evaluation batches included
	test := makeExamples(r, nnConf.BatchSize)
	var backing []float32
	for _, ex := range test {
		backing = append(backing, ex.Image...)
	}
	images := tensor.New(tensor.WithShape(nnConf.BatchSize, 1, size, size), tensor.WithBacking(backing))
	e, err := a.Observe(images)
	if err != nil {
		log.Fatalf("%+v", err)
	}
	log.Printf("Predicted %d, labelled %d", e.Predictions()[0], test[0].Label)

	if *statsOut != "" {
		if err = a.Dump(*statsOut); err != nil {
			log.Fatal(err)
		}
	}
	if *plotOut != "" {
		if err = a.Plot(*plotOut); err != nil {
			log.Fatal(err)
		}
	}
	if *modelOut != "" {
		if err = a.Save(*modelOut); err != nil {
			log.Fatal(err)
		}
	}
	a.Log(os.Stderr)
	if err = a.Close(); err != nil {
		log.Fatalf("%+v", err)
	}
}
