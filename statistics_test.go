package ram

import (
	"bytes"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

var errFull = errors.New("disk full")

type fullWriter struct{}

func (fullWriter) Write(p []byte) (int, error) { return 0, errFull }

func TestStatistics_writeCSV(t *testing.T) {
	s := makeStatistics()
	s.update([]float32{2.5, 1.25})
	s.evaluated(0.5)

	var buf bytes.Buffer
	if err := s.writeCSV(&buf); err != nil {
		t.Fatal(err)
	}
	expected := "kind,index,value\ncost,0,2.50000\ncost,1,1.25000\naccuracy,0,0.500\n"
	assert.Equal(t, expected, buf.String())

	err := s.writeCSV(fullWriter{})
	assert.Equal(t, errFull, errors.Cause(err))

	empty := makeStatistics()
	err = empty.writeCSV(fullWriter{})
	assert.Equal(t, errFull, errors.Cause(err))
}
