package ramnet

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/gorgonia/ram/retina"
)

func TestConfig_IsValid(t *testing.T) {
	tests := []struct {
		name   string
		modify func(c *Config)
		want   bool
	}{
		{"default", func(c *Config) {}, true},
		{"no patches", func(c *Config) { c.NumPatches = 0 }, false},
		{"shrinking scale", func(c *Config) { c.Scale = 0.5 }, false},
		{"one class", func(c *Config) { c.NumClasses = 1 }, false},
		{"no steps", func(c *Config) { c.Steps = 0 }, false},
		{"empty batch", func(c *Config) { c.BatchSize = 0 }, false},
		{"negative std", func(c *Config) { c.Std = -1 }, false},
		{"negative learn rate", func(c *Config) { c.LearnRate = -0.1 }, false},
		{"deterministic training", func(c *Config) { c.Std = 0 }, false},
		{"deterministic inference", func(c *Config) { c.Std = 0; c.FwdOnly = true }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conf := DefaultConf(28, 28, 1, 10)
			tt.modify(&conf)
			assert.Equal(t, tt.want, conf.IsValid())
		})
	}
}

func TestConfig_Retina(t *testing.T) {
	conf := DefaultConf(28, 28, 1, 10)
	r, err := conf.Retina()
	if err != nil {
		t.Fatalf("%+v", err)
	}
	assert.Equal(t, []int{8, 16, 32}, r.Sizes())
	assert.Equal(t, 3*8*8, r.Features())
	assert.Equal(t, 256, conf.GlimpseSize())

	conf.Scale = 1.5
	_, err = conf.Retina()
	assert.Equal(t, retina.ErrBadGeometry, errors.Cause(err))
}
