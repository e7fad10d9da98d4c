package main

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
	"gorgonia.org/tensor"

	"github.com/samuelfneumann/goflow"
	"github.com/samuelfneumann/goflow/bijection"
	"github.com/samuelfneumann/goflow/distribution"
)

// FlowConfig describes a flow: a standard base distribution of a given
// shape followed by a sequence of bijection layers.
type FlowConfig struct {
	Base   string        `yaml:"base"`
	Shape  []int         `yaml:"shape"`
	Layers []LayerConfig `yaml:"layers"`
}

// LayerConfig describes a single bijection layer. Only the fields used by
// the layer type need to be set.
type LayerConfig struct {
	Type        string    `yaml:"type"`
	Loc         []float64 `yaml:"loc"`
	Scale       []float64 `yaml:"scale"`
	Permutation []int     `yaml:"permutation"`
	MaxVal      float64   `yaml:"max_val"`
}

// loadConfig reads a FlowConfig from a YAML file.
func loadConfig(path string) (*FlowConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "loadConfig")
	}
	return parseConfig(data)
}

// parseConfig parses a YAML FlowConfig, defaulting to a scalar standard
// normal base.
func parseConfig(data []byte) (*FlowConfig, error) {
	cfg := &FlowConfig{Base: "normal"}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrap(err, "parseConfig")
	}
	return cfg, nil
}

// array converts a list of values from the config to an Array. A single
// value is a scalar that broadcasts to any shape.
func array(values []float64, shape tensor.Shape) (*goflow.Array, error) {
	switch len(values) {
	case 0:
		return nil, errors.New("missing values")
	case 1:
		return goflow.Scalar(values[0]), nil
	}
	return goflow.NewArray(values, shape...)
}

// baseDistribution returns the standard base distribution named by the
// receiver.
func (c *FlowConfig) baseDistribution() (distribution.Distribution, error) {
	switch c.Base {
	case "normal":
		return distribution.NewStandardNormal(c.Shape...), nil
	case "uniform":
		return distribution.NewStandardUniform(c.Shape...), nil
	case "gumbel":
		return distribution.NewStandardGumbel(c.Shape...), nil
	case "cauchy":
		return distribution.NewStandardCauchy(c.Shape...), nil
	}
	return nil, errors.Errorf("unknown base distribution %q", c.Base)
}

// bijection builds the bijection described by the receiver for events of
// the given shape.
func (l LayerConfig) bijection(shape tensor.Shape) (bijection.Bijection, error) {
	switch l.Type {
	case "affine":
		loc, err := array(l.Loc, shape)
		if err != nil {
			return nil, errors.Wrap(err, "loc")
		}
		scale, err := array(l.Scale, shape)
		if err != nil {
			return nil, errors.Wrap(err, "scale")
		}
		loc, err = goflow.BroadcastTo(loc, shape)
		if err != nil {
			return nil, err
		}
		return bijection.NewAffine(loc, scale)

	case "loc":
		loc, err := array(l.Loc, shape)
		if err != nil {
			return nil, errors.Wrap(err, "loc")
		}
		loc, err = goflow.BroadcastTo(loc, shape)
		if err != nil {
			return nil, err
		}
		return bijection.NewLoc(loc), nil

	case "scale":
		scale, err := array(l.Scale, shape)
		if err != nil {
			return nil, errors.Wrap(err, "scale")
		}
		scale, err = goflow.BroadcastTo(scale, shape)
		if err != nil {
			return nil, err
		}
		return bijection.NewScale(scale)

	case "permute":
		return bijection.NewPermute(l.Permutation, shape...)
	case "flip":
		return bijection.NewFlip(shape...), nil
	case "exp":
		return bijection.NewExp(shape...), nil
	case "softplus":
		return bijection.NewSoftPlus(shape...), nil
	case "tanh":
		return bijection.NewTanh(shape...), nil
	case "leakytanh":
		return bijection.NewLeakyTanh(l.MaxVal, shape...)
	}
	return nil, errors.Errorf("unknown layer type %q", l.Type)
}

// Build constructs the distribution described by the receiver.
func (c *FlowConfig) Build() (*distribution.Transformed, error) {
	base, err := c.baseDistribution()
	if err != nil {
		return nil, errors.Wrap(err, "build")
	}

	shape := tensor.Shape(c.Shape)
	layers := make([]bijection.Bijection, 0, len(c.Layers))
	for i, l := range c.Layers {
		b, err := l.bijection(shape)
		if err != nil {
			return nil, errors.Wrapf(err, "build: layer %d (%s)", i, l.Type)
		}
		layers = append(layers, b)
	}
	if len(layers) == 0 {
		layers = append(layers, bijection.NewIdentity(shape))
	}

	chain, err := bijection.NewChain(layers...)
	if err != nil {
		return nil, errors.Wrap(err, "build")
	}
	return distribution.NewTransformed(base, chain)
}
