// Package conditioner provides functions of a conditioning variable, used
// by conditional bijections such as bijection.AdditiveCondition.
package conditioner

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/stat/distuv"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"

	"github.com/samuelfneumann/goflow"
)

// Func is a function of a conditioning variable
type Func interface {
	Apply(condition *goflow.Array) (*goflow.Array, error)
}

type funcOf func(condition *goflow.Array) (*goflow.Array, error)

func (f funcOf) Apply(condition *goflow.Array) (*goflow.Array, error) {
	return f(condition)
}

// FuncOf adapts an ordinary function to a Func.
func FuncOf(f func(condition *goflow.Array) (*goflow.Array, error)) Func {
	return funcOf(f)
}

// Linear is the affine function W·c + b of a vector condition c. It is
// evaluated as a gorgonia expression graph. A bounded Linear clamps every
// output to a fixed interval.
type Linear struct {
	weights *goflow.Array // (out, in)
	bias    *goflow.Array // (out)

	bounded bool
	lo, hi  float64
}

// NewLinear returns a new Linear with weights of shape (out, in) and bias
// of shape (out).
func NewLinear(weights, bias *goflow.Array) (*Linear, error) {
	ws := weights.Shape()
	if len(ws) != 2 || ws[0] == 0 || ws[1] == 0 {
		return nil, errors.Wrapf(goflow.ErrShape, "newLinear: expected "+
			"non-empty weights matrix but got shape %v", ws)
	}
	if err := goflow.CheckEvent("bias", bias, tensor.Shape{ws[0]}); err != nil {
		return nil, errors.Wrap(err, "newLinear")
	}

	return &Linear{weights: weights, bias: bias}, nil
}

// NewRandomLinear returns a Linear mapping in inputs to out outputs,
// with weights and bias drawn uniformly from [-1/√in, 1/√in] using key.
func NewRandomLinear(in, out int, key goflow.Key) (*Linear, error) {
	if in < 1 || out < 1 {
		return nil, errors.Wrapf(goflow.ErrShape, "newRandomLinear: "+
			"expected positive dimensions but got in=%v out=%v", in, out)
	}

	bound := 1 / math.Sqrt(float64(in))
	keys := key.Split(2)
	draw := func(k goflow.Key, n int) []float64 {
		u := distuv.Uniform{Min: -bound, Max: bound, Src: k.Source()}
		data := make([]float64, n)
		for i := range data {
			data[i] = u.Rand()
		}
		return data
	}

	weights, err := goflow.NewArray(draw(keys[0], out*in), out, in)
	if err != nil {
		return nil, errors.Wrap(err, "newRandomLinear")
	}
	bias, err := goflow.NewArray(draw(keys[1], out), out)
	if err != nil {
		return nil, errors.Wrap(err, "newRandomLinear")
	}
	return NewLinear(weights, bias)
}

// In returns the size of the condition
func (l *Linear) In() int { return l.weights.Shape()[1] }

// Out returns the size of the output
func (l *Linear) Out() int { return l.weights.Shape()[0] }

// Weights returns the weight matrix
func (l *Linear) Weights() *goflow.Array { return l.weights }

// Bias returns the bias vector
func (l *Linear) Bias() *goflow.Array { return l.bias }

// WithBounds returns a copy of the receiver whose outputs are clamped to
// [lo, hi].
func (l *Linear) WithBounds(lo, hi float64) (*Linear, error) {
	if math.IsNaN(lo) || math.IsNaN(hi) || lo > hi {
		return nil, errors.Wrapf(goflow.ErrDomain, "withBounds: invalid "+
			"interval [%v, %v]", lo, hi)
	}

	bounded := *l
	bounded.bounded = true
	bounded.lo, bounded.hi = lo, hi
	return &bounded, nil
}

// Bounds returns the output interval of the receiver and whether it is
// bounded at all.
func (l *Linear) Bounds() (lo, hi float64, ok bool) {
	return l.lo, l.hi, l.bounded
}

// Apply implements Func. condition must have shape (in).
func (l *Linear) Apply(condition *goflow.Array) (*goflow.Array, error) {
	if err := goflow.CheckEvent("condition", condition, tensor.Shape{l.In()}); err != nil {
		return nil, errors.Wrap(err, "apply")
	}

	wT, err := l.weights.Tensor()
	if err != nil {
		return nil, errors.Wrap(err, "apply")
	}
	bT, err := l.bias.Tensor()
	if err != nil {
		return nil, errors.Wrap(err, "apply")
	}
	cT, err := condition.Tensor()
	if err != nil {
		return nil, errors.Wrap(err, "apply")
	}

	g := G.NewGraph()
	w := G.NewMatrix(g, tensor.Float64, G.WithShape(l.Out(), l.In()),
		G.WithValue(wT), G.WithName("weights"))
	b := G.NewVector(g, tensor.Float64, G.WithShape(l.Out()),
		G.WithValue(bT), G.WithName("bias"))
	c := G.NewVector(g, tensor.Float64, G.WithShape(l.In()),
		G.WithValue(cT), G.WithName("condition"))

	wc, err := G.Mul(w, c)
	if err != nil {
		return nil, errors.Wrap(err, "apply: could not multiply weights")
	}
	out, err := G.Add(wc, b)
	if err != nil {
		return nil, errors.Wrap(err, "apply: could not add bias")
	}
	if l.bounded {
		out, err = clamp(out, l.lo, l.hi)
		if err != nil {
			return nil, errors.Wrap(err, "apply: could not clamp output")
		}
	}

	var outVal G.Value
	G.Read(out, &outVal)

	vm := G.NewTapeMachine(g)
	defer vm.Close()
	if err := vm.RunAll(); err != nil {
		return nil, errors.Wrap(err, "apply: could not run graph")
	}

	t, ok := outVal.(tensor.Tensor)
	if !ok {
		return nil, errors.Errorf("apply: unexpected output %T", outVal)
	}
	return goflow.FromTensor(t)
}
