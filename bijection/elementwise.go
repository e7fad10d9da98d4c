package bijection

import (
	"math"

	"github.com/pkg/errors"
	"gorgonia.org/tensor"

	"github.com/samuelfneumann/goflow"
)

// elementwise is a bijection applying a scalar bijection f to every
// element. logDeriv(x) is log|f'(x)|.
type elementwise struct {
	shape    tensor.Shape
	f        func(float64) float64
	finv     func(float64) float64
	logDeriv func(float64) float64
}

// Shape implements Bijection
func (e *elementwise) Shape() tensor.Shape { return e.shape.Clone() }

// CondShape implements Bijection
func (e *elementwise) CondShape() goflow.Cond { return goflow.Cond{} }

func (e *elementwise) logDet(x *goflow.Array) float64 {
	return goflow.Sum(goflow.Map(x, e.logDeriv))
}

// Transform implements Bijection
func (e *elementwise) Transform(x, condition *goflow.Array) (*goflow.Array, error) {
	if err := argcheck(e, x, condition); err != nil {
		return nil, errors.Wrap(err, "transform")
	}
	return goflow.Map(x, e.f), nil
}

// TransformAndLogDet implements Bijection
func (e *elementwise) TransformAndLogDet(x, condition *goflow.Array) (*goflow.Array, float64, error) {
	y, err := e.Transform(x, condition)
	if err != nil {
		return nil, 0, err
	}
	return y, e.logDet(x), nil
}

// Inverse implements Bijection
func (e *elementwise) Inverse(y, condition *goflow.Array) (*goflow.Array, error) {
	if err := argcheck(e, y, condition); err != nil {
		return nil, errors.Wrap(err, "inverse")
	}
	return goflow.Map(y, e.finv), nil
}

// InverseAndLogDet implements Bijection
func (e *elementwise) InverseAndLogDet(y, condition *goflow.Array) (*goflow.Array, float64, error) {
	x, err := e.Inverse(y, condition)
	if err != nil {
		return nil, 0, err
	}
	return x, -e.logDet(x), nil
}

// Exp is the elementwise exponential, mapping the real line onto the
// positive reals.
type Exp struct {
	elementwise
}

// NewExp returns a new Exp operating on shape.
func NewExp(shape ...int) *Exp {
	return &Exp{elementwise{
		shape:    tensor.Shape(shape).Clone(),
		f:        math.Exp,
		finv:     math.Log,
		logDeriv: func(x float64) float64 { return x },
	}}
}

// SoftPlus is the elementwise softplus log(1 + eˣ), mapping the real line
// onto the positive reals.
type SoftPlus struct {
	elementwise
}

// NewSoftPlus returns a new SoftPlus operating on shape.
func NewSoftPlus(shape ...int) *SoftPlus {
	return &SoftPlus{elementwise{
		shape: tensor.Shape(shape).Clone(),
		f:     goflow.Softplus,
		finv:  goflow.InvSoftplus,

		// log sigmoid(x)
		logDeriv: func(x float64) float64 { return -goflow.Softplus(-x) },
	}}
}

// Tanh is the elementwise hyperbolic tangent, mapping the real line onto
// (-1, 1).
type Tanh struct {
	elementwise
}

// NewTanh returns a new Tanh operating on shape.
func NewTanh(shape ...int) *Tanh {
	return &Tanh{elementwise{
		shape: tensor.Shape(shape).Clone(),
		f:        math.Tanh,
		finv:     math.Atanh,
		logDeriv: tanhLogDeriv,
	}}
}

// tanhLogDeriv is log(1 - tanh²(x)) in a form that is stable for large
// |x|.
func tanhLogDeriv(x float64) float64 {
	return 2 * (math.Ln2 - x - goflow.Softplus(-2*x))
}

// LeakyTanh is tanh on [-maxVal, maxVal] and linear outside it, matching
// tanh and its derivative at ±maxVal. Unlike Tanh it maps the real line
// onto the real line, so it can sit in the middle of a flow.
type LeakyTanh struct {
	elementwise
	maxVal float64
}

// NewLeakyTanh returns a new LeakyTanh operating on shape. maxVal must be
// positive and finite.
func NewLeakyTanh(maxVal float64, shape ...int) (*LeakyTanh, error) {
	if !(maxVal > 0) || math.IsInf(maxVal, 1) {
		return nil, errors.Wrapf(goflow.ErrDomain, "newLeakyTanh: maxVal "+
			"must be positive and finite but got %v", maxVal)
	}

	logGrad := tanhLogDeriv(maxVal)
	grad := math.Exp(logGrad)
	edge := math.Tanh(maxVal)
	intercept := edge - grad*maxVal

	return &LeakyTanh{
		maxVal: maxVal,
		elementwise: elementwise{
			shape: tensor.Shape(shape).Clone(),
			f: func(x float64) float64 {
				if math.Abs(x) >= maxVal {
					return grad*x + math.Copysign(intercept, x)
				}
				return math.Tanh(x)
			},
			finv: func(y float64) float64 {
				if math.Abs(y) >= edge {
					return (y - math.Copysign(intercept, y)) / grad
				}
				return math.Atanh(y)
			},
			logDeriv: func(x float64) float64 {
				if math.Abs(x) >= maxVal {
					return logGrad
				}
				return tanhLogDeriv(x)
			},
		},
	}, nil
}

// MaxVal returns the magnitude beyond which the receiver is linear
func (l *LeakyTanh) MaxVal() float64 { return l.maxVal }
