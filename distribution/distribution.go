// Package distribution provides probability distributions over arrays of
// a fixed event shape, optionally conditioned on a conditioning variable,
// together with the machinery to evaluate and sample them over arbitrary
// leading batch dimensions.
//
// A Distribution only implements unbatched primitives, which operate on a
// single event and a single key. The package functions LogProb, Sample and
// SampleAndLogProb lift those primitives to batches:
//
//	x:         (b₁, ..., bₖ) + Shape()
//	condition: (c₁, ..., cⱼ) + CondShape()
//
// Leading dimensions of x and the condition are broadcast against each
// other. Samples have shape sampleShape + leading condition dimensions +
// Shape().
package distribution

import (
	"math"

	"github.com/pkg/errors"
	"gorgonia.org/tensor"

	"github.com/samuelfneumann/goflow"
)

// Distribution is a probability distribution over arrays of shape
// Shape().
type Distribution interface {
	// Shape returns the event shape of the distribution
	Shape() tensor.Shape

	// CondShape returns the shape of the conditioning variable, or an
	// unconditional Cond
	CondShape() goflow.Cond

	// UnbatchedLogProb returns the log density of a single event x, which
	// must have shape Shape(). condition must be nil for unconditional
	// distributions and have shape CondShape() otherwise.
	UnbatchedLogProb(x, condition *goflow.Array) (float64, error)

	// UnbatchedSample draws a single event using key.
	UnbatchedSample(key goflow.Key, condition *goflow.Array) (*goflow.Array, error)

	// UnbatchedSampleAndLogProb draws a single event using key and
	// returns it along with its log density.
	UnbatchedSampleAndLogProb(key goflow.Key, condition *goflow.Array) (*goflow.Array, float64, error)
}

// LogProb evaluates the log density of x under d. x has shape batch +
// d.Shape(), and a conditional distribution takes a condition of shape
// batch' + the conditioning shape, where batch and batch' broadcast. The
// result has the broadcast batch shape. NaN densities are reported as
// -Inf.
func LogProb(d Distribution, x, condition *goflow.Array, opts ...goflow.Option) (*goflow.Array, error) {
	if err := goflow.CheckCondition(d.CondShape(), condition); err != nil {
		return nil, errors.Wrap(err, "logProb")
	}

	sig, err := goflow.NewSignature(goflow.KindLogProb, d.Shape(), d.CondShape())
	if err != nil {
		return nil, errors.Wrap(err, "logProb")
	}

	fn := goflow.Vectorize(sig, func(args []*goflow.Array) ([]*goflow.Array, error) {
		lp, err := d.UnbatchedLogProb(args[0], args[1])
		if err != nil {
			return nil, err
		}
		return []*goflow.Array{goflow.Scalar(lp)}, nil
	}, opts...)

	out, err := fn(x, condition)
	if err != nil {
		return nil, errors.Wrap(err, "logProb")
	}

	return goflow.Map(out[0], nanToNegInf), nil
}

// Sample draws samples from d using key. The result has shape
// sampleShape + leading condition dimensions + d.Shape(). Every sample
// uses its own key derived from key, so results depend only on key, the
// sample shape and the condition.
func Sample(d Distribution, key goflow.Key, sampleShape tensor.Shape,
	condition *goflow.Array, opts ...goflow.Option) (*goflow.Array, error) {
	keys, err := sampleKeys(d, key, sampleShape, condition)
	if err != nil {
		return nil, errors.Wrap(err, "sample")
	}

	sig, err := goflow.NewSignature(goflow.KindSample, d.Shape(), d.CondShape())
	if err != nil {
		return nil, errors.Wrap(err, "sample")
	}

	fn := goflow.Vectorize(sig, func(args []*goflow.Array) ([]*goflow.Array, error) {
		k, err := goflow.KeyFromArray(args[0])
		if err != nil {
			return nil, err
		}
		x, err := d.UnbatchedSample(k, args[1])
		if err != nil {
			return nil, err
		}
		return []*goflow.Array{x}, nil
	}, opts...)

	out, err := fn(keys, condition)
	if err != nil {
		return nil, errors.Wrap(err, "sample")
	}
	return out[0], nil
}

// SampleAndLogProb draws samples from d as Sample does and returns them
// along with their log densities. The samples equal those returned by
// Sample for the same arguments.
func SampleAndLogProb(d Distribution, key goflow.Key, sampleShape tensor.Shape,
	condition *goflow.Array, opts ...goflow.Option) (*goflow.Array, *goflow.Array, error) {
	keys, err := sampleKeys(d, key, sampleShape, condition)
	if err != nil {
		return nil, nil, errors.Wrap(err, "sampleAndLogProb")
	}

	sig, err := goflow.NewSignature(goflow.KindSampleAndLogProb, d.Shape(),
		d.CondShape())
	if err != nil {
		return nil, nil, errors.Wrap(err, "sampleAndLogProb")
	}

	fn := goflow.Vectorize(sig, func(args []*goflow.Array) ([]*goflow.Array, error) {
		k, err := goflow.KeyFromArray(args[0])
		if err != nil {
			return nil, err
		}
		x, lp, err := d.UnbatchedSampleAndLogProb(k, args[1])
		if err != nil {
			return nil, err
		}
		return []*goflow.Array{x, goflow.Scalar(lp)}, nil
	}, opts...)

	out, err := fn(keys, condition)
	if err != nil {
		return nil, nil, errors.Wrap(err, "sampleAndLogProb")
	}
	return out[0], goflow.Map(out[1], nanToNegInf), nil
}

// sampleKeys validates the condition and fans key out to one key per
// sample.
func sampleKeys(d Distribution, key goflow.Key, sampleShape tensor.Shape,
	condition *goflow.Array) (*goflow.Array, error) {
	cond := d.CondShape()
	if err := goflow.CheckCondition(cond, condition); err != nil {
		return nil, err
	}

	var leading tensor.Shape
	if condition != nil {
		s := condition.Shape()
		n := len(s) - cond.Dims()
		if n < 0 {
			return nil, errors.Wrapf(goflow.ErrShape, "expected trailing "+
				"dimensions matching %v for condition; got %v", cond, s)
		}
		leading = s[:n]
	}

	return goflow.SampleKeys(key, sampleShape, leading)
}

// childCondition drops the condition for unconditional parts of a
// conditional distribution.
func childCondition(c goflow.Cond, condition *goflow.Array) *goflow.Array {
	if c.IsNone() {
		return nil
	}
	return condition
}

func nanToNegInf(v float64) float64 {
	if math.IsNaN(v) {
		return math.Inf(-1)
	}
	return v
}
