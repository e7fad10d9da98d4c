package distribution

import (
	"github.com/pkg/errors"
	"gorgonia.org/tensor"

	"github.com/samuelfneumann/goflow"
)

// IID is the joint distribution of n independent, identically
// distributed events of another distribution. Its shape is
// (n) + the shape of the wrapped distribution, and all events share the
// condition.
type IID struct {
	Distribution
	n int
}

// NewIID returns a new IID of n copies of d.
func NewIID(d Distribution, n int) (*IID, error) {
	if n < 1 {
		return nil, errors.Errorf("newIID: expected at least one copy but "+
			"got %v", n)
	}
	return &IID{Distribution: d, n: n}, nil
}

// N returns the number of independent events
func (i *IID) N() int { return i.n }

// Shape implements Distribution
func (i *IID) Shape() tensor.Shape {
	return goflow.ConcatShapes(tensor.Shape{i.n}, i.Distribution.Shape())
}

// UnbatchedLogProb implements Distribution
func (i *IID) UnbatchedLogProb(x, condition *goflow.Array) (float64, error) {
	if err := goflow.CheckArgs(x, i.Shape(), condition, i.CondShape()); err != nil {
		return 0, errors.Wrap(err, "logProb")
	}

	events, err := goflow.Unstack(x, 0)
	if err != nil {
		return 0, errors.Wrap(err, "logProb")
	}

	// Combine event dims
	total := 0.0
	for _, e := range events {
		lp, err := i.Distribution.UnbatchedLogProb(e, condition)
		if err != nil {
			return 0, errors.Wrap(err, "logProb")
		}
		total += lp
	}
	return total, nil
}

// UnbatchedSample implements Distribution
func (i *IID) UnbatchedSample(key goflow.Key, condition *goflow.Array) (*goflow.Array, error) {
	x, _, err := i.sample(key, condition, false)
	if err != nil {
		return nil, errors.Wrap(err, "sample")
	}
	return x, nil
}

// UnbatchedSampleAndLogProb implements Distribution
func (i *IID) UnbatchedSampleAndLogProb(key goflow.Key, condition *goflow.Array) (*goflow.Array, float64, error) {
	x, lp, err := i.sample(key, condition, true)
	if err != nil {
		return nil, 0, errors.Wrap(err, "sampleAndLogProb")
	}
	return x, lp, nil
}

// sample draws every event from its own key split from key.
func (i *IID) sample(key goflow.Key, condition *goflow.Array, withLogProb bool) (*goflow.Array, float64, error) {
	events := make([]*goflow.Array, i.n)
	total := 0.0
	for j, k := range key.Split(i.n) {
		var err error
		if withLogProb {
			var lp float64
			events[j], lp, err = i.Distribution.UnbatchedSampleAndLogProb(k, condition)
			total += lp
		} else {
			events[j], err = i.Distribution.UnbatchedSample(k, condition)
		}
		if err != nil {
			return nil, 0, err
		}
	}

	x, err := goflow.Stack(0, events...)
	return x, total, err
}
