package distribution

import (
	"github.com/pkg/errors"
	"gorgonia.org/tensor"

	"github.com/samuelfneumann/goflow"
)

// Specialized is a conditional distribution with its conditioning
// variable fixed, which makes it unconditional.
type Specialized struct {
	dist      Distribution
	condition *goflow.Array
}

// SpecializeCondition fixes the condition of d. condition must have
// exactly the conditioning shape of d.
func SpecializeCondition(d Distribution, condition *goflow.Array) (*Specialized, error) {
	s, ok := d.CondShape().Shape()
	if !ok {
		return nil, errors.Wrap(goflow.ErrCondition, "specializeCondition: "+
			"distribution is unconditional")
	}
	if err := goflow.CheckEvent("condition", condition, s); err != nil {
		return nil, errors.Wrap(err, "specializeCondition")
	}

	return &Specialized{dist: d, condition: condition}, nil
}

// Shape implements Distribution
func (s *Specialized) Shape() tensor.Shape { return s.dist.Shape() }

// CondShape implements Distribution
func (s *Specialized) CondShape() goflow.Cond { return goflow.Cond{} }

// Condition returns the fixed conditioning variable
func (s *Specialized) Condition() *goflow.Array { return s.condition }

// UnbatchedLogProb implements Distribution
func (s *Specialized) UnbatchedLogProb(x, condition *goflow.Array) (float64, error) {
	if err := goflow.CheckCondition(goflow.Cond{}, condition); err != nil {
		return 0, errors.Wrap(err, "logProb")
	}
	return s.dist.UnbatchedLogProb(x, s.condition)
}

// UnbatchedSample implements Distribution
func (s *Specialized) UnbatchedSample(key goflow.Key, condition *goflow.Array) (*goflow.Array, error) {
	if err := goflow.CheckCondition(goflow.Cond{}, condition); err != nil {
		return nil, errors.Wrap(err, "sample")
	}
	return s.dist.UnbatchedSample(key, s.condition)
}

// UnbatchedSampleAndLogProb implements Distribution
func (s *Specialized) UnbatchedSampleAndLogProb(key goflow.Key, condition *goflow.Array) (*goflow.Array, float64, error) {
	if err := goflow.CheckCondition(goflow.Cond{}, condition); err != nil {
		return nil, 0, errors.Wrap(err, "sampleAndLogProb")
	}
	return s.dist.UnbatchedSampleAndLogProb(key, s.condition)
}
