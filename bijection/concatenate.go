package bijection

import (
	"github.com/pkg/errors"
	"gorgonia.org/tensor"

	"github.com/samuelfneumann/goflow"
)

// Concatenate applies a sequence of bijections to consecutive blocks of
// its input along an existing axis.
type Concatenate struct {
	bijections []Bijection
	axis       int
	sizes      []int
	shape      tensor.Shape
	cond       goflow.Cond
}

// NewConcatenate returns a new Concatenate. The bijection shapes must
// agree on every dimension except axis, which may be negative.
func NewConcatenate(axis int, bijections ...Bijection) (*Concatenate, error) {
	if len(bijections) == 0 {
		return nil, errors.New("newConcatenate: at least one bijection is " +
			"required")
	}

	first := bijections[0].Shape()
	axis, err := goflow.NormalizeAxis(axis, len(first))
	if err != nil {
		return nil, errors.Wrap(err, "newConcatenate")
	}

	shape := first.Clone()
	shape[axis] = 0
	sizes := make([]int, len(bijections))
	for i, b := range bijections {
		s := b.Shape()
		if len(s) != len(first) {
			return nil, errors.Wrapf(goflow.ErrIncompatible, "newConcatenate: "+
				"cannot concatenate shapes %v and %v", first, s)
		}
		for d := range s {
			if d != axis && s[d] != first[d] {
				return nil, errors.Wrapf(goflow.ErrIncompatible,
					"newConcatenate: cannot concatenate shapes %v and %v "+
						"along axis %d", first, s, axis)
			}
		}
		sizes[i] = s[axis]
		shape[axis] += s[axis]
	}

	cond, err := mergeConds(bijections)
	if err != nil {
		return nil, errors.Wrap(err, "newConcatenate")
	}

	owned := make([]Bijection, len(bijections))
	copy(owned, bijections)

	return &Concatenate{
		bijections: owned,
		axis:       axis,
		sizes:      sizes,
		shape:      shape,
		cond:       cond,
	}, nil
}

// Shape implements Bijection
func (c *Concatenate) Shape() tensor.Shape { return c.shape.Clone() }

// CondShape implements Bijection
func (c *Concatenate) CondShape() goflow.Cond { return c.cond }

type directed func(b Bijection) func(x, condition *goflow.Array) (*goflow.Array, float64, error)

func forward(b Bijection) func(x, condition *goflow.Array) (*goflow.Array, float64, error) {
	return b.TransformAndLogDet
}

func backward(b Bijection) func(x, condition *goflow.Array) (*goflow.Array, float64, error) {
	return b.InverseAndLogDet
}

// blocks applies each bijection in direction dir to its block of x.
func (c *Concatenate) blocks(x, condition *goflow.Array, dir directed) (*goflow.Array, float64, error) {
	if err := argcheck(c, x, condition); err != nil {
		return nil, 0, err
	}

	parts, err := goflow.SplitAxis(x, c.axis, c.sizes)
	if err != nil {
		return nil, 0, err
	}

	total := 0.0
	for i, b := range c.bijections {
		var logDet float64
		parts[i], logDet, err = dir(b)(parts[i], childCondition(b, condition))
		if err != nil {
			return nil, 0, errors.Wrapf(err, "block %d", i)
		}
		total += logDet
	}

	y, err := goflow.Concat(c.axis, parts...)
	return y, total, err
}

// Transform implements Bijection
func (c *Concatenate) Transform(x, condition *goflow.Array) (*goflow.Array, error) {
	y, _, err := c.TransformAndLogDet(x, condition)
	return y, err
}

// TransformAndLogDet implements Bijection
func (c *Concatenate) TransformAndLogDet(x, condition *goflow.Array) (*goflow.Array, float64, error) {
	y, logDet, err := c.blocks(x, condition, forward)
	if err != nil {
		return nil, 0, errors.Wrap(err, "transform")
	}
	return y, logDet, nil
}

// Inverse implements Bijection
func (c *Concatenate) Inverse(y, condition *goflow.Array) (*goflow.Array, error) {
	x, _, err := c.InverseAndLogDet(y, condition)
	return x, err
}

// InverseAndLogDet implements Bijection
func (c *Concatenate) InverseAndLogDet(y, condition *goflow.Array) (*goflow.Array, float64, error) {
	x, logDet, err := c.blocks(y, condition, backward)
	if err != nil {
		return nil, 0, errors.Wrap(err, "inverse")
	}
	return x, logDet, nil
}

// Stack applies one bijection to each slice of its input along a new
// axis.
type Stack struct {
	bijections []Bijection
	axis       int
	shape      tensor.Shape
	cond       goflow.Cond
}

// NewStack returns a new Stack. All bijections must share one shape; the
// stacked shape inserts len(bijections) at position axis.
func NewStack(axis int, bijections ...Bijection) (*Stack, error) {
	if len(bijections) == 0 {
		return nil, errors.New("newStack: at least one bijection is required")
	}
	if err := checkSameShape(bijections); err != nil {
		return nil, errors.Wrap(err, "newStack")
	}

	inner := bijections[0].Shape()
	axis, err := goflow.NormalizeAxis(axis, len(inner)+1)
	if err != nil {
		return nil, errors.Wrap(err, "newStack")
	}

	cond, err := mergeConds(bijections)
	if err != nil {
		return nil, errors.Wrap(err, "newStack")
	}

	shape := append(inner[:axis:axis], len(bijections))
	shape = append(shape, inner[axis:]...)

	owned := make([]Bijection, len(bijections))
	copy(owned, bijections)

	return &Stack{bijections: owned, axis: axis, shape: shape, cond: cond}, nil
}

// Shape implements Bijection
func (s *Stack) Shape() tensor.Shape { return s.shape.Clone() }

// CondShape implements Bijection
func (s *Stack) CondShape() goflow.Cond { return s.cond }

// slices applies each bijection in direction dir to its slice of x.
func (s *Stack) slices(x, condition *goflow.Array, dir directed) (*goflow.Array, float64, error) {
	if err := argcheck(s, x, condition); err != nil {
		return nil, 0, err
	}

	parts, err := goflow.Unstack(x, s.axis)
	if err != nil {
		return nil, 0, err
	}

	total := 0.0
	for i, b := range s.bijections {
		var logDet float64
		parts[i], logDet, err = dir(b)(parts[i], childCondition(b, condition))
		if err != nil {
			return nil, 0, errors.Wrapf(err, "slice %d", i)
		}
		total += logDet
	}

	y, err := goflow.Stack(s.axis, parts...)
	return y, total, err
}

// Transform implements Bijection
func (s *Stack) Transform(x, condition *goflow.Array) (*goflow.Array, error) {
	y, _, err := s.TransformAndLogDet(x, condition)
	return y, err
}

// TransformAndLogDet implements Bijection
func (s *Stack) TransformAndLogDet(x, condition *goflow.Array) (*goflow.Array, float64, error) {
	y, logDet, err := s.slices(x, condition, forward)
	if err != nil {
		return nil, 0, errors.Wrap(err, "transform")
	}
	return y, logDet, nil
}

// Inverse implements Bijection
func (s *Stack) Inverse(y, condition *goflow.Array) (*goflow.Array, error) {
	x, _, err := s.InverseAndLogDet(y, condition)
	return x, err
}

// InverseAndLogDet implements Bijection
func (s *Stack) InverseAndLogDet(y, condition *goflow.Array) (*goflow.Array, float64, error) {
	x, logDet, err := s.slices(y, condition, backward)
	if err != nil {
		return nil, 0, errors.Wrap(err, "inverse")
	}
	return x, logDet, nil
}
