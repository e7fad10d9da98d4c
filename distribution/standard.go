package distribution

import (
	"github.com/pkg/errors"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
	"gorgonia.org/tensor"

	"github.com/samuelfneumann/goflow"
)

// univariate is a gonum distribution evaluated element-wise.
type univariate interface {
	LogProb(x float64) float64
	Rand() float64
}

// elements returns the univariate distribution of each flattened element.
type elements func(i int) univariate

// standard is an unconditional distribution whose elements are
// independent draws from fixed univariate distributions. dist resolves
// the distributions of all elements, drawing from src.
type standard struct {
	shape tensor.Shape
	dist  func(src rand.Source) (elements, error)
}

// same returns a dist function under which every element follows the
// univariate distribution built by f.
func same(f func(src rand.Source) univariate) func(src rand.Source) (elements, error) {
	return func(src rand.Source) (elements, error) {
		u := f(src)
		return func(int) univariate { return u }, nil
	}
}

// Shape implements Distribution
func (s *standard) Shape() tensor.Shape { return s.shape.Clone() }

// CondShape implements Distribution
func (s *standard) CondShape() goflow.Cond { return goflow.Cond{} }

// UnbatchedLogProb implements Distribution
func (s *standard) UnbatchedLogProb(x, condition *goflow.Array) (float64, error) {
	if err := goflow.CheckArgs(x, s.shape, condition, goflow.Cond{}); err != nil {
		return 0, errors.Wrap(err, "logProb")
	}

	elem, err := s.dist(nil)
	if err != nil {
		return 0, errors.Wrap(err, "logProb")
	}

	total := 0.0
	for i, v := range x.Data() {
		total += elem(i).LogProb(v)
	}
	return total, nil
}

// UnbatchedSample implements Distribution
func (s *standard) UnbatchedSample(key goflow.Key, condition *goflow.Array) (*goflow.Array, error) {
	if err := goflow.CheckCondition(goflow.Cond{}, condition); err != nil {
		return nil, errors.Wrap(err, "sample")
	}

	elem, err := s.dist(key.Source())
	if err != nil {
		return nil, errors.Wrap(err, "sample")
	}

	data := make([]float64, s.shape.TotalSize())
	for i := range data {
		data[i] = elem(i).Rand()
	}
	return goflow.NewArray(data, s.shape...)
}

// UnbatchedSampleAndLogProb implements Distribution
func (s *standard) UnbatchedSampleAndLogProb(key goflow.Key, condition *goflow.Array) (*goflow.Array, float64, error) {
	x, err := s.UnbatchedSample(key, condition)
	if err != nil {
		return nil, 0, err
	}
	lp, err := s.UnbatchedLogProb(x, condition)
	if err != nil {
		return nil, 0, err
	}
	return x, lp, nil
}

// StandardNormal is the distribution of independent standard normal
// elements. It has no parameters.
type StandardNormal struct {
	standard
}

// NewStandardNormal returns a new StandardNormal with the given shape.
func NewStandardNormal(shape ...int) *StandardNormal {
	return &StandardNormal{standard{
		shape: tensor.Shape(shape).Clone(),
		dist: same(func(src rand.Source) univariate {
			return distuv.Normal{Mu: 0, Sigma: 1, Src: src}
		}),
	}}
}

// StandardUniform is the distribution of independent elements uniform on
// [0, 1].
type StandardUniform struct {
	standard
}

// NewStandardUniform returns a new StandardUniform with the given shape.
func NewStandardUniform(shape ...int) *StandardUniform {
	return &StandardUniform{standard{
		shape: tensor.Shape(shape).Clone(),
		dist: same(func(src rand.Source) univariate {
			return distuv.Uniform{Min: 0, Max: 1, Src: src}
		}),
	}}
}

// StandardGumbel is the distribution of independent standard (maximum)
// Gumbel elements, with density exp(-(x + e⁻ˣ)).
type StandardGumbel struct {
	standard
}

// NewStandardGumbel returns a new StandardGumbel with the given shape.
func NewStandardGumbel(shape ...int) *StandardGumbel {
	return &StandardGumbel{standard{
		shape: tensor.Shape(shape).Clone(),
		dist: same(func(src rand.Source) univariate {
			return distuv.GumbelRight{Mu: 0, Beta: 1, Src: src}
		}),
	}}
}

// StandardCauchy is the distribution of independent standard Cauchy
// elements.
type StandardCauchy struct {
	standard
}

// NewStandardCauchy returns a new StandardCauchy with the given shape.
func NewStandardCauchy(shape ...int) *StandardCauchy {
	return &StandardCauchy{standard{
		shape: tensor.Shape(shape).Clone(),
		dist: same(func(src rand.Source) univariate {
			return distuv.StudentsT{Mu: 0, Sigma: 1, Nu: 1, Src: src}
		}),
	}}
}

// StandardStudentT is the distribution of independent Student's t
// elements with location 0, scale 1 and per-element degrees of freedom.
type StandardStudentT struct {
	standard
	df goflow.Param
}

// NewStandardStudentT returns a new StandardStudentT whose shape is the
// shape of df. All degrees of freedom must be positive.
func NewStandardStudentT(df *goflow.Array) (*StandardStudentT, error) {
	p, err := goflow.PositiveParam(df)
	if err != nil {
		return nil, errors.Wrap(err, "newStandardStudentT")
	}

	s := &StandardStudentT{df: p}
	s.standard = standard{
		shape: df.Shape(),
		dist: func(src rand.Source) (elements, error) {
			nu, err := s.df.Unwrap()
			if err != nil {
				return nil, err
			}
			df := nu.Data()
			return func(i int) univariate {
				return distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df[i], Src: src}
			}, nil
		},
	}
	return s, nil
}

// DF returns the degrees of freedom
func (s *StandardStudentT) DF() (*goflow.Array, error) { return s.df.Unwrap() }
