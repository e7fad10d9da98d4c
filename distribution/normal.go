package distribution

import (
	"math"

	"github.com/pkg/errors"
	"gorgonia.org/tensor"

	"github.com/samuelfneumann/goflow"
	"github.com/samuelfneumann/goflow/bijection"
)

// affineOf builds the Affine location-scale bijection shared by the
// location-scale families, along with the broadcast shape of loc and
// scale.
func affineOf(loc, scale *goflow.Array) (*bijection.Affine, tensor.Shape, error) {
	a, err := bijection.NewAffine(loc, scale)
	if err != nil {
		return nil, nil, err
	}
	return a, a.Shape(), nil
}

// Normal is a distribution of independent normal elements, one per
// element of the broadcast shape of its mean and standard deviation. For
// example, given vectors
//
//	loc   := [m_1, m_2, ..., m_N]
//	scale := [s_1, s_2, ..., s_N]
//
// the Normal describes [𝒩(m_1, s_1), 𝒩(m_2, s_2), ..., 𝒩(m_N, s_N)].
//
// It is implemented as a StandardNormal transformed by an Affine
// bijection.
type Normal struct {
	*Transformed
	affine *bijection.Affine
}

// NewNormal returns a new Normal. loc and scale must broadcast together
// and all elements of scale must be positive.
func NewNormal(loc, scale *goflow.Array) (*Normal, error) {
	a, shape, err := affineOf(loc, scale)
	if err != nil {
		return nil, errors.Wrap(err, "newNormal")
	}

	t, err := NewTransformed(NewStandardNormal(shape...), a)
	if err != nil {
		return nil, errors.Wrap(err, "newNormal")
	}
	return &Normal{Transformed: t, affine: a}, nil
}

// Loc returns the mean of the distribution
func (n *Normal) Loc() *goflow.Array { return n.affine.Loc() }

// Scale returns the standard deviation of the distribution
func (n *Normal) Scale() (*goflow.Array, error) { return n.affine.Scale() }

// Uniform is a distribution of independent uniform elements on
// [min, max].
type Uniform struct {
	*Transformed
	affine *bijection.Affine
}

// NewUniform returns a new Uniform. minimum and maximum must broadcast
// together, and no maximum may be less than its minimum. An element with
// equal bounds is a point mass at that bound, with log density +Inf there
// and -Inf everywhere else.
func NewUniform(minimum, maximum *goflow.Array) (*Uniform, error) {
	width, err := goflow.Sub(maximum, minimum)
	if err != nil {
		return nil, errors.Wrap(err, "newUniform")
	}
	degenerate := false
	for _, w := range width.Data() {
		if w < 0 || math.IsNaN(w) {
			return nil, errors.Wrapf(goflow.ErrDomain, "newUniform: "+
				"minimums must not exceed the maximums, got min %v and "+
				"max %v", minimum, maximum)
		}
		degenerate = degenerate || w == 0
	}

	var a *bijection.Affine
	if degenerate {
		// A zero width has no softplus preimage
		a, err = bijection.NewAffineFromParam(minimum, goflow.PlainParam(width))
	} else {
		a, _, err = affineOf(minimum, width)
	}
	if err != nil {
		return nil, errors.Wrap(err, "newUniform")
	}
	shape := a.Shape()

	t, err := NewTransformed(NewStandardUniform(shape...), a)
	if err != nil {
		return nil, errors.Wrap(err, "newUniform")
	}
	return &Uniform{Transformed: t, affine: a}, nil
}

// Min returns the minimum of the distribution
func (u *Uniform) Min() *goflow.Array { return u.affine.Loc() }

// Max returns the maximum of the distribution
func (u *Uniform) Max() (*goflow.Array, error) {
	width, err := u.affine.Scale()
	if err != nil {
		return nil, errors.Wrap(err, "max")
	}
	return goflow.Add(u.affine.Loc(), width)
}

// Gumbel is a distribution of independent Gumbel (maximum) elements.
type Gumbel struct {
	*Transformed
	affine *bijection.Affine
}

// NewGumbel returns a new Gumbel. loc and scale must broadcast together
// and all elements of scale must be positive.
func NewGumbel(loc, scale *goflow.Array) (*Gumbel, error) {
	a, shape, err := affineOf(loc, scale)
	if err != nil {
		return nil, errors.Wrap(err, "newGumbel")
	}

	t, err := NewTransformed(NewStandardGumbel(shape...), a)
	if err != nil {
		return nil, errors.Wrap(err, "newGumbel")
	}
	return &Gumbel{Transformed: t, affine: a}, nil
}

// Loc returns the location of the distribution
func (g *Gumbel) Loc() *goflow.Array { return g.affine.Loc() }

// Scale returns the scale of the distribution
func (g *Gumbel) Scale() (*goflow.Array, error) { return g.affine.Scale() }

// Cauchy is a distribution of independent Cauchy elements.
type Cauchy struct {
	*Transformed
	affine *bijection.Affine
}

// NewCauchy returns a new Cauchy. loc and scale must broadcast together
// and all elements of scale must be positive.
func NewCauchy(loc, scale *goflow.Array) (*Cauchy, error) {
	a, shape, err := affineOf(loc, scale)
	if err != nil {
		return nil, errors.Wrap(err, "newCauchy")
	}

	t, err := NewTransformed(NewStandardCauchy(shape...), a)
	if err != nil {
		return nil, errors.Wrap(err, "newCauchy")
	}
	return &Cauchy{Transformed: t, affine: a}, nil
}

// Loc returns the location of the distribution
func (c *Cauchy) Loc() *goflow.Array { return c.affine.Loc() }

// Scale returns the scale of the distribution
func (c *Cauchy) Scale() (*goflow.Array, error) { return c.affine.Scale() }

// StudentT is a distribution of independent Student's t elements.
type StudentT struct {
	*Transformed
	affine *bijection.Affine
	base   *StandardStudentT
}

// NewStudentT returns a new StudentT. df, loc and scale must broadcast
// together, and all elements of df and scale must be positive.
func NewStudentT(df, loc, scale *goflow.Array) (*StudentT, error) {
	shape, err := goflow.BroadcastShapes(df.Shape(), loc.Shape(), scale.Shape())
	if err != nil {
		return nil, errors.Wrap(err, "newStudentT")
	}

	arrays := []*goflow.Array{df, loc, scale}
	for i, arr := range arrays {
		if arrays[i], err = goflow.BroadcastTo(arr, shape); err != nil {
			return nil, errors.Wrap(err, "newStudentT")
		}
	}

	base, err := NewStandardStudentT(arrays[0])
	if err != nil {
		return nil, errors.Wrap(err, "newStudentT")
	}
	a, err := bijection.NewAffine(arrays[1], arrays[2])
	if err != nil {
		return nil, errors.Wrap(err, "newStudentT")
	}

	t, err := NewTransformed(base, a)
	if err != nil {
		return nil, errors.Wrap(err, "newStudentT")
	}
	return &StudentT{Transformed: t, affine: a, base: base}, nil
}

// Loc returns the location of the distribution
func (s *StudentT) Loc() *goflow.Array { return s.affine.Loc() }

// Scale returns the scale of the distribution
func (s *StudentT) Scale() (*goflow.Array, error) { return s.affine.Scale() }

// DF returns the degrees of freedom of the distribution
func (s *StudentT) DF() (*goflow.Array, error) { return s.base.DF() }
