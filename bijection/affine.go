package bijection

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
	"gorgonia.org/tensor"

	"github.com/samuelfneumann/goflow"
)

// Affine is the elementwise affine transformation y = a*x + b.
//
// By default the scale is constrained to be positive by storing it as a
// softplus reparameterization; NewAffineFromParam accepts other
// parameterizations.
type Affine struct {
	shape tensor.Shape
	loc   *goflow.Array
	scale goflow.Param
}

// NewAffine returns a new Affine. loc and scale are broadcast against each
// other and their broadcast shape is the shape of the bijection. All
// elements of scale must be positive.
func NewAffine(loc, scale *goflow.Array) (*Affine, error) {
	shape, err := goflow.BroadcastShapes(loc.Shape(), scale.Shape())
	if err != nil {
		return nil, errors.Wrap(err, "newAffine")
	}
	scale, err = goflow.BroadcastTo(scale, shape)
	if err != nil {
		return nil, errors.Wrap(err, "newAffine")
	}

	p, err := goflow.PositiveParam(scale)
	if err != nil {
		return nil, errors.Wrap(err, "newAffine")
	}
	return NewAffineFromParam(loc, p)
}

// NewAffineFromParam returns a new Affine whose scale is read from p.
// The unwrapped scale and loc are broadcast against each other.
func NewAffineFromParam(loc *goflow.Array, p goflow.Param) (*Affine, error) {
	scale, err := p.Unwrap()
	if err != nil {
		return nil, errors.Wrap(err, "newAffineFromParam")
	}
	shape, err := goflow.BroadcastShapes(loc.Shape(), scale.Shape())
	if err != nil {
		return nil, errors.Wrap(err, "newAffineFromParam")
	}
	if !goflow.ShapeEq(shape, scale.Shape()) {
		return nil, errors.Wrapf(goflow.ErrShape, "newAffineFromParam: "+
			"scale with shape %v must already have the broadcast shape %v",
			scale.Shape(), shape)
	}
	loc, err = goflow.BroadcastTo(loc, shape)
	if err != nil {
		return nil, errors.Wrap(err, "newAffineFromParam")
	}

	return &Affine{shape: shape, loc: loc, scale: p}, nil
}

// Shape implements Bijection
func (a *Affine) Shape() tensor.Shape { return a.shape.Clone() }

// CondShape implements Bijection
func (a *Affine) CondShape() goflow.Cond { return goflow.Cond{} }

// Loc returns the location parameter
func (a *Affine) Loc() *goflow.Array { return a.loc }

// Scale returns the unwrapped scale parameter
func (a *Affine) Scale() (*goflow.Array, error) { return a.scale.Unwrap() }

// ScaleParam returns the stored, possibly reparameterized, scale
func (a *Affine) ScaleParam() goflow.Param { return a.scale }

// Transform implements Bijection
func (a *Affine) Transform(x, condition *goflow.Array) (*goflow.Array, error) {
	y, _, err := a.TransformAndLogDet(x, condition)
	return y, err
}

// TransformAndLogDet implements Bijection
func (a *Affine) TransformAndLogDet(x, condition *goflow.Array) (*goflow.Array, float64, error) {
	if err := argcheck(a, x, condition); err != nil {
		return nil, 0, errors.Wrap(err, "transform")
	}
	scale, err := a.scale.Unwrap()
	if err != nil {
		return nil, 0, errors.Wrap(err, "transform")
	}

	y, err := goflow.Mul(x, scale)
	if err == nil {
		y, err = goflow.Add(y, a.loc)
	}
	if err != nil {
		return nil, 0, errors.Wrap(err, "transform")
	}

	return y, goflow.SumLogAbs(scale), nil
}

// Inverse implements Bijection
func (a *Affine) Inverse(y, condition *goflow.Array) (*goflow.Array, error) {
	x, _, err := a.InverseAndLogDet(y, condition)
	return x, err
}

// InverseAndLogDet implements Bijection
func (a *Affine) InverseAndLogDet(y, condition *goflow.Array) (*goflow.Array, float64, error) {
	if err := argcheck(a, y, condition); err != nil {
		return nil, 0, errors.Wrap(err, "inverse")
	}
	scale, err := a.scale.Unwrap()
	if err != nil {
		return nil, 0, errors.Wrap(err, "inverse")
	}

	x, err := goflow.Sub(y, a.loc)
	if err == nil {
		x, err = goflow.Div(x, scale)
	}
	if err != nil {
		return nil, 0, errors.Wrap(err, "inverse")
	}

	return x, -goflow.SumLogAbs(scale), nil
}

// Loc is the location transformation y = x + c.
type Loc struct {
	loc *goflow.Array
}

// NewLoc returns a new Loc whose shape is the shape of loc.
func NewLoc(loc *goflow.Array) *Loc {
	return &Loc{loc: loc}
}

// Shape implements Bijection
func (l *Loc) Shape() tensor.Shape { return l.loc.Shape() }

// CondShape implements Bijection
func (l *Loc) CondShape() goflow.Cond { return goflow.Cond{} }

// Loc returns the location parameter
func (l *Loc) Loc() *goflow.Array { return l.loc }

// Transform implements Bijection
func (l *Loc) Transform(x, condition *goflow.Array) (*goflow.Array, error) {
	if err := argcheck(l, x, condition); err != nil {
		return nil, errors.Wrap(err, "transform")
	}
	return goflow.Add(x, l.loc)
}

// TransformAndLogDet implements Bijection
func (l *Loc) TransformAndLogDet(x, condition *goflow.Array) (*goflow.Array, float64, error) {
	y, err := l.Transform(x, condition)
	return y, 0, err
}

// Inverse implements Bijection
func (l *Loc) Inverse(y, condition *goflow.Array) (*goflow.Array, error) {
	if err := argcheck(l, y, condition); err != nil {
		return nil, errors.Wrap(err, "inverse")
	}
	return goflow.Sub(y, l.loc)
}

// InverseAndLogDet implements Bijection
func (l *Loc) InverseAndLogDet(y, condition *goflow.Array) (*goflow.Array, float64, error) {
	x, err := l.Inverse(y, condition)
	return x, 0, err
}

// Scale is the scaling transformation y = a*x, with a constrained to be
// positive.
type Scale struct {
	shape tensor.Shape
	scale goflow.Param
}

// NewScale returns a new Scale whose shape is the shape of scale.
func NewScale(scale *goflow.Array) (*Scale, error) {
	p, err := goflow.PositiveParam(scale)
	if err != nil {
		return nil, errors.Wrap(err, "newScale")
	}
	return &Scale{shape: scale.Shape(), scale: p}, nil
}

// Shape implements Bijection
func (s *Scale) Shape() tensor.Shape { return s.shape.Clone() }

// CondShape implements Bijection
func (s *Scale) CondShape() goflow.Cond { return goflow.Cond{} }

// Scale returns the unwrapped scale parameter
func (s *Scale) Scale() (*goflow.Array, error) { return s.scale.Unwrap() }

// Transform implements Bijection
func (s *Scale) Transform(x, condition *goflow.Array) (*goflow.Array, error) {
	y, _, err := s.TransformAndLogDet(x, condition)
	return y, err
}

// TransformAndLogDet implements Bijection
func (s *Scale) TransformAndLogDet(x, condition *goflow.Array) (*goflow.Array, float64, error) {
	if err := argcheck(s, x, condition); err != nil {
		return nil, 0, errors.Wrap(err, "transform")
	}
	scale, err := s.scale.Unwrap()
	if err != nil {
		return nil, 0, errors.Wrap(err, "transform")
	}
	y, err := goflow.Mul(x, scale)
	if err != nil {
		return nil, 0, errors.Wrap(err, "transform")
	}
	return y, goflow.SumLogAbs(scale), nil
}

// Inverse implements Bijection
func (s *Scale) Inverse(y, condition *goflow.Array) (*goflow.Array, error) {
	x, _, err := s.InverseAndLogDet(y, condition)
	return x, err
}

// InverseAndLogDet implements Bijection
func (s *Scale) InverseAndLogDet(y, condition *goflow.Array) (*goflow.Array, float64, error) {
	if err := argcheck(s, y, condition); err != nil {
		return nil, 0, errors.Wrap(err, "inverse")
	}
	scale, err := s.scale.Unwrap()
	if err != nil {
		return nil, 0, errors.Wrap(err, "inverse")
	}
	x, err := goflow.Div(y, scale)
	if err != nil {
		return nil, 0, errors.Wrap(err, "inverse")
	}
	return x, -goflow.SumLogAbs(scale), nil
}

// TriangularAffine is the transformation y = A*x + b, where A is a lower
// or upper triangular matrix whose diagonal is constrained to be positive
// and b is a bias vector.
type TriangularAffine struct {
	dim   int
	loc   *goflow.Array
	diag  goflow.Param
	arr   *goflow.Array // off-diagonal entries; the other triangle is ignored
	lower bool
}

// NewTriangularAffine returns a new TriangularAffine. arr must be a
// non-empty square matrix with a positive diagonal; entries outside the selected
// triangle are ignored. A scalar loc is broadcast to the dimension of
// arr.
func NewTriangularAffine(loc, arr *goflow.Array, lower bool) (*TriangularAffine, error) {
	s := arr.Shape()
	if len(s) != 2 || s[0] != s[1] || s[0] == 0 {
		return nil, errors.Wrapf(goflow.ErrShape, "newTriangularAffine: arr "+
			"must be a non-empty, square, 2-dimensional matrix but has "+
			"shape %v", s)
	}
	dim := s[0]

	loc, err := goflow.BroadcastTo(loc, tensor.Shape{dim})
	if err != nil {
		return nil, errors.Wrap(err, "newTriangularAffine")
	}

	data := arr.Data()
	diag := make([]float64, dim)
	for i := range diag {
		diag[i] = data[i*dim+i]
	}
	p, err := goflow.PositiveParam(goflow.Vector(diag...))
	if err != nil {
		return nil, errors.Wrap(err, "newTriangularAffine: diagonal")
	}

	return &TriangularAffine{
		dim:   dim,
		loc:   loc,
		diag:  p,
		arr:   arr,
		lower: lower,
	}, nil
}

// Shape implements Bijection
func (t *TriangularAffine) Shape() tensor.Shape { return tensor.Shape{t.dim} }

// CondShape implements Bijection
func (t *TriangularAffine) CondShape() goflow.Cond { return goflow.Cond{} }

// Lower reports whether the receiver's matrix is lower triangular
func (t *TriangularAffine) Lower() bool { return t.lower }

// Triangular assembles the triangular matrix from the constrained
// diagonal and the off-diagonal entries.
func (t *TriangularAffine) Triangular() (*mat.TriDense, error) {
	diag, err := t.diag.Unwrap()
	if err != nil {
		return nil, errors.Wrap(err, "triangular")
	}

	kind := mat.Upper
	if t.lower {
		kind = mat.Lower
	}

	d, arr := diag.Data(), t.arr.Data()
	data := make([]float64, t.dim*t.dim)
	for i := 0; i < t.dim; i++ {
		for j := 0; j < t.dim; j++ {
			switch {
			case i == j:
				data[i*t.dim+j] = d[i]
			case t.lower && j < i, !t.lower && j > i:
				data[i*t.dim+j] = arr[i*t.dim+j]
			}
		}
	}

	return mat.NewTriDense(t.dim, kind, data), nil
}

func (t *TriangularAffine) logDet(tri *mat.TriDense) float64 {
	total := 0.0
	for i := 0; i < t.dim; i++ {
		total += logAbs(tri.At(i, i))
	}
	return total
}

// Transform implements Bijection
func (t *TriangularAffine) Transform(x, condition *goflow.Array) (*goflow.Array, error) {
	y, _, err := t.TransformAndLogDet(x, condition)
	return y, err
}

// TransformAndLogDet implements Bijection
func (t *TriangularAffine) TransformAndLogDet(x, condition *goflow.Array) (*goflow.Array, float64, error) {
	if err := argcheck(t, x, condition); err != nil {
		return nil, 0, errors.Wrap(err, "transform")
	}
	tri, err := t.Triangular()
	if err != nil {
		return nil, 0, errors.Wrap(err, "transform")
	}

	var ax mat.VecDense
	ax.MulVec(tri, mat.NewVecDense(t.dim, x.Data()))

	y, err := goflow.Add(vecToArray(&ax), t.loc)
	if err != nil {
		return nil, 0, errors.Wrap(err, "transform")
	}
	return y, t.logDet(tri), nil
}

// Inverse implements Bijection
func (t *TriangularAffine) Inverse(y, condition *goflow.Array) (*goflow.Array, error) {
	x, _, err := t.InverseAndLogDet(y, condition)
	return x, err
}

// InverseAndLogDet implements Bijection
func (t *TriangularAffine) InverseAndLogDet(y, condition *goflow.Array) (*goflow.Array, float64, error) {
	if err := argcheck(t, y, condition); err != nil {
		return nil, 0, errors.Wrap(err, "inverse")
	}
	tri, err := t.Triangular()
	if err != nil {
		return nil, 0, errors.Wrap(err, "inverse")
	}

	shifted, err := goflow.Sub(y, t.loc)
	if err != nil {
		return nil, 0, errors.Wrap(err, "inverse")
	}

	var x mat.VecDense
	if err := x.SolveVec(tri, mat.NewVecDense(t.dim, shifted.Data())); err != nil {
		return nil, 0, errors.Wrap(err, "inverse: triangular solve")
	}
	return vecToArray(&x), -t.logDet(tri), nil
}

func vecToArray(v *mat.VecDense) *goflow.Array {
	data := make([]float64, v.Len())
	for i := range data {
		data[i] = v.AtVec(i)
	}
	return goflow.Vector(data...)
}

// Module is a function of the conditioning variable, such as a small
// network with trainable parameters. Its output must broadcast to the
// shape of the bijection using it.
type Module interface {
	Apply(condition *goflow.Array) (*goflow.Array, error)
}

// AdditiveCondition is the transformation y = x + f(condition) for a
// Module f. It lets the location of a distribution depend on the
// conditioning variable. The log-determinant is always zero.
type AdditiveCondition struct {
	module Module
	shape  tensor.Shape
	cond   goflow.Cond
}

// NewAdditiveCondition returns a new AdditiveCondition of the given
// shape, conditioned on a variable of shape condShape.
func NewAdditiveCondition(module Module, shape, condShape tensor.Shape) *AdditiveCondition {
	return &AdditiveCondition{
		module: module,
		shape:  shape.Clone(),
		cond:   goflow.CondFromShape(condShape),
	}
}

// Shape implements Bijection
func (a *AdditiveCondition) Shape() tensor.Shape { return a.shape.Clone() }

// CondShape implements Bijection
func (a *AdditiveCondition) CondShape() goflow.Cond { return a.cond }

func (a *AdditiveCondition) shift(x, condition *goflow.Array) (*goflow.Array, error) {
	if err := argcheck(a, x, condition); err != nil {
		return nil, err
	}
	out, err := a.module.Apply(condition)
	if err != nil {
		return nil, errors.Wrap(err, "module")
	}
	return goflow.BroadcastTo(out, a.shape)
}

// Transform implements Bijection
func (a *AdditiveCondition) Transform(x, condition *goflow.Array) (*goflow.Array, error) {
	shift, err := a.shift(x, condition)
	if err != nil {
		return nil, errors.Wrap(err, "transform")
	}
	return goflow.Add(x, shift)
}

// TransformAndLogDet implements Bijection
func (a *AdditiveCondition) TransformAndLogDet(x, condition *goflow.Array) (*goflow.Array, float64, error) {
	y, err := a.Transform(x, condition)
	return y, 0, err
}

// Inverse implements Bijection
func (a *AdditiveCondition) Inverse(y, condition *goflow.Array) (*goflow.Array, error) {
	shift, err := a.shift(y, condition)
	if err != nil {
		return nil, errors.Wrap(err, "inverse")
	}
	return goflow.Sub(y, shift)
}

// InverseAndLogDet implements Bijection
func (a *AdditiveCondition) InverseAndLogDet(y, condition *goflow.Array) (*goflow.Array, float64, error) {
	x, err := a.Inverse(y, condition)
	return x, 0, err
}
