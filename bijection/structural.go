package bijection

import (
	"github.com/pkg/errors"
	"gorgonia.org/tensor"

	"github.com/samuelfneumann/goflow"
)

// Identity is the identity transformation on a fixed shape.
type Identity struct {
	shape tensor.Shape
}

// NewIdentity returns a new Identity operating on shape.
func NewIdentity(shape tensor.Shape) *Identity {
	return &Identity{shape: shape.Clone()}
}

// Shape implements Bijection
func (id *Identity) Shape() tensor.Shape { return id.shape.Clone() }

// CondShape implements Bijection
func (id *Identity) CondShape() goflow.Cond { return goflow.Cond{} }

// Transform implements Bijection
func (id *Identity) Transform(x, condition *goflow.Array) (*goflow.Array, error) {
	if err := argcheck(id, x, condition); err != nil {
		return nil, errors.Wrap(err, "transform")
	}
	return x, nil
}

// TransformAndLogDet implements Bijection
func (id *Identity) TransformAndLogDet(x, condition *goflow.Array) (*goflow.Array, float64, error) {
	y, err := id.Transform(x, condition)
	return y, 0, err
}

// Inverse implements Bijection
func (id *Identity) Inverse(y, condition *goflow.Array) (*goflow.Array, error) {
	if err := argcheck(id, y, condition); err != nil {
		return nil, errors.Wrap(err, "inverse")
	}
	return y, nil
}

// InverseAndLogDet implements Bijection
func (id *Identity) InverseAndLogDet(y, condition *goflow.Array) (*goflow.Array, float64, error) {
	x, err := id.Inverse(y, condition)
	return x, 0, err
}

// Permute permutes the flattened elements of its input.
type Permute struct {
	shape   tensor.Shape
	forward []int
	inverse []int
}

// NewPermute returns a new Permute. The i-th flattened element of the
// output is element perm[i] of the flattened input, and perm must be a
// permutation of 0, ..., n-1 where n is the size of shape.
func NewPermute(perm []int, shape ...int) (*Permute, error) {
	s := tensor.Shape(shape)
	if s.TotalSize() != len(perm) {
		return nil, errors.Wrapf(goflow.ErrShape, "newPermute: permutation "+
			"of length %d cannot act on shape %v", len(perm), s)
	}

	inverse := make([]int, len(perm))
	seen := make([]bool, len(perm))
	for i, p := range perm {
		if p < 0 || p >= len(perm) || seen[p] {
			return nil, errors.Errorf("newPermute: %v is not a permutation",
				perm)
		}
		seen[p] = true
		inverse[p] = i
	}

	forward := make([]int, len(perm))
	copy(forward, perm)

	return &Permute{shape: s.Clone(), forward: forward, inverse: inverse}, nil
}

// Shape implements Bijection
func (p *Permute) Shape() tensor.Shape { return p.shape.Clone() }

// CondShape implements Bijection
func (p *Permute) CondShape() goflow.Cond { return goflow.Cond{} }

// Permutation returns a copy of the forward permutation
func (p *Permute) Permutation() []int {
	out := make([]int, len(p.forward))
	copy(out, p.forward)
	return out
}

// Transform implements Bijection
func (p *Permute) Transform(x, condition *goflow.Array) (*goflow.Array, error) {
	if err := argcheck(p, x, condition); err != nil {
		return nil, errors.Wrap(err, "transform")
	}
	return goflow.Gather(x, p.forward)
}

// TransformAndLogDet implements Bijection
func (p *Permute) TransformAndLogDet(x, condition *goflow.Array) (*goflow.Array, float64, error) {
	y, err := p.Transform(x, condition)
	return y, 0, err
}

// Inverse implements Bijection
func (p *Permute) Inverse(y, condition *goflow.Array) (*goflow.Array, error) {
	if err := argcheck(p, y, condition); err != nil {
		return nil, errors.Wrap(err, "inverse")
	}
	return goflow.Gather(y, p.inverse)
}

// InverseAndLogDet implements Bijection
func (p *Permute) InverseAndLogDet(y, condition *goflow.Array) (*goflow.Array, float64, error) {
	x, err := p.Inverse(y, condition)
	return x, 0, err
}

// Flip reverses its input along every axis. It is its own inverse.
type Flip struct {
	shape tensor.Shape
}

// NewFlip returns a new Flip operating on shape.
func NewFlip(shape ...int) *Flip {
	return &Flip{shape: tensor.Shape(shape).Clone()}
}

// Shape implements Bijection
func (f *Flip) Shape() tensor.Shape { return f.shape.Clone() }

// CondShape implements Bijection
func (f *Flip) CondShape() goflow.Cond { return goflow.Cond{} }

// Transform implements Bijection
func (f *Flip) Transform(x, condition *goflow.Array) (*goflow.Array, error) {
	if err := argcheck(f, x, condition); err != nil {
		return nil, errors.Wrap(err, "transform")
	}
	return goflow.Reverse(x), nil
}

// TransformAndLogDet implements Bijection
func (f *Flip) TransformAndLogDet(x, condition *goflow.Array) (*goflow.Array, float64, error) {
	y, err := f.Transform(x, condition)
	return y, 0, err
}

// Inverse implements Bijection
func (f *Flip) Inverse(y, condition *goflow.Array) (*goflow.Array, error) {
	if err := argcheck(f, y, condition); err != nil {
		return nil, errors.Wrap(err, "inverse")
	}
	return goflow.Reverse(y), nil
}

// InverseAndLogDet implements Bijection
func (f *Flip) InverseAndLogDet(y, condition *goflow.Array) (*goflow.Array, float64, error) {
	x, err := f.Inverse(y, condition)
	return x, 0, err
}

// Reshape runs a bijection defined on one shape on inputs of another
// shape with the same number of elements.
type Reshape struct {
	bijection Bijection
	shape     tensor.Shape
}

// NewReshape returns a Reshape that presents b as a bijection on shape.
func NewReshape(b Bijection, shape ...int) (*Reshape, error) {
	s := tensor.Shape(shape)
	if s.TotalSize() != b.Shape().TotalSize() {
		return nil, errors.Wrapf(goflow.ErrShape, "newReshape: cannot "+
			"reshape %v into %v", b.Shape(), s)
	}
	return &Reshape{bijection: b, shape: s.Clone()}, nil
}

// Shape implements Bijection
func (r *Reshape) Shape() tensor.Shape { return r.shape.Clone() }

// CondShape implements Bijection
func (r *Reshape) CondShape() goflow.Cond { return r.bijection.CondShape() }

// apply reshapes x to the inner shape, applies f and reshapes back.
func (r *Reshape) apply(x, condition *goflow.Array,
	f func(x, condition *goflow.Array) (*goflow.Array, float64, error)) (*goflow.Array, float64, error) {
	if err := argcheck(r, x, condition); err != nil {
		return nil, 0, err
	}

	inner, err := x.Reshape(r.bijection.Shape()...)
	if err != nil {
		return nil, 0, err
	}
	out, logDet, err := f(inner, condition)
	if err != nil {
		return nil, 0, err
	}
	out, err = out.Reshape(r.shape...)
	return out, logDet, err
}

// Transform implements Bijection
func (r *Reshape) Transform(x, condition *goflow.Array) (*goflow.Array, error) {
	y, _, err := r.TransformAndLogDet(x, condition)
	return y, err
}

// TransformAndLogDet implements Bijection
func (r *Reshape) TransformAndLogDet(x, condition *goflow.Array) (*goflow.Array, float64, error) {
	y, logDet, err := r.apply(x, condition, r.bijection.TransformAndLogDet)
	if err != nil {
		return nil, 0, errors.Wrap(err, "transform")
	}
	return y, logDet, nil
}

// Inverse implements Bijection
func (r *Reshape) Inverse(y, condition *goflow.Array) (*goflow.Array, error) {
	x, _, err := r.InverseAndLogDet(y, condition)
	return x, err
}

// InverseAndLogDet implements Bijection
func (r *Reshape) InverseAndLogDet(y, condition *goflow.Array) (*goflow.Array, float64, error) {
	x, logDet, err := r.apply(y, condition, r.bijection.InverseAndLogDet)
	if err != nil {
		return nil, 0, errors.Wrap(err, "inverse")
	}
	return x, logDet, nil
}

// Sandwich is the composition g⁻¹ ∘ f ∘ g of an outer bijection g and
// an inner bijection f.
type Sandwich struct {
	outer Bijection
	inner Bijection
	cond  goflow.Cond
}

// NewSandwich returns a new Sandwich. outer and inner must share one
// shape and their conditioning shapes must merge.
func NewSandwich(outer, inner Bijection) (*Sandwich, error) {
	bijections := []Bijection{outer, inner}
	if err := checkSameShape(bijections); err != nil {
		return nil, errors.Wrap(err, "newSandwich")
	}
	cond, err := mergeConds(bijections)
	if err != nil {
		return nil, errors.Wrap(err, "newSandwich")
	}
	return &Sandwich{outer: outer, inner: inner, cond: cond}, nil
}

// Shape implements Bijection
func (s *Sandwich) Shape() tensor.Shape { return s.outer.Shape() }

// CondShape implements Bijection
func (s *Sandwich) CondShape() goflow.Cond { return s.cond }

// chain returns the equivalent Chain g, f, g⁻¹.
func (s *Sandwich) chain() (*Chain, error) {
	return NewChain(s.outer, s.inner, Invert(s.outer))
}

// Transform implements Bijection
func (s *Sandwich) Transform(x, condition *goflow.Array) (*goflow.Array, error) {
	y, _, err := s.TransformAndLogDet(x, condition)
	return y, err
}

// TransformAndLogDet implements Bijection
func (s *Sandwich) TransformAndLogDet(x, condition *goflow.Array) (*goflow.Array, float64, error) {
	c, err := s.chain()
	if err != nil {
		return nil, 0, errors.Wrap(err, "transform")
	}
	return c.TransformAndLogDet(x, condition)
}

// Inverse implements Bijection
func (s *Sandwich) Inverse(y, condition *goflow.Array) (*goflow.Array, error) {
	x, _, err := s.InverseAndLogDet(y, condition)
	return x, err
}

// InverseAndLogDet implements Bijection
func (s *Sandwich) InverseAndLogDet(y, condition *goflow.Array) (*goflow.Array, float64, error) {
	c, err := s.chain()
	if err != nil {
		return nil, 0, errors.Wrap(err, "inverse")
	}
	return c.InverseAndLogDet(y, condition)
}
