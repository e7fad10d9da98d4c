package bijection

import (
	"github.com/pkg/errors"
	"gorgonia.org/tensor"

	"github.com/samuelfneumann/goflow"
)

// Partial applies a bijection to a subset of the flattened elements of
// its input and leaves the remaining elements unchanged.
type Partial struct {
	bijection Bijection
	idx       []int
	shape     tensor.Shape
}

// NewPartial returns a new Partial acting on shape. Element i of the
// flattened input to b is flattened element idx[i] of the input to the
// Partial, so idx must hold b's size distinct, in-range indices.
func NewPartial(b Bijection, idx []int, shape ...int) (*Partial, error) {
	s := tensor.Shape(shape).Clone()
	if b.Shape().TotalSize() != len(idx) {
		return nil, errors.Wrapf(goflow.ErrShape, "newPartial: %d indices "+
			"cannot select an input for a bijection with shape %v",
			len(idx), b.Shape())
	}

	seen := make(map[int]bool, len(idx))
	for _, i := range idx {
		if i < 0 || i >= s.TotalSize() || seen[i] {
			return nil, errors.Wrapf(goflow.ErrShape, "newPartial: %v are "+
				"not distinct indices into shape %v", idx, s)
		}
		seen[i] = true
	}

	owned := make([]int, len(idx))
	copy(owned, idx)

	return &Partial{bijection: b, idx: owned, shape: s}, nil
}

// Shape implements Bijection
func (p *Partial) Shape() tensor.Shape { return p.shape.Clone() }

// CondShape implements Bijection
func (p *Partial) CondShape() goflow.Cond { return p.bijection.CondShape() }

// Bijection returns the bijection applied to the selected elements
func (p *Partial) Bijection() Bijection { return p.bijection }

// Indices returns a copy of the selected flattened indices
func (p *Partial) Indices() []int {
	out := make([]int, len(p.idx))
	copy(out, p.idx)
	return out
}

// Transform implements Bijection
func (p *Partial) Transform(x, condition *goflow.Array) (*goflow.Array, error) {
	y, _, err := p.apply(forward, x, condition)
	return y, errors.Wrap(err, "transform")
}

// TransformAndLogDet implements Bijection
func (p *Partial) TransformAndLogDet(x, condition *goflow.Array) (*goflow.Array, float64, error) {
	y, logDet, err := p.apply(forward, x, condition)
	return y, logDet, errors.Wrap(err, "transform")
}

// Inverse implements Bijection
func (p *Partial) Inverse(y, condition *goflow.Array) (*goflow.Array, error) {
	x, _, err := p.apply(backward, y, condition)
	return x, errors.Wrap(err, "inverse")
}

// InverseAndLogDet implements Bijection
func (p *Partial) InverseAndLogDet(y, condition *goflow.Array) (*goflow.Array, float64, error) {
	x, logDet, err := p.apply(backward, y, condition)
	return x, logDet, errors.Wrap(err, "inverse")
}

// apply gathers the selected elements, transforms them in direction dir
// and scatters the result back into a copy of a.
func (p *Partial) apply(dir directed, a, condition *goflow.Array) (*goflow.Array, float64, error) {
	if err := argcheck(p, a, condition); err != nil {
		return nil, 0, err
	}

	data := a.Data()
	sub := make([]float64, len(p.idx))
	for i, j := range p.idx {
		sub[i] = data[j]
	}
	in, err := goflow.NewArray(sub, p.bijection.Shape()...)
	if err != nil {
		return nil, 0, err
	}

	out, logDet, err := dir(p.bijection)(in, condition)
	if err != nil {
		return nil, 0, err
	}

	for i, v := range out.Data() {
		data[p.idx[i]] = v
	}
	res, err := goflow.NewArray(data, p.shape...)
	if err != nil {
		return nil, 0, err
	}
	return res, logDet, nil
}

// EmbedCondition passes the raw conditioning variable through an
// embedding Module before handing it to a conditional bijection. The
// embedding is not itself inverted, so it need not be invertible.
type EmbedCondition struct {
	bijection Bijection
	embedding Module
	cond      goflow.Cond
}

// NewEmbedCondition returns a new EmbedCondition taking raw conditions
// of shape rawCondShape. embedding must map such a condition to the
// conditioning shape of b, which must be conditional.
func NewEmbedCondition(b Bijection, embedding Module, rawCondShape tensor.Shape) (*EmbedCondition, error) {
	if b.CondShape().IsNone() {
		return nil, errors.Wrap(goflow.ErrCondition, "newEmbedCondition: "+
			"bijection is unconditional")
	}

	return &EmbedCondition{
		bijection: b,
		embedding: embedding,
		cond:      goflow.CondFromShape(rawCondShape),
	}, nil
}

// Shape implements Bijection
func (e *EmbedCondition) Shape() tensor.Shape { return e.bijection.Shape() }

// CondShape implements Bijection
func (e *EmbedCondition) CondShape() goflow.Cond { return e.cond }

// Bijection returns the conditional bijection being wrapped
func (e *EmbedCondition) Bijection() Bijection { return e.bijection }

// Transform implements Bijection
func (e *EmbedCondition) Transform(x, condition *goflow.Array) (*goflow.Array, error) {
	y, _, err := e.apply(forward, x, condition)
	return y, errors.Wrap(err, "transform")
}

// TransformAndLogDet implements Bijection
func (e *EmbedCondition) TransformAndLogDet(x, condition *goflow.Array) (*goflow.Array, float64, error) {
	y, logDet, err := e.apply(forward, x, condition)
	return y, logDet, errors.Wrap(err, "transform")
}

// Inverse implements Bijection
func (e *EmbedCondition) Inverse(y, condition *goflow.Array) (*goflow.Array, error) {
	x, _, err := e.apply(backward, y, condition)
	return x, errors.Wrap(err, "inverse")
}

// InverseAndLogDet implements Bijection
func (e *EmbedCondition) InverseAndLogDet(y, condition *goflow.Array) (*goflow.Array, float64, error) {
	x, logDet, err := e.apply(backward, y, condition)
	return x, logDet, errors.Wrap(err, "inverse")
}

func (e *EmbedCondition) apply(dir directed, a, condition *goflow.Array) (*goflow.Array, float64, error) {
	if err := argcheck(e, a, condition); err != nil {
		return nil, 0, err
	}

	embedded, err := e.embedding.Apply(condition)
	if err != nil {
		return nil, 0, errors.Wrap(err, "embedding")
	}
	return dir(e.bijection)(a, embedded)
}
