package bijection

import (
	"gorgonia.org/tensor"

	"github.com/samuelfneumann/goflow"
)

// Inverted is a bijection whose forward and inverse directions are those
// of another bijection, swapped.
type Inverted struct {
	bijection Bijection
}

// Invert returns the inverse of b. Inverting an Inverted returns the
// original bijection rather than nesting.
func Invert(b Bijection) Bijection {
	if inv, ok := b.(*Inverted); ok {
		return inv.bijection
	}
	return &Inverted{bijection: b}
}

// Bijection returns the bijection being inverted
func (i *Inverted) Bijection() Bijection { return i.bijection }

// Shape implements Bijection
func (i *Inverted) Shape() tensor.Shape { return i.bijection.Shape() }

// CondShape implements Bijection
func (i *Inverted) CondShape() goflow.Cond { return i.bijection.CondShape() }

// Transform implements Bijection
func (i *Inverted) Transform(x, condition *goflow.Array) (*goflow.Array, error) {
	return i.bijection.Inverse(x, condition)
}

// TransformAndLogDet implements Bijection
func (i *Inverted) TransformAndLogDet(x, condition *goflow.Array) (*goflow.Array, float64, error) {
	return i.bijection.InverseAndLogDet(x, condition)
}

// Inverse implements Bijection
func (i *Inverted) Inverse(y, condition *goflow.Array) (*goflow.Array, error) {
	return i.bijection.Transform(y, condition)
}

// InverseAndLogDet implements Bijection
func (i *Inverted) InverseAndLogDet(y, condition *goflow.Array) (*goflow.Array, float64, error) {
	return i.bijection.TransformAndLogDet(y, condition)
}
