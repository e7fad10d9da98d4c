// Package bijection provides invertible, differentiable transformations
// with tractable log-absolute-Jacobian-determinants, and combinators to
// compose them.
//
// Every Bijection operates on unbatched inputs whose shape equals
// Shape(). A conditional bijection (CondShape() not None) requires a
// condition with exactly the conditioning shape; an unconditional one
// requires the condition to be nil. Batching over leading dimensions is
// the job of the distribution package.
package bijection

import (
	"math"

	"github.com/pkg/errors"
	"gorgonia.org/tensor"

	"github.com/samuelfneumann/goflow"
)

// Bijection is an invertible transformation between arrays of a fixed
// shape.
type Bijection interface {
	// Shape returns the event shape the bijection operates on
	Shape() tensor.Shape

	// CondShape returns the shape of the conditioning variable, or an
	// unconditional Cond
	CondShape() goflow.Cond

	// Transform applies the forward transformation to x.
	Transform(x, condition *goflow.Array) (*goflow.Array, error)

	// TransformAndLogDet applies the forward transformation to x and
	// returns log|det ∂y/∂x| evaluated at x.
	TransformAndLogDet(x, condition *goflow.Array) (*goflow.Array, float64, error)

	// Inverse applies the inverse transformation to y.
	Inverse(y, condition *goflow.Array) (*goflow.Array, error)

	// InverseAndLogDet applies the inverse transformation to y and
	// returns log|det ∂x/∂y| evaluated at y.
	InverseAndLogDet(y, condition *goflow.Array) (*goflow.Array, float64, error)
}

// argcheck validates the input and condition passed to b.
func argcheck(b Bijection, x, condition *goflow.Array) error {
	return goflow.CheckArgs(x, b.Shape(), condition, b.CondShape())
}

// mergeConds merges the conditioning shapes of bijections.
func mergeConds(bijections []Bijection) (goflow.Cond, error) {
	conds := make([]goflow.Cond, len(bijections))
	for i, b := range bijections {
		conds[i] = b.CondShape()
	}
	return goflow.MergeConds(conds...)
}

// checkSameShape returns an error unless all bijections share one shape.
func checkSameShape(bijections []Bijection) error {
	for _, b := range bijections[1:] {
		if !goflow.ShapeEq(b.Shape(), bijections[0].Shape()) {
			return errors.Wrapf(goflow.ErrIncompatible, "bijections have "+
				"shapes %v and %v", bijections[0].Shape(), b.Shape())
		}
	}
	return nil
}

func logAbs(v float64) float64 { return math.Log(math.Abs(v)) }
