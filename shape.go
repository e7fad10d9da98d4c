package goflow

import (
	"fmt"

	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// ShapeEq reports whether two shapes are identical. Unlike
// tensor.Shape.Eq, a vector and a row or column matrix are never
// considered equal.
func ShapeEq(a, b tensor.Shape) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// cloneShape copies a shape, always returning a non-nil slice.
func cloneShape(s tensor.Shape) tensor.Shape {
	out := make(tensor.Shape, len(s))
	copy(out, s)
	return out
}

// ConcatShapes joins shapes left to right, e.g. a sample shape, a batch
// shape and an event shape.
func ConcatShapes(shapes ...tensor.Shape) tensor.Shape {
	out := tensor.Shape{}
	for _, s := range shapes {
		out = append(out, s...)
	}
	return out
}

// BroadcastShapes computes the shape resulting from broadcasting shapes
// against each other, aligning trailing dimensions as numpy does.
func BroadcastShapes(shapes ...tensor.Shape) (tensor.Shape, error) {
	ndim := 0
	for _, s := range shapes {
		if len(s) > ndim {
			ndim = len(s)
		}
	}

	out := make(tensor.Shape, ndim)
	for i := range out {
		out[i] = 1
	}

	for _, s := range shapes {
		offset := ndim - len(s)
		for i, d := range s {
			switch o := out[offset+i]; {
			case o == d || d == 1:
			case o == 1:
				out[offset+i] = d
			default:
				return nil, errors.Wrapf(ErrShape, "broadcastShapes: "+
					"incompatible shapes %v", shapes)
			}
		}
	}

	return out, nil
}

// Cond is an optional conditioning shape. The zero value denotes an
// unconditional object; CondOf declares the event shape of a required
// conditioning variable, which may itself be a scalar shape.
type Cond struct {
	shape tensor.Shape
	ok    bool
}

// CondOf returns a Cond requiring a condition of the given shape.
func CondOf(dims ...int) Cond {
	return Cond{shape: cloneShape(tensor.Shape(dims)), ok: true}
}

// CondFromShape returns a Cond requiring a condition of shape s.
func CondFromShape(s tensor.Shape) Cond {
	return Cond{shape: cloneShape(s), ok: true}
}

// IsNone reports whether the receiver is unconditional
func (c Cond) IsNone() bool { return !c.ok }

// Shape returns the conditioning shape and whether one is declared.
func (c Cond) Shape() (tensor.Shape, bool) {
	if !c.ok {
		return nil, false
	}
	return cloneShape(c.shape), true
}

// Dims returns the number of dimensions of the conditioning shape, or -1
// if the receiver is unconditional.
func (c Cond) Dims() int {
	if !c.ok {
		return -1
	}
	return len(c.shape)
}

// Eq reports whether two Conds declare the same requirement.
func (c Cond) Eq(other Cond) bool {
	if c.ok != other.ok {
		return false
	}
	return !c.ok || ShapeEq(c.shape, other.shape)
}

// String implements fmt.Stringer
func (c Cond) String() string {
	if !c.ok {
		return "None"
	}
	return fmt.Sprintf("%v", []int(c.shape))
}

// MergeConds merges the conditioning shapes of composed objects. The
// result is unconditional if every input is; otherwise all declared
// shapes must be equal.
func MergeConds(conds ...Cond) (Cond, error) {
	var merged Cond
	for _, c := range conds {
		if c.IsNone() {
			continue
		}
		if merged.IsNone() {
			merged = c
			continue
		}
		if !merged.Eq(c) {
			return Cond{}, errors.Wrapf(ErrIncompatible, "mergeConds: "+
				"conditioning shapes %v and %v differ", merged, c)
		}
	}

	return merged, nil
}

// CheckCondition returns an error if the presence of condition does not
// match c. Only presence is checked here; trailing dimensions are
// validated where the condition is consumed.
func CheckCondition(c Cond, condition *Array) error {
	if c.IsNone() && condition != nil {
		return errors.Wrapf(ErrCondition, "expected no condition but got "+
			"one with shape %v", condition.shape)
	}
	if !c.IsNone() && condition == nil {
		return errors.Wrapf(ErrCondition, "expected a condition with "+
			"shape %v but got none", c)
	}
	return nil
}

// CheckEvent returns an error unless x exists and has exactly shape s.
func CheckEvent(name string, x *Array, s tensor.Shape) error {
	if x == nil {
		return errors.Wrapf(ErrShape, "expected %s with shape %v but got "+
			"none", name, s)
	}
	if !ShapeEq(x.shape, s) {
		return errors.Wrapf(ErrShape, "expected %s with shape %v but got %v",
			name, s, x.shape)
	}
	return nil
}

// CheckArgs validates an unbatched input and its condition against an
// event shape and a conditioning requirement.
func CheckArgs(x *Array, shape tensor.Shape, condition *Array, c Cond) error {
	if err := CheckEvent("input", x, shape); err != nil {
		return err
	}
	if err := CheckCondition(c, condition); err != nil {
		return err
	}
	if s, ok := c.Shape(); ok {
		return CheckEvent("condition", condition, s)
	}
	return nil
}
