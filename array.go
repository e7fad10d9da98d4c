// Package goflow provides the array substrate shared by the bijection and
// distribution packages: an immutable float64 array type, shape and
// condition utilities, deferred parameters, splittable random keys and the
// engine that lifts unbatched functions over arbitrary leading batch
// dimensions.
package goflow

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// Array is an immutable, row-major array of float64 values.
//
// A nil *Array stands for an absent value, which is how an omitted
// condition is represented throughout the module. Arrays may have
// zero-sized dimensions, so an empty batch is a valid input to every
// vectorized operation.
type Array struct {
	shape tensor.Shape
	data  []float64
}

// NewArray returns a new Array with the given shape holding a copy of
// data. An empty shape denotes a scalar, which requires exactly one
// element.
func NewArray(data []float64, shape ...int) (*Array, error) {
	for _, d := range shape {
		if d < 0 {
			return nil, errors.Wrapf(ErrShape, "newArray: negative dimension "+
				"in shape %v", shape)
		}
	}

	s := tensor.Shape(shape)
	if s.TotalSize() != len(data) {
		return nil, errors.Wrapf(ErrShape, "newArray: %d elements cannot "+
			"fill shape %v", len(data), s)
	}

	backing := make([]float64, len(data))
	copy(backing, data)

	return &Array{shape: cloneShape(s), data: backing}, nil
}

// Must panics if err is not nil and otherwise returns a. It is meant
// for literals in tests and examples.
func Must(a *Array, err error) *Array {
	if err != nil {
		panic(err)
	}
	return a
}

// Scalar returns a 0-dimensional Array.
func Scalar(v float64) *Array {
	return &Array{shape: tensor.Shape{}, data: []float64{v}}
}

// Vector returns a 1-dimensional Array.
func Vector(values ...float64) *Array {
	data := make([]float64, len(values))
	copy(data, values)

	return &Array{shape: tensor.Shape{len(values)}, data: data}
}

// Full returns an Array of the given shape filled with v.
func Full(v float64, shape ...int) *Array {
	s := cloneShape(tensor.Shape(shape))
	data := make([]float64, s.TotalSize())
	for i := range data {
		data[i] = v
	}

	return &Array{shape: s, data: data}
}

// Zeros returns an Array of the given shape filled with zeros.
func Zeros(shape ...int) *Array {
	return Full(0, shape...)
}

// fromData wraps data without copying. Callers must not retain data.
func fromData(data []float64, shape tensor.Shape) *Array {
	return &Array{shape: cloneShape(shape), data: data}
}

// Shape returns the shape of the receiver
func (a *Array) Shape() tensor.Shape { return cloneShape(a.shape) }

// Dims returns the number of dimensions of the receiver
func (a *Array) Dims() int { return len(a.shape) }

// Size returns the number of elements stored by the receiver
func (a *Array) Size() int { return len(a.data) }

// Data returns a copy of the receiver's elements in row-major order.
func (a *Array) Data() []float64 {
	data := make([]float64, len(a.data))
	copy(data, a.data)

	return data
}

// Item returns the single element of a size-1 Array.
func (a *Array) Item() (float64, error) {
	if len(a.data) != 1 {
		return 0, errors.Wrapf(ErrShape, "item: expected a single element "+
			"but shape is %v", a.shape)
	}
	return a.data[0], nil
}

// At returns the element at the given coordinates.
func (a *Array) At(coords ...int) (float64, error) {
	if len(coords) != len(a.shape) {
		return 0, errors.Wrapf(ErrShape, "at: expected %d coordinates but "+
			"got %d", len(a.shape), len(coords))
	}

	idx := 0
	for i, c := range coords {
		if c < 0 || c >= a.shape[i] {
			return 0, errors.Wrapf(ErrShape, "at: coordinate %d out of range "+
				"for axis %d of shape %v", c, i, a.shape)
		}
		idx = idx*a.shape[i] + c
	}

	return a.data[idx], nil
}

// Reshape returns a view of the receiver's data with a new shape of the
// same total size.
func (a *Array) Reshape(shape ...int) (*Array, error) {
	s := tensor.Shape(shape)
	if s.TotalSize() != len(a.data) {
		return nil, errors.Wrapf(ErrShape, "reshape: cannot reshape %v into "+
			"%v", a.shape, s)
	}

	return &Array{shape: cloneShape(s), data: a.data}, nil
}

// Index returns the sub-array at position i of the leading axis.
func (a *Array) Index(i int) (*Array, error) {
	if len(a.shape) == 0 {
		return nil, errors.Wrap(ErrShape, "index: cannot index a scalar")
	}
	if i < 0 || i >= a.shape[0] {
		return nil, errors.Wrapf(ErrShape, "index: %d out of range for "+
			"shape %v", i, a.shape)
	}

	inner := a.shape[1:]
	n := inner.TotalSize()

	return &Array{shape: cloneShape(inner), data: a.data[i*n : (i+1)*n]}, nil
}

// Tensor converts the receiver to a gorgonia *tensor.Dense. Arrays with
// zero elements cannot be represented by the tensor package and result in
// an error.
func (a *Array) Tensor() (*tensor.Dense, error) {
	if len(a.data) == 0 {
		return nil, errors.Wrapf(ErrShape, "tensor: cannot convert empty "+
			"array with shape %v", a.shape)
	}
	if len(a.shape) == 0 {
		return tensor.New(tensor.FromScalar(a.data[0])), nil
	}

	return tensor.New(
		tensor.WithShape(a.shape...),
		tensor.WithBacking(a.Data()),
	), nil
}

// FromTensor converts a float64 gorgonia tensor to an Array.
func FromTensor(t tensor.Tensor) (*Array, error) {
	if t == nil {
		return nil, errors.New("fromTensor: nil tensor")
	}
	if t.Dtype() != tensor.Float64 {
		return nil, errors.Errorf("fromTensor: data type %v unsupported",
			t.Dtype())
	}

	if d, ok := t.(*tensor.Dense); ok && d.IsMaterializable() {
		t = d.Materialize()
	}

	switch data := t.Data().(type) {
	case float64:
		return Scalar(data), nil
	case []float64:
		return NewArray(data, t.Shape()...)
	default:
		return nil, errors.Errorf("fromTensor: unexpected backing %T", data)
	}
}

// String implements fmt.Stringer
func (a *Array) String() string {
	if a == nil {
		return "<nil>"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Array%v", []int(a.shape))
	b.WriteString("[")
	for i, v := range a.data {
		if i > 0 {
			b.WriteString(" ")
		}
		fmt.Fprintf(&b, "%g", v)
	}
	b.WriteString("]")

	return b.String()
}
