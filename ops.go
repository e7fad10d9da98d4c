package goflow

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gorgonia.org/tensor"
)

// BroadcastTo broadcasts a to shape following numpy rules.
func BroadcastTo(a *Array, shape tensor.Shape) (*Array, error) {
	if ShapeEq(a.shape, shape) {
		return a, nil
	}

	out, err := BroadcastShapes(a.shape, shape)
	if err != nil || !ShapeEq(out, shape) {
		return nil, errors.Wrapf(ErrShape, "broadcastTo: cannot broadcast "+
			"%v to %v", a.shape, shape)
	}

	n := shape.TotalSize()
	data := make([]float64, n)
	coords := make([]int, len(shape))
	for i := 0; i < n; i++ {
		data[i] = a.data[broadcastIndex(coords, a.shape)]
		incrementCoords(coords, shape)
	}

	return fromData(data, shape), nil
}

// broadcastIndex maps coordinates in a broadcast result back to the flat
// index of an operand with shape s. Leading result axes missing from s
// and axes where s has size 1 do not contribute.
func broadcastIndex(coords []int, s tensor.Shape) int {
	offset := len(coords) - len(s)
	idx := 0
	for i, d := range s {
		c := coords[offset+i]
		if d == 1 {
			c = 0
		}
		idx = idx*d + c
	}
	return idx
}

// incrementCoords advances row-major coordinates within shape by one.
func incrementCoords(coords []int, shape tensor.Shape) {
	for i := len(coords) - 1; i >= 0; i-- {
		coords[i]++
		if coords[i] < shape[i] {
			return
		}
		coords[i] = 0
	}
}

// binary broadcasts a and b together and combines them with op.
func binary(name string, a, b *Array, op func(dst, s, t []float64) []float64) (*Array, error) {
	shape, err := BroadcastShapes(a.shape, b.shape)
	if err != nil {
		return nil, errors.Wrap(err, name)
	}
	a, err = BroadcastTo(a, shape)
	if err != nil {
		return nil, errors.Wrap(err, name)
	}
	b, err = BroadcastTo(b, shape)
	if err != nil {
		return nil, errors.Wrap(err, name)
	}

	data := make([]float64, shape.TotalSize())
	op(data, a.data, b.data)

	return fromData(data, shape), nil
}

// Add returns a + b element-wise, with broadcasting.
func Add(a, b *Array) (*Array, error) { return binary("add", a, b, floats.AddTo) }

// Sub returns a - b element-wise, with broadcasting.
func Sub(a, b *Array) (*Array, error) { return binary("sub", a, b, floats.SubTo) }

// Mul returns a * b element-wise, with broadcasting.
func Mul(a, b *Array) (*Array, error) { return binary("mul", a, b, floats.MulTo) }

// Div returns a / b element-wise, with broadcasting.
func Div(a, b *Array) (*Array, error) { return binary("div", a, b, floats.DivTo) }

// Map applies f to every element of a.
func Map(a *Array, f func(float64) float64) *Array {
	data := make([]float64, len(a.data))
	for i, v := range a.data {
		data[i] = f(v)
	}
	return fromData(data, a.shape)
}

// Sum returns the sum of all elements of a.
func Sum(a *Array) float64 { return floats.Sum(a.data) }

// SumLogAbs returns Σ log|aᵢ|, the log-determinant of a diagonal scaling.
func SumLogAbs(a *Array) float64 {
	total := 0.0
	for _, v := range a.data {
		total += math.Log(math.Abs(v))
	}
	return total
}

// HasNaN reports whether any element of a is NaN.
func HasNaN(a *Array) bool { return floats.HasNaN(a.data) }

// Reverse returns a copy of a with the order of its flattened elements
// reversed, which flips every axis at once.
func Reverse(a *Array) *Array {
	data := a.Data()
	floats.Reverse(data)
	return fromData(data, a.shape)
}

// EqualApprox reports whether a and b have the same shape and all
// elements are within tol of each other. NaN and infinities of the same
// sign compare equal.
func EqualApprox(a, b *Array, tol float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	if !ShapeEq(a.shape, b.shape) {
		return false
	}
	return floats.EqualFunc(a.data, b.data, func(x, y float64) bool {
		switch {
		case math.IsNaN(x) || math.IsNaN(y):
			return math.IsNaN(x) && math.IsNaN(y)
		case math.IsInf(x, 0) || math.IsInf(y, 0):
			return x == y
		}
		return math.Abs(x-y) <= tol
	})
}
