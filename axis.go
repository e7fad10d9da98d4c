package goflow

import (
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// NormalizeAxis resolves a possibly negative axis against ndim, returning
// an error if it is out of range.
func NormalizeAxis(axis, ndim int) (int, error) {
	if axis < 0 {
		axis += ndim
	}
	if axis < 0 || axis >= ndim {
		return 0, errors.Wrapf(ErrShape, "axis %d out of range for %d "+
			"dimensions", axis, ndim)
	}
	return axis, nil
}

// outerInner returns the number of row-major blocks before an axis and the
// block length after it.
func outerInner(shape tensor.Shape, axis int) (int, int) {
	return tensor.Shape(shape[:axis]).TotalSize(), tensor.Shape(shape[axis+1:]).TotalSize()
}

// SplitAxis splits a along axis into consecutive pieces of the given
// sizes, which must sum to the length of that axis.
func SplitAxis(a *Array, axis int, sizes []int) ([]*Array, error) {
	axis, err := NormalizeAxis(axis, len(a.shape))
	if err != nil {
		return nil, errors.Wrap(err, "splitAxis")
	}

	total := 0
	for _, s := range sizes {
		total += s
	}
	if total != a.shape[axis] {
		return nil, errors.Wrapf(ErrShape, "splitAxis: sizes %v do not sum "+
			"to %d along axis %d of %v", sizes, a.shape[axis], axis, a.shape)
	}

	outer, inner := outerInner(a.shape, axis)
	parts := make([]*Array, len(sizes))
	start := 0
	for p, size := range sizes {
		shape := cloneShape(a.shape)
		shape[axis] = size
		data := make([]float64, 0, outer*size*inner)
		for o := 0; o < outer; o++ {
			base := (o*a.shape[axis] + start) * inner
			data = append(data, a.data[base:base+size*inner]...)
		}
		parts[p] = fromData(data, shape)
		start += size
	}

	return parts, nil
}

// Concat joins arrays along an existing axis. All other dimensions must
// agree.
func Concat(axis int, arrays ...*Array) (*Array, error) {
	if len(arrays) == 0 {
		return nil, errors.Wrap(ErrShape, "concat: no arrays")
	}

	first := arrays[0].shape
	axis, err := NormalizeAxis(axis, len(first))
	if err != nil {
		return nil, errors.Wrap(err, "concat")
	}

	shape := cloneShape(first)
	shape[axis] = 0
	for _, a := range arrays {
		if len(a.shape) != len(first) {
			return nil, errors.Wrapf(ErrShape, "concat: cannot join %v "+
				"with %v", first, a.shape)
		}
		for i := range first {
			if i != axis && a.shape[i] != first[i] {
				return nil, errors.Wrapf(ErrShape, "concat: cannot join %v "+
					"with %v along axis %d", first, a.shape, axis)
			}
		}
		shape[axis] += a.shape[axis]
	}

	outer, inner := outerInner(shape, axis)
	data := make([]float64, 0, shape.TotalSize())
	for o := 0; o < outer; o++ {
		for _, a := range arrays {
			block := a.shape[axis] * inner
			data = append(data, a.data[o*block:(o+1)*block]...)
		}
	}

	return fromData(data, shape), nil
}

// Unstack splits a along axis into arrays with that axis removed.
func Unstack(a *Array, axis int) ([]*Array, error) {
	axis, err := NormalizeAxis(axis, len(a.shape))
	if err != nil {
		return nil, errors.Wrap(err, "unstack")
	}

	sizes := make([]int, a.shape[axis])
	for i := range sizes {
		sizes[i] = 1
	}
	parts, err := SplitAxis(a, axis, sizes)
	if err != nil {
		return nil, errors.Wrap(err, "unstack")
	}

	shape := append(cloneShape(a.shape[:axis]), a.shape[axis+1:]...)
	for i, p := range parts {
		parts[i] = fromData(p.data, shape)
	}

	return parts, nil
}

// Stack joins arrays of identical shape along a new axis.
func Stack(axis int, arrays ...*Array) (*Array, error) {
	if len(arrays) == 0 {
		return nil, errors.Wrap(ErrShape, "stack: no arrays")
	}

	first := arrays[0].shape
	axis, err := NormalizeAxis(axis, len(first)+1)
	if err != nil {
		return nil, errors.Wrap(err, "stack")
	}

	expanded := make([]*Array, len(arrays))
	shape := append(cloneShape(first[:axis]), append(tensor.Shape{1}, first[axis:]...)...)
	for i, a := range arrays {
		if !ShapeEq(a.shape, first) {
			return nil, errors.Wrapf(ErrShape, "stack: cannot stack %v with "+
				"%v", first, a.shape)
		}
		expanded[i] = fromData(a.data, shape)
	}

	return Concat(axis, expanded...)
}

// Gather returns the array whose i-th flattened element is the
// idx[i]-th flattened element of a, reshaped to a's shape.
func Gather(a *Array, idx []int) (*Array, error) {
	if len(idx) != len(a.data) {
		return nil, errors.Wrapf(ErrShape, "gather: %d indices for %d "+
			"elements", len(idx), len(a.data))
	}

	data := make([]float64, len(idx))
	for i, j := range idx {
		if j < 0 || j >= len(a.data) {
			return nil, errors.Wrapf(ErrShape, "gather: index %d out of "+
				"range", j)
		}
		data[i] = a.data[j]
	}

	return fromData(data, a.shape), nil
}
