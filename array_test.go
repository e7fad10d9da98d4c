package goflow

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorgonia.org/tensor"
)

func TestNewArray(t *testing.T) {
	data := []float64{1, 2, 3, 4, 5, 6}
	a, err := NewArray(data, 2, 3)
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{2, 3}, a.Shape())
	assert.Equal(t, 2, a.Dims())
	assert.Equal(t, 6, a.Size())

	// The array owns a copy of its data
	data[0] = 100
	assert.Equal(t, 1.0, a.Data()[0])
	a.Data()[1] = 100
	v, err := a.At(0, 1)
	require.NoError(t, err)
	assert.Equal(t, 2.0, v)

	v, err = a.At(1, 2)
	require.NoError(t, err)
	assert.Equal(t, 6.0, v)

	_, err = a.At(2, 0)
	assert.True(t, errors.Is(err, ErrShape))
	_, err = a.At(0)
	assert.True(t, errors.Is(err, ErrShape))

	_, err = NewArray(data, 4)
	assert.True(t, errors.Is(err, ErrShape))
	_, err = NewArray(nil, -1)
	assert.True(t, errors.Is(err, ErrShape))

	empty, err := NewArray(nil, 0, 3)
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{0, 3}, empty.Shape())
	assert.Zero(t, empty.Size())
}

func TestScalarAndItem(t *testing.T) {
	s := Scalar(4)
	assert.Equal(t, tensor.Shape{}, s.Shape())
	v, err := s.Item()
	require.NoError(t, err)
	assert.Equal(t, 4.0, v)

	_, err = Vector(1, 2).Item()
	assert.True(t, errors.Is(err, ErrShape))

	assert.Equal(t, []float64{7, 7, 7, 7}, Full(7, 2, 2).Data())
	assert.Equal(t, tensor.Shape{3}, Zeros(3).Shape())
}

func TestReshapeIndex(t *testing.T) {
	a := Must(NewArray([]float64{1, 2, 3, 4, 5, 6}, 2, 3))

	r, err := a.Reshape(3, 2)
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{3, 2}, r.Shape())
	assert.Equal(t, a.Data(), r.Data())

	_, err = a.Reshape(4)
	assert.True(t, errors.Is(err, ErrShape))

	row, err := a.Index(1)
	require.NoError(t, err)
	assert.Equal(t, []float64{4, 5, 6}, row.Data())

	_, err = a.Index(2)
	assert.True(t, errors.Is(err, ErrShape))
	_, err = Scalar(1).Index(0)
	assert.True(t, errors.Is(err, ErrShape))
}

func TestTensorInterop(t *testing.T) {
	a := Must(NewArray([]float64{1, 2, 3, 4}, 2, 2))
	d, err := a.Tensor()
	require.NoError(t, err)
	assert.True(t, d.Shape().Eq(tensor.Shape{2, 2}))

	b, err := FromTensor(d)
	require.NoError(t, err)
	assert.True(t, EqualApprox(a, b, 0))

	s, err := Scalar(3).Tensor()
	require.NoError(t, err)
	back, err := FromTensor(s)
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{}, back.Shape())

	_, err = Zeros(0).Tensor()
	assert.True(t, errors.Is(err, ErrShape))

	_, err = FromTensor(tensor.New(tensor.WithShape(2), tensor.WithBacking([]float32{1, 2})))
	assert.Error(t, err)
}

func TestArrayString(t *testing.T) {
	assert.Equal(t, "Array[2][1 2.5]", Vector(1, 2.5).String())
	var nilArray *Array
	assert.Equal(t, "<nil>", nilArray.String())
}
