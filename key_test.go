package goflow

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorgonia.org/tensor"
)

func TestKeySplit(t *testing.T) {
	key := NewKey(123)

	assert.Empty(t, key.Split(0))
	assert.Equal(t, key.Split(5), key.Split(5))

	keys := key.Split(64)
	seen := make(map[Key]bool)
	for _, k := range keys {
		assert.False(t, seen[k], "duplicate key %v", k)
		assert.NotEqual(t, key, k)
		seen[k] = true
	}

	assert.NotEqual(t, NewKey(1).Split(3), NewKey(2).Split(3))

	// Different counts share no keys
	for _, pair := range [][2]int{{4, 5}, {1, 2}, {7, 8}, {16, 3}} {
		short := make(map[Key]bool)
		for _, k := range key.Split(pair[0]) {
			short[k] = true
		}
		for _, k := range key.Split(pair[1]) {
			assert.False(t, short[k], "Split(%d) and Split(%d) share key %v",
				pair[0], pair[1], k)
		}
	}
}

func TestKeyArray(t *testing.T) {
	key := NewKey(1<<40 + 17)
	back, err := KeyFromArray(key.Array())
	require.NoError(t, err)
	assert.Equal(t, key, back)

	_, err = KeyFromArray(Vector(1, 2, 3))
	assert.True(t, errors.Is(err, ErrShape))
	_, err = KeyFromArray(Vector(1.5, 2))
	assert.Error(t, err)
	_, err = KeyFromArray(Vector(-1, 2))
	assert.Error(t, err)
}

func TestKeySource(t *testing.T) {
	a, b := NewKey(9).Source(), NewKey(9).Source()
	for i := 0; i < 10; i++ {
		assert.Equal(t, a.Uint64(), b.Uint64())
	}
}

func TestSampleKeys(t *testing.T) {
	key := NewKey(5)

	tests := []struct {
		sample, cond tensor.Shape
		want         tensor.Shape
	}{
		{nil, nil, tensor.Shape{2}},
		{tensor.Shape{3}, nil, tensor.Shape{3, 2}},
		{tensor.Shape{3}, tensor.Shape{4}, tensor.Shape{3, 4, 2}},
		{nil, tensor.Shape{4, 1}, tensor.Shape{4, 1, 2}},
		{tensor.Shape{0}, nil, tensor.Shape{0, 2}},
		{tensor.Shape{2, 0}, tensor.Shape{3}, tensor.Shape{2, 0, 3, 2}},
	}
	for _, test := range tests {
		keys, err := SampleKeys(key, test.sample, test.cond)
		require.NoError(t, err)
		assert.Equal(t, test.want, keys.Shape())
	}

	// A scalar request yields a single fresh key
	keys, err := SampleKeys(key, nil, nil)
	require.NoError(t, err)
	single, err := KeyFromArray(keys)
	require.NoError(t, err)
	assert.Equal(t, key.Split(1)[0], single)

	// Keys depend on the total batch size, not on how it is shaped
	a, err := SampleKeys(key, tensor.Shape{6}, nil)
	require.NoError(t, err)
	b, err := SampleKeys(key, tensor.Shape{2, 3}, nil)
	require.NoError(t, err)
	assert.Equal(t, a.Data(), b.Data())

	// Resizing the batch derives fresh keys for every position
	four, err := SampleKeys(key, tensor.Shape{4}, nil)
	require.NoError(t, err)
	five, err := SampleKeys(key, tensor.Shape{5}, nil)
	require.NoError(t, err)
	for i := 0; i < 4; i++ {
		k4, err := four.Index(i)
		require.NoError(t, err)
		for j := 0; j < 5; j++ {
			k5, err := five.Index(j)
			require.NoError(t, err)
			assert.NotEqual(t, k4.Data(), k5.Data(), "positions %d and %d", i, j)
		}
	}

	_, err = SampleKeys(key, tensor.Shape{-2}, nil)
	assert.True(t, errors.Is(err, ErrShape))
}
