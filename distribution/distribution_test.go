package distribution

import (
	"math"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"
	"gorgonia.org/tensor"

	"github.com/samuelfneumann/goflow"
	"github.com/samuelfneumann/goflow/bijection"
)

const threshold float64 = 1e-9 // Threshold at which floats are equal

// moduleFunc adapts a function to bijection.Module
type moduleFunc func(*goflow.Array) (*goflow.Array, error)

func (m moduleFunc) Apply(c *goflow.Array) (*goflow.Array, error) { return m(c) }

// randArray returns an array of the given shape with elements drawn
// uniformly from [lo, hi).
func randArray(rng *rand.Rand, lo, hi float64, shape ...int) *goflow.Array {
	data := make([]float64, tensor.Shape(shape).TotalSize())
	for i := range data {
		data[i] = lo + (hi-lo)*rng.Float64()
	}
	return goflow.Must(goflow.NewArray(data, shape...))
}

// conditionalNormal returns a standard normal of shape (2) shifted by
// twice a scalar condition.
func conditionalNormal(t *testing.T) *Transformed {
	t.Helper()
	shift := bijection.NewAdditiveCondition(moduleFunc(func(c *goflow.Array) (*goflow.Array, error) {
		return goflow.Mul(c, goflow.Scalar(2))
	}), tensor.Shape{2}, tensor.Shape{})

	d, err := NewTransformed(NewStandardNormal(2), shift)
	require.NoError(t, err)
	return d
}

func TestLogProbBatching(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	d, err := NewNormal(goflow.Vector(1, -1, 0), goflow.Vector(0.5, 1, 2))
	require.NoError(t, err)

	for _, n := range []int{0, 1, 5} {
		x := randArray(rng, -3, 3, n, 3)
		lp, err := LogProb(d, x, nil)
		require.NoError(t, err)
		require.Equal(t, tensor.Shape{n}, lp.Shape())

		for i := 0; i < n; i++ {
			xi, err := x.Index(i)
			require.NoError(t, err)
			want, err := d.UnbatchedLogProb(xi, nil)
			require.NoError(t, err)
			got, err := lp.At(i)
			require.NoError(t, err)
			assert.InDelta(t, want, got, threshold)
		}
	}

	// Multiple leading dimensions
	x := randArray(rng, -3, 3, 2, 4, 3)
	lp, err := LogProb(d, x, nil)
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{2, 4}, lp.Shape())

	// No leading dimensions
	lp, err = LogProb(d, goflow.Vector(0, 0, 0), nil)
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{}, lp.Shape())
}

func TestLogProbConditionBroadcasting(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	d := conditionalNormal(t)

	x := randArray(rng, -2, 2, 4, 2)
	c := randArray(rng, -1, 1, 4)
	lp, err := LogProb(d, x, c)
	require.NoError(t, err)
	require.Equal(t, tensor.Shape{4}, lp.Shape())

	for i := 0; i < 4; i++ {
		xi, _ := x.Index(i)
		ci, _ := c.Index(i)
		want, err := d.UnbatchedLogProb(xi, ci)
		require.NoError(t, err)
		got, _ := lp.At(i)
		assert.InDelta(t, want, got, threshold)
	}

	// A single event evaluated under many conditions
	lp, err = LogProb(d, goflow.Vector(0.1, 0.2), c)
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{4}, lp.Shape())

	// Incompatible leading dimensions
	_, err = LogProb(d, randArray(rng, 0, 1, 3, 2), c)
	assert.True(t, errors.Is(err, goflow.ErrShape))
}

func TestConditionErrors(t *testing.T) {
	d := NewStandardNormal(2)
	cd := conditionalNormal(t)
	key := goflow.NewKey(0)

	_, err := LogProb(d, goflow.Vector(1, 2), goflow.Scalar(1))
	assert.True(t, errors.Is(err, goflow.ErrCondition))

	_, err = LogProb(cd, goflow.Vector(1, 2), nil)
	assert.True(t, errors.Is(err, goflow.ErrCondition))

	_, err = Sample(cd, key, nil, nil)
	assert.True(t, errors.Is(err, goflow.ErrCondition))

	_, _, err = SampleAndLogProb(d, key, nil, goflow.Scalar(1))
	assert.True(t, errors.Is(err, goflow.ErrCondition))

	// Trailing dimensions must match the event shape
	_, err = LogProb(d, goflow.Vector(1, 2, 3), nil)
	assert.True(t, errors.Is(err, goflow.ErrShape))
	assert.Contains(t, err.Error(), "expected trailing dimensions")

	_, err = LogProb(d, goflow.Scalar(1), nil)
	assert.True(t, errors.Is(err, goflow.ErrShape))
}

func TestSampleShapes(t *testing.T) {
	d := NewStandardNormal(2)
	key := goflow.NewKey(3)

	tests := []struct {
		sampleShape tensor.Shape
		want        tensor.Shape
	}{
		{nil, tensor.Shape{2}},
		{tensor.Shape{}, tensor.Shape{2}},
		{tensor.Shape{5}, tensor.Shape{5, 2}},
		{tensor.Shape{3, 4}, tensor.Shape{3, 4, 2}},
		{tensor.Shape{0}, tensor.Shape{0, 2}},
	}

	for _, test := range tests {
		x, err := Sample(d, key, test.sampleShape, nil)
		require.NoError(t, err)
		assert.Equal(t, test.want, x.Shape(), "sample shape %v", test.sampleShape)

		x, lp, err := SampleAndLogProb(d, key, test.sampleShape, nil)
		require.NoError(t, err)
		assert.Equal(t, test.want, x.Shape())
		assert.Equal(t, test.want[:len(test.want)-1], lp.Shape())
	}

	// Conditional: sample shape, then leading condition dimensions
	cd := conditionalNormal(t)
	x, err := Sample(cd, key, tensor.Shape{3}, goflow.Vector(1, 2, 3, 4))
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{3, 4, 2}, x.Shape())

	x, err = Sample(cd, key, nil, goflow.Scalar(1))
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{2}, x.Shape())

	_, err = Sample(d, key, tensor.Shape{-1}, nil)
	assert.True(t, errors.Is(err, goflow.ErrShape))
}

func TestSampleDeterminism(t *testing.T) {
	d, err := NewNormal(goflow.Vector(0, 10), goflow.Vector(1, 3))
	require.NoError(t, err)
	shape := tensor.Shape{50}

	a, err := Sample(d, goflow.NewKey(7), shape, nil)
	require.NoError(t, err)
	b, err := Sample(d, goflow.NewKey(7), shape, nil)
	require.NoError(t, err)
	assert.Equal(t, a.Data(), b.Data())

	c, err := Sample(d, goflow.NewKey(8), shape, nil)
	require.NoError(t, err)
	assert.NotEqual(t, a.Data(), c.Data())

	// Parallel evaluation yields identical samples
	p, err := Sample(d, goflow.NewKey(7), shape, nil, goflow.WithWorkers(4))
	require.NoError(t, err)
	assert.Equal(t, a.Data(), p.Data())

	// Samples within a batch are distinct
	first, _ := a.Index(0)
	second, _ := a.Index(1)
	assert.NotEqual(t, first.Data(), second.Data())

	// Changing the sample shape redraws every sample
	four, err := Sample(NewStandardNormal(), goflow.NewKey(3), tensor.Shape{4}, nil)
	require.NoError(t, err)
	five, err := Sample(NewStandardNormal(), goflow.NewKey(3), tensor.Shape{5}, nil)
	require.NoError(t, err)
	for i, v := range four.Data() {
		assert.NotContains(t, five.Data(), v, "sample %d reused", i)
	}
}

func TestSampleAndLogProbConsistency(t *testing.T) {
	dists := map[string]Distribution{
		"StandardNormal": NewStandardNormal(3),
		"Conditional":    conditionalNormal(t),
	}
	n, err := NewNormal(goflow.Vector(1, 2), goflow.Scalar(0.5))
	require.NoError(t, err)
	dists["Normal"] = n
	u, err := NewUniform(goflow.Scalar(-1), goflow.Vector(1, 3))
	require.NoError(t, err)
	dists["Uniform"] = u
	st, err := NewStudentT(goflow.Vector(3, 10), goflow.Scalar(0), goflow.Scalar(2))
	require.NoError(t, err)
	dists["StudentT"] = st

	key := goflow.NewKey(21)
	for name, d := range dists {
		t.Run(name, func(t *testing.T) {
			var c *goflow.Array
			if !d.CondShape().IsNone() {
				c = goflow.Vector(0.5, -0.5, 1.5)
			}
			sampleShape := tensor.Shape{6}

			x, err := Sample(d, key, sampleShape, c)
			require.NoError(t, err)
			xJoint, lpJoint, err := SampleAndLogProb(d, key, sampleShape, c)
			require.NoError(t, err)
			assert.True(t, goflow.EqualApprox(x, xJoint, threshold))

			lp, err := LogProb(d, xJoint, c)
			require.NoError(t, err)
			assert.True(t, goflow.EqualApprox(lp, lpJoint, 1e-7),
				"expected %v, got %v", lp, lpJoint)
		})
	}
}

func TestNaNLogProb(t *testing.T) {
	d, err := NewTransformed(NewStandardNormal(1), bijection.NewExp(1))
	require.NoError(t, err)

	lp, err := LogProb(d, goflow.Must(goflow.NewArray([]float64{-1, 1}, 2, 1)), nil)
	require.NoError(t, err)

	got := lp.Data()
	assert.True(t, math.IsInf(got[0], -1))
	assert.False(t, math.IsInf(got[1], 0))
}

func TestWorkersParity(t *testing.T) {
	rng := rand.New(rand.NewSource(4))
	d := conditionalNormal(t)
	x := randArray(rng, -2, 2, 20, 2)
	c := randArray(rng, -1, 1, 20)

	seq, err := LogProb(d, x, c)
	require.NoError(t, err)
	par, err := LogProb(d, x, c, goflow.WithWorkers(8))
	require.NoError(t, err)
	assert.Equal(t, seq.Data(), par.Data())

	xs, lps, err := SampleAndLogProb(d, goflow.NewKey(5), tensor.Shape{3}, c)
	require.NoError(t, err)
	xp, lpp, err := SampleAndLogProb(d, goflow.NewKey(5), tensor.Shape{3}, c,
		goflow.WithWorkers(3))
	require.NoError(t, err)
	assert.Equal(t, xs.Data(), xp.Data())
	assert.Equal(t, lps.Data(), lpp.Data())
}

func TestSpecializeCondition(t *testing.T) {
	cd := conditionalNormal(t)

	_, err := SpecializeCondition(NewStandardNormal(2), goflow.Scalar(1))
	assert.True(t, errors.Is(err, goflow.ErrCondition))

	_, err = SpecializeCondition(cd, goflow.Vector(1, 2))
	assert.True(t, errors.Is(err, goflow.ErrShape))

	s, err := SpecializeCondition(cd, goflow.Scalar(1.5))
	require.NoError(t, err)
	assert.True(t, s.CondShape().IsNone())
	assert.Equal(t, tensor.Shape{2}, s.Shape())

	x := goflow.Vector(3, 2)
	want, err := LogProb(cd, x, goflow.Scalar(1.5))
	require.NoError(t, err)
	got, err := LogProb(s, x, nil)
	require.NoError(t, err)
	assert.Equal(t, want.Data(), got.Data())

	wantX, err := Sample(cd, goflow.NewKey(2), tensor.Shape{4}, goflow.Scalar(1.5))
	require.NoError(t, err)
	gotX, err := Sample(s, goflow.NewKey(2), tensor.Shape{4}, nil)
	require.NoError(t, err)
	assert.Equal(t, wantX.Data(), gotX.Data())

	_, err = LogProb(s, x, goflow.Scalar(1.5))
	assert.True(t, errors.Is(err, goflow.ErrCondition))
}

func TestIID(t *testing.T) {
	n, err := NewNormal(goflow.Vector(0, 1), goflow.Vector(1, 2))
	require.NoError(t, err)

	_, err = NewIID(n, 0)
	assert.Error(t, err)

	d, err := NewIID(n, 3)
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{3, 2}, d.Shape())
	assert.Equal(t, 3, d.N())

	x := goflow.Must(goflow.NewArray([]float64{0, 1, 2, 3, -1, 0}, 3, 2))
	got, err := d.UnbatchedLogProb(x, nil)
	require.NoError(t, err)

	want := 0.0
	for i := 0; i < 3; i++ {
		xi, _ := x.Index(i)
		lp, err := n.UnbatchedLogProb(xi, nil)
		require.NoError(t, err)
		want += lp
	}
	assert.InDelta(t, want, got, threshold)

	samples, lps, err := SampleAndLogProb(d, goflow.NewKey(1), tensor.Shape{4}, nil)
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{4, 3, 2}, samples.Shape())

	check, err := LogProb(d, samples, nil)
	require.NoError(t, err)
	assert.True(t, goflow.EqualApprox(check, lps, 1e-9))
}
