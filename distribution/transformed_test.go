package distribution

import (
	"math"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distmv"
	"gonum.org/v1/gonum/stat/distuv"
	"gorgonia.org/tensor"

	"github.com/samuelfneumann/goflow"
	"github.com/samuelfneumann/goflow/bijection"
)

// TestNormalLogProb tests the log density of randomly parameterized
// Normals against gonum. All tests are completely randomized
func TestNormalLogProb(t *testing.T) {
	const tests int = 30 // Number of tests to run
	rng := rand.New(rand.NewSource(42))

	// Set the scale for mean, stddev, and sampling
	meanScale := 2.
	stdScale := 2.
	sampleScale := 5.

	for i := 0; i < tests; i++ {
		loc := meanScale * (2*rng.Float64() - 1)
		scale := 0.05 + stdScale*rng.Float64()
		x := sampleScale * (2*rng.Float64() - 1)

		n, err := NewNormal(goflow.Scalar(loc), goflow.Scalar(scale))
		require.NoError(t, err)

		lp, err := LogProb(n, goflow.Scalar(x), nil)
		require.NoError(t, err)
		got, err := lp.Item()
		require.NoError(t, err)

		want := distuv.Normal{Mu: loc, Sigma: scale}.LogProb(x)
		assert.InDelta(t, want, got, 1e-9)
	}
}

// TestNormalMultivariate checks a vector Normal against a diagonal
// multivariate normal.
func TestNormalMultivariate(t *testing.T) {
	rng := rand.New(rand.NewSource(43))
	loc := []float64{1, -2, 0.5}
	scale := []float64{0.5, 2, 1.5}

	n, err := NewNormal(goflow.Vector(loc...), goflow.Vector(scale...))
	require.NoError(t, err)

	cov := mat.NewSymDense(3, nil)
	for i, s := range scale {
		cov.SetSym(i, i, s*s)
	}
	ref, ok := distmv.NewNormal(loc, cov, nil)
	require.True(t, ok)

	x := randArray(rng, -4, 4, 10, 3)
	lp, err := LogProb(n, x, nil)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		xi, _ := x.Index(i)
		got, _ := lp.At(i)
		assert.InDelta(t, ref.LogProb(xi.Data()), got, 1e-9)
	}
}

func TestNormalSampleMoments(t *testing.T) {
	const samples = 20000
	n, err := NewNormal(goflow.Scalar(1), goflow.Scalar(2))
	require.NoError(t, err)

	x, err := Sample(n, goflow.NewKey(99), tensor.Shape{samples}, nil)
	require.NoError(t, err)

	mean, std := stat.MeanStdDev(x.Data(), nil)
	assert.InDelta(t, 1, mean, 0.1)
	assert.InDelta(t, 2, std, 0.1)

	loc := n.Loc()
	assert.Equal(t, []float64{1}, loc.Data())
	scale, err := n.Scale()
	require.NoError(t, err)
	assert.InDelta(t, 2, scale.Data()[0], 1e-12)
}

func TestLocationScaleFamilies(t *testing.T) {
	rng := rand.New(rand.NewSource(44))
	const loc, scale = 0.7, 1.8

	gumbel, err := NewGumbel(goflow.Scalar(loc), goflow.Scalar(scale))
	require.NoError(t, err)
	cauchy, err := NewCauchy(goflow.Scalar(loc), goflow.Scalar(scale))
	require.NoError(t, err)
	studentT, err := NewStudentT(goflow.Scalar(4), goflow.Scalar(loc), goflow.Scalar(scale))
	require.NoError(t, err)
	uniform, err := NewUniform(goflow.Scalar(-1), goflow.Scalar(3))
	require.NoError(t, err)

	tests := []struct {
		name string
		dist Distribution
		ref  func(x float64) float64
	}{
		{"Gumbel", gumbel, distuv.GumbelRight{Mu: loc, Beta: scale}.LogProb},
		{"Cauchy", cauchy, distuv.StudentsT{Mu: loc, Sigma: scale, Nu: 1}.LogProb},
		{"StudentT", studentT, distuv.StudentsT{Mu: loc, Sigma: scale, Nu: 4}.LogProb},
		{"Uniform", uniform, distuv.Uniform{Min: -1, Max: 3}.LogProb},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			x := randArray(rng, -0.9, 2.9, 25)
			lp, err := LogProb(test.dist, x, nil)
			require.NoError(t, err)
			for i, v := range x.Data() {
				assert.InDelta(t, test.ref(v), lp.Data()[i], 1e-9)
			}
		})
	}

	df, err := studentT.DF()
	require.NoError(t, err)
	assert.InDelta(t, 4, df.Data()[0], 1e-12)
}

func TestUniform(t *testing.T) {
	_, err := NewUniform(goflow.Scalar(2), goflow.Scalar(0))
	assert.True(t, errors.Is(err, goflow.ErrDomain))

	_, err = NewUniform(goflow.Vector(0, 0), goflow.Vector(1, -1))
	assert.True(t, errors.Is(err, goflow.ErrDomain))

	_, err = NewUniform(goflow.Vector(0, 0), goflow.Vector(1, 2, 3))
	assert.True(t, errors.Is(err, goflow.ErrShape))

	u, err := NewUniform(goflow.Scalar(0), goflow.Scalar(2))
	require.NoError(t, err)

	lp, err := LogProb(u, goflow.Vector(0.5, 1.5, 3, -1), nil)
	require.NoError(t, err)
	got := lp.Data()
	assert.InDelta(t, -math.Log(2), got[0], 1e-12)
	assert.InDelta(t, -math.Log(2), got[1], 1e-12)
	assert.True(t, math.IsInf(got[2], -1))
	assert.True(t, math.IsInf(got[3], -1))

	hi, err := u.Max()
	require.NoError(t, err)
	assert.InDelta(t, 2, hi.Data()[0], 1e-12)
	assert.Equal(t, []float64{0}, u.Min().Data())

	x, err := Sample(u, goflow.NewKey(3), tensor.Shape{1000}, nil)
	require.NoError(t, err)
	for _, v := range x.Data() {
		assert.True(t, v >= 0 && v <= 2)
	}
}

func TestUniformPointMass(t *testing.T) {
	u, err := NewUniform(goflow.Scalar(1), goflow.Scalar(1))
	require.NoError(t, err)

	hi, err := u.Max()
	require.NoError(t, err)
	assert.Equal(t, []float64{1}, hi.Data())
	assert.Equal(t, []float64{1}, u.Min().Data())

	lp, err := LogProb(u, goflow.Vector(1, 0.5, 2), nil)
	require.NoError(t, err)
	got := lp.Data()
	assert.True(t, math.IsInf(got[0], 1), "got %v at the bound", got[0])
	assert.True(t, math.IsInf(got[1], -1))
	assert.True(t, math.IsInf(got[2], -1))

	x, err := Sample(u, goflow.NewKey(8), tensor.Shape{20}, nil)
	require.NoError(t, err)
	for _, v := range x.Data() {
		assert.Equal(t, 1.0, v)
	}

	// Degenerate and proper elements mix
	mixed, err := NewUniform(goflow.Vector(0, 3), goflow.Vector(2, 3))
	require.NoError(t, err)
	x, err = Sample(mixed, goflow.NewKey(2), tensor.Shape{50}, nil)
	require.NoError(t, err)
	data := x.Data()
	for i := 0; i < len(data); i += 2 {
		assert.True(t, data[i] >= 0 && data[i] <= 2)
		assert.Equal(t, 3.0, data[i+1])
	}

	_, err = NewUniform(goflow.Scalar(math.NaN()), goflow.Scalar(1))
	assert.True(t, errors.Is(err, goflow.ErrDomain))
}

func TestChangeOfVariables(t *testing.T) {
	rng := rand.New(rand.NewSource(45))

	// exp(z) for standard normal z is log-normal
	logNormal, err := NewTransformed(NewStandardNormal(), bijection.NewExp())
	require.NoError(t, err)

	ref := distuv.LogNormal{Mu: 0, Sigma: 1}
	x := randArray(rng, 0.1, 5, 20)
	lp, err := LogProb(logNormal, x, nil)
	require.NoError(t, err)
	for i, v := range x.Data() {
		assert.InDelta(t, ref.LogProb(v), lp.Data()[i], 1e-9)
	}

	// log p_X(x) = log p_Z(f⁻¹(x)) + log|det ∂f⁻¹/∂x|
	affine, err := bijection.NewAffine(goflow.Vector(1, 2), goflow.Vector(3, 0.5))
	require.NoError(t, err)
	chain, err := bijection.NewChain(affine, bijection.NewTanh(2))
	require.NoError(t, err)
	d, err := NewTransformed(NewStandardNormal(2), chain)
	require.NoError(t, err)

	y := goflow.Vector(0.3, -0.6)
	z, logDet, err := chain.InverseAndLogDet(y, nil)
	require.NoError(t, err)
	base, err := NewStandardNormal(2).UnbatchedLogProb(z, nil)
	require.NoError(t, err)

	got, err := d.UnbatchedLogProb(y, nil)
	require.NoError(t, err)
	assert.InDelta(t, base+logDet, got, 1e-12)
}

func TestNewTransformedErrors(t *testing.T) {
	_, err := NewTransformed(NewStandardNormal(3), bijection.NewExp(2))
	assert.True(t, errors.Is(err, goflow.ErrIncompatible))

	identity := moduleFunc(func(c *goflow.Array) (*goflow.Array, error) { return c, nil })
	base, err := NewTransformed(NewStandardNormal(2),
		bijection.NewAdditiveCondition(identity, tensor.Shape{2}, tensor.Shape{2}))
	require.NoError(t, err)

	_, err = NewTransformed(base,
		bijection.NewAdditiveCondition(identity, tensor.Shape{2}, tensor.Shape{3}))
	assert.True(t, errors.Is(err, goflow.ErrIncompatible))

	// Matching conditioning shapes merge
	d, err := NewTransformed(base,
		bijection.NewAdditiveCondition(identity, tensor.Shape{2}, tensor.Shape{2}))
	require.NoError(t, err)
	assert.True(t, d.CondShape().Eq(goflow.CondOf(2)))

	// An unconditional bijection over a conditional base stays conditional
	d, err = NewTransformed(base, bijection.NewExp(2))
	require.NoError(t, err)
	assert.True(t, d.CondShape().Eq(goflow.CondOf(2)))
}

func TestMergeTransforms(t *testing.T) {
	rng := rand.New(rand.NewSource(46))

	normal, err := NewNormal(goflow.Vector(0, 1), goflow.Vector(1, 2))
	require.NoError(t, err)
	inner, err := NewTransformed(normal, bijection.NewTanh(2))
	require.NoError(t, err)
	flip := bijection.NewFlip(2)
	outer, err := NewTransformed(inner, flip)
	require.NoError(t, err)

	merged, err := outer.MergeTransforms()
	require.NoError(t, err)

	assert.IsType(t, &StandardNormal{}, merged.Base())
	chain, ok := merged.Bijection().(*bijection.Chain)
	require.True(t, ok)
	require.Equal(t, 3, chain.Len())
	assert.IsType(t, &bijection.Affine{}, chain.Bijections()[0])
	assert.IsType(t, &bijection.Tanh{}, chain.Bijections()[1])
	assert.Same(t, flip, chain.Bijections()[2])

	// The receiver is untouched
	assert.Same(t, inner, outer.Base())

	x := randArray(rng, -0.9, 0.9, 8, 2)
	want, err := LogProb(outer, x, nil)
	require.NoError(t, err)
	got, err := LogProb(merged, x, nil)
	require.NoError(t, err)
	assert.True(t, goflow.EqualApprox(want, got, 1e-12))

	wantX, err := Sample(outer, goflow.NewKey(6), tensor.Shape{5}, nil)
	require.NoError(t, err)
	gotX, err := Sample(merged, goflow.NewKey(6), tensor.Shape{5}, nil)
	require.NoError(t, err)
	assert.True(t, goflow.EqualApprox(wantX, gotX, 1e-12))

	// Merging is idempotent
	again, err := merged.MergeTransforms()
	require.NoError(t, err)
	assert.Same(t, merged.Base(), again.Base())
	assert.Same(t, merged.Bijection(), again.Bijection())

	// A distribution with a standard base merges to an equal copy
	plain, err := normal.MergeTransforms()
	require.NoError(t, err)
	assert.Same(t, normal.Base(), plain.Base())
	assert.Same(t, normal.Bijection(), plain.Bijection())
}

func TestStandardBases(t *testing.T) {
	tests := []struct {
		name string
		dist Distribution
		ref  func(x float64) float64
	}{
		{"Normal", NewStandardNormal(4), distuv.UnitNormal.LogProb},
		{"Uniform", NewStandardUniform(4), distuv.Uniform{Min: 0, Max: 1}.LogProb},
		{"Gumbel", NewStandardGumbel(4), func(x float64) float64 { return -(x + math.Exp(-x)) }},
		{"Cauchy", NewStandardCauchy(4), func(x float64) float64 { return -math.Log(math.Pi * (1 + x*x)) }},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			x, lp, err := test.dist.UnbatchedSampleAndLogProb(goflow.NewKey(8), nil)
			require.NoError(t, err)
			require.Equal(t, tensor.Shape{4}, x.Shape())

			want := 0.0
			for _, v := range x.Data() {
				want += test.ref(v)
			}
			assert.InDelta(t, want, lp, 1e-9)

			_, err = test.dist.UnbatchedSample(goflow.NewKey(8), goflow.Scalar(1))
			assert.True(t, errors.Is(err, goflow.ErrCondition))
		})
	}

	_, err := NewStandardStudentT(goflow.Vector(1, 0))
	assert.True(t, errors.Is(err, goflow.ErrDomain))
}
