package distribution

import (
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
	"k8s.io/klog/v2"

	"github.com/samuelfneumann/goflow"
	"github.com/samuelfneumann/goflow/bijection"
)

// Transformer is a distribution defined by pushing a base distribution
// through a bijection. Densities are evaluated with the inverse of the
// bijection and samples are drawn with the forward direction.
type Transformer interface {
	Distribution
	Base() Distribution
	Bijection() bijection.Bijection
}

// Transformed is the distribution of b(z) for z drawn from a base
// distribution.
//
// It is the caller's responsibility to ensure the bijection is valid over
// the entire support of the base distribution.
type Transformed struct {
	base      Distribution
	bijection bijection.Bijection
	cond      goflow.Cond
}

// NewTransformed returns a new Transformed. The bijection must act on
// the shape of base, and if both are conditional their conditioning
// shapes must match.
func NewTransformed(base Distribution, b bijection.Bijection) (*Transformed, error) {
	if !goflow.ShapeEq(base.Shape(), b.Shape()) {
		return nil, errors.Wrapf(goflow.ErrIncompatible, "newTransformed: "+
			"bijection with shape %v cannot transform a base distribution "+
			"with shape %v", b.Shape(), base.Shape())
	}

	cond, err := goflow.MergeConds(b.CondShape(), base.CondShape())
	if err != nil {
		return nil, errors.Wrap(err, "newTransformed: base distribution "+
			"and bijection are both conditional but have mismatched "+
			"conditioning shapes")
	}

	return &Transformed{base: base, bijection: b, cond: cond}, nil
}

// Shape implements Distribution
func (t *Transformed) Shape() tensor.Shape { return t.base.Shape() }

// CondShape implements Distribution
func (t *Transformed) CondShape() goflow.Cond { return t.cond }

// Base implements Transformer
func (t *Transformed) Base() Distribution { return t.base }

// Bijection implements Transformer
func (t *Transformed) Bijection() bijection.Bijection { return t.bijection }

// UnbatchedLogProb implements Distribution
func (t *Transformed) UnbatchedLogProb(x, condition *goflow.Array) (float64, error) {
	if err := goflow.CheckArgs(x, t.Shape(), condition, t.cond); err != nil {
		return 0, errors.Wrap(err, "logProb")
	}

	z, logDet, err := t.bijection.InverseAndLogDet(x,
		childCondition(t.bijection.CondShape(), condition))
	if err != nil {
		return 0, errors.Wrap(err, "logProb")
	}

	lp, err := t.base.UnbatchedLogProb(z,
		childCondition(t.base.CondShape(), condition))
	if err != nil {
		return 0, errors.Wrap(err, "logProb")
	}
	return lp + logDet, nil
}

// UnbatchedSample implements Distribution
func (t *Transformed) UnbatchedSample(key goflow.Key, condition *goflow.Array) (*goflow.Array, error) {
	if err := t.checkCondition(condition); err != nil {
		return nil, errors.Wrap(err, "sample")
	}

	z, err := t.base.UnbatchedSample(key,
		childCondition(t.base.CondShape(), condition))
	if err != nil {
		return nil, errors.Wrap(err, "sample")
	}

	x, err := t.bijection.Transform(z,
		childCondition(t.bijection.CondShape(), condition))
	if err != nil {
		return nil, errors.Wrap(err, "sample")
	}
	return x, nil
}

// UnbatchedSampleAndLogProb implements Distribution. It avoids computing
// the inverse transformation.
func (t *Transformed) UnbatchedSampleAndLogProb(key goflow.Key, condition *goflow.Array) (*goflow.Array, float64, error) {
	if err := t.checkCondition(condition); err != nil {
		return nil, 0, errors.Wrap(err, "sampleAndLogProb")
	}

	z, lp, err := t.base.UnbatchedSampleAndLogProb(key,
		childCondition(t.base.CondShape(), condition))
	if err != nil {
		return nil, 0, errors.Wrap(err, "sampleAndLogProb")
	}

	x, logDet, err := t.bijection.TransformAndLogDet(z,
		childCondition(t.bijection.CondShape(), condition))
	if err != nil {
		return nil, 0, errors.Wrap(err, "sampleAndLogProb")
	}
	return x, lp - logDet, nil
}

func (t *Transformed) checkCondition(condition *goflow.Array) error {
	if err := goflow.CheckCondition(t.cond, condition); err != nil {
		return err
	}
	if s, ok := t.cond.Shape(); ok {
		return goflow.CheckEvent("condition", condition, s)
	}
	return nil
}

// MergeTransforms returns an equivalent Transformed whose base is not
// itself a Transformer. The bijections of nested transformed bases are
// collected, innermost first, into a single flattened Chain. The receiver
// is not modified.
func (t *Transformed) MergeTransforms() (*Transformed, error) {
	if _, ok := t.base.(Transformer); !ok {
		merged := *t
		return &merged, nil
	}

	bijections := []bijection.Bijection{t.bijection}
	base := t.base
	for {
		inner, ok := base.(Transformer)
		if !ok {
			break
		}
		bijections = append(bijections, inner.Bijection())
		base = inner.Base()
	}

	for i, j := 0, len(bijections)-1; i < j; i, j = i+1, j-1 {
		bijections[i], bijections[j] = bijections[j], bijections[i]
	}

	chain, err := bijection.NewChain(bijections...)
	if err != nil {
		return nil, errors.Wrap(err, "mergeTransforms")
	}
	chain, err = chain.MergeChains()
	if err != nil {
		return nil, errors.Wrap(err, "mergeTransforms")
	}

	klog.V(1).Infof("mergeTransforms: merged %d nested transforms into a "+
		"chain of %d bijections", len(bijections), chain.Len())

	return NewTransformed(base, chain)
}
