package goflow

import (
	"math"

	"github.com/pkg/errors"
)

// Mapping is a fixed function from a raw parameter to the value used in
// computation, e.g. a positivity constraint.
type Mapping func(raw *Array) (*Array, error)

// Param is a deferred parameter value. It either holds a plain Array, or
// a raw Array together with a Mapping that is applied every time the
// value is read. Trainable code updates the raw Array; readers always see
// the constrained value.
type Param struct {
	value *Array
	raw   *Array
	apply Mapping
}

// PlainParam returns a Param that resolves to v unchanged.
func PlainParam(v *Array) Param {
	return Param{value: v}
}

// PendingParam returns a Param that resolves to apply(raw).
func PendingParam(raw *Array, apply Mapping) Param {
	return Param{raw: raw, apply: apply}
}

// IsPending reports whether the receiver holds a raw value with a mapping
func (p Param) IsPending() bool { return p.apply != nil }

// Raw returns the stored array: the unconstrained value if the receiver
// is pending, else the plain value.
func (p Param) Raw() *Array {
	if p.IsPending() {
		return p.raw
	}
	return p.value
}

// Unwrap resolves the receiver to the array used in computation.
func (p Param) Unwrap() (*Array, error) {
	if !p.IsPending() {
		if p.value == nil {
			return nil, errors.New("unwrap: empty parameter")
		}
		return p.value, nil
	}

	v, err := p.apply(p.raw)
	if err != nil {
		return nil, errors.Wrap(err, "unwrap")
	}
	return v, nil
}

// Softplus computes log(1 + eˣ) without overflow.
func Softplus(x float64) float64 {
	if x > 0 {
		return x + math.Log1p(math.Exp(-x))
	}
	return math.Log1p(math.Exp(x))
}

// InvSoftplus is the inverse of Softplus, defined for y > 0.
func InvSoftplus(y float64) float64 {
	// log(eʸ - 1) = y + log(1 - e⁻ʸ)
	return y + math.Log(-math.Expm1(-y))
}

// SoftplusMapping maps every element through Softplus.
func SoftplusMapping(raw *Array) (*Array, error) {
	return Map(raw, Softplus), nil
}

// PositiveParam stores value as a pending softplus reparameterization of
// its inverse, so that unwrapping returns value. All elements of value
// must be positive.
func PositiveParam(value *Array) (Param, error) {
	for _, v := range value.data {
		if !(v > 0) {
			return Param{}, errors.Wrapf(ErrDomain, "positiveParam: "+
				"expected positive values but got %v", v)
		}
	}
	return PendingParam(Map(value, InvSoftplus), SoftplusMapping), nil
}
