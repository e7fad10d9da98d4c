package bijection

import (
	"reflect"

	"github.com/pkg/errors"
	"gorgonia.org/tensor"
	"k8s.io/klog/v2"

	"github.com/samuelfneumann/goflow"
)

// Chain composes a sequence of bijections. Transform applies the
// bijections from first to last and Inverse from last to first.
type Chain struct {
	bijections []Bijection
	shape      tensor.Shape
	cond       goflow.Cond
}

// NewChain returns a new Chain. All bijections must share one shape, and
// their conditioning shapes must merge.
func NewChain(bijections ...Bijection) (*Chain, error) {
	if len(bijections) == 0 {
		return nil, errors.New("newChain: at least one bijection is required")
	}
	if err := checkSameShape(bijections); err != nil {
		return nil, errors.Wrap(err, "newChain")
	}
	cond, err := mergeConds(bijections)
	if err != nil {
		return nil, errors.Wrap(err, "newChain")
	}

	owned := make([]Bijection, len(bijections))
	copy(owned, bijections)

	return &Chain{
		bijections: owned,
		shape:      bijections[0].Shape(),
		cond:       cond,
	}, nil
}

// Shape implements Bijection
func (c *Chain) Shape() tensor.Shape { return c.shape.Clone() }

// CondShape implements Bijection
func (c *Chain) CondShape() goflow.Cond { return c.cond }

// Len returns the number of bijections in the chain
func (c *Chain) Len() int { return len(c.bijections) }

// Bijections returns the bijections of the chain, in order.
func (c *Chain) Bijections() []Bijection {
	out := make([]Bijection, len(c.bijections))
	copy(out, c.bijections)
	return out
}

// Transform implements Bijection
func (c *Chain) Transform(x, condition *goflow.Array) (*goflow.Array, error) {
	if err := argcheck(c, x, condition); err != nil {
		return nil, errors.Wrap(err, "transform")
	}

	var err error
	for i, b := range c.bijections {
		x, err = b.Transform(x, childCondition(b, condition))
		if err != nil {
			return nil, errors.Wrapf(err, "transform: bijection %d", i)
		}
	}
	return x, nil
}

// TransformAndLogDet implements Bijection
func (c *Chain) TransformAndLogDet(x, condition *goflow.Array) (*goflow.Array, float64, error) {
	if err := argcheck(c, x, condition); err != nil {
		return nil, 0, errors.Wrap(err, "transform")
	}

	total := 0.0
	for i, b := range c.bijections {
		var logDet float64
		var err error
		x, logDet, err = b.TransformAndLogDet(x, childCondition(b, condition))
		if err != nil {
			return nil, 0, errors.Wrapf(err, "transform: bijection %d", i)
		}
		total += logDet
	}
	return x, total, nil
}

// Inverse implements Bijection
func (c *Chain) Inverse(y, condition *goflow.Array) (*goflow.Array, error) {
	if err := argcheck(c, y, condition); err != nil {
		return nil, errors.Wrap(err, "inverse")
	}

	var err error
	for i := len(c.bijections) - 1; i >= 0; i-- {
		b := c.bijections[i]
		y, err = b.Inverse(y, childCondition(b, condition))
		if err != nil {
			return nil, errors.Wrapf(err, "inverse: bijection %d", i)
		}
	}
	return y, nil
}

// InverseAndLogDet implements Bijection
func (c *Chain) InverseAndLogDet(y, condition *goflow.Array) (*goflow.Array, float64, error) {
	if err := argcheck(c, y, condition); err != nil {
		return nil, 0, errors.Wrap(err, "inverse")
	}

	total := 0.0
	for i := len(c.bijections) - 1; i >= 0; i-- {
		b := c.bijections[i]
		var logDet float64
		var err error
		y, logDet, err = b.InverseAndLogDet(y, childCondition(b, condition))
		if err != nil {
			return nil, 0, errors.Wrapf(err, "inverse: bijection %d", i)
		}
		total += logDet
	}
	return y, total, nil
}

// MergeChains returns an equivalent Chain in which nested chains, at any
// depth, are replaced by their contents. Adjacent pairs of a bijection and
// its inversion cancel and are removed; if every bijection cancels, the
// result is a single Identity of the receiver's shape. The receiver is not
// modified.
func (c *Chain) MergeChains() (*Chain, error) {
	flat := make([]Bijection, 0, len(c.bijections))

	// Depth-first flattening with an explicit stack of chains.
	stack := [][]Bijection{c.bijections}
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		if len(top) == 0 {
			stack = stack[:len(stack)-1]
			continue
		}
		stack[len(stack)-1] = top[1:]

		if nested, ok := top[0].(*Chain); ok {
			stack = append(stack, nested.bijections)
			continue
		}

		if n := len(flat); n > 0 && cancels(flat[n-1], top[0]) {
			flat = flat[:n-1]
			continue
		}
		flat = append(flat, top[0])
	}

	klog.V(1).Infof("mergeChains: flattened %d bijections into %d",
		len(c.bijections), len(flat))

	if len(flat) == 0 {
		flat = append(flat, NewIdentity(c.shape))
	}

	merged, err := NewChain(flat...)
	if err != nil {
		return nil, errors.Wrap(err, "mergeChains")
	}

	// Cancelled conditional bijections must not drop the requirement.
	merged.cond = c.cond
	return merged, nil
}

// cancels reports whether a followed by b is the identity because one
// is the Invert of the other.
func cancels(a, b Bijection) bool {
	if inv, ok := b.(*Inverted); ok && same(inv.bijection, a) {
		return true
	}
	if inv, ok := a.(*Inverted); ok && same(inv.bijection, b) {
		return true
	}
	return false
}

// same reports whether a and b are the same bijection value. Values of
// non-comparable types are never considered the same.
func same(a, b Bijection) bool {
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb || !ta.Comparable() {
		return false
	}
	return a == b
}

// childCondition drops the condition for unconditional children of a
// conditional composite.
func childCondition(b Bijection, condition *goflow.Array) *goflow.Array {
	if b.CondShape().IsNone() {
		return nil
	}
	return condition
}
