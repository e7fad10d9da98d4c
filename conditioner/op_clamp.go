package conditioner

import (
	"fmt"
	"hash"
	"hash/fnv"

	"github.com/chewxy/hm"
	"github.com/pkg/errors"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// clampOp is a gorgonia Op which clamps every element of its input to
// [lo, hi].
type clampOp struct {
	lo, hi float64
}

// clamp adds a clampOp over x to x's graph.
func clamp(x *G.Node, lo, hi float64) (*G.Node, error) {
	return G.ApplyOp(&clampOp{lo: lo, hi: hi}, x)
}

func (c *clampOp) Arity() int { return 1 }

func (c *clampOp) Type() hm.Type {
	a := hm.TypeVariable('a')

	return hm.NewFnType(a, a)
}

func (c *clampOp) InferShape(inputs ...G.DimSizer) (tensor.Shape, error) {
	if len(inputs) != c.Arity() {
		return nil, errors.Errorf("inferShape: %v expected %d input but "+
			"got %d", c, c.Arity(), len(inputs))
	}
	s, ok := inputs[0].(tensor.Shape)
	if !ok {
		return nil, errors.Errorf("inferShape: expected a shape but got %T",
			inputs[0])
	}
	return s.Clone(), nil
}

func (c *clampOp) ReturnsPtr() bool { return true }

func (c *clampOp) CallsExtern() bool { return false }

func (c *clampOp) OverwritesInput() int { return -1 }

func (c *clampOp) String() string { return fmt.Sprintf("Clamp(%v, %v)", c.lo, c.hi) }

// WriteHash writes the hash of the receiver to h
func (c *clampOp) WriteHash(h hash.Hash) { fmt.Fprint(h, c.String()) }

// Hashcode returns the 32-bit FNV-1a hash of the receiver
func (c *clampOp) Hashcode() uint32 {
	h := fnv.New32a()
	c.WriteHash(h)
	return h.Sum32()
}

func (c *clampOp) Do(inputs ...G.Value) (G.Value, error) {
	if len(inputs) != c.Arity() {
		return nil, errors.Errorf("do: %v expected %d input but got %d", c,
			c.Arity(), len(inputs))
	}

	in, ok := inputs[0].(tensor.Tensor)
	if !ok || in == nil {
		return nil, errors.Errorf("do: expected a tensor to clamp but got %T",
			inputs[0])
	} else if in.Size() == 0 {
		return nil, errors.Errorf("do: cannot clamp empty tensor of shape %v",
			in.Shape())
	}

	return tensor.Clamp(in, c.lo, c.hi)
}
