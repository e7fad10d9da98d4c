package goflow

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"gorgonia.org/tensor"
	"k8s.io/klog/v2"
)

// Kind enumerates the unbatched primitives a distribution implements.
type Kind int

const (
	// KindLogProb evaluates the log density of one event.
	KindLogProb Kind = iota

	// KindSample draws one event from one key.
	KindSample

	// KindSampleAndLogProb draws one event and returns its log density.
	KindSampleAndLogProb
)

func (k Kind) String() string {
	switch k {
	case KindLogProb:
		return "logProb"
	case KindSample:
		return "sample"
	case KindSampleAndLogProb:
		return "sampleAndLogProb"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Signature describes a vectorized call: the name of every positional
// argument, the core (unbatched) shapes of the arguments that take part
// in broadcasting, in order, the core shapes of the outputs, and the
// argument positions passed through to every call untouched.
type Signature struct {
	Names    []string
	In       []tensor.Shape
	Out      []tensor.Shape
	Excluded map[int]bool
}

// NewSignature returns the signature of a distribution primitive of the
// given kind, for a distribution with event shape shape and conditioning
// requirement cond. The primitive always takes two arguments, the event
// (or key) and the condition. For unconditional distributions the
// condition position is excluded from broadcasting.
func NewSignature(kind Kind, shape tensor.Shape, cond Cond) (Signature, error) {
	sig := Signature{Names: []string{"x", "condition"}}

	switch kind {
	case KindLogProb:
		sig.In = []tensor.Shape{cloneShape(shape)}
		sig.Out = []tensor.Shape{{}}
	case KindSample:
		sig.Names[0] = "key"
		sig.In = []tensor.Shape{cloneShape(KeyShape)}
		sig.Out = []tensor.Shape{cloneShape(shape)}
	case KindSampleAndLogProb:
		sig.Names[0] = "key"
		sig.In = []tensor.Shape{cloneShape(KeyShape)}
		sig.Out = []tensor.Shape{cloneShape(shape), {}}
	default:
		return Signature{}, errors.Errorf("newSignature: unknown kind %v", kind)
	}

	if s, ok := cond.Shape(); ok {
		sig.In = append(sig.In, s)
	} else {
		sig.Excluded = map[int]bool{1: true}
	}

	return sig, nil
}

// String renders the receiver as a generalized ufunc signature, e.g.
// "(2),(3)->(4),()".
func (s Signature) String() string {
	return formatShapes(s.In) + "->" + formatShapes(s.Out)
}

func formatShapes(shapes []tensor.Shape) string {
	parts := make([]string, len(shapes))
	for i, s := range shapes {
		dims := make([]string, len(s))
		for j, d := range s {
			dims[j] = fmt.Sprint(d)
		}
		parts[i] = "(" + strings.Join(dims, ",") + ")"
	}
	return strings.Join(parts, ",")
}

// Func is an unbatched function over core-shaped arguments.
type Func func(args []*Array) ([]*Array, error)

// checkTrailing verifies that the trailing dimensions of a match core.
func checkTrailing(name string, a *Array, core tensor.Shape) error {
	if a == nil {
		return errors.Wrapf(ErrShape, "expected trailing dimensions "+
			"matching %v for %s; got none", core, name)
	}
	n := len(a.shape) - len(core)
	if n < 0 || !ShapeEq(a.shape[n:], core) {
		return errors.Wrapf(ErrShape, "expected trailing dimensions "+
			"matching %v for %s; got %v", core, name, a.shape)
	}
	return nil
}

// Vectorize lifts fn, defined on core-shaped arguments, to arguments with
// arbitrary leading batch dimensions. Leading dimensions of all
// non-excluded arguments are broadcast against each other, fn is called
// once per element of the broadcast batch shape, and each output is
// returned with shape batch + core output shape. Batch elements are
// evaluated independently of each other.
func Vectorize(sig Signature, fn Func, opts ...Option) func(args ...*Array) ([]*Array, error) {
	cfg := newConfig(opts)

	return func(args ...*Array) ([]*Array, error) {
		if len(args) != len(sig.Names) {
			return nil, errors.Errorf("vectorize: expected %d arguments but "+
				"got %d", len(sig.Names), len(args))
		}

		// Core shape of every argument; nil for excluded positions.
		cores := make([]tensor.Shape, len(args))
		leading := make([]tensor.Shape, 0, len(sig.In))
		j := 0
		for i, a := range args {
			if sig.Excluded[i] {
				continue
			}
			if j >= len(sig.In) {
				return nil, errors.Errorf("vectorize: no core shape for "+
					"argument %s", sig.Names[i])
			}
			cores[i] = sig.In[j]
			j++

			if err := checkTrailing(sig.Names[i], a, cores[i]); err != nil {
				return nil, err
			}
			leading = append(leading, a.shape[:len(a.shape)-len(cores[i])])
		}

		batch, err := BroadcastShapes(leading...)
		if err != nil {
			return nil, errors.Wrapf(err, "vectorize: leading dimensions "+
				"%v", leading)
		}
		n := batch.TotalSize()

		if klog.V(2).Enabled() {
			klog.Infof("vectorize: signature %v over batch shape %v (%d "+
				"calls, %d workers)", sig, batch, n, cfg.workers)
		}

		outs := make([][]float64, len(sig.Out))
		for k, s := range sig.Out {
			outs[k] = make([]float64, n*s.TotalSize())
		}

		call := func(i int) error {
			coords := unravel(i, batch)
			callArgs := make([]*Array, len(args))
			for a, arg := range args {
				if sig.Excluded[a] {
					callArgs[a] = arg
					continue
				}
				lead := arg.shape[:len(arg.shape)-len(cores[a])]
				size := cores[a].TotalSize()
				at := broadcastIndex(coords, lead) * size
				callArgs[a] = &Array{shape: cores[a], data: arg.data[at : at+size]}
			}

			res, err := fn(callArgs)
			if err != nil {
				return err
			}
			if len(res) != len(sig.Out) {
				return errors.Errorf("vectorize: expected %d outputs but got "+
					"%d", len(sig.Out), len(res))
			}
			for k, r := range res {
				if err := checkTrailing("output", r, sig.Out[k]); err != nil {
					return err
				}
				if r.Dims() != len(sig.Out[k]) {
					return errors.Wrapf(ErrShape, "vectorize: output %d has "+
						"shape %v, expected %v", k, r.shape, sig.Out[k])
				}
				size := sig.Out[k].TotalSize()
				copy(outs[k][i*size:(i+1)*size], r.data)
			}
			return nil
		}

		if cfg.workers < 2 || n < 2 {
			for i := 0; i < n; i++ {
				if err := call(i); err != nil {
					return nil, err
				}
			}
		} else {
			var g errgroup.Group
			g.SetLimit(cfg.workers)
			for i := 0; i < n; i++ {
				i := i
				g.Go(func() error { return call(i) })
			}
			if err := g.Wait(); err != nil {
				return nil, err
			}
		}

		results := make([]*Array, len(sig.Out))
		for k, s := range sig.Out {
			results[k] = fromData(outs[k], ConcatShapes(batch, s))
		}
		return results, nil
	}
}

// unravel converts a flat row-major index into coordinates within shape.
func unravel(i int, shape tensor.Shape) []int {
	coords := make([]int, len(shape))
	for d := len(shape) - 1; d >= 0; d-- {
		coords[d] = i % shape[d]
		i /= shape[d]
	}
	return coords
}
