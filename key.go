package goflow

import (
	"math"

	"github.com/pkg/errors"
	"golang.org/x/exp/rand"
	"gorgonia.org/tensor"
)

// KeyShape is the core shape of a single unbatched random key.
var KeyShape = tensor.Shape{2}

// Key is a splittable pseudo-random key: a pair of 32-bit words. Equal
// keys always produce equal random streams, and no global random state
// is ever consulted.
type Key [2]uint32

// NewKey returns the key derived from seed.
func NewKey(seed uint64) Key {
	return Key{uint32(seed >> 32), uint32(seed)}
}

func (k Key) seed() uint64 {
	return uint64(k[0])<<32 | uint64(k[1])
}

// Source returns a PCG random source seeded by the receiver, suitable for
// gonum's distuv distributions.
func (k Key) Source() rand.Source {
	return rand.NewSource(k.seed())
}

// children derives the two child keys of the receiver.
func (k Key) children() (Key, Key) {
	var src rand.PCGSource
	src.Seed(k.seed())
	return NewKey(src.Uint64()), NewKey(src.Uint64())
}

// fold derives the root of the split tree for n keys. Distinct counts
// give unrelated roots.
func (k Key) fold(n int) Key {
	// splitmix64 finalizer of the count
	z := uint64(n) + 0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	z ^= z >> 31

	var src rand.PCGSource
	src.Seed(k.seed() ^ z)
	return NewKey(src.Uint64())
}

// Split deterministically derives n new keys from the receiver by
// recursive binary splitting. The result depends only on the receiver and
// n, and every position gets a distinct branch of the derivation tree.
// The count seeds the root of the tree, so requests for different numbers
// of keys share none of them.
func (k Key) Split(n int) []Key {
	keys := make([]Key, 0, n)
	var walk func(k Key, n int)
	walk = func(k Key, n int) {
		left, right := k.children()
		if n == 1 {
			keys = append(keys, left)
			return
		}
		walk(left, n/2)
		walk(right, n-n/2)
	}
	if n > 0 {
		walk(k.fold(n), n)
	}
	return keys
}

// Array returns the key as a length-2 Array. Both words are exactly
// representable as float64.
func (k Key) Array() *Array {
	return Vector(float64(k[0]), float64(k[1]))
}

// KeyFromArray converts a length-2 Array produced by Key.Array back to a
// Key.
func KeyFromArray(a *Array) (Key, error) {
	if err := CheckEvent("key", a, KeyShape); err != nil {
		return Key{}, err
	}

	var k Key
	for i, v := range a.data {
		if v < 0 || v > math.MaxUint32 || v != math.Trunc(v) {
			return Key{}, errors.Errorf("keyFromArray: %v is not a valid "+
				"key word", v)
		}
		k[i] = uint32(v)
	}
	return k, nil
}

// SampleKeys fans a single key out to one fresh key per batch element.
// The batch shape is sampleShape followed by the leading (non-event)
// dimensions of a batched condition. At least one key is produced even
// for a scalar request. The result has shape batch + (2).
func SampleKeys(key Key, sampleShape, leadingCondShape tensor.Shape) (*Array, error) {
	for _, d := range sampleShape {
		if d < 0 {
			return nil, errors.Wrapf(ErrShape, "sampleKeys: negative "+
				"dimension in sample shape %v", sampleShape)
		}
	}

	keyShape := ConcatShapes(sampleShape, leadingCondShape)
	size := keyShape.TotalSize()
	if size < 1 {
		size = 1
	}

	keys := key.Split(size)
	data := make([]float64, 0, 2*size)
	for _, k := range keys {
		data = append(data, float64(k[0]), float64(k[1]))
	}

	// An empty batch still derives one key, which the reshape discards.
	data = data[:2*keyShape.TotalSize()]

	return fromData(data, ConcatShapes(keyShape, KeyShape)), nil
}
