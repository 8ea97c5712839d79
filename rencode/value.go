// Package rencode implements the rencodeplus structural binary encoding
// used for Xpra wire-protocol packet payloads: range-specialised
// integers, length-embedded short strings/lists/maps, big-endian
// floats, and sentinel terminators for the general (long) forms.
package rencode

import (
	"math/big"
)

// Value is a tagged union over the types the wire protocol can carry
// as packet arguments. It is a sealed interface: Int, Bool, None,
// Float64, Bytes, Text, List, and Dict are the only implementations.
type Value interface {
	rencodeValue()
}

// Int is a signed integer. Values that fit an int64 travel in Small,
// even when decoded from the arbitrary-precision form; only values
// that do not fit an int64 carry a non-nil Big instead.
type Int struct {
	Small int64
	Big   *big.Int // non-nil only when the value exceeds int64 range
}

func (Int) rencodeValue() {}

// NewInt wraps a native integer.
func NewInt(v int64) Int { return Int{Small: v} }

// NewBigInt wraps an arbitrary-precision integer, collapsing it to the
// Small fast path when it fits.
func NewBigInt(v *big.Int) Int {
	if v.IsInt64() {
		return Int{Small: v.Int64()}
	}
	return Int{Big: new(big.Int).Set(v)}
}

// IsBig reports whether the value required arbitrary-precision storage.
func (i Int) IsBig() bool { return i.Big != nil }

// AsBigInt returns the value as a *big.Int regardless of storage form.
func (i Int) AsBigInt() *big.Int {
	if i.Big != nil {
		return new(big.Int).Set(i.Big)
	}
	return big.NewInt(i.Small)
}

// Equal reports whether two Int values denote the same number.
func (i Int) Equal(o Int) bool {
	return i.AsBigInt().Cmp(o.AsBigInt()) == 0
}

// Bool is a boolean value.
type Bool bool

func (Bool) rencodeValue() {}

// noneValue is the sentinel "absence" value. None is the single
// exported instance.
type noneValue struct{}

func (noneValue) rencodeValue() {}

// None is the sentinel absence value (rencodeplus "none").
var None Value = noneValue{}

// IsNone reports whether v is the None sentinel.
func IsNone(v Value) bool {
	_, ok := v.(noneValue)
	return ok
}

// Float64 is a 64-bit float. 32-bit floats decode into Float64 too;
// the encoder only ever emits the 64-bit form (32-bit is supported on
// decode for interoperability but discouraged, per the wire contract).
type Float64 float64

func (Float64) rencodeValue() {}

// Bytes is an opaque byte string. It never undergoes UTF-8 validation
// or conversion; the core does not guess whether a byte string is
// "really" text.
type Bytes []byte

func (Bytes) rencodeValue() {}

// Text is a UTF-8 string.
type Text string

func (Text) rencodeValue() {}

// List is an ordered sequence of values.
type List []Value

func (List) rencodeValue() {}

// Dict is an insertion-ordered mapping from Value to Value. Go maps
// have no deterministic iteration order, so Dict keeps parallel key
// and value slices instead of wrapping map[Value]Value — required for
// the testability guarantee in the data model (deterministic
// iteration) and because Value is not itself a comparable Go type
// (List and Dict contain slices).
type Dict struct {
	keys   []Value
	values []Value
}

func (*Dict) rencodeValue() {}

// NewDict builds an empty ordered dictionary.
func NewDict() *Dict {
	return &Dict{}
}

// Set inserts or updates the value for key, preserving the position of
// an existing key and appending new keys in insertion order.
func (d *Dict) Set(key, value Value) {
	for i, k := range d.keys {
		if Equal(k, key) {
			d.values[i] = value
			return
		}
	}
	d.keys = append(d.keys, key)
	d.values = append(d.values, value)
}

// Get looks up the value for key.
func (d *Dict) Get(key Value) (Value, bool) {
	for i, k := range d.keys {
		if Equal(k, key) {
			return d.values[i], true
		}
	}
	return nil, false
}

// Len returns the number of key/value pairs.
func (d *Dict) Len() int {
	if d == nil {
		return 0
	}
	return len(d.keys)
}

// Range calls fn for each key/value pair in insertion order. Range
// stops early if fn returns false.
func (d *Dict) Range(fn func(key, value Value) bool) {
	if d == nil {
		return
	}
	for i, k := range d.keys {
		if !fn(k, d.values[i]) {
			return
		}
	}
}

// GetText is a convenience accessor for Text-keyed string values,
// the common case for the hello capability dictionary.
func (d *Dict) GetText(key string) (string, bool) {
	v, ok := d.Get(Text(key))
	if !ok {
		return "", false
	}
	t, ok := v.(Text)
	return string(t), ok
}

// SetText is a convenience setter mirroring GetText.
func (d *Dict) SetText(key, value string) {
	d.Set(Text(key), Text(value))
}

// Equal reports structural equality between two rencodeplus values,
// following the type-folding rules of the data model: byte strings
// stay bytes, text stays text, sequences compare element-wise, and
// dictionaries compare as insertion-order-independent key/value sets.
func Equal(a, b Value) bool {
	switch av := a.(type) {
	case Int:
		bv, ok := b.(Int)
		return ok && av.Equal(bv)
	case Bool:
		bv, ok := b.(Bool)
		return ok && av == bv
	case noneValue:
		return IsNone(b)
	case Float64:
		bv, ok := b.(Float64)
		return ok && av == bv
	case Bytes:
		bv, ok := b.(Bytes)
		return ok && bytesEqual(av, bv)
	case Text:
		bv, ok := b.(Text)
		return ok && av == bv
	case List:
		bv, ok := b.(List)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !Equal(av[i], bv[i]) {
				return false
			}
		}
		return true
	case *Dict:
		bv, ok := b.(*Dict)
		if !ok || av.Len() != bv.Len() {
			return false
		}
		match := true
		av.Range(func(k, v Value) bool {
			ov, ok := bv.Get(k)
			if !ok || !Equal(v, ov) {
				match = false
				return false
			}
			return true
		})
		return match
	default:
		return false
	}
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
