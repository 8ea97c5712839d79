package wire

import (
	"fmt"

	"github.com/xpra-org/xpra-wire/rencode"
)

// Args is a typed-accessor wrapper over a decoded packet's argument
// list (everything after the packet-type item). Handlers never see a
// raw []rencode.Value; each accessor validates position and type and
// returns ErrMalformedPayload uniformly on mismatch, per spec.md §9's
// "dynamic typing of payloads" note.
type Args struct {
	items []rencode.Value
}

// NewArgs wraps a decoded argument list.
func NewArgs(items []rencode.Value) Args { return Args{items: items} }

// Len returns the number of arguments.
func (a Args) Len() int { return len(a.items) }

// Raw returns the argument at i without type validation, for handlers
// that need to pass a value through unexamined.
func (a Args) Raw(i int) (rencode.Value, error) {
	if i < 0 || i >= len(a.items) {
		return nil, fmt.Errorf("%w: argument %d out of range (len %d)", ErrMalformedPayload, i, len(a.items))
	}
	return a.items[i], nil
}

// Int returns argument i as a 64-bit integer.
func (a Args) Int(i int) (int64, error) {
	v, err := a.Raw(i)
	if err != nil {
		return 0, err
	}
	n, ok := v.(rencode.Int)
	if !ok {
		return 0, fmt.Errorf("%w: argument %d is not an integer", ErrMalformedPayload, i)
	}
	return n.Small, nil
}

// Bool returns argument i as a boolean.
func (a Args) Bool(i int) (bool, error) {
	v, err := a.Raw(i)
	if err != nil {
		return false, err
	}
	b, ok := v.(rencode.Bool)
	if !ok {
		return false, fmt.Errorf("%w: argument %d is not a boolean", ErrMalformedPayload, i)
	}
	return bool(b), nil
}

// Float64 returns argument i as a float.
func (a Args) Float64(i int) (float64, error) {
	v, err := a.Raw(i)
	if err != nil {
		return 0, err
	}
	f, ok := v.(rencode.Float64)
	if !ok {
		return 0, fmt.Errorf("%w: argument %d is not a float", ErrMalformedPayload, i)
	}
	return float64(f), nil
}

// Bytes returns argument i as an opaque byte string.
func (a Args) Bytes(i int) ([]byte, error) {
	v, err := a.Raw(i)
	if err != nil {
		return nil, err
	}
	b, ok := v.(rencode.Bytes)
	if !ok {
		return nil, fmt.Errorf("%w: argument %d is not a byte string", ErrMalformedPayload, i)
	}
	return []byte(b), nil
}

// Text returns argument i as a UTF-8 string.
func (a Args) Text(i int) (string, error) {
	v, err := a.Raw(i)
	if err != nil {
		return "", err
	}
	t, ok := v.(rencode.Text)
	if !ok {
		return "", fmt.Errorf("%w: argument %d is not text", ErrMalformedPayload, i)
	}
	return string(t), nil
}

// Seq returns argument i as an ordered sequence.
func (a Args) Seq(i int) ([]rencode.Value, error) {
	v, err := a.Raw(i)
	if err != nil {
		return nil, err
	}
	l, ok := v.(rencode.List)
	if !ok {
		return nil, fmt.Errorf("%w: argument %d is not a list", ErrMalformedPayload, i)
	}
	return []rencode.Value(l), nil
}

// Dict returns argument i as a mapping.
func (a Args) Dict(i int) (*rencode.Dict, error) {
	v, err := a.Raw(i)
	if err != nil {
		return nil, err
	}
	d, ok := v.(*rencode.Dict)
	if !ok {
		return nil, fmt.Errorf("%w: argument %d is not a dict", ErrMalformedPayload, i)
	}
	return d, nil
}
