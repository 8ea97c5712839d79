package rencode

import (
	"encoding/binary"
	"fmt"
	"math"
	"reflect"
	"strconv"
)

// Encode serialises v as a rencodeplus byte string.
//
// Steps (mirrors the one-typecode-then-payload shape of every value):
//  1. Dispatch on the concrete Value variant.
//  2. Integers pick the narrowest applicable form: small-in-typecode,
//     then int1/2/4/8, then the arbitrary-precision decimal form.
//  3. Strings pick the length-embedded short form when they fit in 63
//     bytes, else the long "<len>:<bytes>" form.
//  4. Lists and dicts pick the length-embedded short form when they fit
//     the short count, else the general open/close form.
//
// Encode never performs I/O; it operates entirely on in-memory buffers.
func Encode(v Value) ([]byte, error) {
	e := &encoder{ancestors: map[any]bool{}}
	if err := e.encode(v); err != nil {
		return nil, err
	}
	return e.buf, nil
}

type encoder struct {
	buf       []byte
	ancestors map[any]bool // recursion-stack guard against cyclic structures
}

func (e *encoder) encode(v Value) error {
	switch val := v.(type) {
	case Int:
		return e.encodeInt(val)
	case Bool:
		if val {
			e.buf = append(e.buf, chrTrue)
		} else {
			e.buf = append(e.buf, chrFalse)
		}
		return nil
	case noneValue:
		e.buf = append(e.buf, chrNone)
		return nil
	case Float64:
		return e.encodeFloat(val)
	case Bytes:
		return e.encodeString(chrBytesShortMin, bytesShortCount, chrBytesLong, []byte(val))
	case Text:
		return e.encodeString(chrTextShortMin, textShortCount, chrTextLong, []byte(val))
	case List:
		return e.encodeList(val)
	case *Dict:
		return e.encodeDict(val)
	default:
		return fmt.Errorf("%w: %T", ErrUnsupportedValue, v)
	}
}

func (e *encoder) encodeInt(v Int) error {
	if v.Big == nil {
		n := v.Small
		switch {
		case n >= 0 && n <= chrIntPosMax:
			e.buf = append(e.buf, byte(n))
			return nil
		case n < 0 && n >= -32:
			e.buf = append(e.buf, byte(chrIntNegMin-1-n))
			return nil
		case n >= math.MinInt8 && n <= math.MaxInt8:
			e.buf = append(e.buf, chrInt1, byte(n))
			return nil
		case n >= math.MinInt16 && n <= math.MaxInt16:
			var tmp [2]byte
			binary.BigEndian.PutUint16(tmp[:], uint16(n))
			e.buf = append(e.buf, chrInt2)
			e.buf = append(e.buf, tmp[:]...)
			return nil
		case n >= math.MinInt32 && n <= math.MaxInt32:
			var tmp [4]byte
			binary.BigEndian.PutUint32(tmp[:], uint32(n))
			e.buf = append(e.buf, chrInt4)
			e.buf = append(e.buf, tmp[:]...)
			return nil
		default:
			var tmp [8]byte
			binary.BigEndian.PutUint64(tmp[:], uint64(n))
			e.buf = append(e.buf, chrInt8)
			e.buf = append(e.buf, tmp[:]...)
			return nil
		}
	}
	digits := v.Big.String()
	if len(digits) > maxBigIntDigits {
		return fmt.Errorf("%w: %d digits", ErrBigIntTooLong, len(digits))
	}
	e.buf = append(e.buf, chrIntBig)
	e.buf = append(e.buf, digits...)
	e.buf = append(e.buf, chrBigIntTerm)
	return nil
}

func (e *encoder) encodeFloat(v Float64) error {
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], math.Float64bits(float64(v)))
	e.buf = append(e.buf, chrFloat64)
	e.buf = append(e.buf, tmp[:]...)
	return nil
}

func (e *encoder) encodeString(shortBase byte, shortCount int, longCode byte, data []byte) error {
	if len(data) < shortCount {
		e.buf = append(e.buf, shortBase+byte(len(data)))
		e.buf = append(e.buf, data...)
		return nil
	}
	e.buf = append(e.buf, longCode)
	e.buf = append(e.buf, strconv.Itoa(len(data))...)
	e.buf = append(e.buf, ':')
	e.buf = append(e.buf, data...)
	return nil
}

func (e *encoder) encodeList(v List) error {
	key := listIdentity(v)
	if key != nil {
		if e.ancestors[key] {
			return ErrUnsupportedCycle
		}
		e.ancestors[key] = true
		defer delete(e.ancestors, key)
	}

	if len(v) < listShortCount {
		e.buf = append(e.buf, chrListShortMin+byte(len(v)))
		for _, item := range v {
			if err := e.encode(item); err != nil {
				return err
			}
		}
		return nil
	}

	e.buf = append(e.buf, chrListOpen)
	for _, item := range v {
		if err := e.encode(item); err != nil {
			return err
		}
	}
	e.buf = append(e.buf, chrTerm)
	return nil
}

func (e *encoder) encodeDict(v *Dict) error {
	if v == nil {
		v = NewDict()
	}
	if e.ancestors[v] {
		return ErrUnsupportedCycle
	}
	e.ancestors[v] = true
	defer delete(e.ancestors, v)

	n := v.Len()
	if n < dictShortCount {
		e.buf = append(e.buf, chrDictShortMin+byte(n))
	} else {
		e.buf = append(e.buf, chrDictOpen)
	}

	var encErr error
	v.Range(func(k, val Value) bool {
		if err := e.encode(k); err != nil {
			encErr = err
			return false
		}
		if err := e.encode(val); err != nil {
			encErr = err
			return false
		}
		return true
	})
	if encErr != nil {
		return encErr
	}

	if n >= dictShortCount {
		e.buf = append(e.buf, chrTerm)
	}
	return nil
}

// listIdentity returns a comparable key for the slice's backing array
// so cyclic encode() can detect "this exact list is its own ancestor",
// or nil for empty/nil slices which cannot meaningfully self-reference.
func listIdentity(v List) any {
	if len(v) == 0 {
		return nil
	}
	return reflect.ValueOf(([]Value)(v)).Pointer()
}
