package rencode

import (
	"encoding/binary"
	"math"
	"math/big"
	"unicode/utf8"
)

// Decode parses one rencodeplus value from the start of data and
// returns it along with the number of bytes consumed, so callers
// (the framer) can decode a value embedded in a larger buffer without
// an extra copy.
//
// Every read validates pos < len(data) before advancing; truncated or
// malformed input fails with one of the sentinel errors in errors.go.
func Decode(data []byte) (Value, int, error) {
	d := &decoder{data: data}
	v, err := d.decode()
	if err != nil {
		return nil, 0, err
	}
	return v, d.pos, nil
}

type decoder struct {
	data []byte
	pos  int
}

func (d *decoder) readByte() (byte, error) {
	if d.pos >= len(d.data) {
		return 0, ErrTruncated
	}
	b := d.data[d.pos]
	d.pos++
	return b, nil
}

func (d *decoder) peekByte() (byte, error) {
	if d.pos >= len(d.data) {
		return 0, ErrTruncated
	}
	return d.data[d.pos], nil
}

func (d *decoder) take(n int) ([]byte, error) {
	if n < 0 || d.pos+n > len(d.data) {
		return nil, ErrTruncated
	}
	b := d.data[d.pos : d.pos+n]
	d.pos += n
	return b, nil
}

func (d *decoder) decode() (Value, error) {
	code, err := d.readByte()
	if err != nil {
		return nil, err
	}

	switch {
	case code >= chrIntPosMin && code <= chrIntPosMax:
		return NewInt(int64(code)), nil
	case code >= chrIntNegMin && code <= chrIntNegMax:
		return NewInt(int64(chrIntNegMin) - 1 - int64(code)), nil
	case code == chrInt1:
		b, err := d.take(1)
		if err != nil {
			return nil, err
		}
		return NewInt(int64(int8(b[0]))), nil
	case code == chrInt2:
		b, err := d.take(2)
		if err != nil {
			return nil, err
		}
		return NewInt(int64(int16(binary.BigEndian.Uint16(b)))), nil
	case code == chrInt4:
		b, err := d.take(4)
		if err != nil {
			return nil, err
		}
		return NewInt(int64(int32(binary.BigEndian.Uint32(b)))), nil
	case code == chrInt8:
		b, err := d.take(8)
		if err != nil {
			return nil, err
		}
		return NewInt(int64(binary.BigEndian.Uint64(b))), nil
	case code == chrIntBig:
		return d.decodeBigInt()
	case code == chrNone:
		return None, nil
	case code == chrFalse:
		return Bool(false), nil
	case code == chrTrue:
		return Bool(true), nil
	case code == chrFloat32:
		b, err := d.take(4)
		if err != nil {
			return nil, err
		}
		return Float64(math.Float32frombits(binary.BigEndian.Uint32(b))), nil
	case code == chrFloat64:
		b, err := d.take(8)
		if err != nil {
			return nil, err
		}
		return Float64(math.Float64frombits(binary.BigEndian.Uint64(b))), nil
	case code >= chrBytesShortMin && code <= chrBytesShortMax:
		b, err := d.take(int(code - chrBytesShortMin))
		if err != nil {
			return nil, err
		}
		return Bytes(append([]byte(nil), b...)), nil
	case code == chrBytesLong:
		b, err := d.decodeLongString()
		if err != nil {
			return nil, err
		}
		return Bytes(b), nil
	case code >= chrTextShortMin && code <= chrTextShortMax:
		b, err := d.take(int(code - chrTextShortMin))
		if err != nil {
			return nil, err
		}
		if !utf8.Valid(b) {
			return nil, ErrInvalidUTF8
		}
		return Text(string(b)), nil
	case code == chrTextLong:
		b, err := d.decodeLongString()
		if err != nil {
			return nil, err
		}
		if !utf8.Valid(b) {
			return nil, ErrInvalidUTF8
		}
		return Text(string(b)), nil
	case code >= chrListShortMin && code <= chrListShortMax:
		return d.decodeListN(int(code - chrListShortMin))
	case code == chrListOpen:
		return d.decodeListUntilTerm()
	case code >= chrDictShortMin && code <= chrDictShortMax:
		return d.decodeDictN(int(code - chrDictShortMin))
	case code == chrDictOpen:
		return d.decodeDictUntilTerm()
	default:
		return nil, ErrInvalidTypecode
	}
}

func (d *decoder) decodeBigInt() (Value, error) {
	start := d.pos
	for {
		b, err := d.readByte()
		if err != nil {
			return nil, err
		}
		if b == chrBigIntTerm {
			break
		}
		if d.pos-start > maxBigIntDigits {
			return nil, ErrBigIntTooLong
		}
	}
	digits := d.data[start : d.pos-1]
	if len(digits) == 0 {
		return nil, ErrInvalidLength
	}
	n := new(big.Int)
	if _, ok := n.SetString(string(digits), 10); !ok {
		return nil, ErrInvalidLength
	}
	return NewBigInt(n), nil
}

func (d *decoder) decodeLongString() ([]byte, error) {
	start := d.pos
	for {
		b, err := d.peekByte()
		if err != nil {
			return nil, err
		}
		if b == ':' {
			break
		}
		if b < '0' || b > '9' {
			return nil, ErrInvalidLength
		}
		d.pos++
		if d.pos-start > 20 { // generous bound on decimal digit count
			return nil, ErrInvalidLength
		}
	}
	lenDigits := d.data[start:d.pos]
	if len(lenDigits) == 0 {
		return nil, ErrInvalidLength
	}
	d.pos++ // consume ':'

	n := 0
	for _, c := range lenDigits {
		n = n*10 + int(c-'0')
		if n < 0 {
			return nil, ErrInvalidLength
		}
	}

	b, err := d.take(n)
	if err != nil {
		return nil, err
	}
	return append([]byte(nil), b...), nil
}

func (d *decoder) decodeListN(n int) (Value, error) {
	list := make(List, 0, n)
	for i := 0; i < n; i++ {
		v, err := d.decode()
		if err != nil {
			return nil, err
		}
		list = append(list, v)
	}
	return list, nil
}

func (d *decoder) decodeListUntilTerm() (Value, error) {
	list := List{}
	for {
		b, err := d.peekByte()
		if err != nil {
			return nil, ErrUnterminated
		}
		if b == chrTerm {
			d.pos++
			return list, nil
		}
		v, err := d.decode()
		if err != nil {
			return nil, err
		}
		list = append(list, v)
	}
}

func (d *decoder) decodeDictN(n int) (Value, error) {
	dict := NewDict()
	for i := 0; i < n; i++ {
		k, err := d.decode()
		if err != nil {
			return nil, err
		}
		v, err := d.decode()
		if err != nil {
			return nil, err
		}
		dict.Set(k, v)
	}
	return dict, nil
}

func (d *decoder) decodeDictUntilTerm() (Value, error) {
	dict := NewDict()
	for {
		b, err := d.peekByte()
		if err != nil {
			return nil, ErrUnterminated
		}
		if b == chrTerm {
			d.pos++
			return dict, nil
		}
		k, err := d.decode()
		if err != nil {
			return nil, err
		}
		v, err := d.decode()
		if err != nil {
			return nil, err
		}
		dict.Set(k, v)
	}
}
