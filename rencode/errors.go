package rencode

import "errors"

// Decoding and encoding error sentinels. The framer returns them as
// they are, without wrapping, and the wire package does not translate
// them into its ErrMalformedPayload; rencode itself stays agnostic of
// connection-level policy.
var (
	// ErrTruncated indicates the buffer ended before a value was fully read.
	ErrTruncated = errors.New("rencode: truncated input")

	// ErrInvalidTypecode indicates an unrecognised leading typecode byte.
	ErrInvalidTypecode = errors.New("rencode: invalid typecode")

	// ErrInvalidLength indicates a length-embedded or long-form length
	// that is malformed (non-decimal, negative, or otherwise impossible).
	ErrInvalidLength = errors.New("rencode: invalid length")

	// ErrBigIntTooLong indicates an arbitrary-precision integer's decimal
	// text exceeded maxBigIntDigits before its terminator was found.
	ErrBigIntTooLong = errors.New("rencode: arbitrary-precision integer too long")

	// ErrInvalidUTF8 indicates a Text value's bytes are not valid UTF-8.
	ErrInvalidUTF8 = errors.New("rencode: text value is not valid UTF-8")

	// ErrUnsupportedValue indicates Encode was asked to serialise a
	// Value variant it does not recognise (a custom, non-sealed type).
	ErrUnsupportedValue = errors.New("rencode: unsupported value type")

	// ErrUnsupportedCycle indicates a List or Dict directly contains
	// itself; cyclic structures are outside the payload domain.
	ErrUnsupportedCycle = errors.New("rencode: cyclic structure is not supported")

	// ErrUnterminated indicates a general-form list/dict (chrListOpen /
	// chrDictOpen) ran out of input before its chrTerm.
	ErrUnterminated = errors.New("rencode: unterminated list or dict")
)
