package rencode

// Typecode layout for the rencodeplus structural encoding.
//
// Every encoded value begins with a single typecode byte. Integers in
// the common small ranges fold the value into the typecode itself;
// everything else carries an explicit length or terminator.
const (
	// chrIntPosMin..chrIntPosMax: small positive integers 0..43 encoded
	// entirely in the typecode byte.
	chrIntPosMin = 0x00
	chrIntPosMax = 0x2B // 43

	// chrIntNegMin..chrIntNegMax: small negative integers -1..-32.
	// value = -(code - (chrIntNegMin - 1))
	chrIntNegMin = 0x2C
	chrIntNegMax = 0x4B // -32

	chrInt1 = 0x4C // 1-byte big-endian signed integer follows
	chrInt2 = 0x4D // 2-byte big-endian signed integer follows
	chrInt4 = 0x4E // 4-byte big-endian signed integer follows
	chrInt8 = 0x4F // 8-byte big-endian signed integer follows

	// chrIntBig: arbitrary-precision integer, encoded as decimal ASCII
	// text (optional leading '-'), terminated by chrBigIntTerm. Bounded
	// to maxBigIntDigits characters.
	chrIntBig     = 0x50
	chrBigIntTerm = 0x7F

	chrNone    = 0x51
	chrFalse   = 0x52
	chrTrue    = 0x53
	chrFloat32 = 0x54 // discouraged; big-endian IEEE-754 single
	chrFloat64 = 0x55 // big-endian IEEE-754 double

	// chrBytesShortMin..chrBytesShortMax: opaque byte strings of length
	// 0..63, length folded into the typecode.
	chrBytesShortMin = 0x56
	chrBytesShortMax = 0x95 // 0x56 + 63

	// chrBytesLong: byte string longer than 63 bytes, encoded as
	// "<decimal-length>:<bytes>" following the typecode.
	chrBytesLong = 0x96

	// chrTextShortMin..chrTextShortMax: UTF-8 text of length 0..63.
	chrTextShortMin = 0x97
	chrTextShortMax = 0xD6 // 0x97 + 63

	// chrTextLong: UTF-8 text longer than 63 bytes, "<decimal-length>:<bytes>".
	chrTextLong = 0xD7

	// chrListShortMin..chrListShortMax: sequences of length 0..15.
	chrListShortMin = 0xD8
	chrListShortMax = 0xE7 // 0xD8 + 15

	// chrListOpen: general-form sequence, items follow until chrTerm.
	chrListOpen = 0xE8

	// chrDictShortMin..chrDictShortMax: mappings with 0..15 key/value pairs.
	chrDictShortMin = 0xE9
	chrDictShortMax = 0xF8 // 0xE9 + 15

	// chrDictOpen: general-form mapping, key/value pairs follow until chrTerm.
	chrDictOpen = 0xF9

	// chrTerm: closes a chrListOpen or chrDictOpen.
	chrTerm = 0xFA

	maxBigIntDigits = 64
)

const (
	bytesShortCount = chrBytesShortMax - chrBytesShortMin + 1
	textShortCount  = chrTextShortMax - chrTextShortMin + 1
	listShortCount  = chrListShortMax - chrListShortMin + 1
	dictShortCount  = chrDictShortMax - chrDictShortMin + 1
)
