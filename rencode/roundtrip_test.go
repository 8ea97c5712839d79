package rencode_test

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xpra-org/xpra-wire/rencode"
)

func dict(pairs ...rencode.Value) *rencode.Dict {
	d := rencode.NewDict()
	for i := 0; i+1 < len(pairs); i += 2 {
		d.Set(pairs[i], pairs[i+1])
	}
	return d
}

func TestRoundTrip(t *testing.T) {
	bigVal := new(big.Int)
	bigVal.SetString("123456789012345678901234567890", 10)

	cases := map[string]rencode.Value{
		"zero":            rencode.NewInt(0),
		"small positive":  rencode.NewInt(43),
		"small negative":  rencode.NewInt(-32),
		"int1":            rencode.NewInt(-100),
		"int2":            rencode.NewInt(30000),
		"int4":            rencode.NewInt(70000),
		"int8":            rencode.NewInt(1 << 40),
		"bigint":          rencode.NewBigInt(bigVal),
		"bool true":       rencode.Bool(true),
		"bool false":      rencode.Bool(false),
		"none":            rencode.None,
		"float":           rencode.Float64(3.14159),
		"negative float":  rencode.Float64(-2.5),
		"empty bytes":     rencode.Bytes(nil),
		"short bytes":     rencode.Bytes([]byte{0xAA, 0xBB, 0xCC}),
		"long bytes":      rencode.Bytes(make([]byte, 1000)),
		"empty text":      rencode.Text(""),
		"short text":      rencode.Text("hello"),
		"long text":       rencode.Text(string(make([]byte, 200))),
		"unicode text":    rencode.Text("héllo wörld 日本語"),
		"empty list":      rencode.List{},
		"short list":      rencode.List{rencode.NewInt(1), rencode.NewInt(2), rencode.NewInt(3)},
		"long list":       makeLongList(),
		"nested list":     rencode.List{rencode.List{rencode.NewInt(1)}, rencode.Text("x")},
		"empty dict":      rencode.NewDict(),
		"short dict":      dict(rencode.Text("a"), rencode.NewInt(1), rencode.Text("b"), rencode.NewInt(2)),
		"long dict":       makeLongDict(),
		"hello-like dict": dict(rencode.Text("version"), rencode.Text("6.0")),
	}

	for name, v := range cases {
		t.Run(name, func(t *testing.T) {
			enc, err := rencode.Encode(v)
			require.NoError(t, err)

			dec, n, err := rencode.Decode(enc)
			require.NoError(t, err)
			require.Equal(t, len(enc), n)
			require.True(t, rencode.Equal(v, dec), "expected %#v, got %#v", v, dec)
		})
	}
}

func makeLongList() rencode.Value {
	l := make(rencode.List, 0, 40)
	for i := 0; i < 40; i++ {
		l = append(l, rencode.NewInt(int64(i)))
	}
	return l
}

func makeLongDict() rencode.Value {
	d := rencode.NewDict()
	for i := 0; i < 40; i++ {
		d.Set(rencode.NewInt(int64(i)), rencode.NewInt(int64(i*i)))
	}
	return d
}

func TestDecodeConsumesExactBytes(t *testing.T) {
	enc, err := rencode.Encode(rencode.NewInt(42))
	require.NoError(t, err)

	// Simulate a larger buffer with trailing data following the value,
	// exactly as the framer hands a main-packet payload to Decode.
	buf := append(append([]byte(nil), enc...), 0xFF, 0xFF)
	v, n, err := rencode.Decode(buf)
	require.NoError(t, err)
	require.Equal(t, len(enc), n)
	require.True(t, rencode.Equal(rencode.NewInt(42), v))
}

func TestTruncatedInputFails(t *testing.T) {
	enc, err := rencode.Encode(rencode.Text("hello world this is long enough to need the long form padding padding padding"))
	require.NoError(t, err)

	for cut := 0; cut < len(enc); cut++ {
		_, _, err := rencode.Decode(enc[:cut])
		require.Error(t, err)
	}
}

func TestInvalidTypecodeFails(t *testing.T) {
	_, _, err := rencode.Decode([]byte{0xFB})
	require.ErrorIs(t, err, rencode.ErrInvalidTypecode)
}

func TestCyclicListRejected(t *testing.T) {
	l := make(rencode.List, 1)
	l[0] = l
	_, err := rencode.Encode(l)
	require.ErrorIs(t, err, rencode.ErrUnsupportedCycle)
}

func TestCyclicDictRejected(t *testing.T) {
	d := rencode.NewDict()
	d.Set(rencode.Text("self"), d)
	_, err := rencode.Encode(d)
	require.ErrorIs(t, err, rencode.ErrUnsupportedCycle)
}

func TestBytesAndTextStayDistinct(t *testing.T) {
	b, err := rencode.Encode(rencode.Bytes("hello"))
	require.NoError(t, err)
	txt, err := rencode.Encode(rencode.Text("hello"))
	require.NoError(t, err)
	require.NotEqual(t, b, txt)
}
