package kmer

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWidth(t *testing.T) {
	cases := []struct {
		k    int
		want int
	}{
		{1, 1},
		{31, 1},
		{32, 1},
		{33, 2},
		{64, 2},
		{65, 3},
		{96, 3},
	}
	for _, c := range cases {
		require.Equal(t, c.want, Width(c.k), "k=%d", c.k)
	}
}

func TestEncode(t *testing.T) {
	for _, b := range []byte{'A', 'a', 'C', 'c', 'G', 'g', 'T', 't'} {
		code, ok, skip := Encode(b)
		require.True(t, ok)
		require.False(t, skip)
		_ = code
	}

	for _, b := range []byte{'\n', '\r'} {
		_, ok, skip := Encode(b)
		require.False(t, ok)
		require.True(t, skip)
	}

	_, ok, skip := Encode('N')
	require.False(t, ok)
	require.False(t, skip)
}

func TestComplement(t *testing.T) {
	require.Equal(t, CodeT, Complement(CodeA))
	require.Equal(t, CodeA, Complement(CodeT))
	require.Equal(t, CodeG, Complement(CodeC))
	require.Equal(t, CodeC, Complement(CodeG))
}

func TestLessEqual(t *testing.T) {
	a := []uint64{1, 2}
	b := []uint64{1, 3}
	c := []uint64{1, 2}

	require.True(t, Less(a, b))
	require.False(t, Less(b, a))
	require.False(t, Less(a, c))
	require.True(t, Equal(a, c))
	require.False(t, Equal(a, b))
}

func TestTopMaskWholeWord(t *testing.T) {
	// K=32 exactly fills one 64-bit word: no masking needed.
	require.Equal(t, ^uint64(0), topMask(32, 1))
}

func TestTopMaskPartialWord(t *testing.T) {
	// K=3 uses 6 of the 64 bits in its single word.
	require.Equal(t, uint64(0x3F), topMask(3, 1))
}
