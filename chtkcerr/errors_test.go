package chtkcerr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestErrorMessage(t *testing.T) {
	err := E(InputOpen, "open failed", "reads.fa")
	require.Equal(t, "input open error: open failed [reads.fa]", err.Error())
}

func TestErrorWrapsCause(t *testing.T) {
	cause := errors.New("permission denied")
	err := E(InputOpen, "open failed", "reads.fa", cause)
	require.ErrorIs(t, err, cause)
	require.Contains(t, err.Error(), "permission denied")
}

func TestErrorIsMatchesKind(t *testing.T) {
	a := E(Configuration, "missing -k")
	b := E(Configuration, "missing -m")
	c := E(InputRead, "read failed")

	require.True(t, a.Is(b))
	require.False(t, a.Is(c))
}
