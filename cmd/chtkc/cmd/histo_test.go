package cmd

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHistoBuildsAscendingFrequencyTable(t *testing.T) {
	dir := t.TempDir()
	resultPath := filepath.Join(dir, "result.chtkc")
	writeResultFile(t, resultPath, 3, 255, []struct {
		bases string
		count uint32
	}{
		{"AAA", 5},
		{"CCC", 2},
		{"GGG", 5},
	})

	var out bytes.Buffer
	err := Histo(context.Background(), &out, []string{resultPath})
	require.NoError(t, err)

	require.Equal(t, "2\t1\n5\t2\n", out.String())
}

func TestHistoRequiresExactlyOneArgument(t *testing.T) {
	err := Histo(context.Background(), &bytes.Buffer{}, nil)
	require.Error(t, err)
}
