package cmd

import (
	"context"
	"flag"
	"fmt"
	"io"
	"sort"
)

// Histo reads a result file and prints a "count\tfrequency" histogram,
// sorted ascending by count. Grounded on spec.md §6's `histo` subcommand.
func Histo(_ context.Context, stdout io.Writer, args []string) error {
	var flags flag.FlagSet
	outPath := flags.String("o", "", "write output to this file instead of stdout")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if flags.NArg() != 1 {
		return fmt.Errorf("histo: expected exactly one RESULT file argument")
	}
	resultPath := flags.Arg(0)

	f, header, r, err := openResultFile(resultPath)
	if err != nil {
		return err
	}
	defer f.Close()

	frequency := make(map[uint32]uint64)
	if err := forEachRecord(resultPath, r, header, func(_ []byte, count uint32) {
		frequency[count]++
	}); err != nil {
		return err
	}

	counts := make([]uint32, 0, len(frequency))
	for c := range frequency {
		counts = append(counts, c)
	}
	sort.Slice(counts, func(i, j int) bool { return counts[i] < counts[j] })

	out, closeOut, err := openOutput(*outPath)
	if err != nil {
		return err
	}
	defer closeOut()
	if *outPath == "" {
		out = stdout
	}

	w := newBufWriter(out)
	defer w.Flush()

	for _, c := range counts {
		fmt.Fprintf(w, "%d\t%d\n", c, frequency[c])
	}
	return nil
}
