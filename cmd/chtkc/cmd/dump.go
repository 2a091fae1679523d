package cmd

import (
	"context"
	"flag"
	"fmt"
	"io"

	"github.com/chtkc-go/chtkc/kmer"
)

// Dump prints every record in a result file as "bases\tcount" text
// lines, in on-disk (insertion) order. Grounded on spec.md §6's `dump`
// subcommand.
func Dump(_ context.Context, stdout io.Writer, args []string) error {
	var flags flag.FlagSet
	outPath := flags.String("o", "", "write output to this file instead of stdout")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if flags.NArg() != 1 {
		return fmt.Errorf("dump: expected exactly one RESULT file argument")
	}
	resultPath := flags.Arg(0)

	f, header, r, err := openResultFile(resultPath)
	if err != nil {
		return err
	}
	defer f.Close()

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

	k := int(header.K)
	return forEachRecord(resultPath, r, header, func(kmerBytes []byte, count uint32) {
		fmt.Fprintf(w, "%s\t%d\n", kmer.DecodeKmerBases(kmerBytes, k), count)
	})
}
