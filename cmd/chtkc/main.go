// Command chtkc counts canonical K-mers from FASTA/FASTQ input under a
// fixed memory budget (the `count` subcommand) and inspects the result
// files it produces (`histo`, `dump`). Grounded on
// grailbio-base/cmd/grail-file/main.go's shape.
package main

import (
	"context"
	"flag"
	"os"

	"github.com/chtkc-go/chtkc/chtkclog"
	"github.com/chtkc-go/chtkc/cmd/chtkc/cmd"
)

func main() {
	help := flag.Bool("help", false, "display help about this command")
	flag.Parse()
	if *help {
		cmd.PrintHelp()
		os.Exit(0)
	}

	logger := chtkclog.New(os.Stderr, chtkclog.Error)
	if err := cmd.Run(context.Background(), os.Args[1:]); err != nil {
		logger.Fatalf("%v", err)
	}
}
