// Package cmd implements the chtkc subcommands (count, histo, dump) and
// their dispatch table. Grounded on
// grailbio-base/cmd/grail-file/cmd/cmd.go's {name, callback, help}
// pattern.
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
)

var commands = []struct {
	name     string
	callback func(ctx context.Context, out io.Writer, args []string) error
	help     string
}{
	{"count", Count, `Count canonical K-mers from FASTA or FASTQ input files into a result file.`},
	{"histo", Histo, `Print a count/frequency histogram of a result file's records.`},
	{"dump", Dump, `Print every K-mer and its count from a result file as text.`},
}

// PrintHelp writes the list of subcommands and their one-line summaries
// to stderr.
func PrintHelp() {
	fmt.Fprintln(os.Stderr, "Subcommands:")
	for _, c := range commands {
		fmt.Fprintf(os.Stderr, "  %s: %s\n", c.name, c.help)
	}
}

// Run dispatches args[0] to the matching subcommand, passing the
// remaining arguments through.
func Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		PrintHelp()
		return fmt.Errorf("no subcommand given")
	}
	for _, c := range commands {
		if c.name == args[0] {
			return c.callback(ctx, os.Stdout, args[1:])
		}
	}
	PrintHelp()
	return fmt.Errorf("unknown command: %s", args[0])
}

// openOutput returns os.Stdout if path is empty, else a newly created
// file at path; the caller is responsible for closing a non-stdout
// result.
func openOutput(path string) (io.Writer, func() error, error) {
	if path == "" {
		return os.Stdout, func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, err
	}
	return f, f.Close, nil
}
