package cmd

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"runtime"
	"strconv"
	"strings"

	"github.com/chtkc-go/chtkc/bufferqueue"
	"github.com/chtkc-go/chtkc/chtkcerr"
	"github.com/chtkc-go/chtkc/chtkclog"
	"github.com/chtkc-go/chtkc/hashmap"
	"github.com/chtkc-go/chtkc/kmer"
	"github.com/chtkc-go/chtkc/memlimit"
	"github.com/chtkc-go/chtkc/pipeline"
)

const (
	defaultOutputFile  = "out.chtkc"
	defaultCountMax    = 255
	defaultFilterMin   = 2
	defaultFilterMax   = 0xFFFFFFFF
	defaultBufferSize  = 1 << 20 // 1 MiB per buffer
	defaultBufferCount = 32      // buffers per queue
	minThreads         = 3
)

// Count implements the `count` subcommand: reads FASTA/FASTQ (or
// gzipped) input files and writes a result file of canonical K-mer
// counts. Grounded on spec.md §6's `count` subcommand and
// original_source/src/kmer_counter.c's construction/work split.
func Count(_ context.Context, stdout io.Writer, args []string) error {
	var flags flag.FlagSet

	var k int
	flags.IntVar(&k, "k", 0, "K-mer length (required)")
	flags.IntVar(&k, "kmer-len", 0, "K-mer length (required)")

	var memStr string
	flags.StringVar(&memStr, "m", "", "memory budget, e.g. 4G or 512M (required)")
	flags.StringVar(&memStr, "mem", "", "memory budget, e.g. 4G or 512M (required)")

	fa := flags.Bool("fa", false, "input files are FASTA")
	fq := flags.Bool("fq", false, "input files are FASTQ")

	var threads int
	flags.IntVar(&threads, "t", 0, "worker threads, >= 3 (default: number of CPUs, floored at 3)")
	flags.IntVar(&threads, "threads", 0, "worker threads, >= 3 (default: number of CPUs, floored at 3)")

	var outPath string
	flags.StringVar(&outPath, "o", defaultOutputFile, "result file path")
	flags.StringVar(&outPath, "out", defaultOutputFile, "result file path")

	gz := flags.Bool("gz", false, "input files are gzip-compressed")

	countMax := flags.Uint("count-max", defaultCountMax, "maximum count stored per K-mer")
	filterMin := flags.Uint("filter-min", defaultFilterMin, "minimum occurrence count to keep a K-mer")
	filterMax := flags.Uint("filter-max", defaultFilterMax, "maximum occurrence count to keep a K-mer")

	bufferSize := flags.Int("bs", defaultBufferSize, "byte size of each pipeline buffer")
	bufferCount := flags.Int("rt", defaultBufferCount, "number of buffers in each pipeline buffer pool")

	logPath := flags.String("log", "", "log file path (default: stderr)")

	if err := flags.Parse(args); err != nil {
		return err
	}

	fileNames := flags.Args()
	if len(fileNames) == 0 {
		return chtkcerr.E(chtkcerr.Configuration, "no input files given")
	}
	if k <= 0 {
		return chtkcerr.E(chtkcerr.Configuration, "-k/--kmer-len is required and must be positive")
	}
	if *fa == *fq {
		return chtkcerr.E(chtkcerr.Configuration, "exactly one of --fa or --fq is required")
	}
	if memStr == "" {
		return chtkcerr.E(chtkcerr.Configuration, "-m/--mem is required")
	}
	memBytes, err := parseMemSize(memStr)
	if err != nil {
		return chtkcerr.E(chtkcerr.Configuration, err.Error())
	}
	if threads == 0 {
		threads = runtime.NumCPU()
		if threads < minThreads {
			threads = minThreads
		}
	}
	if threads < minThreads {
		return chtkcerr.E(chtkcerr.Configuration, fmt.Sprintf("-t/--threads must be >= %d", minThreads))
	}
	if *bufferSize <= 0 || *bufferCount <= 0 {
		return chtkcerr.E(chtkcerr.Configuration, "--bs and --rt must be positive")
	}

	fileType := pipeline.FileTypeFASTA
	if *fq {
		fileType = pipeline.FileTypeFASTQ
	}
	compressionType := pipeline.CompressionPlain
	if *gz {
		compressionType = pipeline.CompressionGzip
	}

	processorsCount := threads - 2
	readersCount := 1
	if *gz {
		readersCount = (processorsCount + 7) / 8
		if readersCount < 1 {
			readersCount = 1
		}
	}
	if readersCount > len(fileNames) {
		readersCount = len(fileNames)
	}

	logWriter := io.Writer(os.Stderr)
	if *logPath != "" {
		f, err := os.Create(*logPath)
		if err != nil {
			return chtkcerr.E(chtkcerr.OutputOpen, "open log file error", *logPath, err)
		}
		defer f.Close()
		logWriter = f
	}
	logger := chtkclog.New(logWriter, chtkclog.Info)

	budget := memlimit.New(memBytes)

	readPoolBytes := uint64(*bufferSize) * uint64(*bufferCount)
	writePoolBytes := uint64(*bufferSize) * uint64(*bufferCount)
	if err := budget.Reserve(readPoolBytes, "read buffer pool"); err != nil {
		return err
	}
	if err := budget.Reserve(writePoolBytes, "write buffer pool"); err != nil {
		return err
	}

	hashMapBudget := budget.Available()
	if err := budget.Reserve(hashMapBudget, "hash map"); err != nil {
		return err
	}
	nodesCount, tableCapacity := hashmap.PlanCapacity(hashMapBudget, k)

	readQueue := bufferqueue.New(*bufferSize, *bufferCount)
	writeQueue := bufferqueue.New(*bufferSize, *bufferCount)
	hashMap := hashmap.New(tableCapacity, nodesCount, k, processorsCount)

	readers := make([]*pipeline.Reader, readersCount)
	for i := range readers {
		readers[i] = pipeline.NewReader(k, readQueue)
	}

	output := pipeline.OutputParam{
		CountMax:  uint32(*countMax),
		FilterMin: uint32(*filterMin),
		FilterMax: uint32(*filterMax),
	}
	processors := make([]*pipeline.Processor, processorsCount)
	for i := range processors {
		processors[i] = pipeline.NewProcessor(i, k, hashMap, writeQueue, output)
	}

	resultFile, err := os.Create(outPath)
	if err != nil {
		return chtkcerr.E(chtkcerr.OutputOpen, "open result file error", outPath, err)
	}
	defer resultFile.Close()

	header := kmer.Header{
		K:         uint64(k),
		CountMax:  uint64(output.CountMax),
		FilterMin: uint64(output.FilterMin),
		FilterMax: uint64(output.FilterMax),
	}
	if err := kmer.WriteHeader(resultFile, header); err != nil {
		return chtkcerr.E(chtkcerr.OutputWrite, "write result header error", outPath, err)
	}

	writer := pipeline.NewWriter(writeQueue, resultFile)
	driver := pipeline.NewDriver(k, readers, processors, writer, hashMap, readQueue, writeQueue, outPath, logger)

	if _, err := driver.Run(fileNames, fileType, compressionType); err != nil {
		return err
	}

	budget.Release()
	budget.Release()
	budget.Release()
	if err := budget.Close(); err != nil {
		logger.Errorf("%v", err)
	}

	return nil
}

// parseMemSize parses a memory budget string of the form "N", "NK", "NM",
// or "NG" (suffix case-insensitive) into a byte count.
func parseMemSize(s string) (uint64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty memory budget")
	}
	multiplier := uint64(1)
	suffix := s[len(s)-1]
	switch suffix {
	case 'k', 'K':
		multiplier = 1 << 10
		s = s[:len(s)-1]
	case 'm', 'M':
		multiplier = 1 << 20
		s = s[:len(s)-1]
	case 'g', 'G':
		multiplier = 1 << 30
		s = s[:len(s)-1]
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid memory budget %q: %w", s, err)
	}
	return n * multiplier, nil
}
