// Package pipeline implements the bounded producer/consumer system that
// streams FASTA/FASTQ (or spilled super-K-mer) input through reader,
// K-mer processor, and writer stages into the hash map and result file,
// orchestrated pass-by-pass by Driver. Grounded on
// original_source/src/file_reader.c, file_writer.c, kmer_processor.c, and
// kmer_counter.c.
package pipeline

import "github.com/chtkc-go/chtkc/bufferqueue"

// FileType identifies the structure of an input file.
type FileType int

const (
	FileTypeFASTA FileType = iota
	FileTypeFASTQ
	FileTypeSuperKmer
)

// CompressionType identifies how an input file's bytes are encoded on
// disk.
type CompressionType int

const (
	CompressionPlain CompressionType = iota
	CompressionGzip
)

// bufferTypeFor maps a FileType to the bufferqueue.Type tag a reader
// stamps on the buffers it fills for that file.
func bufferTypeFor(ft FileType) bufferqueue.Type {
	switch ft {
	case FileTypeFASTA:
		return bufferqueue.TypeFASTA
	case FileTypeFASTQ:
		return bufferqueue.TypeFASTQ
	case FileTypeSuperKmer:
		return bufferqueue.TypeSuperKmer
	default:
		panic("pipeline: unknown file type")
	}
}

// InputDescription assigns a slice of input files (all the same type and
// compression) to one reader thread.
type InputDescription struct {
	FileNames       []string
	FileType        FileType
	CompressionType CompressionType
}

// OutputParam controls how counted K-mers are filtered and clamped on
// export, mirroring the result file header fields.
type OutputParam struct {
	CountMax  uint32
	FilterMin uint32
	FilterMax uint32
}

// Stats aggregates the counters the driver reports at the end of a run.
type Stats struct {
	TotalKmers          uint64
	UniqueKmers         uint64
	ExportedUniqueKmers uint64
}
