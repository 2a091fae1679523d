package cmd

import (
	"bufio"
	"io"
	"os"

	"github.com/chtkc-go/chtkc/chtkcerr"
	"github.com/chtkc-go/chtkc/kmer"
)

// newBufWriter wraps w for buffered record-by-record text output; the
// caller must Flush it before returning.
func newBufWriter(w io.Writer) *bufio.Writer {
	return bufio.NewWriter(w)
}

// openResultFile opens path, reads its header, and returns a buffered
// reader positioned at the first record.
func openResultFile(path string) (*os.File, kmer.Header, *bufio.Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, kmer.Header{}, nil, chtkcerr.E(chtkcerr.InputOpen, "open result file error", path, err)
	}
	r := bufio.NewReader(f)
	header, err := kmer.ReadHeader(r)
	if err != nil {
		f.Close()
		return nil, kmer.Header{}, nil, chtkcerr.E(chtkcerr.InputParse, "read result header error", path, err)
	}
	return f, header, r, nil
}

// forEachRecord calls fn once per record in a result file already
// positioned past its header, until EOF.
func forEachRecord(path string, r *bufio.Reader, header kmer.Header, fn func(kmerBytes []byte, count uint32)) error {
	kmerWidth := kmer.RecordKmerWidth(int(header.K))
	countWidth := kmer.CountWidth(uint32(header.CountMax))
	recordSize := kmerWidth + countWidth

	buf := make([]byte, recordSize)
	for {
		_, err := io.ReadFull(r, buf)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return chtkcerr.E(chtkcerr.InputParse, "read result record error", path, err)
		}
		count := kmer.GetCount(buf[kmerWidth:], countWidth)
		fn(buf[:kmerWidth], count)
	}
}
