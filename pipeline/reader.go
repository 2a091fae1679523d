package pipeline

import (
	"encoding/binary"
	"io"
	"os"

	"github.com/klauspost/compress/gzip"

	"github.com/chtkc-go/chtkc/bufferqueue"
	"github.com/chtkc-go/chtkc/chtkcerr"
)

// Reader is one reader thread's worker state: the K-mer length (needed for
// the FASTA tail-salvage fallback) and the read-buffer queue it fills.
// Grounded on original_source/src/file_reader.c's KC__FileReader.
type Reader struct {
	k     int
	queue *bufferqueue.Queue
}

// NewReader creates a Reader that fills blank buffers from queue for
// K-mers of length k.
func NewReader(k int, queue *bufferqueue.Queue) *Reader {
	return &Reader{k: k, queue: queue}
}

// Run reads every file named in input sequentially, enqueuing filled
// buffers onto the reader's queue. It returns the first fatal error
// encountered (open, read, or parse), matching spec.md §4.3 and §7.
func (r *Reader) Run(input InputDescription) error {
	for _, name := range input.FileNames {
		var err error
		switch input.FileType {
		case FileTypeFASTA, FileTypeFASTQ:
			err = r.processReadsFile(name, input)
		case FileTypeSuperKmer:
			err = r.processSuperKmerFile(name)
		default:
			panic("pipeline: unknown file type")
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// readFull reads into buf until it is full, the underlying reader hits
// EOF, or an error occurs — the same "read up to in_size bytes, note
// end_of_file" contract as KC__file_reader_read, expressed over io.Reader
// (which a gzip.Reader or a plain *os.File both satisfy).
func readFull(src io.Reader, buf []byte) (n int, eof bool, err error) {
	for n < len(buf) {
		m, rerr := src.Read(buf[n:])
		n += m
		if rerr != nil {
			if rerr == io.EOF {
				return n, true, nil
			}
			return n, false, rerr
		}
	}
	return n, false, nil
}

func (r *Reader) openInput(name string, compression CompressionType) (io.ReadCloser, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, chtkcerr.E(chtkcerr.InputOpen, "open file error", name, err)
	}
	if compression == CompressionPlain {
		return f, nil
	}

	// klauspost/compress/gzip's Reader enables Multistream by default, so
	// concatenated gzip streams (spec.md §4.3, §8 scenario 3) are handled
	// transparently without the manual inflateReset loop the C original
	// needs.
	gz, err := gzip.NewReader(f)
	if err != nil {
		f.Close()
		return nil, chtkcerr.E(chtkcerr.InputRead, "gzip init error", name, err)
	}
	return &gzipReadCloser{gz: gz, f: f}, nil
}

type gzipReadCloser struct {
	gz *gzip.Reader
	f  *os.File
}

func (g *gzipReadCloser) Read(p []byte) (int, error) { return g.gz.Read(p) }
func (g *gzipReadCloser) Close() error {
	g.gz.Close()
	return g.f.Close()
}

func (r *Reader) processReadsFile(name string, input InputDescription) error {
	src, err := r.openInput(name, input.CompressionType)
	if err != nil {
		return err
	}
	defer src.Close()

	bufType := bufferTypeFor(input.FileType)

	current := r.queue.GetBlank()
	current.Type = bufType
	var extra *bufferqueue.Buffer

	for {
		n, eof, rerr := readFull(src, current.Data[current.Length:])
		if rerr != nil {
			return chtkcerr.E(chtkcerr.InputRead, "read file error", name, rerr)
		}
		current.Length += n

		if eof {
			r.queue.EnqueueFilled(current)
			return nil
		}

		extra = r.queue.GetBlank()
		switch input.FileType {
		case FileTypeFASTA:
			if err := r.modifyFastaBuffers(name, current, extra); err != nil {
				return err
			}
		case FileTypeFASTQ:
			if err := r.modifyFastqBuffers(name, current, extra); err != nil {
				return err
			}
		default:
			panic("pipeline: reads file with non-reads file type")
		}

		r.queue.EnqueueFilled(current)
		current = extra
		extra = nil
	}
}

func transferTail(current, extra *bufferqueue.Buffer, extraSize int) {
	current.Length -= extraSize
	n := copy(extra.Data, current.Data[current.Length:current.Length+extraSize])
	extra.Length = n
}

func (r *Reader) modifyFastaBuffers(name string, current, extra *bufferqueue.Buffer) error {
	data := current.Data[:current.Length]

	extraSize := 0
	for i := len(data); i > 0; i-- {
		n := i - 1
		extraSize++
		if data[n] == '>' {
			break
		}
	}

	if extraSize < extra.Size() {
		transferTail(current, extra, extraSize)
		return nil
	}

	extra.Data[0] = '>'
	extra.Data[1] = '\n'

	ntCount := 0
	for i := len(data); i > 0; i-- {
		n := i - 1
		switch data[n] {
		case 'A', 'a', 'C', 'c', 'G', 'g', 'T', 't':
			extra.Data[r.k-ntCount] = data[n]
			ntCount++
		}
		if ntCount == r.k-1 {
			break
		}
	}

	if ntCount != r.k-1 {
		return chtkcerr.E(chtkcerr.InputParse, "Too many unexpected characters", name)
	}

	extra.Length = r.k + 1
	return nil
}

func (r *Reader) modifyFastqBuffers(name string, current, extra *bufferqueue.Buffer) error {
	data := current.Data[:current.Length]

	extraSize := 0
	for i := len(data); i > 0; i-- {
		n := i - 1
		extraSize++
		if data[n] == '@' {
			break
		}
	}

	if extraSize >= extra.Size() {
		return chtkcerr.E(chtkcerr.InputParse, "Sequence may be too long", name)
	}

	transferTail(current, extra, extraSize)
	return nil
}

func (r *Reader) processSuperKmerFile(name string) error {
	f, err := os.Open(name)
	if err != nil {
		return chtkcerr.E(chtkcerr.InputOpen, "open file error", name, err)
	}
	defer f.Close()

	var lenBuf [4]byte
	for {
		n, eof, rerr := readFull(f, lenBuf[:])
		if rerr != nil {
			return chtkcerr.E(chtkcerr.InputRead, "read file error", name, rerr)
		}
		if n < 4 {
			if n == 0 {
				return nil
			}
			return chtkcerr.E(chtkcerr.InputParse, "File is truncated", name)
		}
		_ = eof

		frameLen := int(binary.LittleEndian.Uint32(lenBuf[:]))

		buffer := r.queue.GetBlank()
		buffer.Type = bufferqueue.TypeSuperKmer
		if frameLen > buffer.Size() {
			return chtkcerr.E(chtkcerr.InputParse, "super-K-mer frame larger than buffer pool size", name)
		}

		n, _, rerr = readFull(f, buffer.Data[:frameLen])
		if rerr != nil {
			return chtkcerr.E(chtkcerr.InputRead, "read file error", name, rerr)
		}
		if n < frameLen {
			return chtkcerr.E(chtkcerr.InputParse, "File is truncated", name)
		}
		buffer.Length = frameLen

		r.queue.EnqueueFilled(buffer)
	}
}
