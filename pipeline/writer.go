package pipeline

import (
	"encoding/binary"
	"io"
	"os"

	"github.com/chtkc-go/chtkc/bufferqueue"
	"github.com/chtkc-go/chtkc/chtkcerr"
)

// Writer is the single file-writer thread's worker state: it drains
// filled buffers and routes each to either the result file (KMER-tagged)
// or the current pass's spill file (SuperKmer-tagged). Grounded on
// original_source/src/file_writer.c's KC__FileWriter.
type Writer struct {
	queue       *bufferqueue.Queue
	resultFile  *os.File
	tmpFileName string
	tmpFileSize int64
}

// NewWriter creates a Writer that drains queue and appends KMER-tagged
// buffers to resultFile.
func NewWriter(queue *bufferqueue.Queue, resultFile *os.File) *Writer {
	return &Writer{queue: queue, resultFile: resultFile}
}

// UpdateTmpFile points this pass's spill output at tmpFileName, resetting
// the tracked spill file size.
func (w *Writer) UpdateTmpFile(tmpFileName string) {
	w.tmpFileName = tmpFileName
	w.tmpFileSize = 0
}

// TmpFileSize returns the spill file's byte size as observed after Run
// completed; a size of 0 tells the driver this pass produced no overflow.
func (w *Writer) TmpFileSize() int64 {
	return w.tmpFileSize
}

// Run drains buffers from the write queue until it reports no more
// input, writing each to the appropriate file, and records the spill
// file's final size.
func (w *Writer) Run() error {
	var tmpFile *os.File
	if w.tmpFileName != "" {
		f, err := os.Create(w.tmpFileName)
		if err != nil {
			return chtkcerr.E(chtkcerr.OutputOpen, "open tmp file error", w.tmpFileName, err)
		}
		tmpFile = f
	}

	for {
		buffer, ok := w.queue.DequeueFilled()
		if !ok {
			break
		}

		var f *os.File
		var name string
		writeLength := false

		switch buffer.Type {
		case bufferqueue.TypeSuperKmer:
			f = tmpFile
			name = w.tmpFileName
			writeLength = true
		case bufferqueue.TypeKmer:
			f = w.resultFile
			name = "result file"
		default:
			panic("pipeline: unexpected buffer type on write queue")
		}

		if writeLength {
			var lenBuf [4]byte
			binary.LittleEndian.PutUint32(lenBuf[:], uint32(buffer.Length))
			if _, err := f.Write(lenBuf[:]); err != nil {
				return chtkcerr.E(chtkcerr.OutputWrite, "write file error", name, err)
			}
		}

		if _, err := f.Write(buffer.Data[:buffer.Length]); err != nil {
			return chtkcerr.E(chtkcerr.OutputWrite, "write file error", name, err)
		}

		w.queue.RecycleBlank(buffer)
	}

	if tmpFile != nil {
		pos, err := tmpFile.Seek(0, io.SeekCurrent)
		if err != nil {
			tmpFile.Close()
			return chtkcerr.E(chtkcerr.OutputWrite, "getting tmp file size error", w.tmpFileName, err)
		}
		w.tmpFileSize = pos
		if err := tmpFile.Close(); err != nil {
			return chtkcerr.E(chtkcerr.OutputWrite, "close tmp file error", w.tmpFileName, err)
		}
	}

	return nil
}
