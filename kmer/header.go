package kmer

import (
	"encoding/binary"
	"fmt"
	"io"
)

// HeaderSize is the fixed size, in bytes, of the result-file header: four
// little-endian u64 fields. (The K-mer length, count cap, and count filter
// bounds chosen for a run must be known before any record in the file can
// be decoded, so they are written first and read back verbatim by histo
// and dump.)
const HeaderSize = 32

// Header is the fixed-size prefix of every result file produced by a
// counting run, recording the parameters needed to decode the records
// that follow.
type Header struct {
	K         uint64
	CountMax  uint64
	FilterMin uint64
	FilterMax uint64
}

// Marshal encodes the header as HeaderSize bytes, little-endian.
func (h Header) Marshal() []byte {
	buf := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint64(buf[0:8], h.K)
	binary.LittleEndian.PutUint64(buf[8:16], h.CountMax)
	binary.LittleEndian.PutUint64(buf[16:24], h.FilterMin)
	binary.LittleEndian.PutUint64(buf[24:32], h.FilterMax)
	return buf
}

// UnmarshalHeader decodes a HeaderSize-byte buffer into a Header.
func UnmarshalHeader(buf []byte) (Header, error) {
	if len(buf) < HeaderSize {
		return Header{}, fmt.Errorf("kmer: short header: got %d bytes, want %d", len(buf), HeaderSize)
	}
	return Header{
		K:         binary.LittleEndian.Uint64(buf[0:8]),
		CountMax:  binary.LittleEndian.Uint64(buf[8:16]),
		FilterMin: binary.LittleEndian.Uint64(buf[16:24]),
		FilterMax: binary.LittleEndian.Uint64(buf[24:32]),
	}, nil
}

// WriteHeader writes the header to w.
func WriteHeader(w io.Writer, h Header) error {
	_, err := w.Write(h.Marshal())
	return err
}

// ReadHeader reads and decodes a header from r.
func ReadHeader(r io.Reader) (Header, error) {
	buf := make([]byte, HeaderSize)
	if _, err := io.ReadFull(r, buf); err != nil {
		return Header{}, err
	}
	return UnmarshalHeader(buf)
}
