package kmer

import (
	"encoding/binary"
	"math"
)

// RecordKmerWidth returns the number of bytes used to store a K-mer of
// length k in an output record: ceil(k/4), 4 base codes packed per byte.
// This is independent of, and generally smaller than, the 8-byte-word
// in-memory width used by Width/Extractor.
func RecordKmerWidth(k int) int {
	return (k + 3) / 4
}

// MarshalKmerBytes packs a K-mer's word array into its on-disk record
// form: RecordKmerWidth(k) bytes, low word first, each word written
// little-endian, with the final (most-significant) word truncated to
// however many bytes it actually contributes.
func MarshalKmerBytes(words []uint64, k int) []byte {
	byteWidth := RecordKmerWidth(k)
	w := len(words)
	topBytes := byteWidth - (w-1)*8

	buf := make([]byte, byteWidth)
	pos := 0
	for i := 0; i < w; i++ {
		n := 8
		if i == w-1 {
			n = topBytes
		}
		word := words[i]
		for j := 0; j < n; j++ {
			buf[pos] = byte(word >> uint(j*8))
			pos++
		}
	}
	return buf
}

// DecodeKmerBases reconstructs the base sequence (e.g. "ACGT...") of a
// record-packed K-mer of length k, given its RecordKmerWidth(k)-byte
// encoding. It is the inverse of MarshalKmerBytes, used by the histo and
// dump tools which never need the word-array form.
func DecodeKmerBases(buf []byte, k int) string {
	byteWidth := len(buf)
	firstInvalid := 4 - (k - (byteWidth-1)*4)

	bases := make([]byte, 0, k)
	for i := 0; i < byteWidth; i++ {
		b := buf[byteWidth-i-1]
		for n := 0; n < 4; n++ {
			if i == 0 && n < firstInvalid {
				continue
			}
			code := Code((b >> uint((4-n-1)*2)) & 0x3)
			bases = append(bases, code.String()[0])
		}
	}
	return string(bases)
}

// CountWidth returns the number of bytes (1, 2, or 4) used to store a
// count in a result file whose configured cap is countMax: the smallest
// unsigned integer width able to hold countMax.
func CountWidth(countMax uint32) int {
	switch {
	case countMax <= math.MaxUint8:
		return 1
	case countMax <= math.MaxUint16:
		return 2
	default:
		return 4
	}
}

// PutCount writes count into buf (which must be at least width bytes)
// using the given width, little-endian.
func PutCount(buf []byte, width int, count uint32) {
	switch width {
	case 1:
		buf[0] = byte(count)
	case 2:
		binary.LittleEndian.PutUint16(buf, uint16(count))
	default:
		binary.LittleEndian.PutUint32(buf, count)
	}
}

// GetCount reads a count of the given width back out of buf.
func GetCount(buf []byte, width int) uint32 {
	switch width {
	case 1:
		return uint32(buf[0])
	case 2:
		return uint32(binary.LittleEndian.Uint16(buf))
	default:
		return binary.LittleEndian.Uint32(buf)
	}
}

// RecordSize returns the total on-disk size of one K-mer/count record
// given K and the configured count_max.
func RecordSize(k int, countMax uint32) int {
	return RecordKmerWidth(k) + CountWidth(countMax)
}
