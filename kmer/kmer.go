// Package kmer implements the bit-packed canonical K-mer data model: base
// codes, the fixed-width word representation of a K-mer, canonical
// (strand-independent) comparison, the on-disk result header, and the
// count-field width rules shared by the counting pipeline and the
// histo/dump tools.
package kmer

import "fmt"

// UnitBits is the width, in bits, of a single packed K-mer word.
const UnitBits = 64

// BasesPerUnit is the number of 2-bit base codes that fit in one word.
const BasesPerUnit = UnitBits / 2

// Code is a 2-bit base code: 0=A, 1=C, 2=G, 3=T.
type Code uint64

// Base codes, matching the on-disk and in-memory packing used throughout
// the pipeline.
const (
	CodeA Code = 0
	CodeC Code = 1
	CodeG Code = 2
	CodeT Code = 3
)

func (c Code) String() string {
	switch c {
	case CodeA:
		return "A"
	case CodeC:
		return "C"
	case CodeG:
		return "G"
	case CodeT:
		return "T"
	default:
		return "?"
	}
}

// Complement returns the complementary base code (A<->T, C<->G), which for
// this 2-bit encoding is simply 3-code.
func Complement(c Code) Code {
	return 3 - c
}

// Encode classifies a raw input byte from a FASTA/FASTQ read line.
//
//   - ok=true:   c is a valid base code (A/C/G/T, case-insensitive).
//   - skip=true: the byte is a line terminator (\n or \r) that should be
//     skipped without breaking the current run of bases.
//   - otherwise: the byte is an unexpected character and the caller should
//     stop extracting from the current sub-read at this position.
func Encode(b byte) (c Code, ok bool, skip bool) {
	switch b {
	case 'A', 'a':
		return CodeA, true, false
	case 'C', 'c':
		return CodeC, true, false
	case 'G', 'g':
		return CodeG, true, false
	case 'T', 't':
		return CodeT, true, false
	case '\n', '\r':
		return 0, false, true
	default:
		return 0, false, false
	}
}

// Width returns W, the number of 64-bit words needed to hold a K-mer of
// length k: ceil(2k/64).
func Width(k int) int {
	return (2*k + UnitBits - 1) / UnitBits
}

// topValidBits returns the number of bits of the most-significant word
// (index W-1) that actually hold packed bases; the remaining high bits of
// that word are always zero.
func topValidBits(k, w int) int {
	return 2*k - UnitBits*(w-1)
}

// topMask masks the most-significant word down to its valid bits.
func topMask(k, w int) uint64 {
	bits := topValidBits(k, w)
	if bits == UnitBits {
		return ^uint64(0)
	}
	return (uint64(1) << uint(bits)) - 1
}

// Less reports whether kmer a sorts before kmer b, comparing word arrays
// from the most-significant word down, as required for canonical
// (strand-independent) selection and for any ordered K-mer comparison
// (histo/dump do not need this; Extractor uses it internally for the
// forward vs. reverse-complement tie-break).
func Less(a, b []uint64) bool {
	if len(a) != len(b) {
		panic(fmt.Sprintf("kmer: mismatched word widths %d vs %d", len(a), len(b)))
	}
	for i := len(a) - 1; i >= 0; i-- {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

// Equal reports whether two same-width K-mer word arrays hold identical
// packed bases.
func Equal(a, b []uint64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
