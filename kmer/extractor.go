package kmer

// Extractor maintains the rolling forward and reverse-complement word
// arrays for a single run of consecutive valid bases and yields the
// canonical K-mer each time a full window of K bases has been seen.
//
// Callers feed it one base code at a time via Push, using a position
// counter i that restarts at 0 for every new sub-read (a maximal run of
// bases uninterrupted by a skipped or invalid byte): for i < K the window
// is still filling ("generate" phase); once i reaches K-1 and for every
// subsequent i the window is full and slides by one base each call
// ("shift" phase). Both phases report a canonical K-mer back to the
// caller; Reset must be called whenever a new run starts.
//
// The returned word slice aliases Extractor-owned storage and is only
// valid until the next call to Push or Reset; callers that need to retain
// it (e.g. to insert into the hash map) must copy it first.
type Extractor struct {
	k int
	w int

	genWInit int
	genSInit int

	shiftMask uint64
	rcShift   uint

	kmerWords []uint64
	rcWords   []uint64

	genW, genS     int
	rcGenW, rcGenS int
}

// NewExtractor builds an Extractor for K-mers of length k (k must be >= 1).
func NewExtractor(k int) *Extractor {
	w := Width(k)
	highValid := topValidBits(k, w)

	e := &Extractor{
		k:         k,
		w:         w,
		genWInit:  w - 1,
		genSInit:  highValid - 2,
		shiftMask: topMask(k, w),
		rcShift:   uint(highValid - 2),
		kmerWords: make([]uint64, w),
		rcWords:   make([]uint64, w),
	}
	return e
}

// K returns the configured K-mer length.
func (e *Extractor) K() int { return e.k }

// Width returns the number of words (W) per K-mer for this extractor.
func (e *Extractor) Width() int { return e.w }

// Reset clears rolling state; call before starting a new sub-read so the
// next Push is treated as position 0 of a fresh window.
func (e *Extractor) Reset() {
	e.genW, e.genS = 0, 0
	e.rcGenW, e.rcGenS = 0, 0
}

func (e *Extractor) generate(i int, code Code) {
	if i == 0 {
		e.genW, e.genS = e.genWInit, e.genSInit
		e.rcGenW, e.rcGenS = 0, 0
		for j := range e.kmerWords {
			e.kmerWords[j] = 0
			e.rcWords[j] = 0
		}
	}

	e.kmerWords[e.genW] |= uint64(code) << uint(e.genS)
	e.rcWords[e.rcGenW] |= uint64(Complement(code)) << uint(e.rcGenS)

	if e.genS == 0 {
		e.genW--
		e.genS = UnitBits - 2
	} else {
		e.genS -= 2
	}

	if e.rcGenS == UnitBits-2 {
		e.rcGenW++
		e.rcGenS = 0
	} else {
		e.rcGenS += 2
	}
}

func (e *Extractor) shift(code Code) {
	w := e.w
	rcCode := Complement(code)

	carry := uint64(code)
	for i := 0; i < w-1; i++ {
		next := e.kmerWords[i] >> (UnitBits - 2)
		e.kmerWords[i] = (e.kmerWords[i] << 2) | carry
		carry = next
	}
	e.kmerWords[w-1] = ((e.kmerWords[w-1] << 2) | carry) & e.shiftMask

	rcCarry := uint64(rcCode)
	for i := w; i > 0; i-- {
		j := i - 1
		shiftAmt := uint(UnitBits - 2)
		if i == w {
			shiftAmt = e.rcShift
		}
		next := e.rcWords[j] & 0x3
		e.rcWords[j] = (e.rcWords[j] >> 2) | (rcCarry << shiftAmt)
		rcCarry = next
	}
}

// Push advances the window by one base: code is the (i)th valid base code
// of the current sub-read (0-based). It returns the canonical K-mer word
// array and true once the window holds a full K-mer (i.e. i >= K-1);
// before that it returns (nil, false).
func (e *Extractor) Push(i int, code Code) (canonical []uint64, ready bool) {
	if i < e.k {
		e.generate(i, code)
		if i != e.k-1 {
			return nil, false
		}
	} else {
		e.shift(code)
	}

	if Less(e.kmerWords, e.rcWords) {
		return e.kmerWords, true
	}
	return e.rcWords, true
}

// Forward returns the (non-canonical) forward-strand word array as last
// computed, aliasing Extractor-owned storage.
func (e *Extractor) Forward() []uint64 { return e.kmerWords }

// ForwardBases decodes the current forward-strand window back into its K
// base codes, oldest first, appending them to dst and returning the result.
// Used when spilling a super-K-mer: the spilled prefix preserves the literal
// forward sequence so the next pass can re-derive canonical K-mers from it,
// rather than storing the (already-resolved) canonical strand.
func (e *Extractor) ForwardBases(dst []Code) []Code {
	w, s := e.genWInit, e.genSInit
	for i := 0; i < e.k; i++ {
		code := Code((e.kmerWords[w] >> uint(s)) & 0x3)
		dst = append(dst, code)

		if s == 0 {
			w--
			s = UnitBits - 2
		} else {
			s -= 2
		}
	}
	return dst
}

// ReverseComplement returns the reverse-complement word array as last
// computed, aliasing Extractor-owned storage.
func (e *Extractor) ReverseComplement() []uint64 { return e.rcWords }
