package pipeline

import (
	"encoding/binary"

	"github.com/chtkc-go/chtkc/bufferqueue"
	"github.com/chtkc-go/chtkc/chtkcerr"
	"github.com/chtkc-go/chtkc/hashmap"
	"github.com/chtkc-go/chtkc/kmer"
)

// storeAction tracks whether the next overflowing K-mer starts a fresh
// super-K-mer unit or extends the one currently being packed. Grounded on
// original_source/src/kmer_processor.c's KC__KmerStoreUnit action field.
type storeAction int

const (
	storeActionNew storeAction = iota
	storeActionExpand
)

// storeUnit is the per-processor state for spilling overflowing K-mers as
// packed super-K-mer units onto the write queue. A unit's on-disk base
// count is K (its seed, the K-mer window at the moment it overflowed)
// plus its expanded-base-count byte, which tracks only the bases added
// after the seed and so caps a unit at K+255 total bases, packed 4-per-
// byte in forward chronological order.
type storeUnit struct {
	action        storeAction
	currentBuffer *bufferqueue.Buffer

	// maxUnitSize is the worst-case byte footprint of one unit (a 1-byte
	// expanded-count field plus up to K+255 packed bases), reserved up
	// front so a unit is never split across two write buffers.
	maxUnitSize int

	superKmersCountOffset int // offset of the current buffer's leading u32 unit count
	expandedCountOffset   int // offset of the current unit's expanded-base-count byte
	currentUnitOffset     int // offset of the base-packing byte currently being filled, -1 if none
	currentBasesCount     int // bases already packed into currentUnitOffset (0-4)

	forwardBases []kmer.Code // scratch, reused across NEW actions
}

// exportUnit is the per-processor state for writing out this thread's
// counted K-mers as fixed-width on-disk records.
type exportUnit struct {
	buffer          *bufferqueue.Buffer
	recordKmerWidth int
	countWidth      int
	unitSize        int
	stats           Stats
}

// Processor is one K-mer-processor thread's worker state: it consumes
// filled read (or spilled super-K-mer) buffers, extracts and counts
// canonical K-mers into the shared hash map, and spills whatever the map
// can't hold as super-K-mers for the next pass. Grounded on
// original_source/src/kmer_processor.c's KC__KmerProcessor.
type Processor struct {
	id         int
	k          int
	extractor  *kmer.Extractor
	hashMap    *hashmap.Map
	writeQueue *bufferqueue.Queue
	output     OutputParam

	store  storeUnit
	export exportUnit
}

// maxExpandedBases is the largest expanded-base count a single super-K-mer
// unit can record (the field is one byte).
const maxExpandedBases = 255

// NewProcessor creates a Processor identified by threadID (the same ID
// must be used for every hashMap call this processor makes), counting
// K-mers of length k into hashMap and spilling overflow onto writeQueue.
func NewProcessor(threadID, k int, hashMap *hashmap.Map, writeQueue *bufferqueue.Queue, output OutputParam) *Processor {
	return &Processor{
		id:         threadID,
		k:          k,
		extractor:  kmer.NewExtractor(k),
		hashMap:    hashMap,
		writeQueue: writeQueue,
		output:     output,
		store:      storeUnit{maxUnitSize: 1 + (k+maxExpandedBases+3)/4},
	}
}

// HandleBuffer processes one filled buffer according to its tagged type.
func (p *Processor) HandleBuffer(buf *bufferqueue.Buffer) error {
	if buf.Length == 0 {
		return nil
	}
	switch buf.Type {
	case bufferqueue.TypeFASTA, bufferqueue.TypeFASTQ:
		return p.handleReadsBuffer(buf)
	case bufferqueue.TypeSuperKmer:
		return p.handleSuperKmersBuffer(buf)
	default:
		panic("pipeline: unexpected buffer type for processor")
	}
}

// handleReadsBuffer scans a FASTA or FASTQ buffer line by line, deciding
// for each line whether it is a sequence line (based on the type of the
// line before and after it) and, if so, handing it to handleRead.
// Grounded on KC__kmer_processor_handle_reads_buffer.
func (p *Processor) handleReadsBuffer(buf *bufferqueue.Buffer) error {
	data := buf.Data[:buf.Length]
	length := len(data)

	prevLine := -1
	lineStart := 0

	i := 0
	for {
		endOfBuffer := i == length
		lineEnd := i
		endOfLine := false

		if !endOfBuffer {
			switch data[i] {
			case '\n':
				endOfLine = true
			case '\r':
				if i < length-1 && data[i+1] == '\n' {
					i++
				}
				endOfLine = true
			}
		}

		if endOfBuffer || endOfLine {
			currentLine := lineStart
			currentLineLength := lineEnd - lineStart

			nextLineStart := i + 1
			nextLine := nextLineStart
			if nextLineStart >= length {
				nextLine = -1
			}

			currentLineIsRead := false
			updateCurrentLine := false

			switch buf.Type {
			case bufferqueue.TypeFASTA:
				if prevLine >= 0 && data[prevLine] == '>' {
					if nextLine < 0 || data[nextLine] == '>' {
						currentLineIsRead = true
						updateCurrentLine = true
					}
					// else: a continuation line of a multi-line sequence;
					// leave current_line in place so next iteration's span
					// grows to include it too.
				} else {
					updateCurrentLine = true
				}
			case bufferqueue.TypeFASTQ:
				if prevLine >= 0 && data[prevLine] == '@' && nextLine >= 0 && data[nextLine] == '+' {
					currentLineIsRead = true
				}
				updateCurrentLine = true
			default:
				panic("pipeline: unexpected buffer type for reads buffer")
			}

			if currentLineIsRead {
				if err := p.handleRead(data[currentLine : currentLine+currentLineLength]); err != nil {
					return err
				}
			}

			if endOfBuffer {
				break
			}

			if updateCurrentLine {
				prevLine = currentLine
				lineStart = nextLineStart
			}
		}

		i++
	}
	return nil
}

// handleRead feeds one sequence line through the extractor one byte at a
// time. A line terminator is skipped without breaking the run of bases;
// any other unexpected byte breaks it, restarting the extractor's window
// as if a new sub-read had begun. Grounded on
// KC__kmer_processor_handle_sub_read / handle_read, merged: splitting the
// line into sub-reads and resetting on an unexpected byte are the same
// operation expressed over one pass instead of two.
func (p *Processor) handleRead(read []byte) error {
	p.extractor.Reset()
	i := 0
	for _, b := range read {
		code, ok, skip := kmer.Encode(b)
		if skip {
			continue
		}
		if !ok {
			p.extractor.Reset()
			i = 0
			continue
		}
		if err := p.handleCode(i, code); err != nil {
			return err
		}
		i++
	}
	return nil
}

// handleSuperKmersBuffer replays a buffer of spilled super-K-mer units
// (written by a previous pass's storeKmer) back through the extractor,
// reproducing every K-mer the unit represents. Grounded on
// KC__kmer_processor_handle_super_kmers_buffer.
func (p *Processor) handleSuperKmersBuffer(buf *bufferqueue.Buffer) error {
	data := buf.Data[:buf.Length]
	pos := 0
	for pos < len(data) {
		if pos+4 > len(data) {
			return chtkcerr.E(chtkcerr.InputParse, "corrupt super-K-mer buffer: truncated unit count")
		}
		superKmersCount := binary.LittleEndian.Uint32(data[pos:])
		pos += 4

		for s := uint32(0); s < superKmersCount; s++ {
			if pos >= len(data) {
				return chtkcerr.E(chtkcerr.InputParse, "corrupt super-K-mer buffer: truncated unit")
			}
			expandedCount := int(data[pos])
			pos++
			// expandedCount is the super-K-mer's length beyond the initial
			// K-base seed (see storeKmer), not its total base count.
			basesCount := p.k + expandedCount

			byteCount := (basesCount + 3) / 4
			if pos+byteCount > len(data) {
				return chtkcerr.E(chtkcerr.InputParse, "corrupt super-K-mer buffer: truncated bases")
			}

			p.extractor.Reset()
			for i := 0; i < basesCount; i++ {
				b := data[pos+i/4]
				code := kmer.Code((b >> uint((i%4)*2)) & 0x3)
				if err := p.handleCode(i, code); err != nil {
					return err
				}
			}
			pos += byteCount
		}
	}
	return nil
}

// handleCode advances the extractor by one base at sub-read position i and,
// once a full K-mer window is available, counts it.
func (p *Processor) handleCode(i int, code kmer.Code) error {
	canonical, ready := p.extractor.Push(i, code)
	if !ready {
		return nil
	}
	return p.handleKmer(canonical, i+1-p.k, code)
}

// handleKmer counts one canonical K-mer. n is this K-mer's 0-based index
// within the current sub-read: n == 0 always starts a fresh super-K-mer
// unit, since a new sub-read's first K-mer cannot extend a unit spilled by
// the previous one. If the hash map accepts the K-mer (whether as a new
// entry or a repeat of one already counted), no spill is needed; otherwise
// it must be packed into a super-K-mer for the next pass.
func (p *Processor) handleKmer(canonical []uint64, n int, lastCode kmer.Code) error {
	if n == 0 {
		p.store.action = storeActionNew
	}
	if p.hashMap.AddKmer(p.id, canonical) {
		p.store.action = storeActionNew
		return nil
	}
	p.storeKmer(lastCode)
	return nil
}

// storeKmer packs one overflowing K-mer into the current super-K-mer unit,
// starting a new unit (seeded with the extractor's full forward-strand
// window) if the action state machine calls for one. Grounded on
// KC__kmer_processor_store_kmer / KC__kmer_store_unit_expand.
func (p *Processor) storeKmer(lastCode kmer.Code) {
	switch p.store.action {
	case storeActionNew:
		p.ensureStoreCapacity()
		buf := p.store.currentBuffer

		count := binary.LittleEndian.Uint32(buf.Data[p.store.superKmersCountOffset:])
		binary.LittleEndian.PutUint32(buf.Data[p.store.superKmersCountOffset:], count+1)

		p.store.expandedCountOffset = buf.Length
		buf.Data[buf.Length] = 0
		buf.Length++
		p.store.currentUnitOffset = -1
		p.store.currentBasesCount = 0

		// A new unit starts from scratch: the forward (not canonical)
		// strand of the K-mer currently in the extractor's window, so the
		// next pass can re-derive canonical K-mers from the literal
		// sequence rather than from an already-resolved strand.
		p.store.forwardBases = p.extractor.ForwardBases(p.store.forwardBases[:0])
		for _, c := range p.store.forwardBases {
			p.expandStoreUnit(c)
		}
		p.store.action = storeActionExpand

	case storeActionExpand:
		p.expandStoreUnit(lastCode)
		buf := p.store.currentBuffer
		buf.Data[p.store.expandedCountOffset]++
		if buf.Data[p.store.expandedCountOffset] == maxExpandedBases {
			p.store.action = storeActionNew
		}
	}
}

// ensureStoreCapacity guarantees the current store buffer has room for one
// full-size unit, rotating in a fresh buffer (and its leading unit-count
// field) if not.
func (p *Processor) ensureStoreCapacity() {
	s := &p.store
	if s.currentBuffer != nil && s.currentBuffer.Size()-s.currentBuffer.Length < s.maxUnitSize {
		p.completeStoreBuffer()
	}
	if s.currentBuffer == nil {
		p.requestStoreBuffer()
		s.superKmersCountOffset = s.currentBuffer.Length
		binary.LittleEndian.PutUint32(s.currentBuffer.Data[s.currentBuffer.Length:], 0)
		s.currentBuffer.Length += 4
	}
}

// expandStoreUnit packs one more base code into the unit currently being
// built, 4 bases per byte, starting a new packing byte every 4th base.
func (p *Processor) expandStoreUnit(code kmer.Code) {
	s := &p.store
	buf := s.currentBuffer

	if s.currentUnitOffset >= 0 && s.currentBasesCount == 4 {
		s.currentUnitOffset = -1
	}
	if s.currentUnitOffset < 0 {
		s.currentUnitOffset = buf.Length
		buf.Data[buf.Length] = 0
		buf.Length++
		s.currentBasesCount = 0
	}

	buf.Data[s.currentUnitOffset] |= byte(code) << uint(s.currentBasesCount*2)
	s.currentBasesCount++
}

func (p *Processor) requestStoreBuffer() {
	buf := p.writeQueue.GetBlank()
	buf.Type = bufferqueue.TypeSuperKmer
	p.store.currentBuffer = buf
}

func (p *Processor) completeStoreBuffer() {
	p.writeQueue.EnqueueFilled(p.store.currentBuffer)
	p.store.currentBuffer = nil
}

// ExportKmers drains this processor's share of the hash map to the write
// queue as on-disk K-mer records, applying the configured filter bounds
// and count clamp, and returns the totals to fold into the run's overall
// Stats. Grounded on KC__kmer_processor_export_kmers_callback /
// export_kmers.
func (p *Processor) ExportKmers() Stats {
	p.export = exportUnit{
		recordKmerWidth: kmer.RecordKmerWidth(p.k),
		countWidth:      kmer.CountWidth(p.output.CountMax),
	}
	p.export.unitSize = p.export.recordKmerWidth + p.export.countWidth

	p.hashMap.Export(p.id, func(words []uint64, count uint32) {
		p.export.stats.TotalKmers += uint64(count)
		p.export.stats.UniqueKmers++

		if count < p.output.FilterMin || count > p.output.FilterMax {
			return
		}
		if count > p.output.CountMax {
			count = p.output.CountMax
		}
		p.export.stats.ExportedUniqueKmers++

		if p.export.buffer == nil {
			p.requestExportBuffer()
		} else if p.export.unitSize > p.export.buffer.Size()-p.export.buffer.Length {
			p.completeExportBuffer()
			p.requestExportBuffer()
		}

		buf := p.export.buffer
		kmerBytes := kmer.MarshalKmerBytes(words, p.k)
		copy(buf.Data[buf.Length:], kmerBytes)
		kmer.PutCount(buf.Data[buf.Length+len(kmerBytes):], p.export.countWidth, count)
		buf.Length += p.export.unitSize
	})

	if p.export.buffer != nil {
		p.completeExportBuffer()
	}
	return p.export.stats
}

func (p *Processor) requestExportBuffer() {
	buf := p.writeQueue.GetBlank()
	buf.Type = bufferqueue.TypeKmer
	p.export.buffer = buf
}

func (p *Processor) completeExportBuffer() {
	p.writeQueue.EnqueueFilled(p.export.buffer)
	p.export.buffer = nil
}

// Finish must be called once this processor has no more buffers to
// handle for the pass: it flushes any in-progress store buffer and
// signals the hash map that this thread is done adding K-mers, so threads
// that never triggered an overflow still synchronize correctly.
func (p *Processor) Finish() {
	if p.store.currentBuffer != nil {
		p.completeStoreBuffer()
	}
	p.hashMap.FinishAddingKmers(p.id)
}
