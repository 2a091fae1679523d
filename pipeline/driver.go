package pipeline

import (
	"fmt"
	"os"

	"golang.org/x/sync/errgroup"

	"github.com/chtkc-go/chtkc/bufferqueue"
	"github.com/chtkc-go/chtkc/chtkclog"
	"github.com/chtkc-go/chtkc/hashmap"
)

// Driver orchestrates the multi-pass counting run: one pass per
// iteration of KC__kmer_counter_work, wiring the reader, processor, and
// writer stages for that pass's input (the original files on pass 1,
// the previous pass's spilled super-K-mer file on every pass after) and
// deciding whether another pass is needed from the spill file's size.
// Grounded on original_source/src/kmer_counter.c's KC__KmerCounter.
type Driver struct {
	k              int
	readers        []*Reader
	processors     []*Processor
	writer         *Writer
	hashMap        *hashmap.Map
	readQueue      *bufferqueue.Queue
	writeQueue     *bufferqueue.Queue
	outputFileName string
	log            *chtkclog.Logger
}

// NewDriver wires together a fully-constructed set of stage workers into
// a Driver. readers, processors, the queues, and the hash map must all
// already be linked to the same queues/map (i.e. readers and processors
// share readQueue; processors and writer share writeQueue).
func NewDriver(
	k int,
	readers []*Reader,
	processors []*Processor,
	writer *Writer,
	hashMap *hashmap.Map,
	readQueue, writeQueue *bufferqueue.Queue,
	outputFileName string,
	log *chtkclog.Logger,
) *Driver {
	if log == nil {
		log = chtkclog.Discard()
	}
	return &Driver{
		k:              k,
		readers:        readers,
		processors:     processors,
		writer:         writer,
		hashMap:        hashMap,
		readQueue:      readQueue,
		writeQueue:     writeQueue,
		outputFileName: outputFileName,
		log:            log,
	}
}

// scheduleFiles splits fileNames as evenly as possible across n reader
// threads, the first files_count%n threads getting one extra file, each
// thread's share kept contiguous. Grounded on
// KC__kmer_counter_schedule_files.
func scheduleFiles(fileNames []string, n int, fileType FileType, compressionType CompressionType) []InputDescription {
	base := len(fileNames) / n
	remainder := len(fileNames) % n

	inputs := make([]InputDescription, n)
	offset := 0
	for i := 0; i < n; i++ {
		count := base
		if i < remainder {
			count++
		}
		inputs[i] = InputDescription{
			FileNames:       fileNames[offset : offset+count],
			FileType:        fileType,
			CompressionType: compressionType,
		}
		offset += count
	}
	return inputs
}

// Run counts K-mers across fileNames (all of the given type and
// compression) until no K-mers overflow the hash map, then returns the
// totals accumulated across every pass.
func (d *Driver) Run(fileNames []string, fileType FileType, compressionType CompressionType) (Stats, error) {
	inputs := scheduleFiles(fileNames, len(d.readers), fileType, compressionType)

	tmpNames := [2]string{
		d.outputFileName + "_tmp_0",
		d.outputFileName + "_tmp_1",
	}
	shouldDeleteTmp := [2]bool{true, false}
	tmpIdx := 0

	var total Stats
	pass := 0

	for {
		pass++
		d.log.Infof("Pass #%d start.", pass)

		stats, tmpSize, err := d.runPass(inputs, tmpNames[tmpIdx])
		if err != nil {
			return Stats{}, err
		}

		total.TotalKmers += stats.TotalKmers
		total.UniqueKmers += stats.UniqueKmers
		total.ExportedUniqueKmers += stats.ExportedUniqueKmers

		d.log.Debugf("Tmp file size: %d", tmpSize)
		if tmpSize == 0 {
			break
		}

		inputs = []InputDescription{{
			FileNames:       []string{tmpNames[tmpIdx]},
			FileType:        FileTypeSuperKmer,
			CompressionType: CompressionPlain,
		}}

		tmpIdx = (tmpIdx + 1) % 2
		shouldDeleteTmp[tmpIdx] = true

		d.hashMap.Clear()
	}

	for i := 0; i < 2; i++ {
		if !shouldDeleteTmp[i] {
			continue
		}
		if err := os.Remove(tmpNames[i]); err != nil && !os.IsNotExist(err) {
			d.log.Errorf("delete tmp file failed: %s: %v", tmpNames[i], err)
		}
	}

	d.log.Infof("Total K-mers count: %d", total.TotalKmers)
	d.log.Infof("Unique K-mers count: %d", total.UniqueKmers)
	d.log.Infof("Exported unique K-mers count: %d", total.ExportedUniqueKmers)

	return total, nil
}

// runPass drives one full pass: readers and processors race ahead on the
// read queue while the writer drains the write queue concurrently, then
// once reading and extraction finish, processors export their share of
// the hash map and the writer drains those records too. It returns this
// pass's stats and the resulting spill file's size.
func (d *Driver) runPass(inputs []InputDescription, tmpFileName string) (Stats, int64, error) {
	d.readQueue.StartInput()
	d.writeQueue.StartInput()

	var readGroup errgroup.Group
	for i, input := range inputs {
		reader := d.readers[i]
		input := input
		readGroup.Go(func() error { return reader.Run(input) })
	}

	var extractGroup errgroup.Group
	for _, p := range d.processors {
		p := p
		extractGroup.Go(func() error { return d.extractLoop(p) })
	}

	d.writer.UpdateTmpFile(tmpFileName)
	writeErrCh := make(chan error, 1)
	go func() { writeErrCh <- d.writer.Run() }()

	readErr := readGroup.Wait()
	d.readQueue.FinishInput()

	extractErr := extractGroup.Wait()

	statsPerProcessor := make([]Stats, len(d.processors))
	var exportGroup errgroup.Group
	for i, p := range d.processors {
		i, p := i, p
		exportGroup.Go(func() error {
			statsPerProcessor[i] = p.ExportKmers()
			return nil
		})
	}
	exportErr := exportGroup.Wait()
	d.writeQueue.FinishInput()

	writeErr := <-writeErrCh

	if readErr != nil {
		return Stats{}, 0, readErr
	}
	if extractErr != nil {
		return Stats{}, 0, extractErr
	}
	if exportErr != nil {
		return Stats{}, 0, exportErr
	}
	if writeErr != nil {
		return Stats{}, 0, writeErr
	}

	var total Stats
	for _, s := range statsPerProcessor {
		total.TotalKmers += s.TotalKmers
		total.UniqueKmers += s.UniqueKmers
		total.ExportedUniqueKmers += s.ExportedUniqueKmers
	}

	return total, d.writer.TmpFileSize(), nil
}

// extractLoop drains the read queue into one processor until no more
// input remains, then signals that processor is done adding K-mers for
// this pass.
func (d *Driver) extractLoop(p *Processor) error {
	for {
		buf, ok := d.readQueue.DequeueFilled()
		if !ok {
			break
		}
		if err := p.HandleBuffer(buf); err != nil {
			p.Finish()
			return fmt.Errorf("pipeline: processor failed: %w", err)
		}
		d.readQueue.RecycleBlank(buf)
	}
	p.Finish()
	return nil
}
