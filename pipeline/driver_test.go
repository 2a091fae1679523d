package pipeline

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/chtkc-go/chtkc/bufferqueue"
	"github.com/chtkc-go/chtkc/hashmap"
	"github.com/chtkc-go/chtkc/kmer"
)

func newSinglePipeline(k int, hashMap *hashmap.Map, output OutputParam) (*bufferqueue.Queue, *bufferqueue.Queue, *Reader, *Processor) {
	readQueue := bufferqueue.New(256, 4)
	writeQueue := bufferqueue.New(128, 4)
	return readQueue, writeQueue, NewReader(k, readQueue), NewProcessor(0, k, hashMap, writeQueue, output)
}

func readAllRecords(t *testing.T, path string, k int, countMax uint32) map[string]uint32 {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	header, err := kmer.ReadHeader(f)
	require.NoError(t, err)
	require.Equal(t, uint64(k), header.K)

	kmerWidth := kmer.RecordKmerWidth(k)
	countWidth := kmer.CountWidth(countMax)
	recordSize := kmerWidth + countWidth

	records := make(map[string]uint32)
	buf := make([]byte, recordSize)
	for {
		_, err := io.ReadFull(f, buf)
		if err != nil {
			break
		}
		bases := kmer.DecodeKmerBases(buf[:kmerWidth], k)
		count := kmer.GetCount(buf[kmerWidth:], countWidth)
		records[bases] = count
	}
	return records
}

// TestDriverSinglePassCountsHomopolymerRun exercises the full
// reader/processor/writer/driver wiring end to end on input small enough
// that every K-mer fits the hash map in one pass, matching spec.md §8
// scenario 1.
func TestDriverSinglePassCountsHomopolymerRun(t *testing.T) {
	const k = 3
	dir := t.TempDir()

	inputPath := filepath.Join(dir, "in.fa")
	require.NoError(t, os.WriteFile(inputPath, []byte(">1\nAAAAAAA\n"), 0o644))

	hashMap := hashmap.New(11, 8, k, 1)
	output := OutputParam{CountMax: 255, FilterMin: 1, FilterMax: 0xFFFFFFFF}
	readQueue, writeQueue, reader, processor := newSinglePipeline(k, hashMap, output)

	resultPath := filepath.Join(dir, "result.chtkc")
	resultFile, err := os.Create(resultPath)
	require.NoError(t, err)
	require.NoError(t, kmer.WriteHeader(resultFile, kmer.Header{
		K: k, CountMax: uint64(output.CountMax), FilterMin: uint64(output.FilterMin), FilterMax: uint64(output.FilterMax),
	}))

	writer := NewWriter(writeQueue, resultFile)
	driver := NewDriver(k, []*Reader{reader}, []*Processor{processor}, writer, hashMap, readQueue, writeQueue, resultPath, nil)

	stats, err := driver.Run([]string{inputPath}, FileTypeFASTA, CompressionPlain)
	require.NoError(t, err)
	require.NoError(t, resultFile.Close())

	require.Equal(t, uint64(5), stats.TotalKmers, "7-base homopolymer, k=3: 5 overlapping windows")
	require.Equal(t, uint64(1), stats.UniqueKmers)
	require.Equal(t, uint64(1), stats.ExportedUniqueKmers)

	records := readAllRecords(t, resultPath, k, output.CountMax)
	require.Len(t, records, 1)
	for _, count := range records {
		require.Equal(t, uint32(5), count)
	}

	require.NoFileExists(t, resultPath+"_tmp_0")
	require.NoFileExists(t, resultPath+"_tmp_1")
}

// TestDriverMultiPassDrainsOverflowAcrossPasses forces the hash map down
// to a single node per pass, so a run with several distinct K-mers must
// spill across multiple passes before converging, matching spec.md §8
// scenario 4 (the super-K-mer round-trip preserves every K-mer) and the
// pass-termination condition on an empty spill file.
func TestDriverMultiPassDrainsOverflowAcrossPasses(t *testing.T) {
	const k = 3
	dir := t.TempDir()

	inputPath := filepath.Join(dir, "in.fa")
	require.NoError(t, os.WriteFile(inputPath, []byte(">1\nAAACCC\n"), 0o644))

	// nodesCount=1 means only one distinct K-mer can be accepted per
	// pass, forcing every pass after the first to replay a spilled
	// super-K-mer and still find some of its K-mers new.
	hashMap := hashmap.New(3, 1, k, 1)
	output := OutputParam{CountMax: 255, FilterMin: 1, FilterMax: 0xFFFFFFFF}
	readQueue, writeQueue, reader, processor := newSinglePipeline(k, hashMap, output)

	resultPath := filepath.Join(dir, "result.chtkc")
	resultFile, err := os.Create(resultPath)
	require.NoError(t, err)
	require.NoError(t, kmer.WriteHeader(resultFile, kmer.Header{
		K: k, CountMax: uint64(output.CountMax), FilterMin: uint64(output.FilterMin), FilterMax: uint64(output.FilterMax),
	}))

	writer := NewWriter(writeQueue, resultFile)
	driver := NewDriver(k, []*Reader{reader}, []*Processor{processor}, writer, hashMap, readQueue, writeQueue, resultPath, nil)

	stats, err := driver.Run([]string{inputPath}, FileTypeFASTA, CompressionPlain)
	require.NoError(t, err)
	require.NoError(t, resultFile.Close())

	// "AAACCC" has 4 overlapping 3-mer windows (AAA, AAC, ACC, CCC), all
	// pairwise distinct under canonicalization.
	require.Equal(t, uint64(4), stats.TotalKmers)
	require.Equal(t, uint64(4), stats.UniqueKmers)
	require.Equal(t, uint64(4), stats.ExportedUniqueKmers)

	records := readAllRecords(t, resultPath, k, output.CountMax)
	require.Len(t, records, 4)
	for _, count := range records {
		require.Equal(t, uint32(1), count)
	}

	require.NoFileExists(t, resultPath+"_tmp_0")
	require.NoFileExists(t, resultPath+"_tmp_1")
}
