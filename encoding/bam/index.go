package bam

import (
	"context"
	"fmt"
	"io"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/hts/bam"
	"github.com/grailbio/hts/sam"
	"github.com/samber/lo"
	"v.io/x/lib/vlog"
)

// RefCount is one row of "samtools idxstats" output: the number of mapped and
// unmapped records placed on a reference sequence.
type RefCount struct {
	Name     string
	Length   int
	Mapped   uint64
	Unmapped uint64
}

// IndexPath returns the conventional .bai path for the BAM file at bamPath.
func IndexPath(bamPath string) string {
	return bamPath + ".bai"
}

// WriteIndex reads the coordinate-sorted BAM stream r and writes a .bai index
// for it to w. parallelism is the number of decompression goroutines.
func WriteIndex(w io.Writer, r io.Reader, parallelism int) error {
	reader, err := bam.NewReader(r, parallelism)
	if err != nil {
		return err
	}
	var (
		index bam.Index
		n     int
	)
	for {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			reader.Close() // nolint: errcheck
			return fmt.Errorf("read record %d: %v", n, err)
		}
		if err := index.Add(rec, reader.LastChunk()); err != nil {
			reader.Close() // nolint: errcheck
			return fmt.Errorf("index record %d (%s): %v", n, rec.Name, err)
		}
		n++
	}
	if err := reader.Close(); err != nil {
		return err
	}
	vlog.VI(1).Infof("indexed %d records", n)
	return bam.WriteIndex(w, &index)
}

// ReadIndexStats returns per-reference record counts recorded in a .bai
// index. header supplies the reference names and must be the header of the
// indexed BAM file. References without index metadata are reported with zero
// counts.
func ReadIndexStats(header *sam.Header, r io.Reader) ([]RefCount, error) {
	index, err := bam.ReadIndex(r)
	if err != nil {
		return nil, err
	}
	refs := header.Refs()
	counts := make([]RefCount, len(refs))
	for i, ref := range refs {
		counts[i] = RefCount{Name: ref.Name(), Length: ref.Len()}
	}
	// An index of a BAM without placed reads has no references, and hts reads
	// it as nil. Otherwise the index stops at the last reference with reads.
	if index == nil {
		return counts, nil
	}
	if index.NumRefs() > len(refs) {
		return nil, fmt.Errorf("index has %d references but header has %d", index.NumRefs(), len(refs))
	}
	for i := 0; i < index.NumRefs(); i++ {
		if stats, ok := index.ReferenceStats(i); ok {
			counts[i].Mapped = stats.Mapped
			counts[i].Unmapped = stats.Unmapped
		}
	}
	return counts, nil
}

// TotalMapped returns the number of mapped records across all references.
func TotalMapped(counts []RefCount) uint64 {
	return lo.SumBy(counts, func(c RefCount) uint64 { return c.Mapped })
}

// IndexStats is like ReadIndexStats, but reads the header from bamPath and the
// index from indexPath. If indexPath is "", IndexPath(bamPath) is used.
func IndexStats(ctx context.Context, bamPath, indexPath string) (counts []RefCount, err error) {
	if indexPath == "" {
		indexPath = IndexPath(bamPath)
	}
	header, err := ReadHeader(ctx, bamPath)
	if err != nil {
		return nil, err
	}
	in, err := file.Open(ctx, indexPath)
	if err != nil {
		return nil, errors.E(err, "open index", indexPath)
	}
	defer file.CloseAndReport(ctx, in, &err)
	if counts, err = ReadIndexStats(header, in.Reader(ctx)); err != nil {
		return nil, errors.E(err, "read index", indexPath)
	}
	return counts, nil
}
