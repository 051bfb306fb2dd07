package recal

import (
	"context"
	"io"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	gbam "github.com/grailbio/bqsr/encoding/bam"
	"github.com/grailbio/bqsr/encoding/fasta"
	"github.com/grailbio/bqsr/txfile"
)

// Toolkit runs one GATK tool to completion. tmpDir is a private scratch
// directory for the tool.
type Toolkit interface {
	Run(ctx context.Context, tool string, args []string, tmpDir string) error
}

// DuplicateMarker writes a copy of the BAM file in with duplicate reads
// removed (or marked) to out, and duplication metrics to metrics.
type DuplicateMarker interface {
	MarkDuplicates(ctx context.Context, in, out, metrics, tmpDir string) error
}

// Indexer creates index sidecars. Both methods do nothing when the index
// already exists.
type Indexer interface {
	IndexReference(ctx context.Context, ref string) error
	IndexAlignment(ctx context.Context, bamPath string) error
}

// AlignmentStats reads BAM metadata.
type AlignmentStats interface {
	// AlignedCounts returns the per-reference record counts of the indexed
	// BAM file.
	AlignedCounts(ctx context.Context, bamPath string) ([]gbam.RefCount, error)
	// ReadGroups returns the distinct read group IDs declared in the header.
	ReadGroups(ctx context.Context, bamPath string) ([]string, error)
}

// NativeIndexer implements Indexer in process.
type NativeIndexer struct{}

// DictPath returns the sequence dictionary path of a reference FASTA.
func DictPath(ref string) string {
	return strings.TrimSuffix(ref, filepath.Ext(ref)) + ".dict"
}

// IndexReference implements Indexer. It writes ref.fai and the .dict
// sequence dictionary that GATK requires.
func (NativeIndexer) IndexReference(ctx context.Context, ref string) error {
	if err := deriveFile(ctx, "index reference", ref, ref+".fai", fasta.GenerateIndex); err != nil {
		return err
	}
	return deriveFile(ctx, "index reference", ref, DictPath(ref), fasta.GenerateDict)
}

// IndexAlignment implements Indexer. It writes bamPath.bai.
func (NativeIndexer) IndexAlignment(ctx context.Context, bamPath string) error {
	return deriveFile(ctx, "index alignment", bamPath, gbam.IndexPath(bamPath), func(w io.Writer, r io.Reader) error {
		return gbam.WriteIndex(w, r, runtime.NumCPU())
	})
}

// deriveFile writes target by running gen over the contents of src, unless
// target already exists.
func deriveFile(ctx context.Context, step, src, target string, gen func(io.Writer, io.Reader) error) error {
	if ok, err := done(step, target); ok || err != nil {
		return err
	}
	return txfile.Do(ctx, target, func(tmpPath string) (err error) {
		in, err := file.Open(ctx, src)
		if err != nil {
			return errors.E(err, step, src)
		}
		defer file.CloseAndReport(ctx, in, &err)
		out, err := file.Create(ctx, tmpPath)
		if err != nil {
			return errors.E(err, step, tmpPath)
		}
		defer file.CloseAndReport(ctx, out, &err)
		if err = gen(out.Writer(ctx), in.Reader(ctx)); err != nil {
			return errors.E(err, step, src)
		}
		return nil
	})
}

// NativeStats implements AlignmentStats using the BAM header and .bai index.
type NativeStats struct{}

// AlignedCounts implements AlignmentStats.
func (NativeStats) AlignedCounts(ctx context.Context, bamPath string) ([]gbam.RefCount, error) {
	return gbam.IndexStats(ctx, bamPath, "")
}

// ReadGroups implements AlignmentStats.
func (NativeStats) ReadGroups(ctx context.Context, bamPath string) ([]string, error) {
	header, err := gbam.ReadHeader(ctx, bamPath)
	if err != nil {
		return nil, err
	}
	return gbam.ReadGroups(header), nil
}
