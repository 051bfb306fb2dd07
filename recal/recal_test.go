package recal

import (
	"context"
	"errors"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/grailbio/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setup writes placeholder input files into a fresh directory and returns
// the BAM and reference paths.
func setup(t *testing.T) (dir, bamPath, ref string, cleanup func()) {
	dir, cleanup = testutil.TempDir(t, "", "")
	bamPath = filepath.Join(dir, "sample.bam")
	ref = filepath.Join(dir, "ref.fa")
	require.NoError(t, ioutil.WriteFile(bamPath, []byte("sample reads"), 0644))
	require.NoError(t, ioutil.WriteFile(ref, []byte(">chr1\nACGT\n"), 0644))
	return
}

func readFile(t *testing.T, path string) string {
	data, err := ioutil.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// noTxDirs asserts that no transaction directory is left in dir.
func noTxDirs(t *testing.T, dir string) {
	infos, err := ioutil.ReadDir(dir)
	require.NoError(t, err)
	for _, info := range infos {
		assert.False(t, strings.HasPrefix(info.Name(), ".tx-"), info.Name())
	}
}

func TestPaths(t *testing.T) {
	assert.Equal(t, "/d/s-dup.bam", DupPath("/d/s.bam"))
	assert.Equal(t, "/d/s-dup.dup_metrics", DupMetricsPath("/d/s.bam"))
	assert.Equal(t, "/d/s-dup.grp", CovariateTablePath("/d/s-dup.bam"))
	assert.Equal(t, "/d/s-dup-plots.pdf", PlotPath("/d/s-dup.bam"))
	assert.Equal(t, "/d/s-dup-gatkrecal.bam", RecalPath("/d/s-dup.bam"))
	assert.Equal(t, "/d/ref.dict", DictPath("/d/ref.fa"))
}

func TestBuildCovariateTable(t *testing.T) {
	dir, bamPath, ref, cleanup := setup(t)
	defer cleanup()
	ctx := context.Background()
	opts := DefaultOpts
	opts.TmpDir = filepath.Join(dir, "tmp")
	p, rec, _ := newFakePipeline(opts, 100)

	table, err := p.BuildCovariateTable(ctx, bamPath, ref)
	require.NoError(t, err)
	assert.Equal(t, CovariateTablePath(bamPath), table)
	assert.Equal(t, usableTable, readFile(t, table))
	require.Equal(t, []string{"BaseRecalibrator"}, rec.names())

	c := rec.calls[0]
	assert.Equal(t, []string{"-I", bamPath, "-R", ref}, c.args[2:6])
	assert.Equal(t, "illumina", argValue(c.args, "--default_platform"))
	assert.NotContains(t, c.args, "-L")
	assert.NotContains(t, c.args, "--interval_set_rule")
	assert.NotContains(t, c.args, "--disable_indel_quals")
	assert.NotContains(t, c.args, "--knownSites")
	assert.NotContains(t, c.args, "--downsample_to_fraction")
	assert.NotContains(t, c.args, "--plot_pdf_file")
	assert.Equal(t, opts.TmpDir, filepath.Dir(c.tmpDir))
	assert.False(t, exists(c.tmpDir), "scratch directory %s not removed", c.tmpDir)
	noTxDirs(t, dir)

	// The existing table is the completion record.
	_, err = p.BuildCovariateTable(ctx, bamPath, ref)
	require.NoError(t, err)
	assert.Len(t, rec.calls, 1)
}

func TestBuildCovariateTableOptions(t *testing.T) {
	dir, bamPath, ref, cleanup := setup(t)
	defer cleanup()
	ctx := context.Background()
	intervals := filepath.Join(dir, "targets.bed")
	require.NoError(t, ioutil.WriteFile(intervals, []byte("chr1\t10\t200\n"), 0644))
	known := filepath.Join(dir, "dbsnp.vcf")
	require.NoError(t, ioutil.WriteFile(known, []byte("##fileformat=VCFv4.1\n"), 0644))
	opts := Opts{
		Platform:   "solid",
		Intervals:  intervals,
		KnownSites: known,
		IndelQuals: false,
		PlotPDF:    true,
	}
	p, rec, _ := newFakePipeline(opts, 2e8)

	_, err := p.BuildCovariateTable(ctx, bamPath, ref)
	require.NoError(t, err)
	require.Len(t, rec.calls, 1)
	args := rec.calls[0].args
	assert.Equal(t, "solid", argValue(args, "--default_platform"))
	assert.Equal(t, intervals, argValue(args, "-L"))
	assert.Equal(t, "INTERSECTION", argValue(args, "--interval_set_rule"))
	assert.Equal(t, known, argValue(args, "--knownSites"))
	assert.Contains(t, args, "--disable_indel_quals")
	assert.Equal(t, "0.25", argValue(args, "--downsample_to_fraction"))
	assert.Equal(t, "ALL_READS", argValue(args, "--downsampling_type"))
	assert.Equal(t, "%PDF", readFile(t, PlotPath(bamPath)))
	noTxDirs(t, dir)
}

func TestBuildCovariateTableNoPlatform(t *testing.T) {
	_, bamPath, ref, cleanup := setup(t)
	defer cleanup()
	p, rec, _ := newFakePipeline(Opts{IndelQuals: true}, 100)
	_, err := p.BuildCovariateTable(context.Background(), bamPath, ref)
	require.NoError(t, err)
	assert.NotContains(t, rec.calls[0].args, "--default_platform")
}

func TestBuildCovariateTableBadIntervals(t *testing.T) {
	dir, bamPath, ref, cleanup := setup(t)
	defer cleanup()
	intervals := filepath.Join(dir, "targets.bed")
	require.NoError(t, ioutil.WriteFile(intervals, []byte("chrX\t10\t200\n"), 0644))
	opts := DefaultOpts
	opts.Intervals = intervals
	p, rec, _ := newFakePipeline(opts, 100)

	_, err := p.BuildCovariateTable(context.Background(), bamPath, ref)
	require.Error(t, err)
	assert.Empty(t, rec.calls)
	assert.False(t, exists(CovariateTablePath(bamPath)))
}

func TestBuildCovariateTableNoAlignedReads(t *testing.T) {
	_, bamPath, ref, cleanup := setup(t)
	defer cleanup()
	p, rec, _ := newFakePipeline(DefaultOpts, 0)

	table, err := p.BuildCovariateTable(context.Background(), bamPath, ref)
	require.NoError(t, err)
	assert.Empty(t, rec.calls)
	assert.Equal(t, NoAlignedReadsMarker, readFile(t, table))
	available, err := TableAvailable(table)
	require.NoError(t, err)
	assert.False(t, available)
}

func TestBuildCovariateTableFailure(t *testing.T) {
	dir, bamPath, ref, cleanup := setup(t)
	defer cleanup()
	p, rec, tk := newFakePipeline(DefaultOpts, 100)
	tk.err = errors.New("java.lang.OutOfMemoryError")

	_, err := p.BuildCovariateTable(context.Background(), bamPath, ref)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "OutOfMemoryError")
	assert.False(t, exists(CovariateTablePath(bamPath)))
	noTxDirs(t, dir)

	// A retry runs the tool again.
	tk.err = nil
	_, err = p.BuildCovariateTable(context.Background(), bamPath, ref)
	require.NoError(t, err)
	assert.Len(t, rec.calls, 2)
}

func TestBuildCovariateTableCanceled(t *testing.T) {
	_, bamPath, ref, cleanup := setup(t)
	defer cleanup()
	p, _, _ := newFakePipeline(DefaultOpts, 100)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.BuildCovariateTable(ctx, bamPath, ref)
	require.Error(t, err)
	assert.False(t, exists(CovariateTablePath(bamPath)))
}

func TestApplyRecalibration(t *testing.T) {
	dir, bamPath, ref, cleanup := setup(t)
	defer cleanup()
	ctx := context.Background()
	table := CovariateTablePath(bamPath)
	require.NoError(t, ioutil.WriteFile(table, []byte(usableTable), 0644))
	p, rec, _ := newFakePipeline(DefaultOpts, 100)

	out, err := p.ApplyRecalibration(ctx, bamPath, ref, table)
	require.NoError(t, err)
	assert.Equal(t, RecalPath(bamPath), out)
	assert.Equal(t, "recalibrated "+bamPath, readFile(t, out))
	require.Equal(t, []string{"PrintReads"}, rec.names())
	args := rec.calls[0].args
	assert.Equal(t, []string{"-BQSR", table, "-R", ref, "-I", bamPath, "--out"}, args[:7])
	assert.Len(t, args, 8)
	noTxDirs(t, dir)

	_, err = p.ApplyRecalibration(ctx, bamPath, ref, table)
	require.NoError(t, err)
	assert.Len(t, rec.calls, 1)
}

func TestApplyRecalibrationIntervals(t *testing.T) {
	dir, bamPath, ref, cleanup := setup(t)
	defer cleanup()
	table := CovariateTablePath(bamPath)
	require.NoError(t, ioutil.WriteFile(table, []byte(usableTable), 0644))
	opts := DefaultOpts
	opts.Intervals = filepath.Join(dir, "targets.bed")
	require.NoError(t, ioutil.WriteFile(opts.Intervals, []byte("chr1\t10\t200\n"), 0644))
	p, rec, _ := newFakePipeline(opts, 100)

	_, err := p.ApplyRecalibration(context.Background(), bamPath, ref, table)
	require.NoError(t, err)
	args := rec.calls[0].args
	assert.Equal(t, []string{"-L", opts.Intervals, "--interval_set_rule", "INTERSECTION"}, args[len(args)-4:])
	assert.NotContains(t, args, "--default_platform")
}

func TestApplyRecalibrationUnusableTable(t *testing.T) {
	for _, content := range []string{NoAlignedReadsMarker, "#:GATKReport.v1.1:5\nArgument Value\nEOF\n"} {
		_, bamPath, ref, cleanup := setup(t)
		table := CovariateTablePath(bamPath)
		require.NoError(t, ioutil.WriteFile(table, []byte(content), 0644))
		p, rec, _ := newFakePipeline(DefaultOpts, 100)

		out, err := p.ApplyRecalibration(context.Background(), bamPath, ref, table)
		require.NoError(t, err)
		assert.Empty(t, rec.calls)
		assert.Equal(t, readFile(t, bamPath), readFile(t, out))
		cleanup()
	}
}

func TestApplyRecalibrationFailure(t *testing.T) {
	dir, bamPath, ref, cleanup := setup(t)
	defer cleanup()
	table := CovariateTablePath(bamPath)
	require.NoError(t, ioutil.WriteFile(table, []byte(usableTable), 0644))
	p, _, tk := newFakePipeline(DefaultOpts, 100)
	tk.err = errors.New("PrintReads exited with status 1")

	_, err := p.ApplyRecalibration(context.Background(), bamPath, ref, table)
	require.Error(t, err)
	assert.False(t, exists(RecalPath(bamPath)))
	noTxDirs(t, dir)
}

func TestRun(t *testing.T) {
	dir, bamPath, ref, cleanup := setup(t)
	defer cleanup()
	ctx := context.Background()
	p, rec, _ := newFakePipeline(DefaultOpts, 100)

	out, err := p.Run(ctx, bamPath, ref)
	require.NoError(t, err)
	dupBAM := DupPath(bamPath)
	assert.Equal(t, RecalPath(dupBAM), out)
	assert.Equal(t, []string{
		"IndexReference",
		"MarkDuplicates",
		"IndexAlignment",
		"BaseRecalibrator",
		"PrintReads",
		"IndexAlignment",
	}, rec.names())
	dedup := rec.calls[1].args
	assert.Equal(t, bamPath, dedup[0])
	assert.Equal(t, filepath.Base(dupBAM), filepath.Base(dedup[1]))
	assert.Equal(t, filepath.Base(DupMetricsPath(bamPath)), filepath.Base(dedup[2]))
	assert.Equal(t, filepath.Dir(dedup[1]), filepath.Dir(dedup[2]))
	assert.Equal(t, []string{dupBAM}, rec.calls[2].args)
	assert.Equal(t, dupBAM, argValue(rec.calls[3].args, "-I"))
	assert.Equal(t, CovariateTablePath(dupBAM), argValue(rec.calls[4].args, "-BQSR"))
	assert.Equal(t, []string{out}, rec.calls[5].args)

	assert.Equal(t, "dedup "+bamPath, readFile(t, dupBAM))
	assert.Equal(t, "METRICS", readFile(t, DupMetricsPath(bamPath)))
	assert.Equal(t, "recalibrated "+dupBAM, readFile(t, out))
	noTxDirs(t, dir)

	// Every output exists, so only the idempotent indexers run again.
	out2, err := p.Run(ctx, bamPath, ref)
	require.NoError(t, err)
	assert.Equal(t, out, out2)
	assert.Equal(t, []string{"IndexReference", "IndexAlignment", "IndexAlignment"}, rec.names()[6:])
}

func TestRunWithoutMarkDuplicates(t *testing.T) {
	_, bamPath, ref, cleanup := setup(t)
	defer cleanup()
	opts := DefaultOpts
	opts.MarkDuplicates = false
	p, rec, _ := newFakePipeline(opts, 100)

	out, err := p.Run(context.Background(), bamPath, ref)
	require.NoError(t, err)
	assert.Equal(t, RecalPath(bamPath), out)
	assert.Equal(t, []string{
		"IndexReference",
		"IndexAlignment",
		"BaseRecalibrator",
		"PrintReads",
		"IndexAlignment",
	}, rec.names())
	assert.Equal(t, []string{bamPath}, rec.calls[1].args)
	assert.False(t, exists(DupPath(bamPath)))
}

func TestRunNoAlignedReads(t *testing.T) {
	_, bamPath, ref, cleanup := setup(t)
	defer cleanup()
	opts := DefaultOpts
	opts.MarkDuplicates = false
	p, rec, _ := newFakePipeline(opts, 0)

	out, err := p.Run(context.Background(), bamPath, ref)
	require.NoError(t, err)
	assert.Equal(t, []string{"IndexReference", "IndexAlignment", "IndexAlignment"}, rec.names())
	assert.Equal(t, readFile(t, bamPath), readFile(t, out))
	assert.Equal(t, NoAlignedReadsMarker, readFile(t, CovariateTablePath(bamPath)))
}

func TestRunMissingInputs(t *testing.T) {
	dir, bamPath, ref, cleanup := setup(t)
	defer cleanup()
	ctx := context.Background()
	missing := filepath.Join(dir, "missing")

	tests := []struct {
		name     string
		bam, ref string
		opts     func(*Opts)
	}{
		{"bam", missing + ".bam", ref, nil},
		{"reference", bamPath, missing + ".fa", nil},
		{"known sites", bamPath, ref, func(o *Opts) { o.KnownSites = missing + ".vcf" }},
		{"intervals", bamPath, ref, func(o *Opts) { o.Intervals = missing + ".bed" }},
	}
	for _, test := range tests {
		opts := DefaultOpts
		if test.opts != nil {
			test.opts(&opts)
		}
		p, rec, _ := newFakePipeline(opts, 100)
		_, err := p.Run(ctx, test.bam, test.ref)
		require.Error(t, err, test.name)
		assert.Contains(t, err.Error(), "does not exist", test.name)
		assert.Empty(t, rec.calls, test.name)
	}
}

func TestRunInvalidPlatform(t *testing.T) {
	_, bamPath, ref, cleanup := setup(t)
	defer cleanup()
	opts := DefaultOpts
	opts.Platform = "illumina hiseq"
	p, rec, _ := newFakePipeline(opts, 100)
	_, err := p.Run(context.Background(), bamPath, ref)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "single word")
	assert.Empty(t, rec.calls)
}

func TestStagesMissingInputs(t *testing.T) {
	dir, bamPath, ref, cleanup := setup(t)
	defer cleanup()
	ctx := context.Background()
	missing := filepath.Join(dir, "missing")
	table := CovariateTablePath(bamPath)

	tests := []struct {
		name     string
		bam, ref string
		opts     func(*Opts)
	}{
		{"bam", missing + ".bam", ref, nil},
		{"reference", bamPath, missing + ".fa", nil},
		{"known sites", bamPath, ref, func(o *Opts) { o.KnownSites = missing + ".vcf" }},
		{"intervals", bamPath, ref, func(o *Opts) { o.Intervals = missing + ".bed" }},
	}
	for _, test := range tests {
		opts := DefaultOpts
		if test.opts != nil {
			test.opts(&opts)
		}
		p, rec, _ := newFakePipeline(opts, 100)
		_, err := p.BuildCovariateTable(ctx, test.bam, test.ref)
		require.Error(t, err, test.name)
		assert.Contains(t, err.Error(), "does not exist", test.name)
		assert.Empty(t, rec.calls, test.name)
		assert.False(t, exists(CovariateTablePath(test.bam)), test.name)
	}

	require.NoError(t, ioutil.WriteFile(table, []byte(usableTable), 0644))
	for _, test := range tests {
		opts := DefaultOpts
		if test.opts != nil {
			test.opts(&opts)
		}
		p, rec, _ := newFakePipeline(opts, 100)
		_, err := p.ApplyRecalibration(ctx, test.bam, test.ref, table)
		if test.name == "known sites" {
			// PrintReads does not read the known sites.
			require.NoError(t, err, test.name)
			require.NoError(t, os.Remove(RecalPath(bamPath)))
			continue
		}
		require.Error(t, err, test.name)
		assert.Contains(t, err.Error(), "does not exist", test.name)
		assert.Empty(t, rec.calls, test.name)
	}
	assert.False(t, exists(RecalPath(bamPath)))
}

func TestStagesInvalidPlatform(t *testing.T) {
	_, bamPath, ref, cleanup := setup(t)
	defer cleanup()
	opts := DefaultOpts
	opts.Platform = "illumina hiseq"
	p, rec, _ := newFakePipeline(opts, 100)
	_, err := p.BuildCovariateTable(context.Background(), bamPath, ref)
	require.Error(t, err)
	_, err = p.ApplyRecalibration(context.Background(), bamPath, ref, CovariateTablePath(bamPath))
	require.Error(t, err)
	assert.Empty(t, rec.calls)
}
