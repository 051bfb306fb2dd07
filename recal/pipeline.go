package recal

import (
	"context"
	"path/filepath"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/bqsr/txfile"
	"v.io/x/lib/vlog"
)

// Pipeline runs recalibration with one configuration. The collaborators must
// be set; New fills in the in-process ones.
type Pipeline struct {
	opts Opts

	Toolkit Toolkit
	Dedup   DuplicateMarker
	Indexer Indexer
	Stats   AlignmentStats
}

// New creates a Pipeline that runs GATK tools with tk and marks duplicates
// with dedup. Indexing and BAM statistics are done in process.
func New(opts Opts, tk Toolkit, dedup DuplicateMarker) *Pipeline {
	return &Pipeline{
		opts:    opts,
		Toolkit: tk,
		Dedup:   dedup,
		Indexer: NativeIndexer{},
		Stats:   NativeStats{},
	}
}

// Opts returns the pipeline configuration.
func (p *Pipeline) Opts() Opts { return p.opts }

// done reports whether the output of a step exists, in which case the step is
// skipped.
func done(step, output string) (bool, error) {
	exists, err := txfile.Exists(output)
	if err != nil {
		return false, errors.E(err, step)
	}
	if exists {
		vlog.VI(1).Infof("%s: %s exists, skipping", step, output)
	}
	return exists, nil
}

// mustExist returns a NotExist error if path, an input of the pipeline, is
// missing.
func mustExist(what, path string) error {
	exists, err := txfile.Exists(path)
	if err != nil {
		return err
	}
	if !exists {
		return errors.E(errors.NotExist, what, path, "does not exist")
	}
	return nil
}

// checkInputs verifies that the input files of a step are present before any
// external program runs. Known sites are only read by BaseRecalibrator.
func (p *Pipeline) checkInputs(bamPath, ref string, knownSites bool) error {
	if err := p.opts.Validate(); err != nil {
		return err
	}
	if err := mustExist("alignment", bamPath); err != nil {
		return err
	}
	if err := mustExist("reference", ref); err != nil {
		return err
	}
	if knownSites && p.opts.KnownSites != "" {
		if err := mustExist("known sites", p.opts.KnownSites); err != nil {
			return err
		}
	}
	if p.opts.Intervals != "" {
		if err := mustExist("intervals", p.opts.Intervals); err != nil {
			return err
		}
	}
	return nil
}

// Run recalibrates the BAM file at bamPath against the reference FASTA ref and
// returns the path of the indexed, recalibrated BAM.
func (p *Pipeline) Run(ctx context.Context, bamPath, ref string) (string, error) {
	if err := p.checkInputs(bamPath, ref, true); err != nil {
		return "", err
	}
	if err := p.Indexer.IndexReference(ctx, ref); err != nil {
		return "", err
	}
	dupBAM := bamPath
	if p.opts.MarkDuplicates {
		var err error
		if dupBAM, err = p.MarkDuplicates(ctx, bamPath); err != nil {
			return "", err
		}
	}
	if err := p.Indexer.IndexAlignment(ctx, dupBAM); err != nil {
		return "", err
	}
	table, err := p.BuildCovariateTable(ctx, dupBAM, ref)
	if err != nil {
		return "", err
	}
	recalBAM, err := p.ApplyRecalibration(ctx, dupBAM, ref, table)
	if err != nil {
		return "", err
	}
	if err := p.Indexer.IndexAlignment(ctx, recalBAM); err != nil {
		return "", err
	}
	log.Printf("%s: recalibrated into %s", bamPath, recalBAM)
	return recalBAM, nil
}

// MarkDuplicates writes the duplicate-marked copy of bamPath, DupPath(bamPath),
// and returns its path.
func (p *Pipeline) MarkDuplicates(ctx context.Context, bamPath string) (string, error) {
	out := DupPath(bamPath)
	if ok, err := done("mark duplicates", out); ok || err != nil {
		return out, err
	}
	metrics := DupMetricsPath(bamPath)
	err := txfile.WithTempDir(ctx, p.opts.TmpDir, func(tmpDir string) error {
		return txfile.Do(ctx, out, func(txOut string) error {
			// The metrics share the output's transaction directory so that
			// they are committed with it.
			txMetrics := filepath.Join(filepath.Dir(txOut), filepath.Base(metrics))
			return p.Dedup.MarkDuplicates(ctx, bamPath, txOut, txMetrics, tmpDir)
		})
	})
	if err != nil {
		return "", errors.E(err, "mark duplicates", bamPath)
	}
	return out, nil
}
