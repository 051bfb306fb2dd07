package recal

import (
	"context"
	"path/filepath"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	gbam "github.com/grailbio/bqsr/encoding/bam"
	"github.com/grailbio/bqsr/interval"
	"github.com/grailbio/bqsr/txfile"
	"github.com/samber/lo"
)

// intervalArgs returns the region restriction arguments shared by both GATK
// steps.
func (p *Pipeline) intervalArgs() []string {
	if p.opts.Intervals == "" {
		return nil
	}
	return []string{"-L", p.opts.Intervals, "--interval_set_rule", "INTERSECTION"}
}

// covariateArgs returns the BaseRecalibrator arguments. downsample is the
// downsampling fraction, or zero for none.
func (p *Pipeline) covariateArgs(bamPath, ref, out, plots string, downsample float64) []string {
	args := []string{
		"-o", out,
		"-I", bamPath,
		"-R", ref,
	}
	if p.opts.Platform != "" {
		args = append(args, "--default_platform", p.opts.Platform)
	}
	if plots != "" {
		args = append(args, "--plot_pdf_file", plots)
	}
	if downsample > 0 {
		args = append(args, "--downsample_to_fraction", FormatFraction(downsample),
			"--downsampling_type", DownsampleType)
	}
	if !p.opts.IndelQuals {
		args = append(args, "--disable_indel_quals")
	}
	if p.opts.KnownSites != "" {
		args = append(args, "--knownSites", p.opts.KnownSites)
	}
	return append(args, p.intervalArgs()...)
}

// checkIntervals verifies that the configured intervals name references of
// the alignment.
func (p *Pipeline) checkIntervals(ctx context.Context, counts []gbam.RefCount) error {
	if p.opts.Intervals == "" {
		return nil
	}
	entries, err := interval.Load(ctx, p.opts.Intervals)
	if err != nil {
		return err
	}
	lengths := lo.SliceToMap(counts, func(c gbam.RefCount) (string, int) { return c.Name, c.Length })
	return interval.Check(entries, lengths)
}

// BuildCovariateTable runs BaseRecalibrator over the indexed BAM file at
// bamPath and returns the path of the covariate table,
// CovariateTablePath(bamPath). A BAM without aligned reads gets a table
// holding only NoAlignedReadsMarker, and GATK is not run.
func (p *Pipeline) BuildCovariateTable(ctx context.Context, bamPath, ref string) (string, error) {
	out := CovariateTablePath(bamPath)
	if ok, err := done("covariate table", out); ok || err != nil {
		return out, err
	}
	if err := p.checkInputs(bamPath, ref, true); err != nil {
		return "", err
	}
	counts, err := p.Stats.AlignedCounts(ctx, bamPath)
	if err != nil {
		return "", errors.E(err, "covariate table: aligned read counts of", bamPath)
	}
	total := gbam.TotalMapped(counts)
	if total == 0 {
		log.Printf("%s: no aligned reads, writing empty covariate table %s", bamPath, out)
		if err := txfile.WriteString(ctx, out, NoAlignedReadsMarker); err != nil {
			return "", err
		}
		return out, nil
	}
	if err := p.checkIntervals(ctx, counts); err != nil {
		return "", err
	}
	downsample, _ := estimateDownsample(ctx, p.Stats, bamPath, total)
	err = txfile.WithTempDir(ctx, p.opts.TmpDir, func(tmpDir string) error {
		return txfile.Do(ctx, out, func(txOut string) error {
			var plots string
			if p.opts.PlotPDF {
				plots = filepath.Join(filepath.Dir(txOut), filepath.Base(PlotPath(bamPath)))
			}
			return p.Toolkit.Run(ctx, "BaseRecalibrator", p.covariateArgs(bamPath, ref, txOut, plots, downsample), tmpDir)
		})
	})
	if err != nil {
		return "", errors.E(err, "covariate table", bamPath)
	}
	log.Printf("%s: wrote covariate table %s", bamPath, out)
	return out, nil
}
