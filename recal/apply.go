package recal

import (
	"context"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/bqsr/txfile"
)

// recalArgs returns the PrintReads arguments.
func (p *Pipeline) recalArgs(bamPath, ref, table, out string) []string {
	args := []string{
		"-BQSR", table,
		"-R", ref,
		"-I", bamPath,
		"--out", out,
	}
	return append(args, p.intervalArgs()...)
}

// ApplyRecalibration rewrites the base qualities of the BAM file at bamPath
// using the covariate table, and returns the path of the result,
// RecalPath(bamPath). If the table has no data, bamPath is copied to the
// result unchanged and GATK is not run.
func (p *Pipeline) ApplyRecalibration(ctx context.Context, bamPath, ref, table string) (string, error) {
	out := RecalPath(bamPath)
	if ok, err := done("recalibrate", out); ok || err != nil {
		return out, err
	}
	if err := p.checkInputs(bamPath, ref, false); err != nil {
		return "", err
	}
	available, err := TableAvailable(table)
	if err != nil {
		return "", err
	}
	if !available {
		log.Printf("%s: no recalibration data in %s, copying to %s unchanged", bamPath, table, out)
		if err := txfile.Copy(ctx, out, bamPath); err != nil {
			return "", err
		}
		return out, nil
	}
	err = txfile.WithTempDir(ctx, p.opts.TmpDir, func(tmpDir string) error {
		return txfile.Do(ctx, out, func(txOut string) error {
			return p.Toolkit.Run(ctx, "PrintReads", p.recalArgs(bamPath, ref, table, txOut), tmpDir)
		})
	})
	if err != nil {
		return "", errors.E(err, "recalibrate", bamPath)
	}
	log.Printf("%s: wrote recalibrated %s", bamPath, out)
	return out, nil
}
