package toolkit

import (
	"context"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
)

// Picard runs Picard tools. It implements recal.DuplicateMarker.
type Picard struct {
	JVM
	// KeepDuplicates marks duplicates instead of removing them.
	KeepDuplicates bool
}

// MarkDuplicatesCommand returns the argv of a MarkDuplicates run.
func (p *Picard) MarkDuplicatesCommand(in, out, metrics, tmpDir string) ([]string, error) {
	remove := "true"
	if p.KeepDuplicates {
		remove = "false"
	}
	args := []string{
		"MarkDuplicates",
		"INPUT=" + in,
		"OUTPUT=" + out,
		"METRICS_FILE=" + metrics,
		"REMOVE_DUPLICATES=" + remove,
		"VALIDATION_STRINGENCY=SILENT",
		"ASSUME_SORTED=true",
	}
	if tmpDir != "" {
		args = append(args, "TMP_DIR="+tmpDir)
	}
	return p.command(tmpDir, args...)
}

// MarkDuplicates writes the duplicate-marked copy of in to out, and the
// duplication metrics to metrics.
func (p *Picard) MarkDuplicates(ctx context.Context, in, out, metrics, tmpDir string) error {
	argv, err := p.MarkDuplicatesCommand(in, out, metrics, tmpDir)
	if err != nil {
		return err
	}
	log.Printf("picard: MarkDuplicates %s", in)
	if err := run(ctx, argv); err != nil {
		return errors.E("picard MarkDuplicates", in, err)
	}
	return nil
}
