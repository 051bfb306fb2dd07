package recal

import (
	"github.com/grailbio/base/errors"
)

// Opts configures the pipeline. It is read only once a Pipeline is built.
type Opts struct {
	// Platform is the sequencing platform passed to BaseRecalibrator as
	// --default_platform, e.g., "illumina". Optional.
	Platform string
	// MarkDuplicates enables the Picard duplicate removal step. When false,
	// the covariate table is built directly from the input BAM.
	MarkDuplicates bool
	// Intervals is an optional region file (BED, Picard interval list or GATK
	// region list). It restricts both GATK steps.
	Intervals string
	// KnownSites is an optional VCF of known polymorphic sites, masked out
	// when building the covariate table.
	KnownSites string
	// IndelQuals is true if the GATK build models insertion and deletion
	// qualities. GATK-lite does not, and needs --disable_indel_quals.
	IndelQuals bool
	// PlotPDF asks BaseRecalibrator for a PDF of covariate plots, written
	// next to the covariate table.
	PlotPDF bool
	// TmpDir is the parent of the scratch directories given to the external
	// programs. If "", the system temporary directory is used.
	TmpDir string
}

// DefaultOpts is the default configuration.
var DefaultOpts = Opts{
	Platform:       "illumina",
	MarkDuplicates: true,
	IndelQuals:     true,
}

// Validate checks opts for values the external programs would reject late.
func (o Opts) Validate() error {
	for _, c := range o.Platform {
		if c == ' ' || c == '\t' || c == '\n' {
			return errors.E(errors.Invalid, "platform must be a single word:", o.Platform)
		}
	}
	return nil
}
