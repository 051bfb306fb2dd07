package recal

import (
	"context"
	"strconv"

	"github.com/grailbio/base/log"
	gbam "github.com/grailbio/bqsr/encoding/bam"
)

// ReadsPerReadGroup is the number of aligned reads per read group beyond
// which BaseRecalibrator is asked to downsample. GATK's downsampling analysis
// shows covariate quality flattening out at about a tenth of this.
const ReadsPerReadGroup = 5e7

// DownsampleType is the --downsampling_type paired with a fraction.
const DownsampleType = "ALL_READS"

// DownsampleFraction returns the fraction of reads BaseRecalibrator should
// use for a BAM with totalAligned aligned reads in readGroups read groups.
// ok is false when no downsampling is needed. A read group count below one,
// including an unknown count, is treated as one.
func DownsampleFraction(totalAligned uint64, readGroups int) (fraction float64, ok bool) {
	if readGroups < 1 {
		readGroups = 1
	}
	target := ReadsPerReadGroup * float64(readGroups)
	if float64(totalAligned) > target {
		return target / float64(totalAligned), true
	}
	return 0, false
}

// FormatFraction formats a downsampling fraction for the command line.
func FormatFraction(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// EstimateDownsample computes the downsampling fraction for bamPath from its
// index statistics and header read groups.
func EstimateDownsample(ctx context.Context, stats AlignmentStats, bamPath string) (float64, bool, error) {
	counts, err := stats.AlignedCounts(ctx, bamPath)
	if err != nil {
		return 0, false, err
	}
	fraction, ok := estimateDownsample(ctx, stats, bamPath, gbam.TotalMapped(counts))
	return fraction, ok, nil
}

// estimateDownsample is EstimateDownsample for a known aligned read count.
// A header whose read groups cannot be read counts as one read group.
func estimateDownsample(ctx context.Context, stats AlignmentStats, bamPath string, total uint64) (float64, bool) {
	nRG := 1
	if rgs, err := stats.ReadGroups(ctx, bamPath); err != nil {
		log.Error.Printf("%s: read groups: %v; assuming one", bamPath, err)
	} else {
		nRG = len(rgs)
	}
	fraction, ok := DownsampleFraction(total, nRG)
	if ok {
		log.Printf("%s: %d aligned reads in %d read group(s), downsampling to %s",
			bamPath, total, nRG, FormatFraction(fraction))
	}
	return fraction, ok
}
