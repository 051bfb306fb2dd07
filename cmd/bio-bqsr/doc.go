/*Command bio-bqsr recalibrates the base quality scores of an aligned BAM
  file with GATK 3 BaseRecalibrator and PrintReads.

  Every step writes its output next to the input BAM, under a name derived
  from it, and is skipped when that output already exists. A run that fails
  or is interrupted can be restarted with the same arguments.

  Usage:

    bio-bqsr run -gatk-jar GenomeAnalysisTK.jar -picard-jar picard.jar sample.bam ref.fa

  produces sample-dup.bam, sample-dup.grp, sample-dup-gatkrecal.bam and
  sample-dup-gatkrecal.bam.bai. The covariates and apply subcommands run
  the two GATK steps on their own, check-table reports whether a covariate
  table holds recalibration data, and downsample prints the fraction of
  reads BaseRecalibrator would be given.
*/
package main
