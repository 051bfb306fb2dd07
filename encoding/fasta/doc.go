// Package fasta writes the sidecar files that GATK expects next to a FASTA
// reference. See http://www.htslib.org/doc/faidx.html. Briefly, FASTA files
// consist of a number of named sequences that may be interrupted by newlines.
// For example:
//
// >chr7
// ACGTAC
// GAGGAC
// GCG
// >chr8
// ACGT
//
// Note: Sequence names are defined to be the stretch of characters excluding
// spaces immediately after '>'.  Any text appear after a space are ignored.
// For example, '>chr1 A viral sequence' becomes 'chr1'.
//
// GenerateIndex writes the "samtools faidx" .fai index, and GenerateDict the
// Picard sequence dictionary.
package fasta
