// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package bam provides the BAM metadata that the recalibration pipeline
// needs without running an external program: the header read groups, a .bai
// index writer, and the per-reference record counts stored in a .bai index
// (the equivalent of "samtools idxstats").
//
// Record decoding is done by github.com/grailbio/hts.
package bam
