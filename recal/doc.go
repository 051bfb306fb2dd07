// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

/*Package recal runs GATK base quality score recalibration on a
  coordinate-sorted, aligned BAM file.

  The pipeline has these steps, run in order:

    1. index the reference (.fai and .dict)
    2. mark and remove duplicates with Picard (optional)
    3. index the duplicate-marked BAM
    4. build the covariate table with GATK BaseRecalibrator
    5. rewrite base qualities with GATK PrintReads -BQSR
    6. index the recalibrated BAM

  Every step writes exactly one declared output whose name is derived from its
  input, and every step starts by checking whether that output exists. An
  existing output means the step is done, so a pipeline that failed part way
  can be rerun as is: finished steps are skipped and the failed step starts
  over. Outputs are produced through txfile.Do so that a step killed midway
  never leaves a file behind that a rerun would mistake for a finished one.

  Two degenerate inputs are handled without running GATK:

    - A BAM with no aligned reads gets a covariate table containing only the
      "# No aligned reads" marker.
    - A covariate table without data (the marker above, or a table GATK wrote
      with headers only) causes the input BAM to be copied unchanged to the
      recalibrated output.

  Large inputs are downsampled: BaseRecalibrator is told to look at no more
  than ReadsPerReadGroup aligned reads per read group.
*/
package recal
