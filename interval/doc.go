/*Package interval loads the region restriction that is passed to both
  recalibration steps, and checks it against the alignment before any
  external program runs.

  Three file formats are understood, chosen by file name:
    *.bed, *.bed.gz      zero-based, half-open "chr start end" lines
    *.interval_list      Picard interval lists: a SAM header followed by
                         one-based, closed "chr start end strand name" lines
    anything else        one GATK region string per line, e.g. "chr1:100-200"

  Overlapping and touching intervals are merged, so territory sizes count
  each base once.
*/
package interval
