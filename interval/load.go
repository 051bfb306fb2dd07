package interval

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/fileio"
	"github.com/grailbio/base/log"
	"github.com/klauspost/compress/gzip"
)

// Format identifies an interval file format.
type Format int

const (
	// Regions is one GATK region string per line.
	Regions Format = iota
	// BED is zero-based, half-open "chr start end [...]".
	BED
	// IntervalList is Picard's one-based, closed format with a SAM header.
	IntervalList
)

// GuessFormat returns the format implied by the path name.
func GuessFormat(path string) Format {
	p := strings.TrimSuffix(path, ".gz")
	switch {
	case strings.HasSuffix(p, ".bed"):
		return BED
	case strings.HasSuffix(p, ".interval_list"):
		return IntervalList
	}
	return Regions
}

// Load reads the interval file at path. The result is sorted and merged.
func Load(ctx context.Context, path string) (entries []Entry, err error) {
	in, err := file.Open(ctx, path)
	if err != nil {
		return nil, errors.E(err, "open intervals", path)
	}
	defer file.CloseAndReport(ctx, in, &err)
	reader := io.Reader(in.Reader(ctx))
	switch fileio.DetermineType(path) {
	case fileio.Gzip:
		if reader, err = gzip.NewReader(reader); err != nil {
			return nil, errors.E(err, path)
		}
	}
	if entries, err = Parse(reader, GuessFormat(path)); err != nil {
		return nil, errors.E(errors.Invalid, path, err)
	}
	entries = Merge(entries)
	log.Debug.Printf("%s: %d interval(s), %d base(s) covered", path, len(entries), Territory(entries))
	return entries, nil
}

// Parse reads intervals in the given format from r.
func Parse(r io.Reader, format Format) ([]Entry, error) {
	var (
		scanner = bufio.NewScanner(r)
		entries []Entry
		lineIdx int
	)
	for scanner.Scan() {
		lineIdx++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		var (
			e   Entry
			err error
		)
		switch format {
		case BED:
			if strings.HasPrefix(line, "track") || strings.HasPrefix(line, "browser") {
				continue
			}
			e, err = parseColumns(line, 0)
		case IntervalList:
			if strings.HasPrefix(line, "@") {
				continue
			}
			e, err = parseColumns(line, 1)
		default:
			e, err = ParseRegionString(line)
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %v", lineIdx, err)
		}
		entries = append(entries, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

// parseColumns parses "chr start end" from the first three tab-separated
// columns of line. startSubtract is 1 for one-based, closed input.
func parseColumns(line string, startSubtract int) (Entry, error) {
	cols := strings.Split(line, "\t")
	if len(cols) < 3 {
		cols = strings.Fields(line)
	}
	if len(cols) < 3 {
		return Entry{}, fmt.Errorf("fewer than 3 columns: %q", line)
	}
	start, err := strconv.Atoi(cols[1])
	if err != nil {
		return Entry{}, err
	}
	end, err := strconv.Atoi(cols[2])
	if err != nil {
		return Entry{}, err
	}
	start -= startSubtract
	if start < 0 {
		return Entry{}, fmt.Errorf("negative start coordinate %v", cols[1])
	}
	if end < start || end >= posTypeMax {
		return Entry{}, fmt.Errorf("invalid coordinate pair %v %v", cols[1], cols[2])
	}
	return Entry{ChrName: cols[0], Start0: PosType(start), End: PosType(end)}, nil
}

// Merge sorts entries by contig name of first appearance and position, and
// merges overlapping or touching intervals. Empty intervals are dropped.
func Merge(entries []Entry) []Entry {
	order := map[string]int{}
	for _, e := range entries {
		if _, ok := order[e.ChrName]; !ok {
			order[e.ChrName] = len(order)
		}
	}
	sorted := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if e.End > e.Start0 {
			sorted = append(sorted, e)
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.ChrName != b.ChrName {
			return order[a.ChrName] < order[b.ChrName]
		}
		return a.Start0 < b.Start0
	})
	var merged []Entry
	for _, e := range sorted {
		if n := len(merged); n > 0 && merged[n-1].ChrName == e.ChrName && e.Start0 <= merged[n-1].End {
			if e.End > merged[n-1].End {
				merged[n-1].End = e.End
			}
			continue
		}
		merged = append(merged, e)
	}
	return merged
}

// Territory returns the number of bases covered by merged entries.
func Territory(entries []Entry) int64 {
	var n int64
	for _, e := range entries {
		n += e.Len()
	}
	return n
}

// Check verifies that every entry names a reference in refLengths, which
// maps reference names to their lengths, and lies within it. Region strings
// without a position (whole contig) are never out of range.
func Check(entries []Entry, refLengths map[string]int) error {
	for _, e := range entries {
		length, ok := refLengths[e.ChrName]
		if !ok {
			return errors.E(errors.Invalid, fmt.Sprintf("interval contig %q is not in the alignment header", e.ChrName))
		}
		if e.End != posTypeMax-1 && int(e.End) > length {
			return errors.E(errors.Invalid, fmt.Sprintf("interval %s:%d-%d extends past the end of %s (%d)",
				e.ChrName, e.Start0+1, e.End, e.ChrName, length))
		}
	}
	return nil
}
