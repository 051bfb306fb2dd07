package recal

import (
	"bufio"
	"os"
	"strings"

	"github.com/grailbio/base/errors"
)

const (
	// NoAlignedReadsMarker is the whole content of the covariate table written
	// for a BAM without aligned reads.
	NoAlignedReadsMarker = "# No aligned reads"

	tableComment = "#"
	tableEOF     = "EOF"
)

// TableAvailable reports whether the covariate table at path holds data that
// PrintReads can recalibrate from. A missing table, a table of comments only,
// and a table whose first line after the comments is, or is followed
// directly by, the end-of-data marker all have no data. A single line after
// the comments, with nothing following it, counts as data.
func TableAvailable(path string) (bool, error) {
	in, err := os.Open(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, errors.E(err, "open covariate table", path)
	}
	defer in.Close() // nolint: errcheck

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64<<10), 16<<20)
	var content bool
	for scanner.Scan() {
		if strings.HasPrefix(scanner.Text(), tableComment) {
			continue
		}
		content = true
		break
	}
	if !content {
		if err := scanner.Err(); err != nil {
			return false, errors.E(err, "read covariate table", path)
		}
		return false, nil
	}
	if strings.HasPrefix(scanner.Text(), tableEOF) {
		return false, nil
	}
	if scanner.Scan() && strings.HasPrefix(scanner.Text(), tableEOF) {
		return false, nil
	}
	if err := scanner.Err(); err != nil {
		return false, errors.E(err, "read covariate table", path)
	}
	return true, nil
}
