package recal

import (
	"path/filepath"
	"strings"
)

// stem returns path with its extension removed.
func stem(path string) string {
	return strings.TrimSuffix(path, filepath.Ext(path))
}

// DupPath returns the path of the duplicate-marked copy of bamPath.
func DupPath(bamPath string) string { return stem(bamPath) + "-dup.bam" }

// DupMetricsPath returns the path of the duplication metrics of bamPath.
func DupMetricsPath(bamPath string) string { return stem(bamPath) + "-dup.dup_metrics" }

// CovariateTablePath returns the path of the covariate table built from
// bamPath.
func CovariateTablePath(bamPath string) string { return stem(bamPath) + ".grp" }

// PlotPath returns the path of the covariate plots built from bamPath.
func PlotPath(bamPath string) string { return stem(bamPath) + "-plots.pdf" }

// RecalPath returns the path of the recalibrated copy of bamPath.
func RecalPath(bamPath string) string { return stem(bamPath) + "-gatkrecal.bam" }
