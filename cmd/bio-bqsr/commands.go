package main

import (
	"context"
	"flag"
	"fmt"
	"strings"

	"github.com/grailbio/base/cmdutil"
	"github.com/grailbio/base/log"
	"github.com/grailbio/bqsr/recal"
	"github.com/grailbio/bqsr/toolkit"
	"v.io/x/lib/cmdline"
)

// pipelineFlags are the flags shared by the subcommands that run GATK.
type pipelineFlags struct {
	java       string
	jvmOpts    string
	gatkJar    string
	picardJar  string
	platform   string
	markDups   bool
	keepDups   bool
	intervals  string
	knownSites string
	indelQuals string
	plots      bool
	tmpDir     string
}

func (f *pipelineFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&f.java, "java", "", "Java executable. By default, java is looked up in PATH")
	fs.StringVar(&f.jvmOpts, "jvm-opts", "-Xms750m -Xmx2g", "Space-separated JVM options for GATK and Picard")
	fs.StringVar(&f.gatkJar, "gatk-jar", "", "GenomeAnalysisTK.jar path. Required")
	fs.StringVar(&f.picardJar, "picard-jar", "", "picard.jar path. Required unless -mark-duplicates=false")
	fs.StringVar(&f.platform, "platform", recal.DefaultOpts.Platform, "Sequencing platform passed to BaseRecalibrator as --default_platform. Empty to omit")
	fs.BoolVar(&f.markDups, "mark-duplicates", recal.DefaultOpts.MarkDuplicates, "Remove duplicate reads with Picard MarkDuplicates before recalibration")
	fs.BoolVar(&f.keepDups, "keep-duplicates", false, "Flag duplicate reads instead of removing them")
	fs.StringVar(&f.intervals, "intervals", "", "BED, Picard interval list or GATK region list restricting both GATK steps")
	fs.StringVar(&f.knownSites, "known-sites", "", "VCF of known variant sites excluded from the covariate table")
	fs.StringVar(&f.indelQuals, "indel-quals", "auto", `Whether GATK models indel qualities: "on", "off", or "auto".
"auto" asks GATK for its version and turns indel qualities off for GATK-lite.`)
	fs.BoolVar(&f.plots, "plots", false, "Write covariate plots as <base>-plots.pdf")
	fs.StringVar(&f.tmpDir, "tmp-dir", "", "Parent of the scratch directories given to GATK and Picard. By default, the system temporary directory")
}

func (f *pipelineFlags) jvm(jar string) toolkit.JVM {
	return toolkit.JVM{Java: f.java, Jar: jar, Opts: strings.Fields(f.jvmOpts)}
}

// newPipeline builds the pipeline that the flags describe. -indel-quals is
// resolved only if withCovariates is set, since only BaseRecalibrator reads it.
func (f *pipelineFlags) newPipeline(ctx context.Context, withCovariates bool) (*recal.Pipeline, error) {
	if f.gatkJar == "" {
		return nil, fmt.Errorf("-gatk-jar must be set")
	}
	gatk := &toolkit.GATK{JVM: f.jvm(f.gatkJar)}
	opts := recal.Opts{
		Platform:       f.platform,
		MarkDuplicates: f.markDups,
		Intervals:      f.intervals,
		KnownSites:     f.knownSites,
		PlotPDF:        f.plots,
		TmpDir:         f.tmpDir,
	}
	switch f.indelQuals {
	case "on", "off", "auto":
	default:
		return nil, fmt.Errorf("-indel-quals: %q is not one of on, off, auto", f.indelQuals)
	}
	switch {
	case !withCovariates:
	case f.indelQuals == "on":
		opts.IndelQuals = true
	case f.indelQuals == "off":
		opts.IndelQuals = false
	default:
		ok, err := gatk.HasIndelQuals(ctx)
		if err != nil {
			return nil, err
		}
		opts.IndelQuals = ok
		log.Printf("gatk indel qualities: %v", ok)
	}
	var dedup recal.DuplicateMarker
	if f.markDups {
		if f.picardJar == "" {
			return nil, fmt.Errorf("-picard-jar must be set unless -mark-duplicates=false")
		}
		dedup = &toolkit.Picard{JVM: f.jvm(f.picardJar), KeepDuplicates: f.keepDups}
	}
	return recal.New(opts, gatk, dedup), nil
}

func newCmdRun() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:     "run",
		Short:    "Mark duplicates, build the covariate table and recalibrate",
		ArgsName: "bampath refpath",
		Long: `
Run indexes the reference, removes duplicates from bampath (unless
-mark-duplicates=false), builds the covariate table, writes the recalibrated
BAM and indexes it. It prints the path of the recalibrated BAM.`,
	}
	flags := pipelineFlags{}
	flags.register(&cmd.Flags)
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) != 2 {
			return fmt.Errorf("run takes bampath refpath, but found %v", argv)
		}
		ctx := context.Background()
		p, err := flags.newPipeline(ctx, true)
		if err != nil {
			return err
		}
		out, err := p.Run(ctx, argv[0], argv[1])
		if err != nil {
			return err
		}
		fmt.Fprintln(env.Stdout, out)
		return nil
	})
	return cmd
}

func newCmdCovariates() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:     "covariates",
		Short:    "Build the covariate table of a BAM file",
		ArgsName: "bampath refpath",
		Long: `
Covariates indexes the reference and bampath if needed, and runs
BaseRecalibrator. It prints the path of the covariate table.`,
	}
	flags := pipelineFlags{}
	flags.register(&cmd.Flags)
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) != 2 {
			return fmt.Errorf("covariates takes bampath refpath, but found %v", argv)
		}
		ctx := context.Background()
		flags.markDups = false
		p, err := flags.newPipeline(ctx, true)
		if err != nil {
			return err
		}
		bamPath, ref := argv[0], argv[1]
		if err := p.Indexer.IndexReference(ctx, ref); err != nil {
			return err
		}
		if err := p.Indexer.IndexAlignment(ctx, bamPath); err != nil {
			return err
		}
		table, err := p.BuildCovariateTable(ctx, bamPath, ref)
		if err != nil {
			return err
		}
		fmt.Fprintln(env.Stdout, table)
		return nil
	})
	return cmd
}

func newCmdApply() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:     "apply",
		Short:    "Recalibrate a BAM file from its covariate table",
		ArgsName: "bampath refpath [tablepath]",
		Long: `
Apply runs PrintReads with the covariate table, which defaults to the one
"covariates" writes for bampath, and indexes the result. A table without
recalibration data yields an unchanged copy of bampath. It prints the path of
the recalibrated BAM.`,
	}
	flags := pipelineFlags{}
	flags.register(&cmd.Flags)
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) != 2 && len(argv) != 3 {
			return fmt.Errorf("apply takes bampath refpath [tablepath], but found %v", argv)
		}
		ctx := context.Background()
		flags.markDups = false
		p, err := flags.newPipeline(ctx, false)
		if err != nil {
			return err
		}
		bamPath, ref := argv[0], argv[1]
		table := recal.CovariateTablePath(bamPath)
		if len(argv) == 3 {
			table = argv[2]
		}
		if err := p.Indexer.IndexReference(ctx, ref); err != nil {
			return err
		}
		if err := p.Indexer.IndexAlignment(ctx, bamPath); err != nil {
			return err
		}
		out, err := p.ApplyRecalibration(ctx, bamPath, ref, table)
		if err != nil {
			return err
		}
		if err := p.Indexer.IndexAlignment(ctx, out); err != nil {
			return err
		}
		fmt.Fprintln(env.Stdout, out)
		return nil
	})
	return cmd
}

func newCmdCheckTable() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:     "check-table",
		Short:    "Report whether a covariate table holds recalibration data",
		ArgsName: "tablepath",
	}
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) != 1 {
			return fmt.Errorf("check-table takes one pathname argument, but got %v", argv)
		}
		ok, err := recal.TableAvailable(argv[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(env.Stdout, ok)
		return nil
	})
	return cmd
}

func newCmdDownsample() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:     "downsample",
		Short:    "Print the fraction of reads BaseRecalibrator would use",
		ArgsName: "bampath",
		Long: `
Downsample indexes bampath if needed and prints the downsampling fraction
derived from its aligned read count and read groups, or 1 if all reads are
used.`,
	}
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) != 1 {
			return fmt.Errorf("downsample takes one pathname argument, but got %v", argv)
		}
		ctx := context.Background()
		bamPath := argv[0]
		if err := (recal.NativeIndexer{}).IndexAlignment(ctx, bamPath); err != nil {
			return err
		}
		fraction, ok, err := recal.EstimateDownsample(ctx, recal.NativeStats{}, bamPath)
		if err != nil {
			return err
		}
		if !ok {
			fraction = 1
		}
		fmt.Fprintln(env.Stdout, recal.FormatFraction(fraction))
		return nil
	})
	return cmd
}
