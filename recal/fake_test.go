package recal

import (
	"context"
	"fmt"
	"io/ioutil"
	"sync"

	gbam "github.com/grailbio/bqsr/encoding/bam"
)

// call is one recorded collaborator invocation.
type call struct {
	name   string
	args   []string
	tmpDir string
}

// recorder collects invocations of every fake collaborator in order.
type recorder struct {
	mu    sync.Mutex
	calls []call
}

func (r *recorder) add(c call) {
	r.mu.Lock()
	r.calls = append(r.calls, c)
	r.mu.Unlock()
}

func (r *recorder) names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, len(r.calls))
	for i, c := range r.calls {
		names[i] = c.name
	}
	return names
}

// argValue returns the value following flag in args.
func argValue(args []string, flag string) string {
	for i := 0; i+1 < len(args); i++ {
		if args[i] == flag {
			return args[i+1]
		}
	}
	return ""
}

// fakeToolkit writes the -o or --out argument of every tool it runs. When
// err is set, it writes a partial output and fails.
type fakeToolkit struct {
	*recorder
	table string
	err   error
}

func (f *fakeToolkit) Run(_ context.Context, tool string, args []string, tmpDir string) error {
	f.add(call{tool, args, tmpDir})
	out := argValue(args, "-o")
	content := f.table
	if out == "" {
		out = argValue(args, "--out")
		content = "recalibrated " + argValue(args, "-I")
	}
	if out == "" {
		return fmt.Errorf("%s: no output argument in %v", tool, args)
	}
	if f.err != nil {
		_ = ioutil.WriteFile(out, []byte("partial"), 0644)
		return f.err
	}
	if plots := argValue(args, "--plot_pdf_file"); plots != "" {
		if err := ioutil.WriteFile(plots, []byte("%PDF"), 0644); err != nil {
			return err
		}
	}
	return ioutil.WriteFile(out, []byte(content), 0644)
}

type fakeDedup struct {
	*recorder
}

func (f fakeDedup) MarkDuplicates(_ context.Context, in, out, metrics, tmpDir string) error {
	f.add(call{"MarkDuplicates", []string{in, out, metrics}, tmpDir})
	if err := ioutil.WriteFile(metrics, []byte("METRICS"), 0644); err != nil {
		return err
	}
	return ioutil.WriteFile(out, []byte("dedup "+in), 0644)
}

type fakeIndexer struct {
	*recorder
}

func (f fakeIndexer) IndexReference(_ context.Context, ref string) error {
	f.add(call{name: "IndexReference", args: []string{ref}})
	return nil
}

func (f fakeIndexer) IndexAlignment(_ context.Context, bamPath string) error {
	f.add(call{name: "IndexAlignment", args: []string{bamPath}})
	return nil
}

// fakeStats reports the same counts and read groups for every BAM.
type fakeStats struct {
	counts     []gbam.RefCount
	readGroups []string
	rgErr      error
}

func (f fakeStats) AlignedCounts(context.Context, string) ([]gbam.RefCount, error) {
	return f.counts, nil
}

func (f fakeStats) ReadGroups(context.Context, string) ([]string, error) {
	return f.readGroups, f.rgErr
}

const usableTable = `#:GATKReport.v1.1:5
#:GATKTable:2:17:%s:%s:;
#:GATKTable:Arguments:Recalibration argument collection values used in this run
Argument                    Value
binary_tag_name             null
`

// newFakePipeline returns a pipeline whose collaborators all record into
// one recorder.
func newFakePipeline(opts Opts, mapped uint64) (*Pipeline, *recorder, *fakeToolkit) {
	rec := &recorder{}
	tk := &fakeToolkit{recorder: rec, table: usableTable}
	p := New(opts, tk, fakeDedup{rec})
	p.Indexer = fakeIndexer{rec}
	p.Stats = fakeStats{
		counts: []gbam.RefCount{
			{Name: "chr1", Length: 1000, Mapped: mapped, Unmapped: 1},
			{Name: "chr2", Length: 500},
		},
		readGroups: []string{"rg1"},
	}
	return p, rec, tk
}
