package main

// See doc.go for documentation

import (
	"github.com/grailbio/base/grail"
	"github.com/grailbio/base/log"
	"v.io/x/lib/cmdline"
)

func main() {
	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds | log.Lshortfile)
	shutdown := grail.Init()
	defer shutdown()

	cmdline.HideGlobalFlagsExcept()
	cmdline.Main(newCmdRoot())
}

func newCmdRoot() *cmdline.Command {
	return &cmdline.Command{
		Name:     "bio-bqsr",
		Short:    "Recalibrate base quality scores with GATK",
		LookPath: false,
		Children: []*cmdline.Command{
			newCmdRun(),
			newCmdCovariates(),
			newCmdApply(),
			newCmdCheckTable(),
			newCmdDownsample(),
		},
	}
}
