package toolkit

import (
	"bytes"
	"context"
	"os/exec"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
)

// JVM describes how a jar is launched.
type JVM struct {
	// Java is the java executable. If "", "java" is looked up in PATH.
	Java string
	// Jar is the path of the program's jar file. Required.
	Jar string
	// Opts are extra JVM options, e.g., "-Xmx4g".
	Opts []string
}

// command returns the argv that runs the jar with the given arguments.
// tmpDir, if nonempty, becomes java.io.tmpdir.
func (j JVM) command(tmpDir string, args ...string) ([]string, error) {
	if j.Jar == "" {
		return nil, errors.E(errors.Invalid, "no jar configured")
	}
	java := j.Java
	if java == "" {
		java = "java"
	}
	argv := append([]string{java}, j.Opts...)
	if tmpDir != "" {
		argv = append(argv, "-Djava.io.tmpdir="+tmpDir)
	}
	argv = append(argv, "-jar", j.Jar)
	return append(argv, args...), nil
}

// GATK runs GenomeAnalysisTK (GATK 3) tools. It implements recal.Toolkit.
type GATK struct {
	JVM
}

// Command returns the argv that runs the given GATK tool.
func (g *GATK) Command(tool string, args []string, tmpDir string) ([]string, error) {
	return g.command(tmpDir, append([]string{"-T", tool}, args...)...)
}

// Run runs the GATK tool with args, using tmpDir for the JVM's temporary
// files, and waits for it to finish.
func (g *GATK) Run(ctx context.Context, tool string, args []string, tmpDir string) error {
	argv, err := g.Command(tool, args, tmpDir)
	if err != nil {
		return err
	}
	log.Printf("gatk: running %s", tool)
	if err := run(ctx, argv); err != nil {
		return errors.E("gatk", tool, err)
	}
	return nil
}

// Version returns the version string GATK reports.
func (g *GATK) Version(ctx context.Context) (string, error) {
	argv, err := g.command("", "--version")
	if err != nil {
		return "", err
	}
	bin, err := resolve(argv[0])
	if err != nil {
		return "", err
	}
	var out bytes.Buffer
	cmd := exec.CommandContext(ctx, bin, argv[1:]...)
	cmd.Stdout = &out
	cmd.Stderr = &out
	if err := cmd.Run(); err != nil {
		return "", errors.E(err, "gatk --version", out.String())
	}
	return strings.TrimSpace(out.String()), nil
}

// HasIndelQuals reports whether the GATK build models insertion and deletion
// qualities. GATK-lite builds do not.
func (g *GATK) HasIndelQuals(ctx context.Context) (bool, error) {
	version, err := g.Version(ctx)
	if err != nil {
		return false, err
	}
	return !IsLite(version), nil
}

// IsLite reports whether a GATK version string names a GATK-lite build.
func IsLite(version string) bool {
	return strings.Contains(strings.ToLower(version), "lite")
}
