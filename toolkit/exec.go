// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package toolkit runs the JVM programs the recalibration pipeline delegates
// to: GATK for covariate tables and quality rewriting, and Picard for
// duplicate marking.
package toolkit

import (
	"context"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"v.io/x/lib/envvar"
	"v.io/x/lib/lookpath"
	"v.io/x/lib/vlog"
)

// stderrTail is the number of trailing output bytes kept for error messages.
const stderrTail = 4 << 10

// tailWriter keeps the last max bytes written to it.
type tailWriter struct {
	mu  sync.Mutex
	max int
	buf []byte
}

func (w *tailWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.buf = append(w.buf, p...)
	if n := len(w.buf) - w.max; n > 0 {
		w.buf = append(w.buf[:0], w.buf[n:]...)
	}
	return len(p), nil
}

func (w *tailWriter) String() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return strings.TrimSpace(string(w.buf))
}

// resolve returns the absolute path of the executable name. Names containing
// a path separator are returned unchanged.
func resolve(name string) (string, error) {
	if strings.ContainsRune(name, os.PathSeparator) {
		return name, nil
	}
	path, err := lookpath.Look(envvar.SliceToMap(os.Environ()), name)
	if err != nil {
		return "", errors.E(errors.Precondition, name, "not found in PATH", err)
	}
	return path, nil
}

// run runs argv[0] with the remaining arguments and waits for it to exit. The
// process is killed when ctx is done. A nonzero exit is returned as an error
// that includes the tail of the program's output.
func run(ctx context.Context, argv []string) error {
	bin, err := resolve(argv[0])
	if err != nil {
		return err
	}
	tail := &tailWriter{max: stderrTail}
	var out io.Writer = tail
	if vlog.V(1) {
		out = io.MultiWriter(tail, os.Stderr)
	}
	cmd := exec.CommandContext(ctx, bin, argv[1:]...)
	cmd.Stdout = out
	cmd.Stderr = out
	log.Debug.Printf("exec: %s", strings.Join(argv, " "))
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return errors.E(errors.Canceled, argv[0], ctx.Err())
		}
		log.Error.Printf("exec %s failed: %v\n%s", argv[0], err, tail.String())
		return errors.E(err, strings.Join(argv, " "), "\n"+tail.String())
	}
	return nil
}
