// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package txfile produces output files transactionally. A file produced
// through Do either fully reflects a completed operation or does not exist,
// so the existence of an output path can be used as the completion record of
// the step that produces it.
//
// All paths handled by this package are local. The external programs that
// write into the transaction (java, picard, GATK) cannot write to remote
// storage.
package txfile

import (
	"context"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"v.io/x/lib/vlog"
)

// txDirPrefix names the private directory that holds an in-flight output. It
// is a dot file so that directory listings and globs skip it.
const txDirPrefix = ".tx-"

// Exists reports whether path exists. A path that exists but cannot be
// inspected is an error, not an absent output.
func Exists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, errors.E(err, "stat", path)
}

// Do runs fn with a temporary path to write target into. When fn returns nil
// and ctx is not done, the temporary path is renamed to target. Otherwise, and
// also when fn panics, the temporary path is removed and target is not
// touched.
//
// The temporary path lives in a private directory next to target, and has the
// same base name as target. Files that fn (or a program it runs) leaves next
// to the temporary path and whose names share target's stem, e.g., the
// "foo.bai" or "foo.bam.bai" index of "foo.bam", are moved next to target on
// success.
func Do(ctx context.Context, target string, fn func(tmpPath string) error) (err error) {
	dir, base := filepath.Split(target)
	if dir == "" {
		dir = "."
	}
	txDir, err := ioutil.TempDir(dir, txDirPrefix)
	if err != nil {
		return errors.E(err, "create transaction directory for", target)
	}
	defer func() {
		if e := os.RemoveAll(txDir); e != nil {
			log.Error.Printf("txfile: remove %s: %v", txDir, e)
		}
	}()
	tmpPath := filepath.Join(txDir, base)
	vlog.VI(1).Infof("txfile: %s: writing into %s", target, tmpPath)
	if err = fn(tmpPath); err != nil {
		return err
	}
	if err = ctx.Err(); err != nil {
		return errors.E(errors.Canceled, target, err)
	}
	if _, err = os.Stat(tmpPath); err != nil {
		return errors.E(errors.NotExist, "transaction produced no output for", target, err)
	}
	if err = moveSidecars(txDir, dir, base); err != nil {
		return err
	}
	if err = os.Rename(tmpPath, target); err != nil {
		return errors.E(err, "commit", target)
	}
	return nil
}

// moveSidecars moves files in txDir whose names begin with the stem of base,
// other than base itself, into dir.
func moveSidecars(txDir, dir, base string) error {
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	infos, err := ioutil.ReadDir(txDir)
	if err != nil {
		return errors.E(err, "list", txDir)
	}
	for _, info := range infos {
		name := info.Name()
		if name == base || !strings.HasPrefix(name, stem) {
			continue
		}
		if err := os.Rename(filepath.Join(txDir, name), filepath.Join(dir, name)); err != nil {
			return errors.E(err, "commit sidecar", name)
		}
	}
	return nil
}

// WithTempDir creates a fresh directory under parent, runs fn with it, and
// removes the directory and its contents on every exit path, including a
// panic in fn. If parent is empty, the system temporary directory is used.
func WithTempDir(ctx context.Context, parent string, fn func(dir string) error) error {
	if parent != "" {
		if err := os.MkdirAll(parent, 0755); err != nil {
			return errors.E(err, "create temporary parent", parent)
		}
	}
	dir, err := ioutil.TempDir(parent, "bqsr-")
	if err != nil {
		return errors.E(err, "create temporary directory in", parent)
	}
	defer func() {
		if e := os.RemoveAll(dir); e != nil {
			log.Error.Printf("txfile: remove %s: %v", dir, e)
		}
	}()
	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(dir)
}
