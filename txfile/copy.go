// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package txfile

import (
	"context"
	"io"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
)

// Copy copies src to dst byte for byte. dst appears only once the copy is
// complete.
func Copy(ctx context.Context, dst, src string) error {
	return Do(ctx, dst, func(tmpPath string) (err error) {
		in, err := file.Open(ctx, src)
		if err != nil {
			return errors.E(err, "copy: open", src)
		}
		defer file.CloseAndReport(ctx, in, &err)
		out, err := file.Create(ctx, tmpPath)
		if err != nil {
			return errors.E(err, "copy: create", tmpPath)
		}
		defer file.CloseAndReport(ctx, out, &err)
		if _, err = io.Copy(out.Writer(ctx), in.Reader(ctx)); err != nil {
			return errors.E(err, "copy", src, "to", dst)
		}
		return nil
	})
}

// WriteString atomically replaces dst with content.
func WriteString(ctx context.Context, dst, content string) error {
	return Do(ctx, dst, func(tmpPath string) (err error) {
		out, err := file.Create(ctx, tmpPath)
		if err != nil {
			return errors.E(err, "create", tmpPath)
		}
		defer file.CloseAndReport(ctx, out, &err)
		_, err = io.WriteString(out.Writer(ctx), content)
		return err
	})
}
