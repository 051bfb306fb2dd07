package bam

import (
	"context"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/hts/bam"
	"github.com/grailbio/hts/sam"
	"github.com/samber/lo"
)

// ReadHeader reads the header of the BAM file at path.
func ReadHeader(ctx context.Context, path string) (header *sam.Header, err error) {
	in, err := file.Open(ctx, path)
	if err != nil {
		return nil, errors.E(err, "open", path)
	}
	defer file.CloseAndReport(ctx, in, &err)
	reader, err := bam.NewReader(in.Reader(ctx), 1)
	if err != nil {
		return nil, errors.E(err, "read BAM header", path)
	}
	defer func() {
		if e := reader.Close(); e != nil && err == nil {
			err = e
		}
	}()
	return reader.Header(), nil
}

// ReadGroups returns the distinct @RG IDs declared in header, in header order.
func ReadGroups(header *sam.Header) []string {
	return lo.Uniq(lo.Map(header.RGs(), func(rg *sam.ReadGroup, _ int) string {
		return rg.Name()
	}))
}
