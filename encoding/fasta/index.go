package fasta

import (
	"bufio"
	"bytes"
	"io"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/tsv"
	"github.com/grailbio/hts/sam"
)

// IndexEntry is one line of a .fai index, as defined by "samtools faidx"
// (http://www.htslib.org/doc/faidx.html).
type IndexEntry struct {
	Name string
	// Length is the number of bases in the sequence.
	Length int
	// Offset is the byte offset of the first base.
	Offset int64
	// LineBases is the number of bases per line.
	LineBases int
	// LineWidth is the number of bytes per line, including the newline.
	LineWidth int
}

// ScanIndex reads FASTA from in and calls fn with the index entry of each
// sequence, in file order.
func ScanIndex(in io.Reader, fn func(IndexEntry) error) (err error) {
	var (
		r       = bufio.NewReader(in)
		cur     IndexEntry
		started bool
		cumByte int64
		eof     bool
	)
	setErr := func(e error) {
		if e != nil && err == nil {
			err = e
		}
	}
	for !eof && err == nil {
		fullLine, e := r.ReadBytes('\n')
		if e == io.EOF { // Process fullLine, then exit the loop
			eof = true
		} else if e != nil {
			setErr(e)
		}
		cumByte += int64(len(fullLine))
		line := bytes.TrimRight(fullLine, "\r\n")
		if len(line) == 0 {
			continue
		}
		if line[0] == '>' {
			if started {
				setErr(fn(cur))
			}
			cur = IndexEntry{Offset: cumByte}
			if fields := strings.Fields(string(line[1:])); len(fields) > 0 {
				cur.Name = fields[0]
			} else {
				setErr(errors.E(errors.Invalid, "malformed FASTA file: empty sequence name"))
			}
			started = true
			continue
		}
		if !started {
			setErr(errors.E(errors.Invalid, "malformed FASTA file: bases before the first '>' line"))
			break
		}
		if cur.LineWidth == 0 {
			cur.LineWidth = len(fullLine)
			cur.LineBases = len(line)
		}
		cur.Length += len(line)
	}
	if err != nil {
		return err
	}
	if !started {
		return errors.E(errors.Invalid, "empty FASTA file")
	}
	return fn(cur)
}

// GenerateIndex generates an index (*.fai) from FASTA.
func GenerateIndex(out io.Writer, in io.Reader) error {
	w := tsv.NewWriter(out)
	err := ScanIndex(in, func(e IndexEntry) error {
		w.WriteString(e.Name)
		w.WriteInt64(int64(e.Length))
		w.WriteInt64(e.Offset)
		w.WriteInt64(int64(e.LineBases))
		w.WriteInt64(int64(e.LineWidth))
		return w.EndLine()
	})
	if err != nil {
		return err
	}
	return w.Flush()
}

// GenerateDict generates a sequence dictionary (*.dict) from FASTA. The
// dictionary is a SAM header holding one @SQ line per sequence, which is
// what GATK requires next to the reference.
func GenerateDict(out io.Writer, in io.Reader) error {
	var refs []*sam.Reference
	err := ScanIndex(in, func(e IndexEntry) error {
		ref, err := sam.NewReference(e.Name, "", "", e.Length, nil, nil)
		if err != nil {
			return errors.E(errors.Invalid, "sequence", e.Name, err)
		}
		refs = append(refs, ref)
		return nil
	})
	if err != nil {
		return err
	}
	header, err := sam.NewHeader(nil, refs)
	if err != nil {
		return err
	}
	text, err := header.MarshalText()
	if err != nil {
		return err
	}
	_, err = out.Write(text)
	return err
}
