// Copyright © 2024-2026 the bowgo authors
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.

// Package sam serializes finished alignment batches as SAM records.
package sam

import (
	"fmt"
	"io"
	"strconv"

	"github.com/pkg/errors"

	"github.com/bowgo/bowgo/bowgo/align"
)

// RefResolver maps linear genome coordinates back to named references.
type RefResolver interface {
	Resolve(loc uint64) (name string, pos uint64, ok bool)
}

// Ref is one reference sequence for the header.
type Ref struct {
	Name string
	Len  int
}

// SAM flag bits.
const (
	flagPaired     = 0x1
	flagProperPair = 0x2
	flagUnmapped   = 0x4
	flagReverse    = 0x10
	flagFirst      = 0x40
	flagLast       = 0x80
	flagSecondary  = 0x100
)

// Writer is an output sink producing one SAM record per finished alignment.
// Best-rank batches also emit unmapped records so every read appears in the
// output; second-best batches emit only the secondary alignments.
// Not safe for concurrent Process calls.
type Writer struct {
	w   io.Writer
	res RefResolver

	buf []byte
}

// NewWriter wraps an output stream. The caller owns buffering and closing.
func NewWriter(w io.Writer, res RefResolver) *Writer {
	return &Writer{w: w, res: res, buf: make([]byte, 0, 1024)}
}

// WriteHeader emits the @HD/@SQ/@PG header lines.
func (w *Writer) WriteHeader(refs []Ref, version string) error {
	if _, err := fmt.Fprintf(w.w, "@HD\tVN:1.6\tSO:unknown\n"); err != nil {
		return err
	}
	for _, r := range refs {
		if _, err := fmt.Fprintf(w.w, "@SQ\tSN:%s\tLN:%d\n", r.Name, r.Len); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w.w, "@PG\tID:bowgo\tPN:bowgo\tVN:%s\n", version)
	return err
}

// Process implements align.OutputSink. Empty batches are valid and produce
// no output for the second-best rank.
func (w *Writer) Process(batch *align.OutputBatch, mate align.Mate, rank align.Rank) error {
	for i := 0; i < batch.Count; i++ {
		read := &batch.Reads.Reads[i]
		al := batch.Reg[i].ByRank(rank)

		flags := flagPaired
		if mate == align.Mate1 {
			flags |= flagFirst
		} else {
			flags |= flagLast
		}
		if rank == align.SecondBestScore {
			flags |= flagSecondary
		}

		if !al.IsAligned() || !al.Finished {
			if rank != align.BestScore {
				continue
			}
			if err := w.writeUnmapped(read, flags); err != nil {
				return err
			}
			continue
		}

		name, pos, ok := w.res.Resolve(batch.TB.Locs[i])
		if !ok {
			return errors.Errorf("unresolvable location %d for read %s",
				batch.TB.Locs[i], read.ID)
		}
		if al.Outcome == align.OutcomePaired {
			flags |= flagProperPair
		}
		if al.RC {
			flags |= flagReverse
		}

		w.buf = w.buf[:0]
		w.buf = append(w.buf, read.ID...)
		w.buf = appendField(w.buf, strconv.Itoa(flags))
		w.buf = appendField(w.buf, name)
		w.buf = appendField(w.buf, strconv.FormatUint(pos+1, 10))
		w.buf = appendField(w.buf, "255")
		w.buf = append(w.buf, '\t')
		w.buf = appendCigar(w.buf, batch.TB.Cigars[i])
		w.buf = appendField(w.buf, "*")
		w.buf = appendField(w.buf, "0")
		w.buf = appendField(w.buf, "0")
		w.buf = append(w.buf, '\t')
		w.buf = appendSeq(w.buf, read.Seq, al.RC)
		w.buf = append(w.buf, '\t')
		w.buf = appendQual(w.buf, read.Qual, al.RC)
		w.buf = append(w.buf, "\tAS:i:"...)
		w.buf = strconv.AppendInt(w.buf, int64(batch.TB.Scores[i]), 10)
		w.buf = append(w.buf, "\tMD:Z:"...)
		w.buf = append(w.buf, batch.TB.MDs[i]...)
		w.buf = append(w.buf, '\n')

		if _, err := w.w.Write(w.buf); err != nil {
			return err
		}
	}
	return nil
}

func (w *Writer) writeUnmapped(read *align.Read, flags int) error {
	w.buf = w.buf[:0]
	w.buf = append(w.buf, read.ID...)
	w.buf = appendField(w.buf, strconv.Itoa(flags|flagUnmapped))
	w.buf = append(w.buf, "\t*\t0\t0\t*\t*\t0\t0\t"...)
	w.buf = append(w.buf, read.Seq...)
	w.buf = append(w.buf, '\t')
	if len(read.Qual) > 0 {
		w.buf = append(w.buf, read.Qual...)
	} else {
		w.buf = append(w.buf, '*')
	}
	w.buf = append(w.buf, '\n')
	_, err := w.w.Write(w.buf)
	return err
}

func appendField(b []byte, s string) []byte {
	b = append(b, '\t')
	return append(b, s...)
}

// appendCigar writes the transcript in SAM form, folding the internal
// match/mismatch distinction into M.
func appendCigar(b []byte, cigar []align.CigarOp) []byte {
	if len(cigar) == 0 {
		return append(b, '*')
	}
	var runLen uint32
	var runOp byte
	flush := func() {
		if runLen > 0 {
			b = strconv.AppendUint(b, uint64(runLen), 10)
			b = append(b, runOp)
		}
	}
	for _, op := range cigar {
		c := op.Type.Byte()
		if c == 'X' {
			c = 'M'
		}
		if c == runOp {
			runLen += op.Len
			continue
		}
		flush()
		runOp, runLen = c, op.Len
	}
	flush()
	return b
}

func appendSeq(b, seq []byte, rc bool) []byte {
	if len(seq) == 0 {
		return append(b, '*')
	}
	if !rc {
		return append(b, seq...)
	}
	for i := len(seq) - 1; i >= 0; i-- {
		b = append(b, complement[seq[i]])
	}
	return b
}

func appendQual(b, qual []byte, rc bool) []byte {
	if len(qual) == 0 {
		return append(b, '*')
	}
	if !rc {
		return append(b, qual...)
	}
	for i := len(qual) - 1; i >= 0; i-- {
		b = append(b, qual[i])
	}
	return b
}

var complement [256]byte

func init() {
	for i := 0; i < 256; i++ {
		complement[i] = 'N'
	}
	for _, p := range [][2]byte{{'A', 'T'}, {'C', 'G'}, {'G', 'C'}, {'T', 'A'}, {'N', 'N'}} {
		complement[p[0]] = p[1]
		complement[p[0]+'a'-'A'] = p[1]
	}
}
