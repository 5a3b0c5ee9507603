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

package sam

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bowgo/bowgo/bowgo/align"
)

// fixedResolver maps every location into one reference.
type fixedResolver struct {
	name string
	len  uint64
}

func (r fixedResolver) Resolve(loc uint64) (string, uint64, bool) {
	if loc >= r.len {
		return "", 0, false
	}
	return r.name, loc, true
}

func newTestBatch(n int) *align.OutputBatch {
	reads := &align.ReadBatch{}
	for i := 0; i < n; i++ {
		reads.Append([]byte("r"), []byte("ACGT"), []byte("IIII"))
	}
	reg := make([]align.BestAlignments, n)
	align.InitAlignments(reg, -16)

	tb := &align.TracebackState{}
	tb.Clear(n)
	return &align.OutputBatch{Count: n, Reads: reads, Reg: reg, TB: tb}
}

func TestWriteHeader(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, fixedResolver{"chr1", 1000})

	require.NoError(t, w.WriteHeader([]Ref{{Name: "chr1", Len: 1000}, {Name: "chr2", Len: 500}}, "0.1.0"))

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "@HD\tVN:1.6\tSO:unknown", lines[0])
	assert.Equal(t, "@SQ\tSN:chr1\tLN:1000", lines[1])
	assert.Equal(t, "@SQ\tSN:chr2\tLN:500", lines[2])
	assert.Equal(t, "@PG\tID:bowgo\tPN:bowgo\tVN:0.1.0", lines[3])
}

func TestProcessMappedRecord(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, fixedResolver{"chr1", 1000})

	batch := newTestBatch(1)
	batch.Reg[0].Update(8, 99, false, align.OutcomePaired, 31)
	batch.Reg[0].Best.Finished = true
	batch.TB.Locs[0] = 99
	batch.TB.Scores[0] = 8
	batch.TB.Cigars[0] = []align.CigarOp{{Type: align.CigarMatch, Len: 4}}
	batch.TB.MDs[0] = []byte("4")

	require.NoError(t, w.Process(batch, align.Mate1, align.BestScore))

	// paired, proper pair, first in pair; 1-based position
	assert.Equal(t, "r\t67\tchr1\t100\t255\t4M\t*\t0\t0\tACGT\tIIII\tAS:i:8\tMD:Z:4\n",
		buf.String())
}

func TestProcessReverseStrand(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, fixedResolver{"chr1", 1000})

	batch := newTestBatch(1)
	batch.Reg[0].Update(4, 10, true, align.OutcomeUnpaired, 31)
	batch.Reg[0].Best.Finished = true
	batch.TB.Locs[0] = 10
	batch.TB.Scores[0] = 4
	batch.TB.Cigars[0] = []align.CigarOp{{Type: align.CigarMatch, Len: 4}}
	batch.TB.MDs[0] = []byte("4")

	require.NoError(t, w.Process(batch, align.Mate2, align.BestScore))

	fields := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\t")
	require.Len(t, fields, 13)
	// paired + reverse + last in pair, no proper-pair bit
	assert.Equal(t, "145", fields[1])
	// SEQ and QUAL are reported on the reference strand
	assert.Equal(t, "ACGT", fields[9]) // revcomp of ACGT
	assert.Equal(t, "IIII", fields[10])
}

func TestProcessMismatchFoldedIntoM(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, fixedResolver{"chr1", 1000})

	batch := newTestBatch(1)
	batch.Reg[0].Update(2, 0, false, align.OutcomeUnpaired, 31)
	batch.Reg[0].Best.Finished = true
	batch.TB.Cigars[0] = []align.CigarOp{
		{Type: align.CigarMatch, Len: 2},
		{Type: align.CigarMismatch, Len: 1},
		{Type: align.CigarMatch, Len: 1},
	}
	batch.TB.MDs[0] = []byte("2A1")
	batch.TB.Scores[0] = 0

	require.NoError(t, w.Process(batch, align.Mate1, align.BestScore))

	fields := strings.Split(buf.String(), "\t")
	assert.Equal(t, "4M", fields[5])
	assert.Contains(t, buf.String(), "MD:Z:2A1")
}

func TestProcessUnmapped(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, fixedResolver{"chr1", 1000})

	batch := newTestBatch(1)
	require.NoError(t, w.Process(batch, align.Mate1, align.BestScore))

	// paired + first + unmapped
	assert.Equal(t, "r\t69\t*\t0\t0\t*\t*\t0\t0\tACGT\tIIII\n", buf.String())
}

func TestProcessSecondBest(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, fixedResolver{"chr1", 1000})

	batch := newTestBatch(2)
	// read 0 has no second-best; read 1 does
	batch.Reg[1].Update(8, 50, false, align.OutcomeUnpaired, 31)
	batch.Reg[1].Update(6, 500, false, align.OutcomeUnpaired, 31)
	batch.Reg[1].Second.Finished = true
	batch.TB.Locs[1] = 500
	batch.TB.Scores[1] = 6
	batch.TB.Cigars[1] = []align.CigarOp{{Type: align.CigarMatch, Len: 4}}
	batch.TB.MDs[1] = []byte("4")

	require.NoError(t, w.Process(batch, align.Mate1, align.SecondBestScore))

	// no unmapped records at the second-best rank
	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	require.Len(t, lines, 1)
	fields := strings.Split(lines[0], "\t")
	// paired + first + secondary
	assert.Equal(t, "321", fields[1])
	assert.Equal(t, "501", fields[3])
}

func TestProcessUnresolvableLocation(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, fixedResolver{"chr1", 10})

	batch := newTestBatch(1)
	batch.Reg[0].Update(8, 99, false, align.OutcomeUnpaired, 31)
	batch.Reg[0].Best.Finished = true
	batch.TB.Locs[0] = 99

	assert.Error(t, w.Process(batch, align.Mate1, align.BestScore))
}

func TestProcessSkipsUnfinished(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, fixedResolver{"chr1", 1000})

	// aligned but the finishing stage never ran: reported unmapped rather
	// than with a bogus transcript
	batch := newTestBatch(1)
	batch.Reg[0].Update(8, 99, false, align.OutcomeUnpaired, 31)

	require.NoError(t, w.Process(batch, align.Mate1, align.BestScore))
	fields := strings.Split(buf.String(), "\t")
	assert.Equal(t, "69", fields[1])
}
