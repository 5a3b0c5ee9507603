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

package align

import "fmt"

// CigarOpType is one alignment transcript operation.
type CigarOpType uint8

const (
	CigarMatch    CigarOpType = iota // M, position match with equal bases
	CigarMismatch                    // X, position match with differing bases
	CigarIns                         // I, insertion to the reference
	CigarDel                         // D, deletion from the reference
	CigarSoftClip                    // S, clipped read bases
)

func (t CigarOpType) Byte() byte {
	switch t {
	case CigarMatch:
		return 'M'
	case CigarMismatch:
		return 'X'
	case CigarIns:
		return 'I'
	case CigarDel:
		return 'D'
	case CigarSoftClip:
		return 'S'
	}
	return '?'
}

// CigarOp is a run-length transcript element.
type CigarOp struct {
	Type CigarOpType
	Len  uint32
}

func (op CigarOp) String() string { return fmt.Sprintf("%d%c", op.Len, op.Type.Byte()) }

// TracebackState holds the per-read traceback scratch of one output stage:
// packed read copies, per-read transcripts and MD strings, and the exact
// scores recomputed by the finishing stage. Registries are read-only at this
// point so finished scores live here, not in the registry slots.
type TracebackState struct {
	Reads1 *ReadBatch
	Reads2 *ReadBatch

	Cigars [][]CigarOp
	MDs    [][]byte
	Scores []int32
	Locs   []uint64 // alignment start refined during traceback
}

// Clear resizes the per-read buffers for n reads, keeping capacity.
func (tb *TracebackState) Clear(n int) {
	if cap(tb.Cigars) < n {
		tb.Cigars = make([][]CigarOp, n)
		tb.MDs = make([][]byte, n)
		tb.Scores = make([]int32, n)
		tb.Locs = make([]uint64, n)
	}
	tb.Cigars = tb.Cigars[:n]
	tb.MDs = tb.MDs[:n]
	tb.Scores = tb.Scores[:n]
	tb.Locs = tb.Locs[:n]
	for i := 0; i < n; i++ {
		tb.Cigars[i] = tb.Cigars[i][:0]
		tb.MDs[i] = tb.MDs[i][:0]
		tb.Scores[i] = WorstScore
		tb.Locs[i] = 0
	}
}

// OutputBatch is one finished (mate, rank) batch handed to the output sink.
// It always covers the whole input batch; reads whose registry slot of the
// tagged rank is empty are present but unaligned. Reg and TB are indexed by
// the read index.
type OutputBatch struct {
	Count int

	Reads *ReadBatch
	Reg   []BestAlignments
	TB    *TracebackState
}
