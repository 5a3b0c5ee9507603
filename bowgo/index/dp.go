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

package index

import (
	"strconv"

	"github.com/bowgo/bowgo/bowgo/align"
)

// dpAligner is a fit aligner with affine gaps: the read is aligned end to end
// against a reference window whose own ends are free. The banded and full
// alignment paths differ only in the window extent the caller cuts out around
// the candidate location.
//
// The matrices are reusable across calls; one dpAligner per worker.
type dpAligner struct {
	h, e, f []int32 // score layers: overall, gap-in-read, gap-in-reference
	ptr     []uint8 // packed traceback pointers

	ops []align.CigarOp // traceback scratch, reversed order
}

// pointer encoding: low 2 bits give the source of the H layer, the next two
// record whether the E/F layers opened a fresh gap at this cell
const (
	fromMatch uint8 = iota
	fromMismatch
	fromE
	fromF

	eOpenBit uint8 = 1 << 2
	fOpenBit uint8 = 1 << 3
)

const negInf = align.WorstScore

func newDPAligner() *dpAligner {
	return &dpAligner{
		h:   make([]int32, 1<<16),
		e:   make([]int32, 1<<16),
		f:   make([]int32, 1<<16),
		ptr: make([]uint8, 1<<16),
		ops: make([]align.CigarOp, 0, 128),
	}
}

func (alg *dpAligner) grow(n int) {
	if n <= len(alg.h) {
		return
	}
	alg.h = make([]int32, n)
	alg.e = make([]int32, n)
	alg.f = make([]int32, n)
	alg.ptr = make([]uint8, n)
}

// fitResult locates the aligned reference region within the window.
type fitResult struct {
	score    int32
	refBegin int // window-relative, inclusive
	refEnd   int // window-relative, exclusive
	ok       bool
}

// fit aligns read against window under the given scheme and, when cigar/md
// are non-nil, appends the transcript and the mismatch descriptor.
// The returned slices alias the inputs' backing arrays.
func (alg *dpAligner) fit(read, window []byte, sc align.ScoringScheme,
	cigar []align.CigarOp, md []byte) (fitResult, []align.CigarOp, []byte) {

	m := len(read)
	n := len(window)
	if m == 0 || n == 0 {
		return fitResult{score: negInf}, cigar, md
	}

	w := n + 1
	alg.grow((m + 1) * w)
	h, e, f, ptr := alg.h, alg.e, alg.f, alg.ptr

	match := sc.MatchScore()
	mismatch := sc.MismatchScore()
	open := sc.GapOpenScore()
	extend := sc.GapExtendScore()

	// free reference prefix
	for j := 0; j <= n; j++ {
		h[j] = 0
		e[j] = negInf
		f[j] = negInf
	}
	// unaligned read prefix costs a gap
	for i := 1; i <= m; i++ {
		k := i * w
		f[k] = open + int32(i-1)*extend
		h[k] = f[k]
		e[k] = negInf
		ptr[k] = fromF
		if i == 1 {
			ptr[k] |= fOpenBit
		}
	}

	for i := 1; i <= m; i++ {
		base := read[i-1]
		for j := 1; j <= n; j++ {
			k := i*w + j

			var p uint8

			ev := h[k-1] + open
			if x := e[k-1] + extend; x > ev {
				ev = x
			} else {
				p |= eOpenBit
			}
			e[k] = ev

			fv := h[k-w] + open
			if x := f[k-w] + extend; x > fv {
				fv = x
			} else {
				p |= fOpenBit
			}
			f[k] = fv

			s := mismatch
			src := fromMismatch
			if base == window[j-1] {
				s = match
				src = fromMatch
			}
			hv := h[k-w-1] + s
			if ev > hv {
				hv = ev
				src = fromE
			}
			if fv > hv {
				hv = fv
				src = fromF
			}
			h[k] = hv
			ptr[k] = p | src
		}
	}

	// free reference suffix: best cell of the last row
	bi := m * w
	bestJ := 0
	best := h[bi]
	for j := 1; j <= n; j++ {
		if h[bi+j] > best {
			best = h[bi+j]
			bestJ = j
		}
	}

	res := fitResult{score: best, refEnd: bestJ, ok: true}
	if cigar == nil {
		// walk back only to find the begin coordinate
		res.refBegin = alg.walk(read, w, bestJ, nil)
		return res, cigar, md
	}

	alg.ops = alg.ops[:0]
	res.refBegin = alg.walk(read, w, bestJ, &alg.ops)

	// the walk emits in reverse order; flip and coalesce
	ops := alg.ops
	for l, r := 0, len(ops)-1; l < r; l, r = l+1, r-1 {
		ops[l], ops[r] = ops[r], ops[l]
	}
	for _, op := range ops {
		if k := len(cigar); k > 0 && cigar[k-1].Type == op.Type {
			cigar[k-1].Len += op.Len
		} else {
			cigar = append(cigar, op)
		}
	}

	md = appendMD(md, read, window[res.refBegin:res.refEnd], cigar)
	return res, cigar, md
}

// walk traces pointers back from the last read row at column j, optionally
// recording single-base operations, and returns the window-relative begin.
func (alg *dpAligner) walk(read []byte, w, j int, ops *[]align.CigarOp) int {
	i := len(read)
	inE, inF := false, false

	emit := func(t align.CigarOpType) {
		if ops != nil {
			*ops = append(*ops, align.CigarOp{Type: t, Len: 1})
		}
	}

	for i > 0 {
		k := i*w + j
		p := alg.ptr[k]

		switch {
		case inE:
			emit(align.CigarDel)
			if p&eOpenBit != 0 {
				inE = false
			}
			j--
		case inF:
			emit(align.CigarIns)
			if p&fOpenBit != 0 {
				inF = false
			}
			i--
		default:
			switch p & 3 {
			case fromMatch:
				emit(align.CigarMatch)
				i--
				j--
			case fromMismatch:
				emit(align.CigarMismatch)
				i--
				j--
			case fromE:
				inE = true
			case fromF:
				inF = true
			}
		}
	}
	return j
}

// appendMD appends the SAM mismatch descriptor for an aligned read/reference
// region pair described by the transcript.
func appendMD(md, read, ref []byte, cigar []align.CigarOp) []byte {
	matches := 0
	ri, gi := 0, 0 // read and reference cursors

	flush := func() {
		md = strconv.AppendInt(md, int64(matches), 10)
		matches = 0
	}

	for _, op := range cigar {
		switch op.Type {
		case align.CigarMatch:
			matches += int(op.Len)
			ri += int(op.Len)
			gi += int(op.Len)
		case align.CigarMismatch:
			for x := 0; x < int(op.Len); x++ {
				flush()
				md = append(md, ref[gi])
				ri++
				gi++
			}
		case align.CigarDel:
			flush()
			md = append(md, '^')
			md = append(md, ref[gi:gi+int(op.Len)]...)
			gi += int(op.Len)
		case align.CigarIns:
			ri += int(op.Len)
		}
	}
	flush()
	return md
}
