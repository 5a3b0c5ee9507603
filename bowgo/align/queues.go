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

// ExtensionIndexBits is the width of the intra-read extension index inside a
// packed hit reference. It caps the number of hits a read may contribute in
// one extension round.
const ExtensionIndexBits = 12

// MaxHitsPerRound is the hard ceiling on hits per read per round, tied to the
// 12-bit extension-index field.
const MaxHitsPerRound = 1 << ExtensionIndexBits // 4096

// MaxBatchCapacity bounds the read count a batch may hold, tied to the
// remaining bits of a packed hit reference.
const MaxBatchCapacity = 1 << (32 - ExtensionIndexBits) // 1M reads

// PackedRead is an active-read queue entry: a read index plus a flag selecting
// which end of the read's current seed range to examine first.
type PackedRead uint32

const topSeedFlag PackedRead = 1 << 31

// PackRead packs a read index and the top-seed flag.
func PackRead(readID uint32, topSeed bool) PackedRead {
	p := PackedRead(readID)
	if topSeed {
		p |= topSeedFlag
	}
	return p
}

func (p PackedRead) ReadID() uint32 { return uint32(p &^ topSeedFlag) }
func (p PackedRead) TopSeed() bool  { return p&topSeedFlag != 0 }

// HitRef is a scoring-queue entry reference: the owning read index in the
// high bits and the intra-read extension index in the low ExtensionIndexBits.
type HitRef uint32

// PackHitRef packs a read index and an extension index.
// ext must stay below MaxHitsPerRound; the adaptive batching policy clamps it.
func PackHitRef(readID uint32, ext uint32) HitRef {
	return HitRef(readID<<ExtensionIndexBits | ext&(MaxHitsPerRound-1))
}

func (h HitRef) ReadID() uint32 { return uint32(h) >> ExtensionIndexBits }
func (h HitRef) Ext() uint32    { return uint32(h) & (MaxHitsPerRound - 1) }

// IndexQueues is a ping-pong pair of read-index buffers with an explicit
// current role: swapping exchanges the slice headers, never copying elements.
type IndexQueues struct {
	in  []uint32
	out []uint32
}

func NewIndexQueues(capacity int) *IndexQueues {
	return &IndexQueues{
		in:  make([]uint32, 0, capacity),
		out: make([]uint32, 0, capacity),
	}
}

// Reset fills the input queue with the identity sequence [0, n).
func (q *IndexQueues) Reset(n int) {
	q.in = q.in[:0]
	for i := 0; i < n; i++ {
		q.in = append(q.in, uint32(i))
	}
	q.out = q.out[:0]
}

func (q *IndexQueues) In() []uint32        { return q.in }
func (q *IndexQueues) InSize() int         { return len(q.in) }
func (q *IndexQueues) OutSize() int        { return len(q.out) }
func (q *IndexQueues) ClearOutput()        { q.out = q.out[:0] }
func (q *IndexQueues) PushOutput(v uint32) { q.out = append(q.out, v) }

// Swap exchanges the input and output roles.
func (q *IndexQueues) Swap() { q.in, q.out = q.out, q.in }

// ReadQueues is the ping-pong pair of active-read queues of the
// extension/scoring pipeline.
type ReadQueues struct {
	in  []PackedRead
	out []PackedRead
}

func NewReadQueues(capacity int) *ReadQueues {
	return &ReadQueues{
		in:  make([]PackedRead, 0, capacity),
		out: make([]PackedRead, 0, capacity),
	}
}

// Reset sizes the input queue to n entries (content filled by the caller)
// and clears the output queue.
func (q *ReadQueues) Reset(n int) {
	if cap(q.in) < n {
		q.in = make([]PackedRead, n)
	} else {
		q.in = q.in[:n]
	}
	q.out = q.out[:0]
}

func (q *ReadQueues) In() []PackedRead        { return q.in }
func (q *ReadQueues) InSize() int             { return len(q.in) }
func (q *ReadQueues) ClearOutput()            { q.out = q.out[:0] }
func (q *ReadQueues) PushOutput(v PackedRead) { q.out = append(q.out, v) }

// Swap exchanges the input and output roles.
func (q *ReadQueues) Swap() { q.in, q.out = q.out, q.in }

// HitQueues holds the candidate extensions of one round in paired parallel
// buffers indexed by a shared position. Loc carries the backend's coarse
// encoding until the locate stage resolves it to a linear genome coordinate.
type HitQueues struct {
	Ref           []HitRef
	Loc           []uint64
	RC            []bool
	Score         []int32
	OppositeScore []int32
	OppositeLoc   []uint64
	OppositeRC    []bool
}

// Clear empties all buffers, keeping capacity.
func (h *HitQueues) Clear() {
	h.Ref = h.Ref[:0]
	h.Loc = h.Loc[:0]
	h.RC = h.RC[:0]
	h.Score = h.Score[:0]
	h.OppositeScore = h.OppositeScore[:0]
	h.OppositeLoc = h.OppositeLoc[:0]
	h.OppositeRC = h.OppositeRC[:0]
}

func (h *HitQueues) Len() int { return len(h.Ref) }

// Push appends one selected hit with its coarse location.
func (h *HitQueues) Push(ref HitRef, coarseLoc uint64) {
	h.Ref = append(h.Ref, ref)
	h.Loc = append(h.Loc, coarseLoc)
	h.RC = append(h.RC, false)
	h.Score = append(h.Score, WorstScore)
	h.OppositeScore = append(h.OppositeScore, WorstScore)
	h.OppositeLoc = append(h.OppositeLoc, 0)
	h.OppositeRC = append(h.OppositeRC, false)
}

// FillOppositeWorst resets the opposite-score buffer so entries never touched
// by the opposite scorer are unambiguously "not scored".
func (h *HitQueues) FillOppositeWorst() {
	for i := range h.OppositeScore {
		h.OppositeScore[i] = WorstScore
	}
}
