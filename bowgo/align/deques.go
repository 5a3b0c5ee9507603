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

// SeedHit is one index match of a read: a compressed range of candidate rows
// discovered by the seed-search primitive. RangeBegin is a backend-defined
// coarse encoding of the first row; row r of the range is RangeBegin + r.
type SeedHit struct {
	SeedOffset int    // seed position within the read
	RC         bool   // match on the reverse-complement strand
	RangeBegin uint64 // coarse encoding of the first row
	RangeSize  int    // number of rows in the range
}

// HitDeques stores the per-read variable-length seed-hit collections of one
// seeding pass, plus the per-read selection cursors the hit-selection
// primitive advances. The orchestrator owns the storage; primitives mutate it
// only through these methods.
type HitDeques struct {
	deques [][]SeedHit

	rows     []int // total rows per read
	consumed []int // rows already handed to selection

	// front/back cursors: (deque entry, row within entry)
	fHit, fRow []int
	bHit, bRow []int
}

// ClearDeques resets the deques for n reads, keeping capacity.
func (d *HitDeques) ClearDeques(n int) {
	if cap(d.deques) < n {
		d.deques = make([][]SeedHit, n)
		d.rows = make([]int, n)
		d.consumed = make([]int, n)
		d.fHit = make([]int, n)
		d.fRow = make([]int, n)
		d.bHit = make([]int, n)
		d.bRow = make([]int, n)
	}
	d.deques = d.deques[:n]
	d.rows = d.rows[:n]
	d.consumed = d.consumed[:n]
	d.fHit = d.fHit[:n]
	d.fRow = d.fRow[:n]
	d.bHit = d.bHit[:n]
	d.bRow = d.bRow[:n]
	for i := 0; i < n; i++ {
		d.deques[i] = d.deques[i][:0]
		d.rows[i] = 0
		d.consumed[i] = 0
		d.fHit[i] = 0
		d.fRow[i] = 0
		d.bHit[i] = -1
		d.bRow[i] = 0
	}
}

// Append adds one hit to a read's deque.
func (d *HitDeques) Append(read uint32, h SeedHit) {
	d.deques[read] = append(d.deques[read], h)
	d.rows[read] += h.RangeSize
	d.bHit[read] = len(d.deques[read]) - 1
	d.bRow[read] = 0
}

// Hits returns a read's deque.
func (d *HitDeques) Hits(read uint32) []SeedHit { return d.deques[read] }

// Remaining reports how many unconsumed candidate rows a read still has.
func (d *HitDeques) Remaining(read uint32) int {
	return d.rows[read] - d.consumed[read]
}

// NextRow pops the next candidate row of a read, from the back of the deque
// when fromTop is set, from the front otherwise. It returns the row's coarse
// location encoding and strand.
func (d *HitDeques) NextRow(read uint32, fromTop bool) (coarse uint64, seedOffset int, rc bool, ok bool) {
	if d.Remaining(read) == 0 {
		return 0, 0, false, false
	}
	dq := d.deques[read]

	if fromTop {
		i := d.bHit[read]
		h := dq[i]
		r := d.bRow[read]
		coarse = h.RangeBegin + uint64(r)
		seedOffset, rc = h.SeedOffset, h.RC
		r++
		if r >= h.RangeSize {
			d.bHit[read] = i - 1
			d.bRow[read] = 0
		} else {
			d.bRow[read] = r
		}
		d.consumed[read]++
		return coarse, seedOffset, rc, true
	}

	i := d.fHit[read]
	h := dq[i]
	r := d.fRow[read]
	coarse = h.RangeBegin + uint64(r)
	seedOffset, rc = h.SeedOffset, h.RC
	r++
	if r >= h.RangeSize {
		d.fHit[read] = i + 1
		d.fRow[read] = 0
	} else {
		d.fRow[read] = r
	}
	d.consumed[read]++
	return coarse, seedOffset, rc, true
}
