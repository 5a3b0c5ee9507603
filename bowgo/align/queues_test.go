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

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPackedRead(t *testing.T) {
	p := PackRead(12345, false)
	assert.Equal(t, uint32(12345), p.ReadID())
	assert.False(t, p.TopSeed())

	p = PackRead(12345, true)
	assert.Equal(t, uint32(12345), p.ReadID())
	assert.True(t, p.TopSeed())

	// the flag bit does not leak into the read index
	p = PackRead(MaxBatchCapacity-1, true)
	assert.Equal(t, uint32(MaxBatchCapacity-1), p.ReadID())
	assert.True(t, p.TopSeed())
}

func TestHitRef(t *testing.T) {
	h := PackHitRef(777, 42)
	assert.Equal(t, uint32(777), h.ReadID())
	assert.Equal(t, uint32(42), h.Ext())

	// extension index is capped at the 12-bit field width
	h = PackHitRef(1, MaxHitsPerRound-1)
	assert.Equal(t, uint32(1), h.ReadID())
	assert.Equal(t, uint32(MaxHitsPerRound-1), h.Ext())

	h = PackHitRef(1, MaxHitsPerRound) // wraps instead of corrupting the read
	assert.Equal(t, uint32(1), h.ReadID())
	assert.Equal(t, uint32(0), h.Ext())
}

func TestIndexQueuesPingPong(t *testing.T) {
	q := NewIndexQueues(8)
	q.Reset(4)

	assert.Equal(t, []uint32{0, 1, 2, 3}, q.In())
	assert.Equal(t, 0, q.OutSize())

	q.PushOutput(2)
	q.PushOutput(0)
	assert.Equal(t, 2, q.OutSize())

	q.Swap()
	assert.Equal(t, []uint32{2, 0}, q.In())
	assert.Equal(t, 4, q.OutSize()) // old input is now the output buffer

	q.ClearOutput()
	assert.Equal(t, 0, q.OutSize())
	assert.Equal(t, []uint32{2, 0}, q.In())
}

func TestReadQueuesPingPong(t *testing.T) {
	q := NewReadQueues(8)
	q.Reset(3)
	require.Equal(t, 3, q.InSize())

	in := q.In()
	in[0] = PackRead(0, true)
	in[1] = PackRead(1, false)
	in[2] = PackRead(2, true)

	q.PushOutput(PackRead(1, false))
	q.Swap()

	require.Equal(t, 1, q.InSize())
	assert.Equal(t, uint32(1), q.In()[0].ReadID())
}

func TestHitQueuesPush(t *testing.T) {
	hq := &HitQueues{}
	hq.Push(PackHitRef(3, 0), 12345)
	hq.Push(PackHitRef(7, 1), 678)

	require.Equal(t, 2, hq.Len())
	assert.Equal(t, uint64(12345), hq.Loc[0])
	assert.Equal(t, WorstScore, hq.Score[0])
	assert.Equal(t, WorstScore, hq.OppositeScore[0])

	hq.OppositeScore[1] = 99
	hq.FillOppositeWorst()
	assert.Equal(t, WorstScore, hq.OppositeScore[1])

	hq.Clear()
	assert.Equal(t, 0, hq.Len())
}

func TestHitDequesFrontAndBack(t *testing.T) {
	d := &HitDeques{}
	d.ClearDeques(2)

	d.Append(0, SeedHit{SeedOffset: 0, RangeBegin: 100, RangeSize: 2})
	d.Append(0, SeedHit{SeedOffset: 8, RC: true, RangeBegin: 500, RangeSize: 1})
	require.Equal(t, 3, d.Remaining(0))
	require.Equal(t, 0, d.Remaining(1))

	// front order walks ranges first to last
	coarse, off, rc, ok := d.NextRow(0, false)
	require.True(t, ok)
	assert.Equal(t, uint64(100), coarse)
	assert.Equal(t, 0, off)
	assert.False(t, rc)

	coarse, _, _, ok = d.NextRow(0, false)
	require.True(t, ok)
	assert.Equal(t, uint64(101), coarse)

	coarse, off, rc, ok = d.NextRow(0, false)
	require.True(t, ok)
	assert.Equal(t, uint64(500), coarse)
	assert.Equal(t, 8, off)
	assert.True(t, rc)

	_, _, _, ok = d.NextRow(0, false)
	assert.False(t, ok)
}

func TestHitDequesTopFirst(t *testing.T) {
	d := &HitDeques{}
	d.ClearDeques(1)

	d.Append(0, SeedHit{RangeBegin: 100, RangeSize: 2})
	d.Append(0, SeedHit{RangeBegin: 500, RangeSize: 2})

	// back order starts at the last appended range
	coarse, _, _, ok := d.NextRow(0, true)
	require.True(t, ok)
	assert.Equal(t, uint64(500), coarse)

	coarse, _, _, ok = d.NextRow(0, true)
	require.True(t, ok)
	assert.Equal(t, uint64(501), coarse)

	coarse, _, _, ok = d.NextRow(0, true)
	require.True(t, ok)
	assert.Equal(t, uint64(100), coarse)

	assert.Equal(t, 1, d.Remaining(0))
}

func TestHitDequesClearReuses(t *testing.T) {
	d := &HitDeques{}
	d.ClearDeques(2)
	d.Append(1, SeedHit{RangeBegin: 7, RangeSize: 4})
	d.NextRow(1, false)

	d.ClearDeques(2)
	assert.Equal(t, 0, d.Remaining(1))
	assert.Empty(t, d.Hits(1))
}
