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

func TestCompactIndices(t *testing.T) {
	even := func(read uint32) bool { return read%2 == 0 }

	idx := CompactIndices(nil, 7, even)
	assert.Equal(t, []uint32{0, 2, 4, 6}, idx)

	// order-preserving and reusing the buffer
	idx = CompactIndices(idx, 4, func(read uint32) bool { return read >= 2 })
	assert.Equal(t, []uint32{2, 3}, idx)

	idx = CompactIndices(idx, 5, func(read uint32) bool { return false })
	assert.Empty(t, idx)
}

func TestPairingPredicatesPartition(t *testing.T) {
	reg := make([]BestAlignments, 4)
	InitAlignments(reg, -16)

	require.True(t, reg[0].Update(-5, 100, false, OutcomePaired, testMinSep))
	require.True(t, reg[1].Update(-5, 100, false, OutcomeUnpaired, testMinSep))
	// read 2 stays unaligned
	require.True(t, reg[3].Update(-5, 100, false, OutcomePaired, testMinSep))
	require.True(t, reg[3].Update(-8, 1000, false, OutcomeUnpaired, testMinSep))

	paired := CompactIndices(nil, 4, IsPairedPred(reg))
	unpaired := CompactIndices(nil, 4, IsUnpairedPred(reg))
	aligned := CompactIndices(nil, 4, IsAlignedPred(reg))

	assert.Equal(t, []uint32{0, 3}, paired)
	assert.Equal(t, []uint32{1}, unpaired)
	assert.Equal(t, []uint32{0, 1, 3}, aligned)

	// paired and unpaired partition the aligned set
	assert.Equal(t, len(aligned), len(paired)+len(unpaired))

	second := CompactIndices(nil, 4, HasSecondPred(reg))
	secondPaired := CompactIndices(nil, 4, HasSecondPairedPred(reg))
	secondUnpaired := CompactIndices(nil, 4, HasSecondUnpairedPred(reg))

	assert.Equal(t, []uint32{3}, second)
	assert.Empty(t, secondPaired)
	assert.Equal(t, []uint32{3}, secondUnpaired)
}
