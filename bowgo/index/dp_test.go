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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bowgo/bowgo/bowgo/align"
)

func cigarString(ops []align.CigarOp) string {
	s := ""
	for _, op := range ops {
		s += op.String()
	}
	return s
}

func fitWithTranscript(t *testing.T, read, window string) (fitResult, string, string) {
	t.Helper()
	alg := newDPAligner()
	res, cigar, md := alg.fit([]byte(read), []byte(window), align.ExactScheme(),
		make([]align.CigarOp, 0, 8), make([]byte, 0, 8))
	require.True(t, res.ok)
	return res, cigarString(cigar), string(md)
}

func TestFitExactMatch(t *testing.T) {
	res, cigar, md := fitWithTranscript(t, "ACGTACGT", "TTACGTACGTTT")

	assert.Equal(t, int32(16), res.score)
	assert.Equal(t, 2, res.refBegin)
	assert.Equal(t, 10, res.refEnd)
	assert.Equal(t, "8M", cigar)
	assert.Equal(t, "8", md)
}

func TestFitMismatch(t *testing.T) {
	res, cigar, md := fitWithTranscript(t, "ACGTACGT", "ACGTTCGT")

	// 7 matches, 1 mismatch
	assert.Equal(t, int32(7*2-4), res.score)
	assert.Equal(t, 0, res.refBegin)
	assert.Equal(t, 8, res.refEnd)
	assert.Equal(t, "4M1X3M", cigar)
	assert.Equal(t, "4T3", md)
}

func TestFitDeletion(t *testing.T) {
	// the reference carries two extra bases distinct from their flanks,
	// pinning the gap placement
	res, cigar, md := fitWithTranscript(t, "ACGTACGT", "ACGTCCACGT")

	assert.Equal(t, int32(8*2-6-1), res.score)
	assert.Equal(t, "4M2D4M", cigar)
	assert.Equal(t, "4^CC4", md)
	assert.Equal(t, 0, res.refBegin)
	assert.Equal(t, 10, res.refEnd)
}

func TestFitInsertion(t *testing.T) {
	// the read carries two extra bases distinct from their flanks
	res, cigar, md := fitWithTranscript(t, "ACGTCCACGT", "ACGTACGT")

	assert.Equal(t, int32(8*2-6-1), res.score)
	assert.Equal(t, "4M2I4M", cigar)
	assert.Equal(t, "8", md)
}

func TestFitScoreOnly(t *testing.T) {
	alg := newDPAligner()
	res, cigar, md := alg.fit([]byte("ACGTACGT"), []byte("TTACGTACGTTT"), align.ExactScheme(), nil, nil)

	require.True(t, res.ok)
	assert.Equal(t, int32(16), res.score)
	assert.Equal(t, 2, res.refBegin)
	assert.Nil(t, cigar)
	assert.Nil(t, md)
}

func TestFitEmptyInputs(t *testing.T) {
	alg := newDPAligner()

	res, _, _ := alg.fit(nil, []byte("ACGT"), align.ExactScheme(), nil, nil)
	assert.False(t, res.ok)

	res, _, _ = alg.fit([]byte("ACGT"), nil, align.ExactScheme(), nil, nil)
	assert.False(t, res.ok)
}

func TestFitEditDistanceScheme(t *testing.T) {
	sc := &align.EditDistanceScheme{}
	alg := newDPAligner()

	res, _, _ := alg.fit([]byte("ACGTACGT"), []byte("TTACGTTCGTTT"), sc, nil, nil)
	require.True(t, res.ok)
	assert.Equal(t, int32(-1), res.score) // one mismatch
}

func TestFitReusesMatrices(t *testing.T) {
	alg := newDPAligner()

	res1, _, _ := alg.fit([]byte("ACGTACGT"), []byte("TTACGTACGTTT"), align.ExactScheme(), nil, nil)
	res2, _, _ := alg.fit([]byte("ACGTACGT"), []byte("TTACGTACGTTT"), align.ExactScheme(), nil, nil)

	assert.Equal(t, res1, res2)
}

func TestScoreTranscript(t *testing.T) {
	exact := align.ExactScheme()

	cigar := []align.CigarOp{
		{Type: align.CigarMatch, Len: 40},
		{Type: align.CigarMismatch, Len: 2},
		{Type: align.CigarDel, Len: 3},
		{Type: align.CigarMatch, Len: 8},
	}
	// 48*2 - 2*4 - (6 + 2*1)
	assert.Equal(t, int32(80), scoreTranscript(cigar, exact))
}
