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
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bowgo/bowgo/bowgo/align"
)

const refSeq = "TCAGGACTTAACGGTGCATCGATGC" +
	"CTAGTTCAAGCTTGACCGGATATCG" +
	"CTAGCAATGTCCGTTAGGCATCAGT" +
	"TCGAACGGCTATAAGGCCGTCTTGA" +
	"ACGTTAGCCATGGCTTAAGCGTACC" +
	"AGTTGCTCGAATCCGGTTAGCATCG" +
	"GATCCAAGTGCTTGCAGTTACGCCT" +
	"AGGCATTCAGGCCTAAGTTCGCATG"

func revComp(s string) []byte {
	comp := map[byte]byte{'A': 'T', 'C': 'G', 'G': 'C', 'T': 'A'}
	out := make([]byte, len(s))
	for i := 0; i < len(s); i++ {
		out[len(s)-1-i] = comp[s[i]]
	}
	return out
}

type capturedBatch struct {
	mate   align.Mate
	rank   align.Rank
	cigars []string
	mds    []string
	locs   []uint64
	scores []int32
}

type captureSink struct {
	batches []capturedBatch
}

func (s *captureSink) Process(batch *align.OutputBatch, mate align.Mate, rank align.Rank) error {
	cb := capturedBatch{mate: mate, rank: rank}
	for i := 0; i < batch.Count; i++ {
		cigar := ""
		for _, op := range batch.TB.Cigars[i] {
			cigar += op.String()
		}
		cb.cigars = append(cb.cigars, cigar)
		cb.mds = append(cb.mds, string(batch.TB.MDs[i]))
		cb.locs = append(cb.locs, batch.TB.Locs[i])
		cb.scores = append(cb.scores, batch.TB.Scores[i])
	}
	s.batches = append(s.batches, cb)
	return nil
}

func TestBackendPipelineIntegration(t *testing.T) {
	idx, err := New(Options{K: 16, BucketBits: 12, MaxLocsPerSeed: 64})
	require.NoError(t, err)
	require.NoError(t, idx.AddSequence("chr1", []byte(refSeq)))
	require.NoError(t, idx.Seal())

	p := align.DefaultParams
	p.BatchCapacity = 4

	scheme, err := align.SchemeByName("local")
	require.NoError(t, err)

	sink := &captureSink{}
	aligner, err := align.NewAligner(NewBackend(idx), sink, scheme, &p)
	require.NoError(t, err)
	ses := aligner.NewSession()

	// mate 1 forward at 30, mate 2 reverse-complement at 130: a proper pair
	// with a 150 bp fragment
	qual := bytes.Repeat([]byte{'I'}, 50)
	reads1 := &align.ReadBatch{}
	reads2 := &align.ReadBatch{}
	reads1.Append([]byte("pair1"), []byte(refSeq[30:80]), qual)
	reads2.Append([]byte("pair1"), revComp(refSeq[130:180]), qual)

	require.NoError(t, aligner.BestApprox(ses, reads1, reads2))

	reg1 := ses.Registries(align.Mate1)
	reg2 := ses.Registries(align.Mate2)
	require.True(t, reg1[0].IsPaired())
	require.True(t, reg2[0].IsPaired())

	assert.Equal(t, uint64(30), reg1[0].Best.Loc)
	assert.False(t, reg1[0].Best.RC)
	assert.Equal(t, int32(100), reg1[0].Best.Score)
	assert.True(t, reg1[0].Best.Finished)

	assert.Equal(t, uint64(130), reg2[0].Best.Loc)
	assert.True(t, reg2[0].Best.RC)
	assert.Equal(t, int32(100), reg2[0].Best.Score)
	assert.True(t, reg2[0].Best.Finished)

	require.Len(t, sink.batches, 4)
	assert.Equal(t, align.Mate1, sink.batches[0].mate)
	assert.Equal(t, align.BestScore, sink.batches[0].rank)
	assert.Equal(t, align.Mate2, sink.batches[1].mate)
	assert.Equal(t, align.SecondBestScore, sink.batches[3].rank)

	b1 := sink.batches[0]
	assert.Equal(t, "50M", b1.cigars[0])
	assert.Equal(t, "50", b1.mds[0])
	assert.Equal(t, uint64(30), b1.locs[0])
	assert.Equal(t, int32(100), b1.scores[0])

	b2 := sink.batches[1]
	assert.Equal(t, "50M", b2.cigars[0])
	assert.Equal(t, uint64(130), b2.locs[0])
	assert.Equal(t, int32(100), b2.scores[0])

	assert.Equal(t, uint64(1), ses.Stats.Pairs)
	assert.Equal(t, uint64(1), ses.Stats.Paired)
	assert.Equal(t, uint64(0), ses.Stats.Unaligned)
}

func TestBackendUnpairedAndMismatch(t *testing.T) {
	idx, err := New(Options{K: 16, BucketBits: 12, MaxLocsPerSeed: 64})
	require.NoError(t, err)
	require.NoError(t, idx.AddSequence("chr1", []byte(refSeq)))
	require.NoError(t, idx.Seal())

	p := align.DefaultParams
	p.BatchCapacity = 4

	scheme, err := align.SchemeByName("local")
	require.NoError(t, err)

	sink := &captureSink{}
	aligner, err := align.NewAligner(NewBackend(idx), sink, scheme, &p)
	require.NoError(t, err)
	ses := aligner.NewSession()

	// mate 1 carries one mismatch in a non-seed position; mate 2 is foreign
	// sequence and stays unaligned
	m1 := []byte(refSeq[30:80])
	m1[47] = 'A' // refSeq[77] is 'G'
	require.NotEqual(t, refSeq[77], byte('A'))

	qual := bytes.Repeat([]byte{'I'}, 50)
	reads1 := &align.ReadBatch{}
	reads2 := &align.ReadBatch{}
	reads1.Append([]byte("pair2"), m1, qual)
	reads2.Append([]byte("pair2"), bytes.Repeat([]byte("AC"), 25), qual)

	require.NoError(t, aligner.BestApprox(ses, reads1, reads2))

	reg1 := ses.Registries(align.Mate1)
	reg2 := ses.Registries(align.Mate2)

	require.True(t, reg1[0].IsUnpaired())
	assert.Equal(t, uint64(30), reg1[0].Best.Loc)
	assert.Equal(t, int32(49*2-4), reg1[0].Best.Score)
	assert.False(t, reg2[0].IsAligned())

	b1 := sink.batches[0]
	assert.Equal(t, "47M1X2M", b1.cigars[0])
	assert.Equal(t, "47G2", b1.mds[0])

	assert.Equal(t, uint64(1), ses.Stats.Unpaired)
	assert.Equal(t, uint64(0), ses.Stats.Paired)
}

func TestLocatePhaseIdempotent(t *testing.T) {
	idx, err := New(Options{K: 16, BucketBits: 12, MaxLocsPerSeed: 64})
	require.NoError(t, err)
	require.NoError(t, idx.AddSequence("chr1", []byte(refSeq)))
	require.NoError(t, idx.Seal())

	be := NewBackend(idx)
	be.arena = []seedMatch{{loc: 130, rc: true}, {loc: 30, rc: false}, {loc: 77, rc: false}}

	st := &align.PipelineState{Hits: &align.HitQueues{}}
	st.Hits.Push(align.PackHitRef(0, 0), coarseFlag|1)
	st.Hits.Push(align.PackHitRef(1, 0), coarseFlag|0)
	st.Hits.Push(align.PackHitRef(2, 0), 55) // already a linear coordinate
	st.Hits.RC[2] = true
	st.Hits.Push(align.PackHitRef(3, 0), coarseFlag|2)
	st.HitsQueueSize = st.Hits.Len()
	st.IdxQueue = []uint32{2, 1, 0, 3} // sorted by the coarse key

	p := align.DefaultParams
	require.NoError(t, be.LocateInit(st, &p))
	require.NoError(t, be.LocateLookup(st, &p))

	wantLoc := []uint64{30, 130, 55, 77}
	wantRC := []bool{false, true, true, false}
	assert.Equal(t, wantLoc, st.Hits.Loc)
	assert.Equal(t, wantRC, st.Hits.RC)

	// a second locate phase over the unchanged queue resolves identically:
	// linear coordinates pass through untouched
	require.NoError(t, be.LocateInit(st, &p))
	require.NoError(t, be.LocateLookup(st, &p))
	assert.Equal(t, wantLoc, st.Hits.Loc)
	assert.Equal(t, wantRC, st.Hits.RC)
}
