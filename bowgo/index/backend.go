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
	"github.com/pkg/errors"
	"github.com/shenwei356/kmers"

	"github.com/bowgo/bowgo/bowgo/align"
)

// Backend is the CPU implementation of the alignment compute primitives,
// operating against one Index. A Backend carries per-call scratch and is not
// safe for concurrent use; create one per worker (NewBackend is cheap, the
// Index is shared).
type Backend struct {
	idx *Index
	dp  *dpAligner

	// seed-match arena of the current seeding pass; coarse location
	// encodings handed to the pipeline are flagged indices into it
	arena []seedMatch

	// per-round locate scratch, parallel to the scoring queue
	resolved []seedMatch

	rcBuf []byte
}

// seedMatch is one candidate alignment start derived from a seed hit.
type seedMatch struct {
	loc uint64 // linear genome coordinate of the candidate read start
	rc  bool
}

// coarseFlag marks a scoring-queue location as an unresolved arena index.
const coarseFlag = uint64(1) << 63

// NewBackend returns a worker-local backend over a sealed index.
func NewBackend(idx *Index) *Backend {
	return &Backend{
		idx:   idx,
		dp:    newDPAligner(),
		rcBuf: make([]byte, 0, 512),
	}
}

// Map implements the seed-search primitive: for each active read, non-
// overlapping k-mers (shifted by the pass number so a re-seeded read probes
// different positions) are looked up in the index and the matches appended to
// the read's hit deque as strand-grouped coarse ranges.
func (be *Backend) Map(anchor align.Mate, pass int, active []uint32,
	reads *align.ReadBatch, deques *align.HitDeques, p *align.Params) error {

	k := be.idx.K()
	be.arena = be.arena[:0]

	shift := 0
	if p.MaxReseed > 0 {
		shift = pass * k / (p.MaxReseed + 1)
	}

	for _, r := range active {
		seq := reads.Reads[r].Seq
		if len(seq) < k+shift {
			continue
		}

		for offset := shift; offset+k <= len(seq); offset += k {
			code, err := kmers.Encode(seq[offset : offset+k])
			if err != nil { // degenerate bases in the seed
				continue
			}
			canon, rcRead := canonical(code, k)
			locs := be.idx.Lookup(canon)
			if len(locs) == 0 {
				continue
			}

			// group by strand so each deque entry is one coherent range
			for _, strand := range [2]bool{false, true} {
				begin := len(be.arena)
				for _, packed := range locs {
					rc := rcRead != (packed&1 == 1)
					if rc != strand {
						continue
					}
					g := packed >> 1
					// back out the candidate read start on this strand
					off := uint64(offset)
					if rc {
						off = uint64(len(seq) - k - offset)
					}
					if g < off {
						continue
					}
					be.arena = append(be.arena, seedMatch{loc: g - off, rc: rc})
				}
				if n := len(be.arena) - begin; n > 0 {
					deques.Append(r, align.SeedHit{
						SeedOffset: offset,
						RC:         strand,
						RangeBegin: coarseFlag | uint64(begin),
						RangeSize:  n,
					})
				}
			}
		}
	}
	return nil
}

// Select implements the hit-selection primitive. Each active read contributes
// up to HitsPerRead rows from its deque, bounded by its remaining extension
// budget. A read that emitted rows re-enqueues itself; a read with an empty
// deque but budget left goes back to the seed queue for the next pass; a read
// with no budget is dropped.
func (be *Backend) Select(ctx *align.SelectContext, st *align.PipelineState, p *align.Params) (int, error) {
	hq := st.Hits
	for _, pr := range st.ActiveReads.In() {
		r := pr.ReadID()
		if ctx.Trys[r] == 0 {
			continue
		}
		if st.Deques.Remaining(r) == 0 {
			st.SeedQueues.PushOutput(r)
			continue
		}

		n := min(st.HitsPerRead, int(ctx.Trys[r]))
		emitted := 0
		for e := 0; e < n; e++ {
			coarse, _, _, ok := st.Deques.NextRow(r, pr.TopSeed())
			if !ok {
				break
			}
			hq.Push(align.PackHitRef(r, uint32(emitted)), coarse)
			emitted++
		}
		ctx.Trys[r] -= uint32(emitted)
		st.ActiveReads.PushOutput(pr)
	}
	return hq.Len(), nil
}

// LocateInit gathers the arena rows referenced by the scoring queue into the
// resolve scratch, walking the sort permutation so the coarse ordering turns
// into sequential arena access. Unflagged entries pass through, making the
// phase pair idempotent on an unchanged queue.
func (be *Backend) LocateInit(st *align.PipelineState, p *align.Params) error {
	n := len(st.IdxQueue)
	if cap(be.resolved) < n {
		be.resolved = make([]seedMatch, n)
	}
	be.resolved = be.resolved[:n]

	for i, qi := range st.IdxQueue {
		loc := st.Hits.Loc[qi]
		if loc&coarseFlag == 0 {
			be.resolved[i] = seedMatch{loc: loc, rc: st.Hits.RC[qi]}
			continue
		}
		j := loc &^ coarseFlag
		if j >= uint64(len(be.arena)) {
			return errors.Errorf("stray coarse location %d (arena size %d)", j, len(be.arena))
		}
		be.resolved[i] = be.arena[j]
	}
	return nil
}

// LocateLookup scatters the resolved coordinates back to their queue positions.
func (be *Backend) LocateLookup(st *align.PipelineState, p *align.Params) error {
	for i, qi := range st.IdxQueue {
		st.Hits.Loc[qi] = be.resolved[i].loc
		st.Hits.RC[qi] = be.resolved[i].rc
	}
	return nil
}

// ScoreAnchor scores every selected hit with a banded fit alignment around
// its candidate location, in the genome order given by the sort permutation.
// Entries scoring below the scheme's limit get the worst-score sentinel; real
// scores also refine the queue location to the exact alignment start.
func (be *Backend) ScoreAnchor(bandLen int, st *align.PipelineState, p *align.Params) error {
	hq := st.Hits
	pad := uint64(bandLen-1) / 2

	for _, qi := range st.IdxQueue {
		read := &st.ReadsAnchor.Reads[hq.Ref[qi].ReadID()]
		seq := be.oriented(read.Seq, hq.RC[qi])

		wb, we, ok := be.window(hq.Loc[qi], len(seq), pad)
		if !ok {
			hq.Score[qi] = align.WorstScore
			continue
		}

		res, _, _ := be.dp.fit(seq, be.idx.SubSeq(wb, we), st.Scheme, nil, nil)
		if !res.ok || res.score < st.ScoreLimit {
			hq.Score[qi] = align.WorstScore
			continue
		}
		hq.Score[qi] = res.score
		hq.Loc[qi] = wb + uint64(res.refBegin)
	}
	return nil
}

// ScoreOpposite aligns the opposite mate of each compacted candidate within
// the fragment window implied by the anchor, expecting the mates on opposite
// strands. Only entries meeting the fragment-length constraints get a real
// score; the rest keep the sentinel pre-fill.
func (be *Backend) ScoreOpposite(st *align.PipelineState, p *align.Params) error {
	hq := st.Hits

	for _, oi := range st.OppositeQueue {
		qi := st.IdxQueue[oi]

		r := hq.Ref[qi].ReadID()
		anchorLoc := hq.Loc[qi]
		anchorRC := hq.RC[qi]
		anchorLen := len(st.ReadsAnchor.Reads[r].Seq)

		opp := &st.ReadsOpposite.Reads[r]
		oppSeq := be.oriented(opp.Seq, !anchorRC)

		// forward anchor: mate downstream within the fragment range;
		// reverse anchor: mate upstream of the anchor's end
		var wb, we uint64
		if !anchorRC {
			wb = anchorLoc
			we = anchorLoc + uint64(p.MaxFragLen)
		} else {
			aEnd := anchorLoc + uint64(anchorLen)
			if aEnd < uint64(p.MaxFragLen) {
				wb = 0
			} else {
				wb = aEnd - uint64(p.MaxFragLen)
			}
			we = aEnd
		}
		cb, ce, ok := be.idx.ContigSpan(anchorLoc)
		if !ok {
			continue
		}
		wb = max(wb, cb)
		we = min(we, ce)
		if we <= wb {
			continue
		}

		res, _, _ := be.dp.fit(oppSeq, be.idx.SubSeq(wb, we), st.Scheme, nil, nil)
		if !res.ok || res.score < st.ScoreLimit {
			continue
		}

		oppLoc := wb + uint64(res.refBegin)
		fragBegin := min(anchorLoc, oppLoc)
		fragEnd := max(anchorLoc+uint64(anchorLen), wb+uint64(res.refEnd))
		frag := int(fragEnd - fragBegin)
		if frag < p.MinFragLen || frag > p.MaxFragLen {
			continue
		}

		hq.OppositeScore[qi] = res.score
		hq.OppositeLoc[qi] = oppLoc
		hq.OppositeRC[qi] = !anchorRC
	}
	return nil
}

// Reduce folds the round's candidates into the registries in sorted queue
// order, so results do not depend on how selection filled the queue. A
// candidate whose opposite mate scored is paired and updates both mates'
// registries; otherwise the anchor alone is updated as unpaired.
func (be *Backend) Reduce(ctx *align.ReduceContext, st *align.PipelineState, p *align.Params) error {
	hq := st.Hits
	minSep := uint64(align.BandLength(p.MaxDist))

	for _, qi := range st.IdxQueue {
		score := hq.Score[qi]
		if score == align.WorstScore {
			continue
		}
		r := hq.Ref[qi].ReadID()

		if hq.OppositeScore[qi] != align.WorstScore {
			st.RegAnchor[r].Update(score, hq.Loc[qi], hq.RC[qi], align.OutcomePaired, minSep)
			st.RegOpposite[r].Update(hq.OppositeScore[qi], hq.OppositeLoc[qi],
				hq.OppositeRC[qi], align.OutcomePaired, minSep)
		} else {
			st.RegAnchor[r].Update(score, hq.Loc[qi], hq.RC[qi], align.OutcomeUnpaired, minSep)
		}
	}
	return nil
}

// BacktrackBanded recomputes the alignments of a read subset with a banded
// window around the registry location and fills the transcript buffers.
// A nil idx means the full batch.
func (be *Backend) BacktrackBanded(rank align.Rank, idx []uint32, reg []align.BestAlignments,
	mate align.Mate, bandLen int, tb *align.TracebackState, p *align.Params) error {

	pad := uint64(bandLen-1) / 2
	return be.backtrack(rank, idx, reg, mate, pad, tb)
}

// BacktrackFull is the unbounded variant used for truly paired opposite
// alignments, whose location is only known to within the fragment window.
func (be *Backend) BacktrackFull(rank align.Rank, idx []uint32, reg []align.BestAlignments,
	mate align.Mate, tb *align.TracebackState, p *align.Params) error {

	return be.backtrack(rank, idx, reg, mate, uint64(p.MaxFragLen), tb)
}

func (be *Backend) backtrack(rank align.Rank, idx []uint32, reg []align.BestAlignments,
	mate align.Mate, pad uint64, tb *align.TracebackState) error {

	reads := tb.Reads1
	if mate == align.Mate2 {
		reads = tb.Reads2
	}

	for _, r := range subsetOrAll(idx, len(reg)) {
		al := reg[r].ByRank(rank)
		if !al.IsAligned() {
			continue
		}
		read := &reads.Reads[r]
		seq := be.oriented(read.Seq, al.RC)

		wb, we, ok := be.window(al.Loc, len(seq), pad)
		if !ok {
			continue
		}

		var res fitResult
		res, tb.Cigars[r], tb.MDs[r] = be.dp.fit(seq, be.idx.SubSeq(wb, we),
			align.ExactScheme(), tb.Cigars[r][:0], tb.MDs[r][:0])
		if !res.ok {
			continue
		}
		tb.Locs[r] = wb + uint64(res.refBegin)
	}
	return nil
}

// FinishAlignment rescores the transcripts of a subset under the exact rule
// and stamps the finished marker. The registries stay read-only apart from
// the marker; exact scores live in the traceback state.
func (be *Backend) FinishAlignment(rank align.Rank, idx []uint32, reg []align.BestAlignments,
	mate align.Mate, bandLen int, tb *align.TracebackState, p *align.Params) error {

	exact := align.ExactScheme()
	for _, r := range subsetOrAll(idx, len(reg)) {
		al := reg[r].ByRank(rank)
		if !al.IsAligned() || len(tb.Cigars[r]) == 0 {
			continue
		}
		tb.Scores[r] = scoreTranscript(tb.Cigars[r], exact)
		al.Finished = true
	}
	return nil
}

// scoreTranscript evaluates a transcript under a scoring scheme.
func scoreTranscript(cigar []align.CigarOp, sc align.ScoringScheme) int32 {
	var s int32
	for _, op := range cigar {
		switch op.Type {
		case align.CigarMatch:
			s += int32(op.Len) * sc.MatchScore()
		case align.CigarMismatch:
			s += int32(op.Len) * sc.MismatchScore()
		case align.CigarIns, align.CigarDel:
			s += sc.GapOpenScore() + int32(op.Len-1)*sc.GapExtendScore()
		}
	}
	return s
}

// window clips [loc-pad, loc+readLen+pad) to the contig containing loc.
func (be *Backend) window(loc uint64, readLen int, pad uint64) (uint64, uint64, bool) {
	cb, ce, ok := be.idx.ContigSpan(loc)
	if !ok {
		return 0, 0, false
	}
	wb := cb
	if loc >= cb+pad {
		wb = loc - pad
	}
	we := min(loc+uint64(readLen)+pad, ce)
	if we <= wb {
		return 0, 0, false
	}
	return wb, we, true
}

// oriented returns seq or its reverse complement in a reused buffer.
func (be *Backend) oriented(seq []byte, rc bool) []byte {
	if !rc {
		return seq
	}
	if cap(be.rcBuf) < len(seq) {
		be.rcBuf = make([]byte, 0, len(seq))
	}
	be.rcBuf = be.rcBuf[:len(seq)]
	for i, b := range seq {
		be.rcBuf[len(seq)-1-i] = baseComplement[b]
	}
	return be.rcBuf
}

func subsetOrAll(idx []uint32, n int) []uint32 {
	if idx != nil {
		return idx
	}
	all := make([]uint32, n)
	for i := range all {
		all[i] = uint32(i)
	}
	return all
}

var baseComplement [256]byte

func init() {
	for i := 0; i < 256; i++ {
		baseComplement[i] = 'N'
	}
	for _, p := range [][2]byte{{'A', 'T'}, {'C', 'G'}, {'G', 'C'}, {'T', 'A'}, {'N', 'N'}} {
		baseComplement[p[0]] = p[1]
		baseComplement[p[0]+'a'-'A'] = p[1]
	}
}
