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
	"time"

	"github.com/pkg/errors"
	"github.com/twotwotwo/sorts"
)

// bestApproxScore runs the extension/scoring rounds of one seeding pass:
// select hits, resolve their coordinates, score the anchor and the opposite
// mate, and reduce into the registries, until the active-read queue drains or
// the extension budget is spent.
func (a *Aligner) bestApproxScore(ses *Session, pass, bandLen int) error {
	p := a.p
	st := &ses.state
	stats := ses.Stats

	// turn the seed queue into the active-read queue
	seedQueue := st.SeedQueues.In()
	st.ActiveReads.Reset(len(seedQueue))
	in := st.ActiveReads.In()
	for i, r := range seedQueue {
		in[i] = PackRead(r, p.TopSeed)
		ses.sctx.Trys[r] = uint32(p.MaxExt)
	}

	// cumulative extensions per read within this pass
	nExt := 0

	for extPass := 0; st.ActiveReads.InSize() > 0 && nExt < p.MaxExt; extPass++ {
		st.ActiveReads.ClearOutput()
		st.Hits.Clear()

		q := st.ActiveReads.InSize()

		// Adaptive batching. A large queue keeps the workers busy with one
		// hit per read, enabling frequent early outs; once it shrinks to half
		// the capacity or less, select multiple hits per read to keep the
		// round size up. The per-round ceiling comes from the 12-bit
		// extension index of a packed hit reference.
		hitsPerRead := 1
		if q <= p.BatchCapacity/2 {
			hitsPerRead = min(p.BatchCapacity/q, min(MaxHitsPerRound, p.MaxExt-nExt))
			if hitsPerRead < 1 {
				hitsPerRead = 1
			}
		}
		st.HitsPerRead = hitsPerRead

		t0 := time.Now()
		n, err := a.backend.Select(&ses.sctx, st, p)
		if err != nil {
			return errors.Wrapf(err, "batch %d: hit selection failed (pass %d, extension pass %d)",
				ses.BatchNumber, pass, extPass)
		}
		stats.StageTimers.Select += time.Since(t0)

		// a read that emitted hits also re-enqueued itself, so an empty
		// output queue means an empty hits queue
		st.ActiveReads.Swap()
		if st.ActiveReads.InSize() == 0 {
			break
		}

		st.HitsQueueSize = n
		if n == 0 {
			// nothing selected this round; the outer condition re-checks
			// the queue
			continue
		}
		stats.Extensions += uint64(n)
		stats.ExtRounds++
		stats.QueueHigh = max(stats.QueueHigh, n)

		if a.dumper != nil && ses.BatchNumber == p.DumpBatch &&
			pass == p.DumpSeedingPass && extPass == p.DumpExtensionPass {
			a.dumper.DumpSelection(ses, st.Anchor, pass, extPass, st)
		}

		log.Debugf("batch %d: selected %d hits (pass %d, extension pass %d, %d per read)",
			ses.BatchNumber, n, pass, extPass, hitsPerRead)

		// sort by the coarse index coordinate so lookups hit the index
		// coherently, then resolve to linear genome coordinates
		t0 = time.Now()
		a.sortHits(st, n)
		stats.StageTimers.Sort += time.Since(t0)

		t0 = time.Now()
		if err = a.backend.LocateInit(st, p); err != nil {
			return errors.Wrap(err, "locate init")
		}
		if err = a.backend.LocateLookup(st, p); err != nil {
			return errors.Wrap(err, "locate lookup")
		}
		stats.StageTimers.Locate += time.Since(t0)

		// re-sort by the resolved linear coordinate for coherent genome access
		t0 = time.Now()
		a.sortHits(st, n)
		stats.StageTimers.Sort += time.Since(t0)

		t0 = time.Now()
		if err = a.backend.ScoreAnchor(bandLen, st, p); err != nil {
			return errors.Wrap(err, "anchor scoring")
		}

		// Compact the candidates that got a real anchor score and score
		// their opposite mates. The opposite queue holds indices into
		// IdxQueue so the genome ordering used for anchor scoring is kept.
		st.OppositeQueue = st.OppositeQueue[:0]
		for i := 0; i < n; i++ {
			if st.Hits.Score[st.IdxQueue[i]] != WorstScore {
				st.OppositeQueue = append(st.OppositeQueue, uint32(i))
			}
		}
		st.OppositeQueueSize = len(st.OppositeQueue)

		// the reducer must see untouched entries as unscored
		st.Hits.FillOppositeWorst()

		if st.OppositeQueueSize > 0 {
			log.Debugf("batch %d: score opposite (%d)", ses.BatchNumber, st.OppositeQueueSize)
			if err = a.backend.ScoreOpposite(st, p); err != nil {
				return errors.Wrap(err, "opposite scoring")
			}
		}
		stats.StageTimers.Score += time.Since(t0)

		t0 = time.Now()
		rctx := ReduceContext{Trys: ses.sctx.Trys, NExt: nExt}
		if err = a.backend.Reduce(&rctx, st, p); err != nil {
			return errors.Wrap(err, "score reduction")
		}
		stats.StageTimers.Reduce += time.Since(t0)

		nExt += hitsPerRead
	}
	return nil
}

// sortHits rebuilds the identity permutation over the first n hits and sorts
// it by the location buffer, ties broken by queue position so the order is
// reproducible. Called once on the coarse encoding and once after location
// resolution; both orders are consistent since the key is re-read.
func (a *Aligner) sortHits(st *PipelineState, n int) {
	if cap(st.IdxQueue) < n {
		st.IdxQueue = make([]uint32, n)
	}
	st.IdxQueue = st.IdxQueue[:n]
	for i := range st.IdxQueue {
		st.IdxQueue[i] = uint32(i)
	}
	sorts.Quicksort(&hitLocSorter{idx: st.IdxQueue, loc: st.Hits.Loc})
}

type hitLocSorter struct {
	idx []uint32
	loc []uint64
}

func (s *hitLocSorter) Len() int { return len(s.idx) }

func (s *hitLocSorter) Less(i, j int) bool {
	a, b := s.loc[s.idx[i]], s.loc[s.idx[j]]
	if a != b {
		return a < b
	}
	return s.idx[i] < s.idx[j]
}

func (s *hitLocSorter) Swap(i, j int) { s.idx[i], s.idx[j] = s.idx[j], s.idx[i] }
