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
	logging "github.com/shenwei356/go-logging"
)

var log = logging.MustGetLogger("bowgo")

// Aligner runs the best-approx paired pipeline over read batches.
// It is immutable after construction and safe to share; per-worker mutable
// state lives in a Session.
type Aligner struct {
	backend Backend
	sink    OutputSink
	dumper  DebugDumper
	scheme  ScoringScheme
	p       *Params
}

// NewAligner wires the compute backend, the output sink and the scoring
// scheme chosen for the run.
func NewAligner(backend Backend, sink OutputSink, scheme ScoringScheme, p *Params) (*Aligner, error) {
	if backend == nil {
		return nil, errors.New("nil compute backend")
	}
	if sink == nil {
		return nil, errors.New("nil output sink")
	}
	if scheme == nil {
		return nil, errors.New("nil scoring scheme")
	}
	if err := CheckParams(p); err != nil {
		return nil, err
	}
	return &Aligner{backend: backend, sink: sink, scheme: scheme, p: p}, nil
}

// SetDumper installs an optional debug dumper.
func (a *Aligner) SetDumper(d DebugDumper) { a.dumper = d }

// Session is the reusable per-worker state: queues, registries and traceback
// scratch, all sized once to the batch capacity. Not safe for concurrent use;
// run one Session per goroutine.
type Session struct {
	// BatchNumber increments once per processed read batch, used only to
	// correlate debug dumps with the right pass.
	BatchNumber int

	Stats *Stats

	state PipelineState
	sctx  SelectContext

	// registries keyed by mate; the anchor/opposite view swaps per anchor
	reg1 []BestAlignments
	reg2 []BestAlignments

	tb     TracebackState
	subset []uint32
}

// NewSession allocates a worker state sized to the configured batch capacity.
func (a *Aligner) NewSession() *Session {
	c := a.p.BatchCapacity
	ses := &Session{Stats: &Stats{}}
	ses.state.ActiveReads = NewReadQueues(c)
	ses.state.SeedQueues = NewIndexQueues(c)
	ses.state.Hits = &HitQueues{}
	ses.state.Deques = &HitDeques{}
	ses.sctx.Trys = make([]uint32, c)
	ses.reg1 = make([]BestAlignments, 0, c)
	ses.reg2 = make([]BestAlignments, 0, c)
	return ses
}

// Registries returns the per-mate best-alignment registries of the last
// processed batch.
func (ses *Session) Registries(m Mate) []BestAlignments {
	if m == Mate1 {
		return ses.reg1
	}
	return ses.reg2
}

func sizeRegistries(reg []BestAlignments, n int) []BestAlignments {
	if cap(reg) < n {
		return make([]BestAlignments, n)
	}
	return reg[:n]
}

// BestApprox aligns one batch of read pairs: both mates are seeded and
// extended in turn as "anchor", the per-mate registries accumulate the best
// two alignments, and the finished results are handed to the output sink as
// four (mate, rank) batches. Output batches are emitted even when empty.
func (a *Aligner) BestApprox(ses *Session, reads1, reads2 *ReadBatch) error {
	count := reads1.Len()
	if count != reads2.Len() {
		return errors.Errorf("mate batch sizes differ: %d vs %d", count, reads2.Len())
	}
	if count > a.p.BatchCapacity {
		return errors.Errorf("batch size %d exceeds capacity %d", count, a.p.BatchCapacity)
	}

	p := a.p
	threshold := a.scheme.ThresholdScore(p)
	bandLen := BandLength(p.MaxDist)

	ses.reg1 = sizeRegistries(ses.reg1, count)
	ses.reg2 = sizeRegistries(ses.reg2, count)
	InitAlignments(ses.reg1, threshold)
	InitAlignments(ses.reg2, threshold)

	st := &ses.state
	st.Scheme = a.scheme
	st.ScoreLimit = a.scheme.ScoreLimit(p)

	for _, anchor := range []Mate{Mate1, Mate2} {
		log.Debugf("batch %d: anchor %s", ses.BatchNumber, anchor)

		st.Anchor = anchor
		if anchor == Mate1 {
			st.ReadsAnchor, st.ReadsOpposite = reads1, reads2
			st.RegAnchor, st.RegOpposite = ses.reg1, ses.reg2
		} else {
			st.ReadsAnchor, st.ReadsOpposite = reads2, reads1
			st.RegAnchor, st.RegOpposite = ses.reg2, ses.reg1
		}

		// start with a full seed queue; each pass re-seeds only the reads
		// the selection primitive pushed back
		st.SeedQueues.Reset(count)

		for pass := 0; pass <= p.MaxReseed; pass++ {
			if st.SeedQueues.InSize() == 0 {
				break
			}
			active := st.SeedQueues.In()
			st.SeedQueues.ClearOutput()

			if a.dumper != nil && ses.BatchNumber == p.DumpBatch && pass == p.DumpSeedingPass {
				a.dumper.DumpReads(ses, anchor, pass, active)
			}

			log.Debugf("batch %d: mapping %d active reads (anchor %s, pass %d)",
				ses.BatchNumber, len(active), anchor, pass)

			t0 := time.Now()
			st.Deques.ClearDeques(count)
			if err := a.backend.Map(anchor, pass, active, st.ReadsAnchor, st.Deques, p); err != nil {
				return errors.Wrapf(err, "batch %d: mapping failed (anchor %s, pass %d)",
					ses.BatchNumber, anchor, pass)
			}
			ses.Stats.StageTimers.Map += time.Since(t0)
			ses.Stats.SeedPasses++

			if err := a.bestApproxScore(ses, pass, bandLen); err != nil {
				return err
			}

			ses.Stats.Reseeded += uint64(st.SeedQueues.OutSize())
			st.SeedQueues.Swap()
		}
	}

	if err := a.tracebackBest(ses, reads1, reads2, bandLen); err != nil {
		return err
	}

	for i := range ses.reg1 {
		ses.Stats.Record(&ses.reg1[i])
	}

	ses.BatchNumber++
	return nil
}

// tracebackBest runs the traceback and output assembly of one batch: per
// (mate, rank), transcripts are computed, scores are recomputed with the
// exact rule, and the batch is handed to the sink. Opposite-mate work is
// split by pairing outcome since a truly paired alignment may fall outside
// the band used during anchor search and needs full backtracking.
func (a *Aligner) tracebackBest(ses *Session, reads1, reads2 *ReadBatch, bandLen int) error {
	count := reads1.Len()
	p := a.p
	tb := &ses.tb
	tb.Reads1, tb.Reads2 = reads1, reads2

	regA := ses.reg1 // mate 1 plays the anchor role in output assembly
	regO := ses.reg2

	t0 := time.Now()
	defer func() { ses.Stats.StageTimers.Backtrak += time.Since(t0) }()

	// (mate 1, best)
	tb.Clear(count)
	if err := a.backend.BacktrackBanded(BestScore, nil, regA, Mate1, bandLen, tb, p); err != nil {
		return errors.Wrap(err, "best backtracking")
	}
	if err := a.backend.FinishAlignment(BestScore, nil, regA, Mate1, bandLen, tb, p); err != nil {
		return errors.Wrap(err, "best finishing")
	}
	if err := a.emit(ses, count, reads1, regA, Mate1, BestScore); err != nil {
		return err
	}

	// (mate 2, best)
	tb.Clear(count)
	ses.subset = CompactIndices(ses.subset, count, IsPairedPred(regO))
	if len(ses.subset) > 0 {
		log.Debugf("batch %d: paired opposite: %d", ses.BatchNumber, len(ses.subset))
		if err := a.backend.BacktrackFull(BestScore, ses.subset, regO, Mate2, tb, p); err != nil {
			return errors.Wrap(err, "paired opposite backtracking")
		}
	}
	ses.subset = CompactIndices(ses.subset, count, IsUnpairedPred(regO))
	if len(ses.subset) > 0 {
		log.Debugf("batch %d: unpaired opposite: %d", ses.BatchNumber, len(ses.subset))
		if err := a.backend.BacktrackBanded(BestScore, ses.subset, regO, Mate2, bandLen, tb, p); err != nil {
			return errors.Wrap(err, "unpaired opposite backtracking")
		}
	}
	ses.subset = CompactIndices(ses.subset, count, IsAlignedPred(regO))
	if len(ses.subset) > 0 {
		if err := a.backend.FinishAlignment(BestScore, ses.subset, regO, Mate2, bandLen, tb, p); err != nil {
			return errors.Wrap(err, "opposite finishing")
		}
	}
	if err := a.emit(ses, count, reads2, regO, Mate2, BestScore); err != nil {
		return err
	}

	// (mate 1, second-best)
	tb.Clear(count)
	ses.subset = CompactIndices(ses.subset, count, HasSecondPred(regA))
	if len(ses.subset) > 0 {
		log.Debugf("batch %d: second-best: %d", ses.BatchNumber, len(ses.subset))
		if err := a.backend.BacktrackBanded(SecondBestScore, ses.subset, regA, Mate1, bandLen, tb, p); err != nil {
			return errors.Wrap(err, "second-best backtracking")
		}
		if err := a.backend.FinishAlignment(SecondBestScore, ses.subset, regA, Mate1, bandLen, tb, p); err != nil {
			return errors.Wrap(err, "second-best finishing")
		}
	}
	if err := a.emit(ses, count, reads1, regA, Mate1, SecondBestScore); err != nil {
		return err
	}

	// (mate 2, second-best)
	tb.Clear(count)
	ses.subset = CompactIndices(ses.subset, count, HasSecondPairedPred(regO))
	if len(ses.subset) > 0 {
		if err := a.backend.BacktrackFull(SecondBestScore, ses.subset, regO, Mate2, tb, p); err != nil {
			return errors.Wrap(err, "second-best paired opposite backtracking")
		}
	}
	ses.subset = CompactIndices(ses.subset, count, HasSecondUnpairedPred(regO))
	if len(ses.subset) > 0 {
		if err := a.backend.BacktrackBanded(SecondBestScore, ses.subset, regO, Mate2, bandLen, tb, p); err != nil {
			return errors.Wrap(err, "second-best unpaired opposite backtracking")
		}
	}
	ses.subset = CompactIndices(ses.subset, count, HasSecondPred(regO))
	if len(ses.subset) > 0 {
		if err := a.backend.FinishAlignment(SecondBestScore, ses.subset, regO, Mate2, bandLen, tb, p); err != nil {
			return errors.Wrap(err, "second-best opposite finishing")
		}
	}
	return a.emit(ses, count, reads2, regO, Mate2, SecondBestScore)
}

func (a *Aligner) emit(ses *Session, count int, reads *ReadBatch, reg []BestAlignments, mate Mate, rank Rank) error {
	batch := OutputBatch{Count: count, Reads: reads, Reg: reg, TB: &ses.tb}
	if err := a.sink.Process(&batch, mate, rank); err != nil {
		return errors.Wrapf(err, "batch %d: output sink failed (%s, %s)",
			ses.BatchNumber, mate, rank)
	}
	return nil
}
