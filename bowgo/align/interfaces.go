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

// PipelineState bundles the buffers and per-round sizes shared between the
// orchestrator and the compute primitives within one seeding pass.
// All buffers are owned by the orchestrator; primitives mutate only the
// regions they are given and retain no references across calls.
type PipelineState struct {
	Anchor        Mate
	ReadsAnchor   *ReadBatch
	ReadsOpposite *ReadBatch

	Scheme     ScoringScheme
	ScoreLimit int32

	HitsPerRead       int
	HitsQueueSize     int
	OppositeQueueSize int

	ActiveReads *ReadQueues
	SeedQueues  *IndexQueues
	Hits        *HitQueues
	Deques      *HitDeques

	// IdxQueue is the sort permutation into the hit queues; OppositeQueue
	// holds indices into IdxQueue so the genome ordering used for anchor
	// scoring is preserved for the opposite scorer.
	IdxQueue      []uint32
	OppositeQueue []uint32

	RegAnchor   []BestAlignments
	RegOpposite []BestAlignments
}

// SelectContext carries the per-read extension budgets the selection
// primitive decrements.
type SelectContext struct {
	Trys []uint32
}

// ReduceContext carries the per-read budgets and the cumulative per-read
// extension counter into the reduction primitive.
type ReduceContext struct {
	Trys []uint32
	NExt int
}

// SeedMapper collects seed hits for the active reads of one seeding pass,
// appending them to the per-read hit deques. Deterministic given the same
// index and pass number.
type SeedMapper interface {
	Map(anchor Mate, pass int, active []uint32, reads *ReadBatch, deques *HitDeques, p *Params) error
}

// HitSelector materializes up to HitsPerRead candidate rows per active read
// into the hit queues. Reads that should keep extending go to the active-read
// output queue; reads whose hits are exhausted but that have not satisfied
// the stopping criteria go to the seed output queue for re-seeding.
// The returned count is valid once Select returns (the hard synchronization
// point of the pipeline).
type HitSelector interface {
	Select(ctx *SelectContext, state *PipelineState, p *Params) (int, error)
}

// Locator resolves the coarse location encoding of selected hits into
// absolute linear genome coordinates. Both calls are idempotent on an
// unchanged scoring queue.
type Locator interface {
	LocateInit(state *PipelineState, p *Params) error
	LocateLookup(state *PipelineState, p *Params) error
}

// Scorer evaluates selected hits. ScoreAnchor writes one score per selected
// entry, WorstScore for entries it could not evaluate; ScoreOpposite writes
// opposite-mate scores for the compacted candidate subset only.
type Scorer interface {
	ScoreAnchor(bandLen int, state *PipelineState, p *Params) error
	ScoreOpposite(state *PipelineState, p *Params) error
}

// Reducer folds the round's candidate scores into the best-alignment
// registries. It is the only writer of the registries and must be
// deterministic under identical inputs, with first-discovered-wins
// tie-breaking.
type Reducer interface {
	Reduce(ctx *ReduceContext, state *PipelineState, p *Params) error
}

// Tracebacker computes alignment transcripts and the exact final score for a
// read-index subset. A nil idx means the full [0, count) range; entries whose
// registry slot of the given rank is empty are skipped.
type Tracebacker interface {
	BacktrackBanded(rank Rank, idx []uint32, reg []BestAlignments, mate Mate, bandLen int, tb *TracebackState, p *Params) error
	BacktrackFull(rank Rank, idx []uint32, reg []BestAlignments, mate Mate, tb *TracebackState, p *Params) error
	// FinishAlignment rescores the found alignments with the exact scoring
	// rule (ExactScheme) regardless of which scheme drove the search, and
	// stamps the finished marker.
	FinishAlignment(rank Rank, idx []uint32, reg []BestAlignments, mate Mate, bandLen int, tb *TracebackState, p *Params) error
}

// Backend bundles all compute primitives of one accelerator implementation.
type Backend interface {
	SeedMapper
	HitSelector
	Locator
	Scorer
	Reducer
	Tracebacker
}

// OutputSink consumes one finished batch per (mate, rank) tuple per input
// batch; a size-zero subset still produces a call.
type OutputSink interface {
	Process(batch *OutputBatch, mate Mate, rank Rank) error
}

// DebugDumper persists pipeline state for offline inspection. It is a pure
// side channel: the core never alters control flow based on it.
type DebugDumper interface {
	DumpReads(ses *Session, anchor Mate, pass int, active []uint32)
	DumpSelection(ses *Session, anchor Mate, pass, extPass int, state *PipelineState)
}
