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

import "fmt"

// PairingOutcome describes the pairing state of one alignment.
type PairingOutcome uint8

const (
	// OutcomeUnaligned is the distinct "no alignment" state of an empty slot.
	OutcomeUnaligned PairingOutcome = iota
	// OutcomePaired means the alignment is concordantly paired with its mate.
	OutcomePaired
	// OutcomeUnpaired means the read aligned but not concordantly with its mate.
	OutcomeUnpaired
)

func (o PairingOutcome) String() string {
	switch o {
	case OutcomePaired:
		return "paired"
	case OutcomeUnpaired:
		return "unpaired"
	}
	return "unaligned"
}

// Alignment is one registry slot: a score, a linear genome location, a strand,
// and the pairing outcome. An empty slot keeps Outcome == OutcomeUnaligned and
// its Score at the initialization threshold.
type Alignment struct {
	Score    int32
	Loc      uint64 // linear genome coordinate (0-based)
	RC       bool
	Outcome  PairingOutcome
	Finished bool // stamped by the finishing stage
}

func (a *Alignment) IsAligned() bool { return a.Outcome != OutcomeUnaligned }

// BestAlignments is the per-read, per-mate two-slot registry.
// It is mutated only by the reduction primitive and becomes read-only once
// all seeding passes for both anchors complete (the finishing stage may stamp
// the Finished flag, nothing else).
type BestAlignments struct {
	Best   Alignment
	Second Alignment
}

// ByRank returns the slot of the given rank.
func (b *BestAlignments) ByRank(r Rank) *Alignment {
	if r == BestScore {
		return &b.Best
	}
	return &b.Second
}

func (b *BestAlignments) IsPaired() bool   { return b.Best.Outcome == OutcomePaired }
func (b *BestAlignments) IsUnpaired() bool { return b.Best.Outcome == OutcomeUnpaired }
func (b *BestAlignments) IsAligned() bool  { return b.Best.IsAligned() }

func (b *BestAlignments) HasSecond() bool         { return b.Second.IsAligned() }
func (b *BestAlignments) HasSecondPaired() bool   { return b.Second.Outcome == OutcomePaired }
func (b *BestAlignments) HasSecondUnpaired() bool { return b.Second.Outcome == OutcomeUnpaired }

// InitAlignments resets a registry before any seeding pass runs.
// threshold seeds both slots so a candidate must strictly beat it.
func InitAlignments(reg []BestAlignments, threshold int32) {
	for i := range reg {
		reg[i].Best = Alignment{Score: threshold}
		reg[i].Second = Alignment{Score: threshold}
	}
}

// Update folds one candidate into the registry.
//
// Contract: an existing best slot is never regressed; an equal-score candidate
// never evicts an existing slot (first-discovered wins, keeping results
// deterministic under reordering of parallel work); the second slot is only
// populated once a best exists, with a no-better score at a location more than
// minSep away (or on the other strand). Returns whether a slot changed.
func (b *BestAlignments) Update(score int32, loc uint64, rc bool, outcome PairingOutcome, minSep uint64) bool {
	if outcome == OutcomeUnaligned {
		return false
	}

	if !b.Best.IsAligned() {
		if score <= b.Best.Score { // below the threshold
			return false
		}
		b.Best = Alignment{Score: score, Loc: loc, RC: rc, Outcome: outcome}
		return true
	}

	distinct := rc != b.Best.RC || locDistance(loc, b.Best.Loc) > minSep

	if score > b.Best.Score {
		if distinct {
			b.Second = b.Best
		}
		b.Best = Alignment{Score: score, Loc: loc, RC: rc, Outcome: outcome}
		b.assertConsistent()
		return true
	}

	if !distinct { // same alignment, not better
		return false
	}
	if score <= b.Second.Score { // covers both the threshold and an occupied slot
		return false
	}
	b.Second = Alignment{Score: score, Loc: loc, RC: rc, Outcome: outcome}
	b.assertConsistent()
	return true
}

func (b *BestAlignments) assertConsistent() {
	if b.Second.IsAligned() {
		if !b.Best.IsAligned() {
			panic("align: second-best alignment without a best")
		}
		if b.Second.Score > b.Best.Score {
			panic(fmt.Sprintf("align: second-best score %d > best score %d",
				b.Second.Score, b.Best.Score))
		}
	}
}

func locDistance(a, b uint64) uint64 {
	if a > b {
		return a - b
	}
	return b - a
}
