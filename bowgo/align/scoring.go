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
	"fmt"
	"math"
)

// WorstScore marks a scoring-queue entry that was not (or could not be)
// evaluated. It is strictly below any threshold a scheme can produce.
const WorstScore int32 = math.MinInt32 / 2

// ScoringScheme is the scoring strategy used during search.
// The set of schemes is closed; one is chosen per run and injected into the
// pipeline. The finishing stage always rescores with ExactScheme regardless
// of which scheme drove the search.
type ScoringScheme interface {
	Name() string

	MatchScore() int32
	MismatchScore() int32
	GapOpenScore() int32
	GapExtendScore() int32

	// ThresholdScore is the exclusive lower bound a candidate must beat to
	// occupy a registry slot; registries are initialized with it.
	ThresholdScore(p *Params) int32
	// ScoreLimit is the lowest score the anchor scorer reports as a real
	// score; anything below becomes WorstScore.
	ScoreLimit(p *Params) int32
}

// SchemeByName resolves a scheme from its flag name.
func SchemeByName(name string) (ScoringScheme, error) {
	switch name {
	case "edit":
		return &EditDistanceScheme{}, nil
	case "local":
		return &LocalScheme{Match: 2, Mismatch: -4, GapOpen: -6, GapExtend: -1}, nil
	}
	return nil, fmt.Errorf("unknown scoring scheme: %s, available: edit, local", name)
}

// ExactScheme is the scoring rule used by the finishing stage to recompute
// the externally visible score of every found alignment.
func ExactScheme() ScoringScheme {
	return &LocalScheme{Match: 2, Mismatch: -4, GapOpen: -6, GapExtend: -1}
}

// EditDistanceScheme scores alignments as negated edit distance.
type EditDistanceScheme struct{}

func (s *EditDistanceScheme) Name() string          { return "edit" }
func (s *EditDistanceScheme) MatchScore() int32     { return 0 }
func (s *EditDistanceScheme) MismatchScore() int32  { return -1 }
func (s *EditDistanceScheme) GapOpenScore() int32   { return -1 }
func (s *EditDistanceScheme) GapExtendScore() int32 { return -1 }

func (s *EditDistanceScheme) ThresholdScore(p *Params) int32 {
	return int32(-(p.MaxDist + 1))
}

func (s *EditDistanceScheme) ScoreLimit(p *Params) int32 {
	return int32(-p.MaxDist)
}

// LocalScheme is a Smith-Waterman-class scheme with affine-ish gap costs.
type LocalScheme struct {
	Match     int32
	Mismatch  int32
	GapOpen   int32
	GapExtend int32
}

func (s *LocalScheme) Name() string          { return "local" }
func (s *LocalScheme) MatchScore() int32     { return s.Match }
func (s *LocalScheme) MismatchScore() int32  { return s.Mismatch }
func (s *LocalScheme) GapOpenScore() int32   { return s.GapOpen }
func (s *LocalScheme) GapExtendScore() int32 { return s.GapExtend }

func (s *LocalScheme) ThresholdScore(p *Params) int32 {
	return int32(p.MinScore) - 1
}

func (s *LocalScheme) ScoreLimit(p *Params) int32 {
	return int32(p.MinScore)
}
