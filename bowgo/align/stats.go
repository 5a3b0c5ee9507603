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
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// StageTimings accumulates wall time per pipeline stage.
type StageTimings struct {
	Map      time.Duration
	Select   time.Duration
	Sort     time.Duration
	Locate   time.Duration
	Score    time.Duration
	Reduce   time.Duration
	Backtrak time.Duration
}

// Stats accumulates counters across batches. It is owned by a single Session
// and not safe for concurrent mutation.
type Stats struct {
	Pairs uint64 // read pairs processed

	Paired     uint64 // pairs with a concordant best alignment
	Unpaired   uint64 // pairs where only discordant/single-end alignments exist
	Unaligned  uint64
	SecondBest uint64 // pairs carrying a second-best alignment

	Extensions  uint64 // candidate extensions scored
	SeedPasses  uint64
	ExtRounds   uint64
	Reseeded    uint64 // reads re-seeded after exhausting a pass
	QueueHigh   int    // high-water mark of the scoring queue
	BestScores  []float64
	StageTimers StageTimings
}

// Record tallies one finished pair from its mate-1 registry slot.
func (st *Stats) Record(reg *BestAlignments) {
	st.Pairs++
	switch reg.Best.Outcome {
	case OutcomePaired:
		st.Paired++
	case OutcomeUnpaired:
		st.Unpaired++
	default:
		st.Unaligned++
	}
	if reg.HasSecond() {
		st.SecondBest++
	}
	if reg.IsAligned() {
		st.BestScores = append(st.BestScores, float64(reg.Best.Score))
	}
}

// Merge folds another worker's counters into st.
func (st *Stats) Merge(o *Stats) {
	st.Pairs += o.Pairs
	st.Paired += o.Paired
	st.Unpaired += o.Unpaired
	st.Unaligned += o.Unaligned
	st.SecondBest += o.SecondBest
	st.Extensions += o.Extensions
	st.SeedPasses += o.SeedPasses
	st.ExtRounds += o.ExtRounds
	st.Reseeded += o.Reseeded
	st.QueueHigh = max(st.QueueHigh, o.QueueHigh)
	st.BestScores = append(st.BestScores, o.BestScores...)

	st.StageTimers.Map += o.StageTimers.Map
	st.StageTimers.Select += o.StageTimers.Select
	st.StageTimers.Sort += o.StageTimers.Sort
	st.StageTimers.Locate += o.StageTimers.Locate
	st.StageTimers.Score += o.StageTimers.Score
	st.StageTimers.Reduce += o.StageTimers.Reduce
	st.StageTimers.Backtrak += o.StageTimers.Backtrak
}

// ScoreMeanStdDev returns the mean and standard deviation of the recorded
// best-alignment scores.
func (st *Stats) ScoreMeanStdDev() (mean, stdev float64) {
	if len(st.BestScores) == 0 {
		return 0, 0
	}
	return stat.MeanStdDev(st.BestScores, nil)
}

// SaveScoreHist plots a histogram of the recorded best-alignment scores.
func (st *Stats) SaveScoreHist(file string) error {
	if len(st.BestScores) == 0 {
		return errors.New("no aligned pairs recorded, nothing to plot")
	}

	v := make(plotter.Values, len(st.BestScores))
	copy(v, st.BestScores)

	p := plot.New()
	p.Title.Text = "Best alignment scores"
	p.X.Label.Text = "score"
	p.Y.Label.Text = "pairs"

	h, err := plotter.NewHist(v, 32)
	if err != nil {
		return errors.Wrap(err, "building score histogram")
	}
	p.Add(h)

	if err = p.Save(5*vg.Inch, 4*vg.Inch, file); err != nil {
		return errors.Wrapf(err, "saving score histogram to %s", file)
	}
	return nil
}
