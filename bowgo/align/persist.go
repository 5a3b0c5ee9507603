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

	"github.com/shenwei356/xopen"
)

// FileDumper writes pipeline state selected by the dump parameters to
// tab-delimited files for offline inspection. Dump failures are logged and
// swallowed; the dumper never influences the pipeline.
type FileDumper struct {
	Prefix string // output path prefix; a ".gz" prefix suffix enables compression
}

func (d *FileDumper) DumpReads(ses *Session, anchor Mate, pass int, active []uint32) {
	file := fmt.Sprintf("%s.b%d.%s.p%d.reads.tsv", d.Prefix, ses.BatchNumber, anchor, pass)
	fh, err := xopen.Wopen(file)
	if err != nil {
		log.Warningf("dump reads: %s", err)
		return
	}
	defer fh.Close()

	reads := ses.state.ReadsAnchor
	fmt.Fprintln(fh, "read\tid\tlen")
	for _, r := range active {
		fmt.Fprintf(fh, "%d\t%s\t%d\n", r, reads.Reads[r].ID, len(reads.Reads[r].Seq))
	}
}

func (d *FileDumper) DumpSelection(ses *Session, anchor Mate, pass, extPass int, state *PipelineState) {
	file := fmt.Sprintf("%s.b%d.%s.p%d.e%d.hits.tsv", d.Prefix, ses.BatchNumber, anchor, pass, extPass)
	fh, err := xopen.Wopen(file)
	if err != nil {
		log.Warningf("dump selection: %s", err)
		return
	}
	defer fh.Close()

	fmt.Fprintf(fh, "# hits_per_read=%d, hits_queue_size=%d\n", state.HitsPerRead, state.HitsQueueSize)
	fmt.Fprintln(fh, "read\text\tloc\trc\tscore\topposite_score")
	h := state.Hits
	for i := 0; i < state.HitsQueueSize; i++ {
		fmt.Fprintf(fh, "%d\t%d\t%d\t%v\t%d\t%d\n",
			h.Ref[i].ReadID(), h.Ref[i].Ext(), h.Loc[i], h.RC[i], h.Score[i], h.OppositeScore[i])
	}
}
