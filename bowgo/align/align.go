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

// Package align implements the best-approx alignment core of bowgo:
// a multi-pass seeding/extension scheduling pipeline that, for a batch of
// paired reads, tracks the best and second-best alignment per read per mate,
// resolves mate pairing, and assembles finished output batches.
//
// The compute primitives (seed search, hit selection, coordinate resolution,
// dynamic-programming scoring, score reduction, traceback and finishing) are
// external collaborators behind the Backend interface; package index provides
// the reference CPU implementation.
package align

// Mate identifies one end of a read pair.
type Mate uint8

const (
	Mate1 Mate = 0
	Mate2 Mate = 1
)

// Opposite returns the other mate.
func (m Mate) Opposite() Mate { return m ^ 1 }

func (m Mate) String() string {
	if m == Mate1 {
		return "mate1"
	}
	return "mate2"
}

// Rank selects one of the two alignment slots kept per read per mate.
type Rank uint8

const (
	BestScore Rank = iota
	SecondBestScore
)

func (r Rank) String() string {
	if r == BestScore {
		return "best"
	}
	return "second-best"
}

// Read is an immutable query sequence within a batch.
type Read struct {
	ID   []byte
	Seq  []byte
	Qual []byte
}

// ReadBatch is one fixed-size group of reads of a single mate,
// processed together through the full pipeline.
type ReadBatch struct {
	Reads []Read
}

func (b *ReadBatch) Len() int { return len(b.Reads) }

func (b *ReadBatch) Reset() { b.Reads = b.Reads[:0] }

// Append copies a read into the batch; the arguments may be reused by the caller.
func (b *ReadBatch) Append(id, seq, qual []byte) {
	var r Read
	if n := len(b.Reads); n < cap(b.Reads) {
		b.Reads = b.Reads[:n+1]
		r = b.Reads[n]
		r.ID = append(r.ID[:0], id...)
		r.Seq = append(r.Seq[:0], seq...)
		r.Qual = append(r.Qual[:0], qual...)
		b.Reads[n] = r
		return
	}
	b.Reads = append(b.Reads, Read{
		ID:   append([]byte(nil), id...),
		Seq:  append([]byte(nil), seq...),
		Qual: append([]byte(nil), qual...),
	})
}
