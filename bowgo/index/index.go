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

// Package index provides the reference genome seed index and the CPU
// implementation of the alignment compute primitives.
//
// The index is built in memory at startup from FASTA input: contigs are
// concatenated into one linear coordinate space, contig boundaries are kept
// in an interval tree, and every k-mer position goes into a flat hash-bucket
// seed table keyed by the canonical k-mer code.
package index

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/pkg/errors"
	"github.com/rdleal/intervalst/interval"
	"github.com/shenwei356/bio/seqio/fastx"
	"github.com/shenwei356/kmers"
	"github.com/shenwei356/util/pathutil"
	"github.com/zeebo/wyhash"
)

// Options configures index construction.
type Options struct {
	K              int // seed k-mer size
	BucketBits     int // log2 of the seed-table bucket count
	MaxLocsPerSeed int // drop seeds occurring more often than this (repeats)
}

// DefaultOptions works for bacterial-scale references.
var DefaultOptions = Options{
	K:              16,
	BucketBits:     20,
	MaxLocsPerSeed: 256,
}

// CheckOptions validates index options.
func CheckOptions(opt *Options) error {
	if opt.K < 4 || opt.K > 31 {
		return fmt.Errorf("invalid k: %d, valid range: [4, 31]", opt.K)
	}
	if opt.BucketBits < 8 || opt.BucketBits > 30 {
		return fmt.Errorf("invalid bucket-bits: %d, valid range: [8, 30]", opt.BucketBits)
	}
	if opt.MaxLocsPerSeed < 1 {
		return fmt.Errorf("invalid max-locs-per-seed: %d, should be >= 1", opt.MaxLocsPerSeed)
	}
	return nil
}

// Contig is one reference sequence within the linear coordinate space.
type Contig struct {
	Name  string
	Begin uint64 // inclusive
	End   uint64 // exclusive
}

// seedLocs is one seed-table entry: all genome positions of a canonical k-mer.
// Locations are packed as loc<<1 | strand, strand set when the k-mer matches
// the reverse-complement of the reference at loc.
type seedLocs struct {
	code uint64
	locs []uint64
}

const wyhashSeed = 0x2d358dccaa6c78a5

// Index is the in-memory reference index. Read-only after Build, safe for
// concurrent lookups.
type Index struct {
	opt Options

	genome  []byte
	contigs []Contig
	ctree   *interval.SearchTree[int, uint64]

	buckets [][]seedLocs
	mask    uint64

	sealed bool
}

// New returns an empty index ready for AddSequence calls.
func New(opt Options) (*Index, error) {
	if err := CheckOptions(&opt); err != nil {
		return nil, err
	}
	cmpFn := func(x, y uint64) int {
		switch {
		case x < y:
			return -1
		case x > y:
			return 1
		}
		return 0
	}
	return &Index{
		opt:     opt,
		ctree:   interval.NewSearchTree[int, uint64](cmpFn),
		buckets: make([][]seedLocs, 1<<opt.BucketBits),
		mask:    uint64(1)<<opt.BucketBits - 1,
	}, nil
}

// NewFromFasta builds an index from FASTA files (possibly gzipped).
func NewFromFasta(files []string, opt Options) (*Index, error) {
	idx, err := New(opt)
	if err != nil {
		return nil, err
	}
	for _, file := range files {
		if ok, _ := pathutil.Exists(file); !ok {
			return nil, fmt.Errorf("file not found: %s", file)
		}

		fastxReader, err := fastx.NewReader(nil, file, "")
		if err != nil {
			return nil, errors.Wrap(err, file)
		}
		var record *fastx.Record
		for {
			record, err = fastxReader.Read()
			if err != nil {
				if err == io.EOF {
					break
				}
				fastxReader.Close()
				return nil, errors.Wrap(err, file)
			}
			if err = idx.AddSequence(string(record.Name), record.Seq.Seq); err != nil {
				fastxReader.Close()
				return nil, errors.Wrap(err, file)
			}
		}
		fastxReader.Close()
	}
	if err = idx.Seal(); err != nil {
		return nil, err
	}
	return idx, nil
}

// AddSequence appends one contig; the sequence is copied.
func (idx *Index) AddSequence(name string, s []byte) error {
	if idx.sealed {
		return errors.New("index already sealed")
	}
	if len(s) == 0 {
		return fmt.Errorf("empty sequence: %s", name)
	}

	begin := uint64(len(idx.genome))
	end := begin + uint64(len(s))

	c := make([]byte, len(s))
	for i, b := range s {
		c[i] = base2upper[b]
	}
	idx.genome = append(idx.genome, c...)
	idx.contigs = append(idx.contigs, Contig{Name: name, Begin: begin, End: end})
	idx.ctree.Insert(begin, end, len(idx.contigs)-1)
	return nil
}

// Seal builds the seed table; no sequences may be added afterwards.
func (idx *Index) Seal() error {
	if idx.sealed {
		return nil
	}
	if len(idx.genome) == 0 {
		return errors.New("no sequences added")
	}
	k := idx.opt.K
	for _, c := range idx.contigs {
		if int(c.End-c.Begin) < k {
			continue
		}
		// k-mers never cross contig boundaries
		for pos := c.Begin; pos+uint64(k) <= c.End; pos++ {
			code, err := kmers.Encode(idx.genome[pos : pos+uint64(k)])
			if err != nil { // degenerate bases
				continue
			}
			canon, rc := canonical(code, k)
			strand := uint64(0)
			if rc {
				strand = 1
			}
			idx.insertSeed(canon, pos<<1|strand)
		}
	}

	// drop over-represented seeds
	for b, bucket := range idx.buckets {
		n := 0
		for _, e := range bucket {
			if len(e.locs) <= idx.opt.MaxLocsPerSeed {
				bucket[n] = e
				n++
			}
		}
		idx.buckets[b] = bucket[:n]
	}

	idx.sealed = true
	return nil
}

func (idx *Index) insertSeed(canon, packed uint64) {
	b := idx.bucketOf(canon)
	bucket := idx.buckets[b]
	for i := range bucket {
		if bucket[i].code == canon {
			bucket[i].locs = append(bucket[i].locs, packed)
			return
		}
	}
	idx.buckets[b] = append(bucket, seedLocs{code: canon, locs: []uint64{packed}})
}

func (idx *Index) bucketOf(canon uint64) uint64 {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], canon)
	return wyhash.Hash(buf[:], wyhashSeed) & idx.mask
}

// Lookup returns the packed locations (loc<<1 | strand) of a canonical k-mer
// code. The returned slice is owned by the index; do not mutate.
func (idx *Index) Lookup(canon uint64) []uint64 {
	for _, e := range idx.buckets[idx.bucketOf(canon)] {
		if e.code == canon {
			return e.locs
		}
	}
	return nil
}

// K returns the seed k-mer size.
func (idx *Index) K() int { return idx.opt.K }

// GenomeLength returns the total length of the linear coordinate space.
func (idx *Index) GenomeLength() uint64 { return uint64(len(idx.genome)) }

// NumContigs returns the contig count.
func (idx *Index) NumContigs() int { return len(idx.contigs) }

// Contigs returns the contig registry in insertion order.
func (idx *Index) Contigs() []Contig { return idx.contigs }

// Resolve maps a linear coordinate to its contig and contig-relative position.
func (idx *Index) Resolve(loc uint64) (name string, pos uint64, ok bool) {
	ci, found := idx.ctree.AnyIntersection(loc, loc+1)
	if !found {
		return "", 0, false
	}
	c := idx.contigs[ci]
	return c.Name, loc - c.Begin, true
}

// ContigSpan returns the boundaries of the contig containing loc, so DP
// windows can be clipped to never cross contigs.
func (idx *Index) ContigSpan(loc uint64) (begin, end uint64, ok bool) {
	ci, found := idx.ctree.AnyIntersection(loc, loc+1)
	if !found {
		return 0, 0, false
	}
	c := idx.contigs[ci]
	return c.Begin, c.End, true
}

// SubSeq returns the genome slice [begin, end), clipped to the genome.
// The returned slice is owned by the index; do not mutate.
func (idx *Index) SubSeq(begin, end uint64) []byte {
	if begin > uint64(len(idx.genome)) {
		begin = uint64(len(idx.genome))
	}
	if end > uint64(len(idx.genome)) {
		end = uint64(len(idx.genome))
	}
	if begin >= end {
		return nil
	}
	return idx.genome[begin:end]
}

// canonical returns the lexicographically smaller of a k-mer code and its
// reverse complement, and whether the reverse complement won.
func canonical(code uint64, k int) (uint64, bool) {
	if rc := kmers.RevComp(code, k); rc < code {
		return rc, true
	}
	return code, false
}

var base2upper [256]byte

func init() {
	for i := 0; i < 256; i++ {
		base2upper[i] = 'N'
	}
	for _, b := range []byte("ACGTN") {
		base2upper[b] = b
		base2upper[b+'a'-'A'] = b
	}
}
