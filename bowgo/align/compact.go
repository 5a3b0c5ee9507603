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

// ReadPredicate classifies a read index against the registries.
type ReadPredicate func(read uint32) bool

// CompactIndices fills dst with the read indices in [0, n) satisfying pred,
// preserving order, and returns the filled prefix. dst is reused when large
// enough.
func CompactIndices(dst []uint32, n int, pred ReadPredicate) []uint32 {
	dst = dst[:0]
	for i := 0; i < n; i++ {
		if pred(uint32(i)) {
			dst = append(dst, uint32(i))
		}
	}
	return dst
}

// The six selection predicates of the traceback and output stages.
// The first three classify by the best slot of the given registry, the last
// three by the second-best slot.

func IsPairedPred(reg []BestAlignments) ReadPredicate {
	return func(read uint32) bool { return reg[read].IsPaired() }
}

func IsUnpairedPred(reg []BestAlignments) ReadPredicate {
	return func(read uint32) bool { return reg[read].IsUnpaired() }
}

func IsAlignedPred(reg []BestAlignments) ReadPredicate {
	return func(read uint32) bool { return reg[read].IsAligned() }
}

func HasSecondPred(reg []BestAlignments) ReadPredicate {
	return func(read uint32) bool { return reg[read].HasSecond() }
}

func HasSecondPairedPred(reg []BestAlignments) ReadPredicate {
	return func(read uint32) bool { return reg[read].HasSecondPaired() }
}

func HasSecondUnpairedPred(reg []BestAlignments) ReadPredicate {
	return func(read uint32) bool { return reg[read].HasSecondUnpaired() }
}
