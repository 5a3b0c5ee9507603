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
	"io"

	"github.com/mitchellh/go-homedir"
	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"
	"github.com/shenwei356/xopen"
)

// Params is the run configuration of the alignment core.
// It is immutable for a batch.
type Params struct {
	// seeding & extension
	MaxReseed     int `toml:"max-reseed"` // extra seeding passes per anchor mate
	MaxExt        int `toml:"max-ext"`    // extension budget per read per anchor
	BatchCapacity int `toml:"batch-capacity"`
	MaxDist       int `toml:"max-dist"` // maximum edit distance, drives the band width
	MinScore      int `toml:"min-score"`
	TopSeed       bool `toml:"top-seed"` // examine the top end of the hit range first

	// mate pairing
	MinFragLen int `toml:"min-frag-len"`
	MaxFragLen int `toml:"max-frag-len"`

	// debug-dump selectors; -1 disables
	DumpBatch         int    `toml:"dump-batch"`
	DumpSeedingPass   int    `toml:"dump-seeding-pass"`
	DumpExtensionPass int    `toml:"dump-extension-pass"`
	DumpFile          string `toml:"dump-file"`
}

// DefaultParams are reasonable defaults for short paired reads.
var DefaultParams = Params{
	MaxReseed:     2,
	MaxExt:        400,
	BatchCapacity: 32768,
	MaxDist:       15,
	MinScore:      0,

	MinFragLen: 0,
	MaxFragLen: 500,

	DumpBatch:         -1,
	DumpSeedingPass:   -1,
	DumpExtensionPass: -1,
}

// CheckParams validates a parameter set.
func CheckParams(p *Params) error {
	if p.MaxReseed < 0 {
		return fmt.Errorf("invalid max-reseed: %d, should be >= 0", p.MaxReseed)
	}
	if p.MaxExt < 1 {
		return fmt.Errorf("invalid max-ext: %d, should be >= 1", p.MaxExt)
	}
	if p.BatchCapacity < 2 || p.BatchCapacity > MaxBatchCapacity {
		return fmt.Errorf("invalid batch-capacity: %d, valid range: [2, %d]", p.BatchCapacity, MaxBatchCapacity)
	}
	if p.MaxDist < 0 {
		return fmt.Errorf("invalid max-dist: %d, should be >= 0", p.MaxDist)
	}
	if p.MinFragLen < 0 || p.MaxFragLen < p.MinFragLen {
		return fmt.Errorf("invalid fragment length range: [%d, %d]", p.MinFragLen, p.MaxFragLen)
	}
	return nil
}

// BandLength derives the DP band width from the maximum edit distance.
func BandLength(maxDist int) int {
	return 2*maxDist + 1
}

// LoadParams reads a TOML parameter file over the defaults.
// The path may start with "~" and may be gzipped.
func LoadParams(file string) (*Params, error) {
	path, err := homedir.Expand(file)
	if err != nil {
		return nil, errors.Wrap(err, file)
	}

	fh, err := xopen.Ropen(path)
	if err != nil {
		return nil, errors.Wrap(err, path)
	}

	data, err := io.ReadAll(fh)
	if err != nil {
		fh.Close()
		return nil, errors.Wrap(err, path)
	}

	p := DefaultParams
	if err = toml.Unmarshal(data, &p); err != nil {
		fh.Close()
		return nil, errors.Wrapf(err, "failed to parse parameter file: %s", path)
	}
	if err = fh.Close(); err != nil {
		return nil, err
	}

	if err = CheckParams(&p); err != nil {
		return nil, err
	}
	return &p, nil
}
