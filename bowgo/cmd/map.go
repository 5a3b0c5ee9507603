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

package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shenwei356/bio/seq"
	"github.com/shenwei356/bio/seqio/fastx"
	"github.com/spf13/cobra"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"

	"github.com/bowgo/bowgo/bowgo/align"
	"github.com/bowgo/bowgo/bowgo/index"
	"github.com/bowgo/bowgo/bowgo/sam"
)

var mapCmd = &cobra.Command{
	Use:   "map",
	Short: "align paired-end reads against reference sequences",
	Long: `align paired-end reads against reference sequences

Attentions:
  1. References should be (gzipped) FASTA files, reads (gzipped) FASTQ
     with both mates in the same order.
  2. Output is SAM; positions are 1-based.

`,
	Run: func(cmd *cobra.Command, args []string) {
		opt := getOptions(cmd)
		seq.ValidateSeq = false

		var fhLog *os.File
		if opt.Log2File {
			fhLog = addLog(opt.LogFile, opt.Verbose)
		}

		verbose := opt.Verbose
		outputLog := opt.Verbose || opt.Log2File

		timeStart := time.Now()
		defer func() {
			if outputLog {
				log.Info()
				log.Infof("elapsed time: %s", time.Since(timeStart))
				log.Info()
			}
			if opt.Log2File {
				fhLog.Close()
			}
		}()

		var err error

		// ---------------------------------------------------------------

		refFiles := getFlagStringSlice(cmd, "ref")
		refDir := getFlagString(cmd, "ref-dir")
		refList := getFlagString(cmd, "ref-list")
		read1 := getFlagString(cmd, "read1")
		read2 := getFlagString(cmd, "read2")
		outFile := getFlagString(cmd, "out-file")
		schemeName := getFlagString(cmd, "scheme")
		histFile := getFlagString(cmd, "score-hist")

		if read1 == "" || read2 == "" {
			checkError(fmt.Errorf("flags -1/--read1 and -2/--read2 needed"))
		}

		params := loadMapParams(cmd)

		scheme, err := align.SchemeByName(schemeName)
		checkError(err)

		// ---------------------------------------------------------------
		// input files

		if refDir != "" {
			pattern := regexp.MustCompile(`\.(fa|fasta|fna)(\.gz)?$`)
			var fs []string
			fs, err = getFileListFromDir(refDir, pattern, opt.NumCPUs)
			checkError(err)
			refFiles = append(refFiles, fs...)
		}
		if refList != "" {
			var fs []string
			fs, err = readFileList(refList)
			checkError(err)
			refFiles = append(refFiles, fs...)
		}
		if len(refFiles) == 0 {
			checkError(fmt.Errorf("flag -d/--ref, -D/--ref-dir or -X/--ref-list needed"))
		}
		sort.Strings(refFiles)

		checkFiles(refFiles...)
		checkFiles(read1, read2)

		outFileClean := filepath.Clean(outFile)
		for _, file := range append([]string{read1, read2}, refFiles...) {
			if !isStdin(file) && filepath.Clean(file) == outFileClean {
				checkError(fmt.Errorf("out file should not be one of the input files"))
			}
		}

		if outputLog {
			log.Infof("bowgo v%s", VERSION)
			log.Info()
			log.Infof("  %d reference file(s) given", len(refFiles))
		}

		// ---------------------------------------------------------------
		// indexing

		iopt := index.DefaultOptions
		iopt.K = getFlagPositiveInt(cmd, "seed-kmer")
		iopt.MaxLocsPerSeed = getFlagPositiveInt(cmd, "max-seed-locs")

		idx, err := index.New(iopt)
		checkError(err)

		var pbs *mpb.Progress
		var bar *mpb.Bar
		if verbose {
			pbs = mpb.New(mpb.WithWidth(40), mpb.WithOutput(os.Stderr))
			bar = pbs.AddBar(int64(len(refFiles)),
				mpb.PrependDecorators(
					decor.Name("indexed files: ", decor.WC{W: len("indexed files: "), C: decor.DindentRight}),
					decor.CountersNoUnit("%d / %d", decor.WCSyncWidth),
				),
				mpb.AppendDecorators(
					decor.OnComplete(decor.Name(""), ". done"),
				),
			)
		}

		var record *fastx.Record
		for _, file := range refFiles {
			var fastxReader *fastx.Reader
			fastxReader, err = fastx.NewReader(nil, file, "")
			checkError(err)
			for {
				record, err = fastxReader.Read()
				if err != nil {
					if err == io.EOF {
						break
					}
					checkError(err)
					break
				}
				checkError(idx.AddSequence(string(record.Name), record.Seq.Seq))
			}
			fastxReader.Close()
			if verbose {
				bar.Increment()
			}
		}
		if verbose {
			pbs.Wait()
		}
		checkError(idx.Seal())

		if outputLog {
			log.Infof("indexed %d sequence(s), %d bases, in %s",
				idx.NumContigs(), idx.GenomeLength(), time.Since(timeStart))
			log.Info()
			log.Info("mapping ...")
		}

		// ---------------------------------------------------------------
		// output

		outfh, gw, w, err := outStream(outFile, strings.HasSuffix(outFile, ".gz"), opt.CompressionLevel)
		checkError(err)
		defer func() {
			outfh.Flush()
			if gw != nil {
				gw.Close()
			}
			w.Close()
		}()

		refs := make([]sam.Ref, 0, idx.NumContigs())
		for _, c := range idx.Contigs() {
			refs = append(refs, sam.Ref{Name: c.Name, Len: int(c.End - c.Begin)})
		}
		samWriter := sam.NewWriter(outfh, idx)
		checkError(samWriter.WriteHeader(refs, VERSION))
		sink := &lockedSink{w: samWriter}

		// ---------------------------------------------------------------
		// mapping

		timeStart1 := time.Now()

		ch := make(chan *pairBatch, opt.NumCPUs)
		var wg sync.WaitGroup
		var nDone uint64

		sessions := make([]*align.Session, opt.NumCPUs)
		for i := 0; i < opt.NumCPUs; i++ {
			var aligner *align.Aligner
			aligner, err = align.NewAligner(index.NewBackend(idx), sink, scheme, params)
			checkError(err)
			if params.DumpFile != "" {
				aligner.SetDumper(&align.FileDumper{Prefix: params.DumpFile})
			}
			ses := aligner.NewSession()
			sessions[i] = ses

			wg.Add(1)
			go func(aligner *align.Aligner, ses *align.Session) {
				defer wg.Done()
				for pb := range ch {
					checkError(aligner.BestApprox(ses, pb.reads1, pb.reads2))

					n := atomic.AddUint64(&nDone, uint64(pb.reads1.Len()))
					if verbose {
						fmt.Fprintf(os.Stderr, "processed pairs: %d\r", n)
					}

					pb.reads1.Reset()
					pb.reads2.Reset()
					poolPairBatch.Put(pb)
				}
			}(aligner, ses)
		}

		reader1, err := fastx.NewReader(nil, read1, "")
		checkError(err)
		reader2, err := fastx.NewReader(nil, read2, "")
		checkError(err)

		pb := poolPairBatch.Get().(*pairBatch)
		var r1, r2 *fastx.Record
		for {
			r1, err = reader1.Read()
			if err != nil {
				if err == io.EOF {
					break
				}
				checkError(err)
				break
			}
			r2, err = reader2.Read()
			if err != nil {
				if err == io.EOF {
					checkError(fmt.Errorf("%s: fewer reads than %s", read2, read1))
				}
				checkError(err)
				break
			}

			pb.reads1.Append(r1.ID, r1.Seq.Seq, r1.Seq.Qual)
			pb.reads2.Append(r2.ID, r2.Seq.Seq, r2.Seq.Qual)

			if pb.reads1.Len() == params.BatchCapacity {
				ch <- pb
				pb = poolPairBatch.Get().(*pairBatch)
			}
		}
		if _, err2 := reader2.Read(); err2 == nil {
			checkError(fmt.Errorf("%s: more reads than %s", read2, read1))
		}
		reader1.Close()
		reader2.Close()

		if pb.reads1.Len() > 0 {
			ch <- pb
		}
		close(ch)
		wg.Wait()

		// ---------------------------------------------------------------
		// report

		stats := &align.Stats{}
		for _, ses := range sessions {
			stats.Merge(ses.Stats)
		}

		if verbose {
			fmt.Fprintln(os.Stderr)
		}
		if outputLog {
			speed := float64(stats.Pairs) / 1e6 / time.Since(timeStart1).Minutes()
			perc := func(n uint64) float64 {
				if stats.Pairs == 0 {
					return 0
				}
				return float64(n) / float64(stats.Pairs) * 100
			}
			log.Infof("processed pairs: %d, speed: %.3f million pairs per minute", stats.Pairs, speed)
			log.Infof("  paired: %.4f%% (%d), unpaired: %.4f%% (%d), unaligned: %.4f%% (%d)",
				perc(stats.Paired), stats.Paired,
				perc(stats.Unpaired), stats.Unpaired,
				perc(stats.Unaligned), stats.Unaligned)
			log.Infof("  second-best alignments: %d, extensions scored: %d, reads re-seeded: %d",
				stats.SecondBest, stats.Extensions, stats.Reseeded)
			mean, stdev := stats.ScoreMeanStdDev()
			log.Infof("  best alignment score: mean %.2f, stdev %.2f", mean, stdev)
			log.Infof("done mapping")
			if outFile != "-" {
				log.Infof("alignments saved to: %s", outFile)
			}
		}

		if histFile != "" {
			checkError(stats.SaveScoreHist(histFile))
			if outputLog {
				log.Infof("score histogram saved to: %s", histFile)
			}
		}
	},
}

// loadMapParams loads the parameter file if given and applies flag overrides.
func loadMapParams(cmd *cobra.Command) *align.Params {
	var params *align.Params
	if file := getFlagString(cmd, "params"); file != "" {
		var err error
		params, err = align.LoadParams(file)
		checkError(err)
	} else {
		p := align.DefaultParams
		params = &p
	}

	if cmd.Flags().Changed("max-reseed") {
		params.MaxReseed = getFlagNonNegativeInt(cmd, "max-reseed")
	}
	if cmd.Flags().Changed("max-ext") {
		params.MaxExt = getFlagPositiveInt(cmd, "max-ext")
	}
	if cmd.Flags().Changed("batch-size") {
		params.BatchCapacity = getFlagPositiveInt(cmd, "batch-size")
	}
	if cmd.Flags().Changed("max-dist") {
		params.MaxDist = getFlagNonNegativeInt(cmd, "max-dist")
	}
	if cmd.Flags().Changed("min-score") {
		params.MinScore = getFlagInt(cmd, "min-score")
	}
	if cmd.Flags().Changed("top-seed") {
		params.TopSeed = getFlagBool(cmd, "top-seed")
	}
	if cmd.Flags().Changed("min-frag") {
		params.MinFragLen = getFlagNonNegativeInt(cmd, "min-frag")
	}
	if cmd.Flags().Changed("max-frag") {
		params.MaxFragLen = getFlagPositiveInt(cmd, "max-frag")
	}
	if cmd.Flags().Changed("dump-batch") {
		params.DumpBatch = getFlagInt(cmd, "dump-batch")
	}
	if cmd.Flags().Changed("dump-seeding-pass") {
		params.DumpSeedingPass = getFlagInt(cmd, "dump-seeding-pass")
	}
	if cmd.Flags().Changed("dump-extension-pass") {
		params.DumpExtensionPass = getFlagInt(cmd, "dump-extension-pass")
	}
	if cmd.Flags().Changed("dump-file") {
		params.DumpFile = getFlagString(cmd, "dump-file")
	}

	checkError(align.CheckParams(params))
	return params
}

type pairBatch struct {
	reads1 *align.ReadBatch
	reads2 *align.ReadBatch
}

var poolPairBatch = &sync.Pool{New: func() interface{} {
	return &pairBatch{
		reads1: &align.ReadBatch{},
		reads2: &align.ReadBatch{},
	}
}}

// lockedSink serializes output batches from concurrent workers.
type lockedSink struct {
	mu sync.Mutex
	w  *sam.Writer
}

func (s *lockedSink) Process(batch *align.OutputBatch, mate align.Mate, rank align.Rank) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Process(batch, mate, rank)
}

func init() {
	RootCmd.AddCommand(mapCmd)

	mapCmd.Flags().StringSliceP("ref", "d", nil,
		formatFlagUsage(`Reference FASTA file(s), possibly gzipped.`))
	mapCmd.Flags().StringP("ref-dir", "D", "",
		formatFlagUsage(`Directory containing reference FASTA files.`))
	mapCmd.Flags().StringP("ref-list", "X", "",
		formatFlagUsage(`File with one reference FASTA file per line.`))
	mapCmd.Flags().StringP("read1", "1", "",
		formatFlagUsage(`FASTQ file of the first mates.`))
	mapCmd.Flags().StringP("read2", "2", "",
		formatFlagUsage(`FASTQ file of the second mates.`))
	mapCmd.Flags().StringP("out-file", "o", "-",
		formatFlagUsage(`Out file, supports a ".gz" suffix ("-" for stdout).`))

	mapCmd.Flags().StringP("params", "p", "",
		formatFlagUsage(`Parameter file (TOML), flag values below override it.`))
	mapCmd.Flags().StringP("scheme", "s", "local",
		formatFlagUsage(`Scoring scheme for the search, "edit" or "local".`))

	mapCmd.Flags().IntP("max-reseed", "", align.DefaultParams.MaxReseed,
		formatFlagUsage(`Maximum number of re-seeding passes per mate.`))
	mapCmd.Flags().IntP("max-ext", "", align.DefaultParams.MaxExt,
		formatFlagUsage(`Maximum number of extensions per read per mate.`))
	mapCmd.Flags().IntP("batch-size", "b", align.DefaultParams.BatchCapacity,
		formatFlagUsage(`Read pairs per processing batch.`))
	mapCmd.Flags().IntP("max-dist", "", align.DefaultParams.MaxDist,
		formatFlagUsage(`Maximum edit distance, drives the DP band width.`))
	mapCmd.Flags().IntP("min-score", "", align.DefaultParams.MinScore,
		formatFlagUsage(`Minimum alignment score under the "local" scheme.`))
	mapCmd.Flags().BoolP("top-seed", "", false,
		formatFlagUsage(`Examine the top end of seed-hit ranges first.`))
	mapCmd.Flags().IntP("min-frag", "", align.DefaultParams.MinFragLen,
		formatFlagUsage(`Minimum fragment length for concordant pairs.`))
	mapCmd.Flags().IntP("max-frag", "", align.DefaultParams.MaxFragLen,
		formatFlagUsage(`Maximum fragment length for concordant pairs.`))

	mapCmd.Flags().IntP("seed-kmer", "k", index.DefaultOptions.K,
		formatFlagUsage(`Seed k-mer size.`))
	mapCmd.Flags().IntP("max-seed-locs", "", index.DefaultOptions.MaxLocsPerSeed,
		formatFlagUsage(`Skip seeds with more genome locations than this.`))

	mapCmd.Flags().IntP("dump-batch", "", -1,
		formatFlagUsage(`Batch number to dump pipeline state for (-1 for none).`))
	mapCmd.Flags().IntP("dump-seeding-pass", "", -1,
		formatFlagUsage(`Seeding pass to dump (-1 for none).`))
	mapCmd.Flags().IntP("dump-extension-pass", "", -1,
		formatFlagUsage(`Extension pass to dump (-1 for none).`))
	mapCmd.Flags().StringP("dump-file", "", "",
		formatFlagUsage(`Path prefix of dump files.`))

	mapCmd.Flags().StringP("score-hist", "", "",
		formatFlagUsage(`Save a histogram of best alignment scores to this image file.`))

	mapCmd.SetUsageTemplate(usageTemplate("-d ref.fasta -1 reads_1.fq.gz -2 reads_2.fq.gz [-o out.sam.gz]"))
}
