// bio-consensus collapses a BAM/SAM file of aligned reads into one
// majority-vote consensus read per UMI cluster, writing the result as
// FASTQ.
//
// Usage: bio-consensus [OPTIONS] input.bam output.fastq
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/grailbio/base/file"
	"github.com/grailbio/base/grail"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/vcontext"

	"github.com/grailbio/consensus/consensus"
)

var (
	samInput          = flag.Bool("sam", false, "Treat the input as SAM rather than BAM")
	umiTag            = flag.String("umi-tag", "RX", "Two-letter SAM aux tag carrying each read's UMI")
	umiWhitelistPath  = flag.String("umi-whitelist", "", "Optional path to a newline-separated list of known UMI sequences used to correct sequencing errors before clustering")
	flagExclude       = flag.Int("flag-exclude", 0xf00, "Reads with a FLAG bit intersecting this value are skipped, matching bio-pileup's -flag-exclude")
	majorityRatio     = flag.Float64("majority-ratio", consensus.DefaultConfig.MajorityRatio, "Minimum fraction of reads a base must carry at a column to be called outright")
	minDepth          = flag.Int("min-depth", consensus.DefaultConfig.MinDepth, "Columns with fewer passing reads than this are dropped from the consensus")
	deletionThreshold = flag.Float64("deletion-threshold", consensus.DefaultConfig.DeletionThreshold, "Minimum fraction of reads carrying a gap at a column for a deletion to be called")
)

func usage() {
	fmt.Printf("Usage: %s [OPTIONS] {b,s}ampath outpath.fastq\n", os.Args[0])
	fmt.Printf("Other options:\n")
	flag.PrintDefaults()
}

func main() {
	flag.Usage = usage
	shutdown := grail.Init()
	defer shutdown()

	allArgs := flag.Args()
	n := flag.NArg()
	positional := allArgs[len(allArgs)-n:]
	if n != 2 {
		log.Fatalf("expected exactly 2 positional arguments (input and output paths), got: '%s'", strings.Join(positional, " "))
	}

	ctx := vcontext.Background()
	var whitelist []byte
	if *umiWhitelistPath != "" {
		f, err := file.Open(ctx, *umiWhitelistPath)
		if err != nil {
			log.Panicf("open umi whitelist: %v", err)
		}
		defer f.Close(ctx)
		whitelist, err = readAll(ctx, f)
		if err != nil {
			log.Panicf("read umi whitelist: %v", err)
		}
	}

	opts := Opts{
		UMITag:       *umiTag,
		UMIWhitelist: whitelist,
		FlagExclude:  *flagExclude,
		Consensus: consensus.Config{
			MajorityRatio:     *majorityRatio,
			MinDepth:          *minDepth,
			DeletionThreshold: *deletionThreshold,
		},
	}
	if err := run(ctx, positional[0], positional[1], *samInput, opts); err != nil {
		log.Panicf("%v", err)
	}
	log.Debug.Printf("exiting")
}
