package main

import (
	"context"
	"io"
	"io/ioutil"
	"runtime"

	"github.com/biogo/hts/bam"
	"github.com/biogo/hts/sam"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"

	"github.com/grailbio/consensus/consensus"
	"github.com/grailbio/consensus/encoding/fastq"
	"github.com/grailbio/consensus/internal/cerrors"
)

func readAll(ctx context.Context, f file.File) ([]byte, error) {
	return ioutil.ReadAll(f.Reader(ctx))
}

// recordReader is implemented by both biogo sam.Reader and biogo bam.Reader,
// the same seam cmd/bio-bam-sort uses to accept either format transparently.
type recordReader interface {
	Header() *sam.Header
	Read() (*sam.Record, error)
}

func openInput(ctx context.Context, path string, isSAM bool) (recordReader, error) {
	f, err := file.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	in := f.Reader(ctx)
	if isSAM {
		return sam.NewReader(in)
	}
	return bam.NewReader(in, runtime.NumCPU())
}

// run reads every record from inPath, groups them into UMI clusters, calls
// the majority-voting consensus over each, and writes the results as FASTQ
// to outPath.
func run(ctx context.Context, inPath, outPath string, isSAM bool, opts Opts) error {
	reader, err := openInput(ctx, inPath, isSAM)
	if err != nil {
		return err
	}

	cl, err := newClusterer(opts.UMITag, opts.UMIWhitelist, opts.FlagExclude)
	if err != nil {
		return err
	}
	for {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		cl.Add(rec)
	}

	voter, err := consensus.NewMajorityVotingConsensus(opts.Consensus)
	if err != nil {
		return err
	}

	outFile, err := file.Create(ctx, outPath)
	if err != nil {
		return err
	}
	defer outFile.Close(ctx)
	sink := newFastqSink(fastq.NewWriter(outFile.Writer(ctx)))

	var called, skipped int
	for _, cluster := range cl.Clusters() {
		read, err := voter.Vote(cluster.Tag, cluster.Reads)
		if err != nil {
			if cerrors.Is(cerrors.DegenerateCluster, err) || cerrors.Is(cerrors.EmptyCluster, err) {
				skipped++
				continue
			}
			return err
		}
		sink.Consume(read)
		called++
	}
	if err := sink.Err(); err != nil {
		return err
	}
	log.Printf("bio-consensus: called %d consensus reads, skipped %d degenerate clusters", called, skipped)
	return nil
}
