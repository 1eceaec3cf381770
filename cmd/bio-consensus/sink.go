package main

import (
	"github.com/grailbio/consensus/consensus"
	"github.com/grailbio/consensus/encoding/fastq"
)

// fastqSink adapts dlworker.Sink to a fastq.Writer, the CLI's output format
// for collapsed consensus reads.
type fastqSink struct {
	w   *fastq.Writer
	err error
}

func newFastqSink(w *fastq.Writer) *fastqSink {
	return &fastqSink{w: w}
}

// Consume implements dlworker.Sink.
func (s *fastqSink) Consume(r *consensus.ConsensusRead) {
	if s.err != nil {
		return
	}
	qual := make([]byte, len(r.Quals))
	for i, q := range r.Quals {
		qual[i] = q + 33 // Phred+33 FASTQ quality encoding.
	}
	s.err = s.w.Write(&fastq.Read{
		ID:   "@" + r.Name,
		Seq:  r.Bases,
		Unk:  "+",
		Qual: string(qual),
	})
}

// Err returns the first write error Consume encountered, if any.
func (s *fastqSink) Err() error { return s.err }
