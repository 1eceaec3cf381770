package cnnconsensus

import (
	"math"

	"github.com/biogo/hts/sam"

	"github.com/grailbio/base/log"
	"github.com/grailbio/consensus/consensus"
	"github.com/grailbio/consensus/internal/cerrors"
	"github.com/grailbio/consensus/msa"
	"github.com/grailbio/consensus/readrecord"
)

// Inferencer runs the trained CNN over a feature tensor, returning one
// 5-wide softmax row (gap, A, C, G, T) per column. Implementations own model
// loading and batching; this package only calls Infer once per cluster.
type Inferencer interface {
	Infer(features FeatureMatrix) (ProbMatrix, error)
}

// StrategyConfig carries the knobs CnnConsensusStrategy needs beyond the
// Inferencer itself: MinDepth mirrors consensus.Config's field of the same
// name (spec.md §6).
type StrategyConfig struct {
	MinDepth int
}

// DefaultStrategyConfig matches spec.md §6's stated default.
var DefaultStrategyConfig = StrategyConfig{MinDepth: 2}

// CnnConsensusStrategy implements spec.md §4.5: build the MSA, extract
// features, run the Inferencer, calibrate, argmax, and reconstruct a
// ConsensusRead -- the CNN-backed counterpart to
// consensus.MajorityVotingConsensus.
type CnnConsensusStrategy struct {
	Config     StrategyConfig
	Builder    *msa.MsaBuilder
	Features   FeatureBuilder
	Calibrator ProbabilityCalibrator
	Inferencer Inferencer
}

// NewCnnConsensusStrategy constructs a strategy around the given Inferencer.
func NewCnnConsensusStrategy(inf Inferencer, cfg StrategyConfig) (*CnnConsensusStrategy, error) {
	if inf == nil {
		return nil, cerrors.E(cerrors.ConfigurationError, "cnnconsensus: Inferencer must not be nil")
	}
	return &CnnConsensusStrategy{
		Config:     cfg,
		Builder:    msa.NewMsaBuilder(msa.DefaultBuilderOptions),
		Inferencer: inf,
	}, nil
}

// Call runs the full strategy over one cluster of reads.
func (s *CnnConsensusStrategy) Call(tag string, reads []readrecord.ReadRecord) (*consensus.ConsensusRead, error) {
	info, err := s.Builder.Build(reads)
	if err != nil {
		return nil, err
	}
	info.TrimAlignmentInfo()
	info.RemoveEmptyReads()
	if info.MSA.Rows == 0 || info.MSA.Cols == 0 {
		return nil, cerrors.E(cerrors.DegenerateCluster, "cnnconsensus: nothing survived trimming for", tag)
	}
	info.SetEffectiveNumPass()

	features := s.Features.Build(info)
	probs, err := s.Inferencer.Infer(features)
	if err != nil {
		return nil, cerrors.E(cerrors.InferenceFailed, err, "cnnconsensus: inference failed for", tag)
	}
	if probs.Cols != features.Cols {
		return nil, cerrors.E(cerrors.InferenceFailed,
			"cnnconsensus: inferencer returned", probs.Cols, "columns, want", features.Cols)
	}
	s.Calibrator.Calibrate(&probs, info.NumPassPerColumn, features.BasePct())

	bases := make([]byte, 0, probs.Cols)
	quals := make([]byte, 0, probs.Cols)
	var cigar sam.Cigar
	var runOp sam.CigarOpType
	var runLen int
	flush := func() {
		if runLen > 0 {
			cigar = append(cigar, sam.NewCigarOp(runOp, runLen))
			runLen = 0
		}
	}

	for c := 0; c < probs.Cols; c++ {
		if info.NumPassPerColumn[c] < s.Config.MinDepth {
			continue
		}
		row := probs.Probs[c]
		best := argmaxIndex(row[:])
		call := symbolOrder[best]
		isInsertion := info.Columns[c].IsInsertion

		var op sam.CigarOpType
		switch {
		case isInsertion:
			op = sam.CigarInsertion
		case call == readrecord.BaseGap:
			op = sam.CigarDeletion
		default:
			op = sam.CigarMatch
		}
		if op != runOp {
			flush()
			runOp = op
		}
		runLen++

		if call != readrecord.BaseGap {
			bases = append(bases, call.Byte())
			quals = append(quals, probToPhred(row[best]))
		}
	}
	flush()

	read := &consensus.ConsensusRead{
		Bases:    string(bases),
		Quals:    quals,
		Cigar:    cigar,
		RefStart: info.RefStart,
		NumPass:  info.EffectiveNumPass,
	}
	read.Name = consensus.ReadName(tag, read.Bases, cigar)
	log.Debug.Printf("cnnconsensus: %s called %d bases from %d reads (depth %d)",
		tag, len(read.Bases), len(reads), read.NumPass)
	return read, nil
}

// probToPhred converts a calibrated call probability to a Phred score,
// capped at consensus.MaxPhredScore, matching the majority-vote path's
// quality scale so both strategies' ConsensusRead.Quals are comparable.
func probToPhred(p float32) byte {
	if p >= 1 {
		return consensus.MaxPhredScore
	}
	if p <= 0 {
		return 0
	}
	q := -10 * math.Log10(1-float64(p))
	if q > consensus.MaxPhredScore {
		q = consensus.MaxPhredScore
	}
	if q < 0 {
		q = 0
	}
	return byte(q)
}
