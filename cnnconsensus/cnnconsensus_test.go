package cnnconsensus_test

import (
	"testing"

	"github.com/biogo/hts/sam"
	"github.com/stretchr/testify/require"

	"github.com/grailbio/consensus/cnnconsensus"
	"github.com/grailbio/consensus/msa"
	"github.com/grailbio/consensus/readrecord"
)

func mkRead(name string, start, end int, bases string, cigar sam.Cigar) readrecord.ReadRecord {
	quals := make([]byte, len(bases))
	for i := range quals {
		quals[i] = 20
	}
	return readrecord.ReadRecord{Name: name, Start: start, End: end, Bases: bases, Cigar: cigar, Quals: quals}
}

func matchOp(n int) sam.CigarOp { return sam.NewCigarOp(sam.CigarMatch, n) }

func TestFeatureBuilderShapeAndFractions(t *testing.T) {
	reads := []readrecord.ReadRecord{
		mkRead("r1", 100, 104, "ACGT", sam.Cigar{matchOp(4)}),
		mkRead("r2", 100, 104, "ACGT", sam.Cigar{matchOp(4)}),
	}
	b := msa.NewMsaBuilder(msa.DefaultBuilderOptions)
	info, err := b.Build(reads)
	require.NoError(t, err)

	fb := cnnconsensus.FeatureBuilder{}
	fm := fb.Build(info)
	require.Equal(t, 4, fm.Cols)
	for _, row := range fm.Features {
		require.InDelta(t, float32(2), row[10], 1e-6)
		var sum float32
		for i := 0; i < 5; i++ {
			sum += row[i] + row[5+i]
		}
		require.InDelta(t, float32(1), sum, 1e-6)
	}
}

// TestFeatureBuilderMatchesLiteralFixture reproduces spec.md §8's 3-read,
// 6-column fixture: first column is [1/3,1/3,0,0,0,0,1/3,0,0,0,3]ᵀ, a
// blocked layout of all-forward gap/A/C/G/T then all-reverse.
func TestFeatureBuilderMatchesLiteralFixture(t *testing.T) {
	reads := []readrecord.ReadRecord{
		mkRead("r1", 100, 106, "ACTTC", sam.Cigar{matchOp(1), matchOp(1), matchOp(1), sam.NewCigarOp(sam.CigarDeletion, 1), matchOp(1), matchOp(1)}),
		mkRead("r2", 100, 106, "CTTT", sam.Cigar{sam.NewCigarOp(sam.CigarDeletion, 1), matchOp(1), matchOp(1), matchOp(1), sam.NewCigarOp(sam.CigarDeletion, 1), matchOp(1)}),
		mkRead("r3", 100, 106, "ACTTTC", sam.Cigar{matchOp(6)}),
	}
	reads[2].Reverse = true

	b := msa.NewMsaBuilder(msa.DefaultBuilderOptions)
	info, err := b.Build(reads)
	require.NoError(t, err)
	require.Equal(t, 6, info.MSA.Cols)

	fb := cnnconsensus.FeatureBuilder{}
	fm := fb.Build(info)
	want := [11]float32{1.0 / 3, 1.0 / 3, 0, 0, 0, 0, 1.0 / 3, 0, 0, 0, 3}
	for i, v := range want {
		require.InDeltaf(t, v, fm.Features[0][i], 1e-6, "feature %d", i)
	}
}

func TestProbabilityCalibratorNormalizesAllZeroRowToGap(t *testing.T) {
	probs := cnnconsensus.ProbMatrix{Cols: 1, Probs: [][5]float32{{0, 0, 0, 0, 0}}}
	cal := cnnconsensus.ProbabilityCalibrator{}
	cal.Calibrate(&probs, []int{5}, nil)
	require.InDelta(t, float32(1), probs.Probs[0][0], 1e-6)
}

func TestProbabilityCalibratorDampensLowDepthGap(t *testing.T) {
	probs := cnnconsensus.ProbMatrix{Cols: 1, Probs: [][5]float32{{0.9, 0.025, 0.025, 0.025, 0.025}}}
	cal := cnnconsensus.ProbabilityCalibrator{}
	cal.Calibrate(&probs, []int{2}, nil)
	// depth of 2: the majority-base-count-two rescue keeps one winning
	// entry capped at LowDepthScale and zeroes the rest, including gap.
	require.Less(t, probs.Probs[0][0], float32(0.9))
}

func TestProbabilityCalibratorNormalizeBaseProbFixture(t *testing.T) {
	// original_source/tests/consensus/cnn-consensus-strategy-tests.cpp's
	// NormalizeBaseProb fixture: gap suppressed, at any depth, whenever
	// the raw softmax itself already disagrees with gap as its call.
	probs := cnnconsensus.ProbMatrix{Cols: 5, Probs: [][5]float32{
		{0.2, 0, 0, 0, 0.8},
		{0.8, 0, 0, 0, 0.2},
		{0, 0, 0, 0, 1},
		{0.6, 0, 0, 0, 0.4},
		{0.1, 0, 0, 0, 0.9},
	}}
	numPass := []int{10, 5, 10, 10, 10}
	c := cnnconsensus.ProbabilityCalibrator{}
	// Runs the full Calibrate, but isolates normalizeBaseProb: basePct is nil
	// and every numPass is above 2, so the later gated passes are all no-ops.
	c.Calibrate(&probs, numPass, nil)
	require.InDelta(t, float32(1.0/21), probs.Probs[0][0], 1e-4)
	require.InDelta(t, float32(20.0/21), probs.Probs[0][4], 1e-4)
	require.InDelta(t, float32(0.8), probs.Probs[1][0], 1e-6)
	require.InDelta(t, float32(0.6), probs.Probs[3][0], 1e-6)
	require.InDelta(t, float32(1.0/46), probs.Probs[4][0], 1e-4)
	require.InDelta(t, float32(45.0/46), probs.Probs[4][4], 1e-4)
}

// TestProbabilityCalibratorNormalizeUnderLowDepthLiteral reproduces spec.md
// §8's literal scenario verbatim: row [0.2,0,0,0,0.8] at num_pass=5 (of a
// full depth of 10) calibrates to [0.0476,0,0,0,0.9524].
func TestProbabilityCalibratorNormalizeUnderLowDepthLiteral(t *testing.T) {
	probs := cnnconsensus.ProbMatrix{Cols: 1, Probs: [][5]float32{{0.2, 0, 0, 0, 0.8}}}
	c := cnnconsensus.ProbabilityCalibrator{}
	c.Calibrate(&probs, []int{5}, nil)
	require.InDelta(t, float32(0.0476), probs.Probs[0][0], 1e-4)
	require.InDelta(t, float32(0.9524), probs.Probs[0][4], 1e-4)
}

// TestProbabilityCalibratorGapMajorityLowDepth reproduces
// UpdateBasedProbWhereGapIsMajority: a shallow column (depth below the full
// 10) whose base_pct already settles on gap gets forced fully to gap.
func TestProbabilityCalibratorGapMajorityLowDepth(t *testing.T) {
	probs := cnnconsensus.ProbMatrix{Cols: 1, Probs: [][5]float32{{0.8, 0, 0, 0, 0.2}}}
	basePct := [][5]float32{{0.8, 0, 0, 0, 0.2}}
	c := cnnconsensus.ProbabilityCalibrator{}
	c.Calibrate(&probs, []int{5}, basePct)
	require.Equal(t, [5]float32{1, 0, 0, 0, 0}, probs.Probs[0])
}

// TestProbabilityCalibratorBasePctMeetsMinAF reproduces
// UpdateBasedProbWhereBasePctMeetsMinAF: a full-depth column where base_pct
// confirms a real base clears MinAlleleFrequency clamps a lingering softmax
// gap call to zero.
func TestProbabilityCalibratorBasePctMeetsMinAF(t *testing.T) {
	probs := cnnconsensus.ProbMatrix{Cols: 1, Probs: [][5]float32{{0.1, 0, 0, 0, 1}}}
	basePct := [][5]float32{{0, 0, 0, 0, 1}}
	c := cnnconsensus.ProbabilityCalibrator{}
	c.Calibrate(&probs, []int{10}, basePct)
	require.Equal(t, float32(0), probs.Probs[0][0])
	require.InDelta(t, float32(1), probs.Probs[0][4], 1e-6)
}

// TestProbabilityCalibratorGapIsReplaced reproduces UpdateBaseProbWhereGapIsReplaced:
// base_pct tied at exactly MinAlleleFrequency between gap and a real base
// drops the gap call and caps the real base at LowDepthScale.
func TestProbabilityCalibratorGapIsReplaced(t *testing.T) {
	probs := cnnconsensus.ProbMatrix{Cols: 1, Probs: [][5]float32{{0.5, 0, 0, 0.5, 0}}}
	basePct := [][5]float32{{0.5, 0, 0, 0.5, 0}}
	c := cnnconsensus.ProbabilityCalibrator{}
	c.Calibrate(&probs, []int{10}, basePct)
	require.Equal(t, [5]float32{0, 0, 0, cnnconsensus.LowDepthScale, 0}, probs.Probs[0])
}

// TestProbabilityCalibratorMajorityBaseCountTwoPrefersLowerIndex reproduces
// UpdateBaseProbWhereMajorityBaseCountIsTwo: a depth-2 column tied between
// two non-gap bases keeps the lower-index base, capped at LowDepthScale, and
// zeroes everything else.
func TestProbabilityCalibratorMajorityBaseCountTwoPrefersLowerIndex(t *testing.T) {
	probs := cnnconsensus.ProbMatrix{Cols: 1, Probs: [][5]float32{{0, 0.5, 0, 0, 0.5}}}
	basePct := [][5]float32{{0, 0.5, 0, 0, 0.5}}
	c := cnnconsensus.ProbabilityCalibrator{}
	c.Calibrate(&probs, []int{2}, basePct)
	require.Equal(t, [5]float32{0, cnnconsensus.LowDepthScale, 0, 0, 0}, probs.Probs[0])
}

type stubInferencer struct {
	probs cnnconsensus.ProbMatrix
	err   error
}

func (s stubInferencer) Infer(features cnnconsensus.FeatureMatrix) (cnnconsensus.ProbMatrix, error) {
	if s.err != nil {
		return cnnconsensus.ProbMatrix{}, s.err
	}
	return s.probs, nil
}

func TestCnnConsensusStrategyCallProducesBasesFromArgmax(t *testing.T) {
	reads := []readrecord.ReadRecord{
		mkRead("r1", 100, 104, "ACGT", sam.Cigar{matchOp(4)}),
		mkRead("r2", 100, 104, "ACGT", sam.Cigar{matchOp(4)}),
	}
	// gap, A, C, G, T -- one row per column, each confidently calling the
	// matching base so the strategy should reconstruct "ACGT" verbatim.
	probs := cnnconsensus.ProbMatrix{Cols: 4, Probs: [][5]float32{
		{0, 1, 0, 0, 0},
		{0, 0, 1, 0, 0},
		{0, 0, 0, 1, 0},
		{0, 0, 0, 0, 1},
	}}
	strat, err := cnnconsensus.NewCnnConsensusStrategy(stubInferencer{probs: probs}, cnnconsensus.StrategyConfig{MinDepth: 1})
	require.NoError(t, err)

	out, err := strat.Call("clust", reads)
	require.NoError(t, err)
	require.Equal(t, "ACGT", out.Bases)
	require.Equal(t, sam.Cigar{matchOp(4)}, out.Cigar)
}

func TestNewCnnConsensusStrategyRejectsNilInferencer(t *testing.T) {
	_, err := cnnconsensus.NewCnnConsensusStrategy(nil, cnnconsensus.DefaultStrategyConfig)
	require.Error(t, err)
}
