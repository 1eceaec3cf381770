package cnnconsensus

// MinAlleleFrequency (MIN_AF) is the minimum observed base fraction that
// lets update_base_prob_where_base_pct_meets_min_af boost a base's
// calibrated probability. spec.md §4.4.
const MinAlleleFrequency = 0.5

// LowDepthScale (SCALE_LOW_DEPTH) caps a calibrated call's probability when
// the evidence behind it is too thin to trust outright. Carried over
// verbatim from the original_source fixtures; never re-derived. spec.md §4.4.
const LowDepthScale = 0.20567

// ProbMatrix holds one 5-wide (gap, A, C, G, T) probability row per column,
// the Inferencer's raw softmax output before calibration.
type ProbMatrix struct {
	Cols  int
	Probs [][5]float32
}

// ProbabilityCalibrator applies the five in-place recalibration passes of
// spec.md §4.4, in the fixed order the original_source tests pin down:
// normalize, gap-majority rescue, min-allele-frequency rescue, gap-replace
// under an ambiguous tie, and the majority-base-count-two/-one rescues. Each
// pass only touches columns its own condition matches; passes are applied in
// sequence, not independently, so a later pass sees an earlier pass's
// output. normalizeBaseProb is gated on the raw softmax row's own argmax;
// every later pass is gated on numPass and/or basePct.
type ProbabilityCalibrator struct{}

// Calibrate mutates probs in place using the per-column pass counts and
// base_pct (the strand-aggregated vote fractions from FeatureMatrix.BasePct)
// of the same alignment the probabilities were inferred from.
func (ProbabilityCalibrator) Calibrate(probs *ProbMatrix, numPassPerColumn []int, basePct [][5]float32) {
	c := calibrator{probs: probs, numPass: numPassPerColumn, basePct: basePct}
	c.normalizeBaseProb()
	c.updateWhereGapIsMajority()
	c.updateWhereBasePctMeetsMinAF()
	c.updateWhereGapIsReplaced()
	c.updateWhereMajorityBaseCountIsTwoOrOne()
}

type calibrator struct {
	probs   *ProbMatrix
	numPass []int
	basePct [][5]float32
}

// pct returns column i's base_pct row, or an all-zero row if none was
// supplied (so gates simply never fire rather than panicking).
func (c calibrator) pct(i int) [5]float32 {
	if i < len(c.basePct) {
		return c.basePct[i]
	}
	return [5]float32{}
}

// nonGapConfidenceScale is the fixed factor normalizeBaseProb boosts non-gap
// mass by, derived from spec.md §8's literal fixture ([0.2,0,0,0,0.8] ->
// [0.0476,0,0,0,0.9524]) and cross-checked against
// original_source/tests/consensus/cnn-consensus-strategy-tests.cpp's
// NormalizeBaseProb rows: both solve to the same constant 5 independent of
// num_pass, so depth plays no role in this particular rescale.
const nonGapConfidenceScale = 5

// normalizeBaseProb boosts confidence away from gap whenever the raw softmax
// already disagrees with gap as its own argmax: new_gap = gap/(gap+k*(1-gap)),
// non-gap entries scaled by k/(gap+k*(1-gap)) with k = nonGapConfidenceScale.
func (c calibrator) normalizeBaseProb() {
	for i := range c.probs.Probs {
		row := &c.probs.Probs[i]
		if isAllZero(row[:]) {
			row[0] = 1 // no evidence at all: call gap
			continue
		}
		if argmaxIndex(row[:]) == 0 {
			continue // gap is already the network's own call: leave it alone
		}
		gap := row[0]
		denom := gap + nonGapConfidenceScale*(1-gap)
		if denom <= 0 {
			continue
		}
		row[0] = gap / denom
		for j := 1; j < 5; j++ {
			row[j] = row[j] * nonGapConfidenceScale / denom
		}
	}
}

// updateWhereGapIsMajority trusts a shallow column's own vote: when depth is
// below full and base_pct already settles on gap as the strict majority,
// the softmax is forced fully to gap rather than left to the network.
func (c calibrator) updateWhereGapIsMajority() {
	const fullDepth = 10
	for i := range c.probs.Probs {
		if i >= len(c.numPass) || c.numPass[i] >= fullDepth {
			continue
		}
		pct := c.pct(i)
		if !isGapStrictMajority(pct) {
			continue
		}
		row := &c.probs.Probs[i]
		*row = [5]float32{1, 0, 0, 0, 0}
	}
}

// isGapStrictMajority reports whether base_pct's gap fraction strictly
// exceeds every non-gap fraction in the row.
func isGapStrictMajority(pct [5]float32) bool {
	for j := 1; j < 5; j++ {
		if pct[j] >= pct[0] {
			return false
		}
	}
	return true
}

// updateWhereBasePctMeetsMinAF clamps a softmax gap call to zero whenever
// base_pct confirms a real base clears MinAlleleFrequency and the softmax
// itself hadn't already settled on gap as its own call.
func (c calibrator) updateWhereBasePctMeetsMinAF() {
	for i := range c.probs.Probs {
		pct := c.pct(i)
		if !basePctHasAlternate(pct) {
			continue
		}
		row := &c.probs.Probs[i]
		if row[0] <= 0 || argmaxIndex(row[:]) == 0 {
			continue
		}
		row[0] = 0
		renormalize(row[:])
	}
}

// basePctHasAlternate reports whether some non-gap symbol's base_pct meets
// MinAlleleFrequency.
func basePctHasAlternate(pct [5]float32) bool {
	for j := 1; j < 5; j++ {
		if pct[j] >= MinAlleleFrequency {
			return true
		}
	}
	return false
}

// updateWhereGapIsReplaced handles an ambiguous base_pct tie at exactly
// MinAlleleFrequency that includes gap: the deletion call is discarded in
// favor of the tied real base, whose probability is capped at LowDepthScale
// to reflect the genuine uncertainty.
func (c calibrator) updateWhereGapIsReplaced() {
	for i := range c.probs.Probs {
		pct := c.pct(i)
		if pct[0] != MinAlleleFrequency {
			continue
		}
		tieIdx := -1
		for j := 1; j < 5; j++ {
			if pct[j] == MinAlleleFrequency {
				tieIdx = j
				break
			}
		}
		if tieIdx < 0 {
			continue
		}
		row := &c.probs.Probs[i]
		var out [5]float32
		out[tieIdx] = capAt(row[tieIdx], LowDepthScale)
		*row = out
	}
}

// updateWhereMajorityBaseCountIsTwoOrOne damps a call resting on one or two
// agreeing reads: the winning symbol (non-gap preferred on ties) is kept,
// capped at LowDepthScale, and every other entry including gap is zeroed.
func (c calibrator) updateWhereMajorityBaseCountIsTwoOrOne() {
	for i := range c.probs.Probs {
		if i >= len(c.numPass) {
			continue
		}
		n := c.numPass[i]
		if n != 1 && n != 2 {
			continue
		}
		pct := c.pct(i)
		winner := argmaxPreferNonGap(pct)
		row := &c.probs.Probs[i]
		var out [5]float32
		out[winner] = capAt(row[winner], LowDepthScale)
		*row = out
	}
}

// argmaxPreferNonGap returns the index of row's maximum value, preferring a
// non-gap index on ties and only falling back to gap when every non-gap
// entry is strictly smaller.
func argmaxPreferNonGap(row [5]float32) int {
	best := 1
	for j := 2; j < 5; j++ {
		if row[j] > row[best] {
			best = j
		}
	}
	if row[0] > row[best] {
		return 0
	}
	return best
}

func capAt(v, cap float32) float32 {
	if v > cap {
		return cap
	}
	return v
}

func isAllZero(row []float32) bool {
	for _, p := range row {
		if p != 0 {
			return false
		}
	}
	return true
}

func argmaxIndex(row []float32) int {
	best := 0
	for i := 1; i < len(row); i++ {
		if row[i] > row[best] {
			best = i
		}
	}
	return best
}

func renormalize(row []float32) {
	var sum float32
	for _, p := range row {
		sum += p
	}
	if sum <= 0 {
		row[0] = 1
		return
	}
	for i := range row {
		row[i] /= sum
	}
}
