package consensus

import "github.com/grailbio/consensus/readrecord"

// argmaxStable scans values left to right (row order) tallying counts per
// symbol, and only moves the leader when a symbol's count strictly exceeds
// the current leader's. This makes the winner of a tie the symbol that was
// *already* leading before the tying vote arrived -- i.e. whichever symbol
// first reached the eventual maximum, not an alphabet-order tiebreak. skip
// is a value excluded from the count entirely (typically BasePad).
func argmaxStable(values []byte, skip byte) (best byte, bestCount, numPass int) {
	var counts [8]int
	best = 255
	for _, v := range values {
		if v == skip {
			continue
		}
		numPass++
		counts[v]++
		if counts[v] > bestCount {
			bestCount = counts[v]
			best = v
		}
	}
	return best, bestCount, numPass
}

// argmaxStableNonGap is argmaxStable restricted to real bases: pad and gap
// are both excluded from the count.
func argmaxStableNonGap(values []byte) (best byte, bestCount, numPass int) {
	var counts [8]int
	best = 255
	for _, v := range values {
		if v == byte(readrecord.BasePad) || v == byte(readrecord.BaseGap) {
			continue
		}
		numPass++
		counts[v]++
		if counts[v] > bestCount {
			bestCount = counts[v]
			best = v
		}
	}
	return best, bestCount, numPass
}

// maxQualAgreeing returns the largest quality score among rows whose base
// equals call, capped at MaxPhredScore.
func maxQualAgreeing(col, qcol []byte, call byte) byte {
	var max byte
	for i, v := range col {
		if v == call && qcol[i] > max {
			max = qcol[i]
		}
	}
	if max > MaxPhredScore {
		max = MaxPhredScore
	}
	return max
}

// callColumn is the column-wise majority vote of spec.md §4.2 step 2-3: the
// argmax over all five symbols (gap included) decides the call; a gap
// argmax additionally needs to clear the super-majority deletion threshold
// to survive as a deletion, else the vote falls back to the best competing
// base. A non-gap argmax that doesn't clear the majority ratio is still
// emitted, just marked ambiguous and returned with quality 0.
func callColumn(col, qcol []byte, majorityRatio, deletionThreshold float64) (call readrecord.Base, quality byte, ambiguous bool) {
	best, bestCount, numPass := argmaxStable(col, byte(readrecord.BasePad))
	if numPass == 0 {
		return readrecord.BaseGap, 0, true
	}
	if readrecord.Base(best) == readrecord.BaseGap {
		gapFrac := float64(bestCount) / float64(numPass)
		if gapFrac >= deletionThreshold {
			return readrecord.BaseGap, 0, false
		}
		fbBest, _, fbNum := argmaxStableNonGap(col)
		if fbNum == 0 {
			return readrecord.BaseGap, 0, false
		}
		return readrecord.Base(fbBest), 0, true
	}
	topFrac := float64(bestCount) / float64(numPass)
	if topFrac >= majorityRatio {
		return readrecord.Base(best), maxQualAgreeing(col, qcol, best), false
	}
	return readrecord.Base(best), 0, true
}
