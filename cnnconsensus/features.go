// Package cnnconsensus implements spec.md §4.3-§4.5: turning an
// msa.AlignmentInfo into a per-column feature tensor, running it through an
// Inferencer, calibrating the resulting probabilities, and reconstructing a
// ConsensusRead from the argmax call -- the CNN-backed sibling of
// consensus.MajorityVotingConsensus.
package cnnconsensus

import (
	"github.com/grailbio/consensus/msa"
	"github.com/grailbio/consensus/readrecord"
)

// NumFeatures is the per-column feature width: forward/reverse fractions for
// each of the five symbols (gap, A, C, G, T) plus the raw pass count.
const NumFeatures = 11

// symbolOrder fixes the feature-tensor column order: gap, A, C, G, T.
var symbolOrder = [5]readrecord.Base{
	readrecord.BaseGap, readrecord.BaseA, readrecord.BaseC, readrecord.BaseG, readrecord.BaseT,
}

// FeatureMatrix holds one NumFeatures-wide row per surviving MSA column.
type FeatureMatrix struct {
	Cols     int
	Features [][NumFeatures]float32
}

// FeatureBuilder extracts the CNN input tensor from an alignment (spec.md
// §4.3): for each column, the forward- and reverse-strand fraction of each
// symbol among non-padded rows, and the raw pass count, matching the
// pack-stranded-fractions-plus-depth layout spec.md §9 describes as the
// CNN's expected input.
type FeatureBuilder struct{}

// Build computes the feature tensor for every column of info.
func (FeatureBuilder) Build(info *msa.AlignmentInfo) FeatureMatrix {
	out := FeatureMatrix{Cols: info.MSA.Cols, Features: make([][NumFeatures]float32, info.MSA.Cols)}
	for c := 0; c < info.MSA.Cols; c++ {
		col := info.MSA.Col(c)
		strand := info.Strands.Col(c)
		var fwd, rev [5]int
		total := 0
		for r, v := range col {
			if v == byte(readrecord.BasePad) {
				continue
			}
			total++
			idx := symbolIndex(readrecord.Base(v))
			if strand[r] == 0 {
				fwd[idx]++
			} else {
				rev[idx]++
			}
		}
		var row [NumFeatures]float32
		if total > 0 {
			for i := 0; i < 5; i++ {
				row[i] = float32(fwd[i]) / float32(total)
				row[5+i] = float32(rev[i]) / float32(total)
			}
		}
		row[10] = float32(total)
		out.Features[c] = row
	}
	return out
}

// BasePct re-aggregates the per-column forward/reverse fractions over both
// strands into a single [gap, A, C, G, T] fraction row per column, the
// base_pct input spec.md §4.4's calibrator reads alongside the raw softmax.
func (fm FeatureMatrix) BasePct() [][5]float32 {
	out := make([][5]float32, fm.Cols)
	for c, row := range fm.Features {
		for i := 0; i < 5; i++ {
			out[c][i] = row[i] + row[5+i]
		}
	}
	return out
}

func symbolIndex(b readrecord.Base) int {
	for i, s := range symbolOrder {
		if s == b {
			return i
		}
	}
	return 0
}
