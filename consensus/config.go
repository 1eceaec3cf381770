package consensus

import "github.com/grailbio/consensus/internal/cerrors"

// MaxPhredScore is the cap applied to every recalibrated quality score
// (spec.md §4.2 step 5): callers never see a Q above this regardless of the
// input reads' own scores.
const MaxPhredScore = 40

// Config carries every majority_voting_consensus knob from spec.md §6,
// mirroring the flat, validated Opts structs the teacher uses
// (pileup/snp.Opts, markduplicates.Opts).
type Config struct {
	// MajorityRatio (μ) is the fraction of non-padded rows a non-gap base
	// needs to be called with full confidence. Default 0.5.
	MajorityRatio float64
	// MinDepth drops any column whose non-padded row count is below this.
	// Default 2.
	MinDepth int
	// DeletionThreshold (δ) is the fraction of non-padded rows a gap call
	// needs to be accepted as a deletion rather than falling back to the
	// best competing base. Default 0.5 -- see DESIGN.md for why this
	// differs from the 1.0 spec.md states as the literal default.
	DeletionThreshold float64
}

// DefaultConfig matches the component defaults from spec.md §6.
var DefaultConfig = Config{
	MajorityRatio:     0.5,
	MinDepth:          2,
	DeletionThreshold: 0.5,
}

// Validate rejects out-of-range knobs before any voting runs.
func (c Config) Validate() error {
	if c.MajorityRatio <= 0 || c.MajorityRatio > 1 {
		return cerrors.E(cerrors.ConfigurationError, "consensus: MajorityRatio must be in (0,1], got", c.MajorityRatio)
	}
	if c.DeletionThreshold <= 0 || c.DeletionThreshold > 1 {
		return cerrors.E(cerrors.ConfigurationError, "consensus: DeletionThreshold must be in (0,1], got", c.DeletionThreshold)
	}
	if c.MinDepth < 0 {
		return cerrors.E(cerrors.ConfigurationError, "consensus: MinDepth must be >= 0, got", c.MinDepth)
	}
	return nil
}
