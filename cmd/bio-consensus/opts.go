package main

import (
	"github.com/grailbio/consensus/consensus"
)

// Opts carries the CLI's knobs, mirroring how cmd/bio-pileup's snp.Opts
// groups a flag set into one struct the core package consumes, rather than
// threading *flag.Int/*flag.String values directly into run().
type Opts struct {
	// UMITag is the two-letter SAM aux tag carrying each read's molecular
	// identifier. Reads sharing a (reference position, corrected UMI) key
	// are grouped into one cluster.
	UMITag string
	// UMIWhitelist is an optional newline-separated list of known UMI
	// sequences; when non-empty, each read's raw UMI is snapped to its
	// nearest whitelist entry with umi.SnapCorrector before clustering.
	UMIWhitelist []byte
	// FlagExclude drops reads whose FLAG bits intersect this value, the
	// same knob cmd/bio-pileup exposes as -flag-exclude.
	FlagExclude int
	// Consensus carries MajorityRatio/MinDepth/DeletionThreshold.
	Consensus consensus.Config
}
