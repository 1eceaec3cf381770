package consensus

import (
	"fmt"

	"github.com/biogo/hts/sam"
)

// ConsensusRead is the output of both MajorityVotingConsensus and
// cnnconsensus.CnnConsensusStrategy (spec.md §4.7): a called base string,
// parallel Phred qualities, a reconstructed CIGAR against the cluster's
// reference frame, and naming/depth bookkeeping.
type ConsensusRead struct {
	Name     string
	Bases    string
	Quals    []byte
	Cigar    sam.Cigar
	RefStart int
	// NumPass is the cluster's effective depth (spec.md §4.1 SetEffectiveNumPass).
	NumPass int
}

// ReadName formats the "{tag}-{a}-{c}-{g}-{t}-{ins_events}" consensus read
// name from spec.md §4.7: per-base counts of the called sequence followed
// by the number of distinct insertion events folded into the CIGAR.
func ReadName(tag string, bases string, cigar sam.Cigar) string {
	var a, c, g, t int
	for _, b := range bases {
		switch b {
		case 'A':
			a++
		case 'C':
			c++
		case 'G':
			g++
		case 'T':
			t++
		}
	}
	insEvents := 0
	for _, op := range cigar {
		if op.Type() == sam.CigarInsertion {
			insEvents++
		}
	}
	return fmt.Sprintf("%s-%d-%d-%d-%d-%d", tag, a, c, g, t, insEvents)
}
