package consensus_test

import (
	"testing"

	"github.com/biogo/hts/sam"
	"github.com/stretchr/testify/require"

	"github.com/grailbio/consensus/consensus"
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

func newVoter(t *testing.T, cfg consensus.Config) *consensus.MajorityVotingConsensus {
	t.Helper()
	v, err := consensus.NewMajorityVotingConsensus(cfg)
	require.NoError(t, err)
	return v
}

func TestMinDepthDropsShallowColumns(t *testing.T) {
	reads := []readrecord.ReadRecord{
		mkRead("r1", 100, 108, "ACGTACGT", sam.Cigar{matchOp(8)}),
		mkRead("r2", 100, 103, "ACG", sam.Cigar{matchOp(3)}),
		mkRead("r3", 105, 108, "CGT", sam.Cigar{matchOp(3)}),
	}
	v := newVoter(t, consensus.Config{MajorityRatio: 0.5, MinDepth: 2, DeletionThreshold: 1})
	out, err := v.Vote("c1", reads)
	require.NoError(t, err)
	require.Equal(t, "ACGCGT", out.Bases)
}

func TestSuperMajorityDeletionAccepted(t *testing.T) {
	reads := []readrecord.ReadRecord{
		mkRead("full", 100, 116, "ACGTACGTACGTACGT", sam.Cigar{matchOp(16)}),
		mkRead("del1", 100, 116, "ACGTCGTACGTACGT", sam.Cigar{
			matchOp(4), sam.NewCigarOp(sam.CigarDeletion, 1), matchOp(11),
		}),
		mkRead("del2", 100, 116, "ACGTCGTACGTACGT", sam.Cigar{
			matchOp(4), sam.NewCigarOp(sam.CigarDeletion, 1), matchOp(11),
		}),
	}
	v := newVoter(t, consensus.DefaultConfig)
	out, err := v.Vote("c1", reads)
	require.NoError(t, err)
	require.Equal(t, "ACGTCGTACGTACGT", out.Bases)
	require.Equal(t, sam.Cigar{
		matchOp(4), sam.NewCigarOp(sam.CigarDeletion, 1), matchOp(11),
	}, out.Cigar)
}

func TestSuperMajorityDeletionFlipsWithMoreFullReads(t *testing.T) {
	reads := []readrecord.ReadRecord{
		mkRead("full1", 100, 116, "ACGTACGTACGTACGT", sam.Cigar{matchOp(16)}),
		mkRead("del1", 100, 116, "ACGTCGTACGTACGT", sam.Cigar{
			matchOp(4), sam.NewCigarOp(sam.CigarDeletion, 1), matchOp(11),
		}),
		mkRead("del2", 100, 116, "ACGTCGTACGTACGT", sam.Cigar{
			matchOp(4), sam.NewCigarOp(sam.CigarDeletion, 1), matchOp(11),
		}),
		mkRead("full2", 100, 116, "ACGTACGTACGTACGT", sam.Cigar{matchOp(16)}),
		mkRead("full3", 100, 116, "ACGTACGTACGTACGT", sam.Cigar{matchOp(16)}),
	}
	v := newVoter(t, consensus.DefaultConfig)
	out, err := v.Vote("c1", reads)
	require.NoError(t, err)
	require.Equal(t, "ACGTACGTACGTACGT", out.Bases)
	require.Equal(t, sam.Cigar{matchOp(16)}, out.Cigar)
}

func TestSimpleInsertion(t *testing.T) {
	reads := []readrecord.ReadRecord{
		mkRead("full", 100, 116, "ACGTACGTACGTACGT", sam.Cigar{matchOp(16)}),
		mkRead("ins1", 100, 116, "ACGTAAACGTACGTACGT", sam.Cigar{
			matchOp(4), sam.NewCigarOp(sam.CigarInsertion, 2), matchOp(12),
		}),
		mkRead("ins2", 100, 116, "ACGTAAACGTACGTACGT", sam.Cigar{
			matchOp(4), sam.NewCigarOp(sam.CigarInsertion, 2), matchOp(12),
		}),
	}
	v := newVoter(t, consensus.Config{MajorityRatio: 0.5, MinDepth: 0, DeletionThreshold: 1})
	out, err := v.Vote("c1", reads)
	require.NoError(t, err)
	require.Equal(t, "ACGTAAACGTACGTACGT", out.Bases)
	require.Equal(t, sam.Cigar{
		matchOp(4), sam.NewCigarOp(sam.CigarInsertion, 2), matchOp(12),
	}, out.Cigar)
}

func TestInsertionsOfDifferentLengthsPicksShorterWithMoreSupport(t *testing.T) {
	reads := []readrecord.ReadRecord{
		mkRead("full", 100, 116, "ACGTACGTACGTACGT", sam.Cigar{matchOp(16)}),
		mkRead("aa1", 100, 116, "ACGTAAACGTACGTACGT", sam.Cigar{
			matchOp(4), sam.NewCigarOp(sam.CigarInsertion, 2), matchOp(12),
		}),
		mkRead("aa2", 100, 116, "ACGTAAACGTACGTACGT", sam.Cigar{
			matchOp(4), sam.NewCigarOp(sam.CigarInsertion, 2), matchOp(12),
		}),
		mkRead("aaa", 100, 116, "ACGTAAAACGTACGTACGT", sam.Cigar{
			matchOp(4), sam.NewCigarOp(sam.CigarInsertion, 3), matchOp(12),
		}),
	}
	v := newVoter(t, consensus.Config{MajorityRatio: 0.5, MinDepth: 0, DeletionThreshold: 1})
	out, err := v.Vote("c1", reads)
	require.NoError(t, err)
	require.Equal(t, "ACGTAAACGTACGTACGT", out.Bases)
}

func TestDifferentInsertionSequencesTieBreak(t *testing.T) {
	reads := []readrecord.ReadRecord{
		mkRead("none", 100, 116, "ACGTACGTACGTACGT", sam.Cigar{matchOp(16)}),
		mkRead("t", 100, 116, "ACGTTACGTACGTACGT", sam.Cigar{
			matchOp(4), sam.NewCigarOp(sam.CigarInsertion, 1), matchOp(12),
		}),
		mkRead("aa", 100, 116, "ACGTAAACGTACGTACGT", sam.Cigar{
			matchOp(4), sam.NewCigarOp(sam.CigarInsertion, 2), matchOp(12),
		}),
		mkRead("aat", 100, 116, "ACGTAATACGTACGTACGT", sam.Cigar{
			matchOp(4), sam.NewCigarOp(sam.CigarInsertion, 3), matchOp(12),
		}),
		mkRead("atat", 100, 116, "ACGTATATACGTACGTACGT", sam.Cigar{
			matchOp(4), sam.NewCigarOp(sam.CigarInsertion, 4), matchOp(12),
		}),
	}
	v := newVoter(t, consensus.Config{MajorityRatio: 0.5, MinDepth: 0, DeletionThreshold: 1})
	out, err := v.Vote("c1", reads)
	require.NoError(t, err)
	require.Equal(t, "ACGTAATACGTACGTACGT", out.Bases)
}

func TestReadNameFormatsBaseCountsAndInsertionEvents(t *testing.T) {
	cigar := sam.Cigar{
		matchOp(2), sam.NewCigarOp(sam.CigarInsertion, 1), matchOp(2),
	}
	name := consensus.ReadName("tag", "AACT", cigar)
	require.Equal(t, "tag-2-1-0-1-1", name)
}
