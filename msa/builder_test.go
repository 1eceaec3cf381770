package msa_test

import (
	"testing"

	"github.com/biogo/hts/sam"
	"github.com/stretchr/testify/require"

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

func TestBuildSimpleOverlap(t *testing.T) {
	reads := []readrecord.ReadRecord{
		mkRead("r1", 100, 108, "ACGTACGT", sam.Cigar{matchOp(8)}),
		mkRead("r2", 100, 103, "ACG", sam.Cigar{matchOp(3)}),
		mkRead("r3", 105, 108, "CGT", sam.Cigar{matchOp(3)}),
	}
	b := msa.NewMsaBuilder(msa.DefaultBuilderOptions)
	info, err := b.Build(reads)
	require.NoError(t, err)
	require.Equal(t, 3, info.MSA.Rows)
	require.Equal(t, 8, info.MSA.Cols)
	require.Equal(t, 100, info.RefStart)
	require.Equal(t, 108, info.RefEnd)

	for _, kind := range info.Columns {
		require.False(t, kind.IsInsertion)
	}
}

func TestBuildMergesInsertionsAtSharedAnchor(t *testing.T) {
	reads := []readrecord.ReadRecord{
		mkRead("full", 100, 116, "ACGTACGTACGTACGT", sam.Cigar{matchOp(16)}),
		mkRead("ins2", 100, 116, "ACGTAAACGTACGTACGT", sam.Cigar{
			matchOp(4), sam.NewCigarOp(sam.CigarInsertion, 2), matchOp(12),
		}),
	}
	b := msa.NewMsaBuilder(msa.DefaultBuilderOptions)
	info, err := b.Build(reads)
	require.NoError(t, err)

	insertionCols := 0
	for _, kind := range info.Columns {
		if kind.IsInsertion {
			insertionCols++
		}
	}
	require.Equal(t, 2, insertionCols)
}

func TestBuildStripsSoftClips(t *testing.T) {
	reads := []readrecord.ReadRecord{
		mkRead("r1", 100, 104, "TTACGT", sam.Cigar{
			sam.NewCigarOp(sam.CigarSoftClipped, 2), matchOp(4),
		}),
	}
	b := msa.NewMsaBuilder(msa.DefaultBuilderOptions)
	info, err := b.Build(reads)
	require.NoError(t, err)
	require.Equal(t, 4, info.MSA.Cols)
}

func TestBuildRejectsEmptyCluster(t *testing.T) {
	b := msa.NewMsaBuilder(msa.DefaultBuilderOptions)
	_, err := b.Build(nil)
	require.Error(t, err)
}

func TestTrimAlignmentInfoKeepsInteriorDeletionColumn(t *testing.T) {
	reads := []readrecord.ReadRecord{
		mkRead("full", 100, 108, "ACGTACGT", sam.Cigar{matchOp(8)}),
		mkRead("del", 100, 108, "ACGACGT", sam.Cigar{
			matchOp(3), sam.NewCigarOp(sam.CigarDeletion, 1), matchOp(4),
		}),
	}
	b := msa.NewMsaBuilder(msa.DefaultBuilderOptions)
	info, err := b.Build(reads)
	require.NoError(t, err)
	before := info.MSA.Cols
	info.TrimAlignmentInfo()
	require.Equal(t, before, info.MSA.Cols) // no all-gap edge columns here
}
