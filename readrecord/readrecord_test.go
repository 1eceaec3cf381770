package readrecord

import (
	"testing"

	"github.com/biogo/hts/sam"
	"github.com/stretchr/testify/require"
)

func TestValidateOK(t *testing.T) {
	r := ReadRecord{
		Name:  "r1",
		Start: 100, End: 104,
		Bases: "ACGT",
		Cigar: sam.Cigar{sam.NewCigarOp(sam.CigarMatch, 4)},
		Quals: []byte{20, 20, 20, 20},
	}
	require.NoError(t, r.Validate())
}

func TestValidateBadCigarLength(t *testing.T) {
	r := ReadRecord{
		Name:  "r1",
		Start: 100, End: 104,
		Bases: "ACG",
		Cigar: sam.Cigar{sam.NewCigarOp(sam.CigarMatch, 4)},
		Quals: []byte{20, 20, 20},
	}
	require.Error(t, r.Validate())
}

func TestBaseFromByte(t *testing.T) {
	b, ok := BaseFromByte('A')
	require.True(t, ok)
	require.Equal(t, BaseA, b)

	_, ok = BaseFromByte('N')
	require.False(t, ok)
}

func TestStrandBit(t *testing.T) {
	fwd := ReadRecord{Reverse: false}
	rev := ReadRecord{Reverse: true}
	require.Equal(t, byte(0), fwd.StrandBit())
	require.Equal(t, byte(1), rev.StrandBit())
}
