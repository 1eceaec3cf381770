package consensus

import (
	"github.com/biogo/hts/sam"

	"github.com/grailbio/base/log"
	"github.com/grailbio/consensus/internal/cerrors"
	"github.com/grailbio/consensus/msa"
	"github.com/grailbio/consensus/readrecord"
)

// MajorityVotingConsensus implements spec.md §4.2: a column-wise majority
// vote over an MsaBuilder alignment, with insertion-length resolution and
// CIGAR reconstruction.
type MajorityVotingConsensus struct {
	Config  Config
	Builder *msa.MsaBuilder
}

// NewMajorityVotingConsensus validates cfg and returns a ready-to-use voter.
func NewMajorityVotingConsensus(cfg Config) (*MajorityVotingConsensus, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &MajorityVotingConsensus{
		Config:  cfg,
		Builder: msa.NewMsaBuilder(msa.DefaultBuilderOptions),
	}, nil
}

// slot is one emitted position of the consensus: a called base (or a gap,
// which contributes to a Deletion run but not to Bases/Quals) tagged with
// whether it belongs to an insertion cluster.
type slot struct {
	isInsertion bool
	call        readrecord.Base
	quality     byte
}

// Vote builds the MSA for reads, runs the column vote, resolves insertion
// lengths, and reconstructs the consensus read and its CIGAR.
func (v *MajorityVotingConsensus) Vote(tag string, reads []readrecord.ReadRecord) (*ConsensusRead, error) {
	info, err := v.Builder.Build(reads)
	if err != nil {
		return nil, err
	}
	info.TrimAlignmentInfo()
	info.RemoveEmptyReads()
	if info.MSA.Rows == 0 || info.MSA.Cols == 0 {
		return nil, cerrors.E(cerrors.DegenerateCluster, "consensus: nothing survived trimming for", tag)
	}
	info.SetEffectiveNumPass()

	slots := v.emitSlots(info)

	bases := make([]byte, 0, len(slots))
	quals := make([]byte, 0, len(slots))
	cigar := buildCigar(slots)
	for _, s := range slots {
		if s.call == readrecord.BaseGap {
			continue
		}
		bases = append(bases, s.call.Byte())
		quals = append(quals, s.quality)
	}

	read := &ConsensusRead{
		Bases:    string(bases),
		Quals:    quals,
		Cigar:    cigar,
		RefStart: info.RefStart,
		NumPass:  info.EffectiveNumPass,
	}
	read.Name = ReadName(tag, read.Bases, cigar)
	log.Debug.Printf("consensus: %s voted %d bases from %d reads (depth %d)",
		tag, len(read.Bases), len(reads), read.NumPass)
	return read, nil
}

// emitSlots walks info.Columns grouped into reference columns and insertion
// clusters, producing one slot per surviving column.
func (v *MajorityVotingConsensus) emitSlots(info *msa.AlignmentInfo) []slot {
	var out []slot
	cols := info.Columns
	c := 0
	for c < len(cols) {
		if !cols[c].IsInsertion {
			if info.NumPassPerColumn[c] >= v.Config.MinDepth {
				call, q, _ := callColumn(info.MSA.Col(c), info.QScores.Col(c), v.Config.MajorityRatio, v.Config.DeletionThreshold)
				out = append(out, slot{isInsertion: false, call: call, quality: q})
			}
			c++
			continue
		}
		// Gather the full insertion cluster (consecutive insertion columns
		// sharing the same RefPos).
		start := c
		for c < len(cols) && cols[c].IsInsertion && cols[c].RefPos == cols[start].RefPos {
			c++
		}
		out = append(out, v.emitInsertionCluster(info, start, c)...)
	}
	return out
}

// emitInsertionCluster resolves the consensus insertion length for one
// cluster (columns [start,end)) per spec.md §4.2 step 4, then emits the
// regular column vote for the columns that survive the length cut.
//
// Length resolution: among rows with at least one real (non-gap, non-pad)
// base in the cluster -- the "inserting" rows -- find each row's own
// insertion length (count of real bases, since insertion bases are always
// left-aligned within the cluster). The chosen length is the longest L for
// which at least MajorityRatio of the inserting rows reach length >= L.
// This reuses the component's one majority-ratio knob rather than adding a
// second threshold, and is the reading of "highest-support length,
// ties broken toward longer" that reproduces the length-0..4,
// single-supporter-each fixture in original_source/'s
// "Different insertion sequences" test: it resolves to length 3, matching
// spec.md §8's "AAT" scenario. See DESIGN.md for the derivation.
func (v *MajorityVotingConsensus) emitInsertionCluster(info *msa.AlignmentInfo, start, end int) []slot {
	width := end - start
	rowLen := make([]int, info.MSA.Rows)
	insertingRows := 0
	maxLen := 0
	for r := 0; r < info.MSA.Rows; r++ {
		n := 0
		for c := start; c < end; c++ {
			v := info.MSA.At(r, c)
			if v != byte(readrecord.BaseGap) && v != byte(readrecord.BasePad) {
				n++
			}
		}
		rowLen[r] = n
		if n > 0 {
			insertingRows++
		}
		if n > maxLen {
			maxLen = n
		}
	}
	if insertingRows == 0 {
		return nil
	}

	chosen := 0
	for l := 1; l <= maxLen; l++ {
		reach := 0
		for r := 0; r < info.MSA.Rows; r++ {
			if rowLen[r] >= l {
				reach++
			}
		}
		if float64(reach)/float64(insertingRows) >= v.Config.MajorityRatio {
			chosen = l
		}
	}
	if chosen == 0 {
		return nil
	}

	out := make([]slot, 0, chosen)
	for i := 0; i < chosen && i < width; i++ {
		c := start + i
		if info.NumPassPerColumn[c] < v.Config.MinDepth {
			continue
		}
		call, q, _ := callColumn(info.MSA.Col(c), info.QScores.Col(c), v.Config.MajorityRatio, v.Config.DeletionThreshold)
		if call == readrecord.BaseGap {
			continue
		}
		out = append(out, slot{isInsertion: true, call: call, quality: q})
	}
	return out
}

// buildCigar collapses a slot stream into runs: consecutive reference
// matches, reference deletions, and insertion-cluster runs.
func buildCigar(slots []slot) sam.Cigar {
	var out sam.Cigar
	i := 0
	for i < len(slots) {
		s := slots[i]
		var op sam.CigarOpType
		switch {
		case s.isInsertion:
			op = sam.CigarInsertion
		case s.call == readrecord.BaseGap:
			op = sam.CigarDeletion
		default:
			op = sam.CigarMatch
		}
		j := i + 1
		for j < len(slots) {
			t := slots[j]
			var top sam.CigarOpType
			switch {
			case t.isInsertion:
				top = sam.CigarInsertion
			case t.call == readrecord.BaseGap:
				top = sam.CigarDeletion
			default:
				top = sam.CigarMatch
			}
			if top != op {
				break
			}
			j++
		}
		out = append(out, sam.NewCigarOp(op, j-i))
		i = j
	}
	return out
}
