package msa

import (
	"sort"

	"github.com/biogo/hts/sam"

	"github.com/grailbio/base/log"
	"github.com/grailbio/consensus/internal/cerrors"
	"github.com/grailbio/consensus/readrecord"
)

// BuilderOptions configures MsaBuilder.Build.
type BuilderOptions struct {
	// RemoveSoftClips strips leading/trailing soft-clip operations (and
	// their bases/quality scores) before projecting a read into the MSA.
	// Soft clips never consume reference, so a read's effective
	// reference span is unaffected either way. Default true.
	RemoveSoftClips bool
}

// DefaultBuilderOptions matches spec's defaults.
var DefaultBuilderOptions = BuilderOptions{RemoveSoftClips: true}

// MsaBuilder turns a cluster of aligned reads into a rectangular
// AlignmentInfo: soft clips are stripped, insertion columns from different
// reads are merged at a shared anchor, and every read is padded out to the
// cluster's full reference span.
type MsaBuilder struct {
	Opts BuilderOptions
}

// NewMsaBuilder constructs a MsaBuilder with the given options.
func NewMsaBuilder(opts BuilderOptions) *MsaBuilder {
	return &MsaBuilder{Opts: opts}
}

// insertionEvent is one read's insertion at a given reference anchor.
type insertionEvent struct {
	readIdx int
	bases   []readrecord.Base
	quals   []byte
}

// projectedRead is the per-read intermediate: a reference-column-indexed
// row (relative to refStart, length = refEnd-refStart) plus any insertion
// events keyed by anchor (also relative to refStart).
type projectedRead struct {
	startRel, endRel int // [startRel, endRel) relative to refStart
	bases            []readrecord.Base
	quals            []byte
	strand           byte
	insertions       map[int]insertionEvent
}

// Build converts reads into an AlignmentInfo. reads must be non-empty and
// have internally consistent CIGAR/base-string/coordinate triples (see
// readrecord.ReadRecord.Validate).
func (b *MsaBuilder) Build(reads []readrecord.ReadRecord) (*AlignmentInfo, error) {
	if len(reads) == 0 {
		return nil, cerrors.E(cerrors.EmptyCluster, "msa: Build called with no reads")
	}

	refStart, refEnd := reads[0].Start, reads[0].End
	for _, r := range reads[1:] {
		if r.Start < refStart {
			refStart = r.Start
		}
		if r.End > refEnd {
			refEnd = r.End
		}
	}
	width := refEnd - refStart

	projected := make([]projectedRead, 0, len(reads))
	names := make([]string, 0, len(reads))
	for i := range reads {
		r := &reads[i]
		if err := r.Validate(); err != nil {
			return nil, cerrors.E(cerrors.InvalidAlignment, err)
		}
		pr, ok, err := b.projectRead(r, refStart)
		if err != nil {
			return nil, err
		}
		if !ok {
			log.Debug.Printf("msa: read %s entirely soft-clipped, discarding", r.Name)
			continue
		}
		projected = append(projected, pr)
		names = append(names, r.Name)
	}
	if len(projected) == 0 {
		return nil, cerrors.E(cerrors.DegenerateCluster, "msa: every read was entirely soft-clipped")
	}

	anchors := mergeAnchors(projected)
	columns := layoutColumns(width, refStart, anchors)

	rows := len(projected)
	cols := len(columns)
	msaM := NewMatrix(rows, cols, byte(readrecord.BasePad))
	qM := NewMatrix(rows, cols, 0)
	stM := NewMatrix(rows, cols, 0)

	colIndexForRef := make(map[int]int, width)
	colIndexForAnchor := make(map[int]int, len(anchors))
	for c, kind := range columns {
		if kind.IsInsertion {
			if _, ok := colIndexForAnchor[kind.RefPos]; !ok {
				colIndexForAnchor[kind.RefPos] = c
			}
		} else {
			colIndexForRef[kind.RefPos] = c
		}
	}

	for r, pr := range projected {
		for c := 0; c < cols; c++ {
			stM.Set(r, c, pr.strand)
		}
		for rel := pr.startRel; rel < pr.endRel; rel++ {
			c, ok := colIndexForRef[refStart+rel]
			if !ok {
				continue
			}
			msaM.Set(r, c, byte(pr.bases[rel-pr.startRel]))
			qM.Set(r, c, pr.quals[rel-pr.startRel])
		}
	}

	// Fill insertion clusters.
	for anchorRel, group := range anchors {
		startCol, ok := colIndexForAnchor[refStart+anchorRel]
		if !ok {
			continue
		}
		width := group.width
		for r, pr := range projected {
			crosses := pr.startRel <= anchorRel && anchorRel <= pr.endRel
			ev, has := pr.insertions[anchorRel]
			for w := 0; w < width; w++ {
				c := startCol + w
				switch {
				case has && w < len(ev.bases):
					msaM.Set(r, c, byte(ev.bases[w]))
					qM.Set(r, c, ev.quals[w])
				case has, crosses:
					msaM.Set(r, c, byte(readrecord.BaseGap))
					qM.Set(r, c, 0)
				default:
					msaM.Set(r, c, byte(readrecord.BasePad))
					qM.Set(r, c, 0)
				}
			}
		}
	}

	info := &AlignmentInfo{
		MSA:      msaM,
		QScores:  qM,
		Strands:  stM,
		Columns:  columns,
		ReadName: names,
		RefStart: refStart,
		RefEnd:   refEnd,
	}
	info.recomputeNumPass()
	if err := info.Validate(); err != nil {
		return nil, err
	}
	return info, nil
}

// projectRead builds the reference-indexed row and insertion-event map for
// a single read. ok is false if the read's entire body is a soft clip (or
// the CIGAR is empty after stripping), in which case the read is dropped.
func (b *MsaBuilder) projectRead(r *readrecord.ReadRecord, refStart int) (projectedRead, bool, error) {
	cigar := r.Cigar
	bases := r.Bases
	quals := r.Quals

	if b.Opts.RemoveSoftClips {
		cigar, bases, quals = stripSoftClips(cigar, bases, quals)
	}
	if len(cigar) == 0 {
		return projectedRead{}, false, nil
	}

	startRel := r.Start - refStart
	endRel := r.End - refStart
	pr := projectedRead{
		startRel:   startRel,
		endRel:     endRel,
		bases:      make([]readrecord.Base, endRel-startRel),
		quals:      make([]byte, endRel-startRel),
		strand:     r.StrandBit(),
		insertions: map[int]insertionEvent{},
	}

	cursor := startRel
	basePos := 0
	for _, co := range cigar {
		n := co.Len()
		switch co.Type() {
		case sam.CigarMatch, sam.CigarEqual, sam.CigarMismatch:
			for i := 0; i < n; i++ {
				base, ok := readrecord.BaseFromByte(bases[basePos+i])
				if !ok {
					return projectedRead{}, false, cerrors.E(cerrors.InvalidAlignment,
						"msa: read", r.Name, "has non-ACGT base under a match operation")
				}
				pr.bases[cursor+i-startRel] = base
				pr.quals[cursor+i-startRel] = quals[basePos+i]
			}
			cursor += n
			basePos += n
		case sam.CigarDeletion:
			for i := 0; i < n; i++ {
				pr.bases[cursor+i-startRel] = readrecord.BaseGap
				pr.quals[cursor+i-startRel] = 0
			}
			cursor += n
		case sam.CigarInsertion:
			evBases := make([]readrecord.Base, n)
			evQuals := make([]byte, n)
			for i := 0; i < n; i++ {
				base, ok := readrecord.BaseFromByte(bases[basePos+i])
				if !ok {
					return projectedRead{}, false, cerrors.E(cerrors.InvalidAlignment,
						"msa: read", r.Name, "has non-ACGT base under an insert operation")
				}
				evBases[i] = base
				evQuals[i] = quals[basePos+i]
			}
			pr.insertions[cursor] = insertionEvent{bases: evBases, quals: evQuals}
			basePos += n
		case sam.CigarSoftClipped:
			// Only reachable when RemoveSoftClips is false, or for an
			// internal soft clip (invalid CIGAR, but tolerated: treated
			// like a boundary insertion attached at the current cursor).
			evBases := make([]readrecord.Base, 0, n)
			evQuals := make([]byte, 0, n)
			for i := 0; i < n; i++ {
				base, ok := readrecord.BaseFromByte(bases[basePos+i])
				if ok {
					evBases = append(evBases, base)
					evQuals = append(evQuals, quals[basePos+i])
				}
			}
			if len(evBases) > 0 {
				if existing, ok := pr.insertions[cursor]; ok {
					existing.bases = append(existing.bases, evBases...)
					existing.quals = append(existing.quals, evQuals...)
					pr.insertions[cursor] = existing
				} else {
					pr.insertions[cursor] = insertionEvent{bases: evBases, quals: evQuals}
				}
			}
			basePos += n
		default:
			return projectedRead{}, false, cerrors.E(cerrors.InvalidAlignment,
				"msa: read", r.Name, "has unsupported CIGAR operation", co.Type().String())
		}
	}
	if basePos != len(bases) {
		return projectedRead{}, false, cerrors.E(cerrors.InvalidAlignment,
			"msa: read", r.Name, "cigar consumed", basePos, "bases, want", len(bases))
	}
	return pr, true, nil
}

// stripSoftClips removes leading and trailing CigarSoftClipped operations
// and their corresponding bases/quality scores.
func stripSoftClips(cigar sam.Cigar, bases string, quals []byte) (sam.Cigar, string, []byte) {
	lo, hi := 0, len(cigar)
	loBases, hiBases := 0, len(bases)
	for lo < hi && cigar[lo].Type() == sam.CigarSoftClipped {
		loBases += cigar[lo].Len()
		lo++
	}
	for hi > lo && cigar[hi-1].Type() == sam.CigarSoftClipped {
		hiBases -= cigar[hi-1].Len()
		hi--
	}
	return cigar[lo:hi], bases[loBases:hiBases], quals[loBases:hiBases]
}

// anchorGroup is the merged insertion cluster at one reference anchor.
type anchorGroup struct {
	width int
}

// mergeAnchors groups insertion events across reads by anchor (relative to
// refStart) and records the merged cluster width: the longest insertion
// any read offers at that anchor.
func mergeAnchors(projected []projectedRead) map[int]anchorGroup {
	anchors := map[int]anchorGroup{}
	for _, pr := range projected {
		for anchor, ev := range pr.insertions {
			g := anchors[anchor]
			if len(ev.bases) > g.width {
				g.width = len(ev.bases)
			}
			anchors[anchor] = g
		}
	}
	return anchors
}

// layoutColumns produces the final column order: for each reference column
// 0..width-1, any insertion cluster anchored immediately before it is
// emitted first, followed by the reference column itself. A cluster
// anchored at width (an insertion after the very last reference column) is
// emitted last with no trailing reference column.
func layoutColumns(width, refStart int, anchors map[int]anchorGroup) []ColumnKind {
	sortedAnchors := make([]int, 0, len(anchors))
	for a := range anchors {
		sortedAnchors = append(sortedAnchors, a)
	}
	sort.Ints(sortedAnchors)

	var out []ColumnKind
	ai := 0
	for refCol := 0; refCol <= width; refCol++ {
		for ai < len(sortedAnchors) && sortedAnchors[ai] == refCol {
			g := anchors[refCol]
			for w := 0; w < g.width; w++ {
				out = append(out, ColumnKind{IsInsertion: true, RefPos: refStart + refCol})
			}
			ai++
		}
		if refCol < width {
			out = append(out, ColumnKind{IsInsertion: false, RefPos: refStart + refCol})
		}
	}
	return out
}
