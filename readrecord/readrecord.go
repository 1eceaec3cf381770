// Package readrecord defines the read type consumed by the consensus core.
//
// ReadRecord is the boundary with the outside world: a BAM reader upstream
// (out of scope for this module, see github.com/biogo/hts/bam) decodes
// records and hands them to the consensus engine as ReadRecord values. The
// engine never mutates a ReadRecord; it only borrows the slices.
package readrecord

import (
	"github.com/biogo/hts/sam"

	"github.com/grailbio/base/errors"
)

// Base is the numeric base-code alphabet shared by the MSA, the feature
// tensor, and the calibrator. It intentionally does not reuse sam.Base,
// whose bit layout encodes IUPAC ambiguity codes this engine never needs.
type Base byte

// Base code values. Gap and Pad have no analogue in sam.Seq; they only
// exist once a read has been projected into an MSA column.
const (
	BaseGap Base = 0
	BaseA   Base = 1
	BaseC   Base = 2
	BaseG   Base = 3
	BaseT   Base = 4
	// BasePad marks a column outside a read's projected span.
	BasePad Base = 7
)

// IsValid reports whether b is one of the six codes this engine understands.
func (b Base) IsValid() bool {
	switch b {
	case BaseGap, BaseA, BaseC, BaseG, BaseT, BasePad:
		return true
	default:
		return false
	}
}

// Byte returns the FASTA-style byte for b ('-' for gap, 'N' for pad).
func (b Base) Byte() byte {
	switch b {
	case BaseGap:
		return '-'
	case BaseA:
		return 'A'
	case BaseC:
		return 'C'
	case BaseG:
		return 'G'
	case BaseT:
		return 'T'
	case BasePad:
		return 'N'
	default:
		return '?'
	}
}

// BaseFromByte converts an upper-case FASTA byte to a Base. ok is false for
// anything other than ACGT.
func BaseFromByte(c byte) (b Base, ok bool) {
	switch c {
	case 'A':
		return BaseA, true
	case 'C':
		return BaseC, true
	case 'G':
		return BaseG, true
	case 'T':
		return BaseT, true
	default:
		return BaseGap, false
	}
}

// ReadRecord is a single aligned read as consumed by the MSA builder. It is
// read-only from the engine's perspective; callers populate it from BAM
// records, SAM records, or synthetic test fixtures.
//
// Cigar and its operation types are reused directly from
// github.com/biogo/hts/sam: CigarMatch, CigarInsertion, CigarDeletion, and
// CigarSoftClipped are the only operations this engine interprets
// (CigarEqual and CigarMismatch are treated as CigarMatch).
type ReadRecord struct {
	// Name is the read name, carried through for diagnostics only.
	Name string
	// Start is the 0-based reference start of the first reference-consuming
	// CIGAR operation.
	Start int
	// End is the 0-based, exclusive reference end.
	End int
	// Bases is the base-call string, upper-case ACGT, length equal to the
	// sum of the query-consuming CIGAR operation lengths.
	Bases string
	// Cigar is the ordered list of CIGAR operations for Bases against the
	// reference window [Start, End).
	Cigar sam.Cigar
	// Quals holds one raw Phred score (0-93) per base in Bases.
	Quals []byte
	// Reverse is true when the read aligned to the reverse strand.
	Reverse bool
}

// Validate checks the CIGAR/base-string/coordinate invariants from the data
// model: base-consuming CIGAR length equals len(Bases), and
// reference-consuming CIGAR length equals End-Start.
func (r *ReadRecord) Validate() error {
	var queryLen, refLen int
	for _, co := range r.Cigar {
		con := co.Type().Consumes()
		queryLen += co.Len() * con.Query
		refLen += co.Len() * con.Reference
	}
	if queryLen != len(r.Bases) {
		return errors.E(errors.Invalid, "readrecord: cigar query length", queryLen,
			"does not match base string length", len(r.Bases), "for read", r.Name)
	}
	if queryLen != len(r.Quals) {
		return errors.E(errors.Invalid, "readrecord: cigar query length", queryLen,
			"does not match quality vector length", len(r.Quals), "for read", r.Name)
	}
	if refLen != r.End-r.Start {
		return errors.E(errors.Invalid, "readrecord: cigar reference length", refLen,
			"does not match End-Start", r.End-r.Start, "for read", r.Name)
	}
	return nil
}

// StrandBit returns 0 for a forward-strand read and 1 for a reverse-strand
// read, matching the single-bit strand encoding used throughout the MSA.
func (r *ReadRecord) StrandBit() byte {
	if r.Reverse {
		return 1
	}
	return 0
}
