package msa

import (
	"github.com/grailbio/consensus/internal/cerrors"
	"github.com/grailbio/consensus/readrecord"
)

// ColumnKind describes one column of an AlignmentInfo: either a reference
// column anchored at an absolute reference position, or an insertion
// column belonging to the insertion cluster anchored immediately before a
// reference position.
type ColumnKind struct {
	IsInsertion bool
	// RefPos is the absolute reference coordinate: the column's own
	// position for a reference column, or the position of the reference
	// column the insertion cluster precedes.
	RefPos int
}

// AlignmentInfo is the central data carrier produced by MsaBuilder: a
// rectangular base matrix, its parallel quality and strand matrices, and
// the per-column pass-count bookkeeping every consensus strategy needs.
type AlignmentInfo struct {
	MSA      *Matrix
	QScores  *Matrix
	Strands  *Matrix
	Columns  []ColumnKind
	ReadName []string

	NumPassPerColumn []int
	EffectiveNumPass int

	RefStart, RefEnd int // reference_span, after soft-clip removal
}

// numPass reports how many rows of col are not BasePad.
func numPass(col []byte) int {
	n := 0
	for _, v := range col {
		if v != byte(readrecord.BasePad) {
			n++
		}
	}
	return n
}

// recomputeNumPass refreshes NumPassPerColumn after a structural change to
// MSA. Callers that drop columns/rows must call this before relying on
// NumPassPerColumn again.
func (a *AlignmentInfo) recomputeNumPass() {
	a.NumPassPerColumn = make([]int, a.MSA.Cols)
	for c := 0; c < a.MSA.Cols; c++ {
		a.NumPassPerColumn[c] = numPass(a.MSA.Col(c))
	}
}

// GetNonEmptyColumns returns the indices of columns where some row holds a
// real base (neither gap nor pad).
func GetNonEmptyColumns(msa *Matrix) []int {
	var out []int
	for c := 0; c < msa.Cols; c++ {
		col := msa.Col(c)
		for _, v := range col {
			if v != byte(readrecord.BaseGap) && v != byte(readrecord.BasePad) {
				out = append(out, c)
				break
			}
		}
	}
	return out
}

// GetMoreThanOnePassColumns returns, within [start, end), the indices of
// columns where at least two rows are non-padded.
func GetMoreThanOnePassColumns(msa *Matrix, start, end int) []int {
	var out []int
	for c := start; c < end && c < msa.Cols; c++ {
		if numPass(msa.Col(c)) >= 2 {
			out = append(out, c)
		}
	}
	return out
}

// GetNonGapColumns returns, within [start, end), the indices of columns
// that have at least one non-gap symbol among rows whose own non-padding
// span is at least fullReadSize long. fullReadSize == 0 considers every
// row.
func GetNonGapColumns(msa *Matrix, fullReadSize, start, end int) []int {
	rowSpan := make([]int, msa.Rows)
	if fullReadSize > 0 {
		for r := 0; r < msa.Rows; r++ {
			n := 0
			for c := 0; c < msa.Cols; c++ {
				if msa.At(r, c) != byte(readrecord.BasePad) {
					n++
				}
			}
			rowSpan[r] = n
		}
	}
	var out []int
	for c := start; c < end && c < msa.Cols; c++ {
		col := msa.Col(c)
		for r, v := range col {
			if fullReadSize > 0 && rowSpan[r] < fullReadSize {
				continue
			}
			if v != byte(readrecord.BaseGap) && v != byte(readrecord.BasePad) {
				out = append(out, c)
				break
			}
		}
	}
	return out
}

// TrimAlignmentInfo drops leading and trailing columns where num_pass is 0
// or where every non-padded entry is a gap.
func (a *AlignmentInfo) TrimAlignmentInfo() {
	isDroppable := func(c int) bool {
		col := a.MSA.Col(c)
		for _, v := range col {
			if v == byte(readrecord.BasePad) {
				continue
			}
			if v != byte(readrecord.BaseGap) {
				return false
			}
		}
		return true
	}
	lo := 0
	for lo < a.MSA.Cols && isDroppable(lo) {
		lo++
	}
	hi := a.MSA.Cols
	for hi > lo && isDroppable(hi-1) {
		hi--
	}
	cols := make([]int, 0, hi-lo)
	for c := lo; c < hi; c++ {
		cols = append(cols, c)
	}
	a.selectColumns(cols)
}

// isInsertionRequired reports whether dropping column c would erase
// a column that the consensus needs to keep because it carries the
// majority vote of an insertion cluster (i.e. some non-padding row has a
// called, non-gap base there). delete_gap_major_columns never drops such a
// column even though gap is the raw majority.
func isInsertionRequired(msa *Matrix, c int, kind ColumnKind) bool {
	if !kind.IsInsertion {
		return false
	}
	col := msa.Col(c)
	for _, v := range col {
		if v != byte(readrecord.BaseGap) && v != byte(readrecord.BasePad) {
			return true
		}
	}
	return false
}

// DeleteGapMajorColumns drops any column whose majority base among
// non-padding cells is gap, unless that column is required to preserve a
// called insertion base. Ties favour deletion.
func (a *AlignmentInfo) DeleteGapMajorColumns() {
	keep := make([]int, 0, a.MSA.Cols)
	for c := 0; c < a.MSA.Cols; c++ {
		col := a.MSA.Col(c)
		var gap, other int
		for _, v := range col {
			switch readrecord.Base(v) {
			case readrecord.BasePad:
			case readrecord.BaseGap:
				gap++
			default:
				other++
			}
		}
		if gap >= other && gap > 0 {
			if isInsertionRequired(a.MSA, c, a.Columns[c]) {
				keep = append(keep, c)
			}
			continue
		}
		keep = append(keep, c)
	}
	a.selectColumns(keep)
}

// RemoveEmptyReads drops any row whose entire content is gap/pad.
func (a *AlignmentInfo) RemoveEmptyReads() {
	var buf []byte
	keep := make([]int, 0, a.MSA.Rows)
	for r := 0; r < a.MSA.Rows; r++ {
		buf = a.MSA.Row(r, buf)
		empty := true
		for _, v := range buf {
			if v != byte(readrecord.BaseGap) && v != byte(readrecord.BasePad) {
				empty = false
				break
			}
		}
		if !empty {
			keep = append(keep, r)
		}
	}
	a.selectRows(keep)
}

// SetEffectiveNumPass computes the mode of NumPassPerColumn over the
// interior (columns with at least half the maximum pass count), and stores
// it as EffectiveNumPass -- the per-cluster "depth" downstream consumers
// use for gating.
func (a *AlignmentInfo) SetEffectiveNumPass() {
	if len(a.NumPassPerColumn) == 0 {
		a.EffectiveNumPass = 0
		return
	}
	max := 0
	for _, n := range a.NumPassPerColumn {
		if n > max {
			max = n
		}
	}
	counts := map[int]int{}
	for _, n := range a.NumPassPerColumn {
		if float64(n) >= float64(max)/2 {
			counts[n]++
		}
	}
	best, bestCount := 0, -1
	for n, count := range counts {
		if count > bestCount || (count == bestCount && n > best) {
			best, bestCount = n, count
		}
	}
	a.EffectiveNumPass = best
}

func (a *AlignmentInfo) selectColumns(cols []int) {
	a.MSA = a.MSA.SelectColumns(cols)
	a.QScores = a.QScores.SelectColumns(cols)
	a.Strands = a.Strands.SelectColumns(cols)
	newCols := make([]ColumnKind, len(cols))
	for i, c := range cols {
		newCols[i] = a.Columns[c]
	}
	a.Columns = newCols
	a.recomputeNumPass()
}

func (a *AlignmentInfo) selectRows(rows []int) {
	a.MSA = a.MSA.SelectRows(rows)
	a.QScores = a.QScores.SelectRows(rows)
	a.Strands = a.Strands.SelectRows(rows)
	if a.ReadName != nil {
		names := make([]string, len(rows))
		for i, r := range rows {
			names[i] = a.ReadName[r]
		}
		a.ReadName = names
	}
	a.recomputeNumPass()
}

// Validate checks the invariants from the data model: equal shapes, valid
// base codes, and at least one surviving row.
func (a *AlignmentInfo) Validate() error {
	if a.MSA.Rows != a.QScores.Rows || a.MSA.Cols != a.QScores.Cols ||
		a.MSA.Rows != a.Strands.Rows || a.MSA.Cols != a.Strands.Cols {
		return cerrors.E(cerrors.InvalidAlignment, "msa: mismatched matrix shapes")
	}
	if a.MSA.Rows == 0 || a.MSA.Cols == 0 {
		return cerrors.E(cerrors.DegenerateCluster, "msa: alignment has no surviving rows or columns")
	}
	for c := 0; c < a.MSA.Cols; c++ {
		for _, v := range a.MSA.Col(c) {
			if !readrecord.Base(v).IsValid() {
				return cerrors.E(cerrors.InvalidAlignment, "msa: invalid base code", v, "at column", c)
			}
		}
	}
	for r := 0; r < a.MSA.Rows; r++ {
		allPad := true
		for c := 0; c < a.MSA.Cols; c++ {
			if a.MSA.At(r, c) != byte(readrecord.BasePad) {
				allPad = false
				break
			}
		}
		if allPad {
			return cerrors.E(cerrors.DegenerateCluster, "msa: read", r, "contributed no non-padded column")
		}
	}
	return nil
}
