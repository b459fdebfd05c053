package record

import (
	"github.com/kminoda/CARET-analyze/pkg/errors"
)

// MergeSequentialForAddrTrack joins two tables correlated by a resource
// address that the traced system recycles over time. The two inputs are
// processed as one globally time-ordered stream; each input must already be
// non-decreasing on its sequencing column, and a left occurrence is
// processed before a right occurrence holding the same timestamp.
//
// Per distinct address value the merge keeps a FIFO queue of pending left
// occurrences. A left occurrence enqueues; a right occurrence binds to and
// pops the oldest pending left occurrence for its address, so a recycled
// address pairs with the occurrence that wrote it, never with a later one.
// A right occurrence finding its queue empty is unmatched. Rows with the
// sequencing column or any address column unset never match.
//
// Unmatched rows are dropped or retained per kind exactly as in Merge.
// Output order: left rows in input order, then retained right rows in input
// order.
func MergeSequentialForAddrTrack(left, right *Records, leftStamp, rightStamp string, addrKeys []KeyPair, kind MergeKind, mapper *ColumnMapper) (*Records, error) {
	if len(addrKeys) == 0 {
		return nil, errors.New(errors.ErrorTypeValidation, "address tracking requires at least one address column pair")
	}
	if err := validateMergeArgs(left, right, addrKeys, kind); err != nil {
		return nil, err
	}
	if !left.columns.Has(leftStamp) {
		return nil, errors.Newf(errors.ErrorTypeSchema, "column %q not found in left table", leftStamp)
	}
	if !right.columns.Has(rightStamp) {
		return nil, errors.Newf(errors.ErrorTypeSchema, "column %q not found in right table", rightStamp)
	}
	if err := requireSorted(left, leftStamp, "left"); err != nil {
		return nil, err
	}
	if err := requireSorted(right, rightStamp, "right"); err != nil {
		return nil, err
	}

	leftAddrColumns := make([]string, len(addrKeys))
	rightAddrColumns := make([]string, len(addrKeys))
	rightKeySet := make(map[string]struct{}, len(addrKeys))
	for i, key := range addrKeys {
		leftAddrColumns[i] = key.Left
		rightAddrColumns[i] = key.Right
		rightKeySet[key.Right] = struct{}{}
	}

	schema, err := mergeSchemas(left.columns, right.columns, rightKeySet, mapper)
	if err != nil {
		return nil, err
	}

	// occurrence is one row in the merged time-ordered walk.
	type occurrence struct {
		row   int
		stamp int64
		addr  string
	}
	collect := func(r *Records, stamp string, addrColumns []string) []occurrence {
		occ := make([]occurrence, 0, r.Len())
		for i, rec := range r.rows {
			t, ok := rec.Get(stamp)
			if !ok {
				continue
			}
			addr, ok := joinKey(rec, addrColumns)
			if !ok {
				continue
			}
			occ = append(occ, occurrence{row: i, stamp: t, addr: addr})
		}
		return occ
	}
	leftOcc := collect(left, leftStamp, leftAddrColumns)
	rightOcc := collect(right, rightStamp, rightAddrColumns)

	matchOf := make([]int, left.Len())
	for i := range matchOf {
		matchOf[i] = -1
	}
	consumed := make([]bool, right.Len())

	pending := make(map[string][]int)
	li, ri := 0, 0
	for li < len(leftOcc) || ri < len(rightOcc) {
		takeLeft := ri >= len(rightOcc) ||
			(li < len(leftOcc) && leftOcc[li].stamp <= rightOcc[ri].stamp)
		if takeLeft {
			occ := leftOcc[li]
			pending[occ.addr] = append(pending[occ.addr], occ.row)
			li++
			continue
		}
		occ := rightOcc[ri]
		if queue := pending[occ.addr]; len(queue) > 0 {
			matchOf[queue[0]] = occ.row
			consumed[occ.row] = true
			pending[occ.addr] = queue[1:]
		}
		ri++
	}

	out := newRecordsFrom(schema, nil)
	for i, rec := range left.rows {
		j := matchOf[i]
		if j < 0 {
			if kind.keepsLeft() {
				out.rows = append(out.rows, mappedRow(rec, mapper.LeftName, nil))
			}
			continue
		}
		row := mappedRow(rec, mapper.LeftName, nil)
		row.MergeFrom(mappedRow(right.rows[j], mapper.RightName, rightKeySet))
		out.rows = append(out.rows, row)
	}
	if kind.keepsRight() {
		for i, rec := range right.rows {
			if consumed[i] {
				continue
			}
			row := mappedRow(rec, mapper.RightName, rightKeySet)
			for j, column := range rightAddrColumns {
				if v, ok := rec.Get(column); ok {
					row.Set(mapper.LeftName(addrKeys[j].Left), v)
				}
			}
			out.rows = append(out.rows, row)
		}
	}
	return out, nil
}
