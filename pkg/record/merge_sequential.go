package record

import (
	"math"

	"github.com/kminoda/CARET-analyze/pkg/errors"
)

// Direction selects which side of a left row's sequencing value the matching
// right row is taken from.
type Direction string

const (
	// DirectionForward binds each left row to the earliest pending right row
	// whose sequencing value is >= the left row's
	DirectionForward Direction = "forward"
	// DirectionBackward binds each left row to the latest pending right row
	// whose sequencing value is <= the left row's
	DirectionBackward Direction = "backward"
)

// SequentialOptions configure MergeSequential beyond its column arguments.
// The zero value means an inner merge, identity naming, forward direction.
type SequentialOptions struct {
	Kind      MergeKind
	Mapper    *ColumnMapper
	Direction Direction
}

// requireSorted verifies that the rows of a table are non-decreasing on
// column, skipping rows where it is unset.
func requireSorted(r *Records, column, side string) error {
	prev := int64(math.MinInt64)
	prevRow := -1
	for i, rec := range r.rows {
		v, ok := rec.Get(column)
		if !ok {
			continue
		}
		if v < prev {
			return errors.Newf(errors.ErrorTypePrecondition,
				"%s table not sorted by %q: row %d holds %d after row %d holding %d",
				side, column, i, v, prevRow, prev)
		}
		prev = v
		prevRow = i
	}
	return nil
}

// MergeSequential joins two individually time-ordered tables one-to-one.
// Rows sharing a join key (no keys: one global queue) bind by sequencing
// order: forward, each left row consumes the earliest not-yet-consumed right
// row whose sequencing value is >= the left row's; backward, the latest
// not-yet-consumed right row whose value is <= the left row's. A consumed
// right row is never matched again. Rows with the sequencing column or any
// key column unset never match.
//
// Both inputs must already be non-decreasing on their sequencing columns;
// out-of-order rows are a precondition error. Unmatched left rows are
// retained as missing-right rows unless the kind is inner; unconsumed right
// rows are retained for right and outer kinds. Output order: left rows in
// input order, then retained right rows in input order.
func MergeSequential(left, right *Records, leftStamp, rightStamp string, keys []KeyPair, opts SequentialOptions) (*Records, error) {
	kind := opts.Kind
	if kind == "" {
		kind = MergeInner
	}
	direction := opts.Direction
	if direction == "" {
		direction = DirectionForward
	}
	if direction != DirectionForward && direction != DirectionBackward {
		return nil, errors.Newf(errors.ErrorTypeValidation, "unknown direction %q", direction)
	}
	if err := validateMergeArgs(left, right, keys, kind); err != nil {
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

	leftKeyColumns := make([]string, len(keys))
	rightKeyColumns := make([]string, len(keys))
	rightKeySet := make(map[string]struct{}, len(keys))
	for i, key := range keys {
		leftKeyColumns[i] = key.Left
		rightKeyColumns[i] = key.Right
		rightKeySet[key.Right] = struct{}{}
	}

	schema, err := mergeSchemas(left.columns, right.columns, rightKeySet, opts.Mapper)
	if err != nil {
		return nil, err
	}

	// Queue right-row indices per key, in input order. Input order equals
	// sequencing order after the sortedness check.
	queues := make(map[string][]int)
	for i, rec := range right.rows {
		if !rec.Has(rightStamp) {
			continue
		}
		k, ok := joinKey(rec, rightKeyColumns)
		if !ok {
			continue
		}
		queues[k] = append(queues[k], i)
	}

	matchOf := make([]int, left.Len())
	for i := range matchOf {
		matchOf[i] = -1
	}
	consumed := make([]bool, right.Len())

	switch direction {
	case DirectionForward:
		// Per-key cursor only moves forward: a right row skipped for being
		// too early can never satisfy a later left row either.
		cursors := make(map[string]int, len(queues))
		for li, rec := range left.rows {
			t, ok := rec.Get(leftStamp)
			if !ok {
				continue
			}
			k, ok := joinKey(rec, leftKeyColumns)
			if !ok {
				continue
			}
			queue := queues[k]
			cur := cursors[k]
			for cur < len(queue) {
				ri := queue[cur]
				rt, _ := right.rows[ri].Get(rightStamp)
				if consumed[ri] || rt < t {
					cur++
					continue
				}
				matchOf[li] = ri
				consumed[ri] = true
				cur++
				break
			}
			cursors[k] = cur
		}
	case DirectionBackward:
		// Walk left rows newest first; per-key cursor only moves backward.
		cursors := make(map[string]int, len(queues))
		for k, queue := range queues {
			cursors[k] = len(queue) - 1
		}
		for li := left.Len() - 1; li >= 0; li-- {
			rec := left.rows[li]
			t, ok := rec.Get(leftStamp)
			if !ok {
				continue
			}
			k, ok := joinKey(rec, leftKeyColumns)
			if !ok {
				continue
			}
			queue := queues[k]
			cur, ok := cursors[k]
			if !ok {
				continue
			}
			for cur >= 0 {
				ri := queue[cur]
				rt, _ := right.rows[ri].Get(rightStamp)
				if consumed[ri] || rt > t {
					cur--
					continue
				}
				matchOf[li] = ri
				consumed[ri] = true
				cur--
				break
			}
			cursors[k] = cur
		}
	}

	out := newRecordsFrom(schema, nil)
	for li, rec := range left.rows {
		ri := matchOf[li]
		if ri < 0 {
			if kind.keepsLeft() {
				out.rows = append(out.rows, mappedRow(rec, opts.Mapper.LeftName, nil))
			}
			continue
		}
		row := mappedRow(rec, opts.Mapper.LeftName, nil)
		row.MergeFrom(mappedRow(right.rows[ri], opts.Mapper.RightName, rightKeySet))
		out.rows = append(out.rows, row)
	}
	if kind.keepsRight() {
		for i, rec := range right.rows {
			if consumed[i] {
				continue
			}
			row := mappedRow(rec, opts.Mapper.RightName, rightKeySet)
			for j, column := range rightKeyColumns {
				if v, ok := rec.Get(column); ok {
					row.Set(opts.Mapper.LeftName(keys[j].Left), v)
				}
			}
			out.rows = append(out.rows, row)
		}
	}
	return out, nil
}
