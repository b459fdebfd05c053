package record

import (
	"strconv"

	"github.com/kminoda/CARET-analyze/pkg/errors"
)

// MergeKind selects which side's unmatched rows a merge retains.
type MergeKind string

const (
	// MergeInner drops unmatched rows on both sides
	MergeInner MergeKind = "inner"
	// MergeLeft retains unmatched left rows
	MergeLeft MergeKind = "left"
	// MergeRight retains unmatched right rows
	MergeRight MergeKind = "right"
	// MergeOuter retains unmatched rows on both sides
	MergeOuter MergeKind = "outer"
)

func (k MergeKind) valid() bool {
	switch k {
	case MergeInner, MergeLeft, MergeRight, MergeOuter:
		return true
	}
	return false
}

func (k MergeKind) keepsLeft() bool  { return k == MergeLeft || k == MergeOuter }
func (k MergeKind) keepsRight() bool { return k == MergeRight || k == MergeOuter }

// KeyPair names one join-key column on each side of a merge.
type KeyPair struct {
	Left  string
	Right string
}

// Key builds a KeyPair for a column named the same on both sides.
func Key(name string) KeyPair {
	return KeyPair{Left: name, Right: name}
}

// joinKey encodes a row's values at the given columns into a map key. It
// reports false when any of the columns is unset: such rows never match.
func joinKey(rec *Record, columns []string) (string, bool) {
	buf := make([]byte, 0, 16*len(columns))
	for _, column := range columns {
		v, ok := rec.Get(column)
		if !ok {
			return "", false
		}
		buf = strconv.AppendInt(buf, v, 10)
		buf = append(buf, 0x1f)
	}
	return string(buf), true
}

// mappedRow builds an output row from rec with every populated column passed
// through nameFor, skipping columns in drop.
func mappedRow(rec *Record, nameFor func(string) string, drop map[string]struct{}) *Record {
	out := NewEmptyRecord()
	for _, name := range rec.Columns() {
		if _, skip := drop[name]; skip {
			continue
		}
		v, _ := rec.Get(name)
		out.Set(nameFor(name), v)
	}
	return out
}

// mergeSchemas builds the output schema of a merge: every left column under
// its mapped name, then every right column that is not a join key under its
// mapped name. A name produced twice is a conflict.
func mergeSchemas(left, right *Columns, rightKeys map[string]struct{}, mapper *ColumnMapper) (*Columns, error) {
	out := NewColumns()
	for i := 0; i < left.Len(); i++ {
		col := left.At(i)
		name := mapper.LeftName(col.Name())
		if !out.Add(col.Value().renamed(name)) {
			return nil, errors.Newf(errors.ErrorTypeConflict, "merged column %q is ambiguous", name)
		}
	}
	for i := 0; i < right.Len(); i++ {
		col := right.At(i)
		if _, isKey := rightKeys[col.Name()]; isKey {
			continue
		}
		name := mapper.RightName(col.Name())
		if !out.Add(col.Value().renamed(name)) {
			return nil, errors.Newf(errors.ErrorTypeConflict, "merged column %q is ambiguous", name)
		}
	}
	return out, nil
}

// validateMergeArgs checks kind validity and key-column registration on both
// schemas.
func validateMergeArgs(left, right *Records, keys []KeyPair, kind MergeKind) error {
	if !kind.valid() {
		return errors.Newf(errors.ErrorTypeValidation, "unknown merge kind %q", kind)
	}
	for _, key := range keys {
		if !left.columns.Has(key.Left) {
			return errors.Newf(errors.ErrorTypeSchema, "column %q not found in left table", key.Left)
		}
		if !right.columns.Has(key.Right) {
			return errors.Newf(errors.ErrorTypeSchema, "column %q not found in right table", key.Right)
		}
	}
	return nil
}

// Merge joins two tables on equality over the key pairs. Every left row
// matches every right row holding equal values at all key columns; a row
// with any key column unset matches nothing. Multiple matches expand
// cartesianly. Matched pairs carry the union of both rows' populated
// columns, with key values surfacing once under the mapped left key name.
// Unmatched rows are dropped or retained per kind.
//
// Output order is deterministic: for each left row in input order, its
// matches in right input order, then, for kinds retaining the right side,
// unmatched right rows in input order. The inputs are never modified.
func Merge(left, right *Records, keys []KeyPair, kind MergeKind, mapper *ColumnMapper) (*Records, error) {
	if len(keys) == 0 {
		return nil, errors.New(errors.ErrorTypeValidation, "merge requires at least one key pair")
	}
	if err := validateMergeArgs(left, right, keys, kind); err != nil {
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

	schema, err := mergeSchemas(left.columns, right.columns, rightKeySet, mapper)
	if err != nil {
		return nil, err
	}

	// Bucket right rows by key, preserving input order inside each bucket.
	buckets := make(map[string][]int, right.Len())
	for i, rec := range right.rows {
		if k, ok := joinKey(rec, rightKeyColumns); ok {
			buckets[k] = append(buckets[k], i)
		}
	}

	out := newRecordsFrom(schema, nil)
	matched := make([]bool, right.Len())
	for _, leftRec := range left.rows {
		k, ok := joinKey(leftRec, leftKeyColumns)
		var partners []int
		if ok {
			partners = buckets[k]
		}
		if len(partners) == 0 {
			if kind.keepsLeft() {
				out.rows = append(out.rows, mappedRow(leftRec, mapper.LeftName, nil))
			}
			continue
		}
		for _, ri := range partners {
			matched[ri] = true
			row := mappedRow(leftRec, mapper.LeftName, nil)
			row.MergeFrom(mappedRow(right.rows[ri], mapper.RightName, rightKeySet))
			out.rows = append(out.rows, row)
		}
	}
	if kind.keepsRight() {
		for i, rec := range right.rows {
			if matched[i] {
				continue
			}
			row := mappedRow(rec, mapper.RightName, rightKeySet)
			for j, column := range rightKeyColumns {
				if v, ok := rec.Get(column); ok {
					row.Set(mapper.LeftName(keys[j].Left), v)
				}
			}
			out.rows = append(out.rows, row)
		}
	}
	return out, nil
}
