package record

import (
	"math"
	"sort"
)

// UnsetValue is the sentinel substituted for unset fields by the APIs that
// need a placeholder, such as grouping keys and ColumnValuesOr callers. It is
// a placeholder only: a field holding zero is set, a field holding nothing is
// unset.
const UnsetValue int64 = math.MaxInt64

// field is one populated (column name, value) pair.
type field struct {
	name  string
	value int64
}

// Record is a sparse row: a packed, name-sorted association from column name
// to int64 value. A column a Record holds no pair for is unset, which is
// distinct from holding zero.
type Record struct {
	fields []field
}

// NewRecord creates a record populated from init.
func NewRecord(init map[string]int64) *Record {
	r := &Record{fields: make([]field, 0, len(init))}
	for name, value := range init {
		r.fields = append(r.fields, field{name: name, value: value})
	}
	sort.Slice(r.fields, func(i, j int) bool { return r.fields[i].name < r.fields[j].name })
	return r
}

// NewEmptyRecord creates a record with no populated fields.
func NewEmptyRecord() *Record {
	return &Record{}
}

// search returns the position of name in the packed pairs, and whether it is
// populated.
func (r *Record) search(name string) (int, bool) {
	i := sort.Search(len(r.fields), func(i int) bool { return r.fields[i].name >= name })
	return i, i < len(r.fields) && r.fields[i].name == name
}

// Get returns the value of a column and whether it is set.
func (r *Record) Get(name string) (int64, bool) {
	i, ok := r.search(name)
	if !ok {
		return 0, false
	}
	return r.fields[i].value, true
}

// GetDefault returns the value of a column, or def when unset.
func (r *Record) GetDefault(name string, def int64) int64 {
	if v, ok := r.Get(name); ok {
		return v
	}
	return def
}

// Has reports whether a column is set.
func (r *Record) Has(name string) bool {
	_, ok := r.search(name)
	return ok
}

// Set populates a column, replacing any previous value.
func (r *Record) Set(name string, value int64) {
	i, ok := r.search(name)
	if ok {
		r.fields[i].value = value
		return
	}
	r.fields = append(r.fields, field{})
	copy(r.fields[i+1:], r.fields[i:])
	r.fields[i] = field{name: name, value: value}
}

// Drop unsets the named columns. Unset names are ignored.
func (r *Record) Drop(names ...string) {
	for _, name := range names {
		if i, ok := r.search(name); ok {
			r.fields = append(r.fields[:i], r.fields[i+1:]...)
		}
	}
}

// Rename moves the value of column old to column new. A record with old
// unset is returned unchanged; an existing value under new is replaced.
func (r *Record) Rename(old, new string) {
	if old == new {
		return
	}
	v, ok := r.Get(old)
	if !ok {
		return
	}
	r.Drop(old)
	r.Set(new, v)
}

// Columns returns the populated column names in lexical order.
func (r *Record) Columns() []string {
	names := make([]string, len(r.fields))
	for i, f := range r.fields {
		names[i] = f.name
	}
	return names
}

// Len returns the number of populated columns.
func (r *Record) Len() int { return len(r.fields) }

// Equal reports equality over the populated (name, value) pairs of the two
// records. Unset columns do not participate.
func (r *Record) Equal(other *Record) bool {
	if len(r.fields) != len(other.fields) {
		return false
	}
	for i := range r.fields {
		if r.fields[i] != other.fields[i] {
			return false
		}
	}
	return true
}

// Clone returns an independent copy of the record.
func (r *Record) Clone() *Record {
	cp := make([]field, len(r.fields))
	copy(cp, r.fields)
	return &Record{fields: cp}
}

// MergeFrom populates the record with every populated pair of other,
// replacing values on overlap. The merge engine uses it to assemble output
// rows; other is never modified.
func (r *Record) MergeFrom(other *Record) {
	for _, f := range other.fields {
		r.Set(f.name, f.value)
	}
}
