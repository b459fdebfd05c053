package record

import (
	"github.com/kminoda/CARET-analyze/pkg/errors"
)

// ColumnAttribute classifies the semantic role of a column.
type ColumnAttribute string

const (
	// AttrSystemTime marks a wall-clock timestamp usable as a sequencing key
	AttrSystemTime ColumnAttribute = "system_time"
	// AttrStartTime marks the start of a measured interval
	AttrStartTime ColumnAttribute = "start_time"
	// AttrEndTime marks the end of a measured interval
	AttrEndTime ColumnAttribute = "end_time"
	// AttrResourceID marks a reused resource identifier such as a buffer address
	AttrResourceID ColumnAttribute = "resource_id"
	// AttrOptional marks a column that is legitimately unset on partial paths
	AttrOptional ColumnAttribute = "optional"
	// AttrNodeIO marks a column recorded at a node input or output boundary
	AttrNodeIO ColumnAttribute = "node_io"
)

// ColumnValue is an immutable column descriptor: a name plus attribute tags.
// Descriptors are the construction currency for table schemas.
type ColumnValue struct {
	name  string
	attrs []ColumnAttribute
}

// NewColumnValue creates a column descriptor.
func NewColumnValue(name string, attrs ...ColumnAttribute) ColumnValue {
	cp := make([]ColumnAttribute, len(attrs))
	copy(cp, attrs)
	return ColumnValue{name: name, attrs: cp}
}

// Name returns the column name.
func (v ColumnValue) Name() string { return v.name }

// Attributes returns the attribute tags of the column.
func (v ColumnValue) Attributes() []ColumnAttribute {
	cp := make([]ColumnAttribute, len(v.attrs))
	copy(cp, v.attrs)
	return cp
}

// HasAttribute reports whether the column carries the given attribute.
func (v ColumnValue) HasAttribute(attr ColumnAttribute) bool {
	for _, a := range v.attrs {
		if a == attr {
			return true
		}
	}
	return false
}

// renamed returns a copy of the descriptor under a new name, keeping the
// attribute tags.
func (v ColumnValue) renamed(name string) ColumnValue {
	return ColumnValue{name: name, attrs: v.attrs}
}

// Column is a registered column inside a Columns schema.
type Column struct {
	value ColumnValue
	index int
}

// Name returns the column name.
func (c Column) Name() string { return c.value.Name() }

// Index returns the position of the column within its schema.
func (c Column) Index() int { return c.index }

// Attributes returns the attribute tags of the column.
func (c Column) Attributes() []ColumnAttribute { return c.value.Attributes() }

// HasAttribute reports whether the column carries the given attribute.
func (c Column) HasAttribute(attr ColumnAttribute) bool { return c.value.HasAttribute(attr) }

// Value returns the descriptor the column was registered from.
func (c Column) Value() ColumnValue { return c.value }

// Columns is an ordered, name-unique column collection with by-name lookup.
type Columns struct {
	items []Column
	lut   map[string]int
}

// NewColumns creates a schema from descriptors. Duplicate names are dropped,
// first occurrence wins.
func NewColumns(values ...ColumnValue) *Columns {
	c := &Columns{lut: make(map[string]int, len(values))}
	for _, v := range values {
		c.Add(v)
	}
	return c
}

// Add registers a descriptor. It reports false if the name is already
// registered, leaving the existing column untouched.
func (c *Columns) Add(v ColumnValue) bool {
	if _, ok := c.lut[v.Name()]; ok {
		return false
	}
	c.lut[v.Name()] = len(c.items)
	c.items = append(c.items, Column{value: v, index: len(c.items)})
	return true
}

// Len returns the number of registered columns.
func (c *Columns) Len() int { return len(c.items) }

// At returns the column at position i.
func (c *Columns) At(i int) Column { return c.items[i] }

// Has reports whether a column with the given name is registered.
func (c *Columns) Has(name string) bool {
	_, ok := c.lut[name]
	return ok
}

// Get returns the column registered under name.
func (c *Columns) Get(name string) (Column, bool) {
	i, ok := c.lut[name]
	if !ok {
		return Column{}, false
	}
	return c.items[i], true
}

// Index returns the position of name within the schema.
func (c *Columns) Index(name string) (int, bool) {
	i, ok := c.lut[name]
	return i, ok
}

// Names returns the column names in schema order.
func (c *Columns) Names() []string {
	names := make([]string, len(c.items))
	for i, col := range c.items {
		names[i] = col.Name()
	}
	return names
}

// Rename changes the name of a registered column, keeping its position and
// attributes. It fails if old is not registered or new already is.
func (c *Columns) Rename(old, new string) error {
	i, ok := c.lut[old]
	if !ok {
		return errors.Newf(errors.ErrorTypeSchema, "column %q not found", old)
	}
	if old == new {
		return nil
	}
	if _, ok := c.lut[new]; ok {
		return errors.Newf(errors.ErrorTypeConflict, "column %q already exists", new)
	}
	c.items[i] = Column{value: c.items[i].value.renamed(new), index: i}
	delete(c.lut, old)
	c.lut[new] = i
	return nil
}

// Drop removes the named columns. Names that are not registered are ignored.
func (c *Columns) Drop(names ...string) {
	drop := make(map[string]struct{}, len(names))
	for _, n := range names {
		drop[n] = struct{}{}
	}
	kept := c.items[:0]
	for _, col := range c.items {
		if _, ok := drop[col.Name()]; ok {
			delete(c.lut, col.Name())
			continue
		}
		kept = append(kept, col)
	}
	c.items = kept
	for i := range c.items {
		c.items[i].index = i
		c.lut[c.items[i].Name()] = i
	}
}

// WithAttribute returns the columns carrying the given attribute, in schema
// order.
func (c *Columns) WithAttribute(attr ColumnAttribute) []Column {
	var out []Column
	for _, col := range c.items {
		if col.HasAttribute(attr) {
			out = append(out, col)
		}
	}
	return out
}

// DefaultSequenceColumn returns the schema's default sequencing column: the
// first column tagged system_time, else the first tagged start_time.
func (c *Columns) DefaultSequenceColumn() (string, bool) {
	for _, attr := range []ColumnAttribute{AttrSystemTime, AttrStartTime} {
		for _, col := range c.items {
			if col.HasAttribute(attr) {
				return col.Name(), true
			}
		}
	}
	return "", false
}

// Clone returns an independent copy of the schema.
func (c *Columns) Clone() *Columns {
	cp := &Columns{
		items: make([]Column, len(c.items)),
		lut:   make(map[string]int, len(c.lut)),
	}
	copy(cp.items, c.items)
	for k, v := range c.lut {
		cp.lut[k] = v
	}
	return cp
}

// Equal reports whether two schemas register the same names in the same
// order.
func (c *Columns) Equal(other *Columns) bool {
	if c.Len() != other.Len() {
		return false
	}
	for i := range c.items {
		if c.items[i].Name() != other.items[i].Name() {
			return false
		}
	}
	return true
}

// UniqueList is an insertion-ordered set. It preserves first-insertion order
// and drops later duplicates, giving a stable, deduplicated ordering over
// discovered keys.
type UniqueList[T comparable] struct {
	items []T
	seen  map[T]struct{}
}

// NewUniqueList creates a UniqueList seeded with items.
func NewUniqueList[T comparable](items ...T) *UniqueList[T] {
	u := &UniqueList[T]{seen: make(map[T]struct{}, len(items))}
	for _, it := range items {
		u.Add(it)
	}
	return u
}

// Add inserts item unless already present. It reports whether the item was
// inserted.
func (u *UniqueList[T]) Add(item T) bool {
	if _, ok := u.seen[item]; ok {
		return false
	}
	u.seen[item] = struct{}{}
	u.items = append(u.items, item)
	return true
}

// Has reports whether item is present.
func (u *UniqueList[T]) Has(item T) bool {
	_, ok := u.seen[item]
	return ok
}

// Len returns the number of items.
func (u *UniqueList[T]) Len() int { return len(u.items) }

// At returns the item at position i.
func (u *UniqueList[T]) At(i int) T { return u.items[i] }

// Items returns the items in first-insertion order.
func (u *UniqueList[T]) Items() []T {
	cp := make([]T, len(u.items))
	copy(cp, u.items)
	return cp
}

// ColumnMapper resolves column naming between the two sides of a merge.
// Columns that capture the same logical field at two trace points keep
// distinguishable names in the merged output, while join-key columns stay
// aligned. Mappers are passed explicitly into each merge call; there is no
// global rename registry.
type ColumnMapper struct {
	left  map[string]string
	right map[string]string
}

// NewColumnMapper creates an empty mapper. A nil *ColumnMapper is valid and
// maps every name to itself.
func NewColumnMapper() *ColumnMapper {
	return &ColumnMapper{
		left:  make(map[string]string),
		right: make(map[string]string),
	}
}

// MapLeft renames a left-side column in the merged output.
func (m *ColumnMapper) MapLeft(from, to string) *ColumnMapper {
	m.left[from] = to
	return m
}

// MapRight renames a right-side column in the merged output.
func (m *ColumnMapper) MapRight(from, to string) *ColumnMapper {
	m.right[from] = to
	return m
}

// LeftName returns the output name of a left-side column.
func (m *ColumnMapper) LeftName(name string) string {
	if m == nil {
		return name
	}
	if to, ok := m.left[name]; ok {
		return to
	}
	return name
}

// RightName returns the output name of a right-side column.
func (m *ColumnMapper) RightName(name string) string {
	if m == nil {
		return name
	}
	if to, ok := m.right[name]; ok {
		return to
	}
	return name
}
