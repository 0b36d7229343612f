package dataset

import (
	"fmt"
)

// Kind classifies a column as a regression or classification target.
// It is assigned once, when the column is built, and never changes
// during an imputation pass.
type Kind int

const (
	KindUnknown Kind = iota
	KindNumeric
	KindCategorical
)

// String returns the kind name
func (k Kind) String() string {
	switch k {
	case KindNumeric:
		return "numeric"
	case KindCategorical:
		return "categorical"
	default:
		return "unknown"
	}
}

// Column is an ordered sequence of cells of a single kind.
// Numeric columns store values in Floats, categorical columns in
// Strings; Missing marks cells with no recorded value. All three
// slices are row-aligned.
type Column struct {
	Name    string
	Kind    Kind
	Floats  []float64
	Strings []string
	Missing []bool
}

// NewNumericColumn builds a numeric column. missing may be nil when
// every cell is present.
func NewNumericColumn(name string, values []float64, missing []bool) *Column {
	if missing == nil {
		missing = make([]bool, len(values))
	}
	return &Column{Name: name, Kind: KindNumeric, Floats: values, Missing: missing}
}

// NewCategoricalColumn builds a categorical column. missing may be nil
// when every cell is present.
func NewCategoricalColumn(name string, values []string, missing []bool) *Column {
	if missing == nil {
		missing = make([]bool, len(values))
	}
	return &Column{Name: name, Kind: KindCategorical, Strings: values, Missing: missing}
}

// Len returns the number of rows
func (c *Column) Len() int {
	return len(c.Missing)
}

// MissingCount returns the number of cells with no recorded value
func (c *Column) MissingCount() int {
	n := 0
	for _, m := range c.Missing {
		if m {
			n++
		}
	}
	return n
}

// IsComplete reports whether the column has zero missing cells
func (c *Column) IsComplete() bool {
	return c.MissingCount() == 0
}

// SetFloat fills a numeric cell and clears its missing marker
func (c *Column) SetFloat(row int, v float64) {
	c.Floats[row] = v
	c.Missing[row] = false
}

// SetString fills a categorical cell and clears its missing marker
func (c *Column) SetString(row int, v string) {
	c.Strings[row] = v
	c.Missing[row] = false
}

// Dataset is an ordered collection of named, row-aligned columns.
type Dataset struct {
	cols  []*Column
	index map[string]int
}

// New creates an empty dataset
func New() *Dataset {
	return &Dataset{index: make(map[string]int)}
}

// AddColumn appends a column. Columns must have unique names and equal
// lengths.
func (d *Dataset) AddColumn(c *Column) error {
	if _, ok := d.index[c.Name]; ok {
		return fmt.Errorf("dataset: duplicate column %q", c.Name)
	}
	if len(d.cols) > 0 && c.Len() != d.cols[0].Len() {
		return fmt.Errorf("dataset: column %q has %d rows, want %d",
			c.Name, c.Len(), d.cols[0].Len())
	}
	d.index[c.Name] = len(d.cols)
	d.cols = append(d.cols, c)
	return nil
}

// Column returns the named column
func (d *Dataset) Column(name string) (*Column, bool) {
	i, ok := d.index[name]
	if !ok {
		return nil, false
	}
	return d.cols[i], true
}

// Columns returns all columns in insertion order
func (d *Dataset) Columns() []*Column {
	return d.cols
}

// Names returns column names in insertion order
func (d *Dataset) Names() []string {
	names := make([]string, len(d.cols))
	for i, c := range d.cols {
		names[i] = c.Name
	}
	return names
}

// NumRows returns the row count
func (d *Dataset) NumRows() int {
	if len(d.cols) == 0 {
		return 0
	}
	return d.cols[0].Len()
}

// MissingCells returns the total number of missing cells across all
// columns
func (d *Dataset) MissingCells() int {
	n := 0
	for _, c := range d.cols {
		n += c.MissingCount()
	}
	return n
}
