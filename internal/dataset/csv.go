package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

// markers treated as missing cells on read
var missingMarkers = []string{"", "NA", "NaN", "null", "[none]"}

// ReadCSV parses a CSV stream into a Dataset. Column kinds come from
// gota's type inference: int and float columns become numeric, the
// rest categorical.
func ReadCSV(r io.Reader) (*Dataset, error) {
	df := dataframe.ReadCSV(r,
		dataframe.HasHeader(true),
		dataframe.DetectTypes(true),
		dataframe.DefaultType(series.String),
		dataframe.NaNValues(missingMarkers),
	)
	if df.Err != nil {
		return nil, fmt.Errorf("read csv: %w", df.Err)
	}

	d := New()
	for _, name := range df.Names() {
		col, err := fromSeries(name, df.Col(name))
		if err != nil {
			return nil, err
		}
		if err := d.AddColumn(col); err != nil {
			return nil, err
		}
	}
	return d, nil
}

func fromSeries(name string, s series.Series) (*Column, error) {
	n := s.Len()
	missing := make([]bool, n)

	switch s.Type() {
	case series.Int, series.Float:
		values := make([]float64, n)
		for i := 0; i < n; i++ {
			e := s.Elem(i)
			if e.IsNA() {
				missing[i] = true
				continue
			}
			values[i] = e.Float()
		}
		return NewNumericColumn(name, values, missing), nil
	case series.String, series.Bool:
		values := make([]string, n)
		for i := 0; i < n; i++ {
			e := s.Elem(i)
			if e.IsNA() {
				missing[i] = true
				continue
			}
			values[i] = e.String()
		}
		return NewCategoricalColumn(name, values, missing), nil
	default:
		return nil, fmt.Errorf("read csv: column %q has unsupported type %s", name, s.Type())
	}
}

// WriteCSV serializes the dataset with a header row. Missing cells are
// written as empty fields.
func WriteCSV(w io.Writer, d *Dataset) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(d.Names()); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	cols := d.Columns()
	record := make([]string, len(cols))
	for row := 0; row < d.NumRows(); row++ {
		for j, c := range cols {
			record[j] = cellString(c, row)
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write csv row %d: %w", row, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

func cellString(c *Column, row int) string {
	if c.Missing[row] {
		return ""
	}
	if c.Kind == KindNumeric {
		return strconv.FormatFloat(c.Floats[row], 'f', -1, 64)
	}
	return c.Strings[row]
}
