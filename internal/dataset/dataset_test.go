package dataset

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDataset_AddColumn(t *testing.T) {
	t.Run("tracks columns in insertion order", func(t *testing.T) {
		d := New()
		require.NoError(t, d.AddColumn(NewNumericColumn("views", []float64{1, 2}, nil)))
		require.NoError(t, d.AddColumn(NewCategoricalColumn("title", []string{"a", "b"}, nil)))

		assert.Equal(t, []string{"views", "title"}, d.Names())
		assert.Equal(t, 2, d.NumRows())
	})

	t.Run("rejects duplicate names", func(t *testing.T) {
		d := New()
		require.NoError(t, d.AddColumn(NewNumericColumn("views", []float64{1}, nil)))
		err := d.AddColumn(NewNumericColumn("views", []float64{2}, nil))
		assert.Error(t, err)
	})

	t.Run("rejects mismatched lengths", func(t *testing.T) {
		d := New()
		require.NoError(t, d.AddColumn(NewNumericColumn("views", []float64{1, 2}, nil)))
		err := d.AddColumn(NewNumericColumn("likes", []float64{1}, nil))
		assert.Error(t, err)
	})
}

func TestColumn_Missing(t *testing.T) {
	c := NewNumericColumn("likes", []float64{10, 0, 30}, []bool{false, true, false})

	assert.Equal(t, 1, c.MissingCount())
	assert.False(t, c.IsComplete())

	c.SetFloat(1, 20)
	assert.Equal(t, 0, c.MissingCount())
	assert.True(t, c.IsComplete())
	assert.Equal(t, 20.0, c.Floats[1])
}

func TestReadCSV(t *testing.T) {
	t.Run("classifies numeric and categorical columns", func(t *testing.T) {
		in := strings.NewReader("title,views\nfirst,100\nsecond,200\n")
		d, err := ReadCSV(in)
		require.NoError(t, err)

		title, ok := d.Column("title")
		require.True(t, ok)
		assert.Equal(t, KindCategorical, title.Kind)

		views, ok := d.Column("views")
		require.True(t, ok)
		assert.Equal(t, KindNumeric, views.Kind)
		assert.Equal(t, []float64{100, 200}, views.Floats)
	})

	t.Run("marks empty cells missing", func(t *testing.T) {
		in := strings.NewReader("title,views\nfirst,100\nsecond,\n,300\n")
		d, err := ReadCSV(in)
		require.NoError(t, err)

		views, _ := d.Column("views")
		assert.Equal(t, []bool{false, true, false}, views.Missing)

		title, _ := d.Column("title")
		assert.Equal(t, []bool{false, false, true}, title.Missing)

		assert.Equal(t, 2, d.MissingCells())
	})
}

func TestWriteCSV(t *testing.T) {
	d := New()
	require.NoError(t, d.AddColumn(NewCategoricalColumn("title", []string{"a", ""}, []bool{false, true})))
	require.NoError(t, d.AddColumn(NewNumericColumn("views", []float64{1.5, 2}, nil)))

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, d))

	assert.Equal(t, "title,views\na,1.5\n,2\n", buf.String())
}

func TestCSVRoundTrip(t *testing.T) {
	in := "title,views\nfirst,100\nsecond,200\n"
	d, err := ReadCSV(strings.NewReader(in))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, d))
	assert.Equal(t, in, buf.String())
}
