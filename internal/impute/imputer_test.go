package impute

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tubemetrics/trendpipe/internal/dataset"
	"github.com/tubemetrics/trendpipe/internal/forest"
)

func testImputer(opts Options) *Imputer {
	return New(opts, nil, zap.NewNop())
}

func numericWithHole() *dataset.Dataset {
	d := dataset.New()
	_ = d.AddColumn(dataset.NewNumericColumn("a",
		[]float64{1, 2, 0, 4}, []bool{false, false, true, false}))
	_ = d.AddColumn(dataset.NewNumericColumn("b",
		[]float64{10, 20, 30, 40}, nil))
	return d
}

func TestImputer_NumericColumn(t *testing.T) {
	ds := numericWithHole()
	im := testImputer(Options{TreeCount: 30, RandomSeed: 1, MinLabeled: 1})

	report, err := im.Run(context.Background(), ds)
	require.NoError(t, err)

	require.Len(t, report.Results, 1)
	res := report.Results[0]
	assert.Equal(t, "a", res.Column)
	assert.Equal(t, StatusImputed, res.Status)
	assert.Equal(t, 1, res.Filled)

	a, _ := ds.Column("a")
	assert.True(t, a.IsComplete())
	// Forest predictions average observed labels, so the filled cell
	// must land inside the observed range.
	assert.GreaterOrEqual(t, a.Floats[2], 1.0)
	assert.LessOrEqual(t, a.Floats[2], 4.0)
}

func TestImputer_MissingNeverIncreases(t *testing.T) {
	ds := numericWithHole()
	before := ds.MissingCells()

	im := testImputer(Options{TreeCount: 10, RandomSeed: 1, MinLabeled: 1})
	_, err := im.Run(context.Background(), ds)
	require.NoError(t, err)

	assert.LessOrEqual(t, ds.MissingCells(), before)
}

func TestImputer_Idempotent(t *testing.T) {
	ds := numericWithHole()
	im := testImputer(Options{TreeCount: 10, RandomSeed: 1, MinLabeled: 1})

	_, err := im.Run(context.Background(), ds)
	require.NoError(t, err)
	a, _ := ds.Column("a")
	filled := append([]float64(nil), a.Floats...)

	report, err := im.Run(context.Background(), ds)
	require.NoError(t, err)
	assert.Empty(t, report.Results)
	assert.Equal(t, filled, a.Floats)
}

func TestImputer_NoCompleteFeatures(t *testing.T) {
	d := dataset.New()
	require.NoError(t, d.AddColumn(dataset.NewNumericColumn("a",
		[]float64{1, 0, 3}, []bool{false, true, false})))
	require.NoError(t, d.AddColumn(dataset.NewNumericColumn("b",
		[]float64{0, 2, 3}, []bool{true, false, false})))

	aBefore := append([]float64(nil), mustColumn(t, d, "a").Floats...)
	aMissing := append([]bool(nil), mustColumn(t, d, "a").Missing...)

	im := testImputer(Options{TreeCount: 10, MinLabeled: 1})
	report, err := im.Run(context.Background(), d)
	require.NoError(t, err)

	require.Len(t, report.Results, 2)
	for _, res := range report.Results {
		assert.Equal(t, StatusSkipped, res.Status)
		var insufficient *InsufficientFeaturesError
		assert.ErrorAs(t, res.Err, &insufficient)
	}

	// Untouched: values and markers byte-identical.
	assert.Equal(t, aBefore, mustColumn(t, d, "a").Floats)
	assert.Equal(t, aMissing, mustColumn(t, d, "a").Missing)
}

func TestImputer_SingleClassCategorical(t *testing.T) {
	d := dataset.New()
	require.NoError(t, d.AddColumn(dataset.NewCategoricalColumn("tags",
		[]string{"music", "music", "music", ""}, []bool{false, false, false, true})))
	require.NoError(t, d.AddColumn(dataset.NewNumericColumn("views",
		[]float64{1, 2, 3, 4}, nil)))

	im := testImputer(Options{TreeCount: 10, MinLabeled: 1})
	report, err := im.Run(context.Background(), d)
	require.NoError(t, err)

	require.Len(t, report.Results, 1)
	res := report.Results[0]
	assert.Equal(t, StatusFailed, res.Status)

	var trainErr *TrainingError
	require.ErrorAs(t, res.Err, &trainErr)
	assert.True(t, errors.Is(res.Err, forest.ErrSingleClass))

	tags := mustColumn(t, d, "tags")
	assert.Equal(t, 1, tags.MissingCount())
}

func TestImputer_EntirelyMissingColumn(t *testing.T) {
	d := dataset.New()
	require.NoError(t, d.AddColumn(dataset.NewNumericColumn("a",
		[]float64{0, 0}, []bool{true, true})))
	require.NoError(t, d.AddColumn(dataset.NewNumericColumn("b",
		[]float64{1, 2}, nil)))

	im := testImputer(Options{TreeCount: 10, MinLabeled: 1})
	report, err := im.Run(context.Background(), d)
	require.NoError(t, err)

	require.Len(t, report.Results, 1)
	res := report.Results[0]
	assert.Equal(t, StatusSkipped, res.Status)

	var labels *InsufficientLabelsError
	require.ErrorAs(t, res.Err, &labels)
	assert.Equal(t, 0, labels.Labeled)
}

func TestImputer_MinLabeledThreshold(t *testing.T) {
	ds := numericWithHole() // 3 labeled rows in "a"
	im := testImputer(Options{TreeCount: 10, MinLabeled: 10})

	report, err := im.Run(context.Background(), ds)
	require.NoError(t, err)

	require.Len(t, report.Results, 1)
	assert.Equal(t, StatusSkipped, report.Results[0].Status)
	assert.Equal(t, 1, mustColumn(t, ds, "a").MissingCount())
}

func TestImputer_FrozenFeatureSet(t *testing.T) {
	// Three columns: c is complete, a and b have holes. After a is
	// imputed it must NOT become a feature for b: both columns see
	// only c.
	d := dataset.New()
	require.NoError(t, d.AddColumn(dataset.NewNumericColumn("a",
		[]float64{1, 2, 0, 4, 5, 6}, []bool{false, false, true, false, false, false})))
	require.NoError(t, d.AddColumn(dataset.NewNumericColumn("b",
		[]float64{2, 4, 6, 0, 10, 12}, []bool{false, false, false, true, false, false})))
	require.NoError(t, d.AddColumn(dataset.NewNumericColumn("c",
		[]float64{10, 20, 30, 40, 50, 60}, nil)))

	im := testImputer(Options{TreeCount: 20, RandomSeed: 1, MinLabeled: 1})
	report, err := im.Run(context.Background(), d)
	require.NoError(t, err)

	for _, res := range report.Results {
		assert.Equal(t, StatusImputed, res.Status)
	}
	assert.Equal(t, 0, d.MissingCells())
}

func TestImputer_DemoSchema(t *testing.T) {
	// The fixed downstream schema with synthetic holes in category_id
	// and likes.
	rows := 12
	names := []string{"video_id", "title", "channel_title", "publish_time", "tags"}
	d := dataset.New()
	for _, name := range names {
		vals := make([]string, rows)
		for i := range vals {
			vals[i] = name + "-" + string(rune('a'+i%4))
		}
		require.NoError(t, d.AddColumn(dataset.NewCategoricalColumn(name, vals, nil)))
	}

	numeric := map[string][]int{"category_id": {2, 7}, "likes": {5}, "views": nil, "dislikes": nil, "comment_count": nil}
	for name, holes := range numeric {
		vals := make([]float64, rows)
		missing := make([]bool, rows)
		for i := range vals {
			vals[i] = float64((i + 1) * 10)
		}
		for _, h := range holes {
			vals[h] = 0
			missing[h] = true
		}
		require.NoError(t, d.AddColumn(dataset.NewNumericColumn(name, vals, missing)))
	}

	im := testImputer(Options{TreeCount: 20, RandomSeed: 1, MinLabeled: 1})
	report, err := im.Run(context.Background(), d)
	require.NoError(t, err)

	assert.Equal(t, 0, mustColumn(t, d, "category_id").MissingCount())
	assert.Equal(t, 0, mustColumn(t, d, "likes").MissingCount())
	assert.Equal(t, 3, report.Filled())
	assert.Empty(t, report.Unresolved())
}

func TestImputer_HoldoutScore(t *testing.T) {
	t.Run("numeric column reports hold-out mse", func(t *testing.T) {
		rows := 12
		a := make([]float64, rows)
		b := make([]float64, rows)
		missing := make([]bool, rows)
		for i := range a {
			a[i] = float64(2 * (i + 1))
			b[i] = float64(i + 1)
		}
		a[6], missing[6] = 0, true

		d := dataset.New()
		require.NoError(t, d.AddColumn(dataset.NewNumericColumn("a", a, missing)))
		require.NoError(t, d.AddColumn(dataset.NewNumericColumn("b", b, nil)))

		im := testImputer(Options{TreeCount: 20, RandomSeed: 1, MinLabeled: 5})
		report, err := im.Run(context.Background(), d)
		require.NoError(t, err)

		require.Len(t, report.Results, 1)
		res := report.Results[0]
		assert.Equal(t, StatusImputed, res.Status)
		assert.Equal(t, MetricMSE, res.Metric)
		assert.GreaterOrEqual(t, res.Score, 0.0)
		assert.Contains(t, report.Summary(), MetricMSE)
	})

	t.Run("categorical column reports hold-out accuracy", func(t *testing.T) {
		rows := 12
		tags := make([]string, rows)
		views := make([]float64, rows)
		missing := make([]bool, rows)
		for i := range tags {
			if i%2 == 0 {
				tags[i] = "music"
			} else {
				tags[i] = "news"
			}
			views[i] = float64(i + 1)
		}
		tags[3], missing[3] = "", true

		d := dataset.New()
		require.NoError(t, d.AddColumn(dataset.NewCategoricalColumn("tags", tags, missing)))
		require.NoError(t, d.AddColumn(dataset.NewNumericColumn("views", views, nil)))

		im := testImputer(Options{TreeCount: 20, RandomSeed: 1, MinLabeled: 5})
		report, err := im.Run(context.Background(), d)
		require.NoError(t, err)

		require.Len(t, report.Results, 1)
		res := report.Results[0]
		assert.Equal(t, StatusImputed, res.Status)
		assert.Equal(t, MetricAccuracy, res.Metric)
		assert.GreaterOrEqual(t, res.Score, 0.0)
		assert.LessOrEqual(t, res.Score, 1.0)
	})

	t.Run("too few labeled rows to hold out means no score", func(t *testing.T) {
		ds := numericWithHole() // 3 labeled rows, under the hold-out minimum
		im := testImputer(Options{TreeCount: 10, RandomSeed: 1, MinLabeled: 1})

		report, err := im.Run(context.Background(), ds)
		require.NoError(t, err)

		require.Len(t, report.Results, 1)
		res := report.Results[0]
		assert.Equal(t, StatusImputed, res.Status)
		assert.Empty(t, res.Metric)
	})
}

func TestImputer_InvalidTreeCount(t *testing.T) {
	// A negative tree count from config must surface as a per-column
	// training failure, not a panic.
	rows := 12
	a := make([]float64, rows)
	b := make([]float64, rows)
	missing := make([]bool, rows)
	for i := range a {
		a[i] = float64(i)
		b[i] = float64(i * 10)
	}
	a[2], missing[2] = 0, true

	d := dataset.New()
	require.NoError(t, d.AddColumn(dataset.NewNumericColumn("a", a, missing)))
	require.NoError(t, d.AddColumn(dataset.NewNumericColumn("b", b, nil)))

	im := testImputer(Options{TreeCount: -1, MinLabeled: 1})
	report, err := im.Run(context.Background(), d)
	require.NoError(t, err)

	require.Len(t, report.Results, 1)
	res := report.Results[0]
	assert.Equal(t, StatusFailed, res.Status)
	var trainErr *TrainingError
	assert.ErrorAs(t, res.Err, &trainErr)
	assert.Equal(t, 1, mustColumn(t, d, "a").MissingCount())
}

func TestImputer_UnknownKind(t *testing.T) {
	d := dataset.New()
	bad := &dataset.Column{Name: "mystery", Missing: []bool{true, false}}
	require.NoError(t, d.AddColumn(bad))
	require.NoError(t, d.AddColumn(dataset.NewNumericColumn("b", []float64{1, 2}, nil)))

	im := testImputer(Options{TreeCount: 5, MinLabeled: 1})
	report, err := im.Run(context.Background(), d)
	require.NoError(t, err)

	require.Len(t, report.Results, 1)
	res := report.Results[0]
	assert.Equal(t, StatusFailed, res.Status)
	var classErr *ClassificationError
	assert.ErrorAs(t, res.Err, &classErr)
}

func mustColumn(t *testing.T, d *dataset.Dataset, name string) *dataset.Column {
	t.Helper()
	c, ok := d.Column(name)
	require.True(t, ok)
	return c
}
