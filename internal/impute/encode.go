package impute

import (
	"math"

	"github.com/tubemetrics/trendpipe/internal/dataset"
)

// featureEncoder turns rows of complete feature columns into float
// vectors: numeric features standardized to zero mean and unit
// variance, categorical features one-hot encoded. Categories unseen at
// fit time encode to the zero vector.
type featureEncoder struct {
	features []*dataset.Column
	means    []float64
	stds     []float64
	cats     []map[string]int
	width    int
}

// newFeatureEncoder fits the encoder over the given rows of the
// feature columns, normally the labeled rows of the target. Callers
// guarantee the columns are complete.
func newFeatureEncoder(features []*dataset.Column, rows []int) *featureEncoder {
	e := &featureEncoder{
		features: features,
		means:    make([]float64, len(features)),
		stds:     make([]float64, len(features)),
		cats:     make([]map[string]int, len(features)),
	}

	for j, c := range features {
		if c.Kind == dataset.KindNumeric {
			vals := make([]float64, len(rows))
			for i, row := range rows {
				vals[i] = c.Floats[row]
			}
			e.means[j], e.stds[j] = meanStd(vals)
			e.width++
			continue
		}
		seen := make(map[string]int)
		for _, row := range rows {
			v := c.Strings[row]
			if _, ok := seen[v]; !ok {
				seen[v] = len(seen)
			}
		}
		e.cats[j] = seen
		e.width += len(seen)
	}
	return e
}

// encodeRows builds the feature matrix for the given row indices.
func (e *featureEncoder) encodeRows(rows []int) [][]float64 {
	X := make([][]float64, len(rows))
	for i, row := range rows {
		x := make([]float64, 0, e.width)
		for j, c := range e.features {
			if c.Kind == dataset.KindNumeric {
				v := 0.0
				if e.stds[j] != 0 {
					v = (c.Floats[row] - e.means[j]) / e.stds[j]
				}
				x = append(x, v)
				continue
			}
			vec := make([]float64, len(e.cats[j]))
			if k, ok := e.cats[j][c.Strings[row]]; ok {
				vec[k] = 1
			}
			x = append(x, vec...)
		}
		X[i] = x
	}
	return X
}

func meanStd(values []float64) (mean, std float64) {
	n := float64(len(values))
	if n == 0 {
		return 0, 0
	}
	for _, v := range values {
		mean += v
	}
	mean /= n
	for _, v := range values {
		d := v - mean
		std += d * d
	}
	return mean, math.Sqrt(std / n)
}
