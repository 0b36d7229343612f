package impute

import (
	"fmt"
	"strings"
)

// Status of one column after an imputation pass.
type Status string

const (
	StatusImputed Status = "imputed"
	StatusSkipped Status = "skipped"
	StatusFailed  Status = "failed"
)

// Validation metric names.
const (
	MetricMSE      = "mse"
	MetricAccuracy = "accuracy"
)

// ColumnResult records what happened to one column that had missing
// cells.
type ColumnResult struct {
	Column string
	Kind   string
	Status Status
	Filled int
	Metric string  // hold-out metric name, empty when no rows were held out
	Score  float64 // hold-out MSE (numeric) or accuracy (categorical)
	Err    error
}

// Report summarizes an imputation pass. Only columns that entered the
// pass with missing cells appear.
type Report struct {
	Results []ColumnResult
}

func (r *Report) add(res ColumnResult) {
	r.Results = append(r.Results, res)
}

// Filled returns the total number of cells written.
func (r *Report) Filled() int {
	n := 0
	for _, res := range r.Results {
		n += res.Filled
	}
	return n
}

// Unresolved returns the columns left with missing cells.
func (r *Report) Unresolved() []ColumnResult {
	var out []ColumnResult
	for _, res := range r.Results {
		if res.Status != StatusImputed {
			out = append(out, res)
		}
	}
	return out
}

// Summary renders a one-line-per-column report.
func (r *Report) Summary() string {
	if len(r.Results) == 0 {
		return "no columns required imputation"
	}
	var sb strings.Builder
	for _, res := range r.Results {
		switch res.Status {
		case StatusImputed:
			if res.Metric != "" {
				fmt.Fprintf(&sb, "%s (%s): filled %d cells, %s %.4f\n",
					res.Column, res.Kind, res.Filled, res.Metric, res.Score)
			} else {
				fmt.Fprintf(&sb, "%s (%s): filled %d cells\n", res.Column, res.Kind, res.Filled)
			}
		default:
			fmt.Fprintf(&sb, "%s (%s): %s: %v\n", res.Column, res.Kind, res.Status, res.Err)
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}
