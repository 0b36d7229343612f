package pipeline

import (
	"context"
	"fmt"
	"os"

	"github.com/tubemetrics/trendpipe/internal/archive"
	"github.com/tubemetrics/trendpipe/internal/database"
	"github.com/tubemetrics/trendpipe/internal/dataset"
	"github.com/tubemetrics/trendpipe/internal/fetch"
	"github.com/tubemetrics/trendpipe/internal/impute"
	"github.com/tubemetrics/trendpipe/internal/metrics"
)

// State is the dataset handed from step to step within one run. The
// run owns it exclusively; it is discarded when the run ends.
type State struct {
	RunID   string
	CSVPath string
	Data    *dataset.Dataset
	Report  *impute.Report
}

// FetchStep downloads the dataset and records the working CSV path.
func FetchStep(f *fetch.Fetcher, opts fetch.Options, st *State) Step {
	return StepFunc{StepName: "fetch", Fn: func(ctx context.Context) error {
		path, err := f.Run(ctx, opts)
		if err != nil {
			return err
		}
		st.CSVPath = path
		return nil
	}}
}

// ImputeStep parses the working CSV and fills missing cells in place.
// Unresolved columns are reported, not fatal.
func ImputeStep(im *impute.Imputer, m *metrics.Metrics, st *State) Step {
	return StepFunc{StepName: "impute", Fn: func(ctx context.Context) error {
		f, err := os.Open(st.CSVPath)
		if err != nil {
			return fmt.Errorf("open dataset: %w", err)
		}
		defer func() { _ = f.Close() }()

		ds, err := dataset.ReadCSV(f)
		if err != nil {
			return err
		}

		report, err := im.Run(ctx, ds)
		if err != nil {
			return err
		}
		st.Data = ds
		st.Report = report

		if m != nil {
			for _, res := range report.Results {
				if res.Status == impute.StatusImputed {
					m.CellsImputed.WithLabelValues(res.Column).Add(float64(res.Filled))
				} else {
					m.ColumnsUnresolved.WithLabelValues(res.Column, string(res.Status)).Inc()
				}
			}
		}
		return nil
	}}
}

// LoadStep replaces the trending_videos table with the imputed
// dataset.
func LoadStep(pg *database.Postgres, m *metrics.Metrics, st *State) Step {
	return StepFunc{StepName: "load", Fn: func(ctx context.Context) error {
		if st.Data == nil {
			return fmt.Errorf("no dataset in pipeline state")
		}
		if err := pg.CreateTables(ctx); err != nil {
			return err
		}
		rows, err := pg.ReplaceTrendingVideos(ctx, st.Data)
		if err != nil {
			return err
		}
		if m != nil {
			m.RowsLoaded.Add(float64(rows))
		}
		return nil
	}}
}

// ArchiveStep uploads the compressed dataset copy.
func ArchiveStep(a *archive.Archiver, st *State) Step {
	return StepFunc{StepName: "archive", Fn: func(ctx context.Context) error {
		if st.Data == nil {
			return fmt.Errorf("no dataset in pipeline state")
		}
		_, err := a.Run(ctx, st.Data, st.RunID)
		return err
	}}
}
