package impute

import "fmt"

// Column-scoped error taxonomy. None of these abort a run: the
// affected column is left with its missing cells unresolved and the
// error lands in the Report.

// ClassificationError means a column's target kind could not be
// determined.
type ClassificationError struct {
	Column string
	Reason string
}

func (e *ClassificationError) Error() string {
	return fmt.Sprintf("classify column %q: %s", e.Column, e.Reason)
}

// InsufficientFeaturesError means no complete feature column existed
// for the target column.
type InsufficientFeaturesError struct {
	Column string
}

func (e *InsufficientFeaturesError) Error() string {
	return fmt.Sprintf("column %q has no complete feature columns", e.Column)
}

// InsufficientLabelsError means too few rows carried a value in the
// target column to train on.
type InsufficientLabelsError struct {
	Column  string
	Labeled int
	Needed  int
}

func (e *InsufficientLabelsError) Error() string {
	return fmt.Sprintf("column %q has %d labeled rows, need %d", e.Column, e.Labeled, e.Needed)
}

// TrainingError means the model fit failed, e.g. a degenerate
// single-class label set.
type TrainingError struct {
	Column string
	Err    error
}

func (e *TrainingError) Error() string {
	return fmt.Sprintf("train model for column %q: %v", e.Column, e.Err)
}

func (e *TrainingError) Unwrap() error { return e.Err }

// PredictionError means model inference failed for the unlabeled rows.
type PredictionError struct {
	Column string
	Err    error
}

func (e *PredictionError) Error() string {
	return fmt.Sprintf("predict column %q: %v", e.Column, e.Err)
}

func (e *PredictionError) Unwrap() error { return e.Err }
