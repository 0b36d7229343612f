// Package impute fills missing dataset cells with predictions from
// per-column random-forest models. Each column with missing values is
// treated as a supervised learning target: the rows where it is
// present are training data, the features are the other columns that
// are complete in the original dataset.
package impute

import (
	"context"
	"math/rand"

	"go.uber.org/zap"

	"github.com/tubemetrics/trendpipe/internal/dataset"
	"github.com/tubemetrics/trendpipe/internal/forest"
	"github.com/tubemetrics/trendpipe/internal/modelstore"
)

// Options are the imputation hyperparameters.
type Options struct {
	TreeCount  int   // trees per forest
	MaxDepth   int   // 0 => unlimited
	RandomSeed int64 // fixed seed for reproducible runs
	MinLabeled int   // minimum labeled rows to train on
}

func (o Options) withDefaults() Options {
	if o.TreeCount == 0 {
		o.TreeCount = 100
	}
	if o.RandomSeed == 0 {
		o.RandomSeed = 42
	}
	if o.MinLabeled == 0 {
		o.MinLabeled = 10
	}
	return o
}

// Imputer runs model-based imputation passes. The store is optional;
// when present, each trained model is saved keyed by its column name.
type Imputer struct {
	opts   Options
	store  modelstore.Store
	logger *zap.Logger
}

// New creates an imputer. store may be nil to skip model persistence.
func New(opts Options, store modelstore.Store, logger *zap.Logger) *Imputer {
	return &Imputer{opts: opts.withDefaults(), store: store, logger: logger}
}

// Run imputes every eligible column of ds in place and returns a
// per-column report. Column failures are recorded, never fatal: a
// partially imputed dataset is the normal outcome for noisy data.
//
// Feature completeness is frozen against the original dataset. A
// column filled during this pass never serves as a feature for a later
// one, so model error cannot compound silently across columns.
func (im *Imputer) Run(ctx context.Context, ds *dataset.Dataset) (*Report, error) {
	if ds.NumRows() == 0 {
		return &Report{}, nil
	}

	classified := make(map[string]error)
	var complete []*dataset.Column
	for _, c := range ds.Columns() {
		if err := classify(c); err != nil {
			classified[c.Name] = err
			continue
		}
		if c.IsComplete() {
			complete = append(complete, c)
		}
	}

	report := &Report{}
	for _, target := range ds.Columns() {
		missing := target.MissingCount()
		if missing == 0 {
			continue
		}

		res := ColumnResult{Column: target.Name, Kind: target.Kind.String()}
		if err, ok := classified[target.Name]; ok {
			res.Status, res.Err = StatusFailed, err
		} else {
			res = im.imputeColumn(ctx, target, featuresFor(target, complete), res)
		}
		report.add(res)

		if res.Err != nil {
			im.logger.Warn("column unresolved",
				zap.String("column", target.Name),
				zap.String("status", string(res.Status)),
				zap.Error(res.Err))
		} else {
			fields := []zap.Field{
				zap.String("column", target.Name),
				zap.String("kind", res.Kind),
				zap.Int("filled", res.Filled),
			}
			if res.Metric != "" {
				fields = append(fields, zap.String("metric", res.Metric), zap.Float64("score", res.Score))
			}
			im.logger.Info("column imputed", fields...)
		}
	}
	return report, nil
}

// classify validates the tagged column kind against its storage.
func classify(c *dataset.Column) error {
	switch c.Kind {
	case dataset.KindNumeric:
		if len(c.Floats) != len(c.Missing) {
			return &ClassificationError{Column: c.Name, Reason: "numeric values not row-aligned"}
		}
	case dataset.KindCategorical:
		if len(c.Strings) != len(c.Missing) {
			return &ClassificationError{Column: c.Name, Reason: "categorical values not row-aligned"}
		}
	default:
		return &ClassificationError{Column: c.Name, Reason: "value domain is neither numeric nor categorical"}
	}
	return nil
}

func featuresFor(target *dataset.Column, complete []*dataset.Column) []*dataset.Column {
	var out []*dataset.Column
	for _, c := range complete {
		if c.Name != target.Name {
			out = append(out, c)
		}
	}
	return out
}

func (im *Imputer) imputeColumn(ctx context.Context, target *dataset.Column, features []*dataset.Column, res ColumnResult) ColumnResult {
	if len(features) == 0 {
		res.Status = StatusSkipped
		res.Err = &InsufficientFeaturesError{Column: target.Name}
		return res
	}

	var labeled, unlabeled []int
	for row, m := range target.Missing {
		if m {
			unlabeled = append(unlabeled, row)
		} else {
			labeled = append(labeled, row)
		}
	}
	if len(labeled) < im.opts.MinLabeled {
		res.Status = StatusSkipped
		res.Err = &InsufficientLabelsError{Column: target.Name, Labeled: len(labeled), Needed: im.opts.MinLabeled}
		return res
	}

	train, hold := splitLabeled(labeled, im.opts.RandomSeed)

	enc := newFeatureEncoder(features, labeled)
	task := columnTask{
		enc:       enc,
		XTrain:    enc.encodeRows(train),
		XHold:     enc.encodeRows(hold),
		XPredict:  enc.encodeRows(unlabeled),
		train:     train,
		hold:      hold,
		unlabeled: unlabeled,
	}

	opts := []forest.Option{
		forest.WithTreeCount(im.opts.TreeCount),
		forest.WithMaxDepth(im.opts.MaxDepth),
		forest.WithSeed(im.opts.RandomSeed),
	}

	if target.Kind == dataset.KindNumeric {
		return im.imputeNumeric(ctx, target, task, opts, res)
	}
	return im.imputeCategorical(ctx, target, task, opts, res)
}

// columnTask carries the encoded design matrices for one target column.
type columnTask struct {
	enc                     *featureEncoder
	XTrain, XHold, XPredict [][]float64
	train, hold, unlabeled  []int
}

// splitLabeled holds out a fifth of the labeled rows so the trained
// model can be scored on rows it never saw, deterministic for a fixed
// seed. Too few labeled rows means no hold-out and no score.
func splitLabeled(labeled []int, seed int64) (train, hold []int) {
	n := len(labeled) / 5
	if n == 0 {
		return labeled, nil
	}
	shuffled := make([]int, len(labeled))
	copy(shuffled, labeled)
	rnd := rand.New(rand.NewSource(seed))
	rnd.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
	return shuffled[n:], shuffled[:n]
}

func (im *Imputer) imputeNumeric(ctx context.Context, target *dataset.Column, t columnTask, opts []forest.Option, res ColumnResult) ColumnResult {
	y := make([]float64, len(t.train))
	for i, row := range t.train {
		y[i] = target.Floats[row]
	}

	model := forest.NewRegressor(opts...)
	if err := model.Fit(t.XTrain, y); err != nil {
		res.Status = StatusFailed
		res.Err = &TrainingError{Column: target.Name, Err: err}
		return res
	}

	if len(t.hold) > 0 {
		scored, err := model.Predict(t.XHold)
		if err != nil {
			res.Status = StatusFailed
			res.Err = &PredictionError{Column: target.Name, Err: err}
			return res
		}
		sse := 0.0
		for i, row := range t.hold {
			d := scored[i] - target.Floats[row]
			sse += d * d
		}
		res.Metric = MetricMSE
		res.Score = sse / float64(len(t.hold))
	}

	preds, err := model.Predict(t.XPredict)
	if err != nil {
		res.Status = StatusFailed
		res.Err = &PredictionError{Column: target.Name, Err: err}
		return res
	}

	for i, row := range t.unlabeled {
		v := preds[i]
		if v < 0 {
			v = 0 // counts and durations cannot go negative
		}
		target.SetFloat(row, v)
	}
	res.Status = StatusImputed
	res.Filled = len(t.unlabeled)

	im.saveModel(ctx, target, t.enc, model, nil)
	return res
}

func (im *Imputer) imputeCategorical(ctx context.Context, target *dataset.Column, t columnTask, opts []forest.Option, res ColumnResult) ColumnResult {
	classes := make([]string, 0)
	index := make(map[string]int)
	classOf := func(row int) int {
		v := target.Strings[row]
		k, ok := index[v]
		if !ok {
			k = len(classes)
			index[v] = k
			classes = append(classes, v)
		}
		return k
	}
	y := make([]int, len(t.train))
	for i, row := range t.train {
		y[i] = classOf(row)
	}
	for _, row := range t.hold {
		classOf(row)
	}

	model := forest.NewClassifier(opts...)
	if err := model.Fit(t.XTrain, y); err != nil {
		res.Status = StatusFailed
		res.Err = &TrainingError{Column: target.Name, Err: err}
		return res
	}

	if len(t.hold) > 0 {
		scored, err := model.Predict(t.XHold)
		if err != nil {
			res.Status = StatusFailed
			res.Err = &PredictionError{Column: target.Name, Err: err}
			return res
		}
		correct := 0
		for i, row := range t.hold {
			if classes[scored[i]] == target.Strings[row] {
				correct++
			}
		}
		res.Metric = MetricAccuracy
		res.Score = float64(correct) / float64(len(t.hold))
	}

	preds, err := model.Predict(t.XPredict)
	if err != nil {
		res.Status = StatusFailed
		res.Err = &PredictionError{Column: target.Name, Err: err}
		return res
	}

	for i, row := range t.unlabeled {
		target.SetString(row, classes[preds[i]])
	}
	res.Status = StatusImputed
	res.Filled = len(t.unlabeled)

	im.saveModel(ctx, target, t.enc, model, classes)
	return res
}

// saveModel persists the trained model keyed by column name. Failures
// only log: persistence is an optimization for later runs, not part of
// the imputation contract.
func (im *Imputer) saveModel(ctx context.Context, target *dataset.Column, enc *featureEncoder, model encodingBinaryMarshaler, classes []string) {
	if im.store == nil {
		return
	}
	data, err := marshalColumnModel(target, enc, model, classes)
	if err != nil {
		im.logger.Warn("serialize model", zap.String("column", target.Name), zap.Error(err))
		return
	}
	if err := im.store.Save(ctx, target.Name, data); err != nil {
		im.logger.Warn("save model", zap.String("column", target.Name), zap.Error(err))
	}
}

type encodingBinaryMarshaler interface {
	MarshalBinary() ([]byte, error)
}
