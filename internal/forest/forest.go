// Package forest implements CART decision trees and random-forest
// ensembles for regression and classification. Training is sequential
// and deterministic for a fixed seed, which keeps imputation runs
// reproducible.
package forest

import (
	"bytes"
	"encoding/gob"
	"errors"
	"fmt"
	"math/rand"
)

// ErrSingleClass is returned by Classifier.Fit when every training
// label belongs to one class. A single-class forest would be a
// constant function; callers decide whether that is acceptable.
var ErrSingleClass = errors.New("forest: training labels contain a single class")

// ErrNotFitted is returned by Predict before Fit has run.
var ErrNotFitted = errors.New("forest: model not fitted")

type params struct {
	TreeCount       int
	MaxDepth        int
	MinSamplesSplit int
	MaxFeatures     int
	Seed            int64
}

// Option is a functional hyperparameter setting shared by Regressor
// and Classifier.
type Option func(*params)

func WithTreeCount(n int) Option       { return func(p *params) { p.TreeCount = n } }
func WithMaxDepth(d int) Option        { return func(p *params) { p.MaxDepth = d } }
func WithMinSamplesSplit(n int) Option { return func(p *params) { p.MinSamplesSplit = n } }
func WithMaxFeatures(k int) Option     { return func(p *params) { p.MaxFeatures = k } }
func WithSeed(s int64) Option          { return func(p *params) { p.Seed = s } }

func defaultParams() params {
	return params{
		TreeCount:       100,
		MaxDepth:        0,
		MinSamplesSplit: 2,
		MaxFeatures:     0,
		Seed:            42,
	}
}

func validate(X [][]float64, n int) error {
	if len(X) == 0 {
		return errors.New("forest: empty training set")
	}
	if len(X) != n {
		return fmt.Errorf("forest: %d feature rows for %d labels", len(X), n)
	}
	width := len(X[0])
	for i := range X {
		if len(X[i]) != width {
			return fmt.Errorf("forest: row %d has %d features, want %d", i, len(X[i]), width)
		}
	}
	return nil
}

// bootstrap draws n sample indices with replacement.
func bootstrap(n int, rnd *rand.Rand) []int {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = rnd.Intn(n)
	}
	return idx
}

// Regressor is a random forest of variance-reduction CART trees. The
// prediction is the mean of the per-tree leaf means, so it can never
// leave the range of the observed training labels.
type Regressor struct {
	p     params
	width int
	trees []*node
}

// NewRegressor returns a regressor with sensible defaults.
func NewRegressor(opts ...Option) *Regressor {
	p := defaultParams()
	for _, o := range opts {
		o(&p)
	}
	return &Regressor{p: p}
}

// Fit trains the forest on X (n x p) and continuous targets y.
func (r *Regressor) Fit(X [][]float64, y []float64) error {
	if r.p.TreeCount < 1 {
		return fmt.Errorf("forest: tree count %d, want >= 1", r.p.TreeCount)
	}
	if err := validate(X, len(y)); err != nil {
		return err
	}
	r.width = len(X[0])
	r.trees = make([]*node, r.p.TreeCount)
	tp := treeParams{
		maxDepth:        r.p.MaxDepth,
		minSamplesSplit: r.p.MinSamplesSplit,
		maxFeatures:     r.p.MaxFeatures,
	}
	for i := 0; i < r.p.TreeCount; i++ {
		rnd := rand.New(rand.NewSource(r.p.Seed + int64(i)))
		r.trees[i] = buildRegressionNode(X, y, bootstrap(len(X), rnd), 0, tp, rnd)
	}
	return nil
}

// Predict returns the forest mean for each row of X.
func (r *Regressor) Predict(X [][]float64) ([]float64, error) {
	if len(r.trees) == 0 {
		return nil, ErrNotFitted
	}
	out := make([]float64, len(X))
	for i, x := range X {
		if len(x) != r.width {
			return nil, fmt.Errorf("forest: row %d has %d features, want %d", i, len(x), r.width)
		}
		sum := 0.0
		for _, t := range r.trees {
			sum += t.predictRow(x).Value
		}
		out[i] = sum / float64(len(r.trees))
	}
	return out, nil
}

// Classifier is a random forest of gini CART trees predicting by
// majority vote. Labels are integer class indices in [0, classes).
type Classifier struct {
	p       params
	width   int
	classes int
	trees   []*node
}

// NewClassifier returns a classifier with sensible defaults.
func NewClassifier(opts ...Option) *Classifier {
	p := defaultParams()
	for _, o := range opts {
		o(&p)
	}
	return &Classifier{p: p}
}

// Fit trains the forest on X (n x p) and class indices y. Labels must
// cover at least two classes.
func (c *Classifier) Fit(X [][]float64, y []int) error {
	if c.p.TreeCount < 1 {
		return fmt.Errorf("forest: tree count %d, want >= 1", c.p.TreeCount)
	}
	if err := validate(X, len(y)); err != nil {
		return err
	}
	nClasses := 0
	for _, lab := range y {
		if lab < 0 {
			return fmt.Errorf("forest: negative class label %d", lab)
		}
		if lab+1 > nClasses {
			nClasses = lab + 1
		}
	}
	distinct := make([]bool, nClasses)
	seen := 0
	for _, lab := range y {
		if !distinct[lab] {
			distinct[lab] = true
			seen++
		}
	}
	if seen < 2 {
		return ErrSingleClass
	}

	c.width = len(X[0])
	c.classes = nClasses
	c.trees = make([]*node, c.p.TreeCount)
	tp := treeParams{
		maxDepth:        c.p.MaxDepth,
		minSamplesSplit: c.p.MinSamplesSplit,
		maxFeatures:     c.p.MaxFeatures,
	}
	for i := 0; i < c.p.TreeCount; i++ {
		rnd := rand.New(rand.NewSource(c.p.Seed + int64(i)))
		c.trees[i] = buildClassificationNode(X, y, bootstrap(len(X), rnd), 0, nClasses, tp, rnd)
	}
	return nil
}

// Predict returns the majority-vote class index for each row of X.
func (c *Classifier) Predict(X [][]float64) ([]int, error) {
	if len(c.trees) == 0 {
		return nil, ErrNotFitted
	}
	out := make([]int, len(X))
	for i, x := range X {
		if len(x) != c.width {
			return nil, fmt.Errorf("forest: row %d has %d features, want %d", i, len(x), c.width)
		}
		votes := make([]int, c.classes)
		for _, t := range c.trees {
			votes[t.predictRow(x).Class]++
		}
		out[i] = argmax(votes)
	}
	return out, nil
}

// snapshot is the gob wire form shared by both model types.
type snapshot struct {
	Params  params
	Width   int
	Classes int
	Trees   []*node
}

// MarshalBinary implements encoding.BinaryMarshaler using gob.
func (r *Regressor) MarshalBinary() ([]byte, error) {
	return encodeSnapshot(snapshot{Params: r.p, Width: r.width, Trees: r.trees})
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (r *Regressor) UnmarshalBinary(data []byte) error {
	s, err := decodeSnapshot(data)
	if err != nil {
		return err
	}
	r.p, r.width, r.trees = s.Params, s.Width, s.Trees
	return nil
}

// MarshalBinary implements encoding.BinaryMarshaler using gob.
func (c *Classifier) MarshalBinary() ([]byte, error) {
	return encodeSnapshot(snapshot{Params: c.p, Width: c.width, Classes: c.classes, Trees: c.trees})
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (c *Classifier) UnmarshalBinary(data []byte) error {
	s, err := decodeSnapshot(data)
	if err != nil {
		return err
	}
	c.p, c.width, c.classes, c.trees = s.Params, s.Width, s.Classes, s.Trees
	return nil
}

func encodeSnapshot(s snapshot) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(s); err != nil {
		return nil, fmt.Errorf("encode forest: %w", err)
	}
	return buf.Bytes(), nil
}

func decodeSnapshot(data []byte) (snapshot, error) {
	var s snapshot
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&s); err != nil {
		return s, fmt.Errorf("decode forest: %w", err)
	}
	return s, nil
}
