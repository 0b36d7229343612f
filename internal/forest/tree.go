package forest

import (
	"math"
	"math/rand"
	"sort"
)

// node is one CART node. Fields are exported for gob.
type node struct {
	Leaf      bool
	Feature   int
	Threshold float64
	Left      *node
	Right     *node

	// Leaf payload: mean label for regression, class index for
	// classification.
	Value float64
	Class int
}

// treeParams are the per-tree stopping criteria.
type treeParams struct {
	maxDepth        int // 0 => unlimited
	minSamplesSplit int
	maxFeatures     int // 0 => all features
}

// splitResult is the best split found for a node.
type splitResult struct {
	feature   int
	threshold float64
	score     float64
	left      []int
	right     []int
	ok        bool
}

func (n *node) predictRow(x []float64) *node {
	cur := n
	for !cur.Leaf {
		if x[cur.Feature] <= cur.Threshold {
			cur = cur.Left
		} else {
			cur = cur.Right
		}
	}
	return cur
}

// featureOrder returns the features to consider at a split, optionally
// subsampled.
func featureOrder(p int, maxFeatures int, rnd *rand.Rand) []int {
	feats := rnd.Perm(p)
	if maxFeatures > 0 && maxFeatures < p {
		feats = feats[:maxFeatures]
	}
	return feats
}

// candidateSplits walks sorted feature values and yields midpoints
// between distinct neighbours.
func sortByFeature(X [][]float64, idx []int, feature int) []int {
	sorted := make([]int, len(idx))
	copy(sorted, idx)
	sort.Slice(sorted, func(a, b int) bool {
		return X[sorted[a]][feature] < X[sorted[b]][feature]
	})
	return sorted
}

// buildRegressionNode grows a variance-reduction CART node.
func buildRegressionNode(X [][]float64, y []float64, idx []int, depth int, p treeParams, rnd *rand.Rand) *node {
	mean, sse := meanSSE(y, idx)
	if len(idx) < p.minSamplesSplit || sse == 0 ||
		(p.maxDepth > 0 && depth >= p.maxDepth) {
		return &node{Leaf: true, Value: mean}
	}

	best := bestRegressionSplit(X, y, idx, p, rnd)
	if !best.ok {
		return &node{Leaf: true, Value: mean}
	}

	return &node{
		Feature:   best.feature,
		Threshold: best.threshold,
		Left:      buildRegressionNode(X, y, best.left, depth+1, p, rnd),
		Right:     buildRegressionNode(X, y, best.right, depth+1, p, rnd),
	}
}

func bestRegressionSplit(X [][]float64, y []float64, idx []int, p treeParams, rnd *rand.Rand) splitResult {
	nFeatures := len(X[idx[0]])
	best := splitResult{score: math.Inf(1)}

	for _, f := range featureOrder(nFeatures, p.maxFeatures, rnd) {
		sorted := sortByFeature(X, idx, f)

		// Prefix sums let each candidate split be scored in O(1).
		n := len(sorted)
		leftSum, leftSq := 0.0, 0.0
		totalSum, totalSq := 0.0, 0.0
		for _, i := range sorted {
			totalSum += y[i]
			totalSq += y[i] * y[i]
		}

		for k := 0; k < n-1; k++ {
			i := sorted[k]
			leftSum += y[i]
			leftSq += y[i] * y[i]

			if X[sorted[k]][f] == X[sorted[k+1]][f] {
				continue
			}

			nl, nr := float64(k+1), float64(n-k-1)
			rightSum := totalSum - leftSum
			rightSq := totalSq - leftSq
			score := (leftSq - leftSum*leftSum/nl) + (rightSq - rightSum*rightSum/nr)

			if score < best.score {
				best = splitResult{
					feature:   f,
					threshold: (X[sorted[k]][f] + X[sorted[k+1]][f]) / 2,
					score:     score,
					left:      append([]int(nil), sorted[:k+1]...),
					right:     append([]int(nil), sorted[k+1:]...),
					ok:        true,
				}
			}
		}
	}
	return best
}

func meanSSE(y []float64, idx []int) (mean, sse float64) {
	for _, i := range idx {
		mean += y[i]
	}
	mean /= float64(len(idx))
	for _, i := range idx {
		d := y[i] - mean
		sse += d * d
	}
	return mean, sse
}

// buildClassificationNode grows a gini-impurity CART node over integer
// class labels in [0, nClasses).
func buildClassificationNode(X [][]float64, y []int, idx []int, depth, nClasses int, p treeParams, rnd *rand.Rand) *node {
	counts := classCounts(y, idx, nClasses)
	majority := argmax(counts)
	if len(idx) < p.minSamplesSplit || counts[majority] == len(idx) ||
		(p.maxDepth > 0 && depth >= p.maxDepth) {
		return &node{Leaf: true, Class: majority}
	}

	best := bestClassificationSplit(X, y, idx, nClasses, p, rnd)
	if !best.ok {
		return &node{Leaf: true, Class: majority}
	}

	return &node{
		Feature:   best.feature,
		Threshold: best.threshold,
		Left:      buildClassificationNode(X, y, best.left, depth+1, nClasses, p, rnd),
		Right:     buildClassificationNode(X, y, best.right, depth+1, nClasses, p, rnd),
	}
}

func bestClassificationSplit(X [][]float64, y []int, idx []int, nClasses int, p treeParams, rnd *rand.Rand) splitResult {
	nFeatures := len(X[idx[0]])
	best := splitResult{score: math.Inf(1)}

	for _, f := range featureOrder(nFeatures, p.maxFeatures, rnd) {
		sorted := sortByFeature(X, idx, f)
		n := len(sorted)

		left := make([]int, nClasses)
		right := classCounts(y, sorted, nClasses)

		for k := 0; k < n-1; k++ {
			c := y[sorted[k]]
			left[c]++
			right[c]--

			if X[sorted[k]][f] == X[sorted[k+1]][f] {
				continue
			}

			nl, nr := k+1, n-k-1
			score := (float64(nl)*gini(left, nl) + float64(nr)*gini(right, nr)) / float64(n)
			if score < best.score {
				best = splitResult{
					feature:   f,
					threshold: (X[sorted[k]][f] + X[sorted[k+1]][f]) / 2,
					score:     score,
					left:      append([]int(nil), sorted[:k+1]...),
					right:     append([]int(nil), sorted[k+1:]...),
					ok:        true,
				}
			}
		}
	}
	return best
}

func classCounts(y []int, idx []int, nClasses int) []int {
	counts := make([]int, nClasses)
	for _, i := range idx {
		counts[y[i]]++
	}
	return counts
}

func gini(counts []int, total int) float64 {
	g := 1.0
	for _, c := range counts {
		p := float64(c) / float64(total)
		g -= p * p
	}
	return g
}

func argmax(counts []int) int {
	best := 0
	for i, c := range counts {
		if c > counts[best] {
			best = i
		}
	}
	return best
}
