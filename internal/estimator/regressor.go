package estimator

import (
	"errors"
	"fmt"
	"math"
)

// leaf marks an absent child in the flattened tree arrays.
const leaf = -1

// DecisionTreeRegressor evaluates a fitted CART regression tree stored as
// parallel node arrays. Node 0 is the root; a node is a leaf when its left
// child is -1. Rows with x[feature] <= threshold go left.
type DecisionTreeRegressor struct {
	nFeatures     int
	childrenLeft  []int
	childrenRight []int
	feature       []int
	threshold     []float64
	value         []float64
}

// TreeNodes holds the flattened arrays of a fitted tree.
type TreeNodes struct {
	ChildrenLeft  []int
	ChildrenRight []int
	Feature       []int
	Threshold     []float64
	Value         []float64
}

// NewDecisionTreeRegressor validates the node arrays. Children must point to
// later nodes, so evaluation always terminates.
func NewDecisionTreeRegressor(nFeatures int, nodes TreeNodes) (*DecisionTreeRegressor, error) {
	n := len(nodes.ChildrenLeft)
	if n == 0 {
		return nil, errors.New("decision tree: no nodes")
	}
	if nFeatures <= 0 {
		return nil, errors.New("decision tree: feature count must be positive")
	}
	if len(nodes.ChildrenRight) != n || len(nodes.Feature) != n || len(nodes.Threshold) != n || len(nodes.Value) != n {
		return nil, fmt.Errorf("decision tree: node arrays differ in length (left=%d right=%d feature=%d threshold=%d value=%d)",
			n, len(nodes.ChildrenRight), len(nodes.Feature), len(nodes.Threshold), len(nodes.Value))
	}
	for i := 0; i < n; i++ {
		l, r := nodes.ChildrenLeft[i], nodes.ChildrenRight[i]
		if (l == leaf) != (r == leaf) {
			return nil, fmt.Errorf("decision tree: node %d has one child", i)
		}
		if l == leaf {
			continue
		}
		if l <= i || l >= n || r <= i || r >= n {
			return nil, fmt.Errorf("decision tree: node %d has children (%d, %d) outside (%d, %d)", i, l, r, i, n)
		}
		if f := nodes.Feature[i]; f < 0 || f >= nFeatures {
			return nil, fmt.Errorf("decision tree: node %d splits on feature %d of %d", i, f, nFeatures)
		}
	}
	return &DecisionTreeRegressor{
		nFeatures:     nFeatures,
		childrenLeft:  append([]int(nil), nodes.ChildrenLeft...),
		childrenRight: append([]int(nil), nodes.ChildrenRight...),
		feature:       append([]int(nil), nodes.Feature...),
		threshold:     append([]float64(nil), nodes.Threshold...),
		value:         append([]float64(nil), nodes.Value...),
	}, nil
}

func (t *DecisionTreeRegressor) Name() string   { return "decision_tree" }
func (t *DecisionTreeRegressor) NFeatures() int { return t.nFeatures }

// Depth returns the length of the longest root-to-leaf path.
func (t *DecisionTreeRegressor) Depth() int {
	var walk func(node int) int
	walk = func(node int) int {
		if t.childrenLeft[node] == leaf {
			return 0
		}
		return 1 + max(walk(t.childrenLeft[node]), walk(t.childrenRight[node]))
	}
	return walk(0)
}

func (t *DecisionTreeRegressor) Predict(row []float64) (float64, error) {
	if err := checkWidth(t.Name(), t.nFeatures, row); err != nil {
		return 0, err
	}
	node := 0
	for t.childrenLeft[node] != leaf {
		x := row[t.feature[node]]
		if math.IsNaN(x) {
			return 0, fmt.Errorf("feature %d is NaN at node %d", t.feature[node], node)
		}
		if x <= t.threshold[node] {
			node = t.childrenLeft[node]
		} else {
			node = t.childrenRight[node]
		}
	}
	return t.value[node], nil
}

// LinearRegressor computes intercept + coef·x.
type LinearRegressor struct {
	coef      []float64
	intercept float64
}

func NewLinearRegressor(coef []float64, intercept float64) (*LinearRegressor, error) {
	if len(coef) == 0 {
		return nil, errors.New("linear: no coefficients")
	}
	return &LinearRegressor{coef: append([]float64(nil), coef...), intercept: intercept}, nil
}

func (m *LinearRegressor) Name() string   { return "linear" }
func (m *LinearRegressor) NFeatures() int { return len(m.coef) }

func (m *LinearRegressor) Predict(row []float64) (float64, error) {
	if err := checkWidth(m.Name(), len(m.coef), row); err != nil {
		return 0, err
	}
	sum := m.intercept
	for j, v := range row {
		sum += m.coef[j] * v
	}
	return sum, nil
}
