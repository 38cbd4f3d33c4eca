package ml

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Label is a binary classification outcome.
type Label int

const (
	LabelNormal    Label = 0
	LabelMalicious Label = 1
)

// String returns "normal" or "malicious".
func (l Label) String() string {
	if l == LabelMalicious {
		return "malicious"
	}
	return "normal"
}

// Model is a pre-trained binary classifier over scaled feature vectors.
type Model interface {
	Predict(ctx context.Context, x []float64) (Label, error)
	NumFeatures() int
	Kind() string
}

// =============================================================================
// Linear models
// =============================================================================

// LinearModel labels x malicious when coef·x + intercept > 0. It covers
// logistic regression and linear SVMs, which share that decision rule.
type LinearModel struct {
	Coef      []float64
	Intercept float64
	kind      string
}

// Decision returns the signed distance to the separating hyperplane.
func (m *LinearModel) Decision(x []float64) float64 {
	d := m.Intercept
	for i, w := range m.Coef {
		d += w * x[i]
	}
	return d
}

// Predict implements Model.
func (m *LinearModel) Predict(_ context.Context, x []float64) (Label, error) {
	if m.Decision(x) > 0 {
		return LabelMalicious, nil
	}
	return LabelNormal, nil
}

// NumFeatures implements Model.
func (m *LinearModel) NumFeatures() int { return len(m.Coef) }

// Kind implements Model.
func (m *LinearModel) Kind() string { return m.kind }

// =============================================================================
// Tree models
// =============================================================================

// leafNode marks a node without children, as in fitted tree arrays.
const leafNode = -1

// TreeModel is a fitted binary decision tree in flattened array form.
type TreeModel struct {
	ChildrenLeft  []int
	ChildrenRight []int
	Feature       []int
	Threshold     []float64
	// Value holds the per-class weight at each node.
	Value [][]float64

	nFeatures int
}

// leaf walks the tree and returns the leaf index reached by x.
func (t *TreeModel) leaf(x []float64) int {
	node := 0
	for t.ChildrenLeft[node] != leafNode {
		if x[t.Feature[node]] <= t.Threshold[node] {
			node = t.ChildrenLeft[node]
		} else {
			node = t.ChildrenRight[node]
		}
	}
	return node
}

// proba returns the normalized class distribution at x's leaf.
func (t *TreeModel) proba(x []float64) [2]float64 {
	v := t.Value[t.leaf(x)]
	total := v[0] + v[1]
	if total <= 0 {
		return [2]float64{}
	}
	return [2]float64{v[0] / total, v[1] / total}
}

// Predict implements Model.
func (t *TreeModel) Predict(_ context.Context, x []float64) (Label, error) {
	return argmax(t.proba(x)), nil
}

// NumFeatures implements Model.
func (t *TreeModel) NumFeatures() int { return t.nFeatures }

// Kind implements Model.
func (t *TreeModel) Kind() string { return "decision_tree" }

// validate checks the arrays form a finite binary tree.
func (t *TreeModel) validate() error {
	n := len(t.ChildrenLeft)
	if n == 0 {
		return errors.New("tree has no nodes")
	}
	if len(t.ChildrenRight) != n || len(t.Feature) != n || len(t.Threshold) != n || len(t.Value) != n {
		return fmt.Errorf("tree arrays disagree on node count (%d/%d/%d/%d/%d)",
			n, len(t.ChildrenRight), len(t.Feature), len(t.Threshold), len(t.Value))
	}

	for i := 0; i < n; i++ {
		l, r := t.ChildrenLeft[i], t.ChildrenRight[i]
		if l == leafNode || r == leafNode {
			if l != r {
				return fmt.Errorf("node %d has exactly one child", i)
			}
			if len(t.Value[i]) != 2 {
				return fmt.Errorf("leaf %d has %d class weights, want 2", i, len(t.Value[i]))
			}
			continue
		}
		// Fitted trees are stored depth-first, so children always follow
		// their parent; requiring it rules out cycles.
		if l <= i || r <= i || l >= n || r >= n {
			return fmt.Errorf("node %d has out-of-order children %d/%d", i, l, r)
		}
		if t.Feature[i] < 0 {
			return fmt.Errorf("node %d splits on negative feature %d", i, t.Feature[i])
		}
		if t.Feature[i]+1 > t.nFeatures {
			t.nFeatures = t.Feature[i] + 1
		}
	}
	return nil
}

// ForestModel averages the class distributions of its trees.
type ForestModel struct {
	Trees     []*TreeModel
	nFeatures int
}

// Predict implements Model.
func (f *ForestModel) Predict(_ context.Context, x []float64) (Label, error) {
	var sum [2]float64
	for _, t := range f.Trees {
		p := t.proba(x)
		sum[0] += p[0]
		sum[1] += p[1]
	}
	return argmax(sum), nil
}

// NumFeatures implements Model.
func (f *ForestModel) NumFeatures() int { return f.nFeatures }

// Kind implements Model.
func (f *ForestModel) Kind() string { return "random_forest" }

// argmax picks the first class on ties.
func argmax(p [2]float64) Label {
	if p[1] > p[0] {
		return LabelMalicious
	}
	return LabelNormal
}

// =============================================================================
// Decoding
// =============================================================================

// modelDoc is the on-disk model artifact.
type modelDoc struct {
	Kind         string          `json:"kind"`
	FeatureNames []string        `json:"feature_names"`
	NFeatures    int             `json:"n_features"`
	Classes      []int           `json:"classes"`
	Coef         json.RawMessage `json:"coef"`
	Intercept    json.RawMessage `json:"intercept"`
	Tree         *treeDoc        `json:"tree"`
	Trees        []treeDoc       `json:"trees"`
}

type treeDoc struct {
	ChildrenLeft  []int           `json:"children_left"`
	ChildrenRight []int           `json:"children_right"`
	Feature       []int           `json:"feature"`
	Threshold     []float64       `json:"threshold"`
	Value         json.RawMessage `json:"value"`
}

// decodeModel parses a JSON model artifact and returns it with its declared
// feature names (possibly empty).
func decodeModel(data []byte) (Model, []string, error) {
	var doc modelDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, nil, fmt.Errorf("decode model: %w", err)
	}

	if doc.Classes != nil && (len(doc.Classes) != 2 || doc.Classes[0] != 0 || doc.Classes[1] != 1) {
		return nil, nil, fmt.Errorf("model classes %v are not [0 1]", doc.Classes)
	}

	var (
		m         Model
		nFeatures int
	)

	switch doc.Kind {
	case "logistic_regression", "LogisticRegression", "linear_svc", "LinearSVC":
		coef, err := decodeVector(doc.Coef)
		if err != nil {
			return nil, nil, fmt.Errorf("model coef: %w", err)
		}
		if len(coef) == 0 {
			return nil, nil, errors.New("model coef is empty")
		}
		intercept, err := decodeVector(doc.Intercept)
		if err != nil {
			return nil, nil, fmt.Errorf("model intercept: %w", err)
		}
		lm := &LinearModel{Coef: coef, kind: "logistic_regression"}
		if doc.Kind == "linear_svc" || doc.Kind == "LinearSVC" {
			lm.kind = "linear_svc"
		}
		switch len(intercept) {
		case 0:
		case 1:
			lm.Intercept = intercept[0]
		default:
			return nil, nil, fmt.Errorf("model has %d intercepts, want 1", len(intercept))
		}
		m, nFeatures = lm, len(coef)

	case "decision_tree", "DecisionTreeClassifier":
		if doc.Tree == nil {
			return nil, nil, errors.New("decision_tree model has no tree")
		}
		t, err := doc.Tree.build()
		if err != nil {
			return nil, nil, err
		}
		m, nFeatures = t, t.nFeatures

	case "random_forest", "RandomForestClassifier":
		if len(doc.Trees) == 0 {
			return nil, nil, errors.New("random_forest model has no trees")
		}
		f := &ForestModel{Trees: make([]*TreeModel, 0, len(doc.Trees))}
		for i := range doc.Trees {
			t, err := doc.Trees[i].build()
			if err != nil {
				return nil, nil, fmt.Errorf("tree %d: %w", i, err)
			}
			f.Trees = append(f.Trees, t)
			f.nFeatures = max(f.nFeatures, t.nFeatures)
		}
		m, nFeatures = f, f.nFeatures

	default:
		return nil, nil, fmt.Errorf("unknown model kind %q", doc.Kind)
	}

	// Trees only reveal the features they split on; a declared width wins
	// as long as it covers every split. Declared names imply a width.
	declared := doc.NFeatures
	if declared == 0 {
		declared = len(doc.FeatureNames)
	}
	if declared > 0 {
		if declared < nFeatures {
			return nil, nil, fmt.Errorf("model declares %d features but uses %d", declared, nFeatures)
		}
		m = withWidth(m, declared)
	}
	return m, doc.FeatureNames, nil
}

// withWidth overrides the feature count reported by tree models.
func withWidth(m Model, n int) Model {
	switch v := m.(type) {
	case *TreeModel:
		v.nFeatures = n
	case *ForestModel:
		v.nFeatures = n
		for _, t := range v.Trees {
			t.nFeatures = n
		}
	}
	return m
}

func (d *treeDoc) build() (*TreeModel, error) {
	value, err := decodeMatrix(d.Value)
	if err != nil {
		return nil, fmt.Errorf("tree value: %w", err)
	}
	t := &TreeModel{
		ChildrenLeft:  d.ChildrenLeft,
		ChildrenRight: d.ChildrenRight,
		Feature:       d.Feature,
		Threshold:     d.Threshold,
		Value:         value,
	}
	if err := t.validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// decodeVector accepts a number, a flat array or a single-row matrix.
func decodeVector(raw json.RawMessage) ([]float64, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var scalar float64
	if err := json.Unmarshal(raw, &scalar); err == nil {
		return []float64{scalar}, nil
	}
	var flat []float64
	if err := json.Unmarshal(raw, &flat); err == nil {
		return flat, nil
	}
	var matrix [][]float64
	if err := json.Unmarshal(raw, &matrix); err != nil {
		return nil, err
	}
	if len(matrix) != 1 {
		return nil, fmt.Errorf("expected a single row, got %d", len(matrix))
	}
	return matrix[0], nil
}

// decodeMatrix accepts per-node class weights as [node][class] or
// [node][output][class] with a single output.
func decodeMatrix(raw json.RawMessage) ([][]float64, error) {
	var m2 [][]float64
	if err := json.Unmarshal(raw, &m2); err == nil {
		return m2, nil
	}
	var m3 [][][]float64
	if err := json.Unmarshal(raw, &m3); err != nil {
		return nil, err
	}
	out := make([][]float64, len(m3))
	for i, node := range m3 {
		if len(node) != 1 {
			return nil, fmt.Errorf("node %d has %d outputs, want 1", i, len(node))
		}
		out[i] = node[0]
	}
	return out, nil
}
