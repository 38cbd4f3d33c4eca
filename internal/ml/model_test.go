package ml

import (
	"context"
	"math"
	"os"
	"strings"
	"testing"
)

func approxEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestStandardScaler_Transform(t *testing.T) {
	s := &StandardScaler{Mean: []float64{1, 10, 0}, Scale: []float64{2, 5, 0}, n: 3}

	x := []float64{3, 20, 7}
	got := s.Transform(x)

	want := []float64{1, 2, 7} // zero scale leaves the centered value
	for i := range want {
		if !approxEqual(got[i], want[i]) {
			t.Errorf("feature %d: expected %f, got %f", i, want[i], got[i])
		}
	}
	if x[0] != 3 {
		t.Error("Transform modified its input")
	}
}

func TestStandardScaler_NoMean(t *testing.T) {
	s := &StandardScaler{Scale: []float64{2, 2, 2}, n: 3}
	got := s.Transform([]float64{4, 6, 8})
	if !approxEqual(got[0], 2) || !approxEqual(got[2], 4) {
		t.Errorf("Expected [2 3 4], got %v", got)
	}
}

func TestMinMaxScaler_Clip(t *testing.T) {
	s := &MinMaxScaler{
		Min:          []float64{0, 0, 0},
		Scale:        []float64{0.5, 0.001, 0.001},
		Clip:         true,
		FeatureRange: [2]float64{0, 1},
	}

	got := s.Transform([]float64{1, 4000, 500})
	if !approxEqual(got[0], 0.5) {
		t.Errorf("Expected 0.5, got %f", got[0])
	}
	if got[1] != 1 {
		t.Errorf("Expected clipped 1, got %f", got[1])
	}
	if !approxEqual(got[2], 0.5) {
		t.Errorf("Expected 0.5, got %f", got[2])
	}
}

func TestDecodeScaler(t *testing.T) {
	data, err := os.ReadFile("testdata/standard_scaler.json")
	if err != nil {
		t.Fatal(err)
	}

	s, names, err := decodeScaler(data)
	if err != nil {
		t.Fatalf("decodeScaler failed: %v", err)
	}
	if s.Kind() != "standard" {
		t.Errorf("Expected kind standard, got %s", s.Kind())
	}
	if s.NumFeatures() != 3 || len(names) != 3 {
		t.Errorf("Expected 3 features, got %d (%d names)", s.NumFeatures(), len(names))
	}
}

func TestDecodeScaler_Errors(t *testing.T) {
	tests := []struct {
		name string
		json string
		want string
	}{
		{"unknown kind", `{"kind":"robust"}`, "unknown scaler kind"},
		{"short mean", `{"kind":"standard","feature_names":["a","b"],"mean":[1]}`, "mean has 1 values"},
		{"minmax without min", `{"kind":"minmax","scale":[1,1,1]}`, "min has 0 values"},
		{"inverted range", `{"kind":"minmax","min":[0],"scale":[1],"clip":true,"feature_range":[1,0]}`, "inverted"},
		{"not json", `kind: standard`, "decode scaler"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := decodeScaler([]byte(tt.json))
			if err == nil {
				t.Fatal("Expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestLinearModel_Predict(t *testing.T) {
	m := &LinearModel{Coef: []float64{1, -1, 0}, Intercept: 0.5, kind: "logistic_regression"}
	ctx := context.Background()

	label, _ := m.Predict(ctx, []float64{1, 0, 0})
	if label != LabelMalicious {
		t.Errorf("Expected malicious, got %s", label)
	}

	label, _ = m.Predict(ctx, []float64{0, 1, 0})
	if label != LabelNormal {
		t.Errorf("Expected normal, got %s", label)
	}

	// A point on the boundary is normal.
	label, _ = m.Predict(ctx, []float64{0, 0.5, 0})
	if label != LabelNormal {
		t.Errorf("Expected normal on the boundary, got %s", label)
	}
}

func TestDecodeModel_Tree(t *testing.T) {
	data, err := os.ReadFile("testdata/tree_model.json")
	if err != nil {
		t.Fatal(err)
	}

	m, names, err := decodeModel(data)
	if err != nil {
		t.Fatalf("decodeModel failed: %v", err)
	}
	if names != nil {
		t.Errorf("Expected no declared names, got %v", names)
	}
	if m.Kind() != "decision_tree" || m.NumFeatures() != 3 {
		t.Errorf("Expected decision_tree over 3 features, got %s over %d", m.Kind(), m.NumFeatures())
	}

	ctx := context.Background()
	tests := []struct {
		x      []float64
		expect Label
	}{
		{[]float64{0, 5000, 0}, LabelNormal},
		{[]float64{1, 200, 0}, LabelNormal},
		{[]float64{1, 1500, 0}, LabelMalicious},
	}
	for _, tt := range tests {
		label, err := m.Predict(ctx, tt.x)
		if err != nil {
			t.Fatal(err)
		}
		if label != tt.expect {
			t.Errorf("x=%v: expected %s, got %s", tt.x, tt.expect, label)
		}
	}
}

func TestDecodeModel_Forest(t *testing.T) {
	doc := `{
		"kind": "random_forest",
		"trees": [
			{"children_left":[1,-1,-1],"children_right":[2,-1,-1],"feature":[1,-2,-2],
			 "threshold":[100,-2,-2],"value":[[5,5],[5,0],[0,5]]},
			{"children_left":[-1],"children_right":[-1],"feature":[-2],
			 "threshold":[-2],"value":[[3,1]]}
		]
	}`

	m, _, err := decodeModel([]byte(doc))
	if err != nil {
		t.Fatalf("decodeModel failed: %v", err)
	}
	if m.NumFeatures() != 2 {
		t.Errorf("Expected width 2 from splits, got %d", m.NumFeatures())
	}

	ctx := context.Background()
	// Second tree votes (0.75, 0.25); first decides.
	if label, _ := m.Predict(ctx, []float64{0, 500}); label != LabelMalicious {
		t.Errorf("Expected malicious, got %s", label)
	}
	if label, _ := m.Predict(ctx, []float64{0, 50}); label != LabelNormal {
		t.Errorf("Expected normal, got %s", label)
	}
}

func TestDecodeModel_Errors(t *testing.T) {
	tests := []struct {
		name string
		json string
		want string
	}{
		{"unknown kind", `{"kind":"knn"}`, "unknown model kind"},
		{"bad classes", `{"kind":"logistic_regression","classes":[1,2],"coef":[1]}`, "not [0 1]"},
		{"empty coef", `{"kind":"logistic_regression","coef":[]}`, "coef is empty"},
		{"two intercepts", `{"kind":"linear_svc","coef":[1,1],"intercept":[0,1]}`, "2 intercepts"},
		{"no tree", `{"kind":"decision_tree"}`, "has no tree"},
		{"cyclic tree", `{"kind":"decision_tree","tree":{"children_left":[0],"children_right":[0],"feature":[0],"threshold":[0],"value":[[1,1]]}}`, "out-of-order"},
		{"one child", `{"kind":"decision_tree","tree":{"children_left":[1,-1],"children_right":[-1,-1],"feature":[0,-2],"threshold":[0,0],"value":[[1,1],[1,0]]}}`, "exactly one child"},
		{"narrow width", `{"kind":"decision_tree","n_features":1,"tree":{"children_left":[1,-1,-1],"children_right":[2,-1,-1],"feature":[2,-2,-2],"threshold":[0,0,0],"value":[[1,1],[1,0],[0,1]]}}`, "declares 1 features"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := decodeModel([]byte(tt.json))
			if err == nil {
				t.Fatal("Expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestLabel_String(t *testing.T) {
	if LabelNormal.String() != "normal" || LabelMalicious.String() != "malicious" {
		t.Errorf("unexpected label strings %q/%q", LabelNormal, LabelMalicious)
	}
}
