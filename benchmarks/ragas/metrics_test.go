// ABOUTME: Tests for RAGAS metric calculations
// ABOUTME: Table-driven checks of faithfulness, context recall and pass/fail
package ragas

import "testing"

func TestCalculateFaithfulness(t *testing.T) {
	m := NewMetricsCalculator()

	tests := []struct {
		name      string
		response  string
		expected  []string
		forbidden []string
		want      float64
	}{
		{"all expected, none forbidden", "You can carry over 5 days.", []string{"5 days"}, []string{"100 EUR"}, 1.0},
		{"case insensitive", "FINANCE approves it", []string{"finance"}, nil, 1.0},
		{"missing expected", "Ask your manager.", []string{"finance"}, nil, 0.5},
		{"forbidden present", "It opens at 08:00.", nil, []string{"08:00"}, 0.5},
		{"both failures", "It opens at 08:00.", []string{"finance"}, []string{"08:00"}, 0.0},
		{"no ground truth", "anything", nil, nil, 1.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, detail := m.CalculateFaithfulness(tt.response, tt.expected, tt.forbidden)
			if got != tt.want {
				t.Errorf("score = %v, want %v (%s)", got, tt.want, detail)
			}
		})
	}
}

func TestCalculateContextRecall(t *testing.T) {
	m := NewMetricsCalculator()

	tests := []struct {
		name     string
		context  []string
		expected []string
		want     float64
	}{
		{"nothing expected", nil, nil, 1.0},
		{"all found across sources", []string{"finance team approves", "over 100 EUR"}, []string{"finance team", "100 EUR"}, 1.0},
		{"half found", []string{"finance team approves"}, []string{"finance team", "100 EUR"}, 0.5},
		{"none retrieved", nil, []string{"carried over"}, 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, detail := m.CalculateContextRecall(tt.context, tt.expected)
			if got != tt.want {
				t.Errorf("recall = %v, want %v (%s)", got, tt.want, detail)
			}
		})
	}
}

func TestEvaluateTest(t *testing.T) {
	m := NewMetricsCalculator()
	scenario := GetExpenseApprovalTest()

	pass := m.EvaluateTest(scenario, "The finance team must approve it.", []string{"needs approval from the finance team above 100 EUR"})
	if pass.Status != "PASS" || pass.OverallScore != 1.0 {
		t.Errorf("result = %+v, want PASS", pass)
	}

	fail := m.EvaluateTest(scenario, "Your manager.", nil)
	if fail.Status != "FAIL" {
		t.Errorf("Status = %s, want FAIL", fail.Status)
	}
	if fail.TestID != scenario.ID {
		t.Errorf("TestID = %s", fail.TestID)
	}
}

func TestScenarioByID(t *testing.T) {
	for _, s := range AllScenarios() {
		got, ok := ScenarioByID(s.ID)
		if !ok || got.Name != s.Name {
			t.Errorf("ScenarioByID(%q) = %v, %v", s.ID, got.Name, ok)
		}
		if len(s.Turns) == 0 {
			t.Errorf("scenario %s has no turns", s.ID)
		}
	}
	if _, ok := ScenarioByID("nope"); ok {
		t.Error("unknown id should not be found")
	}
}
