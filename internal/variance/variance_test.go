package variance

import (
	"strings"
	"testing"

	"github.com/theirongolddev/praxis/internal/model"
)

func TestDetect_NoPlan(t *testing.T) {
	alerts := Detect(model.MetricsComparison{Revenue: 100, Sessions: 3}, nil)
	if alerts == nil {
		t.Fatal("Detect returned nil, want empty slice")
	}
	if len(alerts) != 0 {
		t.Fatalf("Detect returned %d alerts, want 0", len(alerts))
	}
}

func TestDetect_OnPlan(t *testing.T) {
	m := model.MetricsComparison{Revenue: 10000, Expenses: 6000, Sessions: 100}
	if alerts := Detect(m, &m); len(alerts) != 0 {
		t.Fatalf("Detect on identical metrics returned %+v", alerts)
	}
}

func TestDetect_RevenueThresholds(t *testing.T) {
	plan := &model.MetricsComparison{Revenue: 10000}
	cases := []struct {
		revenue  float64
		wantType model.AlertType
		wantSev  model.Severity
		wantNone bool
	}{
		{8000, model.AlertRevenueBelowPlan, model.SeverityCritical, false},
		{8500, model.AlertRevenueBelowPlan, model.SeverityWarning, false},
		{9400, model.AlertRevenueBelowPlan, model.SeverityWarning, false},
		{9500, "", "", true},
		{12000, "", "", true},
		{12100, model.AlertRevenueAbovePlan, model.SeverityInfo, false},
	}
	for _, c := range cases {
		alerts := Detect(model.MetricsComparison{Revenue: c.revenue}, plan)
		if c.wantNone {
			if len(alerts) != 0 {
				t.Errorf("revenue %v: got %+v, want none", c.revenue, alerts)
			}
			continue
		}
		if len(alerts) != 1 {
			t.Fatalf("revenue %v: got %d alerts, want 1", c.revenue, len(alerts))
		}
		if alerts[0].Type != c.wantType || alerts[0].Severity != c.wantSev {
			t.Errorf("revenue %v: got %s/%s, want %s/%s",
				c.revenue, alerts[0].Type, alerts[0].Severity, c.wantType, c.wantSev)
		}
	}
}

func TestDetect_SessionsAndExpenses(t *testing.T) {
	plan := &model.MetricsComparison{Revenue: 1000, Expenses: 1000, Sessions: 100}
	actual := model.MetricsComparison{Revenue: 1000, Expenses: 1200, Sessions: 70}

	alerts := Detect(actual, plan)
	if len(alerts) != 2 {
		t.Fatalf("got %d alerts, want 2: %+v", len(alerts), alerts)
	}
	// both critical: sort by |variance%|, sessions -30 before expenses +20
	if alerts[0].ID != "sessions-below-plan" || alerts[0].Type != model.AlertRevenueBelowPlan {
		t.Errorf("alerts[0] = %s/%s, want sessions-below-plan/REVENUE_BELOW_PLAN", alerts[0].ID, alerts[0].Type)
	}
	if alerts[1].Type != model.AlertExpenseOverrun {
		t.Errorf("alerts[1].Type = %s, want EXPENSE_OVERRUN", alerts[1].Type)
	}
	if !strings.Contains(alerts[1].Message, "1.200,00 €") {
		t.Errorf("expense message %q lacks formatted amount", alerts[1].Message)
	}
	if len(alerts[1].ActionItems) == 0 {
		t.Error("expense alert has no action items")
	}
}

func TestDetect_TherapyRules(t *testing.T) {
	plan := &model.MetricsComparison{
		Revenue: 1000, Sessions: 100,
		Therapies: []model.TherapyComparison{
			{TherapyID: "physio", Name: "Physio", Sessions: 40},
			{TherapyID: "massage", Name: "Massage", Sessions: 20},
			{TherapyID: "lymph", Name: "Lymph", Sessions: 10},
			{TherapyID: "new", Name: "New", Sessions: 0},
		},
	}
	actual := model.MetricsComparison{
		Revenue: 1000, Sessions: 100,
		Therapies: []model.TherapyComparison{
			{TherapyID: "physio", Name: "Physio", Sessions: 20, Revenue: 1700},
			{TherapyID: "massage", Name: "Massage", Sessions: 30, Revenue: 1800},
			{TherapyID: "lymph", Name: "Lymph", Sessions: 0},
			{TherapyID: "new", Name: "New", Sessions: 5},
		},
	}

	alerts := Detect(actual, plan)
	byID := map[string]model.VarianceAlert{}
	for _, a := range alerts {
		byID[a.ID] = a
	}

	if a, ok := byID["therapy-underutilized-physio"]; !ok || a.Severity != model.SeverityWarning {
		t.Errorf("physio underutilized alert missing or wrong: %+v", a)
	}
	if a, ok := byID["therapy-opportunity-massage"]; !ok || a.Severity != model.SeverityInfo {
		t.Errorf("massage opportunity alert missing or wrong: %+v", a)
	}
	if _, ok := byID["therapy-underutilized-lymph"]; ok {
		t.Error("lymph with zero actual sessions should not be flagged underutilized")
	}
	if len(byID) != 2 {
		t.Errorf("got alerts %v, want exactly physio and massage", byID)
	}
	if alerts[0].Severity != model.SeverityWarning {
		t.Errorf("warning should sort before info, got %s first", alerts[0].Severity)
	}
}

func TestSummarizeAndCritical(t *testing.T) {
	alerts := []model.VarianceAlert{
		{Severity: model.SeverityCritical},
		{Severity: model.SeverityWarning},
		{Severity: model.SeverityWarning},
		{Severity: model.SeverityInfo},
	}
	s := Summarize(alerts)
	if s.Critical != 1 || s.Warning != 2 || s.Info != 1 || s.Total != 4 {
		t.Fatalf("Summarize = %+v", s)
	}
	if !HasCriticalIssues(alerts) {
		t.Fatal("HasCriticalIssues = false")
	}
	if HasCriticalIssues(alerts[1:]) {
		t.Fatal("HasCriticalIssues = true without critical alerts")
	}
}

func TestActionItemsAreCopies(t *testing.T) {
	items := ActionItems(model.AlertExpenseOverrun)
	items[0] = "changed"
	if ActionItems(model.AlertExpenseOverrun)[0] == "changed" {
		t.Fatal("ActionItems exposes the shared slice")
	}
}
