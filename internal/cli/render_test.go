package cli

import (
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
)

func TestRenderTable_AlignsMultibyteCells(t *testing.T) {
	out := RenderTable(Table{
		Headers: []string{"Therapy", "Revenue"},
		Rows: [][]string{
			{"Physiotherapy", "2.550,00 €"},
			{"---"},
			{"Total", "12.750,00 €"},
		},
	})

	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(lines) != 7 {
		t.Fatalf("got %d lines, want 7:\n%s", len(lines), out)
	}
	want := lipgloss.Width(lines[0])
	for i, l := range lines {
		if w := lipgloss.Width(l); w != want {
			t.Fatalf("line %d is %d cells wide, want %d:\n%s", i, w, want, out)
		}
	}
}

func TestRenderTable_Empty(t *testing.T) {
	if out := RenderTable(Table{}); out != "" {
		t.Fatalf("RenderTable(empty) = %q", out)
	}
}

func TestRenderSparkline(t *testing.T) {
	if got := RenderSparkline([]float64{0, 50, 100}); got != "▁▄█" {
		t.Fatalf("RenderSparkline = %q", got)
	}
	if got := RenderSparkline([]float64{0, 0}); got != "▁▁" {
		t.Fatalf("RenderSparkline(zeros) = %q", got)
	}
}

func TestFormatScore(t *testing.T) {
	if got := FormatScore(72.46); got != "72,5" {
		t.Fatalf("FormatScore(72.46) = %q", got)
	}
}
