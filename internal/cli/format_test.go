package cli

import (
	"math"
	"testing"
)

func TestFormatEuro(t *testing.T) {
	cases := []struct {
		in   float64
		want string
	}{
		{0, "0,00 €"},
		{1.39, "1,39 €"},
		{1234.5, "1.234,50 €"},
		{1234567.891, "1.234.567,89 €"},
		{-250, "-250,00 €"},
		{math.Inf(1), "n/a"},
	}
	for _, c := range cases {
		if got := FormatEuro(c.in); got != c.want {
			t.Errorf("FormatEuro(%v) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestFormatPercentage(t *testing.T) {
	if got := FormatPercentage(12.5); got != "12,5 %" {
		t.Errorf("FormatPercentage(12.5) = %q", got)
	}
	if got := FormatPercentage(-60); got != "-60,0 %" {
		t.Errorf("FormatPercentage(-60) = %q", got)
	}
}

func TestFormatNumber(t *testing.T) {
	if got := FormatNumber(1234567); got != "1.234.567" {
		t.Errorf("FormatNumber(1234567) = %q", got)
	}
	if got := FormatNumber(-999); got != "-999" {
		t.Errorf("FormatNumber(-999) = %q", got)
	}
	if got := FormatNumber(-1000); got != "-1.000" {
		t.Errorf("FormatNumber(-1000) = %q", got)
	}
	if got := FormatNumber(0); got != "0" {
		t.Errorf("FormatNumber(0) = %q", got)
	}
	if got := FormatNumber(math.MinInt64); got != "-9.223.372.036.854.775.808" {
		t.Errorf("FormatNumber(MinInt64) = %q", got)
	}
	if got := FormatNumber(math.MaxInt64); got != "9.223.372.036.854.775.807" {
		t.Errorf("FormatNumber(MaxInt64) = %q", got)
	}
}

func TestFormatUnits(t *testing.T) {
	if got := FormatUnits(math.Inf(1)); got != "never" {
		t.Errorf("FormatUnits(+Inf) = %q", got)
	}
	if got := FormatUnits(11.2); got != "12" {
		t.Errorf("FormatUnits(11.2) = %q", got)
	}
}

func TestFormatDelta(t *testing.T) {
	if got := FormatDelta(150, 100); got != "+50,00 €" {
		t.Errorf("FormatDelta(150, 100) = %q", got)
	}
	if got := FormatDelta(100, 150); got != "-50,00 €" {
		t.Errorf("FormatDelta(100, 150) = %q", got)
	}
}
