package normalizer

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"1.234,56", "1234.56"},
		{"1234.56", "1234.56"},
		{"-50,00", "-50.00"},
		{"45,23", "45.23"},
		{"1.000.000,00", "1000000.00"},
		{"R$ 150,75", "150.75"},
		{"-29.99", "-29.99"},
		{"500", "500"},
	}

	for _, tc := range tests {
		got, err := ParseAmount(tc.input)
		if err != nil {
			t.Errorf("ParseAmount(%q) error: %v", tc.input, err)
			continue
		}
		if want := decimal.RequireFromString(tc.expected); !got.Equal(want) {
			t.Errorf("ParseAmount(%q) = %s, want %s", tc.input, got, want)
		}
	}
}

func TestParseAmount_Invalid(t *testing.T) {
	for _, input := range []string{"", "not-a-number", "-", "abc"} {
		if _, err := ParseAmount(input); err == nil {
			t.Errorf("ParseAmount(%q) expected error", input)
		}
	}
}

func TestParseDate_DayFirst(t *testing.T) {
	tests := []struct {
		input string
		want  time.Time
	}{
		{"05/03/2026", time.Date(2026, time.March, 5, 0, 0, 0, 0, time.UTC)},
		{"05-03-26", time.Date(2026, time.March, 5, 0, 0, 0, 0, time.UTC)},
		{"31.12.2025", time.Date(2025, time.December, 31, 0, 0, 0, 0, time.UTC)},
		{"2026-03-05", time.Date(2026, time.March, 5, 0, 0, 0, 0, time.UTC)},
		{"  01/01/2026 ", time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)},
	}

	for _, tc := range tests {
		got, err := ParseDate(tc.input)
		if err != nil {
			t.Errorf("ParseDate(%q) error: %v", tc.input, err)
			continue
		}
		if !got.Equal(tc.want) {
			t.Errorf("ParseDate(%q) = %s, want %s", tc.input, got, tc.want)
		}
	}
}

func TestParseDate_Invalid(t *testing.T) {
	for _, input := range []string{"", "bad-row", "32/01/2026", "soon"} {
		if _, err := ParseDate(input); err == nil {
			t.Errorf("ParseDate(%q) expected error", input)
		}
	}
}

func TestCleanDescription(t *testing.T) {
	if got := CleanDescription("  PAG  BOLETO \t FORNECEDOR  "); got != "PAG BOLETO FORNECEDOR" {
		t.Fatalf("unexpected cleanup result: %q", got)
	}
}
