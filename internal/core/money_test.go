package core

import (
	"errors"
	"testing"
)

func TestParseDecimalToCents(t *testing.T) {
	cases := []struct {
		in  string
		out int64
		ok  bool
	}{
		{"1", 100, true},
		{"1.0", 100, true},
		{"1.23", 123, true},
		{"1,23", 123, true},
		{"0.01", 1, true},
		{"1.005", 101, true}, // half-up rounding
		{"1.004", 100, true},
		{" 2.50 ", 250, true},
		{"0", 0, true},
		{"-1", 0, false},
		{"abc", 0, false},
		{"1.2.3", 0, false},
		{"", 0, false},
	}
	for _, tc := range cases {
		got, err := ParseDecimalToCents(tc.in)
		if tc.ok {
			if err != nil || got != tc.out {
				t.Fatalf("%q expected %d, got %d (err=%v)", tc.in, tc.out, got, err)
			}
		} else {
			if err == nil {
				t.Fatalf("%q expected error", tc.in)
			}
		}
	}
}

func TestParseMoneySigned(t *testing.T) {
	m, err := ParseMoney("contribution", "-12.5")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.Cents != -1250 {
		t.Fatalf("expected -1250, got %d", m.Cents)
	}
	_, err = ParseMoney("amount", "twelve")
	var pe *ParseError
	if !errors.As(err, &pe) || pe.Field != "amount" {
		t.Fatalf("expected ParseError for amount, got %v", err)
	}
	if !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount in chain, got %v", err)
	}
}

func TestMoneyFormat(t *testing.T) {
	cases := map[int64]string{
		0:      "$0.00",
		5:      "$0.05",
		123456: "$1234.56",
		-300:   "-$3.00",
	}
	for cents, want := range cases {
		if got := (Money{Cents: cents}).Format(); got != want {
			t.Errorf("Format(%d) = %q, want %q", cents, got, want)
		}
	}
	if got := (Money{Cents: 1250}).String(); got != "12.50" {
		t.Fatalf("String() = %q", got)
	}
}
