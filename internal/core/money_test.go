package core

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in  string
		out string
		ok  bool
	}{
		{"1", "1", true},
		{"1.0", "1", true},
		{"1.23", "1.23", true},
		{"1,23", "1.23", true},
		{"0.01", "0.01", true},
		{"1.005", "1.01", true}, // half-up rounding
		{" 2.50 ", "2.5", true},
		{"1,500", "1500", true},
		{"1,500.75", "1500.75", true},
		{"-1", "", false},
		{"0", "", false},
		{"abc", "", false},
		{"1.2.3", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, err := ParseAmount(tc.in)
		if tc.ok {
			if err != nil || !got.Equal(decimal.RequireFromString(tc.out)) {
				t.Fatalf("%q expected %s, got %s (err=%v)", tc.in, tc.out, got, err)
			}
		} else if err == nil {
			t.Fatalf("%q expected error", tc.in)
		}
	}
}

func TestFormatAmount(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"0", "Rs. 0.00"},
		{"12.5", "Rs. 12.50"},
		{"1500", "Rs. 1,500.00"},
		{"1234567.891", "Rs. 1,234,567.89"},
		{"-600", "-Rs. 600.00"},
	}
	for _, tc := range cases {
		if got := FormatAmount("Rs.", decimal.RequireFromString(tc.in)); got != tc.want {
			t.Errorf("FormatAmount(%s) = %q, want %q", tc.in, got, tc.want)
		}
	}
	if got := FormatAmount("", decimal.NewFromInt(1000)); got != "1,000.00" {
		t.Errorf("no symbol: got %q", got)
	}
}
