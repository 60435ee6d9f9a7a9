package model

import "testing"

func TestParseCents(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  int64
	}{
		{"typical price", "99.00", 9900},
		{"with cents", "1234.56", 123456},
		{"no decimal", "45", 4500},
		{"single decimal place", "9.5", 950},
		{"sub-dollar", "0.05", 5},
		{"zero", "0.00", 0},
		{"empty string", "", 0},
		{"garbage", "abc", 0},
		{"negative", "-12.34", -1234},
		{"extra precision", "1.999", 200},
		{"large value", "999999.99", 99999999},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseCents(tt.input); got != tt.want {
				t.Errorf("ParseCents(%q) = %d, want %d", tt.input, got, tt.want)
			}
		})
	}
}

func TestFormatCents(t *testing.T) {
	tests := []struct {
		name  string
		cents int64
		want  string
	}{
		{"typical price", 9900, "99.00"},
		{"with cents", 123456, "1234.56"},
		{"sub-dollar", 5, "0.05"},
		{"zero", 0, "0.00"},
		{"negative", -1234, "-12.34"},
		{"single cent place", 950, "9.50"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatCents(tt.cents); got != tt.want {
				t.Errorf("FormatCents(%d) = %q, want %q", tt.cents, got, tt.want)
			}
		})
	}
}

func TestParseFormatRoundTrip(t *testing.T) {
	for _, cents := range []int64{0, 1, 99, 100, 9900, 123456} {
		if got := ParseCents(FormatCents(cents)); got != cents {
			t.Errorf("round trip %d: got %d", cents, got)
		}
	}
}
