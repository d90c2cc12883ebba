package literal

import (
	"errors"
	"math"
	"testing"
	"time"
)

func TestParseDate(t *testing.T) {
	tests := []struct {
		input    string
		expected Date
		wantErr  bool
	}{
		{"2024-02-29", Date{2024, time.February, 29}, false},
		{"0001-01-01", Date{1, time.January, 1}, false},
		{"-0044-03-15", Date{-44, time.March, 15}, false},
		{"12345-06-07", Date{12345, time.June, 7}, false},
		{"2023-02-29", Date{}, true},
		{"2024-13-01", Date{}, true},
		{"24-01-01", Date{}, true},
		{"2024/01/01", Date{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseDate(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidLiteral) {
					t.Fatalf("Expected ErrInvalidLiteral, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseDate(%q) error: %v", tt.input, err)
			}
			if got != tt.expected {
				t.Errorf("Expected %+v, got %+v", tt.expected, got)
			}
			if formatted := FormatDate(got); formatted != tt.input {
				t.Errorf("Expected round trip %q, got %q", tt.input, formatted)
			}
		})
	}
}

func TestParseTimeOfDay(t *testing.T) {
	tests := []struct {
		input     string
		canonical string
		wantErr   bool
	}{
		{"13:20", "13:20:00", false},
		{"13:20:05", "13:20:05", false},
		{"23:59:59.9999999", "23:59:59.9999999", false},
		{"00:00:00.000000000001", "00:00:00", false},
		{"24:00:00", "", true},
		{"1:00", "", true},
		{"12:00:00.", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseTimeOfDay(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("Expected error for %q", tt.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseTimeOfDay(%q) error: %v", tt.input, err)
			}
			if s := got.String(); s != tt.canonical {
				t.Errorf("Expected %q, got %q", tt.canonical, s)
			}
		})
	}
}

func TestDurationRoundTrip(t *testing.T) {
	tests := []struct {
		input    string
		expected time.Duration
	}{
		{"P1DT2H3M4.5S", 26*time.Hour + 3*time.Minute + 4500*time.Millisecond},
		{"-PT30M", -30 * time.Minute},
		{"P2D", 48 * time.Hour},
		{"PT0S", 0},
		{"PT0.000000001S", time.Nanosecond},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseDuration(tt.input)
			if err != nil {
				t.Fatalf("ParseDuration(%q) error: %v", tt.input, err)
			}
			if got != tt.expected {
				t.Errorf("Expected %v, got %v", tt.expected, got)
			}
			if formatted := FormatDuration(got); formatted != tt.input {
				t.Errorf("Expected canonical %q, got %q", tt.input, formatted)
			}
		})
	}

	for _, bad := range []string{"", "P", "PT", "1D", "P1H", "PT1.5M", "P-1D"} {
		if _, err := ParseDuration(bad); err == nil {
			t.Errorf("Expected error for %q", bad)
		}
	}
}

func TestParseDecimal(t *testing.T) {
	v, err := ParseDecimal("-12.3400")
	if err != nil {
		t.Fatalf("ParseDecimal error: %v", err)
	}
	if s := FormatDecimal(v); s != "-12.34" {
		t.Errorf("Expected -12.34, got %s", s)
	}
	if _, err := ParseDecimal("1e5"); err == nil {
		t.Error("Expected exponent notation to be rejected")
	}
	if _, err := ParseDecimal("abc"); !errors.Is(err, ErrInvalidLiteral) {
		t.Errorf("Expected ErrInvalidLiteral, got %v", err)
	}
}

func TestParseFloat(t *testing.T) {
	if v, err := ParseFloat("INF"); err != nil || !math.IsInf(v, 1) {
		t.Errorf("Expected +Inf, got %v (%v)", v, err)
	}
	if v, err := ParseFloat("NaN"); err != nil || !math.IsNaN(v) {
		t.Errorf("Expected NaN, got %v (%v)", v, err)
	}
	if s := FormatFloat(100); s != "100.0" {
		t.Errorf("Expected 100.0, got %s", s)
	}
	if s := FormatFloat(3.25); s != "3.25" {
		t.Errorf("Expected 3.25, got %s", s)
	}
	if s := FormatFloat(math.Inf(-1)); s != "-INF" {
		t.Errorf("Expected -INF, got %s", s)
	}
}

func TestParseGuid(t *testing.T) {
	const text = "21ec2020-3aea-1069-a2dd-08002b30309d"
	v, err := ParseGuid("21EC2020-3AEA-1069-A2DD-08002B30309D")
	if err != nil {
		t.Fatalf("ParseGuid error: %v", err)
	}
	if s := FormatGuid(v); s != text {
		t.Errorf("Expected %s, got %s", text, s)
	}
	if _, err := ParseGuid("{" + text + "}"); err == nil {
		t.Error("Expected braced guid to be rejected")
	}
}

func TestParseBinary(t *testing.T) {
	v, err := ParseBinary("T0RhdGE")
	if err != nil {
		t.Fatalf("ParseBinary error: %v", err)
	}
	if string(v) != "OData" {
		t.Errorf("Expected OData, got %q", v)
	}
	if s := FormatBinary(v); s != "T0RhdGE" {
		t.Errorf("Expected T0RhdGE, got %s", s)
	}
	if _, err := ParseBinary("!!"); err == nil {
		t.Error("Expected error for invalid binary")
	}
}

func TestParseDateTimeOffset(t *testing.T) {
	v, err := ParseDateTimeOffset("2024-05-06T07:08:09.5Z")
	if err != nil {
		t.Fatalf("ParseDateTimeOffset error: %v", err)
	}
	if s := FormatDateTimeOffset(v); s != "2024-05-06T07:08:09.5Z" {
		t.Errorf("Expected round trip, got %s", s)
	}
	short, err := ParseDateTimeOffset("2024-05-06T07:08+02:00")
	if err != nil {
		t.Fatalf("ParseDateTimeOffset without seconds error: %v", err)
	}
	if short.Minute() != 8 {
		t.Errorf("Expected minute 8, got %d", short.Minute())
	}
}

func TestParseBoolAndInt(t *testing.T) {
	if v, err := ParseBool("true"); err != nil || !v {
		t.Errorf("Expected true, got %v (%v)", v, err)
	}
	if _, err := ParseBool("True"); err == nil {
		t.Error("Expected case-sensitive boolean parsing")
	}
	if _, err := ParseInt("9223372036854775808"); err == nil {
		t.Error("Expected overflow to be rejected")
	}
	if v, err := ParseInt("-42"); err != nil || v != -42 {
		t.Errorf("Expected -42, got %v (%v)", v, err)
	}
}
