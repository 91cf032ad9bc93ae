package util

import (
	"os"
	"testing"
)

func TestParseFloatEnv(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		def      float64
		expected float64
	}{
		{"unset returns default", "", 0.7, 0.7},
		{"valid value", "0.85", 0.7, 0.85},
		{"whitespace trimmed", " 0.5 ", 0.7, 0.5},
		{"invalid returns default", "not-a-number", 0.7, 0.7},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key := "TEST_PARSE_FLOAT_ENV"
			os.Unsetenv(key)
			if tt.value != "" {
				os.Setenv(key, tt.value)
				defer os.Unsetenv(key)
			}
			if got := ParseFloatEnv(key, tt.def); got != tt.expected {
				t.Errorf("ParseFloatEnv(%q, %v) = %v, want %v", tt.value, tt.def, got, tt.expected)
			}
		})
	}
}

func TestParseBoolEnv(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		def      bool
		expected bool
	}{
		{"unset returns default", "", true, true},
		{"true value", "true", false, true},
		{"numeric true", "1", false, true},
		{"false value", "off", true, false},
		{"invalid returns default", "maybe", true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key := "TEST_PARSE_BOOL_ENV"
			os.Unsetenv(key)
			if tt.value != "" {
				os.Setenv(key, tt.value)
				defer os.Unsetenv(key)
			}
			if got := ParseBoolEnv(key, tt.def); got != tt.expected {
				t.Errorf("ParseBoolEnv(%q, %v) = %v, want %v", tt.value, tt.def, got, tt.expected)
			}
		})
	}
}
