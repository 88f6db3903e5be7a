package config

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestGetDecimal(t *testing.T) {
	fallback := decimal.RequireFromString("0.85")
	tests := []struct {
		value string
		want  string
	}{
		{"0.9", "0.9"},
		{"1", "1"},
		{"0", "0.85"},
		{"1.5", "0.85"},
		{"abc", "0.85"},
	}
	for _, tt := range tests {
		t.Setenv("NEXUS_APPROACHING_RATIO", tt.value)
		got := GetDecimal("NEXUS_APPROACHING_RATIO", fallback)
		if !got.Equal(decimal.RequireFromString(tt.want)) {
			t.Errorf("GetDecimal(%q) = %s, want %s", tt.value, got, tt.want)
		}
	}
}

func TestGetInt(t *testing.T) {
	t.Setenv("NEXUS_WORKERS", "8")
	if got := GetInt("NEXUS_WORKERS", 4); got != 8 {
		t.Errorf("GetInt = %d, want 8", got)
	}
	t.Setenv("NEXUS_WORKERS", "eight")
	if got := GetInt("NEXUS_WORKERS", 4); got != 4 {
		t.Errorf("GetInt with bad value = %d, want 4", got)
	}
	if got := GetInt("NEXUS_UNSET_KEY", 7); got != 7 {
		t.Errorf("GetInt unset = %d, want 7", got)
	}
}

func TestSplitList(t *testing.T) {
	got := splitList(" http://a.test , ,http://b.test")
	if len(got) != 2 || got[0] != "http://a.test" || got[1] != "http://b.test" {
		t.Errorf("splitList = %q, want [http://a.test http://b.test]", got)
	}
}

func TestDSN(t *testing.T) {
	c := Config{DBUser: "u", DBPassword: "p", DBHost: "h", DBPort: "5432", DBName: "n", DBSSLMode: "disable"}
	if got, want := c.DSN(), "postgres://u:p@h:5432/n?sslmode=disable"; got != want {
		t.Errorf("DSN = %q, want %q", got, want)
	}
}
