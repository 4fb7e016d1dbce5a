package util

import (
	"reflect"
	"testing"
	"time"
)

func TestGetEnv(t *testing.T) {
	t.Setenv("CAREVOICE_TEST_VAR", "set")
	if got := GetEnv("CAREVOICE_TEST_VAR", "default"); got != "set" {
		t.Errorf("expected set value, got %q", got)
	}
	if got := GetEnv("CAREVOICE_TEST_UNSET", "default"); got != "default" {
		t.Errorf("expected default, got %q", got)
	}
}

func TestParseBoolEnv(t *testing.T) {
	cases := []struct {
		value string
		def   bool
		want  bool
	}{
		{"true", false, true},
		{"1", false, true},
		{"YES", false, true},
		{"on", false, true},
		{"false", true, false},
		{"0", true, false},
		{"off", true, false},
		{"garbage", true, true},
		{"", false, false},
	}
	for _, tc := range cases {
		t.Setenv("CAREVOICE_TEST_BOOL", tc.value)
		if got := ParseBoolEnv("CAREVOICE_TEST_BOOL", tc.def); got != tc.want {
			t.Errorf("ParseBoolEnv(%q, %v) = %v, want %v", tc.value, tc.def, got, tc.want)
		}
	}
}

func TestParseDurationEnv(t *testing.T) {
	t.Setenv("CAREVOICE_TEST_DUR", "45s")
	if got := ParseDurationEnv("CAREVOICE_TEST_DUR", time.Minute); got != 45*time.Second {
		t.Errorf("expected 45s, got %v", got)
	}
	t.Setenv("CAREVOICE_TEST_DUR", "not-a-duration")
	if got := ParseDurationEnv("CAREVOICE_TEST_DUR", time.Minute); got != time.Minute {
		t.Errorf("expected default on invalid value, got %v", got)
	}
	if got := ParseDurationEnv("CAREVOICE_TEST_DUR_UNSET", 2*time.Second); got != 2*time.Second {
		t.Errorf("expected default on unset, got %v", got)
	}
}

func TestSplitListEnv(t *testing.T) {
	t.Setenv("CAREVOICE_TEST_LIST", "manager@example.com, deputy@example.com ,,  ")
	want := []string{"manager@example.com", "deputy@example.com"}
	if got := SplitListEnv("CAREVOICE_TEST_LIST"); !reflect.DeepEqual(got, want) {
		t.Errorf("SplitListEnv = %v, want %v", got, want)
	}
	if got := SplitListEnv("CAREVOICE_TEST_LIST_UNSET"); got != nil {
		t.Errorf("expected nil for unset, got %v", got)
	}
}
