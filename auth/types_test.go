package auth

import "testing"

func TestCredentialStringRedacts(t *testing.T) {
	if got := Credential("hunter2").String(); got != "[REDACTED]" {
		t.Errorf("String() = %q, want redacted form", got)
	}
	if got := Credential(nil).String(); got != "" {
		t.Errorf("empty credential String() = %q, want empty", got)
	}
}

func TestSortedLabels(t *testing.T) {
	m := map[string]int{"legacy": 1, "corp": 2, "partners": 3}
	if got := sortedLabels(m); got != "corp,legacy,partners" {
		t.Errorf("sortedLabels() = %q, want lexicographic order", got)
	}
	if got := sortedLabels(map[string]int{}); got != "" {
		t.Errorf("sortedLabels(empty) = %q, want empty", got)
	}
}
