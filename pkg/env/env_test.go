package env

import "testing"

func TestGetReturnsSetValue(t *testing.T) {
	t.Setenv("QUERYBYTE_TEST_VAR", "/etc/querybyte")

	if got := Get("QUERYBYTE_TEST_VAR", "."); got != "/etc/querybyte" {
		t.Errorf("expected /etc/querybyte, got %q", got)
	}
}

func TestGetFallsBackWhenUnset(t *testing.T) {
	if got := Get("QUERYBYTE_UNSET_VAR", "."); got != "." {
		t.Errorf("expected fallback ., got %q", got)
	}
}

func TestGetReturnsEmptySetValue(t *testing.T) {
	// An explicitly empty variable is still set, so the fallback must not apply.
	t.Setenv("QUERYBYTE_EMPTY_VAR", "")

	if got := Get("QUERYBYTE_EMPTY_VAR", "fallback"); got != "" {
		t.Errorf("expected empty string, got %q", got)
	}
}
