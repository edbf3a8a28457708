package env

import "testing"

func TestGet(t *testing.T) {
	if got := Get("SOME_UNSET_SETTING", "fallback"); got != "fallback" {
		t.Fatalf("expected fallback, got %q", got)
	}

	t.Setenv("SOME_SETTING", "host")
	if got := Get("SOME_SETTING", "fallback"); got != "host" {
		t.Fatalf("expected host value, got %q", got)
	}

	t.Setenv("SUBPAY_SOME_SETTING", "service")
	if got := Get("SOME_SETTING", "fallback"); got != "service" {
		t.Fatalf("expected service-scoped value to win, got %q", got)
	}
}
