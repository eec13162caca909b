package instance

import "testing"

func TestGetIDPrefersExplicitID(t *testing.T) {
	t.Setenv("DYNO", "web.1")
	t.Setenv("BUILDMART_INSTANCE_ID", "api-blue-2")
	if got := GetID(); got != "api-blue-2" {
		t.Fatalf("expected explicit id, got %q", got)
	}

	t.Setenv("BUILDMART_INSTANCE_ID", "")
	if got := GetID(); got != "web.1" {
		t.Fatalf("expected dyno id, got %q", got)
	}
}
