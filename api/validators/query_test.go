package validators

import (
	"net/http/httptest"
	"testing"

	pkgerrors "github.com/angelmondragon/buildmart-backend/pkg/errors"
)

func TestSanitizeStringKeepsRunesIntact(t *testing.T) {
	cases := []struct {
		in   string
		max  int
		want string
	}{
		{in: "  cement  ", max: 0, want: "cement"},
		{in: "सीमेंट बैग", max: 3, want: "सीम"},
		{in: "tile\x00s\n", max: 10, want: "tiles"},
		{in: "steel rods", max: 6, want: "steel"},
	}
	for _, tc := range cases {
		if got := SanitizeString(tc.in, tc.max); got != tc.want {
			t.Fatalf("SanitizeString(%q, %d) = %q, want %q", tc.in, tc.max, got, tc.want)
		}
	}
}

func TestParseQueryInt(t *testing.T) {
	req := httptest.NewRequest("GET", "/api/v1/products?limit=25&bad=x&big=900", nil)

	if v, err := ParseQueryInt(req, "limit", 10, 1, 100); err != nil || v != 25 {
		t.Fatalf("expected 25, got %d err=%v", v, err)
	}
	if v, err := ParseQueryInt(req, "missing", 10, 1, 100); err != nil || v != 10 {
		t.Fatalf("expected default, got %d err=%v", v, err)
	}
	for _, key := range []string{"bad", "big"} {
		_, err := ParseQueryInt(req, key, 10, 1, 100)
		if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
			t.Fatalf("expected validation error for %s, got %v", key, err)
		}
	}
}

func TestQueryStringSanitizes(t *testing.T) {
	req := httptest.NewRequest("GET", "/api/v1/products?category=%20Tiles%20", nil)
	if got := QueryString(req, "category", 80); got != "Tiles" {
		t.Fatalf("unexpected category %q", got)
	}
}
