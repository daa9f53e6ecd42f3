package common

import "testing"

func TestSlug(t *testing.T) {
	cases := map[string]string{
		"Cortina d'Ampezzo": "cortina-d-ampezzo",
		"46.4700, 10.3700":  "46-4700-10-3700",
		"  Val Gardena  ":   "val-gardena",
		"Zürich":            "z-rich",
		"":                  "fallback",
		"!!!":               "fallback",
	}
	for in, want := range cases {
		if got := Slug(in, "fallback"); got != want {
			t.Errorf("Slug(%q) = %q, want %q", in, got, want)
		}
	}
}
