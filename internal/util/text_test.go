package util

import "testing"

func TestNormalizeName(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  string
	}{
		{name: "mixed case", input: "  Wardrobe ", want: "wardrobe"},
		{name: "inner spaces", input: "Sofa   (3-seat)", want: "sofa 3-seat"},
		{name: "hebrew", input: "ארון  בגדים", want: "ארון בגדים"},
		{name: "quotes", input: `"Piano"`, want: "piano"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := NormalizeName(tc.input); got != tc.want {
				t.Fatalf("got %q want %q", got, tc.want)
			}
		})
	}
}

func TestSanitizeFilename(t *testing.T) {
	got := SanitizeFilename("<msg-1@example.com>")
	if got != "_msg-1@example.com_" {
		t.Fatalf("got %q", got)
	}
}
