package ingestion

import "testing"

func TestInferMetadata(t *testing.T) {
	t.Parallel()

	tests := []struct {
		source     string
		wantFormat string
		wantTitle  string
	}{
		{"data/monopoly.pdf", "pdf", "monopoly"},
		{"data/ticket_to_ride.PDF", "pdf", "ticket to ride"},
		{"notes/house-rules.md", "markdown", "house rules"},
		{"faq.txt", "text", "faq"},
		{"README", "text", "README"},
		{"https://example.com/rules/catan-base-game.html", "html", "catan base game"},
		{"https://example.com/rules/scrabble", "html", "scrabble"},
		{"https://example.com/", "html", "example.com"},
		{"https://example.com/dl/rules.pdf", "pdf", "rules"},
	}

	for _, tc := range tests {
		t.Run(tc.source, func(t *testing.T) {
			t.Parallel()
			got := InferMetadata(tc.source)
			if got.Format != tc.wantFormat {
				t.Errorf("Format = %q, want %q", got.Format, tc.wantFormat)
			}
			if got.Title != tc.wantTitle {
				t.Errorf("Title = %q, want %q", got.Title, tc.wantTitle)
			}
		})
	}
}

func TestTrimSegments(t *testing.T) {
	t.Parallel()
	got := trimSegments("/a//b/c/")
	if len(got) != 3 || got[0] != "a" || got[2] != "c" {
		t.Errorf("trimSegments = %v, want [a b c]", got)
	}
}
