package mcp

import "testing"

func TestNegotiateVersion(t *testing.T) {
	cases := map[string]string{
		"2024-11-05": "2024-11-05",
		"2025-06-18": "2025-06-18",
		"1999-01-01": LatestProtocolVersion,
		"":           LatestProtocolVersion,
	}
	for requested, want := range cases {
		if got := NegotiateVersion(requested); want != got {
			t.Fatalf("NegotiateVersion(%q): want %q got %q", requested, want, got)
		}
	}
}
