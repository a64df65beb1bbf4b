package observability

import (
	"strings"
	"testing"
)

func TestScrubLogValueStripsControlCharacters(t *testing.T) {
	cases := []struct {
		name  string
		in    string
		limit int
		want  string
	}{
		{"plain", "orders", 32, "orders"},
		{"newline injection", "ok\ninjected=true", 32, "okinjected=true"},
		{"tabs and carriage returns", "a\tb\rc", 32, "abc"},
		{"delete byte", "a\x7fb", 32, "ab"},
		{"truncates at limit", "abcdef", 3, "abc"},
		{"multibyte runes survive", "café", 8, "café"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := scrubLogValue(tc.in, tc.limit); got != tc.want {
				t.Fatalf("scrubLogValue(%q, %d) = %q, want %q", tc.in, tc.limit, got, tc.want)
			}
		})
	}
}

func TestSanitizeRoute(t *testing.T) {
	if got := SanitizeRoute(""); got != "/" {
		t.Fatalf("empty route = %q, want /", got)
	}
	long := "/api/v1/orders/" + strings.Repeat("x", 200)
	if got := SanitizeRoute(long); len([]rune(got)) != maxRouteChars {
		t.Fatalf("route length = %d, want %d", len([]rune(got)), maxRouteChars)
	}
}

func TestSanitizeMethodUppercases(t *testing.T) {
	if got := SanitizeMethod("patch"); got != "PATCH" {
		t.Fatalf("method = %q, want PATCH", got)
	}
}

func TestSanitizeSubjectBoundsIdentifier(t *testing.T) {
	subject := strings.Repeat("s", 100) + "\n"
	got := SanitizeSubject(subject)
	if len(got) != maxSubjectChars {
		t.Fatalf("subject length = %d, want %d", len(got), maxSubjectChars)
	}
	if strings.ContainsAny(got, "\n\r") {
		t.Fatal("subject must be single-line")
	}
}

func TestSanitizeAddrFitsIPv6(t *testing.T) {
	addr := "2001:0db8:85a3:0000:0000:8a2e:0370:7334"
	if got := SanitizeAddr(addr); got != addr {
		t.Fatalf("addr = %q, want unchanged", got)
	}
}
