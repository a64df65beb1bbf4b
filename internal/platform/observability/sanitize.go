package observability

import "strings"

// Field width caps for values copied into log entries. Subjects come from JWT
// claims and addresses from proxy headers, so neither is trusted as-is.
const (
	maxRouteChars   = 120
	maxMethodChars  = 10
	maxSubjectChars = 64
	maxAddrChars    = 45
)

// scrubLogValue drops every control character, newlines included, and caps the
// value at limit runes. Log lines stay single-line and bounded no matter what
// the client sent.
func scrubLogValue(value string, limit int) string {
	var b strings.Builder
	b.Grow(len(value))
	kept := 0
	for _, r := range value {
		if r < 0x20 || r == 0x7f {
			continue
		}
		if kept == limit {
			break
		}
		b.WriteRune(r)
		kept++
	}
	return b.String()
}

// SanitizeRoute caps a chi route pattern for the request log. An empty pattern
// falls back to the root path so dashboards never group on "".
func SanitizeRoute(route string) string {
	if route == "" {
		return "/"
	}
	return scrubLogValue(route, maxRouteChars)
}

// SanitizeMethod normalises the HTTP method field.
func SanitizeMethod(method string) string {
	return scrubLogValue(strings.ToUpper(method), maxMethodChars)
}

// SanitizeSubject caps a token subject before it is logged. Subjects are
// customer identifiers, so the cap also limits what ends up in log sinks.
func SanitizeSubject(subject string) string {
	return scrubLogValue(subject, maxSubjectChars)
}

// SanitizeAddr caps a peer address. The limit fits the longest textual IPv6
// form.
func SanitizeAddr(addr string) string {
	return scrubLogValue(addr, maxAddrChars)
}
