package datasource

import (
	"strings"
)

// Resolver turns resource paths into fetchable locations, honoring a
// deployment base path such as "/risk-map/".
type Resolver struct {
	// Origin is prepended to resolved paths, e.g. "https://example.org".
	// Empty for directory sources.
	Origin string
	// BasePath is the sub-path the data is served under.
	BasePath string
}

// IsAbsoluteURL reports whether p carries an http or https scheme.
func IsAbsoluteURL(p string) bool {
	lower := strings.ToLower(p)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

// Resolve joins p to the base path with exactly one slash between them.
// Absolute URLs pass through unchanged.
func (r Resolver) Resolve(p string) string {
	if IsAbsoluteURL(p) {
		return p
	}
	base := strings.Trim(r.BasePath, "/")
	if base != "" {
		base = "/" + base
	}
	loc := base + "/" + strings.TrimLeft(p, "/")
	if r.Origin == "" {
		return loc
	}
	return strings.TrimRight(r.Origin, "/") + loc
}

// cityHints maps path fragments to the city label of their features.
var cityHints = []struct {
	fragment string
	city     string
}{
	{"ankara", "Ankara"},
	{"istanbul", "Istanbul"},
}

// CityFromPath infers a city label from a resource path.
func CityFromPath(p string) string {
	lower := strings.ToLower(p)
	for _, h := range cityHints {
		if strings.Contains(lower, h.fragment) {
			return h.city
		}
	}
	return ""
}
