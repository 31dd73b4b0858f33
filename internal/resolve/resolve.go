package resolve

import (
	"net/url"
	"path"
	"strings"
)

//go:generate mockgen -destination=resolvemock/resolvemock.go -package=resolvemock . Resolver

// Resolver turns a possibly-relative source path into one that's relative to
// nothing at all, given the location it was found in. It's a pure string
// function and never touches the file system.
type Resolver interface {
	Resolve(input string, base string) string
}

type ResolverFunc func(input string, base string) string

func (f ResolverFunc) Resolve(input string, base string) string {
	return f(input, base)
}

var Default Resolver = ResolverFunc(URL)

// URL resolves "input" against "base". The base is always treated as a
// directory, even without a trailing slash. Absolute URLs on either side use
// URL reference resolution and everything else is joined as a slash-separated
// path. A trailing slash on the result is kept.
func URL(input string, base string) string {
	if base != "" && !strings.HasSuffix(base, "/") {
		base += "/"
	}

	if hasScheme(input) || hasScheme(base) {
		if baseURL, err := url.Parse(base); err == nil {
			if inputURL, err := url.Parse(input); err == nil {
				return baseURL.ResolveReference(inputURL).String()
			}
		}
	}

	if strings.HasPrefix(input, "/") {
		return cleanPath(input)
	}
	return cleanPath(base + input)
}

// StripFilename removes everything after the last slash
func StripFilename(p string) string {
	return p[:strings.LastIndexByte(p, '/')+1]
}

// Sources resolves every entry of a map's "sources" against the map's
// "sourceRoot", which is itself resolved against the directory of the map.
// A "null" source has already become "" and resolves to the base directory.
func Sources(resolver Resolver, sources []string, sourceRoot string, mapURL string) []string {
	from := resolver.Resolve(sourceRoot, StripFilename(mapURL))
	if from != "" && !strings.HasSuffix(from, "/") {
		from += "/"
	}

	resolved := make([]string, len(sources))
	for i, source := range sources {
		resolved[i] = resolver.Resolve(source, from)
	}
	return resolved
}

// Matches a leading "scheme:" as described in RFC 3986
func hasScheme(text string) bool {
	for i := 0; i < len(text); i++ {
		c := text[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		case i > 0 && (c >= '0' && c <= '9' || c == '+' || c == '-' || c == '.'):
		case i > 0 && c == ':':
			return true
		default:
			return false
		}
	}
	return false
}

func cleanPath(p string) string {
	if p == "" {
		return ""
	}
	clean := path.Clean(p)
	if clean == "." {
		return ""
	}
	if strings.HasSuffix(p, "/") && !strings.HasSuffix(clean, "/") {
		clean += "/"
	}
	return clean
}
