// Package route builds URLs from file-system style route ids.
//
// A route id is a slash-separated path whose segments may be:
//
//	(group)          layout group, removed from the URL
//	[name]           required parameter, one path segment
//	[[name]]         optional parameter, dropped with its slash when empty
//	[...name]        rest parameter, may span several segments or be empty
//	[name=matcher]   parameter with a matcher; the matcher is not checked here
//
// Static text may surround a parameter within one segment, as in
// "/files/[name].[ext]".
//
//	path, err := route.Build(route.Options{
//		RouteID: "/(shop)/products/[id]",
//		Params:  map[string]string{"id": "42"},
//		Query:   querysync.ParseValues("tab=reviews"),
//		Hash:    "top",
//	})
//	// path == "/products/42?tab=reviews#top"
package route

import (
	"net/url"
	"strings"

	"github.com/vango-dev/urlstore/internal/errors"
	"github.com/vango-dev/urlstore/pkg/querysync"
)

// Options describe a URL to build.
type Options struct {
	RouteID string
	Params  map[string]string
	Query   querysync.Values
	Hash    string
}

// Build resolves the route and appends the query and hash. The query is
// written in its own order; the hash is percent-encoded as a fragment.
func Build(opts Options) (string, error) {
	path, err := Resolve(opts.RouteID, opts.Params)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	b.WriteString(path)
	if search := opts.Query.Encode(); search != "" {
		b.WriteByte('?')
		b.WriteString(search)
	}
	if opts.Hash != "" {
		b.WriteByte('#')
		b.WriteString((&url.URL{Fragment: opts.Hash}).EscapedFragment())
	}
	return b.String(), nil
}

// Resolve substitutes params into routeID and removes group segments.
func Resolve(routeID string, params map[string]string) (string, error) {
	if !strings.HasPrefix(routeID, "/") {
		return "", errors.New(errors.CodeInvalidRouteID).
			WithDetailf("route id %q must start with /", routeID)
	}

	var out []string
	for _, seg := range strings.Split(routeID, "/")[1:] {
		if seg == "" || isGroup(seg) {
			continue
		}
		resolved, err := resolveSegment(routeID, seg, params)
		if err != nil {
			return "", err
		}
		if resolved != "" {
			out = append(out, resolved)
		}
	}
	return "/" + strings.Join(out, "/"), nil
}

func isGroup(seg string) bool {
	return strings.HasPrefix(seg, "(") && strings.HasSuffix(seg, ")")
}

type param struct {
	name     string
	optional bool
	rest     bool
}

// resolveSegment substitutes every parameter in one segment.
func resolveSegment(routeID, seg string, params map[string]string) (string, error) {
	var b strings.Builder
	rest := seg
	for {
		open := strings.IndexByte(rest, '[')
		if open < 0 {
			if strings.IndexByte(rest, ']') >= 0 {
				return "", unbalanced(routeID, seg)
			}
			b.WriteString(encodeStatic(rest))
			return b.String(), nil
		}
		b.WriteString(encodeStatic(rest[:open]))
		rest = rest[open:]

		p, n, ok := parseParam(rest)
		if !ok {
			return "", unbalanced(routeID, seg)
		}
		rest = rest[n:]

		value, present := params[p.name]
		switch {
		case p.rest:
			b.WriteString(encodeRest(value))
		case !present || value == "":
			if !p.optional {
				return "", errors.New(errors.CodeMissingParam).
					WithDetailf("route %q needs param %q", routeID, p.name).
					WithSuggestion("Pass a value for " + p.name)
			}
		case strings.Contains(value, "/"):
			return "", errors.New(errors.CodeParamHasSlash).
				WithDetailf("param %q of route %q is %q", p.name, routeID, value)
		default:
			b.WriteString(url.PathEscape(value))
		}
	}
}

// parseParam reads "[name]", "[[name]]", "[...name]" or "[name=matcher]" at
// the start of s and returns the bytes consumed.
func parseParam(s string) (param, int, bool) {
	var p param
	opener, closer := "[", "]"
	if strings.HasPrefix(s, "[[") {
		p.optional = true
		opener, closer = "[[", "]]"
	}
	end := strings.Index(s, closer)
	if end < 0 {
		return p, 0, false
	}
	inner := s[len(opener):end]
	if strings.HasPrefix(inner, "...") {
		p.rest = true
		inner = inner[3:]
	}
	if name, _, found := strings.Cut(inner, "="); found {
		inner = name
	}
	if inner == "" || strings.ContainsAny(inner, "[]") {
		return p, 0, false
	}
	p.name = inner
	return p, end + len(closer), true
}

func unbalanced(routeID, seg string) error {
	return errors.New(errors.CodeInvalidRouteID).
		WithDetailf("segment %q of route %q has unbalanced brackets", seg, routeID)
}

func encodeStatic(s string) string {
	return url.PathEscape(s)
}

// encodeRest escapes each segment of a rest value and keeps its slashes.
func encodeRest(value string) string {
	value = strings.Trim(value, "/")
	if value == "" {
		return ""
	}
	parts := strings.Split(value, "/")
	for i, part := range parts {
		parts[i] = url.PathEscape(part)
	}
	return strings.Join(parts, "/")
}
