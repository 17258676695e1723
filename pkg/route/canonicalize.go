package route

import (
	stderrors "errors"
	"strings"

	"github.com/vango-dev/urlstore/internal/errors"
)

// Path rejection causes. CanonicalizePath wraps them in a coded error.
var (
	ErrBackslash     = stderrors.New("path contains backslash")
	ErrNullByte      = stderrors.New("path contains null byte")
	ErrPercentEscape = stderrors.New("invalid percent escape sequence")
	ErrEscapesRoot   = stderrors.New("path escapes root via ..")
	ErrAbsoluteURL   = stderrors.New("expected a path, got an absolute URL")
	ErrRelativePath  = stderrors.New("path must start with /")
)

// Canonical is a normalized path with its untouched query and fragment.
type Canonical struct {
	Path     string
	Query    string
	Fragment string

	// Changed reports whether normalization rewrote the path.
	Changed bool
}

// String reassembles the path, query and fragment.
func (c Canonical) String() string {
	s := c.Path
	if c.Query != "" {
		s += "?" + c.Query
	}
	if c.Fragment != "" {
		s += "#" + c.Fragment
	}
	return s
}

// CanonicalizePath normalizes the path part of input:
//   - multiple slashes collapse (/blog//post becomes /blog/post)
//   - "." segments are removed and ".." segments resolved
//   - a trailing slash is removed, except for the root
//
// Inputs containing a backslash, a NUL byte or a malformed percent escape,
// and paths whose ".." would climb above the root, are rejected. Anything
// after '?' or '#' is kept as is.
func CanonicalizePath(input string) (Canonical, error) {
	if input == "" {
		return Canonical{Path: "/", Changed: true}, nil
	}

	rest, fragment, _ := strings.Cut(input, "#")
	path, query, _ := strings.Cut(rest, "?")

	if err := checkPath(path); err != nil {
		return Canonical{}, errors.New(errors.CodeInvalidPath).
			WithDetailf("%q", input).
			Wrap(err)
	}

	original := path
	var segments []string
	for _, seg := range strings.Split(path, "/") {
		switch seg {
		case "", ".":
			continue
		case "..":
			if len(segments) == 0 {
				return Canonical{}, errors.New(errors.CodeInvalidPath).
					WithDetailf("%q", input).
					Wrap(ErrEscapesRoot)
			}
			segments = segments[:len(segments)-1]
		default:
			segments = append(segments, seg)
		}
	}
	path = "/" + strings.Join(segments, "/")

	return Canonical{
		Path:     path,
		Query:    query,
		Fragment: fragment,
		Changed:  path != original,
	}, nil
}

// CanonicalizeNavPath canonicalizes a navigation target, which must be a
// site-relative path.
func CanonicalizeNavPath(input string) (string, error) {
	if strings.HasPrefix(input, "http://") ||
		strings.HasPrefix(input, "https://") ||
		strings.HasPrefix(input, "//") {
		return "", errors.New(errors.CodeInvalidPath).WithDetailf("%q", input).Wrap(ErrAbsoluteURL)
	}
	if !strings.HasPrefix(input, "/") {
		return "", errors.New(errors.CodeInvalidPath).WithDetailf("%q", input).Wrap(ErrRelativePath)
	}
	c, err := CanonicalizePath(input)
	if err != nil {
		return "", err
	}
	return c.String(), nil
}

func checkPath(path string) error {
	if strings.Contains(path, "\\") {
		return ErrBackslash
	}
	if strings.Contains(path, "\x00") || strings.Contains(strings.ToUpper(path), "%00") {
		return ErrNullByte
	}
	for i := 0; i < len(path); i++ {
		if path[i] != '%' {
			continue
		}
		if i+2 >= len(path) || !isHex(path[i+1]) || !isHex(path[i+2]) {
			return ErrPercentEscape
		}
		i += 2
	}
	return nil
}

func isHex(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}
