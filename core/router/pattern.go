package router

import (
	"strings"

	"github.com/cockroachdb/errors"
)

type segmentKind uint8

const (
	literal  segmentKind = iota // default
	param                       // :name
	wildcard                    // * or *name, last segment only
)

type segment struct {
	kind  segmentKind
	value string // literal text or parameter name
}

// pattern is a compiled route pattern
type pattern struct {
	raw      string
	segments []segment
	wildcard bool
}

// compilePattern splits a pattern into segments.
// A wildcard anywhere but the last segment is rejected.
func compilePattern(raw string) (*pattern, error) {
	parts := splitPath(raw)
	p := &pattern{raw: raw, segments: make([]segment, 0, len(parts))}

	for i, part := range parts {
		switch {
		case strings.HasPrefix(part, ":"):
			if len(part) == 1 {
				return nil, errors.Newf("empty parameter name in %q", raw)
			}
			p.segments = append(p.segments, segment{kind: param, value: part[1:]})
		case strings.HasPrefix(part, "*"):
			if i != len(parts)-1 {
				return nil, errors.Newf("wildcard must be the last segment in %q", raw)
			}
			name := part[1:]
			if name == "" {
				name = "*"
			}
			p.segments = append(p.segments, segment{kind: wildcard, value: name})
			p.wildcard = true
		default:
			p.segments = append(p.segments, segment{kind: literal, value: part})
		}
	}

	return p, nil
}

// match reports whether the split path fits the pattern.
// A trailing wildcard needs at least one remaining segment.
func (p *pattern) match(parts []string) bool {
	if p.wildcard {
		if len(parts) < len(p.segments) {
			return false
		}
	} else if len(parts) != len(p.segments) {
		return false
	}

	for i, seg := range p.segments {
		switch seg.kind {
		case literal:
			if parts[i] != seg.value {
				return false
			}
		case wildcard:
			return true
		}
	}
	return true
}

// extract walks a matched path and collects parameters.
// A repeated name keeps the later value.
func (p *pattern) extract(parts []string) map[string]string {
	var params map[string]string
	for i, seg := range p.segments {
		if seg.kind == literal {
			continue
		}
		if params == nil {
			params = make(map[string]string, 2)
		}
		if seg.kind == wildcard {
			params[seg.value] = strings.Join(parts[i:], "/")
			break
		}
		params[seg.value] = parts[i]
	}
	return params
}

// build substitutes values into the parameter and wildcard segments in order
func (p *pattern) build(values ...string) (string, error) {
	var sb strings.Builder
	next := 0
	for _, seg := range p.segments {
		sb.WriteByte('/')
		if seg.kind == literal {
			sb.WriteString(seg.value)
			continue
		}
		if next >= len(values) {
			return "", errors.Newf("not enough values for %q: got %d", p.raw, len(values))
		}
		sb.WriteString(strings.Trim(values[next], "/"))
		next++
	}
	if next != len(values) {
		return "", errors.Newf("too many values for %q: got %d, want %d", p.raw, len(values), next)
	}
	if sb.Len() == 0 {
		return "/", nil
	}
	return sb.String(), nil
}

// splitPath removes leading and trailing slashes and splits on '/'
func splitPath(path string) []string {
	path = strings.Trim(path, "/")
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}

// joinPattern concatenates a group prefix and a pattern with single slashes
func joinPattern(prefix, pattern string) string {
	parts := append(splitPath(prefix), splitPath(pattern)...)
	return "/" + strings.Join(parts, "/")
}
