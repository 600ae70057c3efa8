package belief

import "strings"

// pathSep joins document path segments; fragments attach with '#'.
const pathSep = "/"

// ToAnchor converts free text into a stable anchor segment: trimmed,
// lowercased, whitespace mapped to '-', ASCII punctuation dropped (except
// '-' and '_', which identifiers rely on). The function is idempotent.
func ToAnchor(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case r == ' ' || r == '\t' || r == '\n' || r == '\r':
			b.WriteByte('-')
		case r == '-' || r == '_':
			b.WriteRune(r)
		case r < 128 && isASCIIPunct(byte(r)):
			// dropped
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func isASCIIPunct(c byte) bool {
	return (c >= '!' && c <= '/') || (c >= ':' && c <= '@') ||
		(c >= '[' && c <= '`') || (c >= '{' && c <= '~')
}

// AnchorPath is a document path with an optional '#' fragment.
type AnchorPath struct {
	Doc      string
	Fragment string
	absolute bool
}

// NewAnchorPath splits a raw path into its document and fragment parts.
func NewAnchorPath(raw string) AnchorPath {
	absolute := strings.HasPrefix(raw, pathSep)
	doc, fragment := raw, ""
	if idx := strings.Index(raw, "#"); idx >= 0 {
		doc, fragment = raw[:idx], raw[idx+1:]
	}
	return AnchorPath{Doc: doc, Fragment: fragment, absolute: absolute}
}

// IsAbsolute reports whether the raw path was rooted.
func (ap AnchorPath) IsAbsolute() bool { return ap.absolute }

// IsEmpty reports whether both document and fragment parts are empty.
func (ap AnchorPath) IsEmpty() bool { return ap.Doc == "" && ap.Fragment == "" }

// String reassembles the raw form.
func (ap AnchorPath) String() string {
	if ap.Fragment == "" {
		return ap.Doc
	}
	return ap.Doc + "#" + ap.Fragment
}

// Ext returns the extension of the document's terminal segment, empty for
// hidden files and extensionless segments.
func (ap AnchorPath) Ext() string {
	seg := ap.Doc
	if idx := strings.LastIndex(seg, pathSep); idx >= 0 {
		seg = seg[idx+1:]
	}
	if idx := strings.LastIndex(seg, "."); idx > 0 {
		return seg[idx+1:]
	}
	return ""
}

// Normalize collapses '.' and redundant separators, resolves interior '..'
// segments, strips the leading root and reattaches the fragment.
func (ap AnchorPath) Normalize() string {
	segments := strings.Split(ap.Doc, pathSep)
	stack := make([]string, 0, len(segments))
	for _, seg := range segments {
		switch seg {
		case "", ".":
			// dropped
		case "..":
			if n := len(stack); n > 0 && stack[n-1] != ".." {
				stack = stack[:n-1]
			} else {
				stack = append(stack, seg)
			}
		default:
			stack = append(stack, seg)
		}
	}
	doc := strings.Join(stack, pathSep)
	if ap.Fragment == "" {
		return doc
	}
	return doc + "#" + ap.Fragment
}

// Join resolves a link relative to this path's containing directory and
// normalizes the result.
func (ap AnchorPath) Join(link string) string {
	dir := ap.Doc
	if idx := strings.LastIndex(dir, pathSep); idx >= 0 {
		dir = dir[:idx]
	} else {
		dir = ""
	}
	if dir == "" {
		return NewAnchorPath(link).Normalize()
	}
	return NewAnchorPath(dir + pathSep + link).Normalize()
}

// GetDocPath returns the document portion of a path, dropping any fragment.
func GetDocPath(path string) string {
	if idx := strings.Index(path, "#"); idx >= 0 {
		return path[:idx]
	}
	return path
}

func trimJoiners(s string) string {
	return strings.Trim(s, "/#")
}

// TrimPathSep strips leading and trailing separators.
func TrimPathSep(s string) string {
	return strings.Trim(s, pathSep)
}

// PathJoin composes a child segment onto its sink's path. Anchor children
// attach as '#' fragments of the sink's document; document children join
// with a separator.
func PathJoin(base, end string, endIsAnchor bool) string {
	if end == "" || trimJoiners(end) == "" {
		return trimJoiners(base)
	}
	if endIsAnchor {
		return GetDocPath(base) + "#" + end
	}
	pathBase := GetDocPath(base)
	if trimJoiners(pathBase) == "" {
		return trimJoiners(end)
	}
	return trimJoiners(pathBase) + pathSep + trimJoiners(end)
}

// RelativePath computes full relative to base, failing when full does not
// extend base.
func RelativePath(full, base string) (string, error) {
	full = strings.TrimLeft(full, pathSep)
	base = strings.TrimLeft(base, pathSep)
	if !strings.HasPrefix(full, base) {
		return "", Serializationf("path %q is not relative to %q", full, base)
	}
	rest := full[len(base):]
	switch {
	case base == "" || strings.HasSuffix(base, pathSep):
		return rest, nil
	case rest == "":
		return "", nil
	case strings.HasPrefix(rest, pathSep):
		return rest[1:], nil
	default:
		return "", Serializationf("path %q is not relative to %q", full, base)
	}
}
