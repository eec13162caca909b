package docstore

import (
	"fmt"
	"strings"
)

// Segments may contain spaces ("New Orders") but never these characters.
const forbiddenSegmentChars = ".#$[]"

// Clean validates a slash separated path and strips leading and trailing slashes.
func Clean(path string) (string, error) {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty path", ErrInvalidPath)
	}
	for _, seg := range strings.Split(trimmed, "/") {
		if err := validateSegment(seg); err != nil {
			return "", fmt.Errorf("%w: %q: %v", ErrInvalidPath, path, err)
		}
	}
	return trimmed, nil
}

// missingSegment stands in for an empty part. It contains forbidden
// characters, so a joined path with a missing id fails Clean instead of
// addressing the parent.
const missingSegment = "[missing]"

// Join concatenates path segments without validation. Parts may hold several
// segments ("Goa/Panaji/111111"); an empty part yields a path Clean rejects.
func Join(parts ...string) string {
	clean := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.Trim(part, "/")
		if part == "" {
			part = missingSegment
		}
		clean = append(clean, part)
	}
	return strings.Join(clean, "/")
}

// Split returns the segments of a cleaned path.
func Split(path string) []string {
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}

// ValidSegment reports whether value can be used as a single path segment.
func ValidSegment(value string) bool {
	return validateSegment(value) == nil
}

func validateSegment(seg string) error {
	if seg == "" {
		return fmt.Errorf("empty segment")
	}
	if strings.Contains(seg, "/") {
		return fmt.Errorf("segment %q contains '/'", seg)
	}
	if strings.ContainsAny(seg, forbiddenSegmentChars) {
		return fmt.Errorf("segment %q contains one of %q", seg, forbiddenSegmentChars)
	}
	for _, r := range seg {
		if r < 0x20 || r == 0x7f {
			return fmt.Errorf("segment %q contains a control character", seg)
		}
	}
	return nil
}

// lineage returns every ancestor of path followed by path itself, root first.
func lineage(path string) []string {
	segs := Split(path)
	out := make([]string, 0, len(segs))
	for i := 1; i <= len(segs); i++ {
		out = append(out, strings.Join(segs[:i], "/"))
	}
	return out
}

// related reports whether a change at one path can alter the value read at the other.
func related(a, b string) bool {
	return a == b || isAncestor(a, b) || isAncestor(b, a)
}

func isAncestor(ancestor, path string) bool {
	return strings.HasPrefix(path, ancestor+"/")
}

// upperBound returns the smallest string greater than every path under prefix.
// prefix must end in '/', which sorts directly below '0'.
func upperBound(prefix string) string {
	return strings.TrimSuffix(prefix, "/") + "0"
}
