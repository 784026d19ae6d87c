package broker

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// IsValidObjectPath reports whether bucket/object is safe to map onto a local
// file tree. SplitPath accepts any object path; local backends call this
// before touching disk. It checks that the bucket:
//   - is non-empty, contains no "/" and is not "." or ".."
//
// and that the object path:
//   - is not empty, ".", or "/"
//   - is relative and does not end with "/"
//   - does not contain ".." or "//"
//   - does not contain the characters \ ? # ~
//   - is valid UTF-8 without "." segments
//   - contains no null bytes, control characters, DEL, or whitespace
func IsValidObjectPath(bucket, object string) bool {
	if bucket == "" || bucket == "." || bucket == ".." || strings.ContainsAny(bucket, `/\`) {
		return false
	}
	if !validSegmentRunes(bucket) {
		return false
	}

	p := object
	if p == "" || p == "/" || p == "." {
		return false
	}

	if p[0] == '/' {
		return false
	}

	if strings.HasSuffix(p, "/") {
		return false
	}

	if strings.Contains(p, "..") {
		return false
	}

	if strings.Contains(p, "//") {
		return false
	}

	if strings.ContainsAny(p, `\?#~`) {
		return false
	}

	if !utf8.ValidString(p) {
		return false
	}

	if strings.HasPrefix(p, "./") || strings.Contains(p, "/./") || strings.HasSuffix(p, "/.") {
		return false
	}

	return validSegmentRunes(p)
}

func validSegmentRunes(s string) bool {
	for _, r := range s {
		if r == 0 || r < 0x20 || r == 0x7f || unicode.IsSpace(r) {
			return false
		}
	}
	return true
}
