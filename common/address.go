package common

import "strings"

// NormalizeKey normalizes a PEM public/private key string for use as a map
// key or equality comparison: CRLF line endings are folded to LF and
// leading/trailing whitespace is trimmed. Spec.md §9 flags that the
// original compares PEM keys both raw and CRLF-normalized; normalized
// comparison is authoritative here, raw comparison is never used.
func NormalizeKey(pem string) string {
	normalized := strings.ReplaceAll(pem, "\r\n", "\n")
	return strings.TrimSpace(normalized)
}
