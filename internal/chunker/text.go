package chunker

import "strings"

// findMatchingBrace scans forward from openPos, which must point at '{',
// and returns the offset of the matching '}'. Braces inside single- or
// double-quoted string literals are ignored; a quote toggles string state
// only when not escaped by a preceding backslash. Quote handling is naive:
// one in-string flag plus the quote character that opened it, which is the
// accepted precision for the regex-based extractors. If no match is found
// before end of text the last valid offset is returned and the chunk
// extends to end of file.
func findMatchingBrace(content string, openPos int) int {
	braceCount := 0
	inString := false
	var stringChar byte

	for i := openPos; i < len(content); i++ {
		ch := content[i]

		if (ch == '"' || ch == '\'') && (i == 0 || content[i-1] != '\\') {
			if !inString {
				inString = true
				stringChar = ch
			} else if ch == stringChar {
				inString = false
			}
		}

		if !inString {
			switch ch {
			case '{':
				braceCount++
			case '}':
				braceCount--
				if braceCount == 0 {
					return i
				}
			}
		}
	}

	return len(content) - 1
}

// lineAt converts an absolute character offset to a 1-based line number:
// one plus the number of newlines before the offset. All regex and tag
// extractors report line numbers through this single rule so offsets stay
// consistent across chunk types from the same file.
func lineAt(content string, offset int) int {
	if offset > len(content) {
		offset = len(content)
	}
	return strings.Count(content[:offset], "\n") + 1
}
