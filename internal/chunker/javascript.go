package chunker

import (
	"regexp"

	"github.com/gcpark/coderag/pkg/types"
)

// JavaScript declaration patterns. All three end on the opening brace, so
// the span close is found by brace matching from the match end. As with
// Java, regex scanning is a best-effort approximation of the grammar.
var (
	jsClassPattern = regexp.MustCompile(
		`(?m)^(\s*)(?:export\s+)?class\s+(\w+)(?:\s+extends\s+\w+)?\s*\{`)

	jsFunctionPattern = regexp.MustCompile(
		`(?m)^(\s*)(?:export\s+)?(?:async\s+)?function\s+(\w+)\s*\([^)]*\)\s*\{`)

	jsArrowPattern = regexp.MustCompile(
		`(?m)^(\s*)(?:export\s+)?(?:const|let|var)\s+(\w+)\s*=\s*(?:async\s+)?\([^)]*\)\s*=>\s*\{`)
)

// parseJavaScript chunks a JavaScript file by regex-matching classes, named
// functions and named arrow functions, in that order. Matches are emitted
// in scan order grouped by pattern, not re-sorted by position. Nested
// declarations matched independently produce their own overlapping chunks;
// overlap is acceptable in the retrieval index.
func (p *Parser) parseJavaScript(path, content string) []*types.Chunk {
	var chunks []*types.Chunk

	emit := func(m []int, chunkType types.ChunkType) {
		name := content[m[4]:m[5]]
		startPos := m[0]
		startLine := lineAt(content, startPos)

		// The pattern guarantees the match ends on '{'.
		bracePos := m[1] - 1
		endPos := findMatchingBrace(content, bracePos)
		endLine := lineAt(content, endPos)

		chunks = append(chunks, &types.Chunk{
			Content:   content[startPos : endPos+1],
			FilePath:  path,
			Language:  types.LanguageJavaScript,
			Project:   p.ProjectName(path),
			ChunkType: chunkType,
			Name:      name,
			StartLine: startLine,
			EndLine:   endLine,
		})
	}

	for _, m := range jsClassPattern.FindAllStringSubmatchIndex(content, -1) {
		emit(m, types.ChunkTypeClass)
	}
	for _, m := range jsFunctionPattern.FindAllStringSubmatchIndex(content, -1) {
		emit(m, types.ChunkTypeFunction)
	}
	for _, m := range jsArrowPattern.FindAllStringSubmatchIndex(content, -1) {
		emit(m, types.ChunkTypeFunction)
	}

	if len(chunks) == 0 {
		chunks = append(chunks, p.wholeFileChunk(path, content, types.LanguageJavaScript, types.ChunkTypeFile, nil))
	}

	return chunks
}
