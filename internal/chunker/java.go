package chunker

import (
	"regexp"
	"strings"

	"github.com/gcpark/coderag/pkg/types"
)

// javaTypePattern matches class/interface/enum/record declarations with
// their leading modifiers. Regex scanning is best-effort: it can misparse
// generics, braces embedded in odd string literals, or annotations spanning
// multiple lines. Accepted precision/recall tradeoff.
var javaTypePattern = regexp.MustCompile(
	`(?m)^(\s*)((?:public|private|protected|abstract|final|static|\s)*)` +
		`(class|interface|enum|record)\s+(\w+)`)

// parseJava chunks a Java file by regex-matching type declarations and
// spanning each to its matching closing brace. Only type declarations are
// extracted; methods stay inside their type's chunk. The JavaScript
// extractor handles callables differently and the two variants are kept
// separate.
func (p *Parser) parseJava(path, content string) []*types.Chunk {
	var chunks []*types.Chunk

	for _, m := range javaTypePattern.FindAllStringSubmatchIndex(content, -1) {
		declType := content[m[6]:m[7]]
		name := content[m[8]:m[9]]
		modifiers := strings.TrimSpace(content[m[4]:m[5]])

		startPos := m[0]
		startLine := lineAt(content, startPos)

		bracePos := strings.Index(content[m[1]:], "{")
		if bracePos == -1 {
			continue
		}
		bracePos += m[1]

		endPos := findMatchingBrace(content, bracePos)
		endLine := lineAt(content, endPos)

		chunks = append(chunks, &types.Chunk{
			Content:   content[startPos : endPos+1],
			FilePath:  path,
			Language:  types.LanguageJava,
			Project:   p.ProjectName(path),
			ChunkType: types.ChunkType(declType),
			Name:      name,
			StartLine: startLine,
			EndLine:   endLine,
			Metadata: map[string]any{
				"modifiers": modifiers,
			},
		})
	}

	if len(chunks) == 0 {
		chunks = append(chunks, p.wholeFileChunk(path, content, types.LanguageJava, types.ChunkTypeFile, nil))
	}

	return chunks
}
