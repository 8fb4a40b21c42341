package chunker

import (
	"regexp"

	"github.com/gcpark/coderag/pkg/types"
)

// Vue single-file component section patterns: non-greedy, dot matches
// newline. Style sections are intentionally not extracted as chunks.
var (
	vueScriptPattern   = regexp.MustCompile(`(?s)<script[^>]*>(.*?)</script>`)
	vueTemplatePattern = regexp.MustCompile(`(?s)<template[^>]*>(.*?)</template>`)
)

// parseVue splits a Vue single-file component into script and template
// section chunks. A component with neither section falls back to one
// whole-file chunk of type "component".
func (p *Parser) parseVue(path, content string) []*types.Chunk {
	var chunks []*types.Chunk
	stem := fileStem(path)

	emit := func(m []int, section string, chunkType types.ChunkType) {
		chunks = append(chunks, &types.Chunk{
			Content:   content[m[0]:m[1]],
			FilePath:  path,
			Language:  types.LanguageVue,
			Project:   p.ProjectName(path),
			ChunkType: chunkType,
			Name:      stem + "::" + section,
			StartLine: lineAt(content, m[0]),
			EndLine:   lineAt(content, m[1]),
			Metadata: map[string]any{
				"section": section,
			},
		})
	}

	if m := vueScriptPattern.FindStringIndex(content); m != nil {
		emit(m, "script", types.ChunkTypeScript)
	}
	if m := vueTemplatePattern.FindStringIndex(content); m != nil {
		emit(m, "template", types.ChunkTypeTemplate)
	}

	if len(chunks) == 0 {
		chunks = append(chunks, p.wholeFileChunk(path, content, types.LanguageVue, types.ChunkTypeComponent, nil))
	}

	return chunks
}
