package chunker

import (
	"context"
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"

	"github.com/gcpark/coderag/pkg/types"
)

// parsePython chunks a Python file using a full Tree-sitter syntax tree.
// Classes become one chunk each with their methods folded in; functions
// whose enclosing scope is not a class body become standalone chunks. A
// parse failure degrades to a single whole-file chunk carrying the error
// description in metadata.
func (p *Parser) parsePython(path, content string) []*types.Chunk {
	parser := sitter.NewParser()
	parser.SetLanguage(python.GetLanguage())
	defer parser.Close()

	src := []byte(content)
	tree, err := parser.ParseCtx(context.Background(), nil, src)
	if err != nil {
		return []*types.Chunk{p.wholeFileChunk(path, content, types.LanguagePython, types.ChunkTypeFile,
			map[string]any{"parse_error": err.Error()})}
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		return []*types.Chunk{p.wholeFileChunk(path, content, types.LanguagePython, types.ChunkTypeFile,
			map[string]any{"parse_error": describeSyntaxError(root)})}
	}

	var chunks []*types.Chunk
	p.walkPythonChildren(root, src, path, false, &chunks)

	// File contains only statements, no defs or classes.
	if len(chunks) == 0 {
		chunks = append(chunks, p.wholeFileChunk(path, content, types.LanguagePython, types.ChunkTypeFile, nil))
	}

	return chunks
}

// walkPythonChildren visits the named children of node. inClassBody is true
// only for the direct children of a class body: a def nested one level
// deeper (inside an if block or another def) is emitted as its own chunk.
func (p *Parser) walkPythonChildren(node *sitter.Node, src []byte, path string, inClassBody bool, chunks *[]*types.Chunk) {
	for i := 0; i < int(node.NamedChildCount()); i++ {
		p.visitPythonNode(node.NamedChild(i), nil, src, path, inClassBody, chunks)
	}
}

// visitPythonNode dispatches one definition node, carrying decorator
// expressions collected from an enclosing decorated_definition. The
// ancestor relation is tracked on the way down, so parent lookup is O(1)
// per node rather than a rescan of the whole tree.
func (p *Parser) visitPythonNode(node *sitter.Node, decorators []string, src []byte, path string, inClassBody bool, chunks *[]*types.Chunk) {
	switch node.Type() {
	case "decorated_definition":
		decs := pythonDecorators(node, src)
		if def := node.ChildByFieldName("definition"); def != nil {
			p.visitPythonNode(def, decs, src, path, inClassBody, chunks)
		}

	case "class_definition":
		*chunks = append(*chunks, p.pythonClassChunk(node, decorators, src, path))
		if body := node.ChildByFieldName("body"); body != nil {
			p.walkPythonChildren(body, src, path, true, chunks)
		}

	case "function_definition":
		// Methods are folded into their enclosing class chunk.
		if !inClassBody {
			*chunks = append(*chunks, p.pythonFunctionChunk(node, decorators, src, path))
		}
		if body := node.ChildByFieldName("body"); body != nil {
			p.walkPythonChildren(body, src, path, false, chunks)
		}

	default:
		p.walkPythonChildren(node, src, path, false, chunks)
	}
}

// pythonClassChunk builds a chunk spanning the class's own declared range;
// decorators live in metadata, not in the spanned range.
func (p *Parser) pythonClassChunk(node *sitter.Node, decorators []string, src []byte, path string) *types.Chunk {
	var bases []string
	if supers := node.ChildByFieldName("superclasses"); supers != nil {
		for i := 0; i < int(supers.NamedChildCount()); i++ {
			bases = append(bases, supers.NamedChild(i).Content(src))
		}
	}

	return &types.Chunk{
		Content:   node.Content(src),
		FilePath:  path,
		Language:  types.LanguagePython,
		Project:   p.ProjectName(path),
		ChunkType: types.ChunkTypeClass,
		Name:      pythonNodeName(node, src),
		StartLine: int(node.StartPoint().Row) + 1,
		EndLine:   int(node.EndPoint().Row) + 1,
		Metadata: map[string]any{
			"decorators": decorators,
			"bases":      bases,
		},
	}
}

func (p *Parser) pythonFunctionChunk(node *sitter.Node, decorators []string, src []byte, path string) *types.Chunk {
	return &types.Chunk{
		Content:   node.Content(src),
		FilePath:  path,
		Language:  types.LanguagePython,
		Project:   p.ProjectName(path),
		ChunkType: types.ChunkTypeFunction,
		Name:      pythonNodeName(node, src),
		StartLine: int(node.StartPoint().Row) + 1,
		EndLine:   int(node.EndPoint().Row) + 1,
		Metadata: map[string]any{
			"decorators": decorators,
			"args":       pythonParamNames(node, src),
			"is_async":   pythonIsAsync(node),
		},
	}
}

func pythonNodeName(node *sitter.Node, src []byte) string {
	if name := node.ChildByFieldName("name"); name != nil {
		return name.Content(src)
	}
	return ""
}

// pythonDecorators returns the decorator expressions of a
// decorated_definition as source text without the leading '@'.
func pythonDecorators(node *sitter.Node, src []byte) []string {
	var decs []string
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		if child.Type() == "decorator" {
			decs = append(decs, strings.TrimPrefix(child.Content(src), "@"))
		}
	}
	return decs
}

// pythonParamNames collects positional parameter names, skipping *args and
// **kwargs splats.
func pythonParamNames(node *sitter.Node, src []byte) []string {
	params := node.ChildByFieldName("parameters")
	if params == nil {
		return nil
	}

	var names []string
	for i := 0; i < int(params.NamedChildCount()); i++ {
		param := params.NamedChild(i)
		switch param.Type() {
		case "identifier":
			names = append(names, param.Content(src))
		case "typed_parameter":
			if id := firstChildOfType(param, "identifier"); id != nil {
				names = append(names, id.Content(src))
			}
		case "default_parameter", "typed_default_parameter":
			if name := param.ChildByFieldName("name"); name != nil {
				names = append(names, name.Content(src))
			}
		}
	}
	return names
}

func pythonIsAsync(node *sitter.Node) bool {
	for i := 0; i < int(node.ChildCount()); i++ {
		if node.Child(i).Type() == "async" {
			return true
		}
	}
	return false
}

func firstChildOfType(node *sitter.Node, nodeType string) *sitter.Node {
	for i := 0; i < int(node.NamedChildCount()); i++ {
		if child := node.NamedChild(i); child.Type() == nodeType {
			return child
		}
	}
	return nil
}

// describeSyntaxError locates the first error node so the fallback chunk
// can report where parsing broke down.
func describeSyntaxError(root *sitter.Node) string {
	if errNode := firstErrorNode(root); errNode != nil {
		return fmt.Sprintf("syntax error at line %d", int(errNode.StartPoint().Row)+1)
	}
	return "syntax error"
}

func firstErrorNode(node *sitter.Node) *sitter.Node {
	if node.Type() == "ERROR" || node.IsMissing() {
		return node
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		if found := firstErrorNode(node.Child(i)); found != nil {
			return found
		}
	}
	return nil
}
