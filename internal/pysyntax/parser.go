// Package pysyntax parses Python source with tree-sitter and lowers the
// concrete syntax tree into a small set of Go statement types.
//
// Only the shape needed for definition extraction is kept: class and function
// definitions with their bodies, bare string-literal statements, and an
// opaque Other for everything else. Nodes are copied out of the tree-sitter
// tree before it is released, so a Module is safe to keep and share.
package pysyntax

import (
	"fmt"
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"
	python "github.com/tree-sitter/tree-sitter-python/bindings/go"
)

var language = sitter.NewLanguage(python.Language())

// Parse parses source and returns its module-level statements.
// name is only used to attribute a *SyntaxError.
func Parse(source []byte, name string) (*Module, error) {
	parser := sitter.NewParser()
	defer parser.Close()

	if err := parser.SetLanguage(language); err != nil {
		return nil, fmt.Errorf("failed to load python grammar: %w", err)
	}

	tree := parser.Parse(source, nil)
	if tree == nil {
		return nil, fmt.Errorf("failed to parse python file: %s", name)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		return nil, syntaxError(root, source, name)
	}
	if synErr := legacySyntax(root, name); synErr != nil {
		return nil, synErr
	}

	return &Module{
		Name: name,
		Body: lowerBlock(root, source),
	}, nil
}

// lowerBlock converts the statements directly under a module or block node.
func lowerBlock(node *sitter.Node, source []byte) []Stmt {
	stmts := []Stmt{}
	if node == nil {
		return stmts
	}

	for i := uint(0); i < node.NamedChildCount(); i++ {
		child := node.NamedChild(i)
		if child == nil || child.IsExtra() || child.Kind() == "comment" {
			continue
		}
		stmts = append(stmts, lowerStmt(child, source))
	}
	return stmts
}

func lowerStmt(node *sitter.Node, source []byte) Stmt {
	switch node.Kind() {
	case "decorated_definition":
		// Decorators are dropped; the definition keeps its own span.
		if def := node.ChildByFieldName("definition"); def != nil {
			return lowerStmt(def, source)
		}
	case "class_definition":
		return lowerClass(node, source)
	case "function_definition":
		return lowerFunction(node, source)
	case "expression_statement":
		if node.NamedChildCount() == 1 {
			if value, ok := docstringValue(node.NamedChild(0), source); ok {
				return &StringExpr{Value: value, span: spanOf(node)}
			}
		}
	}
	return &Other{Kind: node.Kind(), span: spanOf(node)}
}

func lowerClass(node *sitter.Node, source []byte) *ClassDef {
	return &ClassDef{
		Name:  nodeText(node.ChildByFieldName("name"), source),
		Bases: baseList(node.ChildByFieldName("superclasses"), source),
		Body:  lowerBlock(node.ChildByFieldName("body"), source),
		span:  spanOf(node),
	}
}

func lowerFunction(node *sitter.Node, source []byte) *FunctionDef {
	return &FunctionDef{
		Name: nodeText(node.ChildByFieldName("name"), source),
		Body: lowerBlock(node.ChildByFieldName("body"), source),
		span: spanOf(node),
	}
}

// baseList returns the positional entries of a class argument list as written.
// Keyword entries such as metaclass=... are class keywords, not bases.
func baseList(args *sitter.Node, source []byte) []string {
	bases := []string{}
	if args == nil {
		return bases
	}

	for i := uint(0); i < args.NamedChildCount(); i++ {
		arg := args.NamedChild(i)
		if arg == nil || arg.IsExtra() {
			continue
		}
		switch arg.Kind() {
		case "comment", "keyword_argument", "dictionary_splat":
			continue
		}
		bases = append(bases, nodeText(arg, source))
	}
	return bases
}

// docstringValue reports whether node is a string literal usable as a
// docstring and returns its text without prefix and quotes.
func docstringValue(node *sitter.Node, source []byte) (string, bool) {
	if node == nil {
		return "", false
	}

	switch node.Kind() {
	case "string":
		return stringBody(node, source)
	case "parenthesized_expression":
		// ("doc") is still a plain string constant
		if inner := soleNamedChild(node); inner != nil {
			return docstringValue(inner, source)
		}
	case "concatenated_string":
		var sb strings.Builder
		for i := uint(0); i < node.NamedChildCount(); i++ {
			part := node.NamedChild(i)
			if part.IsExtra() {
				continue
			}
			value, ok := stringBody(part, source)
			if !ok {
				return "", false
			}
			sb.WriteString(value)
		}
		return sb.String(), true
	}
	return "", false
}

// soleNamedChild returns the only named child of node, ignoring comments.
func soleNamedChild(node *sitter.Node) *sitter.Node {
	var found *sitter.Node
	for i := uint(0); i < node.NamedChildCount(); i++ {
		child := node.NamedChild(i)
		if child == nil || child.IsExtra() || child.Kind() == "comment" {
			continue
		}
		if found != nil {
			return nil
		}
		found = child
	}
	return found
}

// stringBody slices the text between the opening and closing delimiters of a
// string node. Bytes and formatted literals are rejected.
func stringBody(node *sitter.Node, source []byte) (string, bool) {
	if node.Kind() != "string" {
		return "", false
	}

	var openQuote, closeQuote *sitter.Node
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		switch child.Kind() {
		case "string_start":
			openQuote = child
		case "string_end":
			closeQuote = child
		case "interpolation":
			return "", false
		}
	}
	if openQuote == nil || closeQuote == nil {
		return "", false
	}

	prefix := strings.ToLower(strings.TrimRight(nodeText(openQuote, source), `"'`))
	if strings.ContainsAny(prefix, "bft") {
		return "", false
	}

	return string(source[openQuote.EndByte():closeQuote.StartByte()]), true
}

// syntaxError locates the first ERROR or MISSING node under root.
func syntaxError(root *sitter.Node, source []byte, name string) *SyntaxError {
	bad := firstErrorNode(root)
	if bad == nil {
		return &SyntaxError{Source: name, Msg: "invalid syntax"}
	}

	pos := bad.StartPosition()
	msg := "invalid syntax"
	if bad.IsMissing() {
		msg = fmt.Sprintf("missing %q", bad.Kind())
	} else if text := firstLine(nodeText(bad, source)); text != "" {
		msg = fmt.Sprintf("invalid syntax near %q", text)
	}

	return &SyntaxError{
		Source: name,
		Line:   int(pos.Row) + 1,
		Column: int(pos.Column) + 1,
		Msg:    msg,
	}
}

// legacySyntax rejects statements the grammar only accepts for Python 2
// compatibility, along with an unparenthesized := at statement level.
func legacySyntax(node *sitter.Node, name string) *SyntaxError {
	msg := ""
	switch node.Kind() {
	case "print_statement":
		msg = "Missing parentheses in call to 'print'"
	case "exec_statement":
		msg = "Missing parentheses in call to 'exec'"
	case "expression_statement":
		if first := node.NamedChild(0); first != nil && first.Kind() == "named_expression" {
			msg = "invalid syntax near \":=\""
		}
	}
	if msg != "" {
		pos := node.StartPosition()
		return &SyntaxError{
			Source: name,
			Line:   int(pos.Row) + 1,
			Column: int(pos.Column) + 1,
			Msg:    msg,
		}
	}

	for i := uint(0); i < node.ChildCount(); i++ {
		if synErr := legacySyntax(node.Child(i), name); synErr != nil {
			return synErr
		}
	}
	return nil
}

func firstErrorNode(node *sitter.Node) *sitter.Node {
	if node == nil {
		return nil
	}
	if node.IsError() || node.IsMissing() {
		return node
	}
	if !node.HasError() {
		return nil
	}
	for i := uint(0); i < node.ChildCount(); i++ {
		if found := firstErrorNode(node.Child(i)); found != nil {
			return found
		}
	}
	return nil
}

func firstLine(s string) string {
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		s = s[:idx]
	}
	s = strings.TrimSpace(s)
	if len(s) > 40 {
		s = s[:40]
	}
	return s
}

func nodeText(node *sitter.Node, source []byte) string {
	if node == nil {
		return ""
	}
	return string(source[node.StartByte():node.EndByte()])
}

// spanOf covers node up to its last token. Comments tree-sitter attaches to
// the end of a block are left out.
func spanOf(node *sitter.Node) Span {
	return Span{
		StartByte: int(node.StartByte()),
		EndByte:   int(lastToken(node).EndByte()),
	}
}

func lastToken(node *sitter.Node) *sitter.Node {
	for i := node.ChildCount(); i > 0; i-- {
		child := node.Child(i - 1)
		if child == nil || child.Kind() == "comment" || child.StartByte() == child.EndByte() {
			continue
		}
		return lastToken(child)
	}
	return node
}
