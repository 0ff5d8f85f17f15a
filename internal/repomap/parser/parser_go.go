package parser

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

func (p *Parser) parseGo(content []byte) ([]Symbol, []Import, error) {
	root, err := parseTree(p.golang, content)
	if err != nil {
		return nil, nil, err
	}

	var symbols []Symbol
	var imports []Import

	for i := 0; i < int(root.NamedChildCount()); i++ {
		child := root.NamedChild(i)
		switch child.Type() {
		case "function_declaration":
			if sym, ok := goFunction(child, content, ""); ok {
				symbols = append(symbols, sym)
			}
		case "method_declaration":
			if sym, ok := goMethod(child, content); ok {
				symbols = append(symbols, sym)
			}
		case "type_declaration":
			symbols = append(symbols, goTypeDeclaration(child, content)...)
		case "import_declaration":
			imports = append(imports, goImports(child, content)...)
		}
	}

	return symbols, imports, nil
}

func goFunction(n *sitter.Node, content []byte, parent string) (Symbol, bool) {
	name := n.ChildByFieldName("name")
	if name == nil {
		return Symbol{}, false
	}
	body := n.ChildByFieldName("body")
	sig := signatureUpTo(n, body, content)
	return Symbol{
		Name:      name.Content(content),
		Kind:      SymbolFunction,
		Signature: sig,
		Line:      lineOf(n),
		Parent:    parent,
	}, true
}

func goMethod(n *sitter.Node, content []byte) (Symbol, bool) {
	receiver := goReceiverType(n, content)
	return goFunction(n, content, receiver)
}

// goReceiverType extracts the type name from a method's receiver
// ("(r *Type)" or "(r Type)"), dropping the leading pointer star.
func goReceiverType(n *sitter.Node, content []byte) string {
	recv := n.ChildByFieldName("receiver")
	if recv == nil {
		return ""
	}
	for i := 0; i < int(recv.NamedChildCount()); i++ {
		param := recv.NamedChild(i)
		if param.Type() != "parameter_declaration" {
			continue
		}
		typ := param.ChildByFieldName("type")
		if typ == nil {
			continue
		}
		text := typ.Content(content)
		return strings.TrimPrefix(text, "*")
	}
	return ""
}

func goTypeDeclaration(n *sitter.Node, content []byte) []Symbol {
	var symbols []Symbol
	for i := 0; i < int(n.NamedChildCount()); i++ {
		spec := n.NamedChild(i)
		if spec.Type() != "type_spec" {
			continue
		}
		name := spec.ChildByFieldName("name")
		typ := spec.ChildByFieldName("type")
		if name == nil || typ == nil {
			continue
		}
		kind := SymbolTypeAlias
		switch typ.Type() {
		case "struct_type":
			kind = SymbolStruct
		case "interface_type":
			kind = SymbolTrait
		}
		symbols = append(symbols, Symbol{
			Name: name.Content(content),
			Kind: kind,
			Line: lineOf(spec),
		})
	}
	return symbols
}

func goImports(n *sitter.Node, content []byte) []Import {
	var imports []Import
	var visit func(*sitter.Node)
	visit = func(node *sitter.Node) {
		if node.Type() == "import_spec" {
			path := node.ChildByFieldName("path")
			if path == nil {
				return
			}
			imports = append(imports, Import{
				RawPath: unquote(path.Content(content)),
				Line:    lineOf(node),
			})
			return
		}
		for i := 0; i < int(node.NamedChildCount()); i++ {
			visit(node.NamedChild(i))
		}
	}
	visit(n)
	return imports
}
